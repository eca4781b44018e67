package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lote is a batch of one product with its own expiry date and remaining
// balance, the unit of FIFO consumption. Consumption order is
// (fecha_vencimiento ASC, created_at ASC, id ASC): when two lots expire the
// same day the one received first drains first, and the id settles
// same-instant inserts deterministically.
type Lote struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductoID       uuid.UUID `gorm:"type:uuid;not null;index"`
	NumeroLote       *string
	FechaVencimiento time.Time `gorm:"type:date;not null;index"`
	// StockActual never goes below zero; decrements are guarded in SQL
	StockActual   int             `gorm:"not null;default:0"`
	CostoUnitario decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// EliminadoAt soft-deletes the lot; deleted lots are never allocated
	EliminadoAt *time.Time `gorm:"index"`

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

func (Lote) TableName() string { return "lotes" }

// DiasParaVencer returns whole days until expiry, negative once expired.
func (l *Lote) DiasParaVencer(ahora time.Time) int {
	return int(l.FechaVencimiento.Sub(ahora.Truncate(24*time.Hour)).Hours() / 24)
}
