package model

import (
	"time"

	"github.com/google/uuid"
)

// Movement kinds. Salidas carry a negative Cantidad, entradas a positive one.
const (
	MovimientoEntrada = "entrada"
	MovimientoSalida  = "salida"
	MovimientoMerma   = "merma"
)

// MovimientoStock es el kardex: un hecho inmutable por cada cambio de stock
// de un lote. Nunca se actualiza ni se borra: es la pista de auditoría, no
// la fuente del saldo vigente (ese se lee de Lote.StockActual).
type MovimientoStock struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductoID uuid.UUID `gorm:"type:uuid;not null;index"`
	LoteID     uuid.UUID `gorm:"type:uuid;not null;index"`
	// VentaID links sale-driven movements to their sale. The cancellation
	// replay selects by it; Referencia is display text, never a key.
	VentaID *uuid.UUID `gorm:"type:uuid;index"`
	Tipo    string     `gorm:"type:varchar(10);not null"`
	// Cantidad is signed: entrada > 0, salida/merma < 0
	Cantidad   int    `gorm:"not null"`
	Referencia string `gorm:"not null"`
	Actor      string
	CreatedAt  time.Time `gorm:"index"`

	Producto *Producto `gorm:"foreignKey:ProductoID"`
	Lote     *Lote     `gorm:"foreignKey:LoteID"`
}

// TableName overrides GORM's default pluralization (movimiento_stocks → movimientos_stock).
func (MovimientoStock) TableName() string { return "movimientos_stock" }
