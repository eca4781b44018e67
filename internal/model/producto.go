package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Producto is the catalog entry. Physical stock lives in its Lotes;
// StockCacheado is the denormalized sum of lot balances and is mutated
// exclusively by the cache recompute hook, inside the same transaction
// that touched the lots.
type Producto struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CodigoBarras *string   `gorm:"uniqueIndex"`
	Nombre       string    `gorm:"index;not null"`
	Descripcion  *string
	Categoria    string          `gorm:"not null"`
	PrecioVenta  decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	// StockCacheado == SUM(lotes.stock_actual) at every transaction boundary
	StockCacheado int  `gorm:"not null;default:0"`
	StockMinimo   int  `gorm:"not null;default:5"`
	Activo        bool `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Lotes []Lote `gorm:"foreignKey:ProductoID"`
}

func (Producto) TableName() string { return "productos" }
