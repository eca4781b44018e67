package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale states. Transitions: pendiente → pagada → en_camino → entregada;
// cancelada is reachable from any non-terminal state.
const (
	VentaPendiente = "pendiente"
	VentaPagada    = "pagada"
	VentaEnCamino  = "en_camino"
	VentaEntregada = "entregada"
	VentaCancelada = "cancelada"
)

// Venta is one committed commercial transaction. Immutable after commit
// except for the estado transitions above.
type Venta struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Folio      string    `gorm:"uniqueIndex;not null"`
	ClienteRef *string
	CanalVenta string          `gorm:"type:varchar(20);not null;default:'presencial'"`
	Neto       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IVA        decimal.Decimal `gorm:"column:iva;type:decimal(12,2);not null"`
	Descuento  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado     string          `gorm:"type:varchar(20);not null;default:'pendiente'"`
	CreatedAt  time.Time       `gorm:"index"`
	UpdatedAt  time.Time

	Detalles []DetalleVenta `gorm:"foreignKey:VentaID"`
	Pagos    []Pago         `gorm:"foreignKey:VentaID"`
}

func (Venta) TableName() string { return "ventas" }

// EsTerminal reports whether estado admits no further transition.
func EsTerminal(estado string) bool {
	return estado == VentaEntregada || estado == VentaCancelada
}

// DetalleVenta captures the unit price at sale time; the line never
// re-reads the live catalog price afterwards.
type DetalleVenta struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Descuento      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

func (DetalleVenta) TableName() string { return "detalles_venta" }

// Pago records the payment that settled a sale.
type Pago struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	Monto             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Metodo            string          `gorm:"type:varchar(20);not null"`
	ReferenciaExterna *string
	CreatedAt         time.Time
}

func (Pago) TableName() string { return "pagos" }
