package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	AlertaStockBajo   = "stock_bajo"
	AlertaVencimiento = "vencimiento"
)

// Alerta is a derived signal keyed by (tipo, target): stock_bajo targets a
// product, vencimiento targets a lot. The evaluator never duplicates an open
// alert for the same key and flips Resuelto once the breach clears.
type Alerta struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Tipo       string     `gorm:"type:varchar(20);not null;index:idx_alerta_target"`
	ProductoID *uuid.UUID `gorm:"type:uuid;index:idx_alerta_target"`
	LoteID     *uuid.UUID `gorm:"type:uuid;index:idx_alerta_target"`
	Mensaje    string     `gorm:"not null"`
	Resuelto   bool       `gorm:"not null;default:false;index"`
	CreatedAt  time.Time
	ResueltoAt *time.Time
}

func (Alerta) TableName() string { return "alertas" }
