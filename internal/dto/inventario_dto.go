package dto

import "github.com/shopspring/decimal"

// ─── Lotes ──────────────────────────────────────────────────────────────────

// IngresoLoteRequest is the procurement intake: it creates a lot, writes an
// entrada movement and refreshes the product's cached stock in one
// transaction.
type IngresoLoteRequest struct {
	ProductoID       string          `json:"producto_id"       validate:"required,uuid"`
	NumeroLote       *string         `json:"numero_lote"`
	FechaVencimiento string          `json:"fecha_vencimiento" validate:"required,datetime=2006-01-02"`
	Cantidad         int             `json:"cantidad"          validate:"required,min=1"`
	CostoUnitario    decimal.Decimal `json:"costo_unitario"    validate:"required"`
	Referencia       string          `json:"referencia"`
}

type LoteResponse struct {
	ID               string          `json:"id"`
	ProductoID       string          `json:"producto_id"`
	NumeroLote       *string         `json:"numero_lote,omitempty"`
	FechaVencimiento string          `json:"fecha_vencimiento"`
	StockActual      int             `json:"stock_actual"`
	CostoUnitario    decimal.Decimal `json:"costo_unitario"`
	DiasParaVencer   int             `json:"dias_para_vencer"`
}

// MermaRequest writes off units of one lot (expired, damaged).
type MermaRequest struct {
	LoteID   string `json:"lote_id"  validate:"required,uuid"`
	Cantidad int    `json:"cantidad" validate:"required,min=1"`
	Motivo   string `json:"motivo"   validate:"required,min=3"`
}

// ─── Allocation ─────────────────────────────────────────────────────────────

type AsignarRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	Cantidad   int    `json:"cantidad"    validate:"required,min=1"`
	Referencia string `json:"referencia"`
}

type AsignacionResponse struct {
	LoteID   string `json:"lote_id"`
	Cantidad int    `json:"cantidad"`
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

type MovimientoResponse struct {
	ID         string `json:"id"`
	ProductoID string `json:"producto_id"`
	LoteID     string `json:"lote_id"`
	Tipo       string `json:"tipo"`
	Cantidad   int    `json:"cantidad"`
	Referencia string `json:"referencia"`
	Actor      string `json:"actor,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type MovimientoListResponse struct {
	Data  []MovimientoResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// ReconciliacionResponse compares the three stock views of one product.
// Consistente is false when the replayed ledger disagrees with the lots or
// the cache, which means a logic defect, not a data-entry problem.
type ReconciliacionResponse struct {
	ProductoID    string `json:"producto_id"`
	StockCacheado int    `json:"stock_cacheado"`
	SumaLotes     int    `json:"suma_lotes"`
	SumaLedger    int    `json:"suma_ledger"`
	Consistente   bool   `json:"consistente"`
}
