package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemVentaRequest struct {
	ProductoID string          `json:"producto_id" validate:"required,uuid"`
	Cantidad   int             `json:"cantidad"    validate:"required,min=1"`
	// Descuento is an absolute amount applied to the line before tax
	Descuento decimal.Decimal `json:"descuento"   validate:"min=0"`
}

type PagoRequest struct {
	Metodo     string          `json:"metodo" validate:"required,oneof=efectivo debito credito transferencia"`
	Monto      decimal.Decimal `json:"monto"  validate:"required"`
	Referencia *string         `json:"referencia"`
}

type ProcesarVentaRequest struct {
	ClienteRef *string            `json:"cliente_ref"`
	CanalVenta string             `json:"canal_venta" validate:"omitempty,oneof=presencial delivery"`
	Items      []ItemVentaRequest `json:"items"       validate:"required,min=1,dive"`
	Pago       PagoRequest        `json:"pago"        validate:"required"`
}

type CambiarEstadoRequest struct {
	Estado string `json:"estado" validate:"required,oneof=pagada en_camino entregada cancelada"`
}

// ─── Filter / List ──────────────────────────────────────────────────────────

// VentaFilter is bound from the query string of GET /v1/ventas.
type VentaFilter struct {
	Fecha  string `form:"fecha"` // YYYY-MM-DD; empty = all
	Estado string `form:"estado"`
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=50"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DetalleVentaResponse struct {
	ProductoID     string          `json:"producto_id"`
	Producto       string          `json:"producto,omitempty"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Descuento      decimal.Decimal `json:"descuento"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

type VentaResponse struct {
	ID         string                 `json:"id"`
	Folio      string                 `json:"folio"`
	ClienteRef *string                `json:"cliente_ref,omitempty"`
	CanalVenta string                 `json:"canal_venta"`
	Items      []DetalleVentaResponse `json:"items"`
	Neto       decimal.Decimal        `json:"neto"`
	IVA        decimal.Decimal        `json:"iva"`
	Descuento  decimal.Decimal        `json:"descuento"`
	Total      decimal.Decimal        `json:"total"`
	Vuelto     decimal.Decimal        `json:"vuelto"`
	Estado     string                 `json:"estado"`
	CreatedAt  string                 `json:"created_at"`
}

type VentaListResponse struct {
	Data  []VentaResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}
