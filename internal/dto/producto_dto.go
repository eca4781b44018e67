package dto

import "github.com/shopspring/decimal"

// ProductoFilter is bound from the query string of GET /v1/productos.
type ProductoFilter struct {
	Nombre    string `form:"nombre"`
	Categoria string `form:"categoria"`
	Activo    string `form:"activo"` // "all" incluye inactivos
	Page      int    `form:"page,default=1"`
	Limit     int    `form:"limit,default=50"`
}

type CrearProductoRequest struct {
	CodigoBarras *string         `json:"codigo_barras"`
	Nombre       string          `json:"nombre"       validate:"required,min=2"`
	Descripcion  *string         `json:"descripcion"`
	Categoria    string          `json:"categoria"    validate:"required"`
	PrecioVenta  decimal.Decimal `json:"precio_venta" validate:"required,gt=0"`
	StockMinimo  int             `json:"stock_minimo" validate:"min=0"`
}

// ConsultaPrecioResponse is the public price check payload. Served from a
// short-lived Redis cache, so the stock figure may lag a few seconds.
type ConsultaPrecioResponse struct {
	Nombre          string          `json:"nombre"`
	Categoria       string          `json:"categoria"`
	PrecioVenta     decimal.Decimal `json:"precio_venta"`
	StockDisponible int             `json:"stock_disponible"`
}

type ProductoResponse struct {
	ID            string          `json:"id"`
	Nombre        string          `json:"nombre"`
	Categoria     string          `json:"categoria"`
	PrecioVenta   decimal.Decimal `json:"precio_venta"`
	StockCacheado int             `json:"stock_cacheado"`
	StockMinimo   int             `json:"stock_minimo"`
	Activo        bool            `json:"activo"`
}

type ProductoListResponse struct {
	Data  []ProductoResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}
