package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"forneria/internal/apierror"
	"forneria/internal/dto"
	"forneria/internal/model"
	"forneria/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Short TTL: stock moves with every sale, stale reads must age out fast.
const precioCacheTTL = 60 * time.Second

// ProductosHandler serves the catalog read surface plus product creation.
// It talks to the repository directly: there is no business logic here.
type ProductosHandler struct {
	repo repository.ProductoRepository
	rdb  *redis.Client
}

func NewProductosHandler(repo repository.ProductoRepository, rdb *redis.Client) *ProductosHandler {
	return &ProductosHandler{repo: repo, rdb: rdb}
}

func (h *ProductosHandler) Crear(c *gin.Context) {
	var req dto.CrearProductoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	p := &model.Producto{
		CodigoBarras: req.CodigoBarras,
		Nombre:       req.Nombre,
		Descripcion:  req.Descripcion,
		Categoria:    req.Categoria,
		PrecioVenta:  req.PrecioVenta,
		StockMinimo:  req.StockMinimo,
		Activo:       true,
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, productoToResponse(p))
}

func (h *ProductosHandler) Listar(c *gin.Context) {
	var filter dto.ProductoFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	productos, total, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	data := make([]dto.ProductoResponse, 0, len(productos))
	for i := range productos {
		data = append(data, productoToResponse(&productos[i]))
	}
	c.JSON(http.StatusOK, dto.ProductoListResponse{
		Data:  data,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

func (h *ProductosHandler) ObtenerPorID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	p, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, apierror.New("Producto no encontrado"))
			return
		}
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, productoToResponse(p))
}

// GetPrecioPorBarcode serves the public price check with a Redis
// read-through cache in front of the catalog.
func (h *ProductosHandler) GetPrecioPorBarcode(c *gin.Context) {
	barcode := c.Param("barcode")
	ctx := c.Request.Context()
	cacheKey := "precio:" + barcode

	if h.rdb != nil {
		if cached, err := h.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var resp dto.ConsultaPrecioResponse
			if jsonErr := json.Unmarshal(cached, &resp); jsonErr == nil {
				c.JSON(http.StatusOK, resp)
				return
			}
		}
	}

	producto, err := h.repo.FindByBarcode(ctx, barcode)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("Producto no encontrado"))
		return
	}

	resp := dto.ConsultaPrecioResponse{
		Nombre:          producto.Nombre,
		Categoria:       producto.Categoria,
		PrecioVenta:     producto.PrecioVenta,
		StockDisponible: producto.StockCacheado,
	}

	// Populate cache best effort, ignore errors
	if h.rdb != nil {
		if b, jsonErr := json.Marshal(resp); jsonErr == nil {
			_ = h.rdb.Set(context.Background(), cacheKey, b, precioCacheTTL).Err()
		}
	}

	c.JSON(http.StatusOK, resp)
}

func productoToResponse(p *model.Producto) dto.ProductoResponse {
	return dto.ProductoResponse{
		ID:            p.ID.String(),
		Nombre:        p.Nombre,
		Categoria:     p.Categoria,
		PrecioVenta:   p.PrecioVenta,
		StockCacheado: p.StockCacheado,
		StockMinimo:   p.StockMinimo,
		Activo:        p.Activo,
	}
}
