package handler

import (
	"net/http"

	"forneria/internal/apierror"
	"forneria/internal/dto"
	"forneria/internal/repository"
	"forneria/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InventarioHandler struct{ svc service.StockService }

func NewInventarioHandler(svc service.StockService) *InventarioHandler {
	return &InventarioHandler{svc: svc}
}

// IngresarLote godoc
// @Summary      Ingresar un lote
// @Description  Registra la recepción de mercadería: crea el lote, escribe el movimiento de entrada y refresca el stock cacheado.
// @Tags         inventario
// @Accept       json
// @Produce      json
// @Param        body body dto.IngresoLoteRequest true "Lote recibido"
// @Success      201  {object} dto.LoteResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/inventario/lotes [post]
func (h *InventarioHandler) IngresarLote(c *gin.Context) {
	var req dto.IngresoLoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.IngresarLote(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RegistrarMerma writes off units of one lot (expired, damaged).
func (h *InventarioHandler) RegistrarMerma(c *gin.Context) {
	var req dto.MermaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.RegistrarMerma(c.Request.Context(), req); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Asignar consumes units FIFO without creating a sale. Used by internal
// consumption flows (kitchen, tastings).
func (h *InventarioHandler) Asignar(c *gin.Context) {
	var req dto.AsignarRequest
	if !bindAndValidate(c, &req) {
		return
	}
	productoID, err := uuid.Parse(req.ProductoID)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("producto_id invalido"))
		return
	}
	asignaciones, err := h.svc.Asignar(c.Request.Context(), productoID, req.Cantidad, req.Referencia, "api")
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.AsignacionResponse, 0, len(asignaciones))
	for _, a := range asignaciones {
		out = append(out, dto.AsignacionResponse{LoteID: a.LoteID.String(), Cantidad: a.Cantidad})
	}
	c.JSON(http.StatusOK, out)
}

type movimientosQuery struct {
	ProductoID string `form:"producto_id"`
	LoteID     string `form:"lote_id"`
	Tipo       string `form:"tipo"`
	Referencia string `form:"referencia"`
	Page       int    `form:"page,default=1"`
	Limit      int    `form:"limit,default=100"`
}

// ListarMovimientos returns the kardex, newest first.
func (h *InventarioHandler) ListarMovimientos(c *gin.Context) {
	var q movimientosQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	filter := repository.MovimientoStockFilter{
		Tipo:       q.Tipo,
		Referencia: q.Referencia,
		Page:       q.Page,
		Limit:      q.Limit,
	}
	if q.ProductoID != "" {
		id, err := uuid.Parse(q.ProductoID)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("producto_id invalido"))
			return
		}
		filter.ProductoID = &id
	}
	if q.LoteID != "" {
		id, err := uuid.Parse(q.LoteID)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("lote_id invalido"))
			return
		}
		filter.LoteID = &id
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarLotes returns the live lots of one product in FIFO order.
func (h *InventarioHandler) ListarLotes(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	resp, err := h.svc.ListarLotes(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reconciliar replays the ledger of one product and compares it against the
// lots and the cached total.
func (h *InventarioHandler) Reconciliar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	resp, err := h.svc.ReconciliarProducto(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
