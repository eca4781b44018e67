package handler

import (
	"net/http"

	"forneria/internal/apierror"
	"forneria/internal/dto"
	"forneria/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VentasHandler struct{ svc service.VentaService }

func NewVentasHandler(svc service.VentaService) *VentasHandler { return &VentasHandler{svc: svc} }

// ProcesarVenta godoc
// @Summary      Procesar una venta
// @Description  Liquida una venta ACID: asigna lotes FIFO, escribe el kardex, refresca el stock cacheado y registra el pago.
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Param        body body dto.ProcesarVentaRequest true "Detalle de la venta"
// @Success      201  {object} dto.VentaResponse
// @Failure      400  {object} apierror.APIError
// @Failure      409  {object} apierror.StockError
// @Router       /v1/ventas [post]
func (h *VentasHandler) ProcesarVenta(c *gin.Context) {
	var req dto.ProcesarVentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ProcesarVenta(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CambiarEstado godoc
// @Summary      Cambiar estado de una venta
// @Description  Aplica la máquina de estados. Cancelar una venta repone el stock a los lotes de origen.
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Param        id   path string                   true "UUID de la venta"
// @Param        body body dto.CambiarEstadoRequest true "Nuevo estado"
// @Success      204
// @Failure      400  {object} apierror.APIError
// @Router       /v1/ventas/{id}/estado [patch]
func (h *VentasHandler) CambiarEstado(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	var req dto.CambiarEstadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.CambiarEstado(c.Request.Context(), id, req.Estado); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ObtenerVenta returns one sale with its lines and payments.
func (h *VentasHandler) ObtenerVenta(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	resp, err := h.svc.FindVenta(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarVentas returns a paginated, filtered list of sales.
func (h *VentasHandler) ListarVentas(c *gin.Context) {
	var filter dto.VentaFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	resp, err := h.svc.ListVentas(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
