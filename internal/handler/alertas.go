package handler

import (
	"net/http"

	"forneria/internal/apierror"
	"forneria/internal/service"

	"github.com/gin-gonic/gin"
)

type AlertasHandler struct{ svc service.AlertaService }

func NewAlertasHandler(svc service.AlertaService) *AlertasHandler {
	return &AlertasHandler{svc: svc}
}

// Listar returns unresolved alerts, optionally filtered by tipo.
func (h *AlertasHandler) Listar(c *gin.Context) {
	tipo := c.Query("tipo")
	resp, err := h.svc.ListarAbiertas(c.Request.Context(), tipo)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Evaluar runs one evaluator sweep synchronously. The worker runs the same
// sweep after every sale; this endpoint exists for operators and tests.
func (h *AlertasHandler) Evaluar(c *gin.Context) {
	resp, err := h.svc.Evaluar(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al evaluar alertas"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
