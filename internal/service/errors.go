package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Domain error taxonomy. Every error raised inside the orchestrator's
// transaction aborts the whole scope; the handler layer maps these to
// client-fault (400/404/409) or server-fault (500) responses.

// ValidationError covers malformed input: non-positive quantities,
// unparseable ids, payment below total.
type ValidationError struct {
	Detalle string
}

func (e *ValidationError) Error() string { return e.Detalle }

func newValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Detalle: fmt.Sprintf(format, args...)}
}

// NotFoundError signals an unknown product/lot/sale reference.
type NotFoundError struct {
	Entidad string
	Ref     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s no encontrado", e.Entidad, e.Ref)
}

// InsufficientStockError carries the shortage so callers can display it.
type InsufficientStockError struct {
	ProductoID uuid.UUID
	Solicitado int
	Disponible int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para producto %s: solicitado %d, disponible %d",
		e.ProductoID, e.Solicitado, e.Disponible)
}

// Faltante is the shortage amount (requested minus available).
func (e *InsufficientStockError) Faltante() int { return e.Solicitado - e.Disponible }

// ConsistencyError means an internal invariant broke (a lot balance would go
// negative, the cache disagrees with the lots). Always fatal: the transaction
// aborts and the error is surfaced loudly: it indicates a logic defect, not
// a bad request.
type ConsistencyError struct {
	Detalle string
}

func (e *ConsistencyError) Error() string { return "inconsistencia de inventario: " + e.Detalle }

// ErrProductoOcupado is returned when the per-product lock cannot be acquired
// within the configured bound. Retryable: resubmit the whole request.
var ErrProductoOcupado = errors.New("producto bloqueado por otra venta en curso, reintente")
