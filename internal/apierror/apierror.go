// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}

// Stock carries the shortage breakdown for 409 responses when a sale
// requests more units than the available lots can cover.
type StockError struct {
	Detail     string `json:"detail"`
	Solicitado int    `json:"solicitado"`
	Disponible int    `json:"disponible"`
	Faltante   int    `json:"faltante"`
}

func NewStock(detail string, solicitado, disponible int) *StockError {
	return &StockError{
		Detail:     detail,
		Solicitado: solicitado,
		Disponible: disponible,
		Faltante:   solicitado - disponible,
	}
}
