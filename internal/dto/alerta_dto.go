package dto

type AlertaResponse struct {
	ID         string  `json:"id"`
	Tipo       string  `json:"tipo"`
	ProductoID *string `json:"producto_id,omitempty"`
	LoteID     *string `json:"lote_id,omitempty"`
	Mensaje    string  `json:"mensaje"`
	Resuelto   bool    `json:"resuelto"`
	CreatedAt  string  `json:"created_at"`
}

// EvaluacionResponse summarizes one evaluator sweep.
type EvaluacionResponse struct {
	NuevasAlertas    int `json:"nuevas_alertas"`
	AlertasResueltas int `json:"alertas_resueltas"`
	AlertasAbiertas  int `json:"alertas_abiertas"`
}
