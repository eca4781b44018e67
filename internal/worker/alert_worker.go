package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"forneria/internal/dto"
	"forneria/internal/infra"

	"github.com/rs/zerolog/log"
)

// Evaluador is the subset of the alert service the worker needs; wiring the
// interface here keeps the worker package free of a service dependency.
type Evaluador interface {
	Evaluar(ctx context.Context) (*dto.EvaluacionResponse, error)
}

// AlertaWorker runs the alert sweep after every committed sale (and on the
// cron schedule). When the sweep raised new alerts it mails a digest to the
// supervisor, behind the SMTP circuit breaker so a dead mail host cannot
// stall the pool.
type AlertaWorker struct {
	evaluador Evaluador
	mailer    *infra.Mailer
	cb        *infra.CircuitBreaker
	destino   string
}

func NewAlertaWorker(evaluador Evaluador, mailer *infra.Mailer, cb *infra.CircuitBreaker, destino string) *AlertaWorker {
	return &AlertaWorker{evaluador: evaluador, mailer: mailer, cb: cb, destino: destino}
}

func (w *AlertaWorker) Process(ctx context.Context, payload json.RawMessage) error {
	var p EvaluacionPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("payload evaluar_alertas: %w", err)
		}
	}

	resumen, err := w.evaluador.Evaluar(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Str("venta_id", p.VentaID).
		Int("nuevas", resumen.NuevasAlertas).
		Int("resueltas", resumen.AlertasResueltas).
		Int("abiertas", resumen.AlertasAbiertas).
		Msg("evaluación de alertas completada")

	if resumen.NuevasAlertas == 0 || w.mailer == nil || w.destino == "" {
		return nil
	}

	// Digest email is best-effort: a mail failure never fails the job.
	cuerpo := fmt.Sprintf(
		"Se generaron %d alertas nuevas (%d abiertas en total). Revise el panel de inventario.",
		resumen.NuevasAlertas, resumen.AlertasAbiertas,
	)
	sendErr := w.cb.Execute(func() error {
		return w.mailer.Send(w.destino, "Alertas de inventario", cuerpo)
	})
	if sendErr != nil {
		log.Warn().Err(sendErr).Msg("no se pudo enviar el digest de alertas")
	}
	return nil
}
