package service

import (
	"context"
	"fmt"
	"time"

	"forneria/internal/dto"
	"forneria/internal/model"
	"forneria/internal/repository"

	"github.com/google/uuid"
)

// AlertaService derives low-stock and near-expiry signals from current
// state. Evaluation is idempotent by (tipo, target): running it twice with
// no intervening state change creates nothing and resolves nothing, so it is
// safe to invoke on demand, after every sale, and on a periodic schedule.
type AlertaService interface {
	Evaluar(ctx context.Context) (*dto.EvaluacionResponse, error)
	ListarAbiertas(ctx context.Context, tipo string) ([]dto.AlertaResponse, error)
}

type alertaService struct {
	productoRepo  repository.ProductoRepository
	loteRepo      repository.LoteRepository
	alertaRepo    repository.AlertaRepository
	horizonteDias int
}

func NewAlertaService(
	productoRepo repository.ProductoRepository,
	loteRepo repository.LoteRepository,
	alertaRepo repository.AlertaRepository,
	horizonteDias int,
) AlertaService {
	if horizonteDias <= 0 {
		horizonteDias = 7
	}
	return &alertaService{
		productoRepo:  productoRepo,
		loteRepo:      loteRepo,
		alertaRepo:    alertaRepo,
		horizonteDias: horizonteDias,
	}
}

func (s *alertaService) Evaluar(ctx context.Context) (*dto.EvaluacionResponse, error) {
	resumen := &dto.EvaluacionResponse{}

	if err := s.evaluarStockBajo(ctx, resumen); err != nil {
		return nil, err
	}
	if err := s.evaluarVencimientos(ctx, resumen); err != nil {
		return nil, err
	}

	abiertas, err := s.alertaRepo.ListAbiertas(ctx, "")
	if err != nil {
		return nil, err
	}
	resumen.AlertasAbiertas = len(abiertas)
	return resumen, nil
}

func (s *alertaService) evaluarStockBajo(ctx context.Context, resumen *dto.EvaluacionResponse) error {
	productos, err := s.productoRepo.ListActivos(ctx)
	if err != nil {
		return err
	}
	activos := make(map[uuid.UUID]struct{}, len(productos))
	for i := range productos {
		p := &productos[i]
		activos[p.ID] = struct{}{}
		abierta, err := s.alertaRepo.FindAbierta(ctx, model.AlertaStockBajo, &p.ID, nil)
		if err != nil {
			return err
		}
		enFalta := p.StockCacheado <= p.StockMinimo
		switch {
		case enFalta && abierta == nil:
			pid := p.ID
			nueva := &model.Alerta{
				Tipo:       model.AlertaStockBajo,
				ProductoID: &pid,
				Mensaje:    fmt.Sprintf("Stock bajo: %s (%d ≤ mínimo %d)", p.Nombre, p.StockCacheado, p.StockMinimo),
			}
			if err := s.alertaRepo.Create(ctx, nueva); err != nil {
				return err
			}
			resumen.NuevasAlertas++
		case !enFalta && abierta != nil:
			if err := s.alertaRepo.Resolver(ctx, abierta.ID); err != nil {
				return err
			}
			resumen.AlertasResueltas++
		}
	}

	// Resolve low-stock alerts whose product was deactivated after they were
	// raised; an inactive product never re-enters the sweep above.
	abiertas, err := s.alertaRepo.ListAbiertas(ctx, model.AlertaStockBajo)
	if err != nil {
		return err
	}
	for _, a := range abiertas {
		if a.ProductoID == nil {
			continue
		}
		if _, activo := activos[*a.ProductoID]; activo {
			continue
		}
		if err := s.alertaRepo.Resolver(ctx, a.ID); err != nil {
			return err
		}
		resumen.AlertasResueltas++
	}
	return nil
}

func (s *alertaService) evaluarVencimientos(ctx context.Context, resumen *dto.EvaluacionResponse) error {
	ahora := time.Now()
	corte := ahora.AddDate(0, 0, s.horizonteDias)

	porVencer, err := s.loteRepo.ListPorVencer(ctx, corte)
	if err != nil {
		return err
	}
	enRiesgo := make(map[uuid.UUID]struct{}, len(porVencer))
	for i := range porVencer {
		lote := &porVencer[i]
		enRiesgo[lote.ID] = struct{}{}
		abierta, err := s.alertaRepo.FindAbierta(ctx, model.AlertaVencimiento, nil, &lote.ID)
		if err != nil {
			return err
		}
		if abierta != nil {
			continue
		}
		lid := lote.ID
		pid := lote.ProductoID
		dias := lote.DiasParaVencer(ahora)
		mensaje := fmt.Sprintf("Lote %s vence en %d días (%d unidades)", lid, dias, lote.StockActual)
		if dias < 0 {
			mensaje = fmt.Sprintf("Lote %s vencido hace %d días (%d unidades)", lid, -dias, lote.StockActual)
		}
		nueva := &model.Alerta{
			Tipo:       model.AlertaVencimiento,
			ProductoID: &pid,
			LoteID:     &lid,
			Mensaje:    mensaje,
		}
		if err := s.alertaRepo.Create(ctx, nueva); err != nil {
			return err
		}
		resumen.NuevasAlertas++
	}

	// Resolve expiry alerts whose lot no longer breaches: consumed to zero,
	// written off, or outside the horizon after a data correction.
	abiertas, err := s.alertaRepo.ListAbiertas(ctx, model.AlertaVencimiento)
	if err != nil {
		return err
	}
	for _, a := range abiertas {
		if a.LoteID == nil {
			continue
		}
		if _, sigue := enRiesgo[*a.LoteID]; sigue {
			continue
		}
		if err := s.alertaRepo.Resolver(ctx, a.ID); err != nil {
			return err
		}
		resumen.AlertasResueltas++
	}
	return nil
}

func (s *alertaService) ListarAbiertas(ctx context.Context, tipo string) ([]dto.AlertaResponse, error) {
	alertas, err := s.alertaRepo.ListAbiertas(ctx, tipo)
	if err != nil {
		return nil, err
	}
	out := make([]dto.AlertaResponse, 0, len(alertas))
	for _, a := range alertas {
		resp := dto.AlertaResponse{
			ID:        a.ID.String(),
			Tipo:      a.Tipo,
			Mensaje:   a.Mensaje,
			Resuelto:  a.Resuelto,
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		}
		if a.ProductoID != nil {
			pid := a.ProductoID.String()
			resp.ProductoID = &pid
		}
		if a.LoteID != nil {
			lid := a.LoteID.String()
			resp.LoteID = &lid
		}
		out = append(out, resp)
	}
	return out, nil
}
