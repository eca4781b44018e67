package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forneria/internal/dto"
	"forneria/internal/model"
	"forneria/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AsignacionLote is one slice of a FIFO allocation: how many units were
// taken from which lot.
type AsignacionLote struct {
	LoteID   uuid.UUID
	Cantidad int
}

// StockService owns the three stock-side pieces: the FIFO consumer over
// lots, the append-only kardex, and the cached per-product projection.
type StockService interface {
	// Asignar consumes cantidad units of a product across its lots in FIFO
	// order inside its own transaction. All-or-nothing: on shortage no lot
	// is touched and InsufficientStockError carries the shortage.
	Asignar(ctx context.Context, productoID uuid.UUID, cantidad int, referencia, actor string) ([]AsignacionLote, error)

	// AsignarTx is the in-transaction variant used by the sale orchestrator.
	// A non-nil ventaID stamps the salida entries with the owning sale so the
	// cancellation replay can select them by key.
	AsignarTx(tx *gorm.DB, productoID uuid.UUID, cantidad int, referencia, actor string, ventaID *uuid.UUID) ([]AsignacionLote, error)

	// RecalcularStockTx is the onLotChanged hook: recomputes the cached
	// total from the live lots and persists it when it actually changed.
	// Every code path that mutates a lot must call it before committing.
	RecalcularStockTx(tx *gorm.DB, productoID uuid.UUID) (int, error)

	// IngresarLote is the procurement intake path.
	IngresarLote(ctx context.Context, req dto.IngresoLoteRequest) (*dto.LoteResponse, error)

	// RegistrarMerma writes off units of one lot.
	RegistrarMerma(ctx context.Context, req dto.MermaRequest) error

	// ReconciliarProducto replays the ledger and compares it against the
	// lots and the cached total.
	ReconciliarProducto(ctx context.Context, productoID uuid.UUID) (*dto.ReconciliacionResponse, error)

	ListarLotes(ctx context.Context, productoID uuid.UUID) ([]dto.LoteResponse, error)
	ListarMovimientos(ctx context.Context, filter repository.MovimientoStockFilter) (*dto.MovimientoListResponse, error)
}

type stockService struct {
	productoRepo  repository.ProductoRepository
	loteRepo      repository.LoteRepository
	movRepo       repository.MovimientoStockRepository
	locks         *ProductLocks
	lockTimeout   time.Duration
	lockTimeoutMS int
}

func NewStockService(
	productoRepo repository.ProductoRepository,
	loteRepo repository.LoteRepository,
	movRepo repository.MovimientoStockRepository,
	locks *ProductLocks,
	lockTimeout time.Duration,
) StockService {
	return &stockService{
		productoRepo:  productoRepo,
		loteRepo:      loteRepo,
		movRepo:       movRepo,
		locks:         locks,
		lockTimeout:   lockTimeout,
		lockTimeoutMS: int(lockTimeout.Milliseconds()),
	}
}

// runTx executes fn inside a GORM transaction when db is available, or calls
// fn(nil) directly when db is nil (unit test mode with in-memory stubs).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// applyLockTimeout bounds row-lock waits for the current transaction so a
// competing sale fails retryable instead of hanging.
func applyLockTimeout(tx *gorm.DB, ms int) error {
	if tx == nil || ms <= 0 {
		return nil
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)).Error
}

// ── FIFO consumer ────────────────────────────────────────────────────────────

func (s *stockService) Asignar(ctx context.Context, productoID uuid.UUID, cantidad int, referencia, actor string) ([]AsignacionLote, error) {
	if cantidad <= 0 {
		return nil, newValidation("la cantidad debe ser mayor a cero")
	}
	ids := []uuid.UUID{productoID}
	if err := s.locks.Acquire(ids, s.lockTimeout); err != nil {
		return nil, err
	}
	defer s.locks.Release(ids)

	var asignaciones []AsignacionLote
	err := runTx(ctx, s.productoRepo.DB(), func(tx *gorm.DB) error {
		if err := applyLockTimeout(tx, s.lockTimeoutMS); err != nil {
			return err
		}
		var err error
		asignaciones, err = s.AsignarTx(tx, productoID, cantidad, referencia, actor, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return asignaciones, nil
}

func (s *stockService) AsignarTx(tx *gorm.DB, productoID uuid.UUID, cantidad int, referencia, actor string, ventaID *uuid.UUID) ([]AsignacionLote, error) {
	if cantidad <= 0 {
		return nil, newValidation("la cantidad debe ser mayor a cero")
	}

	lotes, err := s.loteRepo.FindDisponiblesTx(tx, productoID)
	if err != nil {
		return nil, err
	}

	// Plan first over the locked snapshot: no lot is touched until the full
	// request is known to be satisfiable.
	restante := cantidad
	disponible := 0
	plan := make([]AsignacionLote, 0, len(lotes))
	for _, lote := range lotes {
		disponible += lote.StockActual
		if restante == 0 {
			continue
		}
		toma := lote.StockActual
		if toma > restante {
			toma = restante
		}
		plan = append(plan, AsignacionLote{LoteID: lote.ID, Cantidad: toma})
		restante -= toma
	}
	if restante > 0 {
		return nil, &InsufficientStockError{
			ProductoID: productoID,
			Solicitado: cantidad,
			Disponible: disponible,
		}
	}

	// Apply: guarded decrement + one salida ledger entry per slice.
	for _, a := range plan {
		afectadas, err := s.loteRepo.DescontarTx(tx, a.LoteID, a.Cantidad)
		if err != nil {
			return nil, err
		}
		if afectadas == 0 {
			// The guard rejected a decrement computed from locked rows: a
			// logic defect, never recovered in place.
			return nil, &ConsistencyError{
				Detalle: fmt.Sprintf("lote %s quedaría en negativo al descontar %d", a.LoteID, a.Cantidad),
			}
		}
		mov := &model.MovimientoStock{
			ProductoID: productoID,
			LoteID:     a.LoteID,
			VentaID:    ventaID,
			Tipo:       model.MovimientoSalida,
			Cantidad:   -a.Cantidad,
			Referencia: referencia,
			Actor:      actor,
		}
		if err := s.movRepo.CreateTx(tx, mov); err != nil {
			return nil, err
		}
	}

	if _, err := s.RecalcularStockTx(tx, productoID); err != nil {
		return nil, err
	}
	return plan, nil
}

// ── Cached projection ────────────────────────────────────────────────────────

func (s *stockService) RecalcularStockTx(tx *gorm.DB, productoID uuid.UUID) (int, error) {
	suma, err := s.loteRepo.SumStockTx(tx, productoID)
	if err != nil {
		return 0, err
	}
	p, err := s.productoRepo.FindByIDForUpdateTx(tx, productoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &NotFoundError{Entidad: "producto", Ref: productoID.String()}
		}
		return 0, err
	}
	// Skip the write when nothing changed, to bound write amplification.
	if p.StockCacheado == suma {
		return suma, nil
	}
	if err := s.productoRepo.UpdateStockCacheTx(tx, productoID, suma); err != nil {
		return 0, err
	}
	return suma, nil
}

// ── Intake / merma ───────────────────────────────────────────────────────────

func (s *stockService) IngresarLote(ctx context.Context, req dto.IngresoLoteRequest) (*dto.LoteResponse, error) {
	productoID, err := uuid.Parse(req.ProductoID)
	if err != nil {
		return nil, newValidation("producto_id inválido: %v", err)
	}
	vencimiento, err := time.Parse("2006-01-02", req.FechaVencimiento)
	if err != nil {
		return nil, newValidation("fecha_vencimiento inválida: %v", err)
	}
	if req.Cantidad <= 0 {
		return nil, newValidation("la cantidad debe ser mayor a cero")
	}

	ids := []uuid.UUID{productoID}
	if err := s.locks.Acquire(ids, s.lockTimeout); err != nil {
		return nil, err
	}
	defer s.locks.Release(ids)

	var lote model.Lote
	txErr := runTx(ctx, s.productoRepo.DB(), func(tx *gorm.DB) error {
		if err := applyLockTimeout(tx, s.lockTimeoutMS); err != nil {
			return err
		}
		if _, err := s.productoRepo.FindByIDForUpdateTx(tx, productoID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entidad: "producto", Ref: req.ProductoID}
			}
			return err
		}

		lote = model.Lote{
			ProductoID:       productoID,
			NumeroLote:       req.NumeroLote,
			FechaVencimiento: vencimiento,
			StockActual:      req.Cantidad,
			CostoUnitario:    req.CostoUnitario,
		}
		if err := s.loteRepo.CreateTx(tx, &lote); err != nil {
			return err
		}

		referencia := req.Referencia
		if referencia == "" {
			referencia = fmt.Sprintf("Ingreso lote %s", lote.ID)
		}
		mov := &model.MovimientoStock{
			ProductoID: productoID,
			LoteID:     lote.ID,
			Tipo:       model.MovimientoEntrada,
			Cantidad:   req.Cantidad,
			Referencia: referencia,
		}
		if err := s.movRepo.CreateTx(tx, mov); err != nil {
			return err
		}

		_, err := s.RecalcularStockTx(tx, productoID)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}

	resp := loteToResponse(&lote)
	return &resp, nil
}

func (s *stockService) RegistrarMerma(ctx context.Context, req dto.MermaRequest) error {
	loteID, err := uuid.Parse(req.LoteID)
	if err != nil {
		return newValidation("lote_id inválido: %v", err)
	}
	if req.Cantidad <= 0 {
		return newValidation("la cantidad debe ser mayor a cero")
	}

	// Resolve the owning product outside the transaction to take its lock.
	lote, err := s.loteRepo.FindByID(ctx, loteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Entidad: "lote", Ref: req.LoteID}
		}
		return err
	}
	productoID := lote.ProductoID

	ids := []uuid.UUID{productoID}
	if err := s.locks.Acquire(ids, s.lockTimeout); err != nil {
		return err
	}
	defer s.locks.Release(ids)

	return runTx(ctx, s.productoRepo.DB(), func(tx *gorm.DB) error {
		if err := applyLockTimeout(tx, s.lockTimeoutMS); err != nil {
			return err
		}
		actual, err := s.loteRepo.FindByIDForUpdateTx(tx, loteID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entidad: "lote", Ref: req.LoteID}
			}
			return err
		}
		if actual.StockActual < req.Cantidad {
			return newValidation("merma de %d unidades supera el saldo %d del lote", req.Cantidad, actual.StockActual)
		}

		afectadas, err := s.loteRepo.DescontarTx(tx, loteID, req.Cantidad)
		if err != nil {
			return err
		}
		if afectadas == 0 {
			return &ConsistencyError{
				Detalle: fmt.Sprintf("lote %s quedaría en negativo al registrar merma de %d", loteID, req.Cantidad),
			}
		}

		mov := &model.MovimientoStock{
			ProductoID: productoID,
			LoteID:     loteID,
			Tipo:       model.MovimientoMerma,
			Cantidad:   -req.Cantidad,
			Referencia: req.Motivo,
		}
		if err := s.movRepo.CreateTx(tx, mov); err != nil {
			return err
		}

		_, err = s.RecalcularStockTx(tx, productoID)
		return err
	})
}

// ── Reconciliation / reads ───────────────────────────────────────────────────

func (s *stockService) ReconciliarProducto(ctx context.Context, productoID uuid.UUID) (*dto.ReconciliacionResponse, error) {
	p, err := s.productoRepo.FindByID(ctx, productoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "producto", Ref: productoID.String()}
		}
		return nil, err
	}
	sumaLotes, err := s.loteRepo.SumStockTx(s.productoRepo.DB(), productoID)
	if err != nil {
		return nil, err
	}
	sumaLedger, err := s.movRepo.SumByProducto(ctx, productoID)
	if err != nil {
		return nil, err
	}

	resp := &dto.ReconciliacionResponse{
		ProductoID:    productoID.String(),
		StockCacheado: p.StockCacheado,
		SumaLotes:     sumaLotes,
		SumaLedger:    sumaLedger,
		Consistente:   p.StockCacheado == sumaLotes && sumaLotes == sumaLedger,
	}
	if !resp.Consistente {
		log.Error().
			Str("producto_id", productoID.String()).
			Int("stock_cacheado", p.StockCacheado).
			Int("suma_lotes", sumaLotes).
			Int("suma_ledger", sumaLedger).
			Msg("reconciliación inconsistente")
	}
	return resp, nil
}

func (s *stockService) ListarLotes(ctx context.Context, productoID uuid.UUID) ([]dto.LoteResponse, error) {
	lotes, err := s.loteRepo.ListByProducto(ctx, productoID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LoteResponse, 0, len(lotes))
	for i := range lotes {
		out = append(out, loteToResponse(&lotes[i]))
	}
	return out, nil
}

func (s *stockService) ListarMovimientos(ctx context.Context, filter repository.MovimientoStockFilter) (*dto.MovimientoListResponse, error) {
	movimientos, total, err := s.movRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.MovimientoResponse, 0, len(movimientos))
	for _, m := range movimientos {
		items = append(items, dto.MovimientoResponse{
			ID:         m.ID.String(),
			ProductoID: m.ProductoID.String(),
			LoteID:     m.LoteID.String(),
			Tipo:       m.Tipo,
			Cantidad:   m.Cantidad,
			Referencia: m.Referencia,
			Actor:      m.Actor,
			CreatedAt:  m.CreatedAt.Format(time.RFC3339),
		})
	}
	return &dto.MovimientoListResponse{
		Data:  items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func loteToResponse(l *model.Lote) dto.LoteResponse {
	return dto.LoteResponse{
		ID:               l.ID.String(),
		ProductoID:       l.ProductoID.String(),
		NumeroLote:       l.NumeroLote,
		FechaVencimiento: l.FechaVencimiento.Format("2006-01-02"),
		StockActual:      l.StockActual,
		CostoUnitario:    l.CostoUnitario,
		DiasParaVencer:   l.DiasParaVencer(time.Now()),
	}
}
