package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forneria/internal/dto"
	"forneria/internal/model"
	"forneria/internal/repository"
	"forneria/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type VentaService interface {
	// ProcesarVenta settles one sale atomically: locks the products, walks
	// their lots FIFO, writes the kardex, refreshes the cached stock,
	// captures prices into lines, records the payment and commits. Any
	// failure rolls back the whole scope.
	ProcesarVenta(ctx context.Context, req dto.ProcesarVentaRequest) (*dto.VentaResponse, error)

	// CambiarEstado applies the sale state machine. Cancelling a sale
	// replays its salida movements back into the source lots.
	CambiarEstado(ctx context.Context, id uuid.UUID, nuevoEstado string) error

	FindVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error)
	ListVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error)
}

type ventaService struct {
	repo          repository.VentaRepository
	productoRepo  repository.ProductoRepository
	loteRepo      repository.LoteRepository
	movRepo       repository.MovimientoStockRepository
	stock         StockService
	locks         *ProductLocks
	dispatcher    *worker.Dispatcher
	tasaIVA       decimal.Decimal
	lockTimeout   time.Duration
	lockTimeoutMS int
}

func NewVentaService(
	repo repository.VentaRepository,
	productoRepo repository.ProductoRepository,
	loteRepo repository.LoteRepository,
	movRepo repository.MovimientoStockRepository,
	stock StockService,
	locks *ProductLocks,
	dispatcher *worker.Dispatcher,
	tasaIVA decimal.Decimal,
	lockTimeout time.Duration,
) VentaService {
	return &ventaService{
		repo:          repo,
		productoRepo:  productoRepo,
		loteRepo:      loteRepo,
		movRepo:       movRepo,
		stock:         stock,
		locks:         locks,
		dispatcher:    dispatcher,
		tasaIVA:       tasaIVA,
		lockTimeout:   lockTimeout,
		lockTimeoutMS: int(lockTimeout.Milliseconds()),
	}
}

// Valid estado transitions. Cancelada is reachable from every non-terminal
// state; entregada and cancelada are terminal.
var transicionesVenta = map[string][]string{
	model.VentaPendiente: {model.VentaPagada, model.VentaCancelada},
	model.VentaPagada:    {model.VentaEnCamino, model.VentaCancelada},
	model.VentaEnCamino:  {model.VentaEntregada, model.VentaCancelada},
}

func transicionValida(desde, hacia string) bool {
	for _, permitido := range transicionesVenta[desde] {
		if permitido == hacia {
			return true
		}
	}
	return false
}

// ── ProcesarVenta ─────────────────────────────────────────────────────────────
// One atomic scope:
//   1. per-product locks (in-process keyed mutex + row FOR UPDATE)
//   2. fast-reject on the cached total before walking lots
//   3. FIFO allocation → guarded lot decrements → salida kardex entries
//   4. cache recompute inside the same transaction
//   5. lines at captured price, neto = Σ(subtotales) − descuentos,
//      iva = neto × tasa, total = neto + iva
//   6. payment row, folio from the DB sequence, commit
//   7. async alert evaluation job, fire and forget

func (s *ventaService) ProcesarVenta(ctx context.Context, req dto.ProcesarVentaRequest) (*dto.VentaResponse, error) {
	if len(req.Items) == 0 {
		return nil, newValidation("la venta no tiene items")
	}

	type itemResuelto struct {
		productoID uuid.UUID
		cantidad   int
		descuento  decimal.Decimal
	}
	resueltos := make([]itemResuelto, 0, len(req.Items))
	productoIDs := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		pid, err := uuid.Parse(item.ProductoID)
		if err != nil {
			return nil, newValidation("producto_id inválido: %v", err)
		}
		if item.Cantidad <= 0 {
			return nil, newValidation("la cantidad debe ser mayor a cero")
		}
		if item.Descuento.IsNegative() {
			return nil, newValidation("el descuento no puede ser negativo")
		}
		resueltos = append(resueltos, itemResuelto{
			productoID: pid,
			cantidad:   item.Cantidad,
			descuento:  item.Descuento,
		})
		productoIDs = append(productoIDs, pid)
	}

	canal := req.CanalVenta
	if canal == "" {
		canal = "presencial"
	}

	if err := s.locks.Acquire(productoIDs, s.lockTimeout); err != nil {
		return nil, err
	}
	defer s.locks.Release(productoIDs)

	var venta model.Venta
	nombres := make(map[uuid.UUID]string, len(resueltos))

	// The sale id is assigned up front so the salida entries can carry it;
	// the cancellation replay selects by that link.
	ventaID := uuid.New()

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := applyLockTimeout(tx, s.lockTimeoutMS); err != nil {
			return err
		}

		folioNum, err := s.repo.NextFolioNumber(tx)
		if err != nil {
			return err
		}
		folio := fmt.Sprintf("V%06d", folioNum)
		referencia := fmt.Sprintf("Venta %s", folio)

		neto := decimal.Zero
		descuentoTotal := decimal.Zero
		detalles := make([]model.DetalleVenta, 0, len(resueltos))

		for _, item := range resueltos {
			p, err := s.productoRepo.FindByIDForUpdateTx(tx, item.productoID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &NotFoundError{Entidad: "producto", Ref: item.productoID.String()}
				}
				return err
			}
			if !p.Activo {
				return newValidation("producto %s está inactivo y no puede venderse", p.Nombre)
			}

			// Fast-reject on the cached total before walking lots.
			if p.StockCacheado < item.cantidad {
				return &InsufficientStockError{
					ProductoID: p.ID,
					Solicitado: item.cantidad,
					Disponible: p.StockCacheado,
				}
			}

			if _, err := s.stock.AsignarTx(tx, p.ID, item.cantidad, referencia, "pos", &ventaID); err != nil {
				return err
			}

			// Capture price now: the line never re-reads the live price.
			bruto := p.PrecioVenta.Mul(decimal.NewFromInt(int64(item.cantidad)))
			subtotal := bruto.Sub(item.descuento)
			if subtotal.IsNegative() {
				return newValidation("el descuento supera el subtotal de %s", p.Nombre)
			}
			neto = neto.Add(subtotal)
			descuentoTotal = descuentoTotal.Add(item.descuento)
			nombres[p.ID] = p.Nombre

			detalles = append(detalles, model.DetalleVenta{
				ProductoID:     p.ID,
				Cantidad:       item.cantidad,
				PrecioUnitario: p.PrecioVenta,
				Descuento:      item.descuento,
				Subtotal:       subtotal,
			})
		}

		neto = neto.Round(2)
		iva := neto.Mul(s.tasaIVA).Round(2)
		total := neto.Add(iva)

		if req.Pago.Monto.LessThan(total) {
			return newValidation("el monto pagado %s es menor al total %s", req.Pago.Monto, total)
		}

		venta = model.Venta{
			ID:         ventaID,
			Folio:      folio,
			ClienteRef: req.ClienteRef,
			CanalVenta: canal,
			Neto:       neto,
			IVA:        iva,
			Descuento:  descuentoTotal.Round(2),
			Total:      total,
			Estado:     model.VentaPagada,
			Detalles:   detalles,
			Pagos: []model.Pago{{
				Monto:             req.Pago.Monto,
				Metodo:            req.Pago.Metodo,
				ReferenciaExterna: req.Pago.Referencia,
			}},
		}
		return s.repo.CreateTx(tx, &venta)
	})
	if txErr != nil {
		return nil, txErr
	}

	// Async alert evaluation, best-effort, outside the committed scope.
	if s.dispatcher != nil {
		ids := make([]string, 0, len(productoIDs))
		for _, id := range productoIDs {
			ids = append(ids, id.String())
		}
		_ = s.dispatcher.EnqueueEvaluacion(ctx, worker.EvaluacionPayload{
			VentaID:     venta.ID.String(),
			ProductoIDs: ids,
		})
	}

	resp := s.ventaToResponse(&venta, nombres)
	resp.Vuelto = req.Pago.Monto.Sub(venta.Total)
	return resp, nil
}

// ── CambiarEstado ─────────────────────────────────────────────────────────────

func (s *ventaService) CambiarEstado(ctx context.Context, id uuid.UUID, nuevoEstado string) error {
	venta, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Entidad: "venta", Ref: id.String()}
		}
		return err
	}
	if !transicionValida(venta.Estado, nuevoEstado) {
		return newValidation("transición de estado inválida: %s → %s", venta.Estado, nuevoEstado)
	}
	if nuevoEstado == model.VentaCancelada {
		return s.cancelar(ctx, venta)
	}
	return runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		afectadas, err := s.repo.UpdateEstadoTx(tx, id, venta.Estado, nuevoEstado)
		if err != nil {
			return err
		}
		if afectadas == 0 {
			// A concurrent transition moved the sale after our read.
			return newValidation("la venta %s ya no está en estado %s", venta.Folio, venta.Estado)
		}
		return nil
	})
}

// cancelar restores the consumed stock by replaying the sale's salida
// movements as entradas into their source lots, then recomputes the cache.
func (s *ventaService) cancelar(ctx context.Context, venta *model.Venta) error {
	productoIDs := make([]uuid.UUID, 0, len(venta.Detalles))
	for _, d := range venta.Detalles {
		productoIDs = append(productoIDs, d.ProductoID)
	}
	if err := s.locks.Acquire(productoIDs, s.lockTimeout); err != nil {
		return err
	}
	defer s.locks.Release(productoIDs)

	// Selected by the venta link, never by the display reference: a caller
	// reference that happens to read "Venta V000001" stays out of the replay.
	salidas, err := s.movRepo.ListByVenta(ctx, venta.ID, model.MovimientoSalida)
	if err != nil {
		return err
	}

	return runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := applyLockTimeout(tx, s.lockTimeoutMS); err != nil {
			return err
		}
		// Claim the estado first: if a concurrent transition already moved
		// the sale, nothing gets restored.
		afectadas, err := s.repo.UpdateEstadoTx(tx, venta.ID, venta.Estado, model.VentaCancelada)
		if err != nil {
			return err
		}
		if afectadas == 0 {
			return newValidation("la venta %s ya no está en estado %s", venta.Folio, venta.Estado)
		}
		tocados := make(map[uuid.UUID]struct{})
		for _, salida := range salidas {
			devuelto := -salida.Cantidad
			if devuelto <= 0 {
				return &ConsistencyError{
					Detalle: fmt.Sprintf("movimiento de salida %s con cantidad no negativa", salida.ID),
				}
			}
			if err := s.loteRepo.ReponerTx(tx, salida.LoteID, devuelto); err != nil {
				return err
			}
			ventaID := venta.ID
			mov := &model.MovimientoStock{
				ProductoID: salida.ProductoID,
				LoteID:     salida.LoteID,
				VentaID:    &ventaID,
				Tipo:       model.MovimientoEntrada,
				Cantidad:   devuelto,
				Referencia: fmt.Sprintf("Cancelación venta %s", venta.Folio),
			}
			if err := s.movRepo.CreateTx(tx, mov); err != nil {
				return err
			}
			tocados[salida.ProductoID] = struct{}{}
		}
		for productoID := range tocados {
			if _, err := s.stock.RecalcularStockTx(tx, productoID); err != nil {
				return err
			}
		}
		return nil
	})
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *ventaService) FindVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error) {
	venta, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "venta", Ref: id.String()}
		}
		return nil, err
	}
	return s.ventaToResponse(venta, nil), nil
}

func (s *ventaService) ListVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	ventas, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.VentaResponse, 0, len(ventas))
	for i := range ventas {
		items = append(items, *s.ventaToResponse(&ventas[i], nil))
	}
	return &dto.VentaListResponse{
		Data:  items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (s *ventaService) ventaToResponse(v *model.Venta, nombres map[uuid.UUID]string) *dto.VentaResponse {
	items := make([]dto.DetalleVentaResponse, 0, len(v.Detalles))
	for _, d := range v.Detalles {
		nombre := nombres[d.ProductoID]
		if nombre == "" && d.Producto != nil {
			nombre = d.Producto.Nombre
		}
		items = append(items, dto.DetalleVentaResponse{
			ProductoID:     d.ProductoID.String(),
			Producto:       nombre,
			Cantidad:       d.Cantidad,
			PrecioUnitario: d.PrecioUnitario,
			Descuento:      d.Descuento,
			Subtotal:       d.Subtotal,
		})
	}
	return &dto.VentaResponse{
		ID:         v.ID.String(),
		Folio:      v.Folio,
		ClienteRef: v.ClienteRef,
		CanalVenta: v.CanalVenta,
		Items:      items,
		Neto:       v.Neto,
		IVA:        v.IVA,
		Descuento:  v.Descuento,
		Total:      v.Total,
		Vuelto:     decimal.Zero,
		Estado:     v.Estado,
		CreatedAt:  v.CreatedAt.Format(time.RFC3339),
	}
}
