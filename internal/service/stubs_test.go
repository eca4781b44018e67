package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"forneria/internal/dto"
	"forneria/internal/model"
	"forneria/internal/repository"
	"forneria/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// In-memory repository stubs. The services run their transaction callback
// with a nil *gorm.DB in this mode, so every method ignores the tx handle.
// Lookups fail with gorm.ErrRecordNotFound so the services' error mapping
// behaves exactly as it does against Postgres.

// ── ProductoRepository ───────────────────────────────────────────────────────

type stubProductoRepo struct {
	mu        sync.Mutex
	productos map[uuid.UUID]*model.Producto
}

func newStubProductoRepo() *stubProductoRepo {
	return &stubProductoRepo{productos: make(map[uuid.UUID]*model.Producto)}
}

func (r *stubProductoRepo) Create(_ context.Context, p *model.Producto) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.productos[p.ID] = p
	return nil
}

func (r *stubProductoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Producto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.productos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copia := *p
	return &copia, nil
}

func (r *stubProductoRepo) FindByBarcode(_ context.Context, barcode string) (*model.Producto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.productos {
		if p.CodigoBarras != nil && *p.CodigoBarras == barcode {
			copia := *p
			return &copia, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubProductoRepo) List(_ context.Context, _ dto.ProductoFilter) ([]model.Producto, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Producto
	for _, p := range r.productos {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *stubProductoRepo) ListActivos(_ context.Context) ([]model.Producto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Producto
	for _, p := range r.productos {
		if p.Activo {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubProductoRepo) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Producto, error) {
	return r.FindByID(context.Background(), id)
}

func (r *stubProductoRepo) UpdateStockCacheTx(_ *gorm.DB, id uuid.UUID, nuevo int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.productos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.StockCacheado = nuevo
	return nil
}

func (r *stubProductoRepo) DB() *gorm.DB { return nil }

var _ repository.ProductoRepository = (*stubProductoRepo)(nil)

// ── LoteRepository ───────────────────────────────────────────────────────────

type stubLoteRepo struct {
	mu    sync.Mutex
	lotes map[uuid.UUID]*model.Lote
}

func newStubLoteRepo() *stubLoteRepo {
	return &stubLoteRepo{lotes: make(map[uuid.UUID]*model.Lote)}
}

func (r *stubLoteRepo) CreateTx(_ *gorm.DB, l *model.Lote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	r.lotes[l.ID] = l
	return nil
}

func (r *stubLoteRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Lote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lotes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copia := *l
	return &copia, nil
}

func (r *stubLoteRepo) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Lote, error) {
	return r.FindByID(context.Background(), id)
}

// ordenFIFO mirrors ORDER BY fecha_vencimiento ASC, created_at ASC, id ASC.
func ordenFIFO(lotes []model.Lote) {
	sort.Slice(lotes, func(i, j int) bool {
		if !lotes[i].FechaVencimiento.Equal(lotes[j].FechaVencimiento) {
			return lotes[i].FechaVencimiento.Before(lotes[j].FechaVencimiento)
		}
		if !lotes[i].CreatedAt.Equal(lotes[j].CreatedAt) {
			return lotes[i].CreatedAt.Before(lotes[j].CreatedAt)
		}
		return strings.Compare(lotes[i].ID.String(), lotes[j].ID.String()) < 0
	})
}

func (r *stubLoteRepo) FindDisponiblesTx(_ *gorm.DB, productoID uuid.UUID) ([]model.Lote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Lote
	for _, l := range r.lotes {
		if l.ProductoID == productoID && l.StockActual > 0 && l.EliminadoAt == nil {
			out = append(out, *l)
		}
	}
	ordenFIFO(out)
	return out, nil
}

func (r *stubLoteRepo) DescontarTx(_ *gorm.DB, loteID uuid.UUID, cantidad int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lotes[loteID]
	if !ok || l.StockActual < cantidad {
		return 0, nil // guard rejected
	}
	l.StockActual -= cantidad
	return 1, nil
}

func (r *stubLoteRepo) ReponerTx(_ *gorm.DB, loteID uuid.UUID, cantidad int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lotes[loteID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.StockActual += cantidad
	return nil
}

func (r *stubLoteRepo) SumStockTx(_ *gorm.DB, productoID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	suma := 0
	for _, l := range r.lotes {
		if l.ProductoID == productoID && l.EliminadoAt == nil {
			suma += l.StockActual
		}
	}
	return suma, nil
}

func (r *stubLoteRepo) ListByProducto(_ context.Context, productoID uuid.UUID) ([]model.Lote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Lote
	for _, l := range r.lotes {
		if l.ProductoID == productoID && l.EliminadoAt == nil {
			out = append(out, *l)
		}
	}
	ordenFIFO(out)
	return out, nil
}

func (r *stubLoteRepo) ListPorVencer(_ context.Context, hasta time.Time) ([]model.Lote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Lote
	for _, l := range r.lotes {
		if l.StockActual > 0 && l.EliminadoAt == nil && !l.FechaVencimiento.After(hasta) {
			out = append(out, *l)
		}
	}
	ordenFIFO(out)
	return out, nil
}

var _ repository.LoteRepository = (*stubLoteRepo)(nil)

// ── MovimientoStockRepository ────────────────────────────────────────────────

type stubMovimientoRepo struct {
	mu          sync.Mutex
	movimientos []model.MovimientoStock
}

func newStubMovimientoRepo() *stubMovimientoRepo { return &stubMovimientoRepo{} }

func (r *stubMovimientoRepo) CreateTx(_ *gorm.DB, m *model.MovimientoStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.movimientos = append(r.movimientos, *m)
	return nil
}

func (r *stubMovimientoRepo) List(_ context.Context, filter repository.MovimientoStockFilter) ([]model.MovimientoStock, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.MovimientoStock
	for _, m := range r.movimientos {
		if filter.ProductoID != nil && m.ProductoID != *filter.ProductoID {
			continue
		}
		if filter.LoteID != nil && m.LoteID != *filter.LoteID {
			continue
		}
		if filter.Tipo != "" && m.Tipo != filter.Tipo {
			continue
		}
		if filter.Referencia != "" && m.Referencia != filter.Referencia {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

func (r *stubMovimientoRepo) ListByVenta(_ context.Context, ventaID uuid.UUID, tipo string) ([]model.MovimientoStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.MovimientoStock
	for _, m := range r.movimientos {
		if m.VentaID == nil || *m.VentaID != ventaID || m.Tipo != tipo {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *stubMovimientoRepo) SumByProducto(_ context.Context, productoID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	suma := 0
	for _, m := range r.movimientos {
		if m.ProductoID == productoID {
			suma += m.Cantidad
		}
	}
	return suma, nil
}

var _ repository.MovimientoStockRepository = (*stubMovimientoRepo)(nil)

// ── VentaRepository ──────────────────────────────────────────────────────────

type stubVentaRepo struct {
	mu       sync.Mutex
	ventas   map[uuid.UUID]*model.Venta
	folioSeq int64

	// afterFind, when set, runs once FindByID has released the lock. Tests
	// use it to slip a concurrent transition between a read and its write.
	afterFind func()
}

func newStubVentaRepo() *stubVentaRepo {
	return &stubVentaRepo{ventas: make(map[uuid.UUID]*model.Venta)}
}

func (r *stubVentaRepo) CreateTx(_ *gorm.DB, v *model.Venta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	for i := range v.Detalles {
		if v.Detalles[i].ID == uuid.Nil {
			v.Detalles[i].ID = uuid.New()
		}
		v.Detalles[i].VentaID = v.ID
	}
	for i := range v.Pagos {
		if v.Pagos[i].ID == uuid.Nil {
			v.Pagos[i].ID = uuid.New()
		}
		v.Pagos[i].VentaID = v.ID
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	r.ventas[v.ID] = v
	return nil
}

func (r *stubVentaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Venta, error) {
	r.mu.Lock()
	v, ok := r.ventas[id]
	if !ok {
		r.mu.Unlock()
		return nil, gorm.ErrRecordNotFound
	}
	copia := *v
	r.mu.Unlock()
	if r.afterFind != nil {
		r.afterFind()
	}
	return &copia, nil
}

func (r *stubVentaRepo) UpdateEstadoTx(_ *gorm.DB, id uuid.UUID, desde, hacia string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.ventas[id]
	if !ok || v.Estado != desde {
		return 0, nil // the guard rejected: the sale moved concurrently
	}
	v.Estado = hacia
	return 1, nil
}

func (r *stubVentaRepo) List(_ context.Context, filter dto.VentaFilter) ([]model.Venta, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Venta
	for _, v := range r.ventas {
		if filter.Estado != "" && filter.Estado != "all" && v.Estado != filter.Estado {
			continue
		}
		out = append(out, *v)
	}
	return out, int64(len(out)), nil
}

func (r *stubVentaRepo) NextFolioNumber(_ *gorm.DB) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.folioSeq++
	return r.folioSeq, nil
}

func (r *stubVentaRepo) DB() *gorm.DB { return nil }

var _ repository.VentaRepository = (*stubVentaRepo)(nil)

// ── AlertaRepository ─────────────────────────────────────────────────────────

type stubAlertaRepo struct {
	mu      sync.Mutex
	alertas map[uuid.UUID]*model.Alerta
}

func newStubAlertaRepo() *stubAlertaRepo {
	return &stubAlertaRepo{alertas: make(map[uuid.UUID]*model.Alerta)}
}

func (r *stubAlertaRepo) Create(_ context.Context, a *model.Alerta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	r.alertas[a.ID] = a
	return nil
}

func (r *stubAlertaRepo) FindAbierta(_ context.Context, tipo string, productoID, loteID *uuid.UUID) (*model.Alerta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alertas {
		if a.Resuelto || a.Tipo != tipo {
			continue
		}
		if productoID != nil && (a.ProductoID == nil || *a.ProductoID != *productoID) {
			continue
		}
		if loteID != nil && (a.LoteID == nil || *a.LoteID != *loteID) {
			continue
		}
		copia := *a
		return &copia, nil
	}
	return nil, nil
}

func (r *stubAlertaRepo) Resolver(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alertas[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	ahora := time.Now()
	a.Resuelto = true
	a.ResueltoAt = &ahora
	return nil
}

func (r *stubAlertaRepo) ListAbiertas(_ context.Context, tipo string) ([]model.Alerta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Alerta
	for _, a := range r.alertas {
		if a.Resuelto {
			continue
		}
		if tipo != "" && a.Tipo != tipo {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

var _ repository.AlertaRepository = (*stubAlertaRepo)(nil)

// ── Test environment ─────────────────────────────────────────────────────────

type testEnv struct {
	productos   *stubProductoRepo
	lotes       *stubLoteRepo
	movimientos *stubMovimientoRepo
	ventas      *stubVentaRepo
	alertas     *stubAlertaRepo

	stock   service.StockService
	venta   service.VentaService
	alerta  service.AlertaService
	tasaIVA decimal.Decimal
}

func newTestEnv() *testEnv {
	env := &testEnv{
		productos:   newStubProductoRepo(),
		lotes:       newStubLoteRepo(),
		movimientos: newStubMovimientoRepo(),
		ventas:      newStubVentaRepo(),
		alertas:     newStubAlertaRepo(),
		tasaIVA:     decimal.NewFromFloat(0.19),
	}
	locks := service.NewProductLocks()
	timeout := 2 * time.Second
	env.stock = service.NewStockService(env.productos, env.lotes, env.movimientos, locks, timeout)
	env.venta = service.NewVentaService(env.ventas, env.productos, env.lotes, env.movimientos,
		env.stock, locks, nil, env.tasaIVA, timeout)
	env.alerta = service.NewAlertaService(env.productos, env.lotes, env.alertas, 7)
	return env
}

// crearProducto seeds a product with its lots and a coherent cached total.
func (env *testEnv) crearProducto(nombre string, precio int64, stockMinimo int, lotes ...*model.Lote) *model.Producto {
	p := &model.Producto{
		Nombre:      nombre,
		Categoria:   "panaderia",
		PrecioVenta: decimal.NewFromInt(precio),
		StockMinimo: stockMinimo,
		Activo:      true,
	}
	_ = env.productos.Create(context.Background(), p)
	total := 0
	for _, l := range lotes {
		l.ProductoID = p.ID
		_ = env.lotes.CreateTx(nil, l)
		_ = env.movimientos.CreateTx(nil, &model.MovimientoStock{
			ProductoID: p.ID,
			LoteID:     l.ID,
			Tipo:       model.MovimientoEntrada,
			Cantidad:   l.StockActual,
			Referencia: "seed",
		})
		total += l.StockActual
	}
	p.StockCacheado = total
	return p
}

func lote(diasParaVencer, stock int) *model.Lote {
	return &model.Lote{
		FechaVencimiento: time.Now().AddDate(0, 0, diasParaVencer).Truncate(24 * time.Hour),
		StockActual:      stock,
		CostoUnitario:    decimal.NewFromInt(500),
	}
}
