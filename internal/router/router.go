package router

import (
	"time"

	"forneria/internal/config"
	"forneria/internal/handler"
	"forneria/internal/middleware"
	"forneria/internal/repository"
	"forneria/internal/service"
	"forneria/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	tasaIVA, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		log.Warn().Str("tax_rate", cfg.TaxRate).Msg("TAX_RATE invalido, usando 0.19")
		tasaIVA = decimal.NewFromFloat(0.19)
	}
	lockTimeout := time.Duration(cfg.LockTimeoutMS) * time.Millisecond

	// ── Repositories ─────────────────────────────────────────────────────────
	productoRepo := repository.NewProductoRepository(db)
	loteRepo := repository.NewLoteRepository(db)
	movimientoRepo := repository.NewMovimientoStockRepository(db)
	ventaRepo := repository.NewVentaRepository(db)
	alertaRepo := repository.NewAlertaRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	locks := service.NewProductLocks()
	stockSvc := service.NewStockService(productoRepo, loteRepo, movimientoRepo, locks, lockTimeout)
	alertaSvc := service.NewAlertaService(productoRepo, loteRepo, alertaRepo, cfg.AlertExpiryDays)

	// Worker dispatcher: sales enqueue an alert sweep after commit
	dispatcher := worker.NewDispatcher(rdb)

	ventaSvc := service.NewVentaService(ventaRepo, productoRepo, loteRepo, movimientoRepo,
		stockSvc, locks, dispatcher, tasaIVA, lockTimeout)

	// ── Handlers ─────────────────────────────────────────────────────────────
	ventasH := handler.NewVentasHandler(ventaSvc)
	inventarioH := handler.NewInventarioHandler(stockSvc)
	productosH := handler.NewProductosHandler(productoRepo, rdb)
	alertasH := handler.NewAlertasHandler(alertaSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(db, rdb))

	// Price check, read-only, served through Redis
	r.GET("/v1/precio/:barcode", productosH.GetPrecioPorBarcode)

	v1 := r.Group("/v1")
	{
		v1.POST("/ventas", ventasH.ProcesarVenta)
		v1.GET("/ventas", ventasH.ListarVentas)
		v1.GET("/ventas/:id", ventasH.ObtenerVenta)
		v1.PATCH("/ventas/:id/estado", ventasH.CambiarEstado)

		v1.POST("/productos", productosH.Crear)
		v1.GET("/productos", productosH.Listar)
		v1.GET("/productos/:id", productosH.ObtenerPorID)
		v1.GET("/productos/:id/lotes", inventarioH.ListarLotes)
		v1.GET("/productos/:id/reconciliacion", inventarioH.Reconciliar)

		inv := v1.Group("/inventario")
		{
			inv.POST("/lotes", inventarioH.IngresarLote)
			inv.POST("/mermas", inventarioH.RegistrarMerma)
			inv.POST("/asignaciones", inventarioH.Asignar)
			inv.GET("/movimientos", inventarioH.ListarMovimientos)
		}

		v1.GET("/alertas", alertasH.Listar)
		v1.POST("/alertas/evaluar", alertasH.Evaluar)
	}

	return r
}
