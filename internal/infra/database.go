package infra

import (
	"fmt"

	"forneria/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate
// over the domain models, then applies the idempotent SQL patches that GORM
// cannot express (sequences, partial indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates/updates the schema. Also used by integration tests
// against a disposable database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Producto{},
		&model.Lote{},
		&model.MovimientoStock{},
		&model.Venta{},
		&model.DetalleVenta{},
		&model.Pago{},
		&model.Alerta{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// folio sequence for ventas, drawn inside the sale transaction
		`CREATE SEQUENCE IF NOT EXISTS ventas_folio_seq START 1`,
		// partial index for the FIFO walk: live lots with balance only
		`CREATE INDEX IF NOT EXISTS idx_lotes_fifo
		    ON lotes (producto_id, fecha_vencimiento, created_at, id)
		    WHERE stock_actual > 0 AND eliminado_at IS NULL`,
		// open-alert lookup by (tipo, target)
		`CREATE INDEX IF NOT EXISTS idx_alertas_abiertas
		    ON alertas (tipo, producto_id, lote_id)
		    WHERE resuelto = false`,
	}
	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
