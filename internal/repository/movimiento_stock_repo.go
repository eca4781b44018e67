package repository

import (
	"context"

	"forneria/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovimientoStockFilter defines filters for listing ledger entries.
type MovimientoStockFilter struct {
	ProductoID *uuid.UUID
	LoteID     *uuid.UUID
	Tipo       string
	Referencia string
	Page       int
	Limit      int
}

// MovimientoStockRepository is append-only: the kardex has no update or
// delete operation, by contract.
type MovimientoStockRepository interface {
	CreateTx(tx *gorm.DB, m *model.MovimientoStock) error
	List(ctx context.Context, filter MovimientoStockFilter) ([]model.MovimientoStock, int64, error)

	// ListByVenta returns every entry of one kind linked to a sale, oldest
	// first and without pagination: the cancellation replay needs all of them.
	ListByVenta(ctx context.Context, ventaID uuid.UUID, tipo string) ([]model.MovimientoStock, error)

	// SumByProducto adds the signed quantities of every entry for a product.
	// Replaying the ledger this way must reconstruct the cached balance.
	SumByProducto(ctx context.Context, productoID uuid.UUID) (int, error)
}

type movimientoStockRepo struct{ db *gorm.DB }

func NewMovimientoStockRepository(db *gorm.DB) MovimientoStockRepository {
	return &movimientoStockRepo{db: db}
}

func (r *movimientoStockRepo) CreateTx(tx *gorm.DB, m *model.MovimientoStock) error {
	return tx.Create(m).Error
}

func (r *movimientoStockRepo) List(ctx context.Context, filter MovimientoStockFilter) ([]model.MovimientoStock, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.MovimientoStock{})
	if filter.ProductoID != nil {
		q = q.Where("producto_id = ?", *filter.ProductoID)
	}
	if filter.LoteID != nil {
		q = q.Where("lote_id = ?", *filter.LoteID)
	}
	if filter.Tipo != "" {
		q = q.Where("tipo = ?", filter.Tipo)
	}
	if filter.Referencia != "" {
		q = q.Where("referencia = ?", filter.Referencia)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	limit := filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset := (page - 1) * limit

	var movimientos []model.MovimientoStock
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&movimientos).Error
	return movimientos, total, err
}

func (r *movimientoStockRepo) ListByVenta(ctx context.Context, ventaID uuid.UUID, tipo string) ([]model.MovimientoStock, error) {
	var movimientos []model.MovimientoStock
	err := r.db.WithContext(ctx).
		Where("venta_id = ? AND tipo = ?", ventaID, tipo).
		Order("created_at ASC, id ASC").
		Find(&movimientos).Error
	return movimientos, err
}

func (r *movimientoStockRepo) SumByProducto(ctx context.Context, productoID uuid.UUID) (int, error) {
	var suma int
	err := r.db.WithContext(ctx).Model(&model.MovimientoStock{}).
		Where("producto_id = ?", productoID).
		Select("COALESCE(SUM(cantidad), 0)").
		Scan(&suma).Error
	return suma, err
}
