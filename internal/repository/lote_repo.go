package repository

import (
	"context"
	"time"

	"forneria/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoteRepository interface {
	CreateTx(tx *gorm.DB, l *model.Lote) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Lote, error)
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Lote, error)

	// FindDisponiblesTx returns the product's lots with balance > 0 and not
	// soft-deleted, locked FOR UPDATE, in FIFO order: fecha_vencimiento, then
	// creation order. The id is a final tie-break for same-instant inserts.
	FindDisponiblesTx(tx *gorm.DB, productoID uuid.UUID) ([]model.Lote, error)

	// DescontarTx decrements one lot with a guard so the balance can never
	// go below zero. Returns gorm.ErrRecordNotFound semantics via rows
	// affected: zero rows means the guard rejected the decrement.
	DescontarTx(tx *gorm.DB, loteID uuid.UUID, cantidad int) (int64, error)

	// ReponerTx adds units back to a lot (sale cancellation, intake on an
	// existing batch).
	ReponerTx(tx *gorm.DB, loteID uuid.UUID, cantidad int) error

	// SumStockTx computes SUM(stock_actual) over the product's live lots,
	// the source value for the cached projection.
	SumStockTx(tx *gorm.DB, productoID uuid.UUID) (int, error)

	ListByProducto(ctx context.Context, productoID uuid.UUID) ([]model.Lote, error)

	// ListPorVencer returns lots with balance > 0 expiring on or before the
	// cutoff date, for the expiry alert sweep.
	ListPorVencer(ctx context.Context, hasta time.Time) ([]model.Lote, error)
}

type loteRepo struct{ db *gorm.DB }

func NewLoteRepository(db *gorm.DB) LoteRepository { return &loteRepo{db: db} }

func (r *loteRepo) CreateTx(tx *gorm.DB, l *model.Lote) error {
	return tx.Create(l).Error
}

func (r *loteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Lote, error) {
	var l model.Lote
	err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *loteRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Lote, error) {
	var l model.Lote
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *loteRepo) FindDisponiblesTx(tx *gorm.DB, productoID uuid.UUID) ([]model.Lote, error) {
	var lotes []model.Lote
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("producto_id = ? AND stock_actual > 0 AND eliminado_at IS NULL", productoID).
		Order("fecha_vencimiento ASC, created_at ASC, id ASC").
		Find(&lotes).Error
	return lotes, err
}

func (r *loteRepo) DescontarTx(tx *gorm.DB, loteID uuid.UUID, cantidad int) (int64, error) {
	res := tx.Model(&model.Lote{}).
		Where("id = ? AND stock_actual >= ?", loteID, cantidad).
		Update("stock_actual", gorm.Expr("stock_actual - ?", cantidad))
	return res.RowsAffected, res.Error
}

func (r *loteRepo) ReponerTx(tx *gorm.DB, loteID uuid.UUID, cantidad int) error {
	return tx.Model(&model.Lote{}).Where("id = ?", loteID).
		Update("stock_actual", gorm.Expr("stock_actual + ?", cantidad)).Error
}

func (r *loteRepo) SumStockTx(tx *gorm.DB, productoID uuid.UUID) (int, error) {
	var suma int
	err := tx.Model(&model.Lote{}).
		Where("producto_id = ? AND eliminado_at IS NULL", productoID).
		Select("COALESCE(SUM(stock_actual), 0)").
		Scan(&suma).Error
	return suma, err
}

func (r *loteRepo) ListByProducto(ctx context.Context, productoID uuid.UUID) ([]model.Lote, error) {
	var lotes []model.Lote
	err := r.db.WithContext(ctx).
		Where("producto_id = ? AND eliminado_at IS NULL", productoID).
		Order("fecha_vencimiento ASC, created_at ASC, id ASC").
		Find(&lotes).Error
	return lotes, err
}

func (r *loteRepo) ListPorVencer(ctx context.Context, hasta time.Time) ([]model.Lote, error) {
	var lotes []model.Lote
	err := r.db.WithContext(ctx).
		Where("stock_actual > 0 AND eliminado_at IS NULL AND fecha_vencimiento <= ?", hasta).
		Order("fecha_vencimiento ASC, created_at ASC, id ASC").
		Find(&lotes).Error
	return lotes, err
}
