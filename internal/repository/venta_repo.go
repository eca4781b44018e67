package repository

import (
	"context"

	"forneria/internal/dto"
	"forneria/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VentaRepository interface {
	CreateTx(tx *gorm.DB, v *model.Venta) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)

	// UpdateEstadoTx is a compare-and-swap: the row only moves when it still
	// holds the estado the caller validated against. Zero rows affected means
	// a concurrent transition won the race.
	UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, desde, hacia string) (int64, error)

	List(ctx context.Context, filter dto.VentaFilter) ([]model.Venta, int64, error)

	// NextFolioNumber draws the next value from the folio sequence. Runs on
	// the sale transaction so a rolled-back sale burns the number, never
	// reuses it.
	NextFolioNumber(tx *gorm.DB) (int64, error)

	DB() *gorm.DB
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) CreateTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Create(v).Error
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).
		Preload("Detalles").
		Preload("Pagos").
		First(&v, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ventaRepo) UpdateEstadoTx(tx *gorm.DB, id uuid.UUID, desde, hacia string) (int64, error) {
	res := tx.Model(&model.Venta{}).
		Where("id = ? AND estado = ?", id, desde).
		Update("estado", hacia)
	return res.RowsAffected, res.Error
}

func (r *ventaRepo) List(ctx context.Context, filter dto.VentaFilter) ([]model.Venta, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Venta{})
	if filter.Estado != "" && filter.Estado != "all" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.Fecha != "" {
		q = q.Where("created_at::date = ?", filter.Fecha)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (filter.Page - 1) * filter.Limit
	var ventas []model.Venta
	err := q.Preload("Detalles").Preload("Pagos").
		Order("created_at DESC").Limit(filter.Limit).Offset(offset).
		Find(&ventas).Error
	return ventas, total, err
}

func (r *ventaRepo) NextFolioNumber(tx *gorm.DB) (int64, error) {
	var n int64
	err := tx.Raw("SELECT nextval('ventas_folio_seq')").Scan(&n).Error
	return n, err
}

func (r *ventaRepo) DB() *gorm.DB { return r.db }
