package repository

import (
	"context"
	"time"

	"forneria/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AlertaRepository interface {
	Create(ctx context.Context, a *model.Alerta) error

	// FindAbierta looks up the open alert for a (tipo, target) key; exactly
	// one of productoID/loteID is set depending on tipo. Returns nil, nil
	// when no open alert exists.
	FindAbierta(ctx context.Context, tipo string, productoID, loteID *uuid.UUID) (*model.Alerta, error)

	Resolver(ctx context.Context, id uuid.UUID) error
	ListAbiertas(ctx context.Context, tipo string) ([]model.Alerta, error)
}

type alertaRepo struct{ db *gorm.DB }

func NewAlertaRepository(db *gorm.DB) AlertaRepository { return &alertaRepo{db: db} }

func (r *alertaRepo) Create(ctx context.Context, a *model.Alerta) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *alertaRepo) FindAbierta(ctx context.Context, tipo string, productoID, loteID *uuid.UUID) (*model.Alerta, error) {
	q := r.db.WithContext(ctx).Where("tipo = ? AND resuelto = false", tipo)
	if productoID != nil {
		q = q.Where("producto_id = ?", *productoID)
	}
	if loteID != nil {
		q = q.Where("lote_id = ?", *loteID)
	}
	var a model.Alerta
	err := q.First(&a).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *alertaRepo) Resolver(ctx context.Context, id uuid.UUID) error {
	ahora := time.Now()
	return r.db.WithContext(ctx).Model(&model.Alerta{}).Where("id = ?", id).
		Updates(map[string]interface{}{"resuelto": true, "resuelto_at": &ahora}).Error
}

func (r *alertaRepo) ListAbiertas(ctx context.Context, tipo string) ([]model.Alerta, error) {
	q := r.db.WithContext(ctx).Where("resuelto = false")
	if tipo != "" {
		q = q.Where("tipo = ?", tipo)
	}
	var alertas []model.Alerta
	err := q.Order("created_at DESC").Find(&alertas).Error
	return alertas, err
}
