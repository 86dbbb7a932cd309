package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/FingerSpinx7/consola-admin/internal/domain"
)

type VentaRepo struct{ db *gorm.DB }

func NewVentaRepo(db *gorm.DB) *VentaRepo { return &VentaRepo{db: db} }

func (r *VentaRepo) Create(ctx context.Context, v *domain.Venta) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *VentaRepo) Update(ctx context.Context, v *domain.Venta) error {
	return r.db.WithContext(ctx).Save(v).Error
}

func (r *VentaRepo) FindByConsolaID(ctx context.Context, consolaID int64) (*domain.Venta, error) {
	var v domain.Venta
	err := r.db.WithContext(ctx).Order("id asc").First(&v, "consola_id = ?", consolaID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *VentaRepo) ListInRange(ctx context.Context, rango domain.RangoFechas) ([]domain.Venta, error) {
	var list []domain.Venta
	q := r.db.WithContext(ctx).Model(&domain.Venta{}).Preload("Consola")
	if rango.Desde != nil {
		q = q.Where("fecha_venta >= ?", *rango.Desde)
	}
	if rango.Hasta != nil {
		q = q.Where("fecha_venta <= ?", *rango.Hasta)
	}
	if err := q.Order("fecha_venta desc, id desc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
