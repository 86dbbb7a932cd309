package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/FingerSpinx7/consola-admin/internal/domain"
)

type ConsolaRepo struct{ db *gorm.DB }

func NewConsolaRepo(db *gorm.DB) *ConsolaRepo { return &ConsolaRepo{db: db} }

func (r *ConsolaRepo) Save(ctx context.Context, c *domain.Consola) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *ConsolaRepo) FindByID(ctx context.Context, id int64) (*domain.Consola, error) {
	var c domain.Consola
	err := r.db.WithContext(ctx).
		Preload("Fotos", func(db *gorm.DB) *gorm.DB { return db.Order("orden asc, id asc") }).
		Preload("Ventas").
		First(&c, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConsolaRepo) List(ctx context.Context, f domain.ConsolaFilter) ([]domain.Consola, error) {
	var list []domain.Consola
	q := r.db.WithContext(ctx).Model(&domain.Consola{})
	if f.SoloDisponibles {
		q = q.Where("estado = ?", true)
	}
	if f.ConFotos {
		q = q.Preload("Fotos", func(db *gorm.DB) *gorm.DB { return db.Order("orden asc, id asc") })
	}
	if f.ConVenta {
		q = q.Preload("Ventas")
	}
	if err := q.Order("id desc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *ConsolaRepo) MarcarVendida(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&domain.Consola{}).Where("id = ?", id).Update("estado", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ConsolaRepo) AddFotos(ctx context.Context, consolaID int64, fotos []domain.Foto) error {
	if len(fotos) == 0 {
		return nil
	}
	for i := range fotos {
		fotos[i].ConsolaID = consolaID
		if fotos[i].CreatedAt.IsZero() {
			fotos[i].CreatedAt = time.Now()
		}
	}
	return r.db.WithContext(ctx).Create(&fotos).Error
}

func (r *ConsolaRepo) DeleteFoto(ctx context.Context, fotoID int64) (string, error) {
	var f domain.Foto
	if err := r.db.WithContext(ctx).First(&f, "id = ?", fotoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	if err := r.db.WithContext(ctx).Delete(&domain.Foto{}, "id = ?", fotoID).Error; err != nil {
		return "", err
	}
	return f.URLFoto, nil
}
