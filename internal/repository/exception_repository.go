package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tradeops/trademanager/internal/model"
)

type ExceptionRepository interface {
	Create(ctx context.Context, exc *model.TradeException) error
	ExistsByClientReference(ctx context.Context, ref string) (bool, error)
	FindByClientReference(ctx context.Context, ref string, from, to *time.Time) ([]model.TradeException, error)
	FindAll(ctx context.Context) ([]model.TradeException, error)
}

type gormExceptionRepository struct {
	db *gorm.DB
}

func NewGormExceptionRepository(db *gorm.DB) ExceptionRepository {
	return &gormExceptionRepository{db: db}
}

func (r *gormExceptionRepository) Create(ctx context.Context, exc *model.TradeException) error {
	return r.db.WithContext(ctx).Create(exc).Error
}

func (r *gormExceptionRepository) ExistsByClientReference(ctx context.Context, ref string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.TradeException{}).
		Where("client_reference_number = ?", ref).
		Count(&count).Error
	return count > 0, err
}

func (r *gormExceptionRepository) FindByClientReference(ctx context.Context, ref string, from, to *time.Time) ([]model.TradeException, error) {
	query := r.db.WithContext(ctx).Where("client_reference_number = ?", ref)
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at < ?", *to)
	}

	var excs []model.TradeException
	err := query.Order("created_at").Find(&excs).Error
	return excs, err
}

func (r *gormExceptionRepository) FindAll(ctx context.Context) ([]model.TradeException, error) {
	var excs []model.TradeException
	err := r.db.WithContext(ctx).Find(&excs).Error
	return excs, err
}
