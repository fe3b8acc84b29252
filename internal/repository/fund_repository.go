package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tradeops/trademanager/internal/model"
)

// FundRepository is the reference-data lookup consumed by the pipeline.
// "not found" is an expected outcome of bad input, reported through the
// boolean, not through the error.
type FundRepository interface {
	FindByNumber(ctx context.Context, fundNumber string) (*model.Fund, bool, error)
	FindAll(ctx context.Context) ([]model.Fund, error)
}

type gormFundRepository struct {
	db *gorm.DB
}

func NewGormFundRepository(db *gorm.DB) FundRepository {
	return &gormFundRepository{db: db}
}

func (r *gormFundRepository) FindByNumber(ctx context.Context, fundNumber string) (*model.Fund, bool, error) {
	var fund model.Fund
	err := r.db.WithContext(ctx).Where("fund_number = ?", fundNumber).First(&fund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &fund, true, nil
}

func (r *gormFundRepository) FindAll(ctx context.Context) ([]model.Fund, error) {
	var funds []model.Fund
	err := r.db.WithContext(ctx).Order("fund_number").Find(&funds).Error
	return funds, err
}
