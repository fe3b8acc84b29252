package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tradeops/trademanager/internal/model"
)

// ErrDuplicateTrade is returned when an insert hits the unique constraint
// on the client reference number. The constraint is the authoritative
// duplicate signal; the dedupe query ahead of it is only a fast path.
var ErrDuplicateTrade = errors.New("trade already exists for client reference number")

// FundTradeCount is one row of the per-fund summary.
type FundTradeCount struct {
	FundNumber string `json:"fund_number"`
	Count      int64  `json:"count"`
}

type TradeRepository interface {
	Create(ctx context.Context, trade *model.Trade) error
	ExistsByClientReference(ctx context.Context, ref string) (bool, error)
	FindByClientReference(ctx context.Context, ref string) ([]model.Trade, error)
	CountByFund(ctx context.Context) ([]FundTradeCount, error)
}

type gormTradeRepository struct {
	db *gorm.DB
}

func NewGormTradeRepository(db *gorm.DB) TradeRepository {
	return &gormTradeRepository{db: db}
}

func (r *gormTradeRepository) Create(ctx context.Context, trade *model.Trade) error {
	err := r.db.WithContext(ctx).Create(trade).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateTrade
	}
	return err
}

func (r *gormTradeRepository) ExistsByClientReference(ctx context.Context, ref string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("client_reference_number = ?", ref).
		Count(&count).Error
	return count > 0, err
}

func (r *gormTradeRepository) FindByClientReference(ctx context.Context, ref string) ([]model.Trade, error) {
	var trades []model.Trade
	err := r.db.WithContext(ctx).
		Where("client_reference_number = ?", ref).
		Find(&trades).Error
	return trades, err
}

func (r *gormTradeRepository) CountByFund(ctx context.Context) ([]FundTradeCount, error) {
	var counts []FundTradeCount
	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Select("fund_number, count(*) as count").
		Group("fund_number").
		Scan(&counts).Error
	return counts, err
}
