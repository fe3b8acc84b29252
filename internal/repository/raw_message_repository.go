package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tradeops/trademanager/internal/model"
)

// ErrEmptyPayload signals that there was nothing to save. It is a contract
// signal rather than a failure: intake acknowledges the message and moves
// on without inventing a record.
var ErrEmptyPayload = errors.New("empty payload, nothing to save")

type RawMessageRepository interface {
	// Save appends one raw payload under the given key. Blank payloads are
	// rejected with ErrEmptyPayload without writing. Re-using a key fails
	// with the store's uniqueness error.
	Save(ctx context.Context, key string, payload string) (*model.RawMessage, error)
	FindByKey(ctx context.Context, key string) (*model.RawMessage, error)
	FindByReceivedRange(ctx context.Context, from, to *time.Time, limit, offset int) ([]model.RawMessage, error)
}

type gormRawMessageRepository struct {
	db *gorm.DB
}

func NewGormRawMessageRepository(db *gorm.DB) RawMessageRepository {
	return &gormRawMessageRepository{db: db}
}

func (r *gormRawMessageRepository) Save(ctx context.Context, key string, payload string) (*model.RawMessage, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, ErrEmptyPayload
	}
	msg := &model.RawMessage{
		MessageKey: key,
		Payload:    payload,
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *gormRawMessageRepository) FindByKey(ctx context.Context, key string) (*model.RawMessage, error) {
	var msg model.RawMessage
	if err := r.db.WithContext(ctx).Where("message_key = ?", key).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *gormRawMessageRepository) FindByReceivedRange(ctx context.Context, from, to *time.Time, limit, offset int) ([]model.RawMessage, error) {
	query := r.db.WithContext(ctx).Model(&model.RawMessage{})
	if from != nil {
		query = query.Where("received_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("received_at < ?", *to)
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var msgs []model.RawMessage
	if err := query.Order("received_at").Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
