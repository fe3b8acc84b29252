// Package service is the facade the external API layer consumes: manual
// submission, administrative resubmission, and read accessors over the
// three stores.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tradeops/trademanager/internal/idgen"
	"github.com/tradeops/trademanager/internal/model"
	"github.com/tradeops/trademanager/internal/pipeline"
	"github.com/tradeops/trademanager/internal/repository"
)

// TradeSummary aggregates per-fund processing results.
type TradeSummary struct {
	FundNumber     string `json:"fund_number"`
	TradesReceived int64  `json:"trades_received"`
	TradesCreated  int64  `json:"trades_created"`
	Exceptions     int64  `json:"exceptions"`
}

type StorageService struct {
	raw        repository.RawMessageRepository
	trades     repository.TradeRepository
	exceptions repository.ExceptionRepository
	ids        idgen.Generator
	processor  *pipeline.Processor
	logger     *slog.Logger
}

func NewStorageService(
	raw repository.RawMessageRepository,
	trades repository.TradeRepository,
	exceptions repository.ExceptionRepository,
	ids idgen.Generator,
	processor *pipeline.Processor,
	logger *slog.Logger,
) *StorageService {
	return &StorageService{
		raw:        raw,
		trades:     trades,
		exceptions: exceptions,
		ids:        ids,
		processor:  processor,
		logger:     logger,
	}
}

// SaveRaw accepts a manual submission under a fresh key. Empty payloads
// surface repository.ErrEmptyPayload so the caller can report why the
// submission was not accepted; deeper validation failures are only visible
// through the exception store.
func (s *StorageService) SaveRaw(ctx context.Context, payload string) (string, error) {
	key := s.ids.GenerateID()
	if _, err := s.raw.Save(ctx, key, payload); err != nil {
		return "", err
	}
	s.logger.Info("Manual submission stored", "message_key", key)
	return key, nil
}

// Resubmit re-runs the pipeline for an already stored message. Duplicate
// detection makes resubmission of an already processed payload a no-op.
func (s *StorageService) Resubmit(ctx context.Context, messageKey string) (pipeline.Outcome, error) {
	raw, err := s.raw.FindByKey(ctx, messageKey)
	if err != nil {
		return 0, err
	}
	return s.processor.Process(ctx, raw), nil
}

func (s *StorageService) RawByDateRange(ctx context.Context, from, to *time.Time, limit, offset int) ([]model.RawMessage, error) {
	return s.raw.FindByReceivedRange(ctx, from, to, limit, offset)
}

func (s *StorageService) TradesByClientReference(ctx context.Context, ref string) ([]model.Trade, error) {
	return s.trades.FindByClientReference(ctx, ref)
}

func (s *StorageService) ExceptionsByClientReference(ctx context.Context, ref string, from, to *time.Time) ([]model.TradeException, error) {
	return s.exceptions.FindByClientReference(ctx, ref, from, to)
}

// TradeSummary reports per-fund counts of created trades and exceptions.
// Exception rows carry no fund column, so the fund number is recovered
// from the failed payload; unparseable payloads group under UNKNOWN.
func (s *StorageService) TradeSummary(ctx context.Context) ([]TradeSummary, error) {
	counts, err := s.trades.CountByFund(ctx)
	if err != nil {
		return nil, err
	}
	excs, err := s.exceptions.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make(map[string]*TradeSummary)
	for _, c := range counts {
		summaries[c.FundNumber] = &TradeSummary{
			FundNumber:     c.FundNumber,
			TradesReceived: c.Count,
			TradesCreated:  c.Count,
		}
	}

	for _, exc := range excs {
		fundNumber := "UNKNOWN"
		var details model.TradeDetails
		if err := json.Unmarshal([]byte(exc.FailedPayload), &details); err == nil && details.FundNumber != "" {
			fundNumber = details.FundNumber
		}

		summary, ok := summaries[fundNumber]
		if !ok {
			summary = &TradeSummary{FundNumber: fundNumber}
			summaries[fundNumber] = summary
		}
		summary.Exceptions++
		summary.TradesReceived++
	}

	result := make([]TradeSummary, 0, len(summaries))
	for _, summary := range summaries {
		result = append(result, *summary)
	}
	return result, nil
}
