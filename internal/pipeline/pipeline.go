// Package pipeline carries a stored raw message to one of its terminal
// states: skipped, duplicate, invalid, malformed, or published.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradeops/trademanager/internal/model"
	"github.com/tradeops/trademanager/internal/publisher"
	"github.com/tradeops/trademanager/internal/repository"
	"github.com/tradeops/trademanager/internal/telemetry"
	"github.com/tradeops/trademanager/internal/validation"
)

// Outcome is the terminal state reached for one message. Every message
// reaches exactly one; the processor never retries internally.
type Outcome int

const (
	// OutcomeSkipped: parsed but no client reference number, intentional
	// pass-through with nothing written.
	OutcomeSkipped Outcome = iota
	// OutcomeDuplicate: reference number already seen, dropped silently.
	OutcomeDuplicate
	// OutcomeInvalid: business exception recorded.
	OutcomeInvalid
	// OutcomeMalformed: technical exception recorded.
	OutcomeMalformed
	// OutcomePublished: trade persisted and emitted downstream.
	OutcomePublished
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeMalformed:
		return "malformed"
	case OutcomePublished:
		return "published"
	default:
		return "unknown"
	}
}

// Processor glues parsing, duplicate detection, enrichment, validation,
// persistence and publication together for one message at a time.
type Processor struct {
	trades      repository.TradeRepository
	exceptions  repository.ExceptionRepository
	funds       repository.FundRepository
	publisher   publisher.Publisher
	outputTopic string
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	now         func() time.Time
}

func NewProcessor(
	trades repository.TradeRepository,
	exceptions repository.ExceptionRepository,
	funds repository.FundRepository,
	pub publisher.Publisher,
	outputTopic string,
	logger *slog.Logger,
	metrics *telemetry.Metrics,
) *Processor {
	return &Processor{
		trades:      trades,
		exceptions:  exceptions,
		funds:       funds,
		publisher:   pub,
		outputTopic: outputTopic,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// WithClock substitutes the reference time source. Tests pin "today".
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Process runs the state machine for one stored message. All failures end
// in a terminal state; nothing propagates to the caller, so one bad
// message never blocks the next.
func (p *Processor) Process(ctx context.Context, raw *model.RawMessage) Outcome {
	start := time.Now()
	defer func() {
		p.metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	logger := p.logger.With("message_key", raw.MessageKey)
	logger.Info("Processing message")

	var trade model.TradeDetails
	if err := json.Unmarshal([]byte(raw.Payload), &trade); err != nil {
		p.saveTechnicalException(ctx, raw.Payload, "failed to parse trade details", err)
		return OutcomeMalformed
	}

	ref := strings.TrimSpace(trade.ClientReferenceNumber)
	if ref == "" {
		logger.Warn("Trade has no client reference number, skipping validation and persistence")
		p.metrics.BlankReferences.Inc()
		return OutcomeSkipped
	}
	logger = logger.With("client_reference_number", ref)

	duplicate, err := p.isDuplicate(ctx, ref)
	if err != nil {
		p.saveTechnicalException(ctx, raw.Payload, "duplicate check failed", err)
		return OutcomeMalformed
	}
	if duplicate {
		logger.Warn("Duplicate trade detected, skipping processing")
		p.metrics.Duplicates.Inc()
		return OutcomeDuplicate
	}

	fund, found, err := p.funds.FindByNumber(ctx, trade.FundNumber)
	if err != nil {
		p.saveTechnicalException(ctx, raw.Payload, "fund lookup failed", err)
		return OutcomeMalformed
	}
	if !found {
		p.saveBusinessException(ctx, ref, raw.Payload, []string{"Fund not found"})
		return OutcomeInvalid
	}
	trade.BaseCurrency = fund.BaseCurrency

	if violations := validation.Validate(&trade, p.now()); len(violations) > 0 {
		p.saveBusinessException(ctx, ref, raw.Payload, violations)
		return OutcomeInvalid
	}

	outbound, err := json.Marshal(&trade)
	if err != nil {
		p.saveTechnicalException(ctx, raw.Payload, "failed to serialize outbound trade", err)
		return OutcomeMalformed
	}

	persisted := &model.Trade{
		ClientReferenceNumber: ref,
		FundNumber:            trade.FundNumber,
		SecurityID:            trade.SecurityID,
		TradeDate:             trade.TradeDate,
		SettleDate:            trade.SettleDate,
		Quantity:              *trade.Quantity,
		Price:                 *trade.Price,
		Principal:             *trade.Principal,
		NetAmount:             netAmountOrZero(trade.NetAmount),
		BaseCurrency:          trade.BaseCurrency,
		OutboundJSON:          string(outbound),
	}
	if err := p.trades.Create(ctx, persisted); err != nil {
		if errors.Is(err, repository.ErrDuplicateTrade) {
			// Two near-simultaneous copies can both pass the dedupe query.
			// The unique constraint is the final arbiter.
			logger.Warn("Unique constraint hit on insert, treating as duplicate")
			p.metrics.Duplicates.Inc()
			return OutcomeDuplicate
		}
		p.saveTechnicalException(ctx, raw.Payload, "failed to persist trade", err)
		return OutcomeMalformed
	}

	if err := p.publisher.Publish(p.outputTopic, outbound); err != nil {
		// Trade is already persisted; recording an exception here would put
		// the reference number in both stores.
		logger.Error("Failed to publish trade downstream", "topic", p.outputTopic, "error", err)
	} else {
		logger.Info("Trade persisted and published", "topic", p.outputTopic)
	}
	p.metrics.TradesPersisted.Inc()
	return OutcomePublished
}

// isDuplicate reports whether the reference number exists in either the
// trade store or the exception store.
func (p *Processor) isDuplicate(ctx context.Context, ref string) (bool, error) {
	exists, err := p.trades.ExistsByClientReference(ctx, ref)
	if err != nil || exists {
		return exists, err
	}
	return p.exceptions.ExistsByClientReference(ctx, ref)
}

func (p *Processor) saveBusinessException(ctx context.Context, ref, payload string, reasons []string) {
	reason := model.TruncateReason(strings.Join(reasons, ", "))
	p.logger.Warn("Saving business exception", "client_reference_number", ref, "reason", reason)

	exc := &model.TradeException{
		ClientReferenceNumber: ref,
		ErrorKind:             model.ErrorKindBusiness,
		FailedPayload:         payload,
		FailureReason:         reason,
	}
	if err := p.exceptions.Create(ctx, exc); err != nil {
		p.logger.Error("CRITICAL: failed to save business exception",
			"client_reference_number", ref, "reason", reason, "error", err)
		return
	}
	p.metrics.Exceptions.WithLabelValues(string(model.ErrorKindBusiness)).Inc()
}

func (p *Processor) saveTechnicalException(ctx context.Context, payload, category string, cause error) {
	reason := model.TruncateReason(fmt.Sprintf("%s: %s", category, cause))
	p.logger.Error("Saving technical exception", "reason", reason)

	exc := &model.TradeException{
		ErrorKind:     model.ErrorKindTechnical,
		FailedPayload: payload,
		FailureReason: reason,
	}
	if err := p.exceptions.Create(ctx, exc); err != nil {
		p.logger.Error("CRITICAL: failed to save technical exception",
			"original_reason", reason, "error", err)
		return
	}
	p.metrics.Exceptions.WithLabelValues(string(model.ErrorKindTechnical)).Inc()
}

func netAmountOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
