// Package consumer is the intake boundary: it fetches messages from the
// input topic, durably stores the raw payload, acknowledges, and hands the
// stored message to the processing pool.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/tradeops/trademanager/internal/idgen"
	"github.com/tradeops/trademanager/internal/model"
	"github.com/tradeops/trademanager/internal/publisher"
	"github.com/tradeops/trademanager/internal/repository"
	"github.com/tradeops/trademanager/internal/telemetry"
)

// Reader is the subset of kafka.Reader the intake loop uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Submitter accepts stored messages for asynchronous processing.
// *pipeline.Pool satisfies it.
type Submitter interface {
	Submit(raw *model.RawMessage)
}

// Config holds intake tuning knobs.
type Config struct {
	// DeadLetterTopic receives messages that cannot even be read as text.
	DeadLetterTopic string

	// RetryBackoff is the fixed delay between raw-store write attempts.
	RetryBackoff time.Duration

	// DeadLetterAttempts bounds publish attempts to the dead-letter topic.
	DeadLetterAttempts int

	// IntakeRatePerSecond throttles fetching. Zero means unlimited.
	IntakeRatePerSecond int
}

type Consumer struct {
	reader  Reader
	rawRepo repository.RawMessageRepository
	ids     idgen.Generator
	pool    Submitter
	pub     publisher.Publisher
	limiter *rate.Limiter
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

func NewConsumer(
	reader Reader,
	rawRepo repository.RawMessageRepository,
	ids idgen.Generator,
	pool Submitter,
	pub publisher.Publisher,
	cfg Config,
	logger *slog.Logger,
	metrics *telemetry.Metrics,
) *Consumer {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.DeadLetterAttempts < 1 {
		cfg.DeadLetterAttempts = 3
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.IntakeRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.IntakeRatePerSecond), cfg.IntakeRatePerSecond)
	}

	return &Consumer{
		reader:  reader,
		rawRepo: rawRepo,
		ids:     ids,
		pool:    pool,
		pub:     pub,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Start runs the intake loop until the context is cancelled. It returns
// nil on graceful shutdown.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting intake loop",
		"retry_backoff", c.cfg.RetryBackoff,
		"dead_letter_topic", c.cfg.DeadLetterTopic)

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}

		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Error fetching message", "error", err)
			continue
		}

		c.handle(ctx, m)
	}
}

// handle carries one inbound message through intake. The offset is
// committed only after the raw payload is durable (or after the message is
// classified as unsalvageable), so a crash in between only causes a
// redelivery, never a loss.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	c.metrics.MessagesReceived.Inc()

	if !utf8.Valid(m.Value) {
		c.deadLetter(ctx, m)
		return
	}
	payload := string(m.Value)

	key := c.ids.GenerateID()
	var raw *model.RawMessage
	backoff := retry.NewConstant(c.cfg.RetryBackoff)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		saved, saveErr := c.rawRepo.Save(ctx, key, payload)
		if saveErr != nil {
			if errors.Is(saveErr, repository.ErrEmptyPayload) {
				return saveErr
			}
			c.logger.Error("Raw store write failed, retrying",
				"message_key", key, "backoff", c.cfg.RetryBackoff, "error", saveErr)
			return retry.RetryableError(saveErr)
		}
		raw = saved
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmptyPayload) {
			c.logger.Warn("Received an empty message, nothing to save",
				"partition", m.Partition, "offset", m.Offset)
			c.metrics.EmptyPayloads.Inc()
			c.commit(ctx, m)
			return
		}
		// Context cancelled mid-retry. Leaving the message unacknowledged
		// forces a redelivery.
		c.logger.Error("Raw store write abandoned, message stays unacknowledged",
			"message_key", key, "error", err)
		return
	}

	c.metrics.RawSaved.Inc()
	c.commit(ctx, m)
	c.pool.Submit(raw)
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		// Redelivery after a missed commit is tolerated; duplicate
		// detection suppresses the side effects.
		c.logger.Warn("Failed to commit offset", "offset", m.Offset, "error", err)
	}
}

// deadLetter routes an unreadable message out of the retry path. The
// pipeline never saw a parseable payload, so no exception record is
// written.
func (c *Consumer) deadLetter(ctx context.Context, m kafka.Message) {
	var err error
	for attempt := 1; attempt <= c.cfg.DeadLetterAttempts; attempt++ {
		if err = c.pub.Publish(c.cfg.DeadLetterTopic, m.Value); err == nil {
			break
		}
		c.logger.Warn("Dead-letter publish failed",
			"attempt", attempt, "topic", c.cfg.DeadLetterTopic, "error", err)
	}

	if err != nil {
		c.logger.Error("Giving up dead-letter publish, dropping message",
			"partition", m.Partition, "offset", m.Offset, "error", err)
	} else {
		c.logger.Warn("Message routed to dead-letter topic",
			"partition", m.Partition, "offset", m.Offset)
		c.metrics.DeadLettered.Inc()
	}
	c.commit(ctx, m)
}
