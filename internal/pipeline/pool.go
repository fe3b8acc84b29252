package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tradeops/trademanager/internal/model"
)

// Pool fans stored messages out to a fixed number of workers so intake can
// keep polling while validation, enrichment and persistence run.
type Pool struct {
	processor   *Processor
	jobs        chan *model.RawMessage
	workerCount int
	logger      *slog.Logger
	wg          sync.WaitGroup
}

func NewPool(processor *Processor, workerCount int, logger *slog.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{
		processor:   processor,
		jobs:        make(chan *model.RawMessage, workerCount*2),
		workerCount: workerCount,
		logger:      logger,
	}
}

func (p *Pool) Start(ctx context.Context) {
	// Workers keep a non-cancellable context: once a message is accepted it
	// is always carried to a terminal state, even during shutdown.
	procCtx := context.WithoutCancel(ctx)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(procCtx, i+1)
	}
}

// Submit hands a stored message to the pool. It blocks when the buffer is
// full; back-pressure on intake is intentional.
func (p *Pool) Submit(raw *model.RawMessage) {
	p.jobs <- raw
}

// Stop closes intake and waits for in-flight messages to finish.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	p.logger.Info("Worker started", "workerID", workerID)

	for raw := range p.jobs {
		outcome := p.processor.Process(ctx, raw)
		p.logger.Debug("Message reached terminal state",
			"workerID", workerID,
			"message_key", raw.MessageKey,
			"outcome", outcome.String())
	}

	p.logger.Info("Worker stopped", "workerID", workerID)
}
