package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_DrainsAllMessagesOnStop(t *testing.T) {
	fx := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := NewPool(fx.processor, 1, logger)

	pool.Start(context.Background())
	for i := 0; i < 10; i++ {
		pool.Submit(rawMessage(validPayload(fmt.Sprintf("CRN-P%d", i))))
	}
	pool.Stop()

	assert.Len(t, fx.trades.trades, 10)
	assert.Len(t, fx.pub.messages, 10)
}

func TestPool_ClampsWorkerCount(t *testing.T) {
	fx := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := NewPool(fx.processor, 0, logger)

	pool.Start(context.Background())
	pool.Submit(rawMessage(validPayload("CRN-P100")))
	pool.Stop()

	assert.Len(t, fx.trades.trades, 1)
}
