package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeops/trademanager/internal/model"
	"github.com/tradeops/trademanager/internal/repository"
	"github.com/tradeops/trademanager/internal/telemetry"
)

var testNow = time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)

type fakeTradeRepo struct {
	trades    map[string]*model.Trade
	createErr error
	existsErr error
}

func newFakeTradeRepo() *fakeTradeRepo {
	return &fakeTradeRepo{trades: make(map[string]*model.Trade)}
}

func (f *fakeTradeRepo) Create(_ context.Context, trade *model.Trade) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.trades[trade.ClientReferenceNumber]; ok {
		return repository.ErrDuplicateTrade
	}
	f.trades[trade.ClientReferenceNumber] = trade
	return nil
}

func (f *fakeTradeRepo) ExistsByClientReference(_ context.Context, ref string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.trades[ref]
	return ok, nil
}

func (f *fakeTradeRepo) FindByClientReference(_ context.Context, ref string) ([]model.Trade, error) {
	if t, ok := f.trades[ref]; ok {
		return []model.Trade{*t}, nil
	}
	return nil, nil
}

func (f *fakeTradeRepo) CountByFund(context.Context) ([]repository.FundTradeCount, error) {
	return nil, nil
}

type fakeExceptionRepo struct {
	excs      []*model.TradeException
	createErr error
}

func (f *fakeExceptionRepo) Create(_ context.Context, exc *model.TradeException) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.excs = append(f.excs, exc)
	return nil
}

func (f *fakeExceptionRepo) ExistsByClientReference(_ context.Context, ref string) (bool, error) {
	for _, exc := range f.excs {
		if exc.ClientReferenceNumber == ref {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeExceptionRepo) FindByClientReference(context.Context, string, *time.Time, *time.Time) ([]model.TradeException, error) {
	return nil, nil
}

func (f *fakeExceptionRepo) FindAll(context.Context) ([]model.TradeException, error) {
	return nil, nil
}

type fakeFundRepo struct {
	funds map[string]*model.Fund
	err   error
}

func newFakeFundRepo() *fakeFundRepo {
	return &fakeFundRepo{funds: map[string]*model.Fund{
		"FUND-A": {FundNumber: "FUND-A", BaseCurrency: "USD"},
	}}
}

func (f *fakeFundRepo) FindByNumber(_ context.Context, fundNumber string) (*model.Fund, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	fund, ok := f.funds[fundNumber]
	return fund, ok, nil
}

func (f *fakeFundRepo) FindAll(context.Context) ([]model.Fund, error) {
	return nil, nil
}

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	messages []published
	err      error
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{topic: topic, payload: payload})
	return nil
}

func (f *fakePublisher) Close() {}

type processorFixture struct {
	processor *Processor
	trades    *fakeTradeRepo
	excs      *fakeExceptionRepo
	funds     *fakeFundRepo
	pub       *fakePublisher
}

func newFixture(t *testing.T) *processorFixture {
	t.Helper()
	fx := &processorFixture{
		trades: newFakeTradeRepo(),
		excs:   &fakeExceptionRepo{},
		funds:  newFakeFundRepo(),
		pub:    &fakePublisher{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	fx.processor = NewProcessor(fx.trades, fx.excs, fx.funds, fx.pub, "trades-out", logger, metrics).
		WithClock(func() time.Time { return testNow })
	return fx
}

func validPayload(ref string) string {
	return fmt.Sprintf(`{
		"clientReferenceNumber": %q,
		"fundNumber": "FUND-A",
		"securityId": "SEC-9",
		"tradeDate": "2025-07-15",
		"settleDate": "2025-07-17",
		"quantity": 100.5,
		"price": 12.34,
		"principal": 1240.17,
		"netAmount": 1240.17
	}`, ref)
}

func rawMessage(payload string) *model.RawMessage {
	return &model.RawMessage{ID: 1, MessageKey: "host-key-1", Payload: payload}
}

func TestProcess_ValidTradePersistedAndPublished(t *testing.T) {
	fx := newFixture(t)

	outcome := fx.processor.Process(context.Background(), rawMessage(validPayload("CRN-1")))

	assert.Equal(t, OutcomePublished, outcome)
	assert.Empty(t, fx.excs.excs)
	require.Len(t, fx.pub.messages, 1)
	assert.Equal(t, "trades-out", fx.pub.messages[0].topic)

	trade, ok := fx.trades.trades["CRN-1"]
	require.True(t, ok)
	assert.Equal(t, "USD", trade.BaseCurrency)
	assert.Equal(t, string(fx.pub.messages[0].payload), trade.OutboundJSON)
}

func TestProcess_OutboundPayloadRoundTrips(t *testing.T) {
	fx := newFixture(t)

	fx.processor.Process(context.Background(), rawMessage(validPayload("CRN-2")))

	require.Len(t, fx.pub.messages, 1)
	var roundTripped model.TradeDetails
	require.NoError(t, json.Unmarshal(fx.pub.messages[0].payload, &roundTripped))

	assert.Equal(t, "CRN-2", roundTripped.ClientReferenceNumber)
	assert.Equal(t, "FUND-A", roundTripped.FundNumber)
	assert.Equal(t, "USD", roundTripped.BaseCurrency)
	require.NotNil(t, roundTripped.TradeDate)
	assert.True(t, roundTripped.TradeDate.Equal(model.DateOf(testNow)))
	require.NotNil(t, roundTripped.Quantity)
	assert.True(t, roundTripped.Quantity.Equal(decimal.RequireFromString("100.5")))
	require.NotNil(t, roundTripped.Principal)
	assert.True(t, roundTripped.Principal.Equal(decimal.RequireFromString("1240.17")))
}

func TestProcess_MalformedPayload(t *testing.T) {
	fx := newFixture(t)

	outcome := fx.processor.Process(context.Background(), rawMessage(`{"clientReferenceNumber": `))

	assert.Equal(t, OutcomeMalformed, outcome)
	assert.Empty(t, fx.trades.trades)
	assert.Empty(t, fx.pub.messages)
	require.Len(t, fx.excs.excs, 1)

	exc := fx.excs.excs[0]
	assert.Equal(t, model.ErrorKindTechnical, exc.ErrorKind)
	assert.Empty(t, exc.ClientReferenceNumber)
	assert.Equal(t, `{"clientReferenceNumber": `, exc.FailedPayload)
	assert.Contains(t, exc.FailureReason, "failed to parse trade details")
}

func TestProcess_BlankReferenceSkips(t *testing.T) {
	fx := newFixture(t)

	outcome := fx.processor.Process(context.Background(),
		rawMessage(`{"fundNumber": "FUND-A", "securityId": "SEC-9"}`))

	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, fx.trades.trades)
	assert.Empty(t, fx.excs.excs)
	assert.Empty(t, fx.pub.messages)
}

func TestProcess_DuplicateInTradeStore(t *testing.T) {
	fx := newFixture(t)
	require.Equal(t, OutcomePublished,
		fx.processor.Process(context.Background(), rawMessage(validPayload("CRN-3"))))

	outcome := fx.processor.Process(context.Background(), rawMessage(validPayload("CRN-3")))

	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Len(t, fx.trades.trades, 1)
	assert.Empty(t, fx.excs.excs)
	assert.Len(t, fx.pub.messages, 1)
}

func TestProcess_DuplicateInExceptionStore(t *testing.T) {
	fx := newFixture(t)
	fx.excs.excs = append(fx.excs.excs, &model.TradeException{
		ClientReferenceNumber: "CRN-4",
		ErrorKind:             model.ErrorKindBusiness,
	})

	outcome := fx.processor.Process(context.Background(), rawMessage(validPayload("CRN-4")))

	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Empty(t, fx.trades.trades)
	assert.Len(t, fx.excs.excs, 1)
}

func TestProcess_ValidationFailureRecordsBusinessException(t *testing.T) {
	fx := newFixture(t)
	payload := strings.Replace(validPayload("CRN-5"), "2025-07-15", "2025-07-14", 1)

	outcome := fx.processor.Process(context.Background(), rawMessage(payload))

	assert.Equal(t, OutcomeInvalid, outcome)
	assert.Empty(t, fx.trades.trades)
	assert.Empty(t, fx.pub.messages)
	require.Len(t, fx.excs.excs, 1)

	exc := fx.excs.excs[0]
	assert.Equal(t, model.ErrorKindBusiness, exc.ErrorKind)
	assert.Equal(t, "CRN-5", exc.ClientReferenceNumber)
	assert.Contains(t, exc.FailureReason, "not the current date")
}

func TestProcess_PrincipalMismatchRecordsBusinessException(t *testing.T) {
	fx := newFixture(t)
	payload := strings.Replace(validPayload("CRN-6"), "1240.17", "1234.56", 1)

	outcome := fx.processor.Process(context.Background(), rawMessage(payload))

	assert.Equal(t, OutcomeInvalid, outcome)
	require.Len(t, fx.excs.excs, 1)
	assert.Contains(t, fx.excs.excs[0].FailureReason, "does not equal quantity * price")
}

func TestProcess_UnknownFundIsBusinessFailure(t *testing.T) {
	fx := newFixture(t)
	payload := strings.Replace(validPayload("CRN-7"), "FUND-A", "FUND-Z", 1)

	outcome := fx.processor.Process(context.Background(), rawMessage(payload))

	assert.Equal(t, OutcomeInvalid, outcome)
	require.Len(t, fx.excs.excs, 1)
	assert.Equal(t, model.ErrorKindBusiness, fx.excs.excs[0].ErrorKind)
	assert.Equal(t, "Fund not found", fx.excs.excs[0].FailureReason)
}

func TestProcess_UniqueConstraintIsAuthoritativeDuplicateSignal(t *testing.T) {
	fx := newFixture(t)
	// Dedupe check passes but the insert loses the race.
	fx.trades.createErr = repository.ErrDuplicateTrade

	outcome := fx.processor.Process(context.Background(), rawMessage(validPayload("CRN-8")))

	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Empty(t, fx.excs.excs)
	assert.Empty(t, fx.pub.messages)
}

func TestProcess_InfraFailureRecordsTechnicalException(t *testing.T) {
	fx := newFixture(t)
	fx.trades.createErr = errors.New("connection reset")

	outcome := fx.processor.Process(context.Background(), rawMessage(validPayload("CRN-9")))

	assert.Equal(t, OutcomeMalformed, outcome)
	require.Len(t, fx.excs.excs, 1)
	assert.Equal(t, model.ErrorKindTechnical, fx.excs.excs[0].ErrorKind)
	assert.Contains(t, fx.excs.excs[0].FailureReason, "failed to persist trade")
}

func TestProcess_LongFailureReasonTruncated(t *testing.T) {
	fx := newFixture(t)
	fx.funds.err = errors.New(strings.Repeat("x", 2000))

	outcome := fx.processor.Process(context.Background(), rawMessage(validPayload("CRN-10")))

	assert.Equal(t, OutcomeMalformed, outcome)
	require.Len(t, fx.excs.excs, 1)
	reason := fx.excs.excs[0].FailureReason
	assert.Len(t, reason, model.FailureReasonMaxLen)
	assert.True(t, strings.HasSuffix(reason, "..."))
}

func TestProcess_ExceptionStoreFailureIsSwallowed(t *testing.T) {
	fx := newFixture(t)
	fx.excs.createErr = errors.New("exception store down")

	outcome := fx.processor.Process(context.Background(), rawMessage(`not json at all`))

	// The failure is logged and dropped; the message still reaches its
	// terminal state.
	assert.Equal(t, OutcomeMalformed, outcome)
	assert.Empty(t, fx.excs.excs)
}

func TestProcess_PublishFailureDoesNotUndoPersistence(t *testing.T) {
	fx := newFixture(t)
	fx.pub.err = errors.New("broker unavailable")

	outcome := fx.processor.Process(context.Background(), rawMessage(validPayload("CRN-11")))

	assert.Equal(t, OutcomePublished, outcome)
	assert.Len(t, fx.trades.trades, 1)
	assert.Empty(t, fx.excs.excs)
}
