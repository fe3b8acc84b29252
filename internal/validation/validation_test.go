package validation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeops/trademanager/internal/model"
)

var testNow = time.Date(2025, 7, 15, 14, 30, 0, 0, time.UTC)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func date(d model.Date) *model.Date {
	return &d
}

func validTrade() *model.TradeDetails {
	today := model.DateOf(testNow)
	return &model.TradeDetails{
		ClientReferenceNumber: "CRN-1001",
		FundNumber:            "FUND-A",
		SecurityID:            "SEC-1",
		TradeDate:             date(today),
		SettleDate:            date(today.AddDays(2)),
		Quantity:              dec("100.5"),
		Price:                 dec("12.34"),
		Principal:             dec("1240.17"),
		NetAmount:             dec("1240.17"),
	}
}

func TestValidate_AdmissibleTrade(t *testing.T) {
	violations := Validate(validTrade(), testNow)
	assert.Empty(t, violations)
}

func TestValidate_TradeDateNotToday(t *testing.T) {
	trade := validTrade()
	trade.TradeDate = date(model.DateOf(testNow).AddDays(-1))

	violations := Validate(trade, testNow)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "not the current date")
	assert.Contains(t, violations[0], "2025-07-14")
	assert.Contains(t, violations[0], "2025-07-15")
}

func TestValidate_SettleDateToday(t *testing.T) {
	trade := validTrade()
	trade.SettleDate = date(model.DateOf(testNow))

	violations := Validate(trade, testNow)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "not in the future")
}

func TestValidate_SettleDateInPast(t *testing.T) {
	trade := validTrade()
	trade.SettleDate = date(model.DateOf(testNow).AddDays(-3))

	violations := Validate(trade, testNow)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "not in the future")
}

func TestValidate_PrincipalMismatch(t *testing.T) {
	trade := validTrade()
	trade.Principal = dec("1234.56")

	violations := Validate(trade, testNow)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "does not equal quantity * price")
	assert.Contains(t, violations[0], "1240.17")
	assert.Contains(t, violations[0], "1234.56")
}

func TestValidate_PrincipalComparedAtScaleFour(t *testing.T) {
	trade := validTrade()
	// 3 * 0.33335 = 1.00005, which rounds half-up to 1.0001 at scale 4.
	trade.Quantity = dec("3")
	trade.Price = dec("0.33335")
	trade.Principal = dec("1.0001")

	assert.Empty(t, Validate(trade, testNow))

	trade.Principal = dec("1.0000")
	violations := Validate(trade, testNow)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "does not equal quantity * price")
}

func TestValidate_MissingFieldsAreViolations(t *testing.T) {
	trade := validTrade()
	trade.TradeDate = nil
	trade.SettleDate = nil
	trade.Quantity = nil

	violations := Validate(trade, testNow)
	require.Len(t, violations, 3)
	assert.Contains(t, violations[0], "Trade date is missing")
	assert.Contains(t, violations[1], "Settlement date is missing")
	assert.Contains(t, violations[2], "Quantity, price, or principal is missing")
}

func TestValidate_AccumulatesAllViolations(t *testing.T) {
	trade := validTrade()
	trade.TradeDate = date(model.DateOf(testNow).AddDays(-1))
	trade.SettleDate = date(model.DateOf(testNow))
	trade.Principal = dec("999")

	violations := Validate(trade, testNow)
	assert.Len(t, violations, 3)
}
