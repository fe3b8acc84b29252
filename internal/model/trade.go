package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeDetails is the transient parsed view of an inbound confirmation
// payload. Numeric and date fields are pointers so that absent fields are
// distinguishable from zero values; validation turns absence into
// violations instead of faults.
type TradeDetails struct {
	ClientReferenceNumber string           `json:"clientReferenceNumber,omitempty"`
	FundNumber            string           `json:"fundNumber,omitempty"`
	SecurityID            string           `json:"securityId,omitempty"`
	TradeDate             *Date            `json:"tradeDate,omitempty"`
	SettleDate            *Date            `json:"settleDate,omitempty"`
	Quantity              *decimal.Decimal `json:"quantity,omitempty"`
	Price                 *decimal.Decimal `json:"price,omitempty"`
	Principal             *decimal.Decimal `json:"principal,omitempty"`
	NetAmount             *decimal.Decimal `json:"netAmount,omitempty"`
	BaseCurrency          string           `json:"baseCurrency,omitempty"`
}

// Trade is a validated, enriched trade. Created exactly once per client
// reference number; the unique index is the final duplicate arbiter.
type Trade struct {
	ID                    int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ClientReferenceNumber string          `gorm:"column:client_reference_number;uniqueIndex;not null" json:"client_reference_number"`
	FundNumber            string          `gorm:"column:fund_number" json:"fund_number"`
	SecurityID            string          `gorm:"column:security_id" json:"security_id"`
	TradeDate             *Date           `gorm:"column:trade_date;type:date" json:"trade_date"`
	SettleDate            *Date           `gorm:"column:settle_date;type:date" json:"settle_date"`
	Quantity              decimal.Decimal `gorm:"column:quantity;type:decimal(18,4)" json:"quantity"`
	Price                 decimal.Decimal `gorm:"column:price;type:decimal(18,4)" json:"price"`
	Principal             decimal.Decimal `gorm:"column:principal;type:decimal(18,4)" json:"principal"`
	NetAmount             decimal.Decimal `gorm:"column:net_amount;type:decimal(18,4)" json:"net_amount"`
	BaseCurrency          string          `gorm:"column:base_currency" json:"base_currency"`
	OutboundJSON          string          `gorm:"column:outbound_json" json:"outbound_json"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Trade) TableName() string {
	return "trade_details"
}
