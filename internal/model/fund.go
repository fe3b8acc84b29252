package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fund is reference master data used to enrich trades. Rows are maintained
// outside the pipeline; the core only reads them.
type Fund struct {
	FundNumber    string          `gorm:"column:fund_number;primaryKey;size:20" json:"fund_number"`
	FundName      string          `gorm:"column:fund_name;size:100" json:"fund_name"`
	FundTicker    string          `gorm:"column:fund_ticker;size:10" json:"fund_ticker"`
	ISIN          string          `gorm:"column:isin;size:12" json:"isin"`
	Domicile      string          `gorm:"column:domicile;size:50" json:"domicile"`
	BaseCurrency  string          `gorm:"column:base_currency;size:3" json:"base_currency"`
	ManagementFee decimal.Decimal `gorm:"column:management_fee;type:decimal(5,2)" json:"management_fee"`
	NAV           decimal.Decimal `gorm:"column:nav;type:decimal(18,6)" json:"nav"`
	NAVDate       *Date           `gorm:"column:nav_date;type:date" json:"nav_date"`
	Status        string          `gorm:"column:status;size:20" json:"status"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Fund) TableName() string {
	return "funds"
}
