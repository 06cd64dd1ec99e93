package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockPrice is a price snapshot written by an explicit portfolio refresh.
type StockPrice struct {
	ID        uint            `gorm:"primaryKey"`
	Symbol    string          `gorm:"index;size:16;not null"`
	Price     decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Timestamp time.Time       `gorm:"not null"`
}
