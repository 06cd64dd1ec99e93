package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a user's current position in one symbol.
// Rows are hard-deleted once Shares reaches zero.
type Holding struct {
	ID        uint            `gorm:"primaryKey"`
	UserID    uint            `gorm:"uniqueIndex:idx_portfolio_user_symbol;not null"`
	Symbol    string          `gorm:"uniqueIndex:idx_portfolio_user_symbol;size:16;not null"`
	Shares    int64           `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:numeric(18,4);not null"` // last seen
	AvgCost   decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	UpdatedAt time.Time
}

func (Holding) TableName() string { return "portfolio" }

// Transaction is an append-only history row. Shares is negative for sells;
// Total is always price × |shares|.
type Transaction struct {
	ID        uint            `gorm:"primaryKey"`
	UserID    uint            `gorm:"index;not null"`
	Symbol    string          `gorm:"size:16;not null"`
	Shares    int64           `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Total     decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Timestamp time.Time       `gorm:"index;not null"`
}

func (Transaction) TableName() string { return "history" }

// IsSell reports whether the row records a sale.
func (t Transaction) IsSell() bool { return t.Shares < 0 }
