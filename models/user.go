package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered account and its cash balance.
type User struct {
	ID           uint            `gorm:"primaryKey"`
	Username     string          `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string          `gorm:"size:255;not null"`
	Cash         decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "users" }
