// Package ledger keeps cash, holdings and history consistent across trades.
//
// Every trade runs in a single transaction with the user row locked, so the
// holding update, the history row and the cash movement commit together.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stocks-simulator/database"
	"stocks-simulator/market"
	"stocks-simulator/models"
)

var (
	ErrInvalidShares      = errors.New("must be a positive whole number")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNotHeld            = errors.New("stock is not in portfolio")
	ErrInsufficientShares = errors.New("quantity of shares are insufficient")
	ErrUserNotFound       = errors.New("user not found")
)

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var u models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return &u, nil
}

func lockHolding(tx *gorm.DB, userID uint, symbol string) (*models.Holding, error) {
	var h models.Holding
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load holding %s: %w", symbol, err)
	}
	return &h, nil
}

func setCash(tx *gorm.DB, userID uint, cash decimal.Decimal) error {
	return tx.Model(&models.User{}).Where("id = ?", userID).Update("cash", cash).Error
}

// Buy debits price×shares from the user's cash, adds the shares to the holding
// and appends a history row. The holding's price becomes the execution price
// and AvgCost the share-weighted mean cost.
func (s *Service) Buy(ctx context.Context, userID uint, q market.Quote, shares int64) (*models.Transaction, error) {
	if shares <= 0 {
		return nil, ErrInvalidShares
	}
	cost := q.Price.Mul(decimal.NewFromInt(shares))

	var record *models.Transaction
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if cost.GreaterThan(user.Cash) {
			return ErrInsufficientFunds
		}

		h, err := lockHolding(tx, userID, q.Symbol)
		if err != nil {
			return err
		}
		if h == nil {
			h = &models.Holding{
				UserID:  userID,
				Symbol:  q.Symbol,
				Shares:  shares,
				Price:   q.Price,
				AvgCost: q.Price,
			}
			if err := tx.Create(h).Error; err != nil {
				return fmt.Errorf("create holding: %w", err)
			}
		} else {
			total := h.Shares + shares
			h.AvgCost = h.AvgCost.Mul(decimal.NewFromInt(h.Shares)).Add(cost).
				Div(decimal.NewFromInt(total)).Round(4)
			h.Shares = total
			h.Price = q.Price
			if err := tx.Save(h).Error; err != nil {
				return fmt.Errorf("update holding: %w", err)
			}
		}

		record = &models.Transaction{
			UserID:    userID,
			Symbol:    q.Symbol,
			Shares:    shares,
			Price:     q.Price,
			Total:     cost,
			Timestamp: s.now(),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}
		return setCash(tx, userID, user.Cash.Sub(cost))
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Sell removes shares from the holding, deleting it at zero, credits
// price×shares and appends a history row with negative shares and the
// unsigned proceeds as its total.
func (s *Service) Sell(ctx context.Context, userID uint, q market.Quote, shares int64) (*models.Transaction, error) {
	if shares <= 0 {
		return nil, ErrInvalidShares
	}
	revenue := q.Price.Mul(decimal.NewFromInt(shares))

	var record *models.Transaction
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		h, err := lockHolding(tx, userID, q.Symbol)
		if err != nil {
			return err
		}
		if h == nil {
			return ErrNotHeld
		}
		if shares > h.Shares {
			return ErrInsufficientShares
		}

		if h.Shares == shares {
			if err := tx.Delete(h).Error; err != nil {
				return fmt.Errorf("delete holding: %w", err)
			}
		} else {
			h.Shares -= shares
			h.Price = q.Price
			if err := tx.Save(h).Error; err != nil {
				return fmt.Errorf("update holding: %w", err)
			}
		}

		record = &models.Transaction{
			UserID:    userID,
			Symbol:    q.Symbol,
			Shares:    -shares,
			Price:     q.Price,
			Total:     revenue,
			Timestamp: s.now(),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}
		return setCash(tx, userID, user.Cash.Add(revenue))
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
