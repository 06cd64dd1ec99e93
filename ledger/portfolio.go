package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stocks-simulator/database"
	"stocks-simulator/market"
	"stocks-simulator/models"
)

// Position is a holding valued at the current quote.
type Position struct {
	Symbol  string
	Shares  int64
	Price   decimal.Decimal
	Value   decimal.Decimal
	AvgCost decimal.Decimal
	Gain    decimal.Decimal
	// Stale is set when no fresh quote was available and Price is the last seen one.
	Stale bool
}

type Portfolio struct {
	Positions []Position
	Cash      decimal.Decimal
	Total     decimal.Decimal
}

// Cash returns the user's cash balance.
func (s *Service) Cash(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var u models.User
	err := s.db.WithContext(ctx).Select("cash").First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load cash: %w", err)
	}
	return u.Cash, nil
}

// Holdings lists the user's positions ordered by symbol.
func (s *Service) Holdings(ctx context.Context, userID uint) ([]models.Holding, error) {
	var hs []models.Holding
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("symbol").Find(&hs).Error
	if err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}
	return hs, nil
}

// Portfolio values every holding at a fresh quote and sums them with cash.
// It never writes; see RefreshPrices.
func (s *Service) Portfolio(ctx context.Context, userID uint, quotes market.Quoter) (*Portfolio, error) {
	cash, err := s.Cash(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &Portfolio{Cash: cash, Total: cash, Positions: make([]Position, 0, len(holdings))}
	for _, h := range holdings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pos := Position{Symbol: h.Symbol, Shares: h.Shares, Price: h.Price, AvgCost: h.AvgCost}
		if q, err := quotes.Lookup(ctx, h.Symbol); err == nil {
			pos.Price = q.Price
		} else {
			pos.Stale = true
		}
		n := decimal.NewFromInt(h.Shares)
		pos.Value = pos.Price.Mul(n)
		pos.Gain = pos.Value.Sub(h.AvgCost.Mul(n))
		p.Total = p.Total.Add(pos.Value)
		p.Positions = append(p.Positions, pos)
	}
	return p, nil
}

// RefreshPrices stores a fresh quote as the last seen price of each holding and
// appends a stock_prices snapshot per symbol whose price moved since its latest
// snapshot. Symbols whose quote fails are left untouched. It returns the number
// of holdings refreshed.
func (s *Service) RefreshPrices(ctx context.Context, userID uint, quotes market.Quoter) (int, error) {
	holdings, err := s.Holdings(ctx, userID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	snapshots := make([]models.StockPrice, 0, len(holdings))
	for _, h := range holdings {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		q, err := quotes.Lookup(ctx, h.Symbol)
		if err != nil {
			continue
		}
		snapshots = append(snapshots, models.StockPrice{Symbol: h.Symbol, Price: q.Price, Timestamp: now})
	}
	if len(snapshots) == 0 {
		return 0, nil
	}

	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		moved := make([]models.StockPrice, 0, len(snapshots))
		for _, sp := range snapshots {
			err := tx.Model(&models.Holding{}).
				Where("user_id = ? AND symbol = ?", userID, sp.Symbol).
				Update("price", sp.Price).Error
			if err != nil {
				return fmt.Errorf("refresh %s: %w", sp.Symbol, err)
			}
			same, err := sameAsLatest(tx, sp)
			if err != nil {
				return err
			}
			if !same {
				moved = append(moved, sp)
			}
		}
		if len(moved) == 0 {
			return nil
		}
		return database.CreateInBatches(tx, moved, 100)
	})
	if err != nil {
		return 0, err
	}
	return len(snapshots), nil
}

func sameAsLatest(tx *gorm.DB, sp models.StockPrice) (bool, error) {
	var last models.StockPrice
	err := tx.Where("symbol = ?", sp.Symbol).Order("timestamp desc, id desc").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("latest price %s: %w", sp.Symbol, err)
	}
	return last.Price.Equal(sp.Price), nil
}

// History returns every transaction of the user, oldest first.
func (s *Service) History(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp, id").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return txs, nil
}
