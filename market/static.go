package market

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Static serves quotes from a fixed price table.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStatic(prices map[string]decimal.Decimal) *Static {
	s := &Static{prices: make(map[string]decimal.Decimal, len(prices))}
	for sym, p := range prices {
		s.prices[Normalize(sym)] = p
	}
	return s
}

// Set changes the price served for symbol.
func (s *Static) Set(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[Normalize(symbol)] = price
}

func (s *Static) Lookup(_ context.Context, symbol string) (*Quote, error) {
	symbol = Normalize(symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[symbol]
	if !ok {
		return nil, ErrSymbolNotFound
	}
	return &Quote{Symbol: symbol, Price: p}, nil
}
