// Package market looks up stock quotes from an external provider.
package market

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrSymbolNotFound = errors.New("stock symbol not found")
	ErrUnavailable    = errors.New("quote service unavailable")
)

// Quote is the current price of a ticker under its canonical symbol.
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// Quoter returns the current quote for symbol, or ErrSymbolNotFound.
type Quoter interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}

// Normalize canonicalizes user input into a ticker symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
