package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

type alphaVantageResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// AlphaVantage queries the GLOBAL_QUOTE endpoint.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewAlphaVantage(apiKey, baseURL string, timeout time.Duration) *AlphaVantage {
	return &AlphaVantage{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *AlphaVantage) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	symbol = Normalize(symbol)
	if symbol == "" {
		return nil, ErrSymbolNotFound
	}

	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrUnavailable, resp.Request.URL.Path, resp.Status)
	}

	var result alphaVantageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode quote: %v", ErrUnavailable, err)
	}

	// rate limiting is reported in a 200 body
	if result.Note != "" || result.Information != "" {
		return nil, fmt.Errorf("%w: %s%s", ErrUnavailable, result.Note, result.Information)
	}
	if result.ErrorMessage != "" || result.GlobalQuote.Price == "" {
		return nil, ErrSymbolNotFound
	}

	price, err := decimal.NewFromString(result.GlobalQuote.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q: %v", ErrUnavailable, result.GlobalQuote.Price, err)
	}
	canonical := Normalize(result.GlobalQuote.Symbol)
	if canonical == "" {
		canonical = symbol
	}
	return &Quote{Symbol: canonical, Price: price}, nil
}
