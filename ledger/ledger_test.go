package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stocks-simulator/database/dbtest"
	"stocks-simulator/market"
	"stocks-simulator/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quote(symbol, price string) market.Quote {
	return market.Quote{Symbol: symbol, Price: d(price)}
}

func setup(t *testing.T, cash string) (*Service, *gorm.DB, uint) {
	t.Helper()
	db := dbtest.Open(t)
	u := models.User{Username: "trader", PasswordHash: "x", Cash: d(cash)}
	if err := db.Create(&u).Error; err != nil {
		t.Fatal(err)
	}
	return NewService(db), db, u.ID
}

type snapshot struct {
	cash     decimal.Decimal
	holdings []models.Holding
	history  int64
}

func snap(t *testing.T, s *Service, db *gorm.DB, userID uint) snapshot {
	t.Helper()
	cash, err := s.Cash(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	hs, err := s.Holdings(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	var n int64
	db.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&n)
	return snapshot{cash: cash, holdings: hs, history: n}
}

func assertUnchanged(t *testing.T, before, after snapshot) {
	t.Helper()
	if !before.cash.Equal(after.cash) {
		t.Errorf("cash changed %s -> %s", before.cash, after.cash)
	}
	if before.history != after.history {
		t.Errorf("history rows changed %d -> %d", before.history, after.history)
	}
	if len(before.holdings) != len(after.holdings) {
		t.Fatalf("holdings changed %d -> %d", len(before.holdings), len(after.holdings))
	}
	for i := range before.holdings {
		if before.holdings[i].Shares != after.holdings[i].Shares {
			t.Errorf("%s shares changed %d -> %d", before.holdings[i].Symbol, before.holdings[i].Shares, after.holdings[i].Shares)
		}
	}
}

// assertBalanced checks that history sums to the current holding for every symbol.
func assertBalanced(t *testing.T, s *Service, userID uint) {
	t.Helper()
	ctx := context.Background()
	txs, err := s.History(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	sums := map[string]int64{}
	for _, tx := range txs {
		sums[tx.Symbol] += tx.Shares
	}
	hs, err := s.Holdings(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	held := map[string]int64{}
	for _, h := range hs {
		held[h.Symbol] = h.Shares
		if h.Shares <= 0 {
			t.Errorf("holding %s has %d shares", h.Symbol, h.Shares)
		}
	}
	for sym, n := range sums {
		if held[sym] != n {
			t.Errorf("%s: history sums to %d, holding has %d", sym, n, held[sym])
		}
	}
}

func TestBuyThenSellRoundTrip(t *testing.T) {
	s, _, uid := setup(t, "10000")
	ctx := context.Background()

	if _, err := s.Buy(ctx, uid, quote("ACME", "50"), 10); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	cash, _ := s.Cash(ctx, uid)
	if !cash.Equal(d("9500")) {
		t.Errorf("cash after buy = %s, want 9500", cash)
	}
	hs, _ := s.Holdings(ctx, uid)
	if len(hs) != 1 || hs[0].Shares != 10 {
		t.Fatalf("holdings after buy = %+v", hs)
	}

	if _, err := s.Sell(ctx, uid, quote("ACME", "60"), 10); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	cash, _ = s.Cash(ctx, uid)
	if !cash.Equal(d("10100")) {
		t.Errorf("cash after sell = %s, want 10100", cash)
	}
	hs, _ = s.Holdings(ctx, uid)
	if len(hs) != 0 {
		t.Errorf("holding should be removed, got %+v", hs)
	}

	txs, err := s.History(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Fatalf("history = %+v", txs)
	}
	if txs[0].Shares != 10 || !txs[0].Price.Equal(d("50")) || !txs[0].Total.Equal(d("500")) {
		t.Errorf("first row = %+v", txs[0])
	}
	if txs[1].Shares != -10 || !txs[1].Price.Equal(d("60")) || !txs[1].Total.Equal(d("600")) || !txs[1].IsSell() {
		t.Errorf("second row = %+v", txs[1])
	}
	assertBalanced(t, s, uid)
}

func TestBuyMergesHolding(t *testing.T) {
	s, _, uid := setup(t, "10000")
	ctx := context.Background()

	s.Buy(ctx, uid, quote("ACME", "50"), 10)
	if _, err := s.Buy(ctx, uid, quote("ACME", "60"), 10); err != nil {
		t.Fatal(err)
	}

	hs, _ := s.Holdings(ctx, uid)
	if len(hs) != 1 {
		t.Fatalf("holdings = %+v, want one merged row", hs)
	}
	h := hs[0]
	if h.Shares != 20 {
		t.Errorf("shares = %d, want 20", h.Shares)
	}
	if !h.Price.Equal(d("60")) {
		t.Errorf("last seen price = %s, want 60", h.Price)
	}
	if !h.AvgCost.Equal(d("55")) {
		t.Errorf("average cost = %s, want 55", h.AvgCost)
	}
	cash, _ := s.Cash(ctx, uid)
	if !cash.Equal(d("8900")) {
		t.Errorf("cash = %s, want 8900", cash)
	}
	assertBalanced(t, s, uid)
}

func TestPartialSell(t *testing.T) {
	s, _, uid := setup(t, "1000")
	ctx := context.Background()

	s.Buy(ctx, uid, quote("ACME", "10"), 30)
	if _, err := s.Sell(ctx, uid, quote("ACME", "12.5"), 12); err != nil {
		t.Fatal(err)
	}
	hs, _ := s.Holdings(ctx, uid)
	if len(hs) != 1 || hs[0].Shares != 18 {
		t.Fatalf("holdings = %+v", hs)
	}
	if !hs[0].AvgCost.Equal(d("10")) {
		t.Errorf("selling must not change average cost, got %s", hs[0].AvgCost)
	}
	cash, _ := s.Cash(ctx, uid)
	if !cash.Equal(d("850")) {
		t.Errorf("cash = %s, want 850", cash)
	}
	assertBalanced(t, s, uid)
}

func TestRejectedTradesLeaveNoTrace(t *testing.T) {
	tests := []struct {
		name    string
		trade   func(s *Service, uid uint) error
		wantErr error
	}{
		{
			name: "buy beyond cash",
			trade: func(s *Service, uid uint) error {
				_, err := s.Buy(context.Background(), uid, quote("ACME", "100"), 11)
				return err
			},
			wantErr: ErrInsufficientFunds,
		},
		{
			name: "buy zero shares",
			trade: func(s *Service, uid uint) error {
				_, err := s.Buy(context.Background(), uid, quote("ACME", "1"), 0)
				return err
			},
			wantErr: ErrInvalidShares,
		},
		{
			name: "sell more than held",
			trade: func(s *Service, uid uint) error {
				_, err := s.Sell(context.Background(), uid, quote("HELD", "5"), 6)
				return err
			},
			wantErr: ErrInsufficientShares,
		},
		{
			name: "sell unheld symbol",
			trade: func(s *Service, uid uint) error {
				_, err := s.Sell(context.Background(), uid, quote("ACME", "5"), 1)
				return err
			},
			wantErr: ErrNotHeld,
		},
		{
			name: "sell negative shares",
			trade: func(s *Service, uid uint) error {
				_, err := s.Sell(context.Background(), uid, quote("HELD", "5"), -1)
				return err
			},
			wantErr: ErrInvalidShares,
		},
		{
			name: "unknown user",
			trade: func(s *Service, uid uint) error {
				_, err := s.Buy(context.Background(), uid+100, quote("ACME", "1"), 1)
				return err
			},
			wantErr: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, db, uid := setup(t, "1025")
			if _, err := s.Buy(context.Background(), uid, quote("HELD", "5"), 5); err != nil {
				t.Fatal(err)
			}
			before := snap(t, s, db, uid)
			if err := tt.trade(s, uid); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			assertUnchanged(t, before, snap(t, s, db, uid))
		})
	}
}

func TestBuyExactlyAllCash(t *testing.T) {
	s, _, uid := setup(t, "500")
	if _, err := s.Buy(context.Background(), uid, quote("ACME", "50"), 10); err != nil {
		t.Fatalf("buying with exactly enough cash: %v", err)
	}
	cash, _ := s.Cash(context.Background(), uid)
	if !cash.IsZero() {
		t.Errorf("cash = %s, want 0", cash)
	}
}

func TestConcurrentBuysNeverOverdraw(t *testing.T) {
	s, _, uid := setup(t, "10000")
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, poor int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Buy(ctx, uid, quote("ACME", "1000"), 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientFunds):
				poor++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 10 || poor != 2 {
		t.Errorf("succeeded %d, rejected %d; want 10 and 2", ok, poor)
	}
	cash, _ := s.Cash(ctx, uid)
	if !cash.IsZero() {
		t.Errorf("cash = %s, want 0", cash)
	}
	assertBalanced(t, s, uid)
}
