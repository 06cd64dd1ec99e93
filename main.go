package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/kr/pretty"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stocks-simulator/accounts"
	"stocks-simulator/config"
	"stocks-simulator/database"
	"stocks-simulator/handlers"
	"stocks-simulator/ledger"
	"stocks-simulator/market"
	"stocks-simulator/session"
)

func main() {
	cfg, err := config.Load("conf")
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger, err := config.NewLogger(cfg.Server)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer logger.Sync()
	logger.Debug("configuration", zap.String("config", pretty.Sprint(cfg.Redacted())))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := config.OpenDB(cfg.Database, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	rdb, err := config.OpenRedis(cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	sessions, err := newSessions(cfg.Session, rdb)
	if err != nil {
		return err
	}
	startingCash, err := cfg.StartingCash()
	if err != nil {
		return err
	}

	h := &handlers.Handler{
		DB:       db,
		Accounts: accounts.NewService(db, startingCash),
		Ledger:   ledger.NewService(db),
		Quotes:   newQuoter(cfg.Quote, rdb, logger),
		Sessions: sessions,
		Log:      logger,
	}

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := handlers.NewRouter(h)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newSessions(cfg config.Session, rdb *redis.Client) (*session.Manager, error) {
	var store session.Store = session.NewMemoryStore()
	if cfg.Store == "redis" {
		store = session.NewRedisStore(rdb)
	}
	return session.NewManager(store, session.Options{
		CookieName: cfg.CookieName,
		Secure:     cfg.Secure,
		TTL:        cfg.TTL,
		Secret:     []byte(cfg.Secret),
	})
}

// newQuoter stacks the provider behind the redis cache (when configured) and a circuit breaker.
func newQuoter(cfg config.Quote, rdb *redis.Client, logger *zap.Logger) market.Quoter {
	var q market.Quoter
	switch cfg.Provider {
	case "static":
		q = market.NewStatic(map[string]decimal.Decimal{
			"AAPL": decimal.RequireFromString("189.84"),
			"MSFT": decimal.RequireFromString("410.34"),
			"NFLX": decimal.RequireFromString("605.88"),
			"GOOG": decimal.RequireFromString("141.80"),
		})
	default:
		q = market.NewAlphaVantage(cfg.APIKey, cfg.BaseURL, cfg.Timeout)
	}
	if rdb != nil {
		q = market.NewCache(q, rdb, cfg.CacheTTL, logger.Named("quote-cache"))
	}
	return market.NewBreaker(q, cfg.BreakerThreshold, cfg.BreakerReset, logger.Named("quote"))
}
