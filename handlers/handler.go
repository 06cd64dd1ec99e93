package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stocks-simulator/accounts"
	"stocks-simulator/ledger"
	"stocks-simulator/market"
	"stocks-simulator/middleware"
	"stocks-simulator/session"
)

// Handler carries the collaborators every route needs.
type Handler struct {
	DB       *gorm.DB
	Accounts *accounts.Service
	Ledger   *ledger.Service
	Quotes   market.Quoter
	Sessions *session.Manager
	Log      *zap.Logger
}

func userID(c *gin.Context) uint {
	return c.MustGet(middleware.UserIDKey).(uint)
}

func loggedIn(c *gin.Context) bool {
	_, ok := c.Get(middleware.UserIDKey)
	return ok
}

func (h *Handler) page(c *gin.Context, code int, name, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["LoggedIn"] = loggedIn(c)
	c.HTML(code, name, data)
}

// apology renders the error page with a user-facing message.
func (h *Handler) apology(c *gin.Context, message string, code int) {
	h.page(c, code, "apology.html", "Apology", gin.H{"Code": code, "Message": message})
}

// internalError logs err and renders a generic 500.
func (h *Handler) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	h.apology(c, "internal server error", http.StatusInternalServerError)
}

var fieldMessages = map[string]string{
	"Username.required":     "must provide username",
	"Password.required":     "must provide password",
	"Confirmation.required": "must confirm password",
	"Confirmation.eqfield":  "passwords must match",
	"Symbol.required":       "must provide symbol",
	"Shares.required":       "must provide number of shares",
}

// bindingMessage turns the first form validation error into an apology message.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
			return msg
		}
		return "invalid " + strings.ToLower(fe.Field())
	}
	return "invalid form"
}

func parseShares(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, ledger.ErrInvalidShares
	}
	return n, nil
}

// lookup resolves a symbol, rendering the apology itself when it fails.
func (h *Handler) lookup(c *gin.Context, symbol string) (*market.Quote, bool) {
	symbol = market.Normalize(symbol)
	if symbol == "" {
		h.apology(c, "must provide symbol", http.StatusBadRequest)
		return nil, false
	}
	q, err := h.Quotes.Lookup(c.Request.Context(), symbol)
	switch {
	case err == nil:
		return q, true
	case errors.Is(err, market.ErrSymbolNotFound):
		h.apology(c, market.ErrSymbolNotFound.Error(), http.StatusBadRequest)
	default:
		h.Log.Warn("quote lookup", zap.String("symbol", symbol), zap.Error(err))
		h.apology(c, market.ErrUnavailable.Error(), http.StatusServiceUnavailable)
	}
	return nil, false
}

// tradeError maps ledger errors onto apology pages.
func (h *Handler) tradeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrNotHeld),
		errors.Is(err, ledger.ErrUserNotFound):
		h.apology(c, err.Error(), http.StatusForbidden)
	case errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrInvalidShares):
		h.apology(c, err.Error(), http.StatusBadRequest)
	default:
		h.internalError(c, err)
	}
}

func (h *Handler) NotFound(c *gin.Context) {
	h.apology(c, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

func (h *Handler) MethodNotAllowed(c *gin.Context) {
	h.apology(c, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

// Health reports whether the database answers.
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
