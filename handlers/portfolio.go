package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stocks-simulator/market"
)

type TradeInput struct {
	Symbol string `form:"symbol" binding:"required"`
	Shares string `form:"shares" binding:"required"`
}

type tradeRequest struct {
	quote  market.Quote
	shares int64
}

// bindTrade validates the form and resolves its quote. It renders the apology
// and returns false on any failure.
func (h *Handler) bindTrade(c *gin.Context) (*tradeRequest, bool) {
	var input TradeInput
	if err := c.ShouldBind(&input); err != nil {
		h.apology(c, bindingMessage(err), http.StatusBadRequest)
		return nil, false
	}
	shares, err := parseShares(input.Shares)
	if err != nil {
		h.apology(c, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	q, ok := h.lookup(c, input.Symbol)
	if !ok {
		return nil, false
	}
	return &tradeRequest{quote: *q, shares: shares}, true
}

func (h *Handler) Index(c *gin.Context) {
	p, err := h.Ledger.Portfolio(c.Request.Context(), userID(c), h.Quotes)
	if err != nil {
		h.internalError(c, err)
		return
	}
	h.page(c, http.StatusOK, "index.html", "Portfolio", gin.H{"Portfolio": p})
}

// Refresh persists current quotes as the holdings' last seen prices.
func (h *Handler) Refresh(c *gin.Context) {
	n, err := h.Ledger.RefreshPrices(c.Request.Context(), userID(c), h.Quotes)
	if err != nil {
		h.internalError(c, err)
		return
	}
	h.Log.Debug("prices refreshed", zap.Uint("user_id", userID(c)), zap.Int("holdings", n))
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) BuyForm(c *gin.Context) {
	h.page(c, http.StatusOK, "buy.html", "Buy", nil)
}

func (h *Handler) Buy(c *gin.Context) {
	req, ok := h.bindTrade(c)
	if !ok {
		return
	}
	tx, err := h.Ledger.Buy(c.Request.Context(), userID(c), req.quote, req.shares)
	if err != nil {
		h.tradeError(c, err)
		return
	}
	h.Log.Info("bought",
		zap.Uint("user_id", tx.UserID),
		zap.String("symbol", tx.Symbol),
		zap.Int64("shares", tx.Shares),
		zap.String("price", tx.Price.String()))
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) SellForm(c *gin.Context) {
	holdings, err := h.Ledger.Holdings(c.Request.Context(), userID(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	h.page(c, http.StatusOK, "sell.html", "Sell", gin.H{"Holdings": holdings})
}

func (h *Handler) Sell(c *gin.Context) {
	req, ok := h.bindTrade(c)
	if !ok {
		return
	}
	tx, err := h.Ledger.Sell(c.Request.Context(), userID(c), req.quote, req.shares)
	if err != nil {
		h.tradeError(c, err)
		return
	}
	h.Log.Info("sold",
		zap.Uint("user_id", tx.UserID),
		zap.String("symbol", tx.Symbol),
		zap.Int64("shares", -tx.Shares),
		zap.String("price", tx.Price.String()))
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) History(c *gin.Context) {
	history, err := h.Ledger.History(c.Request.Context(), userID(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	h.page(c, http.StatusOK, "history.html", "History", gin.H{"History": history})
}
