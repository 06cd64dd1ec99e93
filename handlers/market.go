package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type QuoteInput struct {
	Symbol string `form:"symbol" binding:"required"`
}

func (h *Handler) QuoteForm(c *gin.Context) {
	h.page(c, http.StatusOK, "quote.html", "Quote", nil)
}

func (h *Handler) Quote(c *gin.Context) {
	var input QuoteInput
	if err := c.ShouldBind(&input); err != nil {
		h.apology(c, bindingMessage(err), http.StatusBadRequest)
		return
	}
	q, ok := h.lookup(c, input.Symbol)
	if !ok {
		return
	}
	h.page(c, http.StatusOK, "quote.html", "Quoted", gin.H{"Quote": q})
}
