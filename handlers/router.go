package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stocks-simulator/ledger"
	"stocks-simulator/middleware"
	"stocks-simulator/templates"
)

// NewRouter wires every page onto a gin engine.
func NewRouter(h *Handler) (*gin.Engine, error) {
	tmpl, err := templates.Parse(template.FuncMap{"usd": ledger.USD})
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.SetHTMLTemplate(tmpl)
	r.Use(
		middleware.AccessLog(h.Log),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			h.Log.Error("panic recovered", zap.Any("error", recovered), zap.String("path", c.Request.URL.Path))
			h.apology(c, "internal server error", http.StatusInternalServerError)
			c.Abort()
		}),
		middleware.NoCache(),
	)
	r.NoRoute(h.NotFound)
	r.NoMethod(h.MethodNotAllowed)

	// Public routes
	r.GET("/healthz", h.Health)
	r.GET("/login", h.LoginForm)
	r.POST("/login", h.Login)
	r.GET("/register", h.RegisterForm)
	r.POST("/register", h.Register)
	r.GET("/logout", h.Logout)

	// Protected routes
	auth := r.Group("/")
	auth.Use(middleware.LoginRequired(h.Sessions, h.Log))
	{
		auth.GET("/", h.Index)
		auth.POST("/refresh", h.Refresh)
		auth.GET("/quote", h.QuoteForm)
		auth.POST("/quote", h.Quote)
		auth.GET("/buy", h.BuyForm)
		auth.POST("/buy", h.Buy)
		auth.GET("/sell", h.SellForm)
		auth.POST("/sell", h.Sell)
		auth.GET("/history", h.History)
	}

	return r, nil
}
