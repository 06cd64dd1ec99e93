package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stocks-simulator/accounts"
)

type LoginInput struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type RegisterInput struct {
	Username     string `form:"username" binding:"required"`
	Password     string `form:"password" binding:"required"`
	Confirmation string `form:"confirmation" binding:"required,eqfield=Password"`
}

func (h *Handler) forget(c *gin.Context) {
	if err := h.Sessions.End(c.Request.Context(), c.Writer, c.Request); err != nil {
		h.Log.Warn("end session", zap.Error(err))
	}
}

func (h *Handler) RegisterForm(c *gin.Context) {
	h.page(c, http.StatusOK, "register.html", "Register", nil)
}

func (h *Handler) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBind(&input); err != nil {
		h.apology(c, bindingMessage(err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(input.Username) == "" {
		h.apology(c, "must provide username", http.StatusBadRequest)
		return
	}

	user, err := h.Accounts.Register(c.Request.Context(), input.Username, input.Password)
	if errors.Is(err, accounts.ErrUsernameTaken) {
		h.apology(c, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	if err := h.Sessions.Start(c.Request.Context(), c.Writer, user.ID); err != nil {
		h.internalError(c, err)
		return
	}
	h.Log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) LoginForm(c *gin.Context) {
	h.forget(c)
	h.page(c, http.StatusOK, "login.html", "Log In", nil)
}

func (h *Handler) Login(c *gin.Context) {
	h.forget(c)

	var input LoginInput
	if err := c.ShouldBind(&input); err != nil {
		h.apology(c, bindingMessage(err), http.StatusForbidden)
		return
	}

	user, err := h.Accounts.Authenticate(c.Request.Context(), input.Username, input.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		h.apology(c, err.Error(), http.StatusForbidden)
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	if err := h.Sessions.Start(c.Request.Context(), c.Writer, user.ID); err != nil {
		h.internalError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) Logout(c *gin.Context) {
	h.forget(c)
	c.Redirect(http.StatusFound, "/")
}
