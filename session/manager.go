package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type Options struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
	// Secret signs the cookie. A random secret is generated when empty.
	Secret []byte
}

// Manager issues and resolves session cookies. The cookie carries a signed
// token naming a server-side session; the user id never leaves the server.
type Manager struct {
	store Store
	opts  Options
}

func NewManager(store Store, opts Options) (*Manager, error) {
	if opts.CookieName == "" {
		opts.CookieName = "session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if len(opts.Secret) == 0 {
		opts.Secret = make([]byte, 32)
		if _, err := rand.Read(opts.Secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return &Manager{store: store, opts: opts}, nil
}

// Start creates a session for userID and sets the cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, userID uint) error {
	id := uuid.NewString()
	if err := m.store.Set(ctx, id, userID, m.opts.TTL); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		SessionID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.opts.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	signed, err := tok.SignedString(m.opts.Secret)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	// no Expires: the cookie lives as long as the browser session
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// UserID resolves the logged in user for r, or ErrNotFound.
func (m *Manager) UserID(ctx context.Context, r *http.Request) (uint, error) {
	id, err := m.sessionID(r)
	if err != nil {
		return 0, err
	}
	return m.store.Get(ctx, id)
}

// End forgets the current session, if any, and clears the cookie.
func (m *Manager) End(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var err error
	if id, idErr := m.sessionID(r); idErr == nil {
		err = m.store.Delete(ctx, id)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return err
}

func (m *Manager) sessionID(r *http.Request) (string, error) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return "", ErrNotFound
	}
	token, err := jwt.ParseWithClaims(c.Value, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.opts.Secret, nil
	})
	if err != nil {
		return "", errors.Join(ErrNotFound, err)
	}
	cl, ok := token.Claims.(*claims)
	if !ok || !token.Valid || cl.SessionID == "" {
		return "", ErrNotFound
	}
	return cl.SessionID, nil
}
