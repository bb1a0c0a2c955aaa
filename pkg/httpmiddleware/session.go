package httpmiddleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionConfig configures the browsing session cookie.
type SessionConfig struct {
	CookieName string
	Secure     bool
	MaxAge     time.Duration
}

type sessionKey struct{}

// SessionFromContext returns the browsing session ID, or an empty string.
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// WithSession returns ctx carrying the browsing session ID.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// Session identifies the browsing session by cookie, issuing a new one when
// the cookie is missing or malformed.
func Session(cfg SessionConfig) Middleware {
	if cfg.CookieName == "" {
		cfg.CookieName = "kart_session"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				if u, err := uuid.Parse(c.Value); err == nil {
					id = u.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
			}
			// Refreshed on every request.
			http.SetCookie(w, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cfg.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := WithSession(r.Context(), id)
			ctx = zctx.With(ctx, zap.String("session", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
