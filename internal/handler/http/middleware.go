package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/hlog"
	"github.com/vasiliy-maslov/boutique-api/internal/admin"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*admin.User, error)
}

type adminKey struct{}

// RequireAdmin rejects requests without a valid admin bearer token.
func RequireAdmin(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)

			u, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				hlog.FromRequest(r).Warn().Err(err).Str("path", r.URL.Path).Msg("handler: admin access rejected")
				respondWithServiceError(w, err, "Failed to authenticate")
				return
			}

			ctx := context.WithValue(r.Context(), adminKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminFromContext returns the admin authenticated by RequireAdmin.
func AdminFromContext(ctx context.Context) (*admin.User, bool) {
	u, ok := ctx.Value(adminKey{}).(*admin.User)
	return u, ok
}

// logAdminAction records which admin changed the resource id.
func logAdminAction(r *http.Request, action string, id uuid.UUID) {
	event := hlog.FromRequest(r).Info().Str("action", action).Stringer("resource_id", id)
	if u, ok := AdminFromContext(r.Context()); ok {
		event = event.Str("admin", u.Username)
	}
	event.Msg("handler: admin action")
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
