package middleware

import (
	"net/http"
	"strings"

	"github.com/nkiryanov/cashbackmart/internal/handlers/render"
	"github.com/nkiryanov/cashbackmart/internal/handlers/userctx"
	"github.com/nkiryanov/cashbackmart/internal/models"
)

type authenticator interface {
	Authenticate(access string) (models.Actor, error)
}

// Read access token from 'Authorization: Bearer <token>' header
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func AuthMiddleware(a authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			actor, err := a.Authenticate(token)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Must run after AuthMiddleware
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := userctx.FromContext(r.Context())
		if !ok || !actor.IsAdmin() {
			render.ServiceError(w, "Admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
