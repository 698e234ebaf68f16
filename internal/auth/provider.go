// Package auth decides who may stage and publish drafts: authentication
// providers, per-page edit tickets and the frozen page policy.
package auth

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
)

var authLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

type AuthProvider interface {
	// Middleware attaches the authenticated user, if any, to the request.
	// It never rejects a request on its own.
	Middleware() func(http.Handler) http.Handler

	// UserFromRequest returns domain.ErrUnauthorized when nobody is signed in.
	UserFromRequest(r *http.Request) (model.UserID, error)
}

// AnonymousUser is the identity every request carries when authentication is disabled.
const AnonymousUser model.UserID = "anonymous"

type AnonymousProvider struct{}

func (AnonymousProvider) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), AnonymousUser)))
		})
	}
}

func (AnonymousProvider) UserFromRequest(*http.Request) (model.UserID, error) {
	return AnonymousUser, nil
}

func userFromContext(r *http.Request) (model.UserID, error) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok || userID == "" {
		return "", fmt.Errorf("no user in request context: %w", domain.ErrUnauthorized)
	}
	return userID, nil
}
