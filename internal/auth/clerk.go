package auth

import (
	"fmt"
	"net/http"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"

	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
)

const clerkSessionCookie = "__session"

// ClerkAuthProvider trusts session tokens issued by Clerk, taken from the
// Authorization header or the session cookie.
type ClerkAuthProvider struct {
	cookieExtractor clerkhttp.AuthorizationOption
}

func NewClerkAuthProvider(clerkKey string) *ClerkAuthProvider {
	clerk.SetKey(clerkKey)

	return &ClerkAuthProvider{
		cookieExtractor: clerkhttp.AuthorizationJWTExtractor(func(r *http.Request) string {
			cookie, err := r.Cookie(clerkSessionCookie)
			if err != nil {
				return ""
			}
			return cookie.Value
		}),
	}
}

func (c *ClerkAuthProvider) Middleware() func(http.Handler) http.Handler {
	return clerkhttp.WithHeaderAuthorization(c.cookieExtractor)
}

func (c *ClerkAuthProvider) UserFromRequest(r *http.Request) (model.UserID, error) {
	claims, ok := clerk.SessionClaimsFromContext(r.Context())
	if !ok {
		return "", fmt.Errorf("no clerk session: %w", domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("clerk session without subject: %w", domain.ErrUnauthorized)
	}
	return model.UserID(claims.Subject), nil
}
