package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
)

const DefaultTicketTTL = 2 * time.Hour

// Tickets issues and checks the edit tickets an editor must send back with
// every save, publish or delete. A ticket is bound to one user and one page.
type Tickets struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTickets(secret []byte, ttl time.Duration) (*Tickets, error) {
	if len(secret) < 16 {
		return nil, errors.New("ticket secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &Tickets{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed ticket for user editing key.
func (t *Tickets) Issue(user model.UserID, key model.PageKey) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   string(user),
		Audience:  jwt.ClaimStrings{string(key)},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		ID:        uuid.NewString(),
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign ticket: %w", err)
	}
	return signed, nil
}

// Verify returns domain.ErrForbidden unless ticket was issued by t for user
// and key and has not expired.
func (t *Tickets) Verify(ticket string, user model.UserID, key model.PageKey) error {
	if ticket == "" {
		return fmt.Errorf("missing ticket: %w", domain.ErrForbidden)
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(ticket, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(string(key)),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return fmt.Errorf("ticket for %q: %w: %v", key, domain.ErrForbidden, err)
	}

	if claims.Subject != string(user) {
		return fmt.Errorf("ticket for %q issued to another user: %w", key, domain.ErrForbidden)
	}
	return nil
}
