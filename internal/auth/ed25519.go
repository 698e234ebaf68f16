package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/config"
	"github.com/debemdeboas/wikidraft/internal/model"
)

// Ed25519AuthProvider authenticates a single editor who proves possession of
// the private key by signing the current challenge.
type Ed25519AuthProvider struct {
	publicKey  ed25519.PublicKey
	headerName string
	userID     model.UserID

	mu        sync.RWMutex
	challenge []byte
}

func NewEd25519AuthProvider(publicKeyPEM string, headerName string, userID model.UserID) (*Ed25519AuthProvider, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing the public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	publicKey, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("key is not an Ed25519 public key")
	}

	p := &Ed25519AuthProvider{
		publicKey:  publicKey,
		headerName: headerName,
		userID:     userID,
	}
	if err := p.RefreshChallenge(); err != nil {
		return nil, err
	}
	return p, nil
}

// Middleware reads the signature from the configured header, falling back to
// the auth cookie only when the header is absent.
func (p *Ed25519AuthProvider) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := zerolog.Ctx(r.Context())

			var encoded string
			if h := r.Header.Get(p.headerName); h != "" {
				encoded = strings.TrimSpace(h)
			} else if cookie, err := r.Cookie(config.CookieAuthToken); err == nil {
				encoded = cookie.Value
			}

			if encoded != "" {
				signature, err := base64.StdEncoding.DecodeString(encoded)
				if err != nil {
					l.Debug().Err(err).Msg("Failed to decode signature")
				} else if p.Verify(signature) {
					next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), p.userID)))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (p *Ed25519AuthProvider) UserFromRequest(r *http.Request) (model.UserID, error) {
	return userFromContext(r)
}

// Verify reports whether signature signs the current challenge.
func (p *Ed25519AuthProvider) Verify(signature []byte) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ed25519.Verify(p.publicKey, p.challenge, signature)
}

// Challenge returns a copy of the message that needs to be signed.
func (p *Ed25519AuthProvider) Challenge() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]byte(nil), p.challenge...)
}

// RefreshChallenge invalidates every signature issued so far.
func (p *Ed25519AuthProvider) RefreshChallenge() error {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		authLogger.Error().Err(err).Msg("Failed to generate challenge")
		return fmt.Errorf("failed to generate challenge: %w", err)
	}

	p.mu.Lock()
	p.challenge = challenge
	p.mu.Unlock()
	return nil
}

func (p *Ed25519AuthProvider) setChallenge(challenge []byte) {
	p.mu.Lock()
	p.challenge = challenge
	p.mu.Unlock()
}
