package auth

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/config"
)

// RegisterEd25519Routes registers the challenge and verify endpoints.
func RegisterEd25519Routes(mux *http.ServeMux, provider *Ed25519AuthProvider) {
	mux.HandleFunc(config.PathAuthChallenge, Ed25519ChallengeHandler(provider))
	mux.HandleFunc(config.PathAuthVerify, Ed25519VerifyHandler(provider))
}

// Ed25519ChallengeHandler serves the current challenge on GET and rotates it on POST.
func Ed25519ChallengeHandler(provider *Ed25519AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := zerolog.Ctx(r.Context())

		switch r.Method {
		case http.MethodGet:
		case http.MethodPost:
			if err := provider.RefreshChallenge(); err != nil {
				l.Error().Err(err).Msg("Failed to refresh challenge")
				http.Error(w, config.ErrRefreshChallengeFmt, http.StatusInternalServerError)
				return
			}
		default:
			http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set(config.HCType, config.CTypeJSON)
		json.NewEncoder(w).Encode(map[string]string{
			"challenge": base64.StdEncoding.EncodeToString(provider.Challenge()),
		})
	}
}

// Ed25519VerifyHandler checks the signature in the auth header and stores it in
// a cookie so browser requests stay authenticated.
func Ed25519VerifyHandler(provider *Ed25519AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := zerolog.Ctx(r.Context())

		if r.Method != http.MethodPost {
			http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
			return
		}

		authHeader := r.Header.Get(provider.headerName)
		if authHeader == "" {
			http.Error(w, config.ErrAuthHeaderRequired, http.StatusUnauthorized)
			return
		}

		signature, err := base64.StdEncoding.DecodeString(strings.TrimSpace(authHeader))
		if err != nil {
			l.Warn().Err(err).Msg("Failed to decode signature")
			http.Error(w, config.ErrInvalidSignatureFormat, http.StatusUnauthorized)
			return
		}

		if !provider.Verify(signature) {
			l.Warn().Msg("Signature verification failed")
			http.Error(w, config.ErrInvalidSignature, http.StatusUnauthorized)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     config.CookieAuthToken,
			Value:    base64.StdEncoding.EncodeToString(signature),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			Secure:   r.TLS != nil,
			MaxAge:   3600 * 24,
		})

		w.WriteHeader(http.StatusOK)
	}
}
