package main

import (
	"crypto/rand"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/auth"
	"github.com/debemdeboas/wikidraft/internal/config"
	"github.com/debemdeboas/wikidraft/internal/model"
)

func newAuthProvider(cfg *config.Config) (auth.AuthProvider, error) {
	a := cfg.Features.Authentication
	if !a.Enabled {
		return auth.AnonymousProvider{}, nil
	}

	switch a.Type {
	case config.AuthTypeClerk:
		key := os.Getenv(config.EnvClerkKey)
		if key == "" {
			return nil, errors.New(config.EnvClerkKey + " is not set")
		}
		return auth.NewClerkAuthProvider(key), nil
	default:
		return auth.NewEd25519AuthProvider(os.Getenv(config.EnvEd25519PubKey), "Authorization", model.UserID(a.UserID))
	}
}

// ticketSecret reads the ticket signing key. Without one a random key is
// used, so tickets do not survive a restart.
func ticketSecret(log zerolog.Logger) []byte {
	if secret := os.Getenv(config.EnvTicketSecret); secret != "" {
		return []byte(secret)
	}

	log.Warn().Msg(config.EnvTicketSecret + " not set, using a random key; open editors must reload after a restart")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate ticket secret")
	}
	return secret
}
