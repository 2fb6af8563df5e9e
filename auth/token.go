// Package auth is the connection gatekeeper. Every websocket connection must
// present a valid token before it is admitted; there are no guest users.
package auth

import (
	"context"
	"time"

	"github.com/esc4n0rx/streamhive/config"
	"github.com/esc4n0rx/streamhive/globals"
	"github.com/esc4n0rx/streamhive/persistence"
	"github.com/esc4n0rx/streamhive/types"
	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru"
)

const verifiedCacheSize = 1024

// cachedToken is a verified token's resolution. Entries are only served
// until expiresAt; afterwards the token goes through full verification
// again, which refuses it.
type cachedToken struct {
	userId    string
	expiresAt time.Time
}

// Gatekeeper verifies connection tokens and resolves them to known users.
// Successful verifications are cached per token string until the token's
// expiry, so reconnects with the same token skip the signature check and the
// provider roundtrip while the token is still valid.
type Gatekeeper struct {
	cfg       *config.Config
	persister persistence.Persister
	verified  *lru.Cache // token -> cachedToken

	now func() time.Time
}

func NewGatekeeper(cfg *config.Config, persister persistence.Persister) (*Gatekeeper, error) {
	cache, err := lru.New(verifiedCacheSize)
	if err != nil {
		return nil, err
	}
	return &Gatekeeper{cfg: cfg, persister: persister, verified: cache, now: time.Now}, nil
}

// Authenticate resolves a raw token to a stored user. With a provider name
// the token is treated as an OIDC ID token, otherwise as a locally issued
// JWT. Any failure, including an expired token, is reported as
// UNAUTHENTICATED; the client must reconnect with a fresh token.
func (g *Gatekeeper) Authenticate(ctx context.Context, token, provider string) (*types.User, error) {
	if token == "" {
		return nil, types.NewError(types.ErrCodeUnauthenticated, "authentication required")
	}

	userId := ""
	if cached, ok := g.verified.Get(token); ok {
		entry := cached.(cachedToken)
		if g.now().Before(entry.expiresAt) {
			userId = entry.userId
		} else {
			g.verified.Remove(token)
		}
	}
	if userId == "" {
		var expiresAt time.Time
		var err error
		if provider != "" {
			userId, expiresAt, err = verifyOIDC(ctx, token, provider, g.cfg)
		} else {
			userId, expiresAt, err = g.verifyJWT(token)
		}
		if err != nil {
			globals.AppLogger.Debug("token verification failed", "error", err)
			return nil, types.NewError(types.ErrCodeUnauthenticated, "invalid token")
		}
		if userId == "" {
			return nil, types.NewError(types.ErrCodeUnauthenticated, "invalid token")
		}
		g.verified.Add(token, cachedToken{userId: userId, expiresAt: expiresAt})
	}

	user := types.User{Id: userId}
	if err := g.persister.GetUser(&user); err != nil {
		return nil, types.NewError(types.ErrCodeUnauthenticated, "unknown user")
	}
	return &user, nil
}

func (g *Gatekeeper) verifyJWT(raw string) (string, time.Time, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(g.cfg.AuthConfig.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return g.now()
	}))
	if err != nil {
		return "", time.Time{}, err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := g.now().Add(g.cfg.AuthConfig.TokenTTL)
	if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	return subject, expiresAt, nil
}

// IssueToken mints a local HS256 JWT for the given user id, valid for the
// configured TTL.
func IssueToken(cfg *config.Config, userId string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userId,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AuthConfig.TokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.AuthConfig.JWTSecret))
}
