package auth

import (
	"context"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/esc4n0rx/streamhive/config"
	"github.com/esc4n0rx/streamhive/globals"
)

// verifyOIDC verifies an OIDC ID token against the named configured provider
// and returns the user id taken from the e-mail claim plus the token's
// expiry. An unknown provider or missing configuration yields an empty user
// id, not an error.
func verifyOIDC(ctx context.Context, idToken, providerName string, cfg *config.Config) (string, time.Time, error) {
	if idToken == "" || len(cfg.AuthConfig.OIDCConfigs) == 0 {
		return "", time.Time{}, nil
	}
	var oidcConf *config.OIDCConfig
	for _, c := range cfg.AuthConfig.OIDCConfigs {
		if c.Name == providerName {
			conf := c
			oidcConf = &conf
			break
		}
	}
	if oidcConf == nil {
		globals.AppLogger.Debug("no oidc config found for provider", "provider", providerName)
		return "", time.Time{}, nil
	}
	provider, err := oidc.NewProvider(ctx, oidcConf.ProviderUrl)
	if err != nil {
		return "", time.Time{}, err
	}
	conf := oidc.Config{}
	if oidcConf.ClientId == "" {
		conf.SkipClientIDCheck = true
	} else {
		conf.ClientID = oidcConf.ClientId
	}
	verified, err := provider.Verifier(&conf).Verify(ctx, idToken)
	if err != nil {
		globals.AppLogger.Debug("oidc verification failed", "error", err)
		return "", time.Time{}, err
	}
	claims := struct {
		Email string `json:"email"`
	}{}
	if err := verified.Claims(&claims); err != nil {
		return "", time.Time{}, err
	}
	return claims.Email, verified.Expiry, nil
}
