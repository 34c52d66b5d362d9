// Package auth provides authenticators for APIs whose sessions are minted
// from long-lived credentials. The Railz API hands out short-lived bearer
// tokens in exchange for a basic-auth request against its login endpoint.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ajitpratap0/railstream/pkg/clients"
	"github.com/ajitpratap0/railstream/pkg/errors"
	jsonpool "github.com/ajitpratap0/railstream/pkg/json"
	"github.com/ajitpratap0/railstream/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultTokenLifetime matches the Railz session token validity window.
const DefaultTokenLifetime = time.Hour

// ShortLivedTokenConfig configures a ShortLivedTokenAuthenticator.
type ShortLivedTokenConfig struct {
	// Source names the connector for metrics labels.
	Source string `json:"source"`

	// TokenURL is the login endpoint that mints session tokens.
	TokenURL string `json:"token_url"`

	// ClientID and SecretKey form the basic-auth credential pair.
	ClientID  string `json:"client_id"`
	SecretKey string `json:"secret_key"`

	// TokenKey is the response field holding the session token.
	// Defaults to "access_token".
	TokenKey string `json:"token_key,omitempty"`

	// TokenLifetime is how long a minted token stays valid. Defaults to
	// DefaultTokenLifetime.
	TokenLifetime time.Duration `json:"token_lifetime,omitempty"`
}

// ShortLivedTokenAuthenticator exchanges long-lived basic-auth credentials
// for short-lived bearer tokens and caches the result for the token's
// lifetime. Concurrent callers share a single refresh.
type ShortLivedTokenAuthenticator struct {
	config     *ShortLivedTokenConfig
	httpClient *clients.HTTPClient
	logger     *zap.Logger

	// now is swappable for tests.
	now func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewShortLivedTokenAuthenticator creates an authenticator. The config must
// carry the token URL and both credential halves.
func NewShortLivedTokenAuthenticator(cfg *ShortLivedTokenConfig, httpClient *clients.HTTPClient, logger *zap.Logger) (*ShortLivedTokenAuthenticator, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "authenticator configuration is required")
	}
	if cfg.TokenURL == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "token URL is required")
	}
	if cfg.ClientID == "" || cfg.SecretKey == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "client id and secret key are required")
	}

	if cfg.TokenKey == "" {
		cfg.TokenKey = "access_token"
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = DefaultTokenLifetime
	}
	if cfg.Source == "" {
		cfg.Source = "railz"
	}

	return &ShortLivedTokenAuthenticator{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With(zap.String("component", "short_lived_token_authenticator")),
		now:        time.Now,
	}, nil
}

// Token returns a valid session token, minting a fresh one when the cached
// token has expired.
func (a *ShortLivedTokenAuthenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Before(a.expiresAt) {
		return a.token, nil
	}

	token, err := a.fetchToken(ctx)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(a.config.Source, "failure").Inc()
		return "", err
	}

	a.token = token
	a.expiresAt = a.now().Add(a.config.TokenLifetime)
	metrics.TokenRefreshes.WithLabelValues(a.config.Source, "success").Inc()

	a.logger.Debug("session token refreshed", zap.Time("expires_at", a.expiresAt))

	return token, nil
}

// AuthHeader returns the Authorization header value for the current token.
func (a *ShortLivedTokenAuthenticator) AuthHeader(ctx context.Context) (string, error) {
	token, err := a.Token(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// Invalidate drops the cached token so the next call mints a fresh one.
// Useful when the API rejects a token before its expected expiry.
func (a *ShortLivedTokenAuthenticator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
	a.expiresAt = time.Time{}
}

func (a *ShortLivedTokenAuthenticator) fetchToken(ctx context.Context) (string, error) {
	credentials := a.config.ClientID + ":" + a.config.SecretKey
	headers := map[string]string{
		"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials)),
	}

	resp, err := a.httpClient.Get(ctx, a.config.TokenURL, headers)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "token request failed")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := clients.NewStatusError(resp)
		if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
			return "", errors.Wrap(statusErr, errors.ErrorTypeAuthentication, "the API rejected the provided credentials")
		}
		return "", errors.Wrap(statusErr, errors.ErrorTypeConnection,
			fmt.Sprintf("token request returned status %d", statusErr.StatusCode))
	}

	defer func() { _ = resp.Body.Close() }()

	var payload map[string]interface{}
	decoder := jsonpool.GetDecoder(resp.Body)
	defer jsonpool.PutDecoder(decoder)
	if err := decoder.Decode(&payload); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "failed to decode token response")
	}

	token, ok := payload[a.config.TokenKey].(string)
	if !ok || token == "" {
		return "", errors.New(errors.ErrorTypeAuthentication,
			fmt.Sprintf("token response is missing the %q field", a.config.TokenKey))
	}

	return token, nil
}

// TokenSource adapts the authenticator to the oauth2.TokenSource interface
// so it can plug into oauth2.NewClient and other oauth2-aware transports.
func (a *ShortLivedTokenAuthenticator) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, auth: a}
}

type tokenSource struct {
	ctx  context.Context
	auth *ShortLivedTokenAuthenticator
}

// Token implements oauth2.TokenSource.
func (ts *tokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.auth.Token(ts.ctx)
	if err != nil {
		return nil, err
	}

	ts.auth.mu.Lock()
	expiry := ts.auth.expiresAt
	ts.auth.mu.Unlock()

	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
