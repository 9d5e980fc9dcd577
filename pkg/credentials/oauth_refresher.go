package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/config"
	"github.com/joblens-inc/joblens-engine/pkg/logging"
)

// ErrProviderNotConfigured means no token endpoint exists for the provider.
var ErrProviderNotConfigured = errors.New("provider has no token endpoint configured")

// HTTPClient interface for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// OAuthRefresher trades refresh tokens for new token pairs via the
// standard OAuth refresh_token grant. One client identity covers all
// providers; the per-provider token endpoint comes from config.
type OAuthRefresher struct {
	cfg        *config.ConnectorsConfig
	httpClient HTTPClient
	logger     *zap.Logger
}

// NewOAuthRefresher creates a refresher from connector config.
func NewOAuthRefresher(cfg *config.ConnectorsConfig, logger *zap.Logger) *OAuthRefresher {
	return &OAuthRefresher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.Named("oauth"),
	}
}

// NewOAuthRefresherWithClient creates a refresher with a custom HTTP client (for testing).
func NewOAuthRefresherWithClient(cfg *config.ConnectorsConfig, httpClient HTTPClient, logger *zap.Logger) *OAuthRefresher {
	return &OAuthRefresher{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("oauth"),
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Refresh performs one refresh_token grant against the provider's token
// endpoint. A zero ExpiresAt on the result means the provider sent no
// expiry; the caller derives one.
func (r *OAuthRefresher) Refresh(ctx context.Context, provider, refreshToken string) (*TokenPair, error) {
	endpoint, ok := r.cfg.TokenURLs[provider]
	if !ok || endpoint == "" {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	if r.cfg.ClientID != "" {
		form.Set("client_id", r.cfg.ClientID)
	}
	if r.cfg.ClientSecret != "" {
		form.Set("client_secret", r.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("token refresh rejected",
			zap.String("provider", provider),
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.Sanitize(string(body))))
		return nil, fmt.Errorf("token refresh failed with status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("refresh response has no access token")
	}

	pair := &TokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		pair.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return pair, nil
}
