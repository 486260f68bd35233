// Package googleoauth exchanges Google refresh tokens for fresh access
// tokens.
package googleoauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/metria/report-cli/pkg/apierr"
)

const serviceName = "google-oauth"

// Token is a refreshed access token with its absolute expiry.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Client defines the token refresh operation used by the ingestor.
type Client interface {
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithTokenURL sets a custom token endpoint (for testing).
func WithTokenURL(u string) Option {
	return func(c *httpClient) { c.tokenURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	clientID     string
	clientSecret string
	tokenURL     string
	http         *http.Client
	now          func() time.Time
}

// NewClient creates a Google OAuth token client.
func NewClient(clientID, clientSecret string, opts ...Option) Client {
	c := &httpClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     "https://oauth2.googleapis.com/token",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, eris.New("googleoauth: client id and secret must be configured to refresh tokens")
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "googleoauth: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "googleoauth: refresh token")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "googleoauth: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.New(serviceName, resp.StatusCode, string(body))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "googleoauth: decode response")
	}

	return &Token{
		AccessToken: parsed.AccessToken,
		ExpiresAt:   c.now().Add(time.Duration(parsed.ExpiresIn) * time.Second),
	}, nil
}
