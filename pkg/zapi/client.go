// Package zapi provides a client for the Z-API WhatsApp gateway.
package zapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/metria/report-cli/pkg/apierr"
)

const serviceName = "z-api"

// Client defines the WhatsApp operations used by the deliverer.
type Client interface {
	// CheckHealth reports whether the WhatsApp session is connected.
	CheckHealth(ctx context.Context) (bool, error)
	// SendDocument sends a PDF document with a caption. The phone number is
	// normalized to digits only before sending.
	SendDocument(ctx context.Context, phone, caption, documentURL string) error
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	instanceID    string
	token         string
	securityToken string
	baseURL       string
	http          *http.Client
}

// NewClient creates a Z-API client for one WhatsApp instance.
func NewClient(instanceID, token, securityToken string, opts ...Option) Client {
	c := &httpClient{
		instanceID:    instanceID,
		token:         token,
		securityToken: securityToken,
		baseURL:       "https://api.z-api.io",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizePhone strips every non-digit character.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *httpClient) endpoint(path string) string {
	return fmt.Sprintf("%s/instances/%s/token/%s/%s", c.baseURL, c.instanceID, c.token, path)
}

func (c *httpClient) setHeaders(req *http.Request) {
	if c.securityToken != "" {
		req.Header.Set("Client-Token", c.securityToken)
	}
}

func (c *httpClient) CheckHealth(ctx context.Context) (bool, error) {
	if c.instanceID == "" || c.token == "" {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("status"), nil)
	if err != nil {
		return false, eris.Wrap(err, "zapi: create request")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, eris.Wrap(err, "zapi: check status")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var parsed struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, eris.Wrap(err, "zapi: decode status")
	}
	if parsed.Error != "" {
		return false, nil
	}
	return parsed.Connected, nil
}

func (c *httpClient) SendDocument(ctx context.Context, phone, caption, documentURL string) error {
	if c.instanceID == "" || c.token == "" {
		return eris.New("zapi: not configured (instance id and token required)")
	}

	payload, err := json.Marshal(map[string]string{
		"phone":    NormalizePhone(phone),
		"document": documentURL,
		"fileName": "Relatorio_Metria.pdf",
		"caption":  caption,
	})
	if err != nil {
		return eris.Wrap(err, "zapi: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("send-document/pdf"), bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "zapi: create request")
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "zapi: send document")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "zapi: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return apierr.New(serviceName, resp.StatusCode, string(body))
	}

	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return eris.Wrap(err, "zapi: decode response")
	}
	if parsed.Error != "" {
		return eris.Errorf("zapi: send failed: %s %s", parsed.Error, parsed.Message)
	}
	return nil
}
