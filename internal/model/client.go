package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// GoogleCredentials holds encrypted Google OAuth tokens. AccessToken and
// RefreshToken are ciphertext; ExpiresAt is a Unix-millisecond timestamp.
type GoogleCredentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// MetaCredentials holds an encrypted Meta long-lived token.
type MetaCredentials struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// ClientIntegrations is the per-client credential blob. Each source is
// individually optional; any subset may be present.
type ClientIntegrations struct {
	Google *GoogleCredentials `json:"google,omitempty"`
	Meta   *MetaCredentials   `json:"meta,omitempty"`
}

// Validate checks the shape of whichever integrations are present. It is
// called at the boundary before credentials are decrypted or used.
func (ci ClientIntegrations) Validate() error {
	if ci.Google != nil {
		if ci.Google.AccessToken == "" || ci.Google.RefreshToken == "" {
			return eris.New("client: google integration requires accessToken and refreshToken")
		}
	}
	if ci.Meta != nil && ci.Meta.AccessToken == "" {
		return eris.New("client: meta integration requires accessToken")
	}
	return nil
}

// ReportConfig holds per-source report targets and optional branding.
type ReportConfig struct {
	GooglePropertyID string `json:"googlePropertyId,omitempty"`
	GoogleSiteURL    string `json:"googleSiteUrl,omitempty"`
	MetaAdAccountID  string `json:"metaAdAccountId,omitempty"`
	Logo             string `json:"logo,omitempty"`
	PrimaryColor     string `json:"primaryColor,omitempty"`
}

// Client is a managed advertiser account owned by an agency.
type Client struct {
	ID           string             `json:"id"`
	AgencyID     string             `json:"agency_id"`
	Name         string             `json:"name"`
	Email        string             `json:"email,omitempty"`
	Phone        string             `json:"phone,omitempty"`
	Active       bool               `json:"active"`
	Integrations ClientIntegrations `json:"integrations"`
	ReportConfig ReportConfig       `json:"report_config"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
