package types

import (
	"time"
)

// Config holds all configuration values for the PagerDuty app
type Config struct {
	Port            string
	DatabaseDSN     string
	AppSecret       string
	EncryptionKey   string
	PublicURL       string
	OAuthScope      string
	CorrelationTTL  time.Duration
	TokenTimeout    time.Duration
	CleanupSchedule string

	// TrustProxyHeaders honors X-Forwarded-* headers set by a reverse proxy.
	TrustProxyHeaders bool
}

// ProviderCredentials are the PagerDuty OAuth client settings of one workspace.
// They are secret and must never be logged or echoed back to a caller.
type ProviderCredentials struct {
	ClientID        string `json:"pagerduty_client_id"`
	ClientSecret    string `json:"pagerduty_client_secret"`
	ProviderBaseURL string `json:"pagerduty_client_url"`
}

// Workspace identifies the Mattermost installation a call came from and the
// bot token used to reach its KV store.
type Workspace struct {
	SiteURL        string
	BotAccessToken string
}

// AuthorizationRequest is built once per initiation and consumed to render the
// provider redirect URL.
type AuthorizationRequest struct {
	ClientID            string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	State               string
}

// CorrelationEntry binds an in-flight authorization state to its verifier.
type CorrelationEntry struct {
	State        string    `gorm:"primaryKey"`
	CodeVerifier string    `gorm:"not null"`
	RedirectURI  string    `gorm:"not null"`
	SiteURL      string    `gorm:"not null"`
	UserID       string    `gorm:"not null;index"`
	ExpiresAt    time.Time `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// TokenExchangeResult is the outcome of a successful code exchange.
type TokenExchangeResult struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// ProviderError is the token endpoint's error document.
type ProviderError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
