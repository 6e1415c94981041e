package providers

import (
	"context"

	"github.com/obot-platform/pagerduty-app/pkg/types"
)

// Provider interface for OAuth providers
type Provider interface {
	// GetAuthorizationURLWithPKCE returns the authorization URL for a PKCE request
	GetAuthorizationURLWithPKCE(creds *types.ProviderCredentials, redirectURI, state, codeChallenge string) (string, error)

	// ExchangeCodeForToken exchanges an authorization code and its verifier for tokens
	ExchangeCodeForToken(ctx context.Context, creds *types.ProviderCredentials, code, codeVerifier, redirectURI string) (*types.TokenExchangeResult, error)

	// GetName returns the provider name
	GetName() string
}
