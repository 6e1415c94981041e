package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/obot-platform/pagerduty-app/pkg/pkce"
	"github.com/obot-platform/pagerduty-app/pkg/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	AuthorizePath = "/oauth/authorize"
	TokenPath     = "/oauth/token"

	DefaultScope        = "read write"
	DefaultTokenTimeout = 10 * time.Second
)

// PagerDutyProvider talks to the PagerDuty OAuth endpoints found under the
// workspace's configured base URL.
type PagerDutyProvider struct {
	scope      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewPagerDutyProvider creates a provider requesting scope. A zero timeout
// falls back to DefaultTokenTimeout.
func NewPagerDutyProvider(scope string, timeout time.Duration) *PagerDutyProvider {
	if scope == "" {
		scope = DefaultScope
	}
	if timeout <= 0 {
		timeout = DefaultTokenTimeout
	}
	return &PagerDutyProvider{
		scope:   scope,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetName returns the provider name
func (p *PagerDutyProvider) GetName() string {
	return "pagerduty"
}

// GetAuthorizationURLWithPKCE returns the PagerDuty authorization URL with PKCE support
func (p *PagerDutyProvider) GetAuthorizationURLWithPKCE(creds *types.ProviderCredentials, redirectURI, state, codeChallenge string) (string, error) {
	endpoint, err := Endpoint(creds.ProviderBaseURL, AuthorizePath)
	if err != nil {
		return "", err
	}
	return BuildAuthorizationURL(endpoint, creds, codeChallenge, redirectURI, p.scope, state)
}

// ExchangeCodeForToken exchanges an authorization code at the PagerDuty token endpoint
func (p *PagerDutyProvider) ExchangeCodeForToken(ctx context.Context, creds *types.ProviderCredentials, code, codeVerifier, redirectURI string) (*types.TokenExchangeResult, error) {
	endpoint, err := Endpoint(creds.ProviderBaseURL, TokenPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return ExchangeCodeForToken(ctx, p.httpClient, endpoint, creds, code, codeVerifier, redirectURI)
}

// Endpoint joins path onto an absolute http(s) base URL.
func Endpoint(baseURL, path string) (string, error) {
	u, err := ValidateBaseURL(baseURL)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// ValidateBaseURL parses raw and requires an absolute http or https URL with a host.
func ValidateBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidBaseEndpoint, err)
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", types.ErrInvalidBaseEndpoint, raw)
	}
	return u, nil
}

// BuildAuthorizationURL renders the authorization redirect for one attempt.
// Every parameter is encoded exactly once by url.Values.
func BuildAuthorizationURL(baseEndpoint string, creds *types.ProviderCredentials, codeChallenge, redirectURI, scope, state string) (string, error) {
	if _, err := ValidateBaseURL(baseEndpoint); err != nil {
		return "", err
	}
	if state == "" {
		return "", errors.New("state is required")
	}

	// codeChallenge is already derived; S256ChallengeOption would hash it again.
	o := buildOAuth2Config(baseEndpoint, "", creds, redirectURI, scope)
	return o.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.MethodS256),
	), nil
}

// ExchangeCodeForToken performs exactly one authorization_code grant request.
// It never retries; the caller decides what to do with an unreachable endpoint.
func ExchangeCodeForToken(ctx context.Context, httpClient *http.Client, tokenEndpoint string, creds *types.ProviderCredentials, code, codeVerifier, redirectURI string) (*types.TokenExchangeResult, error) {
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	o := buildOAuth2Config("", tokenEndpoint, creds, redirectURI, "")
	token, err := o.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	result := &types.TokenExchangeResult{
		AccessToken:  token.AccessToken,
		TokenType:    token.Type(),
		RefreshToken: token.RefreshToken,
		ExpiresIn:    token.ExpiresIn,
		Expiry:       token.Expiry,
	}
	return result, nil
}

func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		exchangeErr := &types.TokenExchangeError{
			Kind:      types.ErrTokenExchangeRejected,
			ErrorCode: retrieveErr.ErrorCode,
			Payload:   retrieveErr.Body,
			Err:       err,
		}
		if retrieveErr.Response != nil {
			exchangeErr.StatusCode = retrieveErr.Response.StatusCode
		}
		return exchangeErr
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return &types.TokenExchangeError{Kind: types.ErrTokenExchangeUnreachable, Err: err}
	}

	// A 2xx answer without an access token lands here.
	log.Debug().Err(err).Msg("Token endpoint returned an unusable response")
	return &types.TokenExchangeError{Kind: types.ErrTokenExchangeRejected, Err: err}
}

func buildOAuth2Config(authURL, tokenURL string, creds *types.ProviderCredentials, redirectURI, scope string) *oauth2.Config {
	var scopes []string
	if scope != "" {
		scopes = strings.Fields(scope)
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

var _ Provider = (*PagerDutyProvider)(nil)
