package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/obot-platform/pagerduty-app/pkg/pkce"
	"github.com/obot-platform/pagerduty-app/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestBuildAuthorizationURL(t *testing.T) {
	creds := &types.ProviderCredentials{ClientID: "abc123", ClientSecret: "shh"}
	const verifierLike = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	authURL, err := BuildAuthorizationURL(
		"https://provider.example/oauth/authorize",
		creds,
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		"https://app.example/oauth2/complete",
		"read write",
		"random-state-value",
	)
	require.NoError(t, err)

	for _, param := range []string{"client_id=abc123", "response_type=code", "code_challenge_method=S256"} {
		assert.Equal(t, 1, strings.Count(authURL, param), param)
	}
	assert.Contains(t, authURL, "scope=read+write")
	assert.NotContains(t, authURL, "shh")
	assert.NotContains(t, authURL, verifierLike)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "https://provider.example/oauth/authorize", u.Scheme+"://"+u.Host+u.Path)
	assert.Equal(t, "https://app.example/oauth2/complete", q.Get("redirect_uri"))
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", q.Get("code_challenge"))
	assert.Equal(t, "random-state-value", q.Get("state"))
	assert.NotContains(t, authURL, "%25", "values must not be double encoded")
}

func TestBuildAuthorizationURLHashesVerifierOnce(t *testing.T) {
	verifier, err := pkce.Generator{}.Verifier()
	require.NoError(t, err)

	authURL, err := BuildAuthorizationURL(
		"https://provider.example/oauth/authorize",
		&types.ProviderCredentials{ClientID: "abc123"},
		pkce.Challenge(verifier),
		"https://app.example/oauth2/complete",
		DefaultScope,
		"state",
	)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	require.Len(t, q["code_challenge"], 1)
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
	assert.NotEqual(t, oauth2.S256ChallengeFromVerifier(pkce.Challenge(verifier)), q.Get("code_challenge"))
	assert.Equal(t, []string{"S256"}, q["code_challenge_method"])
}

func TestBuildAuthorizationURLInvalidBase(t *testing.T) {
	creds := &types.ProviderCredentials{ClientID: "abc123"}
	for _, base := range []string{"", "provider.example/oauth/authorize", "/oauth/authorize", "ftp://provider.example"} {
		_, err := BuildAuthorizationURL(base, creds, "challenge", "https://app.example/cb", "read", "state")
		assert.ErrorIs(t, err, types.ErrInvalidBaseEndpoint, base)
	}
}

func TestEndpoint(t *testing.T) {
	got, err := Endpoint("https://identity.pagerduty.com/", TokenPath)
	require.NoError(t, err)
	assert.Equal(t, "https://identity.pagerduty.com/oauth/token", got)

	_, err = Endpoint("not a url", TokenPath)
	assert.ErrorIs(t, err, types.ErrInvalidBaseEndpoint)
}

func TestExchangeCodeForToken(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, TokenPath, r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded"))
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "abc123", r.PostForm.Get("client_id"))
		assert.Equal(t, "https://app.example/oauth2/complete", r.PostForm.Get("redirect_uri"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "the-verifier", r.PostForm.Get("code_verifier"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "pd-access",
			"token_type":    "bearer",
			"refresh_token": "pd-refresh",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	provider := NewPagerDutyProvider("", time.Second)
	creds := &types.ProviderCredentials{ClientID: "abc123", ProviderBaseURL: server.URL}

	result, err := provider.ExchangeCodeForToken(context.Background(), creds, "the-code", "the-verifier", "https://app.example/oauth2/complete")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "pd-access", result.AccessToken)
	assert.Equal(t, "pd-refresh", result.RefreshToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, int64(3600), result.ExpiresIn)
}

func TestExchangeCodeForTokenRejected(t *testing.T) {
	t.Run("InvalidGrant", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"bad code"}`))
		}))
		defer server.Close()

		provider := NewPagerDutyProvider("", time.Second)
		creds := &types.ProviderCredentials{ClientID: "abc123", ProviderBaseURL: server.URL}

		_, err := provider.ExchangeCodeForToken(context.Background(), creds, "code", "verifier", "https://app.example/cb")
		require.ErrorIs(t, err, types.ErrTokenExchangeRejected)
		assert.NotErrorIs(t, err, types.ErrTokenExchangeUnreachable)
		assert.Equal(t, int32(1), calls.Load())

		var exchangeErr *types.TokenExchangeError
		require.ErrorAs(t, err, &exchangeErr)
		assert.Equal(t, http.StatusBadRequest, exchangeErr.StatusCode)
		assert.Equal(t, "invalid_grant", exchangeErr.ErrorCode)
		assert.Contains(t, string(exchangeErr.Payload), "bad code")
	})

	t.Run("MissingAccessToken", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
		}))
		defer server.Close()

		provider := NewPagerDutyProvider("", time.Second)
		creds := &types.ProviderCredentials{ClientID: "abc123", ProviderBaseURL: server.URL}

		_, err := provider.ExchangeCodeForToken(context.Background(), creds, "code", "verifier", "https://app.example/cb")
		assert.ErrorIs(t, err, types.ErrTokenExchangeRejected)
	})
}

func TestExchangeCodeForTokenUnreachable(t *testing.T) {
	t.Run("ConnectionRefused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		baseURL := server.URL
		server.Close()

		provider := NewPagerDutyProvider("", time.Second)
		creds := &types.ProviderCredentials{ClientID: "abc123", ProviderBaseURL: baseURL}

		_, err := provider.ExchangeCodeForToken(context.Background(), creds, "code", "verifier", "https://app.example/cb")
		assert.ErrorIs(t, err, types.ErrTokenExchangeUnreachable)
	})

	t.Run("Timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		provider := NewPagerDutyProvider("", 50*time.Millisecond)
		creds := &types.ProviderCredentials{ClientID: "abc123", ProviderBaseURL: server.URL}

		_, err := provider.ExchangeCodeForToken(context.Background(), creds, "code", "verifier", "https://app.example/cb")
		assert.ErrorIs(t, err, types.ErrTokenExchangeUnreachable)
	})
}

func TestExchangeCodeForTokenInvalidBase(t *testing.T) {
	provider := NewPagerDutyProvider("", time.Second)
	creds := &types.ProviderCredentials{ClientID: "abc123", ProviderBaseURL: "nope"}

	_, err := provider.ExchangeCodeForToken(context.Background(), creds, "code", "verifier", "https://app.example/cb")
	assert.ErrorIs(t, err, types.ErrInvalidBaseEndpoint)
}
