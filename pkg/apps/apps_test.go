package apps

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/obot-platform/pagerduty-app/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("app-secret")

func signCall(t *testing.T, secret []byte, actingUserID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		ActingUserID: actingUserID,
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func newCallRequest(t *testing.T, jwtToken string, call CallRequest) *http.Request {
	t.Helper()
	body, err := json.Marshal(call)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/oauth2/connect", strings.NewReader(string(body)))
	if jwtToken != "" {
		r.Header.Set(AuthorizationHeader, "Bearer "+jwtToken)
	}
	return r
}

func TestWithCallAuthentication(t *testing.T) {
	var got *CallRequest
	handler := WithCallAuthentication(testSecret, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetCall(r)
		WriteResponse(w, http.StatusOK, NewOKResponse())
	}))

	call := CallRequest{
		Values:  map[string]any{"state": "abc"},
		Context: Context{ActingUser: &User{ID: "user1"}, MattermostSiteURL: "https://chat.example"},
	}

	t.Run("Valid", func(t *testing.T) {
		got = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newCallRequest(t, signCall(t, testSecret, "user1"), call))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, "abc", got.Value("state"))
		assert.Equal(t, "https://chat.example", got.Workspace().SiteURL)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		got = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newCallRequest(t, "", call))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, got)
		assert.JSONEq(t, `{"type":"error","text":"Unauthorized call."}`, rec.Body.String())
	})

	t.Run("WrongSecret", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newCallRequest(t, signCall(t, []byte("other"), "user1"), call))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("ActingUserMismatch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newCallRequest(t, signCall(t, testSecret, "someone-else"), call))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("NoneAlgorithmRejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ActingUserID: "user1"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newCallRequest(t, signed, call))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/oauth2/connect", strings.NewReader("{"))
		r.Header.Set(AuthorizationHeader, "Bearer "+signCall(t, testSecret, ""))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		err    error
		status int
		text   string
	}{
		{types.ErrCorrelationNotFound, http.StatusOK, "Your session expired, please retry connecting your account."},
		{types.ErrInvalidState, http.StatusOK, "Invalid authorization request, please retry connecting your account."},
		{&types.TokenExchangeError{Kind: types.ErrTokenExchangeRejected, Payload: []byte(`{"error":"invalid_grant"}`)}, http.StatusOK, "Unable to connect your PagerDuty account."},
		{&types.TokenExchangeError{Kind: types.ErrTokenExchangeUnreachable}, http.StatusOK, "PagerDuty could not be reached. Please try connecting again."},
		{fmt.Errorf("%w: bad", types.ErrInvalidBaseEndpoint), http.StatusOK, "PagerDuty is not configured correctly: the base URL must be an absolute URL."},
		{types.ErrProviderNotConfigured, http.StatusOK, "PagerDuty is not configured. Ask a system administrator to run /pagerduty configure."},
		{types.ErrEntropySourceUnavailable, http.StatusInternalServerError, "Internal error, please try again later."},
		{errors.New("database exploded"), http.StatusInternalServerError, "Internal error, please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, resp := ErrorResponse(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, CallResponseTypeError, resp.Type)
			assert.Equal(t, tt.text, resp.Text)
			assert.NotContains(t, resp.Text, "invalid_grant")
		})
	}
}

func TestCallRequestHelpers(t *testing.T) {
	call := &CallRequest{
		Values: map[string]any{
			"plain":  "x",
			"select": map[string]any{"label": "X", "value": "x-value"},
			"number": 3.0,
		},
		Context: Context{ActingUser: &User{ID: "u", Roles: "system_user system_admin"}},
	}

	assert.Equal(t, "x", call.Value("plain"))
	assert.Equal(t, "x-value", call.Value("select"))
	assert.Equal(t, "3", call.Value("number"))
	assert.Equal(t, "", call.Value("missing"))
	assert.True(t, call.IsSystemAdmin())
	assert.Equal(t, "u", call.ActingUserID())

	call.Context.ActingUser.Roles = "system_user"
	assert.False(t, call.IsSystemAdmin())

	assert.False(t, (&CallRequest{}).IsSystemAdmin())
	assert.Equal(t, "", (&CallRequest{}).ActingUserID())
}
