package apps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/obot-platform/pagerduty-app/pkg/handlerutils"
	"github.com/obot-platform/pagerduty-app/pkg/types"
	"github.com/rs/zerolog/log"
)

// AuthorizationHeader carries the JWT the platform signs each call with.
const AuthorizationHeader = "Mattermost-App-Authorization"

const maxCallBodyBytes = 1 << 20

type contextKey struct{}

// Claims are the claims of a platform call JWT.
type Claims struct {
	jwt.RegisteredClaims
	ActingUserID string `json:"acting_user_id,omitempty"`
}

// VerifyRequest validates the HS256 call JWT of r against secret.
func VerifyRequest(r *http.Request, secret []byte) (*Claims, error) {
	header := r.Header.Get(AuthorizationHeader)
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, fmt.Errorf("%w: missing %s header", types.ErrUnauthorizedCall, AuthorizationHeader)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnauthorizedCall, err)
	}
	return claims, nil
}

// WithCallAuthentication rejects calls that are not signed with secret and
// makes the decoded CallRequest available through GetCall.
func WithCallAuthentication(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := VerifyRequest(r, secret)
		if err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected call")
			WriteResponse(w, http.StatusUnauthorized, NewErrorResponse("Unauthorized call."))
			return
		}

		call := &CallRequest{}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCallBodyBytes)).Decode(call); err != nil {
			WriteResponse(w, http.StatusBadRequest, NewErrorResponse("Invalid call request."))
			return
		}

		if claims.ActingUserID != "" && call.ActingUserID() != "" && claims.ActingUserID != call.ActingUserID() {
			log.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("Call acting user does not match token")
			WriteResponse(w, http.StatusUnauthorized, NewErrorResponse("Unauthorized call."))
			return
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), call)))
	})
}

// NewContext returns ctx carrying call.
func NewContext(ctx context.Context, call *CallRequest) context.Context {
	return context.WithValue(ctx, contextKey{}, call)
}

// GetCall returns the call decoded by WithCallAuthentication.
func GetCall(r *http.Request) *CallRequest {
	call, _ := r.Context().Value(contextKey{}).(*CallRequest)
	return call
}

// WriteResponse writes resp as the JSON reply.
func WriteResponse(w http.ResponseWriter, statusCode int, resp CallResponse) {
	handlerutils.JSON(w, statusCode, resp)
}
