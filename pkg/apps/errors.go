package apps

import (
	"errors"
	"net/http"

	"github.com/obot-platform/pagerduty-app/pkg/types"
)

// ErrorResponse maps an error onto the status and envelope shown to the user.
// Messages never include provider payloads or whether a state ever existed.
func ErrorResponse(err error) (int, CallResponse) {
	switch {
	case errors.Is(err, types.ErrEntropySourceUnavailable):
		return http.StatusInternalServerError, NewErrorResponse("Internal error, please try again later.")
	case errors.Is(err, types.ErrInvalidBaseEndpoint):
		return http.StatusOK, NewErrorResponse("PagerDuty is not configured correctly: the base URL must be an absolute URL.")
	case errors.Is(err, types.ErrProviderNotConfigured):
		return http.StatusOK, NewErrorResponse("PagerDuty is not configured. Ask a system administrator to run /pagerduty configure.")
	case errors.Is(err, types.ErrTokenExchangeRejected):
		return http.StatusOK, NewErrorResponse("Unable to connect your PagerDuty account.")
	case errors.Is(err, types.ErrTokenExchangeUnreachable):
		return http.StatusOK, NewErrorResponse("PagerDuty could not be reached. Please try connecting again.")
	case errors.Is(err, types.ErrCorrelationNotFound):
		return http.StatusOK, NewErrorResponse("Your session expired, please retry connecting your account.")
	case errors.Is(err, types.ErrInvalidState):
		return http.StatusOK, NewErrorResponse("Invalid authorization request, please retry connecting your account.")
	case errors.Is(err, types.ErrUnauthorizedCall):
		return http.StatusUnauthorized, NewErrorResponse("Unauthorized call.")
	}
	return http.StatusInternalServerError, NewErrorResponse("Internal error, please try again later.")
}

// WriteError writes the envelope for err.
func WriteError(w http.ResponseWriter, err error) {
	status, resp := ErrorResponse(err)
	WriteResponse(w, status, resp)
}
