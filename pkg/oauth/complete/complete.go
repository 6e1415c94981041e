package complete

import (
	"context"
	"net/http"

	"github.com/obot-platform/pagerduty-app/pkg/apps"
	"github.com/obot-platform/pagerduty-app/pkg/oauth/flow"
	"github.com/obot-platform/pagerduty-app/pkg/types"
	"github.com/rs/zerolog/log"
)

type Completer interface {
	Complete(ctx context.Context, req flow.CompleteRequest) (*types.TokenExchangeResult, error)
}

type Handler struct {
	flow Completer
}

func NewHandler(flow Completer) http.Handler {
	return &Handler{flow: flow}
}

// param prefers the callback query string and falls back to the call values
// the platform forwards.
func param(r *http.Request, call *apps.CallRequest, key string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return call.Value(key)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := apps.GetCall(r)

	_, err := h.flow.Complete(r.Context(), flow.CompleteRequest{
		Workspace:     call.Workspace(),
		UserID:        call.ActingUserID(),
		State:         param(r, call, "state"),
		Code:          param(r, call, "code"),
		ProviderError: param(r, call, "error"),
	})
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("Failed to complete authorization")
		apps.WriteError(w, err)
		return
	}

	apps.WriteResponse(w, http.StatusOK, apps.NewOKResponse())
}
