package connect

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/obot-platform/pagerduty-app/pkg/apps"
	"github.com/obot-platform/pagerduty-app/pkg/oauth/flow"
	"github.com/rs/zerolog/log"
)

// CompletePath is where the provider callback lands when the call context
// does not name a complete URL.
const CompletePath = "/oauth2/complete"

type Initiator interface {
	Initiate(ctx context.Context, req flow.InitiateRequest) (*flow.Attempt, error)
}

type Handler struct {
	flow      Initiator
	publicURL string
}

func NewHandler(flow Initiator, publicURL string) http.Handler {
	return &Handler{
		flow:      flow,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := apps.GetCall(r)

	redirectURI := call.Context.OAuth2.CompleteURL
	if redirectURI == "" && h.publicURL != "" {
		redirectURI = h.publicURL + CompletePath
	}
	if redirectURI == "" {
		log.Ctx(r.Context()).Error().Msg("No OAuth2 complete URL in call context and no public URL configured")
		apps.WriteError(w, errors.New("missing redirect URI"))
		return
	}

	attempt, err := h.flow.Initiate(r.Context(), flow.InitiateRequest{
		Workspace:   call.Workspace(),
		UserID:      call.ActingUserID(),
		RedirectURI: redirectURI,
		State:       strings.TrimSpace(call.Value("state")),
	})
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to initiate authorization")
		apps.WriteError(w, err)
		return
	}

	apps.WriteResponse(w, http.StatusOK, apps.NewOKResponseWithData(attempt.AuthorizationURL))
}
