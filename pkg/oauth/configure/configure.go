package configure

import (
	"context"
	"net/http"
	"strings"

	"github.com/obot-platform/pagerduty-app/pkg/apps"
	"github.com/obot-platform/pagerduty-app/pkg/providers"
	"github.com/obot-platform/pagerduty-app/pkg/types"
	"github.com/rs/zerolog/log"
)

const (
	ClientIDField     = "pagerduty_client_id"
	ClientSecretField = "pagerduty_client_secret"
	ClientURLField    = "pagerduty_client_url"
)

type CredentialsStore interface {
	SaveCredentials(ctx context.Context, ws types.Workspace, creds *types.ProviderCredentials) error
}

type Handler struct {
	store CredentialsStore
}

func NewHandler(store CredentialsStore) http.Handler {
	return &Handler{store: store}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := apps.GetCall(r)

	if !call.IsSystemAdmin() {
		apps.WriteResponse(w, http.StatusOK, apps.NewErrorResponse("Only system administrators can configure PagerDuty."))
		return
	}

	creds := &types.ProviderCredentials{
		ClientID:        strings.TrimSpace(call.Value(ClientIDField)),
		ClientSecret:    strings.TrimSpace(call.Value(ClientSecretField)),
		ProviderBaseURL: strings.TrimSuffix(strings.TrimSpace(call.Value(ClientURLField)), "/"),
	}
	if creds.ClientID == "" {
		apps.WriteResponse(w, http.StatusOK, apps.NewErrorResponse("Error processing form request: client ID is required"))
		return
	}
	if _, err := providers.ValidateBaseURL(creds.ProviderBaseURL); err != nil {
		apps.WriteError(w, err)
		return
	}

	if err := h.store.SaveCredentials(r.Context(), call.Workspace(), creds); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to save PagerDuty configuration")
		apps.WriteResponse(w, http.StatusOK, apps.NewErrorResponse("Error processing form request: unable to save configuration"))
		return
	}

	apps.WriteResponse(w, http.StatusOK, apps.NewOKResponseWithMarkdown("Successfully updated PagerDuty configuration"))
}
