package account

import (
	"fmt"
	"net/http"

	"github.com/obot-platform/pagerduty-app/pkg/apps"
)

type Handler struct{}

func NewHandler() http.Handler {
	return &Handler{}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := apps.GetCall(r)

	connectURL := call.Context.OAuth2.ConnectURL
	if connectURL == "" {
		apps.WriteResponse(w, http.StatusOK, apps.NewErrorResponse("Unable to build the connect link, please try again later."))
		return
	}

	apps.WriteResponse(w, http.StatusOK, apps.NewOKResponseWithMarkdown(
		fmt.Sprintf("Follow this [link](%s) to connect Mattermost to your PagerDuty Account.", connectURL),
	))
}
