package bindings

import (
	"net/http"

	"github.com/obot-platform/pagerduty-app/pkg/apps"
	"github.com/obot-platform/pagerduty-app/pkg/oauth/configure"
)

const (
	CommandTrigger = "pagerduty"

	ConfigurePath = "/configure/submit"
	ConnectPath   = "/connect/submit"
)

type Handler struct{}

// NewHandler serves the static slash command tree. The configure subcommand is
// only offered to system admins.
func NewHandler() http.Handler {
	return &Handler{}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := apps.GetCall(r)
	apps.WriteResponse(w, http.StatusOK, apps.NewOKResponseWithData(CommandBindings(call.IsSystemAdmin())))
}

// CommandBindings returns the /pagerduty command and its subcommands.
func CommandBindings(admin bool) []apps.Binding {
	subcommands := []apps.Binding{connectBinding()}
	if admin {
		subcommands = append(subcommands, configureBinding())
	}

	return []apps.Binding{{
		Location: apps.LocationCommand,
		Bindings: []apps.Binding{{
			Label:       CommandTrigger,
			Hint:        "[connect | configure]",
			Description: "Manage PagerDuty",
			Bindings:    subcommands,
		}},
	}}
}

func connectBinding() apps.Binding {
	return apps.Binding{
		Label:       "connect",
		Description: "Connect your PagerDuty account",
		Submit: &apps.Call{
			Path: ConnectPath,
			Expand: &apps.Expand{
				ActingUser: apps.ExpandSummary,
				OAuth2App:  apps.ExpandAll,
			},
		},
	}
}

func configureBinding() apps.Binding {
	submit := &apps.Call{
		Path:   ConfigurePath,
		Expand: &apps.Expand{ActingUser: apps.ExpandSummary},
	}
	return apps.Binding{
		Label:       "configure",
		Description: "Configure the PagerDuty OAuth client",
		Form: &apps.Form{
			Title: "Configure PagerDuty",
			Fields: []apps.Field{
				{Name: configure.ClientIDField, Type: apps.FieldTypeText, ModalLabel: "Client ID", IsRequired: true},
				{Name: configure.ClientSecretField, Type: apps.FieldTypeText, ModalLabel: "Client Secret", Subtype: "password"},
				{Name: configure.ClientURLField, Type: apps.FieldTypeText, ModalLabel: "PagerDuty URL", IsRequired: true, Subtype: "url"},
			},
			Submit: submit,
		},
	}
}
