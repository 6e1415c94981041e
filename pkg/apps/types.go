// Package apps models the Mattermost Apps call envelope exchanged with the
// platform on every bound endpoint.
package apps

import (
	"fmt"
	"slices"
	"strings"

	"github.com/obot-platform/pagerduty-app/pkg/types"
)

type CallResponseType string

const (
	CallResponseTypeOK       CallResponseType = "ok"
	CallResponseTypeForm     CallResponseType = "form"
	CallResponseTypeError    CallResponseType = "error"
	CallResponseTypeNavigate CallResponseType = "navigate"
)

const SystemAdminRole = "system_admin"

// CallRequest is the body the platform posts to a bound call path.
type CallRequest struct {
	Path    string         `json:"path,omitempty"`
	Values  map[string]any `json:"values,omitempty"`
	Context Context        `json:"context"`
}

// Context is the expanded call context.
type Context struct {
	AppID                 string        `json:"app_id,omitempty"`
	AppPath               string        `json:"app_path,omitempty"`
	MattermostSiteURL     string        `json:"mattermost_site_url,omitempty"`
	BotUserID             string        `json:"bot_user_id,omitempty"`
	BotAccessToken        string        `json:"bot_access_token,omitempty"`
	ActingUser            *User         `json:"acting_user,omitempty"`
	ActingUserAccessToken string        `json:"acting_user_access_token,omitempty"`
	OAuth2                OAuth2Context `json:"oauth2"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Roles    string `json:"roles,omitempty"`
}

// OAuth2Context carries the platform generated OAuth2 URLs of the app.
type OAuth2Context struct {
	ConnectURL  string `json:"connect_url,omitempty"`
	CompleteURL string `json:"complete_url,omitempty"`
}

// CallResponse is the reply envelope.
type CallResponse struct {
	Type          CallResponseType `json:"type"`
	Text          string           `json:"text,omitempty"`
	Data          any              `json:"data,omitempty"`
	NavigateToURL string           `json:"navigate_to_url,omitempty"`
}

func NewOKResponse() CallResponse {
	return CallResponse{Type: CallResponseTypeOK}
}

func NewOKResponseWithMarkdown(markdown string) CallResponse {
	return CallResponse{Type: CallResponseTypeOK, Text: markdown}
}

func NewOKResponseWithData(data any) CallResponse {
	return CallResponse{Type: CallResponseTypeOK, Data: data}
}

func NewErrorResponse(message string) CallResponse {
	return CallResponse{Type: CallResponseTypeError, Text: message}
}

// Value returns the string form of a submitted value. Select fields arrive as
// {"label": ..., "value": ...} objects.
func (c *CallRequest) Value(key string) string {
	switch v := c.Values[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if s, ok := v["value"].(string); ok {
			return s
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Workspace returns the KV coordinates of the calling installation.
func (c *CallRequest) Workspace() types.Workspace {
	return types.Workspace{
		SiteURL:        c.Context.MattermostSiteURL,
		BotAccessToken: c.Context.BotAccessToken,
	}
}

// ActingUserID returns the id of the user the call is made on behalf of.
func (c *CallRequest) ActingUserID() string {
	if c.Context.ActingUser == nil {
		return ""
	}
	return c.Context.ActingUser.ID
}

// IsSystemAdmin reports whether the acting user holds the system admin role.
func (c *CallRequest) IsSystemAdmin() bool {
	if c.Context.ActingUser == nil {
		return false
	}
	return slices.Contains(strings.Fields(c.Context.ActingUser.Roles), SystemAdminRole)
}
