package apps

const AppID = "pagerduty"

const (
	PermissionActAsBot     = "act_as_bot"
	PermissionActAsUser    = "act_as_user"
	PermissionRemoteOAuth2 = "remote_oauth2"

	LocationCommand = "/command"
)

// Manifest describes the app to the platform.
type Manifest struct {
	AppID                string      `json:"app_id"`
	Version              string      `json:"version,omitempty"`
	DisplayName          string      `json:"display_name"`
	Description          string      `json:"description,omitempty"`
	HomepageURL          string      `json:"homepage_url,omitempty"`
	RequestedPermissions []string    `json:"requested_permissions"`
	RequestedLocations   []string    `json:"requested_locations"`
	HTTP                 *HTTPDeploy `json:"http,omitempty"`
}

type HTTPDeploy struct {
	RootURL string `json:"root_url"`
}

// NewManifest returns the manifest of an app served from rootURL.
func NewManifest(rootURL, version string) Manifest {
	return Manifest{
		AppID:       AppID,
		Version:     version,
		DisplayName: "PagerDuty",
		Description: "Connect Mattermost to your PagerDuty account",
		HomepageURL: "https://www.pagerduty.com",
		RequestedPermissions: []string{
			PermissionActAsBot,
			PermissionActAsUser,
			PermissionRemoteOAuth2,
		},
		RequestedLocations: []string{LocationCommand},
		HTTP:               &HTTPDeploy{RootURL: rootURL},
	}
}
