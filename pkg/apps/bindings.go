package apps

const (
	ExpandAll     = "all"
	ExpandSummary = "summary"

	FieldTypeText = "text"
)

// Binding places a call somewhere in the platform UI. Command bindings nest:
// the top level is the trigger, children are its subcommands.
type Binding struct {
	Location    string    `json:"location,omitempty"`
	Label       string    `json:"label,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Hint        string    `json:"hint,omitempty"`
	Description string    `json:"description,omitempty"`
	Submit      *Call     `json:"submit,omitempty"`
	Form        *Form     `json:"form,omitempty"`
	Bindings    []Binding `json:"bindings,omitempty"`
}

type Call struct {
	Path   string  `json:"path"`
	Expand *Expand `json:"expand,omitempty"`
}

// Expand names the context the platform must attach to a call.
type Expand struct {
	ActingUser            string `json:"acting_user,omitempty"`
	ActingUserAccessToken string `json:"acting_user_access_token,omitempty"`
	OAuth2App             string `json:"oauth2_app,omitempty"`
	OAuth2User            string `json:"oauth2_user,omitempty"`
}

type Form struct {
	Title  string  `json:"title,omitempty"`
	Fields []Field `json:"fields,omitempty"`
	Submit *Call   `json:"submit,omitempty"`
}

type Field struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Label      string `json:"label,omitempty"`
	ModalLabel string `json:"modal_label,omitempty"`
	IsRequired bool   `json:"is_required,omitempty"`
	Subtype    string `json:"subtype,omitempty"`
}
