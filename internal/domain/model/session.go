package model

// AuthState is everything discovery and the token exchange produced for
// one identity. Absence of AccessToken or MicropubEndpoint means "not
// authenticated" and gates every publish dialog.
type AuthState struct {
	Me                    string `json:"me"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	MicropubEndpoint      string `json:"micropub_endpoint"`
	AccessToken           string `json:"access_token"`
}

// Authenticated reports whether publish dialogs may run. Checked at
// dialog entry, not per step.
func (a *AuthState) Authenticated() bool {
	return a != nil && a.AccessToken != "" && a.MicropubEndpoint != ""
}

// DialogFrame is one entry of a conversation's dialog stack. Step is
// the index to re-enter the dialog's step list at on the next inbound
// message. Draft, Vars and Options are the frame-local data; they are
// discarded when the dialog ends.
type DialogFrame struct {
	Dialog  string            `json:"dialog"`
	Step    int               `json:"step"`
	Draft   Draft             `json:"draft,omitempty"`
	Vars    map[string]string `json:"vars,omitempty"`
	Options []string          `json:"options,omitempty"` // syndication targets fetched for this run
}

// Var reads a step-local scratch value.
func (f *DialogFrame) Var(key string) string {
	if f.Vars == nil {
		return ""
	}
	return f.Vars[key]
}

// SetVar writes a step-local scratch value.
func (f *DialogFrame) SetVar(key, val string) {
	if f.Vars == nil {
		f.Vars = map[string]string{}
	}
	f.Vars[key] = val
}

// Session is the whole per-identity blob: durable auth state plus the
// in-flight dialog stack. Callers read-modify-write the full value.
type Session struct {
	Auth   AuthState     `json:"auth"`
	Frames []DialogFrame `json:"frames,omitempty"`
}

// Top returns the active frame, or nil when the conversation is idle.
func (s *Session) Top() *DialogFrame {
	if len(s.Frames) == 0 {
		return nil
	}
	return &s.Frames[len(s.Frames)-1]
}
