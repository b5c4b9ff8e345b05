package session

import (
	"github.com/platinummonkey/ssoadmin/pkg/api"
)

// Namespaced persistence keys.
const (
	StateKey    = "arga-sso-auth"
	DeviceIDKey = "arga-sso-device-id"
)

// State is the authenticated actor as seen by the client.
type State struct {
	AccessToken     string        `json:"accessToken"`
	RefreshToken    string        `json:"refreshToken"`
	SSOToken        string        `json:"ssoToken"`
	DeviceID        string        `json:"deviceId"`
	User            *api.UserData `json:"user"`
	IsAuthenticated bool          `json:"isAuthenticated"`
}

// IsAdmin reports whether the current user bypasses per-application filtering.
func (s State) IsAdmin() bool {
	return s.User != nil && api.UserRole(s.User.Role).IsAdmin()
}

// AllowedAppIDs returns the ids of the applications the user may open.
func (s State) AllowedAppIDs() []string {
	if s.User == nil {
		return nil
	}
	ids := make([]string, 0, len(s.User.AllowedApps))
	for _, app := range s.User.AllowedApps {
		ids = append(ids, app.ID)
	}
	return ids
}

// normalize re-derives IsAuthenticated so it always matches the tokens.
func (s State) normalize() State {
	s.IsAuthenticated = s.AccessToken != "" && s.RefreshToken != ""
	return s
}

// clone returns a copy that shares no mutable memory with s.
func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		u.AllowedApps = append([]api.AllowedApp(nil), s.User.AllowedApps...)
		s.User = &u
	}
	return s
}
