package session

import "github.com/platinummonkey/ssoadmin/pkg/api"

// Action is a state transition understood by Store.Dispatch.
type Action interface {
	apply(State) State
}

// SetTokens stores a new access/refresh pair. Nil SSOToken or DeviceID
// leave the stored values untouched.
type SetTokens struct {
	AccessToken  string
	RefreshToken string
	SSOToken     *string
	DeviceID     *string
}

func (a SetTokens) apply(s State) State {
	s.AccessToken = a.AccessToken
	s.RefreshToken = a.RefreshToken
	if a.SSOToken != nil {
		s.SSOToken = *a.SSOToken
	}
	if a.DeviceID != nil {
		s.DeviceID = *a.DeviceID
	}
	return s
}

// SetSSOToken replaces only the SSO exchange token.
type SetSSOToken struct {
	SSOToken string
}

func (a SetSSOToken) apply(s State) State {
	s.SSOToken = a.SSOToken
	return s
}

// SetUser replaces the identity record.
type SetUser struct {
	User *api.UserData
}

func (a SetUser) apply(s State) State {
	if a.User == nil {
		s.User = nil
		return s
	}
	u := *a.User
	u.AllowedApps = append([]api.AllowedApp(nil), a.User.AllowedApps...)
	s.User = &u
	return s
}

// ClearAuth resets every field to the empty state.
type ClearAuth struct{}

func (ClearAuth) apply(State) State {
	return State{}
}
