package sso

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/observability"
	"github.com/platinummonkey/ssoadmin/pkg/session"
)

// ErrNoRefreshToken is returned by Session.Refresh on a logged-out store.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// SessionConfig configures a Session.
type SessionConfig struct {
	Auth  *AuthService
	Store *session.Store
	// DeviceIDs supplies the device id sent with logins. Optional.
	DeviceIDs *session.DeviceIDs
	// ClientID identifies this application to the backend.
	ClientID  string
	UserAgent string
	FCMToken  string
	Logger    *observability.Logger
}

// Session runs the login, refresh and logout flows and keeps the store in
// step with their outcome.
type Session struct {
	auth      *AuthService
	store     *session.Store
	deviceIDs *session.DeviceIDs
	clientID  string
	userAgent string
	fcmToken  string
	logger    *observability.Logger
}

// NewSession creates the flow runner.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Session{
		auth:      cfg.Auth,
		store:     cfg.Store,
		deviceIDs: cfg.DeviceIDs,
		clientID:  cfg.ClientID,
		userAgent: cfg.UserAgent,
		fcmToken:  cfg.FCMToken,
		logger:    logger,
	}
}

// Store returns the session store the flows write to.
func (s *Session) Store() *session.Store {
	return s.store
}

// Auth returns the underlying endpoint bindings.
func (s *Session) Auth() *AuthService {
	return s.auth
}

// device returns the device id and info to attach to a login. A failing
// device id source degrades to an anonymous login.
func (s *Session) device(ctx context.Context) (string, api.DeviceInfo) {
	if s.deviceIDs == nil {
		return "", session.DeviceInfo("", s.userAgent)
	}
	id, err := s.deviceIDs.Get(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("device id unavailable")
		return "", session.DeviceInfo("", s.userAgent)
	}
	return id, session.DeviceInfo(id, s.userAgent)
}

func (s *Session) LoginWithEmail(ctx context.Context, email, password string) (*api.LoginResponse, error) {
	deviceID, info := s.device(ctx)
	resp, err := s.auth.LoginWithEmail(ctx, api.EmailPasswordLoginRequest{
		Email:      email,
		Password:   password,
		ClientID:   s.clientID,
		DeviceID:   deviceID,
		FCMToken:   s.fcmToken,
		DeviceInfo: info,
	})
	if err != nil {
		return nil, err
	}
	s.applyLogin(resp, deviceID)
	return resp, nil
}

func (s *Session) LoginWithFirebase(ctx context.Context, firebaseToken string) (*api.LoginResponse, error) {
	deviceID, info := s.device(ctx)
	resp, err := s.auth.LoginWithFirebase(ctx, api.FirebaseLoginRequest{
		FirebaseToken: firebaseToken,
		ClientID:      s.clientID,
		DeviceID:      deviceID,
		FCMToken:      s.fcmToken,
		DeviceInfo:    info,
	})
	if err != nil {
		return nil, err
	}
	s.applyLogin(resp, deviceID)
	return resp, nil
}

// CompleteGoogleLogin finishes a Google login with the code delivered to
// redirectURI.
func (s *Session) CompleteGoogleLogin(ctx context.Context, code, redirectURI string) (*api.LoginResponse, error) {
	deviceID, info := s.device(ctx)
	resp, err := s.auth.GoogleCallback(ctx, GoogleCallbackParams{
		Code:        code,
		RedirectURI: redirectURI,
		ClientID:    s.clientID,
		FCMToken:    s.fcmToken,
		DeviceInfo:  info,
	})
	if err != nil {
		return nil, err
	}
	s.applyLogin(resp, deviceID)
	return resp, nil
}

// ExchangeSSOToken trades ssoToken for tokens of this client.
func (s *Session) ExchangeSSOToken(ctx context.Context, ssoToken string) (*api.LoginResponse, error) {
	if s.clientID == "" {
		return nil, fmt.Errorf("client id is required for token exchange")
	}
	deviceID, info := s.device(ctx)
	resp, err := s.auth.ExchangeSSOToken(ctx, api.SSOTokenExchangeRequest{
		SSOToken:   ssoToken,
		ClientID:   s.clientID,
		DeviceID:   deviceID,
		FCMToken:   s.fcmToken,
		DeviceInfo: info,
	})
	if err != nil {
		return nil, err
	}
	s.applyLogin(resp, deviceID)
	return resp, nil
}

// applyLogin stores the tokens only when both are present. The user record
// is stored either way. A response without an SSO token keeps the stored one.
func (s *Session) applyLogin(resp *api.LoginResponse, deviceID string) {
	if resp.DeviceID != "" {
		deviceID = resp.DeviceID
	}
	if resp.AccessToken != "" && resp.RefreshToken != "" {
		var opts []session.TokenOption
		if resp.SSOToken != "" {
			opts = append(opts, session.WithSSOToken(resp.SSOToken))
		}
		if deviceID != "" {
			opts = append(opts, session.WithDeviceID(deviceID))
		}
		s.store.SetTokens(resp.AccessToken, resp.RefreshToken, opts...)
	} else if resp.SSOToken != "" {
		s.store.SetSSOToken(resp.SSOToken)
	}
	user := resp.User
	s.store.SetUser(&user)

	s.logger.WithField("user_id", resp.User.ID).
		WithField("authenticated", s.store.GetState().IsAuthenticated).
		Info("login succeeded")
}

// Refresh trades the stored refresh token for a new pair.
func (s *Session) Refresh(ctx context.Context) (*api.RefreshResponse, error) {
	st := s.store.GetState()
	if st.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	deviceID := st.DeviceID
	if deviceID == "" {
		deviceID, _ = s.device(ctx)
	}
	resp, err := s.auth.RefreshToken(ctx, api.RefreshTokenRequest{
		RefreshToken: st.RefreshToken,
		DeviceID:     deviceID,
	})
	if err != nil {
		return nil, err
	}
	s.store.SetTokens(resp.AccessToken, resp.RefreshToken)
	return resp, nil
}

// Logout ends all sessions on the server and clears the local session. The
// local session is cleared even if the server call fails.
func (s *Session) Logout(ctx context.Context) error {
	defer s.store.ClearAuth()
	if err := s.auth.LogoutGlobal(ctx); err != nil {
		s.logger.WithError(err).Warn("server logout failed, clearing local session")
		return err
	}
	return nil
}

// LogoutFromClient ends the sessions of clientID on the server. With
// thisDevice set only the current device is logged out. The local session
// is left alone.
func (s *Session) LogoutFromClient(ctx context.Context, clientID string, thisDevice bool) error {
	if clientID == "" {
		clientID = s.clientID
	}
	deviceID := ""
	if thisDevice {
		deviceID = s.store.GetState().DeviceID
		if deviceID == "" {
			deviceID, _ = s.device(ctx)
		}
	}
	return s.auth.LogoutFromClient(ctx, clientID, deviceID)
}

// Validate checks the access token and refreshes the stored user record.
func (s *Session) Validate(ctx context.Context) (*api.UserData, error) {
	user, err := s.auth.ValidateToken(ctx)
	if err != nil {
		return nil, err
	}
	s.store.SetUser(user)
	return user, nil
}

// Sessions lists the current user's sessions.
func (s *Session) Sessions(ctx context.Context) (*api.SessionsResponse, error) {
	return s.auth.Sessions(ctx)
}
