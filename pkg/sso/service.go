package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/client"
)

// Header names understood by POST /auth/logout/client.
const (
	HeaderClientID = "X-Client-ID"
	HeaderDeviceID = "X-Device-ID"
)

// GoogleCallbackParams are the query parameters of the Google callback.
type GoogleCallbackParams struct {
	Code        string
	RedirectURI string
	ClientID    string
	FCMToken    string
	DeviceInfo  api.DeviceInfo
}

func (p GoogleCallbackParams) values() (url.Values, error) {
	v := url.Values{}
	v.Set("code", p.Code)
	if p.RedirectURI != "" {
		v.Set("redirect_uri", p.RedirectURI)
	}
	if p.ClientID != "" {
		v.Set("client_id", p.ClientID)
	}
	if p.FCMToken != "" {
		v.Set("fcm_token", p.FCMToken)
	}
	if p.DeviceInfo != nil {
		info, err := json.Marshal(p.DeviceInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to encode device info: %w", err)
		}
		v.Set("device_info", string(info))
	}
	return v, nil
}

// AuthService binds the /auth endpoints.
type AuthService struct {
	svc *client.Service
}

// NewAuthService creates the service on top of c.
func NewAuthService(c *client.Client) *AuthService {
	return &AuthService{svc: c.Service("/auth")}
}

func (a *AuthService) LoginWithEmail(ctx context.Context, req api.EmailPasswordLoginRequest) (*api.LoginResponse, error) {
	var resp api.Response[api.LoginResponse]
	if err := a.svc.Post(ctx, "/login/email", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (a *AuthService) LoginWithFirebase(ctx context.Context, req api.FirebaseLoginRequest) (*api.LoginResponse, error) {
	var resp api.Response[api.LoginResponse]
	if err := a.svc.Post(ctx, "/login/firebase", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GoogleAuthURL asks the backend for the provider consent URL.
func (a *AuthService) GoogleAuthURL(ctx context.Context, redirectURI, state string) (string, error) {
	q := url.Values{}
	q.Set("redirect_uri", redirectURI)
	if state != "" {
		q.Set("state", state)
	}
	var resp api.Response[api.GoogleAuthURLResponse]
	if err := a.svc.Get(ctx, "/login/google", q, &resp); err != nil {
		return "", err
	}
	if resp.Data.AuthURL == "" {
		return "", fmt.Errorf("google auth url missing from response")
	}
	return resp.Data.AuthURL, nil
}

// GoogleCallback completes a Google login with the authorization code.
func (a *AuthService) GoogleCallback(ctx context.Context, params GoogleCallbackParams) (*api.LoginResponse, error) {
	q, err := params.values()
	if err != nil {
		return nil, err
	}
	var resp api.Response[api.LoginResponse]
	if err := a.svc.Get(ctx, "/login/google/callback", q, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ExchangeSSOToken trades an SSO token for client tokens.
func (a *AuthService) ExchangeSSOToken(ctx context.Context, req api.SSOTokenExchangeRequest) (*api.LoginResponse, error) {
	var resp api.Response[api.LoginResponse]
	if err := a.svc.Post(ctx, "/exchange", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (a *AuthService) RefreshToken(ctx context.Context, req api.RefreshTokenRequest) (*api.RefreshResponse, error) {
	var resp api.Response[api.RefreshResponse]
	if err := a.svc.Post(ctx, "/refresh", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// LogoutGlobal ends every session of the current user.
func (a *AuthService) LogoutGlobal(ctx context.Context) error {
	return a.svc.Post(ctx, "/logout", nil, nil)
}

// LogoutFromClient ends the sessions of one client application, optionally
// limited to one device.
func (a *AuthService) LogoutFromClient(ctx context.Context, clientID, deviceID string) error {
	opts := []client.RequestOption{client.WithHeader(HeaderClientID, clientID)}
	if deviceID != "" {
		opts = append(opts, client.WithHeader(HeaderDeviceID, deviceID))
	}
	return a.svc.Post(ctx, "/logout/client", nil, nil, opts...)
}

// ValidateToken returns the identity behind the current access token.
func (a *AuthService) ValidateToken(ctx context.Context) (*api.UserData, error) {
	var resp api.Response[api.UserData]
	if err := a.svc.Post(ctx, "/validate", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Sessions lists the current user's sessions grouped by client.
func (a *AuthService) Sessions(ctx context.Context) (*api.SessionsResponse, error) {
	var resp api.Response[api.SessionsResponse]
	if err := a.svc.Get(ctx, "/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
