package api

// DeviceInfo is free-form device metadata attached to logins.
type DeviceInfo map[string]any

// EmailPasswordLoginRequest is the body of POST /auth/login/email.
type EmailPasswordLoginRequest struct {
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	ClientID   string     `json:"client_id,omitempty"`
	DeviceID   string     `json:"device_id,omitempty"`
	FCMToken   string     `json:"fcm_token,omitempty"`
	DeviceInfo DeviceInfo `json:"device_info,omitempty"`
}

// FirebaseLoginRequest is the body of POST /auth/login/firebase.
type FirebaseLoginRequest struct {
	FirebaseToken string     `json:"firebase_token"`
	ClientID      string     `json:"client_id,omitempty"`
	DeviceID      string     `json:"device_id,omitempty"`
	FCMToken      string     `json:"fcm_token,omitempty"`
	DeviceInfo    DeviceInfo `json:"device_info,omitempty"`
}

// RefreshTokenRequest is the body of POST /auth/refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
	DeviceID     string `json:"device_id"`
}

// SSOTokenExchangeRequest is the body of POST /auth/exchange.
type SSOTokenExchangeRequest struct {
	SSOToken   string     `json:"sso_token"`
	ClientID   string     `json:"client_id"`
	DeviceID   string     `json:"device_id,omitempty"`
	FCMToken   string     `json:"fcm_token,omitempty"`
	DeviceInfo DeviceInfo `json:"device_info,omitempty"`
}

// AllowedApp is an application reference a user may open.
type AllowedApp struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// UserData is the identity returned by login and validate.
type UserData struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	Name        string       `json:"name,omitempty"`
	Email       string       `json:"email,omitempty"`
	AllowedApps []AllowedApp `json:"allowed_apps"`
}

// LoginResponse is returned by every login flavour and the SSO exchange.
// Access and refresh tokens are absent when the backend only issues an SSO token.
type LoginResponse struct {
	SSOToken     string   `json:"sso_token"`
	AccessToken  string   `json:"access_token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	DeviceID     string   `json:"device_id,omitempty"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in,omitempty"`
	User         UserData `json:"user"`
}

// RefreshResponse is returned by POST /auth/refresh.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// SessionInfo is one device session of the current user.
type SessionInfo struct {
	DeviceID     string         `json:"device_id"`
	DeviceInfo   map[string]any `json:"device_info,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	CreatedAt    string         `json:"created_at"`
	LastActivity string         `json:"last_activity"`
}

// SessionsResponse groups the user's sessions by client application.
type SessionsResponse struct {
	Sessions      map[string][]SessionInfo `json:"sessions"`
	TotalClients  int                      `json:"total_clients"`
	TotalSessions int                      `json:"total_sessions"`
}

// GoogleAuthURLResponse carries the provider redirect URL.
type GoogleAuthURLResponse struct {
	AuthURL string `json:"auth_url"`
}
