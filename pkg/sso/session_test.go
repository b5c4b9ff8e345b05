package sso

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/client"
	"github.com/platinummonkey/ssoadmin/pkg/httputil"
	"github.com/platinummonkey/ssoadmin/pkg/session"
	"github.com/platinummonkey/ssoadmin/pkg/ssotest"
)

type testEnv struct {
	server  *ssotest.Server
	store   *session.Store
	client  *client.Client
	session *Session
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	server := ssotest.New(t)
	server.AddUser(api.User{UserListItem: api.UserListItem{Name: "Ani", Email: "a@b.com"}}, "x")

	return newEnvFor(t, server, server.BaseURL())
}

func newEnvFor(t *testing.T, server *ssotest.Server, baseURL string) *testEnv {
	t.Helper()

	store := session.NewStore(context.Background())
	devices := session.NewDeviceIDs(session.NewMemoryPersister())
	c, err := client.New(client.Config{BaseURL: baseURL, Store: store, DeviceIDs: devices})
	require.NoError(t, err)

	sess := NewSession(SessionConfig{
		Auth:      NewAuthService(c),
		Store:     store,
		DeviceIDs: devices,
		ClientID:  "ssoadmin",
		UserAgent: session.DefaultUserAgent("test"),
	})
	return &testEnv{server: server, store: store, client: c, session: sess}
}

func TestLoginThenAuthenticatedRequest(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.session.LoginWithEmail(context.Background(), "a@b.com", "x")
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.User.ID)

	st := env.store.GetState()
	assert.Equal(t, "AT1", st.AccessToken)
	assert.Equal(t, "RT1", st.RefreshToken)
	assert.Equal(t, "SSO1", st.SSOToken)
	assert.True(t, st.IsAuthenticated)
	require.NotNil(t, st.User)
	assert.Equal(t, "u1", st.User.ID)
	assert.NotEmpty(t, st.DeviceID)

	var me api.Response[api.User]
	require.NoError(t, env.client.Service("/users").Get(context.Background(), "/me", nil, &me))
	assert.Equal(t, "Ani", me.Data.Name)
	assert.Equal(t, []string{"Bearer AT1"}, env.server.AuthHeaders())

	info := env.server.LastDeviceInfo()
	assert.Equal(t, st.DeviceID, info["device_id"])
}

func TestLoginWithEmailValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.session.LoginWithEmail(context.Background(), "", "")
	require.Error(t, err)
	apiErr := api.ParseError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.NotEmpty(t, apiErr.FieldErrors("email"))
	assert.NotEmpty(t, apiErr.FieldErrors("password"))

	_, err = env.session.LoginWithEmail(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)
	assert.True(t, api.ParseError(err).IsUnauthorized())
	assert.False(t, env.store.GetState().IsAuthenticated)
	assert.Nil(t, env.store.GetState().User)
}

func TestLoginWithFirebase(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.session.LoginWithFirebase(context.Background(), "firebase:a@b.com")
	require.NoError(t, err)
	assert.True(t, env.store.GetState().IsAuthenticated)

	_, err = env.session.LoginWithFirebase(context.Background(), "bogus")
	assert.Error(t, err)
}

func TestExchangeSSOToken(t *testing.T) {
	env := newTestEnv(t)
	env.server.AddSSOToken("SSO-shared", "u1")

	resp, err := env.session.ExchangeSSOToken(context.Background(), "SSO-shared")
	require.NoError(t, err)
	assert.Equal(t, "SSO-shared", resp.SSOToken)

	st := env.store.GetState()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "SSO-shared", st.SSOToken)

	noClient := NewSession(SessionConfig{Auth: env.session.Auth(), Store: env.store})
	_, err = noClient.ExchangeSSOToken(context.Background(), "SSO-shared")
	assert.Error(t, err)
}

func TestLoginWithoutTokenPairStoresOnlySSOToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteEnvelope(w, http.StatusOK, "Login berhasil", api.LoginResponse{
			SSOToken:  "SSO-only",
			TokenType: "Bearer",
			User:      api.UserData{ID: "u9", Role: "user"},
		})
	}))
	defer srv.Close()
	env := newEnvFor(t, nil, srv.URL+"/api/v1")

	_, err := env.session.LoginWithEmail(context.Background(), "a@b.com", "x")
	require.NoError(t, err)

	st := env.store.GetState()
	assert.False(t, st.IsAuthenticated)
	assert.Empty(t, st.AccessToken)
	assert.Equal(t, "SSO-only", st.SSOToken)
	require.NotNil(t, st.User)
	assert.Equal(t, "u9", st.User.ID)
}

func TestExchangeWithoutSSOTokenKeepsStoredOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteEnvelope(w, http.StatusOK, "Login berhasil", api.LoginResponse{
			AccessToken:  "AT9",
			RefreshToken: "RT9",
			TokenType:    "Bearer",
			User:         api.UserData{ID: "u9", Role: "user"},
		})
	}))
	defer srv.Close()
	env := newEnvFor(t, nil, srv.URL+"/api/v1")
	env.store.SetTokens("AT1", "RT1", session.WithSSOToken("SSO-1"))

	_, err := env.session.ExchangeSSOToken(context.Background(), "SSO-1")
	require.NoError(t, err)

	st := env.store.GetState()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "AT9", st.AccessToken)
	assert.Equal(t, "RT9", st.RefreshToken)
	assert.Equal(t, "SSO-1", st.SSOToken)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.session.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoRefreshToken)

	_, err = env.session.LoginWithEmail(context.Background(), "a@b.com", "x")
	require.NoError(t, err)

	resp, err := env.session.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AT2", resp.AccessToken)
	assert.Equal(t, "AT2", env.store.AccessToken())
	assert.Equal(t, "RT2", env.store.RefreshToken())
	assert.Equal(t, "SSO1", env.store.GetState().SSOToken)
	assert.Equal(t, 1, env.server.RefreshCalls())

	env.server.RevokeRefreshTokens()
	_, err = env.session.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, "AT2", env.store.AccessToken(), "explicit refresh failure leaves the session")
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.session.LoginWithEmail(context.Background(), "a@b.com", "x")
	require.NoError(t, err)

	require.NoError(t, env.session.Logout(context.Background()))
	st := env.store.GetState()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
	assert.Empty(t, st.SSOToken)

	err = env.client.Service("/users").Get(context.Background(), "/me", nil, nil)
	require.Error(t, err)
	assert.True(t, api.ParseError(err).IsUnauthorized())
}

func TestLogoutClearsOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Terjadi kesalahan pada server")
	}))
	defer srv.Close()
	env := newEnvFor(t, nil, srv.URL+"/api/v1")
	env.store.SetTokens("AT1", "RT1")

	err := env.session.Logout(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, api.ParseError(err).Status)
	assert.False(t, env.store.GetState().IsAuthenticated)
}

func TestLogoutFromClientAndSessions(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.session.LoginWithEmail(context.Background(), "a@b.com", "x")
	require.NoError(t, err)

	sessions, err := env.session.Sessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sessions.TotalSessions)
	require.Len(t, sessions.Sessions["ssoadmin"], 1)
	assert.Equal(t, env.store.GetState().DeviceID, sessions.Sessions["ssoadmin"][0].DeviceID)

	require.NoError(t, env.session.LogoutFromClient(context.Background(), "", true))
	sessions, err = env.session.Sessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sessions.TotalSessions)
	assert.True(t, env.store.GetState().IsAuthenticated, "local session survives")
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.session.LoginWithEmail(context.Background(), "a@b.com", "x")
	require.NoError(t, err)

	app := env.server.AddApp(api.Application{ApplicationListItem: api.ApplicationListItem{Code: "HR", Name: "HRIS"}})
	env.server.Assign("u1", app.ID)

	user, err := env.session.Validate(context.Background())
	require.NoError(t, err)
	require.Len(t, user.AllowedApps, 1)
	assert.Equal(t, []string{app.ID}, env.store.GetState().AllowedAppIDs())
}

func TestGoogleCallbackParams(t *testing.T) {
	v, err := GoogleCallbackParams{
		Code:        "c1",
		RedirectURI: "http://127.0.0.1:9999/callback",
		ClientID:    "ssoadmin",
		DeviceInfo:  api.DeviceInfo{"device_id": "d1"},
	}.values()
	require.NoError(t, err)
	assert.Equal(t, "c1", v.Get("code"))
	assert.Equal(t, "ssoadmin", v.Get("client_id"))
	assert.Empty(t, v.Get("fcm_token"))
	assert.True(t, strings.Contains(v.Get("device_info"), `"device_id":"d1"`))
}

func apiStatus(err error) int {
	return api.ParseError(err).Status
}
