package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/httputil"
	"github.com/platinummonkey/ssoadmin/pkg/observability"
	"github.com/platinummonkey/ssoadmin/pkg/session"
	"github.com/platinummonkey/ssoadmin/pkg/ssotest"
)

type testEnv struct {
	server  *ssotest.Server
	store   *session.Store
	client  *Client
	metrics *observability.Metrics
	userID  string
}

// newTestEnv logs u1 in against a fake backend and returns a client on it.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	server := ssotest.New(t)
	user := server.AddUser(api.User{UserListItem: api.UserListItem{ID: "u1", Name: "Ani", Email: "a@b.com", Role: api.RoleAdmin}}, "x")
	at, rt := server.IssueTokens(user.ID)

	store := session.NewStore(context.Background())
	store.SetTokens(at, rt, session.WithDeviceID("dev-1"))

	metrics := observability.NewMetrics(nil)
	c, err := New(Config{
		BaseURL: server.BaseURL(),
		Store:   store,
		Metrics: metrics,
	})
	require.NoError(t, err)

	return &testEnv{server: server, store: store, client: c, metrics: metrics, userID: user.ID}
}

func (e *testEnv) me(ctx context.Context) (*api.Response[api.User], error) {
	var resp api.Response[api.User]
	err := e.client.Service("/users").Get(ctx, "/me", nil, &resp)
	return &resp, err
}

// countClears counts transitions from authenticated to empty.
func countClears(store *session.Store) *atomic.Int32 {
	var clears atomic.Int32
	store.Subscribe(func(st session.State) {
		if st.AccessToken == "" && st.RefreshToken == "" {
			clears.Add(1)
		}
	})
	return &clears
}

func TestAuthTransport_InjectsBearer(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.Data.ID)
	assert.Equal(t, []string{"Bearer AT1"}, env.server.AuthHeaders())
}

func TestAuthTransport_NoTokenSendsNoHeader(t *testing.T) {
	env := newTestEnv(t)
	env.store.ClearAuth()

	_, err := env.me(context.Background())
	require.Error(t, err)

	apiErr := api.ParseError(err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, []string{""}, env.server.AuthHeaders())
	assert.Equal(t, 0, env.server.RefreshCalls())
}

func TestAuthTransport_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.server.ExpireAccessTokens()
	env.server.SetRefreshDelay(100 * time.Millisecond)

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := env.me(context.Background())
			errs[i] = err
			if err == nil {
				ids[i] = resp.Data.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "u1", ids[i])
	}
	assert.Equal(t, 1, env.server.RefreshCalls())

	st := env.store.GetState()
	assert.Equal(t, "AT2", st.AccessToken)
	assert.Equal(t, "RT2", st.RefreshToken)
	assert.Equal(t, "dev-1", st.DeviceID, "refresh keeps the device id")

	var replayed int
	for _, h := range env.server.AuthHeaders() {
		if h == "Bearer AT2" {
			replayed++
		}
	}
	assert.Equal(t, n, replayed)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.TokenRefreshTotal.WithLabelValues("success")))
	assert.Equal(t, float64(n), testutil.ToFloat64(env.metrics.RequestRetriesTotal))
}

func TestAuthTransport_RefreshFailureClearsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.server.ExpireAccessTokens()
	env.server.SetFailRefresh(true)
	env.server.SetRefreshDelay(50 * time.Millisecond)
	clears := countClears(env.store)

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.me(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.True(t, api.ParseError(err).IsUnauthorized())
	}
	assert.Equal(t, int32(1), clears.Load())
	assert.Equal(t, 1, env.server.RefreshCalls())
	assert.False(t, env.store.GetState().IsAuthenticated)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.SessionClearsTotal.WithLabelValues("refresh_failed")))
}

func TestAuthTransport_NoRefreshTokenClears(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetTokens("AT-unknown", "")
	clears := countClears(env.store)

	_, err := env.me(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 0, env.server.RefreshCalls())
	assert.Equal(t, int32(1), clears.Load())
}

func TestAuthTransport_BadCredentialsKeepSession(t *testing.T) {
	env := newTestEnv(t)

	var resp api.Response[api.LoginResponse]
	err := env.client.Service("/auth").Post(context.Background(), "/login/email",
		api.EmailPasswordLoginRequest{Email: "a@b.com", Password: "wrong"}, &resp)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.True(t, api.ParseError(err).IsUnauthorized())
	assert.Equal(t, 0, env.server.RefreshCalls())
	assert.Equal(t, "AT1", env.store.AccessToken())
}

func TestAuthTransport_ReplaysJSONBody(t *testing.T) {
	env := newTestEnv(t)
	env.server.ExpireAccessTokens()

	var resp api.Response[api.User]
	err := env.client.Service("/users").Post(context.Background(), "", api.UserCreateRequest{Name: "Budi"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "Budi", resp.Data.Name)
	assert.Equal(t, 1, env.server.RefreshCalls())
}

func TestAuthTransport_UnreplayableBodyRefreshesWithoutRetry(t *testing.T) {
	env := newTestEnv(t)
	env.server.ExpireAccessTokens()

	transport := NewAuthTransport(TransportConfig{BaseURL: env.server.BaseURL(), Store: env.store})
	req, err := http.NewRequest(http.MethodPost, env.server.BaseURL()+"/users", io.NopCloser(strings.NewReader(`{"name":"Budi"}`)))
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, env.server.RefreshCalls())
	assert.Equal(t, "AT2", env.store.AccessToken(), "the next request can use the fresh token")
	assert.True(t, env.store.GetState().IsAuthenticated)
}

func TestAuthTransport_RetriesAtMostOnce(t *testing.T) {
	var refreshes, requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/auth/refresh") {
			refreshes.Add(1)
			httputil.WriteEnvelope(w, http.StatusOK, "OK", api.RefreshResponse{AccessToken: "AT-new", RefreshToken: "RT-new"})
			return
		}
		requests.Add(1)
		httputil.WriteUnauthorized(w, "Token tidak valid")
	}))
	defer srv.Close()

	store := session.NewStore(context.Background())
	store.SetTokens("AT-old", "RT-old")
	clears := countClears(store)

	c, err := New(Config{BaseURL: srv.URL + "/api/v1", Store: store})
	require.NoError(t, err)

	err = c.Service("/users").Get(context.Background(), "/me", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, int32(1), clears.Load())
}

func TestAuthTransport_ReusesNewerToken(t *testing.T) {
	var refreshes atomic.Int32
	refresher := doerFunc(func(*http.Request) (*http.Response, error) {
		refreshes.Add(1)
		return nil, errors.New("should not be called")
	})

	store := session.NewStore(context.Background())
	store.SetTokens("AT-new", "RT-new")

	transport := NewAuthTransport(TransportConfig{BaseURL: "http://sso.test/api/v1", Store: store, Refresher: refresher})
	token, err := transport.refresh(context.Background(), "AT-old")
	require.NoError(t, err)
	assert.Equal(t, "AT-new", token)
	assert.Equal(t, int32(0), refreshes.Load())
}

func TestAuthTransport_RefreshRequestBody(t *testing.T) {
	var got api.RefreshTokenRequest
	refresher := doerFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "http://sso.test/api/v1/auth/refresh", req.URL.String())
		assert.Empty(t, req.Header.Get("Authorization"))
		require.NoError(t, httputil.ParseJSON(req, &got))

		rec := httptest.NewRecorder()
		httputil.WriteEnvelope(rec, http.StatusOK, "OK", api.RefreshResponse{AccessToken: "AT2", RefreshToken: "RT2"})
		return rec.Result(), nil
	})

	store := session.NewStore(context.Background())
	store.SetTokens("AT1", "RT1", session.WithSSOToken("SSO1"))

	transport := NewAuthTransport(TransportConfig{BaseURL: "http://sso.test/api/v1/", Store: store, Refresher: refresher})
	token, err := transport.refresh(context.Background(), "AT1")
	require.NoError(t, err)
	assert.Equal(t, "AT2", token)
	assert.Equal(t, "RT1", got.RefreshToken)
	assert.Equal(t, fallbackDeviceID, got.DeviceID)
	assert.Equal(t, "SSO1", store.GetState().SSOToken, "refresh keeps the sso token")

	deviceIDs := session.NewDeviceIDs(session.NewMemoryPersister())
	want, err := deviceIDs.Get(context.Background())
	require.NoError(t, err)
	transport = NewAuthTransport(TransportConfig{BaseURL: "http://sso.test/api/v1", Store: store, Refresher: refresher, DeviceIDs: deviceIDs})
	_, err = transport.refresh(context.Background(), "AT2")
	require.NoError(t, err)
	assert.Equal(t, want, got.DeviceID)
}

func TestAuthTransport_RefreshSurvivesCallerCancel(t *testing.T) {
	env := newTestEnv(t)
	env.server.ExpireAccessTokens()
	env.server.SetRefreshDelay(200 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := env.me(ctx)
	require.Error(t, err)

	// The refresh finished on its own and the session is intact.
	require.Eventually(t, func() bool {
		return env.store.AccessToken() == "AT2"
	}, time.Second, 10*time.Millisecond)
	assert.True(t, env.store.GetState().IsAuthenticated)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestRetryState(t *testing.T) {
	r := &retryState{max: 1}
	assert.True(t, r.canRetry())
	r.attempt++
	assert.False(t, r.canRetry())
}

func TestDrain(t *testing.T) {
	body := io.NopCloser(bytes.NewReader(make([]byte, 1024)))
	drain(&http.Response{Body: body})
}
