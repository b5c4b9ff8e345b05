package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/observability"
	"github.com/platinummonkey/ssoadmin/pkg/session"
)

// ErrSessionExpired is returned once the session could not be refreshed and
// has been cleared. The user has to log in again.
var ErrSessionExpired = errors.New("session expired, please log in again")

// fallbackDeviceID is sent on refresh when the profile has no device id yet.
const fallbackDeviceID = "cli"

const refreshTimeout = 30 * time.Second

// TokenStore is the part of the session store the transport reads and mutates.
type TokenStore interface {
	GetState() session.State
	SetTokens(accessToken, refreshToken string, opts ...session.TokenOption)
	ClearAuth()
}

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// retryState travels with one logical request through the transport.
type retryState struct {
	attempt int
	max     int
}

func (r *retryState) canRetry() bool {
	return r.attempt < r.max
}

// AuthTransport injects the bearer token and recovers from expired access
// tokens. Concurrent 401s share a single refresh call; each request is
// replayed at most once.
type AuthTransport struct {
	base       http.RoundTripper
	store      TokenStore
	refreshURL string
	refresher  HTTPDoer
	deviceIDs  *session.DeviceIDs
	logger     *observability.Logger
	metrics    *observability.Metrics

	group singleflight.Group
}

// TransportConfig configures an AuthTransport.
type TransportConfig struct {
	// BaseURL is the versioned API root, e.g. https://sso.example.com/api/v1.
	BaseURL string
	Store   TokenStore
	// Base performs the actual round trips. Defaults to http.DefaultTransport.
	Base http.RoundTripper
	// Refresher posts the refresh call. It must not route through the
	// AuthTransport itself. Defaults to an http.Client over Base.
	Refresher HTTPDoer
	DeviceIDs *session.DeviceIDs
	Logger    *observability.Logger
	Metrics   *observability.Metrics
}

// NewAuthTransport creates a new bearer-injecting, refreshing transport.
func NewAuthTransport(cfg TransportConfig) *AuthTransport {
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	refresher := cfg.Refresher
	if refresher == nil {
		refresher = &http.Client{Transport: base, Timeout: refreshTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	return &AuthTransport{
		base:       base,
		store:      cfg.Store,
		refreshURL: strings.TrimRight(cfg.BaseURL, "/") + "/auth/refresh",
		refresher:  refresher,
		deviceIDs:  cfg.DeviceIDs,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	retry := &retryState{max: 1}

	sent := t.store.GetState().AccessToken
	resp, err := t.send(req, sent)
	if err != nil {
		return nil, err
	}

	for resp.StatusCode == http.StatusUnauthorized && !isCredentialRequest(req) {
		if !retry.canRetry() {
			// The replay was rejected too: the new token is no good either.
			t.clearSession("retry_rejected")
			return resp, nil
		}
		retry.attempt++

		token, err := t.refresh(req.Context(), sent)
		if err != nil {
			t.logger.WithError(err).WithField("path", req.URL.Path).Warn("token refresh failed")
			return resp, nil
		}
		if req.Body != nil && req.GetBody == nil {
			// The tokens are fresh for the next call, but this body is gone.
			t.logger.WithField("path", req.URL.Path).Warn("request body cannot be replayed")
			return resp, nil
		}

		drain(resp)
		t.metrics.RecordRetry()
		sent = token
		resp, err = t.send(req, sent)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// credentialPaths reject bad credentials with 401; a token refresh cannot
// fix those.
var credentialPaths = []string{"/auth/login/", "/auth/exchange", "/auth/refresh"}

func isCredentialRequest(req *http.Request) bool {
	for _, p := range credentialPaths {
		if strings.Contains(req.URL.Path, p) {
			return true
		}
	}
	return false
}

// send clones req with a fresh body and the given bearer token.
func (t *AuthTransport) send(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		out.Body = body
	}
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(out)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.metrics.RecordHTTPRequest(req.Method, status, time.Since(start))
	return resp, err
}

// refresh returns an access token newer than stale, refreshing at most once
// across all concurrent callers.
func (t *AuthTransport) refresh(ctx context.Context, stale string) (string, error) {
	// Detach from the leader's cancellation: joiners depend on the outcome.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	v, err, shared := t.group.Do("refresh", func() (interface{}, error) {
		st := t.store.GetState()
		switch {
		case st.AccessToken != "" && st.AccessToken != stale:
			// Someone refreshed while this request was in flight.
			return st.AccessToken, nil
		case st.AccessToken == "" && st.RefreshToken == "":
			// Already logged out, possibly by an earlier failed refresh.
			return "", ErrSessionExpired
		case st.RefreshToken == "":
			t.clearSession("no_refresh_token")
			return "", ErrSessionExpired
		}

		resp, err := t.callRefresh(ctx, st)
		if err != nil {
			t.clearSession("refresh_failed")
			return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		t.store.SetTokens(resp.AccessToken, resp.RefreshToken)
		return resp.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		t.logger.Debug("joined in-flight token refresh")
	}
	return v.(string), nil
}

func (t *AuthTransport) callRefresh(ctx context.Context, st session.State) (*api.RefreshResponse, error) {
	ctx, span := observability.Tracer().Start(ctx, "refresh")
	defer span.End()

	start := time.Now()
	resp, err := t.postRefresh(ctx, st)
	t.metrics.RecordRefresh(err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("ssoadmin.refresh.expires_in", resp.ExpiresIn))
	return resp, nil
}

func (t *AuthTransport) postRefresh(ctx context.Context, st session.State) (*api.RefreshResponse, error) {
	body, err := json.Marshal(api.RefreshTokenRequest{
		RefreshToken: st.RefreshToken,
		DeviceID:     t.deviceID(ctx, st),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.refreshURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.refresher.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}

	var envelope api.Response[api.RefreshResponse]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if envelope.Data.AccessToken == "" || envelope.Data.RefreshToken == "" {
		return nil, fmt.Errorf("refresh response is missing tokens")
	}
	return &envelope.Data, nil
}

func (t *AuthTransport) deviceID(ctx context.Context, st session.State) string {
	if st.DeviceID != "" {
		return st.DeviceID
	}
	if t.deviceIDs != nil {
		if id, err := t.deviceIDs.Get(ctx); err == nil {
			return id
		}
	}
	return fallbackDeviceID
}

// clearSession logs out locally. Only the first call changes the store;
// later calls are no-ops there and are not counted.
func (t *AuthTransport) clearSession(reason string) {
	if st := t.store.GetState(); st.AccessToken == "" && st.RefreshToken == "" {
		return
	}
	t.store.ClearAuth()
	t.metrics.RecordSessionClear(reason)
	t.logger.WithField("reason", reason).Info("session cleared")
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
