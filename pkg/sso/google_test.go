package sso

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// browserFor simulates the provider redirecting back to the listener.
func browserFor(code string, tamper func(url.Values)) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		redirect := u.Query().Get("redirect_uri")
		q := url.Values{}
		q.Set("code", code)
		q.Set("state", u.Query().Get("state"))
		if tamper != nil {
			tamper(q)
		}
		go func() {
			resp, err := http.Get(redirect + "?" + q.Encode())
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func TestGoogleFlowLogin(t *testing.T) {
	env := newTestEnv(t)
	env.server.AddGoogleCode("G1", "u1")

	flow := NewGoogleFlow(env.session, GoogleFlowConfig{
		OpenBrowser: browserFor("G1", nil),
		Timeout:     5 * time.Second,
	})
	resp, err := flow.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.User.ID)
	assert.True(t, env.store.GetState().IsAuthenticated)
	assert.Equal(t, env.store.GetState().DeviceID, env.server.LastDeviceInfo()["device_id"])
}

func TestGoogleFlowRejectsBadCallbacks(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(url.Values)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "state mismatch",
			tamper: func(q url.Values) { q.Set("state", "forged") },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrStateMismatch) },
		},
		{
			name:   "provider error",
			tamper: func(q url.Values) { q.Set("error", "access_denied") },
			check:  func(t *testing.T, err error) { assert.ErrorContains(t, err, "access_denied") },
		},
		{
			name:   "missing code",
			tamper: func(q url.Values) { q.Del("code") },
			check:  func(t *testing.T, err error) { assert.ErrorContains(t, err, "no code") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.server.AddGoogleCode("G1", "u1")

			flow := NewGoogleFlow(env.session, GoogleFlowConfig{
				OpenBrowser: browserFor("G1", tt.tamper),
				Timeout:     5 * time.Second,
			})
			_, err := flow.Login(context.Background())
			require.Error(t, err)
			tt.check(t, err)
			assert.False(t, env.store.GetState().IsAuthenticated)
		})
	}
}

func TestGoogleFlowTimeout(t *testing.T) {
	env := newTestEnv(t)

	flow := NewGoogleFlow(env.session, GoogleFlowConfig{
		OpenBrowser: func(string) error { return nil },
		Timeout:     50 * time.Millisecond,
	})
	_, err := flow.Login(context.Background())
	assert.ErrorIs(t, err, ErrLoginTimeout)
}

func TestGoogleFlowBrowserFailure(t *testing.T) {
	env := newTestEnv(t)

	flow := NewGoogleFlow(env.session, GoogleFlowConfig{
		OpenBrowser: func(string) error { return fmt.Errorf("no display") },
	})
	_, err := flow.Login(context.Background())
	assert.ErrorContains(t, err, "no display")

	_, err = NewGoogleFlow(env.session, GoogleFlowConfig{}).Login(context.Background())
	assert.Error(t, err)
}

func TestGoogleFlowInvalidCode(t *testing.T) {
	env := newTestEnv(t)

	flow := NewGoogleFlow(env.session, GoogleFlowConfig{
		OpenBrowser: browserFor("unknown", nil),
		Timeout:     5 * time.Second,
	})
	_, err := flow.Login(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apiStatus(err))
}
