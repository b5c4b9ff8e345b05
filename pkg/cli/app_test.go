package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/config"
	"github.com/platinummonkey/ssoadmin/pkg/session"
	"github.com/platinummonkey/ssoadmin/pkg/ssotest"
)

func testConfig(t *testing.T, server *ssotest.Server) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = server.BaseURL()
	cfg.Session.Dir = t.TempDir()
	return cfg
}

func newAppWith(t *testing.T, cfg *config.Config) (*App, error) {
	t.Helper()
	var out, errOut, logs bytes.Buffer
	return NewApp(context.Background(), cfg, NewLoggers(cfg.Observability, &logs), AppOptions{
		Out: &out,
		Err: &errOut,
	})
}

func TestNewApp_Backends(t *testing.T) {
	server := ssotest.New(t)
	mr := miniredis.RunT(t)

	tests := []struct {
		name      string
		configure func(cfg *config.Config)
		expected  interface{}
	}{
		{
			name:      "memory",
			configure: func(cfg *config.Config) { cfg.Session.Backend = config.BackendMemory },
			expected:  &session.MemoryPersister{},
		},
		{
			name:      "file",
			configure: func(cfg *config.Config) { cfg.Session.Backend = config.BackendFile },
			expected:  &session.FilePersister{},
		},
		{
			name: "redis",
			configure: func(cfg *config.Config) {
				cfg.Session.Backend = config.BackendRedis
				cfg.Session.RedisURL = "redis://" + mr.Addr()
			},
			expected: &session.RedisPersister{},
		},
		{
			name: "sqlite",
			configure: func(cfg *config.Config) {
				cfg.Session.Backend = config.BackendSQLite
				cfg.Session.SQLDSN = filepath.Join(t.TempDir(), "session.db")
			},
			expected: &session.SQLPersister{},
		},
		{
			name: "encrypted file",
			configure: func(cfg *config.Config) {
				cfg.Session.Backend = config.BackendFile
				cfg.Session.Passphrase = "kata sandi rahasia"
			},
			expected: &session.EncryptedPersister{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, server)
			tt.configure(cfg)

			app := &App{}
			p, err := app.openPersister(context.Background(), cfg.Session)
			require.NoError(t, err)
			assert.IsType(t, tt.expected, p)
			for _, closeFn := range app.closers {
				assert.NoError(t, closeFn())
			}
		})
	}
}

func TestNewApp_UnsupportedBackend(t *testing.T) {
	server := ssotest.New(t)
	cfg := testConfig(t, server)
	cfg.Session.Backend = "etcd"

	_, err := newAppWith(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported session backend: etcd")
}

func TestNewApp_SessionSurvivesRestart(t *testing.T) {
	server := ssotest.New(t)
	server.AddUser(api.User{UserListItem: api.UserListItem{ID: "u1", Name: "Ani", Email: "ani@example.com"}}, "rahasia")
	cfg := testConfig(t, server)
	cfg.Session.Passphrase = "kata sandi rahasia"

	first, err := newAppWith(t, cfg)
	require.NoError(t, err)
	_, err = first.Session.LoginWithEmail(first.Context(), "ani@example.com", "rahasia")
	require.NoError(t, err)
	deviceID := first.Store.GetState().DeviceID
	require.NoError(t, first.Close())

	second, err := newAppWith(t, cfg)
	require.NoError(t, err)
	defer second.Close()

	state := second.Store.GetState()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "u1", state.User.ID)
	assert.Equal(t, deviceID, state.DeviceID)

	me, err := second.Users.Me(second.Context())
	require.NoError(t, err)
	assert.Equal(t, "Ani", me.Name)
}

func TestNewApp_MetricsLoggedOnClose(t *testing.T) {
	server := ssotest.New(t)
	cfg := testConfig(t, server)
	cfg.Session.Backend = config.BackendMemory
	cfg.Observability.MetricsEnabled = true
	cfg.Observability.LogLevel = "debug"

	var logs bytes.Buffer
	app, err := NewApp(context.Background(), cfg, NewLoggers(cfg.Observability, &logs), AppOptions{
		Out: &bytes.Buffer{},
		Err: &bytes.Buffer{},
	})
	require.NoError(t, err)
	require.NotNil(t, app.Metrics)

	_, err = app.Users.Me(app.Context())
	require.Error(t, err)
	require.NoError(t, app.Close())

	assert.Contains(t, logs.String(), "metric=")
}

func TestNewLoggers_LogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ssoadmin.log")
	var stderr bytes.Buffer

	loggers := NewLoggers(config.ObservabilityConfig{
		LogLevel:      "warn",
		LogFile:       path,
		LogMaxSizeMB:  1,
		LogMaxBackups: 1,
	}, &stderr)
	loggers.Log.Info("hidden")
	loggers.Log.Warn("rotated warning")
	loggers.Logger.Error("library error")
	require.NoError(t, loggers.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rotated warning")
	assert.Contains(t, string(data), "library error")
	assert.NotContains(t, string(data), "hidden")
	assert.Empty(t, stderr.String())
}

func TestNewLoggers_Stderr(t *testing.T) {
	var stderr bytes.Buffer
	loggers := NewLoggers(config.ObservabilityConfig{LogLevel: "nonsense"}, &stderr)
	loggers.Log.Info("to stderr")
	require.NoError(t, loggers.Close())

	assert.Contains(t, stderr.String(), "to stderr")
}
