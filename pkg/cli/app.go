package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/ssoadmin/pkg/applications"
	"github.com/platinummonkey/ssoadmin/pkg/async"
	"github.com/platinummonkey/ssoadmin/pkg/audit"
	"github.com/platinummonkey/ssoadmin/pkg/client"
	"github.com/platinummonkey/ssoadmin/pkg/config"
	"github.com/platinummonkey/ssoadmin/pkg/observability"
	"github.com/platinummonkey/ssoadmin/pkg/session"
	"github.com/platinummonkey/ssoadmin/pkg/sso"
	"github.com/platinummonkey/ssoadmin/pkg/users"
)

// Version is stamped at build time.
var Version = "dev"

// AppOptions overrides the pieces NewApp would otherwise build from config.
type AppOptions struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Persister replaces the configured session backend.
	Persister session.Persister
	// Transport replaces http.DefaultTransport.
	Transport http.RoundTripper
	// OpenBrowser launches the system browser for Google login.
	OpenBrowser func(url string) error
}

// App is everything a command needs: configuration, the session store and
// the API services bound to it.
type App struct {
	Config  *config.Config
	Log     *logrus.Logger
	Logger  *observability.Logger
	Metrics *observability.Metrics

	Store   *session.Store
	Devices *session.DeviceIDs
	Client  *client.Client
	Session *sso.Session
	Users   *users.Service
	Apps    *applications.Service

	In  io.Reader
	Out io.Writer
	Err io.Writer

	OpenBrowser func(url string) error

	ctx     context.Context
	cancel  context.CancelFunc
	closers []func() error
	lines   *bufio.Scanner
}

// NewApp wires the client stack described by cfg.
func NewApp(ctx context.Context, cfg *config.Config, loggers *Loggers, opts AppOptions) (*App, error) {
	ctx, cancel := context.WithCancel(ctx)
	app := &App{
		Config:      cfg,
		Log:         loggers.Log,
		Logger:      loggers.Logger,
		In:          opts.In,
		Out:         opts.Out,
		Err:         opts.Err,
		OpenBrowser: opts.OpenBrowser,
		ctx:         ctx,
		cancel:      cancel,
	}
	if app.In == nil {
		app.In = os.Stdin
	}
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.Err == nil {
		app.Err = os.Stderr
	}
	if app.OpenBrowser == nil {
		app.OpenBrowser = openBrowser
	}

	if cfg.Observability.MetricsEnabled {
		app.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	if cfg.Observability.OTelEnabled {
		shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTel(), app.Logger)
		if err != nil {
			cancel()
			return nil, err
		}
		app.closers = append(app.closers, func() error { return shutdown(context.Background()) })
	}

	persister := opts.Persister
	if persister == nil {
		p, err := app.openPersister(ctx, cfg.Session)
		if err != nil {
			app.Close()
			return nil, err
		}
		persister = p
	}

	app.Store = session.NewStore(ctx,
		session.WithPersister(persister),
		session.WithLogger(app.Logger),
		session.WithMetrics(app.Metrics),
	)
	app.Devices = session.NewDeviceIDs(persister)

	if path := cfg.Observability.AuditLog; path != "" {
		trail, err := audit.NewFileLogger(audit.FileLoggerConfig{
			Path:       path,
			MaxSizeMB:  cfg.Observability.LogMaxSizeMB,
			MaxBackups: cfg.Observability.LogMaxBackups,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		detach := audit.Attach(app.Store, trail, app.Logger)
		app.closers = append(app.closers, func() error {
			detach()
			return trail.Close()
		})
	}

	if fp, ok := persister.(*session.FilePersister); ok && cfg.Session.Watch {
		async.SafeGo(ctx, app.Logger, 0, "session watch", func(ctx context.Context) error {
			return fp.WatchStore(ctx, app.Store)
		})
	}

	userAgent := cfg.API.UserAgent
	if userAgent == "" {
		userAgent = session.DefaultUserAgent(Version)
	}

	c, err := client.New(client.Config{
		BaseURL:    cfg.API.BaseURL,
		Store:      app.Store,
		Transport:  opts.Transport,
		Timeout:    cfg.API.Timeout,
		UserAgent:  userAgent,
		DeviceIDs:  app.Devices,
		Logger:     app.Logger,
		Metrics:    app.Metrics,
		Instrument: cfg.Observability.OTelEnabled,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Client = c
	app.Session = sso.NewSession(sso.SessionConfig{
		Auth:      sso.NewAuthService(c),
		Store:     app.Store,
		DeviceIDs: app.Devices,
		ClientID:  cfg.API.ClientID,
		UserAgent: userAgent,
		FCMToken:  cfg.API.FCMToken,
		Logger:    app.Logger,
	})
	app.Users = users.NewService(c)
	app.Apps = applications.NewService(c)

	return app, nil
}

// openPersister opens the configured session backend, wrapped for
// encryption at rest when a passphrase is set.
func (a *App) openPersister(ctx context.Context, cfg config.SessionConfig) (session.Persister, error) {
	var p session.Persister
	switch cfg.Backend {
	case config.BackendMemory:
		p = session.NewMemoryPersister()
	case config.BackendFile:
		fp, err := session.NewFilePersister(cfg.Dir)
		if err != nil {
			return nil, err
		}
		p = fp
	case config.BackendRedis:
		rp, err := session.NewRedisPersister(ctx, session.RedisConfig{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.RedisTTL,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rp.Close)
		p = rp
	case config.BackendSQLite, config.BackendPostgres:
		sp, err := session.OpenSQLPersister(ctx, cfg.Backend, cfg.SQLDSN, cfg.SQLTable)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sp.Close)
		p = sp
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}

	if cfg.Passphrase == "" {
		return p, nil
	}
	encrypted, err := session.NewEncryptedPersister(p, cfg.Passphrase)
	if err != nil {
		return nil, err
	}
	return encrypted, nil
}

// Context is the context commands run under. It is cancelled by Close.
func (a *App) Context() context.Context {
	return a.ctx
}

// Close stops background work and releases backends.
func (a *App) Close() error {
	a.cancel()
	a.logMetrics()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) logMetrics() {
	if a.Metrics == nil {
		return
	}
	families, err := a.Metrics.Registry().Gather()
	if err != nil {
		a.Log.WithError(err).Warn("failed to gather metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			entry := a.Log.WithField("metric", mf.GetName())
			for _, label := range m.GetLabel() {
				entry = entry.WithField(label.GetName(), label.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				entry.WithField("value", m.GetCounter().GetValue()).Debug("counter")
			case m.GetHistogram() != nil:
				entry.WithField("count", m.GetHistogram().GetSampleCount()).Debug("histogram")
			}
		}
	}
}
