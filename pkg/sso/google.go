package sso

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/async"
	"github.com/platinummonkey/ssoadmin/pkg/httputil"
	"github.com/platinummonkey/ssoadmin/pkg/observability"
)

var (
	// ErrStateMismatch means the callback did not carry the state this flow
	// generated.
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrLoginTimeout means no callback arrived in time.
	ErrLoginTimeout = errors.New("timed out waiting for google login")
)

const (
	defaultCallbackPath = "/callback"
	defaultLoginTimeout = 5 * time.Minute
)

const callbackPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>ssoadmin</title></head>
<body><p>%s</p><p>Silakan kembali ke terminal.</p></body></html>`

// GoogleFlowConfig configures a GoogleFlow.
type GoogleFlowConfig struct {
	// ListenAddr is the loopback address of the callback listener.
	// Defaults to 127.0.0.1:0.
	ListenAddr   string
	CallbackPath string
	// OpenBrowser shows the consent URL to the user.
	OpenBrowser func(authURL string) error
	Timeout     time.Duration
	Logger      *observability.Logger
}

// GoogleFlow runs the Google redirect login from a terminal.
type GoogleFlow struct {
	session *Session
	cfg     GoogleFlowConfig
	logger  *observability.Logger
}

// NewGoogleFlow creates a flow that logs in through s.
func NewGoogleFlow(s *Session, cfg GoogleFlowConfig) *GoogleFlow {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = defaultCallbackPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultLoginTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &GoogleFlow{session: s, cfg: cfg, logger: logger}
}

type callbackResult struct {
	code string
	err  error
}

// Login opens the consent page, waits for the redirect and completes the
// login with the received code.
func (f *GoogleFlow) Login(ctx context.Context) (*api.LoginResponse, error) {
	if f.cfg.OpenBrowser == nil {
		return nil, fmt.Errorf("no way to open the browser configured")
	}

	ln, err := net.Listen("tcp", f.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}
	redirectURI := "http://" + ln.Addr().String() + f.cfg.CallbackPath
	state := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           f.callbackRouter(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	served := async.SafeGo(ctx, f.logger, 0, "google callback server", func(context.Context) error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-served
	}()

	authURL, err := f.session.Auth().GoogleAuthURL(ctx, redirectURI, state)
	if err != nil {
		return nil, err
	}
	if err := f.cfg.OpenBrowser(authURL); err != nil {
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}
	f.logger.WithField("redirect_uri", redirectURI).Info("waiting for google callback")

	timer := time.NewTimer(f.cfg.Timeout)
	defer timer.Stop()

	var res callbackResult
	select {
	case res = <-results:
	case <-timer.C:
		return nil, ErrLoginTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}
	return f.session.CompleteGoogleLogin(ctx, res.code, redirectURI)
}

func (f *GoogleFlow) callbackRouter(state string, results chan<- callbackResult) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(f.cfg.CallbackPath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("google login rejected: %s", q.Get("error"))
		case q.Get("state") != state:
			res.err = ErrStateMismatch
		case q.Get("code") == "":
			res.err = errors.New("google callback carried no code")
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			httputil.WriteHTML(w, http.StatusBadRequest, fmt.Sprintf(callbackPage, "Login gagal."))
		} else {
			httputil.WriteHTML(w, http.StatusOK, fmt.Sprintf(callbackPage, "Login berhasil."))
		}

		select {
		case results <- res:
		default:
			// A result was already delivered; later callbacks are ignored.
		}
	}).Methods(http.MethodGet)
	return httputil.Chain(
		httputil.RecoveryMiddleware(f.logger),
		httputil.LoggingMiddleware(f.logger),
	)(r)
}
