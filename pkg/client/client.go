package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/observability"
	"github.com/platinummonkey/ssoadmin/pkg/session"
)

const defaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 1 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the versioned API root, e.g. https://sso.example.com/api/v1.
	BaseURL string
	// Store supplies and receives tokens. Without a store requests are sent
	// unauthenticated.
	Store TokenStore
	// Transport is the underlying round tripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Timeout   time.Duration
	UserAgent string
	DeviceIDs *session.DeviceIDs
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	// Instrument wraps the transport with OpenTelemetry HTTP spans.
	Instrument bool
}

// Client talks to the SSO backend. Per-resource services are derived from
// it with Service.
type Client struct {
	baseURL   string
	http      HTTPDoer
	store     TokenStore
	userAgent string
	logger    *observability.Logger
}

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.Instrument {
		base = otelhttp.NewTransport(base)
	}

	transport := base
	if cfg.Store != nil {
		transport = NewAuthTransport(TransportConfig{
			BaseURL:   cfg.BaseURL,
			Store:     cfg.Store,
			Base:      base,
			DeviceIDs: cfg.DeviceIDs,
			Logger:    logger,
			Metrics:   cfg.Metrics,
		})
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      &http.Client{Transport: transport, Timeout: cfg.Timeout},
		store:     cfg.Store,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}, nil
}

// BaseURL returns the API root requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Service returns a view of the client rooted at basePath, e.g. "/users".
func (c *Client) Service(basePath string) *Service {
	return &Service{client: c, basePath: basePath}
}

// RequestOption adjusts an outgoing request.
type RequestOption func(*http.Request)

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// Service issues requests below one resource path and decodes the JSON
// envelope into out.
type Service struct {
	client   *Client
	basePath string
}

func (s *Service) Get(ctx context.Context, path string, query url.Values, out interface{}, opts ...RequestOption) error {
	return s.do(ctx, http.MethodGet, path, query, nil, "", out, opts)
}

func (s *Service) Post(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return s.doJSON(ctx, http.MethodPost, path, body, out, opts)
}

func (s *Service) Put(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return s.doJSON(ctx, http.MethodPut, path, body, out, opts)
}

func (s *Service) Patch(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return s.doJSON(ctx, http.MethodPatch, path, body, out, opts)
}

func (s *Service) Delete(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return s.do(ctx, http.MethodDelete, path, nil, nil, "", out, opts)
}

// PostMultipart sends form as multipart/form-data.
func (s *Service) PostMultipart(ctx context.Context, path string, form *Form, out interface{}) error {
	return s.doMultipart(ctx, http.MethodPost, path, form, out)
}

// PatchMultipart sends form as multipart/form-data.
func (s *Service) PatchMultipart(ctx context.Context, path string, form *Form, out interface{}) error {
	return s.doMultipart(ctx, http.MethodPatch, path, form, out)
}

func (s *Service) doJSON(ctx context.Context, method, path string, body, out interface{}, opts []RequestOption) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	return s.do(ctx, method, path, nil, payload, "application/json", out, opts)
}

func (s *Service) doMultipart(ctx context.Context, method, path string, form *Form, out interface{}) error {
	payload, contentType, err := form.encode()
	if err != nil {
		return err
	}
	return s.do(ctx, method, path, nil, payload, contentType, out, nil)
}

func (s *Service) do(ctx context.Context, method, path string, query url.Values, payload []byte, contentType string, out interface{}, opts []RequestOption) error {
	target := s.client.baseURL + s.basePath + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	// bytes.Reader bodies get GetBody, so the transport can replay them.
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.client.userAgent != "" {
		req.Header.Set("User-Agent", s.client.userAgent)
	}
	for _, opt := range opts {
		opt(req)
	}

	hadTokens := s.client.hasTokens()
	resp, err := s.client.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeError(resp)
		if resp.StatusCode == http.StatusUnauthorized && hadTokens && !s.client.hasTokens() {
			return errors.Join(ErrSessionExpired, apiErr)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s %s response: %w", method, s.basePath+path, err)
	}
	return nil
}

// hasTokens reports whether the store holds any credentials. A 401 that
// takes them away means the session expired.
func (c *Client) hasTokens() bool {
	if c.store == nil {
		return false
	}
	st := c.store.GetState()
	return st.AccessToken != "" || st.RefreshToken != ""
}

// decodeError turns a non-2xx response into an *api.Error.
func decodeError(resp *http.Response) *api.Error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return api.NewErrorFromResponse(resp.StatusCode, nil)
	}
	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return api.NewErrorFromResponse(resp.StatusCode, nil)
	}
	return api.NewErrorFromResponse(resp.StatusCode, &body)
}
