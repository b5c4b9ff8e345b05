// Package ssotest runs an in-memory SSO backend for tests. It speaks the
// same envelope and endpoints as the real service: logins, token refresh
// with rotation, users and applications.
package ssotest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/httputil"
	"github.com/platinummonkey/ssoadmin/pkg/observability"
)

// APIPrefix is the versioned path every endpoint lives under.
const APIPrefix = "/api/v1"

type ctxKey struct{}

// Server is a fake SSO backend.
type Server struct {
	srv *httptest.Server

	mu          sync.Mutex
	users       map[string]*api.User
	userOrder   []string
	passwords   map[string]string // email -> password
	apps        map[string]*api.Application
	appOrder    []string
	assignments map[string][]string // user id -> app ids
	access      map[string]string   // access token -> user id
	refresh     map[string]string   // refresh token -> user id
	ssoTokens   map[string]string   // sso token -> user id
	googleCodes map[string]string   // oauth code -> user id
	sessions    map[string][]api.SessionInfo
	seq         int
	idSeq       int

	refreshCalls atomic.Int32
	refreshDelay time.Duration
	failRefresh  bool
	authHeaders  []string
	lastDevice   api.DeviceInfo
}

// New starts a fake backend that is shut down when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:       map[string]*api.User{},
		passwords:   map[string]string{},
		apps:        map[string]*api.Application{},
		assignments: map[string][]string{},
		access:      map[string]string{},
		refresh:     map[string]string{},
		ssoTokens:   map[string]string{},
		googleCodes: map[string]string{},
		sessions:    map[string][]api.SessionInfo{},
	}
	s.srv = httptest.NewServer(s.routes())
	t.Cleanup(s.srv.Close)
	return s
}

// BaseURL is the versioned API root to configure clients with.
func (s *Server) BaseURL() string {
	return s.srv.URL + APIPrefix
}

// Client returns an http.Client bound to the server.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix(APIPrefix).Subrouter()

	auth := v1.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login/email", s.handleLoginEmail).Methods(http.MethodPost)
	auth.HandleFunc("/login/firebase", s.handleLoginFirebase).Methods(http.MethodPost)
	auth.HandleFunc("/login/google", s.handleGoogleAuthURL).Methods(http.MethodGet)
	auth.HandleFunc("/login/google/callback", s.handleGoogleCallback).Methods(http.MethodGet)
	auth.HandleFunc("/exchange", s.handleExchange).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	auth.Handle("/logout", s.protect(s.handleLogout)).Methods(http.MethodPost)
	auth.Handle("/logout/client", s.protect(s.handleLogoutClient)).Methods(http.MethodPost)
	auth.Handle("/validate", s.protect(s.handleValidate)).Methods(http.MethodPost)
	auth.Handle("/sessions", s.protect(s.handleSessions)).Methods(http.MethodGet)

	users := v1.PathPrefix("/users").Subrouter()
	users.Handle("", s.protect(s.handleListUsers)).Methods(http.MethodGet)
	users.Handle("", s.protect(s.adminOnly(s.handleCreateUser))).Methods(http.MethodPost)
	users.Handle("/me", s.protect(s.handleMe)).Methods(http.MethodGet)
	users.Handle("/me", s.protect(s.handleUpdateMe)).Methods(http.MethodPatch)
	users.Handle("/{id}", s.protect(s.handleGetUser)).Methods(http.MethodGet)
	users.Handle("/{id}", s.protect(s.adminOnly(s.handleUpdateUser))).Methods(http.MethodPatch)
	users.Handle("/{id}", s.protect(s.adminOnly(s.handleDeleteUser))).Methods(http.MethodDelete)

	apps := v1.PathPrefix("/applications").Subrouter()
	apps.Handle("", s.protect(s.handleListApps)).Methods(http.MethodGet)
	apps.Handle("", s.protect(s.adminOnly(s.handleCreateApp))).Methods(http.MethodPost)
	apps.Handle("/my-apps", s.protect(s.handleMyApps)).Methods(http.MethodGet)
	apps.Handle("/user/{id}", s.protect(s.handleUserApps)).Methods(http.MethodGet)
	apps.Handle("/user/{id}/assign", s.protect(s.adminOnly(s.handleAssign))).Methods(http.MethodPost)
	apps.Handle("/user/{id}/{appId}", s.protect(s.adminOnly(s.handleRemoveAssignment))).Methods(http.MethodDelete)
	apps.Handle("/{id}", s.protect(s.handleGetApp)).Methods(http.MethodGet)
	apps.Handle("/{id}", s.protect(s.adminOnly(s.handleUpdateApp))).Methods(http.MethodPatch)
	apps.Handle("/{id}", s.protect(s.adminOnly(s.handleDeleteApp))).Methods(http.MethodDelete)

	logger := observability.NewNopLogger()
	return httputil.Chain(
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
	)(r)
}

// protect rejects requests without a live access token and records the
// Authorization header of those that reach it.
func (s *Server) protect(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")

		s.mu.Lock()
		s.authHeaders = append(s.authHeaders, header)
		userID, ok := s.access[strings.TrimPrefix(header, "Bearer ")]
		s.mu.Unlock()

		if !strings.HasPrefix(header, "Bearer ") || !ok {
			httputil.WriteUnauthorized(w, "Token tidak valid atau sudah kedaluwarsa")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

// adminOnly rejects callers whose role is not an admin role.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		user, ok := s.users[currentUserID(r)]
		admin := ok && user.Role.IsAdmin()
		s.mu.Unlock()

		if !admin {
			httputil.WriteForbidden(w, "Akses ditolak")
			return
		}
		next(w, r)
	}
}

func currentUserID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// AddUser registers an account. A non-empty password enables email login.
func (s *Server) AddUser(user api.User, password string) *api.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		s.idSeq++
		user.ID = fmt.Sprintf("u%d", s.idSeq)
	}
	if user.Status == "" {
		user.Status = api.StatusActive
	}
	if user.Role == "" {
		user.Role = api.RoleUser
	}
	if user.CreatedAt == "" {
		user.CreatedAt = "2025-12-11T08:00:00Z"
		user.UpdatedAt = user.CreatedAt
	}
	u := user
	if _, exists := s.users[u.ID]; !exists {
		s.userOrder = append(s.userOrder, u.ID)
	}
	s.users[u.ID] = &u
	if password != "" && u.Email != "" {
		s.passwords[u.Email] = password
	}
	return &u
}

// AddApp registers an application.
func (s *Server) AddApp(app api.Application) *api.Application {
	s.mu.Lock()
	defer s.mu.Unlock()

	if app.ID == "" {
		s.idSeq++
		app.ID = fmt.Sprintf("app%d", s.idSeq)
	}
	if app.CreatedAt == "" {
		app.CreatedAt = "2025-12-11T08:00:00Z"
		app.UpdatedAt = app.CreatedAt
	}
	a := app
	if _, exists := s.apps[a.ID]; !exists {
		s.appOrder = append(s.appOrder, a.ID)
	}
	s.apps[a.ID] = &a
	return &a
}

// Assign grants a user access to applications.
func (s *Server) Assign(userID string, appIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignLocked(userID, appIDs)
}

func (s *Server) assignLocked(userID string, appIDs []string) {
	existing := map[string]bool{}
	for _, id := range s.assignments[userID] {
		existing[id] = true
	}
	for _, id := range appIDs {
		if !existing[id] {
			s.assignments[userID] = append(s.assignments[userID], id)
			existing[id] = true
		}
	}
}

// AddGoogleCode makes code a valid OAuth authorization code for userID.
func (s *Server) AddGoogleCode(code, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.googleCodes[code] = userID
}

// AddSSOToken makes token exchangeable for a login of userID.
func (s *Server) AddSSOToken(token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ssoTokens[token] = userID
}

// IssueTokens mints an access/refresh pair for userID, named AT<n>/RT<n>.
func (s *Server) IssueTokens(userID string) (accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(userID)
}

func (s *Server) issueLocked(userID string) (string, string) {
	s.seq++
	at := fmt.Sprintf("AT%d", s.seq)
	rt := fmt.Sprintf("RT%d", s.seq)
	s.access[at] = userID
	s.refresh[rt] = userID
	return at, rt
}

// ExpireAccessTokens invalidates every access token; refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = map[string]string{}
}

// RevokeRefreshTokens invalidates every refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = map[string]string{}
}

// SetRefreshDelay slows down the refresh endpoint.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// SetFailRefresh makes the refresh endpoint answer 401.
func (s *Server) SetFailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// RefreshCalls is the number of refresh requests received.
func (s *Server) RefreshCalls() int {
	return int(s.refreshCalls.Load())
}

// AuthHeaders returns the Authorization headers seen by protected endpoints.
func (s *Server) AuthHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.authHeaders...)
}

// LastDeviceInfo is the device info of the most recent login.
func (s *Server) LastDeviceInfo() api.DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDevice
}

// User returns the stored account.
func (s *Server) User(id string) (api.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return api.User{}, false
	}
	return *u, true
}

// App returns the stored application.
func (s *Server) App(id string) (api.Application, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return api.Application{}, false
	}
	return *a, true
}

// Assignments returns the application ids granted to userID.
func (s *Server) Assignments(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.assignments[userID]...)
}

func (s *Server) userDataLocked(userID string) api.UserData {
	u := s.users[userID]
	data := api.UserData{ID: u.ID, Role: string(u.Role), Name: u.Name, Email: u.Email, AllowedApps: []api.AllowedApp{}}
	for _, appID := range s.assignments[userID] {
		if a, ok := s.apps[appID]; ok {
			data.AllowedApps = append(data.AllowedApps, api.AllowedApp{ID: a.ID, Code: a.Code, Name: a.Name})
		}
	}
	return data
}

func (s *Server) userLocked(userID string) api.User {
	u := *s.users[userID]
	u.AllowedApps = s.userDataLocked(userID).AllowedApps
	return u
}
