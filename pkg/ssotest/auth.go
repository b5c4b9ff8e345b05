package ssotest

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/httputil"
)

// loginLocked issues tokens and builds the login payload for userID.
func (s *Server) loginLocked(userID, deviceID string, info api.DeviceInfo) api.LoginResponse {
	at, rt := s.issueLocked(userID)
	sso := "SSO" + strings.TrimPrefix(at, "AT")
	s.ssoTokens[sso] = userID
	if info != nil {
		s.lastDevice = info
	}
	s.sessions[userID] = append(s.sessions[userID], api.SessionInfo{
		DeviceID:     deviceID,
		DeviceInfo:   info,
		IPAddress:    "127.0.0.1",
		CreatedAt:    httputil.Timestamp(time.Now()),
		LastActivity: httputil.Timestamp(time.Now()),
	})
	return api.LoginResponse{
		SSOToken:     sso,
		AccessToken:  at,
		RefreshToken: rt,
		DeviceID:     deviceID,
		TokenType:    "Bearer",
		ExpiresIn:    900,
		User:         s.userDataLocked(userID),
	}
}

func (s *Server) handleLoginEmail(w http.ResponseWriter, r *http.Request) {
	var req api.EmailPasswordLoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		fields := map[string][]string{}
		if req.Email == "" {
			fields["email"] = []string{"Email wajib diisi"}
		}
		if req.Password == "" {
			fields["password"] = []string{"Password wajib diisi"}
		}
		httputil.WriteValidationError(w, "Validasi gagal", fields)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	password, ok := s.passwords[req.Email]
	if !ok || password != req.Password {
		httputil.WriteUnauthorized(w, "Email atau password salah")
		return
	}
	userID := s.userIDByEmailLocked(req.Email)
	httputil.WriteEnvelope(w, http.StatusOK, "Login berhasil", s.loginLocked(userID, req.DeviceID, req.DeviceInfo))
}

// handleLoginFirebase accepts tokens of the form "firebase:<email>".
func (s *Server) handleLoginFirebase(w http.ResponseWriter, r *http.Request) {
	var req api.FirebaseLoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := strings.CutPrefix(req.FirebaseToken, "firebase:")
	userID := s.userIDByEmailLocked(email)
	if !ok || userID == "" {
		httputil.WriteUnauthorized(w, "Token Firebase tidak valid")
		return
	}
	httputil.WriteEnvelope(w, http.StatusOK, "Login berhasil", s.loginLocked(userID, req.DeviceID, req.DeviceInfo))
}

func (s *Server) handleGoogleAuthURL(w http.ResponseWriter, r *http.Request) {
	redirect := httputil.ParseQueryString(r, "redirect_uri", "")
	if !httputil.RequireNonEmpty(w, redirect, "redirect_uri") {
		return
	}
	q := url.Values{}
	q.Set("redirect_uri", redirect)
	q.Set("response_type", "code")
	if state := r.URL.Query().Get("state"); state != "" {
		q.Set("state", state)
	}
	httputil.WriteEnvelope(w, http.StatusOK, "OK", api.GoogleAuthURLResponse{
		AuthURL: "https://accounts.google.test/o/oauth2/auth?" + q.Encode(),
	})
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	code := httputil.ParseQueryString(r, "code", "")
	if !httputil.RequireNonEmpty(w, code, "code") {
		return
	}

	var info api.DeviceInfo
	if raw := r.URL.Query().Get("device_info"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			httputil.WriteBadRequest(w, "device_info tidak valid")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.googleCodes[code]
	if !ok {
		httputil.WriteUnauthorized(w, "Kode otorisasi tidak valid")
		return
	}
	delete(s.googleCodes, code)
	deviceID, _ := info["device_id"].(string)
	httputil.WriteEnvelope(w, http.StatusOK, "Login berhasil", s.loginLocked(userID, deviceID, info))
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req api.SSOTokenExchangeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.ssoTokens[req.SSOToken]
	if !ok || req.ClientID == "" {
		httputil.WriteUnauthorized(w, "SSO token tidak valid")
		return
	}
	resp := s.loginLocked(userID, req.DeviceID, req.DeviceInfo)
	resp.SSOToken = req.SSOToken
	httputil.WriteEnvelope(w, http.StatusOK, "Token berhasil ditukar", resp)
}

// handleRefresh rotates the refresh token: the presented one stops working.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	var req api.RefreshTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	s.mu.Lock()
	delay, fail := s.refreshDelay, s.failRefresh
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		httputil.WriteUnauthorized(w, "Refresh token tidak valid")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.refresh[req.RefreshToken]
	if !ok || req.DeviceID == "" {
		httputil.WriteUnauthorized(w, "Refresh token tidak valid")
		return
	}
	delete(s.refresh, req.RefreshToken)
	at, rt := s.issueLocked(userID)
	httputil.WriteEnvelope(w, http.StatusOK, "Token diperbarui", api.RefreshResponse{
		AccessToken:  at,
		RefreshToken: rt,
		TokenType:    "Bearer",
		ExpiresIn:    900,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	s.mu.Lock()
	for token, owner := range s.access {
		if owner == userID {
			delete(s.access, token)
		}
	}
	for token, owner := range s.refresh {
		if owner == userID {
			delete(s.refresh, token)
		}
	}
	delete(s.sessions, userID)
	s.mu.Unlock()

	httputil.WriteEnvelope[any](w, http.StatusOK, "Logout berhasil", nil)
}

func (s *Server) handleLogoutClient(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get("X-Client-ID")
	if clientID == "" {
		httputil.WriteBadRequest(w, "X-Client-ID wajib diisi")
		return
	}
	deviceID := r.Header.Get("X-Device-ID")

	s.mu.Lock()
	userID := currentUserID(r)
	kept := s.sessions[userID][:0]
	for _, sess := range s.sessions[userID] {
		if deviceID == "" || sess.DeviceID != deviceID {
			kept = append(kept, sess)
		}
	}
	s.sessions[userID] = kept
	s.mu.Unlock()

	httputil.WriteEnvelope[any](w, http.StatusOK, "Logout dari "+clientID+" berhasil", nil)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	httputil.WriteEnvelope(w, http.StatusOK, "Token valid", s.userDataLocked(currentUserID(r)))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := append([]api.SessionInfo(nil), s.sessions[currentUserID(r)]...)
	resp := api.SessionsResponse{Sessions: map[string][]api.SessionInfo{}}
	if len(sessions) > 0 {
		resp.Sessions["ssoadmin"] = sessions
		resp.TotalClients = 1
		resp.TotalSessions = len(sessions)
	}
	httputil.WriteEnvelope(w, http.StatusOK, "OK", resp)
}

func (s *Server) userIDByEmailLocked(email string) string {
	for _, id := range s.userOrder {
		if u := s.users[id]; u != nil && strings.EqualFold(u.Email, email) {
			return id
		}
	}
	return ""
}
