package ssotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/httputil"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	params, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	q := r.URL.Query()

	s.mu.Lock()
	var matched []api.UserListItem
	for _, id := range s.userOrder {
		u := s.users[id]
		if !matchesTerm(params.Search, u.Name, u.Email, u.Alias) {
			continue
		}
		if v := q.Get("status"); v != "" && string(u.Status) != v {
			continue
		}
		if v := q.Get("role"); v != "" && string(u.Role) != v {
			continue
		}
		if v := q.Get("gender"); v != "" && u.Gender != v {
			continue
		}
		matched = append(matched, u.UserListItem)
	}
	s.mu.Unlock()

	if params.SortBy == "name" {
		sort.SliceStable(matched, func(i, j int) bool {
			if params.SortOrder == api.SortDesc {
				return matched[i].Name > matched[j].Name
			}
			return matched[i].Name < matched[j].Name
		})
	}

	page, meta := paginate(matched, params)
	httputil.WritePaginated(w, "OK", page, meta)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	httputil.WriteEnvelope(w, http.StatusOK, "OK", s.userLocked(currentUserID(r)))
}

// handleUpdateMe accepts JSON or multipart with an "avatar" file part.
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req api.UserUpdateRequest
	avatar := ""

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		if name := r.FormValue("name"); name != "" {
			req.Name = &name
		}
		if bio := r.FormValue("bio"); bio != "" {
			req.Bio = &bio
		}
		if _, header, err := r.FormFile("avatar"); err == nil {
			avatar = "/uploads/avatars/" + header.Filename
		}
	} else if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	// Users cannot promote themselves.
	req.Role, req.Status = nil, nil

	s.mu.Lock()
	defer s.mu.Unlock()

	id := currentUserID(r)
	applyUserUpdate(s.users[id], req)
	if avatar != "" {
		s.users[id].AvatarURL = avatar
	}
	httputil.WriteEnvelope(w, http.StatusOK, "Profil diperbarui", s.userLocked(id))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		httputil.WriteNotFoundError(w, "User tidak ditemukan")
		return
	}
	httputil.WriteEnvelope(w, http.StatusOK, "OK", s.userLocked(id))
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req api.UserCreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	s.mu.Lock()
	if req.Email != "" && s.userIDByEmailLocked(req.Email) != "" {
		s.mu.Unlock()
		httputil.WriteValidationError(w, "Validasi gagal", map[string][]string{
			"email": {"Email sudah terdaftar"},
		})
		return
	}
	s.mu.Unlock()

	created := s.AddUser(api.User{UserListItem: api.UserListItem{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		AvatarURL:   req.AvatarPath,
		Alias:       req.Alias,
		Gender:      req.Gender,
		DateOfBirth: req.DateOfBirth,
		Address:     req.Address,
		Bio:         req.Bio,
		Role:        req.Role,
		Status:      req.Status,
	}}, "")

	s.mu.Lock()
	defer s.mu.Unlock()
	httputil.WriteEnvelope(w, http.StatusCreated, "User berhasil dibuat", s.userLocked(created.ID))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req api.UserUpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[id]
	if !exists {
		httputil.WriteNotFoundError(w, "User tidak ditemukan")
		return
	}
	applyUserUpdate(u, req)
	httputil.WriteEnvelope(w, http.StatusOK, "User berhasil diperbarui", s.userLocked(id))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		httputil.WriteNotFoundError(w, "User tidak ditemukan")
		return
	}
	delete(s.users, id)
	delete(s.assignments, id)
	for i, uid := range s.userOrder {
		if uid == id {
			s.userOrder = append(s.userOrder[:i], s.userOrder[i+1:]...)
			break
		}
	}
	httputil.WriteEnvelope[any](w, http.StatusOK, "User berhasil dihapus", nil)
}

func applyUserUpdate(u *api.User, req api.UserUpdateRequest) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.Name, req.Name)
	set(&u.Email, req.Email)
	set(&u.Phone, req.Phone)
	set(&u.AvatarURL, req.AvatarPath)
	set(&u.Alias, req.Alias)
	set(&u.Gender, req.Gender)
	set(&u.DateOfBirth, req.DateOfBirth)
	set(&u.Address, req.Address)
	set(&u.Bio, req.Bio)
	if req.Role != nil {
		u.Role = *req.Role
	}
	if req.Status != nil {
		u.Status = *req.Status
	}
	u.UpdatedAt = "2025-12-12T08:00:00Z"
}

func matchesTerm(term string, fields ...string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, params api.PaginationParams) ([]T, api.PaginationMeta) {
	meta := httputil.NewMeta(params.Page, params.Limit, len(items))
	start := (params.Page - 1) * params.Limit
	if start >= len(items) {
		return []T{}, meta
	}
	end := start + params.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], meta
}

// String renders the server's users for test failure messages.
func (s *Server) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, _ := json.Marshal(s.userOrder)
	return fmt.Sprintf("ssotest.Server{users=%s apps=%d}", data, len(s.apps))
}
