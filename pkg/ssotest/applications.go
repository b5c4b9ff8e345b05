package ssotest

import (
	"net/http"
	"strconv"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/httputil"
)

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	params, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	var active *bool
	if v := r.URL.Query().Get("is_active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteBadRequest(w, "is_active tidak valid")
			return
		}
		active = &b
	}

	s.mu.Lock()
	var matched []api.ApplicationListItem
	for _, id := range s.appOrder {
		a := s.apps[id]
		if !matchesTerm(params.Search, a.Name, a.Code) {
			continue
		}
		if active != nil && a.IsActive != *active {
			continue
		}
		matched = append(matched, a.ApplicationListItem)
	}
	s.mu.Unlock()

	page, meta := paginate(matched, params)
	httputil.WritePaginated(w, "OK", page, meta)
}

func (s *Server) handleMyApps(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	httputil.WriteEnvelope(w, http.StatusOK, "OK", s.appDetailsLocked(currentUserID(r)))
}

func (s *Server) handleUserApps(w http.ResponseWriter, r *http.Request) {
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
	httputil.WriteEnvelope(w, http.StatusOK, "OK", s.appDetailsLocked(id))
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req api.UserApplicationAssignRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		httputil.WriteNotFoundError(w, "User tidak ditemukan")
		return
	}
	for _, appID := range req.ApplicationIDs {
		if _, exists := s.apps[appID]; !exists {
			httputil.WriteValidationError(w, "Validasi gagal", map[string][]string{
				"application_ids": {"Aplikasi " + appID + " tidak ditemukan"},
			})
			return
		}
	}
	s.assignLocked(id, req.ApplicationIDs)
	httputil.WriteEnvelope(w, http.StatusOK, "Aplikasi berhasil ditambahkan", s.appDetailsLocked(id))
}

func (s *Server) handleRemoveAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	appID, ok := httputil.ParsePathStringOrError(w, r, "appId")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.assignments[id][:0]
	found := false
	for _, a := range s.assignments[id] {
		if a == appID {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		httputil.WriteNotFoundError(w, "Aplikasi tidak ditemukan pada user")
		return
	}
	s.assignments[id] = kept
	httputil.WriteEnvelope[any](w, http.StatusOK, "Aplikasi berhasil dihapus dari user", nil)
}

func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.apps[id]
	if !exists {
		httputil.WriteNotFoundError(w, "Aplikasi tidak ditemukan")
		return
	}
	httputil.WriteEnvelope(w, http.StatusOK, "OK", *a)
}

func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		httputil.WriteBadRequest(w, "Form tidak valid")
		return
	}

	fields := map[string][]string{}
	for _, name := range []string{"name", "code", "base_url"} {
		if r.FormValue(name) == "" {
			fields[name] = []string{name + " wajib diisi"}
		}
	}
	if len(fields) > 0 {
		httputil.WriteValidationError(w, "Validasi gagal", fields)
		return
	}

	app := api.Application{ApplicationListItem: api.ApplicationListItem{
		Name:        r.FormValue("name"),
		Code:        r.FormValue("code"),
		BaseURL:     r.FormValue("base_url"),
		Description: r.FormValue("description"),
		IsActive:    true,
	}}
	app.SingleSession, _ = strconv.ParseBool(r.FormValue("single_session"))
	app.IconURL = uploadedPath(r, "icon")
	app.ImgURL = uploadedPath(r, "img")

	created := s.AddApp(app)
	httputil.WriteEnvelope(w, http.StatusCreated, "Aplikasi berhasil dibuat", *created)
}

func (s *Server) handleUpdateApp(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		httputil.WriteBadRequest(w, "Form tidak valid")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.apps[id]
	if !exists {
		httputil.WriteNotFoundError(w, "Aplikasi tidak ditemukan")
		return
	}
	form := r.MultipartForm.Value
	setString := func(dst *string, key string) {
		if v, ok := form[key]; ok && len(v) > 0 {
			*dst = v[0]
		}
	}
	setBool := func(dst *bool, key string) {
		if v, ok := form[key]; ok && len(v) > 0 {
			*dst, _ = strconv.ParseBool(v[0])
		}
	}
	setString(&a.Name, "name")
	setString(&a.Code, "code")
	setString(&a.BaseURL, "base_url")
	setString(&a.Description, "description")
	setBool(&a.IsActive, "is_active")
	setBool(&a.SingleSession, "single_session")
	if p := uploadedPath(r, "icon"); p != "" {
		a.IconURL = p
	}
	if p := uploadedPath(r, "img"); p != "" {
		a.ImgURL = p
	}
	a.UpdatedAt = "2025-12-12T08:00:00Z"
	httputil.WriteEnvelope(w, http.StatusOK, "Aplikasi berhasil diperbarui", *a)
}

func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[id]; !exists {
		httputil.WriteNotFoundError(w, "Aplikasi tidak ditemukan")
		return
	}
	delete(s.apps, id)
	for i, aid := range s.appOrder {
		if aid == id {
			s.appOrder = append(s.appOrder[:i], s.appOrder[i+1:]...)
			break
		}
	}
	httputil.WriteEnvelope[any](w, http.StatusOK, "Aplikasi berhasil dihapus", nil)
}

func (s *Server) appDetailsLocked(userID string) []api.AllowedAppDetail {
	details := []api.AllowedAppDetail{}
	for _, appID := range s.assignments[userID] {
		a, ok := s.apps[appID]
		if !ok {
			continue
		}
		details = append(details, api.AllowedAppDetail{
			ID:          a.ID,
			Code:        a.Code,
			Name:        a.Name,
			Description: a.Description,
			BaseURL:     a.BaseURL,
			IconURL:     a.IconURL,
			ImgURL:      a.ImgURL,
			IsActive:    a.IsActive,
		})
	}
	return details
}

func uploadedPath(r *http.Request, field string) string {
	if r.MultipartForm == nil {
		return ""
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return ""
	}
	return "/uploads/" + field + "/" + files[0].Filename
}
