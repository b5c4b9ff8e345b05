package api

import (
	"net/url"
	"strconv"
)

// AllowedAppDetail is an application as shown on the dashboard.
type AllowedAppDetail struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BaseURL     string `json:"base_url"`
	IconURL     string `json:"icon_url,omitempty"`
	ImgURL      string `json:"img_url,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// ApplicationListItem is a row of GET /applications.
type ApplicationListItem struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	BaseURL       string `json:"base_url"`
	IconURL       string `json:"icon_url,omitempty"`
	ImgURL        string `json:"img_url,omitempty"`
	IsActive      bool   `json:"is_active"`
	SingleSession bool   `json:"single_session"`
	CreatedAt     string `json:"created_at"`
}

// Application is the full registered application record.
type Application struct {
	ApplicationListItem
	UpdatedAt string `json:"updated_at"`
}

// ApplicationCreateRequest holds the form fields of POST /applications.
type ApplicationCreateRequest struct {
	Name          string
	Code          string
	BaseURL       string
	Description   string
	SingleSession bool
}

// Fields returns the multipart form fields.
func (r ApplicationCreateRequest) Fields() map[string]string {
	f := map[string]string{
		"name":           r.Name,
		"code":           r.Code,
		"base_url":       r.BaseURL,
		"single_session": strconv.FormatBool(r.SingleSession),
	}
	if r.Description != "" {
		f["description"] = r.Description
	}
	return f
}

// ApplicationUpdateRequest holds the form fields of PATCH /applications/{id}.
type ApplicationUpdateRequest struct {
	Name          *string
	Code          *string
	BaseURL       *string
	Description   *string
	IsActive      *bool
	SingleSession *bool
}

// Fields returns the multipart form fields that are set.
func (r ApplicationUpdateRequest) Fields() map[string]string {
	f := map[string]string{}
	if r.Name != nil {
		f["name"] = *r.Name
	}
	if r.Code != nil {
		f["code"] = *r.Code
	}
	if r.BaseURL != nil {
		f["base_url"] = *r.BaseURL
	}
	if r.Description != nil {
		f["description"] = *r.Description
	}
	if r.IsActive != nil {
		f["is_active"] = strconv.FormatBool(*r.IsActive)
	}
	if r.SingleSession != nil {
		f["single_session"] = strconv.FormatBool(*r.SingleSession)
	}
	return f
}

// UserApplicationAssignRequest is the body of POST /applications/user/{id}/assign.
type UserApplicationAssignRequest struct {
	ApplicationIDs []string `json:"application_ids"`
}

// ApplicationFilter narrows GET /applications.
type ApplicationFilter struct {
	PaginationParams
	IsActive *bool
}

// Values encodes the filter as a query string.
func (f ApplicationFilter) Values() url.Values {
	v := f.PaginationParams.Values()
	if f.IsActive != nil {
		v.Set("is_active", strconv.FormatBool(*f.IsActive))
	}
	return v
}
