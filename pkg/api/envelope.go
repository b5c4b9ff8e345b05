package api

import (
	"net/url"
	"strconv"
)

// Response is the envelope every SSO endpoint wraps its payload in.
type Response[T any] struct {
	Error     bool   `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Data      T      `json:"data"`
}

// PaginatedResponse is the envelope used by list endpoints.
type PaginatedResponse[T any] struct {
	Error     bool           `json:"error"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Data      []T            `json:"data"`
	Meta      PaginationMeta `json:"meta"`
}

// PaginationMeta describes the page a list response belongs to.
type PaginationMeta struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalItems  int  `json:"total_items"`
	TotalPages  int  `json:"total_pages"`
	HasPrevPage bool `json:"has_prev_page"`
	HasNextPage bool `json:"has_next_page"`
}

// SortOrder is the direction of a sorted list query.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// PaginationParams are the query parameters shared by all list endpoints.
type PaginationParams struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder SortOrder
}

// Values encodes the non-zero parameters as a query string.
func (p PaginationParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.SortBy != "" {
		v.Set("sort_by", p.SortBy)
	}
	if p.SortOrder != "" {
		v.Set("sort_order", string(p.SortOrder))
	}
	return v
}
