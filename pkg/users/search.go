package users

import (
	"context"
	"time"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/observability"
	"github.com/platinummonkey/ssoadmin/pkg/search"
)

// Picker defaults.
const (
	SearchPageSize  = 50
	lookupCacheSize = 128
	lookupCacheTTL  = time.Minute
)

// SearchOptions tunes the user picker.
type SearchOptions struct {
	Debounce      time.Duration
	OnSelect      func(api.UserListItem)
	OnChange      func(search.Snapshot[api.UserListItem])
	OutsideClicks search.OutsideClickSource
	Logger        *observability.Logger
	Metrics       *observability.Metrics
}

// NewSearch builds a paginated user picker backed by svc.
func NewSearch(svc *Service, opts SearchOptions) (*search.Controller[api.UserListItem], error) {
	return search.New(search.Options[api.UserListItem]{
		Search:           svc.searchPage,
		GetByID:          search.CachedLookup[api.UserListItem](svc.listItem, lookupCacheSize, lookupCacheTTL),
		ItemID:           func(u api.UserListItem) string { return u.ID },
		Debounce:         opts.Debounce,
		EnablePagination: true,
		PageSize:         SearchPageSize,
		OnSelect:         opts.OnSelect,
		OnChange:         opts.OnChange,
		OutsideClicks:    opts.OutsideClicks,
		Logger:           opts.Logger,
		Metrics:          opts.Metrics,
	})
}

// FormatOption renders a user as a picker option.
func FormatOption(u api.UserListItem) search.Option {
	return search.Option{Value: u.ID, Label: u.Name, Description: u.Email}
}

func (s *Service) searchPage(ctx context.Context, term string, limit, page int) (search.Page[api.UserListItem], error) {
	resp, err := s.List(ctx, api.UserFilter{PaginationParams: api.PaginationParams{
		Page:   page,
		Limit:  limit,
		Search: term,
	}})
	if err != nil {
		return search.Page[api.UserListItem]{}, err
	}
	return search.Page[api.UserListItem]{
		Items:   resp.Data,
		Total:   resp.Meta.TotalItems,
		HasMore: resp.Meta.HasNextPage,
	}, nil
}

func (s *Service) listItem(ctx context.Context, id string) (api.UserListItem, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return api.UserListItem{}, err
	}
	return u.ListItem(), nil
}
