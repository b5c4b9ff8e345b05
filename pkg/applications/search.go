package applications

import (
	"context"
	"time"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/observability"
	"github.com/platinummonkey/ssoadmin/pkg/search"
	"github.com/platinummonkey/ssoadmin/pkg/session"
)

// SearchOptions tunes the application picker.
type SearchOptions struct {
	// Access limits results to the caller's allowed applications unless
	// the caller is an admin.
	Access        session.State
	Debounce      time.Duration
	PageSize      int
	OnSelect      func(api.ApplicationListItem)
	OnChange      func(search.Snapshot[api.ApplicationListItem])
	OutsideClicks search.OutsideClickSource
	Logger        *observability.Logger
	Metrics       *observability.Metrics
}

// NewSearch builds an application picker filtered by the caller's access.
func NewSearch(svc *Service, opts SearchOptions) (*search.Controller[api.ApplicationListItem], error) {
	return search.New(search.Options[api.ApplicationListItem]{
		Search:           svc.searchPage,
		GetByID:          search.CachedLookup[api.ApplicationListItem](svc.listItem, 64, time.Minute),
		ItemID:           func(a api.ApplicationListItem) string { return a.ID },
		Debounce:         opts.Debounce,
		IsAdmin:          opts.Access.IsAdmin(),
		AccessibleIDs:    opts.Access.AllowedAppIDs(),
		EnablePagination: opts.PageSize > 0,
		PageSize:         opts.PageSize,
		OnSelect:         opts.OnSelect,
		OnChange:         opts.OnChange,
		OutsideClicks:    opts.OutsideClicks,
		Logger:           opts.Logger,
		Metrics:          opts.Metrics,
	})
}

// FormatOption renders an application as a picker option.
func FormatOption(a api.ApplicationListItem) search.Option {
	return search.Option{Value: a.ID, Label: a.Name, Description: a.Code}
}

func (s *Service) searchPage(ctx context.Context, term string, limit, page int) (search.Page[api.ApplicationListItem], error) {
	resp, err := s.List(ctx, api.ApplicationFilter{PaginationParams: api.PaginationParams{
		Page:   page,
		Limit:  limit,
		Search: term,
	}})
	if err != nil {
		return search.Page[api.ApplicationListItem]{}, err
	}
	return search.Page[api.ApplicationListItem]{
		Items:   resp.Data,
		Total:   resp.Meta.TotalItems,
		HasMore: resp.Meta.HasNextPage,
	}, nil
}

func (s *Service) listItem(ctx context.Context, id string) (api.ApplicationListItem, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return api.ApplicationListItem{}, err
	}
	return a.ApplicationListItem, nil
}
