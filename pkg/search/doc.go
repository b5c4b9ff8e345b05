// Package search drives autocomplete pickers: it turns keystrokes into
// debounced, paginated, access-filtered result sets.
//
// A Controller distinguishes "no query yet", where it shows the initial
// browse list fetched once on Mount, from "active query", where it shows
// server search results. Every fetch is tagged with a generation number so
// a slow response for an old term never overwrites a newer one.
//
// # Usage
//
//	ctrl, err := search.New(search.Options[api.UserListItem]{
//		Search:           searchUsers,
//		GetByID:          search.CachedLookup(getUser, 128, time.Minute),
//		ItemID:           func(u api.UserListItem) string { return u.ID },
//		EnablePagination: true,
//		PageSize:         50,
//		OnChange:         render,
//	})
//	ctrl.Mount(ctx)
//	defer ctrl.Close()
//
//	ctrl.SetSearchTerm("ani") // fetched after the debounce interval
//	ctrl.LoadMore()           // appends the next page
//	ctrl.ClearSearch()        // back to the initial list
package search
