package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/ssoadmin/pkg/observability"
)

// ErrNoSearchFunc is returned by New when Options.Search is nil.
var ErrNoSearchFunc = errors.New("search function is required")

const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultPageSize = 10

	// unpagedLimit is the result cap for a term search without pagination.
	unpagedLimit = 50
)

// Fetch kinds, used as metric labels and in logs.
const (
	kindInitial = "initial"
	kindSearch  = "search"
	kindMore    = "more"
	kindByID    = "by_id"
)

// Page is one page of results as returned by the server.
type Page[T any] struct {
	Items   []T
	Total   int
	HasMore bool
}

// SearchFunc fetches one page of results for term. page is one-based.
type SearchFunc[T any] func(ctx context.Context, term string, limit, page int) (Page[T], error)

// GetByIDFunc fetches a single record.
type GetByIDFunc[T any] func(ctx context.Context, id string) (T, error)

// FilterFunc narrows items to those the caller may see.
type FilterFunc[T any] func(items []T, accessibleIDs []string) []T

// Options configures a Controller.
type Options[T any] struct {
	Search  SearchFunc[T]
	GetByID GetByIDFunc[T]
	// ItemID extracts the identifier used for access filtering and for
	// de-duplicating LoadInitialValue.
	ItemID func(T) string

	Debounce time.Duration

	Filter        FilterFunc[T]
	IsAdmin       bool
	AccessibleIDs []string

	EnablePagination bool
	PageSize         int

	OnSelect func(T)
	// OnChange receives a snapshot after every state change.
	OnChange func(Snapshot[T])

	OutsideClicks OutsideClickSource

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Snapshot is a consistent copy of the controller state.
type Snapshot[T any] struct {
	Term          string
	DebouncedTerm string
	Suggestions   []T
	InitialValues []T
	Open          bool
	Searching     bool
	LoadingMore   bool
	// Page is one-based.
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
	HasMore    bool
}

// Controller is the state machine behind one autocomplete instance.
// It is safe for concurrent use.
type Controller[T any] struct {
	opts   Options[T]
	logger *observability.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	mounted        bool
	closed         bool
	term           string
	debounced      string
	suggestions    []T
	initial        []T
	open           bool
	searching      bool
	loadingMore    bool
	page           int // zero-based
	total          int
	hasMore        bool
	initialTotal   int
	initialHasMore bool
	generation     uint64
	timer          *time.Timer
	removeClick    func()
}

// New validates opts and creates an unmounted controller.
func New[T any](opts Options[T]) (*Controller[T], error) {
	if opts.Search == nil {
		return nil, ErrNoSearchFunc
	}
	if opts.ItemID == nil {
		return nil, errors.New("item id function is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller[T]{
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Mount performs the initial empty-term fetch and starts listening for
// outside clicks. Only the first call does anything.
func (c *Controller[T]) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.mounted || c.closed {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	c.searching = true
	gen := c.generation
	if c.opts.OutsideClicks != nil {
		c.removeClick = c.opts.OutsideClicks.AddHandler(c.handleOutsideClick)
	}
	c.mu.Unlock()

	page, err := c.opts.Search(ctx, "", c.opts.PageSize, 1)
	c.opts.Metrics.RecordSearchFetch(kindInitial, err)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	// A term search started during the initial fetch owns the list.
	browsing := gen == c.generation || strings.TrimSpace(c.debounced) == ""
	if browsing {
		c.searching = false
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.WithError(err).Error("initial search fetch failed")
		c.notify()
		return
	}

	items := c.applyAccessControl(page.Items)
	c.initial = items
	c.initialTotal = page.Total
	c.initialHasMore = page.HasMore
	if browsing && strings.TrimSpace(c.term) == "" {
		c.suggestions = cloneItems(items)
		c.total = page.Total
		c.hasMore = page.HasMore
	}
	c.mu.Unlock()
	c.notify()
}

// SetSearchTerm records raw input. An empty term restores the initial list
// at once; any term is committed after the debounce interval.
func (c *Controller[T]) SetSearchTerm(term string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.term = term
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.Debounce, c.onDebounce)
	if strings.TrimSpace(term) == "" {
		c.restoreInitialLocked()
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller[T]) onDebounce() {
	defer observability.RecoverPanic(c.logger, "search debounce")

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.debounced = c.term
	raw := c.debounced
	term := strings.TrimSpace(raw)
	if term == "" {
		c.restoreInitialLocked()
		c.mu.Unlock()
		c.notify()
		return
	}

	c.generation++
	gen := c.generation
	c.page = 0
	c.hasMore = false
	c.total = 0
	c.searching = true
	c.loadingMore = false
	if c.opts.EnablePagination {
		c.suggestions = nil
	}
	limit := unpagedLimit
	if c.opts.EnablePagination {
		limit = c.opts.PageSize
	}
	c.mu.Unlock()
	c.notify()

	page, err := c.opts.Search(c.ctx, raw, limit, 1)
	c.opts.Metrics.RecordSearchFetch(kindSearch, err)

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		c.opts.Metrics.RecordStaleDiscard()
		c.logger.WithField("term", term).Debug("discarded stale search response")
		return
	}
	c.searching = false
	if err != nil {
		c.logger.WithError(err).WithField("term", term).Error("search fetch failed")
		c.suggestions = cloneItems(c.initial)
		c.open = false
		c.total = c.initialTotal
		c.hasMore = c.initialHasMore
	} else {
		c.suggestions = c.applyAccessControl(page.Items)
		c.total = page.Total
		c.hasMore = page.HasMore
		c.open = true
	}
	c.mu.Unlock()
	c.notify()
}

// LoadMore fetches and appends the next page of the active search. It
// blocks until the page is applied and reports whether a fetch was made;
// calls while a load is in flight return false immediately.
func (c *Controller[T]) LoadMore() bool {
	c.mu.Lock()
	raw := c.debounced
	term := strings.TrimSpace(raw)
	if c.closed || !c.opts.EnablePagination || !c.hasMore || c.loadingMore || c.searching || term == "" {
		c.mu.Unlock()
		return false
	}
	c.loadingMore = true
	gen := c.generation
	next := c.page + 1
	c.mu.Unlock()
	c.notify()

	page, err := c.opts.Search(c.ctx, raw, c.opts.PageSize, next+1)
	c.opts.Metrics.RecordSearchFetch(kindMore, err)

	c.mu.Lock()
	if !c.currentLocked(gen) {
		// Cleared or replaced while loading; the guard was reset there.
		c.mu.Unlock()
		c.opts.Metrics.RecordStaleDiscard()
		return true
	}
	c.loadingMore = false
	if err != nil {
		c.logger.WithError(err).WithField("term", term).Error("load more failed")
	} else {
		c.suggestions = append(c.suggestions, c.applyAccessControl(page.Items)...)
		c.page = next
		c.total = page.Total
		c.hasMore = page.HasMore
	}
	c.mu.Unlock()
	c.notify()
	return true
}

// Select reports item to OnSelect and closes the list.
func (c *Controller[T]) Select(item T) {
	if c.opts.OnSelect != nil {
		c.opts.OnSelect(item)
	}
	c.SetOpen(false)
}

// SetOpen shows or hides the suggestion list.
func (c *Controller[T]) SetOpen(open bool) {
	c.mu.Lock()
	if c.closed || c.open == open {
		c.mu.Unlock()
		return
	}
	c.open = open
	c.mu.Unlock()
	c.notify()
}

func (c *Controller[T]) handleOutsideClick() {
	c.SetOpen(false)
}

// ClearSearch empties the term and shows the initial list again.
// Any search or load in flight is discarded when it completes.
func (c *Controller[T]) ClearSearch() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.term = ""
	c.debounced = ""
	c.restoreInitialLocked()
	c.mu.Unlock()
	c.notify()
}

// restoreInitialLocked shows the initial list with the initial counters and
// invalidates every fetch in flight.
func (c *Controller[T]) restoreInitialLocked() {
	c.generation++
	c.suggestions = c.applyAccessControl(cloneItems(c.initial))
	c.open = false
	c.searching = false
	c.loadingMore = false
	c.page = 0
	c.total = c.initialTotal
	c.hasMore = c.initialHasMore
}

func (c *Controller[T]) currentLocked(gen uint64) bool {
	return !c.closed && gen == c.generation
}

// LoadInitialValue makes sure the record with id is listed, fetching and
// prepending it where it is missing. Present in both lists means no fetch.
func (c *Controller[T]) LoadInitialValue(ctx context.Context, id string) {
	if c.opts.GetByID == nil || id == "" {
		return
	}

	c.mu.Lock()
	if c.closed || (c.containsLocked(c.initial, id) && c.containsLocked(c.suggestions, id)) {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	item, err := c.opts.GetByID(ctx, id)
	c.opts.Metrics.RecordSearchFetch(kindByID, err)
	if err != nil {
		c.logger.WithError(err).WithField("id", id).Error("load initial value failed")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	changed := false
	if !c.containsLocked(c.initial, id) {
		c.initial = append([]T{item}, c.initial...)
		changed = true
	}
	if !c.containsLocked(c.suggestions, id) {
		c.suggestions = append([]T{item}, c.suggestions...)
		changed = true
	}
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

func (c *Controller[T]) containsLocked(items []T, id string) bool {
	for _, item := range items {
		if c.opts.ItemID(item) == id {
			return true
		}
	}
	return false
}

// applyAccessControl narrows items for non-admin callers with a permitted
// id list: the custom filter when given, id membership otherwise.
func (c *Controller[T]) applyAccessControl(items []T) []T {
	if c.opts.IsAdmin || len(c.opts.AccessibleIDs) == 0 {
		return items
	}
	if c.opts.Filter != nil {
		return c.opts.Filter(items, c.opts.AccessibleIDs)
	}

	allowed := make(map[string]struct{}, len(c.opts.AccessibleIDs))
	for _, id := range c.opts.AccessibleIDs {
		allowed[id] = struct{}{}
	}
	filtered := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := allowed[c.opts.ItemID(item)]; ok {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Snapshot returns a copy of the current state.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	s := Snapshot[T]{
		Term:          c.term,
		DebouncedTerm: c.debounced,
		Suggestions:   cloneItems(c.suggestions),
		InitialValues: cloneItems(c.initial),
		Open:          c.open,
		Searching:     c.searching,
		LoadingMore:   c.loadingMore,
		Page:          c.page + 1,
		PageSize:      c.opts.PageSize,
		TotalItems:    c.total,
		HasMore:       c.hasMore,
	}
	if c.opts.PageSize > 0 {
		s.TotalPages = (c.total + c.opts.PageSize - 1) / c.opts.PageSize
	}
	return s
}

func (c *Controller[T]) notify() {
	if c.opts.OnChange == nil {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.opts.OnChange(snap)
}

// Close stops the debounce timer, detaches the outside-click handler and
// cancels fetches in flight. Later results are dropped.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	remove := c.removeClick
	c.removeClick = nil
	c.mu.Unlock()

	if remove != nil {
		remove()
	}
	c.cancel()
}

func cloneItems[T any](items []T) []T {
	if items == nil {
		return nil
	}
	return append([]T(nil), items...)
}
