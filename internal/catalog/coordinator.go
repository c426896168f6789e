// Package catalog coordinates paginated, searchable, sortable catalog
// browsing into one growing, deduplicated list of items.
//
// Every change of search query, sort order or page size starts a new
// generation: the list and page counter are reset, and any response still in
// flight for an older generation is dropped when it arrives.
package catalog

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"catalog-cart-service/internal/domain"
)

const (
	DefaultPageSize     = 10
	DefaultFetchTimeout = 10 * time.Second
)

// State is a point-in-time view of the coordinator, safe to share.
type State struct {
	SearchQuery string           `json:"q"`
	SortOrder   domain.SortOrder `json:"sort"`
	Page        int              `json:"page"`
	Limit       int              `json:"limit"`
	TotalPages  int              `json:"total_pages"`
	TotalItems  int              `json:"total_items"`
	Items       []domain.Item    `json:"items"`
	Loading     bool             `json:"loading"`
	HasMore     bool             `json:"has_more"`
	LastError   string           `json:"last_error,omitempty"`
	Generation  uint64           `json:"generation"`
}

// Listener receives a State after every change.
type Listener func(State)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPageSize sets the initial page size. Invalid sizes are ignored.
func WithPageSize(n int) Option {
	return func(c *Coordinator) {
		if ValidPageSize(n) {
			c.pageSize = n
		}
	}
}

// WithFetchTimeout bounds each request to the Source.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithSortOrder sets the initial sort order.
func WithSortOrder(s domain.SortOrder) Option {
	return func(c *Coordinator) {
		if s.Valid() {
			c.sort = s
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// Coordinator owns the page state of one catalog view. All methods are safe
// for concurrent use. Fetches run on their own goroutine; Wait blocks until
// none is in flight.
type Coordinator struct {
	source       Source
	logger       *zap.Logger
	fetchTimeout time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	mu         sync.Mutex
	query      string
	sort       domain.SortOrder
	page       int
	pageSize   int
	totalPages int
	totalItems int
	items      []domain.Item
	loading    bool
	lastErr    error
	generation uint64
	stale      uint64
	closed     bool

	seq          uint64
	listeners    map[int]*subscriber
	nextListener int
}

// subscriber serializes delivery to one Listener and skips snapshots older
// than the last one it delivered.
type subscriber struct {
	mu   sync.Mutex
	fn   Listener
	seen uint64
}

func (s *subscriber) deliver(seq uint64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.seen {
		return
	}
	s.seen = seq
	s.fn(state)
}

// NewCoordinator creates a Coordinator in its initial state: page 1, no
// items, nothing loading. Call Refresh to issue the first fetch.
func NewCoordinator(source Source, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		source:       source,
		logger:       zap.NewNop(),
		fetchTimeout: DefaultFetchTimeout,
		ctx:          ctx,
		cancel:       cancel,
		sort:         domain.SortNone,
		page:         1,
		pageSize:     DefaultPageSize,
		items:        []domain.Item{},
		listeners:    make(map[int]*subscriber),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.Named("catalog")
	return c
}

// SetSearchOrSort clears the accumulated list, resets to page 1 and fetches
// page 1 for the new parameters.
func (c *Coordinator) SetSearchOrSort(query string, sort domain.SortOrder) {
	if !sort.Valid() {
		sort = domain.SortNone
	}
	c.mu.Lock()
	c.query = query
	c.sort = sort
	c.resetLocked()
	c.startFetchLocked(1)
	state, seq, subs := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("search changed", zap.String("q", query), zap.String("sort", string(sort)))
	notify(subs, seq, state)
}

// SetPageSize changes the page size, which invalidates the offsets of every
// page loaded so far, so the view is reset as for a new search. Sizes that
// are invalid or unchanged are ignored.
func (c *Coordinator) SetPageSize(n int) bool {
	c.mu.Lock()
	if !ValidPageSize(n) || n == c.pageSize || c.closed {
		c.mu.Unlock()
		return false
	}
	c.pageSize = n
	c.resetLocked()
	c.startFetchLocked(1)
	state, seq, subs := c.snapshotLocked()
	c.mu.Unlock()

	notify(subs, seq, state)
	return true
}

// GoToNextPage fetches the page after the current one. It reports false,
// changing nothing, on the last page or while a fetch is in flight.
func (c *Coordinator) GoToNextPage() bool {
	return c.navigate(func(page, _ int) int { return page + 1 })
}

// GoToPreviousPage fetches the page before the current one.
func (c *Coordinator) GoToPreviousPage() bool {
	return c.navigate(func(page, _ int) int { return page - 1 })
}

// GoToPage fetches page n. Pages outside [1, TotalPages] are ignored.
func (c *Coordinator) GoToPage(n int) bool {
	return c.navigate(func(int, int) int { return n })
}

// LoadMore is the infinite scroll callback; it advances to the next page.
func (c *Coordinator) LoadMore() {
	c.GoToNextPage()
}

// Refresh fetches the current page again with the current parameters. It
// performs the initial load and is the explicit retry after a failure.
func (c *Coordinator) Refresh() bool {
	c.mu.Lock()
	ok := c.startFetchLocked(c.page)
	state, seq, subs := c.snapshotLocked()
	c.mu.Unlock()

	if ok {
		notify(subs, seq, state)
	}
	return ok
}

func (c *Coordinator) navigate(target func(page, totalPages int) int) bool {
	c.mu.Lock()
	next := target(c.page, c.totalPages)
	ok := next >= 1 && next <= c.totalPages && next != c.page && c.startFetchLocked(next)
	state, seq, subs := c.snapshotLocked()
	c.mu.Unlock()

	if ok {
		notify(subs, seq, state)
	}
	return ok
}

// Loading reports whether a fetch of the current generation is in flight.
func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// HasMore reports whether pages beyond the current one exist.
func (c *Coordinator) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page < c.totalPages
}

// State returns a snapshot of the current page state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// StaleResponses counts responses dropped because their generation had
// already been superseded.
func (c *Coordinator) StaleResponses() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// Subscribe registers l for state changes. The returned function unregisters
// it and is safe to call more than once.
//
// Calls to l are serialized and arrive in snapshot order; a snapshot that is
// older than one already delivered is skipped, so the last State l receives
// is the latest. l may read the Coordinator but must not change it
// synchronously.
func (c *Coordinator) Subscribe(l Listener) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = &subscriber{fn: l}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Wait blocks until no fetch is in flight.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

// Close cancels in-flight fetches, waits for them and refuses new ones.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.inflight.Wait()
}

func (c *Coordinator) resetLocked() {
	c.generation++
	c.items = []domain.Item{}
	c.page = 1
	c.totalPages = 0
	c.totalItems = 0
	c.lastErr = nil
	// The superseded fetch, if any, no longer counts as loading.
	c.loading = false
}

// startFetchLocked issues the request for page under the current generation.
// The page index is committed only when the response is merged.
func (c *Coordinator) startFetchLocked(page int) bool {
	if c.loading || c.closed {
		return false
	}
	c.loading = true
	gen := c.generation
	q := Query{
		Q:     c.query,
		Limit: c.pageSize,
		Skip:  (page - 1) * c.pageSize,
		Sort:  c.sort,
	}

	c.inflight.Add(1)
	go c.fetch(gen, page, q)
	return true
}

func (c *Coordinator) fetch(gen uint64, page int, q Query) {
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.fetchTimeout)
	start := time.Now()
	res, err := c.source.Search(ctx, q)
	cancel()

	c.mu.Lock()
	if gen != c.generation {
		c.stale++
		c.mu.Unlock()
		c.logger.Debug("dropping stale response",
			zap.Uint64("generation", gen), zap.Int("page", page), zap.String("q", q.Q))
		return
	}
	c.loading = false

	if err != nil {
		c.lastErr = err
		state, seq, subs := c.snapshotLocked()
		c.mu.Unlock()
		c.logger.Warn("catalog fetch failed",
			zap.Int("page", page), zap.String("q", q.Q), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		notify(subs, seq, state)
		return
	}

	batch := SortBatch(res.Products, q.Sort)
	var added int
	c.items, added = MergeBatch(c.items, batch)
	c.totalItems = res.Total
	c.totalPages = TotalPages(res.Total, c.pageSize)
	c.page = min(page, max(c.totalPages, 1))
	c.lastErr = nil
	state, seq, subs := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug("catalog page merged",
		zap.Int("page", page),
		zap.Int("received", len(res.Products)),
		zap.Int("added", added),
		zap.Int("total_pages", state.TotalPages),
		zap.Duration("elapsed", time.Since(start)))
	notify(subs, seq, state)
}

func (c *Coordinator) stateLocked() State {
	s := State{
		SearchQuery: c.query,
		SortOrder:   c.sort,
		Page:        c.page,
		Limit:       c.pageSize,
		TotalPages:  c.totalPages,
		TotalItems:  c.totalItems,
		Items:       slices.Clone(c.items),
		Loading:     c.loading,
		HasMore:     c.page < c.totalPages,
		Generation:  c.generation,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// snapshotLocked stamps the current state with the next sequence number.
func (c *Coordinator) snapshotLocked() (State, uint64, []*subscriber) {
	c.seq++
	subs := make([]*subscriber, 0, len(c.listeners))
	for _, sub := range c.listeners {
		subs = append(subs, sub)
	}
	return c.stateLocked(), c.seq, subs
}

// notify runs outside the lock so listeners may read the Coordinator.
func notify(subs []*subscriber, seq uint64, s State) {
	for _, sub := range subs {
		sub.deliver(seq, s)
	}
}
