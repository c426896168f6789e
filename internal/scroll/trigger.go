// Package scroll turns raw scroll position notifications into debounced
// "load more" signals for an infinitely scrolling list.
package scroll

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultThreshold = 100.0
	DefaultDebounce  = 300 * time.Millisecond
)

// Gate reports whether loading more is currently allowed.
type Gate interface {
	Loading() bool
	HasMore() bool
}

// Position is one scroll notification from the viewport.
type Position struct {
	ScrollOffset   float64
	ViewportHeight float64
	ContentHeight  float64
}

// NearBottom reports whether the visible window ends within threshold of the
// end of the content.
func (p Position) NearBottom(threshold float64) bool {
	return p.ScrollOffset+p.ViewportHeight >= p.ContentHeight-threshold
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithThreshold sets the distance from the end that counts as near the
// bottom. Default: 100.
func WithThreshold(v float64) Option { return func(t *Trigger) { t.threshold = v } }

// WithDebounce sets the quiet period after the last notification before it
// is evaluated. 0 evaluates every notification immediately. Default: 300ms.
func WithDebounce(d time.Duration) Option { return func(t *Trigger) { t.debounce = d } }

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option { return func(t *Trigger) { t.logger = l } }

// Trigger owns at most one pending debounce timer. A new notification
// cancels the pending one, and Detach cancels it for good.
type Trigger struct {
	gate       Gate
	onLoadMore func()
	threshold  float64
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	timer    *time.Timer
	seq      uint64
	pending  Position
	detached bool
}

// New creates a Trigger that calls onLoadMore when a settled scroll position
// is near the bottom and gate allows loading.
func New(gate Gate, onLoadMore func(), opts ...Option) *Trigger {
	t := &Trigger{
		gate:       gate,
		onLoadMore: onLoadMore,
		threshold:  DefaultThreshold,
		debounce:   DefaultDebounce,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(t)
	}
	t.logger = t.logger.Named("scroll")
	return t
}

// OnScrollPositionChanged records the latest position and (re)starts the
// debounce window.
func (t *Trigger) OnScrollPositionChanged(scrollOffset, viewportHeight, contentHeight float64) {
	pos := Position{ScrollOffset: scrollOffset, ViewportHeight: viewportHeight, ContentHeight: contentHeight}

	t.mu.Lock()
	if t.detached {
		t.mu.Unlock()
		return
	}
	t.seq++
	seq := t.seq
	t.pending = pos
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.debounce <= 0 {
		t.mu.Unlock()
		t.fire(seq)
		return
	}
	t.timer = time.AfterFunc(t.debounce, func() { t.fire(seq) })
	t.mu.Unlock()
}

// Detach cancels any pending evaluation. Later notifications are ignored.
func (t *Trigger) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detached = true
	t.seq++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Pending reports whether an evaluation is scheduled.
func (t *Trigger) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *Trigger) fire(seq uint64) {
	t.mu.Lock()
	// A timer that was stopped too late still runs; seq tells it apart.
	if t.detached || seq != t.seq {
		t.mu.Unlock()
		return
	}
	pos := t.pending
	t.timer = nil
	t.mu.Unlock()

	if !pos.NearBottom(t.threshold) {
		return
	}
	if t.gate.Loading() {
		t.logger.Debug("near bottom while loading, skipping")
		return
	}
	if !t.gate.HasMore() {
		t.logger.Debug("near bottom with no more pages")
		return
	}
	t.logger.Debug("loading more",
		zap.Float64("scroll_offset", pos.ScrollOffset),
		zap.Float64("content_height", pos.ContentHeight))
	t.onLoadMore()
}
