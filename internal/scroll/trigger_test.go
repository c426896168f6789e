package scroll

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGate struct {
	loading atomic.Bool
	hasMore atomic.Bool
}

func (g *fakeGate) Loading() bool { return g.loading.Load() }
func (g *fakeGate) HasMore() bool { return g.hasMore.Load() }

func newGate(loading, hasMore bool) *fakeGate {
	g := &fakeGate{}
	g.loading.Store(loading)
	g.hasMore.Store(hasMore)
	return g
}

const testWindow = 30 * time.Millisecond

func TestPosition_NearBottom(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
		want bool
	}{
		{"exactly at threshold", Position{ScrollOffset: 400, ViewportHeight: 500, ContentHeight: 1000}, true},
		{"at the very end", Position{ScrollOffset: 500, ViewportHeight: 500, ContentHeight: 1000}, true},
		{"one unit above threshold", Position{ScrollOffset: 399, ViewportHeight: 500, ContentHeight: 1000}, false},
		{"content shorter than viewport", Position{ScrollOffset: 0, ViewportHeight: 800, ContentHeight: 300}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pos.NearBottom(DefaultThreshold))
		})
	}
}

func TestTrigger_DebouncesBurstIntoOneCall(t *testing.T) {
	var calls atomic.Int32
	tr := New(newGate(false, true), func() { calls.Add(1) },
		WithDebounce(testWindow), WithLogger(zaptest.NewLogger(t)))
	defer tr.Detach()

	for i := 0; i < 10; i++ {
		tr.OnScrollPositionChanged(float64(400+i), 500, 1000)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return calls.Load() > 1 }, 4*testWindow, 5*time.Millisecond)
	assert.False(t, tr.Pending())
}

func TestTrigger_UsesLatestPosition(t *testing.T) {
	var calls atomic.Int32
	tr := New(newGate(false, true), func() { calls.Add(1) }, WithDebounce(testWindow))
	defer tr.Detach()

	tr.OnScrollPositionChanged(500, 500, 1000) // near bottom
	tr.OnScrollPositionChanged(0, 500, 1000)   // scrolled back up, supersedes

	assert.Never(t, func() bool { return calls.Load() > 0 }, 4*testWindow, 5*time.Millisecond)
}

func TestTrigger_NoCallWhileLoading(t *testing.T) {
	var calls atomic.Int32
	tr := New(newGate(true, true), func() { calls.Add(1) }, WithDebounce(testWindow))
	defer tr.Detach()

	tr.OnScrollPositionChanged(500, 500, 1000)

	assert.Never(t, func() bool { return calls.Load() > 0 }, 4*testWindow, 5*time.Millisecond)
}

func TestTrigger_NoCallWithoutMorePages(t *testing.T) {
	var calls atomic.Int32
	tr := New(newGate(false, false), func() { calls.Add(1) }, WithDebounce(0))
	defer tr.Detach()

	tr.OnScrollPositionChanged(500, 500, 1000)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTrigger_ZeroDebounceFiresSynchronously(t *testing.T) {
	var calls atomic.Int32
	tr := New(newGate(false, true), func() { calls.Add(1) }, WithDebounce(0), WithThreshold(10))
	defer tr.Detach()

	tr.OnScrollPositionChanged(480, 500, 1000) // 20 away, outside threshold 10
	assert.Equal(t, int32(0), calls.Load())

	tr.OnScrollPositionChanged(495, 500, 1000)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTrigger_DetachCancelsPendingTimer(t *testing.T) {
	var calls atomic.Int32
	tr := New(newGate(false, true), func() { calls.Add(1) }, WithDebounce(testWindow))

	tr.OnScrollPositionChanged(500, 500, 1000)
	assert.True(t, tr.Pending())
	tr.Detach()
	assert.False(t, tr.Pending())

	tr.OnScrollPositionChanged(500, 500, 1000)
	assert.False(t, tr.Pending(), "notifications after Detach are ignored")

	assert.Never(t, func() bool { return calls.Load() > 0 }, 4*testWindow, 5*time.Millisecond)
}
