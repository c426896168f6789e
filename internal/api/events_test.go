package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-cart-service/internal/cart"
	"catalog-cart-service/internal/catalog"
	"catalog-cart-service/internal/domain"
)

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestHTTPHandler_EventsStreamsSnapshots(t *testing.T) {
	server, deps := setupTestChiServer(t)
	defer server.Close()

	var mu sync.Mutex
	var catalogListener catalog.Listener
	var cartListener cart.Listener
	subscribed := make(chan struct{}, 2)

	deps.catalog.On("Subscribe", mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		catalogListener = args.Get(0).(catalog.Listener)
		mu.Unlock()
		subscribed <- struct{}{}
	}).Return(func() {}).Once()
	deps.cart.On("Subscribe", mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		cartListener = args.Get(0).(cart.Listener)
		mu.Unlock()
		subscribed <- struct{}{}
	}).Return(func() {}).Once()
	deps.catalog.On("State").Return(sampleState()).Once()
	deps.cart.On("List").Return([]domain.CartEntry{lamp}).Once()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	reader := bufio.NewReader(res.Body)
	first := readEvent(t, reader)
	assert.Equal(t, eventCatalog, first.name)
	var state catalog.State
	require.NoError(t, json.Unmarshal([]byte(first.data), &state))
	assert.Equal(t, "phone", state.SearchQuery)

	second := readEvent(t, reader)
	assert.Equal(t, eventCart, second.name)
	var cartPayload CartResponse
	require.NoError(t, json.Unmarshal([]byte(second.data), &cartPayload))
	assert.Equal(t, 1, cartPayload.Count)

	<-subscribed
	<-subscribed
	mu.Lock()
	pushCart := cartListener
	pushCatalog := catalogListener
	mu.Unlock()

	pushCart([]domain.CartEntry{})
	third := readEvent(t, reader)
	assert.Equal(t, eventCart, third.name)
	assert.JSONEq(t, `{"items":[],"count":0}`, third.data)

	pushCatalog(catalog.State{Page: 1, Loading: true, Items: []domain.Item{}})
	fourth := readEvent(t, reader)
	assert.Equal(t, eventCatalog, fourth.name)
	require.NoError(t, json.Unmarshal([]byte(fourth.data), &state))
	assert.True(t, state.Loading)

	deps.assertExpectations(t)
}

func TestEventQueue_KeepsLatestPerName(t *testing.T) {
	q := newEventQueue()
	q.push(eventCatalog, []byte(`1`))
	q.push(eventCart, []byte(`a`))
	q.push(eventCatalog, []byte(`2`))

	names, payloads := q.drain()
	assert.Equal(t, []string{eventCatalog, eventCart}, names)
	assert.Equal(t, [][]byte{[]byte(`2`), []byte(`a`)}, payloads)

	names, _ = q.drain()
	assert.Empty(t, names)
}
