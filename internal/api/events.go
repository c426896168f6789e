package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"catalog-cart-service/internal/catalog"
	"catalog-cart-service/internal/domain"
)

const (
	eventCatalog = "catalog"
	eventCart    = "cart"

	keepAliveInterval = 25 * time.Second
)

// eventQueue keeps only the latest payload per event name, so a slow client
// skips intermediate snapshots instead of blocking the publishers.
type eventQueue struct {
	mu      sync.Mutex
	pending map[string][]byte
	order   []string
	ready   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		pending: make(map[string][]byte),
		ready:   make(chan struct{}, 1),
	}
}

func (q *eventQueue) push(name string, payload []byte) {
	q.mu.Lock()
	if _, queued := q.pending[name]; !queued {
		q.order = append(q.order, name)
	}
	q.pending[name] = payload
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() (names []string, payloads [][]byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, name := range q.order {
		names = append(names, name)
		payloads = append(payloads, q.pending[name])
	}
	q.order = nil
	clear(q.pending)
	return names, payloads
}

// Events streams catalog and cart snapshots as server-sent events. The first
// two events carry the current state.
func (h *HTTPHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondWithError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	// The server write timeout would otherwise end the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	queue := newEventQueue()
	publish := func(name string, v interface{}) {
		payload, err := json.Marshal(v)
		if err != nil {
			h.logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
			return
		}
		queue.push(name, payload)
	}

	unsubscribeCatalog := h.catalog.Subscribe(func(s catalog.State) { publish(eventCatalog, s) })
	defer unsubscribeCatalog()
	unsubscribeCart := h.cart.Subscribe(func(entries []domain.CartEntry) {
		publish(eventCart, CartResponse{Items: entries, Count: len(entries)})
	})
	defer unsubscribeCart()

	publish(eventCatalog, h.catalog.State())
	items := h.cart.List()
	publish(eventCart, CartResponse{Items: items, Count: len(items)})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug("event stream opened", zap.String("remote", r.RemoteAddr))
	defer h.logger.Debug("event stream closed", zap.String("remote", r.RemoteAddr))

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.closing:
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-queue.ready:
			names, payloads := queue.drain()
			for i, name := range names {
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payloads[i]); err != nil {
					return
				}
			}
			flusher.Flush()
		}
	}
}
