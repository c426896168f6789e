// Package cart keeps the shopping cart in memory and mirrors every change to
// a persistent key-value store. The persistent store is read only during
// Hydrate; all steady-state reads are served from memory.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"catalog-cart-service/internal/domain"
	"catalog-cart-service/internal/store"
)

var (
	ErrInvalidItem     = errors.New("cart: invalid item")
	ErrMalformedRecord = errors.New("cart: malformed persisted record")
)

// Listener receives the cart contents after every membership change.
type Listener func(entries []domain.CartEntry)

// Stats are point-in-time counters.
type Stats struct {
	Entries          int `json:"entries"`
	MalformedSkipped int `json:"malformed_skipped"`
}

// Store owns cart membership. Each operation runs as one critical section,
// including its write to the persistent store.
type Store struct {
	kv     store.KeyValueStore
	logger *zap.Logger

	mu        sync.Mutex
	entries   map[int64]domain.CartEntry
	order     []int64
	malformed int

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

func (s *subscriber) deliver(seq uint64, entries []domain.CartEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.seen {
		return
	}
	s.seen = seq
	s.fn(entries)
}

// New creates an empty Store backed by kv. Call Hydrate to load what kv
// already holds.
func New(kv store.KeyValueStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kv:        kv,
		logger:    logger.Named("cart"),
		entries:   make(map[int64]domain.CartEntry),
		listeners: make(map[int]*subscriber),
	}
}

// Hydrate replaces the in-memory cart with the contents of the persistent
// store. Records that do not decode to an item are skipped and counted; only
// a failure to enumerate the keys aborts hydration.
func (s *Store) Hydrate(ctx context.Context) (int, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("cart: hydrate: %w", err)
	}

	entries := make(map[int64]domain.CartEntry, len(keys))
	malformed := 0
	for _, key := range keys {
		raw, err := s.kv.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, store.ErrKeyNotFound) {
				s.logger.Warn("skipping unreadable cart record", zap.String("key", key), zap.Error(err))
			}
			continue
		}
		entry, err := decodeRecord(key, raw)
		if err != nil {
			malformed++
			s.logger.Warn("skipping malformed cart record", zap.String("key", key), zap.Error(err))
			continue
		}
		entries[entry.ID] = entry
	}

	order := make([]int64, 0, len(entries))
	for id := range entries {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	s.mu.Lock()
	s.entries = entries
	s.order = order
	s.malformed = malformed
	snapshot, seq, subs := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("cart hydrated", zap.Int("entries", len(order)), zap.Int("malformed", malformed))
	notify(subs, seq, snapshot)
	return len(order), nil
}

// Add stores a snapshot of item. Adding an item that is already in the cart
// is a no-op and reports false. A failed write leaves the cart unchanged.
func (s *Store) Add(ctx context.Context, item domain.Item) (bool, error) {
	if item.ID <= 0 {
		return false, fmt.Errorf("%w: id must be positive, got %d", ErrInvalidItem, item.ID)
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("cart: encode item %d: %w", item.ID, err)
	}

	s.mu.Lock()
	if _, ok := s.entries[item.ID]; ok {
		s.mu.Unlock()
		return false, nil
	}
	if err := s.kv.Set(ctx, item.Key(), string(raw)); err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("cart: add item %d: %w", item.ID, err)
	}
	s.entries[item.ID] = item
	s.order = append(s.order, item.ID)
	snapshot, seq, subs := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("item added", zap.Int64("id", item.ID))
	notify(subs, seq, snapshot)
	return true, nil
}

// Remove deletes itemID from the persistent store and from memory. Removing
// an id that is not in the cart succeeds.
func (s *Store) Remove(ctx context.Context, itemID int64) error {
	s.mu.Lock()
	if err := s.kv.Remove(ctx, domain.ItemKey(itemID)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("cart: remove item %d: %w", itemID, err)
	}
	_, present := s.entries[itemID]
	if present {
		delete(s.entries, itemID)
		for i, id := range s.order {
			if id == itemID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	snapshot, seq, subs := s.snapshotLocked()
	s.mu.Unlock()

	if present {
		s.logger.Debug("item removed", zap.Int64("id", itemID))
		notify(subs, seq, snapshot)
	}
	return nil
}

// Contains reports whether itemID is in the cart.
func (s *Store) Contains(itemID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[itemID]
	return ok
}

// List returns the cart entries in the order they were added. Entries loaded
// by Hydrate come first, ordered by ascending id, since the persistent store
// does not record when an item was added.
func (s *Store) List() []domain.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Entries: len(s.entries), MalformedSkipped: s.malformed}
}

// Subscribe registers l for change notifications. The returned function
// unregisters it and is safe to call more than once. Calls to l are
// serialized and never deliver a snapshot older than one l has already seen;
// l may read the Store but must not change it synchronously.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = &subscriber{fn: l}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) listLocked() []domain.CartEntry {
	out := make([]domain.CartEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

// snapshotLocked stamps the current entries with the next sequence number.
func (s *Store) snapshotLocked() ([]domain.CartEntry, uint64, []*subscriber) {
	s.seq++
	subs := make([]*subscriber, 0, len(s.listeners))
	for _, sub := range s.listeners {
		subs = append(subs, sub)
	}
	return s.listLocked(), s.seq, subs
}

// notify runs outside the lock so listeners may read the Store.
func notify(subs []*subscriber, seq uint64, entries []domain.CartEntry) {
	for _, sub := range subs {
		sub.deliver(seq, entries)
	}
}

func decodeRecord(key, raw string) (domain.CartEntry, error) {
	var entry domain.CartEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return entry, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if entry.ID <= 0 {
		return entry, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	if entry.Key() != key {
		return entry, fmt.Errorf("%w: id %d stored under key %q", ErrMalformedRecord, entry.ID, key)
	}
	return entry, nil
}
