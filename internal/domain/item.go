package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Item represents a product as listed by the catalog and stored in the cart.
// Identity is ID; an Item is never mutated once fetched.
type Item struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Thumbnail string  `json:"thumbnail"`
}

// CartEntry is the snapshot of an Item persisted in the cart. It is stored by
// value, so later catalog changes never alter an entry already in the cart.
type CartEntry = Item

// Key returns the persistent store key for the item.
func (i Item) Key() string {
	return ItemKey(i.ID)
}

// ItemKey formats an item identifier as a persistent store key.
func ItemKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseItemKey is the inverse of ItemKey.
func ParseItemKey(key string) (int64, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("domain: invalid item key %q", key)
	}
	return id, nil
}

// SortOrder is the price ordering requested for catalog results.
type SortOrder string

const (
	SortNone       SortOrder = "none"
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// ParseSortOrder accepts "asc", "desc" and "none". An empty value and the
// legacy "normal" value both mean SortNone.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "normal":
		return SortNone, nil
	case "asc":
		return SortAscending, nil
	case "desc":
		return SortDescending, nil
	default:
		return "", fmt.Errorf("domain: invalid sort order %q", s)
	}
}

// Valid reports whether s is one of the known sort orders.
func (s SortOrder) Valid() bool {
	return s == SortNone || s == SortAscending || s == SortDescending
}
