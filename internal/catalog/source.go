package catalog

import (
	"context"
	"errors"
	"fmt"

	"catalog-cart-service/internal/domain"
)

// ErrTransientFetch matches every failed catalog request. Such failures are
// recoverable: the caller may retry, and no state was changed.
var ErrTransientFetch = errors.New("catalog: could not load products")

// FetchError describes a failed catalog request. StatusCode is zero when no
// response was received.
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", ErrTransientFetch, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", ErrTransientFetch, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", ErrTransientFetch, e.Err)
	default:
		return ErrTransientFetch.Error()
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrTransientFetch }

// Query is one page request to the catalog.
type Query struct {
	Q     string
	Limit int
	Skip  int
	Sort  domain.SortOrder
}

// Result is one page of products plus the total number of matches.
type Result struct {
	Products []domain.Item `json:"products"`
	Total    int           `json:"total"`
}

// Source answers catalog queries. An empty Result is a successful answer;
// failures are returned as errors matching ErrTransientFetch.
type Source interface {
	Search(ctx context.Context, q Query) (*Result, error)
}
