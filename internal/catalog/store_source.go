package catalog

import (
	"context"

	"catalog-cart-service/internal/store"
)

// StoreSource answers catalog queries from a product table.
type StoreSource struct {
	products store.ProductLister
}

func NewStoreSource(products store.ProductLister) *StoreSource {
	return &StoreSource{products: products}
}

func (s *StoreSource) Search(ctx context.Context, q Query) (*Result, error) {
	params := store.ListProductsParams{
		Limit:     q.Limit,
		Offset:    q.Skip,
		SortOrder: string(q.Sort),
	}
	if q.Q != "" {
		params.SearchQuery = &q.Q
	}
	items, total, err := s.products.ListProducts(ctx, params)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	return &Result{Products: items, Total: total}, nil
}
