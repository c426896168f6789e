package catalog

import (
	"slices"

	"catalog-cart-service/internal/domain"
)

// SortBatch returns a copy of batch ordered by price. The sort is stable, so
// equal prices and SortNone keep the order the source returned.
func SortBatch(batch []domain.Item, order domain.SortOrder) []domain.Item {
	out := slices.Clone(batch)
	switch order {
	case domain.SortAscending:
		slices.SortStableFunc(out, func(a, b domain.Item) int { return comparePrice(a.Price, b.Price) })
	case domain.SortDescending:
		slices.SortStableFunc(out, func(a, b domain.Item) int { return comparePrice(b.Price, a.Price) })
	}
	return out
}

func comparePrice(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MergeBatch appends the items of batch whose id is not already present,
// keeping batch order and never reordering accumulated. It returns the merged
// list and how many items were appended.
func MergeBatch(accumulated, batch []domain.Item) ([]domain.Item, int) {
	seen := make(map[int64]struct{}, len(accumulated)+len(batch))
	for _, it := range accumulated {
		seen[it.ID] = struct{}{}
	}
	merged := slices.Clip(accumulated)
	added := 0
	for _, it := range batch {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		merged = append(merged, it)
		added++
	}
	return merged, added
}

// TotalPages is ceil(total / pageSize), and 0 for an empty result.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// ValidPageSize reports whether n is an allowed page size (10, 20, 30, ...).
func ValidPageSize(n int) bool {
	return n > 0 && n%10 == 0
}
