package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSortOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    SortOrder
		wantErr bool
	}{
		{in: "", want: SortNone},
		{in: "normal", want: SortNone},
		{in: "none", want: SortNone},
		{in: "ASC", want: SortAscending},
		{in: " desc ", want: SortDescending},
		{in: "price", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSortOrder(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestItemKeyRoundTrip(t *testing.T) {
	item := Item{ID: 42, Title: "Phone"}
	assert.Equal(t, "42", item.Key())

	id, err := ParseItemKey(item.Key())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ParseItemKey("abc")
	assert.Error(t, err)
	_, err = ParseItemKey("0")
	assert.Error(t, err)
}
