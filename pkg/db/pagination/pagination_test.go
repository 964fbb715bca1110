package pagination

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   Pagination
		max  int
		want Pagination
	}{
		{"defaults", Pagination{}, 0, Pagination{Page: 1, Limit: DefaultLimit}},
		{"negative page", Pagination{Page: -3, Limit: 5}, 0, Pagination{Page: 1, Limit: 5}},
		{"clamped limit", Pagination{Page: 2, Limit: 1000}, 0, Pagination{Page: 2, Limit: MaxLimit}},
		{"custom max", Pagination{Page: 1, Limit: 60}, 50, Pagination{Page: 1, Limit: 50}},
		{"huge page", Pagination{Page: math.MaxInt, Limit: 100}, 0, Pagination{Page: math.MaxInt / 100, Limit: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.in.Normalize(tc.max))
		})
	}
}

func TestOffsetAndPages(t *testing.T) {
	require.Equal(t, 0, Pagination{Page: 1, Limit: 10}.Offset())
	require.Equal(t, 10, Pagination{Page: 2, Limit: 10}.Offset())
	require.Equal(t, 0, Pagination{}.Offset())

	require.Equal(t, 0, Pages(0, 10))
	require.Equal(t, 1, Pages(10, 10))
	require.Equal(t, 3, Pages(25, 10))

	info := Pagination{Page: 2, Limit: 10}.Info(25)
	require.Equal(t, PageInfo{Total: 25, Page: 2, Limit: 10, Pages: 3}, info)
}

func TestOffsetNeverOverflows(t *testing.T) {
	for _, page := range []int{math.MaxInt, math.MaxInt / 2, 100_000_000_000_000_000} {
		p := Pagination{Page: page, Limit: 100}.Normalize(0)
		require.Positive(t, p.Offset(), "page %d", page)
		require.LessOrEqual(t, p.Offset(), math.MaxInt-p.Limit)
	}
}
