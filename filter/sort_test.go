package filter_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/filter"
)

type Label struct {
	Text string
}

type Account struct {
	gorm.Model
	Email string
}

func keyStrings(keys []filter.SortKey) []string {
	return lo.Map(keys, func(k filter.SortKey, _ int) string { return k.String() })
}

func TestCompileSort(t *testing.T) {
	tests := []struct {
		name string
		sort sortfilter.Sort
		want []string
	}{
		{
			name: "empty sort orders by identity",
			sort: nil,
			want: []string{"Id"},
		},
		{
			name: "insertion order is precedence",
			sort: sortfilter.Sort{
				{Path: "Name", Direction: sortfilter.Desc},
				{Path: "missing", Direction: sortfilter.Asc},
				{Path: "company.name", Direction: sortfilter.Asc},
				{Path: "Price", Direction: sortfilter.Desc},
			},
			want: []string{"Name DESC", "Company.Name", "Price DESC"},
		},
		{
			name: "every entry unresolvable orders by identity",
			sort: sortfilter.Sort{{Path: "Missing"}, {Path: "Company"}},
			want: []string{"Id"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := filter.CompileSortFor[Product](tt.sort, filter.WithRegistry(registry))
			require.Equal(t, tt.want, keyStrings(keys))
		})
	}
}

func TestCompileSortIdentityFallback(t *testing.T) {
	require.Nil(t, filter.CompileSortFor[Label](nil))
	require.Nil(t, filter.CompileSortFor[Label](sortfilter.Sort{{Path: "Missing"}}))

	require.Equal(t, []string{"ID"}, keyStrings(filter.CompileSortFor[Account](nil)))
	require.Equal(t, []string{"Text DESC"}, keyStrings(filter.CompileSortFor[Label](sortfilter.Sort{{Path: "text", Direction: sortfilter.Desc}})))
}
