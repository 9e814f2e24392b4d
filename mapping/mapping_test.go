package mapping_test

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/filter/memfilter"
	"github.com/theplant/sortfilter/mapping"
)

type Country struct {
	Id   int
	Name string
	Code string
}

type Company struct {
	Id        int
	Name      string
	CountryId *int
	Country   *Country
}

type Product struct {
	Id        int
	Name      string
	Price     float64
	CreatedAt time.Time
	Company   *Company
}

type CompanyDTO struct {
	Name    string
	Country *Country
}

type ProductDTO struct {
	ID          int
	Title       string
	Price       float64
	Created     time.Time
	Company     *CompanyDTO
	CompanyName string
	CountryName string
	Secret      string
}

var (
	productType    = reflect.TypeFor[Product]()
	productDTOType = reflect.TypeFor[ProductDTO]()
)

func newTable(t *testing.T) *mapping.Table {
	table := mapping.NewTable()
	require.NoError(t, mapping.Register[Product, ProductDTO](table,
		mapping.ForMember("title", mapping.FromMember("Name")),
		mapping.ForMember("Created", mapping.FromMember("CreatedAt")),
		mapping.ForMember("CountryName", mapping.FromPath("Company.Country.Name")),
		mapping.Ignore("Secret"),
	))
	require.NoError(t, mapping.Register[*Company, *CompanyDTO](table))
	return table
}

func TestRegister(t *testing.T) {
	table := newTable(t)

	m, ok := table.Lookup(reflect.TypeFor[*Product](), productDTOType)
	require.True(t, ok)

	got := lo.Map(m.Correspondences, func(c *mapping.Correspondence, _ int) string {
		if len(c.Derivation) > 0 {
			return c.DestName + "=" + strings.Join(c.Derivation, ".")
		}
		return c.DestName + "=" + c.SourceMember
	})
	require.Equal(t, []string{
		"ID=Id",
		"Title=Name",
		"Price=Price",
		"Created=CreatedAt",
		"Company=Company",
		"CompanyName=Company.Name",
		"CountryName=Company.Country.Name",
	}, got)

	c, ok := m.Find("countryname")
	require.True(t, ok)
	require.Equal(t, []string{"Company", "Country", "Name"}, c.Derivation)
	require.Equal(t, reflect.TypeFor[string](), c.SourceType)

	c, ok = m.Find("company")
	require.True(t, ok)
	require.Equal(t, reflect.TypeFor[Company](), c.SourceType)
	require.Equal(t, reflect.TypeFor[CompanyDTO](), c.DestType)

	_, ok = m.Find("Secret")
	require.False(t, ok)
}

func TestRegisterPathIgnoresCase(t *testing.T) {
	table := mapping.NewTable()
	require.NoError(t, mapping.Register[Product, ProductDTO](table,
		mapping.ForMember("CountryName", mapping.FromPath("company.country.name")),
	))

	m, ok := table.Lookup(productType, productDTOType)
	require.True(t, ok)
	c, ok := m.Find("CountryName")
	require.True(t, ok)
	require.Equal(t, []string{"Company", "Country", "Name"}, c.Derivation)
}

func TestRegisterErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    []mapping.MemberOption
		wantErr string
	}{
		{
			name:    "unknown destination member",
			opts:    []mapping.MemberOption{mapping.ForMember("Nope", mapping.FromMember("Name"))},
			wantErr: `missing destination member "Nope"`,
		},
		{
			name:    "unknown source member",
			opts:    []mapping.MemberOption{mapping.ForMember("Title", mapping.FromMember("Nope"))},
			wantErr: `missing source member "Nope" for "Title"`,
		},
		{
			name:    "invalid source path",
			opts:    []mapping.MemberOption{mapping.ForMember("Title", mapping.FromPath("Company.Nope"))},
			wantErr: `invalid source path "Company.Nope" for "Title"`,
		},
		{
			name:    "empty source",
			opts:    []mapping.MemberOption{mapping.ForMember("Title", mapping.Source{})},
			wantErr: `empty source for "Title"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapping.Register[Product, ProductDTO](mapping.NewTable(), tt.opts...)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("not a struct", func(t *testing.T) {
		err := mapping.Register[int, ProductDTO](mapping.NewTable())
		require.ErrorContains(t, err, "source and destination must be structs")
	})
}

func TestTranslatePath(t *testing.T) {
	tr := mapping.NewTranslator(newTable(t))

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "same name different case", path: "id", want: "Id"},
		{name: "renamed member", path: "TITLE", want: "Name"},
		{name: "renamed time member", path: "created", want: "CreatedAt"},
		{name: "nested map", path: "company.name", want: "Company.Name"},
		{name: "nested model type", path: "Company.Country.Code", want: "Company.Country.Code"},
		{name: "flattened member", path: "companyName", want: "Company.Name"},
		{name: "derivation keeps receiver and member", path: "CountryName", want: "Country.Name"},
		{name: "ignored member", path: "Secret", want: "Secret"},
		{name: "unknown nested member", path: "company.unknown", want: "company.unknown"},
		{name: "segments after a scalar", path: "Price.Amount", want: "Price.Amount"},
		{name: "empty path", path: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tr.TranslatePath(tt.path, productType, productDTOType))
		})
	}

	t.Run("no map for pair", func(t *testing.T) {
		require.Equal(t, "title", tr.TranslatePath("title", reflect.TypeFor[Company](), productDTOType))
	})
}

func TestLookupFunc(t *testing.T) {
	lookup := mapping.LookupFunc(func(source, dest reflect.Type) (*mapping.TypeMap, bool) {
		if source != productType || dest != productDTOType {
			return nil, false
		}
		return &mapping.TypeMap{
			Source: source,
			Dest:   dest,
			Correspondences: []*mapping.Correspondence{
				{DestName: "Title", SourceMember: "Name"},
				{DestName: "title", SourceMember: "Id"},
				{DestName: "Origin", Derivation: []string{"Company", "Country", "Code"}},
			},
		}, true
	})
	tr := mapping.NewTranslator(lookup)

	require.Equal(t, "Name", tr.TranslatePath("Title", productType, productDTOType))
	require.Equal(t, "Id", tr.TranslatePath("title", productType, productDTOType))
	// two members match case-insensitively
	require.Equal(t, "TITLE", tr.TranslatePath("TITLE", productType, productDTOType))
	require.Equal(t, "Country.Code", tr.TranslatePath("origin", productType, productDTOType))
}

func TestTranslateFilter(t *testing.T) {
	tr := mapping.NewTranslator(newTable(t))

	f := sortfilter.Filter{
		{
			Column: "title",
			Children: sortfilter.Filter{
				{Value: "A", Lop: sortfilter.LopOr},
				{Value: "B", Lop: sortfilter.LopOr},
			},
		},
		{Column: "companyName", Value: "Acme"},
		{Column: "Secret", IsValueNull: true, Lop: sortfilter.LopOr},
	}

	got := tr.TranslateFilter(f, productType, productDTOType)
	require.Equal(t, sortfilter.Filter{
		{
			Column: "Name",
			Children: sortfilter.Filter{
				{Column: "Name", Value: "A", Lop: sortfilter.LopOr},
				{Column: "Name", Value: "B", Lop: sortfilter.LopOr},
			},
		},
		{Column: "Company.Name", Value: "Acme"},
		{Column: "Secret", IsValueNull: true, Lop: sortfilter.LopOr},
	}, got)

	require.Equal(t, "title", f[0].Column)
	require.Empty(t, f[0].Children[0].Column)
	require.Nil(t, tr.TranslateFilter(nil, productType, productDTOType))
}

func TestTranslateSort(t *testing.T) {
	tr := mapping.NewTranslator(newTable(t))

	got := tr.TranslateSort(sortfilter.Sort{
		{Path: "companyName", Direction: sortfilter.Asc},
		{Path: "title", Direction: sortfilter.Desc},
		{Path: "Company.Name", Direction: sortfilter.Desc},
	}, productType, productDTOType)
	require.Equal(t, sortfilter.Sort{
		{Path: "Company.Name", Direction: sortfilter.Desc},
		{Path: "Name", Direction: sortfilter.Desc},
	}, got)

	require.Nil(t, tr.TranslateSort(nil, productType, productDTOType))
}

func TestTranslate(t *testing.T) {
	tr := mapping.NewTranslator(newTable(t))

	acme := &Company{Id: 1, Name: "Acme"}
	globex := &Company{Id: 2, Name: "Globex"}
	products := []*Product{
		{Id: 1, Name: "Test 1", Company: acme},
		{Id: 2, Name: "Test 2", Company: globex},
		{Id: 3, Name: "Other", Company: acme},
	}

	q, err := sortfilter.ParseQuery([]byte(`{"q":[{"col":"title","val":"Test","op":"StW"}],"s":{"companyName":"Desc"}}`))
	require.NoError(t, err)

	translated := mapping.Translate[Product, ProductDTO](tr, q)
	require.Equal(t, "Name", translated.Filter[0].Column)
	require.Equal(t, sortfilter.Sort{{Path: "Company.Name", Direction: sortfilter.Desc}}, translated.Sort)

	got, err := memfilter.Apply(products, translated)
	require.NoError(t, err)
	require.Equal(t, []string{"Test 2", "Test 1"}, lo.Map(got, func(p *Product, _ int) string { return p.Name }))

	require.Nil(t, mapping.Translate[Product, ProductDTO](tr, nil))
}
