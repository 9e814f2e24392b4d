package gormfilter_test

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/filter"
	"github.com/theplant/sortfilter/filter/gormfilter"
	"github.com/theplant/sortfilter/schema"
)

type Status int

const (
	StatusDraft Status = iota
	StatusPublished
)

func (s Status) String() string {
	return [...]string{"Draft", "Published"}[s]
}

type Country struct {
	Id   int
	Name string
}

type Company struct {
	Id        int
	Name      string
	CountryId *int
	Country   *Country
	Profile   *Profile
}

type Profile struct {
	Id        int
	CompanyId int
	Motto     *string
}

type Product struct {
	Id          int
	Name        string
	Description *string
	Price       float64
	Quantity    int
	Status      Status
	CreatedAt   time.Time
	CompanyId   *int
	Company     *Company
}

var (
	db       *gorm.DB
	registry = func() *schema.Registry {
		r := schema.NewRegistry()
		schema.RegisterEnum(r, StatusDraft, StatusPublished)
		return r
	}()
	opts = []gormfilter.Option{gormfilter.WithFilterOptions(filter.WithRegistry(registry))}
)

func TestMain(m *testing.M) {
	var err error
	db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	if err := seed(db); err != nil {
		panic(err)
	}
	m.Run()
}

func seed(db *gorm.DB) error {
	if err := db.AutoMigrate(&Country{}, &Company{}, &Profile{}, &Product{}); err != nil {
		return err
	}
	if err := db.Create(&Country{Id: 1, Name: "Japan"}).Error; err != nil {
		return err
	}
	if err := db.Create([]*Company{
		{Id: 1, Name: "Acme", CountryId: lo.ToPtr(1)},
		{Id: 2, Name: "Globex"},
	}).Error; err != nil {
		return err
	}
	if err := db.Create(&Profile{Id: 1, CompanyId: 1, Motto: lo.ToPtr("Beep beep")}).Error; err != nil {
		return err
	}
	return db.Create([]*Product{
		{Id: 1, Name: "Test 2", Price: 3.9, Quantity: 0, Status: StatusDraft, CreatedAt: time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC), CompanyId: lo.ToPtr(2)},
		{Id: 2, Name: "Test 3", Description: lo.ToPtr("third"), Price: 4.4, Quantity: 7, Status: StatusPublished, CreatedAt: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{Id: 3, Name: "Test 1", Description: lo.ToPtr("first"), Price: 5.0, Quantity: 10, Status: StatusPublished, CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), CompanyId: lo.ToPtr(1)},
		{Id: 4, Name: "Sale 50%_off", Price: 1.2, Quantity: 1, Status: StatusDraft, CreatedAt: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)},
		{Id: 5, Name: "Other", Price: 12.5, Quantity: 3, Status: StatusDraft, CreatedAt: time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), CompanyId: lo.ToPtr(1)},
	}).Error
}

func ids(products []*Product) []int {
	return lo.Map(products, func(p *Product, _ int) int { return p.Id })
}

func TestScopeSQL(t *testing.T) {
	tests := []struct {
		name     string
		filter   sortfilter.Filter
		wantSQL  string
		wantVars []any
	}{
		{
			name:    "empty filter",
			filter:  nil,
			wantSQL: "SELECT * FROM `products`",
		},
		{
			name:     "simple equals",
			filter:   sortfilter.Filter{{Column: "name", Value: "Test 1"}},
			wantSQL:  "SELECT * FROM `products` WHERE `products`.`name` = ?",
			wantVars: []any{"Test 1"},
		},
		{
			name:     "rounded comparison",
			filter:   sortfilter.Filter{{Column: "Price", Value: "4.5"}},
			wantSQL:  "SELECT * FROM `products` WHERE ROUND(CAST(`products`.`price` AS NUMERIC)) = ?",
			wantVars: []any{float64(5)},
		},
		{
			name:     "negated like is escaped",
			filter:   sortfilter.Filter{{Column: "Name", Value: "a%", Op: sortfilter.OpNotStW}},
			wantSQL:  "SELECT * FROM `products` WHERE `products`.`name` NOT LIKE ? ESCAPE '\\'",
			wantVars: []any{"a\\%%"},
		},
		{
			name:    "is not null",
			filter:  sortfilter.Filter{{Column: "Description", IsValueNull: true, Op: sortfilter.OpNotEq}},
			wantSQL: "SELECT * FROM `products` WHERE `products`.`description` IS NOT NULL",
		},
		{
			name: "Or",
			filter: sortfilter.Filter{
				{Column: "Name", Value: "A", Lop: sortfilter.LopOr},
				{Column: "Quantity", Value: "1", Op: sortfilter.OpGt, Lop: sortfilter.LopOr},
			},
			wantSQL:  "SELECT * FROM `products` WHERE (`products`.`name` = ? OR `products`.`quantity` > ?)",
			wantVars: []any{"A", int64(1)},
		},
		{
			name: "And",
			filter: sortfilter.Filter{
				{Column: "Name", Value: "A"},
				{Column: "Status", Value: "Published"},
			},
			wantSQL:  "SELECT * FROM `products` WHERE `products`.`name` = ? AND `products`.`status` = ?",
			wantVars: []any{"A", int64(1)},
		},
		{
			name:    "record is null",
			filter:  sortfilter.Filter{{Column: "Company", IsValueNull: true}},
			wantSQL: "SELECT * FROM `products` WHERE `products`.`company_id` IS NULL",
		},
		{
			name:    "record is not null",
			filter:  sortfilter.Filter{{Column: "Company", IsValueNull: true, Op: sortfilter.OpNotEq}},
			wantSQL: "SELECT * FROM `products` WHERE `products`.`company_id` IS NOT NULL",
		},
		{
			name:    "unresolvable nodes add nothing",
			filter:  sortfilter.Filter{{Column: "Missing", Value: "A"}},
			wantSQL: "SELECT * FROM `products`",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := db.Model(&Product{}).
				Scopes(gormfilter.Scope(tt.filter, opts...)).
				Session(&gorm.Session{DryRun: true}).
				Find(&[]*Product{})
			require.NoError(t, stmt.Error)
			require.Equal(t, tt.wantSQL, stmt.Statement.SQL.String())
			if tt.wantVars == nil {
				require.Empty(t, stmt.Statement.Vars)
			} else {
				require.Equal(t, tt.wantVars, stmt.Statement.Vars)
			}
		})
	}
}

func TestScope(t *testing.T) {
	tests := []struct {
		name   string
		filter sortfilter.Filter
		want   []int
	}{
		{
			name: "nested Or",
			filter: sortfilter.Filter{{
				Column: "Name",
				Children: sortfilter.Filter{
					{Value: "Test 1", Lop: sortfilter.LopOr},
					{Value: "Test 2", Lop: sortfilter.LopOr},
				},
			}},
			want: []int{1, 3},
		},
		{
			name: "chained operators",
			filter: sortfilter.Filter{{
				Column: "Name",
				Children: sortfilter.Filter{
					{Value: "Test", Op: sortfilter.OpStW},
					{Value: "2", Op: sortfilter.OpEndW},
				},
			}},
			want: []int{1},
		},
		{
			name:   "numeric tolerance",
			filter: sortfilter.Filter{{Column: "price", Value: "4.5"}},
			want:   []int{3},
		},
		{
			name:   "integer comparison",
			filter: sortfilter.Filter{{Column: "Quantity", Value: "7", Op: sortfilter.OpGte}},
			want:   []int{2, 3},
		},
		{
			name:   "date equals covers the day",
			filter: sortfilter.Filter{{Column: "CreatedAt", Value: "2024-03-01"}},
			want:   []int{1, 3},
		},
		{
			name:   "date in client zone",
			filter: sortfilter.Filter{{Column: "CreatedAt", Value: "2024-03-01", ClientTimeZone: "Asia/Tokyo"}},
			want:   []int{3, 5},
		},
		{
			name:   "is null",
			filter: sortfilter.Filter{{Column: "Description", IsValueNull: true}},
			want:   []int{1, 4, 5},
		},
		{
			name:   "is not null",
			filter: sortfilter.Filter{{Column: "Description", IsValueNull: true, Op: sortfilter.OpNotEq}},
			want:   []int{2, 3},
		},
		{
			name:   "belongs to",
			filter: sortfilter.Filter{{Column: "company.name", Value: "Acme"}},
			want:   []int{3, 5},
		},
		{
			name:   "two levels of belongs to",
			filter: sortfilter.Filter{{Column: "Company.Country.Name", Value: "Japan"}},
			want:   []int{3, 5},
		},
		{
			name:   "not equal through a relationship skips missing records",
			filter: sortfilter.Filter{{Column: "Company.Name", Value: "Acme", Op: sortfilter.OpNotEq}},
			want:   []int{1},
		},
		{
			name:   "negated contains through a relationship skips missing records",
			filter: sortfilter.Filter{{Column: "Company.Name", Value: "zzz", Op: sortfilter.OpNotCt}},
			want:   []int{1, 3, 5},
		},
		{
			name:   "negated starts with through a relationship",
			filter: sortfilter.Filter{{Column: "Company.Name", Value: "Ac", Op: sortfilter.OpNotStW}},
			want:   []int{1},
		},
		{
			name:   "negated ends with through two relationships",
			filter: sortfilter.Filter{{Column: "Company.Country.Name", Value: "pan", Op: sortfilter.OpNotEndW}},
			want:   []int{},
		},
		{
			name:   "null through a missing relationship",
			filter: sortfilter.Filter{{Column: "Company.Name", IsValueNull: true}},
			want:   []int{2, 4},
		},
		{
			name:   "not null through a relationship",
			filter: sortfilter.Filter{{Column: "Company.Name", IsValueNull: true, Op: sortfilter.OpNotEq}},
			want:   []int{1, 3, 5},
		},
		{
			name:   "null through two relationships",
			filter: sortfilter.Filter{{Column: "Company.Country.Name", IsValueNull: true}},
			want:   []int{1, 2, 4},
		},
		{
			name:   "belongs to record is null",
			filter: sortfilter.Filter{{Column: "Company", IsValueNull: true}},
			want:   []int{2, 4},
		},
		{
			name:   "belongs to record is not null",
			filter: sortfilter.Filter{{Column: "company", IsValueNull: true, Op: sortfilter.OpNotEq}},
			want:   []int{1, 3, 5},
		},
		{
			name:   "nested record is null",
			filter: sortfilter.Filter{{Column: "Company.Country", IsValueNull: true}},
			want:   []int{1, 2, 4},
		},
		{
			name:   "has one record is null",
			filter: sortfilter.Filter{{Column: "Company.Profile", IsValueNull: true}},
			want:   []int{1, 2, 4},
		},
		{
			name:   "has one record is not null",
			filter: sortfilter.Filter{{Column: "Company.Profile", IsValueNull: true, Op: sortfilter.OpNotEq}},
			want:   []int{3, 5},
		},
		{
			name:   "negated contains through has one",
			filter: sortfilter.Filter{{Column: "Company.Profile.Motto", Value: "zzz", Op: sortfilter.OpNotCt}},
			want:   []int{3, 5},
		},
		{
			name:   "enum",
			filter: sortfilter.Filter{{Column: "Status", Value: "Published"}},
			want:   []int{2, 3},
		},
		{
			name:   "like wildcards are literal",
			filter: sortfilter.Filter{{Column: "Name", Value: "%", Op: sortfilter.OpCt}},
			want:   []int{4},
		},
		{
			name:   "negated contains",
			filter: sortfilter.Filter{{Column: "Name", Value: "est", Op: sortfilter.OpNotCt}},
			want:   []int{4, 5},
		},
		{
			name: "left fold of roots",
			filter: sortfilter.Filter{
				{Column: "Name", Value: "Other"},
				{Column: "Quantity", Value: "10", Lop: sortfilter.LopOr},
				{Column: "Company.Name", Value: "Acme"},
			},
			want: []int{3, 5},
		},
		{
			name:   "unresolvable filter is identity",
			filter: sortfilter.Filter{{Column: "Missing", Value: "x"}},
			want:   []int{1, 2, 3, 4, 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []*Product
			err := db.Model(&Product{}).
				Scopes(gormfilter.Scope(tt.filter, opts...)).
				Order("id").
				Find(&got).Error
			require.NoError(t, err)
			require.Equal(t, tt.want, ids(got))
		})
	}
}

func TestScopeErrors(t *testing.T) {
	t.Run("empty column", func(t *testing.T) {
		err := db.Model(&Product{}).
			Scopes(gormfilter.Scope(sortfilter.Filter{{Value: "x"}})).
			Find(&[]*Product{}).Error
		require.ErrorIs(t, err, filter.ErrEmptyColumn)
	})

	t.Run("belongs_to disabled", func(t *testing.T) {
		err := db.Model(&Product{}).
			Scopes(gormfilter.Scope(
				sortfilter.Filter{{Column: "Company.Name", Value: "Acme"}},
				gormfilter.WithDisableBelongsTo(),
			)).
			Find(&[]*Product{}).Error
		require.ErrorContains(t, err, `belongs_to filter is disabled for field "Company"`)
	})

	t.Run("belongs_to disabled leaves local fields alone", func(t *testing.T) {
		var got []*Product
		err := db.Model(&Product{}).
			Scopes(gormfilter.Scope(
				sortfilter.Filter{{Column: "Quantity", Value: "3"}},
				gormfilter.WithDisableBelongsTo(),
			)).
			Find(&got).Error
		require.NoError(t, err)
		require.Equal(t, []int{5}, ids(got))
	})
}

func TestOrderScope(t *testing.T) {
	tests := []struct {
		name string
		sort sortfilter.Sort
		want []int
	}{
		{
			name: "identity fallback",
			want: []int{1, 2, 3, 4, 5},
		},
		{
			name: "descending",
			sort: sortfilter.Sort{{Path: "Price", Direction: sortfilter.Desc}},
			want: []int{5, 3, 2, 1, 4},
		},
		{
			name: "joined relationship with nulls first",
			sort: sortfilter.Sort{
				{Path: "Company.Name"},
				{Path: "name", Direction: sortfilter.Desc},
			},
			want: []int{2, 4, 3, 5, 1},
		},
		{
			name: "nested join with nulls last descending",
			sort: sortfilter.Sort{
				{Path: "company.country.name", Direction: sortfilter.Desc},
				{Path: "Id"},
			},
			want: []int{3, 5, 1, 2, 4},
		},
		{
			name: "unresolvable entries fall back to identity",
			sort: sortfilter.Sort{{Path: "Missing", Direction: sortfilter.Desc}},
			want: []int{1, 2, 3, 4, 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []*Product
			err := db.Model(&Product{}).
				Scopes(gormfilter.OrderScope(tt.sort, opts...)).
				Find(&got).Error
			require.NoError(t, err)
			require.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApply(t *testing.T) {
	q, err := sortfilter.ParseQuery([]byte(`{
		"q": [{"col": "Company.Name", "val": "Acme"}],
		"s": {"Price": "Desc"}
	}`))
	require.NoError(t, err)

	var got []*Product
	err = db.Model(&Product{}).Scopes(gormfilter.Apply(q, opts...)).Find(&got).Error
	require.NoError(t, err)
	require.Equal(t, []int{5, 3}, ids(got))
}

func TestOffsetFinder(t *testing.T) {
	q, err := sortfilter.ParseQuery([]byte(`{
		"q": [{"col": "Name", "val": "Test", "op": "StW"}],
		"s": {"Price": "Desc"}
	}`))
	require.NoError(t, err)

	t.Run("paginate", func(t *testing.T) {
		finder := gormfilter.NewOffsetFinder[*Product](db, q, opts...)
		p := sortfilter.New[*Product](finder, sortfilter.EnsurePageSize[*Product](2, 10))

		rsp, err := p.Paginate(context.Background(), &sortfilter.PageRequest{PageNumber: 5})
		require.NoError(t, err)
		require.Equal(t, &sortfilter.PageInfo{PageNumber: 2, PageSize: 2, TotalItems: 3, TotalPages: 2}, rsp.PageInfo)
		require.Equal(t, []int{1}, ids(rsp.Data))

		rsp, err = p.Paginate(context.Background(), &sortfilter.PageRequest{PageNumber: 1})
		require.NoError(t, err)
		require.Equal(t, []int{3, 2}, ids(rsp.Data))
	})

	t.Run("based on model", func(t *testing.T) {
		finder := gormfilter.NewOffsetFinder[any](db.Model(&Product{}), q, opts...)

		count, err := finder.Count(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, count)

		nodes, err := finder.Find(context.Background(), 1, 5)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		require.Equal(t, "Test 3", nodes[0].(*Product).Name)

		// the finder does not accumulate conditions across calls
		count, err = finder.Count(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, count)
	})

	t.Run("zero limit", func(t *testing.T) {
		nodes, err := gormfilter.NewOffsetFinder[*Product](db, q).Find(context.Background(), 0, 0)
		require.NoError(t, err)
		require.Empty(t, nodes)
	})

	t.Run("invalid model type", func(t *testing.T) {
		_, err := gormfilter.NewOffsetFinder[int](db, q).Count(context.Background())
		require.ErrorContains(t, err, "invalid model type")
	})
}
