package main

import (
	"context"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/filter/gormfilter"
	"github.com/theplant/sortfilter/mapping"
)

var json = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

type queryOptions struct {
	query string
	file  string
	page  int
	size  int
	dto   bool
}

func (a *app) queryCmd() *cobra.Command {
	o := &queryOptions{}
	c := &cobra.Command{
		Use:   "query",
		Short: "Run a JSON query against the demo products",
		Long: `Run a JSON query against the demo products and print one page of results.

The query has the shape {"q": [filter nodes], "s": {"path": "Asc" | "Desc"}}, for example

  sortfilter query -q '{"q":[{"col":"Company.Name","val":"Inc","op":"Ct"}],"s":{"Price":"Desc"}}'

With --dto, paths are written against ProductDTO and translated to Product.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := o.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			out, err := a.query(cmd.Context(), db, data, o)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
	c.Flags().StringVarP(&o.query, "query", "q", "", "query JSON")
	c.Flags().StringVarP(&o.file, "file", "f", "", "read the query JSON from a file, - for stdin")
	c.Flags().IntVar(&o.page, "page", sortfilter.DefaultPageNumber, "page number")
	c.Flags().IntVar(&o.size, "size", 0, "page size, 0 for the configured default")
	c.Flags().BoolVar(&o.dto, "dto", false, "paths are written against ProductDTO")
	return c
}

func (o *queryOptions) read(stdin io.Reader) ([]byte, error) {
	switch {
	case o.query != "" && o.file != "":
		return nil, errors.New("--query and --file are mutually exclusive")
	case o.query != "":
		return []byte(o.query), nil
	case o.file == "-":
		data, err := io.ReadAll(stdin)
		return data, errors.Wrap(err, "read stdin")
	case o.file != "":
		data, err := os.ReadFile(o.file)
		return data, errors.Wrapf(err, "read %s", o.file)
	}
	return nil, nil
}

// query runs data against db and returns the page as JSON, decorated with the
// query that was actually applied.
func (a *app) query(ctx context.Context, db *gorm.DB, data []byte, o *queryOptions) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	q, err := sortfilter.ParseQuery(data)
	if err != nil {
		return nil, err
	}
	if o.dto {
		tr, err := newTranslator()
		if err != nil {
			return nil, err
		}
		q = mapping.Translate[Product, ProductDTO](tr, q)
	}

	filterOpts, err := a.filterOptions()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	finder := gormfilter.NewOffsetFinder[*Product](
		db,
		q,
		gormfilter.WithFilterOptions(filterOpts...),
	)
	p := sortfilter.New[*Product](finder,
		sortfilter.EnsurePageSize[*Product](a.conf.PageSize, a.conf.MaxPageSize),
		sortfilter.EnsurePageNumber[*Product](),
		preloadCompanies(db),
	)
	page, err := p.Paginate(ctx, &sortfilter.PageRequest{PageNumber: o.page, PageSize: o.size})
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(started)

	a.log.Debug("query done",
		zap.Int("total", page.PageInfo.TotalItems),
		zap.Int("page", page.PageInfo.PageNumber),
		zap.Duration("elapsed", elapsed),
	)

	out, err := json.Marshal(page)
	if err != nil {
		return nil, errors.Wrap(err, "marshal page")
	}
	applied, err := json.Marshal(q)
	if err != nil {
		return nil, errors.Wrap(err, "marshal query")
	}
	if out, err = sjson.SetRawBytes(out, "query", applied); err != nil {
		return nil, errors.Wrap(err, "decorate query")
	}
	if out, err = sjson.SetBytes(out, "elapsed", elapsed.String()); err != nil {
		return nil, errors.Wrap(err, "decorate elapsed")
	}
	return out, nil
}

// preloadCompanies loads the company and its country of every product on the
// page. Counting never sees the preload.
func preloadCompanies(db *gorm.DB) func(next sortfilter.Paginator[*Product]) sortfilter.Paginator[*Product] {
	return func(next sortfilter.Paginator[*Product]) sortfilter.Paginator[*Product] {
		return sortfilter.PaginatorFunc[*Product](func(ctx context.Context, req *sortfilter.PageRequest) (*sortfilter.PagedData[*Product], error) {
			page, err := next.Paginate(ctx, req)
			if err != nil || len(page.Data) == 0 {
				return page, err
			}

			ids := lo.Map(page.Data, func(p *Product, _ int) int { return p.Id })
			var loaded []*Product
			if err := db.WithContext(ctx).Preload("Company.Country").Find(&loaded, ids).Error; err != nil {
				return nil, errors.Wrap(err, "preload companies")
			}
			byID := lo.KeyBy(loaded, func(p *Product) int { return p.Id })
			for _, p := range page.Data {
				if l, ok := byID[p.Id]; ok {
					p.Company = l.Company
				}
			}
			return page, nil
		})
	}
}
