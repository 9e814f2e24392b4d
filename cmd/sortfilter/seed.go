package main

import (
	"context"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type seedOptions struct {
	countries int
	companies int
	products  int
	seed      int64
	reset     bool
}

func (a *app) seedCmd() *cobra.Command {
	o := &seedOptions{}
	c := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo tables and fill them with fake data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			return a.seed(cmd.Context(), db, o)
		},
	}
	c.Flags().IntVar(&o.countries, "countries", 8, "number of countries")
	c.Flags().IntVar(&o.companies, "companies", 30, "number of companies")
	c.Flags().IntVar(&o.products, "products", 500, "number of products")
	c.Flags().Int64Var(&o.seed, "seed", 0, "random seed, 0 for a random one")
	c.Flags().BoolVar(&o.reset, "reset", false, "drop the demo tables first")
	return c
}

func (a *app) seed(ctx context.Context, db *gorm.DB, o *seedOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db = db.WithContext(ctx)

	if o.reset {
		if err := db.Migrator().DropTable(&Product{}, &Company{}, &Country{}); err != nil {
			return errors.Wrap(err, "drop tables")
		}
	}
	if err := db.AutoMigrate(&Country{}, &Company{}, &Product{}); err != nil {
		return errors.Wrap(err, "migrate")
	}

	faker := gofakeit.New(o.seed)

	countries := lo.Times(o.countries, func(_ int) *Country {
		return &Country{Name: faker.Country(), Code: faker.CountryAbr()}
	})
	if err := createInBatches(db, countries); err != nil {
		return errors.Wrap(err, "create countries")
	}

	companies := lo.Times(o.companies, func(_ int) *Company {
		c := &Company{Name: faker.Company()}
		// some companies have no country so nested null checks have something to find
		if len(countries) > 0 && faker.Number(0, 9) > 0 {
			c.CountryId = &countries[faker.Number(0, len(countries)-1)].Id
		}
		return c
	})
	if err := createInBatches(db, companies); err != nil {
		return errors.Wrap(err, "create companies")
	}

	end := time.Now().UTC().Truncate(time.Second)
	start := end.AddDate(-1, 0, 0)
	products := lo.Times(o.products, func(_ int) *Product {
		p := &Product{
			Name:      faker.Adjective() + " " + faker.Noun(),
			Price:     faker.Price(1, 500),
			Quantity:  faker.Number(0, 100),
			Status:    Status(faker.Number(int(StatusDraft), int(StatusArchived))),
			CreatedAt: faker.DateRange(start, end).UTC(),
		}
		if faker.Bool() {
			p.Description = lo.ToPtr(faker.Sentence(8))
		}
		if len(companies) > 0 && faker.Number(0, 9) > 0 {
			p.CompanyId = &companies[faker.Number(0, len(companies)-1)].Id
		}
		return p
	})
	if err := createInBatches(db, products); err != nil {
		return errors.Wrap(err, "create products")
	}

	a.log.Info("seeded",
		zap.Int("countries", len(countries)),
		zap.Int("companies", len(companies)),
		zap.Int("products", len(products)),
	)
	return nil
}

func createInBatches[T any](db *gorm.DB, records []*T) error {
	if len(records) == 0 {
		return nil
	}
	return db.CreateInBatches(records, 100).Error
}
