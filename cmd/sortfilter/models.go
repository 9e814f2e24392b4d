package main

import (
	"time"

	"github.com/theplant/sortfilter/mapping"
	"github.com/theplant/sortfilter/schema"
)

type Status int

const (
	StatusDraft Status = iota
	StatusPublished
	StatusArchived
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusPublished:
		return "Published"
	case StatusArchived:
		return "Archived"
	}
	return "Unknown"
}

type Country struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type Company struct {
	Id        int      `json:"id"`
	Name      string   `json:"name"`
	CountryId *int     `json:"countryId,omitempty"`
	Country   *Country `json:"country,omitempty"`
}

type Product struct {
	Id          int       `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	CompanyId   *int      `json:"companyId,omitempty"`
	Company     *Company  `json:"company,omitempty"`
}

// CompanyDTO and ProductDTO are the client facing shapes queries may be
// written against with --dto.
type CompanyDTO struct {
	Name    string
	Country *Country
}

type ProductDTO struct {
	ID          int
	Title       string
	Price       float64
	Stock       int
	Status      Status
	Created     time.Time
	Company     *CompanyDTO
	CompanyName string
}

var registry = func() *schema.Registry {
	r := schema.NewRegistry()
	schema.RegisterEnum(r, StatusDraft, StatusPublished, StatusArchived)
	return r
}()

func newTranslator() (*mapping.Translator, error) {
	table := mapping.NewTable(mapping.WithRegistry(registry))
	if err := mapping.Register[Product, ProductDTO](table,
		mapping.ForMember("Title", mapping.FromMember("Name")),
		mapping.ForMember("Stock", mapping.FromMember("Quantity")),
		mapping.ForMember("Created", mapping.FromMember("CreatedAt")),
	); err != nil {
		return nil, err
	}
	if err := mapping.Register[Company, CompanyDTO](table); err != nil {
		return nil, err
	}
	return mapping.NewTranslator(table, mapping.WithRegistry(registry)), nil
}
