package gormfilter

import "github.com/theplant/sortfilter/filter"

type options struct {
	filterOpts       []filter.Option
	disableBelongsTo bool
}

type Option func(*options)

// WithFilterOptions passes compile options such as the registry, logger or
// default location through to the filter and sort compilers.
func WithFilterOptions(opts ...filter.Option) Option {
	return func(o *options) {
		o.filterOpts = append(o.filterOpts, opts...)
	}
}

// WithDisableBelongsTo rejects filters reaching through belongs_to
// relationships.
func WithDisableBelongsTo() Option {
	return func(o *options) {
		o.disableBelongsTo = true
	}
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
