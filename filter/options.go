package filter

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/theplant/sortfilter/schema"
)

var (
	// ErrEmptyColumn is returned for a node that carries a value or a null
	// check but has no column, not even an inherited one.
	ErrEmptyColumn = errors.New("filter column cannot be empty")

	// ErrInvalidValue is returned when a value cannot be converted to the
	// column type and the failure is not tolerated.
	ErrInvalidValue = errors.New("invalid filter value")

	// ErrComplexity is returned when a filter exceeds the configured limits.
	ErrComplexity = errors.New("filter too complex")
)

type Options struct {
	Registry *schema.Registry
	Logger   *zap.Logger
	// DefaultLocation is the zone used for date values of nodes without a
	// client time zone.
	DefaultLocation *time.Location
	// Strict turns off numeric rounding and makes unparseable values,
	// unknown enum names and unknown zones errors.
	Strict bool
	Limits *ComplexityLimits
}

type Option func(*Options)

func WithRegistry(r *schema.Registry) Option {
	return func(o *Options) {
		o.Registry = r
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithDefaultLocation(loc *time.Location) Option {
	return func(o *Options) {
		o.DefaultLocation = loc
	}
}

func WithStrict(strict bool) Option {
	return func(o *Options) {
		o.Strict = strict
	}
}

func WithComplexityLimits(limits *ComplexityLimits) Option {
	return func(o *Options) {
		o.Limits = limits
	}
}

func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.Registry == nil {
		o.Registry = schema.Default
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.DefaultLocation == nil {
		o.DefaultLocation = time.UTC
	}
	return o
}
