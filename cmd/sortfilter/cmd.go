package main

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/theplant/sortfilter"
	"github.com/theplant/sortfilter/filter"
)

type Config struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	TimeZone    string `mapstructure:"time_zone"`
	PageSize    int    `mapstructure:"page_size"`
	MaxPageSize int    `mapstructure:"max_page_size"`
	Strict      bool   `mapstructure:"strict"`
	LogJSON     bool   `mapstructure:"log_json"`
	Debug       bool   `mapstructure:"debug"`
}

// app carries what every subcommand needs once the config is read.
type app struct {
	conf *Config
	log  *zap.Logger
}

func rootCmd() *cobra.Command {
	vi := newViper()
	a := &app{}

	cobra.EnableCommandSorting = false
	c := &cobra.Command{
		Use:           "sortfilter",
		Short:         "Filter, sort and paginate a demo catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := readConfig(vi)
			if err != nil {
				return err
			}
			a.conf = conf
			a.log = newLogger(conf.LogJSON, conf.Debug)
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := c.PersistentFlags()
	pf.String("config", "", "path to a config file (yaml, json or toml)")
	pf.String("driver", "sqlite", "database driver: sqlite or postgres")
	pf.String("dsn", "sortfilter.db", "database connection string")
	pf.String("time-zone", "UTC", "zone for date values of nodes without one")
	pf.Bool("strict", false, "reject values that cannot be parsed instead of dropping them")
	pf.Bool("log-json", false, "log in json format")
	pf.Bool("debug", false, "log at debug level")

	for key, flag := range map[string]string{
		"config":    "config",
		"driver":    "driver",
		"dsn":       "dsn",
		"time_zone": "time-zone",
		"strict":    "strict",
		"log_json":  "log-json",
		"debug":     "debug",
	} {
		_ = vi.BindPFlag(key, pf.Lookup(flag))
	}

	c.AddCommand(a.seedCmd())
	c.AddCommand(a.queryCmd())

	c.SetErr(os.Stderr)
	c.SetOut(os.Stdout)
	return c
}

// newViper returns a viper instance with the defaults set and SORTFILTER_
// environment variables bound.
func newViper() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("driver", "sqlite")
	vi.SetDefault("dsn", "sortfilter.db")
	vi.SetDefault("time_zone", "UTC")
	vi.SetDefault("page_size", sortfilter.DefaultPageSize)
	vi.SetDefault("max_page_size", sortfilter.MaxPageSize)
	vi.SetDefault("strict", false)
	vi.SetDefault("log_json", false)
	vi.SetDefault("debug", false)

	vi.SetEnvPrefix("SORTFILTER")
	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vi.AutomaticEnv()
	return vi
}

func readConfig(vi *viper.Viper) (*Config, error) {
	if path := vi.GetString("config"); path != "" {
		vi.SetConfigFile(path)
		if err := vi.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	conf := &Config{}
	if err := vi.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if conf.PageSize <= 0 || conf.MaxPageSize < conf.PageSize {
		return nil, errors.Errorf("invalid page sizes %d and %d", conf.PageSize, conf.MaxPageSize)
	}
	return conf, nil
}

// newLogger logs to stderr so that query results on stdout stay parseable.
func newLogger(json, debug bool) *zap.Logger {
	econf := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	var core zapcore.Core
	if json {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(econf), zapcore.Lock(os.Stderr), level)
	} else {
		econf.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(econf), zapcore.Lock(os.Stderr), level)
	}
	return zap.New(core)
}

func (a *app) openDB() (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch a.conf.Driver {
	case "sqlite":
		dialector = sqlite.Open(a.conf.DSN)
	case "postgres":
		dialector = postgres.Open(a.conf.DSN)
	default:
		return nil, errors.Errorf("unsupported driver %q", a.conf.Driver)
	}

	level := logger.Warn
	if a.conf.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", a.conf.Driver)
	}
	return db, nil
}

func (a *app) filterOptions() ([]filter.Option, error) {
	loc, err := time.LoadLocation(a.conf.TimeZone)
	if err != nil {
		return nil, errors.Wrapf(err, "load time zone %q", a.conf.TimeZone)
	}
	return []filter.Option{
		filter.WithRegistry(registry),
		filter.WithLogger(a.log.Named("filter")),
		filter.WithDefaultLocation(loc),
		filter.WithStrict(a.conf.Strict),
		filter.WithComplexityLimits(filter.DefaultLimits),
	}, nil
}
