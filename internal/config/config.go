package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Sources       SourcesConfig       `yaml:"sources" mapstructure:"sources"`
	Spend         SpendConfig         `yaml:"spend" mapstructure:"spend"`
	Certification CertificationConfig `yaml:"certification" mapstructure:"certification"`
	Waterfall     WaterfallConfig     `yaml:"waterfall" mapstructure:"waterfall"`
	Output        OutputConfig        `yaml:"output" mapstructure:"output"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourceConfig locates one input snapshot: a spreadsheet/CSV file, or a
// Postgres table when Table is set and Path is not. Keys are the conflict
// keys used when the file is loaded into Table.
type SourceConfig struct {
	Path     string   `yaml:"path" mapstructure:"path"`
	Sheet    string   `yaml:"sheet" mapstructure:"sheet"`
	Table    string   `yaml:"table" mapstructure:"table"`
	Encoding string   `yaml:"encoding" mapstructure:"encoding"`
	Keys     []string `yaml:"keys" mapstructure:"keys"`
}

// SourcesConfig holds the three input snapshots.
type SourcesConfig struct {
	Vendors   SourceConfig `yaml:"vendors" mapstructure:"vendors"`
	Contracts SourceConfig `yaml:"contracts" mapstructure:"contracts"`
	Funding   SourceConfig `yaml:"funding" mapstructure:"funding"`
}

// SpendConfig configures the certified-spend calculation.
type SpendConfig struct {
	FloorAtZero  bool `yaml:"floor_at_zero" mapstructure:"floor_at_zero"`
	DedupeFanout bool `yaml:"dedupe_fanout" mapstructure:"dedupe_fanout"`
}

// CertLevelConfig overrides one certification hierarchy entry.
type CertLevelConfig struct {
	Type       string `yaml:"type" mapstructure:"type"`
	Rank       int    `yaml:"rank" mapstructure:"rank"`
	Qualifying bool   `yaml:"qualifying" mapstructure:"qualifying"`
}

// CertificationConfig holds hierarchy overrides merged over the built-in table.
type CertificationConfig struct {
	Hierarchy []CertLevelConfig `yaml:"hierarchy" mapstructure:"hierarchy"`
}

// WaterfallConfig points at an optional strategy plan file.
type WaterfallConfig struct {
	PlanPath string `yaml:"plan_path" mapstructure:"plan_path"`
}

// OutputConfig selects the report sinks.
type OutputConfig struct {
	XLSXPath        string `yaml:"xlsx_path" mapstructure:"xlsx_path"`
	SQLitePath      string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PublishPostgres bool   `yaml:"publish_postgres" mapstructure:"publish_postgres"`
}

// HasSink reports whether at least one report sink is configured.
func (o OutputConfig) HasSink() bool {
	return o.XLSXPath != "" || o.SQLitePath != "" || o.PublishPostgres
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CERTSPEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("sources.vendors.table", "vendors")
	v.SetDefault("sources.contracts.table", "contracts")
	v.SetDefault("sources.funding.table", "funding")
	v.SetDefault("spend.floor_at_zero", false)
	v.SetDefault("spend.dedupe_fanout", false)
	v.SetDefault("waterfall.plan_path", "")
	v.SetDefault("output.xlsx_path", "")
	v.SetDefault("output.sqlite_path", "")
	v.SetDefault("output.publish_postgres", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs: "run", "load",
// "migrate" or "runs".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run":
		for _, s := range []struct {
			name string
			src  SourceConfig
		}{
			{"vendors", c.Sources.Vendors},
			{"contracts", c.Sources.Contracts},
			{"funding", c.Sources.Funding},
		} {
			name, src := s.name, s.src
			if src.Path == "" && src.Table == "" {
				problems = append(problems, fmt.Sprintf("sources.%s needs a path or a table", name))
			}
			if src.Path == "" && c.Store.DatabaseURL == "" {
				problems = append(problems, fmt.Sprintf("sources.%s reads from Postgres but store.database_url is empty", name))
			}
		}
		if !c.Output.HasSink() {
			problems = append(problems, "no output configured (output.xlsx_path, output.sqlite_path or output.publish_postgres)")
		}
		if c.Output.PublishPostgres && c.Store.DatabaseURL == "" {
			problems = append(problems, "output.publish_postgres requires store.database_url")
		}
	case "load", "migrate", "runs":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.MinConns > c.Store.MaxConns && c.Store.MaxConns > 0 {
		problems = append(problems, "store.min_conns must not exceed store.max_conns")
	}
	for i, l := range c.Certification.Hierarchy {
		if strings.TrimSpace(l.Type) == "" {
			problems = append(problems, fmt.Sprintf("certification.hierarchy[%d].type is required", i))
		}
		if l.Rank < 1 {
			problems = append(problems, fmt.Sprintf("certification.hierarchy[%d].rank must be >= 1", i))
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
