// Package config loads process configuration. Sources are applied in order
// of increasing precedence: defaults, the YAML config file, QGRAPH_
// environment variables, then explicitly set command-line flags.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/atlekbai/query_graph/internal/dialect"
)

const EnvPrefix = "QGRAPH_"

type Config struct {
	Dialect string        `koanf:"dialect"`
	Port    string        `koanf:"port"`
	Log     LogConfig     `koanf:"log"`
	Catalog CatalogConfig `koanf:"catalog"`
	Limits  LimitsConfig  `koanf:"limits"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text or json
}

// CatalogConfig points at the database whose information schema describes
// the physical objects. An empty driver disables catalog loading.
type CatalogConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// LimitsConfig overrides the dialect's parameter tier limits when non-zero.
type LimitsConfig struct {
	Narrow int `koanf:"narrow"`
	Wide   int `koanf:"wide"`
	Binary int `koanf:"binary"`
}

func defaults() map[string]any {
	return map[string]any{
		"dialect":    "pseudo",
		"port":       "8080",
		"log.level":  "info",
		"log.format": "text",
	}
}

// RegisterFlags defines the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("dialect", "pseudo", "SQL dialect: pseudo, postgres or sqlite")
	fs.String("port", "8080", "HTTP listen port")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", "text", "log format: text or json")
	fs.String("catalog-driver", "", "catalog database driver: postgres, mysql or sqlite")
	fs.String("catalog-dsn", "", "catalog database connection string")
}

// Load reads the configuration. path may be empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" && flags != nil {
		path, _ = flags.GetString("config")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	// QGRAPH_CATALOG_DSN -> catalog.dsn
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if flags != nil {
		err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "."), posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}

// SQLDialect returns the configured dialect with limit overrides applied.
func (c *Config) SQLDialect() (dialect.Dialect, error) {
	d, err := dialect.Lookup(c.Dialect)
	if err != nil {
		return d, err
	}
	if c.Limits.Narrow > 0 {
		d.NarrowStringLimit = c.Limits.Narrow
	}
	if c.Limits.Wide > 0 {
		d.WideStringLimit = c.Limits.Wide
	}
	if c.Limits.Binary > 0 {
		d.BinaryLimit = c.Limits.Binary
	}
	return d, nil
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Log.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", c.Log.Format)
}
