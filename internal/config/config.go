// Package config loads ontomem settings from a YAML file and ONTOMEM_*
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rcliao/ontomem/internal/embedding"
	"github.com/rcliao/ontomem/internal/kb"
	"github.com/rcliao/ontomem/internal/model"
)

type Config struct {
	DBPath    string          `yaml:"db_path" mapstructure:"db_path"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Types     []TypeConfig    `yaml:"types" mapstructure:"types"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
}

type EmbeddingConfig struct {
	Provider string        `yaml:"provider" mapstructure:"provider"`
	Model    string        `yaml:"model" mapstructure:"model"`
	URL      string        `yaml:"url" mapstructure:"url"`
	APIKey   string        `yaml:"api_key" mapstructure:"api_key"`
	Dims     int           `yaml:"dims" mapstructure:"dims"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// RateLimit caps provider requests per second; 0 means unlimited.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

type SearchConfig struct {
	DefaultK  int `yaml:"default_k" mapstructure:"default_k"`
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TypeConfig registers an extra semantic type. MetadataSchema is a JSON
// Schema document held as a string; viper lowercases mapping keys, which
// would corrupt keywords such as minLength.
type TypeConfig struct {
	Name           string `yaml:"name" mapstructure:"name"`
	MetadataSchema string `yaml:"metadata_schema" mapstructure:"metadata_schema"`
}

type AnalyticsConfig struct {
	HubCount        int                `yaml:"hub_count" mapstructure:"hub_count"`
	RelationWeights map[string]float64 `yaml:"relation_weights" mapstructure:"relation_weights"`
}

func defaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ontomem", "knowledge.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dims", 0)
	v.SetDefault("embedding.timeout", "10s")
	v.SetDefault("embedding.rate_limit", 0)
	v.SetDefault("embedding.burst", 1)
	v.SetDefault("search.default_k", 10)
	v.SetDefault("search.cache_size", 16)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("analytics.hub_count", 5)
}

// Load reads configuration. With an empty path, ontomem.yaml is looked up in
// the working directory, $XDG_CONFIG_HOME/ontomem and ~/.config/ontomem; a
// missing file is not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ontomem")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "ontomem"))
		}
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "ontomem"))
	}

	v.SetEnvPrefix("ONTOMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("db_path", "ONTOMEM_DB_PATH", "ONTOMEM_DB"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.DBPath = expandHome(cfg.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandHome(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, rest)
	}
	return p
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "", "ollama", "openai", "hash":
	default:
		return fmt.Errorf("config: embedding.provider %q is not one of ollama, openai or hash", c.Embedding.Provider)
	}
	if c.Embedding.Dims < 0 {
		return fmt.Errorf("config: embedding.dims must not be negative")
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("config: embedding.rate_limit must not be negative")
	}
	if _, err := c.level(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: log.format %q must be text or json", c.Log.Format)
	}
	for kind := range c.Analytics.RelationWeights {
		if !model.ValidRelations[model.RelationKind(kind)] {
			return fmt.Errorf("config: analytics.relation_weights: unknown relation kind %q", kind)
		}
	}
	for i, t := range c.Types {
		if t.Name == "" {
			return fmt.Errorf("config: types[%d].name is required", i)
		}
	}
	if c.Search.DefaultK < 1 {
		c.Search.DefaultK = 10
	}
	if c.Search.CacheSize < 1 {
		c.Search.CacheSize = 16
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return l, fmt.Errorf("config: log.level: %w", err)
	}
	return l, nil
}

// NewLogger builds the slog logger described by the log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.level()
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EmbeddingProvider converts the embedding section for embedding.NewFromConfig.
func (c *Config) EmbeddingProvider() embedding.Config {
	return embedding.Config{
		Provider: c.Embedding.Provider,
		Model:    c.Embedding.Model,
		URL:      c.Embedding.URL,
		APIKey:   c.Embedding.APIKey,
		Dims:     c.Embedding.Dims,
		Timeout:  c.Embedding.Timeout,

		RateLimit: c.Embedding.RateLimit,
		Burst:     c.Embedding.Burst,
	}
}

// TypeSpecs returns the configured semantic types.
func (c *Config) TypeSpecs() ([]model.TypeSpec, error) {
	specs := make([]model.TypeSpec, 0, len(c.Types))
	for _, t := range c.Types {
		if t.MetadataSchema != "" && !json.Valid([]byte(t.MetadataSchema)) {
			return nil, fmt.Errorf("config: types %s: metadata_schema is not valid JSON", t.Name)
		}
		specs = append(specs, model.TypeSpec{
			Name:           model.SemanticType(t.Name),
			MetadataSchema: t.MetadataSchema,
		})
	}
	return specs, nil
}

// KBOptions assembles knowledge base options around an embedder and logger.
func (c *Config) KBOptions(e embedding.Embedder, logger *slog.Logger) (kb.Options, error) {
	types, err := c.TypeSpecs()
	if err != nil {
		return kb.Options{}, err
	}
	weights := make(map[model.RelationKind]float64, len(c.Analytics.RelationWeights))
	for k, w := range c.Analytics.RelationWeights {
		weights[model.RelationKind(k)] = w
	}
	return kb.Options{
		DBPath:          c.DBPath,
		Types:           types,
		Embedder:        e,
		Logger:          logger,
		CacheSize:       c.Search.CacheSize,
		DefaultK:        c.Search.DefaultK,
		HubCount:        c.Analytics.HubCount,
		RelationWeights: weights,
	}, nil
}
