// Package config loads the command-line configuration from .cobweb.yaml,
// COBWEB_* environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jward/cobweb/internal/copybook"
	"github.com/jward/cobweb/internal/model"
)

// FileName is the configuration file looked up in the working directory.
const FileName = ".cobweb.yaml"

// Config holds the complete command-line configuration.
type Config struct {
	DB                 string      `mapstructure:"db" yaml:"db"`
	CopybookPaths      []string    `mapstructure:"copybook_paths" yaml:"copybook_paths"`
	CopybookExtensions []string    `mapstructure:"copybook_extensions" yaml:"copybook_extensions"`
	Dialects           []string    `mapstructure:"dialects" yaml:"dialects"`
	SQLBackend         string      `mapstructure:"sql_backend" yaml:"sql_backend"`
	ProcessingMode     string      `mapstructure:"processing_mode" yaml:"processing_mode"`
	Cache              CacheConfig `mapstructure:"cache" yaml:"cache"`
	LogLevel           string      `mapstructure:"log_level" yaml:"log_level"`
}

// CacheConfig bounds the copybook cache.
type CacheConfig struct {
	MaxSize int           `mapstructure:"max_size" yaml:"max_size"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// MarshalYAML writes the TTL in duration notation.
func (c CacheConfig) MarshalYAML() (any, error) {
	return struct {
		MaxSize int    `yaml:"max_size"`
		TTL     string `yaml:"ttl"`
	}{c.MaxSize, c.TTL.String()}, nil
}

// DefaultConfig returns a new configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DB:                 ".cobweb.db",
		CopybookPaths:      []string{"copybooks"},
		CopybookExtensions: []string{".cpy", ".CPY", ".cbl", ".cob", ".copy"},
		Dialects:           []string{},
		SQLBackend:         string(model.DB2Server),
		ProcessingMode:     model.ModeEnabled.String(),
		Cache: CacheConfig{
			MaxSize: copybook.DefaultCacheSize,
			TTL:     copybook.DefaultCacheTTL,
		},
		LogLevel: "warn",
	}
}

// Load reads configuration from configPath, or from .cobweb.yaml in the
// working directory when configPath is empty. A missing default file is not
// an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COBWEB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		cfg.resolvePaths(filepath.Dir(used))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("db", d.DB)
	v.SetDefault("copybook_paths", d.CopybookPaths)
	v.SetDefault("copybook_extensions", d.CopybookExtensions)
	v.SetDefault("dialects", d.Dialects)
	v.SetDefault("sql_backend", d.SQLBackend)
	v.SetDefault("processing_mode", d.ProcessingMode)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("log_level", d.LogLevel)
}

// resolvePaths makes relative copybook folders relative to the directory of
// the configuration file.
func (c *Config) resolvePaths(base string) {
	for i, p := range c.CopybookPaths {
		if !filepath.IsAbs(p) {
			c.CopybookPaths[i] = filepath.Join(base, p)
		}
	}
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if _, err := model.ParseProcessingMode(c.ProcessingMode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch model.SQLBackend(strings.ToUpper(c.SQLBackend)) {
	case model.DB2Server, model.DatacomServer:
	default:
		return fmt.Errorf("config: invalid sql_backend %q (must be %s or %s)", c.SQLBackend, model.DB2Server, model.DatacomServer)
	}
	for _, d := range c.Dialects {
		switch strings.ToUpper(d) {
		case model.DialectMAID, model.DialectIDMS:
		default:
			return fmt.Errorf("config: unknown dialect %q", d)
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if c.Cache.MaxSize < 0 || c.Cache.TTL < 0 {
		return errors.New("config: cache bounds must not be negative")
	}
	return nil
}

// CopybookConfig returns the per-analysis resolution settings. mode
// overrides the configured processing mode when not empty.
func (c *Config) CopybookConfig(mode string) (model.CopybookConfig, error) {
	if mode == "" {
		mode = c.ProcessingMode
	}
	m, err := model.ParseProcessingMode(mode)
	if err != nil {
		return model.CopybookConfig{}, fmt.Errorf("config: %w", err)
	}
	dialects := make([]string, 0, len(c.Dialects))
	for _, d := range c.Dialects {
		dialects = append(dialects, strings.ToUpper(d))
	}
	return model.CopybookConfig{
		Mode:       m,
		SQLBackend: model.SQLBackend(strings.ToUpper(c.SQLBackend)),
		Dialects:   dialects,
	}, nil
}

// Level returns the configured log level; Validate has already checked it.
func (c *Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.WarnLevel
	}
	return l
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	out, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
