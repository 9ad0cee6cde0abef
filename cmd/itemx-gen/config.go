package main

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hengadev/itemx/internal/codegen"
	"github.com/hengadev/itemx/internal/logging"
)

// DefaultConfigPath is read when --config is not given
const DefaultConfigPath = "itemx.yaml"

// Config represents the configuration for the code generator
type Config struct {
	Version    string                   `yaml:"version" toml:"version"`
	Generation GenerationConfig         `yaml:"generation" toml:"generation"`
	Packages   map[string]PackageConfig `yaml:"packages" toml:"packages"`
	Logging    LoggingConfig            `yaml:"logging" toml:"logging"`
	Cache      CacheConfig              `yaml:"cache" toml:"cache"`
	Workers    int                      `yaml:"workers" toml:"workers"`
}

// GenerationConfig holds general generation settings
type GenerationConfig struct {
	OutputSuffix  string `yaml:"output_suffix" toml:"output_suffix"`
	RuntimeImport string `yaml:"runtime_import" toml:"runtime_import"`
	RuntimeAlias  string `yaml:"runtime_alias,omitempty" toml:"runtime_alias,omitempty"`
	Register      bool   `yaml:"register" toml:"register"`
}

// PackageConfig holds per-package overrides
type PackageConfig struct {
	OutputDir string `yaml:"output_dir,omitempty" toml:"output_dir,omitempty"`
	Skip      bool   `yaml:"skip,omitempty" toml:"skip,omitempty"`
}

// LoggingConfig configures the command's logger
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// CacheConfig configures incremental generation. A path ending in .db or
// .sqlite stores the cache in SQLite instead of JSON.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	gen := codegen.DefaultGenerationConfig()
	return &Config{
		Version: "1",
		Generation: GenerationConfig{
			OutputSuffix:  gen.OutputSuffix,
			RuntimeImport: gen.RuntimeImport,
			Register:      gen.Register,
		},
		Packages: make(map[string]PackageConfig),
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(logging.FormatConsole),
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    filepath.Join(".itemx", "cache.json"),
		},
	}
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by
// extension. Settings missing from the file keep their default value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isTOML(path) {
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Packages == nil {
		config.Packages = make(map[string]PackageConfig)
	}
	return config, nil
}

// ResolveConfig loads the config at path. When the path was not given
// explicitly, a missing file falls back to the defaults.
func ResolveConfig(path string, explicit bool) (*Config, error) {
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
	}
	return LoadConfig(path)
}

// SaveConfig saves configuration to a YAML or TOML file, chosen by extension
func SaveConfig(config *Config, path string) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(config); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadDotEnv loads a .env file from dir into the process environment.
// Variables already set take precedence; a missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from ITEMX_* variables returned by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var result *multierror.Error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: invalid boolean '%s'", key, v))
				return
			}
			*dst = b
		}
	}

	str("ITEMX_OUTPUT_SUFFIX", &c.Generation.OutputSuffix)
	str("ITEMX_RUNTIME_IMPORT", &c.Generation.RuntimeImport)
	str("ITEMX_RUNTIME_ALIAS", &c.Generation.RuntimeAlias)
	boolean("ITEMX_REGISTER", &c.Generation.Register)
	str("ITEMX_LOG_LEVEL", &c.Logging.Level)
	str("ITEMX_LOG_FORMAT", &c.Logging.Format)
	boolean("ITEMX_CACHE", &c.Cache.Enabled)
	str("ITEMX_CACHE_PATH", &c.Cache.Path)

	if v, ok := lookup("ITEMX_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("ITEMX_WORKERS: invalid number '%s'", v))
		} else {
			c.Workers = n
		}
	}

	return result.ErrorOrNil()
}

// Validate checks if the configuration is valid. All problems are reported
// at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	// Version is optional - default to "1" if not set
	if c.Version == "" {
		c.Version = "1"
	}
	if c.Version != "1" {
		result = multierror.Append(result, fmt.Errorf("unsupported config version '%s'", c.Version))
	}

	if c.Generation.OutputSuffix == "" {
		result = multierror.Append(result, fmt.Errorf("output_suffix cannot be empty"))
	} else if !isValidOutputSuffix(c.Generation.OutputSuffix) {
		result = multierror.Append(result, fmt.Errorf("output_suffix must start with underscore or letter and contain no path separator"))
	}

	if c.Generation.RuntimeImport == "" {
		result = multierror.Append(result, fmt.Errorf("runtime_import cannot be empty"))
	}
	if c.Generation.RuntimeAlias != "" && !token.IsIdentifier(c.Generation.RuntimeAlias) {
		result = multierror.Append(result, fmt.Errorf("runtime_alias must be a valid Go identifier"))
	}

	if c.Workers < 0 {
		result = multierror.Append(result, fmt.Errorf("workers cannot be negative"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		result = multierror.Append(result, err)
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		result = multierror.Append(result, fmt.Errorf("cache path cannot be empty when the cache is enabled"))
	}

	return result.ErrorOrNil()
}

// isValidOutputSuffix checks if output suffix is valid
func isValidOutputSuffix(s string) bool {
	if s == "" || strings.ContainsAny(s, `/\`) {
		return false
	}

	// Must start with underscore or letter
	first := rune(s[0])
	return (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z') || first == '_'
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// ToCodegenConfig converts the file config to the codegen GenerationConfig
func (gc GenerationConfig) ToCodegenConfig() codegen.GenerationConfig {
	return codegen.GenerationConfig{
		OutputSuffix:  gc.OutputSuffix,
		RuntimeImport: gc.RuntimeImport,
		RuntimeAlias:  gc.RuntimeAlias,
		Register:      gc.Register,
	}
}
