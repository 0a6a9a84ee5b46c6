// Package config loads weft's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "weft.yaml"

// Transient backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

type Config struct {
	LogLevel   string           `yaml:"log_level" mapstructure:"log_level"`
	Poll       PollConfig       `yaml:"poll" mapstructure:"poll"`
	Query      QueryConfig      `yaml:"query" mapstructure:"query"`
	Transient  TransientConfig  `yaml:"transient" mapstructure:"transient"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Encryption EncryptionConfig `yaml:"encryption" mapstructure:"encryption"`
}

type PollConfig struct {
	Interval        time.Duration `yaml:"interval" mapstructure:"interval"`
	ContinueOnError bool          `yaml:"continue_on_error" mapstructure:"continue_on_error"`
}

type QueryConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type TransientConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Key     string `yaml:"key" mapstructure:"key"`
	// Redact lists regular expressions; matching JSON keys are masked before persisting.
	Redact []string `yaml:"redact" mapstructure:"redact"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	Prefix   string        `yaml:"prefix" mapstructure:"prefix"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// EncryptionConfig holds hex encoded AES-256 keys. An empty Key disables encryption.
type EncryptionConfig struct {
	Key          string   `yaml:"key" mapstructure:"key"`
	FallbackKeys []string `yaml:"fallback_keys" mapstructure:"fallback_keys"`
}

// Default returns the configuration used for absent fields.
func Default() Config {
	return Config{
		LogLevel: "info",
		Poll: PollConfig{
			Interval: 5 * time.Second,
		},
		Query: QueryConfig{
			Debounce: 500 * time.Millisecond,
		},
		Transient: TransientConfig{
			Backend: BackendMemory,
			Dir:     ".weft/snapshots",
			Key:     "transient-data",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "weft:snapshot:",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Apply overrides fields from dotted keys such as "redis.addr" or
// "poll.interval". String values are converted to the field type.
func (c *Config) Apply(overrides map[string]string) error {
	if len(overrides) == 0 {
		return nil
	}

	tree := map[string]any{}
	for key, value := range overrides {
		parts := strings.Split(key, ".")
		node := tree
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(tree); err != nil {
		return fmt.Errorf("invalid override: %w", err)
	}
	return c.Validate()
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Transient.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown transient backend %q", c.Transient.Backend)
	}
	if c.Poll.Interval < 0 {
		return errors.New("poll.interval cannot be negative")
	}
	if c.Query.Debounce < 0 {
		return errors.New("query.debounce cannot be negative")
	}
	return nil
}
