// Package config manages the spool configuration file. The config lives as
// config.toml inside the .spool/ directory resolved by pkg/dotdir, and every
// field is addressable through a dotted key (e.g. "providers.default") for
// the CLI get/set commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/inkwellco/spool/pkg/dotdir"
)

const configFile = "config.toml"

// ErrUnknownKey is returned when a dotted key does not name a config field.
var ErrUnknownKey = errors.New("unknown config key")

// ErrUnknownPreset is returned by Preset for an unrecognized preset name.
var ErrUnknownPreset = errors.New("unknown config preset")

// Configer loads and saves the config file in the .spool/ directory.
type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewConfiger resolves the .spool/ directory (honoring the override, if any)
// and returns a Configer bound to it.
func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{ddm: dotdir.NewManager()}

	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, fmt.Errorf("resolving config directory: %w", err)
	}
	cfger.targetPath = target

	return cfger, nil
}

// GetTarget returns the resolved .spool/ directory path.
func (c *Configer) GetTarget() string {
	return c.targetPath
}

// Path returns the absolute path of the config file, whether or not it exists.
func (c *Configer) Path() string {
	return filepath.Join(c.targetPath, configFile)
}

// LoadConfig reads the config file, applying defaults for any unset fields.
// A missing file yields the default config rather than an error.
func (c *Configer) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(c.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return ParseConfigTOML(data)
}

// SaveConfig writes the config to config.toml in the target directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	f, err := os.OpenFile(c.Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// GetConfigValue returns the current value of a dotted config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return info.get(cfg), nil
}

// SetConfigValue updates a dotted config key and persists the change.
func (c *Configer) SetConfigValue(key, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := info.set(cfg, value); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return c.SaveConfig(cfg)
}

// ValidConfigKeys returns all supported dotted config keys, sorted.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseConfigTOML decodes TOML config data and applies defaults.
func ParseConfigTOML(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Preset returns a ready-made config for a named provider setup. Used by
// `spool init <preset>` so new installs start with a working stack.
func Preset(name string) (*Config, error) {
	switch name {
	case "openai":
		cfg := NewDefaultConfig()
		cfg.Providers.Default = "openai"
		cfg.Embedding.Provider = "openai"
		cfg.Embedding.Target = DefaultOpenAIBaseURL
		cfg.Embedding.Model = "text-embedding-3-small"
		cfg.Embedding.Dimensions = 1536
		return cfg, nil

	case "ollama":
		cfg := NewDefaultConfig()
		cfg.Providers.Default = "ollama"
		cfg.Embedding.Provider = "ollama"
		cfg.Embedding.Target = DefaultOllamaBaseURL
		return cfg, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
}

// IsValidConfigKey reports whether a dotted key names a config field.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}
