// Package config loads tabgruppen's settings from defaults, an optional
// YAML file and TABGRUPPEN_* environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lotas/tabgruppen/internal/state"
	"github.com/lotas/tabgruppen/internal/storage"
	"github.com/lotas/tabgruppen/internal/visibility"
)

// EnvPrefix prefixes every environment override, e.g. TABGRUPPEN_PORT.
const EnvPrefix = "TABGRUPPEN"

// DefaultPort is the websocket port the extension connects to.
const DefaultPort = 19191

// Config holds every setting.
type Config struct {
	Port             int           `mapstructure:"port" yaml:"port"`
	DBPath           string        `mapstructure:"db_path" yaml:"db_path"`
	LogDir           string        `mapstructure:"log_dir" yaml:"log_dir"`
	IndexTabMode     string        `mapstructure:"index_tab_mode" yaml:"index_tab_mode"`
	NativeGroups     bool          `mapstructure:"native_groups" yaml:"native_groups"`
	RefreshInterval  time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	ExtensionBaseURL string        `mapstructure:"extension_base_url" yaml:"extension_base_url"`
	Profile          string        `mapstructure:"profile" yaml:"profile"`
}

// Visibility returns the reconciler settings.
func (c Config) Visibility() (visibility.Config, error) {
	mode, err := visibility.ParseIndexTabMode(c.IndexTabMode)
	if err != nil {
		return visibility.Config{}, err
	}
	return visibility.Config{
		Mode:             mode,
		NativeGroups:     c.NativeGroups,
		ExtensionBaseURL: c.ExtensionBaseURL,
	}, nil
}

// DefaultConfigPath returns ~/.config/tabgruppen/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tabgruppen", "config.yaml"), nil
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() (Config, error) {
	dbPath, err := storage.DefaultDBPath()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Port:            DefaultPort,
		DBPath:          dbPath,
		LogDir:          filepath.Dir(dbPath),
		IndexTabMode:    string(visibility.IndexTabCollapsed),
		RefreshInterval: state.DefaultRefreshInterval,
	}, nil
}

// Load reads configuration from path. If path is empty, DefaultConfigPath
// is used; a missing file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("port", cfg.Port)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("log_dir", cfg.LogDir)
	v.SetDefault("index_tab_mode", cfg.IndexTabMode)
	v.SetDefault("native_groups", cfg.NativeGroups)
	v.SetDefault("refresh_interval", cfg.RefreshInterval)
	v.SetDefault("extension_base_url", cfg.ExtensionBaseURL)
	v.SetDefault("profile", cfg.Profile)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.LogDir = expandHome(cfg.LogDir)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot work.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := visibility.ParseIndexTabMode(c.IndexTabMode); err != nil {
		return fmt.Errorf("index_tab_mode: %w", err)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %s", c.RefreshInterval)
	}
	if c.ExtensionBaseURL != "" {
		u, err := url.Parse(c.ExtensionBaseURL)
		if err != nil || u.Scheme != "moz-extension" || u.Host == "" {
			return fmt.Errorf("extension_base_url must look like moz-extension://<uuid>, got %q", c.ExtensionBaseURL)
		}
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
