package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before they are mapped
// onto settings paths: WATCHVERSE_CATALOG_API_KEY -> catalog.api_key.
const EnvPrefix = "WATCHVERSE_"

// defaultConfigPaths are searched in order when no explicit path is given.
var defaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/watchverse/config.yaml",
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr string `koanf:"listen_addr"`
	BaseURL    string `koanf:"base_url"`
}

// CatalogConfig holds settings for the external media catalog API.
type CatalogConfig struct {
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
	CacheSize int           `koanf:"cache_size"`
}

// DatabaseConfig holds settings for the relational store.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// AuthConfig holds session and credential settings.
type AuthConfig struct {
	Secret         string        `koanf:"secret"`
	TokenDuration  time.Duration `koanf:"token_duration"`
	CookieDuration time.Duration `koanf:"cookie_duration"`
}

// StorageConfig holds avatar storage settings.
type StorageConfig struct {
	AvatarDir string `koanf:"avatar_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

// Settings is the full application configuration.
type Settings struct {
	Server   ServerConfig   `koanf:"server"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Storage  StorageConfig  `koanf:"storage"`
	Log      LogConfig      `koanf:"log"`
}

func defaultSettings() *Settings {
	return &Settings{
		Server: ServerConfig{
			ListenAddr: ":8080",
			BaseURL:    "http://localhost:8080",
		},
		Catalog: CatalogConfig{
			BaseURL:   "https://api.themoviedb.org/3",
			APIKey:    "",
			CacheTTL:  time.Hour,
			CacheSize: 1024,
		},
		Database: DatabaseConfig{
			Path: "data/watchverse.db",
		},
		Auth: AuthConfig{
			Secret:         "",
			TokenDuration:  time.Hour,
			CookieDuration: 30 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			AvatarDir: "data/avatars",
		},
		Log: LogConfig{
			File:       "",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// Load builds Settings from layered sources: struct defaults, then an
// optional YAML file, then WATCHVERSE_* environment variables.
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultSettings(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return envToPath(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	settings := &Settings{}
	if err := k.Unmarshal("", settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate rejects settings the server cannot start with.
func (s *Settings) Validate() error {
	if s.Catalog.APIKey == "" {
		return fmt.Errorf("catalog.api_key is required (WATCHVERSE_CATALOG_API_KEY)")
	}
	if s.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required (WATCHVERSE_AUTH_SECRET)")
	}
	if s.Catalog.CacheSize <= 0 {
		return fmt.Errorf("catalog.cache_size must be positive")
	}
	return nil
}

// envToPath maps WATCHVERSE_CATALOG_API_KEY to catalog.api_key. Only the
// first underscore separates the section from the key; the remainder is
// kept as a single snake_case key.
func envToPath(name string) string {
	trimmed := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	parts := strings.SplitN(trimmed, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

func findConfigFile() string {
	if envPath := os.Getenv("WATCHVERSE_CONFIG"); envPath != "" {
		return envPath
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
