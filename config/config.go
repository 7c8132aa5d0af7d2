package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "HRMS_"

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Load loads configuration from multiple sources with priority:
// 1. Environment variables prefixed with HRMS_ (highest priority)
// 2. config.<env>.yaml, then config.yaml, looked up in dir
// 3. Default values (lowest priority)
//
// An empty dir means the working directory. Missing YAML files are skipped.
func Load(dir string) (*Config, error) {
	return load(filepath.Join(dir, "config.yaml"))
}

// LoadFile is Load with an explicit base file, which must exist. The environment file
// is its sibling: settings.yaml pairs with settings.<env>.yaml.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewLoadError(path, err)
	}
	return load(path)
}

func load(base string) (*Config, error) {
	k := koanf.New(".")

	// Load default configuration first
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadFile(k, base); err != nil {
		return nil, err
	}

	// Environment-specific file; the env may itself come from HRMS_APP_ENV
	appEnv := k.String("app.env")
	if fromEnv := os.Getenv(EnvPrefix + "APP_ENV"); fromEnv != "" {
		appEnv = fromEnv
	}
	if appEnv != "" {
		if err := loadFile(k, envFile(base, appEnv)); err != nil {
			return nil, err
		}
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}

	return finish(k)
}

// envFile maps dir/config.yaml to dir/config.<env>.yaml
func envFile(base, appEnv string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + appEnv + ext
}

// LoadFromBytes loads defaults overlaid with a YAML document. Environment
// variables are not consulted.
func LoadFromBytes(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, NewLoadError("yaml", err)
		}
	}
	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Store the Koanf instance for flexible access
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return NewLoadError(path, err)
	}
	return nil
}

func loadEnv(k *koanf.Koanf) error {
	provider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// Convert HRMS_RETRY_MAXRETRIES to retry.maxretries
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(key, "_", "."), value
		},
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name": "fnb-hrms-client",
		"app.env":  EnvDevelopment,

		"api.baseurl":   "http://localhost:3000/api",
		"api.timeout":   "30s",
		"api.ratelimit": 0,
		"api.rateburst": 0,
		"api.tracing":   false,

		"auth.endpoints.login":       "/auth/login",
		"auth.endpoints.refresh":     "/auth/refresh-token",
		"auth.endpoints.logout":      "/auth/logout",
		"auth.endpoints.currentuser": "/auth/me",
		"auth.orgheader":             "X-Org-Key",
		"auth.refreshtimeout":        "15s",

		"retry.maxretries": 3,
		"retry.delay":      "500ms",
		"retry.maxdelay":   "10s",
		"retry.strategy":   "linear",
		"retry.statuses":   []int{500, 502, 503, 504},

		"tokens.backend":        TokenBackendMemory,
		"tokens.cookie.access":  "accessToken",
		"tokens.cookie.refresh": "refreshToken",
		"tokens.cookie.org":     "orgToken",
		"tokens.redis.db":       0,
		"tokens.redis.key":      "hrms:session",
		"tokens.ttl":            "168h",

		"log.level":           "info",
		"log.pretty":          false,
		"log.payloads":        false,
		"log.maxpayloadbytes": 1024,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
