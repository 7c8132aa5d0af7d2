package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBaseURL = "http://localhost:3000/api"
	stagingBaseURL = "https://staging.hrms.example.com/api"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "fnb-hrms-client", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Env)

	assert.Equal(t, defaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Zero(t, cfg.API.RateLimit)
	assert.False(t, cfg.API.Tracing)

	assert.Equal(t, "/auth/login", cfg.Auth.Endpoints.Login)
	assert.Equal(t, "/auth/refresh-token", cfg.Auth.Endpoints.Refresh)
	assert.Equal(t, "/auth/logout", cfg.Auth.Endpoints.Logout)
	assert.Equal(t, "/auth/me", cfg.Auth.Endpoints.CurrentUser)
	assert.Equal(t, "X-Org-Key", cfg.Auth.OrgHeader)
	assert.Equal(t, 15*time.Second, cfg.Auth.RefreshTimeout)

	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Delay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, "linear", cfg.Retry.Strategy)
	assert.Equal(t, []int{500, 502, 503, 504}, cfg.Retry.Statuses)

	assert.Equal(t, TokenBackendMemory, cfg.Tokens.Backend)
	assert.Equal(t, "accessToken", cfg.Tokens.Cookie.Access)
	assert.Equal(t, "refreshToken", cfg.Tokens.Cookie.Refresh)
	assert.Equal(t, "orgToken", cfg.Tokens.Cookie.Org)
	assert.False(t, cfg.Tokens.Redis.Enabled)
	assert.Equal(t, 168*time.Hour, cfg.Tokens.TTL)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Payloads)
	assert.Equal(t, 1024, cfg.Log.MaxPayloadBytes)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", `
app:
  name: hrms-sync
api:
  baseurl: https://hrms.example.com/api
  timeout: 5s
  headers:
    ngrok-skip-browser-warning: "true"
retry:
  maxretries: 1
  strategy: exponential
tokens:
  backend: redis
  redis:
    addr: localhost:6379
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "hrms-sync", cfg.App.Name)
	assert.Equal(t, "https://hrms.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, map[string]string{"ngrok-skip-browser-warning": "true"}, cfg.API.Headers)
	assert.Equal(t, 1, cfg.Retry.MaxRetries)
	assert.Equal(t, "exponential", cfg.Retry.Strategy)
	assert.True(t, cfg.Tokens.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Tokens.Redis.Addr)
	// Untouched keys keep their defaults
	assert.Equal(t, "/auth/refresh-token", cfg.Auth.Endpoints.Refresh)
}

func TestLoadEnvironmentSpecificFile(t *testing.T) {
	t.Run("selected by app.env", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "config.yaml", "app:\n  env: staging\n")
		writeConfigFile(t, dir, "config.staging.yaml", "api:\n  baseurl: "+stagingBaseURL+"\n")

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, EnvStaging, cfg.App.Env)
		assert.Equal(t, stagingBaseURL, cfg.API.BaseURL)
	})

	t.Run("selected by environment variable", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "config.staging.yaml", "api:\n  baseurl: "+stagingBaseURL+"\n")
		t.Setenv("HRMS_APP_ENV", EnvStaging)

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, EnvStaging, cfg.App.Env)
		assert.Equal(t, stagingBaseURL, cfg.API.BaseURL)
	})

	t.Run("missing file is skipped", func(t *testing.T) {
		t.Setenv("HRMS_APP_ENV", EnvProduction)

		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, EnvProduction, cfg.App.Env)
		assert.Equal(t, defaultBaseURL, cfg.API.BaseURL)
	})
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", "retry:\n  maxretries: 1\n")

	t.Setenv("HRMS_RETRY_MAXRETRIES", "5")
	t.Setenv("HRMS_RETRY_DELAY", "250ms")
	t.Setenv("HRMS_RETRY_STATUSES", "500,503")
	t.Setenv("HRMS_API_BASEURL", "https://env.example.com/api")
	t.Setenv("HRMS_AUTH_ORGSECRET", "s3cret")
	t.Setenv("HRMS_LOG_PAYLOADS", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Delay)
	assert.Equal(t, []int{500, 503}, cfg.Retry.Statuses)
	assert.Equal(t, "https://env.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "s3cret", cfg.Auth.OrgSecret)
	assert.True(t, cfg.Log.Payloads)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", "api: [unterminated\n")

	_, err := Load(dir)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, CategoryLoad, cfgErr.Category)
	assert.Contains(t, cfgErr.Field, "config.yaml")
	assert.NotNil(t, errors.Unwrap(cfgErr))
}

func TestLoadFile(t *testing.T) {
	t.Run("named file with environment sibling", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "hrms.yaml", "app:\n  env: staging\nretry:\n  maxretries: 1\n")
		writeConfigFile(t, dir, "hrms.staging.yaml", "api:\n  baseurl: "+stagingBaseURL+"\n")

		cfg, err := LoadFile(filepath.Join(dir, "hrms.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Retry.MaxRetries)
		assert.Equal(t, stagingBaseURL, cfg.API.BaseURL)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "absent.yaml")
		_, err := LoadFile(path)

		var cfgErr *ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, path, cfgErr.Field)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})
}

func TestLoadFromBytes(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
api:
  baseurl: https://hrms.example.com/api
auth:
  orgheader: X-Tenant
log:
  level: debug
observability:
  enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, "https://hrms.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "X-Tenant", cfg.Auth.OrgHeader)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Exists("observability.enabled"), "unmodelled sections stay readable")
}

func TestLoadFromBytesIgnoresEnvironment(t *testing.T) {
	t.Setenv("HRMS_API_BASEURL", "https://env.example.com/api")

	cfg, err := LoadFromBytes(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, cfg.API.BaseURL)
}

func TestLoadFromBytesMalformed(t *testing.T) {
	_, err := LoadFromBytes([]byte("retry: {maxretries: [1"))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "yaml", cfgErr.Field)
	assert.Equal(t, CategoryLoad, cfgErr.Category)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		category string
		field    string
		contains string
	}{
		{
			name:     "empty base url",
			yaml:     "api:\n  baseurl: \"\"\n",
			category: "missing",
			field:    "api.baseurl",
			contains: "HRMS_API_BASEURL",
		},
		{
			name:     "base url not a url",
			yaml:     "api:\n  baseurl: not a url\n",
			category: "invalid",
			field:    "api.baseurl",
			contains: "invalid URL",
		},
		{
			name:     "unknown environment",
			yaml:     "app:\n  env: qa\n",
			category: "invalid",
			field:    "app.env",
			contains: "development, staging, production",
		},
		{
			name:     "unknown backoff strategy",
			yaml:     "retry:\n  strategy: random\n",
			category: "invalid",
			field:    "retry.strategy",
			contains: "linear, exponential, constant",
		},
		{
			name:     "too many retries",
			yaml:     "retry:\n  maxretries: 11\n",
			category: "invalid",
			field:    "retry.maxretries",
			contains: "at most 10",
		},
		{
			name:     "retry status outside 5xx",
			yaml:     "retry:\n  statuses: [404]\n",
			category: "invalid",
			field:    "retry.statuses[0]",
			contains: "at least 500",
		},
		{
			name:     "max delay below delay",
			yaml:     "retry:\n  delay: 2s\n  maxdelay: 1s\n",
			category: "invalid",
			field:    "retry.maxdelay",
			contains: "retry.delay",
		},
		{
			name:     "relative endpoint without slash",
			yaml:     "auth:\n  endpoints:\n    refresh: auth/refresh-token\n",
			category: "invalid",
			field:    "auth.endpoints.refresh",
			contains: `"/"`,
		},
		{
			name:     "zero timeout",
			yaml:     "api:\n  timeout: 0s\n",
			category: "invalid",
			field:    "api.timeout",
			contains: "above 0",
		},
		{
			name:     "redis backend without address",
			yaml:     "tokens:\n  backend: redis\n",
			category: "missing",
			field:    "tokens.redis.addr",
			contains: "HRMS_TOKENS_REDIS_ADDR",
		},
		{
			name:     "unknown token backend",
			yaml:     "tokens:\n  backend: disk\n",
			category: "invalid",
			field:    "tokens.backend",
			contains: "memory, cookie, redis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected *ConfigError, got %T", err)
			assert.Equal(t, tt.category, cfgErr.Category)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Contains(t, cfgErr.Error(), tt.contains)
		})
	}
}

func TestValidateDerivesRedisEnabled(t *testing.T) {
	cfg, err := LoadFromBytes(nil)
	require.NoError(t, err)

	cfg.Tokens.Backend = TokenBackendRedis
	cfg.Tokens.Redis.Addr = "localhost:6379"
	require.NoError(t, Validate(cfg))
	assert.True(t, cfg.Tokens.Redis.Enabled)

	cfg.Tokens.Backend = TokenBackendCookie
	require.NoError(t, Validate(cfg))
	assert.False(t, cfg.Tokens.Redis.Enabled)
}
