package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the client configuration: application identity, the HRMS API, authentication
// endpoints, retry policy, token storage and logging. Sections outside the struct are
// read with Unmarshal.
type Config struct {
	App    AppConfig    `koanf:"app" json:"app" yaml:"app" mapstructure:"app"`
	API    APIConfig    `koanf:"api" json:"api" yaml:"api" mapstructure:"api"`
	Auth   AuthConfig   `koanf:"auth" json:"auth" yaml:"auth" mapstructure:"auth"`
	Retry  RetryConfig  `koanf:"retry" json:"retry" yaml:"retry" mapstructure:"retry"`
	Tokens TokensConfig `koanf:"tokens" json:"tokens" yaml:"tokens" mapstructure:"tokens"`
	Log    LogConfig    `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`

	// k backs Exists and Unmarshal
	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name string `koanf:"name" json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Env  string `koanf:"env" json:"env" yaml:"env" mapstructure:"env" validate:"oneof=development staging production"`
}

// APIConfig describes the HRMS backend and the HTTP transport towards it.
type APIConfig struct {
	BaseURL string        `koanf:"baseurl" json:"baseurl" yaml:"baseurl" mapstructure:"baseurl" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	// Headers are sent with every request, e.g. tunnel compatibility headers
	Headers   map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`
	RateLimit float64           `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit" mapstructure:"ratelimit" validate:"gte=0"`
	RateBurst int               `koanf:"rateburst" json:"rateburst" yaml:"rateburst" mapstructure:"rateburst" validate:"gte=0"`
	Tracing   bool              `koanf:"tracing" json:"tracing" yaml:"tracing" mapstructure:"tracing"`
}

// AuthConfig holds the auth endpoints and session settings.
type AuthConfig struct {
	Endpoints EndpointsConfig `koanf:"endpoints" json:"endpoints" yaml:"endpoints" mapstructure:"endpoints"`
	OrgHeader string          `koanf:"orgheader" json:"orgheader" yaml:"orgheader" mapstructure:"orgheader" validate:"required"`
	// OrgSecret is the passphrase the organization token is sealed with. Empty disables the org header.
	OrgSecret      string        `koanf:"orgsecret" json:"-" yaml:"orgsecret" mapstructure:"orgsecret"`
	RefreshTimeout time.Duration `koanf:"refreshtimeout" json:"refreshtimeout" yaml:"refreshtimeout" mapstructure:"refreshtimeout" validate:"gt=0"`
}

// EndpointsConfig names the auth routes, relative to api.baseurl.
type EndpointsConfig struct {
	Login       string `koanf:"login" json:"login" yaml:"login" mapstructure:"login" validate:"required,startswith=/"`
	Refresh     string `koanf:"refresh" json:"refresh" yaml:"refresh" mapstructure:"refresh" validate:"required,startswith=/"`
	Logout      string `koanf:"logout" json:"logout" yaml:"logout" mapstructure:"logout" validate:"required,startswith=/"`
	CurrentUser string `koanf:"currentuser" json:"currentuser" yaml:"currentuser" mapstructure:"currentuser" validate:"required,startswith=/"`
}

// RetryConfig bounds retries of transient failures.
type RetryConfig struct {
	MaxRetries int           `koanf:"maxretries" json:"maxretries" yaml:"maxretries" mapstructure:"maxretries" validate:"gte=0,lte=10"`
	Delay      time.Duration `koanf:"delay" json:"delay" yaml:"delay" mapstructure:"delay" validate:"gte=0"`
	MaxDelay   time.Duration `koanf:"maxdelay" json:"maxdelay" yaml:"maxdelay" mapstructure:"maxdelay" validate:"gte=0"`
	Strategy   string        `koanf:"strategy" json:"strategy" yaml:"strategy" mapstructure:"strategy" validate:"oneof=linear exponential constant"`
	// Statuses lists the HTTP statuses retried as transient server failures
	Statuses []int `koanf:"statuses" json:"statuses" yaml:"statuses" mapstructure:"statuses" validate:"dive,gte=500,lte=599"`
}

// Token store backends
const (
	TokenBackendMemory = "memory"
	TokenBackendCookie = "cookie"
	TokenBackendRedis  = "redis"
)

// TokensConfig selects where session tokens are kept.
type TokensConfig struct {
	Backend string        `koanf:"backend" json:"backend" yaml:"backend" mapstructure:"backend" validate:"oneof=memory cookie redis"`
	Cookie  CookieConfig  `koanf:"cookie" json:"cookie" yaml:"cookie" mapstructure:"cookie"`
	Redis   RedisConfig   `koanf:"redis" json:"redis" yaml:"redis" mapstructure:"redis"`
	TTL     time.Duration `koanf:"ttl" json:"ttl" yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
}

// CookieConfig holds the cookie names of the cookie jar backend.
type CookieConfig struct {
	Access  string `koanf:"access" json:"access" yaml:"access" mapstructure:"access" validate:"required"`
	Refresh string `koanf:"refresh" json:"refresh" yaml:"refresh" mapstructure:"refresh" validate:"required"`
	Org     string `koanf:"org" json:"org" yaml:"org" mapstructure:"org" validate:"required"`
}

// RedisConfig holds the connection settings of the Redis backend.
type RedisConfig struct {
	Addr     string `koanf:"addr" json:"addr" yaml:"addr" mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `koanf:"password" json:"-" yaml:"password" mapstructure:"password"`
	DB       int    `koanf:"db" json:"db" yaml:"db" mapstructure:"db" validate:"gte=0"`
	Key      string `koanf:"key" json:"key" yaml:"key" mapstructure:"key"`

	// Enabled is derived from tokens.backend during validation
	Enabled bool `koanf:"-" json:"-" yaml:"-" mapstructure:"-"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level" json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Pretty          bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
	Payloads        bool   `koanf:"payloads" json:"payloads" yaml:"payloads" mapstructure:"payloads"`
	MaxPayloadBytes int    `koanf:"maxpayloadbytes" json:"maxpayloadbytes" yaml:"maxpayloadbytes" mapstructure:"maxpayloadbytes" validate:"gte=0"`
}
