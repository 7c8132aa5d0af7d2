package observability

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// EndpointStdout selects the pretty-printing stdout exporters
	EndpointStdout = "stdout"

	// ProtocolHTTP selects OTLP over HTTP
	ProtocolHTTP = "http"

	// ProtocolGRPC selects OTLP over gRPC
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the deployment environment used when none is configured
	EnvironmentDevelopment = "development"
)

// Config holds the telemetry settings of a process using the API client.
// It is usually read from the "observability" section of the client configuration.
type Config struct {
	// Enabled turns telemetry on. When false NewProvider returns a no-op provider.
	Enabled bool `koanf:"enabled"`

	// Service identifies this process in exported telemetry
	Service ServiceConfig `koanf:"service"`

	// Environment is the deployment environment (development, staging, production)
	Environment string `koanf:"environment"`

	Trace   TraceConfig   `koanf:"trace"`
	Metrics MetricsConfig `koanf:"metrics"`

	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer io.Writer `koanf:"-"`
}

// ServiceConfig names the service
type ServiceConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// TraceConfig holds tracing settings
type TraceConfig struct {
	Enabled bool `koanf:"enabled"`

	// Endpoint is "stdout", a host:port for gRPC or a URL for HTTP
	Endpoint string `koanf:"endpoint"`

	// Protocol is "http" or "grpc". Ignored for the stdout endpoint.
	Protocol string `koanf:"protocol"`

	// Insecure disables TLS towards the collector
	Insecure bool `koanf:"insecure"`

	// Headers are sent with every export, e.g. collector authentication
	Headers map[string]string `koanf:"headers"`

	// SampleRate is the fraction of traces recorded, between 0 and 1
	SampleRate float64 `koanf:"samplerate"`

	// BatchTimeout bounds how long spans wait before export
	BatchTimeout time.Duration `koanf:"batchtimeout"`
}

// MetricsConfig holds metrics settings. Protocol, Insecure and Headers follow TraceConfig.
type MetricsConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Endpoint string        `koanf:"endpoint"`
	Interval time.Duration `koanf:"interval"`
}

// ApplyDefaults sets default values for any config fields that are not specified.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	// A zero rate drops every span, so only an explicit value below 1 is kept
	if c.Trace.SampleRate == 0 {
		c.Trace.SampleRate = 1.0
	}
	if c.Trace.BatchTimeout == 0 {
		c.Trace.BatchTimeout = 5 * time.Second
	}

	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = c.Trace.Endpoint
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 10 * time.Second
	}
}

// Validate checks an enabled configuration
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if c.Trace.SampleRate < 0 || c.Trace.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	if c.Trace.Protocol != ProtocolHTTP && c.Trace.Protocol != ProtocolGRPC {
		return fmt.Errorf("protocol '%s': %w", c.Trace.Protocol, ErrInvalidProtocol)
	}
	for _, endpoint := range []string{c.Trace.Endpoint, c.Metrics.Endpoint} {
		if err := c.validateEndpoint(endpoint); err != nil {
			return err
		}
	}
	return nil
}

// validateEndpoint rejects a scheme on gRPC endpoints
func (c *Config) validateEndpoint(endpoint string) error {
	if endpoint == EndpointStdout || c.Trace.Protocol != ProtocolGRPC {
		return nil
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return fmt.Errorf("grpc endpoint %q must be host:port: %w", endpoint, ErrInvalidEndpointFormat)
	}
	return nil
}
