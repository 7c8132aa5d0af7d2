package apiclient

import (
	nethttp "net/http"

	"go.opentelemetry.io/otel/metric"

	"github.com/akjtjhklf/fnb-hrms-client/httpclient"
	"github.com/akjtjhklf/fnb-hrms-client/logger"
)

// Options contains optional dependencies for creating an API instance.
// Nil fields are built from the configuration.
type Options struct {
	Logger logger.Logger
	// TokenStore replaces the backend selected by tokens.backend
	TokenStore httpclient.TokenStore
	// OrgKeyDecrypter replaces the AES decrypter built from auth.orgsecret
	OrgKeyDecrypter httpclient.OrgKeyDecrypter
	Redirector      httpclient.Redirector
	MeterProvider   metric.MeterProvider
	Transport       nethttp.RoundTripper
	// Interceptors run after the credential augmenter on every attempt
	Interceptors []httpclient.RequestInterceptor
}
