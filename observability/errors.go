package observability

import "errors"

// Validation failures returned by Config.Validate and NewProvider
var (
	ErrNilConfig          = errors.New("observability: nil config")
	ErrMissingServiceName = errors.New("observability: service.name is required when enabled")
	ErrInvalidSampleRate  = errors.New("observability: trace.samplerate must be within [0, 1]")
	ErrInvalidProtocol    = errors.New("observability: trace.protocol must be http or grpc")
	// ErrInvalidEndpointFormat rejects a URL scheme on a gRPC host:port endpoint
	ErrInvalidEndpointFormat = errors.New("observability: endpoint does not match protocol")
)
