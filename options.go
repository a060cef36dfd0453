package catenis

import (
	"time"

	"go.uber.org/zap"
)

// Environment selects which Catenis server the client targets.
type Environment int

const (
	// Production is the main Catenis server.
	Production Environment = iota
	// Sandbox is the Catenis server used for testing.
	Sandbox
)

const (
	defaultCompressThreshold = 1024
	defaultRequestTimeout    = 30 * time.Second
	defaultConnectTimeout    = 10 * time.Second
)

type options struct {
	environment       Environment
	host              string
	port              int
	secure            *bool
	apiVersion        string
	useCompression    bool
	compressThreshold int
	requestTimeout    time.Duration
	connectTimeout    time.Duration
	httpClient        Doer
	logger            *zap.Logger
	now               func() time.Time
}

func defaultOptions() options {
	return options{
		useCompression:    true,
		compressThreshold: defaultCompressThreshold,
		requestTimeout:    defaultRequestTimeout,
		connectTimeout:    defaultConnectTimeout,
		logger:            zap.NewNop(),
		now:               time.Now,
	}
}

// Option configures a Client.
type Option func(*options)

// WithEnvironment selects the target Catenis server environment. Default is
// Production.
func WithEnvironment(env Environment) Option {
	return func(o *options) { o.environment = env }
}

// WithHost overrides the target host. A "host:port" value is accepted.
func WithHost(host string) Option {
	return func(o *options) { o.host = host }
}

// WithPort overrides the target port. It wins over a port given in WithHost.
func WithPort(port int) Option {
	return func(o *options) { o.port = port }
}

// WithSecure toggles TLS. Default is on.
func WithSecure(secure bool) Option {
	return func(o *options) { o.secure = &secure }
}

// WithAPIVersion overrides the targeted Catenis API version. Default is
// "0.12".
func WithAPIVersion(version string) Option {
	return func(o *options) { o.apiVersion = version }
}

// WithCompression toggles deflate compression of request bodies. Default is
// on.
func WithCompression(use bool) Option {
	return func(o *options) { o.useCompression = use }
}

// WithCompressThreshold sets the minimum body size, in bytes, for a request
// body to be compressed. Default is 1024.
func WithCompressThreshold(threshold int) Option {
	return func(o *options) { o.compressThreshold = threshold }
}

// WithTimeout sets the overall per-request timeout. Default is 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithConnectTimeout sets the connect (dial and TLS handshake) timeout.
// Default is 10s.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithHTTPClient replaces the transport used for REST calls. The supplied
// client owns its own timeout configuration.
func WithHTTPClient(doer Doer) Option {
	return func(o *options) { o.httpClient = doer }
}

// WithLogger sets the logger used by the client and, by default, by any
// notification channel it creates. Default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.logger = log }
}

// withClock replaces the timestamp source. Tests only.
func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
