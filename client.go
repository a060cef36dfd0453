// Package catenis is a client library for the Catenis blockchain
// messaging/asset platform. It provides typed access to the Catenis REST
// API, signing every request with the CTN1-HMAC-SHA256 scheme, and a
// WebSocket notification channel for server-pushed events (see the notify
// subpackage).
//
// A client is built from a virtual device's credentials:
//
//	client, err := catenis.New("drc3XdxNtzoucpw9xiRp", apiAccessSecret,
//		catenis.WithEnvironment(catenis.Sandbox))
//	if err != nil {
//		// ...
//	}
//	result, err := client.LogMessage(ctx, "My first message", nil)
//
// The client is immutable after construction and safe for concurrent use.
package catenis

import (
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/catenis-labs/catenis-api-go/config"
	"github.com/catenis-labs/catenis-api-go/internal/endpoint"
	"github.com/catenis-labs/catenis-api-go/internal/signer"
	"github.com/catenis-labs/catenis-api-go/notify"
)

// Client accesses the Catenis API on behalf of one virtual device.
type Client struct {
	creds             signer.Credentials
	ep                *endpoint.Endpoint
	httpc             Doer
	log               *zap.Logger
	useCompression    bool
	compressThreshold int
	now               func() time.Time
}

// New creates a Client for the given device credentials. Credential and
// option validation happens here; a *ConfigError is never returned from a
// later call.
func New(deviceID, apiAccessSecret string, opts ...Option) (*Client, error) {
	if deviceID == "" {
		return nil, &ConfigError{Msg: "device ID is required"}
	}
	if apiAccessSecret == "" {
		return nil, &ConfigError{Msg: "API access secret is required"}
	}
	if !utf8.ValidString(deviceID) || !utf8.ValidString(apiAccessSecret) {
		return nil, &ConfigError{Msg: "credentials must be valid UTF-8"}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ep, err := endpoint.Resolve(endpoint.Config{
		Environment: endpoint.Environment(o.environment),
		Host:        o.host,
		Port:        o.port,
		Secure:      o.secure,
		APIVersion:  o.apiVersion,
	})
	if err != nil {
		return nil, &ConfigError{Msg: err.Error()}
	}

	httpc := o.httpClient
	if httpc == nil {
		httpc = &http.Client{
			Timeout: o.requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: o.connectTimeout,
				}).DialContext,
				TLSHandshakeTimeout: o.connectTimeout,
			},
		}
	}

	return &Client{
		creds: signer.Credentials{
			DeviceID:        deviceID,
			APIAccessSecret: apiAccessSecret,
		},
		ep:                ep,
		httpc:             httpc,
		log:               o.logger,
		useCompression:    o.useCompression,
		compressThreshold: o.compressThreshold,
		now:               o.now,
	}, nil
}

// NewFromSettings creates a Client from settings loaded by the config
// package.
func NewFromSettings(s *config.Settings, opts ...Option) (*Client, error) {
	base := []Option{
		WithCompression(s.UseCompression),
	}
	if s.RequestTimeout > 0 {
		base = append(base, WithTimeout(s.RequestTimeout))
	}
	if s.ConnectTimeout > 0 {
		base = append(base, WithConnectTimeout(s.ConnectTimeout))
	}
	if s.Environment == config.EnvironmentSandbox {
		base = append(base, WithEnvironment(Sandbox))
	}
	if s.Host != "" {
		base = append(base, WithHost(s.Host))
	}
	if s.Port != 0 {
		base = append(base, WithPort(s.Port))
	}
	if !s.Secure {
		base = append(base, WithSecure(false))
	}
	if s.APIVersion != "" {
		base = append(base, WithAPIVersion(s.APIVersion))
	}
	if s.CompressThreshold != 0 {
		base = append(base, WithCompressThreshold(s.CompressThreshold))
	}
	return New(s.DeviceID, s.APIAccessSecret, append(base, opts...)...)
}

// DeviceID returns the device identifier the client authenticates as.
func (c *Client) DeviceID() string { return c.creds.DeviceID }

// NotifyChannel creates a notification channel for the given notification
// event. The channel is created in the Closed state; call its Open method
// to connect.
func (c *Client) NotifyChannel(event notify.EventKind, opts ...notify.Option) *notify.Channel {
	u := c.ep.NotifyURL(c.creds.DeviceID, string(event))
	base := []notify.Option{notify.WithLogger(c.log)}
	return notify.NewChannel(c.creds.DeviceID, c.creds.APIAccessSecret, u,
		append(base, opts...)...)
}
