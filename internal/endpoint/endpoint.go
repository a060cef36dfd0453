// Package endpoint resolves the Catenis server origin for REST calls and
// for the WebSocket notification service.
package endpoint

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Environment selects which Catenis server a client targets.
type Environment int

const (
	// Production targets the main Catenis server.
	Production Environment = iota
	// Sandbox targets the sandbox server used for testing.
	Sandbox
)

func (e Environment) String() string {
	switch e {
	case Sandbox:
		return "sandbox"
	default:
		return "production"
	}
}

const (
	productionHost = "catenis.io"
	sandboxHost    = "sandbox.catenis.io"

	// DefaultAPIVersion is the Catenis API version targeted by default.
	DefaultAPIVersion = "0.12"
)

// Config carries the caller-supplied overrides applied while resolving the
// endpoint. Zero values mean "use the default".
type Config struct {
	Environment Environment
	Host        string // optional "host" or "host:port" override
	Port        int    // optional port override; wins over a port in Host
	Secure      *bool  // nil means secure (TLS) on
	APIVersion  string
}

// Endpoint is the resolved base origin. It is immutable and safe to share.
type Endpoint struct {
	host       string // host[:port]
	secure     bool
	apiVersion string
}

// Resolve produces the endpoint for the given configuration. It is a pure
// function: no I/O, and the only failure mode is a contradictory or
// malformed override.
func Resolve(cfg Config) (*Endpoint, error) {
	host := productionHost
	if cfg.Environment == Sandbox {
		host = sandboxHost
	}
	port := 0

	if cfg.Host != "" {
		h, p, err := splitHostPort(cfg.Host)
		if err != nil {
			return nil, err
		}
		host, port = h, p
	}
	if cfg.Port != 0 {
		if cfg.Port < 1 || cfg.Port > 65535 {
			return nil, fmt.Errorf("invalid port number: %d", cfg.Port)
		}
		port = cfg.Port
	}

	secure := true
	if cfg.Secure != nil {
		secure = *cfg.Secure
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	hostPort := host
	if strings.Contains(host, ":") {
		// IPv6 literals need brackets in URLs and Host headers.
		hostPort = "[" + host + "]"
	}
	if port != 0 {
		hostPort = hostPort + ":" + strconv.Itoa(port)
	}
	return &Endpoint{
		host:       hostPort,
		secure:     secure,
		apiVersion: version,
	}, nil
}

// Host returns the resolved "host" or "host:port" value, which is also what
// goes into the signed Host header.
func (e *Endpoint) Host() string { return e.host }

// APIVersion returns the Catenis API version segment of every request path.
func (e *Endpoint) APIVersion() string { return e.apiVersion }

// RESTURL builds the full URL for an API endpoint path (relative, already
// parameter-substituted) and an optional query. The query is encoded with
// url.Values.Encode, which sorts keys, so the same set of parameters always
// produces the same URL regardless of insertion order.
func (e *Endpoint) RESTURL(endpointPath string, query url.Values) *url.URL {
	// The endpoint path arrives with its parameters already percent-escaped,
	// so it is carried as the raw (escaped) form.
	escaped := e.apiPath(endpointPath)
	u := &url.URL{
		Scheme:  e.scheme("https", "http"),
		Host:    e.host,
		RawPath: escaped,
	}
	if p, err := url.PathUnescape(escaped); err == nil {
		u.Path = p
	} else {
		u.Path = escaped
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u
}

// NotifyURL builds the WebSocket URL used to open the notification channel
// for the given device and notification event.
func (e *Endpoint) NotifyURL(deviceID, eventName string) *url.URL {
	return &url.URL{
		Scheme: e.scheme("wss", "ws"),
		Host:   e.host,
		Path:   e.apiPath("notify/ws/" + deviceID + "/" + eventName),
	}
}

func (e *Endpoint) apiPath(endpointPath string) string {
	return "/api/" + e.apiVersion + "/" + strings.TrimPrefix(endpointPath, "/")
}

func (e *Endpoint) scheme(secure, insecure string) string {
	if e.secure {
		return secure
	}
	return insecure
}

// splitHostPort accepts "host", "host:port", a bare IPv6 literal, or a
// bracketed IPv6 literal with an optional port.
func splitHostPort(hostPort string) (string, int, error) {
	invalid := func() (string, int, error) {
		return "", 0, fmt.Errorf("invalid host: %q", hostPort)
	}

	host := hostPort
	portStr := ""
	switch {
	case strings.HasPrefix(hostPort, "["):
		end := strings.IndexByte(hostPort, ']')
		if end < 0 {
			return invalid()
		}
		host = hostPort[1:end]
		if rest := hostPort[end+1:]; rest != "" {
			if !strings.HasPrefix(rest, ":") || len(rest) == 1 {
				return invalid()
			}
			portStr = rest[1:]
		}
	case strings.Count(hostPort, ":") == 1:
		i := strings.IndexByte(hostPort, ':')
		host, portStr = hostPort[:i], hostPort[i+1:]
		if portStr == "" {
			return invalid()
		}
	}
	// Anything else with multiple colons is a bare IPv6 literal: all host.

	port := 0
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil || p < 1 || p > 65535 {
			return invalid()
		}
		port = p
	}
	if host == "" || strings.ContainsAny(host, "/ ") {
		return invalid()
	}
	return host, port, nil
}
