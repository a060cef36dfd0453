package catenis

import "fmt"

// ConfigError reports invalid credentials or invalid client options. It is
// only ever returned from client construction, never from an API call.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "catenis: invalid configuration: " + e.Msg
}

// TransportError reports a failure below the HTTP layer: DNS resolution,
// TLS, connection reset, timeout. The dispatcher never retries; retry
// policy, if any, belongs to the caller.
type TransportError struct {
	Op  string // "METHOD /path" of the failed request
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("catenis: transport error on %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError reports a non-2xx response from the Catenis server. Message is
// the server-provided error message when the body held the standard
// {"status":"failure","message":...} shape, or the raw HTTP status line
// otherwise.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catenis: API error: [%d] - %s", e.StatusCode, e.Message)
}

// DecodeError reports a response body that could not be decoded into the
// expected shape. It is distinct from APIError so callers can tell "server
// rejected the request" apart from "server returned something unparseable".
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("catenis: inconsistent API response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
