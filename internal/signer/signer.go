// Package signer implements the CTN1-HMAC-SHA256 request signing scheme
// used to authenticate calls to the Catenis API.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	// Scheme is the name of the signing scheme carried in the
	// Authorization header.
	Scheme = "CTN1-HMAC-SHA256"

	// TimestampFormat is the layout of the X-BCoT-Timestamp header value
	// (UTC, second precision).
	TimestampFormat = "20060102T150405Z"

	// EmptyBodyHash is the SHA-256 digest of zero bytes, used whenever a
	// request carries no payload.
	EmptyBodyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	signVersionID = "CTN1"
	scopeRequest  = "ctn1_request"
	dateFormat    = "20060102"
)

// Credentials identify a Catenis virtual device and carry its API access
// secret. The zero value is not usable; construct through the client.
type Credentials struct {
	DeviceID        string
	APIAccessSecret string
}

// Sign computes the two authentication headers for a request. The signature
// is a pure function of its inputs: signing the same request twice with the
// same timestamp yields identical headers.
//
// pathWithQuery must be the exact request target that goes on the wire
// (URL-encoded path plus "?"-joined canonical query, if any), and host must
// match the Host header the transport will send.
func Sign(creds Credentials, method, host, pathWithQuery string, body []byte, now time.Time) (authorization, timestamp string) {
	now = now.UTC()
	timestamp = now.Format(TimestampFormat)
	date := now.Format(dateFormat)

	conformed := conformedRequest(method, host, pathWithQuery, body, timestamp)

	scope := date + "/" + scopeRequest
	stringToSign := Scheme + "\n" +
		timestamp + "\n" +
		scope + "\n" +
		hexSHA256([]byte(conformed)) + "\n"

	key := deriveKey(creds.APIAccessSecret, date)
	signature := hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))

	authorization = Scheme + " Credential=" + creds.DeviceID + "/" + scope +
		",Signature=" + signature
	return authorization, timestamp
}

// conformedRequest builds the canonical serialization of the request that
// the server recomputes on its side: uppercase method, request target, the
// essential headers (host and x-bcot-timestamp, values trimmed), a blank
// line, and the hex-encoded SHA-256 of the payload.
func conformedRequest(method, host, pathWithQuery string, body []byte, timestamp string) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(pathWithQuery)
	b.WriteByte('\n')
	b.WriteString("host:")
	b.WriteString(strings.TrimSpace(host))
	b.WriteByte('\n')
	b.WriteString("x-bcot-timestamp:")
	b.WriteString(strings.TrimSpace(timestamp))
	b.WriteByte('\n')
	b.WriteByte('\n')
	b.WriteString(hexSHA256(body))
	b.WriteByte('\n')
	return b.String()
}

// deriveKey performs the two-round keyed-hash derivation that scopes the
// API access secret to a single date: the secret never keys the final
// signature directly.
func deriveKey(apiAccessSecret, date string) []byte {
	dateKey := hmacSHA256([]byte(signVersionID+apiAccessSecret), []byte(date))
	return hmacSHA256(dateKey, []byte(scopeRequest))
}

func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
