package catenis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/catenis-labs/catenis-api-go/internal/signer"
)

// Doer abstracts the HTTP transport so the dispatch pipeline stays
// independent of how requests are actually carried out.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// apiResponse is the standard Catenis success envelope.
type apiResponse[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
}

// apiErrorResponse is the standard Catenis failure envelope.
type apiErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// invoke dispatches one API call: path parameter substitution, body
// marshalling, compression, signing, transport, decompression and typed
// envelope decoding.
func invoke[T any](ctx context.Context, c *Client, method, pathTemplate string, pathParams map[string]string, query url.Values, reqBody any) (*T, error) {
	var body []byte
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("catenis: marshal request body: %w", err)
		}
		body = b
	}

	raw, err := c.send(ctx, method, mergePathParams(pathTemplate, pathParams), query, body)
	if err != nil {
		return nil, err
	}

	var env apiResponse[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &env.Data, nil
}

// send performs the signed HTTP exchange and returns the raw (decompressed)
// response body on 2xx, or a typed error.
func (c *Client) send(ctx context.Context, method, endpointPath string, query url.Values, body []byte) ([]byte, error) {
	u := c.ep.RESTURL(endpointPath, query)

	payload := body
	contentEncoding := ""
	if len(body) > 0 && c.useCompression && len(body) >= c.compressThreshold {
		compressed, err := deflateBody(body)
		if err != nil {
			return nil, fmt.Errorf("catenis: compress request body: %w", err)
		}
		payload = compressed
		contentEncoding = "deflate"
	}

	var reqBody io.Reader
	if len(payload) > 0 {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("catenis: build request: %w", err)
	}
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if contentEncoding != "" {
		req.Header.Set("Content-Encoding", contentEncoding)
	}
	if c.useCompression {
		req.Header.Set("Accept-Encoding", "gzip, deflate")
	}

	// The signature covers the payload exactly as it goes on the wire,
	// compressed or not.
	auth, ts := signer.Sign(c.creds, method, u.Host, u.RequestURI(), payload, c.now())
	req.Header.Set("Authorization", auth)
	req.Header.Set("X-BCoT-Timestamp", ts)

	op := method + " " + u.RequestURI()
	c.log.Debug("dispatching API request",
		zap.String("method", method),
		zap.String("path", u.RequestURI()),
		zap.Int("body_bytes", len(payload)),
		zap.Bool("compressed", contentEncoding != ""),
	)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp, raw)
	}
	return raw, nil
}

// readBody drains the response body, transparently inflating it when the
// server compressed it.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	case "deflate":
		fr := flate.NewReader(resp.Body)
		defer fr.Close()
		r = fr
	}
	return io.ReadAll(r)
}

// errorFromResponse maps a non-2xx response to an *APIError, preferring the
// server-provided message and falling back to the HTTP status line.
func errorFromResponse(resp *http.Response, raw []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
	}
	var envelope apiErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != "" {
		apiErr.Message = envelope.Message
	}
	return apiErr
}

// mergePathParams substitutes ":name" segments of an endpoint path template
// with their escaped values.
func mergePathParams(template string, params map[string]string) string {
	if len(params) == 0 {
		return template
	}
	path := template
	for name, value := range params {
		path = strings.ReplaceAll(path, ":"+name, url.PathEscape(value))
	}
	return path
}

func deflateBody(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
