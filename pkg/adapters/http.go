package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds HTTP messenger requests.
const DefaultTimeout = 10 * time.Second

// maxResponse caps how much of an API response is read.
const maxResponse = 64 << 10

// NewHTTPClient returns a client with timeout, DefaultTimeout when zero.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// JSONRequest is one JSON API call made by an HTTP messenger.
type JSONRequest struct {
	Method  string
	URL     string
	Bearer  string
	Headers map[string]string
	Body    any
	// BasicAuth is used when Bearer is empty.
	BasicAuth [2]string
}

// StatusError is a non 2xx API response.
type StatusError struct {
	Provider string
	Code     int
	Body     []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.Code)
}

// DoJSON sends req and decodes a 2xx response body into out when out is not
// nil. Other statuses return a *StatusError.
func DoJSON(ctx context.Context, client *http.Client, provider string, req JSONRequest, out any) error {
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return fmt.Errorf("%s: encode payload: %w", provider, err)
	}
	method := strings.ToUpper(FirstNonEmpty(req.Method, http.MethodPost))
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	switch {
	case req.Bearer != "":
		httpReq.Header.Set("Authorization", "Bearer "+req.Bearer)
	case req.BasicAuth[0] != "":
		httpReq.SetBasicAuth(req.BasicAuth[0], req.BasicAuth[1])
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", provider, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Provider: provider, Code: resp.StatusCode, Body: data}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}
