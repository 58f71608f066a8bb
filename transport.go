package tokenkeep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Request describes one HTTP exchange issued by the session controller.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    map[string]any
	Format  ResponseFormat
}

// Response is the parsed outcome of a [Request]. Body is populated for
// FormatJSON, Text for FormatText.
type Response struct {
	Status int
	Body   map[string]any
	Text   string
}

// Transport is the HTTP adapter consumed by the controller. A non-nil error
// means the endpoint was unreachable (connectivity failure); protocol-level
// failures are reported through Response.Status.
type Transport interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// HTTPClient is the default [Transport] on net/http.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient describes the newhttpclient operation and its observable behavior.
//
// NewHTTPClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewHTTPClient(client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPClient{client: client}
}

// Send describes the send operation and its observable behavior.
//
// Send may return an error when input validation, dependency calls, or security checks fail.
// Send does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *HTTPClient) Send(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 && methodCarriesBody(req.Method) {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	resp := &Response{Status: httpResp.StatusCode}
	switch req.Format {
	case FormatText:
		resp.Text = string(data)
	default:
		if len(data) > 0 {
			// Non-JSON bodies on error statuses are tolerated; the
			// controller discriminates on the status code.
			_ = json.Unmarshal(data, &resp.Body)
		}
	}

	return resp, nil
}

func methodCarriesBody(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return false
	default:
		return true
	}
}
