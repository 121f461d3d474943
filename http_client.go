package systembridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kataras/golog"
)

// HTTPClient is the JSON-over-HTTP control plane (C3): a thin verb
// wrapper with the auth header, bounded timeout and status-class → error
// mapping of spec §4.3, mirroring the teacher's Client#do idiom
// (client.go in the teacher) but against this protocol's plain `token`
// header instead of X-Kafka-Lenses-Token.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient builds an HTTPClient bound to http://host:port with the
// given bounded request timeout.
func NewHTTPClient(config Configuration) *HTTPClient {
	return &HTTPClient{
		baseURL: fmt.Sprintf("http://%s:%d", config.APIHost, config.APIPort),
		token:   config.Token,
		client:  &http.Client{Timeout: config.HTTPTimeout},
	}
}

// Get issues a GET request. The result is the decoded JSON value if the
// response is JSON, or the raw body text otherwise.
func (h *HTTPClient) Get(ctx context.Context, path string) (any, error) {
	return h.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with a JSON body.
func (h *HTTPClient) Post(ctx context.Context, path string, body any) (any, error) {
	return h.do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body.
func (h *HTTPClient) Put(ctx context.Context, path string, body any) (any, error) {
	return h.do(ctx, http.MethodPut, path, body)
}

// Delete issues a DELETE request, optionally with a JSON body.
func (h *HTTPClient) Delete(ctx context.Context, path string, body any) (any, error) {
	return h.do(ctx, http.MethodDelete, path, body)
}

func (h *HTTPClient) do(ctx context.Context, method, path string, body any) (any, error) {
	url := h.baseURL + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("token", h.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	golog.Debugf("systembridge: http %s %s", method, url)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, mapTransportError(method, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &BadRequestError{Method: method, URL: url, Body: readJSONOrText(resp)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthenticationError{Method: method, URL: url, Status: resp.StatusCode}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return readJSONOrText(resp), nil
	default:
		return nil, &ConnectionError{Method: method, URL: url, Status: fmt.Sprintf("%d", resp.StatusCode)}
	}
}

// readJSONOrText returns the decoded JSON body if the Content-Type says
// JSON, otherwise the raw text, per spec §4.3.
func readJSONOrText(resp *http.Response) any {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	if bytesContainJSON(contentType) {
		var v any
		if err := json.Unmarshal(body, &v); err == nil {
			return v
		}
	}
	return string(body)
}

func bytesContainJSON(contentType string) bool {
	for i := 0; i+len("json") <= len(contentType); i++ {
		if contentType[i:i+len("json")] == "json" {
			return true
		}
	}
	return false
}

// mapTransportError classifies a transport-level failure (DNS, TCP
// reset, timeout) into ConnectionError per spec §4.3.
func mapTransportError(method, url string, err error) error {
	status := "connection error"
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		status = "timeout"
	} else if errors.Is(err, context.DeadlineExceeded) {
		status = "timeout"
	}
	return &ConnectionError{Method: method, URL: url, Status: status, Cause: err}
}
