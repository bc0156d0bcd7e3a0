package executors

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rendis/stepflow/pkg/schema"
)

// maxResponseBytes caps how much of a response body is captured in results.
const maxResponseBytes = 1 << 20

// HTTPExecutor performs an HTTP request. Parameters:
//   - url (string, required)
//   - method (string, optional, default GET)
//   - headers (object of string, optional)
//   - body (string, optional)
type HTTPExecutor struct {
	client *http.Client
}

// NewHTTPExecutor creates the http.request built-in. A nil client gets a
// default with a 30s timeout.
func NewHTTPExecutor(client *http.Client) *HTTPExecutor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPExecutor{client: client}
}

func (e *HTTPExecutor) Name() string        { return "http.request" }
func (e *HTTPExecutor) Description() string { return "Performs an HTTP request" }

func (e *HTTPExecutor) Execute(ctx context.Context, input Input) (*Output, error) {
	url, err := stringParam(input.Params, "url")
	if err != nil {
		return nil, err
	}
	method, err := optStringParam(input.Params, "method", http.MethodGet)
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(method)
	body, err := optStringParam(input.Params, "body", "")
	if err != nil {
		return nil, err
	}
	headers, err := mapParam(input.Params, "headers")
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "build request: %s", err.Error()).WithCause(err)
	}
	for k, v := range headers {
		s, ok := v.(string)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "header %q must be a string, got %T", k, v)
		}
		req.Header.Set(k, s)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "http request failed: %s", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "read response: %s", err.Error()).WithCause(err)
	}

	return &Output{Data: map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(respBody),
	}}, nil
}
