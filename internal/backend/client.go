// Package backend is the typed client for the external POS backend service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/pos-billing-gateway/internal/obs"
)

const maxResponseBytes = 8 << 20

// Doer performs outbound HTTP calls. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client talks JSON to the backend.
type Client struct {
	BaseURL  string
	HTTP     Doer
	validate *validator.Validate
}

// NewClient constructs a Client for baseURL.
func NewClient(baseURL string, doer Doer) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:     doer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Response is a backend answer whose body is known to be valid JSON (or empty).
type Response struct {
	Status int
	Body   json.RawMessage
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Message extracts a human readable message from an error body.
func (r Response) Message() string {
	if len(r.Body) == 0 {
		return ""
	}
	var body struct {
		Message string          `json:"message"`
		Msg     string          `json:"msg"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	if len(body.Error) > 0 {
		var s string
		if json.Unmarshal(body.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return body.Msg
}

// Do sends payload to path. A non-2xx status is not an error: only transport
// failures and bodies that are not JSON are. Payload may be nil, a
// json.RawMessage passed through as-is, or any value to marshal.
func (c *Client) Do(ctx context.Context, method, path, token string, payload any) (Response, error) {
	if c == nil || c.HTTP == nil {
		return Response{}, transportError(errors.New("backend client not configured"))
	}
	var body io.Reader
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		if len(p) > 0 {
			body = bytes.NewReader(p)
		}
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return Response{}, fmt.Errorf("encode backend payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+"/"+strings.TrimLeft(path, "/"), body)
	if err != nil {
		return Response{}, transportError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		observe(method, "error", start)
		return Response{}, transportError(err)
	}
	defer resp.Body.Close()
	observe(method, strconv.Itoa(resp.StatusCode), start)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, transportError(err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && !json.Valid(data) {
		return Response{}, &Error{Kind: ErrMalformed, Status: resp.StatusCode, Err: errors.New("body is not JSON")}
	}
	return Response{Status: resp.StatusCode, Body: data}, nil
}

// Ping checks that the backend answers below 500 on path.
func (c *Client) Ping(ctx context.Context, path string) error {
	resp, err := c.Do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	if resp.Status >= http.StatusInternalServerError {
		return &Error{Kind: ErrRejected, Status: resp.Status, Message: resp.Message()}
	}
	return nil
}

// call performs a typed request and decodes the data envelope of a 2xx answer into out.
func (c *Client) call(ctx context.Context, method, path, token string, payload, out any) error {
	resp, err := c.Do(ctx, method, path, token, payload)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return rejection(resp)
	}
	if err := decodeData(resp.Body, out); err != nil {
		return &Error{Kind: ErrMalformed, Status: resp.Status, Err: err}
	}
	return nil
}

// decodeData unmarshals body into out, unwrapping a top-level {"data": ...} envelope.
func decodeData(body json.RawMessage, out any) error {
	if len(body) == 0 {
		return errors.New("empty body")
	}
	if body[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(body, &env); err != nil {
			return err
		}
		if data, ok := env["data"]; ok {
			body = data
		}
	}
	return json.Unmarshal(body, out)
}

func observe(method, status string, start time.Time) {
	if obs.UpstreamRequestTotal != nil {
		obs.UpstreamRequestTotal.WithLabelValues(method, status).Inc()
	}
	if obs.UpstreamLatency != nil {
		obs.UpstreamLatency.WithLabelValues(method).Observe(obs.DurationMillis(time.Since(start)))
	}
}
