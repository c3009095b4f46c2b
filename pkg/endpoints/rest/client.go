// Package rest is an endpoints API client speaking JSON over HTTP to a
// Cloud Endpoints style resource:
//
//	GET    {base}/{resource}/{id}
//	POST   {base}/{resource}
//	PUT    {base}/{resource}
//	DELETE {base}/{resource}/{id}
//	GET    {base}/{resource}?offset=&limit=&order=
//
// Failed calls carry the Google API error envelope.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
)

// RequestIDHeader carries the request id found in the call context.
const RequestIDHeader = "X-Request-ID"

// Client implements endpoints.API over HTTP.
type Client struct {
	base       *url.URL
	idProperty string
	token      string
	httpClient *http.Client
	log        logger.Logger
}

var _ endpoints.API = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithIDProperty sets the identity field used to build record paths.
func WithIDProperty(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.idProperty = name
		}
	}
}

// WithBearerToken sends token in the Authorization header.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = logger.OrNop(log) }
}

// NewClient returns a client for the collection at baseURL/resource.
func NewClient(baseURL, resource string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("rest: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("rest: unsupported scheme %q", base.Scheme)
	}
	if resource = strings.Trim(resource, "/"); resource != "" {
		base = base.JoinPath(resource)
	}

	c := &Client{
		base:       base,
		idProperty: "id",
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		log:        logger.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the collection URL.
func (c *Client) URL() string { return c.base.String() }

// Get issues GET {collection}/{id}.
func (c *Client) Get(ctx context.Context, params endpoints.Params) endpoints.Request {
	target, err := c.recordURL(params)
	if err != nil {
		return failed(err)
	}
	return c.call(ctx, http.MethodGet, target, nil)
}

// Update issues PUT {collection} with record as body.
func (c *Client) Update(ctx context.Context, record map[string]any) endpoints.Request {
	return c.call(ctx, http.MethodPut, c.base.String(), record)
}

// Insert issues POST {collection} with record as body.
func (c *Client) Insert(ctx context.Context, record map[string]any) endpoints.Request {
	return c.call(ctx, http.MethodPost, c.base.String(), record)
}

// Remove issues DELETE {collection}/{id}.
func (c *Client) Remove(ctx context.Context, params endpoints.Params) endpoints.Request {
	target, err := c.recordURL(params)
	if err != nil {
		return failed(err)
	}
	return c.call(ctx, http.MethodDelete, target, nil)
}

// List issues GET {collection} with the set list parameters.
func (c *Client) List(ctx context.Context, params endpoints.ListParams) endpoints.Request {
	u := *c.base
	q := u.Query()
	for k, v := range params.Values() {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return c.call(ctx, http.MethodGet, u.String(), nil)
}

func (c *Client) recordURL(params endpoints.Params) (string, *endpoints.Error) {
	id := params[c.idProperty]
	if id == nil {
		return "", endpoints.BadRequest(fmt.Sprintf("missing %s", c.idProperty))
	}
	key := fmt.Sprint(id)
	if key == "" {
		return "", endpoints.BadRequest(fmt.Sprintf("empty %s", c.idProperty))
	}
	u := *c.base
	u.Path = strings.TrimSuffix(c.base.Path, "/") + "/" + key
	u.RawPath = strings.TrimSuffix(c.base.EscapedPath(), "/") + "/" + escapeSegment(key)
	return u.String(), nil
}

// escapeSegment escapes id as a single path segment. Dot segments are
// percent-encoded so they name a record instead of a relative path.
func escapeSegment(id string) string {
	switch id {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	default:
		return url.PathEscape(id)
	}
}

// failed is a request that reports err without contacting the service.
func failed(err *endpoints.Error) endpoints.Request {
	return endpoints.RequestFunc(func(callback func(endpoints.Response)) {
		go callback(endpoints.Failed(err))
	})
}

// call builds a deferred request. The HTTP exchange starts on Execute and is
// not bound to ctx cancellation.
func (c *Client) call(ctx context.Context, method, target string, body map[string]any) endpoints.Request {
	ctx = context.WithoutCancel(ctx)
	return endpoints.RequestFunc(func(callback func(endpoints.Response)) {
		go func() {
			resp := c.do(ctx, method, target, body)
			if resp.Error != nil {
				c.log.WithContext(ctx).Debug("rest call failed", "method", method, "url", target, "error", resp.Error.Error())
			} else {
				c.log.WithContext(ctx).Debug("rest call", "method", method, "url", target)
			}
			callback(resp)
		}()
	})
}

func (c *Client) do(ctx context.Context, method, target string, body map[string]any) endpoints.Response {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return endpoints.Failed(endpoints.BadRequest(fmt.Sprintf("encode record: %v", err)))
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return endpoints.Failed(endpoints.NewError(0, err.Error()))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return endpoints.Failed(endpoints.NewError(0, err.Error()))
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return endpoints.Failed(endpoints.NewError(0, fmt.Sprintf("read response: %v", err)))
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return endpoints.Failed(DecodeError(res.StatusCode, raw))
	}
	return DecodeBody(raw)
}

// DecodeBody turns a successful response body into a Response. An empty body
// yields an empty object.
func DecodeBody(raw []byte) endpoints.Response {
	if len(bytes.TrimSpace(raw)) == 0 {
		return endpoints.Succeeded(map[string]any{})
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return endpoints.Failed(endpoints.NewError(0, fmt.Sprintf("decode response: %v", err)))
	}
	if obj, ok := payload.(map[string]any); ok {
		return endpoints.Succeeded(obj)
	}
	return endpoints.Response{Result: payload}
}

// DecodeError reads a Google API error envelope. Bodies that are not an
// envelope produce an error carrying the status code and the raw text.
func DecodeError(status int, raw []byte) *endpoints.Error {
	var envelope struct {
		Error *endpoints.Error `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		if envelope.Error.Code == 0 {
			envelope.Error.Code = status
		}
		return envelope.Error
	}
	return endpoints.NewError(status, strings.TrimSpace(string(raw)))
}
