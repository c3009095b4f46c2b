// Package endpoints defines the contract of a generated endpoints client: every
// remote method returns a Request that is executed exactly once with a
// completion handler receiving a Response.
package endpoints

import (
	"context"
	"strconv"
)

// Params holds named call parameters, e.g. the identity of the record to fetch.
type Params map[string]any

// API is the remote procedure surface of an endpoints service.
// Implementations must not cancel an issued call when ctx is cancelled; ctx
// only carries request-scoped values such as trace spans.
type API interface {
	Get(ctx context.Context, params Params) Request
	Update(ctx context.Context, record map[string]any) Request
	Insert(ctx context.Context, record map[string]any) Request
	Remove(ctx context.Context, params Params) Request
	List(ctx context.Context, params ListParams) Request
}

// Request is a remote call that has not run yet.
type Request interface {
	// Execute issues the call. callback is invoked exactly once.
	Execute(callback func(Response))
}

// RequestFunc adapts a plain function to the Request interface.
type RequestFunc func(callback func(Response))

// Execute calls f(callback).
func (f RequestFunc) Execute(callback func(Response)) {
	f(callback)
}

// Response is what a Request delivers to its completion handler.
type Response struct {
	// Error is set when the call failed.
	Error *Error `json:"error,omitempty"`
	// Result is the payload when the service wraps it in a result envelope.
	Result any `json:"result,omitempty"`
	// Body is the top-level payload when there is no result envelope.
	Body map[string]any `json:"-"`
}

// Payload returns Result when present, else Body.
func (r Response) Payload() any {
	if r.Result != nil {
		return r.Result
	}
	return r.Body
}

// Failed builds an error Response.
func Failed(err *Error) Response {
	return Response{Error: err}
}

// Succeeded builds a Response carrying body as its top-level payload.
func Succeeded(body map[string]any) Response {
	return Response{Body: body}
}

// ListParams are the remote list arguments. A zero field is not sent.
type ListParams struct {
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Order  string `json:"order,omitempty"`
}

// Values returns the set parameters keyed by their remote names.
func (p ListParams) Values() map[string]string {
	out := map[string]string{}
	if p.Offset != 0 {
		out["offset"] = strconv.Itoa(p.Offset)
	}
	if p.Limit != 0 {
		out["limit"] = strconv.Itoa(p.Limit)
	}
	if p.Order != "" {
		out["order"] = p.Order
	}
	return out
}

// Remote field names of a list payload.
const (
	FieldItems         = "items"
	FieldCount         = "count"
	FieldNextPageToken = "nextPageToken"
)
