package endpointstore

import "errors"

var (
	// ErrAPIRequired is returned by New when Config.API is nil.
	ErrAPIRequired = errors.New("endpointstore: api is required")
	// ErrNilRequest is returned when the API builds no request for an operation.
	ErrNilRequest = errors.New("endpointstore: api returned a nil request")
	// ErrUnexpectedPayload is returned when a successful response does not have
	// the shape the operation expects.
	ErrUnexpectedPayload = errors.New("endpointstore: unexpected response payload")
)
