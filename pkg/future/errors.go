package future

import "errors"

// ErrNilRejection replaces a nil error passed to Reject so that a rejected
// future never reports success.
var ErrNilRejection = errors.New("future: rejected with nil error")
