package resilience

import (
	"context"
	"net/http"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
)

// API is an endpoints.API whose calls pass through a circuit breaker. Calls
// rejected by an open breaker fail with 503 without reaching the service.
type API struct {
	next    endpoints.API
	breaker *CircuitBreaker
}

var _ endpoints.API = (*API)(nil)

// Guard wraps next with breaker. State changes are logged on log.
func Guard(next endpoints.API, breaker *CircuitBreaker, log logger.Logger) *API {
	log = logger.OrNop(log)
	breaker.OnStateChange(func(from, to State) {
		log.Warn("endpoints circuit breaker changed state", "from", from.String(), "to", to.String())
	})
	return &API{next: next, breaker: breaker}
}

// Breaker returns the circuit breaker.
func (a *API) Breaker() *CircuitBreaker { return a.breaker }

// Get guards next.Get.
func (a *API) Get(ctx context.Context, params endpoints.Params) endpoints.Request {
	return a.guard(a.next.Get(ctx, params))
}

// Update guards next.Update.
func (a *API) Update(ctx context.Context, record map[string]any) endpoints.Request {
	return a.guard(a.next.Update(ctx, record))
}

// Insert guards next.Insert.
func (a *API) Insert(ctx context.Context, record map[string]any) endpoints.Request {
	return a.guard(a.next.Insert(ctx, record))
}

// Remove guards next.Remove.
func (a *API) Remove(ctx context.Context, params endpoints.Params) endpoints.Request {
	return a.guard(a.next.Remove(ctx, params))
}

// List guards next.List.
func (a *API) List(ctx context.Context, params endpoints.ListParams) endpoints.Request {
	return a.guard(a.next.List(ctx, params))
}

func (a *API) guard(req endpoints.Request) endpoints.Request {
	return endpoints.RequestFunc(func(callback func(endpoints.Response)) {
		if err := a.breaker.Allow(); err != nil {
			go callback(endpoints.Failed(endpoints.NewError(http.StatusServiceUnavailable, err.Error())))
			return
		}
		req.Execute(func(resp endpoints.Response) {
			a.breaker.Record(!IsServiceFailure(resp.Error))
			callback(resp)
		})
	})
}

// IsServiceFailure reports whether err means the service is unhealthy:
// transport failures and 5xx responses. Client errors such as 404 do not
// count.
func IsServiceFailure(err *endpoints.Error) bool {
	if err == nil {
		return false
	}
	return err.Code == 0 || err.Code >= http.StatusInternalServerError
}
