package endpointstore

import (
	"context"
	"sync"

	"github.com/nimburion/endpointstore/pkg/endpoints"
)

type recordedCall struct {
	method string
	params endpoints.Params
	record map[string]any
	list   endpoints.ListParams
	ctxErr error
}

// scriptedAPI records every call and answers with respond. Callbacks fire
// synchronously unless async is set.
type scriptedAPI struct {
	mu      sync.Mutex
	calls   []recordedCall
	respond func(method string) endpoints.Response
	async   bool
	repeat  int
}

var _ endpoints.API = (*scriptedAPI)(nil)

func respondWith(resp endpoints.Response) *scriptedAPI {
	return &scriptedAPI{respond: func(string) endpoints.Response { return resp }}
}

func (a *scriptedAPI) record(ctx context.Context, c recordedCall) endpoints.Request {
	c.ctxErr = ctx.Err()
	a.mu.Lock()
	a.calls = append(a.calls, c)
	a.mu.Unlock()
	return endpoints.RequestFunc(func(callback func(endpoints.Response)) {
		deliver := func() {
			resp := endpoints.Response{}
			if a.respond != nil {
				resp = a.respond(c.method)
			}
			for i := 0; i <= a.repeat; i++ {
				callback(resp)
			}
		}
		if a.async {
			go deliver()
			return
		}
		deliver()
	})
}

func (a *scriptedAPI) Get(ctx context.Context, params endpoints.Params) endpoints.Request {
	return a.record(ctx, recordedCall{method: "get", params: params})
}

func (a *scriptedAPI) Update(ctx context.Context, record map[string]any) endpoints.Request {
	return a.record(ctx, recordedCall{method: "update", record: record})
}

func (a *scriptedAPI) Insert(ctx context.Context, record map[string]any) endpoints.Request {
	return a.record(ctx, recordedCall{method: "insert", record: record})
}

func (a *scriptedAPI) Remove(ctx context.Context, params endpoints.Params) endpoints.Request {
	return a.record(ctx, recordedCall{method: "remove", params: params})
}

func (a *scriptedAPI) List(ctx context.Context, params endpoints.ListParams) endpoints.Request {
	return a.record(ctx, recordedCall{method: "list", list: params})
}

func (a *scriptedAPI) lastCall() recordedCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.calls) == 0 {
		return recordedCall{}
	}
	return a.calls[len(a.calls)-1]
}

func (a *scriptedAPI) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}
