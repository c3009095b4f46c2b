package grpcapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"reflect"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/endpoints/memory"
	"github.com/nimburion/endpointstore/pkg/store"
)

func startServer(t *testing.T, api endpoints.API) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterServer(srv, api)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn, nil)
}

func execute(t *testing.T, req endpoints.Request) endpoints.Response {
	t.Helper()
	ch := make(chan endpoints.Response, 1)
	req.Execute(func(r endpoints.Response) { ch <- r })
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not invoked")
		return endpoints.Response{}
	}
}

func TestClient_RoundTrip(t *testing.T) {
	client := startServer(t, memory.New(memory.WithCount(true)))
	ctx := context.Background()

	created := execute(t, client.Insert(ctx, map[string]any{"id": "a", "n": 1}))
	if created.Error != nil || created.Body["n"] != float64(1) {
		t.Fatalf("insert = %#v", created)
	}

	execute(t, client.Update(ctx, map[string]any{"id": "b", "n": 2}))
	got := execute(t, client.Get(ctx, endpoints.Params{"id": "b"}))
	if got.Error != nil || got.Body["n"] != float64(2) {
		t.Fatalf("get = %#v", got)
	}

	list := execute(t, client.List(ctx, endpoints.ListParams{Limit: 1, Order: "-n"}))
	if list.Error != nil {
		t.Fatalf("list: %v", list.Error)
	}
	items := list.Body["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["id"] != "b" {
		t.Fatalf("items = %v", items)
	}
	if list.Body["count"] != float64(2) || list.Body["nextPageToken"] != "1" {
		t.Fatalf("list metadata = %v", list.Body)
	}

	if resp := execute(t, client.Remove(ctx, endpoints.Params{"id": "a"})); resp.Error != nil {
		t.Fatalf("remove: %v", resp.Error)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	client := startServer(t, memory.New())
	ctx := context.Background()

	resp := execute(t, client.Get(ctx, endpoints.Params{"id": "missing"}))
	if resp.Error == nil {
		t.Fatal("expected not found")
	}
	if resp.Error.Code != http.StatusNotFound || resp.Error.Status != "NOT_FOUND" {
		t.Fatalf("error = %+v", resp.Error)
	}
	if resp.Error.Message != "record missing not found" {
		t.Fatalf("message = %q", resp.Error.Message)
	}

	execute(t, client.Insert(ctx, map[string]any{"id": "dup"}))
	resp = execute(t, client.Insert(ctx, map[string]any{"id": "dup"}))
	if resp.Error == nil || resp.Error.Code != http.StatusConflict || resp.Error.Status != "ALREADY_EXISTS" {
		t.Fatalf("duplicate insert = %#v", resp.Error)
	}
}

func TestClient_UnencodableRecord(t *testing.T) {
	client := NewClient(nil, nil)
	resp := execute(t, client.Insert(context.Background(), map[string]any{"ch": make(chan int)}))
	if resp.Error == nil || resp.Error.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %#v", resp)
	}
}

type label string

func TestClient_NestedNamedTypes(t *testing.T) {
	client := startServer(t, memory.New())
	ctx := context.Background()

	record := map[string]any{
		"id":     "a",
		"owner":  store.Record{"name": "ann", "tags": []string{"x", "y"}},
		"items":  []store.Record{{"n": int8(1)}},
		"labels": map[string]label{"k": "v"},
		"size":   int16(3),
	}
	resp := execute(t, client.Insert(ctx, record))
	if resp.Error != nil {
		t.Fatalf("insert: %v", resp.Error)
	}

	got := execute(t, client.Get(ctx, endpoints.Params{"id": "a"}))
	if got.Error != nil {
		t.Fatalf("get: %v", got.Error)
	}
	owner, _ := got.Body["owner"].(map[string]any)
	if owner["name"] != "ann" {
		t.Fatalf("owner = %v", got.Body["owner"])
	}
	if tags, _ := owner["tags"].([]any); len(tags) != 2 || tags[1] != "y" {
		t.Fatalf("tags = %v", owner["tags"])
	}
	items, _ := got.Body["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["n"] != float64(1) {
		t.Fatalf("items = %v", got.Body["items"])
	}
	if got.Body["labels"].(map[string]any)["k"] != "v" || got.Body["size"] != float64(3) {
		t.Fatalf("body = %v", got.Body)
	}
}

func TestNormalize(t *testing.T) {
	var nilRecord *store.Record
	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "named map", in: store.Record{"a": 1}, want: map[string]any{"a": 1}},
		{name: "typed slice", in: []int{1, 2}, want: []any{1, 2}},
		{name: "bytes kept", in: []byte("hi"), want: []byte("hi")},
		{name: "named string", in: label("x"), want: "x"},
		{name: "nil pointer", in: nilRecord, want: nil},
		{name: "pointer", in: &store.Record{"b": true}, want: map[string]any{"b": true}},
		{name: "array", in: [2]string{"p", "q"}, want: []any{"p", "q"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("normalize(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatusMapping(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404, 409, 429, 499, 501, 503, 504, 500} {
		if got := HTTPForCode(CodeForHTTP(code)); got != code {
			t.Errorf("round trip of %d = %d", code, got)
		}
	}
	if CodeForHTTP(418) != codes.Unknown {
		t.Error("unmapped HTTP code should be Unknown")
	}

	remote := &endpoints.Error{Code: 404, Message: "gone"}
	if FromStatus(remote) != remote {
		t.Error("FromStatus should pass endpoints errors through")
	}
	e := FromStatus(status.Error(codes.Unavailable, "down"))
	if e.Code != http.StatusServiceUnavailable || e.Status != "UNAVAILABLE" || e.Message != "down" {
		t.Fatalf("FromStatus = %+v", e)
	}
	e = FromStatus(errors.New("plain"))
	if e.Code != http.StatusInternalServerError || e.Status != "UNKNOWN" {
		t.Fatalf("FromStatus(plain) = %+v", e)
	}
}

func TestDial_RequiresTarget(t *testing.T) {
	if _, err := Dial("", true); err == nil {
		t.Fatal("expected error for empty target")
	}
}
