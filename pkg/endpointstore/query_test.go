package endpointstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/endpoints/memory"
	"github.com/nimburion/endpointstore/pkg/store"
)

func TestListParams(t *testing.T) {
	tests := []struct {
		name    string
		options *store.QueryOptions
		want    endpoints.ListParams
	}{
		{name: "nil options", want: endpoints.ListParams{}},
		{name: "start and count", options: &store.QueryOptions{Start: 5, Count: 10}, want: endpoints.ListParams{Offset: 5, Limit: 10}},
		{name: "zero start is unset", options: &store.QueryOptions{Start: 0, Count: 3}, want: endpoints.ListParams{Limit: 3}},
		{
			name: "sort",
			options: &store.QueryOptions{Sort: []store.SortInformation{
				{Attribute: "name"},
				{Attribute: "age", Descending: true},
			}},
			want: endpoints.ListParams{Order: "name,-age"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ListParams(tt.options); got != tt.want {
				t.Fatalf("ListParams = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestQuery_SendsTranslatedOptions(t *testing.T) {
	api := respondWith(endpoints.Succeeded(map[string]any{}))
	s := newStore(t, api)

	results := s.Query(context.Background(), store.Query{"name": "ignored"}, &store.QueryOptions{
		Start: 0,
		Count: 10,
		Sort:  []store.SortInformation{{Attribute: "name"}, {Attribute: "age", Descending: true}},
	})
	if _, err := results.All(context.Background()); err != nil {
		t.Fatalf("Query: %v", err)
	}

	call := api.lastCall()
	if call.method != "list" {
		t.Fatalf("method = %s, want list", call.method)
	}
	values := call.list.Values()
	if _, ok := values["offset"]; ok {
		t.Fatalf("offset sent for start 0: %v", values)
	}
	if values["limit"] != "10" || values["order"] != "name,-age" {
		t.Fatalf("values = %v", values)
	}
}

func TestQuery_Totals(t *testing.T) {
	a := map[string]any{"id": "a"}
	b := map[string]any{"id": "b"}

	tests := []struct {
		name      string
		body      map[string]any
		options   *store.QueryOptions
		wantItems int
		wantTotal int
		wantToken string
	}{
		{
			name:      "next page token doubles the page",
			body:      map[string]any{"items": []any{a, b}, "nextPageToken": "x"},
			wantItems: 2,
			wantTotal: 4,
			wantToken: "x",
		},
		{
			name:      "explicit count wins",
			body:      map[string]any{"items": []any{a, b}, "count": 9, "nextPageToken": "x"},
			wantItems: 2,
			wantTotal: 9,
			wantToken: "x",
		},
		{
			name:      "offset is added",
			body:      map[string]any{"items": []any{a}},
			options:   &store.QueryOptions{Start: 3},
			wantItems: 1,
			wantTotal: 4,
		},
		{
			name:      "offset and token",
			body:      map[string]any{"items": []any{a, b}, "nextPageToken": "7"},
			options:   &store.QueryOptions{Start: 5, Count: 2},
			wantItems: 2,
			wantTotal: 9,
			wantToken: "7",
		},
		{
			name:      "missing items",
			body:      map[string]any{},
			wantItems: 0,
			wantTotal: 0,
		},
		{
			name:      "count as int64 string",
			body:      map[string]any{"items": []any{a}, "count": "12"},
			wantItems: 1,
			wantTotal: 12,
		},
		{
			name:      "null count is present but unknown",
			body:      map[string]any{"items": []any{a, b}, "count": nil, "nextPageToken": "x"},
			wantItems: 2,
			wantTotal: 0,
			wantToken: "x",
		},
		{
			name:      "decoded json count",
			body:      map[string]any{"items": []any{a}, "count": float64(3)},
			wantItems: 1,
			wantTotal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := respondWith(endpoints.Succeeded(tt.body))
			results := newStore(t, api).Query(context.Background(), nil, tt.options)

			items, err := results.All(context.Background())
			if err != nil {
				t.Fatalf("items: %v", err)
			}
			if len(items) != tt.wantItems {
				t.Fatalf("items = %d, want %d", len(items), tt.wantItems)
			}
			total, err := await[int](t, results.Total())
			if err != nil || total != tt.wantTotal {
				t.Fatalf("total = (%d, %v), want %d", total, err, tt.wantTotal)
			}
			token, _ := await[string](t, results.NextPageToken())
			if token != tt.wantToken {
				t.Fatalf("token = %q, want %q", token, tt.wantToken)
			}
		})
	}
}

func TestQuery_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		resp endpoints.Response
	}{
		{name: "not an object", resp: endpoints.Response{Result: []any{}}},
		{name: "items not a list", resp: endpoints.Succeeded(map[string]any{"items": "x"})},
		{name: "item not an object", resp: endpoints.Succeeded(map[string]any{"items": []any{1}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := newStore(t, respondWith(tt.resp)).Query(context.Background(), nil, nil)
			if _, err := results.All(context.Background()); !errors.Is(err, ErrUnexpectedPayload) {
				t.Fatalf("err = %v, want ErrUnexpectedPayload", err)
			}
		})
	}
}

func TestQuery_UnreadableCountRejectsOnlyTotal(t *testing.T) {
	tests := []struct {
		name  string
		count any
	}{
		{name: "boolean", count: true},
		{name: "non numeric string", count: "many"},
		{name: "object", count: map[string]any{"n": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := respondWith(endpoints.Succeeded(map[string]any{
				"items":         []any{map[string]any{"id": "a"}},
				"count":         tt.count,
				"nextPageToken": "n",
			}))
			results := newStore(t, api).Query(context.Background(), nil, nil)

			items, err := results.All(context.Background())
			if err != nil || len(items) != 1 {
				t.Fatalf("items = (%v, %v), want one record", items, err)
			}
			if _, err := await[int](t, results.Total()); !errors.Is(err, ErrUnexpectedPayload) {
				t.Fatalf("total err = %v, want ErrUnexpectedPayload", err)
			}
			if token, err := await[string](t, results.NextPageToken()); err != nil || token != "n" {
				t.Fatalf("token = (%q, %v), want n", token, err)
			}
		})
	}
}

func TestQuery_TotalResolvesAfterItems(t *testing.T) {
	gate := make(chan struct{})
	api := &scriptedAPI{
		async: true,
		respond: func(string) endpoints.Response {
			<-gate
			return endpoints.Succeeded(map[string]any{"items": []any{map[string]any{"id": 1}}, "count": 1})
		},
	}
	results := newStore(t, api).Query(context.Background(), nil, nil)

	select {
	case <-results.Total().Done():
		t.Fatal("total settled before the remote call completed")
	case <-time.After(20 * time.Millisecond):
	}
	close(gate)

	if _, err := await[int](t, results.Total()); err != nil {
		t.Fatalf("total: %v", err)
	}
	if _, ok, _ := results.Items().Result(); !ok {
		t.Fatal("items not settled when total was")
	}
}

func TestQuery_MemoryBackend(t *testing.T) {
	api := memory.New(memory.WithRecords(
		map[string]any{"id": "1", "name": "carol", "age": 30},
		map[string]any{"id": "2", "name": "alice", "age": 40},
		map[string]any{"id": "3", "name": "alice", "age": 25},
		map[string]any{"id": "4", "name": "bob", "age": 35},
	))
	s := newStore(t, api)
	ctx := context.Background()

	results := s.Query(ctx, nil, &store.QueryOptions{
		Count: 3,
		Sort:  []store.SortInformation{{Attribute: "name"}, {Attribute: "age", Descending: true}},
	})
	var ids []any
	if err := results.ForEach(ctx, func(r store.Record, _ int) { ids = append(ids, r["id"]) }); err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(ids) != 3 || ids[0] != "2" || ids[1] != "3" || ids[2] != "4" {
		t.Fatalf("ids = %v", ids)
	}
	total, _ := await[int](t, results.Total())
	if total != 6 {
		t.Fatalf("total = %d, want 6 (page plus a guessed next page)", total)
	}

	last := s.Query(ctx, nil, &store.QueryOptions{Start: 3, Count: 3})
	total, _ = await[int](t, last.Total())
	if total != 4 {
		t.Fatalf("last page total = %d, want 4", total)
	}
}
