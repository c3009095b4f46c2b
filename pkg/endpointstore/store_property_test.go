package endpointstore

import (
	"context"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/endpoints/memory"
	"github.com/nimburion/endpointstore/pkg/store"
)

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	return parameters
}

func awaitWithin[T any](f interface {
	Await(context.Context) (T, error)
}) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.Await(ctx)
}

// For any record carrying an identity, put followed by get returns the record.
func TestProperty_PutThenGet(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("get after put returns the stored record", prop.ForAll(
		func(id, name string, age int, idProperty string) bool {
			s := MustNew(Config{API: memory.New(memory.WithIDProperty(idProperty)), IDProperty: idProperty}, nil)
			rec := store.Record{idProperty: id, "name": name, "age": age}
			if idProperty == "name" || idProperty == "age" {
				rec = store.Record{idProperty: id}
			}

			if _, err := awaitWithin[store.Record](s.Put(context.Background(), rec, nil)); err != nil {
				return false
			}
			got, err := awaitWithin[store.Record](s.Get(context.Background(), id))
			return err == nil && reflect.DeepEqual(got, rec)
		},
		gen.Identifier(),
		gen.AlphaString(),
		gen.IntRange(0, 150),
		gen.OneConstOf("id", "key", "uuid"),
	))

	properties.TestingRun(t)
}

// For any record without identity, put takes the same remote path as add.
func TestProperty_PutWithoutIdentityAdds(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("put without identity issues insert", prop.ForAll(
		func(name string, explicitNil bool) bool {
			putAPI := respondWith(endpoints.Succeeded(map[string]any{}))
			addAPI := respondWith(endpoints.Succeeded(map[string]any{}))
			rec := store.Record{"name": name}
			directives := &store.PutDirectives{}
			if explicitNil {
				rec["id"] = name
				directives = store.ExplicitID(nil)
			}

			_, putErr := awaitWithin[store.Record](MustNew(Config{API: putAPI}, nil).Put(context.Background(), rec, directives))
			_, addErr := awaitWithin[store.Record](MustNew(Config{API: addAPI}, nil).Add(context.Background(), rec, directives))
			if putErr != nil || addErr != nil {
				return false
			}
			put, add := putAPI.lastCall(), addAPI.lastCall()
			return put.method == "insert" && add.method == "insert" && reflect.DeepEqual(put.record, add.record)
		},
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// GetIdentity reads exactly the configured identity field.
func TestProperty_GetIdentity(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("identity is record[idProperty]", prop.ForAll(
		func(idProperty, other string, value int) bool {
			s := MustNew(Config{API: respondWith(endpoints.Response{}), IDProperty: idProperty}, nil)
			rec := store.Record{idProperty: value}
			if other != idProperty {
				rec[other] = "other"
			}
			return s.GetIdentity(rec) == value && s.GetIdentity(store.Record{other + "_": value}) == nil
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Int(),
	))

	properties.TestingRun(t)
}

// Sort keys become a comma-joined order with "-" marking descending keys.
func TestProperty_SortOrder(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("order joins attributes with descending prefix", prop.ForAll(
		func(attributes []string, descending []bool) bool {
			sort := make([]store.SortInformation, len(attributes))
			want := make([]string, len(attributes))
			for i, attr := range attributes {
				desc := i < len(descending) && descending[i]
				sort[i] = store.SortInformation{Attribute: attr, Descending: desc}
				want[i] = attr
				if desc {
					want[i] = "-" + attr
				}
			}
			return ListParams(&store.QueryOptions{Sort: sort}).Order == strings.Join(want, ",")
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

// Start and count are sent as offset and limit only when non-zero.
func TestProperty_PagingTranslation(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("offset and limit mirror non-zero start and count", prop.ForAll(
		func(start, count int) bool {
			values := ListParams(&store.QueryOptions{Start: start, Count: count}).Values()
			offset, hasOffset := values["offset"]
			limit, hasLimit := values["limit"]
			if hasOffset != (start != 0) || hasLimit != (count != 0) {
				return false
			}
			if hasOffset && offset != strconv.Itoa(start) {
				return false
			}
			return !hasLimit || limit == strconv.Itoa(count)
		},
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

// Totals follow the count, or the page-size heuristic without one.
func TestProperty_QueryTotal(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("total is count or the page heuristic", prop.ForAll(
		func(n, start, count int, hasCount, hasToken bool) bool {
			items := make([]any, n)
			for i := range items {
				items[i] = map[string]any{"id": i}
			}
			body := map[string]any{"items": items}
			want := n + start
			if hasToken {
				body["nextPageToken"] = "next"
				want += n
			}
			if hasCount {
				body["count"] = count
				want = count
			}

			results := MustNew(Config{API: respondWith(endpoints.Succeeded(body))}, nil).
				Query(context.Background(), nil, &store.QueryOptions{Start: start})
			got, err := awaitWithin[int](results.Total())
			return err == nil && got == want
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 100),
		gen.IntRange(0, 1000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// A remote error rejects with that same error and never resolves.
func TestProperty_RemoteErrorPropagation(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("remote errors reject verbatim", prop.ForAll(
		func(message string, code int) bool {
			remote := &endpoints.Error{Code: code, Message: message}
			s := MustNew(Config{API: respondWith(endpoints.Failed(remote))}, nil)

			f := s.Get(context.Background(), "x")
			value, err := awaitWithin[store.Record](f)
			_, settled, settledErr := f.Result()
			return value == nil && err == remote && settled && settledErr == remote
		},
		gen.AlphaString(),
		gen.IntRange(400, 599),
	))

	properties.TestingRun(t)
}
