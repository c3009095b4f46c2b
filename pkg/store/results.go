package store

import (
	"context"

	"github.com/nimburion/endpointstore/pkg/future"
)

// QueryResults is the lazy outcome of a query. Total and NextPageToken never
// resolve before Items.
type QueryResults struct {
	items     *future.Future[[]Record]
	total     *future.Future[int]
	pageToken *future.Future[string]
}

// NewQueryResults wraps an items future. Total and page token are read from
// their own futures once items has settled, so a failed total does not fail
// the items. A nil pageToken resolves as "". Nil items resolve as an empty
// slice.
func NewQueryResults(items *future.Future[[]Record], total *future.Future[int], pageToken *future.Future[string]) *QueryResults {
	items = future.Then(items, func(in []Record) ([]Record, error) {
		if in == nil {
			return []Record{}, nil
		}
		return in, nil
	})
	if pageToken == nil {
		pageToken = future.Resolved("")
	}
	return &QueryResults{
		items: items,
		total: future.Then(items, func([]Record) (int, error) {
			return total.Await(context.Background())
		}),
		pageToken: future.Then(items, func([]Record) (string, error) {
			return pageToken.Await(context.Background())
		}),
	}
}

// Items resolves with the matched records.
func (r *QueryResults) Items() *future.Future[[]Record] { return r.items }

// Total resolves with the total number of matches, after Items.
func (r *QueryResults) Total() *future.Future[int] { return r.total }

// NextPageToken resolves with the continuation marker of the page, or "".
func (r *QueryResults) NextPageToken() *future.Future[string] { return r.pageToken }

// All waits for the records.
func (r *QueryResults) All(ctx context.Context) ([]Record, error) {
	return r.items.Await(ctx)
}

// ForEach waits for the records and calls fn for each of them in order.
func (r *QueryResults) ForEach(ctx context.Context, fn func(Record, int)) error {
	items, err := r.items.Await(ctx)
	if err != nil {
		return err
	}
	for i, item := range items {
		fn(item, i)
	}
	return nil
}

// Map derives results whose records are transformed by fn. The total is kept.
func (r *QueryResults) Map(fn func(Record, int) Record) *QueryResults {
	items := future.Then(r.items, func(in []Record) ([]Record, error) {
		out := make([]Record, len(in))
		for i, item := range in {
			out[i] = fn(item, i)
		}
		return out, nil
	})
	return r.derive(items, func([]Record) (int, error) {
		return r.total.Await(context.Background())
	})
}

// Filter derives results holding the records accepted by fn. The total becomes
// the number of accepted records.
func (r *QueryResults) Filter(fn func(Record, int) bool) *QueryResults {
	items := future.Then(r.items, func(in []Record) ([]Record, error) {
		out := make([]Record, 0, len(in))
		for i, item := range in {
			if fn(item, i) {
				out = append(out, item)
			}
		}
		return out, nil
	})
	return r.derive(items, func(out []Record) (int, error) {
		return len(out), nil
	})
}

func (r *QueryResults) derive(items *future.Future[[]Record], total func([]Record) (int, error)) *QueryResults {
	return &QueryResults{
		items: items,
		total: future.Then(items, total),
		pageToken: future.Then(items, func([]Record) (string, error) {
			return r.pageToken.Await(context.Background())
		}),
	}
}
