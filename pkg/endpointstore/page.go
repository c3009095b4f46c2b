package endpointstore

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/store"
)

// pageItems reads the records of a list payload.
func pageItems(body store.Record) ([]store.Record, error) {
	return toItems(body[endpoints.FieldItems])
}

// pageToken reads the continuation marker of a list payload, or "".
func pageToken(body store.Record) (string, error) {
	if raw, ok := body[endpoints.FieldNextPageToken]; ok && raw != nil {
		return fmt.Sprint(raw), nil
	}
	return "", nil
}

// pageTotal is the reported count when the payload has the key. A null count
// is present but unknown and reads as 0. Without the key the total is the
// number of items plus offset, plus the number of items once more when a next
// page token key is present.
func pageTotal(body store.Record, offset int) (int, error) {
	if raw, ok := body[endpoints.FieldCount]; ok {
		if raw == nil {
			return 0, nil
		}
		return toInt(raw)
	}

	items, err := pageItems(body)
	if err != nil {
		return 0, err
	}
	total := len(items) + offset
	if _, ok := body[endpoints.FieldNextPageToken]; ok {
		total += len(items)
	}
	return total, nil
}

func toItems(raw any) ([]store.Record, error) {
	switch v := raw.(type) {
	case nil:
		return []store.Record{}, nil
	case []store.Record:
		return v, nil
	case []map[string]any:
		out := make([]store.Record, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, nil
	case []any:
		out := make([]store.Record, len(v))
		for i, item := range v {
			rec, err := asRecord(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = rec
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: items is %T", ErrUnexpectedPayload, raw)
	}
}

// toInt accepts the numeric shapes a decoded count may take, including the
// string form int64 fields use in JSON.
func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: count %q: %v", ErrUnexpectedPayload, v, err)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: count %q: %v", ErrUnexpectedPayload, v, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: count is %T", ErrUnexpectedPayload, raw)
	}
}
