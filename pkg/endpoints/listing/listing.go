// Package listing implements the list semantics shared by the sandbox
// backends: multi-key ordering, offset/limit paging and page tokens.
package listing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nimburion/endpointstore/pkg/endpoints"
)

// OrderKey is one attribute of an order expression.
type OrderKey struct {
	Attribute  string
	Descending bool
}

// ParseOrder parses "name,-age" into order keys. Empty segments are skipped.
func ParseOrder(order string) []OrderKey {
	var keys []OrderKey
	for _, part := range strings.Split(order, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "-" {
			continue
		}
		if strings.HasPrefix(part, "-") {
			keys = append(keys, OrderKey{Attribute: part[1:], Descending: true})
			continue
		}
		keys = append(keys, OrderKey{Attribute: part})
	}
	return keys
}

// FormatOrder is the inverse of ParseOrder.
func FormatOrder(keys []OrderKey) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.Descending {
			parts = append(parts, "-"+k.Attribute)
			continue
		}
		parts = append(parts, k.Attribute)
	}
	return strings.Join(parts, ",")
}

// Sort orders records in place by keys. Records that compare equal on every
// key keep their relative order.
func Sort(records []map[string]any, keys []OrderKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, k := range keys {
			c := Compare(records[i][k.Attribute], records[j][k.Attribute])
			if c == 0 {
				continue
			}
			if k.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Page is one slice of a list result.
type Page struct {
	Items         []map[string]any
	Total         int
	NextPageToken string
}

// Paginate cuts records according to params. A non-positive limit returns
// everything after the offset.
func Paginate(records []map[string]any, params endpoints.ListParams) Page {
	total := len(records)
	start := params.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if params.Limit > 0 && start+params.Limit < total {
		end = start + params.Limit
	}

	page := Page{Items: records[start:end], Total: total}
	if end < total {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page
}

// Body renders a page as a list payload. count is included only when
// reportCount is set, mirroring services that do not compute totals.
func (p Page) Body(reportCount bool) map[string]any {
	items := make([]any, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, item)
	}
	body := map[string]any{endpoints.FieldItems: items}
	if reportCount {
		body[endpoints.FieldCount] = p.Total
	}
	if p.NextPageToken != "" {
		body[endpoints.FieldNextPageToken] = p.NextPageToken
	}
	return body
}

// List sorts a copy of records and pages it.
func List(records []map[string]any, params endpoints.ListParams) Page {
	sorted := make([]map[string]any, len(records))
	copy(sorted, records)
	Sort(sorted, ParseOrder(params.Order))
	return Paginate(sorted, params)
}

// Compare orders two loosely typed values: nil first, then booleans,
// numbers and strings. Values of other kinds compare by their printed form.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankNumber:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case rankString:
		return strings.Compare(a.(string), b.(string))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

const (
	rankNil = iota
	rankBool
	rankNumber
	rankString
	rankOther
)

func rank(v any) int {
	if v == nil {
		return rankNil
	}
	if _, ok := v.(bool); ok {
		return rankBool
	}
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	if _, ok := v.(string); ok {
		return rankString
	}
	return rankOther
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
