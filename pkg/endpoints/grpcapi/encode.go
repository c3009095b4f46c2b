package grpcapi

import (
	"reflect"

	"google.golang.org/protobuf/types/known/structpb"
)

// newStruct is structpb.NewStruct over a payload whose nested values may use
// named or typed maps and slices, such as store.Record or []string.
func newStruct(payload map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(normalizeObject(payload))
}

func normalizeObject(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalize(v)
	}
	return out
}

// normalize rewrites v into the shapes structpb accepts. Values structpb cannot
// represent, like channels or funcs, are returned as is and fail there.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, bool, string, []byte, int, int32, int64, uint, uint32, uint64, float32, float64:
		return v
	case map[string]any:
		return normalizeObject(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes()
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return v
	}
}
