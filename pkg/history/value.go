package history

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Kind classifies a snapshot value for field dispatch.
type Kind int

const (
	KindAbsent Kind = iota
	KindScalar
	KindDate
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindScalar:
		return "scalar"
	case KindDate:
		return "date"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Classify returns the kind of a value. Arrays are recognised before objects and
// dates are never objects.
func Classify(value any) Kind {
	switch typed := value.(type) {
	case nil:
		return KindAbsent
	case time.Time:
		return KindDate
	case *time.Time:
		if typed == nil {
			return KindAbsent
		}
		return KindDate
	case []any:
		if typed == nil {
			return KindAbsent
		}
		return KindArray
	case map[string]any:
		if typed == nil {
			return KindAbsent
		}
		return KindObject
	case Snapshot:
		if typed == nil {
			return KindAbsent
		}
		return KindObject
	case []byte, json.Number, string, bool:
		return KindScalar
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return KindAbsent
		}
		return Classify(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return KindAbsent
		}
		return KindArray
	case reflect.Array:
		return KindArray
	case reflect.Map:
		if rv.IsNil() {
			return KindAbsent
		}
		if rv.Type().Key().Kind() == reflect.String {
			return KindObject
		}
	}
	return KindScalar
}

// IsObject reports whether a value is a non-null, non-date object. Arrays count
// as objects.
func IsObject(value any) bool {
	kind := Classify(value)
	return kind == KindObject || kind == KindArray
}

func asTime(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		return typed, true
	case *time.Time:
		if typed == nil {
			return time.Time{}, false
		}
		return *typed, true
	}
	return time.Time{}, false
}

func asObject(value any) (Snapshot, bool) {
	switch typed := value.(type) {
	case Snapshot:
		return typed, typed != nil
	case map[string]any:
		return Snapshot(typed), typed != nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.IsNil() || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(Snapshot, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func elements(value any) []any {
	switch typed := value.(type) {
	case []any:
		return typed
	case []map[string]any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out
	case []Snapshot:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out
	case []byte:
		return nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func asNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// isFalsy treats nil, false, zero, NaN and the empty string as empty values.
func isFalsy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case bool:
		return !typed
	case string:
		return typed == ""
	}
	if Classify(value) == KindAbsent {
		return true
	}
	if n, ok := asNumber(value); ok {
		return n == 0 || math.IsNaN(n)
	}
	return false
}
