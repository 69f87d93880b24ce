package history

import (
	"math"
	"reflect"
	"slices"
)

var defaultIgnoredFields = []string{"createdAt", "updatedAt", "staticId", "_id", "sourceId"}

// DefaultIgnoredFields returns the bookkeeping fields that never produce change-points.
func DefaultIgnoredFields() []string {
	return slices.Clone(defaultIgnoredFields)
}

// IsIgnoredField reports whether field is a bookkeeping field or listed in ignored.
func IsIgnoredField(field string, ignored []string) bool {
	return slices.Contains(defaultIgnoredFields, field) || slices.Contains(ignored, field)
}

// HasFieldChanged compares a value against the same field of the preceding
// snapshot. An empty previous value always counts as a change. Dates compare by
// millisecond instant, objects and arrays structurally, anything else strictly.
func HasFieldChanged(value, previous any) bool {
	if isFalsy(previous) {
		return true
	}

	switch Classify(value) {
	case KindDate:
		return !sameInstant(value, previous)
	case KindObject, KindArray:
		return !deepEqual(value, previous)
	default:
		return !scalarEqual(value, previous)
	}
}

func sameInstant(a, b any) bool {
	ta, okA := asTime(a)
	tb, okB := asTime(b)
	if !okA || !okB {
		return false
	}
	return ta.UnixMilli() == tb.UnixMilli()
}

func scalarEqual(a, b any) bool {
	na, okA := asNumber(a)
	nb, okB := asNumber(b)
	if okA && okB {
		if math.IsNaN(na) || math.IsNaN(nb) {
			return false
		}
		return na == nb
	}
	if okA != okB {
		return false
	}

	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func deepEqual(a, b any) bool {
	kind := Classify(a)
	if kind != Classify(b) {
		return false
	}

	switch kind {
	case KindAbsent:
		return true
	case KindDate:
		return sameInstant(a, b)
	case KindArray:
		left, right := elements(a), elements(b)
		if len(left) != len(right) {
			return false
		}
		for i := range left {
			if !deepEqual(left[i], right[i]) {
				return false
			}
		}
		return true
	case KindObject:
		left, _ := asObject(a)
		right, _ := asObject(b)
		if len(left) != len(right) {
			return false
		}
		for key, value := range left {
			other, ok := right[key]
			if !ok || !deepEqual(value, other) {
				return false
			}
		}
		return true
	default:
		return scalarEqual(a, b)
	}
}
