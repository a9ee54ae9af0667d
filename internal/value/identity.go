package value

import "reflect"

// Same reports whether a and b are the same value in the reference sense:
// Objects and Arrays are the same only when they share backing storage,
// scalars are the same when they are equal. A nil Value and Null are the
// same as each other.
//
// Same never inspects contents. Two Objects with identical fields built
// separately are not the same.
func Same(a, b Value) bool {
	switch av := a.(type) {
	case nil, Null:
		switch b.(type) {
		case nil, Null:
			return true
		}
		return false
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Object:
		bv, ok := b.(Object)
		if !ok {
			return false
		}
		if av == nil || bv == nil {
			return av == nil && bv == nil
		}
		return reflect.ValueOf(av).UnsafePointer() == reflect.ValueOf(bv).UnsafePointer()
	case Array:
		bv, ok := b.(Array)
		if !ok {
			return false
		}
		if av == nil || bv == nil {
			return av == nil && bv == nil
		}
		return len(av) == len(bv) && reflect.ValueOf(av).UnsafePointer() == reflect.ValueOf(bv).UnsafePointer()
	default:
		return false
	}
}

// SameObject is Same for two Objects.
func SameObject(a, b Object) bool {
	return Same(a, b)
}

// ChangedKeys returns, in canonical order, the top-level keys whose values
// are not the Same between prev and next, including keys present in only
// one of them.
func ChangedKeys(prev, next Object) []string {
	changed := Object{}
	for k, nv := range next {
		pv, ok := prev[k]
		if !ok || !Same(pv, nv) {
			changed[k] = nil
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			changed[k] = nil
		}
	}
	return changed.SortedKeys()
}
