package dbo

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Shape is the collection shape of a field, inferred from its default.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeList
	ShapeSet
	ShapeMap
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeSet:
		return "set"
	case ShapeMap:
		return "map"
	default:
		return "scalar"
	}
}

// Set is an unordered collection of comparable values. Sets are stored as
// JSON lists.
type Set map[any]struct{}

func NewSet(vals ...any) Set {
	s := Set{}
	for _, v := range vals {
		s.Add(v)
	}
	return s
}

func (s Set) Add(v any) {
	s[v] = struct{}{}
}

func (s Set) Remove(v any) {
	delete(s, v)
}

func (s Set) Has(v any) bool {
	_, ok := s[v]
	return ok
}

// Values returns the members in a stable order.
func (s Set) Values() []any {
	vals := make([]any, 0, len(s))
	for v := range s {
		vals = append(vals, v)
	}
	sortValues(vals)
	return vals
}

func shapeOf(v any) Shape {
	switch v.(type) {
	case []any:
		return ShapeList
	case Set:
		return ShapeSet
	case map[string]any:
		return ShapeMap
	default:
		return ShapeScalar
	}
}

// normalize converts typed slices and maps into the generic forms fields
// operate on, so []string{"a"} and []any{"a"} are interchangeable.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, []any, Set, map[string]any, *Object, string, bool, float64, int:
		return v
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		list := make([]any, rv.Len())
		for i := range list {
			list[i] = normalize(rv.Index(i).Interface())
		}
		return list
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return m
	}
	return v
}

// cloneValue deep copies collections so shared defaults are never mutated.
func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		list := make([]any, len(t))
		for i, e := range t {
			list[i] = cloneValue(e)
		}
		return list
	case Set:
		s := make(Set, len(t))
		for e := range t {
			s[e] = struct{}{}
		}
		return s
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	default:
		return v
	}
}

// Equal reports whether two serialized values are structurally equal. Numbers
// compare by value regardless of their Go type and sets compare as sets.
func Equal(a, b any) bool {
	return reflect.DeepEqual(canonical(a), canonical(b))
}

func canonical(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case *Object:
		if t == nil {
			return nil
		}
		return "ref:" + t.Key()
	case Set:
		list := make([]any, 0, len(t))
		for e := range t {
			list = append(list, canonical(e))
		}
		sortValues(list)
		return list
	case []any:
		list := make([]any, len(t))
		for i, e := range t {
			list[i] = canonical(e)
		}
		return list
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = canonical(e)
		}
		return m
	default:
		n := normalize(v)
		if reflect.TypeOf(n) != reflect.TypeOf(v) {
			return canonical(n)
		}
		return v
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *Object:
		return t == nil
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case Set:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func isComparable(v any) bool {
	return v != nil && reflect.TypeOf(v).Comparable()
}

func sortKey(v any) string {
	if o, ok := v.(*Object); ok && o != nil {
		return o.Key()
	}
	return fmt.Sprintf("%T:%v", v, v)
}

func sortValues(vals []any) {
	slices.SortFunc(vals, func(a, b any) int {
		return strings.Compare(sortKey(a), sortKey(b))
	})
}

// ToInt converts a stored numeric value to an int, returning 0 for anything
// that is not a number.
func ToInt(v any) int {
	switch t := canonical(v).(type) {
	case float64:
		return int(t)
	default:
		return 0
	}
}
