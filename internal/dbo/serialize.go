package dbo

import (
	"log/slog"
	"slices"
)

type serialMode int

const (
	modeStorage serialMode = iota
	modeTransfer
	modeCompare
)

// serializer carries the per-call state of one serialization: the collected
// reference keys and the embedded objects currently being written.
type serializer struct {
	mode serialMode
	refs []string
	busy map[*Object]bool
}

func newSerializer(mode serialMode) *serializer {
	return &serializer{mode: mode, busy: map[*Object]bool{}}
}

// ToStorage returns the sparse stored form of the object and the keys of
// every object it references.
func (o *Object) ToStorage() (map[string]any, []string) {
	s := newSerializer(modeStorage)
	dict := s.fields(o)

	if o.templateKey != "" {
		dict["template_key"] = o.templateKey
	}
	if o.typ.Keyed() && o.typ.id != o.typ.keyType {
		dict["type_id"] = o.typ.id
	}
	if len(o.typ.mixins) > 0 {
		dict["mixins"] = stringList(o.typ.mixins)
	}

	return dict, uniqueStrings(s.refs)
}

// ToTransfer returns the client form of the object. Defaults are never
// elided.
func (o *Object) ToTransfer() map[string]any {
	s := newSerializer(modeTransfer)
	dict := s.fields(o)

	dict["type_id"] = o.typ.id
	if o.typ.Keyed() {
		dict["key_type"] = o.typ.keyType
		dict["key"] = o.Key()
		dict["object_id"] = o.id
	}
	if o.templateKey != "" {
		dict["template_key"] = o.templateKey
	}
	if len(o.typ.mixins) > 0 {
		dict["mixins"] = stringList(o.typ.mixins)
	}
	o.typ.onTransfer(o, dict)

	return dict
}

// CompareValue returns a representation suitable for detecting whether an
// update changed anything. It collects no references.
func (o *Object) CompareValue() map[string]any {
	s := newSerializer(modeCompare)
	dict := s.fields(o)

	dict["type_id"] = o.typ.id
	if o.typ.Keyed() {
		dict["key_type"] = o.typ.keyType
	}
	if o.templateKey != "" {
		dict["template_key"] = o.templateKey
	}
	return dict
}

func (s *serializer) fields(o *Object) map[string]any {
	s.busy[o] = true
	defer delete(s.busy, o)

	out := map[string]any{}
	for _, name := range o.typ.fieldNames {
		f := o.typ.fields[name]
		if f.Kind == KindTemplate {
			continue
		}
		mark := len(s.refs)
		v, ok := s.field(o, f)
		if !ok {
			s.refs = s.refs[:mark]
			continue
		}
		out[name] = v
	}
	return out
}

// field returns the serialized value of f, or false when the value is elided.
func (s *serializer) field(o *Object, f *Field) (any, bool) {
	if f.Kind == KindLazy {
		raw, ok := o.values[f.Name]
		if !ok {
			raw = f.Default
		}
		if s.mode == modeStorage {
			f.transform(raw, true, func(el any) any {
				s.refs = append(s.refs, lazyKey(f, el))
				return el
			})
		}
		if s.mode != modeTransfer && f.isDefault(raw) {
			return nil, false
		}
		return cloneValue(raw), true
	}

	_, own := o.values[f.Name]
	if f.Kind == KindCopy && !own && s.mode != modeTransfer {
		return nil, false
	}

	v := s.value(f, o.peek(f))
	if s.mode == modeTransfer {
		return v, true
	}

	if f.Kind == KindCopy && o.template != nil {
		tv := newSerializer(modeCompare).value(f, o.template.Get(f.Name))
		if Equal(v, tv) {
			return nil, false
		}
		// Only the template's current value counts as the default here.
		return v, true
	}
	if f.isDefault(v) {
		return nil, false
	}
	return v, true
}

// value serializes a field value. Sets become sorted lists.
func (s *serializer) value(f *Field, v any) any {
	if !f.IsRef() {
		if set, ok := v.(Set); ok {
			return set.Values()
		}
		return cloneValue(v)
	}
	return f.transform(v, true, func(el any) any {
		return s.ref(f, el)
	})
}

func (s *serializer) ref(f *Field, el any) any {
	ref, ok := el.(*Object)
	if !ok {
		return el
	}

	if ref.typ.Keyed() {
		key := ref.Key()
		if key == "" {
			slog.Warn("dropping reference to unsaved object", "type_id", ref.typ.name, "field", f.Name)
			return nil
		}
		if s.mode == modeStorage {
			s.refs = append(s.refs, key)
		}
		if f.RefType == Untyped {
			return key
		}
		return ref.id
	}

	if s.busy[ref] {
		slog.Warn("dropping cyclic embedded reference", "type_id", ref.typ.name, "field", f.Name)
		return nil
	}

	dict := s.fields(ref)
	if ref.templateKey != "" {
		dict["template_key"] = ref.templateKey
		if s.mode == modeStorage {
			s.refs = append(s.refs, ref.templateKey)
		}
	} else if ref.typ.id != f.RefType {
		dict["type_id"] = ref.typ.id
	}
	return dict
}

func lazyKey(f *Field, el any) string {
	id := formatID(el)
	if f.RefType == Untyped {
		return id
	}
	return f.RefType + ":" + id
}

func stringList(vals []string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func uniqueStrings(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
