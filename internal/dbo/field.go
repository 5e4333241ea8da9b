package dbo

import (
	"context"
	"fmt"
	"log/slog"
)

// FieldKind selects how a field reads and writes its value.
type FieldKind int

const (
	// KindStandard fields own their value and are elided when it equals the default.
	KindStandard FieldKind = iota
	// KindTemplate fields always read through to the instance's template and
	// cannot be written on the instance.
	KindTemplate
	// KindCopy fields read through to the template until the instance is given
	// its own value.
	KindCopy
	// KindLazy fields keep the stored reference and resolve it on every read.
	KindLazy
)

func (k FieldKind) String() string {
	switch k {
	case KindTemplate:
		return "template"
	case KindCopy:
		return "copy"
	case KindLazy:
		return "lazy"
	default:
		return "standard"
	}
}

// Untyped is the reference type of collections whose elements carry their own
// type. Keyed elements of untyped collections are stored by full key.
const Untyped = "untyped"

// Field describes one named attribute of a persistent object.
type Field struct {
	Name     string
	Default  any
	Required bool
	// RefType is the type id of the referenced objects, empty for raw values.
	RefType string
	Kind    FieldKind

	shape Shape
}

type FieldOpt func(*Field)

// Required marks the field as required during hydration.
func Required() FieldOpt {
	return func(f *Field) {
		f.Required = true
	}
}

// Ref makes the field hold references to objects of typeID.
func Ref(typeID string) FieldOpt {
	return func(f *Field) {
		f.RefType = typeID
	}
}

func NewField(def any, opts ...FieldOpt) *Field {
	return newField(KindStandard, def, opts)
}

// TemplateField declares a field an instance always delegates to its template.
func TemplateField(def any, opts ...FieldOpt) *Field {
	return newField(KindTemplate, def, opts)
}

// CopyField declares a field an instance inherits from its template until it
// is assigned its own value.
func CopyField(def any, opts ...FieldOpt) *Field {
	return newField(KindCopy, def, opts)
}

// LazyField declares a reference to typeID that is not resolved until read.
// Set shaped defaults are rejected when the declaring type is defined.
func LazyField(def any, typeID string, opts ...FieldOpt) *Field {
	return newField(KindLazy, def, append([]FieldOpt{Ref(typeID)}, opts...))
}

func newField(kind FieldKind, def any, opts []FieldOpt) *Field {
	f := &Field{Kind: kind, Default: normalize(def)}
	for _, opt := range opts {
		opt(f)
	}
	f.shape = shapeOf(f.Default)
	return f
}

// bind returns a copy of the field fixed to name. The shape is inferred once
// here rather than on every call.
func (f *Field) bind(name string) *Field {
	b := *f
	b.Name = name
	b.shape = shapeOf(b.Default)
	return &b
}

func (f *Field) Shape() Shape {
	return f.shape
}

func (f *Field) IsRef() bool {
	return f.RefType != ""
}

func (f *Field) validate(name string) error {
	if f == nil {
		return fmt.Errorf("field %s is nil", name)
	}
	if f.Kind == KindLazy && shapeOf(f.Default) == ShapeSet {
		return fmt.Errorf("lazy field %s cannot hold a set", name)
	}
	if f.Kind == KindLazy && !f.IsRef() {
		return fmt.Errorf("lazy field %s must reference a type", name)
	}
	return nil
}

func (f *Field) sameAs(o *Field) bool {
	return f.Kind == o.Kind &&
		f.Required == o.Required &&
		f.RefType == o.RefType &&
		Equal(f.Default, o.Default)
}

func (f *Field) defaultValue() any {
	return cloneValue(f.Default)
}

func (f *Field) isDefault(v any) bool {
	return Equal(v, f.Default)
}

// hydrate converts a stored value into its in-memory form on owner. References
// that fail to resolve are dropped.
func (f *Field) hydrate(ctx context.Context, owner *Object, raw any) any {
	if f.Kind == KindLazy || !f.IsRef() {
		return f.wrap(raw)
	}
	return f.transform(raw, false, func(el any) any {
		if o := owner.typ.reg.LoadAny(ctx, f.RefType, owner, el); o != nil {
			return o
		}
		return nil
	})
}

// wrap re-wraps a raw value into the field's collection type.
func (f *Field) wrap(raw any) any {
	raw = normalize(raw)
	switch f.shape {
	case ShapeList:
		switch t := raw.(type) {
		case []any:
			return cloneValue(t)
		case Set:
			return t.Values()
		}
	case ShapeSet:
		switch t := raw.(type) {
		case []any:
			s := Set{}
			for _, e := range t {
				if isComparable(e) {
					s.Add(e)
				}
			}
			return s
		case Set:
			return cloneValue(t)
		}
	case ShapeMap:
		if m, ok := raw.(map[string]any); ok {
			return cloneValue(m)
		}
	default:
		return raw
	}
	if raw != nil {
		warnShape(f, raw)
	}
	return f.defaultValue()
}

// transform applies fn to every element of v according to the field's shape,
// dropping elements fn maps to nil. When asList is set, sets are returned as
// sorted lists.
func (f *Field) transform(v any, asList bool, fn func(any) any) any {
	switch f.shape {
	case ShapeList, ShapeSet:
		var out []any
		for _, el := range elements(v) {
			if r := fn(el); r != nil {
				out = append(out, r)
			}
		}
		if f.shape == ShapeSet {
			if asList {
				sortValues(out)
				if out == nil {
					out = []any{}
				}
				return out
			}
			s := Set{}
			for _, el := range out {
				if isComparable(el) {
					s.Add(el)
				}
			}
			return s
		}
		if out == nil {
			out = []any{}
		}
		return out
	case ShapeMap:
		out := map[string]any{}
		src, _ := normalize(v).(map[string]any)
		for k, el := range src {
			if r := fn(el); r != nil {
				out[k] = r
			}
		}
		return out
	default:
		if isEmpty(v) {
			return nil
		}
		return fn(v)
	}
}

func elements(v any) []any {
	switch t := normalize(v).(type) {
	case []any:
		return t
	case Set:
		return t.Values()
	default:
		return nil
	}
}

func warnShape(f *Field, raw any) {
	slog.Warn("stored value does not match field shape, using default",
		"field", f.Name, "shape", f.shape.String(), "value", raw)
}
