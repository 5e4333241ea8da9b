package dbo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type State int

const (
	StateUnhydrated State = iota
	StateHydrated
	StateSaved
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateHydrated:
		return "hydrated"
	case StateSaved:
		return "saved"
	case StateDeleted:
		return "deleted"
	default:
		return "unhydrated"
	}
}

// Object is a persistent object: a typed bag of field values with an
// optional storage identity.
type Object struct {
	typ *Type
	id  string

	values map[string]any
	// attrs hold runtime state that is never serialized.
	attrs map[string]any

	// owner is the object this one is embedded in, if any.
	owner *Object

	template    *Object
	templateKey string
	token       string
	instances   map[string]*Object

	state State
}

func (o *Object) Type() *Type     { return o.typ }
func (o *Object) TypeID() string  { return o.typ.id }
func (o *Object) KeyType() string { return o.typ.keyType }
func (o *Object) ID() string      { return o.id }
func (o *Object) State() State    { return o.state }

// Key is key_type:object_id, or empty for objects without storage identity.
func (o *Object) Key() string {
	if o.typ.keyType == "" || o.id == "" {
		return ""
	}
	return o.typ.keyType + ":" + o.id
}

// SetID assigns the object id. Once assigned it cannot change.
func (o *Object) SetID(id string) error {
	if o.id != "" && o.id != id {
		return fmt.Errorf("%w: %s", ErrKeyAssigned, o.Key())
	}
	o.id = id
	return nil
}

// Owner is the object this one is embedded in.
func (o *Object) Owner() *Object { return o.owner }

func (o *Object) SetOwner(owner *Object) { o.owner = owner }

func (o *Object) Template() *Object   { return o.template }
func (o *Object) TemplateKey() string { return o.templateKey }

func (o *Object) MarkSaved() {
	if o.state != StateDeleted {
		o.state = StateSaved
	}
}

func (o *Object) MarkDeleted() {
	o.state = StateDeleted
}

// Attr returns a runtime attribute that is never persisted.
func (o *Object) Attr(name string) (any, bool) {
	v, ok := o.attrs[name]
	return v, ok
}

func (o *Object) SetAttr(name string, v any) {
	if v == nil {
		delete(o.attrs, name)
		return
	}
	o.attrs[name] = v
}

// Has reports whether the object holds its own value for name.
func (o *Object) Has(name string) bool {
	_, ok := o.values[name]
	return ok
}

// Get returns the current value of a field. Template fields read from the
// template, copy fields read from it until assigned, and lazy fields resolve
// their stored reference on every call.
func (o *Object) Get(name string) any {
	f := o.typ.fields[name]
	if f == nil {
		slog.Warn("reading unknown field", "type_id", o.typ.name, "field", name)
		return nil
	}

	switch f.Kind {
	case KindTemplate:
		if o.template != nil {
			return o.template.Get(name)
		}
		return f.Default
	case KindLazy:
		return o.Resolve(context.Background(), name)
	}

	if v, ok := o.values[name]; ok {
		return v
	}
	if f.Kind == KindCopy && o.template != nil {
		return o.template.Get(name)
	}
	if f.shape != ShapeScalar {
		v := f.defaultValue()
		o.values[name] = v
		return v
	}
	return f.Default
}

// Resolve loads the objects referenced by a lazy field.
func (o *Object) Resolve(ctx context.Context, name string) any {
	f := o.typ.fields[name]
	if f == nil || f.Kind != KindLazy {
		return o.Get(name)
	}
	raw, ok := o.values[name]
	if !ok {
		raw = f.Default
	}
	return f.transform(raw, false, func(el any) any {
		if ref := o.typ.reg.LoadAny(ctx, f.RefType, o, el); ref != nil {
			return ref
		}
		return nil
	})
}

// peek returns the value serialization works from without materializing
// defaults or resolving lazy references.
func (o *Object) peek(f *Field) any {
	if v, ok := o.values[f.Name]; ok {
		return v
	}
	if f.Kind == KindCopy && o.template != nil {
		return o.template.Get(f.Name)
	}
	return f.Default
}

// Set assigns a field value. Writes to template fields and unknown fields are
// logged and discarded.
func (o *Object) Set(name string, v any) {
	f := o.typ.fields[name]
	if f == nil {
		slog.Error("setting unknown field", "type_id", o.typ.name, "field", name)
		return
	}

	switch f.Kind {
	case KindTemplate:
		slog.Error("illegally setting template field", "type_id", o.typ.name, "field", name, "value", v)
		return
	case KindLazy:
		raw := f.transform(normalize(v), true, func(el any) any {
			return lazyRef(f, el)
		})
		if f.isDefault(raw) {
			delete(o.values, name)
			return
		}
		o.values[name] = raw
		return
	}

	o.values[name] = f.wrap(v)
}

// Unset drops the object's own value so the default or template value shows
// through.
func (o *Object) Unset(name string) {
	delete(o.values, name)
}

func (o *Object) GetString(name string) string {
	s, _ := o.Get(name).(string)
	return s
}

func (o *Object) GetInt(name string) int {
	return ToInt(o.Get(name))
}

func (o *Object) GetBool(name string) bool {
	b, _ := o.Get(name).(bool)
	return b
}

func (o *Object) GetObject(name string) *Object {
	ref, _ := o.Get(name).(*Object)
	return ref
}

func (o *Object) GetList(name string) []any {
	l, _ := o.Get(name).([]any)
	return l
}

func (o *Object) GetSet(name string) Set {
	s, _ := o.Get(name).(Set)
	return s
}

func (o *Object) GetMap(name string) map[string]any {
	m, _ := o.Get(name).(map[string]any)
	return m
}

// Hydrate replaces the object's field values from a stored dict. Fields absent
// from dict revert to their defaults. When a required field is missing the
// object is left exactly as it was and a *MissingFieldsError is returned.
func (o *Object) Hydrate(ctx context.Context, dict map[string]any) (*Object, error) {
	if o.state == StateDeleted {
		return nil, fmt.Errorf("%w: %s", ErrDeleted, o.Key())
	}

	staged := make(map[string]any, len(dict))
	var missing []string
	for _, name := range o.typ.fieldNames {
		f := o.typ.fields[name]
		if f.Kind == KindTemplate {
			continue
		}

		raw, ok := dict[name]
		if !ok {
			if f.Required {
				missing = append(missing, name)
			}
			continue
		}

		v := f.hydrate(ctx, o, raw)
		if f.Required && isEmpty(v) {
			missing = append(missing, name)
			continue
		}
		staged[name] = v
	}

	if len(missing) > 0 {
		releaseInstances(o, staged, nil)
		err := &MissingFieldsError{TypeID: o.typ.name, Key: o.Key(), Fields: missing}
		slog.WarnContext(ctx, "missing required fields", "type_id", o.typ.name, "key", o.Key(),
			"fields", strings.Join(missing, ", "), "dict", dict)
		return nil, err
	}

	releaseInstances(o, o.values, staged)
	o.values = staged
	if o.state == StateUnhydrated {
		o.state = StateHydrated
	}
	o.typ.onLoaded(ctx, o)

	return o, nil
}

// Update runs the pre-update hooks and re-hydrates from dict, or from the
// object's own stored form when dict is nil.
func (o *Object) Update(ctx context.Context, dict map[string]any) error {
	o.typ.preUpdate(ctx, o)
	if dict == nil {
		dict, _ = o.ToStorage()
	}
	_, err := o.Hydrate(ctx, dict)
	return err
}

// Reload re-hydrates the object from its current stored form.
func (o *Object) Reload(ctx context.Context) error {
	return o.Update(ctx, nil)
}

// Created runs the creation hooks once the object has its id and initial
// values.
func (o *Object) Created(ctx context.Context) error {
	return o.typ.onCreated(ctx, o)
}

// Deleted runs the deletion hooks before the object is removed from storage.
func (o *Object) Deleted(ctx context.Context) error {
	return o.typ.onDeleted(ctx, o)
}

// Clone returns an object sharing this object's id whose copy fields read
// through to this object.
func (o *Object) Clone(ctx context.Context) *Object {
	c := o.typ.New()
	c.id = o.id
	c.template = o
	c.state = StateHydrated
	o.typ.onLoaded(ctx, c)
	return c
}

// ParentID is the parent portion of a child object's id.
func (o *Object) ParentID() string {
	p, _, _ := strings.Cut(o.id, ":")
	return p
}

// ChildID is the child portion of a child object's id.
func (o *Object) ChildID() string {
	_, c, _ := strings.Cut(o.id, ":")
	return c
}

// Parent loads the parent of a child object.
func (o *Object) Parent(ctx context.Context) (*Object, error) {
	if o.typ.parentType == "" {
		return nil, fmt.Errorf("%s is not a child type", o.typ.name)
	}
	pt, err := o.typ.reg.Lookup(o.typ.parentType)
	if err != nil {
		return nil, err
	}
	b := o.typ.reg.Backend()
	if b == nil {
		return nil, ErrNoBackend
	}
	return b.LoadObject(ctx, pt.keyType+":"+o.ParentID(), pt)
}

// SetKey is the membership set this object is listed in, if any.
func (o *Object) SetKey() string {
	if o.typ.parentType != "" {
		pt, err := o.typ.reg.Lookup(o.typ.parentType)
		if err != nil {
			return ""
		}
		return ChildSetKey(pt.keyType, o.typ.keyType, o.ParentID())
	}
	return o.typ.setKey
}

// ChildSetKey is the set a parent's children of one type are listed in.
func ChildSetKey(parentKeyType string, childKeyType string, parentID string) string {
	return fmt.Sprintf("%s_%ss:%s", parentKeyType, childKeyType, parentID)
}

func (o *Object) String() string {
	if k := o.Key(); k != "" {
		return k
	}
	if o.templateKey != "" {
		return o.typ.name + "@" + o.templateKey
	}
	return o.typ.name
}

func lazyRef(f *Field, el any) any {
	ref, ok := el.(*Object)
	if !ok {
		return el
	}
	if f.RefType == Untyped {
		if k := ref.Key(); k != "" {
			return k
		}
		return nil
	}
	if ref.id == "" {
		return nil
	}
	return ref.id
}

// releaseInstances unregisters template instances embedded in old that are
// no longer present in current.
func releaseInstances(owner *Object, old map[string]any, current map[string]any) {
	keep := map[*Object]bool{}
	for _, v := range current {
		collectInstances(owner, v, func(inst *Object) { keep[inst] = true })
	}
	for _, v := range old {
		collectInstances(owner, v, func(inst *Object) {
			if !keep[inst] {
				inst.Release()
			}
		})
	}
}

func collectInstances(owner *Object, v any, fn func(*Object)) {
	switch t := v.(type) {
	case *Object:
		if t != nil && t.owner == owner && t.token != "" {
			fn(t)
		}
	case []any:
		for _, e := range t {
			collectInstances(owner, e, fn)
		}
	case Set:
		for e := range t {
			collectInstances(owner, e, fn)
		}
	case map[string]any:
		for _, e := range t {
			collectInstances(owner, e, fn)
		}
	}
}
