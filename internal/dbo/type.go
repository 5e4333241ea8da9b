package dbo

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/pixil98/go-errors"
)

// AccessModel selects how read and write authorization is derived.
type AccessModel int

const (
	// AccessInherit defers to the embedding owner, or to system rules for top level objects.
	AccessInherit AccessModel = iota
	AccessSystem
	AccessOwner
	AccessChild
)

// Hooks are lifecycle callbacks. Each type in a chain contributes its own
// hooks exactly once and they run base first.
type Hooks struct {
	OnLoaded  func(ctx context.Context, o *Object)
	PreUpdate func(ctx context.Context, o *Object)
	OnCreated func(ctx context.Context, o *Object) error
	OnDeleted func(ctx context.Context, o *Object) error
	// OnTransfer may adjust the client representation of o.
	OnTransfer func(o *Object, dto map[string]any)
}

// TypeDef declares a type. Attributes left empty are inherited from the
// first base that sets them.
type TypeDef struct {
	// ID defaults to KeyType.
	ID string
	// KeyType makes objects of the type independently stored under KeyType:id.
	KeyType string
	// SetKey is the membership set every stored object of the type is added to.
	SetKey        string
	Indexes       []string
	ParentType    string
	ChildrenTypes []string
	// KeySort orders child ids when a parent enumerates its children.
	KeySort func(a, b string) int

	Bases  []string
	Fields map[string]*Field
	Hooks  Hooks
	Access AccessModel

	// TemplateID names the template type an instance type is created from.
	TemplateID string
	// ConfigInstance lets a template configure a freshly created instance.
	ConfigInstance func(ctx context.Context, template *Object, instance *Object)
	// MixinInit runs for every type defined or composed on top of this one,
	// but not for the declaring type itself.
	MixinInit func(r *Registry, t *Type)
}

// Type is a defined or composed object type with its merged field table.
type Type struct {
	reg *Registry

	id   string
	name string

	keyType        string
	setKey         string
	indexes        []string
	parentType     string
	childrenTypes  []string
	keySort        func(a, b string) int
	access         AccessModel
	templateID     string
	configInstance func(ctx context.Context, template *Object, instance *Object)
	mixinInit      func(r *Registry, t *Type)

	hooks  Hooks
	chain  []*Type
	mixins []string

	fields     map[string]*Field
	fieldNames []string
}

// ID is the schema identity stored with objects. Composed types share the id
// of their base type.
func (t *Type) ID() string { return t.id }

// Name is the registry name: the id for defined types, the composition key
// for composed ones.
func (t *Type) Name() string { return t.name }

func (t *Type) KeyType() string         { return t.keyType }
func (t *Type) Keyed() bool             { return t.keyType != "" }
func (t *Type) SetKey() string          { return t.setKey }
func (t *Type) Indexes() []string       { return slices.Clone(t.indexes) }
func (t *Type) ParentType() string      { return t.parentType }
func (t *Type) ChildrenTypes() []string { return slices.Clone(t.childrenTypes) }
func (t *Type) Access() AccessModel     { return t.access }
func (t *Type) TemplateID() string      { return t.templateID }
func (t *Type) Mixins() []string        { return slices.Clone(t.mixins) }
func (t *Type) Composed() bool          { return len(t.mixins) > 0 }
func (t *Type) Registry() *Registry     { return t.reg }

// Field returns the merged descriptor for name, or nil.
func (t *Type) Field(name string) *Field {
	return t.fields[name]
}

// FieldNames returns the merged field names in sorted order.
func (t *Type) FieldNames() []string {
	return slices.Clone(t.fieldNames)
}

// Is reports whether typeID is this type or one of its ancestors.
func (t *Type) Is(typeID string) bool {
	for _, c := range t.chain {
		if c.name == typeID {
			return true
		}
	}
	return false
}

// SortKeys orders child ids using the type's key sort.
func (t *Type) SortKeys(keys []string) {
	cmp := t.keySort
	if cmp == nil {
		cmp = strings.Compare
	}
	slices.SortFunc(keys, cmp)
}

// New allocates an empty, unhydrated object of the type.
func (t *Type) New() *Object {
	return &Object{
		typ:    t,
		values: map[string]any{},
		attrs:  map[string]any{},
	}
}

func (t *Type) String() string {
	return t.name
}

func validateDef(id string, def TypeDef) error {
	el := errors.NewErrorList()
	if id == "" {
		el.Add(fmt.Errorf("type id or key type is required"))
	}
	for name, f := range def.Fields {
		el.Add(f.validate(name))
	}
	return el.Err()
}

// build assembles a type from its bases and definition. Fields merge left to
// right with the definition's own fields applied last.
func (r *Registry) build(id string, name string, bases []*Type, def TypeDef) *Type {
	t := &Type{
		reg:    r,
		id:     id,
		name:   name,
		fields: map[string]*Field{},
		hooks:  def.Hooks,
	}

	for _, b := range bases {
		t.inherit(b)
		for _, fn := range b.fieldNames {
			t.mergeField(b.fields[fn], false)
		}
	}

	if def.KeyType != "" {
		t.keyType = def.KeyType
	}
	if def.SetKey != "" {
		t.setKey = def.SetKey
	}
	if len(def.Indexes) > 0 {
		t.indexes = slices.Clone(def.Indexes)
	}
	if def.ParentType != "" {
		t.parentType = def.ParentType
	}
	if len(def.ChildrenTypes) > 0 {
		t.childrenTypes = slices.Clone(def.ChildrenTypes)
	}
	if def.KeySort != nil {
		t.keySort = def.KeySort
	}
	if def.Access != AccessInherit {
		t.access = def.Access
	}
	if def.TemplateID != "" {
		t.templateID = def.TemplateID
	}
	if def.ConfigInstance != nil {
		t.configInstance = def.ConfigInstance
	}
	t.mixinInit = def.MixinInit

	declared := make([]string, 0, len(def.Fields))
	for fn := range def.Fields {
		declared = append(declared, fn)
	}
	slices.Sort(declared)
	for _, fn := range declared {
		t.mergeField(def.Fields[fn].bind(fn), true)
	}

	for _, b := range bases {
		for _, c := range b.chain {
			if !slices.Contains(t.chain, c) {
				t.chain = append(t.chain, c)
			}
		}
	}
	t.chain = append(t.chain, t)

	return t
}

// inherit copies attributes from b that t has not already taken from an
// earlier base.
func (t *Type) inherit(b *Type) {
	if t.keyType == "" {
		t.keyType = b.keyType
	}
	if t.setKey == "" {
		t.setKey = b.setKey
	}
	if len(t.indexes) == 0 {
		t.indexes = slices.Clone(b.indexes)
	}
	if t.parentType == "" {
		t.parentType = b.parentType
	}
	if len(t.childrenTypes) == 0 {
		t.childrenTypes = slices.Clone(b.childrenTypes)
	}
	if t.keySort == nil {
		t.keySort = b.keySort
	}
	if t.access == AccessInherit {
		t.access = b.access
	}
	if t.templateID == "" {
		t.templateID = b.templateID
	}
	if t.configInstance == nil {
		t.configInstance = b.configInstance
	}
}

func (t *Type) mergeField(f *Field, declared bool) {
	old, ok := t.fields[f.Name]
	switch {
	case !ok || old == f:
	case old.sameAs(f):
		if declared {
			slog.Warn("overriding duplicate field", "type", t.name, "field", f.Name)
		}
	case !Equal(old.Default, f.Default):
		slog.Info("overriding default value of field", "type", t.name, "field", f.Name,
			"old", old.Default, "new", f.Default)
	}
	t.fields[f.Name] = f

	if !slices.Contains(t.fieldNames, f.Name) {
		t.fieldNames = append(t.fieldNames, f.Name)
		slices.Sort(t.fieldNames)
	}
}

// addFields merges fields into an already defined type.
func (t *Type) addFields(fields map[string]*Field) {
	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		t.mergeField(fields[n].bind(n), false)
	}
}

func (t *Type) runMixinInits() {
	for _, c := range t.chain {
		if c != t && c.mixinInit != nil {
			c.mixinInit(t.reg, t)
		}
	}
}

func (t *Type) onLoaded(ctx context.Context, o *Object) {
	for _, c := range t.chain {
		if c.hooks.OnLoaded != nil {
			c.hooks.OnLoaded(ctx, o)
		}
	}
}

func (t *Type) preUpdate(ctx context.Context, o *Object) {
	for _, c := range t.chain {
		if c.hooks.PreUpdate != nil {
			c.hooks.PreUpdate(ctx, o)
		}
	}
}

func (t *Type) onCreated(ctx context.Context, o *Object) error {
	el := errors.NewErrorList()
	for _, c := range t.chain {
		if c.hooks.OnCreated != nil {
			el.Add(c.hooks.OnCreated(ctx, o))
		}
	}
	return el.Err()
}

func (t *Type) onDeleted(ctx context.Context, o *Object) error {
	el := errors.NewErrorList()
	for _, c := range t.chain {
		if c.hooks.OnDeleted != nil {
			el.Add(c.hooks.OnDeleted(ctx, o))
		}
	}
	return el.Err()
}

func (t *Type) onTransfer(o *Object, dto map[string]any) {
	for _, c := range t.chain {
		if c.hooks.OnTransfer != nil {
			c.hooks.OnTransfer(o, dto)
		}
	}
}
