package dbo

import (
	"context"
	"log/slog"
)

// Core trait ids. Application types list these as bases.
const (
	TraitKeyed    = "keyed"
	TraitSystem   = "system"
	TraitOwned    = "owned"
	TraitParent   = "parent"
	TraitChild    = "child"
	TraitTemplate = "template"
	TraitInstance = "instance"
)

// DefaultOwner owns everything not created by a particular user.
const DefaultOwner = "lampost"

func defineCore(r *Registry) {
	r.MustDefine(TypeDef{ID: Untyped})

	r.MustDefine(TypeDef{
		ID: TraitKeyed,
		Fields: map[string]*Field{
			"dbo_ts": NewField(0),
		},
	})

	r.MustDefine(TypeDef{
		ID:     TraitSystem,
		Access: AccessSystem,
	})

	r.MustDefine(TypeDef{
		ID:     TraitOwned,
		Access: AccessOwner,
		Fields: map[string]*Field{
			"owner_id":     NewField(DefaultOwner),
			"read_access":  NewField(0),
			"write_access": NewField(0),
		},
		Hooks: Hooks{
			OnCreated: func(ctx context.Context, o *Object) error {
				slog.InfoContext(ctx, "created new object", "owner_id", o.OwnerID(), "key", o.Key())
				return addOwned(ctx, o)
			},
			OnDeleted: func(ctx context.Context, o *Object) error {
				return removeOwned(ctx, o)
			},
		},
	})

	r.MustDefine(TypeDef{
		ID:    TraitParent,
		Bases: []string{TraitKeyed, TraitOwned},
	})

	r.MustDefine(TypeDef{
		ID:     TraitChild,
		Bases:  []string{TraitKeyed},
		Access: AccessChild,
	})

	r.MustDefine(TypeDef{
		ID: TraitTemplate,
		Hooks: Hooks{
			OnLoaded: func(ctx context.Context, o *Object) {
				for _, inst := range o.Instances() {
					if err := inst.Reload(ctx); err != nil {
						slog.ErrorContext(ctx, "reloading template instance", "template_key", o.Key(), "error", err)
					}
				}
			},
			PreUpdate: func(ctx context.Context, o *Object) {
				for _, inst := range o.Instances() {
					inst.typ.preUpdate(ctx, inst)
				}
			},
			OnDeleted: func(ctx context.Context, o *Object) error {
				for _, inst := range o.Instances() {
					if err := inst.typ.onDeleted(ctx, inst); err != nil {
						slog.ErrorContext(ctx, "deleting template instance", "template_key", o.Key(), "error", err)
					}
				}
				return nil
			},
		},
	})

	r.MustDefine(TypeDef{
		ID:        TraitInstance,
		MixinInit: initInstanceType,
	})
}

// initInstanceType registers an instance type with its template and gives
// the template a standard field for every field the instance delegates.
func initInstanceType(r *Registry, t *Type) {
	if t.Composed() || t.templateID == "" {
		return
	}

	tmpl, err := r.Lookup(t.templateID)
	if err != nil {
		slog.Error("instance type names unknown template", "type_id", t.name, "template_id", t.templateID)
		return
	}

	if old, ok := r.InstanceType(t.templateID); ok && old != t {
		slog.Info("overriding instance type", "template_id", t.templateID, "old", old.name, "new", t.name)
	} else {
		slog.Info("initializing instance type", "template_id", t.templateID, "type_id", t.name)
	}

	delegated := map[string]*Field{}
	for _, name := range t.fieldNames {
		f := t.fields[name]
		if f.Kind != KindTemplate && f.Kind != KindCopy {
			continue
		}
		std := *f
		std.Kind = KindStandard
		delegated[name] = &std
	}
	tmpl.addFields(delegated)

	r.SetInstanceType(t.templateID, t)
}

func addOwned(ctx context.Context, o *Object) error {
	b := o.typ.reg.Backend()
	if b == nil || o.Key() == "" {
		return nil
	}
	return b.AddOwned(ctx, o.OwnerID(), o.Key())
}

func removeOwned(ctx context.Context, o *Object) error {
	b := o.typ.reg.Backend()
	if b == nil || o.Key() == "" {
		return nil
	}
	return b.RemoveOwned(ctx, o.OwnerID(), o.Key())
}
