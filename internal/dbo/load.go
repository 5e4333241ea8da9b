package dbo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// LoadAny resolves one stored reference element. A dict carrying type_id
// overrides typeHint. Keyed types are loaded by id, bare identifiers of other
// types by full key, dicts carrying template_key become instances of that
// template, and anything else is hydrated as an object embedded in owner.
// Failures are logged and yield nil.
func (r *Registry) LoadAny(ctx context.Context, typeHint string, owner *Object, raw any) *Object {
	raw = normalize(raw)
	if isEmpty(raw) {
		return nil
	}

	typeID := typeHint
	var refID string
	var dict map[string]any
	switch v := raw.(type) {
	case string:
		refID = v
	case int, float64:
		refID = formatID(v)
	case map[string]any:
		dict = v
		if tid, ok := v["type_id"].(string); ok && tid != "" {
			typeID = tid
		}
	case *Object:
		return v
	default:
		slog.ErrorContext(ctx, "unable to load reference", "type_id", typeID, "value", raw, "owner", ownerKey(owner))
		return nil
	}

	t, err := r.Lookup(typeID)
	if err != nil {
		slog.ErrorContext(ctx, "unable to load reference", "type_id", typeID, "owner", ownerKey(owner), "error", err)
		return nil
	}

	if t.Keyed() {
		if refID == "" {
			slog.ErrorContext(ctx, "keyed reference is not an id", "type_id", typeID, "value", raw, "owner", ownerKey(owner))
			return nil
		}
		return r.loadKey(ctx, t.keyType+":"+refID, t, owner)
	}

	if refID != "" {
		return r.loadKey(ctx, refID, nil, owner)
	}

	if tk, _ := dict["template_key"].(string); tk != "" {
		return r.loadInstance(ctx, tk, owner, dict)
	}

	if t.name == Untyped {
		slog.WarnContext(ctx, "attempting to hydrate invalid untyped value", "value", dict, "owner", ownerKey(owner))
		return nil
	}

	o := t.New()
	o.owner = owner
	if _, err := o.Hydrate(ctx, dict); err != nil {
		return nil
	}
	return o
}

func (r *Registry) loadKey(ctx context.Context, key string, t *Type, owner *Object) *Object {
	b := r.Backend()
	if b == nil {
		slog.ErrorContext(ctx, "unable to load reference", "key", key, "error", ErrNoBackend)
		return nil
	}
	o, err := b.LoadObject(ctx, key, t)
	if err != nil {
		slog.ErrorContext(ctx, "unable to load reference", "key", key, "owner", ownerKey(owner), "error", err)
		return nil
	}
	return o
}

func (r *Registry) loadInstance(ctx context.Context, templateKey string, owner *Object, dict map[string]any) *Object {
	tmpl := r.loadKey(ctx, templateKey, nil, owner)
	if tmpl == nil {
		slog.WarnContext(ctx, "missing template", "template_key", templateKey, "owner", ownerKey(owner))
		return nil
	}

	inst, err := tmpl.GetInstance(owner)
	if err != nil {
		slog.ErrorContext(ctx, "creating instance", "template_key", templateKey, "error", err)
		return nil
	}
	if _, err := inst.Hydrate(ctx, dict); err != nil {
		inst.Release()
		return nil
	}
	tmpl.configInstance(ctx, inst)
	return inst
}

// formatID renders a stored identifier. Numeric ids become decimal strings.
func formatID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func ownerKey(owner *Object) string {
	if owner == nil {
		return ""
	}
	return owner.String()
}
