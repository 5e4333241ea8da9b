package dbo

import "context"

// NewDTO is the client form of a fresh object of the type, used to seed
// editors.
func (t *Type) NewDTO() map[string]any {
	dto := t.New().ToTransfer()
	dto["can_write"] = true
	if t.keyType != "" {
		dto["key_type"] = t.keyType
	}
	if t.parentType != "" {
		dto["parent_type"] = t.parentType
	}
	if len(t.childrenTypes) > 0 {
		dto["children_types"] = stringList(t.childrenTypes)
	}
	return dto
}

// EditDTO is the client form of the object with the metadata an editor needs
// and the access p has to it.
func (o *Object) EditDTO(ctx context.Context, p Principal) map[string]any {
	dto := o.ToTransfer()
	if o.typ.Keyed() {
		dto["imm_level"] = o.ImmLevel(ctx)
	}
	if o.typ.parentType != "" {
		dto["parent_type"] = o.typ.parentType
	}
	if len(o.typ.childrenTypes) > 0 {
		dto["children_types"] = stringList(o.typ.childrenTypes)
	}
	dto["can_read"] = o.CanRead(ctx, p)
	dto["can_write"] = o.CanWrite(ctx, p)
	return dto
}
