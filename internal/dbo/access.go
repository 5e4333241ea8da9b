package dbo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// OwnerID is the principal owning the object, or empty for unowned types.
func (o *Object) OwnerID() string {
	if o.typ.fields["owner_id"] == nil {
		return ""
	}
	return o.GetString("owner_id")
}

// ImmLevel is the level a principal must reach to modify the object.
func (o *Object) ImmLevel(ctx context.Context) int {
	switch o.typ.access {
	case AccessOwner:
		a := o.typ.reg.Authority()
		if a == nil {
			return math.MaxInt
		}
		return a.OwnerLevel(o.OwnerID())
	case AccessChild:
		p, err := o.Parent(ctx)
		if err != nil {
			return math.MaxInt
		}
		return p.ImmLevel(ctx)
	}
	if o.typ.fields["imm_level"] != nil {
		return o.GetInt("imm_level")
	}
	return 0
}

func (o *Object) CanRead(ctx context.Context, p Principal) bool {
	if p == nil {
		return false
	}
	switch o.typ.access {
	case AccessSystem:
		return true
	case AccessOwner:
		return p.PrincipalLevel() >= o.GetInt("read_access")
	case AccessChild:
		parent, err := o.Parent(ctx)
		if err != nil {
			slog.WarnContext(ctx, "checking access of orphaned child", "key", o.Key(), "error", err)
			return o.isSupreme(p)
		}
		return parent.CanRead(ctx, p)
	}
	if o.owner != nil {
		return o.owner.CanRead(ctx, p)
	}
	return true
}

func (o *Object) CanWrite(ctx context.Context, p Principal) bool {
	if p == nil {
		return false
	}
	if o.isSupreme(p) {
		return true
	}
	switch o.typ.access {
	case AccessSystem:
		return p.PrincipalLevel() > o.ImmLevel(ctx)
	case AccessOwner:
		if p.PrincipalID() == o.OwnerID() {
			return true
		}
		if wa := o.GetInt("write_access"); wa != 0 {
			return p.PrincipalLevel() >= wa
		}
		return p.PrincipalLevel() >= o.ImmLevel(ctx)
	case AccessChild:
		parent, err := o.Parent(ctx)
		if err != nil {
			slog.WarnContext(ctx, "checking access of orphaned child", "key", o.Key(), "error", err)
			return false
		}
		return parent.CanWrite(ctx, p)
	}
	if o.owner != nil {
		return o.owner.CanWrite(ctx, p)
	}
	return false
}

// ChangeOwner moves the object from its current owner's owned set to that of
// newOwner. An empty newOwner restores the default owner.
func (o *Object) ChangeOwner(ctx context.Context, newOwner string) error {
	if o.typ.access != AccessOwner {
		return fmt.Errorf("%s objects have no owner", o.typ.name)
	}
	if newOwner == "" {
		newOwner = DefaultOwner
	}
	if err := removeOwned(ctx, o); err != nil {
		return fmt.Errorf("removing from owned set: %w", err)
	}
	o.Set("owner_id", newOwner)
	if err := addOwned(ctx, o); err != nil {
		return fmt.Errorf("adding to owned set: %w", err)
	}
	return nil
}

func (o *Object) isSupreme(p Principal) bool {
	a := o.typ.reg.Authority()
	return a != nil && a.IsSupreme(p)
}
