package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixil98/go-dbo/internal/datastore"
	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-dbo/internal/model"
	"github.com/pixil98/go-dbo/internal/perm"
)

// Ops are maintenance operations that repair derived data from the stored
// objects. Each returns a short report for the operator.
type Ops struct {
	ds    *datastore.Datastore
	perms *perm.Perms
}

func NewOps(ds *datastore.Datastore, perms *perm.Perms) *Ops {
	return &Ops{ds: ds, perms: perms}
}

// RebuildIndexes rebuilds the secondary indexes of typeID.
func (a *Ops) RebuildIndexes(ctx context.Context, typeID string) (string, error) {
	t, err := a.ds.Registry().Lookup(typeID)
	if err != nil {
		return "", err
	}
	if len(t.Indexes()) == 0 {
		return "", fmt.Errorf("type %s has no indexes", typeID)
	}

	n, err := a.ds.RebuildIndexes(ctx, t)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %s objects indexed", n, typeID), nil
}

// PurgeInvalid finds stored objects that are missing or no longer load. They
// are only removed when confirm is set.
func (a *Ops) PurgeInvalid(ctx context.Context, confirm bool) (string, error) {
	start := time.Now()
	total, purged := 0, 0

	var purge func(t *dbo.Type, setKey string) error
	purge = func(t *dbo.Type, setKey string) error {
		ids, err := a.ds.Store().SetMembers(ctx, setKey)
		if err != nil {
			return err
		}

		for _, id := range ids {
			total++
			key := t.KeyType() + ":" + id

			o, err := a.ds.LoadObject(ctx, key, t)
			if errors.Is(err, dbo.ErrNotFound) {
				purged++
				slog.WarnContext(ctx, "missing value for set member", "set_key", setKey, "key", key)
				if confirm {
					if err := a.ds.Store().RemoveFromSet(ctx, setKey, id); err != nil {
						return err
					}
				}
				continue
			}
			if err != nil {
				purged++
				slog.WarnContext(ctx, "invalid stored object", "key", key, "error", err)
				if confirm {
					if err := a.ds.DeleteRecord(ctx, key, setKey); err != nil {
						return err
					}
				}
				continue
			}

			for _, childType := range t.ChildrenTypes() {
				ct, err := a.ds.Registry().Lookup(childType)
				if err != nil {
					return err
				}
				if err := purge(ct, dbo.ChildSetKey(t.KeyType(), ct.KeyType(), o.ID())); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, t := range topLevelTypes(a.ds.Registry()) {
		if err := purge(t, t.SetKey()); err != nil {
			return "", fmt.Errorf("purging %s: %w", t.Name(), err)
		}
	}

	verb := "found"
	if confirm {
		verb = "purged"
	}
	return fmt.Sprintf("%d of %d objects %s in %.3f seconds", purged, total, verb, time.Since(start).Seconds()), nil
}

// RebuildOwnerRefs rebuilds every owned set from the owner ids of the stored
// objects. Objects whose owner is not an immortal revert to the default
// owner.
func (a *Ops) RebuildOwnerRefs(ctx context.Context) (string, error) {
	if err := a.ds.ClearOwned(ctx); err != nil {
		return "", err
	}

	count, reset := 0, 0
	for _, t := range a.ds.Registry().KeyedTypes() {
		if t.Access() != dbo.AccessOwner || t.SetKey() == "" {
			continue
		}
		objs, err := a.ds.LoadObjectSet(ctx, t, "")
		if err != nil {
			return "", err
		}

		for _, o := range objs {
			count++
			if _, ok := a.perms.Immortal(o.OwnerID()); ok || o.OwnerID() == dbo.DefaultOwner {
				if err := a.ds.AddOwned(ctx, o.OwnerID(), o.Key()); err != nil {
					return "", err
				}
				continue
			}

			slog.WarnContext(ctx, "owner not found, resetting to default", "owner_id", o.OwnerID(), "key", o.Key(), "default", dbo.DefaultOwner)
			reset++
			if err := o.ChangeOwner(ctx, ""); err != nil {
				return "", err
			}
			if err := a.ds.SaveObject(ctx, o, false); err != nil {
				return "", err
			}
		}
	}
	return fmt.Sprintf("%d owned objects, %d reset to %s", count, reset, dbo.DefaultOwner), nil
}

// RebuildImmortalList rebuilds the immortals table from the stored players.
func (a *Ops) RebuildImmortalList(ctx context.Context) (string, error) {
	if err := a.perms.ResetImmortals(ctx); err != nil {
		return "", err
	}

	t, err := a.ds.Registry().Lookup(model.TypePlayer)
	if err != nil {
		return "", err
	}
	players, err := a.ds.LoadObjectSet(ctx, t, "")
	if err != nil {
		return "", err
	}

	count := 0
	for _, p := range players {
		if level := p.GetInt("imm_level"); level > 0 {
			if err := a.perms.UpdateImmortal(ctx, p.ID(), level); err != nil {
				return "", err
			}
			count++
		}
	}
	return fmt.Sprintf("%d immortals", count), nil
}

// RebuildAllRefs clears the reference graph and saves every stored object
// again, recording its references from scratch.
func (a *Ops) RebuildAllRefs(ctx context.Context) (string, error) {
	start := time.Now()
	if err := a.ds.ClearRefs(ctx); err != nil {
		return "", err
	}

	updated := 0
	var update func(t *dbo.Type, setKey string) error
	update = func(t *dbo.Type, setKey string) error {
		objs, err := a.ds.LoadObjectSet(ctx, t, setKey)
		if err != nil {
			return err
		}
		for _, o := range objs {
			if err := a.ds.SaveObject(ctx, o, false); err != nil {
				return err
			}
			updated++
			for _, childType := range t.ChildrenTypes() {
				ct, err := a.ds.Registry().Lookup(childType)
				if err != nil {
					return err
				}
				if err := update(ct, dbo.ChildSetKey(t.KeyType(), ct.KeyType(), o.ID())); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, t := range topLevelTypes(a.ds.Registry()) {
		if err := update(t, ""); err != nil {
			return "", fmt.Errorf("updating %s: %w", t.Name(), err)
		}
	}
	return fmt.Sprintf("%d objects updated in %.3f seconds", updated, time.Since(start).Seconds()), nil
}

// Describe loads the object stored at key and renders it for an operator.
func (a *Ops) Describe(ctx context.Context, key string) (string, error) {
	o, err := a.ds.LoadObject(ctx, key, nil)
	if err != nil {
		return "", err
	}
	return o.Describe(), nil
}

// topLevelTypes are the keyed types stored in their own set rather than
// under a parent.
func topLevelTypes(reg *dbo.Registry) []*dbo.Type {
	var out []*dbo.Type
	for _, t := range reg.KeyedTypes() {
		if t.ParentType() == "" && t.SetKey() != "" {
			out = append(out, t)
		}
	}
	return out
}
