package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-errors"
)

const (
	metaOwnedKeys = "meta:owned_keys"
	metaRefKeys   = "meta:ref_keys"
)

func holdersKey(key string) string { return key + ":holders" }
func refsKey(key string) string    { return key + ":refs" }
func ownedKey(owner string) string { return "owned:" + owner }

// RecordSave writes the stored form of o and brings the reference graph in
// line with it: o's key is added to the holders of every newly referenced
// key and removed from the holders of every key it no longer references.
func (d *Datastore) RecordSave(ctx context.Context, o *dbo.Object) (map[string]any, error) {
	key := o.Key()
	dict, refs := o.ToStorage()

	data, err := json.Marshal(dict)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := d.store.SetValue(ctx, key, data); err != nil {
		return nil, fmt.Errorf("writing %s: %w", key, err)
	}

	old, err := d.store.SetMembers(ctx, refsKey(key))
	if err != nil {
		return nil, fmt.Errorf("reading refs of %s: %w", key, err)
	}

	el := errors.NewErrorList()
	for _, ref := range refs {
		if slices.Contains(old, ref) {
			continue
		}
		el.Add(d.store.AddToSet(ctx, holdersKey(ref), key))
		el.Add(d.store.AddToSet(ctx, refsKey(key), ref))
	}
	for _, ref := range old {
		if slices.Contains(refs, ref) {
			continue
		}
		el.Add(d.store.RemoveFromSet(ctx, holdersKey(ref), key))
		el.Add(d.store.RemoveFromSet(ctx, refsKey(key), ref))
	}
	if len(refs) > 0 {
		el.Add(d.store.AddToSet(ctx, metaRefKeys, key))
	}
	if err := el.Err(); err != nil {
		return nil, fmt.Errorf("updating refs of %s: %w", key, err)
	}

	return dict, nil
}

// RecordDelete drops key from the holders of everything it referenced and
// deletes its own refs and holders sets.
func (d *Datastore) RecordDelete(ctx context.Context, key string) error {
	refs, err := d.store.SetMembers(ctx, refsKey(key))
	if err != nil {
		return fmt.Errorf("reading refs of %s: %w", key, err)
	}

	el := errors.NewErrorList()
	for _, ref := range refs {
		el.Add(d.store.RemoveFromSet(ctx, holdersKey(ref), key))
	}
	el.Add(d.store.DeleteKey(ctx, refsKey(key)))
	el.Add(d.store.DeleteKey(ctx, holdersKey(key)))
	el.Add(d.store.RemoveFromSet(ctx, metaRefKeys, key))
	return el.Err()
}

// Refs returns the keys key references, sorted.
func (d *Datastore) Refs(ctx context.Context, key string) ([]string, error) {
	refs, err := d.store.SetMembers(ctx, refsKey(key))
	if err != nil {
		return nil, err
	}
	slices.Sort(refs)
	return refs, nil
}

// Holders returns the keys of the objects referencing key, sorted.
func (d *Datastore) Holders(ctx context.Context, key string) ([]string, error) {
	holders, err := d.store.SetMembers(ctx, holdersKey(key))
	if err != nil {
		return nil, err
	}
	slices.Sort(holders)
	return holders, nil
}

// AllHolders returns the direct holders of key and, for degrees above zero,
// that many further levels of their holders. key itself is never included.
func (d *Datastore) AllHolders(ctx context.Context, key string, degrees int) ([]string, error) {
	seen := map[string]bool{}
	frontier := []string{key}

	for depth := 0; depth <= degrees && len(frontier) > 0; depth++ {
		var next []string
		for _, k := range frontier {
			holders, err := d.store.SetMembers(ctx, holdersKey(k))
			if err != nil {
				return nil, fmt.Errorf("reading holders of %s: %w", k, err)
			}
			for _, h := range holders {
				if h == key || seen[h] {
					continue
				}
				seen[h] = true
				next = append(next, h)
			}
		}
		frontier = next
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	slices.Sort(out)
	return out, nil
}

// ReloadHolders refreshes each holder from the stored form of what it
// references and saves it again. fn, when set, is called with every holder
// that was saved.
func (d *Datastore) ReloadHolders(ctx context.Context, holders []string, fn func(*dbo.Object)) error {
	el := errors.NewErrorList()
	for _, key := range holders {
		holder := d.LoadCached(key)
		if holder != nil {
			if err := holder.Reload(ctx); err != nil {
				el.Add(fmt.Errorf("reloading %s: %w", key, err))
				continue
			}
		} else {
			var err error
			holder, err = d.LoadObject(ctx, key, nil)
			if err != nil {
				slog.WarnContext(ctx, "unable to load holder", "key", key, "error", err)
				continue
			}
		}

		if err := d.SaveObject(ctx, holder, false); err != nil {
			el.Add(err)
			continue
		}
		if fn != nil {
			fn(holder)
		}
	}
	return el.Err()
}

// ClearRefs removes every refs and holders set the datastore has recorded.
func (d *Datastore) ClearRefs(ctx context.Context) error {
	keys, err := d.store.SetMembers(ctx, metaRefKeys)
	if err != nil {
		return err
	}

	el := errors.NewErrorList()
	for _, key := range keys {
		refs, err := d.store.SetMembers(ctx, refsKey(key))
		if err != nil {
			el.Add(err)
			continue
		}
		for _, ref := range refs {
			el.Add(d.store.DeleteKey(ctx, holdersKey(ref)))
		}
		el.Add(d.store.DeleteKey(ctx, refsKey(key)))
	}
	el.Add(d.store.DeleteKey(ctx, metaRefKeys))
	return el.Err()
}

// ClearOwned removes every owned set the datastore has recorded.
func (d *Datastore) ClearOwned(ctx context.Context) error {
	owners, err := d.store.SetMembers(ctx, metaOwnedKeys)
	if err != nil {
		return err
	}

	el := errors.NewErrorList()
	for _, owner := range owners {
		el.Add(d.store.DeleteKey(ctx, ownedKey(owner)))
	}
	el.Add(d.store.DeleteKey(ctx, metaOwnedKeys))
	return el.Err()
}
