package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-dbo/internal/storage"
)

// ImportAssets stores every asset below dir. Existing objects are kept
// unless overwrite is set. Records are written first and then loaded and
// saved so that references between imported objects resolve.
func (a *Ops) ImportAssets(ctx context.Context, dir string, overwrite bool) (string, error) {
	records, err := storage.ReadAssets[storage.Record](dir)
	if err != nil {
		return "", fmt.Errorf("reading assets: %w", err)
	}

	var imported []storage.Identifier
	skipped := 0
	for _, id := range slices.Sorted(maps.Keys(records)) {
		key := id.String()
		_, found, err := a.ds.Store().GetValue(ctx, key)
		if err != nil {
			return "", err
		}
		if found && !overwrite {
			skipped++
			continue
		}
		a.ds.Evict(key)

		data, err := json.Marshal(records[id])
		if err != nil {
			return "", fmt.Errorf("encoding %s: %w", key, err)
		}
		if err := a.ds.Store().SetValue(ctx, key, data); err != nil {
			return "", err
		}
		imported = append(imported, id)
	}

	for _, id := range imported {
		o, err := a.ds.LoadObject(ctx, id.String(), nil)
		if err != nil {
			return "", fmt.Errorf("loading %s: %w", id, err)
		}
		if err := o.Created(ctx); err != nil {
			return "", fmt.Errorf("registering %s: %w", id, err)
		}
		if err := a.ds.SaveObject(ctx, o, false); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%d objects imported, %d existing skipped", len(imported), skipped), nil
}

// ExportAssets writes every stored object to dir, one asset per object.
func (a *Ops) ExportAssets(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	count := 0
	var export func(t *dbo.Type, setKey string) error
	export = func(t *dbo.Type, setKey string) error {
		objs, err := a.ds.LoadObjectSet(ctx, t, setKey)
		if err != nil {
			return err
		}
		for _, o := range objs {
			dict, err := a.ds.LoadValue(ctx, o.Key())
			if err != nil {
				return err
			}
			if err := storage.WriteAsset(dir, storage.Identifier(o.Key()), storage.Record(dict)); err != nil {
				return fmt.Errorf("writing %s: %w", o.Key(), err)
			}
			count++

			for _, childType := range t.ChildrenTypes() {
				ct, err := a.ds.Registry().Lookup(childType)
				if err != nil {
					return err
				}
				if err := export(ct, dbo.ChildSetKey(t.KeyType(), ct.KeyType(), o.ID())); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, t := range topLevelTypes(a.ds.Registry()) {
		if err := export(t, ""); err != nil {
			return "", fmt.Errorf("exporting %s: %w", t.Name(), err)
		}
	}
	return fmt.Sprintf("%d objects exported to %s", count, dir), nil
}
