package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-errors"
	"golang.org/x/text/cases"
)

func indexKey(keyType string, field string) string {
	return "ix:" + keyType + ":" + field
}

// indexValue is the lookup form of an indexed field value. Strings are case
// folded so lookups ignore case. Empty values are not indexed.
func indexValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return cases.Fold().String(t)
	default:
		return fmt.Sprint(t)
	}
}

func (d *Datastore) updateIndexes(ctx context.Context, o *dbo.Object, old map[string]any, current map[string]any) error {
	el := errors.NewErrorList()
	for _, field := range o.Type().Indexes() {
		ix := indexKey(o.KeyType(), field)
		prev, next := indexValue(old[field]), indexValue(current[field])
		if prev != "" && prev != next {
			el.Add(d.store.DeleteIndex(ctx, ix, prev))
		}
		if next != "" {
			el.Add(d.store.SetIndex(ctx, ix, next, o.ID()))
		}
	}
	if err := el.Err(); err != nil {
		return fmt.Errorf("updating indexes of %s: %w", o.Key(), err)
	}
	return nil
}

// GetIndexed loads the object of typeID whose indexed field holds value.
func (d *Datastore) GetIndexed(ctx context.Context, typeID string, field string, value string) (*dbo.Object, error) {
	t, err := d.reg.Lookup(typeID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(t.Indexes(), field) {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotIndex, typeID, field)
	}

	id, found, err := d.store.GetIndex(ctx, indexKey(t.KeyType(), field), indexValue(value))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s %s=%s", dbo.ErrNotFound, typeID, field, value)
	}
	return d.LoadObject(ctx, t.KeyType()+":"+id, t)
}

// RebuildIndexes clears the indexes of t and rebuilds them from every stored
// member of its set.
func (d *Datastore) RebuildIndexes(ctx context.Context, t *dbo.Type) (int, error) {
	el := errors.NewErrorList()
	for _, field := range t.Indexes() {
		el.Add(d.store.DeleteKey(ctx, indexKey(t.KeyType(), field)))
	}
	if err := el.Err(); err != nil {
		return 0, err
	}

	ids, err := d.store.SetMembers(ctx, t.SetKey())
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, id := range ids {
		dict, err := d.LoadValue(ctx, t.KeyType()+":"+id)
		if err != nil {
			slog.WarnContext(ctx, "missing set member", "set_key", t.SetKey(), "object_id", id, "error", err)
			continue
		}
		for _, field := range t.Indexes() {
			if v := indexValue(dict[field]); v != "" {
				el.Add(d.store.SetIndex(ctx, indexKey(t.KeyType(), field), v, id))
			}
		}
		indexed++
	}
	return indexed, el.Err()
}
