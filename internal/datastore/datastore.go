package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-dbo/internal/storage"
	"github.com/pixil98/go-errors"
)

// Datastore persists objects to a backing store and keeps the identity map:
// while an object is cached every load of its key returns the same *dbo.Object.
type Datastore struct {
	store   storage.Store
	reg     *dbo.Registry
	metrics *Metrics

	cache map[string]*dbo.Object
	mu    sync.Mutex
}

// New returns a datastore over store and installs it as the registry's
// backend.
func New(store storage.Store, reg *dbo.Registry, opts ...DatastoreOpt) *Datastore {
	d := &Datastore{
		store: store,
		reg:   reg,
		cache: map[string]*dbo.Object{},
	}

	for _, opt := range opts {
		opt(d)
	}

	reg.SetBackend(d)
	return d
}

func (d *Datastore) Store() storage.Store    { return d.store }
func (d *Datastore) Registry() *dbo.Registry { return d.reg }

// CreateObject creates and saves a new object of typeID. The object id is
// taken from dict's object_id or drawn from the key type's sequence.
func (d *Datastore) CreateObject(ctx context.Context, typeID string, dict map[string]any) (*dbo.Object, error) {
	t, err := d.reg.Lookup(typeID)
	if err != nil {
		return nil, err
	}
	if !t.Keyed() {
		return nil, fmt.Errorf("creating %s: type has no key type", typeID)
	}

	id := ObjectID(dict["object_id"])
	if id == "" {
		next, err := d.store.NextValue(ctx, t.KeyType())
		if err != nil {
			return nil, fmt.Errorf("allocating id for %s: %w", typeID, err)
		}
		id = strconv.FormatInt(next, 10)
	}

	key := t.KeyType() + ":" + id
	if d.LoadCached(key) != nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, key)
	}
	_, found, err := d.store.GetValue(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", key, err)
	}
	if found {
		return nil, fmt.Errorf("%w: %s", ErrExists, key)
	}

	o := t.New()
	if err := o.SetID(id); err != nil {
		return nil, err
	}
	if _, err := o.Hydrate(ctx, dict); err != nil {
		return nil, err
	}
	if err := o.Created(ctx); err != nil {
		return nil, fmt.Errorf("creating %s: %w", key, err)
	}

	d.cacheObject(o)
	if err := d.SaveObject(ctx, o, true); err != nil {
		d.Evict(key)
		return nil, err
	}

	slog.InfoContext(ctx, "created object", "key", key, "type_id", o.Type().Name())
	return o, nil
}

// LoadObject implements dbo.Backend. It returns the cached object for key or
// loads it from the store. A nil t means the type comes from the record.
func (d *Datastore) LoadObject(ctx context.Context, key string, t *dbo.Type) (*dbo.Object, error) {
	if o := d.LoadCached(key); o != nil {
		d.metrics.cacheHit()
		return o, nil
	}
	d.metrics.cacheMiss()

	dict, err := d.LoadValue(ctx, key)
	if err != nil {
		return nil, err
	}

	t, err = d.recordType(key, t, dict)
	if err != nil {
		return nil, err
	}

	keyType, id, _ := strings.Cut(key, ":")
	if keyType != t.KeyType() {
		return nil, fmt.Errorf("loading %s: type %s has key type %s", key, t.Name(), t.KeyType())
	}

	o := t.New()
	if err := o.SetID(id); err != nil {
		return nil, err
	}

	// Cached before hydration so cyclic references resolve to this object.
	d.cacheObject(o)
	if _, err := o.Hydrate(ctx, dict); err != nil {
		d.Evict(key)
		return nil, fmt.Errorf("hydrating %s: %w", key, err)
	}
	o.MarkSaved()
	d.metrics.loaded(t.KeyType())

	return o, nil
}

// LoadValue returns the stored record at key without building an object.
func (d *Datastore) LoadValue(ctx context.Context, key string) (map[string]any, error) {
	data, found, err := d.store.GetValue(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", dbo.ErrNotFound, key)
	}

	dict, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return dict, nil
}

// LoadByID loads an object of typeID by its object id.
func (d *Datastore) LoadByID(ctx context.Context, typeID string, id string) (*dbo.Object, error) {
	t, err := d.reg.Lookup(typeID)
	if err != nil {
		return nil, err
	}
	return d.LoadObject(ctx, t.KeyType()+":"+id, t)
}

// LoadCached returns the cached object for key without touching the store.
func (d *Datastore) LoadCached(key string) *dbo.Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache[key]
}

// Evict drops key from the identity map. Later loads read from the store.
func (d *Datastore) Evict(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cache, key)
	d.metrics.setCached(len(d.cache))
}

// Cached returns every object in the identity map.
func (d *Datastore) Cached() []*dbo.Object {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*dbo.Object, 0, len(d.cache))
	for _, o := range d.cache {
		out = append(out, o)
	}
	return out
}

// SaveObject writes o to the store together with its set membership, indexes
// and reference bookkeeping.
func (d *Datastore) SaveObject(ctx context.Context, o *dbo.Object, updateTimestamp bool) error {
	key := o.Key()
	if key == "" {
		return fmt.Errorf("saving %s: object has no key", o)
	}
	if o.State() == dbo.StateDeleted {
		return fmt.Errorf("saving %s: %w", key, dbo.ErrDeleted)
	}
	start := time.Now()

	if updateTimestamp && o.Type().Field("dbo_ts") != nil {
		o.Set("dbo_ts", int(time.Now().Unix()))
	}

	var old map[string]any
	if len(o.Type().Indexes()) > 0 {
		data, found, err := d.store.GetValue(ctx, key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", key, err)
		}
		if found {
			old, err = decodeRecord(data)
			if err != nil {
				slog.WarnContext(ctx, "ignoring undecodable stored value", "key", key, "error", err)
			}
		}
	}

	dict, err := d.RecordSave(ctx, o)
	if err != nil {
		return err
	}

	if setKey := o.SetKey(); setKey != "" {
		if err := d.store.AddToSet(ctx, setKey, o.ID()); err != nil {
			return fmt.Errorf("adding %s to %s: %w", key, setKey, err)
		}
	}

	if err := d.updateIndexes(ctx, o, old, dict); err != nil {
		return err
	}

	o.MarkSaved()
	d.metrics.saved(o.KeyType(), time.Since(start))
	slog.DebugContext(ctx, "saved object", "key", key)

	return nil
}

// UpdateObject applies dict to o and saves it.
func (d *Datastore) UpdateObject(ctx context.Context, o *dbo.Object, dict map[string]any) error {
	if err := o.Update(ctx, dict); err != nil {
		return fmt.Errorf("updating %s: %w", o.Key(), err)
	}
	return d.SaveObject(ctx, o, true)
}

// DeleteObject removes o and its children from the store.
func (d *Datastore) DeleteObject(ctx context.Context, o *dbo.Object) error {
	key := o.Key()
	if key == "" {
		return fmt.Errorf("deleting %s: object has no key", o)
	}
	if o.State() == dbo.StateDeleted {
		return fmt.Errorf("deleting %s: %w", key, dbo.ErrDeleted)
	}

	el := errors.NewErrorList()
	for _, ct := range o.Type().ChildrenTypes() {
		children, err := d.Children(ctx, o, ct)
		if err != nil {
			el.Add(err)
			continue
		}
		for _, child := range children {
			el.Add(d.DeleteObject(ctx, child))
		}
	}

	el.Add(o.Deleted(ctx))

	stored, _ := o.ToStorage()
	for _, field := range o.Type().Indexes() {
		if v := indexValue(stored[field]); v != "" {
			el.Add(d.store.DeleteIndex(ctx, indexKey(o.KeyType(), field), v))
		}
	}

	if err := d.store.DeleteValue(ctx, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	if setKey := o.SetKey(); setKey != "" {
		el.Add(d.store.RemoveFromSet(ctx, setKey, o.ID()))
	}
	el.Add(d.RecordDelete(ctx, key))

	d.Evict(key)
	o.MarkDeleted()
	o.Release()
	d.metrics.deleted(o.KeyType())

	slog.InfoContext(ctx, "deleted object", "key", key)
	return el.Err()
}

// DeleteRecord removes a stored record that cannot be loaded as an object,
// together with its membership in setKey and its reference bookkeeping.
func (d *Datastore) DeleteRecord(ctx context.Context, key string, setKey string) error {
	d.Evict(key)

	el := errors.NewErrorList()
	el.Add(d.store.DeleteValue(ctx, key))
	if setKey != "" {
		_, id, _ := strings.Cut(key, ":")
		el.Add(d.store.RemoveFromSet(ctx, setKey, id))
	}
	el.Add(d.RecordDelete(ctx, key))

	slog.WarnContext(ctx, "deleted invalid record", "key", key)
	return el.Err()
}

// LoadObjectSet loads every member of setKey as an object of t. Members whose
// value is gone are skipped.
func (d *Datastore) LoadObjectSet(ctx context.Context, t *dbo.Type, setKey string) ([]*dbo.Object, error) {
	if setKey == "" {
		setKey = t.SetKey()
	}
	ids, err := d.store.SetMembers(ctx, setKey)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", setKey, err)
	}
	t.SortKeys(ids)

	out := make([]*dbo.Object, 0, len(ids))
	for _, id := range ids {
		o, err := d.LoadObject(ctx, t.KeyType()+":"+id, t)
		if err != nil {
			slog.WarnContext(ctx, "skipping set member", "set_key", setKey, "object_id", id, "error", err)
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// ChildKeys returns the full keys of parent's children of childType, ordered
// by the child type's key sort.
func (d *Datastore) ChildKeys(ctx context.Context, parent *dbo.Object, childType string) ([]string, error) {
	ct, err := d.reg.Lookup(childType)
	if err != nil {
		return nil, err
	}
	setKey := dbo.ChildSetKey(parent.KeyType(), ct.KeyType(), parent.ID())
	ids, err := d.store.SetMembers(ctx, setKey)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", setKey, err)
	}
	ct.SortKeys(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ct.KeyType() + ":" + id
	}
	return keys, nil
}

// Children loads parent's children of childType.
func (d *Datastore) Children(ctx context.Context, parent *dbo.Object, childType string) ([]*dbo.Object, error) {
	ct, err := d.reg.Lookup(childType)
	if err != nil {
		return nil, err
	}
	return d.LoadObjectSet(ctx, ct, dbo.ChildSetKey(parent.KeyType(), ct.KeyType(), parent.ID()))
}

// AddOwned implements dbo.Backend.
func (d *Datastore) AddOwned(ctx context.Context, ownerID string, key string) error {
	if err := d.store.AddToSet(ctx, ownedKey(ownerID), key); err != nil {
		return err
	}
	return d.store.AddToSet(ctx, metaOwnedKeys, ownerID)
}

// RemoveOwned implements dbo.Backend.
func (d *Datastore) RemoveOwned(ctx context.Context, ownerID string, key string) error {
	return d.store.RemoveFromSet(ctx, ownedKey(ownerID), key)
}

// Owned lists the keys owned by ownerID.
func (d *Datastore) Owned(ctx context.Context, ownerID string) ([]string, error) {
	return d.store.SetMembers(ctx, ownedKey(ownerID))
}

// Owners lists every owner that has held objects.
func (d *Datastore) Owners(ctx context.Context) ([]string, error) {
	return d.store.SetMembers(ctx, metaOwnedKeys)
}

func (d *Datastore) cacheObject(o *dbo.Object) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[o.Key()] = o
	d.metrics.setCached(len(d.cache))
}

// recordType picks the concrete type of a stored record: its type_id, else
// the requested type, else the type named by the key prefix. Stored mixins
// compose onto the result.
func (d *Datastore) recordType(key string, t *dbo.Type, dict map[string]any) (*dbo.Type, error) {
	typeID, _ := dict["type_id"].(string)
	if typeID == "" && t != nil {
		typeID = t.ID()
	}
	if typeID == "" {
		typeID, _, _ = strings.Cut(key, ":")
	}

	base, err := d.reg.Lookup(typeID)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}

	raw, _ := dict["mixins"].([]any)
	if len(raw) == 0 {
		return base, nil
	}
	mixins := make([]string, 0, len(raw))
	for _, m := range raw {
		s, ok := m.(string)
		if !ok {
			return nil, fmt.Errorf("loading %s: invalid mixin %v", key, m)
		}
		if _, err := d.reg.Lookup(s); err != nil {
			return nil, fmt.Errorf("loading %s: %w: %s", key, dbo.ErrUnknownMixin, s)
		}
		mixins = append(mixins, s)
	}
	return d.reg.Compose(base.ID(), mixins), nil
}

// ObjectID renders a client or stored object id as a string.
func ObjectID(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// decodeRecord parses a stored JSON object, keeping integral numbers as ints.
func decodeRecord(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var dict map[string]any
	if err := dec.Decode(&dict); err != nil {
		return nil, err
	}
	if dict == nil {
		return nil, fmt.Errorf("stored value is not an object")
	}
	return numbers(dict).(map[string]any), nil
}

func numbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i, e := range t {
			t[i] = numbers(e)
		}
	case map[string]any:
		for k, e := range t {
			t[k] = numbers(e)
		}
	}
	return v
}
