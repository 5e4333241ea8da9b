package dbo

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Backend loads independently stored objects on behalf of reference fields
// and keeps owner bookkeeping for owned objects.
type Backend interface {
	// LoadObject returns the object stored at key, or ErrNotFound. A nil type
	// means the type is read from the stored record.
	LoadObject(ctx context.Context, key string, t *Type) (*Object, error)
	AddOwned(ctx context.Context, ownerID string, key string) error
	RemoveOwned(ctx context.Context, ownerID string, key string) error
}

// Principal is an acting user for authorization checks.
type Principal interface {
	PrincipalID() string
	PrincipalLevel() int
}

// Authority answers the privilege questions the access model depends on.
type Authority interface {
	IsSupreme(p Principal) bool
	// OwnerLevel is the level a principal needs to write objects owned by ownerID.
	OwnerLevel(ownerID string) int
}

// Registry maps type ids to types and memoizes composed mixin types.
type Registry struct {
	types         map[string]*Type
	mixed         map[string]*Type
	instanceTypes map[string]*Type

	backend   Backend
	authority Authority

	mu sync.RWMutex
}

// NewRegistry returns a registry with the core traits defined.
func NewRegistry() *Registry {
	r := &Registry{
		types:         map[string]*Type{},
		mixed:         map[string]*Type{},
		instanceTypes: map[string]*Type{},
	}
	defineCore(r)
	return r
}

func (r *Registry) SetBackend(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend = b
}

func (r *Registry) Backend() Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backend
}

func (r *Registry) SetAuthority(a Authority) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authority = a
}

func (r *Registry) Authority() Authority {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.authority
}

// Register maps typeID to t, replacing any earlier registration.
func (r *Registry) Register(typeID string, t *Type) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.types[typeID]; ok && old != t {
		slog.Info("overriding registered type", "type_id", typeID, "old", old.name, "new", t.name)
	}
	r.types[typeID] = t
}

func (r *Registry) Lookup(typeID string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[typeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}
	return t, nil
}

// MustLookup is Lookup for type ids that are known at build time.
func (r *Registry) MustLookup(typeID string) *Type {
	t, err := r.Lookup(typeID)
	if err != nil {
		panic(err)
	}
	return t
}

// Define builds and registers a type. The merged field table is computed
// once here.
func (r *Registry) Define(def TypeDef) (*Type, error) {
	id := def.ID
	if id == "" {
		id = def.KeyType
	}
	if err := validateDef(id, def); err != nil {
		return nil, fmt.Errorf("defining type %q: %w", id, err)
	}

	bases := make([]*Type, 0, len(def.Bases))
	for _, b := range def.Bases {
		bt, err := r.Lookup(b)
		if err != nil {
			return nil, fmt.Errorf("defining type %q: %w", id, err)
		}
		bases = append(bases, bt)
	}

	t := r.build(id, id, bases, def)
	r.Register(id, t)
	t.runMixinInits()

	return t, nil
}

func (r *Registry) MustDefine(def TypeDef) *Type {
	t, err := r.Define(def)
	if err != nil {
		panic(err)
	}
	return t
}

// CompositionKey is the canonical name of typeID combined with mixins. It
// does not depend on the order of mixins.
func CompositionKey(typeID string, mixins []string) string {
	ids := []string{typeID}
	for _, m := range mixins {
		if !slices.Contains(ids, m) {
			ids = append(ids, m)
		}
	}
	slices.Sort(ids)
	return strings.Join(ids, "+")
}

// Compose returns the type combining typeID with mixins, building it on first
// use. The result is also registered under its composition key. Unknown ids
// are a programming error and panic.
func (r *Registry) Compose(typeID string, mixins []string) *Type {
	base := r.MustLookup(typeID)
	if len(mixins) == 0 {
		return base
	}

	key := CompositionKey(typeID, mixins)

	r.mu.RLock()
	t, ok := r.mixed[key]
	r.mu.RUnlock()
	if ok {
		return t
	}

	var names []string
	for _, m := range mixins {
		if m != typeID && !slices.Contains(names, m) {
			names = append(names, m)
		}
	}
	slices.Sort(names)
	if len(names) == 0 {
		return base
	}

	bases := []*Type{base}
	for _, m := range names {
		mt, err := r.Lookup(m)
		if err != nil {
			panic(fmt.Errorf("%w: %s", ErrUnknownMixin, m))
		}
		bases = append(bases, mt)
	}

	r.mu.Lock()
	if t, ok := r.mixed[key]; ok {
		r.mu.Unlock()
		return t
	}
	t = r.build(base.id, key, bases, TypeDef{})
	t.mixins = names
	r.mixed[key] = t
	r.types[key] = t
	r.mu.Unlock()

	t.runMixinInits()
	return t
}

// SetInstanceType records the type instances of templateID are created as.
func (r *Registry) SetInstanceType(templateID string, t *Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instanceTypes[templateID] = t
}

func (r *Registry) InstanceType(templateID string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.instanceTypes[templateID]
	return t, ok
}

// Implementors returns the defined types other than baseID that include
// baseID in their chain, sorted by id. Composed types are left out.
func (r *Registry) Implementors(baseID string) []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Type
	for id, t := range r.types {
		if id != baseID && t.name == id && len(t.mixins) == 0 && t.Is(baseID) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b *Type) int { return strings.Compare(a.name, b.name) })
	return out
}

// KeyedTypes returns the registered type of every key type.
func (r *Registry) KeyedTypes() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Type
	for id, t := range r.types {
		if t.Keyed() && id == t.keyType {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b *Type) int { return strings.Compare(a.name, b.name) })
	return out
}
