package dbo

import (
	"context"
	"fmt"
	"testing"
)

// memBackend serves keyed objects from a map.
type memBackend struct {
	objects map[string]*Object
	owned   map[string]map[string]bool
}

func newMemBackend() *memBackend {
	return &memBackend{
		objects: map[string]*Object{},
		owned:   map[string]map[string]bool{},
	}
}

func (b *memBackend) LoadObject(_ context.Context, key string, _ *Type) (*Object, error) {
	o, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return o, nil
}

func (b *memBackend) AddOwned(_ context.Context, ownerID string, key string) error {
	if b.owned[ownerID] == nil {
		b.owned[ownerID] = map[string]bool{}
	}
	b.owned[ownerID][key] = true
	return nil
}

func (b *memBackend) RemoveOwned(_ context.Context, ownerID string, key string) error {
	delete(b.owned[ownerID], key)
	return nil
}

func (b *memBackend) put(o *Object) *Object {
	b.objects[o.Key()] = o
	return o
}

type testPrincipal struct {
	id    string
	level int
}

func (p testPrincipal) PrincipalID() string { return p.id }
func (p testPrincipal) PrincipalLevel() int { return p.level }

type testAuthority struct {
	supreme string
	levels  map[string]int
}

func (a testAuthority) IsSupreme(p Principal) bool {
	return p.PrincipalID() == a.supreme
}

func (a testAuthority) OwnerLevel(ownerID string) int {
	if l, ok := a.levels[ownerID]; ok {
		return l + 1
	}
	return 10000
}

// newTestRegistry defines a small world of types used across the package
// tests.
func newTestRegistry(t *testing.T) (*Registry, *memBackend) {
	t.Helper()

	r := NewRegistry()
	b := newMemBackend()
	r.SetBackend(b)
	r.SetAuthority(testAuthority{
		supreme: "root",
		levels:  map[string]int{"alice": 1000, DefaultOwner: 10000},
	})

	r.MustDefine(TypeDef{
		KeyType: "player",
		Bases:   []string{TraitKeyed, TraitSystem},
		Fields: map[string]*Field{
			"name":      NewField("", Required()),
			"imm_level": NewField(0),
			"titles":    NewField([]string{}),
		},
	})
	r.MustDefine(TypeDef{
		ID:     "builder",
		Fields: map[string]*Field{"build_mode": NewField(false)},
	})
	r.MustDefine(TypeDef{
		ID:     "ghost",
		Fields: map[string]*Field{"visible": NewField(true)},
	})
	r.MustDefine(TypeDef{
		ID: "mobile",
		Fields: map[string]*Field{
			"name":       NewField("", Required()),
			"class_type": NewField("", Required()),
			"level":      NewField(1),
		},
	})
	r.MustDefine(TypeDef{
		KeyType: "item",
		Bases:   []string{TraitKeyed, TraitOwned},
		Fields: map[string]*Field{
			"holder":   NewField(nil, Ref("player")),
			"owner":    LazyField(nil, "player"),
			"tags":     NewField(NewSet()),
			"contents": NewField([]any{}, Ref(Untyped)),
			"guards":   NewField([]any{}, Ref("mobile")),
			"weight":   NewField(1),
		},
	})
	r.MustDefine(TypeDef{
		KeyType: "article",
		Bases:   []string{TraitKeyed, TraitOwned, TraitTemplate},
		Fields: map[string]*Field{
			"title": NewField(""),
		},
	})
	r.MustDefine(TypeDef{
		ID:         "article_inst",
		Bases:      []string{TraitInstance},
		TemplateID: "article",
		Fields: map[string]*Field{
			"title":  TemplateField(""),
			"damage": CopyField(5),
		},
	})

	return r, b
}

func newPlayer(t *testing.T, r *Registry, b *memBackend, id string, name string) *Object {
	t.Helper()

	p := r.MustLookup("player").New()
	if err := p.SetID(id); err != nil {
		t.Fatalf("setting id: %v", err)
	}
	if _, err := p.Hydrate(context.Background(), map[string]any{"name": name}); err != nil {
		t.Fatalf("hydrating player: %v", err)
	}
	return b.put(p)
}

func newArticle(t *testing.T, r *Registry, b *memBackend, id string, dict map[string]any) *Object {
	t.Helper()

	a := r.MustLookup("article").New()
	if err := a.SetID(id); err != nil {
		t.Fatalf("setting id: %v", err)
	}
	if _, err := a.Hydrate(context.Background(), dict); err != nil {
		t.Fatalf("hydrating article: %v", err)
	}
	return b.put(a)
}
