package datastore

import (
	"cmp"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-dbo/internal/storage"
)

// roomSort orders room ids by their numeric child id.
func roomSort(a, b string) int {
	return cmp.Compare(roomNumber(a), roomNumber(b))
}

func roomNumber(id string) int {
	_, n, _ := strings.Cut(id, ":")
	i, _ := strconv.Atoi(n)
	return i
}

func newTestDatastore(t *testing.T) (*Datastore, *storage.MemoryStore) {
	t.Helper()

	reg := dbo.NewRegistry()
	reg.MustDefine(dbo.TypeDef{
		KeyType: "player",
		SetKey:  "players",
		Indexes: []string{"name"},
		Bases:   []string{dbo.TraitKeyed, dbo.TraitSystem},
		Fields: map[string]*dbo.Field{
			"name":      dbo.NewField("", dbo.Required()),
			"imm_level": dbo.NewField(0),
		},
	})
	reg.MustDefine(dbo.TypeDef{
		ID:     "builder",
		Fields: map[string]*dbo.Field{"build_mode": dbo.NewField(false)},
	})
	reg.MustDefine(dbo.TypeDef{
		KeyType: "item",
		SetKey:  "items",
		Bases:   []string{dbo.TraitKeyed, dbo.TraitOwned},
		Fields: map[string]*dbo.Field{
			"holder":   dbo.NewField(nil, dbo.Ref("player")),
			"contents": dbo.NewField([]any{}, dbo.Ref(dbo.Untyped)),
			"weight":   dbo.NewField(1),
		},
	})
	reg.MustDefine(dbo.TypeDef{
		KeyType:       "area",
		SetKey:        "areas",
		ChildrenTypes: []string{"room"},
		Bases:         []string{dbo.TraitParent},
		Fields: map[string]*dbo.Field{
			"name": dbo.NewField(""),
		},
	})
	reg.MustDefine(dbo.TypeDef{
		KeyType:    "room",
		ParentType: "area",
		KeySort:    roomSort,
		Bases:      []string{dbo.TraitChild},
		Fields: map[string]*dbo.Field{
			"title": dbo.NewField(""),
			"exits": dbo.NewField([]any{}, dbo.Ref("room")),
		},
	})

	store := storage.NewMemoryStore()
	return New(store, reg), store
}

func mustCreate(t *testing.T, d *Datastore, typeID string, dict map[string]any) *dbo.Object {
	t.Helper()

	o, err := d.CreateObject(context.Background(), typeID, dict)
	if err != nil {
		t.Fatalf("creating %s: %v", typeID, err)
	}
	return o
}
