package model

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pixil98/go-dbo/internal/datastore"
	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-dbo/internal/storage"
	"github.com/pixil98/go-testutil"
)

func newTestDatastore(t *testing.T) *datastore.Datastore {
	t.Helper()
	reg := dbo.NewRegistry()
	Register(reg)
	return datastore.New(storage.NewMemoryStore(), reg)
}

func TestNumericKeySort(t *testing.T) {
	tests := map[string]struct {
		a   string
		b   string
		exp int
	}{
		"numeric order":    {a: "keep:2", b: "keep:10", exp: -1},
		"equal":            {a: "keep:3", b: "keep:3", exp: 0},
		"numeric first":    {a: "keep:9", b: "keep:hall", exp: -1},
		"named after":      {a: "keep:hall", b: "keep:1", exp: 1},
		"names alphabetic": {a: "keep:attic", b: "keep:hall", exp: -1},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "compare", NumericKeySort(tt.a, tt.b), tt.exp)
		})
	}
}

func TestUser_Passwords(t *testing.T) {
	ds := newTestDatastore(t)
	ctx := context.Background()

	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	user, err := ds.CreateObject(ctx, TypeUser, map[string]any{"user_name": "bob", "password": hash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "correct password", CheckPassword(user, "hunter2"), true)
	testutil.AssertEqual(t, "wrong password", CheckPassword(user, "hunter3"), false)
	testutil.AssertEqual(t, "transfer password", user.ToTransfer()["password"], any(""))

	found, err := ds.GetIndexed(ctx, TypeUser, "user_name", "BOB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "indexed user", found, user)
}

func TestUserImmLevel(t *testing.T) {
	ds := newTestDatastore(t)
	ctx := context.Background()

	user, err := ds.CreateObject(ctx, TypeUser, map[string]any{"player_ids": []any{"bob", "zed", "amy"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	levels := map[string]int{"bob": 100, "amy": 1000}
	immortal := func(id string) (int, bool) {
		l, ok := levels[id]
		return l, ok
	}

	testutil.AssertEqual(t, "level", UserImmLevel(user, immortal), 1000)
	if diff := cmp.Diff([]string{"bob", "zed", "amy"}, PlayerIDs(user)); diff != "" {
		t.Errorf("player ids (-exp +got):\n%s", diff)
	}

	player, err := ds.CreateObject(ctx, TypePlayer, map[string]any{"object_id": "bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "name", PlayerName(player), "Bob")
}

func TestConfig_SectionValues(t *testing.T) {
	ds := newTestDatastore(t)
	ctx := context.Background()

	cfg, err := CreateConfig(ctx, ds, "lampost", map[string][]map[string]any{
		"server": {
			{"name": "port", "value": 2500},
			{"name": "host", "value": "localhost"},
			{"name": "port", "value": 2600},
		},
		"game": {
			{"name": "motd", "value": "Welcome"},
		},
	}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	values, err := SectionValues(ctx, ds, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exp := map[string]any{
		"server:port": 2600,
		"server:host": "localhost",
		"game:motd":   "Welcome",
	}
	if diff := cmp.Diff(exp, values); diff != "" {
		t.Errorf("values (-exp +got):\n%s", diff)
	}

	if err := UpdateValue(ctx, ds, cfg, "game", "motd", "Go away"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ds.Evict("c_sect:lampost:game")
	values, err = SectionValues(ctx, ds, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "updated motd", values["game:motd"], any("Go away"))

	sect, err := ds.LoadByID(ctx, TypeSection, "lampost:game")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "default kept", settings(sect)[0].Get("default"), any("Welcome"))

	err = UpdateValue(ctx, ds, cfg, "game", "missing", 1)
	testutil.AssertErrorContains(t, err, "no setting found for game:missing")
}

func TestWorld_RoomArticles(t *testing.T) {
	ds := newTestDatastore(t)
	ctx := context.Background()

	if _, err := ds.CreateObject(ctx, TypeArea, map[string]any{"object_id": "keep", "name": "The Keep"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sword, err := ds.CreateObject(ctx, TypeArticle, map[string]any{"object_id": "sword", "title": "a sword"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ds.CreateObject(ctx, TypeRoom, map[string]any{"object_id": "keep:2", "title": "Armory"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = ds.CreateObject(ctx, TypeRoom, map[string]any{
		"object_id": "keep:1",
		"title":     "Gate",
		"exits":     []any{map[string]any{"direction": "north", "destination": "keep:2"}},
		"articles":  []any{map[string]any{"template_key": "article:sword", "weight": 3}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	holders, err := ds.Holders(ctx, "room:keep:2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"room:keep:1"}, holders); diff != "" {
		t.Errorf("holders (-exp +got):\n%s", diff)
	}

	gate, err := ds.LoadByID(ctx, TypeRoom, "keep:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	articles := gate.GetList("articles")
	if len(articles) != 1 {
		t.Fatalf("expected one article, got %d", len(articles))
	}
	inst := articles[0].(*dbo.Object)
	testutil.AssertEqual(t, "instance title", inst.GetString("title"), "a sword")
	testutil.AssertEqual(t, "instance weight", inst.GetInt("weight"), 3)
	testutil.AssertEqual(t, "instances", len(sword.Instances()), 1)

	area, err := ds.LoadByID(ctx, TypeArea, "keep")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys, err := ds.ChildKeys(ctx, area, TypeRoom)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"room:keep:1", "room:keep:2"}, keys); diff != "" {
		t.Errorf("child keys (-exp +got):\n%s", diff)
	}
}
