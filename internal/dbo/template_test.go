package dbo

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pixil98/go-testutil"
)

func TestTemplate_CopyFieldDelegation(t *testing.T) {
	r, b := newTestRegistry(t)
	ctx := context.Background()
	sword := newArticle(t, r, b, "sword", map[string]any{"title": "Sword"})

	inst, err := sword.CreateInstance(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "template key", inst.TemplateKey(), "article:sword")
	testutil.AssertEqual(t, "initial damage", inst.GetInt("damage"), 5)

	sword.Set("damage", 7)
	testutil.AssertEqual(t, "live damage", inst.GetInt("damage"), 7)
	stored, refs := inst.ToStorage()
	if diff := cmp.Diff(map[string]any{"template_key": "article:sword"}, stored); diff != "" {
		t.Errorf("unwritten copy field should be elided (-exp +got):\n%s", diff)
	}
	testutil.AssertEqual(t, "refs", len(refs), 0)

	inst.Set("damage", 10)
	sword.Set("damage", 5)
	testutil.AssertEqual(t, "independent damage", inst.GetInt("damage"), 10)
	stored, _ = inst.ToStorage()
	testutil.AssertEqual(t, "stored damage", stored["damage"], any(10))

	sword.Set("damage", 10)
	stored, _ = inst.ToStorage()
	if _, ok := stored["damage"]; ok {
		t.Error("expected damage to be re-elided once it equals the template")
	}
}

func TestTemplate_CopyFieldKeepsStaticDefault(t *testing.T) {
	r, b := newTestRegistry(t)
	ctx := context.Background()
	sword := newArticle(t, r, b, "sword", map[string]any{"title": "Sword", "damage": 7})

	inst, err := sword.CreateInstance(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inst.Set("damage", 5)

	stored, _ := inst.ToStorage()
	testutil.AssertEqual(t, "stored damage", stored["damage"], any(5))

	if err := inst.Reload(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "damage after reload", inst.GetInt("damage"), 5)

	sword.Set("damage", 5)
	stored, _ = inst.ToStorage()
	if _, ok := stored["damage"]; ok {
		t.Error("expected damage to be elided once the template matches")
	}
}

func TestTemplate_TemplateFieldReadOnly(t *testing.T) {
	r, b := newTestRegistry(t)
	ctx := context.Background()
	sword := newArticle(t, r, b, "sword", map[string]any{"title": "Sword"})

	inst, err := sword.CreateInstance(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inst.Set("title", "Spoon")
	testutil.AssertEqual(t, "title", inst.GetString("title"), "Sword")

	sword.Set("title", "Blade")
	testutil.AssertEqual(t, "title after edit", inst.GetString("title"), "Blade")
}

func TestTemplate_InstanceFieldsAddedToTemplate(t *testing.T) {
	r, _ := newTestRegistry(t)

	tmpl := r.MustLookup("article")
	f := tmpl.Field("damage")
	if f == nil {
		t.Fatal("expected template to gain the damage field")
	}
	testutil.AssertEqual(t, "kind", f.Kind, KindStandard)
	testutil.AssertEqual(t, "default", f.Default, any(5))

	it, ok := r.InstanceType("article")
	testutil.AssertEqual(t, "registered", ok, true)
	testutil.AssertEqual(t, "instance type", it.Name(), "article_inst")
}

func TestTemplate_ReloadRefreshesInstances(t *testing.T) {
	r, b := newTestRegistry(t)
	ctx := context.Background()
	sword := newArticle(t, r, b, "sword", map[string]any{"title": "Sword"})

	loaded := 0
	inst, err := sword.CreateInstance(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inst.Set("damage", 9)

	if err := sword.Update(ctx, map[string]any{"title": "Sword", "damage": 9}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, i := range sword.Instances() {
		if i == inst {
			loaded++
		}
	}
	testutil.AssertEqual(t, "registered instances", loaded, 1)

	stored, _ := inst.ToStorage()
	if _, ok := stored["damage"]; ok {
		t.Error("expected instance damage to match reloaded template")
	}
	testutil.AssertEqual(t, "damage", inst.GetInt("damage"), 9)
}

func TestTemplate_Release(t *testing.T) {
	r, b := newTestRegistry(t)
	ctx := context.Background()
	sword := newArticle(t, r, b, "sword", map[string]any{})

	first, err := sword.CreateInstance(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sword.CreateInstance(ctx, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "instances", len(sword.Instances()), 2)

	first.Release()
	first.Release()
	testutil.AssertEqual(t, "after release", len(sword.Instances()), 1)
}

func TestTemplate_LoadEmbeddedInstance(t *testing.T) {
	r, b := newTestRegistry(t)
	ctx := context.Background()

	configured := 0
	r.MustDefine(TypeDef{
		KeyType: "scroll",
		Bases:   []string{TraitKeyed, TraitTemplate},
		Fields:  map[string]*Field{"title": NewField("")},
		ConfigInstance: func(_ context.Context, _ *Object, _ *Object) {
			configured++
		},
	})
	r.MustDefine(TypeDef{
		ID:         "scroll_inst",
		Bases:      []string{TraitInstance},
		TemplateID: "scroll",
		Fields:     map[string]*Field{"charges": CopyField(1)},
	})

	scroll := r.MustLookup("scroll").New()
	if err := scroll.SetID("fire"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := scroll.Hydrate(ctx, map[string]any{"title": "Fire"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.put(scroll)

	item := r.MustLookup("item").New()
	if err := item.SetID("1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := item.Hydrate(ctx, map[string]any{
		"contents": []any{
			map[string]any{"template_key": "scroll:fire", "charges": 3},
			map[string]any{"template_key": "scroll:missing"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	contents := item.GetList("contents")
	testutil.AssertEqual(t, "contents", len(contents), 1)
	inst := contents[0].(*Object)
	testutil.AssertEqual(t, "template", inst.Template(), scroll)
	testutil.AssertEqual(t, "owner", inst.Owner(), item)
	testutil.AssertEqual(t, "charges", inst.GetInt("charges"), 3)
	testutil.AssertEqual(t, "configured", configured, 1)

	stored, refs := item.ToStorage()
	exp := map[string]any{
		"contents": []any{map[string]any{"template_key": "scroll:fire", "charges": 3}},
	}
	if diff := cmp.Diff(exp, stored); diff != "" {
		t.Errorf("storage (-exp +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"scroll:fire"}, refs); diff != "" {
		t.Errorf("refs (-exp +got):\n%s", diff)
	}

	if _, err := item.Hydrate(ctx, map[string]any{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "released", len(scroll.Instances()), 0)
}

func TestObject_Clone(t *testing.T) {
	r, b := newTestRegistry(t)
	ctx := context.Background()
	sword := newArticle(t, r, b, "sword", map[string]any{"title": "Sword"})

	inst, err := sword.CreateInstance(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inst.Set("damage", 8)

	c := inst.Clone(ctx)
	testutil.AssertEqual(t, "template", c.Template(), inst)
	testutil.AssertEqual(t, "damage", c.GetInt("damage"), 8)
}
