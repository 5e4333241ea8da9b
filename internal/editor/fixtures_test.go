package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/pixil98/go-dbo/internal/datastore"
	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-dbo/internal/model"
	"github.com/pixil98/go-dbo/internal/perm"
	"github.com/pixil98/go-dbo/internal/storage"
	"github.com/pixil98/go-testutil"
)

var (
	root  = perm.Immortal{ID: "root", Level: 100000}
	ann   = perm.Immortal{ID: "ann", Level: 10000}
	alice = perm.Immortal{ID: "alice", Level: 100}
	bob   = perm.Immortal{ID: "bob", Level: 100}
	mort  = perm.Immortal{ID: "mort", Level: 0}
)

type recordingPublisher struct {
	notices []Notice
}

func (p *recordingPublisher) PublishEdit(_ context.Context, n Notice) error {
	p.notices = append(p.notices, n)
	return nil
}

// summary returns edit_type:key for every notice, in order.
func (p *recordingPublisher) summary() []string {
	var out []string
	for _, n := range p.notices {
		s := n.EditType + ":" + n.Key
		if n.Cascade {
			s += " (cascade)"
		}
		out = append(out, s)
	}
	return out
}

type fixture struct {
	ds    *datastore.Datastore
	perms *perm.Perms
	pub   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryStore()
	reg := dbo.NewRegistry()
	model.Register(reg)

	perms := perm.NewPerms(store)
	reg.SetAuthority(perms)
	for _, imm := range []perm.Immortal{root, ann, alice, bob} {
		if err := perms.UpdateImmortal(ctx, imm.ID, imm.Level); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	return &fixture{
		ds:    datastore.New(store, reg),
		perms: perms,
		pub:   &recordingPublisher{},
	}
}

func (f *fixture) editor(t *testing.T, typeID string, opts ...EditorOpt) *Editor {
	t.Helper()
	e, err := NewEditor(f.ds, f.perms, typeID, append(opts, WithPublisher(f.pub))...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func (f *fixture) create(t *testing.T, typeID string, dict map[string]any) *dbo.Object {
	t.Helper()
	o, err := f.ds.CreateObject(context.Background(), typeID, dict)
	if err != nil {
		t.Fatalf("creating %s: %v", typeID, err)
	}
	return o
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClientError with status %d, got %v", status, err)
	}
	testutil.AssertEqual(t, "status", ce.Status, status)
}

func assertDenied(t *testing.T, err error) {
	t.Helper()
	var pe *perm.PermError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PermError, got %v", err)
	}
}
