package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/pixil98/go-dbo/internal/datastore"
	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-dbo/internal/perm"
)

// Hooks let an editor veto or extend the stored operations. A pre hook
// returning an error aborts the operation before anything is stored.
type Hooks struct {
	PreCreate  func(ctx context.Context, pr dbo.Principal, dict map[string]any) error
	PostCreate func(ctx context.Context, pr dbo.Principal, o *dbo.Object) error
	PreUpdate  func(ctx context.Context, pr dbo.Principal, o *dbo.Object, dict map[string]any) error
	PostUpdate func(ctx context.Context, pr dbo.Principal, o *dbo.Object) error
	PreDelete  func(ctx context.Context, pr dbo.Principal, o *dbo.Object) error
	PostDelete func(ctx context.Context, pr dbo.Principal, o *dbo.Object) error
}

// Metadata describes an editor to its client.
type Metadata struct {
	Perms         map[string]bool `json:"perms"`
	ParentType    string          `json:"parent_type,omitempty"`
	ChildrenTypes []string        `json:"children_types,omitempty"`
	NewObject     map[string]any  `json:"new_object,omitempty"`
}

// Editor exposes create, update and delete of one keyed type to immortals,
// keeping the objects that hold references to edited objects current.
type Editor struct {
	ds    *datastore.Datastore
	perms *perm.Perms
	pub   Publisher

	typ    *dbo.Type
	parent *dbo.Type

	level       string
	createLevel string
	noCreate    bool
	hooks       Hooks
}

func NewEditor(ds *datastore.Datastore, perms *perm.Perms, typeID string, opts ...EditorOpt) (*Editor, error) {
	t, err := ds.Registry().Lookup(typeID)
	if err != nil {
		return nil, err
	}
	if !t.Keyed() {
		return nil, fmt.Errorf("type %s is not keyed", typeID)
	}

	e := &Editor{
		ds:    ds,
		perms: perms,
		pub:   LogPublisher{},
		typ:   t,
		level: perm.LevelBuilder,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.createLevel == "" {
		e.createLevel = e.level
	}
	if pt := t.ParentType(); pt != "" {
		e.parent, err = ds.Registry().Lookup(pt)
		if err != nil {
			return nil, fmt.Errorf("parent of %s: %w", typeID, err)
		}
	}

	return e, nil
}

func (e *Editor) KeyType() string { return e.typ.KeyType() }

// List returns the edit form of every object of the type pr may read.
func (e *Editor) List(ctx context.Context, pr dbo.Principal) ([]map[string]any, error) {
	if err := e.perms.CheckPerm(ctx, pr, e.level); err != nil {
		return nil, err
	}

	objs, err := e.ds.LoadObjectSet(ctx, e.typ, "")
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(objs))
	for _, o := range objs {
		if o.CanRead(ctx, pr) {
			out = append(out, o.EditDTO(ctx, pr))
		}
	}
	return out, nil
}

// ChildList returns the edit form of the children of one parent. Children of
// a parent pr may not read are omitted entirely.
func (e *Editor) ChildList(ctx context.Context, pr dbo.Principal, parentID string) ([]map[string]any, error) {
	if err := e.perms.CheckPerm(ctx, pr, e.level); err != nil {
		return nil, err
	}
	if e.parent == nil {
		return nil, errBadRequest("%s objects have no parent", e.typ.KeyType())
	}

	parent, err := e.load(ctx, e.parent, parentID)
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	if !parent.CanRead(ctx, pr) {
		return out, nil
	}

	children, err := e.ds.Children(ctx, parent, e.typ.ID())
	if err != nil {
		return nil, err
	}
	canWrite := parent.CanWrite(ctx, pr)
	for _, child := range children {
		dto := child.EditDTO(ctx, pr)
		dto["can_write"] = canWrite
		out = append(out, dto)
	}
	return out, nil
}

// Create stores a new object owned by pr and returns its edit form.
func (e *Editor) Create(ctx context.Context, pr dbo.Principal, dict map[string]any) (map[string]any, error) {
	if err := e.perms.CheckPerm(ctx, pr, e.level); err != nil {
		return nil, err
	}
	if !e.canAdd(ctx, pr) {
		return nil, &perm.PermError{Principal: pr.PrincipalID(), Action: "create " + e.typ.KeyType()}
	}

	if e.typ.Field("owner_id") != nil {
		dict["owner_id"] = pr.PrincipalID()
	}
	if e.parent != nil {
		if err := e.checkParent(ctx, pr, dict); err != nil {
			return nil, err
		}
	}
	if h := e.hooks.PreCreate; h != nil {
		if err := h(ctx, pr, dict); err != nil {
			return nil, err
		}
	}

	o, err := e.ds.CreateObject(ctx, e.typ.ID(), dict)
	if errors.Is(err, datastore.ErrExists) {
		return nil, newClientError(http.StatusConflict, "%s already exists", e.key(datastore.ObjectID(dict["object_id"])))
	}
	if err != nil {
		return nil, err
	}

	if h := e.hooks.PostCreate; h != nil {
		if err := h(ctx, pr, o); err != nil {
			return nil, err
		}
	}

	return e.publish(ctx, pr, EditCreate, o, false), nil
}

// Update applies dict to the object it identifies by object_id. Owned
// objects change owner when dict names a different one. The owned sets only
// move once the update is stored.
func (e *Editor) Update(ctx context.Context, pr dbo.Principal, dict map[string]any) (map[string]any, error) {
	if err := e.perms.CheckPerm(ctx, pr, e.level); err != nil {
		return nil, err
	}

	id := datastore.ObjectID(dict["object_id"])
	if id == "" {
		return nil, errBadRequest("update of %s is missing object_id", e.typ.KeyType())
	}
	o, err := e.load(ctx, e.typ, id)
	if err != nil {
		return nil, err
	}
	if err := e.perms.CheckPerm(ctx, pr, o); err != nil {
		return nil, err
	}

	if h := e.hooks.PreUpdate; h != nil {
		if err := h(ctx, pr, o, dict); err != nil {
			return nil, err
		}
	}

	oldOwner, newOwner := o.OwnerID(), o.OwnerID()
	if o.Type().Access() == dbo.AccessOwner {
		if owner, ok := dict["owner_id"].(string); ok && owner != "" {
			newOwner = owner
		}
		// An omitted owner keeps the current one rather than reverting to the default.
		dict = maps.Clone(dict)
		dict["owner_id"] = newOwner
	}

	holders, err := e.ds.AllHolders(ctx, o.Key(), 1)
	if err != nil {
		return nil, err
	}
	if err := e.ds.UpdateObject(ctx, o, dict); err != nil {
		return nil, err
	}
	if newOwner != oldOwner {
		if err := e.ds.RemoveOwned(ctx, oldOwner, o.Key()); err != nil {
			return nil, err
		}
		if err := e.ds.AddOwned(ctx, newOwner, o.Key()); err != nil {
			return nil, err
		}
	}

	if h := e.hooks.PostUpdate; h != nil {
		if err := h(ctx, pr, o); err != nil {
			return nil, err
		}
	}

	e.reloadHolders(ctx, pr, holders)
	return e.publish(ctx, pr, EditUpdate, o, false), nil
}

// Delete removes the object with id and refreshes everything that held a
// reference to it or to its children.
func (e *Editor) Delete(ctx context.Context, pr dbo.Principal, id string) error {
	if err := e.perms.CheckPerm(ctx, pr, e.level); err != nil {
		return err
	}

	o, err := e.load(ctx, e.typ, id)
	if err != nil {
		return err
	}
	if err := e.perms.CheckPerm(ctx, pr, o); err != nil {
		return err
	}

	if h := e.hooks.PreDelete; h != nil {
		if err := h(ctx, pr, o); err != nil {
			return err
		}
	}

	holders, err := e.allHolders(ctx, o)
	if err != nil {
		return err
	}
	if err := e.ds.DeleteObject(ctx, o); err != nil {
		return err
	}

	if h := e.hooks.PostDelete; h != nil {
		if err := h(ctx, pr, o); err != nil {
			return err
		}
	}

	e.reloadHolders(ctx, pr, holders)
	e.publish(ctx, pr, EditDelete, o, false)
	return nil
}

// TestDelete returns the keys of the objects a delete of id would modify.
func (e *Editor) TestDelete(ctx context.Context, pr dbo.Principal, id string) ([]string, error) {
	if err := e.perms.CheckPerm(ctx, pr, e.level); err != nil {
		return nil, err
	}

	o, err := e.load(ctx, e.typ, id)
	if err != nil {
		return nil, err
	}
	return e.allHolders(ctx, o)
}

func (e *Editor) Metadata(ctx context.Context, pr dbo.Principal) Metadata {
	if e.noCreate {
		return Metadata{Perms: map[string]bool{"add": false, "refresh": true}}
	}
	return Metadata{
		Perms:         map[string]bool{"add": e.canAdd(ctx, pr)},
		ParentType:    e.typ.ParentType(),
		ChildrenTypes: e.typ.ChildrenTypes(),
		NewObject:     e.typ.NewDTO(),
	}
}

func (e *Editor) canAdd(ctx context.Context, pr dbo.Principal) bool {
	return !e.noCreate && e.perms.HasPerm(ctx, pr, e.createLevel)
}

// checkParent requires write access to the parent a new child is created in.
func (e *Editor) checkParent(ctx context.Context, pr dbo.Principal, dict map[string]any) error {
	id := datastore.ObjectID(dict["object_id"])
	parentID, _, ok := strings.Cut(id, ":")
	if !ok || parentID == "" {
		return errBadRequest("%s id %q must name its parent", e.typ.KeyType(), id)
	}
	parent, err := e.load(ctx, e.parent, parentID)
	if err != nil {
		return err
	}
	return e.perms.CheckPerm(ctx, pr, parent)
}

// allHolders collects the holders of o and of its children, leaving out o
// and its children themselves.
func (e *Editor) allHolders(ctx context.Context, o *dbo.Object) ([]string, error) {
	exclude := map[string]bool{o.Key(): true}
	all, err := e.ds.AllHolders(ctx, o.Key(), 1)
	if err != nil {
		return nil, err
	}

	for _, childType := range e.typ.ChildrenTypes() {
		childKeys, err := e.ds.ChildKeys(ctx, o, childType)
		if err != nil {
			return nil, err
		}
		for _, key := range childKeys {
			exclude[key] = true
			holders, err := e.ds.AllHolders(ctx, key, 0)
			if err != nil {
				return nil, err
			}
			all = append(all, holders...)
		}
	}

	out := slices.DeleteFunc(all, func(k string) bool { return exclude[k] })
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (e *Editor) reloadHolders(ctx context.Context, pr dbo.Principal, holders []string) {
	err := e.ds.ReloadHolders(ctx, holders, func(h *dbo.Object) {
		e.publish(ctx, pr, EditUpdate, h, true)
	})
	if err != nil {
		slog.ErrorContext(ctx, "reloading holders", "key_type", e.typ.KeyType(), "error", err)
	}
}

// publish announces an edit and returns the edit form sent with it.
func (e *Editor) publish(ctx context.Context, pr dbo.Principal, editType string, o *dbo.Object, cascade bool) map[string]any {
	return publish(ctx, e.pub, pr, editType, o, cascade)
}

func publish(ctx context.Context, pub Publisher, pr dbo.Principal, editType string, o *dbo.Object, cascade bool) map[string]any {
	n := Notice{
		EditType: editType,
		KeyType:  o.KeyType(),
		Key:      o.Key(),
		Source:   pr.PrincipalID(),
		Cascade:  cascade,
	}
	if editType != EditDelete {
		n.Object = o.EditDTO(ctx, pr)
	}
	if err := pub.PublishEdit(ctx, n); err != nil {
		slog.WarnContext(ctx, "publishing edit", "edit_type", editType, "key", o.Key(), "error", err)
	}
	return n.Object
}

func (e *Editor) key(id string) string {
	return e.typ.KeyType() + ":" + id
}

// load returns the object of t with id, or a 410 error when it is gone.
func (e *Editor) load(ctx context.Context, t *dbo.Type, id string) (*dbo.Object, error) {
	o, err := e.ds.LoadObject(ctx, t.KeyType()+":"+id, t)
	if errors.Is(err, dbo.ErrNotFound) {
		return nil, errGone(t.KeyType() + ":" + id)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}
