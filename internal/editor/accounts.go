package editor

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/pixil98/go-dbo/internal/datastore"
	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-dbo/internal/model"
	"github.com/pixil98/go-dbo/internal/perm"
)

// NewPlayerEditor returns the admin editor for players. Players are created
// by their users and keep the immortals table current when edited.
func NewPlayerEditor(ds *datastore.Datastore, perms *perm.Perms, opts ...EditorOpt) (*Editor, error) {
	opts = append([]EditorOpt{WithLevel(perm.LevelAdmin), WithoutCreate()}, opts...)
	e, err := NewEditor(ds, perms, model.TypePlayer, opts...)
	if err != nil {
		return nil, err
	}
	e.hooks = Hooks{
		PreDelete:  e.playerPreDelete,
		PostDelete: e.playerPostDelete,
		PostUpdate: e.playerPostUpdate,
	}
	return e, nil
}

// NewUserEditor returns the admin editor for user accounts.
func NewUserEditor(ds *datastore.Datastore, perms *perm.Perms, opts ...EditorOpt) (*Editor, error) {
	opts = append([]EditorOpt{WithLevel(perm.LevelAdmin), WithoutCreate()}, opts...)
	e, err := NewEditor(ds, perms, model.TypeUser, opts...)
	if err != nil {
		return nil, err
	}
	e.hooks = Hooks{
		PreDelete:  e.userPreDelete,
		PostDelete: e.userPostDelete,
		PreUpdate:  e.userPreUpdate,
	}
	return e, nil
}

func (e *Editor) playerPreDelete(ctx context.Context, pr dbo.Principal, player *dbo.Object) error {
	if player.GetInt("imm_level") >= e.perms.PermLevel(perm.LevelSupreme) {
		return errBadRequest("cannot delete root user %s", player.ID())
	}

	user, err := e.playerUser(ctx, player)
	if err != nil {
		return err
	}
	if user == nil {
		slog.ErrorContext(ctx, "missing user for player delete", "player_id", player.ID())
		return nil
	}

	if model.UserImmLevel(user, e.perms.Immortal) > 0 {
		return e.perms.CheckPerm(ctx, pr, perm.LevelSupreme)
	}
	return e.perms.CheckPerm(ctx, pr, perm.LevelAdmin)
}

func (e *Editor) playerPostDelete(ctx context.Context, pr dbo.Principal, player *dbo.Object) error {
	if err := e.perms.UpdateImmortal(ctx, player.ID(), 0); err != nil {
		return err
	}

	user, err := e.playerUser(ctx, player)
	if err != nil {
		return err
	}
	if user == nil {
		slog.WarnContext(ctx, "removed player without user", "player_id", player.ID())
		return nil
	}

	remaining := []any{}
	for _, id := range model.PlayerIDs(user) {
		if id != player.ID() {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		if err := e.ds.DeleteObject(ctx, user); err != nil {
			return err
		}
		publish(ctx, e.pub, pr, EditDelete, user, true)
		return nil
	}

	user.Set("player_ids", remaining)
	if err := e.ds.SaveObject(ctx, user, true); err != nil {
		return err
	}
	publish(ctx, e.pub, pr, EditUpdate, user, true)
	return nil
}

func (e *Editor) playerPostUpdate(ctx context.Context, _ dbo.Principal, player *dbo.Object) error {
	return e.perms.UpdateImmortal(ctx, player.ID(), player.GetInt("imm_level"))
}

// playerUser loads the user owning player, or nil when there is none.
func (e *Editor) playerUser(ctx context.Context, player *dbo.Object) (*dbo.Object, error) {
	userID := player.GetString("user_id")
	if userID == "" {
		return nil, nil
	}
	user, err := e.ds.LoadByID(ctx, model.TypeUser, userID)
	if errors.Is(err, dbo.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

func (e *Editor) userPreDelete(_ context.Context, _ dbo.Principal, user *dbo.Object) error {
	if model.UserImmLevel(user, e.perms.Immortal) > 0 {
		return errBadRequest("remove all immortals from account %s before deleting it", user.ID())
	}
	return nil
}

func (e *Editor) userPostDelete(ctx context.Context, pr dbo.Principal, user *dbo.Object) error {
	for _, id := range model.PlayerIDs(user) {
		player, err := e.ds.LoadByID(ctx, model.TypePlayer, id)
		if errors.Is(err, dbo.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := e.ds.DeleteObject(ctx, player); err != nil {
			return err
		}
		publish(ctx, e.pub, pr, EditDelete, player, true)
	}
	return nil
}

// userPreUpdate hashes a new password. An empty password keeps the stored
// one. Immortals change their own password through the game.
func (e *Editor) userPreUpdate(_ context.Context, pr dbo.Principal, user *dbo.Object, dict map[string]any) error {
	password, _ := dict["password"].(string)
	if password == "" {
		dict["password"] = user.GetString("password")
		return nil
	}

	if slices.Contains(model.PlayerIDs(user), pr.PrincipalID()) {
		return errBadRequest("change your own password through the normal interface")
	}

	hash, err := model.HashPassword(password)
	if err != nil {
		return err
	}
	dict["password"] = hash
	dict["password_reset"] = false
	return nil
}
