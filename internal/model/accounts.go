package model

import (
	"fmt"
	"strings"

	"github.com/pixil98/go-dbo/internal/dbo"
	"golang.org/x/crypto/bcrypt"
)

func registerAccounts(reg *dbo.Registry) {
	reg.MustDefine(dbo.TypeDef{
		KeyType: TypeUser,
		SetKey:  "users",
		Indexes: []string{"user_name", "email"},
		Bases:   []string{dbo.TraitKeyed, dbo.TraitSystem},
		Fields: map[string]*dbo.Field{
			"user_name":      dbo.NewField(""),
			"password":       dbo.NewField(""),
			"password_reset": dbo.NewField(false),
			"email":          dbo.NewField(""),
			"notes":          dbo.NewField(""),
			"player_ids":     dbo.NewField([]any{}),
			"displays":       dbo.NewField(map[string]any{}),
			"notifies":       dbo.NewField([]any{}),
		},
		Hooks: dbo.Hooks{
			OnTransfer: func(_ *dbo.Object, dto map[string]any) {
				dto["password"] = ""
			},
		},
	})

	reg.MustDefine(dbo.TypeDef{
		KeyType: TypePlayer,
		SetKey:  "players",
		Bases:   []string{dbo.TraitKeyed, dbo.TraitSystem},
		Fields: map[string]*dbo.Field{
			"user_id":     dbo.NewField(""),
			"created":     dbo.NewField(0),
			"imm_level":   dbo.NewField(0),
			"last_login":  dbo.NewField(0),
			"last_logout": dbo.NewField(0),
			"age":         dbo.NewField(0),
		},
	})

	reg.MustDefine(dbo.TypeDef{
		ID: TypeBuilder,
		Fields: map[string]*dbo.Field{
			"build_mode": dbo.NewField(false),
		},
	})
}

// HashPassword returns the stored form of a plain text password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the user's stored hash.
func CheckPassword(user *dbo.Object, password string) bool {
	hash := user.GetString("password")
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PlayerName is the display name of a player, its capitalized id.
func PlayerName(player *dbo.Object) string {
	id := player.ID()
	if id == "" {
		return ""
	}
	return strings.ToUpper(id[:1]) + id[1:]
}

// PlayerIDs returns the ids of a user's players.
func PlayerIDs(user *dbo.Object) []string {
	var ids []string
	for _, v := range user.GetList("player_ids") {
		ids = append(ids, fmt.Sprint(v))
	}
	return ids
}

// UserImmLevel is the highest immortal level among a user's players.
func UserImmLevel(user *dbo.Object, immortal func(id string) (int, bool)) int {
	level := 0
	for _, id := range PlayerIDs(user) {
		if l, ok := immortal(id); ok && l > level {
			level = l
		}
	}
	return level
}
