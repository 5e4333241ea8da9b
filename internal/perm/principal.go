package perm

import "github.com/pixil98/go-dbo/internal/dbo"

// Immortal is an acting principal identified by player id.
type Immortal struct {
	ID    string
	Level int
}

func (i Immortal) PrincipalID() string { return i.ID }
func (i Immortal) PrincipalLevel() int { return i.Level }

// AsPrincipal treats a stored player as the principal acting through it.
func AsPrincipal(player *dbo.Object) Immortal {
	return Immortal{ID: player.ID(), Level: player.GetInt("imm_level")}
}
