package perm

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-dbo/internal/storage"
)

const (
	LevelSupreme = "supreme"
	LevelAdmin   = "admin"
	LevelBuilder = "builder"

	// DefaultName names levels that have no configured name.
	DefaultName = "player"

	immortalsKey = "immortals"
)

// DefaultLevels are the immortal levels used when none are configured.
var DefaultLevels = map[string]int{
	LevelSupreme: 100000,
	LevelAdmin:   10000,
	"creator":    1000,
	LevelBuilder: 100,
}

// Perms answers privilege questions from the configured level table and the
// stored immortals hash. It implements dbo.Authority.
type Perms struct {
	store storage.Store

	levels         map[string]int
	names          map[int]string
	systemAccounts []string
	systemLevel    int

	immortals map[string]int
	mu        sync.RWMutex
}

func NewPerms(store storage.Store, opts ...PermsOpt) *Perms {
	p := &Perms{
		store:     store,
		levels:    DefaultLevels,
		immortals: map[string]int{},
	}

	for _, opt := range opts {
		opt(p)
	}

	p.names = make(map[int]string, len(p.levels))
	for name, level := range p.levels {
		p.names[level] = name
	}
	if p.systemLevel == 0 {
		p.systemLevel = p.levels[LevelSupreme]
	}

	return p
}

// Load reads the immortals hash and adds the system accounts.
func (p *Perms) Load(ctx context.Context) error {
	all, err := p.store.HashGetAll(ctx, immortalsKey)
	if err != nil {
		return fmt.Errorf("reading immortals: %w", err)
	}

	immortals := make(map[string]int, len(all)+len(p.systemAccounts))
	for id, raw := range all {
		level, err := strconv.Atoi(raw)
		if err != nil {
			slog.WarnContext(ctx, "ignoring invalid immortal level", "player_id", id, "level", raw)
			continue
		}
		immortals[id] = level
	}
	for _, account := range p.systemAccounts {
		immortals[account] = p.systemLevel
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.immortals = immortals

	slog.InfoContext(ctx, "loaded immortals", "count", len(immortals))
	return nil
}

// Level returns the configured level for name.
func (p *Perms) Level(name string) (int, bool) {
	l, ok := p.levels[name]
	return l, ok
}

// PermLevel returns the level for name, defaulting to the admin level.
func (p *Perms) PermLevel(name string) int {
	if l, ok := p.levels[name]; ok {
		return l
	}
	return p.levels[LevelAdmin]
}

// PermName returns the configured name of an exact level.
func (p *Perms) PermName(level int) string {
	if name, ok := p.names[level]; ok {
		return name
	}
	return DefaultName
}

// Immortal returns the stored level of an immortal player.
func (p *Perms) Immortal(id string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	l, ok := p.immortals[id]
	return l, ok
}

// Immortals returns a copy of the immortals table.
func (p *Perms) Immortals() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]int, len(p.immortals))
	for id, l := range p.immortals {
		out[id] = l
	}
	return out
}

func (p *Perms) IsSupreme(pr dbo.Principal) bool {
	return pr != nil && pr.PrincipalLevel() >= p.levels[LevelSupreme]
}

// OwnerLevel is one above the owner's immortal level. Objects of unknown
// owners need the admin level.
func (p *Perms) OwnerLevel(ownerID string) int {
	if l, ok := p.Immortal(ownerID); ok {
		return l + 1
	}
	return p.levels[LevelAdmin]
}

// UpdateImmortal records a player's immortal level. Level zero removes the
// player from the table.
func (p *Perms) UpdateImmortal(ctx context.Context, id string, level int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if level > 0 {
		if err := p.store.HashSet(ctx, immortalsKey, id, strconv.Itoa(level)); err != nil {
			return fmt.Errorf("storing immortal %s: %w", id, err)
		}
		p.immortals[id] = level
		return nil
	}

	if err := p.store.HashDelete(ctx, immortalsKey, id); err != nil {
		return fmt.Errorf("removing immortal %s: %w", id, err)
	}
	delete(p.immortals, id)
	return nil
}

// ResetImmortals clears the stored immortals table.
func (p *Perms) ResetImmortals(ctx context.Context) error {
	if err := p.store.DeleteKey(ctx, immortalsKey); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.immortals = map[string]int{}
	for _, account := range p.systemAccounts {
		p.immortals[account] = p.systemLevel
	}
	return nil
}

// CheckPerm returns a *PermError unless pr may perform action. An action is
// a numeric level, a level name, or an object checked for write access.
func (p *Perms) CheckPerm(ctx context.Context, pr dbo.Principal, action any) error {
	if pr == nil {
		return &PermError{Action: fmt.Sprintf("%v", action)}
	}
	if p.IsSupreme(pr) {
		return nil
	}

	var required int
	switch a := action.(type) {
	case int:
		required = a
	case string:
		l, ok := p.levels[a]
		if !ok {
			return fmt.Errorf("unknown permission level %q", a)
		}
		required = l
	case *dbo.Object:
		if a.CanWrite(ctx, pr) {
			return nil
		}
		return &PermError{Principal: pr.PrincipalID(), Action: "write " + a.String()}
	default:
		return fmt.Errorf("unsupported permission action %T", action)
	}

	if pr.PrincipalLevel() < required {
		return &PermError{Principal: pr.PrincipalID(), Action: "act as " + p.PermName(required)}
	}
	return nil
}

// HasPerm is CheckPerm as a boolean.
func (p *Perms) HasPerm(ctx context.Context, pr dbo.Principal, action any) bool {
	return p.CheckPerm(ctx, pr, action) == nil
}
