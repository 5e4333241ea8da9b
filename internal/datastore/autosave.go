package datastore

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/pixil98/go-dbo/internal/dbo"
)

// Autosaver saves registered objects on every driver tick for as long as they
// stay cached.
type Autosaver struct {
	ds   *Datastore
	keys map[string]struct{}
	mu   sync.Mutex
}

func NewAutosaver(ds *Datastore) *Autosaver {
	return &Autosaver{
		ds:   ds,
		keys: map[string]struct{}{},
	}
}

func (a *Autosaver) Register(o *dbo.Object) {
	if o.Key() == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[o.Key()] = struct{}{}
}

func (a *Autosaver) Unregister(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.keys, key)
}

// Registered returns the registered keys, sorted.
func (a *Autosaver) Registered() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make([]string, 0, len(a.keys))
	for k := range a.keys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Tick saves every registered object. Objects that were evicted or deleted
// are dropped from the registry. Save failures are logged and retried on the
// next tick.
func (a *Autosaver) Tick(ctx context.Context) error {
	for _, key := range a.Registered() {
		o := a.ds.LoadCached(key)
		if o == nil || o.State() == dbo.StateDeleted {
			a.Unregister(key)
			continue
		}
		if err := a.ds.SaveObject(ctx, o, false); err != nil {
			slog.ErrorContext(ctx, "autosaving object", "key", key, "error", err)
		}
	}
	return nil
}
