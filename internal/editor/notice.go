package editor

import (
	"context"
	"log/slog"
)

const (
	EditCreate = "create"
	EditUpdate = "update"
	EditDelete = "delete"
)

// Notice announces a stored change to everyone editing the same kind of
// object.
type Notice struct {
	EditType string         `json:"edit_type"`
	KeyType  string         `json:"key_type"`
	Key      string         `json:"key"`
	Source   string         `json:"source,omitempty"`
	Cascade  bool           `json:"cascade,omitempty"`
	Object   map[string]any `json:"edit_obj,omitempty"`
}

// Publisher delivers edit notices.
type Publisher interface {
	PublishEdit(ctx context.Context, n Notice) error
}

// LogPublisher only logs notices. It is used when no transport is
// configured.
type LogPublisher struct{}

func (LogPublisher) PublishEdit(ctx context.Context, n Notice) error {
	slog.InfoContext(ctx, "edit", "edit_type", n.EditType, "key", n.Key, "source", n.Source)
	return nil
}
