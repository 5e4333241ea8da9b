package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-dbo/internal/editor"
)

// DefaultEditSubject prefixes the subjects edit notices are published on.
const DefaultEditSubject = "edit"

// EditPublisher publishes edit notices as JSON on <prefix>.<key_type>.
type EditPublisher struct {
	server *NatsServer
	prefix string
}

func NewEditPublisher(server *NatsServer, prefix string) *EditPublisher {
	if prefix == "" {
		prefix = DefaultEditSubject
	}
	return &EditPublisher{server: server, prefix: prefix}
}

func (p *EditPublisher) PublishEdit(_ context.Context, n editor.Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding %s notice for %s: %w", n.EditType, n.Key, err)
	}
	return p.server.Publish(p.Subject(n.KeyType), data)
}

// Subject is the subject notices for keyType are published on.
func (p *EditPublisher) Subject(keyType string) string {
	return p.prefix + "." + keyType
}

// SubscribeEdits calls fn with every notice published for keyType. A
// keyType of "*" receives every notice.
func (p *EditPublisher) SubscribeEdits(keyType string, fn func(editor.Notice)) (func(), error) {
	subject := p.Subject(keyType)
	return p.server.Subscribe(subject, func(data []byte) {
		var n editor.Notice
		if err := json.Unmarshal(data, &n); err != nil {
			slog.Warn("discarding invalid edit notice", "subject", subject, "error", err)
			return
		}
		fn(n)
	})
}
