package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pixil98/go-dbo/internal/editor"
)

func startServer(t *testing.T) *NatsServer {
	t.Helper()

	s, err := NewNatsServer(WithPort(-1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("server stopped: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for nats server")
	}
	return s
}

func TestEditPublisher_PublishEdit(t *testing.T) {
	s := startServer(t)
	p := NewEditPublisher(s, "")
	ctx := context.Background()

	areas := make(chan editor.Notice, 4)
	all := make(chan editor.Notice, 4)
	unsubAreas, err := p.SubscribeEdits("area", func(n editor.Notice) { areas <- n })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsubAreas()
	unsubAll, err := p.SubscribeEdits("*", func(n editor.Notice) { all <- n })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsubAll()

	sent := []editor.Notice{
		{EditType: editor.EditUpdate, KeyType: "area", Key: "area:keep", Source: "alice", Object: map[string]any{"name": "The Keep"}},
		{EditType: editor.EditDelete, KeyType: "room", Key: "room:keep:1", Source: "alice", Cascade: true},
	}
	for _, n := range sent {
		if err := p.PublishEdit(ctx, n); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	receive := func(ch chan editor.Notice, count int) []editor.Notice {
		var got []editor.Notice
		for len(got) < count {
			select {
			case n := <-ch:
				got = append(got, n)
			case <-time.After(5 * time.Second):
				t.Fatalf("timed out after %d of %d notices", len(got), count)
			}
		}
		return got
	}

	if diff := cmp.Diff(sent[:1], receive(areas, 1)); diff != "" {
		t.Errorf("area notices (-exp +got):\n%s", diff)
	}
	if diff := cmp.Diff(sent, receive(all, 2)); diff != "" {
		t.Errorf("all notices (-exp +got):\n%s", diff)
	}
}

func TestNatsServer_NotStarted(t *testing.T) {
	s, err := NewNatsServer(WithPort(-1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Publish("edit.area", nil); err == nil {
		t.Error("expected publish before start to fail")
	}
	if _, err := s.Subscribe("edit.area", func([]byte) {}); err == nil {
		t.Error("expected subscribe before start to fail")
	}
}
