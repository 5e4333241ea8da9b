package driver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

type countingManager struct {
	ticks atomic.Int32
	err   error
}

func (m *countingManager) Tick(context.Context) error {
	m.ticks.Add(1)
	return m.err
}

func TestDriver_Tick(t *testing.T) {
	tests := map[string]struct {
		firstErr error
		expErr   string
		expTicks int32
	}{
		"all managers tick":    {expTicks: 1},
		"error stops the tick": {firstErr: errors.New("disk full"), expErr: "disk full"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			first := &countingManager{err: tt.firstErr}
			second := &countingManager{}
			d := NewDriver([]Manager{first, second})

			err := d.Tick(context.Background())
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "first ticks", first.ticks.Load(), int32(1))
			testutil.AssertEqual(t, "second ticks", second.ticks.Load(), tt.expTicks)
		})
	}
}

func TestDriver_StartTicksUntilCancelled(t *testing.T) {
	m := &countingManager{}
	d := NewDriver([]Manager{m}, WithTickLength(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	deadline := time.After(5 * time.Second)
	for m.ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ticks")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not stop")
	}
}
