package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pixil98/go-testutil"
)

// testStores returns every store the conformance tests run against. A redis
// store is included when DBO_TEST_REDIS_ADDR is set.
func testStores(t *testing.T) map[string]func(t *testing.T) Store {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "dbo.db"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			return s
		},
	}

	if addr := os.Getenv("DBO_TEST_REDIS_ADDR"); addr != "" {
		stores["redis"] = func(t *testing.T) Store {
			s, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr, DB: 15})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := s.client.FlushDB(context.Background()).Err(); err != nil {
				t.Fatalf("flushing redis: %v", err)
			}
			return s
		}
	}
	return stores
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, newStore := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() {
				if err := s.Close(); err != nil {
					t.Errorf("closing store: %v", err)
				}
			})
			fn(t, s)
		})
	}
}

func TestStore_Values(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, found, err := s.GetValue(ctx, "room:keep:1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		testutil.AssertEqual(t, "found before set", found, false)

		for _, v := range []string{`{"title":"Gate"}`, `{"title":"Tower"}`} {
			if err := s.SetValue(ctx, "room:keep:1", []byte(v)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		data, found, err := s.GetValue(ctx, "room:keep:1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		testutil.AssertEqual(t, "found", found, true)
		testutil.AssertEqual(t, "value", string(data), `{"title":"Tower"}`)

		if err := s.DeleteValue(ctx, "room:keep:1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, found, err = s.GetValue(ctx, "room:keep:1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		testutil.AssertEqual(t, "found after delete", found, false)
	})
}

func TestStore_Sets(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		for _, m := range []string{"town", "keep", "keep", "moat"} {
			if err := s.AddToSet(ctx, "areas", m); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if err := s.RemoveFromSet(ctx, "areas", "moat"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.RemoveFromSet(ctx, "areas", "never"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		members, err := s.SetMembers(ctx, "areas")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"keep", "town"}, members); diff != "" {
			t.Errorf("members (-exp +got):\n%s", diff)
		}

		tests := map[string]struct {
			member string
			exp    bool
		}{
			"member":     {member: "keep", exp: true},
			"removed":    {member: "moat", exp: false},
			"never seen": {member: "never", exp: false},
		}
		for name, tt := range tests {
			t.Run(name, func(t *testing.T) {
				got, err := s.SetContains(ctx, "areas", tt.member)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				testutil.AssertEqual(t, "contains", got, tt.exp)
			})
		}

		members, err = s.SetMembers(ctx, "empty")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		testutil.AssertEqual(t, "empty set", len(members), 0)
	})
}

func TestStore_Hashes(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		for field, value := range map[string]string{"alice": "100", "ann": "10000"} {
			if err := s.HashSet(ctx, "immortals", field, value); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if err := s.HashSet(ctx, "immortals", "alice", "200"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		v, found, err := s.HashGet(ctx, "immortals", "alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		testutil.AssertEqual(t, "found", found, true)
		testutil.AssertEqual(t, "overwritten", v, "200")

		if err := s.HashDelete(ctx, "immortals", "ann"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		all, err := s.HashGetAll(ctx, "immortals")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(map[string]string{"alice": "200"}, all); diff != "" {
			t.Errorf("hash (-exp +got):\n%s", diff)
		}

		_, found, err = s.HashGet(ctx, "immortals", "ann")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		testutil.AssertEqual(t, "deleted field", found, false)
	})
}

func TestStore_NextValue(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		var got []int64
		for range 3 {
			v, err := s.NextValue(ctx, "user_id")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got = append(got, v)
		}
		other, err := s.NextValue(ctx, "article_id")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([]int64{1, 2, 3}, got); diff != "" {
			t.Errorf("sequence (-exp +got):\n%s", diff)
		}
		testutil.AssertEqual(t, "independent sequence", other, int64(1))
	})
}

func TestStore_Indexes(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if err := s.SetIndex(ctx, "ix:user:user_name", "bob", "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		target, found, err := s.GetIndex(ctx, "ix:user:user_name", "bob")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		testutil.AssertEqual(t, "found", found, true)
		testutil.AssertEqual(t, "target", target, "1")

		if err := s.DeleteIndex(ctx, "ix:user:user_name", "bob"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, found, err = s.GetIndex(ctx, "ix:user:user_name", "bob")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		testutil.AssertEqual(t, "found after delete", found, false)
	})
}

func TestStore_DeleteKey(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if err := s.AddToSet(ctx, "room:keep:2:holders", "room:keep:1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.SetIndex(ctx, "ix:user:email", "bob@example.com", "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.AddToSet(ctx, "areas", "keep"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, key := range []string{"room:keep:2:holders", "ix:user:email", "never:stored"} {
			if err := s.DeleteKey(ctx, key); err != nil {
				t.Fatalf("deleting %s: %v", key, err)
			}
		}

		holders, err := s.SetMembers(ctx, "room:keep:2:holders")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		testutil.AssertEqual(t, "holders", len(holders), 0)

		_, found, err := s.GetIndex(ctx, "ix:user:email", "bob@example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		testutil.AssertEqual(t, "index", found, false)

		areas, err := s.SetMembers(ctx, "areas")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"keep"}, areas); diff != "" {
			t.Errorf("untouched set (-exp +got):\n%s", diff)
		}
	})
}
