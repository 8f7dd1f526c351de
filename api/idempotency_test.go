package api

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDeduper(t *testing.T) (*RedisDeduper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDeduper(client, time.Minute), mr
}

func TestRedisDeduperAdd(t *testing.T) {
	d, _ := newTestDeduper(t)
	ctx := context.Background()

	fresh, err := d.Add(ctx, "user", "key-1")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !fresh {
		t.Fatal("first add must report fresh")
	}

	fresh, err = d.Add(ctx, "user", "key-1")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if fresh {
		t.Fatal("second add must report duplicate")
	}
}

func TestRedisDeduperScopedByUser(t *testing.T) {
	d, _ := newTestDeduper(t)
	ctx := context.Background()

	if _, err := d.Add(ctx, "alice", "key-1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	fresh, err := d.Add(ctx, "bob", "key-1")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !fresh {
		t.Fatal("keys must be scoped per user")
	}
}

func TestRedisDeduperRemoveAllowsRetry(t *testing.T) {
	d, _ := newTestDeduper(t)
	ctx := context.Background()

	if _, err := d.Add(ctx, "user", "key-1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := d.Remove(ctx, "user", "key-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	fresh, err := d.Add(ctx, "user", "key-1")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !fresh {
		t.Fatal("removed key must be claimable again")
	}
}

func TestRedisDeduperKeysExpire(t *testing.T) {
	d, mr := newTestDeduper(t)
	ctx := context.Background()

	if _, err := d.Add(ctx, "user", "key-1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	fresh, err := d.Add(ctx, "user", "key-1")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !fresh {
		t.Fatal("expired key must be claimable again")
	}
}
