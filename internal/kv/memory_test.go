package kv

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, "webhook:abc", `{"name":"deploy"}`, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value, ok, err := store.Get(ctx, "webhook:abc")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if value != `{"name":"deploy"}` {
		t.Errorf("value = %q", value)
	}

	if err := store.Delete(ctx, "webhook:abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "webhook:abc"); ok {
		t.Error("key survived delete")
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, ok, err := store.Get(context.Background(), "absent"); ok || err != nil {
		t.Errorf("absent key: ok=%v err=%v", ok, err)
	}
	// Deleting an absent key is not an error.
	if err := store.Delete(context.Background(), "absent"); err != nil {
		t.Errorf("Delete absent: %v", err)
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Put(ctx, "k", "first", 0)
	_ = store.Put(ctx, "k", "second", 0)

	value, _, _ := store.Get(ctx, "k")
	if value != "second" {
		t.Errorf("value = %q, want last write", value)
	}
}

func TestMemoryStoreListPrefixAndOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, key := range []string{"task:b", "task:a", "task:c", "note:x"} {
		_ = store.Put(ctx, key, "{}", 0)
	}

	entries, err := store.List(ctx, "task:", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"task:a", "task:b", "task:c"}
	if len(entries) != len(want) {
		t.Fatalf("len = %d, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].Name != w {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Name, w)
		}
	}

	limited, _ := store.List(ctx, "task:", 2)
	if len(limited) != 2 || limited[0].Name != "task:a" {
		t.Errorf("limited list = %+v", limited)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Put(ctx, "fleeting", "v", 10*time.Millisecond)
	_ = store.Put(ctx, "durable", "v", 0)

	if _, ok, _ := store.Get(ctx, "fleeting"); !ok {
		t.Fatal("key expired immediately")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "fleeting"); ok {
		t.Error("expired key still readable")
	}
	entries, _ := store.List(ctx, "", 0)
	for _, e := range entries {
		if e.Name == "fleeting" {
			t.Error("expired key listed")
		}
	}
	if _, ok, _ := store.Get(ctx, "durable"); !ok {
		t.Error("ttl-free key expired")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Put(ctx, "a", "v", time.Millisecond)
	_ = store.Put(ctx, "b", "v", time.Millisecond)
	_ = store.Put(ctx, "c", "v", 0)

	time.Sleep(5 * time.Millisecond)
	removed, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok, _ := store.Get(ctx, "c"); !ok {
		t.Error("sweep removed a live key")
	}
}

func TestMemoryStoreListExpirationField(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Put(ctx, "expiring", "v", time.Hour)
	_ = store.Put(ctx, "forever", "v", 0)

	entries, _ := store.List(ctx, "", 0)
	for _, e := range entries {
		switch e.Name {
		case "expiring":
			if e.Expiration.IsZero() {
				t.Error("expiring key missing Expiration")
			}
		case "forever":
			if !e.Expiration.IsZero() {
				t.Error("ttl-free key carries Expiration")
			}
		}
	}
}
