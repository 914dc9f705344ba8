package cache

import (
	"bytes"
	"context"
	"sort"
	"testing"
	"time"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	value := []byte(`[{"x":1}]`)
	store.Set(ctx, "query:hana:SELECT 1", value, 5*time.Minute)

	got, ok := store.Get(ctx, "query:hana:SELECT 1")
	if !ok {
		t.Fatal("Get() miss after Set()")
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get() = %s, want %s", got, value)
	}

	// Repeated reads return the same value.
	got2, ok := store.Get(ctx, "query:hana:SELECT 1")
	if !ok || !bytes.Equal(got2, value) {
		t.Errorf("second Get() = %s, %v, want %s, true", got2, ok, value)
	}
}

func TestMemoryStore_GetMiss(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, ok := store.Get(ctx, "missing"); ok {
		t.Error("Get() = hit for missing key")
	}

	stats := store.Stats(ctx)
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	store.Set(ctx, "key", []byte(`"v"`), 30*time.Millisecond)

	if _, ok := store.Get(ctx, "key"); !ok {
		t.Fatal("Get() miss before expiry")
	}

	time.Sleep(50 * time.Millisecond)

	if _, ok := store.Get(ctx, "key"); ok {
		t.Error("Get() hit after expiry")
	}
	if store.Has(ctx, "key") {
		t.Error("Has() = true after expiry, entry not purged")
	}

	stats := store.Stats(ctx)
	if stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestMemoryStore_NoTTLNeverExpires(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	store.Set(ctx, "key", []byte(`"v"`), 0)

	time.Sleep(20 * time.Millisecond)

	if _, ok := store.Get(ctx, "key"); !ok {
		t.Error("entry without TTL expired")
	}
}

func TestMemoryStore_Overwrite(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	store.Set(ctx, "key", []byte(`"old"`), 0)
	store.Set(ctx, "key", []byte(`"new"`), 0)

	got, _ := store.Get(ctx, "key")
	if string(got) != `"new"` {
		t.Errorf("Get() = %s, want %q after overwrite", got, `"new"`)
	}

	stats := store.Stats(ctx)
	if stats.Sets != 2 {
		t.Errorf("Sets = %d, want 2", stats.Sets)
	}
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	store.Set(ctx, "key", []byte(`"v"`), 0)

	if !store.Delete(ctx, "key") {
		t.Error("Delete() = false for existing key")
	}
	if store.Delete(ctx, "key") {
		t.Error("Delete() = true for missing key")
	}

	stats := store.Stats(ctx)
	if stats.Deletes != 1 {
		t.Errorf("Deletes = %d, want 1 (missing key must not count)", stats.Deletes)
	}
}

func TestMemoryStore_HasDoesNotAffectHitMiss(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	store.Set(ctx, "key", []byte(`"v"`), 0)
	store.Has(ctx, "key")
	store.Has(ctx, "other")

	stats := store.Stats(ctx)
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Hits/Misses = %d/%d after Has(), want 0/0", stats.Hits, stats.Misses)
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	store.Set(ctx, "a", []byte(`1`), 0)
	store.Set(ctx, "b", []byte(`2`), 0)
	store.Get(ctx, "a")
	store.Get(ctx, "missing")
	store.Delete(ctx, "b")

	store.Clear(ctx)

	stats := store.Stats(ctx)
	if stats.Hits != 0 || stats.Misses != 0 || stats.Sets != 0 || stats.Deletes != 0 {
		t.Errorf("counters not reset by Clear(): %+v", stats)
	}
	if stats.Clears != 1 {
		t.Errorf("Clears = %d, want 1", stats.Clears)
	}
	if stats.Entries != 0 {
		t.Errorf("Entries = %d, want 0", stats.Entries)
	}

	// The clears counter itself survives further clears.
	store.Clear(ctx)
	if got := store.Stats(ctx).Clears; got != 2 {
		t.Errorf("Clears = %d, want 2", got)
	}
}

func TestMemoryStore_Keys(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	store.Set(ctx, "alive", []byte(`1`), 5*time.Minute)
	store.Set(ctx, "forever", []byte(`2`), 0)
	store.Set(ctx, "dying", []byte(`3`), 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	keys := store.Keys(ctx)
	sort.Strings(keys)
	want := []string{"alive", "forever"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	// Enumeration purged the expired entry.
	if store.Has(ctx, "dying") {
		t.Error("expired entry still present after Keys()")
	}
}

func TestMemoryStore_StatsHitRate(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if got := store.Stats(ctx).HitRate; got != 0 {
		t.Errorf("HitRate = %v before any Get, want 0", got)
	}

	store.Set(ctx, "key", []byte(`1`), 0)
	store.Get(ctx, "key")
	store.Get(ctx, "key")
	store.Get(ctx, "missing")
	store.Get(ctx, "missing")

	stats := store.Stats(ctx)
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}
	if stats.Hits+stats.Misses != 4 {
		t.Errorf("Hits+Misses = %d, want 4 (one per Get)", stats.Hits+stats.Misses)
	}
	if stats.Type != "memory" {
		t.Errorf("Type = %q, want %q", stats.Type, "memory")
	}
	if !stats.Available {
		t.Error("Available = false for memory store")
	}
}
