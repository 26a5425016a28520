package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	key := CacheKey("newsdata|query one|en")
	if !strings.HasPrefix(key, "factweave:v1:") {
		t.Errorf("key missing version prefix: %q", key)
	}
	if key != CacheKey("newsdata|query one|en") {
		t.Error("identical signatures must hash to identical keys")
	}
	if key == CacheKey("gnews|query one|en") {
		t.Error("distinct signatures must hash to distinct keys")
	}
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, found := c.Get("missing"); found {
		t.Error("empty cache must miss")
	}

	if err := c.Set("k", []byte("response body"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, found := c.Get("k")
	if !found || string(val) != "response body" {
		t.Errorf("expected stored value, got %q (found=%v)", val, found)
	}

	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found := c.Get("k"); found {
		t.Error("deleted key must miss")
	}
}

func TestDiskCache_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := c.Set("k", []byte("response body"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A second instance over the same directory sees the entry
	val, found := NewDiskCache(dir, time.Hour).Get("k")
	if !found || string(val) != "response body" {
		t.Errorf("expected persisted value, got %q (found=%v)", val, found)
	}

	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found := c.Get("k"); found {
		t.Error("deleted key must miss")
	}
}

func TestDiskCache_ExpiredEntryRemoved(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	// Negative TTL writes an already-expired entry
	if err := c.Set("k", []byte("stale"), -time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, found := c.Get("k"); found {
		t.Error("expired entry must miss")
	}
	if _, err := os.Stat(filepath.Join(dir, "k.cache")); !os.IsNotExist(err) {
		t.Error("expired entry must be removed on read")
	}
}

func TestDiskCache_CorruptEntryMisses(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := os.WriteFile(filepath.Join(dir, "k.cache"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("writing corrupt entry: %v", err)
	}

	if _, found := c.Get("k"); found {
		t.Error("corrupt entry must miss, not error")
	}
}

func TestLayeredCache_WriteThrough(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Hour)

	if err := c.Set("k", []byte("response body"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A fresh layered cache over the same directory starts cold in
	// memory but must still hit via disk
	fresh := NewLayeredCache(time.Minute, dir, time.Hour)
	val, found := fresh.Get("k")
	if !found || string(val) != "response body" {
		t.Errorf("expected disk-backed hit after restart, got %q (found=%v)", val, found)
	}
}

func TestLayeredCache_DiskHitPromotedToMemory(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Hour)

	// Seed disk only, bypassing the layered Set
	if err := NewDiskCache(dir, time.Hour).Set("k", []byte("response body"), 0); err != nil {
		t.Fatalf("seeding disk: %v", err)
	}

	if _, found := c.Get("k"); !found {
		t.Fatal("expected disk hit through the layered cache")
	}

	// Remove the disk copy; the promoted memory copy must still serve
	if err := os.Remove(filepath.Join(dir, "k.cache")); err != nil {
		t.Fatalf("removing disk entry: %v", err)
	}
	val, found := c.Get("k")
	if !found || string(val) != "response body" {
		t.Errorf("expected promoted memory hit, got %q (found=%v)", val, found)
	}
}

func TestLayeredCache_Delete(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Hour)

	if err := c.Set("k", []byte("response body"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found := c.Get("k"); found {
		t.Error("deleted key must miss in both layers")
	}
}
