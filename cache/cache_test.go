package cache

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/lamb/compiler"
	"github.com/chazu/lamb/compiler/hash"
	"github.com/chazu/lamb/vm/dist"
	"github.com/google/uuid"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache", "bundles.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// testBundle compiles src and returns its bundle with its cache key.
func testBundle(t *testing.T, src string) ([32]byte, *dist.Bundle) {
	t.Helper()
	key, exprs, err := hash.HashSource(src)
	if err != nil {
		t.Fatalf("HashSource: %v", err)
	}
	prog, err := compiler.Compile(exprs)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return key, dist.NewBundle([]byte(src), prog.Code, prog.Globals)
}

func TestCache_PutGet(t *testing.T) {
	c := openTestCache(t)
	key, b := testBundle(t, "(define x 5) (+ x 1)")

	id, err := c.Put(key, b)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("Put returned non-uuid id %q", id)
	}

	got, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CodeHash != b.CodeHash {
		t.Error("CodeHash mismatch")
	}
}

func TestCache_RenamedProgramHits(t *testing.T) {
	c := openTestCache(t)
	key, b := testBundle(t, "(define (id x) x) (id 4)")
	if _, err := c.Put(key, b); err != nil {
		t.Fatal(err)
	}

	renamed, _ := testBundle(t, "; same program\n(define (id y)\n  y)\n(id 4)")
	got, err := c.Get(renamed)
	if err != nil {
		t.Fatalf("Get renamed: %v", err)
	}
	if got.CodeHash != b.CodeHash {
		t.Error("CodeHash mismatch")
	}
}

func TestCache_GetMissing(t *testing.T) {
	c := openTestCache(t)
	_, err := c.Get(dist.HashSource([]byte("nothing here")))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: got %v, want ErrNotFound", err)
	}
}

func TestCache_PutReplaces(t *testing.T) {
	c := openTestCache(t)
	key, b := testBundle(t, "(display 1)")

	if _, err := c.Put(key, b); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Put(key, b); err != nil {
		t.Fatal(err)
	}

	entries, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List: got %d entries, want 1", len(entries))
	}
	if entries[0].Key != key {
		t.Error("entry Key mismatch")
	}
}

func TestCache_Delete(t *testing.T) {
	c := openTestCache(t)
	key, b := testBundle(t, "(display 1)")
	if _, err := c.Put(key, b); err != nil {
		t.Fatal(err)
	}

	if err := c.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: got %v, want ErrNotFound", err)
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	c := openTestCache(t)
	key, b := testBundle(t, "(display 1)")
	if _, err := c.Put(key, b); err != nil {
		t.Fatal(err)
	}

	if _, err := c.db.Exec("UPDATE bundles SET data = ? WHERE program_hash = ?", []byte{0xff}, key[:]); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get corrupt: got %v, want ErrNotFound", err)
	}
	entries, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("corrupt entry not removed: %d entries", len(entries))
	}
}

func TestCache_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.db")
	key, b := testBundle(t, "(define (id x) x) (id 4)")

	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Put(key, b); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Get(key); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}
