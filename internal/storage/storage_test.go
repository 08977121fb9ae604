package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// testStore opens a Store on a temporary database.
func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recorder collects change notifications.
type recorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *recorder) record(keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys...)
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "tabgruppen.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestOpenDB_IdempotentMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idempotent.db")

	db1, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("first OpenDB: %v", err)
	}
	db1.Close()

	db2, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("second OpenDB: %v", err)
	}
	defer db2.Close()

	var count int
	db2.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if count != len(migrations) {
		t.Errorf("expected %d migrations, got %d", len(migrations), count)
	}
}

func TestGetSet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var got map[string]int
	found, err := s.Get(ctx, "missing", &got)
	if err != nil || found {
		t.Fatalf("Get(missing) = %v, %v; want false, nil", found, err)
	}

	if err := s.Set(ctx, "counts", map[string]int{"a": 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	found, err = s.Get(ctx, "counts", &got)
	if err != nil || !found {
		t.Fatalf("Get = %v, %v", found, err)
	}
	if got["a"] != 1 {
		t.Errorf("got %v", got)
	}

	if err := s.Delete(ctx, "counts"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	found, err = s.Get(ctx, "counts", &got)
	if err != nil || found {
		t.Fatalf("Get after delete = %v, %v", found, err)
	}
}

func TestOnChangedLocalWrite(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var r recorder
	cancel := s.OnChanged(r.record)

	s.Set(ctx, "tagDirectory", []int{1})
	s.Delete(ctx, "tagDirectory")
	cancel()
	s.Set(ctx, "tagDirectory", []int{2})

	got := r.got()
	if len(got) != 2 || got[0] != "tagDirectory" || got[1] != "tagDirectory" {
		t.Errorf("got %v, want two tagDirectory notifications", got)
	}
}

func TestPollSeesOtherProcessWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	var r recorder
	b.OnChanged(r.record)

	ctx := context.Background()
	if err := a.Set(ctx, "tabGroupDirectory", map[string]string{"x": "y"}); err != nil {
		t.Fatal(err)
	}
	if len(r.got()) != 0 {
		t.Fatalf("b notified before polling: %v", r.got())
	}
	if err := b.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if got := r.got(); len(got) != 1 || got[0] != "tabGroupDirectory" {
		t.Fatalf("got %v", got)
	}
	// A second poll reports nothing new.
	b.Poll(ctx)
	if got := r.got(); len(got) != 1 {
		t.Fatalf("duplicate notification: %v", got)
	}
}

func TestWatchNotices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.db")
	a, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	changed := make(chan string, 8)
	b.OnChanged(func(keys []string) {
		for _, k := range keys {
			changed <- k
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go b.Watch(ctx, 50*time.Millisecond)

	if err := a.Set(context.Background(), "temporaryContainers", []string{"firefox-container-3"}); err != nil {
		t.Fatal(err)
	}
	select {
	case k := <-changed:
		if k != "temporaryContainers" {
			t.Errorf("got %q", k)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for change")
	}
}

func TestTabValues(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var r recorder
	s.OnChanged(r.record)

	if err := s.SetTabValue(ctx, 42, "tag", 3); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTabValue(ctx, 7, "tag", 1); err != nil {
		t.Fatal(err)
	}

	var tag int
	found, err := s.TabValue(ctx, 42, "tag", &tag)
	if err != nil || !found || tag != 3 {
		t.Fatalf("TabValue = %d, %v, %v", tag, found, err)
	}

	all, err := s.TabValues(ctx, "tag")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || string(all[7]) != "1" {
		t.Errorf("TabValues = %v", all)
	}

	if err := s.RemoveTab(ctx, 42); err != nil {
		t.Fatal(err)
	}
	found, _ = s.TabValue(ctx, 42, "tag", &tag)
	if found {
		t.Error("tab 42 still has a tag after RemoveTab")
	}

	for _, k := range r.got() {
		if k != TabAttributeKey("tag") {
			t.Errorf("unexpected change key %q", k)
		}
	}
	if len(r.got()) != 3 {
		t.Errorf("got %d notifications, want 3", len(r.got()))
	}
}
