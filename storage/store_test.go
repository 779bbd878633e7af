package storage

import (
	"path/filepath"
	"testing"
)

func TestOpen_MigratesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webtest.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	for _, table := range []string{"selector_cache", "heal_history"} {
		var name string
		err := store.Conn().QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webtest.db")

	store1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	store1.Close()

	store2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer store2.Close()
}
