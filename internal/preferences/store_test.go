package preferences

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
)

// Compile-time checks.
var (
	_ fan.Preferences = (*SQLiteStore)(nil)
	_ fan.Preferences = (*MemoryStore)(nil)
	_ Store           = (*SQLiteStore)(nil)
	_ Store           = (*MemoryStore)(nil)
)

// setupTestDB creates an in-memory SQLite database with the preferences schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE preferences (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT`)
	if err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return db
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": NewSQLiteStore(setupTestDB(t)),
		"memory": NewMemoryStore(),
	}
}

func TestStore_SaveLoad(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, found, err := store.Load(ctx, "living_room"); err != nil || found {
				t.Fatalf("Load(missing) = found %v, err %v", found, err)
			}

			first := []byte(`{"state":true}`)
			if err := store.Save(ctx, "living_room", first); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			second := []byte(`{"state":false}`)
			if err := store.Save(ctx, "living_room", second); err != nil {
				t.Fatalf("Save(overwrite) error = %v", err)
			}

			got, found, err := store.Load(ctx, "living_room")
			if err != nil || !found {
				t.Fatalf("Load() = found %v, err %v", found, err)
			}
			if !bytes.Equal(got, second) {
				t.Errorf("Load() = %s, want %s", got, second)
			}
		})
	}
}

func TestStore_EmptyBlob(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Save(ctx, "k", nil); err != nil {
				t.Fatalf("Save(nil) error = %v", err)
			}
			got, found, err := store.Load(ctx, "k")
			if err != nil || !found || len(got) != 0 {
				t.Errorf("Load() = %q, %v, %v; want empty, true, nil", got, found, err)
			}
		})
	}
}

func TestStore_EmptyKey(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, _, err := store.Load(ctx, ""); !errors.Is(err, ErrEmptyKey) {
				t.Errorf("Load(\"\") error = %v", err)
			}
			if err := store.Save(ctx, "", []byte("x")); !errors.Is(err, ErrEmptyKey) {
				t.Errorf("Save(\"\") error = %v", err)
			}
			if err := store.Delete(ctx, ""); !errors.Is(err, ErrEmptyKey) {
				t.Errorf("Delete(\"\") error = %v", err)
			}
		})
	}
}

func TestStore_DeleteAndKeys(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, k := range []string{"c", "a", "b"} {
				if err := store.Save(ctx, k, []byte(k)); err != nil {
					t.Fatalf("Save(%s) error = %v", k, err)
				}
			}
			if err := store.Delete(ctx, "b"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := store.Delete(ctx, "missing"); err != nil {
				t.Fatalf("Delete(missing) error = %v", err)
			}

			keys, err := store.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
				t.Errorf("Keys() = %v, want [a c]", keys)
			}
		})
	}
}

func TestMemoryStore_CopiesBlobs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	blob := []byte("abc")
	if err := store.Save(ctx, "k", blob); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	blob[0] = 'X'

	got, _, _ := store.Load(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored blob aliased caller slice: %q", got)
	}
	got[1] = 'Y'

	again, _, _ := store.Load(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("loaded blob aliased stored slice: %q", again)
	}
}

func TestSQLiteStore_QueryError(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLiteStore(db)
	db.Close()

	if _, _, err := store.Load(context.Background(), "k"); err == nil {
		t.Error("Load() on closed database succeeded")
	}
	if err := store.Save(context.Background(), "k", nil); err == nil {
		t.Error("Save() on closed database succeeded")
	}
}

func TestFanStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(setupTestDB(t))

	original := fan.NewState("bedroom")
	original.SetPreferences(store)
	original.SetOn(true)
	original.SetOscillating(true)
	original.SetSpeed(fan.SpeedLow)
	if err := original.SaveToPreferences(ctx); err != nil {
		t.Fatalf("SaveToPreferences() error = %v", err)
	}

	restored := fan.NewState("bedroom")
	restored.SetPreferences(store)
	if err := restored.LoadFromPreferences(ctx); err != nil {
		t.Fatalf("LoadFromPreferences() error = %v", err)
	}
	if restored.Snapshot() != original.Snapshot() {
		t.Errorf("restored %+v, want %+v", restored.Snapshot(), original.Snapshot())
	}
}
