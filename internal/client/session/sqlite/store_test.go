package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/campushq/campushq/internal/client/session"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "campushq.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadEmptyStore(t *testing.T) {
	store := openTempStore(t)

	_, ok, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("expected no persisted session")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := openTempStore(t)

	want := session.Session{
		User: session.User{
			ID:    "user-1",
			Name:  "Avery",
			Email: "avery@campus.test",
			Role:  session.RoleAdmin,
		},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted session")
	}
	if got != want {
		t.Fatalf("loaded = %+v, want %+v", got, want)
	}
}

func TestSaveReplacesPreviousSession(t *testing.T) {
	store := openTempStore(t)

	first := session.Session{
		User:         session.User{ID: "user-1", Role: session.RoleStudent},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}
	second := session.Session{
		User:         session.User{ID: "user-2", Role: session.RoleStudent},
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
	}
	if err := store.Save(first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.Save(second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.User.ID != "user-2" || got.AccessToken != "access-2" {
		t.Fatalf("loaded = %+v, want second session", got)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := openTempStore(t)

	if err := store.Save(session.Session{
		User:         session.User{ID: "user-1", Role: session.RoleStudent},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := store.Delete(); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	_, ok, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("expected no session after delete")
	}
}

func TestReopenRestoresSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campushq.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	want := session.Session{
		User:         session.User{ID: "user-1", Role: session.RoleStudent},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Load()
	if err != nil || !ok {
		t.Fatalf("load after reopen: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("loaded = %+v, want %+v", got, want)
	}
}
