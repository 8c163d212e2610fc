package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"promowatch/internal/modules/security"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	dir := t.TempDir()
	vault, err := security.NewVault(dir, "test-secret")
	if err != nil {
		t.Fatalf("NewVault() failed: %v", err)
	}
	storage, err := NewStorage(dir, vault)
	if err != nil {
		t.Fatalf("NewStorage() failed: %v", err)
	}
	return storage
}

func TestStorageRoundTrip(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.Save("+79990001122", "session-blob"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	got, found := storage.Load("+79990001122")
	if !found || got != "session-blob" {
		t.Errorf("Load() = (%q, %v), want (session-blob, true)", got, found)
	}
}

func TestStorageSessionTTL(t *testing.T) {
	storage := newTestStorage(t)

	tests := []struct {
		name      string
		age       time.Duration
		wantFound bool
	}{
		{"six days old is valid", 6 * 24 * time.Hour, true},
		{"eight days old is absent", 8 * 24 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage.now = func() time.Time { return time.Now().Add(-tt.age) }
			if err := storage.Save("+79990001122", "session-blob"); err != nil {
				t.Fatalf("Save() failed: %v", err)
			}
			storage.now = time.Now

			_, found := storage.Load("+79990001122")
			if found != tt.wantFound {
				t.Errorf("Load() found = %v, want %v", found, tt.wantFound)
			}
		})
	}
}

func TestStorageCorruptBlobTreatedAsAbsent(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.Save("+79990001122", "session-blob"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	entries, err := os.ReadDir(storage.dir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("session file not written: %v", err)
	}
	path := filepath.Join(storage.dir, entries[0].Name())
	if err := os.WriteFile(path, []byte("garbage"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, found := storage.Load("+79990001122"); found {
		t.Error("corrupt blob reported as a usable session")
	}
}

func TestStorageClear(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.Save("+79990001122", "session-blob"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := storage.Clear("+79990001122"); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if _, found := storage.Load("+79990001122"); found {
		t.Error("session still loadable after Clear")
	}
	// Clearing an absent session is not an error.
	if err := storage.Clear("+79990001122"); err != nil {
		t.Errorf("Clear() of absent session failed: %v", err)
	}
}

func TestStorageFileNameNeverContainsIdentity(t *testing.T) {
	storage := newTestStorage(t)

	identity := "+79990001122"
	if err := storage.Save(identity, "session-blob"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	entries, err := os.ReadDir(storage.dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), strings.TrimPrefix(identity, "+")) {
			t.Errorf("session file %q leaks the identity", entry.Name())
		}
		if !strings.HasSuffix(entry.Name(), ".session") {
			t.Errorf("unexpected file %q in session directory", entry.Name())
		}
	}
}
