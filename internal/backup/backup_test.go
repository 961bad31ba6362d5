package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remedy/internal/errors"
	"remedy/internal/logging"
)

func newTestStore(t *testing.T, compress bool) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "backups"), compress, logging.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, compress := range []bool{true, false} {
		name := "compressed"
		if !compress {
			name = "plain"
		}
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, compress)
			content := []byte("fn main() {\n    println!(\"hi\");\n}\n")

			ref, err := s.Snapshot("src/main.rs", content)
			if err != nil {
				t.Fatalf("Snapshot: %v", err)
			}
			if ref.ID == "" || ref.Hash == "" {
				t.Fatalf("ref incomplete: %+v", ref)
			}
			if ref.Size != int64(len(content)) {
				t.Errorf("Size = %d, want %d", ref.Size, len(content))
			}

			restored, err := s.Restore(ref)
			if err != nil {
				t.Fatalf("Restore: %v", err)
			}
			if string(restored) != string(content) {
				t.Errorf("restored content differs: %q", restored)
			}
		})
	}
}

func TestRestoreDetectsCorruption(t *testing.T) {
	s := newTestStore(t, false)

	ref, err := s.Snapshot("src/lib.rs", []byte("original"))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// Damage the snapshot on disk.
	path := filepath.Join(s.Dir(), ref.ID+".bak")
	if err := os.WriteFile(path, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	_, err = s.Restore(ref)
	if err == nil {
		t.Fatal("expected corrupt backup to be rejected")
	}
	if !errors.Is(err, errors.RollbackFailure) {
		t.Errorf("error code = %v, want ROLLBACK_FAILURE", errors.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "corrupt") {
		t.Errorf("error should name the corruption: %v", err)
	}
}

func TestRestoreMissingSnapshot(t *testing.T) {
	s := newTestStore(t, false)

	_, err := s.Restore(Ref{ID: "no-such", Path: "x.rs", Hash: "00"})
	if err == nil {
		t.Fatal("expected missing backup error")
	}
	if !errors.Is(err, errors.RollbackFailure) {
		t.Errorf("error code = %v, want ROLLBACK_FAILURE", errors.CodeOf(err))
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, true)

	ref, err := s.Snapshot("a.rs", []byte("x"))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := s.Remove(ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Restore(ref); err == nil {
		t.Error("restore after remove should fail")
	}
	// Removing twice is not an error.
	if err := s.Remove(ref); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestPruneByCount(t *testing.T) {
	s := newTestStore(t, false)

	refs := make([]Ref, 0, 5)
	for i := 0; i < 5; i++ {
		ref, err := s.Snapshot("f.rs", []byte{byte('a' + i)})
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		// Spread mtimes so the prune order is deterministic.
		older := time.Now().Add(time.Duration(i-5) * time.Hour)
		path := filepath.Join(s.Dir(), ref.ID+".bak")
		if err := os.Chtimes(path, older, older); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
		refs = append(refs, ref)
	}

	removed, err := s.Prune(0, 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	// The two newest snapshots survive.
	for i, ref := range refs {
		_, err := s.Restore(ref)
		if i < 3 && err == nil {
			t.Errorf("snapshot %d should have been pruned", i)
		}
		if i >= 3 && err != nil {
			t.Errorf("snapshot %d should survive: %v", i, err)
		}
	}
}

func TestPruneByAge(t *testing.T) {
	s := newTestStore(t, false)

	old, err := s.Snapshot("old.rs", []byte("old"))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(s.Dir(), old.ID+".bak"), stale, stale); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	fresh, err := s.Snapshot("new.rs", []byte("new"))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	removed, err := s.Prune(24*time.Hour, 0)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := s.Restore(old); err == nil {
		t.Error("stale snapshot should be gone")
	}
	if _, err := s.Restore(fresh); err != nil {
		t.Errorf("fresh snapshot should survive: %v", err)
	}
}

func TestHashIsStable(t *testing.T) {
	a := Hash([]byte("same"))
	b := Hash([]byte("same"))
	c := Hash([]byte("different"))
	if a != b {
		t.Error("hash not deterministic")
	}
	if a == c {
		t.Error("distinct content collided")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}
