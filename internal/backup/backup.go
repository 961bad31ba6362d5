// Package backup stores pre-modification file snapshots and restores
// them during rollback and undo. Snapshots are content addressed by a
// BLAKE2b-256 hash and verified on every restore.
package backup

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"remedy/internal/errors"
	"remedy/internal/logging"
)

// Ref identifies one snapshot. Refs are recorded in the ledger next to
// the correction they guard.
type Ref struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store writes snapshots under a single directory, one file per
// snapshot, named by UUID.
type Store struct {
	dir      string
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	logger   *logging.Logger
}

// NewStore opens (and creates if needed) the snapshot directory.
func NewStore(dir string, compress bool, logger *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(errors.ApplyIO,
			fmt.Sprintf("cannot create backup directory %s", dir), err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.New(errors.InternalError, "zstd encoder init failed", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.New(errors.InternalError, "zstd decoder init failed", err)
	}

	return &Store{
		dir:      dir,
		compress: compress,
		encoder:  encoder,
		decoder:  decoder,
		logger:   logger,
	}, nil
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string {
	return s.dir
}

// Hash computes the content hash used for snapshot verification.
func Hash(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Snapshot persists content as it was before modification and returns
// the ref needed to restore it. The snapshot file is written atomically
// so a crash never leaves a truncated backup behind.
func (s *Store) Snapshot(path string, content []byte) (Ref, error) {
	ref := Ref{
		ID:         uuid.New().String(),
		Path:       path,
		Hash:       Hash(content),
		Size:       int64(len(content)),
		Compressed: s.compress,
		CreatedAt:  time.Now().UTC(),
	}

	data := content
	if s.compress {
		data = s.encoder.EncodeAll(content, nil)
	}

	if err := writeAtomic(s.snapshotPath(ref), data); err != nil {
		return Ref{}, errors.New(errors.ApplyIO,
			fmt.Sprintf("cannot write backup for %s", path), err)
	}

	s.logger.Debug("Snapshot written", map[string]interface{}{
		"path": path,
		"id":   ref.ID,
		"size": ref.Size,
	})
	return ref, nil
}

// Restore reads a snapshot back and verifies its hash. A corrupt
// snapshot is reported as a rollback failure: the caller cannot trust
// the restored bytes.
func (s *Store) Restore(ref Ref) ([]byte, error) {
	data, err := os.ReadFile(s.snapshotPath(ref))
	if err != nil {
		return nil, errors.New(errors.RollbackFailure,
			fmt.Sprintf("backup %s for %s is missing", ref.ID, ref.Path), err)
	}

	if ref.Compressed {
		data, err = s.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.New(errors.RollbackFailure,
				fmt.Sprintf("backup %s for %s does not decompress", ref.ID, ref.Path), err)
		}
	}

	if got := Hash(data); got != ref.Hash {
		return nil, errors.Newf(errors.RollbackFailure,
			"backup %s for %s is corrupt: hash %s, want %s", ref.ID, ref.Path, got, ref.Hash)
	}
	return data, nil
}

// Remove deletes one snapshot.
func (s *Store) Remove(ref Ref) error {
	if err := os.Remove(s.snapshotPath(ref)); err != nil && !os.IsNotExist(err) {
		return errors.New(errors.ApplyIO,
			fmt.Sprintf("cannot remove backup %s", ref.ID), err)
	}
	return nil
}

// Prune deletes snapshots older than maxAge, then the oldest beyond
// maxSnapshots. Either limit may be zero to disable it. Returns the
// number of snapshots removed.
func (s *Store) Prune(maxAge time.Duration, maxSnapshots int) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, errors.New(errors.ApplyIO, "cannot list backup directory", err)
	}

	type snap struct {
		name    string
		modTime time.Time
	}
	snaps := make([]snap, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bak") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, snap{name: e.Name(), modTime: info.ModTime()})
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].modTime.Before(snaps[j].modTime)
	})

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	keep := snaps[:0]
	for _, sn := range snaps {
		if maxAge > 0 && sn.modTime.Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, sn.name)); err == nil {
				removed++
				continue
			}
		}
		keep = append(keep, sn)
	}

	if maxSnapshots > 0 && len(keep) > maxSnapshots {
		excess := len(keep) - maxSnapshots
		for _, sn := range keep[:excess] {
			if err := os.Remove(filepath.Join(s.dir, sn.name)); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Info("Pruned backups", map[string]interface{}{"removed": removed})
	}
	return removed, nil
}

func (s *Store) snapshotPath(ref Ref) string {
	return filepath.Join(s.dir, ref.ID+".bak")
}

// writeAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
