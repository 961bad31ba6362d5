package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"remedy/internal/backup"
	"remedy/internal/diagnostic"
	"remedy/internal/logging"
)

// Correction status values. A correction starts as applied; rollback
// during a run or a later undo flips it. Entries are never deleted
// except by retention pruning.
const (
	StatusApplied    = "applied"
	StatusRolledBack = "rolled-back"
	StatusUndone     = "undone"
)

// Entry is one applied correction and the backup that guards it.
type Entry struct {
	ID                string          `json:"id"`
	RunID             string          `json:"runId"`
	AppliedAt         time.Time       `json:"appliedAt"`
	File              string          `json:"file"`
	DiagnosticCode    string          `json:"diagnosticCode"`
	DiagnosticMessage string          `json:"diagnosticMessage"`
	StrategyID        string          `json:"strategyId"`
	Span              diagnostic.Span `json:"span"`
	Original          string          `json:"original"`
	Replacement       string          `json:"replacement"`
	Confidence        float64         `json:"confidence"`
	Safety            string          `json:"safety"`
	Status            string          `json:"status"`

	// ResultHash is the BLAKE2b hash of the whole file after the run
	// that applied this correction. Undo refuses to restore when the
	// file on disk no longer matches it.
	ResultHash string `json:"resultHash"`

	Backup backup.Ref `json:"backup"`
}

// Ledger records applied corrections.
type Ledger struct {
	db     *DB
	logger *logging.Logger
}

// Open opens the ledger for a repository.
func Open(repoRoot string, logger *logging.Logger) (*Ledger, error) {
	db, err := OpenDB(repoRoot, logger)
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Append records one applied correction. The entry's ID and AppliedAt
// are assigned here when unset.
func (l *Ledger) Append(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = StatusApplied
	}

	err := l.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO corrections (
				id, run_id, applied_at, file, diagnostic_code,
				diagnostic_message, strategy_id, span_start, span_end,
				original, replacement, confidence, safety, status, result_hash
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.RunID, e.AppliedAt.Unix(), e.File, e.DiagnosticCode,
			e.DiagnosticMessage, e.StrategyID, e.Span.Start, e.Span.End,
			e.Original, e.Replacement, e.Confidence, e.Safety, e.Status,
			e.ResultHash,
		); err != nil {
			return fmt.Errorf("failed to insert correction: %w", err)
		}

		if _, err := tx.Exec(`
			INSERT INTO backups (
				correction_id, backup_id, path, hash, size, compressed, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Backup.ID, e.Backup.Path, e.Backup.Hash,
			e.Backup.Size, boolToInt(e.Backup.Compressed), e.Backup.CreatedAt.Unix(),
		); err != nil {
			return fmt.Errorf("failed to insert backup ref: %w", err)
		}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}

	l.logger.Debug("Correction recorded", map[string]interface{}{
		"id":       e.ID,
		"file":     e.File,
		"strategy": e.StrategyID,
	})
	return e, nil
}

// SetStatus marks an existing correction as rolled back or undone.
func (l *Ledger) SetStatus(id, status string) error {
	return l.db.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE corrections SET status = ? WHERE id = ?`, status, id)
		if err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no correction with id %s", id)
		}
		return nil
	})
}

// SetStatusForBackup marks every still-applied correction guarded by
// one backup snapshot. Restoring a snapshot reverts the whole file, so
// all corrections it covers move status together. Returns how many
// entries changed.
func (l *Ledger) SetStatusForBackup(backupID, status string) (int, error) {
	var n int64
	err := l.db.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE corrections SET status = ?
			WHERE status = ? AND id IN (
				SELECT correction_id FROM backups WHERE backup_id = ?
			)`, status, StatusApplied, backupID)
		if err != nil {
			return fmt.Errorf("failed to update statuses: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

const selectEntry = `
	SELECT c.id, c.run_id, c.applied_at, c.file, c.diagnostic_code,
	       c.diagnostic_message, c.strategy_id, c.span_start, c.span_end,
	       c.original, c.replacement, c.confidence, c.safety, c.status,
	       c.result_hash,
	       b.backup_id, b.path, b.hash, b.size, b.compressed, b.created_at
	FROM corrections c
	JOIN backups b ON b.correction_id = c.id
`

// Get returns one correction by ID.
func (l *Ledger) Get(id string) (Entry, error) {
	row := l.db.conn.QueryRow(selectEntry+` WHERE c.id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, fmt.Errorf("no correction with id %s", id)
	}
	return e, err
}

// List returns corrections newest first, up to limit (0 for all).
func (l *Ledger) List(limit int) ([]Entry, error) {
	query := selectEntry + ` ORDER BY c.applied_at DESC, c.id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastApplied returns the most recent still-applied correction for a
// file, for undo.
func (l *Ledger) LastApplied(file string) (Entry, bool, error) {
	row := l.db.conn.QueryRow(
		selectEntry+` WHERE c.file = ? AND c.status = ?
		ORDER BY c.applied_at DESC, c.id DESC LIMIT 1`,
		file, StatusApplied)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Prune deletes corrections older than the retention window and returns
// how many were removed. Backup refs go with them via the foreign key.
func (l *Ledger) Prune(retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention).Unix()
	var removed int64
	err := l.db.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM corrections WHERE applied_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune corrections: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return int(removed), err
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scannable) (Entry, error) {
	var e Entry
	var appliedAt, backupCreated int64
	var compressed int
	err := row.Scan(
		&e.ID, &e.RunID, &appliedAt, &e.File, &e.DiagnosticCode,
		&e.DiagnosticMessage, &e.StrategyID, &e.Span.Start, &e.Span.End,
		&e.Original, &e.Replacement, &e.Confidence, &e.Safety, &e.Status,
		&e.ResultHash,
		&e.Backup.ID, &e.Backup.Path, &e.Backup.Hash, &e.Backup.Size,
		&compressed, &backupCreated,
	)
	if err != nil {
		return Entry{}, err
	}
	e.AppliedAt = time.Unix(appliedAt, 0).UTC()
	e.Backup.CreatedAt = time.Unix(backupCreated, 0).UTC()
	e.Backup.Compressed = compressed != 0
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
