// Package ledger is the append-only record of every correction remedy
// has applied, backed by SQLite at .remedy/remedy.db.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"remedy/internal/logging"
	"remedy/internal/paths"
)

// DB wraps the SQLite connection with transaction helpers.
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
}

// OpenDB opens or creates the ledger database under repoRoot, creating
// the schema on first use.
func OpenDB(repoRoot string, logger *logging.Logger) (*DB, error) {
	stateDir := filepath.Join(repoRoot, paths.ConfigDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", paths.ConfigDirName, err)
	}

	dbPath := filepath.Join(stateDir, "remedy.db")
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	db := &DB{conn: conn, logger: logger, dbPath: dbPath}

	if !dbExists {
		logger.Info("Creating new ledger database", map[string]interface{}{
			"path": dbPath,
		})
	}
	if err := db.initializeSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// WithTx executes fn within a transaction, rolling back on error or
// panic.
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("failed to rollback transaction", map[string]interface{}{
				"error":          err.Error(),
				"rollback_error": rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS corrections (
				id                 TEXT PRIMARY KEY,
				run_id             TEXT NOT NULL,
				applied_at         INTEGER NOT NULL,
				file               TEXT NOT NULL,
				diagnostic_code    TEXT NOT NULL,
				diagnostic_message TEXT NOT NULL,
				strategy_id        TEXT NOT NULL,
				span_start         INTEGER NOT NULL,
				span_end           INTEGER NOT NULL,
				original           TEXT NOT NULL,
				replacement        TEXT NOT NULL,
				confidence         REAL NOT NULL,
				safety             TEXT NOT NULL,
				status             TEXT NOT NULL,
				result_hash        TEXT NOT NULL DEFAULT ''
			)
		`); err != nil {
			return fmt.Errorf("failed to create corrections table: %w", err)
		}

		if _, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS backups (
				correction_id TEXT PRIMARY KEY REFERENCES corrections(id) ON DELETE CASCADE,
				backup_id     TEXT NOT NULL,
				path          TEXT NOT NULL,
				hash          TEXT NOT NULL,
				size          INTEGER NOT NULL,
				compressed    INTEGER NOT NULL,
				created_at    INTEGER NOT NULL
			)
		`); err != nil {
			return fmt.Errorf("failed to create backups table: %w", err)
		}

		if _, err := tx.Exec(`
			CREATE INDEX IF NOT EXISTS idx_corrections_file
			ON corrections(file, applied_at)
		`); err != nil {
			return fmt.Errorf("failed to create file index: %w", err)
		}

		return nil
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
