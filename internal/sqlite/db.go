package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection, holding the advisory file lock
// that enforces the one-connection-per-process resource bound.
type DB struct {
	*sql.DB
	lock *flock.Flock
	path string
}

// Open opens (creating if necessary) the database at path, runs the
// migration set, and acquires an advisory lock on a sibling ".lock" file so
// a second process cannot open the same database concurrently.
func Open(path string) (*DB, error) {
	var lock *flock.Flock
	if path != ":memory:" && path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("prepare database directory: %w", err)
			}
		}
		lock = flock.New(path + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire database lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("database %s is already open by another process", path)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single physical connection: the storage layer is single-writer by
	// design, so there is never a reason to pool connections.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{DB: sqlDB, lock: lock, path: path}
	if err := db.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Close releases the database handle and the advisory lock.
func (db *DB) Close() error {
	err := db.DB.Close()
	if db.lock != nil {
		if unlockErr := db.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	return err
}
