package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"skycast/internal/types"
)

// sqliteBusyTimeoutMS bounds how long a writer waits on a locked database.
const sqliteBusyTimeoutMS = 5000

// OpenSQLite opens (or creates) the database file at path with WAL
// journaling. The parent directory is created with owner-only permissions.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to create database directory", err)
		}
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", sqliteBusyTimeoutMS))
	q.Add("_pragma", "journal_mode(WAL)")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to open sqlite database", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to open sqlite database", err)
	}
	return db, nil
}
