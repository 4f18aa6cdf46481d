package db

import (
	"context"
	"database/sql"

	"skycast/internal/types"
)

// The saved location is one row per namespace. is_set and both bit columns
// are always written by a single statement.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS stored_locations (
	namespace  TEXT PRIMARY KEY,
	is_set     BOOLEAN NOT NULL DEFAULT FALSE,
	lat_bits   BIGINT NULL,
	lon_bits   BIGINT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS stored_locations (
	namespace  TEXT PRIMARY KEY,
	is_set     INTEGER NOT NULL DEFAULT 0,
	lat_bits   INTEGER NULL,
	lon_bits   INTEGER NULL,
	updated_at TEXT NOT NULL
)`

// InitPostgresSchema creates the stored_locations table when missing.
func InitPostgresSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to create location schema", err)
	}
	return nil
}

// InitSQLiteSchema creates the stored_locations table when missing. The DDL
// runs in a transaction so a half-created schema is never observed.
func InitSQLiteSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to begin schema transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqliteSchema); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to create location schema", err)
	}
	if err := tx.Commit(); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to commit location schema", err)
	}
	return nil
}
