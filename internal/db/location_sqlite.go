package db

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"skycast/internal/types"
)

// SQLiteLocationStore stores the saved location in a local SQLite file.
type SQLiteLocationStore struct {
	db        *sql.DB
	namespace string
	clock     types.Clock
	logger    *slog.Logger
}

// NewSQLiteLocationStore creates a store over an opened database whose schema
// has been initialized with InitSQLiteSchema.
func NewSQLiteLocationStore(db *sql.DB, namespace string, logger *slog.Logger) *SQLiteLocationStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteLocationStore{
		db:        db,
		namespace: namespace,
		clock:     types.RealClock{},
		logger:    logger,
	}
}

func (s *SQLiteLocationStore) IsLocationSet(ctx context.Context) (bool, error) {
	var isSet bool
	err := s.db.QueryRowContext(ctx,
		`SELECT is_set FROM stored_locations WHERE namespace = ?`,
		s.namespace,
	).Scan(&isSet)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalStorage, "failed to read location flag", err)
	}
	return isSet, nil
}

func (s *SQLiteLocationStore) GetLocation(ctx context.Context) (*types.Coordinates, error) {
	var (
		isSet   bool
		latBits sql.NullInt64
		lonBits sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT is_set, lat_bits, lon_bits FROM stored_locations WHERE namespace = ?`,
		s.namespace,
	).Scan(&isSet, &latBits, &lonBits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to read location", err)
	}

	if !isSet {
		return nil, nil
	}
	if !latBits.Valid || !lonBits.Valid {
		s.logger.WarnContext(ctx, "location flag set without coordinates; treating as unset",
			"namespace", s.namespace,
		)
		return nil, nil
	}

	return &types.Coordinates{Lat: decodeBits(latBits.Int64), Lon: decodeBits(lonBits.Int64)}, nil
}

func (s *SQLiteLocationStore) SetLocation(ctx context.Context, c types.Coordinates) error {
	if err := c.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stored_locations (namespace, is_set, lat_bits, lon_bits, updated_at)
		 VALUES (?, 1, ?, ?, ?)
		 ON CONFLICT (namespace) DO UPDATE
		 SET is_set = 1,
		     lat_bits = excluded.lat_bits,
		     lon_bits = excluded.lon_bits,
		     updated_at = excluded.updated_at`,
		s.namespace, encodeBits(c.Lat), encodeBits(c.Lon), s.now(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to save location", err)
	}
	return nil
}

func (s *SQLiteLocationStore) ClearLocation(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE stored_locations
		 SET is_set = 0, lat_bits = NULL, lon_bits = NULL, updated_at = ?
		 WHERE namespace = ?`,
		s.now(), s.namespace,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to clear location", err)
	}
	return nil
}

// Ping verifies the database file is reachable.
func (s *SQLiteLocationStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLiteLocationStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteLocationStore) now() string {
	return s.clock.Now().Format(time.RFC3339Nano)
}

var (
	_ types.LocationStore = (*SQLiteLocationStore)(nil)
	_ types.LocationStore = (*LocationRepository)(nil)
	_ LocationBackend     = (*SQLiteLocationStore)(nil)
	_ LocationBackend     = (*pgBackend)(nil)
)
