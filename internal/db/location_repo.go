package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"skycast/internal/types"
)

// LocationRepository stores the saved location in PostgreSQL.
type LocationRepository struct {
	db        DBTX
	namespace string
	clock     types.Clock
	logger    *slog.Logger
}

// NewLocationRepository creates a LocationRepository for the given namespace.
func NewLocationRepository(db DBTX, namespace string, logger *slog.Logger) *LocationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationRepository{
		db:        db,
		namespace: namespace,
		clock:     types.RealClock{},
		logger:    logger,
	}
}

// IsLocationSet reads the presence flag. A missing row reads as false.
func (r *LocationRepository) IsLocationSet(ctx context.Context) (bool, error) {
	var isSet bool
	err := r.db.QueryRow(ctx,
		`SELECT is_set FROM stored_locations WHERE namespace = $1`,
		r.namespace,
	).Scan(&isSet)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalStorage, "failed to read location flag", err)
	}
	return isSet, nil
}

// GetLocation returns the saved coordinates, or nil when none are saved.
// A set flag with a missing coordinate is treated as unset.
func (r *LocationRepository) GetLocation(ctx context.Context) (*types.Coordinates, error) {
	var (
		isSet   bool
		latBits *int64
		lonBits *int64
	)
	err := r.db.QueryRow(ctx,
		`SELECT is_set, lat_bits, lon_bits FROM stored_locations WHERE namespace = $1`,
		r.namespace,
	).Scan(&isSet, &latBits, &lonBits)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to read location", err)
	}

	if !isSet {
		return nil, nil
	}
	if latBits == nil || lonBits == nil {
		r.logger.WarnContext(ctx, "location flag set without coordinates; treating as unset",
			"namespace", r.namespace,
		)
		return nil, nil
	}

	return &types.Coordinates{Lat: decodeBits(*latBits), Lon: decodeBits(*lonBits)}, nil
}

// SetLocation validates c and writes both coordinates and the flag in one
// statement. Last write wins.
func (r *LocationRepository) SetLocation(ctx context.Context, c types.Coordinates) error {
	if err := c.Validate(); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO stored_locations (namespace, is_set, lat_bits, lon_bits, updated_at)
		 VALUES ($1, TRUE, $2, $3, $4)
		 ON CONFLICT (namespace) DO UPDATE
		 SET is_set = TRUE,
		     lat_bits = EXCLUDED.lat_bits,
		     lon_bits = EXCLUDED.lon_bits,
		     updated_at = EXCLUDED.updated_at`,
		r.namespace, encodeBits(c.Lat), encodeBits(c.Lon), r.clock.Now(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to save location", err)
	}
	return nil
}

// ClearLocation resets the flag and both coordinates in one statement.
// Clearing uninitialized storage is a no-op.
func (r *LocationRepository) ClearLocation(ctx context.Context) error {
	_, err := r.db.Exec(ctx,
		`UPDATE stored_locations
		 SET is_set = FALSE, lat_bits = NULL, lon_bits = NULL, updated_at = $2
		 WHERE namespace = $1`,
		r.namespace, r.clock.Now(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, "failed to clear location", err)
	}
	return nil
}
