// Package db provides the storage backends for the saved location. The
// PostgreSQL repository accepts a DBTX interface satisfied by both
// *pgxpool.Pool and pgx.Tx; the SQLite store runs on database/sql with the
// pure-Go modernc.org/sqlite driver.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"skycast/internal/config"
	"skycast/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LocationBackend is a LocationStore that owns its connection.
type LocationBackend interface {
	types.LocationStore
	Ping(ctx context.Context) error
	Close() error
}

// Coordinates are persisted as their IEEE-754 bit patterns so a round trip
// is exact, including -0.0 and subnormals.
func encodeBits(v float64) int64 { return int64(math.Float64bits(v)) }

func decodeBits(b int64) float64 { return math.Float64frombits(uint64(b)) }

// NewPool opens a pgx connection pool tuned by cfg and verifies it with a ping.
func NewPool(ctx context.Context, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns
	if cfg.ConnTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// OpenLocationStore opens the backend selected by cfg.Driver and makes sure
// its schema exists.
func OpenLocationStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (LocationBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "location_store", "driver", cfg.Driver)

	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to connect to postgres", err)
		}
		if err := InitPostgresSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("location store ready")
		return &pgBackend{
			LocationRepository: NewLocationRepository(pool, cfg.Namespace, logger),
			pool:               pool,
		}, nil

	case config.DriverSQLite, "":
		sqlDB, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := InitSQLiteSchema(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
		logger.Info("location store ready", "path", cfg.SQLitePath)
		return NewSQLiteLocationStore(sqlDB, cfg.Namespace, logger), nil

	default:
		return nil, types.NewAppError(types.ErrCodeInternalStorage,
			fmt.Sprintf("unknown store driver %q", cfg.Driver), nil)
	}
}

// pgBackend couples the repository with the pool it owns.
type pgBackend struct {
	*LocationRepository
	pool *pgxpool.Pool
}

func (b *pgBackend) Ping(ctx context.Context) error { return b.pool.Ping(ctx) }

func (b *pgBackend) Close() error {
	b.pool.Close()
	return nil
}
