package profile

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/shelfsight/demand-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres connects a PostgresStore and runs the schema migration.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "profile: postgres connect")
	}
	s := &PostgresStore{pool: pool, closeFn: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS calibration_profiles (
	keyword            TEXT PRIMARY KEY,
	intent             TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT '',
	revenue_multiplier DOUBLE PRECISION NOT NULL,
	units_multiplier   DOUBLE PRECISION NOT NULL,
	confidence         TEXT NOT NULL DEFAULT 'medium',
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate creates the profile table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "profile: postgres migrate")
}

func (s *PostgresStore) Lookup(ctx context.Context, keyword string) (*model.CalibrationProfile, error) {
	var p model.CalibrationProfile
	err := s.pool.QueryRow(ctx, `
		SELECT keyword, intent, category, revenue_multiplier, units_multiplier, confidence
		FROM calibration_profiles WHERE keyword = $1`,
		NormalizeKeyword(keyword),
	).Scan(&p.Keyword, &p.Intent, &p.Category, &p.RevenueMultiplier, &p.UnitsMultiplier, &p.Confidence)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "profile: postgres lookup")
	}
	return &p, nil
}

func (s *PostgresStore) Put(ctx context.Context, p model.CalibrationProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO calibration_profiles (keyword, intent, category, revenue_multiplier, units_multiplier, confidence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (keyword) DO UPDATE SET
			intent = EXCLUDED.intent,
			category = EXCLUDED.category,
			revenue_multiplier = EXCLUDED.revenue_multiplier,
			units_multiplier = EXCLUDED.units_multiplier,
			confidence = EXCLUDED.confidence,
			updated_at = now()`,
		NormalizeKeyword(p.Keyword), p.Intent, p.Category,
		p.RevenueMultiplier, p.UnitsMultiplier, p.Confidence,
	)
	return eris.Wrap(err, "profile: postgres put")
}

func (s *PostgresStore) List(ctx context.Context) ([]model.CalibrationProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT keyword, intent, category, revenue_multiplier, units_multiplier, confidence
		FROM calibration_profiles ORDER BY keyword`)
	if err != nil {
		return nil, eris.Wrap(err, "profile: postgres list")
	}
	defer rows.Close()

	var out []model.CalibrationProfile
	for rows.Next() {
		var p model.CalibrationProfile
		if err := rows.Scan(&p.Keyword, &p.Intent, &p.Category, &p.RevenueMultiplier, &p.UnitsMultiplier, &p.Confidence); err != nil {
			return nil, eris.Wrap(err, "profile: postgres scan")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "profile: postgres iterate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
