package profile

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/shelfsight/demand-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode,
// and runs the schema migration.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "profile: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "profile: sqlite exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS calibration_profiles (
	keyword            TEXT PRIMARY KEY,
	intent             TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT '',
	revenue_multiplier REAL NOT NULL,
	units_multiplier   REAL NOT NULL,
	confidence         TEXT NOT NULL DEFAULT 'medium',
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "profile: sqlite migrate")
}

func (s *SQLiteStore) Lookup(ctx context.Context, keyword string) (*model.CalibrationProfile, error) {
	var p model.CalibrationProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT keyword, intent, category, revenue_multiplier, units_multiplier, confidence
		FROM calibration_profiles WHERE keyword = ?`,
		NormalizeKeyword(keyword),
	).Scan(&p.Keyword, &p.Intent, &p.Category, &p.RevenueMultiplier, &p.UnitsMultiplier, &p.Confidence)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "profile: sqlite lookup")
	}
	return &p, nil
}

func (s *SQLiteStore) Put(ctx context.Context, p model.CalibrationProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calibration_profiles (keyword, intent, category, revenue_multiplier, units_multiplier, confidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(keyword) DO UPDATE SET
			intent = excluded.intent,
			category = excluded.category,
			revenue_multiplier = excluded.revenue_multiplier,
			units_multiplier = excluded.units_multiplier,
			confidence = excluded.confidence,
			updated_at = datetime('now')`,
		NormalizeKeyword(p.Keyword), p.Intent, p.Category,
		p.RevenueMultiplier, p.UnitsMultiplier, p.Confidence,
	)
	return eris.Wrap(err, "profile: sqlite put")
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.CalibrationProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT keyword, intent, category, revenue_multiplier, units_multiplier, confidence
		FROM calibration_profiles ORDER BY keyword`)
	if err != nil {
		return nil, eris.Wrap(err, "profile: sqlite list")
	}
	defer rows.Close()

	var out []model.CalibrationProfile
	for rows.Next() {
		var p model.CalibrationProfile
		if err := rows.Scan(&p.Keyword, &p.Intent, &p.Category, &p.RevenueMultiplier, &p.UnitsMultiplier, &p.Confidence); err != nil {
			return nil, eris.Wrap(err, "profile: sqlite scan")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "profile: sqlite iterate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
