package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and runs the schema
// migration.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "snapshot: sqlite exec %s", pragma)
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
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	keyword    TEXT NOT NULL,
	units      INTEGER NOT NULL,
	revenue    REAL NOT NULL,
	products   INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS snapshot_products (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
	asin        TEXT NOT NULL,
	units       INTEGER NOT NULL,
	revenue     REAL NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_keyword ON snapshots(keyword);
CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
CREATE INDEX IF NOT EXISTS idx_snapshot_products_asin ON snapshot_products(asin);
`

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "snapshot: sqlite migrate")
}

func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "snapshot: marshal")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, keyword, units, revenue, products, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Keyword, snap.Totals.Units, snap.Totals.Revenue,
		len(snap.Products), string(payload), snap.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "snapshot: sqlite save")
	}

	// Per-product rows feed the trailing-average history queries.
	for i := range snap.Products {
		p := &snap.Products[i]
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO snapshot_products (snapshot_id, asin, units, revenue, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			snap.ID, p.ASIN, p.EstimatedMonthlyUnits, p.EstimatedMonthlyRevenue, snap.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "snapshot: sqlite save product %s", p.ASIN)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE id = ?`, id,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "snapshot: sqlite get")
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, eris.Wrap(err, "snapshot: unmarshal")
	}
	return &snap, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]ListEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, keyword, units, revenue, products, created_at
		FROM snapshots ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: sqlite list")
	}
	defer rows.Close()

	var out []ListEntry
	for rows.Next() {
		var e ListEntry
		if err := rows.Scan(&e.ID, &e.Keyword, &e.Units, &e.Revenue, &e.Products, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "snapshot: sqlite scan")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "snapshot: sqlite iterate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
