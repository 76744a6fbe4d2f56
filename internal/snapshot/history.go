package snapshot

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/shelfsight/demand-cli/internal/history"
)

// HistoryStore adapts the snapshot database into the history.Store
// capability: trailing per-ASIN averages over previously saved pages.
type HistoryStore struct {
	store *SQLiteStore
}

// History returns a trailing-average view over the snapshot store.
func (s *SQLiteStore) History() *HistoryStore {
	return &HistoryStore{store: s}
}

// Average returns the mean units and revenue for an ASIN across all stored
// snapshots, or history.ErrNotFound when the ASIN has never been seen.
func (h *HistoryStore) Average(ctx context.Context, asin string) (*history.Average, error) {
	var avg history.Average
	err := h.store.db.QueryRowContext(ctx, `
		SELECT asin, AVG(units), AVG(revenue), COUNT(*)
		FROM snapshot_products WHERE asin = ?
		GROUP BY asin`, asin,
	).Scan(&avg.ASIN, &avg.Units, &avg.Revenue, &avg.Samples)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, history.ErrNotFound
		}
		return nil, eris.Wrap(err, "snapshot: history average")
	}
	return &avg, nil
}
