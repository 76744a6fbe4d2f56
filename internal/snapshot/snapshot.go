// Package snapshot persists page estimates so the seller-facing layers can
// read them later, and exports them as spreadsheets.
package snapshot

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/shelfsight/demand-cli/internal/engine"
	"github.com/shelfsight/demand-cli/internal/model"
)

// ErrNotFound is returned when a snapshot ID does not exist.
var ErrNotFound = eris.New("snapshot: not found")

// Snapshot is a persisted page estimate: aggregate totals plus per-product
// records and the stage telemetry captured while building it.
type Snapshot struct {
	ID         string                   `json:"id"`
	Keyword    string                   `json:"keyword"`
	Totals     model.MarketTotals       `json:"totals"`
	Products   []model.CanonicalProduct `json:"products"`
	Stages     []engine.StageEvent      `json:"stages,omitempty"`
	Multiplier *model.Multiplier        `json:"multiplier,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}

// ListEntry is a lightweight row for listing stored snapshots.
type ListEntry struct {
	ID        string    `json:"id"`
	Keyword   string    `json:"keyword"`
	Units     int       `json:"units"`
	Revenue   float64   `json:"revenue"`
	Products  int       `json:"products"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists snapshots.
type Store interface {
	Save(ctx context.Context, s *Snapshot) error
	Get(ctx context.Context, id string) (*Snapshot, error)
	List(ctx context.Context, limit int) ([]ListEntry, error)
	Close() error
}
