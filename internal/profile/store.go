// Package profile stores and looks up calibration profiles keyed by
// normalized keyword text. The engine reads profiles; writing them is an
// offline tuning concern served by the CLI.
package profile

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/shelfsight/demand-cli/internal/model"
)

// ErrNotFound is returned when no profile exists for a keyword.
var ErrNotFound = eris.New("profile: not found")

// Store is the narrow capability the engine depends on. Lookup receives an
// already-normalized keyword and returns ErrNotFound when absent.
type Store interface {
	Lookup(ctx context.Context, keyword string) (*model.CalibrationProfile, error)
	Put(ctx context.Context, p model.CalibrationProfile) error
	List(ctx context.Context) ([]model.CalibrationProfile, error)
	Close() error
}

var keywordFolder = cases.Fold()

// NormalizeKeyword canonicalizes keyword text for store lookups: Unicode
// compatibility normalization, case folding, and whitespace collapse. This
// must match whatever normalization the profile tuning pipeline applies.
func NormalizeKeyword(keyword string) string {
	s := norm.NFKC.String(keyword)
	s = keywordFolder.String(s)
	return strings.Join(strings.Fields(s), " ")
}
