package model

// Calibration confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Calibration sources reported in multiplier metadata.
const (
	CalibrationSourceDefault  = "default"  // no profile found, identity multipliers
	CalibrationSourceProfile  = "profile"  // profile found and applied
	CalibrationSourceMismatch = "profile_category_mismatch"
)

// CalibrationProfile is an externally maintained multiplier set tying a
// normalized keyword to empirically observed demand corrections. The engine
// only reads these; tuning them happens offline.
type CalibrationProfile struct {
	Keyword           string  `json:"keyword"`
	Intent            string  `json:"intent,omitempty"` // archetype: research, purchase, replenish
	Category          string  `json:"category,omitempty"`
	RevenueMultiplier float64 `json:"revenue_multiplier"`
	UnitsMultiplier   float64 `json:"units_multiplier"`
	Confidence        string  `json:"confidence"`
}

// Multiplier describes the calibration applied to a page, returned alongside
// the adjusted products so callers can surface provenance.
type Multiplier struct {
	Keyword           string  `json:"keyword"`
	RevenueMultiplier float64 `json:"revenue_multiplier"`
	UnitsMultiplier   float64 `json:"units_multiplier"`
	Confidence        string  `json:"confidence"`
	Source            string  `json:"source"`
}

// IdentityMultiplier is the no-op calibration used when no profile is found.
func IdentityMultiplier(keyword string) Multiplier {
	return Multiplier{
		Keyword:           keyword,
		RevenueMultiplier: 1.0,
		UnitsMultiplier:   1.0,
		Confidence:        ConfidenceLow,
		Source:            CalibrationSourceDefault,
	}
}
