package domain

import (
	"time"
)

// BuildMetadata records the parameters one build was produced with.  Written
// once into the build directory and the state store, immutable thereafter;
// the spatial quantization parameters must be persisted verbatim so
// historical builds remain interpretable after defaults change.
type BuildMetadata struct {
	BuildID       string    `json:"build_id"`
	SourceVersion string    `json:"source_version"`
	CreatedAt     time.Time `json:"created_at"`

	SpatialBitsPerAxis     uint    `json:"spatial_bits_per_axis"`
	SpatialDomainHalfLy    float64 `json:"spatial_domain_half_ly"`
	SpatialScale           float64 `json:"spatial_scale"`
	SpatialQuantization    string  `json:"spatial_quantization"` // Human-readable rendering of the encoding rule.
	ProximityGrouping      bool    `json:"proximity_grouping"`
	ProximityThresholdLy   float64 `json:"proximity_threshold_ly"`
	FuzzyMatching          bool    `json:"fuzzy_matching"`
	FuzzyMatchThreshold    float64 `json:"fuzzy_match_threshold"`
	DistanceEpsilonLy      float64 `json:"distance_epsilon_ly"`
	StableKeySchemaVersion int     `json:"stable_key_schema_version"`
}

// BuildSummary is the per-build statistical digest persisted into the state
// store; the next build's QC warn rules compare against it.
type BuildSummary struct {
	BuildID     string    `json:"build_id"`
	PromotedAt  time.Time `json:"promoted_at"`
	SystemCount int       `json:"system_count"`
	StarCount   int       `json:"star_count"`
	PlanetCount int       `json:"planet_count"`

	MatchedPlanets   int     `json:"matched_planets"`
	UnmatchedPlanets int     `json:"unmatched_planets"`
	MatchRate        float64 `json:"match_rate"` // Matched fraction, 0-1.

	DistanceQuantilesLy []float64 `json:"distance_quantiles_ly"` // p10/p50/p90 over stars with coordinates.
	VMagQuantiles       []float64 `json:"v_mag_quantiles"`       // p10/p50/p90 over stars with magnitudes.
}
