package domain

// MatchMethod identifies which tier of the host-matching cascade resolved a
// planet, or that none did.
type MatchMethod string

const (
	MatchGaiaID    MatchMethod = "gaia_id"
	MatchHipID     MatchMethod = "hip_id"
	MatchHdID      MatchMethod = "hd_id"
	MatchName      MatchMethod = "name"
	MatchNameAmbig MatchMethod = "name_ambiguous"
	MatchFuzzy     MatchMethod = "fuzzy"
	MatchNone      MatchMethod = "unmatched"
)

// Planet is one confirmed exoplanet record.  StarKey/SystemKey are nil until
// the matcher resolves the host; a planet is either fully matched or fully
// unmatched, never in between.
type Planet struct {
	ID        int64  `json:"id"` // Surrogate id, assigned in export order.
	StableKey string `json:"stable_key"`

	Name        string `json:"name"`
	HostNameRaw string `json:"host_name_raw"`

	OrbitalPeriodDays *float64 `json:"orbital_period_days,omitempty"`
	SemiMajorAxisAU   *float64 `json:"semi_major_axis_au,omitempty"`
	RadiusEarth       *float64 `json:"radius_earth,omitempty"`
	MassEarth         *float64 `json:"mass_earth,omitempty"`
	Eccentricity      *float64 `json:"eccentricity,omitempty"`
	EquilibriumTempK  *float64 `json:"equilibrium_temp_k,omitempty"`
	DiscoveryYear     *int     `json:"discovery_year,omitempty"`
	DiscoveryMethod   string   `json:"discovery_method,omitempty"`

	StarKey         *string     `json:"star_key,omitempty"`
	SystemKey       *string     `json:"system_key,omitempty"`
	MatchMethod     MatchMethod `json:"match_method"`
	MatchConfidence float64     `json:"match_confidence"`
	MatchNotes      string      `json:"match_notes,omitempty"`

	SpatialIndex *int64 `json:"spatial_index,omitempty"`

	Provenance *Provenance `json:"provenance"`
}

// Matched reports whether the planet was resolved to a host.
func (p *Planet) Matched() bool {
	return p.MatchMethod != MatchNone && p.MatchMethod != ""
}

// MatchStateValid verifies the all-or-nothing match invariant: matched rows
// carry both keys and positive confidence, unmatched rows carry neither and
// zero confidence.
func (p *Planet) MatchStateValid() bool {
	if p.Matched() {
		return p.StarKey != nil && p.SystemKey != nil && p.MatchConfidence > 0
	}
	return p.StarKey == nil && p.SystemKey == nil && p.MatchConfidence == 0
}
