package domain

// System is a cluster of one or more NormalizedStar records sharing physical
// identity.  Coordinates and identifiers are inherited from the primary star
// (brightest member by visual magnitude); there is no barycenter computation
// in the v0 schema.
type System struct {
	ID        int64  `json:"id"` // Surrogate id, assigned in export order.
	StableKey string `json:"stable_key"`

	Name           string `json:"name"`
	NormalizedName string `json:"normalized_name"`

	MemberKeys []string `json:"member_keys"` // Stable keys of member stars.
	PrimaryKey string   `json:"primary_key"` // Stable key of the primary star.

	GaiaID *uint64 `json:"gaia_id,omitempty"`
	HipID  *uint64 `json:"hip_id,omitempty"`
	HdID   *uint64 `json:"hd_id,omitempty"`

	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	DistanceLy *float64 `json:"distance_ly,omitempty"`
	RADeg      *float64 `json:"ra_deg,omitempty"`
	DecDeg     *float64 `json:"dec_deg,omitempty"`

	SpatialIndex *int64 `json:"spatial_index,omitempty"`

	Provenance *Provenance `json:"provenance"`
}

// Size returns the number of member stars.
func (sys *System) Size() int {
	return len(sys.MemberKeys)
}
