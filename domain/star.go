package domain

import (
	"math"
)

// SpectralType holds the structured fields parsed from the primary component
// of a raw spectral-type string.  All fields are nil when parsing declined to
// guess; Raw is always retained.
type SpectralType struct {
	Raw             string   `json:"raw"`
	Class           *string  `json:"class,omitempty"`            // One of O,B,A,F,G,K,M,L,T,Y.
	Subtype         *float64 `json:"subtype,omitempty"`          // 0-9, optionally fractional.
	LuminosityClass *string  `json:"luminosity_class,omitempty"` // I-VII.
	Peculiarity     *string  `json:"peculiarity,omitempty"`      // Trailing markers, verbatim.
}

// Parsed reports whether any structured field was extracted.
func (st *SpectralType) Parsed() bool {
	return st != nil && st.Class != nil
}

// NormalizedStar is one canonical star record after identifier, name, and
// spectral normalization.  Catalog identifiers are nil when absent from the
// source row; sentinel values are never used.
type NormalizedStar struct {
	ID        int64  `json:"id"` // Surrogate id, assigned in export order.
	StableKey string `json:"stable_key"`

	GaiaID *uint64 `json:"gaia_id,omitempty"`
	HipID  *uint64 `json:"hip_id,omitempty"`
	HdID   *uint64 `json:"hd_id,omitempty"`

	DisplayName    string `json:"display_name"`
	NormalizedName string `json:"normalized_name"`

	X float64 `json:"x"` // Heliocentric, light-years.
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	DistanceLy *float64 `json:"distance_ly,omitempty"` // As reported by the source catalog.
	RADeg      *float64 `json:"ra_deg,omitempty"`
	DecDeg     *float64 `json:"dec_deg,omitempty"`
	VMag       *float64 `json:"v_mag,omitempty"`

	Spectral *SpectralType `json:"spectral,omitempty"`

	SpatialIndex *int64 `json:"spatial_index,omitempty"`

	SystemKey string `json:"system_key,omitempty"` // Stable key of the owning system.

	Provenance *Provenance `json:"provenance"`
}

// ComputedDistance returns the Euclidean distance from the origin implied by
// the heliocentric coordinates.
func (s *NormalizedStar) ComputedDistance() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// DistanceTo returns the 3D Euclidean separation between two stars in
// light-years.
func (s *NormalizedStar) DistanceTo(other *NormalizedStar) float64 {
	dx := s.X - other.X
	dy := s.Y - other.Y
	dz := s.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HasCoords reports whether the star carries usable 3D coordinates.  Rows
// from catalogs without parallax solutions have all three axes zeroed and a
// nil reported distance.
func (s *NormalizedStar) HasCoords() bool {
	if s.X != 0 || s.Y != 0 || s.Z != 0 {
		return true
	}
	return s.DistanceLy != nil && *s.DistanceLy == 0
}
