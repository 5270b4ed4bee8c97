// Package catalog is the hand-off boundary with the cooking stage: it reads
// already-fetched, catalog-shaped tabular files into raw row structs and
// assembles raw rows into normalized domain entities.  Raw rows are never
// mutated once read.
package catalog

import (
	"github.com/tychodb/tycho/domain"
)

// RawStarRow is one stellar-catalog record exactly as delivered by the
// cooking stage.  Identifier fields stay raw strings here; parsing them is
// the normalizer's job.
type RawStarRow struct {
	GaiaIDRaw string
	HipIDRaw  string
	HdIDRaw   string

	Name string

	X float64
	Y float64
	Z float64

	DistanceLy *float64
	RADeg      *float64
	DecDeg     *float64
	VMag       *float64

	SpectralRaw string

	Provenance *domain.Provenance
}

// RawPlanetRow is one exoplanet-catalog record as delivered by the cooking
// stage.  Host identifiers are carried when the source catalog provides
// them; most rows only have the raw host name.
type RawPlanetRow struct {
	Name        string
	HostNameRaw string

	HostGaiaIDRaw string
	HostHipIDRaw  string
	HostHdIDRaw   string

	OrbitalPeriodDays *float64
	SemiMajorAxisAU   *float64
	RadiusEarth       *float64
	MassEarth         *float64
	Eccentricity      *float64
	EquilibriumTempK  *float64
	DiscoveryYear     *int
	DiscoveryMethod   string

	Provenance *domain.Provenance
}
