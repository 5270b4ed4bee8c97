package catalog

import (
	"github.com/tychodb/tycho/domain"
	"github.com/tychodb/tycho/ident"
	"github.com/tychodb/tycho/spectral"
)

// NormalizeStar assembles one raw star row into a NormalizedStar.  Malformed
// identifier or spectral cells degrade to absence; the row itself always
// survives.  The stable key is assigned exactly once here and never
// regenerated within a build.
func NormalizeStar(row *RawStarRow) *domain.NormalizedStar {
	gaia, _ := ident.ParseCatalogID(row.GaiaIDRaw)
	hip, _ := ident.ParseCatalogID(row.HipIDRaw)
	hd, _ := ident.ParseCatalogID(row.HdIDRaw)

	star := &domain.NormalizedStar{
		GaiaID:         gaia,
		HipID:          hip,
		HdID:           hd,
		DisplayName:    row.Name,
		NormalizedName: ident.NormalizeName(row.Name),
		X:              row.X,
		Y:              row.Y,
		Z:              row.Z,
		DistanceLy:     row.DistanceLy,
		RADeg:          row.RADeg,
		DecDeg:         row.DecDeg,
		VMag:           row.VMag,
		Spectral:       spectral.Parse(row.SpectralRaw),
		Provenance:     row.Provenance,
	}

	star.StableKey = ident.StableKey(ident.KeyInputs{
		GaiaID:         star.GaiaID,
		HipID:          star.HipID,
		HdID:           star.HdID,
		NormalizedName: star.NormalizedName,
		RADeg:          star.RADeg,
		DecDeg:         star.DecDeg,
		DistanceLy:     star.DistanceLy,
	})

	return star
}

// NormalizePlanet assembles one raw planet row into a Planet in the
// pre-match state: host keys nil, method unmatched, confidence zero.  The
// matcher fills the resolution in later; nothing else touches these fields.
func NormalizePlanet(row *RawPlanetRow) *domain.Planet {
	p := &domain.Planet{
		Name:              row.Name,
		HostNameRaw:       row.HostNameRaw,
		OrbitalPeriodDays: row.OrbitalPeriodDays,
		SemiMajorAxisAU:   row.SemiMajorAxisAU,
		RadiusEarth:       row.RadiusEarth,
		MassEarth:         row.MassEarth,
		Eccentricity:      row.Eccentricity,
		EquilibriumTempK:  row.EquilibriumTempK,
		DiscoveryYear:     row.DiscoveryYear,
		DiscoveryMethod:   row.DiscoveryMethod,
		MatchMethod:       domain.MatchNone,
		MatchConfidence:   0,
		Provenance:        row.Provenance,
	}

	p.StableKey = ident.StableKey(ident.KeyInputs{
		NormalizedName: ident.NormalizeName(row.Name + " " + row.HostNameRaw),
	})

	return p
}

// HostIDs parses the optional host identifier cells of a planet row for the
// exact-id matching tiers.
func HostIDs(row *RawPlanetRow) (gaia, hip, hd *uint64) {
	gaia, _ = ident.ParseCatalogID(row.HostGaiaIDRaw)
	hip, _ = ident.ParseCatalogID(row.HostHipIDRaw)
	hd, _ = ident.ParseCatalogID(row.HostHdIDRaw)
	return
}
