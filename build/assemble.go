package build

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tychodb/tycho/catalog"
	"github.com/tychodb/tycho/cluster"
	"github.com/tychodb/tycho/domain"
	"github.com/tychodb/tycho/ident"
	"github.com/tychodb/tycho/match"
	"github.com/tychodb/tycho/spatial"
)

// assembled is the fully joined candidate dataset before QC.
type assembled struct {
	systems []*domain.System
	stars   []*domain.NormalizedStar
	planets []*domain.Planet

	audits      []*domain.MatchAuditRecord
	matchReport *domain.MatchReport
}

// parallelMap runs fn over n indices on the configured worker count,
// writing results by index so output order never depends on scheduling.
func parallelMap(workers, n int, fn func(i int)) {
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	indices := make(chan int, n)
	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indices {
				fn(i)
			}
		}()
	}
	wg.Wait()
}

// assemble runs normalization, clustering, matching, and spatial indexing
// over the raw catalog rows.  Everything here is deterministic: parallel
// stages write by row index and all orderings are defined by stable keys.
func (o *Orchestrator) assemble(starRows []*catalog.RawStarRow, planetRows []*catalog.RawPlanetRow, id domain.BuildID) (*assembled, error) {
	workers := o.cfg.workers()

	stars := make([]*domain.NormalizedStar, len(starRows))
	parallelMap(workers, len(starRows), func(i int) {
		stars[i] = catalog.NormalizeStar(starRows[i])
	})
	log.WithField("stars", len(stars)).Debug("Normalized star rows")

	systems := cluster.Partition(stars, o.cfg.clusterConfig())

	planets := make([]*domain.Planet, len(planetRows))
	queries := make([]*match.Query, len(planetRows))
	parallelMap(workers, len(planetRows), func(i int) {
		planets[i] = catalog.NormalizePlanet(planetRows[i])
		gaia, hip, hd := catalog.HostIDs(planetRows[i])
		queries[i] = &match.Query{
			Planet:         planets[i],
			HostGaiaID:     gaia,
			HostHipID:      hip,
			HostHdID:       hd,
			NormalizedHost: ident.NormalizeName(planetRows[i].HostNameRaw),
		}
	})

	matcher := match.NewMatcher(match.NewIndex(stars, systems), o.cfg.matchConfig())
	audits, matchReport := matcher.ResolveAll(queries, id.Timestamp)
	matchReport.BuildID = id.String()

	if err := o.spatialIndex(systems, stars, planets, workers); err != nil {
		return nil, err
	}

	a := &assembled{
		systems:     systems,
		stars:       stars,
		planets:     planets,
		audits:      audits,
		matchReport: matchReport,
	}
	a.sortAndNumber()
	return a, nil
}

// spatialIndex encodes every row with coordinates.  The first out-of-domain
// coordinate aborts the build; clamping it away instead would silently
// corrupt sort locality.
func (o *Orchestrator) spatialIndex(systems []*domain.System, stars []*domain.NormalizedStar, planets []*domain.Planet, workers int) error {
	enc := spatial.NewEncoder(o.cfg.DomainHalfWidthLy)

	starErrs := make([]error, len(stars))
	parallelMap(workers, len(stars), func(i int) {
		if !stars[i].HasCoords() {
			return
		}
		code, err := enc.Encode(stars[i].X, stars[i].Y, stars[i].Z)
		if err != nil {
			starErrs[i] = errors.Wrapf(err, "star %v", stars[i].StableKey)
			return
		}
		stars[i].SpatialIndex = &code
	})
	for _, err := range starErrs {
		if err != nil {
			return err
		}
	}

	byKey := map[string]*domain.NormalizedStar{}
	for _, star := range stars {
		byKey[star.StableKey] = star
	}
	for _, sys := range systems {
		if primary, ok := byKey[sys.PrimaryKey]; ok {
			sys.SpatialIndex = primary.SpatialIndex
		}
	}

	// Planets inherit the host system's cell.
	bySystem := map[string]*domain.System{}
	for _, sys := range systems {
		bySystem[sys.StableKey] = sys
	}
	for _, p := range planets {
		if p.SystemKey == nil {
			continue
		}
		if sys, ok := bySystem[*p.SystemKey]; ok {
			p.SpatialIndex = sys.SpatialIndex
		}
	}

	return nil
}

// sortAndNumber orders every table ascending by spatial index (rows without
// one sort last, keyed by stable key) and assigns 1-based surrogate ids in
// that order.  Export files inherit this physical ordering so axis-aligned
// range scans touch contiguous rows.
func (a *assembled) sortAndNumber() {
	lessIdx := func(ai, bi *int64, ak, bk string) bool {
		switch {
		case ai != nil && bi == nil:
			return true
		case ai == nil && bi != nil:
			return false
		case ai != nil && bi != nil && *ai != *bi:
			return *ai < *bi
		}
		return ak < bk
	}

	sort.Slice(a.systems, func(i, j int) bool {
		return lessIdx(a.systems[i].SpatialIndex, a.systems[j].SpatialIndex, a.systems[i].StableKey, a.systems[j].StableKey)
	})
	sort.Slice(a.stars, func(i, j int) bool {
		return lessIdx(a.stars[i].SpatialIndex, a.stars[j].SpatialIndex, a.stars[i].StableKey, a.stars[j].StableKey)
	})
	sort.Slice(a.planets, func(i, j int) bool {
		return lessIdx(a.planets[i].SpatialIndex, a.planets[j].SpatialIndex, a.planets[i].StableKey, a.planets[j].StableKey)
	})

	for i, sys := range a.systems {
		sys.ID = int64(i + 1)
	}
	for i, star := range a.stars {
		star.ID = int64(i + 1)
	}
	for i, p := range a.planets {
		p.ID = int64(i + 1)
	}
}
