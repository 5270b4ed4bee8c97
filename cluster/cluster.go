// Package cluster partitions normalized stars into physical systems.  Two
// grouping phases run in order: shared name roots, then optional transitive
// proximity linking.  The partition and every tie-break are fully
// deterministic so parallel and sequential builds agree bit-for-bit.
package cluster

import (
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/tychodb/tycho/domain"
	"github.com/tychodb/tycho/ident"
)

var (
	// DefaultProximityThresholdLy links two ungrouped stars into one
	// system when their 3D separation is at or below this value.
	DefaultProximityThresholdLy = 0.25

	// DefaultProximityGrouping gates phase 2.  When disabled every star
	// not grouped by name becomes its own singleton system.
	DefaultProximityGrouping = true
)

type Config struct {
	ProximityGrouping    bool    // Enable phase-2 proximity linking.
	ProximityThresholdLy float64 // Pairwise link threshold in light-years.
}

func NewConfig() *Config {
	cfg := &Config{
		ProximityGrouping:    DefaultProximityGrouping,
		ProximityThresholdLy: DefaultProximityThresholdLy,
	}
	return cfg
}

// componentSuffixes are trailing designators stripped to obtain a name
// root: "Sirius A" and "Sirius B" share root "sirius".
var componentSuffixes = map[string]bool{
	"a": true, "b": true, "c": true, "d": true,
	"ab": true, "ba": true, "bc": true,
}

// NameRoot strips a trailing component designator from a normalized name.
// Returns the name unchanged when no designator is present or when
// stripping would leave nothing.
func NameRoot(normalized string) string {
	fields := strings.Fields(normalized)
	if len(fields) < 2 {
		return normalized
	}
	last := fields[len(fields)-1]
	if componentSuffixes[last] {
		return strings.Join(fields[:len(fields)-1], " ")
	}
	return normalized
}

// Partition groups stars into systems and selects each system's primary.
// The input order is irrelevant to the result; output systems are sorted by
// stable key.  Every star is annotated with its owning system key.
func Partition(stars []*domain.NormalizedStar, cfg *Config) []*domain.System {
	if cfg == nil {
		cfg = NewConfig()
	}

	uf := newUnionFind(len(stars))

	// Phase 1: shared name roots.
	byRoot := map[string][]int{}
	for i, star := range stars {
		if star.NormalizedName == "" {
			continue
		}
		root := NameRoot(star.NormalizedName)
		byRoot[root] = append(byRoot[root], i)
	}
	nameGrouped := map[int]bool{}
	for _, members := range byRoot {
		if len(members) < 2 {
			continue
		}
		for _, i := range members {
			uf.union(members[0], i)
			nameGrouped[i] = true
		}
	}

	// Phase 2: transitive proximity linking over the remainder.
	if cfg.ProximityGrouping {
		proximityLink(stars, uf, nameGrouped, cfg.ProximityThresholdLy)
	}

	groups := map[int][]int{}
	for i := range stars {
		r := uf.find(i)
		groups[r] = append(groups[r], i)
	}

	systems := make([]*domain.System, 0, len(groups))
	for _, members := range groups {
		systems = append(systems, buildSystem(stars, members))
	}
	sort.Slice(systems, func(i, j int) bool {
		return systems[i].StableKey < systems[j].StableKey
	})

	log.WithField("stars", len(stars)).WithField("systems", len(systems)).Info("Clustered stars into systems")
	return systems
}

// proximityLink unions every pair of not-name-grouped stars within the
// threshold.  Union-find closes the links under transitivity, so chains
// A-B, B-C merge even when A-C exceeds the threshold.  The pair scan is
// bucketed on a coarse grid to avoid the full quadratic sweep on large
// catalogs.
func proximityLink(stars []*domain.NormalizedStar, uf *unionFind, nameGrouped map[int]bool, threshold float64) {
	if threshold <= 0 {
		return
	}

	type cell struct{ cx, cy, cz int }
	grid := map[cell][]int{}
	at := func(star *domain.NormalizedStar) cell {
		return cell{
			cx: int(star.X / threshold),
			cy: int(star.Y / threshold),
			cz: int(star.Z / threshold),
		}
	}

	candidates := []int{}
	for i, star := range stars {
		if nameGrouped[i] || !star.HasCoords() {
			continue
		}
		candidates = append(candidates, i)
		grid[at(star)] = append(grid[at(star)], i)
	}

	for _, i := range candidates {
		c := at(stars[i])
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for dz := -1; dz <= 1; dz++ {
					neighbors := grid[cell{c.cx + dx, c.cy + dy, c.cz + dz}]
					for _, j := range neighbors {
						if j <= i {
							continue
						}
						if stars[i].DistanceTo(stars[j]) <= threshold {
							uf.union(i, j)
						}
					}
				}
			}
		}
	}
}

// buildSystem selects the primary star and inherits its identity.  Primary
// selection: smallest visual magnitude wins; null magnitudes sort after any
// reported value; remaining ties break on identifier priority, then
// normalized name, so selection is independent of member order.
func buildSystem(stars []*domain.NormalizedStar, members []int) *domain.System {
	sorted := append([]int{}, members...)
	sort.Slice(sorted, func(a, b int) bool {
		return starLess(stars[sorted[a]], stars[sorted[b]])
	})

	primary := stars[sorted[0]]

	// The system key is derived from the primary's identifiers exactly the
	// way star keys are, so the Sirius system keys off Sirius A's Gaia id.
	sys := &domain.System{
		StableKey:      primary.StableKey,
		Name:           systemName(primary),
		NormalizedName: NameRoot(primary.NormalizedName),
		PrimaryKey:     primary.StableKey,
		GaiaID:         primary.GaiaID,
		HipID:          primary.HipID,
		HdID:           primary.HdID,
		X:              primary.X,
		Y:              primary.Y,
		Z:              primary.Z,
		DistanceLy:     primary.DistanceLy,
		RADeg:          primary.RADeg,
		DecDeg:         primary.DecDeg,
		Provenance:     primary.Provenance,
	}

	memberKeys := make([]string, 0, len(sorted))
	for _, i := range sorted {
		memberKeys = append(memberKeys, stars[i].StableKey)
		stars[i].SystemKey = sys.StableKey
	}
	sys.MemberKeys = memberKeys

	return sys
}

func starLess(a, b *domain.NormalizedStar) bool {
	switch {
	case a.VMag != nil && b.VMag == nil:
		return true
	case a.VMag == nil && b.VMag != nil:
		return false
	case a.VMag != nil && b.VMag != nil && *a.VMag != *b.VMag:
		return *a.VMag < *b.VMag
	}

	ra := ident.IdentifierRank(keyInputs(a))
	rb := ident.IdentifierRank(keyInputs(b))
	if ra != rb {
		return ra < rb
	}
	if a.NormalizedName != b.NormalizedName {
		return a.NormalizedName < b.NormalizedName
	}
	return a.StableKey < b.StableKey
}

func keyInputs(s *domain.NormalizedStar) ident.KeyInputs {
	return ident.KeyInputs{GaiaID: s.GaiaID, HipID: s.HipID, HdID: s.HdID}
}

// systemName strips the component designator from the primary's display
// name; "Sirius A" heads the "Sirius" system.
func systemName(primary *domain.NormalizedStar) string {
	fields := strings.Fields(primary.DisplayName)
	if len(fields) >= 2 && componentSuffixes[strings.ToLower(fields[len(fields)-1])] {
		return strings.Join(fields[:len(fields)-1], " ")
	}
	return primary.DisplayName
}

// unionFind is a plain weighted union-find with path compression.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}
