// Package match links exoplanet records to their host stars and systems
// through a fixed, ordered cascade of candidate scorers.  The first tier
// producing a candidate decides the planet; every decision, matched or not,
// appends exactly one immutable audit record.
package match

import (
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tychodb/tycho/domain"
	"github.com/tychodb/tycho/pkg/unique"
)

var (
	// DefaultFuzzyMatching gates the tier-5 fuzzy name scorer.
	DefaultFuzzyMatching = false

	// DefaultFuzzyThreshold is the minimum Jaro-Winkler similarity the
	// fuzzy tier accepts.
	DefaultFuzzyThreshold = 0.93
)

type Config struct {
	FuzzyMatching  bool    // Enable the tier-5 fuzzy name scorer.
	FuzzyThreshold float64 // Minimum similarity for a fuzzy hit.
}

func NewConfig() *Config {
	cfg := &Config{
		FuzzyMatching:  DefaultFuzzyMatching,
		FuzzyThreshold: DefaultFuzzyThreshold,
	}
	return cfg
}

// Index holds the host-lookup tables built once from the finished
// star/system partition.  Scorers only read it.
type Index struct {
	byGaia map[uint64][]Candidate
	byHip  map[uint64][]Candidate
	byHd   map[uint64][]Candidate
	byName map[string][]Candidate

	systemsByKey map[string]*domain.System
}

// NewIndex builds the lookup tables.  Star entries also index their owning
// system's normalized name so "Alpha Centauri" resolves even when only the
// components carry catalog ids.
func NewIndex(stars []*domain.NormalizedStar, systems []*domain.System) *Index {
	idx := &Index{
		byGaia:       map[uint64][]Candidate{},
		byHip:        map[uint64][]Candidate{},
		byHd:         map[uint64][]Candidate{},
		byName:       map[string][]Candidate{},
		systemsByKey: map[string]*domain.System{},
	}

	for _, sys := range systems {
		idx.systemsByKey[sys.StableKey] = sys
	}

	for _, star := range stars {
		sys := idx.systemsByKey[star.SystemKey]
		c := Candidate{Star: star, System: sys}
		if star.GaiaID != nil {
			idx.byGaia[*star.GaiaID] = append(idx.byGaia[*star.GaiaID], c)
		}
		if star.HipID != nil {
			idx.byHip[*star.HipID] = append(idx.byHip[*star.HipID], c)
		}
		if star.HdID != nil {
			idx.byHd[*star.HdID] = append(idx.byHd[*star.HdID], c)
		}
		if star.NormalizedName != "" {
			idx.byName[star.NormalizedName] = append(idx.byName[star.NormalizedName], c)
		}
	}

	byKey := make(map[string]*domain.NormalizedStar, len(stars))
	for _, star := range stars {
		byKey[star.StableKey] = star
	}

	// System names map onto the system's primary star so a system-level
	// hit still resolves both halves of the (star, system) pair.
	for _, sys := range systems {
		if sys.NormalizedName == "" {
			continue
		}
		if _, taken := idx.byName[sys.NormalizedName]; taken {
			continue
		}
		if star, ok := byKey[sys.PrimaryKey]; ok {
			idx.byName[sys.NormalizedName] = []Candidate{{Star: star, System: sys}}
		}
	}

	return idx
}

// Matcher runs the cascade over planets.
type Matcher struct {
	cfg     *Config
	idx     *Index
	scorers []CandidateScorer
}

// NewMatcher assembles the cascade in tier order.  The fuzzy scorer is only
// registered when the feature gate is on; adding a tier is a registration
// change, the selection loop never changes.
func NewMatcher(idx *Index, cfg *Config) *Matcher {
	if cfg == nil {
		cfg = NewConfig()
	}
	m := &Matcher{
		cfg: cfg,
		idx: idx,
	}
	m.scorers = []CandidateScorer{
		gaiaScorer{},
		hipScorer{},
		hdScorer{},
		nameScorer{},
	}
	if cfg.FuzzyMatching {
		m.scorers = append(m.scorers, fuzzyScorer{threshold: cfg.FuzzyThreshold})
	}
	return m
}

// Resolve runs the cascade for one planet, mutating only the planet's match
// fields, and returns the audit record for the decision.
func (m *Matcher) Resolve(q *Query, decidedAt time.Time) *domain.MatchAuditRecord {
	p := q.Planet

	for _, scorer := range m.scorers {
		cands := scorer.Score(q, m.idx)
		if len(cands) == 0 {
			continue
		}

		chosen := cands[0]
		method := scorer.Method()
		confidence := scorer.Confidence()
		notes := ""

		if len(cands) > 1 {
			chosen = nearestCandidate(cands, p)
			if method == domain.MatchName {
				method = domain.MatchNameAmbig
				confidence = AmbiguousNameConfidence
				notes = fmt.Sprintf("%v candidates for host %q; chose nearest by reported distance", len(cands), p.HostNameRaw)
			} else {
				notes = fmt.Sprintf("%v candidates; chose nearest by reported distance", len(cands))
			}
		}

		starKey := chosen.Star.StableKey
		p.StarKey = &starKey
		if chosen.System != nil {
			sysKey := chosen.System.StableKey
			p.SystemKey = &sysKey
		} else {
			// A star outside any system would violate the partition
			// invariant upstream; refuse the half-match.
			p.StarKey = nil
			p.MatchMethod = domain.MatchNone
			p.MatchConfidence = 0
			p.MatchNotes = fmt.Sprintf("candidate star %v has no owning system", starKey)
			return domain.NewMatchAuditRecord(p, decidedAt)
		}
		p.MatchMethod = method
		p.MatchConfidence = confidence
		p.MatchNotes = notes

		return domain.NewMatchAuditRecord(p, decidedAt)
	}

	p.StarKey = nil
	p.SystemKey = nil
	p.MatchMethod = domain.MatchNone
	p.MatchConfidence = 0
	p.MatchNotes = fmt.Sprintf("no candidate host found for %q", p.HostNameRaw)
	return domain.NewMatchAuditRecord(p, decidedAt)
}

// ResolveAll runs the cascade over every planet in order and returns the
// audit trail plus the match report.  A single decision timestamp keeps
// re-runs on identical inputs byte-identical apart from the clock, which
// the caller pins to the build id's timestamp.
func (m *Matcher) ResolveAll(queries []*Query, decidedAt time.Time) ([]*domain.MatchAuditRecord, *domain.MatchReport) {
	audits := make([]*domain.MatchAuditRecord, 0, len(queries))
	report := &domain.MatchReport{
		Total:          len(queries),
		CountsByMethod: map[domain.MatchMethod]int{},
	}

	for _, q := range queries {
		rec := m.Resolve(q, decidedAt)
		audits = append(audits, rec)

		report.CountsByMethod[q.Planet.MatchMethod]++
		if q.Planet.Matched() {
			report.Matched++
			if q.Planet.MatchMethod == domain.MatchNameAmbig {
				report.AmbiguousHosts = append(report.AmbiguousHosts, q.Planet.HostNameRaw)
			}
		} else {
			report.Unmatched++
			report.UnmatchedHosts = append(report.UnmatchedHosts, q.Planet.HostNameRaw)
		}
	}

	if report.Total > 0 {
		report.MatchRate = float64(report.Matched) / float64(report.Total)
	}
	report.UnmatchedHosts = unique.StringsSorted(report.UnmatchedHosts)
	report.AmbiguousHosts = unique.StringsSorted(report.AmbiguousHosts)

	log.WithField("total", report.Total).WithField("matched", report.Matched).WithField("unmatched", report.Unmatched).Info("Resolved planet hosts")
	return audits, report
}

// nearestCandidate breaks a multi-candidate tie by smallest reported
// distance; candidates without a distance sort last, and stable-key order
// settles what remains so the choice stays deterministic.
func nearestCandidate(cands []Candidate, _ *domain.Planet) Candidate {
	sorted := append([]Candidate{}, cands...)
	sort.Slice(sorted, func(i, j int) bool {
		di, dj := candidateDistance(sorted[i]), candidateDistance(sorted[j])
		switch {
		case di != nil && dj == nil:
			return true
		case di == nil && dj != nil:
			return false
		case di != nil && dj != nil && *di != *dj:
			return *di < *dj
		}
		return candidateKey(sorted[i]) < candidateKey(sorted[j])
	})
	return sorted[0]
}

func candidateDistance(c Candidate) *float64 {
	if c.Star != nil && c.Star.DistanceLy != nil {
		return c.Star.DistanceLy
	}
	if c.System != nil {
		return c.System.DistanceLy
	}
	return nil
}
