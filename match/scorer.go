package match

import (
	"fmt"
	"sort"

	"github.com/tychodb/tycho/domain"
)

// Candidate is one possible host resolution produced by a scorer.
type Candidate struct {
	Star   *domain.NormalizedStar
	System *domain.System
}

// Query carries everything a scorer may consider for one planet: the
// normalized planet record plus the host identifier and name fields parsed
// from the raw row.
type Query struct {
	Planet *domain.Planet

	HostGaiaID *uint64
	HostHipID  *uint64
	HostHdID   *uint64

	NormalizedHost string
}

// CandidateScorer is one tier of the matching cascade.  Scorers are tried
// in registration order; the first one returning at least one candidate
// decides the planet.  Confidence is fixed per tier, never recomputed.
type CandidateScorer interface {
	Method() domain.MatchMethod
	Confidence() float64
	Score(q *Query, idx *Index) []Candidate
}

// gaiaScorer resolves exact Gaia DR3 id matches.
type gaiaScorer struct{}

func (gaiaScorer) Method() domain.MatchMethod { return domain.MatchGaiaID }
func (gaiaScorer) Confidence() float64        { return 1.0 }

func (gaiaScorer) Score(q *Query, idx *Index) []Candidate {
	if q.HostGaiaID == nil {
		return nil
	}
	return idx.byGaia[*q.HostGaiaID]
}

// hipScorer resolves exact parsed HIP id matches.
type hipScorer struct{}

func (hipScorer) Method() domain.MatchMethod { return domain.MatchHipID }
func (hipScorer) Confidence() float64        { return 0.95 }

func (hipScorer) Score(q *Query, idx *Index) []Candidate {
	if q.HostHipID == nil {
		return nil
	}
	return idx.byHip[*q.HostHipID]
}

// hdScorer resolves exact parsed HD id matches.
type hdScorer struct{}

func (hdScorer) Method() domain.MatchMethod { return domain.MatchHdID }
func (hdScorer) Confidence() float64        { return 0.90 }

func (hdScorer) Score(q *Query, idx *Index) []Candidate {
	if q.HostHdID == nil {
		return nil
	}
	return idx.byHd[*q.HostHdID]
}

// nameScorer resolves hosts whose normalized name equals a star or system
// normalized name.  A unique hit carries the full tier confidence; the
// cascade downgrades a multi-candidate hit to the ambiguous sub-tier.
type nameScorer struct{}

func (nameScorer) Method() domain.MatchMethod { return domain.MatchName }
func (nameScorer) Confidence() float64        { return 0.80 }

func (nameScorer) Score(q *Query, idx *Index) []Candidate {
	if q.NormalizedHost == "" {
		return nil
	}
	return idx.byName[q.NormalizedHost]
}

// AmbiguousNameConfidence applies when a name tier hit required the
// nearest-distance tie-break.
const AmbiguousNameConfidence = 0.70

// fuzzyScorer is the feature-gated tier 5: normalized-name similarity above
// a configured threshold.  Confidence is capped at 0.60 regardless of the
// similarity score.
type fuzzyScorer struct {
	threshold float64
}

func (fuzzyScorer) Method() domain.MatchMethod { return domain.MatchFuzzy }
func (fuzzyScorer) Confidence() float64        { return 0.60 }

func (s fuzzyScorer) Score(q *Query, idx *Index) []Candidate {
	if q.NormalizedHost == "" {
		return nil
	}
	type scored struct {
		c   Candidate
		sim float64
	}
	best := []scored{}
	for name, cands := range idx.byName {
		sim := jaroWinkler(q.NormalizedHost, name)
		if sim < s.threshold {
			continue
		}
		for _, c := range cands {
			best = append(best, scored{c: c, sim: sim})
		}
	}
	if len(best) == 0 {
		return nil
	}
	sort.Slice(best, func(i, j int) bool {
		if best[i].sim != best[j].sim {
			return best[i].sim > best[j].sim
		}
		return candidateKey(best[i].c) < candidateKey(best[j].c)
	})
	out := make([]Candidate, 0, len(best))
	for _, b := range best {
		out = append(out, b.c)
	}
	return out
}

func candidateKey(c Candidate) string {
	if c.Star != nil {
		return c.Star.StableKey
	}
	return fmt.Sprintf("sys-only:%s", c.System.StableKey)
}

// jaroWinkler computes Jaro-Winkler similarity over two normalized names.
// Plain implementation with the standard 0.1 prefix scaling factor.
func jaroWinkler(a, b string) float64 {
	j := jaro(a, b)
	if j == 0 {
		return 0
	}
	prefix := 0
	for i := 0; i < len(a) && i < len(b) && i < 4; i++ {
		if a[i] != b[i] {
			break
		}
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

func jaro(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	window := la
	if lb > window {
		window = lb
	}
	window = window/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, la)
	matchedB := make([]bool, lb)
	matches := 0
	for i := 0; i < la; i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > lb {
			hi = lb
		}
		for j := lo; j < hi; j++ {
			if matchedB[j] || a[i] != b[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < la; i++ {
		if !matchedA[i] {
			continue
		}
		for !matchedB[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-float64(transpositions)/2)/m) / 3
}
