// Package qc validates an assembled candidate build before promotion.  Hard
// rules abort the build; warn rules compare against the previous promoted
// build's summary and only ever log.
package qc

import (
	"fmt"
	"math"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/tychodb/tycho/domain"
	"github.com/tychodb/tycho/pkg/contains"
)

var (
	// DefaultDistanceEpsilonLy bounds |computed - reported| distance
	// disagreement per row.
	DefaultDistanceEpsilonLy = 1e-3

	// DefaultMatchRateDriftPct is the absolute match-rate drift (in
	// percentage points) tolerated before warning.
	DefaultMatchRateDriftPct = 0.5

	// DefaultUnmatchedIncrease is the tolerated growth in unmatched
	// planet count versus the previous build.
	DefaultUnmatchedIncrease = 25

	// DefaultQuantileDriftLy flags a shift of any distance quantile
	// beyond this many light-years.
	DefaultQuantileDriftLy = 5.0

	// DefaultQuantileDriftMag flags a shift of any magnitude quantile
	// beyond this many magnitudes.
	DefaultQuantileDriftMag = 0.5
)

type Config struct {
	DistanceEpsilonLy float64 // Distance-consistency epsilon.
	DomainHalfWidthLy float64 // Domain backstop bound.

	MatchRateDriftPct float64 // Warn threshold, percentage points.
	UnmatchedIncrease int     // Warn threshold, absolute count.
	QuantileDriftLy   float64 // Warn threshold, light-years.
	QuantileDriftMag  float64 // Warn threshold, magnitudes.
}

func NewConfig(domainHalfWidthLy float64) *Config {
	cfg := &Config{
		DistanceEpsilonLy: DefaultDistanceEpsilonLy,
		DomainHalfWidthLy: domainHalfWidthLy,
		MatchRateDriftPct: DefaultMatchRateDriftPct,
		UnmatchedIncrease: DefaultUnmatchedIncrease,
		QuantileDriftLy:   DefaultQuantileDriftLy,
		QuantileDriftMag:  DefaultQuantileDriftMag,
	}
	return cfg
}

// Dataset is the candidate build handed to the gate.
type Dataset struct {
	Systems []*domain.System
	Stars   []*domain.NormalizedStar
	Planets []*domain.Planet

	MatchReport *domain.MatchReport
}

// HardFailureError is raised when any hard rule fails; the orchestrator
// treats it as build-fatal.
type HardFailureError struct {
	Report *domain.QCReport
}

func (e *HardFailureError) Error() string {
	failed := []string{}
	for _, f := range e.Report.Findings {
		if f.Hard && !f.Passed {
			failed = append(failed, fmt.Sprintf("%s (%s)", f.Rule, f.Detail))
		}
	}
	return fmt.Sprintf("qc gate: %v hard rule failure(s): %s", e.Report.HardFailures, strings.Join(failed, "; "))
}

// Gate evaluates every rule and assembles the three per-build reports.
type Gate struct {
	cfg *Config
}

func NewGate(cfg *Config) *Gate {
	g := &Gate{cfg: cfg}
	return g
}

// Run evaluates hard rules (provenance coverage, distance consistency,
// stable-key uniqueness, domain backstop) then warn rules against the
// previous build's summary.  previous is nil on a first build, which skips
// the warn rules entirely.  The returned error is a *HardFailureError when
// promotion must not proceed; the reports are returned in either case.
func (g *Gate) Run(ds *Dataset, previous *domain.BuildSummary) (*domain.QCReport, *domain.ProvenanceReport, error) {
	report := &domain.QCReport{}

	provReport := g.checkProvenance(ds, report)
	g.checkDistanceConsistency(ds, report)
	g.checkStableKeyUniqueness(ds, report)
	g.checkDomainBackstop(ds, report)
	g.checkMatchStates(ds, report)

	if previous == nil {
		report.DriftSkipped = true
		log.Info("No previous build summary; drift warn rules skipped")
	} else {
		g.checkDrift(ds, previous, report)
	}

	for _, f := range report.Findings {
		if f.Passed {
			continue
		}
		if f.Hard {
			report.HardFailures++
			log.WithField("rule", f.Rule).WithField("detail", f.Detail).Error("QC hard rule failed")
		} else {
			report.Warnings++
			log.WithField("rule", f.Rule).WithField("detail", f.Detail).Warn("QC warn rule tripped")
		}
	}

	if report.HardFailures > 0 {
		return report, provReport, &HardFailureError{Report: report}
	}
	return report, provReport, nil
}

// checkProvenance enforces that every row carries a complete provenance
// block.
func (g *Gate) checkProvenance(ds *Dataset, report *domain.QCReport) *domain.ProvenanceReport {
	prov := &domain.ProvenanceReport{}

	check := func(table, key string, p *domain.Provenance) {
		prov.Checked++
		if p.Complete() {
			prov.Complete++
			return
		}
		prov.Issues = append(prov.Issues, domain.ProvenanceIssue{
			Table:   table,
			Key:     key,
			Missing: p.MissingFields(),
		})
	}

	for _, sys := range ds.Systems {
		check("systems", sys.StableKey, sys.Provenance)
	}
	for _, star := range ds.Stars {
		check("stars", star.StableKey, star.Provenance)
	}
	for _, p := range ds.Planets {
		check("planets", p.StableKey, p.Provenance)
	}

	sort.Slice(prov.Issues, func(i, j int) bool {
		if prov.Issues[i].Table != prov.Issues[j].Table {
			return prov.Issues[i].Table < prov.Issues[j].Table
		}
		return prov.Issues[i].Key < prov.Issues[j].Key
	})

	finding := domain.QCFinding{
		Rule:   "provenance-coverage",
		Hard:   true,
		Passed: len(prov.Issues) == 0,
		Rows:   len(prov.Issues),
	}
	if !finding.Passed {
		finding.Detail = fmt.Sprintf("%v rows with incomplete provenance, first: %s/%s missing %v",
			len(prov.Issues), prov.Issues[0].Table, prov.Issues[0].Key, prov.Issues[0].Missing)
	}
	report.Findings = append(report.Findings, finding)
	return prov
}

// checkDistanceConsistency enforces that reported distance agrees with the
// coordinate norm within epsilon.
func (g *Gate) checkDistanceConsistency(ds *Dataset, report *domain.QCReport) {
	bad := []string{}
	for _, star := range ds.Stars {
		if star.DistanceLy == nil || !star.HasCoords() {
			continue
		}
		if math.Abs(star.ComputedDistance()-*star.DistanceLy) >= g.cfg.DistanceEpsilonLy {
			bad = append(bad, star.StableKey)
		}
	}

	finding := domain.QCFinding{
		Rule:   "distance-consistency",
		Hard:   true,
		Passed: len(bad) == 0,
		Rows:   len(bad),
	}
	if !finding.Passed {
		sort.Strings(bad)
		finding.Detail = fmt.Sprintf("%v stars where |norm(xyz) - dist| >= %v ly, first: %v", len(bad), g.cfg.DistanceEpsilonLy, bad[0])
	}
	report.Findings = append(report.Findings, finding)
}

// checkStableKeyUniqueness enforces unique stable keys per table.
func (g *Gate) checkStableKeyUniqueness(ds *Dataset, report *domain.QCReport) {
	tables := []struct {
		name string
		keys []string
	}{
		{"systems", systemKeys(ds.Systems)},
		{"stars", starKeys(ds.Stars)},
		{"planets", planetKeys(ds.Planets)},
	}

	for _, table := range tables {
		dupes := duplicates(table.keys)
		finding := domain.QCFinding{
			Rule:   fmt.Sprintf("stable-key-uniqueness-%s", table.name),
			Hard:   true,
			Passed: len(dupes) == 0,
			Rows:   len(dupes),
		}
		if !finding.Passed {
			finding.Detail = fmt.Sprintf("%v duplicated keys in %s, first: %v", len(dupes), table.name, dupes[0])
		}
		report.Findings = append(report.Findings, finding)
	}
}

// checkDomainBackstop re-checks that no coordinate exceeds the spatial
// domain the indexer was configured with.
func (g *Gate) checkDomainBackstop(ds *Dataset, report *domain.QCReport) {
	bad := []string{}
	over := func(v float64) bool { return math.Abs(v) > g.cfg.DomainHalfWidthLy }
	for _, star := range ds.Stars {
		if over(star.X) || over(star.Y) || over(star.Z) {
			bad = append(bad, star.StableKey)
		}
	}
	for _, sys := range ds.Systems {
		if over(sys.X) || over(sys.Y) || over(sys.Z) {
			bad = append(bad, sys.StableKey)
		}
	}

	finding := domain.QCFinding{
		Rule:   "spatial-domain-backstop",
		Hard:   true,
		Passed: len(bad) == 0,
		Rows:   len(bad),
	}
	if !finding.Passed {
		sort.Strings(bad)
		finding.Detail = fmt.Sprintf("%v rows outside +/-%v ly domain, first: %v", len(bad), g.cfg.DomainHalfWidthLy, bad[0])
	}
	report.Findings = append(report.Findings, finding)
}

var knownMatchMethods = []string{
	string(domain.MatchGaiaID),
	string(domain.MatchHipID),
	string(domain.MatchHdID),
	string(domain.MatchName),
	string(domain.MatchNameAmbig),
	string(domain.MatchFuzzy),
	string(domain.MatchNone),
}

// checkMatchStates enforces the planet full-match/full-unmatch invariant as
// a hard rule; a partial state or an unrecognized match method can only come
// from a matcher defect and must never reach an export.
func (g *Gate) checkMatchStates(ds *Dataset, report *domain.QCReport) {
	bad := []string{}
	for _, p := range ds.Planets {
		if !p.MatchStateValid() || !contains.String(knownMatchMethods, string(p.MatchMethod)) {
			bad = append(bad, p.StableKey)
		}
	}

	finding := domain.QCFinding{
		Rule:   "planet-match-state",
		Hard:   true,
		Passed: len(bad) == 0,
		Rows:   len(bad),
	}
	if !finding.Passed {
		sort.Strings(bad)
		finding.Detail = fmt.Sprintf("%v planets in partial match state, first: %v", len(bad), bad[0])
	}
	report.Findings = append(report.Findings, finding)
}

// checkDrift implements the warn rules versus the previous build summary.
func (g *Gate) checkDrift(ds *Dataset, prev *domain.BuildSummary, report *domain.QCReport) {
	mr := ds.MatchReport

	driftPct := math.Abs(mr.MatchRate-prev.MatchRate) * 100
	report.Findings = append(report.Findings, domain.QCFinding{
		Rule:   "match-rate-drift",
		Passed: driftPct <= g.cfg.MatchRateDriftPct,
		Detail: fmt.Sprintf("match rate %.4f vs previous %.4f (drift %.2f pp, threshold %.2f pp)", mr.MatchRate, prev.MatchRate, driftPct, g.cfg.MatchRateDriftPct),
	})

	increase := mr.Unmatched - prev.UnmatchedPlanets
	report.Findings = append(report.Findings, domain.QCFinding{
		Rule:   "unmatched-count-increase",
		Passed: increase <= g.cfg.UnmatchedIncrease,
		Detail: fmt.Sprintf("unmatched %v vs previous %v (threshold +%v)", mr.Unmatched, prev.UnmatchedPlanets, g.cfg.UnmatchedIncrease),
	})

	distQ := DistanceQuantiles(ds.Stars)
	report.Findings = append(report.Findings, domain.QCFinding{
		Rule:   "distance-distribution-shift",
		Passed: quantileShift(distQ, prev.DistanceQuantilesLy) <= g.cfg.QuantileDriftLy,
		Detail: fmt.Sprintf("distance quantiles %v vs previous %v (threshold %v ly)", distQ, prev.DistanceQuantilesLy, g.cfg.QuantileDriftLy),
	})

	magQ := VMagQuantiles(ds.Stars)
	report.Findings = append(report.Findings, domain.QCFinding{
		Rule:   "magnitude-distribution-shift",
		Passed: quantileShift(magQ, prev.VMagQuantiles) <= g.cfg.QuantileDriftMag,
		Detail: fmt.Sprintf("magnitude quantiles %v vs previous %v (threshold %v mag)", magQ, prev.VMagQuantiles, g.cfg.QuantileDriftMag),
	})
}

// DistanceQuantiles returns p10/p50/p90 of reported star distances.
func DistanceQuantiles(stars []*domain.NormalizedStar) []float64 {
	vals := []float64{}
	for _, star := range stars {
		if star.DistanceLy != nil {
			vals = append(vals, *star.DistanceLy)
		}
	}
	return quantiles(vals)
}

// VMagQuantiles returns p10/p50/p90 of reported visual magnitudes.
func VMagQuantiles(stars []*domain.NormalizedStar) []float64 {
	vals := []float64{}
	for _, star := range stars {
		if star.VMag != nil {
			vals = append(vals, *star.VMag)
		}
	}
	return quantiles(vals)
}

func quantiles(vals []float64) []float64 {
	if len(vals) == 0 {
		return []float64{0, 0, 0}
	}
	sort.Float64s(vals)
	pick := func(p float64) float64 {
		i := int(p * float64(len(vals)-1))
		return vals[i]
	}
	return []float64{pick(0.10), pick(0.50), pick(0.90)}
}

func quantileShift(current, previous []float64) float64 {
	max := 0.0
	for i := range current {
		if i >= len(previous) {
			break
		}
		if d := math.Abs(current[i] - previous[i]); d > max {
			max = d
		}
	}
	return max
}

func systemKeys(systems []*domain.System) []string {
	keys := make([]string, 0, len(systems))
	for _, sys := range systems {
		keys = append(keys, sys.StableKey)
	}
	return keys
}

func starKeys(stars []*domain.NormalizedStar) []string {
	keys := make([]string, 0, len(stars))
	for _, star := range stars {
		keys = append(keys, star.StableKey)
	}
	return keys
}

func planetKeys(planets []*domain.Planet) []string {
	keys := make([]string, 0, len(planets))
	for _, p := range planets {
		keys = append(keys, p.StableKey)
	}
	return keys
}

func duplicates(keys []string) []string {
	seen := map[string]int{}
	for _, k := range keys {
		seen[k]++
	}
	dupes := []string{}
	for k, n := range seen {
		if n > 1 {
			dupes = append(dupes, k)
		}
	}
	sort.Strings(dupes)
	return dupes
}
