// Package build stages, validates, and atomically promotes one versioned
// build of the catalog dataset.  A build either completes staging plus
// validation and is promoted whole, or it is discarded whole; readers only
// ever observe the current pointer flipping between complete builds.
package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tychodb/tycho/catalog"
	"github.com/tychodb/tycho/db"
	"github.com/tychodb/tycho/domain"
	"github.com/tychodb/tycho/ident"
	"github.com/tychodb/tycho/qc"
	"github.com/tychodb/tycho/spatial"
)

// CurrentPointer is the name of the symlink inside OutDir which always
// resolves to the most recently promoted build directory.
const CurrentPointer = "current"

// StagingSuffix marks not-yet-promoted build directories.  Consumers must
// never read directories carrying it.
const StagingSuffix = ".tmp"

// FailedSuffix marks directories holding the reports of a build the QC gate
// rejected, kept so operators can diagnose the failure without rerunning.
const FailedSuffix = ".failed"

var (
	// ErrBuildInProgress is returned when another invocation holds the
	// state-store lock for the same state directory.
	ErrBuildInProgress = errors.New("build already in progress")

	// DefaultPromoteRetries bounds how often the final rename/pointer
	// swap is retried before the build is declared failed.
	DefaultPromoteRetries uint64 = 3
)

// Result describes one completed (promoted) build.
type Result struct {
	BuildID  domain.BuildID
	Dir      string // Final promoted directory.
	Metadata *domain.BuildMetadata
	Summary  *domain.BuildSummary

	MatchReport *domain.MatchReport
	ProvReport  *domain.ProvenanceReport
	QCReport    *domain.QCReport
}

// Orchestrator drives the build state machine.  One orchestrator performs
// at most one build; construct a fresh one per invocation.
type Orchestrator struct {
	cfg   *Config
	state State
}

func NewOrchestrator(cfg *Config) *Orchestrator {
	o := &Orchestrator{
		cfg:   cfg,
		state: Idle,
	}
	return o
}

// State returns the orchestrator's current lifecycle position.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) transition(next State) {
	if !o.state.canTransitionTo(next) {
		// A broken transition is a programming error in the orchestrator
		// itself, not a data condition; fail loudly.
		panic(fmt.Sprintf("illegal build state transition %v -> %v", o.state, next))
	}
	log.WithField("from", o.state.String()).WithField("to", next.String()).Debug("Build state transition")
	o.state = next
}

// Run executes one complete build over already-read raw catalog rows: lock,
// stage, validate, promote.  The returned error is ErrBuildInProgress when
// another build holds the lock; any QC hard failure surfaces as a
// *qc.HardFailureError with the staging directory already discarded.
func (o *Orchestrator) Run(starRows []*catalog.RawStarRow, planetRows []*catalog.RawPlanetRow, now time.Time) (*Result, error) {
	id := domain.NewBuildID(now, o.cfg.SourceVersion)
	logger := log.WithField("build-id", id.String())
	logger.WithField("star-rows", len(starRows)).WithField("planet-rows", len(planetRows)).Info("Build starting")

	be := db.NewBoltBackend(db.NewBoltConfig(o.cfg.StateDBFile))

	var result *Result
	err := db.WithClient(be, func(client db.Client) error {
		return o.locked(client, starRows, planetRows, id, &result)
	})
	if err != nil {
		if errors.Cause(err) == db.ErrStateLocked {
			return nil, ErrBuildInProgress
		}
		return nil, err
	}
	logger.WithField("dir", result.Dir).Info("Build promoted")
	return result, nil
}

func (o *Orchestrator) locked(client db.Client, starRows []*catalog.RawStarRow, planetRows []*catalog.RawPlanetRow, id domain.BuildID, out **Result) error {
	o.transition(Staging)

	stagingDir := filepath.Join(o.cfg.OutDir, id.String()+StagingSuffix)
	finalDir := filepath.Join(o.cfg.OutDir, id.String())

	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		o.fail(stagingDir)
		return errors.Wrap(err, "creating staging directory")
	}

	a, err := o.assemble(starRows, planetRows, id)
	if err != nil {
		o.fail(stagingDir)
		return err
	}

	o.transition(Validating)

	previous, err := client.LatestSummary()
	if err != nil {
		o.fail(stagingDir)
		return errors.Wrap(err, "loading previous build summary")
	}

	gate := qc.NewGate(o.cfg.qcConfig())
	qcReport, provReport, qcErr := gate.Run(&qc.Dataset{
		Systems:     a.systems,
		Stars:       a.stars,
		Planets:     a.planets,
		MatchReport: a.matchReport,
	}, previous)
	qcReport.BuildID = id.String()
	provReport.BuildID = id.String()

	if writeErr := writeReports(stagingDir, a.matchReport, provReport, qcReport); writeErr != nil {
		o.fail(stagingDir)
		return writeErr
	}

	if qcErr != nil {
		o.failKeepReports(stagingDir)
		return qcErr
	}

	// Artifacts are staged only after the gate passes; the exporters
	// assume every row carries complete provenance.
	meta := o.metadata(id)
	if err := writeArtifacts(stagingDir, a, meta); err != nil {
		o.fail(stagingDir)
		return err
	}

	o.transition(Promoting)

	if err := o.promote(stagingDir, finalDir); err != nil {
		o.fail(stagingDir)
		return err
	}

	o.transition(Promoted)

	// The directory swap is committed; state-store bookkeeping failures
	// past this point cannot un-promote the build.
	summary := o.summarize(a, id)
	if err := client.MetadataSave(meta); err != nil {
		return errors.Wrap(err, "build promoted but metadata save failed")
	}
	if err := client.SummarySave(summary); err != nil {
		return errors.Wrap(err, "build promoted but summary save failed")
	}
	if err := client.AuditAppend(id.String(), a.audits); err != nil {
		return errors.Wrap(err, "build promoted but audit save failed")
	}

	*out = &Result{
		BuildID:     id,
		Dir:         finalDir,
		Metadata:    meta,
		Summary:     summary,
		MatchReport: a.matchReport,
		ProvReport:  provReport,
		QCReport:    qcReport,
	}
	return nil
}

// fail moves the machine to its terminal failure state and discards the
// staging directory.  The current pointer is never touched on this path.
func (o *Orchestrator) fail(stagingDir string) {
	if err := os.RemoveAll(stagingDir); err != nil {
		log.WithField("dir", stagingDir).Errorf("Discarding staging directory: %s", err)
	}
	o.state = Failed
}

// failKeepReports moves the machine to its terminal failure state but
// renames the staging directory to its failed name instead of discarding
// it, so the QC and provenance reports written there survive for
// diagnosis.  A stale failed directory from an earlier attempt of the same
// build id is replaced.  The current pointer is never touched on this path.
func (o *Orchestrator) failKeepReports(stagingDir string) {
	failedDir := strings.TrimSuffix(stagingDir, StagingSuffix) + FailedSuffix
	if err := os.RemoveAll(failedDir); err != nil {
		log.WithField("dir", failedDir).Errorf("Discarding stale failed-build directory: %s", err)
	}
	if err := os.Rename(stagingDir, failedDir); err != nil {
		log.WithField("dir", stagingDir).Errorf("Preserving failed-build reports: %s", err)
		o.fail(stagingDir)
		return
	}
	log.WithField("dir", failedDir).Warn("Build rejected by QC gate, reports preserved")
	o.state = Failed
}

// promote renames the staging directory to its final versioned name and
// repoints the current symlink, each step atomic and each retried with
// bounded backoff.  The previous build directory is left fully intact.
func (o *Orchestrator) promote(stagingDir, finalDir string) error {
	policy := func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), DefaultPromoteRetries)
	}

	if err := backoff.Retry(func() error {
		return os.Rename(stagingDir, finalDir)
	}, policy()); err != nil {
		return errors.Wrap(err, "renaming staging directory into place")
	}

	if err := backoff.Retry(func() error {
		return swapCurrentPointer(o.cfg.OutDir, filepath.Base(finalDir))
	}, policy()); err != nil {
		return errors.Wrap(err, "swapping current pointer")
	}

	return nil
}

// swapCurrentPointer atomically repoints OutDir/current at target.  A fresh
// symlink is staged under a temporary name and renamed over the old one, so
// readers observe either the previous target or the new one, never an
// intermediate.  On filesystems which refuse symlinks the pointer degrades
// to a plain file holding the target name, swapped the same way.
func swapCurrentPointer(outDir, target string) error {
	tmp := filepath.Join(outDir, CurrentPointer+".next")
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Symlink(target, tmp); err != nil {
		log.Warnf("Symlink pointer unavailable, falling back to pointer file: %s", err)
		if err = os.WriteFile(tmp, []byte(target+"\n"), 0644); err != nil {
			return err
		}
	}
	return os.Rename(tmp, filepath.Join(outDir, CurrentPointer))
}

// CurrentBuildDir resolves the current pointer to a build directory path.
// Returns os.ErrNotExist when no build was ever promoted.
func CurrentBuildDir(outDir string) (string, error) {
	ptr := filepath.Join(outDir, CurrentPointer)
	target, err := os.Readlink(ptr)
	if err != nil {
		// Pointer-file fallback.
		bs, readErr := os.ReadFile(ptr)
		if readErr != nil {
			return "", err
		}
		target = strings.TrimSpace(string(bs))
	}
	if filepath.IsAbs(target) {
		return target, nil
	}
	return filepath.Join(outDir, target), nil
}

func (o *Orchestrator) metadata(id domain.BuildID) *domain.BuildMetadata {
	enc := spatial.NewEncoder(o.cfg.DomainHalfWidthLy)
	meta := &domain.BuildMetadata{
		BuildID:                id.String(),
		SourceVersion:          id.SourceVersion,
		CreatedAt:              id.Timestamp,
		SpatialBitsPerAxis:     spatial.BitsPerAxis,
		SpatialDomainHalfLy:    enc.HalfWidth(),
		SpatialScale:           enc.Scale(),
		SpatialQuantization:    spatial.QuantizationRule,
		ProximityGrouping:      o.cfg.ProximityGrouping,
		ProximityThresholdLy:   o.cfg.ProximityThresholdLy,
		FuzzyMatching:          o.cfg.FuzzyMatching,
		FuzzyMatchThreshold:    o.cfg.FuzzyThreshold,
		DistanceEpsilonLy:      o.cfg.DistanceEpsilonLy,
		StableKeySchemaVersion: ident.StableKeySchemaVersion,
	}
	return meta
}

func (o *Orchestrator) summarize(a *assembled, id domain.BuildID) *domain.BuildSummary {
	summary := &domain.BuildSummary{
		BuildID:             id.String(),
		PromotedAt:          id.Timestamp,
		SystemCount:         len(a.systems),
		StarCount:           len(a.stars),
		PlanetCount:         len(a.planets),
		MatchedPlanets:      a.matchReport.Matched,
		UnmatchedPlanets:    a.matchReport.Unmatched,
		MatchRate:           a.matchReport.MatchRate,
		DistanceQuantilesLy: qc.DistanceQuantiles(a.stars),
		VMagQuantiles:       qc.VMagQuantiles(a.stars),
	}
	return summary
}
