package build

import (
	"runtime"

	"github.com/tychodb/tycho/cluster"
	"github.com/tychodb/tycho/match"
	"github.com/tychodb/tycho/qc"
	"github.com/tychodb/tycho/spatial"
)

var (
	DefaultOutDir      = "out"
	DefaultStateDBFile = "tycho-state.bolt"
)

type Config struct {
	OutDir      string // Build directories and the current pointer live here.
	StateDBFile string // Bolt state store; doubles as the cross-process build lock.

	SourceVersion string // Opaque source-version half of the build id.

	DomainHalfWidthLy    float64 // Spatial domain half-width.
	ProximityGrouping    bool    // Phase-2 clustering gate.
	ProximityThresholdLy float64 // Pairwise proximity link threshold.
	FuzzyMatching        bool    // Tier-5 matcher gate.
	FuzzyThreshold       float64 // Minimum fuzzy similarity.
	DistanceEpsilonLy    float64 // QC distance-consistency epsilon.

	Workers int // Parallelism for per-row stages; <=0 means GOMAXPROCS.
}

func NewConfig(sourceVersion string) *Config {
	cfg := &Config{
		OutDir:               DefaultOutDir,
		StateDBFile:          DefaultStateDBFile,
		SourceVersion:        sourceVersion,
		DomainHalfWidthLy:    spatial.DefaultDomainHalfWidthLy,
		ProximityGrouping:    cluster.DefaultProximityGrouping,
		ProximityThresholdLy: cluster.DefaultProximityThresholdLy,
		FuzzyMatching:        match.DefaultFuzzyMatching,
		FuzzyThreshold:       match.DefaultFuzzyThreshold,
		DistanceEpsilonLy:    qc.DefaultDistanceEpsilonLy,
		Workers:              runtime.GOMAXPROCS(0),
	}
	return cfg
}

func (cfg *Config) workers() int {
	if cfg.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return cfg.Workers
}

func (cfg *Config) clusterConfig() *cluster.Config {
	return &cluster.Config{
		ProximityGrouping:    cfg.ProximityGrouping,
		ProximityThresholdLy: cfg.ProximityThresholdLy,
	}
}

func (cfg *Config) matchConfig() *match.Config {
	return &match.Config{
		FuzzyMatching:  cfg.FuzzyMatching,
		FuzzyThreshold: cfg.FuzzyThreshold,
	}
}

func (cfg *Config) qcConfig() *qc.Config {
	c := qc.NewConfig(cfg.DomainHalfWidthLy)
	c.DistanceEpsilonLy = cfg.DistanceEpsilonLy
	return c
}
