package build

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tychodb/tycho/catalog"
	"github.com/tychodb/tycho/db"
	"github.com/tychodb/tycho/domain"
	"github.com/tychodb/tycho/qc"
)

func f64(v float64) *float64 { return &v }

func prov(key string) *domain.Provenance {
	return &domain.Provenance{
		SourceCatalog:    "athyg",
		SourceVersion:    "v2.4",
		SourceURL:        "https://example.org/athyg",
		SourceKey:        key,
		License:          "CC-BY-4.0",
		Redistributable:  true,
		RetrievedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		IngestedAt:       time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC),
		TransformVersion: "t1",
	}
}

func starRow(name, gaia string, x, y, z float64, vmag float64) *catalog.RawStarRow {
	d := (&domain.NormalizedStar{X: x, Y: y, Z: z}).ComputedDistance()
	return &catalog.RawStarRow{
		GaiaIDRaw:   gaia,
		Name:        name,
		X:           x,
		Y:           y,
		Z:           z,
		DistanceLy:  &d,
		VMag:        f64(vmag),
		SpectralRaw: "G2V",
		Provenance:  prov("athyg:" + name),
	}
}

func testRows() ([]*catalog.RawStarRow, []*catalog.RawPlanetRow) {
	stars := []*catalog.RawStarRow{
		starRow("Sirius A", "Gaia DR3 12345", -1.61, 8.06, -2.47, -1.46),
		starRow("Sirius B", "Gaia DR3 67890", -1.61, 8.06, -2.47, 8.44),
		starRow("Proxima Centauri", "Gaia DR3 55555", -1.55, -1.17, -3.77, 11.13),
		starRow("Wolf 359", "", -1.9, -3.9, 6.5, 13.54),
	}
	planets := []*catalog.RawPlanetRow{
		{
			Name:          "Proxima Cen b",
			HostNameRaw:   "Proxima Centauri",
			HostGaiaIDRaw: "Gaia DR3 55555",
			Provenance:    prov("exo:1"),
		},
		{
			Name:        "Phantom b",
			HostNameRaw: "No Such Star",
			Provenance:  prov("exo:2"),
		},
	}
	return stars, planets
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewConfig("v1-test")
	cfg.OutDir = filepath.Join(dir, "out")
	cfg.StateDBFile = filepath.Join(dir, "state.bolt")
	cfg.Workers = 2
	return cfg
}

func TestRunPromotesBuild(t *testing.T) {
	cfg := testConfig(t)
	stars, planets := testRows()

	o := NewOrchestrator(cfg)
	result, err := o.Run(stars, planets, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := Promoted, o.State(); actual != expected {
		t.Errorf("expected state=%v but actual=%v", expected, actual)
	}
	if expected, actual := "20240201T100000Z-v1-test", result.BuildID.String(); actual != expected {
		t.Errorf("expected build id=%v but actual=%v", expected, actual)
	}

	// Sirius A and B cluster; Proxima and Wolf 359 stay singles.
	if expected, actual := 3, result.Summary.SystemCount; actual != expected {
		t.Errorf("expected systems=%v but actual=%v", expected, actual)
	}
	if expected, actual := 4, result.Summary.StarCount; actual != expected {
		t.Errorf("expected stars=%v but actual=%v", expected, actual)
	}
	if expected, actual := 1, result.MatchReport.Matched; actual != expected {
		t.Errorf("expected matched=%v but actual=%v", expected, actual)
	}
	if expected, actual := 1, result.MatchReport.Unmatched; actual != expected {
		t.Errorf("expected unmatched=%v but actual=%v", expected, actual)
	}

	// Every artifact must exist in the promoted directory.
	for _, name := range []string{SystemsCSV, StarsCSV, PlanetsCSV, DatasetSQLite, MetadataJSON, MatchJSON, ProvJSON, QCJSON, AuditsJSON} {
		if _, err := os.Stat(filepath.Join(result.Dir, name)); err != nil {
			t.Errorf("missing artifact %v: %s", name, err)
		}
	}

	// Current pointer resolves to the promoted directory.
	current, err := CurrentBuildDir(cfg.OutDir)
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := result.Dir, current; actual != expected {
		t.Errorf("expected current=%v but actual=%v", expected, actual)
	}

	// No staging residue.
	entries, err := os.ReadDir(cfg.OutDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == StagingSuffix {
			t.Errorf("staging directory left behind: %v", e.Name())
		}
	}
}

func TestRunIdempotentExports(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	read := func(t *testing.T) map[string][]byte {
		cfg := testConfig(t)
		stars, planets := testRows()
		result, err := NewOrchestrator(cfg).Run(stars, planets, now)
		if err != nil {
			t.Fatal(err)
		}
		out := map[string][]byte{}
		for _, name := range []string{SystemsCSV, StarsCSV, PlanetsCSV, MetadataJSON, AuditsJSON} {
			data, err := os.ReadFile(filepath.Join(result.Dir, name))
			if err != nil {
				t.Fatal(err)
			}
			out[name] = data
		}
		return out
	}

	first := read(t)
	second := read(t)
	for name, data := range first {
		if string(second[name]) != string(data) {
			t.Errorf("artifact %v not byte-identical across reruns", name)
		}
	}
}

func TestRunQCHardFailureLeavesCurrentIntact(t *testing.T) {
	cfg := testConfig(t)
	stars, planets := testRows()

	first, err := NewOrchestrator(cfg).Run(stars, planets, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	// Second run with broken provenance must abort and leave the first
	// build current and readable.
	badStars, badPlanets := testRows()
	badStars[0].Provenance.License = ""

	o := NewOrchestrator(cfg)
	_, err = o.Run(badStars, badPlanets, time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected qc hard failure")
	}
	var hf *qc.HardFailureError
	if !errors.As(err, &hf) {
		t.Fatalf("expected *qc.HardFailureError, got %T: %s", err, err)
	}
	if expected, actual := Failed, o.State(); actual != expected {
		t.Errorf("expected state=%v but actual=%v", expected, actual)
	}

	current, err := CurrentBuildDir(cfg.OutDir)
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := first.Dir, current; actual != expected {
		t.Errorf("expected current unchanged=%v but actual=%v", expected, actual)
	}
	if _, err := os.Stat(filepath.Join(current, StarsCSV)); err != nil {
		t.Errorf("previous build no longer readable: %s", err)
	}

	// The rejected build's reports are kept for diagnosis, but none of
	// its data artifacts are.
	badID := domain.NewBuildID(time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC), cfg.SourceVersion)
	failedDir := filepath.Join(cfg.OutDir, badID.String()+FailedSuffix)
	for _, name := range []string{QCJSON, ProvJSON, MatchJSON} {
		if _, err := os.Stat(filepath.Join(failedDir, name)); err != nil {
			t.Errorf("expected preserved report %v: %s", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(failedDir, StarsCSV)); !os.IsNotExist(err) {
		t.Errorf("expected no staged artifacts in failed dir, got err=%v", err)
	}
}

func TestRunNilProvenanceFailsGate(t *testing.T) {
	cfg := testConfig(t)
	stars, planets := testRows()
	stars[0].Provenance = nil

	o := NewOrchestrator(cfg)
	_, err := o.Run(stars, planets, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected qc hard failure for absent provenance")
	}
	var hf *qc.HardFailureError
	if !errors.As(err, &hf) {
		t.Fatalf("expected *qc.HardFailureError, got %T: %s", err, err)
	}
	if expected, actual := Failed, o.State(); actual != expected {
		t.Errorf("expected state=%v but actual=%v", expected, actual)
	}
	if _, err := CurrentBuildDir(cfg.OutDir); !os.IsNotExist(err) {
		t.Errorf("expected no current pointer, got err=%v", err)
	}
}

func TestRunDomainViolationAborts(t *testing.T) {
	cfg := testConfig(t)
	cfg.DomainHalfWidthLy = 10

	stars, planets := testRows()
	stars = append(stars, starRow("Far Away", "Gaia DR3 777", 10.5, 0, 0, 9.0))

	o := NewOrchestrator(cfg)
	_, err := o.Run(stars, planets, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected domain violation to abort the build")
	}
	if expected, actual := Failed, o.State(); actual != expected {
		t.Errorf("expected state=%v but actual=%v", expected, actual)
	}
	if _, err := CurrentBuildDir(cfg.OutDir); !os.IsNotExist(err) {
		t.Errorf("expected no current pointer, got err=%v", err)
	}
}

func TestRunFailsFastWhenLocked(t *testing.T) {
	cfg := testConfig(t)
	stars, planets := testRows()

	// Hold the state-store lock the way a concurrent build would.
	holder := db.NewBoltBackend(db.NewBoltConfig(cfg.StateDBFile))
	if err := holder.Open(); err != nil {
		t.Fatal(err)
	}
	defer holder.Close()

	start := time.Now()
	_, err := NewOrchestrator(cfg).Run(stars, planets, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC))
	if err != ErrBuildInProgress {
		t.Fatalf("expected ErrBuildInProgress but actual=%v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("lock conflict must fail fast, took %v", elapsed)
	}
}

func TestRunPromotionRenameFailure(t *testing.T) {
	cfg := testConfig(t)
	stars, planets := testRows()

	// Occupy the final directory name with a non-empty directory so the
	// atomic rename cannot complete.
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	finalDir := filepath.Join(cfg.OutDir, domain.NewBuildID(now, cfg.SourceVersion).String())
	if err := os.MkdirAll(finalDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(finalDir, "occupied"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	o := NewOrchestrator(cfg)
	_, err := o.Run(stars, planets, now)
	if err == nil {
		t.Fatal("expected promotion failure when final directory is occupied")
	}
	if expected, actual := Failed, o.State(); actual != expected {
		t.Errorf("expected state=%v but actual=%v", expected, actual)
	}

	// The swap never happened, so there must be no current pointer.
	if _, err := CurrentBuildDir(cfg.OutDir); !os.IsNotExist(err) {
		t.Errorf("expected no current pointer, got err=%v", err)
	}
}

func TestUnmatchedPlanetInvariantInExport(t *testing.T) {
	cfg := testConfig(t)
	stars, planets := testRows()

	result, err := NewOrchestrator(cfg).Run(stars, planets, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	for _, rec := range result.MatchReport.UnmatchedHosts {
		if rec != "No Such Star" {
			t.Errorf("unexpected unmatched host %v", rec)
		}
	}
	if expected, actual := 1, result.MatchReport.CountsByMethod[domain.MatchNone]; actual != expected {
		t.Errorf("expected unmatched count=%v but actual=%v", expected, actual)
	}
}
