package build

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/tychodb/tycho/domain"
)

// Artifact file names inside a build directory.
const (
	SystemsCSV    = "systems.csv"
	StarsCSV      = "stars.csv"
	PlanetsCSV    = "planets.csv"
	DatasetSQLite = "dataset.sqlite"
	MetadataJSON  = "build-metadata.json"
	MatchJSON     = "match-report.json"
	ProvJSON      = "provenance-report.json"
	QCJSON        = "qc-report.json"
	AuditsJSON    = "match-audits.json"
)

// writeArtifacts materializes every build artifact into the staging
// directory.  Rows are already in spatial-index order; writers must not
// reorder them.
func writeArtifacts(dir string, a *assembled, meta *domain.BuildMetadata) error {
	if err := writeSystemsCSV(filepath.Join(dir, SystemsCSV), a.systems); err != nil {
		return errors.Wrap(err, "systems export")
	}
	if err := writeStarsCSV(filepath.Join(dir, StarsCSV), a.stars); err != nil {
		return errors.Wrap(err, "stars export")
	}
	if err := writePlanetsCSV(filepath.Join(dir, PlanetsCSV), a.planets); err != nil {
		return errors.Wrap(err, "planets export")
	}
	if err := writeSQLite(filepath.Join(dir, DatasetSQLite), a); err != nil {
		return errors.Wrap(err, "sqlite export")
	}
	if err := writeJSON(filepath.Join(dir, MetadataJSON), meta); err != nil {
		return errors.Wrap(err, "metadata export")
	}
	if err := writeJSON(filepath.Join(dir, AuditsJSON), a.audits); err != nil {
		return errors.Wrap(err, "audit export")
	}
	log.WithField("dir", dir).Info("Staged build artifacts")
	return nil
}

func writeReports(dir string, matchReport *domain.MatchReport, provReport *domain.ProvenanceReport, qcReport *domain.QCReport) error {
	if err := writeJSON(filepath.Join(dir, MatchJSON), matchReport); err != nil {
		return errors.Wrap(err, "match report")
	}
	if err := writeJSON(filepath.Join(dir, ProvJSON), provReport); err != nil {
		return errors.Wrap(err, "provenance report")
	}
	if err := writeJSON(filepath.Join(dir, QCJSON), qcReport); err != nil {
		return errors.Wrap(err, "qc report")
	}
	return nil
}

func writeJSON(path string, src interface{}) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func optF(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtF(*v)
}

func optU(v *uint64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatUint(*v, 10)
}

func optI64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optI(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optS(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func provCols(p *domain.Provenance) []string {
	return []string{
		p.SourceCatalog,
		p.SourceVersion,
		p.SourceURL,
		p.SourceDOI,
		p.SourceKey,
		p.License,
		strconv.FormatBool(p.Redistributable),
		p.RetrievalETag,
		p.RetrievedAt.UTC().Format("2006-01-02T15:04:05Z"),
		p.IngestedAt.UTC().Format("2006-01-02T15:04:05Z"),
		p.TransformVersion,
	}
}

var provHeader = []string{
	"prov_source_catalog", "prov_source_version", "prov_source_url", "prov_source_doi",
	"prov_source_key", "prov_license", "prov_redistributable", "prov_etag",
	"prov_retrieved_at", "prov_ingested_at", "prov_transform_version",
}

func withCSVWriter(path string, fn func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := fn(w); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeSystemsCSV(path string, systems []*domain.System) error {
	return withCSVWriter(path, func(w *csv.Writer) error {
		header := append([]string{
			"id", "stable_key", "spatial_index", "name", "normalized_name",
			"primary_key", "member_count", "gaia_id", "hip_id", "hd_id",
			"x_ly", "y_ly", "z_ly", "dist_ly", "ra_deg", "dec_deg",
		}, provHeader...)
		if err := w.Write(header); err != nil {
			return err
		}
		for _, sys := range systems {
			row := append([]string{
				strconv.FormatInt(sys.ID, 10),
				sys.StableKey,
				optI64(sys.SpatialIndex),
				sys.Name,
				sys.NormalizedName,
				sys.PrimaryKey,
				strconv.Itoa(sys.Size()),
				optU(sys.GaiaID),
				optU(sys.HipID),
				optU(sys.HdID),
				fmtF(sys.X),
				fmtF(sys.Y),
				fmtF(sys.Z),
				optF(sys.DistanceLy),
				optF(sys.RADeg),
				optF(sys.DecDeg),
			}, provCols(sys.Provenance)...)
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeStarsCSV(path string, stars []*domain.NormalizedStar) error {
	return withCSVWriter(path, func(w *csv.Writer) error {
		header := append([]string{
			"id", "stable_key", "spatial_index", "system_key", "display_name",
			"normalized_name", "gaia_id", "hip_id", "hd_id",
			"x_ly", "y_ly", "z_ly", "dist_ly", "ra_deg", "dec_deg", "v_mag",
			"spectral_raw", "spectral_class", "spectral_subtype",
			"spectral_luminosity", "spectral_peculiarity",
		}, provHeader...)
		if err := w.Write(header); err != nil {
			return err
		}
		for _, star := range stars {
			row := append([]string{
				strconv.FormatInt(star.ID, 10),
				star.StableKey,
				optI64(star.SpatialIndex),
				star.SystemKey,
				star.DisplayName,
				star.NormalizedName,
				optU(star.GaiaID),
				optU(star.HipID),
				optU(star.HdID),
				fmtF(star.X),
				fmtF(star.Y),
				fmtF(star.Z),
				optF(star.DistanceLy),
				optF(star.RADeg),
				optF(star.DecDeg),
				optF(star.VMag),
				star.Spectral.Raw,
				optS(star.Spectral.Class),
				optF(star.Spectral.Subtype),
				optS(star.Spectral.LuminosityClass),
				optS(star.Spectral.Peculiarity),
			}, provCols(star.Provenance)...)
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writePlanetsCSV(path string, planets []*domain.Planet) error {
	return withCSVWriter(path, func(w *csv.Writer) error {
		header := append([]string{
			"id", "stable_key", "spatial_index", "name", "host_name_raw",
			"star_key", "system_key", "match_method", "match_confidence", "match_notes",
			"period_days", "semi_major_axis_au", "radius_earth", "mass_earth",
			"eccentricity", "eq_temp_k", "discovery_year", "discovery_method",
		}, provHeader...)
		if err := w.Write(header); err != nil {
			return err
		}
		for _, p := range planets {
			row := append([]string{
				strconv.FormatInt(p.ID, 10),
				p.StableKey,
				optI64(p.SpatialIndex),
				p.Name,
				p.HostNameRaw,
				optS(p.StarKey),
				optS(p.SystemKey),
				string(p.MatchMethod),
				fmtF(p.MatchConfidence),
				p.MatchNotes,
				optF(p.OrbitalPeriodDays),
				optF(p.SemiMajorAxisAU),
				optF(p.RadiusEarth),
				optF(p.MassEarth),
				optF(p.Eccentricity),
				optF(p.EquilibriumTempK),
				optI(p.DiscoveryYear),
				p.DiscoveryMethod,
			}, provCols(p.Provenance)...)
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

const sqliteSchema = `
CREATE TABLE systems (
	id INTEGER PRIMARY KEY,
	stable_key TEXT NOT NULL UNIQUE,
	spatial_index INTEGER,
	name TEXT,
	normalized_name TEXT,
	primary_key TEXT NOT NULL,
	member_count INTEGER NOT NULL,
	gaia_id INTEGER, hip_id INTEGER, hd_id INTEGER,
	x_ly REAL NOT NULL, y_ly REAL NOT NULL, z_ly REAL NOT NULL,
	dist_ly REAL, ra_deg REAL, dec_deg REAL,
	provenance TEXT NOT NULL
);
CREATE INDEX systems_spatial ON systems(spatial_index);
CREATE TABLE stars (
	id INTEGER PRIMARY KEY,
	stable_key TEXT NOT NULL UNIQUE,
	spatial_index INTEGER,
	system_key TEXT NOT NULL,
	display_name TEXT,
	normalized_name TEXT,
	gaia_id INTEGER, hip_id INTEGER, hd_id INTEGER,
	x_ly REAL NOT NULL, y_ly REAL NOT NULL, z_ly REAL NOT NULL,
	dist_ly REAL, ra_deg REAL, dec_deg REAL, v_mag REAL,
	spectral_raw TEXT,
	spectral_class TEXT, spectral_subtype REAL,
	spectral_luminosity TEXT, spectral_peculiarity TEXT,
	provenance TEXT NOT NULL
);
CREATE INDEX stars_spatial ON stars(spatial_index);
CREATE TABLE planets (
	id INTEGER PRIMARY KEY,
	stable_key TEXT NOT NULL UNIQUE,
	spatial_index INTEGER,
	name TEXT,
	host_name_raw TEXT,
	star_key TEXT, system_key TEXT,
	match_method TEXT NOT NULL,
	match_confidence REAL NOT NULL,
	match_notes TEXT,
	period_days REAL, semi_major_axis_au REAL, radius_earth REAL,
	mass_earth REAL, eccentricity REAL, eq_temp_k REAL,
	discovery_year INTEGER, discovery_method TEXT,
	provenance TEXT NOT NULL
);
CREATE INDEX planets_spatial ON planets(spatial_index);
`

// writeSQLite materializes the queryable dataset.  Insertion follows the
// already-sorted slices so rowid order matches spatial order.
func writeSQLite(path string, a *assembled) error {
	dbh, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer dbh.Close()

	if _, err := dbh.Exec(sqliteSchema); err != nil {
		return errors.Wrap(err, "creating schema")
	}

	tx, err := dbh.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertSystems(tx, a.systems); err != nil {
		return err
	}
	if err := insertStars(tx, a.stars); err != nil {
		return err
	}
	if err := insertPlanets(tx, a.planets); err != nil {
		return err
	}

	return tx.Commit()
}

func provJSON(p *domain.Provenance) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullF(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullU(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullI64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullI(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullS(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func insertSystems(tx *sql.Tx, systems []*domain.System) error {
	stmt, err := tx.Prepare(`INSERT INTO systems VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sys := range systems {
		prov, err := provJSON(sys.Provenance)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(
			sys.ID, sys.StableKey, nullI64(sys.SpatialIndex), sys.Name, sys.NormalizedName,
			sys.PrimaryKey, sys.Size(), nullU(sys.GaiaID), nullU(sys.HipID), nullU(sys.HdID),
			sys.X, sys.Y, sys.Z, nullF(sys.DistanceLy), nullF(sys.RADeg), nullF(sys.DecDeg),
			prov,
		); err != nil {
			return errors.Wrapf(err, "inserting system %v", sys.StableKey)
		}
	}
	return nil
}

func insertStars(tx *sql.Tx, stars []*domain.NormalizedStar) error {
	stmt, err := tx.Prepare(`INSERT INTO stars VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, star := range stars {
		prov, err := provJSON(star.Provenance)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(
			star.ID, star.StableKey, nullI64(star.SpatialIndex), star.SystemKey,
			star.DisplayName, star.NormalizedName,
			nullU(star.GaiaID), nullU(star.HipID), nullU(star.HdID),
			star.X, star.Y, star.Z,
			nullF(star.DistanceLy), nullF(star.RADeg), nullF(star.DecDeg), nullF(star.VMag),
			star.Spectral.Raw, nullS(star.Spectral.Class), nullF(star.Spectral.Subtype),
			nullS(star.Spectral.LuminosityClass), nullS(star.Spectral.Peculiarity),
			prov,
		); err != nil {
			return errors.Wrapf(err, "inserting star %v", star.StableKey)
		}
	}
	return nil
}

func insertPlanets(tx *sql.Tx, planets []*domain.Planet) error {
	stmt, err := tx.Prepare(`INSERT INTO planets VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range planets {
		prov, err := provJSON(p.Provenance)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(
			p.ID, p.StableKey, nullI64(p.SpatialIndex), p.Name, p.HostNameRaw,
			nullS(p.StarKey), nullS(p.SystemKey), string(p.MatchMethod), p.MatchConfidence, p.MatchNotes,
			nullF(p.OrbitalPeriodDays), nullF(p.SemiMajorAxisAU), nullF(p.RadiusEarth),
			nullF(p.MassEarth), nullF(p.Eccentricity), nullF(p.EquilibriumTempK),
			nullI(p.DiscoveryYear), p.DiscoveryMethod,
			prov,
		); err != nil {
			return errors.Wrapf(err, "inserting planet %v", p.StableKey)
		}
	}
	return nil
}
