package catalog

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tychodb/tycho/domain"
)

// header maps column names to positions for one CSV file.  Unknown columns
// are ignored so the cooking stage can add fields without breaking older
// pipeline versions.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	record, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading header row")
	}
	h := header{}
	for i, name := range record {
		h[strings.TrimSpace(strings.ToLower(name))] = i
	}
	return h, nil
}

func (h header) str(record []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (h header) float(record []string, col string) *float64 {
	s := h.str(record, col)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (h header) int(record []string, col string) *int {
	s := h.str(record, col)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func (h header) time(record []string, col string) time.Time {
	s := h.str(record, col)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (h header) provenance(record []string) *domain.Provenance {
	p := &domain.Provenance{
		SourceCatalog:    h.str(record, "prov_source_catalog"),
		SourceVersion:    h.str(record, "prov_source_version"),
		SourceURL:        h.str(record, "prov_source_url"),
		SourceDOI:        h.str(record, "prov_source_doi"),
		SourceKey:        h.str(record, "prov_source_key"),
		License:          h.str(record, "prov_license"),
		Redistributable:  strings.EqualFold(h.str(record, "prov_redistributable"), "true"),
		RetrievalETag:    h.str(record, "prov_etag"),
		RetrievedAt:      h.time(record, "prov_retrieved_at"),
		IngestedAt:       h.time(record, "prov_ingested_at"),
		TransformVersion: h.str(record, "prov_transform_version"),
	}
	return p
}

// ReadStarRows parses a cooked stellar-catalog CSV stream.  Rows whose
// coordinate cells fail to parse are dropped with a warning; identifier and
// spectral cells stay raw and are degraded later by the normalizer.
func ReadStarRows(rd io.Reader) ([]*RawStarRow, error) {
	r := csv.NewReader(rd)
	r.FieldsPerRecord = -1

	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	rows := []*RawStarRow{}
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "star catalog line %v", line+1)
		}
		line++

		x := h.float(record, "x_ly")
		y := h.float(record, "y_ly")
		z := h.float(record, "z_ly")
		if x == nil || y == nil || z == nil {
			log.WithField("line", line).WithField("name", h.str(record, "name")).Warn("Dropping star row with unparseable coordinates")
			continue
		}

		row := &RawStarRow{
			GaiaIDRaw:   h.str(record, "gaia_id"),
			HipIDRaw:    h.str(record, "hip_id"),
			HdIDRaw:     h.str(record, "hd_id"),
			Name:        h.str(record, "name"),
			X:           *x,
			Y:           *y,
			Z:           *z,
			DistanceLy:  h.float(record, "dist_ly"),
			RADeg:       h.float(record, "ra_deg"),
			DecDeg:      h.float(record, "dec_deg"),
			VMag:        h.float(record, "v_mag"),
			SpectralRaw: h.str(record, "spectral_type"),
			Provenance:  h.provenance(record),
		}
		rows = append(rows, row)
	}

	log.WithField("rows", len(rows)).Info("Read star catalog")
	return rows, nil
}

// ReadPlanetRows parses a cooked exoplanet-catalog CSV stream.
func ReadPlanetRows(rd io.Reader) ([]*RawPlanetRow, error) {
	r := csv.NewReader(rd)
	r.FieldsPerRecord = -1

	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	rows := []*RawPlanetRow{}
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "planet catalog line %v", line+1)
		}
		line++

		row := &RawPlanetRow{
			Name:              h.str(record, "name"),
			HostNameRaw:       h.str(record, "host_name"),
			HostGaiaIDRaw:     h.str(record, "gaia_id"),
			HostHipIDRaw:      h.str(record, "hip_id"),
			HostHdIDRaw:       h.str(record, "hd_id"),
			OrbitalPeriodDays: h.float(record, "period_days"),
			SemiMajorAxisAU:   h.float(record, "semi_major_axis_au"),
			RadiusEarth:       h.float(record, "radius_earth"),
			MassEarth:         h.float(record, "mass_earth"),
			Eccentricity:      h.float(record, "eccentricity"),
			EquilibriumTempK:  h.float(record, "eq_temp_k"),
			DiscoveryYear:     h.int(record, "discovery_year"),
			DiscoveryMethod:   h.str(record, "discovery_method"),
			Provenance:        h.provenance(record),
		}
		rows = append(rows, row)
	}

	log.WithField("rows", len(rows)).Info("Read planet catalog")
	return rows, nil
}
