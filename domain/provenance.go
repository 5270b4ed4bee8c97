package domain

import (
	"sort"
	"time"
)

// Provenance is the mandatory per-row metadata block carried by every entity
// from raw ingestion through export.  It is copied verbatim from the cooking
// stage and never synthesized by the pipeline.
type Provenance struct {
	SourceCatalog    string    `json:"source_catalog"`
	SourceVersion    string    `json:"source_version"`
	SourceURL        string    `json:"source_url"`
	SourceDOI        string    `json:"source_doi,omitempty"`
	SourceKey        string    `json:"source_key"` // Primary key or row hash in the source catalog.
	License          string    `json:"license"`
	Redistributable  bool      `json:"redistributable"`
	RetrievalETag    string    `json:"retrieval_etag,omitempty"`
	RetrievedAt      time.Time `json:"retrieved_at"`
	IngestedAt       time.Time `json:"ingested_at"`
	TransformVersion string    `json:"transform_version"`
}

// RequiredFields returns the names of provenance fields which must be
// non-empty for the QC provenance gate to pass, paired with whether each one
// is populated.
func (p *Provenance) RequiredFields() map[string]bool {
	return map[string]bool{
		"source_catalog":    p.SourceCatalog != "",
		"source_version":    p.SourceVersion != "",
		"source_url":        p.SourceURL != "",
		"source_key":        p.SourceKey != "",
		"license":           p.License != "",
		"retrieved_at":      !p.RetrievedAt.IsZero(),
		"ingested_at":       !p.IngestedAt.IsZero(),
		"transform_version": p.TransformVersion != "",
	}
}

// Complete reports whether every required provenance field is populated.
func (p *Provenance) Complete() bool {
	if p == nil {
		return false
	}
	for _, ok := range p.RequiredFields() {
		if !ok {
			return false
		}
	}
	return true
}

// MissingFields lists the required provenance fields which are empty.
func (p *Provenance) MissingFields() []string {
	if p == nil {
		return []string{"provenance"}
	}
	missing := []string{}
	for name, ok := range p.RequiredFields() {
		if !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
