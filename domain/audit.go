package domain

import (
	"time"
)

// MatchAuditRecord is one immutable row per host-matching decision, matched
// or not.  Records are append-only; re-scoring a planet in a later build
// produces a new record rather than editing an old one.
type MatchAuditRecord struct {
	PlanetKey   string      `json:"planet_key"`
	PlanetName  string      `json:"planet_name"`
	HostNameRaw string      `json:"host_name_raw"`
	StarKey     *string     `json:"star_key,omitempty"`
	SystemKey   *string     `json:"system_key,omitempty"`
	Method      MatchMethod `json:"method"`
	Confidence  float64     `json:"confidence"`
	Notes       string      `json:"notes,omitempty"`
	DecidedAt   time.Time   `json:"decided_at"`
}

// NewMatchAuditRecord captures the outcome recorded on the planet itself.
func NewMatchAuditRecord(p *Planet, decidedAt time.Time) *MatchAuditRecord {
	rec := &MatchAuditRecord{
		PlanetKey:   p.StableKey,
		PlanetName:  p.Name,
		HostNameRaw: p.HostNameRaw,
		StarKey:     p.StarKey,
		SystemKey:   p.SystemKey,
		Method:      p.MatchMethod,
		Confidence:  p.MatchConfidence,
		Notes:       p.MatchNotes,
		DecidedAt:   decidedAt,
	}
	return rec
}
