package domain

// MatchReport summarizes the host-matching stage of one build.
type MatchReport struct {
	BuildID        string              `json:"build_id"`
	Total          int                 `json:"total"`
	Matched        int                 `json:"matched"`
	Unmatched      int                 `json:"unmatched"`
	CountsByMethod map[MatchMethod]int `json:"counts_by_method"`
	// UnmatchedHosts lists distinct raw host names which resolved to nothing;
	// AmbiguousHosts lists hosts resolved via the distance tie-break.
	UnmatchedHosts []string `json:"unmatched_hosts"`
	AmbiguousHosts []string `json:"ambiguous_hosts"`
	MatchRate      float64  `json:"match_rate"`
}

// ProvenanceIssue names one row whose provenance block failed the gate.
type ProvenanceIssue struct {
	Table   string   `json:"table"`
	Key     string   `json:"key"`
	Missing []string `json:"missing"`
}

// ProvenanceReport summarizes provenance coverage for one build.
type ProvenanceReport struct {
	BuildID  string            `json:"build_id"`
	Checked  int               `json:"checked"`
	Complete int               `json:"complete"`
	Issues   []ProvenanceIssue `json:"issues,omitempty"`
}

// QCFinding is one rule evaluation outcome.
type QCFinding struct {
	Rule   string `json:"rule"`
	Hard   bool   `json:"hard"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
	Rows   int    `json:"rows,omitempty"` // Offending row count, when applicable.
}

// QCReport is the full QC gate outcome for one build.  Any failed hard
// finding blocks promotion.
type QCReport struct {
	BuildID      string      `json:"build_id"`
	Findings     []QCFinding `json:"findings"`
	HardFailures int         `json:"hard_failures"`
	Warnings     int         `json:"warnings"`
	DriftSkipped bool        `json:"drift_skipped"` // True when no previous build existed to compare against.
}

// Passed reports whether the build may be promoted.
func (r *QCReport) Passed() bool {
	return r.HardFailures == 0
}
