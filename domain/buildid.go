package domain

import (
	"fmt"
	"strings"
	"time"
)

// BuildIDTimeLayout is the timestamp half of a build id.  UTC, second
// resolution, lexically orderable.
const BuildIDTimeLayout = "20060102T150405Z"

// BuildID identifies one complete, versioned, immutable pipeline run.  The
// string form is "<utc-timestamp>-<source-version>", e.g.
// "20240131T042210Z-v1.4.2".  Source version is an opaque string supplied by
// the caller; the pipeline attaches no version-control meaning to it.
type BuildID struct {
	Timestamp     time.Time
	SourceVersion string
}

// NewBuildID constructs a build id from a wall-clock instant and a source
// version string.  The timestamp is truncated to seconds and normalized to
// UTC so formatting round-trips exactly.
func NewBuildID(ts time.Time, sourceVersion string) BuildID {
	id := BuildID{
		Timestamp:     ts.UTC().Truncate(time.Second),
		SourceVersion: sourceVersion,
	}
	return id
}

// ParseBuildID parses the string form produced by String.
func ParseBuildID(s string) (BuildID, error) {
	i := strings.Index(s, "-")
	if i < 0 {
		return BuildID{}, fmt.Errorf("malformed build id %q: missing source-version separator", s)
	}
	ts, err := time.Parse(BuildIDTimeLayout, s[:i])
	if err != nil {
		return BuildID{}, fmt.Errorf("malformed build id %q: %s", s, err)
	}
	if s[i+1:] == "" {
		return BuildID{}, fmt.Errorf("malformed build id %q: empty source version", s)
	}
	id := BuildID{
		Timestamp:     ts,
		SourceVersion: s[i+1:],
	}
	return id, nil
}

func (id BuildID) String() string {
	return fmt.Sprintf("%s-%s", id.Timestamp.UTC().Format(BuildIDTimeLayout), id.SourceVersion)
}

// Before orders build ids by timestamp, then source version, matching the
// lexical order of the string form for same-length versions.
func (id BuildID) Before(other BuildID) bool {
	if !id.Timestamp.Equal(other.Timestamp) {
		return id.Timestamp.Before(other.Timestamp)
	}
	return id.SourceVersion < other.SourceVersion
}

// IsZero reports whether the id is unset.
func (id BuildID) IsZero() bool {
	return id.Timestamp.IsZero() && id.SourceVersion == ""
}
