package domain

import (
	"testing"
	"time"
)

func TestBuildIDRoundTrip(t *testing.T) {
	id := NewBuildID(time.Date(2024, 2, 1, 10, 30, 45, 999, time.FixedZone("X", 3600)), "v1.4.2")

	s := id.String()
	if expected, actual := "20240201T093045Z-v1.4.2", s; actual != expected {
		t.Errorf("expected %v but actual=%v", expected, actual)
	}

	parsed, err := ParseBuildID(s)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Timestamp.Equal(id.Timestamp) {
		t.Errorf("expected timestamp=%v but actual=%v", id.Timestamp, parsed.Timestamp)
	}
	if expected, actual := "v1.4.2", parsed.SourceVersion; actual != expected {
		t.Errorf("expected source version=%v but actual=%v", expected, actual)
	}
}

func TestParseBuildIDRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "nodash", "20240201T093045Z-", "notatime-v1", "20240201-v1"} {
		if _, err := ParseBuildID(s); err == nil {
			t.Errorf("[s=%q] expected parse error", s)
		}
	}
}

func TestBuildIDOrdering(t *testing.T) {
	a := NewBuildID(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "v2")
	b := NewBuildID(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "v1")
	if !a.Before(b) || b.Before(a) {
		t.Error("expected timestamp to dominate ordering")
	}

	c := NewBuildID(a.Timestamp, "v1")
	if !c.Before(a) {
		t.Error("expected source version to break timestamp ties")
	}
}

func TestPlanetMatchStateValid(t *testing.T) {
	star := "gaia:1"
	sys := "gaia:1"

	matched := &Planet{StarKey: &star, SystemKey: &sys, MatchMethod: MatchGaiaID, MatchConfidence: 1}
	if !matched.MatchStateValid() {
		t.Error("fully matched planet must be valid")
	}

	unmatched := &Planet{MatchMethod: MatchNone}
	if !unmatched.MatchStateValid() {
		t.Error("fully unmatched planet must be valid")
	}

	partial := &Planet{StarKey: &star, MatchMethod: MatchGaiaID, MatchConfidence: 1}
	if partial.MatchStateValid() {
		t.Error("planet with star but no system must be invalid")
	}

	confident := &Planet{MatchMethod: MatchNone, MatchConfidence: 0.5}
	if confident.MatchStateValid() {
		t.Error("unmatched planet with confidence must be invalid")
	}
}
