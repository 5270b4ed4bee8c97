package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tychodb/tycho/domain"
)

func testBackend(t *testing.T) Backend {
	t.Helper()
	return NewBoltBackend(NewBoltConfig(filepath.Join(t.TempDir(), "state.bolt")))
}

func TestClientMetadataRoundTrip(t *testing.T) {
	if err := WithClient(testBackend(t), func(client Client) error {
		meta := &domain.BuildMetadata{
			BuildID:             "20240101T000000Z-v1",
			SourceVersion:       "v1",
			SpatialBitsPerAxis:  21,
			SpatialDomainHalfLy: 1000,
		}
		if err := client.MetadataSave(meta); err != nil {
			t.Fatal(err)
		}
		got, err := client.Metadata(meta.BuildID)
		if err != nil {
			t.Fatal(err)
		}
		if expected, actual := meta.SpatialDomainHalfLy, got.SpatialDomainHalfLy; actual != expected {
			t.Errorf("expected half-width=%v but actual=%v", expected, actual)
		}

		if _, err := client.Metadata("nope"); err != ErrKeyNotFound {
			t.Errorf("expected ErrKeyNotFound but actual=%v", err)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestClientLatestSummary(t *testing.T) {
	if err := WithClient(testBackend(t), func(client Client) error {
		latest, err := client.LatestSummary()
		if err != nil {
			t.Fatal(err)
		}
		if latest != nil {
			t.Fatalf("expected no summary on empty store, got %+v", latest)
		}

		for _, id := range []string{"20240102T000000Z-v1", "20240101T000000Z-v1", "20240103T000000Z-v1"} {
			if err := client.SummarySave(&domain.BuildSummary{BuildID: id, StarCount: len(id)}); err != nil {
				t.Fatal(err)
			}
		}

		latest, err = client.LatestSummary()
		if err != nil {
			t.Fatal(err)
		}
		if expected, actual := "20240103T000000Z-v1", latest.BuildID; actual != expected {
			t.Errorf("expected latest=%v but actual=%v", expected, actual)
		}

		n := 0
		if err := client.EachSummary(func(*domain.BuildSummary) { n++ }); err != nil {
			t.Fatal(err)
		}
		if expected, actual := 3, n; actual != expected {
			t.Errorf("expected %v summaries but actual=%v", expected, actual)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestClientAuditAppendOnly(t *testing.T) {
	if err := WithClient(testBackend(t), func(client Client) error {
		recs := []*domain.MatchAuditRecord{
			{PlanetKey: "p:1", Method: domain.MatchGaiaID, Confidence: 1, DecidedAt: time.Unix(0, 0).UTC()},
		}
		if err := client.AuditAppend("20240101T000000Z-v1", recs); err != nil {
			t.Fatal(err)
		}
		if err := client.AuditAppend("20240101T000000Z-v1", recs); err == nil {
			t.Error("expected second append for same build to be refused")
		}

		got, err := client.Audits("20240101T000000Z-v1")
		if err != nil {
			t.Fatal(err)
		}
		if expected, actual := 1, len(got); actual != expected {
			t.Fatalf("expected %v records but actual=%v", expected, actual)
		}
		if expected, actual := domain.MatchGaiaID, got[0].Method; actual != expected {
			t.Errorf("expected method=%v but actual=%v", expected, actual)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestBoltLockFailsFast(t *testing.T) {
	file := filepath.Join(t.TempDir(), "state.bolt")

	first := NewBoltBackend(NewBoltConfig(file))
	if err := first.Open(); err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	second := NewBoltBackend(NewBoltConfig(file))
	start := time.Now()
	err := second.Open()
	if err != ErrStateLocked {
		t.Fatalf("expected ErrStateLocked but actual=%v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("lock conflict must fail fast, took %v", elapsed)
	}
}
