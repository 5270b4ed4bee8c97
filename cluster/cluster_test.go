package cluster

import (
	"testing"

	"github.com/tychodb/tycho/domain"
	"github.com/tychodb/tycho/ident"
)

func mkStar(name string, gaia *uint64, vmag *float64, x, y, z float64) *domain.NormalizedStar {
	dist := 0.0
	star := &domain.NormalizedStar{
		GaiaID:         gaia,
		DisplayName:    name,
		NormalizedName: ident.NormalizeName(name),
		VMag:           vmag,
		X:              x,
		Y:              y,
		Z:              z,
		DistanceLy:     &dist,
	}
	star.StableKey = ident.StableKey(ident.KeyInputs{
		GaiaID:         gaia,
		NormalizedName: star.NormalizedName,
		DistanceLy:     &dist,
	})
	return star
}

func u64(v uint64) *uint64 { return &v }

func f64(v float64) *float64 { return &v }

func TestNameRoot(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"sirius a", "sirius"},
		{"sirius b", "sirius"},
		{"alpha centauri c", "alpha centauri"},
		{"proxima centauri", "proxima centauri"},
		{"lalande 21185", "lalande 21185"},
		{"a", "a"},
		{"gj 65 ab", "gj 65"},
	}
	for _, test := range tests {
		if expected, actual := test.expected, NameRoot(test.in); actual != expected {
			t.Errorf("[in=%q] expected root=%v but actual=%v", test.in, expected, actual)
		}
	}
}

func TestSiriusScenario(t *testing.T) {
	a := mkStar("Sirius A", u64(12345), f64(-1.46), -1.61, 8.06, -2.47)
	b := mkStar("Sirius B", u64(67890), f64(8.44), -1.61, 8.06, -2.47)

	systems := Partition([]*domain.NormalizedStar{b, a}, NewConfig())
	if expected, actual := 1, len(systems); actual != expected {
		t.Fatalf("expected %v system but actual=%v", expected, actual)
	}

	sys := systems[0]
	if expected, actual := a.StableKey, sys.PrimaryKey; actual != expected {
		t.Errorf("expected primary=%v but actual=%v", expected, actual)
	}
	if expected, actual := "gaia:12345", sys.StableKey; actual != expected {
		t.Errorf("expected system key=%v but actual=%v", expected, actual)
	}
	if expected, actual := "Sirius", sys.Name; actual != expected {
		t.Errorf("expected system name=%v but actual=%v", expected, actual)
	}
	if expected, actual := 2, sys.Size(); actual != expected {
		t.Errorf("expected size=%v but actual=%v", expected, actual)
	}
	if a.SystemKey != sys.StableKey || b.SystemKey != sys.StableKey {
		t.Errorf("expected members annotated with system key %v, got %v / %v", sys.StableKey, a.SystemKey, b.SystemKey)
	}
}

func TestProximityTransitivity(t *testing.T) {
	// A-B = 0.1 ly and B-C = 0.2 ly link directly; A-C = 0.3 ly exceeds the
	// threshold, but transitive closure must still merge all three.
	a := mkStar("GJ 1001", nil, f64(12.8), 0, 0, 0)
	b := mkStar("GJ 1002", nil, f64(13.8), 0.1, 0, 0)
	c := mkStar("GJ 1003", nil, f64(14.8), 0.3, 0, 0)

	cfg := NewConfig()
	cfg.ProximityGrouping = true
	systems := Partition([]*domain.NormalizedStar{a, b, c}, cfg)
	if expected, actual := 1, len(systems); actual != expected {
		t.Fatalf("expected %v system but actual=%v", expected, actual)
	}
	if expected, actual := a.StableKey, systems[0].PrimaryKey; actual != expected {
		t.Errorf("expected brightest primary=%v but actual=%v", expected, actual)
	}
}

func TestProximityDisabled(t *testing.T) {
	a := mkStar("GJ 1001", nil, f64(12.8), 0, 0, 0)
	b := mkStar("GJ 1002", nil, f64(13.8), 0.1, 0, 0)

	cfg := NewConfig()
	cfg.ProximityGrouping = false
	systems := Partition([]*domain.NormalizedStar{a, b}, cfg)
	if expected, actual := 2, len(systems); actual != expected {
		t.Fatalf("expected %v singleton systems but actual=%v", expected, actual)
	}
}

func TestPrimaryTieBreaks(t *testing.T) {
	// Equal magnitudes: the Gaia-bearing member outranks the bare one.
	a := mkStar("Kruger 60 A", nil, f64(9.59), 10, 0, 0)
	b := mkStar("Kruger 60 B", u64(999), f64(9.59), 10, 0, 0)

	systems := Partition([]*domain.NormalizedStar{a, b}, NewConfig())
	if expected, actual := 1, len(systems); actual != expected {
		t.Fatalf("expected %v system but actual=%v", expected, actual)
	}
	if expected, actual := b.StableKey, systems[0].PrimaryKey; actual != expected {
		t.Errorf("expected identifier-ranked primary=%v but actual=%v", expected, actual)
	}

	// All-null magnitudes fall through to identifier priority as well.
	c := mkStar("Wolf 424 A", nil, nil, 20, 0, 0)
	d := mkStar("Wolf 424 B", u64(1000), nil, 20, 0, 0)
	systems = Partition([]*domain.NormalizedStar{c, d}, NewConfig())
	if expected, actual := d.StableKey, systems[0].PrimaryKey; actual != expected {
		t.Errorf("expected identifier-ranked primary=%v but actual=%v", expected, actual)
	}
}

func TestPartitionOrderIndependence(t *testing.T) {
	stars := func() []*domain.NormalizedStar {
		return []*domain.NormalizedStar{
			mkStar("Sirius A", u64(1), f64(-1.46), 0, 0, 0),
			mkStar("Sirius B", u64(2), f64(8.44), 0, 0, 0),
			mkStar("Procyon", u64(3), f64(0.34), 5, 5, 5),
			mkStar("Luyten 726-8 A", nil, f64(12.5), -2, 1, 0.5),
		}
	}

	forward := Partition(stars(), NewConfig())

	reversed := stars()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	backward := Partition(reversed, NewConfig())

	if expected, actual := len(forward), len(backward); actual != expected {
		t.Fatalf("expected %v systems both ways but actual=%v", expected, actual)
	}
	for i := range forward {
		if forward[i].StableKey != backward[i].StableKey {
			t.Errorf("[i=%v] system order differs: %v vs %v", i, forward[i].StableKey, backward[i].StableKey)
		}
		if forward[i].PrimaryKey != backward[i].PrimaryKey {
			t.Errorf("[i=%v] primary differs: %v vs %v", i, forward[i].PrimaryKey, backward[i].PrimaryKey)
		}
	}
}
