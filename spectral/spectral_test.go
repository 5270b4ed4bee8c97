package spectral

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw        string
		class      string
		subtype    float64
		hasSubtype bool
		luminosity string
		pec        string
	}{
		{"G2V", "G", 2, true, "V", ""},
		{"K1III", "K", 1, true, "III", ""},
		{"K1III+DA2", "K", 1, true, "III", "+DA2"},
		{"M5.5Ve", "M", 5.5, true, "V", "e"},
		{"A0", "A", 0, true, "", ""},
		{"F8Ia", "F", 8, true, "Ia", ""},
		{"T8", "T", 8, true, "", ""},
		{"K2V(k)", "K", 2, true, "V", "(k)"},
		{"K5VI", "K", 5, true, "VI", ""},
		{"G2VII", "G", 2, true, "VII", ""},
		{"M3Vvar", "M", 3, true, "V", "var"},
	}
	for _, test := range tests {
		st := Parse(test.raw)
		if st.Raw != test.raw {
			t.Errorf("[raw=%q] raw string not preserved, got %q", test.raw, st.Raw)
		}
		if !st.Parsed() {
			t.Fatalf("[raw=%q] expected a parse but got none", test.raw)
		}
		if expected, actual := test.class, *st.Class; actual != expected {
			t.Errorf("[raw=%q] expected class=%v but actual=%v", test.raw, expected, actual)
		}
		if test.hasSubtype {
			if st.Subtype == nil {
				t.Errorf("[raw=%q] expected subtype=%v but got none", test.raw, test.subtype)
			} else if expected, actual := test.subtype, *st.Subtype; actual != expected {
				t.Errorf("[raw=%q] expected subtype=%v but actual=%v", test.raw, expected, actual)
			}
		}
		if test.luminosity == "" {
			if st.LuminosityClass != nil {
				t.Errorf("[raw=%q] expected no luminosity class but got %q", test.raw, *st.LuminosityClass)
			}
		} else if st.LuminosityClass == nil {
			t.Errorf("[raw=%q] expected luminosity=%v but got none", test.raw, test.luminosity)
		} else if expected, actual := test.luminosity, *st.LuminosityClass; actual != expected {
			t.Errorf("[raw=%q] expected luminosity=%v but actual=%v", test.raw, expected, actual)
		}
		if test.pec == "" {
			if st.Peculiarity != nil {
				t.Errorf("[raw=%q] expected no peculiarity but got %q", test.raw, *st.Peculiarity)
			}
		} else if st.Peculiarity == nil {
			t.Errorf("[raw=%q] expected peculiarity=%v but got none", test.raw, test.pec)
		} else if expected, actual := test.pec, *st.Peculiarity; actual != expected {
			t.Errorf("[raw=%q] expected peculiarity=%v but actual=%v", test.raw, expected, actual)
		}
	}
}

func TestParseNoGuess(t *testing.T) {
	// Out-of-grammar strings keep the raw value and leave every structured
	// field nil.
	for _, raw := range []string{"", "DA2", "sdK7", "??", "WN5"} {
		st := Parse(raw)
		if st.Raw != raw {
			t.Errorf("[raw=%q] raw string not preserved, got %q", raw, st.Raw)
		}
		if st.Parsed() || st.Subtype != nil || st.LuminosityClass != nil || st.Peculiarity != nil {
			t.Errorf("[raw=%q] expected no structured fields, got %+v", raw, st)
		}
	}
}
