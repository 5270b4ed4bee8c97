// Package spectral parses raw spectral-type strings into structured fields.
// Parsing is best-effort: the primary component of a composite string is
// matched against a fixed grammar, and anything ambiguous is left raw rather
// than guessed at.
package spectral

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tychodb/tycho/domain"
)

// Primary-component grammar: temperature class, optional subtype (possibly
// fractional), optional luminosity class in roman numerals I-VII, optional
// trailing peculiarity markers.  Examples: "G2V", "K1III", "M5.5Ve", "DA2"
// does not match (white dwarf classes are out of grammar and stay raw).
// Longer roman numerals come first: alternation is leftmost-first, so "VI"
// must be tried before "V" or the trailing "I" leaks into the peculiarity.
var specRe = regexp.MustCompile(`^([OBAFGKMLTY])(\d(?:\.\d+)?)?\s*((?:VII|VI|IV|V|III|II|I)(?:[ab])?)?\s*(.*)$`)

var luminosityClasses = map[string]bool{
	"I": true, "II": true, "III": true, "IV": true,
	"V": true, "VI": true, "VII": true,
}

// Parse extracts the structured fields of the primary component of a raw
// spectral-type string.  Composite strings ("K1III+DA2") are split on the
// first component boundary and the remainder is retained as peculiarity.
// On no match all structured fields are nil and Raw carries the input
// untouched.
func Parse(raw string) *domain.SpectralType {
	st := &domain.SpectralType{Raw: raw}

	s := strings.TrimSpace(raw)
	if s == "" {
		return st
	}

	primary := s
	var rest string
	if i := strings.IndexAny(s, "+/"); i > 0 {
		primary = s[:i]
		rest = s[i:]
	}

	m := specRe.FindStringSubmatch(strings.TrimSpace(primary))
	if m == nil {
		return st
	}

	class := m[1]
	st.Class = &class

	if m[2] != "" {
		sub, err := strconv.ParseFloat(m[2], 64)
		if err == nil {
			st.Subtype = &sub
		}
	}

	if m[3] != "" {
		lum := strings.TrimRight(m[3], "ab")
		if luminosityClasses[lum] {
			st.LuminosityClass = &m[3]
		}
	}

	pec := strings.TrimSpace(m[4]) + rest
	if pec != "" {
		st.Peculiarity = &pec
	}

	return st
}
