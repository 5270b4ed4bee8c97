// Package ident canonicalizes catalog identifiers, display names, and stable
// object keys.  Every function here is pure; malformed inputs degrade to
// absence, never to an error that could abort a build.
package ident

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StableKeySchemaVersion is bumped only when the fallback hash recipe
// changes.  Changing the recipe invalidates every downstream join against
// prior builds, so it is frozen within a major schema version.
const StableKeySchemaVersion = 1

// Catalog identifier prefixes stripped before numeric parsing.  Longest
// match wins so "Gaia DR3" is consumed before "Gaia".
var idPrefixes = []string{
	"Gaia DR3",
	"Gaia DR2",
	"Gaia EDR3",
	"Gaia",
	"GAIA",
	"HIP",
	"HD",
}

var asciiFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ParseCatalogID strips any known catalog prefix plus surrounding whitespace
// and parses the remainder as an unsigned integer.  Returns (nil, raw) when
// the value cannot be parsed; the raw string is preserved for diagnostics.
func ParseCatalogID(raw string) (*uint64, string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, raw
	}
	for _, prefix := range idPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, raw
	}
	return &n, raw
}

// NormalizeName lowercases, folds diacritics and apostrophe variants to
// ASCII, strips punctuation, and collapses runs of whitespace to single
// spaces.  "Proxima  Centauri" and "PROXIMA CENTAURI" normalize identically.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if folded, _, err := transform.String(asciiFolder, s); err == nil {
		s = folded
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '’' || r == '‘' || r == '\'' || r == '`':
			return -1
		case unicode.IsPunct(r):
			return ' '
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// KeyInputs carries the resolved identifiers plus fallback inputs for stable
// key derivation.
type KeyInputs struct {
	GaiaID *uint64
	HipID  *uint64
	HdID   *uint64

	NormalizedName string
	RADeg          *float64
	DecDeg         *float64
	DistanceLy     *float64
}

// StableKey derives the cross-build-durable key for a star or system:
// Gaia -> HIP -> HD -> deterministic hash of (name, RA, Dec, distance).
// The first populated identifier in priority order wins; the hash tuple uses
// RA/Dec rounded to 1e-5 degrees and distance rounded to 1e-3 ly so that
// float noise below catalog precision cannot shift the key.
func StableKey(in KeyInputs) string {
	switch {
	case in.GaiaID != nil:
		return fmt.Sprintf("gaia:%d", *in.GaiaID)
	case in.HipID != nil:
		return fmt.Sprintf("hip:%d", *in.HipID)
	case in.HdID != nil:
		return fmt.Sprintf("hd:%d", *in.HdID)
	}
	return fallbackKey(in)
}

// IdentifierRank orders key sources for clustering tie-breaks: Gaia-bearing
// records sort before HIP-bearing, and so on.  Lower is stronger.
func IdentifierRank(in KeyInputs) int {
	switch {
	case in.GaiaID != nil:
		return 0
	case in.HipID != nil:
		return 1
	case in.HdID != nil:
		return 2
	}
	return 3
}

func fallbackKey(in KeyInputs) string {
	tuple := fmt.Sprintf("%s|%s|%s|%s",
		in.NormalizedName,
		roundedField(in.RADeg, 1e-5, 5),
		roundedField(in.DecDeg, 1e-5, 5),
		roundedField(in.DistanceLy, 1e-3, 3),
	)
	sum := sha256.Sum256([]byte(tuple))
	return fmt.Sprintf("h:%x", sum[:8])
}

func roundedField(v *float64, step float64, decimals int) string {
	if v == nil {
		return ""
	}
	r := math.Round(*v/step) * step
	return strconv.FormatFloat(r, 'f', decimals, 64)
}
