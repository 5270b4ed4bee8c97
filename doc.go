package tycho

// Package tycho is a batch pipeline turning raw astronomical catalogs into
// versioned, immutable, queryable dataset builds.
//
// Overview
//
// A build runs the following stages end to end:
//
// 1. Ingestion
//
// Raw star and exoplanet CSVs are parsed into typed rows.  Catalog
// identifiers (Gaia, HIP, HD) are normalized, designation names are
// diacritic-folded and lowercased, and spectral type strings are decomposed
// into class, subtype, and luminosity class.  Every row derives one stable
// key from its highest-priority identifier, falling back to a content hash
// when no catalog id is present, so a physical object keeps the same key
// across catalog releases.
//
// 2. Clustering
//
// Stars sharing a name root (the designation minus a trailing component
// letter, e.g. "Sirius A" and "Sirius B") are grouped into systems, then an
// optional proximity pass links stars within 0.25 light-years via transitive
// closure.  The brightest member becomes the system primary and the system
// inherits its coordinates and stable key.
//
// 3. Spatial indexing
//
// Positions are quantized onto a 21-bit-per-axis grid over a bounded cubic
// domain and interleaved into a 63-bit Morton code, giving every table a
// locality-preserving sort order.  Coordinates outside the domain abort the
// build.
//
// 4. Host matching
//
// Each planet is resolved against the star index through an ordered cascade
// of scorers, from exact Gaia/HIP/HD id matches down to normalized-name and
// feature-gated fuzzy matching, with a confidence score per tier and one
// append-only audit record per planet per build.
//
// 5. Quality control and promotion
//
// Hard QC rules (provenance completeness, distance consistency, key
// uniqueness, domain bounds, match-state integrity) gate promotion; warn
// rules compare against the previous build's summary to flag drift.  All
// artifacts are written into a staging directory, then the directory is
// renamed into place and the "current" pointer is swapped atomically, so
// consumers only ever observe complete builds.
//
// The tycho command in cmd/tycho drives builds and inspects their results;
// build state and cross-build history live in a Bolt state store.
