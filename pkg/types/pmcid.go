// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the pmc-harvest pipeline:
// article identifiers, harvested article records, and stage configuration.
package types

import (
	"fmt"
	"strings"
)

// accessionPrefix is the prefix PMC uses for accession IDs in the OA file
// list and on the file server. esearch returns IDs without it.
const accessionPrefix = "PMC"

// PMCID is a PubMed Central article identifier in its bare form
// (e.g. "1234567"). Use Accession for the "PMC"-prefixed form.
type PMCID string

// ParsePMCID normalizes an identifier given either bare ("1234567") or
// prefixed ("PMC1234567", "pmc1234567"). Empty or non-alphanumeric input is
// rejected.
func ParsePMCID(s string) (PMCID, error) {
	s = strings.TrimSpace(s)
	if len(s) >= len(accessionPrefix) && strings.EqualFold(s[:len(accessionPrefix)], accessionPrefix) {
		s = s[len(accessionPrefix):]
	}
	if s == "" {
		return "", fmt.Errorf("empty PMCID")
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "", fmt.Errorf("invalid PMCID %q", s)
		}
	}
	return PMCID(s), nil
}

// Accession returns the "PMC"-prefixed form used by the OA file list and
// the archive file names.
func (id PMCID) Accession() string {
	return accessionPrefix + string(id)
}

// String returns the bare identifier.
func (id PMCID) String() string { return string(id) }

// ParsePMCIDs parses every string in ss, failing on the first invalid one.
func ParsePMCIDs(ss []string) ([]PMCID, error) {
	ids := make([]PMCID, 0, len(ss))
	for _, s := range ss {
		id, err := ParsePMCID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
