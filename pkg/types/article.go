// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Article records one harvested article. The harvester writes it as YAML to
// <out>/metadata/<accession>.yaml once the archive has been unpacked; its
// presence marks the article as done for subsequent runs.
type Article struct {
	// ID is the bare PMCID (e.g. "1234567").
	ID PMCID `json:"id" yaml:"id"`

	// Accession is the "PMC"-prefixed identifier.
	Accession string `json:"accession" yaml:"accession"`

	// SourceURL is the URL from which the archive was downloaded.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// Resolver names the resolver that produced SourceURL ("oa-index" or "oa-service").
	Resolver string `json:"resolver" yaml:"resolver"`

	// Archive is the archive file name (e.g. "PMC1234567.tar.gz"). The file
	// itself is removed after extraction.
	Archive string `json:"archive" yaml:"archive"`

	// ExtractedDir is the directory the archive was unpacked into. Empty when
	// the extracted tree was collected and removed.
	ExtractedDir string `json:"extracted_dir,omitempty" yaml:"extracted_dir,omitempty"`

	// Files lists collected files moved into the output directory.
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`

	// FetchedAt is when the archive download completed.
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`

	// RunID identifies the harvest run that produced this record.
	RunID string `json:"run_id" yaml:"run_id"`
}
