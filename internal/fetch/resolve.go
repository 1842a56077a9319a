// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/pmc-harvest/internal/oaindex"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// DefaultBaseURL is the PMC file server root that OA file list paths are
// relative to.
const DefaultBaseURL = "https://ftp.ncbi.nlm.nih.gov/pub/pmc/"

// ErrNotOpenAccess is returned when no resolver can locate an OA package for
// an identifier. Articles outside the Open Access subset have none.
var ErrNotOpenAccess = errors.New("no Open Access package")

// Location is a resolved archive download location.
type Location struct {
	// URL is the absolute archive URL (https:// or ftp://).
	URL string

	// Resolver names the resolver that produced URL.
	Resolver string
}

// Resolver maps an identifier to the location of its OA package. Resolve
// returns an error wrapping ErrNotOpenAccess when the identifier has no
// package; any other error is a lookup failure.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, id types.PMCID) (Location, error)
}

// ArchiveName returns the OA package file name for id (e.g. "PMC13900.tar.gz").
func ArchiveName(id types.PMCID) string {
	return id.Accession() + ".tar.gz"
}

// ArchiveURL joins the file server base and an OA file list path with
// exactly one slash between them.
func ArchiveURL(base, filePath string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(filePath, "/")
}

// Lookuper is the part of *oaindex.Index the index resolver needs.
type Lookuper interface {
	Lookup(ctx context.Context, id types.PMCID) (oaindex.Entry, error)
}

// IndexResolver resolves identifiers through the local OA file list index.
type IndexResolver struct {
	Index   Lookuper
	BaseURL string
}

// Name returns the resolver identifier.
func (r *IndexResolver) Name() string { return "oa-index" }

// Resolve looks up id in the index and builds the archive URL.
func (r *IndexResolver) Resolve(ctx context.Context, id types.PMCID) (Location, error) {
	e, err := r.Index.Lookup(ctx, id)
	if errors.Is(err, oaindex.ErrNotFound) {
		return Location{}, fmt.Errorf("%s: %w", id.Accession(), ErrNotOpenAccess)
	}
	if err != nil {
		return Location{}, err
	}
	return Location{URL: ArchiveURL(r.BaseURL, e.File), Resolver: r.Name()}, nil
}

// Chain tries each resolver in order and returns the first location found.
// It reports ErrNotOpenAccess only when every resolver did; any other error
// stops the chain.
type Chain []Resolver

// Name returns the names of the chained resolvers.
func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, r := range c {
		names[i] = r.Name()
	}
	return strings.Join(names, ",")
}

// Resolve implements Resolver.
func (c Chain) Resolve(ctx context.Context, id types.PMCID) (Location, error) {
	if len(c) == 0 {
		return Location{}, fmt.Errorf("no resolvers configured")
	}
	for _, r := range c {
		loc, err := r.Resolve(ctx, id)
		if err == nil {
			return loc, nil
		}
		if !errors.Is(err, ErrNotOpenAccess) {
			return Location{}, fmt.Errorf("%s resolver: %w", r.Name(), err)
		}
	}
	return Location{}, fmt.Errorf("%s: %w", id.Accession(), ErrNotOpenAccess)
}
