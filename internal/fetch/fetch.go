// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch resolves PMC identifiers to Open Access package locations on
// the NCBI file server and downloads the archives.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pdiddy/pmc-harvest/internal/logger"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// Result describes one downloaded archive.
type Result struct {
	ID       types.PMCID
	Location Location
	// Path is the local archive path.
	Path string
}

// Fetcher downloads OA packages one at a time.
type Fetcher struct {
	Client   *http.Client
	Resolver Resolver
	Config   types.FetchConfig
	Log      *zap.Logger
}

// Fetch resolves id and downloads its archive into dir as PMC<id>.tar.gz.
// Resolution failures wrap ErrNotOpenAccess when the article has no package.
func (f *Fetcher) Fetch(ctx context.Context, id types.PMCID, dir string) (Result, error) {
	if id == "" {
		return Result{}, fmt.Errorf("empty identifier")
	}
	log := logger.OrNop(f.Log)

	loc, err := f.Resolver.Resolve(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("resolving %s: %w", id.Accession(), err)
	}
	log.Debug("resolved archive",
		zap.String("accession", id.Accession()),
		zap.String("url", loc.URL),
		zap.String("resolver", loc.Resolver))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, ArchiveName(id))
	if err := Download(ctx, f.Client, loc.URL, path, f.Config); err != nil {
		return Result{}, fmt.Errorf("downloading %s: %w", id.Accession(), err)
	}
	return Result{ID: id, Location: loc, Path: path}, nil
}

// NewResolver builds the resolver chain described by cfg: the OA file list
// index first when one is open, then the OA web service when enabled.
func NewResolver(client *http.Client, cfg types.FetchConfig, index Lookuper) Resolver {
	var chain Chain
	if index != nil {
		chain = append(chain, &IndexResolver{Index: index, BaseURL: cfg.BaseURL})
	}
	if cfg.UseOAService {
		chain = append(chain, &OAServiceResolver{
			Client:      client,
			BaseURL:     cfg.OAServiceURL,
			UserAgent:   cfg.UserAgent,
			PreferHTTPS: cfg.PreferHTTPS,
		})
	}
	return chain
}
