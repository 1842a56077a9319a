// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest runs the search, fetch, and extract steps in sequence:
// one esearch query, then for each identifier a download of its OA package
// followed by extraction into the output directory.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pmc-harvest/internal/esearch"
	"github.com/pdiddy/pmc-harvest/internal/fetch"
	"github.com/pdiddy/pmc-harvest/internal/logger"
	"github.com/pdiddy/pmc-harvest/internal/unpack"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

const metadataDir = "metadata"

// Searcher runs the query step.
type Searcher interface {
	Search(ctx context.Context, term string, cfg types.SearchConfig) (esearch.Result, error)
}

// Fetcher runs the fetch step for a single identifier.
type Fetcher interface {
	Fetch(ctx context.Context, id types.PMCID, dir string) (fetch.Result, error)
}

// Summary holds the outcome of a run.
type Summary struct {
	Found         int
	Harvested     int
	Skipped       int
	NotOpenAccess int
	Articles      []*types.Article
}

// Total returns the number of identifiers processed.
func (s Summary) Total() int {
	return s.Harvested + s.Skipped + s.NotOpenAccess
}

// Harvester wires the three steps together.
type Harvester struct {
	Searcher Searcher
	Fetcher  Fetcher
	Config   types.HarvestConfig
	Log      *zap.Logger

	// RunID is recorded in every manifest written by this harvester.
	RunID string

	now func() time.Time
}

// New returns a Harvester with a fresh run ID.
func New(s Searcher, f Fetcher, cfg types.HarvestConfig, log *zap.Logger) *Harvester {
	return &Harvester{
		Searcher: s,
		Fetcher:  f,
		Config:   cfg,
		Log:      logger.OrNop(log),
		RunID:    uuid.NewString(),
		now:      time.Now,
	}
}

// Run searches for term and harvests every identifier found.
func (h *Harvester) Run(ctx context.Context, term string, w io.Writer) (Summary, error) {
	res, err := h.Searcher.Search(ctx, term, h.Config.Search)
	if err != nil {
		return Summary{}, fmt.Errorf("searching %q: %w", term, err)
	}
	fmt.Fprintf(w, "found: %d identifier(s) for %q (%d total hits)\n", len(res.IDs), term, res.Count)
	if res.SavedPath != "" {
		fmt.Fprintf(w, "saved: %s\n", res.SavedPath)
	}

	sum, err := h.Harvest(ctx, res.IDs, w)
	sum.Found = len(res.IDs)
	return sum, err
}

// Harvest fetches and extracts each identifier in order. Identifiers with no
// OA package are reported and skipped, as are identifiers already harvested
// into the output directory. Any other failure stops the run.
func (h *Harvester) Harvest(ctx context.Context, ids []types.PMCID, w io.Writer) (Summary, error) {
	sum := Summary{Found: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		art, skipped, err := h.harvestOne(ctx, id, w)
		switch {
		case errors.Is(err, fetch.ErrNotOpenAccess):
			fmt.Fprintf(w, "no package: %s\n", id.Accession())
			h.logger().Info("no OA package", zap.String("accession", id.Accession()), zap.Error(err))
			sum.NotOpenAccess++
			continue
		case err != nil:
			return sum, err
		case skipped:
			sum.Skipped++
		default:
			sum.Harvested++
		}
		sum.Articles = append(sum.Articles, art)
	}

	fmt.Fprintf(w, "\nHarvest summary: %d harvested, %d skipped, %d without package (total: %d)\n",
		sum.Harvested, sum.Skipped, sum.NotOpenAccess, sum.Total())
	return sum, nil
}

func (h *Harvester) harvestOne(ctx context.Context, id types.PMCID, w io.Writer) (*types.Article, bool, error) {
	outDir := h.outDir()
	metaPath := ManifestPath(outDir, id)

	if _, err := os.Stat(metaPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already harvested)\n", id.Accession())
		art, readErr := ReadManifest(metaPath)
		if readErr != nil {
			h.logger().Warn("unreadable manifest", zap.String("path", metaPath), zap.Error(readErr))
			art = &types.Article{ID: id, Accession: id.Accession()}
		}
		return art, true, nil
	}

	fmt.Fprintf(w, "downloading: %s\n", id.Accession())
	res, err := h.Fetcher.Fetch(ctx, id, outDir)
	if err != nil {
		return nil, false, err
	}
	fetchedAt := h.clock().UTC()

	ex, err := unpack.Extract(res.Path, outDir, id.Accession())
	if err != nil {
		return nil, false, fmt.Errorf("extracting %s: %w", id.Accession(), err)
	}
	for _, s := range ex.Skipped {
		h.logger().Debug("skipped archive entry", zap.String("accession", id.Accession()), zap.String("entry", s))
	}

	art := &types.Article{
		ID:           id,
		Accession:    id.Accession(),
		SourceURL:    res.Location.URL,
		Resolver:     res.Location.Resolver,
		Archive:      filepath.Base(res.Path),
		ExtractedDir: ex.Dir,
		FetchedAt:    fetchedAt,
		RunID:        h.RunID,
	}

	if patterns := h.Config.Extract.Collect; len(patterns) > 0 {
		c, err := unpack.Collect(ex.Dir, outDir, patterns)
		if err != nil {
			return nil, false, fmt.Errorf("collecting %s: %w", id.Accession(), err)
		}
		for _, name := range c.Moved {
			fmt.Fprintf(w, "  collected: %s\n", name)
		}
		for _, name := range c.Existing {
			fmt.Fprintf(w, "  exists: %s\n", name)
		}
		if len(c.Moved)+len(c.Existing) == 0 {
			fmt.Fprintf(w, "  no matching files in %s\n", art.Archive)
		}
		art.ExtractedDir = ""
		art.Files = c.Moved
	} else {
		fmt.Fprintf(w, "  extracted: %s (%d files)\n", ex.Dir, len(ex.Files))
	}

	if err := WriteManifest(art, metaPath); err != nil {
		return nil, false, fmt.Errorf("writing manifest for %s: %w", id.Accession(), err)
	}
	return art, false, nil
}

func (h *Harvester) outDir() string {
	if h.Config.OutDir == "" {
		return "."
	}
	return h.Config.OutDir
}

func (h *Harvester) clock() time.Time {
	if h.now == nil {
		return time.Now()
	}
	return h.now()
}

func (h *Harvester) logger() *zap.Logger {
	return logger.OrNop(h.Log)
}

// ManifestPath returns the manifest location for id under outDir.
func ManifestPath(outDir string, id types.PMCID) string {
	return filepath.Join(outDir, metadataDir, id.Accession()+".yaml")
}

// WriteManifest writes an Article record to a YAML file.
func WriteManifest(art *types.Article, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	data, err := yaml.Marshal(art)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadManifest reads an Article record from a YAML file.
func ReadManifest(path string) (*types.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var art types.Article
	if err := yaml.Unmarshal(data, &art); err != nil {
		return nil, err
	}
	return &art, nil
}
