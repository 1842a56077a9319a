// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package unpack

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultCollectPattern selects the article PDFs in an OA package.
const DefaultCollectPattern = "**/*.pdf"

// Collected describes the outcome of Collect.
type Collected struct {
	// Moved lists files moved into the destination, by base name.
	Moved []string

	// Existing lists matched files left behind because a file with the same
	// name already existed in the destination.
	Existing []string
}

// ValidatePatterns reports the first invalid doublestar pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid collect pattern %q", p)
		}
	}
	return nil
}

// Collect moves files under srcDir matching any of patterns into destDir,
// flattened to their base names, then removes srcDir. A file whose name is
// already taken in destDir is never overwritten. destDir must lie outside
// srcDir.
func Collect(srcDir, destDir string, patterns []string) (Collected, error) {
	if err := ValidatePatterns(patterns); err != nil {
		return Collected{}, err
	}
	if rel, err := filepath.Rel(srcDir, destDir); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Collected{}, fmt.Errorf("collect destination %s is inside source %s", destDir, srcDir)
	}

	fsys := os.DirFS(srcDir)
	seen := make(map[string]struct{})
	var matches []string
	for _, p := range patterns {
		m, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return Collected{}, fmt.Errorf("matching %q: %w", p, err)
		}
		for _, rel := range m {
			if _, ok := seen[rel]; ok {
				continue
			}
			seen[rel] = struct{}{}
			matches = append(matches, rel)
		}
	}
	sort.Strings(matches)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Collected{}, fmt.Errorf("creating directory %s: %w", destDir, err)
	}

	var c Collected
	for _, rel := range matches {
		name := path.Base(rel)
		target := filepath.Join(destDir, name)
		if _, err := os.Lstat(target); err == nil {
			c.Existing = append(c.Existing, name)
			continue
		}
		if err := os.Rename(filepath.Join(srcDir, filepath.FromSlash(rel)), target); err != nil {
			return c, fmt.Errorf("moving %s: %w", rel, err)
		}
		c.Moved = append(c.Moved, name)
	}

	if err := os.RemoveAll(srcDir); err != nil {
		return c, fmt.Errorf("removing %s: %w", srcDir, err)
	}
	return c, nil
}
