// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package unpack extracts downloaded OA packages (.tar.gz) and optionally
// collects selected files out of the extracted tree.
package unpack

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrUnsafePath is returned for archive entries that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extracted describes the result of unpacking one archive.
type Extracted struct {
	// Dir is the directory holding the archive contents, always
	// <dest>/<name> (e.g. <dest>/PMC13900).
	Dir string

	// Files lists regular files written, as named in the archive.
	Files []string

	// Skipped lists entries that were neither directories nor regular files.
	Skipped []string
}

// Extract unpacks the gzip-compressed tar archive at archivePath into
// destDir/name and removes the archive file afterwards, whether or not
// extraction succeeded. An archive whose entries all sit under a single
// top-level directory called name is unpacked in place; any other layout is
// nested under destDir/name. Entries with absolute paths or ".." components
// are rejected with ErrUnsafePath before anything is written. Symlinks and
// other special entries are skipped.
func Extract(archivePath, destDir, name string) (ex Extracted, err error) {
	defer func() {
		if rmErr := os.Remove(archivePath); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = fmt.Errorf("removing archive: %w", rmErr)
		}
	}()

	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return Extracted{}, fmt.Errorf("extract directory %q: %w", name, ErrUnsafePath)
	}

	top, err := scanArchive(archivePath)
	if err != nil {
		return Extracted{}, err
	}

	ex.Dir = filepath.Join(destDir, name)
	root := ex.Dir
	if top == name {
		root = destDir
	}
	if err := os.MkdirAll(ex.Dir, 0o755); err != nil {
		return Extracted{}, fmt.Errorf("creating directory %s: %w", ex.Dir, err)
	}

	err = walkArchive(archivePath, func(rel string, hdr *tar.Header, r io.Reader) error {
		target := filepath.Join(root, filepath.FromSlash(rel))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", rel, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, r, os.FileMode(hdr.Mode).Perm()|0o600); err != nil {
				return fmt.Errorf("extracting %s: %w", rel, err)
			}
			ex.Files = append(ex.Files, rel)
		default:
			ex.Skipped = append(ex.Skipped, rel)
		}
		return nil
	})
	return ex, err
}

// scanArchive validates every entry path and returns the single top-level
// directory shared by all directory and regular-file entries, or "" when
// there is none.
func scanArchive(archivePath string) (string, error) {
	tops := make(map[string]struct{})
	flat := false
	err := walkArchive(archivePath, func(rel string, hdr *tar.Header, _ io.Reader) error {
		first, rest, nested := strings.Cut(rel, "/")
		switch {
		case hdr.Typeflag == tar.TypeDir:
			tops[first] = struct{}{}
		case hdr.Typeflag == tar.TypeReg && nested && rest != "":
			tops[first] = struct{}{}
		case hdr.Typeflag == tar.TypeReg:
			flat = true
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if flat || len(tops) != 1 {
		return "", nil
	}
	for top := range tops {
		return top, nil
	}
	return "", nil
}

// walkArchive calls fn for every entry of the archive with its cleaned
// relative path. The root entry ("./") is not passed to fn.
func walkArchive(archivePath string, fn func(rel string, hdr *tar.Header, r io.Reader) error) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading gzip header: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) && hdr != nil {
			return fmt.Errorf("%q: %w", hdr.Name, ErrUnsafePath)
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		rel, err := entryPath(hdr.Name)
		if err != nil {
			return err
		}
		if rel == "" {
			continue
		}
		if err := fn(rel, hdr, tr); err != nil {
			return err
		}
	}
}

// entryPath cleans a tar entry name and rejects names that escape the
// destination. It returns "" for the root entry ("./").
func entryPath(name string) (string, error) {
	if name == "" || path.IsAbs(name) || filepath.IsAbs(name) || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	clean := path.Clean(name)
	if clean == "." {
		return "", nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	return clean, nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}
