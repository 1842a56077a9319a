// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package oaindex keeps a local SQLite copy of the PMC Open Access file list
// (oa_file_list.csv) so archive paths can be looked up by accession ID
// without loading the whole list into memory.
package oaindex

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// ErrNotFound is returned by Lookup when the accession is not in the list.
var ErrNotFound = errors.New("accession not in OA file list")

// CSV column headers in the OA file list.
const (
	colFile        = "File"
	colCitation    = "Article Citation"
	colAccession   = "Accession ID"
	colLastUpdated = "Last Updated (YYYY-MM-DD HH:MM:SS)"
	colPMID        = "PMID"
	colLicense     = "License"
)

// Entry is one row of the OA file list.
type Entry struct {
	// File is the archive path relative to the file server root
	// (e.g. "oa_package/08/e0/PMC13900.tar.gz").
	File        string
	Citation    string
	Accession   string
	LastUpdated string
	PMID        string
	License     string
}

// Index manages the OA file list SQLite database.
type Index struct {
	db *sql.DB
}

// Open opens or creates the index database at path and ensures the schema
// exists.
func Open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return idx, nil
}

// Close releases the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) createSchema() error {
	_, err := x.db.Exec(`CREATE TABLE IF NOT EXISTS files (
		accession TEXT PRIMARY KEY,
		file TEXT NOT NULL,
		citation TEXT,
		last_updated TEXT,
		pmid TEXT,
		license TEXT
	)`)
	return err
}

// Import reads an OA file list CSV from r and upserts every row in a single
// transaction. Columns are located by header name; File and Accession ID are
// required. It returns the number of rows imported.
func (x *Index) Import(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("reading CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, req := range []string{colFile, colAccession} {
		if _, ok := cols[req]; !ok {
			return 0, fmt.Errorf("CSV missing required column %q", req)
		}
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (accession, file, citation, last_updated, pmid, license)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(accession) DO UPDATE SET
			file=excluded.file, citation=excluded.citation,
			last_updated=excluded.last_updated, pmid=excluded.pmid,
			license=excluded.license`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading CSV: %w", err)
		}

		e := Entry{
			File:        field(rec, cols, colFile),
			Citation:    field(rec, cols, colCitation),
			Accession:   field(rec, cols, colAccession),
			LastUpdated: field(rec, cols, colLastUpdated),
			PMID:        field(rec, cols, colPMID),
			License:     field(rec, cols, colLicense),
		}
		if e.File == "" || e.Accession == "" {
			return 0, fmt.Errorf("CSV line %d: empty %s or %s", line, colFile, colAccession)
		}

		if _, err := stmt.ExecContext(ctx,
			e.Accession, e.File, e.Citation, e.LastUpdated, e.PMID, e.License,
		); err != nil {
			return 0, fmt.Errorf("inserting %s: %w", e.Accession, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return n, nil
}

// ImportFile imports the OA file list CSV at path.
func (x *Index) ImportFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening file list: %w", err)
	}
	defer f.Close()
	return x.Import(ctx, f)
}

// Lookup returns the file list entry for id, or ErrNotFound.
func (x *Index) Lookup(ctx context.Context, id types.PMCID) (Entry, error) {
	var e Entry
	var citation, lastUpdated, pmid, license sql.NullString
	err := x.db.QueryRowContext(ctx,
		`SELECT accession, file, citation, last_updated, pmid, license
		 FROM files WHERE accession = ?`, id.Accession(),
	).Scan(&e.Accession, &e.File, &citation, &lastUpdated, &pmid, &license)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%s: %w", id.Accession(), ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("looking up %s: %w", id.Accession(), err)
	}
	e.Citation = citation.String
	e.LastUpdated = lastUpdated.String
	e.PMID = pmid.String
	e.License = license.String
	return e, nil
}

// Count returns the number of entries in the index.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT count(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
