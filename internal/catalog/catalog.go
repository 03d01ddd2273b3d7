// Package catalog builds the queryable index of all parseable graph files
// under a repository directory.
package catalog

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/DaltonGOO/dyn-advisor/internal/parser"
)

// GraphExtension is the file extension the catalog scans for.
const GraphExtension = ".dyn"

// SkippedFile records one file excluded from the catalog and why.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Catalog is the immutable aggregate of one index operation. Records are held
// in scan order; lookup by name is case-insensitive. A rebuild produces a new
// Catalog rather than mutating an existing one.
type Catalog struct {
	records []*parser.GraphRecord
	byName  map[string]*parser.GraphRecord
}

// Build scans graphDir recursively, parses every graph file, and aggregates
// the valid records. Parse failures and duplicate names are reported in the
// skip list and never abort the build. An empty catalog is a valid outcome;
// callers decide whether zero indexed graphs is actionable.
func Build(graphDir, docsDir string) (*Catalog, []SkippedFile, error) {
	corpus, err := parser.LoadCorpus(docsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading documentation corpus: %w", err)
	}

	cat := &Catalog{byName: make(map[string]*parser.GraphRecord)}
	var skipped []SkippedFile

	err = filepath.WalkDir(graphDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), GraphExtension) {
			return nil
		}

		rec, warnings, perr := parser.ParseFile(path, corpus)
		for _, w := range warnings {
			slog.Warn("parse warning", "file", path, "warning", w)
		}
		if perr != nil {
			slog.Warn("skipping graph file", "file", path, "error", perr)
			skipped = append(skipped, SkippedFile{Path: path, Reason: skipReason(perr)})
			return nil
		}

		key := strings.ToLower(rec.Name)
		if first, ok := cat.byName[key]; ok {
			slog.Warn("duplicate graph name", "file", path, "name", rec.Name, "kept", first.SourcePath)
			skipped = append(skipped, SkippedFile{Path: path, Reason: "duplicate name"})
			return nil
		}

		cat.records = append(cat.records, rec)
		cat.byName[key] = rec
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scanning graph repository %s: %w", graphDir, err)
	}

	slog.Info("catalog built", "graphs", len(cat.records), "skipped", len(skipped), "doc_sections", corpus.Sections())
	return cat, skipped, nil
}

// FromRecords builds a catalog from already-parsed records, applying the same
// first-seen-wins rule as Build. It exists for callers that hold records
// without a backing directory.
func FromRecords(records []*parser.GraphRecord) *Catalog {
	cat := &Catalog{byName: make(map[string]*parser.GraphRecord, len(records))}
	for _, rec := range records {
		key := strings.ToLower(rec.Name)
		if _, ok := cat.byName[key]; ok {
			continue
		}
		cat.records = append(cat.records, rec)
		cat.byName[key] = rec
	}
	return cat
}

// All returns the records in scan order. The returned slice is a copy; the
// records themselves are shared and must be treated as read-only.
func (c *Catalog) All() []*parser.GraphRecord {
	out := make([]*parser.GraphRecord, len(c.records))
	copy(out, c.records)
	return out
}

// ByName looks up a record by its case-insensitive name.
func (c *Catalog) ByName(name string) (*parser.GraphRecord, bool) {
	rec, ok := c.byName[strings.ToLower(name)]
	return rec, ok
}

// Names returns all record names in scan order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.records))
	for i, rec := range c.records {
		names[i] = rec.Name
	}
	return names
}

// Len reports the number of indexed graphs.
func (c *Catalog) Len() int { return len(c.records) }

// skipReason condenses a parse failure into a single skip-list line.
func skipReason(err error) string {
	if perr, ok := err.(*parser.ParseError); ok {
		if perr.Err != nil {
			return fmt.Sprintf("%s: %v", perr.Reason, perr.Err)
		}
		return perr.Reason
	}
	return err.Error()
}
