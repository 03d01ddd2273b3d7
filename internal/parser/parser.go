// Package parser extracts structured metadata from Dynamo graph files and
// associates them with excerpts from a documentation corpus.
package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// ParseError reports a graph file that could not be turned into a record.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts the content of one graph file into a GraphRecord. It is a
// pure function of content and corpus: identical inputs yield field-identical
// records. Malformed node entries are skipped and reported as warnings;
// a missing name or unreadable top-level structure is a *ParseError.
func Parse(path string, content []byte, corpus *Corpus) (*GraphRecord, []string, error) {
	var file dynFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, nil, &ParseError{Path: path, Reason: "invalid graph file", Err: err}
	}

	name := strings.TrimSpace(file.Name)
	if name == "" {
		return nil, nil, &ParseError{Path: path, Reason: "missing required field Name"}
	}

	rec := &GraphRecord{
		Name:           name,
		Description:    file.Description,
		Category:       file.Category,
		NodeTypes:      make(map[string]int),
		ConnectorCount: len(file.Connectors),
		Metadata: Metadata{
			Author:  file.Author,
			UUID:    file.UUID,
			Version: file.Version,
		},
		SourcePath: path,
	}
	if rec.Category == "" {
		rec.Category = DefaultCategory
	}

	var warnings []string
	for i, raw := range file.Nodes {
		var node dynNode
		if err := json.Unmarshal(raw, &node); err != nil {
			warnings = append(warnings, fmt.Sprintf("node %d: not an object, skipped", i))
			continue
		}
		typ := node.typeName()
		if typ == "" {
			warnings = append(warnings, fmt.Sprintf("node %d: no type information, skipped", i))
			continue
		}
		rec.NodeTypes[typ]++
		rec.NodeCount++
	}

	if rec.Metadata.UUID != "" {
		if _, err := uuid.Parse(rec.Metadata.UUID); err != nil {
			warnings = append(warnings, fmt.Sprintf("metadata Uuid %q is not a valid UUID", rec.Metadata.UUID))
		}
	}

	if corpus != nil {
		rec.DocExcerpt = corpus.ExcerptFor(name)
	}

	return rec, warnings, nil
}

// ParseFile reads and parses a graph file from disk.
func ParseFile(path string, corpus *Corpus) (*GraphRecord, []string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &ParseError{Path: path, Reason: "reading file", Err: err}
	}
	return Parse(path, content, corpus)
}
