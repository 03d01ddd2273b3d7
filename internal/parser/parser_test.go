package parser

import (
	"errors"
	"strings"
	"testing"
)

const minimalGraph = `{
	"Uuid": "3c9d0464-8643-5ffe-96e5-ab1769818209",
	"Name": "RoomAreaCalc",
	"Description": "Computes room areas from levels",
	"Category": "Analysis",
	"Author": "jdoe",
	"Version": "2.18.1.5096",
	"Nodes": [
		{"ConcreteType": "Dynamo.Graph.Nodes.CodeBlockNodeModel, DynamoCore", "Id": "a1"},
		{"ConcreteType": "Dynamo.Graph.Nodes.CodeBlockNodeModel, DynamoCore", "Id": "a2"},
		{"NodeType": "FunctionNode", "Id": "a3"}
	],
	"Connectors": [
		{"Start": "a1", "End": "a3"},
		{"Start": "a2", "End": "a3"}
	]
}`

func TestParse_MinimalGraph(t *testing.T) {
	rec, warnings, err := Parse("graphs/room.dyn", []byte(minimalGraph), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if rec.Name != "RoomAreaCalc" {
		t.Errorf("expected name RoomAreaCalc, got %q", rec.Name)
	}
	if rec.Category != "Analysis" {
		t.Errorf("expected category Analysis, got %q", rec.Category)
	}
	if rec.NodeCount != 3 {
		t.Errorf("expected 3 nodes, got %d", rec.NodeCount)
	}
	if rec.ConnectorCount != 2 {
		t.Errorf("expected 2 connectors, got %d", rec.ConnectorCount)
	}
	if rec.NodeTypes["Dynamo.Graph.Nodes.CodeBlockNodeModel, DynamoCore"] != 2 {
		t.Errorf("expected 2 code block nodes, got %v", rec.NodeTypes)
	}
	if rec.NodeTypes["FunctionNode"] != 1 {
		t.Errorf("expected 1 function node, got %v", rec.NodeTypes)
	}
	if rec.Metadata.Author != "jdoe" {
		t.Errorf("expected author jdoe, got %q", rec.Metadata.Author)
	}
	if rec.SourcePath != "graphs/room.dyn" {
		t.Errorf("expected source path to be recorded, got %q", rec.SourcePath)
	}
}

func TestParse_Deterministic(t *testing.T) {
	a, _, err := Parse("g.dyn", []byte(minimalGraph), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := Parse("g.dyn", []byte(minimalGraph), nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != b.Name || a.NodeCount != b.NodeCount || a.ConnectorCount != b.ConnectorCount {
		t.Errorf("repeated parses disagree: %+v vs %+v", a, b)
	}
	if len(a.NodeTypes) != len(b.NodeTypes) {
		t.Errorf("node type tallies disagree: %v vs %v", a.NodeTypes, b.NodeTypes)
	}
}

func TestParse_MissingName(t *testing.T) {
	_, _, err := Parse("anon.dyn", []byte(`{"Nodes": [], "Connectors": []}`), nil)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if !strings.Contains(perr.Reason, "Name") {
		t.Errorf("expected reason to mention Name, got %q", perr.Reason)
	}
}

func TestParse_BlankNameIsMissing(t *testing.T) {
	_, _, err := Parse("blank.dyn", []byte(`{"Name": "   "}`), nil)
	if err == nil {
		t.Fatal("expected error for whitespace-only name")
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	_, _, err := Parse("bad.dyn", []byte("{not json"), nil)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Path != "bad.dyn" {
		t.Errorf("expected error to carry the path, got %q", perr.Path)
	}
	if perr.Unwrap() == nil {
		t.Error("expected wrapped json error")
	}
}

func TestParse_DefaultCategory(t *testing.T) {
	rec, _, err := Parse("g.dyn", []byte(`{"Name": "NoCat"}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Category != DefaultCategory {
		t.Errorf("expected category %q, got %q", DefaultCategory, rec.Category)
	}
}

func TestParse_MalformedNodesWarnButKeepGraph(t *testing.T) {
	content := `{
		"Name": "Partial",
		"Nodes": [
			{"ConcreteType": "GoodNode"},
			"just a string",
			{"Id": "no-type-info"},
			{"ConcreteType": "GoodNode"}
		]
	}`
	rec, warnings, err := Parse("partial.dyn", []byte(content), nil)
	if err != nil {
		t.Fatalf("malformed nodes should not fail the parse: %v", err)
	}
	if rec.NodeCount != 2 {
		t.Errorf("expected 2 usable nodes, got %d", rec.NodeCount)
	}
	if len(warnings) != 2 {
		t.Errorf("expected 2 warnings, got %v", warnings)
	}
}

func TestParse_NodeTypeFallback(t *testing.T) {
	content := `{
		"Name": "Fallback",
		"Nodes": [
			{"ConcreteType": "Concrete", "NodeType": "Generic", "Name": "Label"},
			{"NodeType": "Generic", "Name": "Label"},
			{"Name": "Label"}
		]
	}`
	rec, warnings, err := Parse("fb.dyn", []byte(content), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	for _, typ := range []string{"Concrete", "Generic", "Label"} {
		if rec.NodeTypes[typ] != 1 {
			t.Errorf("expected one %q node, got %v", typ, rec.NodeTypes)
		}
	}
}

func TestParse_InvalidUUIDWarns(t *testing.T) {
	rec, warnings, err := Parse("u.dyn", []byte(`{"Name": "BadUUID", "Uuid": "not-a-uuid"}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Metadata.UUID != "not-a-uuid" {
		t.Errorf("uuid should be kept verbatim, got %q", rec.Metadata.UUID)
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "UUID") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a uuid warning, got %v", warnings)
	}
}

func TestParse_DocExcerptAttached(t *testing.T) {
	corpus := &Corpus{sections: []docSection{
		{heading: "RoomAreaCalc usage", body: "Run after levels are placed.", source: "docs/rooms.md"},
	}}
	rec, _, err := Parse("room.dyn", []byte(minimalGraph), corpus)
	if err != nil {
		t.Fatal(err)
	}
	if rec.DocExcerpt != "Run after levels are placed." {
		t.Errorf("expected doc excerpt to be attached, got %q", rec.DocExcerpt)
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, _, err := ParseFile("/nonexistent/path.dyn", nil)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}
