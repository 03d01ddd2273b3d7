package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeGraph(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func graphJSON(name, category string, nodes int) string {
	nodeList := ""
	for i := 0; i < nodes; i++ {
		if i > 0 {
			nodeList += ","
		}
		nodeList += fmt.Sprintf(`{"ConcreteType": "Node%d"}`, i)
	}
	return fmt.Sprintf(`{"Name": %q, "Category": %q, "Nodes": [%s]}`, name, category, nodeList)
}

func TestBuild_IndexesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "top.dyn", graphJSON("TopGraph", "Geometry", 2))
	writeGraph(t, dir, filepath.Join("nested", "deep.dyn"), graphJSON("DeepGraph", "Analysis", 3))
	writeGraph(t, dir, "upper.DYN", graphJSON("UpperGraph", "Geometry", 1))
	writeGraph(t, dir, "readme.txt", "not a graph")

	cat, skipped, err := Build(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 0 {
		t.Errorf("expected nothing skipped, got %v", skipped)
	}
	if cat.Len() != 3 {
		t.Fatalf("expected 3 graphs, got %d: %v", cat.Len(), cat.Names())
	}
	if _, ok := cat.ByName("DeepGraph"); !ok {
		t.Error("expected nested graph to be indexed")
	}
	if _, ok := cat.ByName("uppergraph"); !ok {
		t.Error("lookup should be case-insensitive")
	}
}

func TestBuild_SkipsUnparseableFiles(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "good.dyn", graphJSON("Good", "Geometry", 1))
	badPath := writeGraph(t, dir, "bad.dyn", "{broken")
	writeGraph(t, dir, "anon.dyn", `{"Nodes": []}`)

	cat, skipped, err := Build(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if cat.Len() != 1 {
		t.Errorf("expected only the good graph, got %v", cat.Names())
	}
	if len(skipped) != 2 {
		t.Fatalf("expected 2 skipped files, got %v", skipped)
	}
	foundBad := false
	for _, s := range skipped {
		if s.Path == badPath {
			foundBad = true
			if s.Reason == "" {
				t.Error("skip entry should carry a reason")
			}
		}
	}
	if !foundBad {
		t.Errorf("expected %s in the skip list, got %v", badPath, skipped)
	}
}

func TestBuild_DuplicateNamesFirstWins(t *testing.T) {
	dir := t.TempDir()
	first := writeGraph(t, dir, "a_first.dyn", graphJSON("Shared", "Geometry", 1))
	writeGraph(t, dir, "b_second.dyn", graphJSON("shared", "Analysis", 5))

	cat, skipped, err := Build(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if cat.Len() != 1 {
		t.Fatalf("expected a single record, got %v", cat.Names())
	}
	rec, ok := cat.ByName("Shared")
	if !ok {
		t.Fatal("expected the shared record to be present")
	}
	if rec.SourcePath != first {
		t.Errorf("expected first-seen record to win, kept %s", rec.SourcePath)
	}
	if len(skipped) != 1 || skipped[0].Reason != "duplicate name" {
		t.Errorf("expected one duplicate-name skip, got %v", skipped)
	}
}

func TestBuild_EmptyDirIsValid(t *testing.T) {
	cat, skipped, err := Build(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cat.Len() != 0 || len(skipped) != 0 {
		t.Errorf("expected an empty catalog, got %d records, %d skipped", cat.Len(), len(skipped))
	}
}

func TestBuild_MissingRootFails(t *testing.T) {
	_, _, err := Build(filepath.Join(t.TempDir(), "nowhere"), "")
	if err == nil {
		t.Fatal("expected an error for a missing repository root")
	}
}

func TestBuild_RebuildIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "one.dyn", graphJSON("One", "Geometry", 2))
	writeGraph(t, dir, "two.dyn", graphJSON("Two", "Analysis", 4))

	a, _, err := Build(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := Build(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	aNames, bNames := a.Names(), b.Names()
	if len(aNames) != len(bNames) {
		t.Fatalf("rebuild changed the record count: %v vs %v", aNames, bNames)
	}
	for i := range aNames {
		if aNames[i] != bNames[i] {
			t.Errorf("rebuild changed record order at %d: %q vs %q", i, aNames[i], bNames[i])
		}
	}
}

func TestBuild_AttachesDocExcerpts(t *testing.T) {
	graphs := t.TempDir()
	docs := t.TempDir()
	writeGraph(t, graphs, "room.dyn", graphJSON("RoomAreaCalc", "Analysis", 2))
	if err := os.WriteFile(filepath.Join(docs, "guide.md"), []byte("# RoomAreaCalc\nArea workflow notes.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, _, err := Build(graphs, docs)
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := cat.ByName("RoomAreaCalc")
	if !ok {
		t.Fatal("expected the graph to be indexed")
	}
	if rec.DocExcerpt != "Area workflow notes." {
		t.Errorf("expected doc excerpt to be attached, got %q", rec.DocExcerpt)
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "one.dyn", graphJSON("One", "Geometry", 1))
	cat, _, err := Build(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	records := cat.All()
	records[0] = nil
	if fresh := cat.All(); fresh[0] == nil {
		t.Error("mutating the returned slice must not affect the catalog")
	}
}
