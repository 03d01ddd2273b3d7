package parser

// GraphRecord is the parsed representation of a single Dynamo graph file.
// Records are built once by Parse and treated as read-only from then on;
// the catalog and recommender never mutate them.
type GraphRecord struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	NodeTypes      map[string]int `json:"node_types,omitempty"`
	NodeCount      int            `json:"node_count"`
	ConnectorCount int            `json:"connector_count"`
	Metadata       Metadata       `json:"metadata"`
	SourcePath     string         `json:"source_path"`
	DocExcerpt     string         `json:"doc_excerpt,omitempty"`
}

// Metadata carries the optional free-form fields of a graph file. None of
// these participate in recommendation scoring.
type Metadata struct {
	Author  string `json:"author,omitempty"`
	UUID    string `json:"uuid,omitempty"`
	Version string `json:"version,omitempty"`
}

// DefaultCategory is assigned when a graph file declares no category.
const DefaultCategory = "Uncategorized"
