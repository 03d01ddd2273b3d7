// Package recommend scores catalog records against a natural-language query
// and explains every match it returns.
package recommend

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/DaltonGOO/dyn-advisor/internal/catalog"
	"github.com/DaltonGOO/dyn-advisor/internal/parser"
)

// Weights is the scoring policy. Every weight and threshold is explicit so
// calibration tests can vary them independently; nothing is read from process
// state.
type Weights struct {
	// Name is added once when any query token is a substring of the name.
	Name float64
	// Category is added once when any query token matches the category.
	Category float64
	// NodeType is added per matching node occurrence, up to NodeTypeCap.
	NodeType float64
	// NodeTypeCap bounds the total node-type contribution per record.
	NodeTypeCap float64
	// Doc is added once when a token appears in the description or doc excerpt.
	Doc float64
	// Simplicity is added when the record has fewer than SimplicityThreshold nodes.
	Simplicity          float64
	SimplicityThreshold int
}

// DefaultWeights returns the default scoring policy.
func DefaultWeights() *Weights {
	return &Weights{
		Name:                10.0,
		Category:            7.0,
		NodeType:            3.0,
		NodeTypeCap:         15.0,
		Doc:                 5.0,
		Simplicity:          2.0,
		SimplicityThreshold: 6,
	}
}

// Options controls result shaping. MaxResults is a hard count: 0 means no
// results, never "unlimited". Explain is presentation-only and does not change
// what is computed.
type Options struct {
	MaxResults int
	Explain    bool
}

// DefaultOptions returns the default recommendation options.
func DefaultOptions() *Options {
	return &Options{MaxResults: 5}
}

// OptionsError reports structurally invalid recommendation options.
type OptionsError struct {
	Field  string
	Reason string
}

func (e *OptionsError) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Field, e.Reason)
}

// Recommendation is one scored candidate with its ordered match reasons.
type Recommendation struct {
	Record  *parser.GraphRecord `json:"record"`
	Score   float64             `json:"score"`
	Reasons []string            `json:"reasons"`
}

// Summary is the flat output tuple rendered by the CLI and HTTP layers.
type Summary struct {
	Name       string   `json:"name"`
	Score      float64  `json:"score"`
	Reasons    []string `json:"reasons"`
	SourcePath string   `json:"source_path"`
	Category   string   `json:"category"`
	NodeCount  int      `json:"node_count"`
}

// Summary flattens the recommendation into its output tuple.
func (r *Recommendation) Summary() Summary {
	return Summary{
		Name:       r.Record.Name,
		Score:      r.Score,
		Reasons:    r.Reasons,
		SourcePath: r.Record.SourcePath,
		Category:   r.Record.Category,
		NodeCount:  r.Record.NodeCount,
	}
}

// Engine scores records with a fixed weight policy.
type Engine struct {
	weights *Weights
}

// NewEngine builds an engine. A nil weights value selects DefaultWeights.
func NewEngine(w *Weights) *Engine {
	if w == nil {
		w = DefaultWeights()
	}
	return &Engine{weights: w}
}

// Recommend evaluates every catalog record against the query and returns the
// scored matches, highest first, ties broken by ascending name. A blank query
// is a valid call that yields no results; only invalid options are an error.
func (e *Engine) Recommend(cat *catalog.Catalog, query string, opts *Options) ([]Recommendation, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.MaxResults < 0 {
		return nil, &OptionsError{Field: "MaxResults", Reason: "must not be negative"}
	}

	tokens := Tokenize(query)
	if len(tokens) == 0 || opts.MaxResults == 0 {
		return nil, nil
	}

	var results []Recommendation
	for _, rec := range cat.All() {
		score, reasons := e.score(rec, tokens)
		if score <= 0 {
			continue
		}
		results = append(results, Recommendation{Record: rec, Score: score, Reasons: reasons})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return strings.ToLower(results[i].Record.Name) < strings.ToLower(results[j].Record.Name)
	})

	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return results, nil
}

// score applies the scoring rules in their fixed evaluation order and collects
// one reason per firing rule.
func (e *Engine) score(rec *parser.GraphRecord, tokens []string) (float64, []string) {
	var score float64
	var reasons []string

	// Rule 1: name match.
	name := strings.ToLower(rec.Name)
	if anyTokenIn(name, tokens) {
		score += e.weights.Name
		reasons = append(reasons, fmt.Sprintf("name %q matches the query", rec.Name))
	}

	// Rule 2: category match.
	category := strings.ToLower(rec.Category)
	if anyTokenIn(category, tokens) {
		score += e.weights.Category
		reasons = append(reasons, fmt.Sprintf("category %q matches the query", rec.Category))
	}

	// Rule 3: node-type matches, capped per record.
	matchedNodes, matchedTypes := e.matchNodeTypes(rec, tokens)
	if matchedNodes > 0 {
		contribution := e.weights.NodeType * float64(matchedNodes)
		if contribution > e.weights.NodeTypeCap {
			contribution = e.weights.NodeTypeCap
		}
		score += contribution
		reasons = append(reasons, fmt.Sprintf("%d node(s) of matching type(s): %s",
			matchedNodes, strings.Join(matchedTypes, ", ")))
	}

	// Rule 4: description / documentation match.
	switch {
	case anyTokenIn(strings.ToLower(rec.Description), tokens):
		score += e.weights.Doc
		reasons = append(reasons, "description mentions the query")
	case anyTokenIn(strings.ToLower(rec.DocExcerpt), tokens):
		score += e.weights.Doc
		reasons = append(reasons, "documentation mentions the query")
	}

	// Rule 5: simplicity bonus.
	if rec.NodeCount < e.weights.SimplicityThreshold {
		score += e.weights.Simplicity
		reasons = append(reasons, fmt.Sprintf("simple graph with %d node(s)", rec.NodeCount))
	}

	return score, reasons
}

// matchNodeTypes tallies node occurrences whose type name contains a query
// token. Types are visited in sorted order so reason strings are stable.
func (e *Engine) matchNodeTypes(rec *parser.GraphRecord, tokens []string) (int, []string) {
	typeNames := make([]string, 0, len(rec.NodeTypes))
	for typ := range rec.NodeTypes {
		typeNames = append(typeNames, typ)
	}
	sort.Strings(typeNames)

	var matched int
	var matchedTypes []string
	for _, typ := range typeNames {
		if anyTokenIn(strings.ToLower(typ), tokens) {
			matched += rec.NodeTypes[typ]
			matchedTypes = append(matchedTypes, typ)
		}
	}
	return matched, matchedTypes
}

// Tokenize lowercases the query and splits it on non-alphanumeric boundaries
// into unique tokens, preserving first-seen order.
func Tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	var tokens []string
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func anyTokenIn(text string, tokens []string) bool {
	if text == "" {
		return false
	}
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
