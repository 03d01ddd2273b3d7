package parser

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Corpus holds the headed sections of a documentation directory. Sections are
// kept in deterministic order: files in lexical walk order, headings in file
// order. A YAML frontmatter title counts as a heading for the text that
// follows it.
type Corpus struct {
	sections []docSection
}

type docSection struct {
	heading string
	body    string
	source  string
}

type frontmatter struct {
	Title string `yaml:"title"`
}

var (
	frontmatterDelim = []byte("---")
	frontmatterClose = []byte("\n---")
)

// LoadCorpus reads every .md and .txt file under dir. A missing or empty
// directory yields an empty corpus, not an error: documentation is optional.
func LoadCorpus(dir string) (*Corpus, error) {
	corpus := &Corpus{}
	if dir == "" {
		return corpus, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return corpus, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt":
		default:
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		corpus.sections = append(corpus.sections, splitSections(path, content)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return corpus, nil
}

// ExcerptFor returns the text block following the first heading that contains
// name as a case-insensitive substring, or "" when no heading matches.
func (c *Corpus) ExcerptFor(name string) string {
	if name == "" {
		return ""
	}
	needle := strings.ToLower(name)
	for _, s := range c.sections {
		if strings.Contains(strings.ToLower(s.heading), needle) {
			return s.body
		}
	}
	return ""
}

// Sections reports how many headed sections the corpus holds.
func (c *Corpus) Sections() int { return len(c.sections) }

// splitSections breaks one documentation file into headed sections.
// Recognized headings are markdown '#' lines and a frontmatter title.
func splitSections(path string, content []byte) []docSection {
	var sections []docSection

	if title, rest, ok := parseFrontmatter(content); ok {
		content = rest
		if title != "" {
			sections = append(sections, docSection{
				heading: title,
				body:    leadingBlock(rest),
				source:  path,
			})
		}
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		if heading == "" {
			continue
		}
		sections = append(sections, docSection{
			heading: heading,
			body:    blockAfter(lines, i+1),
			source:  path,
		})
	}
	return sections
}

// parseFrontmatter extracts a YAML frontmatter title when the file starts
// with a --- delimited block. The closing delimiter must start its own line,
// so a --- inside a frontmatter value does not end the block. Invalid YAML is
// treated as ordinary text.
func parseFrontmatter(content []byte) (title string, rest []byte, ok bool) {
	if !bytes.HasPrefix(content, frontmatterDelim) {
		return "", content, false
	}
	after := content[len(frontmatterDelim):]
	end := bytes.Index(after, frontmatterClose)
	if end < 0 {
		return "", content, false
	}
	block := after[:end]
	rest = after[end+len(frontmatterClose):]
	if len(rest) > 0 && rest[0] != '\n' && rest[0] != '\r' {
		return "", content, false
	}

	var fm frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return "", content, false
	}
	return strings.TrimSpace(fm.Title), rest, true
}

// blockAfter collects lines from start until the next heading.
func blockAfter(lines []string, start int) string {
	var out []string
	for _, line := range lines[start:] {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			break
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func leadingBlock(content []byte) string {
	return blockAfter(strings.Split(string(content), "\n"), 0)
}
