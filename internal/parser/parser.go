// Package parser extracts frontmatter, title, and tags from Markdown notes
// dropped into the inbox.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Frontmatter holds the recognised YAML header fields.
type Frontmatter struct {
	Title    string  `yaml:"title"`
	Tags     tagList `yaml:"tags"`
	Favorite bool    `yaml:"favorite"`
}

// tagList accepts either a YAML sequence or a comma separated string.
type tagList []string

func (t *tagList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := n.Decode(&items); err != nil {
			return err
		}
		*t = items
	case yaml.ScalarNode:
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}
		*t = strings.Split(s, ",")
	}
	return nil
}

// Result holds the output of parsing a Markdown file.
type Result struct {
	Title    string
	Body     string
	Tags     []string
	Favorite bool
	// HasFrontmatter reports whether a valid YAML header was found.
	HasFrontmatter bool
}

// Parse extracts frontmatter, body, title and tags from raw Markdown bytes.
// Invalid frontmatter is treated as part of the body.
func Parse(data []byte) *Result {
	fm, body, ok := splitFrontmatter(data)
	return &Result{
		Title:          deriveTitle(fm, body),
		Body:           body,
		Tags:           extractTags(body, fm),
		Favorite:       fm.Favorite,
		HasFrontmatter: ok,
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (Frontmatter, string, bool) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return Frontmatter{}, string(data), false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return Frontmatter{}, string(data), false
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm Frontmatter
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return Frontmatter{}, string(data), false
	}
	return fm, body, true
}

// extractTags collects frontmatter tags followed by inline #tags, deduplicated.
func extractTags(body string, fm Frontmatter) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, s := range fm.Tags {
		add(s)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter title if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm Frontmatter, body string) string {
	if t := strings.TrimSpace(fm.Title); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
