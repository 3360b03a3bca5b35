package csource

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// commentPolicy decides which comments become documentation.
type commentPolicy struct {
	parseAll     bool
	retainSystem bool
}

// isDocComment reports whether text uses a documentation comment marker.
func isDocComment(text string) bool {
	switch {
	case strings.HasPrefix(text, "/**") && !strings.HasPrefix(text, "/**/"):
		return true
	case strings.HasPrefix(text, "/*!"):
		return true
	case strings.HasPrefix(text, "///") && !strings.HasPrefix(text, "////"):
		return true
	case strings.HasPrefix(text, "//!"):
		return true
	}
	return false
}

// documentation returns the comment attached to a declaration, given the
// comment nodes directly preceding it.
func (p commentPolicy) documentation(comments []*sitter.Node, decl *sitter.Node, source []byte, system bool) string {
	if len(comments) == 0 || (system && !p.retainSystem) {
		return ""
	}
	// The comment block must end on the line before the declaration.
	if int(comments[len(comments)-1].EndPosition().Row)+1 < int(decl.StartPosition().Row) {
		return ""
	}

	var lines []string
	for _, cn := range comments {
		text := nodeText(cn, source)
		if !p.parseAll && !isDocComment(text) {
			continue
		}
		lines = append(lines, cleanComment(text)...)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func cleanComment(text string) []string {
	if strings.HasPrefix(text, "//") {
		return []string{strings.TrimSpace(strings.TrimLeft(text, "/!"))}
	}
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimLeft(text, "*!")
	text = strings.TrimSuffix(text, "*/")

	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		l = strings.TrimSpace(strings.TrimPrefix(l, "*"))
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
