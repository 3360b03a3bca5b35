package symbols

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mvp-joe/cortex-index/internal/frontend"
	"github.com/mvp-joe/cortex-index/internal/uri"
)

var (
	pragmaPattern  = regexp.MustCompile(`(?://|/\*)\s*IWYU pragma:\s*(.*?)\s*(?:\*/)?\s*$`)
	includePattern = regexp.MustCompile(`^\s*#\s*include\s*([<"][^>"]+[>"])`)
)

// PragmaIncludes records the IWYU pragmas of the files a unit enters and
// maps a declaring header to the header that should be included for it.
//
// Recognized forms:
//
//	// IWYU pragma: private, include "public.h"
//	// IWYU pragma: private
//	#include "detail.h" // IWYU pragma: export
//	// IWYU pragma: begin_exports
//	// IWYU pragma: end_exports
//
// A recorder serves one unit and is not safe for concurrent use.
type PragmaIncludes struct {
	sm frontend.SourceManager

	scanned   map[string]bool
	public    map[string]string   // private header -> verbatim public header
	private   map[string]bool     // headers marked private
	exports   map[string][]string // file -> spellings of the includes it exports
	exporters map[string]string   // exported header -> first exporting file
}

var _ frontend.PPObserver = (*PragmaIncludes)(nil)

// NewPragmaIncludes creates an empty recorder.
func NewPragmaIncludes() *PragmaIncludes {
	return &PragmaIncludes{
		scanned:   make(map[string]bool),
		public:    make(map[string]string),
		private:   make(map[string]bool),
		exports:   make(map[string][]string),
		exporters: make(map[string]string),
	}
}

// Record attaches the recorder to the preprocessor of ci.
func (p *PragmaIncludes) Record(ci frontend.Instance) {
	p.sm = ci.SourceManager()
	ci.AddPPObserver(p)
}

// FileEntered scans a file's pragmas the first time it is entered.
func (p *PragmaIncludes) FileEntered(f frontend.File) {
	u, ok := uri.FromFile(f)
	if !ok || p.sm == nil || p.scanned[u] {
		return
	}
	p.scanned[u] = true
	content, err := p.sm.Content(f)
	if err != nil {
		return
	}
	p.scan(u, content)
}

// InclusionDirective links an exported header to the file exporting it.
func (p *PragmaIncludes) InclusionDirective(including, included frontend.File) {
	if included == nil {
		return
	}
	from, ok := uri.FromFile(including)
	if !ok || len(p.exports[from]) == 0 {
		return
	}
	to, ok := uri.FromFile(included)
	if !ok || to == from {
		return
	}
	if _, seen := p.exporters[to]; seen {
		return
	}
	for _, spelled := range p.exports[from] {
		if spells(included, spelled) {
			p.exporters[to] = from
			return
		}
	}
}

func (p *PragmaIncludes) FileSkipped(frontend.File) {}

// IsPrivate reports whether the file at fileURI is marked private.
func (p *PragmaIncludes) IsPrivate(fileURI string) bool {
	return p.private[fileURI]
}

// IncludeHeader returns the header to include for symbols declared in the
// file at fileURI. A private header with a public mapping yields the
// verbatim public spelling, e.g. "<stdio.h>"; an exported header yields its
// exporter, followed transitively. Otherwise fileURI is returned.
func (p *PragmaIncludes) IncludeHeader(fileURI string) string {
	cur := fileURI
	for seen := make(map[string]bool); !seen[cur]; {
		seen[cur] = true
		if pub, ok := p.public[cur]; ok {
			return pub
		}
		next, ok := p.exporters[cur]
		if !ok {
			break
		}
		cur = next
	}
	return cur
}

func (p *PragmaIncludes) scan(fileURI string, content []byte) {
	inExports := false
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")

		var keyword, rest string
		if m := pragmaPattern.FindStringSubmatch(line); m != nil {
			keyword, rest = splitPragma(m[1])
		}
		switch keyword {
		case "private":
			p.private[fileURI] = true
			if hdr, ok := strings.CutPrefix(rest, "include"); ok {
				hdr = strings.TrimSpace(hdr)
				if _, mapped := p.public[fileURI]; !mapped && isVerbatimHeader(hdr) {
					p.public[fileURI] = hdr
				}
			}
		case "begin_exports":
			inExports = true
		case "end_exports":
			inExports = false
		}

		if inc := includePattern.FindStringSubmatch(line); inc != nil && (inExports || keyword == "export") {
			p.exports[fileURI] = append(p.exports[fileURI], strings.Trim(inc[1], `<>"`))
		}
	}
}

// splitPragma splits "private, include <x.h>" into "private" and
// "include <x.h>".
func splitPragma(body string) (keyword, rest string) {
	keyword, rest, _ = strings.Cut(body, ",")
	keyword = strings.TrimSpace(keyword)
	if k, r, ok := strings.Cut(keyword, " "); ok {
		keyword, rest = k, r+rest
	}
	return keyword, strings.TrimSpace(rest)
}

func isVerbatimHeader(s string) bool {
	if len(s) < 3 {
		return false
	}
	return (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '<' && s[len(s)-1] == '>')
}

// spells reports whether f is reached through the include spelling s.
func spells(f frontend.File, s string) bool {
	for _, p := range []string{f.Name(), f.RealPath()} {
		p = filepath.ToSlash(p)
		if p == s || strings.HasSuffix(p, "/"+s) {
			return true
		}
	}
	return false
}
