package csource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/cortex-index/internal/frontend"
)

// DefaultMaxIncludeDepth bounds #include nesting.
const DefaultMaxIncludeDepth = 200

// preprocessor follows the #include directives of a unit depth-first, in
// source order, reporting each step to the observers and collecting the
// declarations of every file in the order they appear in the unit.
//
// Conditional directives are not evaluated: every branch is scanned.
type preprocessor struct {
	files       *FileManager
	sm          *SourceManager
	observers   []frontend.PPObserver
	includeDirs []string
	systemDirs  []string
	maxDepth    int
	comments    commentPolicy
	skipBody    func(*Decl) bool
	diags       *diagnostics
	logger      *log.Logger

	entered  map[*File]bool
	onceOnly map[*File]bool
	decls    []*Decl

	// Once the depth cap is hit, files already entered are not entered
	// again. Unguarded self-inclusion would otherwise branch at every level.
	reachedMaxDepth bool
}

func (p *preprocessor) run(ctx context.Context, main *File) error {
	p.entered = make(map[*File]bool)
	p.onceOnly = make(map[*File]bool)

	for _, o := range p.observers {
		o.FileEntered(p.files.Builtin())
	}
	return p.processFile(ctx, main, 0)
}

func (p *preprocessor) processFile(ctx context.Context, f *File, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	firstEntry := !p.entered[f]
	p.entered[f] = true
	for _, o := range p.observers {
		o.FileEntered(f)
	}

	content, err := p.sm.Content(f)
	if err != nil {
		if depth == 0 {
			return fmt.Errorf("main file: %w", err)
		}
		p.diags.warn(f.name, 0, "cannot read file: %v", err)
		return nil
	}

	tree := parse(content)
	if tree == nil {
		p.diags.warn(f.name, 0, "failed to parse file")
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		p.diags.warn(f.name, firstErrorLine(root), "syntax error")
	}
	if isOnceOnly(root, content) {
		p.onceOnly[f] = true
	}

	b := &declBuilder{file: f, source: content, comments: p.comments, skipBody: p.skipBody}
	return p.items(ctx, b, root, depth, firstEntry)
}

// items processes the directives and declarations in container. Declarations
// of a file are produced on its first entry only.
func (p *preprocessor) items(ctx context.Context, b *declBuilder, container *sitter.Node, depth int, emit bool) error {
	return b.eachWithDocs(container, func(n *sitter.Node, doc string) error {
		switch n.Kind() {
		case "preproc_include":
			return p.include(ctx, b, n, depth)
		case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "preproc_elifdef":
			return p.items(ctx, b, n, depth, emit)
		}
		if emit {
			p.decls = append(p.decls, b.topLevel(n, doc)...)
		}
		return nil
	})
}

func (p *preprocessor) include(ctx context.Context, b *declBuilder, n *sitter.Node, depth int) error {
	from := b.file
	pathNode := n.ChildByFieldName("path")
	if pathNode == nil {
		return nil
	}
	spelled := nodeText(pathNode, b.source)
	angled := pathNode.Kind() == "system_lib_string"
	if !angled && pathNode.Kind() != "string_literal" {
		p.diags.warn(from.name, line(n), "computed include %s is not supported", spelled)
		return nil
	}
	name := strings.Trim(spelled, "\"<>")

	target := p.resolve(name, from, angled)
	var included frontend.File
	if target != nil {
		included = target
	}
	for _, o := range p.observers {
		o.InclusionDirective(from, included)
	}

	switch {
	case target == nil:
		p.diags.warn(from.name, line(n), "'%s' file not found", name)
		return nil
	case depth+1 > p.maxDepth:
		p.diags.warn(from.name, line(n), "#include nested depth %d exceeds maximum of %d", depth+1, p.maxDepth)
		p.reachedMaxDepth = true
		return nil
	case p.entered[target] && (p.onceOnly[target] || p.reachedMaxDepth):
		for _, o := range p.observers {
			o.FileSkipped(target)
		}
		return nil
	}
	return p.processFile(ctx, target, depth+1)
}

// resolve finds an included file. Quoted includes search the including
// file's directory first; both forms then search the include directories
// and finally the system include directories.
func (p *preprocessor) resolve(name string, from *File, angled bool) *File {
	if filepath.IsAbs(name) {
		return p.lookup(name, false)
	}
	if !angled && from.realPath != "" {
		if f := p.lookup(filepath.Join(filepath.Dir(from.realPath), name), from.system); f != nil {
			return f
		}
	}
	for _, dir := range p.includeDirs {
		if f := p.lookup(filepath.Join(dir, name), false); f != nil {
			return f
		}
	}
	for _, dir := range p.systemDirs {
		if f := p.lookup(filepath.Join(dir, name), true); f != nil {
			return f
		}
	}
	return nil
}

func (p *preprocessor) lookup(path string, system bool) *File {
	f, err := p.files.GetFile(path, system)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.logger.Debug("include candidate rejected", "path", path, "err", err)
		}
		return nil
	}
	return f
}

// isOnceOnly reports whether a file protects itself against re-inclusion
// with #pragma once or a whole-file #ifndef guard.
func isOnceOnly(root *sitter.Node, source []byte) bool {
	var items []*sitter.Node
	for _, n := range namedChildren(root) {
		if n.Kind() == "comment" {
			continue
		}
		if n.Kind() == "preproc_call" &&
			strings.TrimSpace(nodeText(n.ChildByFieldName("directive"), source)) == "#pragma" &&
			strings.TrimSpace(nodeText(n.ChildByFieldName("argument"), source)) == "once" {
			return true
		}
		items = append(items, n)
	}

	if len(items) != 1 || items[0].Kind() != "preproc_ifdef" {
		return false
	}
	guard := items[0]
	if strings.ReplaceAll(nodeText(guard.Child(0), source), " ", "") != "#ifndef" {
		return false
	}
	if guard.ChildByFieldName("alternative") != nil {
		return false
	}
	nameNode := guard.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	for _, n := range namedChildren(guard) {
		if n.Kind() == "comment" || sameNode(n, nameNode) {
			continue
		}
		return n.Kind() == "preproc_def" && nodeText(n.ChildByFieldName("name"), source) == nodeText(nameNode, source)
	}
	return false
}

func firstErrorLine(root *sitter.Node) int {
	found := 0
	walkTree(root, func(n *sitter.Node) bool {
		if found != 0 {
			return false
		}
		if n.IsError() || n.IsMissing() {
			found = line(n)
			return false
		}
		return n.HasError()
	})
	return found
}
