package traversal

import "github.com/mvp-joe/cortex-index/internal/frontend"

// DefaultMaxDepth is the nesting depth beyond which declarations are not
// traversed.
const DefaultMaxDepth = 10

// Policy decides whether the declaration walker descends into a declaration.
type Policy interface {
	ShouldDescend(d frontend.Decl) bool
}

// FileIndexer reports whether declarations owned by a file should be indexed.
type FileIndexer interface {
	ShouldIndexFile(f frontend.File) bool
}

// Filter bounds traversal by nesting depth and per-file ownership.
//
// Most per-declaration indexing work (name lookup, role classification, USR
// generation) is linear in the depth of the declaration, so indexing every
// nested declaration is quadratic. Deeply nested symbols are given up on.
type Filter struct {
	maxDepth int
	files    FileIndexer
}

var _ Policy = (*Filter)(nil)

// New creates a filter. A maxDepth of 0 keeps top-level declarations only;
// a negative maxDepth selects DefaultMaxDepth.
func New(maxDepth int, files FileIndexer) *Filter {
	if maxDepth < 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Filter{maxDepth: maxDepth, files: files}
}

// MaxDepth returns the configured threshold.
func (f *Filter) MaxDepth() int {
	return f.maxDepth
}

// ShouldDescend reports whether d should be traversed.
func (f *Filter) ShouldDescend(d frontend.Decl) bool {
	if NestingDepth(d, f.maxDepth+1) > f.maxDepth {
		return false
	}
	file := d.Location().File
	if file == nil || f.files == nil {
		return true
	}
	return f.files.ShouldIndexFile(file)
}

// NestingDepth counts the declarations enclosing d, stopping once limit is
// reached. A limit <= 0 counts the whole chain.
func NestingDepth(d frontend.Decl, limit int) int {
	depth := 0
	for p := d.Parent(); p != nil; p = p.Parent() {
		depth++
		if limit > 0 && depth >= limit {
			break
		}
	}
	return depth
}
