package traversal

import (
	"testing"

	"github.com/mvp-joe/cortex-index/internal/frontend"
	"github.com/mvp-joe/cortex-index/internal/frontend/fronttest"
	"github.com/stretchr/testify/assert"
)

// Test Plan for Traversal Filter:
// - NestingDepth counts enclosing declarations and honours the limit
// - Declarations deeper than the threshold are rejected regardless of file
// - Declarations at or below the threshold return the file predicate's answer
// - Declarations without a file fail open
// - Negative thresholds fall back to DefaultMaxDepth; zero keeps top-level declarations only

type fileSet map[frontend.File]bool

func (s fileSet) ShouldIndexFile(f frontend.File) bool {
	return s[f]
}

type countingIndexer struct {
	calls int
	allow bool
}

func (c *countingIndexer) ShouldIndexFile(frontend.File) bool {
	c.calls++
	return c.allow
}

func TestNestingDepth(t *testing.T) {
	t.Parallel()

	f := fronttest.NewFile("/src/x.h")
	outer, inner := fronttest.Chain(5, f)

	assert.Equal(t, 0, NestingDepth(outer, 0))
	assert.Equal(t, 5, NestingDepth(inner, 0))
	assert.Equal(t, 3, NestingDepth(inner, 3))
}

func TestShouldDescend_DepthThreshold(t *testing.T) {
	t.Parallel()

	f := fronttest.NewFile("/src/x.h")
	idx := &countingIndexer{allow: true}
	filter := New(3, idx)

	_, atThreshold := fronttest.Chain(3, f)
	_, beyond := fronttest.Chain(4, f)

	assert.True(t, filter.ShouldDescend(atThreshold))
	assert.False(t, filter.ShouldDescend(beyond))
	assert.Equal(t, 1, idx.calls, "deep declarations never consult the file predicate")
}

func TestShouldDescend_DeepIgnoresOwningFile(t *testing.T) {
	t.Parallel()

	owned := fronttest.NewFile("/src/owned.h")
	filter := New(2, fileSet{owned: true})

	_, deep := fronttest.Chain(7, owned)
	assert.False(t, filter.ShouldDescend(deep))
}

func TestShouldDescend_ReturnsFilePredicate(t *testing.T) {
	t.Parallel()

	owned := fronttest.NewFile("/src/owned.h")
	claimed := fronttest.NewFile("/src/claimed.h")
	filter := New(DefaultMaxDepth, fileSet{owned: true})

	assert.True(t, filter.ShouldDescend(fronttest.NewDecl(frontend.DeclFunction, "f", owned)))
	assert.False(t, filter.ShouldDescend(fronttest.NewDecl(frontend.DeclFunction, "g", claimed)))
}

func TestShouldDescend_NoFileFailsOpen(t *testing.T) {
	t.Parallel()

	filter := New(DefaultMaxDepth, fileSet{})
	d := fronttest.NewDecl(frontend.DeclMacro, "BUILTIN", nil)

	assert.True(t, filter.ShouldDescend(d))
}

func TestNew_DefaultDepth(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultMaxDepth, New(-1, nil).MaxDepth())
	assert.Equal(t, DefaultMaxDepth, New(-4, nil).MaxDepth())
	assert.Equal(t, 4, New(4, nil).MaxDepth())
}

func TestNew_ZeroDepthKeepsTopLevel(t *testing.T) {
	t.Parallel()

	filter := New(0, nil)
	assert.Equal(t, 0, filter.MaxDepth())

	outer, inner := fronttest.Chain(1, nil)
	assert.True(t, filter.ShouldDescend(outer))
	assert.False(t, filter.ShouldDescend(inner))
}
