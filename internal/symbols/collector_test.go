package symbols

import (
	"sync"
	"testing"

	"github.com/mvp-joe/cortex-index/internal/frontend"
	"github.com/mvp-joe/cortex-index/internal/frontend/fronttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Collector:
// - Declarations become symbols with scope, kind, origin and include header
// - A declaration followed by a definition merges into one symbol with both locations
// - Documentation is dropped for locals unless StoreAllDocumentation is set
// - RefFilter zero value captures no refs; RefAll captures declarations and references
// - RefsInHeaders=false keeps only refs located in the main file
// - Relations are captured only with CollectRelations
// - Each batch can be taken once; a second take returns ErrAlreadyTaken
// - ShouldIndexFile honours FileClaims and memoizes per file; main file is always indexable
// - FileClaims is first-claimer-wins, idempotent per unit, and safe for concurrent use

var (
	mainFile   = fronttest.NewFile("/src/main.c")
	headerFile = fronttest.NewFile("/src/util.h")
)

func newDecl(kind frontend.DeclKind, name string, f frontend.File, line int) *fronttest.Decl {
	d := fronttest.NewDecl(kind, name, f)
	d.Loc.Line = line
	return d
}

func TestCollector_SymbolsMergeDeclarationAndDefinition(t *testing.T) {
	t.Parallel()

	c := NewCollector(Options{Origin: OriginStatic, CollectIncludePath: true})
	c.Initialize(mainFile)

	decl := newDecl(frontend.DeclFunction, "util", headerFile, 3)
	decl.Doc = "Does util things."
	def := newDecl(frontend.DeclFunction, "util", mainFile, 10)
	def.Def = true

	c.HandleDecl(decl)
	c.HandleDecl(def)

	slab, err := c.TakeSymbols()
	require.NoError(t, err)
	require.Equal(t, 1, slab.Len())

	sym, ok := slab.Find(IDFromUSR("c:@util"))
	require.True(t, ok)
	assert.Equal(t, "util", sym.Name)
	assert.Equal(t, "function", sym.Kind)
	assert.Equal(t, OriginStatic, sym.Origin)
	assert.Equal(t, "file:///src/util.h", sym.CanonicalDeclaration.URI)
	assert.Equal(t, 3, sym.CanonicalDeclaration.Line)
	assert.Equal(t, "file:///src/main.c", sym.Definition.URI)
	assert.Equal(t, 10, sym.Definition.Line)
	assert.Equal(t, "file:///src/util.h", sym.IncludeHeader)
	assert.Equal(t, "Does util things.", sym.Documentation)
}

func TestCollector_ScopeAndLocalDocumentation(t *testing.T) {
	t.Parallel()

	fn := newDecl(frontend.DeclFunction, "run", mainFile, 1)
	local := newDecl(frontend.DeclStruct, "scratch", mainFile, 2)
	local.Doc = "local doc"
	local.DeclUSR = "c:@F@run@S@scratch"
	fn.Add(local)

	c := NewCollector(Options{})
	c.Initialize(mainFile)
	c.HandleDecl(fn)
	c.HandleDecl(local)
	slab, err := c.TakeSymbols()
	require.NoError(t, err)

	sym, ok := slab.Find(IDFromUSR("c:@F@run@S@scratch"))
	require.True(t, ok)
	assert.Equal(t, "run", sym.Scope)
	assert.True(t, sym.Local)
	assert.Empty(t, sym.Documentation)

	c = NewCollector(Options{StoreAllDocumentation: true})
	c.Initialize(mainFile)
	c.HandleDecl(local)
	slab, err = c.TakeSymbols()
	require.NoError(t, err)
	sym, _ = slab.Find(IDFromUSR("c:@F@run@S@scratch"))
	assert.Equal(t, "local doc", sym.Documentation)
}

func TestCollector_RefFilter(t *testing.T) {
	t.Parallel()

	fn := newDecl(frontend.DeclFunction, "caller", mainFile, 5)
	fn.Def = true
	occ := frontend.Occurrence{
		USR:      "c:@F@callee",
		Name:     "callee",
		Roles:    frontend.RoleReference | frontend.RoleCall,
		Location: frontend.Location{File: mainFile, Line: 6, Column: 3},
	}

	// Test: zero RefFilter disables reference capture
	c := NewCollector(Options{})
	c.Initialize(mainFile)
	assert.False(t, c.ShouldCollectOccurrences())
	c.HandleDecl(fn)
	c.HandleOccurrence(fn, occ)
	refs, err := c.TakeRefs()
	require.NoError(t, err)
	assert.Equal(t, 0, refs.Len())

	// Test: RefAll captures the definition and the call
	c = NewCollector(Options{RefFilter: RefAll, RefsInHeaders: true})
	c.Initialize(mainFile)
	assert.True(t, c.ShouldCollectOccurrences())
	c.HandleDecl(fn)
	c.HandleOccurrence(fn, occ)
	refs, err = c.TakeRefs()
	require.NoError(t, err)
	require.Equal(t, 2, refs.Len())

	calls := refs.For(IDFromUSR("c:@F@callee"))
	require.Len(t, calls, 1)
	assert.Equal(t, RefReference|RefSpelled, calls[0].Kind)
	assert.Equal(t, IDFromUSR("c:@caller"), calls[0].Container)

	defs := refs.For(IDFromUSR("c:@caller"))
	require.Len(t, defs, 1)
	assert.Equal(t, RefDeclaration|RefDefinition|RefSpelled, defs[0].Kind)

	// Test: a filter without Reference drops call sites
	c = NewCollector(Options{RefFilter: RefDeclaration | RefDefinition, RefsInHeaders: true})
	c.Initialize(mainFile)
	c.HandleOccurrence(fn, occ)
	refs, err = c.TakeRefs()
	require.NoError(t, err)
	assert.Equal(t, 0, refs.Len())
}

func TestCollector_RefsInHeaders(t *testing.T) {
	t.Parallel()

	inHeader := newDecl(frontend.DeclFunction, "h", headerFile, 1)
	inMain := newDecl(frontend.DeclFunction, "m", mainFile, 1)

	c := NewCollector(Options{RefFilter: RefAll})
	c.Initialize(mainFile)
	c.HandleDecl(inHeader)
	c.HandleDecl(inMain)
	refs, err := c.TakeRefs()
	require.NoError(t, err)
	require.Equal(t, 1, refs.Len())
	assert.Equal(t, "file:///src/main.c", refs.All()[0].Location.URI)
}

func TestCollector_Relations(t *testing.T) {
	t.Parallel()

	derived := newDecl(frontend.DeclStruct, "Derived", mainFile, 1)
	derived.Rels = []frontend.Relation{
		{Roles: frontend.RoleRelationBaseOf, USR: "c:@Base"},
		{Roles: frontend.RoleRelationBaseOf, USR: "c:@Base"},
	}
	method := newDecl(frontend.DeclFunction, "run", mainFile, 2)
	method.Rels = []frontend.Relation{{Roles: frontend.RoleRelationOverrideOf, USR: "c:@Base@run"}}

	c := NewCollector(Options{})
	c.Initialize(mainFile)
	c.HandleDecl(derived)
	rels, err := c.TakeRelations()
	require.NoError(t, err)
	assert.Equal(t, 0, rels.Len(), "relations disabled")

	c = NewCollector(Options{CollectRelations: true})
	c.Initialize(mainFile)
	c.HandleDecl(derived)
	c.HandleDecl(method)
	rels, err = c.TakeRelations()
	require.NoError(t, err)
	assert.ElementsMatch(t, []Relation{
		{Subject: IDFromUSR("c:@Base"), Predicate: RelationBaseOf, Object: IDFromUSR("c:@Derived")},
		{Subject: IDFromUSR("c:@Base@run"), Predicate: RelationOverriddenBy, Object: IDFromUSR("c:@run")},
	}, rels.All())
}

func TestCollector_TakeOnce(t *testing.T) {
	t.Parallel()

	c := NewCollector(Options{RefFilter: RefAll})
	c.Initialize(mainFile)
	c.HandleDecl(newDecl(frontend.DeclVariable, "v", mainFile, 1))

	_, err := c.TakeSymbols()
	require.NoError(t, err)
	_, err = c.TakeSymbols()
	assert.ErrorIs(t, err, ErrAlreadyTaken)

	_, err = c.TakeRefs()
	require.NoError(t, err)
	_, err = c.TakeRefs()
	assert.ErrorIs(t, err, ErrAlreadyTaken)

	_, err = c.TakeRelations()
	require.NoError(t, err)
	_, err = c.TakeRelations()
	assert.ErrorIs(t, err, ErrAlreadyTaken)

	// Test: declarations after the take are ignored rather than panicking
	assert.NotPanics(t, func() {
		c.HandleDecl(newDecl(frontend.DeclVariable, "late", mainFile, 2))
	})
}

func TestCollector_ShouldIndexFileWithClaims(t *testing.T) {
	t.Parallel()

	claims := NewFileClaims()
	otherMain := fronttest.NewFile("/src/other.c")

	first := NewCollector(Options{Claims: claims})
	first.Initialize(mainFile)
	second := NewCollector(Options{Claims: claims})
	second.Initialize(otherMain)

	assert.True(t, first.ShouldIndexFile(headerFile))
	assert.False(t, second.ShouldIndexFile(headerFile), "header already claimed by first unit")
	assert.True(t, second.ShouldIndexFile(otherMain))
	assert.True(t, first.ShouldIndexFile(headerFile), "memoized answer is stable")
	assert.True(t, first.ShouldIndexFile(fronttest.Synthetic("<built-in>")))

	owner, ok := claims.Owner("file:///src/util.h")
	require.True(t, ok)
	assert.Equal(t, "file:///src/main.c", owner)
}

func TestFileClaims(t *testing.T) {
	t.Parallel()

	claims := NewFileClaims()
	assert.True(t, claims.Claim("file:///a.h", "u1"))
	assert.True(t, claims.Claim("file:///a.h", "u1"))
	assert.False(t, claims.Claim("file:///a.h", "u2"))
	assert.True(t, claims.Claim("file:///b.h", "u2"))

	assert.Equal(t, []string{"file:///a.h"}, claims.Release("u1"))
	assert.True(t, claims.Claim("file:///a.h", "u2"))
	assert.Equal(t, 2, claims.Len())
}

func TestFileClaims_Concurrent(t *testing.T) {
	t.Parallel()

	claims := NewFileClaims()
	var wg sync.WaitGroup
	wins := make([]bool, 16)
	for i := range wins {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wins[i] = claims.Claim("file:///shared.h", string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 1, won)
}

func TestDrain(t *testing.T) {
	t.Parallel()

	var d Drain
	assert.Equal(t, Collecting, d.State())
	require.NoError(t, d.Take())
	assert.Equal(t, Drained, d.State())
	assert.ErrorIs(t, d.Take(), ErrAlreadyTaken)
}

func TestOriginString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown", OriginUnknown.String())
	assert.Equal(t, "static", OriginStatic.String())
	assert.Equal(t, "ast|merge", (OriginAST | OriginMerge).String())
	assert.Equal(t, OriginBackground, ParseOrigin("Background"))
	assert.Equal(t, OriginUnknown, ParseOrigin("nope"))
}
