package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cortex-index/internal/includegraph"
	"github.com/mvp-joe/cortex-index/internal/symbols"
)

// Test Plan for Writer and Reader:
// - CreateSchema is idempotent and records the schema version
// - FinishUnit replaces earlier runs of the same unit; until then they stay readable
// - AbortUnit discards a partial run and keeps the finished one
// - Malformed run timestamps are reported, not zeroed
// - Symbols, refs and relations round-trip through the tables
// - Include graphs round-trip with digests, flags, unpopulated nodes and
//   duplicate edges in directive order
// - DeleteUnit removes a unit and its rows
// - Writes for unknown unit ids are rejected
// - NewWriter owns its connection; NewWriterWithDB does not close a shared one

const (
	mainURI   = "file:///proj/main.c"
	headerURI = "file:///proj/util.h"
)

func sampleGraph() *includegraph.Graph {
	mainDigest := includegraph.DigestBytes([]byte("main"))
	headerDigest := includegraph.DigestBytes([]byte("header"))
	return includegraph.FromNodes([]*includegraph.Node{
		{
			URI:            mainURI,
			Digest:         &mainDigest,
			Flags:          includegraph.FlagIsTU,
			DirectIncludes: []string{headerURI, headerURI, "file:///proj/missing.h"},
			Populated:      true,
		},
		{
			URI:            headerURI,
			Digest:         &headerDigest,
			DirectIncludes: []string{headerURI},
			Populated:      true,
		},
	})
}

func TestCreateSchema_Idempotent(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	require.NoError(t, CreateSchema(db))

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestWriter_FinishUnitReplacesPreviousRun(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	w := NewWriterWithDB(db)
	r := NewReader(db)

	first, err := w.BeginUnit(mainURI)
	require.NoError(t, err)
	require.NoError(t, w.WriteSymbols(first, symbols.NewSymbolSlab([]symbols.Symbol{
		{ID: symbols.IDFromUSR("c:@F@old"), Name: "old", Kind: "function"},
	})))
	require.NoError(t, w.FinishUnit(first))

	second, err := w.BeginUnit(mainURI)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// Test: the finished run stays visible while the new one is in progress
	units, err := r.Units()
	require.NoError(t, err)
	assert.Len(t, units, 2)
	u, ok, err := r.UnitByURI(mainURI)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, u.ID)

	require.NoError(t, w.FinishUnit(second))
	units, err = r.Units()
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, second, units[0].ID)
	assert.False(t, units[0].FinishedAt.IsZero())

	// Test: cascade removed the earlier run's symbols
	n, err := r.CountSymbols("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Test: a finished run accepts no more writes
	assert.ErrorIs(t, w.FinishUnit(second), ErrUnknownUnit)
}

func TestWriter_AbortUnitKeepsPreviousRun(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	w := NewWriterWithDB(db)
	r := NewReader(db)

	first, err := w.BeginUnit(mainURI)
	require.NoError(t, err)
	require.NoError(t, w.WriteIncludeGraph(first, sampleGraph()))
	require.NoError(t, w.FinishUnit(first))

	second, err := w.BeginUnit(mainURI)
	require.NoError(t, err)
	require.NoError(t, w.WriteSymbols(second, symbols.NewSymbolSlab([]symbols.Symbol{
		{ID: symbols.IDFromUSR("c:@F@partial"), Name: "partial", Kind: "function"},
	})))
	require.NoError(t, w.AbortUnit(second))

	units, err := r.Units()
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, first, units[0].ID)

	n, err := r.CountSymbols("")
	require.NoError(t, err)
	assert.Zero(t, n)

	g, err := r.IncludeGraph(first)
	require.NoError(t, err)
	assert.Equal(t, sampleGraph().Edges(), g.Edges())

	assert.ErrorIs(t, w.AbortUnit(second), ErrUnknownUnit)
}

func TestReader_MalformedTimestamp(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	_, err := db.Exec(`INSERT INTO units (unit_id, main_uri, started_at, finished_at) VALUES ('u1', ?, 'yesterday', NULL)`, mainURI)
	require.NoError(t, err)

	_, err = NewReader(db).Units()
	assert.ErrorContains(t, err, "u1")
}

func TestWriter_DeleteUnit(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	w := NewWriterWithDB(db)
	r := NewReader(db)

	id, err := w.BeginUnit(mainURI)
	require.NoError(t, err)
	require.NoError(t, w.WriteIncludeGraph(id, sampleGraph()))

	n, err := w.DeleteUnit(mainURI)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := r.UnitByURI(mainURI)
	require.NoError(t, err)
	assert.False(t, ok)

	edges, err := r.IncludeEdges(id)
	require.NoError(t, err)
	assert.Empty(t, edges)

	// Test: deleting an unknown unit is not an error
	n, err = w.DeleteUnit("file:///proj/other.c")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWriter_SymbolsRefsRelations(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	w := NewWriterWithDB(db)
	r := NewReader(db)

	unitID, err := w.BeginUnit(mainURI)
	require.NoError(t, err)

	add := symbols.IDFromUSR("c:@F@add")
	helper := symbols.IDFromUSR("c:@F@helper")
	syms := symbols.NewSymbolSlab([]symbols.Symbol{
		{
			ID:                   add,
			Name:                 "add",
			Kind:                 "function",
			CanonicalDeclaration: symbols.Location{URI: headerURI, Line: 3, Column: 5},
			Definition:           symbols.Location{URI: mainURI, Line: 10, Column: 5},
			Documentation:        "Adds numbers.",
			IncludeHeader:        headerURI,
			Origin:               symbols.OriginStatic,
		},
		{
			ID:                   symbols.IDFromUSR("c:@F@add@total"),
			Name:                 "total",
			Scope:                "add",
			Kind:                 "variable",
			CanonicalDeclaration: symbols.Location{URI: mainURI, Line: 11, Column: 6},
			Origin:               symbols.OriginStatic,
			Local:                true,
		},
	})
	refs := symbols.NewRefSlab([]symbols.Ref{
		{Symbol: helper, Kind: symbols.RefReference, Location: symbols.Location{URI: mainURI, Line: 11, Column: 14}, Container: add},
		{Symbol: helper, Kind: symbols.RefReference, Location: symbols.Location{URI: mainURI, Line: 12, Column: 17}, Container: add},
	})
	rels := symbols.NewRelationSlab([]symbols.Relation{
		{Subject: add, Predicate: symbols.RelationBaseOf, Object: helper},
		{Subject: add, Predicate: symbols.RelationBaseOf, Object: helper},
	})

	require.NoError(t, w.WriteSymbols(unitID, syms))
	require.NoError(t, w.WriteRefs(unitID, refs))
	require.NoError(t, w.WriteRelations(unitID, rels))

	n, err := r.CountSymbols(unitID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.CountRefs(unitID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var relCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM relations WHERE unit_id = ?`, unitID).Scan(&relCount))
	assert.Equal(t, 1, relCount)

	found, err := r.SymbolsByName("add")
	require.NoError(t, err)
	require.Len(t, found, 1)
	got := found[0]
	want, _ := syms.Find(add)
	assert.Equal(t, want, got)

	locals, err := r.SymbolsByName("total")
	require.NoError(t, err)
	require.Len(t, locals, 1)
	assert.True(t, locals[0].Local)
	assert.Equal(t, "add", locals[0].Scope)
}

func TestWriter_IncludeGraphRoundTrip(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	w := NewWriterWithDB(db)
	r := NewReader(db)

	unitID, err := w.BeginUnit(mainURI)
	require.NoError(t, err)

	g := sampleGraph()
	require.NoError(t, w.WriteIncludeGraph(unitID, g))

	edges, err := r.IncludeEdges(unitID)
	require.NoError(t, err)
	assert.Equal(t, []includegraph.Edge{
		{From: mainURI, To: headerURI},
		{From: mainURI, To: headerURI},
		{From: mainURI, To: "file:///proj/missing.h"},
		{From: headerURI, To: headerURI},
	}, edges)

	restored, err := r.IncludeGraph(unitID)
	require.NoError(t, err)
	assert.Equal(t, g.Len(), restored.Len())
	assert.Equal(t, g.Edges(), restored.Edges())

	root, ok := restored.Root()
	require.True(t, ok)
	assert.Equal(t, mainURI, root.URI)
	require.NotNil(t, root.Digest)
	assert.Equal(t, includegraph.DigestBytes([]byte("main")), *root.Digest)

	// Test: an edge-only node stays unpopulated and digestless
	missing, ok := restored.Node("file:///proj/missing.h")
	require.True(t, ok)
	assert.False(t, missing.Populated)
	assert.Nil(t, missing.Digest)
}

func TestWriter_UnknownUnit(t *testing.T) {
	t.Parallel()

	w := NewWriterWithDB(NewTestDB(t))

	err := w.WriteSymbols("nope", symbols.NewSymbolSlab(nil))
	assert.ErrorIs(t, err, ErrUnknownUnit)
	assert.ErrorIs(t, w.WriteIncludeGraph("nope", sampleGraph()), ErrUnknownUnit)
	assert.ErrorIs(t, w.FinishUnit("nope"), ErrUnknownUnit)
	assert.Error(t, w.WriteIncludeGraph("nope", nil))
}

func TestWriter_ConnectionOwnership(t *testing.T) {
	t.Parallel()

	// Test: a shared connection survives the writer
	db := NewTestDB(t)
	shared := NewWriterWithDB(db)
	require.NoError(t, shared.Close())
	assert.NoError(t, db.Ping())

	// Test: an owned connection is closed with the writer
	owned, err := NewWriter(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	unitID, err := owned.BeginUnit(mainURI)
	require.NoError(t, err)
	assert.NotEmpty(t, unitID)
	ownedDB := owned.DB()
	require.NoError(t, owned.Close())
	assert.Error(t, ownedDB.Ping())
}
