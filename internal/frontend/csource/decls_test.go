package csource

import (
	"path/filepath"
	"testing"

	"github.com/mvp-joe/cortex-index/internal/frontend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for declarations:
// - Top-level macros, structs, typedefs, enums, variables and functions in source order
// - USRs follow the C conventions for each kind, including fields and enumerators
// - Locals are nested under their function with function-scoped USRs
// - Calls and type references become occurrences of the enclosing declaration
// - Documentation follows the comment policy (doc comments only, all comments, system headers)
// - Skipped function bodies contribute no locals and no occurrences
// - Anonymous structs named by a typedef get a typedef-derived USR

const declSource = `#define MAX_ITEMS 16

/** A point in space. */
struct point {
	int x;
	int y;
};

typedef struct point Point;

enum color { RED, GREEN };

// plain comment
int counter;

extern int shared;

static int helper(int v);

/** Adds numbers. */
int add(Point *p, int b) {
	struct scratch { int tmp; };
	int total = helper(b);
	return total + helper(p->x);
}

typedef struct { int a; } Anon;
`

func findDecl(decls []frontend.Decl, name string) frontend.Decl {
	for _, d := range decls {
		if d.Name() == name {
			return d
		}
		if found := findDecl(d.Children(), name); found != nil {
			return found
		}
	}
	return nil
}

func occurrenceUSRs(d frontend.Decl) []string {
	var usrs []string
	for _, o := range d.Occurrences() {
		usrs = append(usrs, o.USR)
	}
	return usrs
}

func parseUnit(t *testing.T, files map[string]string, cfg Config, prepare func(*Instance), consumer *unitConsumer) []frontend.Decl {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, files)
	ci, err := NewInstance(filepath.Join(dir, "main.c"), cfg)
	require.NoError(t, err)
	if prepare != nil {
		prepare(ci)
	}
	require.NoError(t, ci.Execute(t.Context(), consumer))
	require.NotNil(t, consumer.unit)
	return consumer.unit.Decls()
}

func TestDecls_TopLevel(t *testing.T) {
	t.Parallel()

	decls := parseUnit(t, map[string]string{"main.c": declSource}, Config{}, nil, &unitConsumer{})
	assert.Equal(t, []string{"MAX_ITEMS", "point", "Point", "color", "counter", "shared", "helper", "add", "Anon", "Anon"}, declNames(decls))

	tests := []struct {
		name string
		kind frontend.DeclKind
		usr  string
		def  bool
		line int
	}{
		{name: "MAX_ITEMS", kind: frontend.DeclMacro, usr: "c:@macro@MAX_ITEMS", def: true, line: 1},
		{name: "point", kind: frontend.DeclStruct, usr: "c:@S@point", def: true, line: 4},
		{name: "x", kind: frontend.DeclField, usr: "c:@S@point@FI@x", def: true, line: 5},
		{name: "Point", kind: frontend.DeclTypedef, usr: "c:@T@Point", def: true, line: 9},
		{name: "color", kind: frontend.DeclEnum, usr: "c:@E@color", def: true, line: 11},
		{name: "GREEN", kind: frontend.DeclEnumerator, usr: "c:@E@color@GREEN", def: true, line: 11},
		{name: "counter", kind: frontend.DeclVariable, usr: "c:@counter", def: true, line: 14},
		{name: "shared", kind: frontend.DeclVariable, usr: "c:@shared", def: false, line: 16},
		{name: "helper", kind: frontend.DeclFunction, usr: "c:@F@helper", def: false, line: 18},
		{name: "add", kind: frontend.DeclFunction, usr: "c:@F@add", def: true, line: 21},
		{name: "scratch", kind: frontend.DeclStruct, usr: "c:@F@add@S@scratch", def: true, line: 22},
		{name: "total", kind: frontend.DeclVariable, usr: "c:@F@add@total", def: true, line: 23},
	}
	for _, tt := range tests {
		d := findDecl(decls, tt.name)
		require.NotNil(t, d, tt.name)
		assert.Equal(t, tt.kind, d.Kind(), tt.name)
		assert.Equal(t, tt.usr, d.USR(), tt.name)
		assert.Equal(t, tt.def, d.IsDefinition(), tt.name)
		assert.Equal(t, tt.line, d.Location().Line, tt.name)
		assert.Equal(t, "main.c", base(d.Location().File), tt.name)
	}

	add := findDecl(decls, "add")
	assert.Equal(t, 5, add.Location().Column)
	assert.Nil(t, add.Parent())
	assert.Equal(t, []string{"scratch", "total"}, declNames(add.Children()))
	assert.Equal(t, "add", findDecl(decls, "total").Parent().Name())
	assert.Equal(t, []string{"x", "y"}, declNames(findDecl(decls, "point").Children()))
	assert.Equal(t, []string{"RED", "GREEN"}, declNames(findDecl(decls, "color").Children()))
	assert.Empty(t, add.Relations())
}

func TestDecls_Occurrences(t *testing.T) {
	t.Parallel()

	decls := parseUnit(t, map[string]string{"main.c": declSource}, Config{}, nil, &unitConsumer{})

	add := findDecl(decls, "add")
	assert.Equal(t, []string{"c:@T@Point", "c:@F@helper"}, occurrenceUSRs(add))
	call := add.Occurrences()[1]
	assert.True(t, call.Roles.Has(frontend.RoleCall))
	assert.True(t, call.Roles.Has(frontend.RoleReference))
	assert.Equal(t, 24, call.Location.Line)

	assert.Equal(t, []string{"c:@F@helper"}, occurrenceUSRs(findDecl(decls, "total")))
	assert.Equal(t, []string{"c:@S@point"}, occurrenceUSRs(findDecl(decls, "Point")))
	assert.Empty(t, findDecl(decls, "counter").Occurrences())
}

func TestDecls_Documentation(t *testing.T) {
	t.Parallel()

	// Test: only documentation comments by default
	decls := parseUnit(t, map[string]string{"main.c": declSource}, Config{}, nil, &unitConsumer{})
	assert.Equal(t, "A point in space.", findDecl(decls, "point").Documentation())
	assert.Equal(t, "Adds numbers.", findDecl(decls, "add").Documentation())
	assert.Empty(t, findDecl(decls, "counter").Documentation())

	// Test: every comment when ParseAllComments is set
	decls = parseUnit(t, map[string]string{"main.c": declSource}, Config{}, func(ci *Instance) {
		ci.Options().ParseAllComments = true
	}, &unitConsumer{})
	assert.Equal(t, "plain comment", findDecl(decls, "counter").Documentation())
}

func TestDecls_SystemHeaderComments(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.c":    "#include <sys.h>\n",
		"sys/sys.h": "/** System doc. */\nint sysfn(void);\n",
	}
	system := func(dir string) Config { return Config{SystemIncludeDirs: []string{filepath.Join(dir, "sys")}} }

	dir := t.TempDir()
	writeFiles(t, dir, files)

	for _, retain := range []bool{false, true} {
		ci, err := NewInstance(filepath.Join(dir, "main.c"), system(dir))
		require.NoError(t, err)
		ci.Options().RetainCommentsFromSystemHeaders = retain
		consumer := &unitConsumer{}
		require.NoError(t, ci.Execute(t.Context(), consumer))

		d := findDecl(consumer.unit.Decls(), "sysfn")
		require.NotNil(t, d)
		assert.True(t, d.Location().File.IsSystem())
		if retain {
			assert.Equal(t, "System doc.", d.Documentation())
		} else {
			assert.Empty(t, d.Documentation())
		}
	}
}

func TestDecls_SkipFunctionBodies(t *testing.T) {
	t.Parallel()

	// Test: bodies are parsed when skipping is off, and the consumer is not asked
	consumer := &unitConsumer{skip: func(frontend.Decl) bool { return true }}
	decls := parseUnit(t, map[string]string{"main.c": declSource}, Config{}, nil, consumer)
	assert.Len(t, findDecl(decls, "add").Children(), 2)
	assert.Empty(t, consumer.asked)

	// Test: the consumer decides per function when skipping is on
	consumer = &unitConsumer{skip: func(d frontend.Decl) bool { return d.Name() == "add" }}
	decls = parseUnit(t, map[string]string{"main.c": declSource}, Config{}, func(ci *Instance) {
		ci.Options().SkipFunctionBodies = true
	}, consumer)
	add := findDecl(decls, "add")
	assert.Empty(t, add.Children())
	assert.Equal(t, []string{"c:@T@Point"}, occurrenceUSRs(add))
	assert.Equal(t, []string{"add"}, consumer.asked)
	assert.Nil(t, findDecl(decls, "total"))
}

func TestDecls_AnonymousTypedefStruct(t *testing.T) {
	t.Parallel()

	decls := parseUnit(t, map[string]string{"main.c": declSource}, Config{}, nil, &unitConsumer{})

	var anon []frontend.Decl
	for _, d := range decls {
		if d.Name() == "Anon" {
			anon = append(anon, d)
		}
	}
	require.Len(t, anon, 2)
	assert.Equal(t, frontend.DeclStruct, anon[0].Kind())
	assert.Equal(t, "c:@SA@Anon", anon[0].USR())
	assert.Equal(t, "c:@SA@Anon@FI@a", anon[0].Children()[0].USR())
	assert.Equal(t, frontend.DeclTypedef, anon[1].Kind())
	assert.Equal(t, "c:@T@Anon", anon[1].USR())
}

func TestIsDocComment(t *testing.T) {
	t.Parallel()

	assert.True(t, isDocComment("/** doc */"))
	assert.True(t, isDocComment("/// doc"))
	assert.True(t, isDocComment("//! doc"))
	assert.True(t, isDocComment("/*! doc */"))
	assert.False(t, isDocComment("/* plain */"))
	assert.False(t, isDocComment("// plain"))
	assert.False(t, isDocComment("/**/"))
	assert.False(t, isDocComment("//// banner"))
}
