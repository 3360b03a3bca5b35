// Package frontend defines the compiler front-end surface the indexer consumes:
// file identities, preprocessing callbacks, declarations, and the instance that
// drives one translation unit.
package frontend

import "context"

// File is a file identity handed out by a front-end.
// Two File values from the same instance refer to the same file iff they are equal.
type File interface {
	// Name is the spelling used to reach the file (may be relative or synthetic).
	Name() string
	// RealPath is the resolved absolute path, or "" when the file has none
	// (built-in buffers, scratch space).
	RealPath() string
	// IsSystem reports whether the file was found through a system include dir.
	IsSystem() bool
}

// SourceManager exposes the files of one translation unit.
type SourceManager interface {
	// MainFile returns the unit's top-level source file.
	MainFile() File
	// Content returns the bytes of f.
	Content(f File) ([]byte, error)
}

// PPObserver receives preprocessing events in front-end order.
type PPObserver interface {
	// FileEntered fires when the preprocessor starts reading a file.
	FileEntered(f File)
	// InclusionDirective fires for every #include. included is nil when the
	// directive could not be resolved.
	InclusionDirective(including, included File)
	// FileSkipped fires when an include is elided because the file is guarded
	// and was already fully processed.
	FileSkipped(f File)
}

// Location is an expansion location inside a file. Line and Column are 1-based.
type Location struct {
	File   File
	Line   int
	Column int
}

// DeclKind names the kind of a declaration.
type DeclKind string

const (
	DeclFunction   DeclKind = "function"
	DeclStruct     DeclKind = "struct"
	DeclUnion      DeclKind = "union"
	DeclEnum       DeclKind = "enum"
	DeclEnumerator DeclKind = "enumerator"
	DeclField      DeclKind = "field"
	DeclTypedef    DeclKind = "typedef"
	DeclVariable   DeclKind = "variable"
	DeclMacro      DeclKind = "macro"
)

// Role is a bitmask describing how a symbol is used at an occurrence.
type Role uint32

const (
	RoleDeclaration Role = 1 << iota
	RoleDefinition
	RoleReference
	RoleCall
	RoleRelationBaseOf
	RoleRelationOverrideOf
)

// Has reports whether all bits of other are set.
func (r Role) Has(other Role) bool {
	return r&other == other
}

// Occurrence is a mention of a symbol spelled inside a declaration.
type Occurrence struct {
	USR      string
	Name     string
	Roles    Role
	Location Location
}

// Relation links a declaration to another symbol, e.g. a base class.
type Relation struct {
	Roles Role
	USR   string
}

// Decl is a node of the declaration tree.
type Decl interface {
	Kind() DeclKind
	Name() string
	// USR is a unified symbol resolution string, stable across units.
	USR() string
	// Parent is the lexically enclosing declaration, nil at translation-unit level.
	Parent() Decl
	Children() []Decl
	Location() Location
	IsDefinition() bool
	Documentation() string
	Occurrences() []Occurrence
	Relations() []Relation
}

// TranslationUnit is the result of parsing one unit.
type TranslationUnit interface {
	MainFile() File
	// Decls returns the top-level declarations of every file in include order.
	Decls() []Decl
}

// Consumer receives the parsed unit.
type Consumer interface {
	// Initialize is called with the main file before parsing starts.
	Initialize(main File)
	HandleTranslationUnit(tu TranslationUnit)
	// ShouldSkipFunctionBody is consulted when Options.SkipFunctionBodies is set.
	ShouldSkipFunctionBody(d Decl) bool
}

// Options are the front-end knobs an action may override before execution.
type Options struct {
	// ParseAllComments keeps plain comments, not only documentation comments.
	ParseAllComments bool
	// RetainCommentsFromSystemHeaders keeps comments attached to system-header decls.
	RetainCommentsFromSystemHeaders bool
	// IgnoreWarnings prevents warnings from failing the unit.
	IgnoreWarnings bool
	// WarningsAsErrors promotes warnings to errors (the -Werror analogue).
	WarningsAsErrors bool
	// SkipFunctionBodies lets the consumer elide bodies it has no use for.
	SkipFunctionBodies bool
}

// Instance drives one translation unit.
type Instance interface {
	Options() *Options
	SourceManager() SourceManager
	AddPPObserver(o PPObserver)
	// Execute preprocesses and parses the unit, reporting to observers and c.
	Execute(ctx context.Context, c Consumer) error
}
