// Package fronttest provides in-memory front-end fakes for tests.
package fronttest

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/mvp-joe/cortex-index/internal/frontend"
)

// ErrNoContent is returned by SourceManager.Content for files without content.
var ErrNoContent = errors.New("no content")

// File is a fake frontend.File.
type File struct {
	FileName string
	Path     string
	System   bool
}

func (f *File) Name() string     { return f.FileName }
func (f *File) RealPath() string { return f.Path }
func (f *File) IsSystem() bool   { return f.System }

// NewFile returns a file whose real path is the given absolute path.
func NewFile(p string) *File {
	return &File{FileName: path.Base(p), Path: p}
}

// Synthetic returns a file with no real path.
func Synthetic(name string) *File {
	return &File{FileName: name}
}

// SourceManager is a fake frontend.SourceManager backed by a map.
type SourceManager struct {
	Main     frontend.File
	Contents map[frontend.File][]byte
	Reads    int
}

// NewSourceManager creates a source manager whose main file is main.
func NewSourceManager(main frontend.File) *SourceManager {
	return &SourceManager{Main: main, Contents: make(map[frontend.File][]byte)}
}

// Set records the content of f.
func (s *SourceManager) Set(f frontend.File, content string) {
	s.Contents[f] = []byte(content)
}

func (s *SourceManager) MainFile() frontend.File { return s.Main }

func (s *SourceManager) Content(f frontend.File) ([]byte, error) {
	s.Reads++
	b, ok := s.Contents[f]
	if !ok {
		return nil, ErrNoContent
	}
	return b, nil
}

// Decl is a fake frontend.Decl.
type Decl struct {
	DeclKind frontend.DeclKind
	DeclName string
	DeclUSR  string
	Up       *Decl
	Kids     []*Decl
	Loc      frontend.Location
	Def      bool
	Doc      string
	Occurs   []frontend.Occurrence
	Rels     []frontend.Relation
}

// NewDecl creates a declaration located in f.
func NewDecl(kind frontend.DeclKind, name string, f frontend.File) *Decl {
	return &Decl{
		DeclKind: kind,
		DeclName: name,
		DeclUSR:  "c:@" + name,
		Loc:      frontend.Location{File: f, Line: 1, Column: 1},
	}
}

// Add attaches children to d and returns d.
func (d *Decl) Add(children ...*Decl) *Decl {
	for _, c := range children {
		c.Up = d
		d.Kids = append(d.Kids, c)
	}
	return d
}

func (d *Decl) Kind() frontend.DeclKind { return d.DeclKind }
func (d *Decl) Name() string            { return d.DeclName }
func (d *Decl) USR() string             { return d.DeclUSR }

func (d *Decl) Parent() frontend.Decl {
	if d.Up == nil {
		return nil
	}
	return d.Up
}

func (d *Decl) Children() []frontend.Decl {
	out := make([]frontend.Decl, len(d.Kids))
	for i, k := range d.Kids {
		out[i] = k
	}
	return out
}

func (d *Decl) Location() frontend.Location        { return d.Loc }
func (d *Decl) IsDefinition() bool                 { return d.Def }
func (d *Decl) Documentation() string              { return d.Doc }
func (d *Decl) Occurrences() []frontend.Occurrence { return d.Occurs }
func (d *Decl) Relations() []frontend.Relation     { return d.Rels }

// Chain builds a nesting chain of depth n (the returned decl has n enclosing
// declarations) located in f, and returns the outermost and innermost decls.
func Chain(n int, f frontend.File) (outer, inner *Decl) {
	outer = NewDecl(frontend.DeclStruct, "d0", f)
	inner = outer
	for i := 1; i <= n; i++ {
		next := NewDecl(frontend.DeclStruct, fmt.Sprintf("d%d", i), f)
		inner.Add(next)
		inner = next
	}
	return outer, inner
}

// Event is a recorded preprocessing event.
type Event struct {
	Kind      string
	File      frontend.File
	Including frontend.File
}

// Event kinds.
const (
	EventEnter   = "enter"
	EventInclude = "include"
	EventSkip    = "skip"
)

// Enter, Include and Skip build events for Instance.Events and Replay.
func Enter(f frontend.File) Event { return Event{Kind: EventEnter, File: f} }
func Include(from, to frontend.File) Event { return Event{Kind: EventInclude, Including: from, File: to} }
func Skip(f frontend.File) Event { return Event{Kind: EventSkip, File: f} }

// Replay delivers events to o in order.
func Replay(o frontend.PPObserver, events ...Event) {
	for _, e := range events {
		switch e.Kind {
		case EventEnter:
			o.FileEntered(e.File)
		case EventInclude:
			o.InclusionDirective(e.Including, e.File)
		case EventSkip:
			o.FileSkipped(e.File)
		}
	}
}

// TranslationUnit is a fake frontend.TranslationUnit.
type TranslationUnit struct {
	Main     frontend.File
	TopLevel []*Decl
}

func (t *TranslationUnit) MainFile() frontend.File { return t.Main }

func (t *TranslationUnit) Decls() []frontend.Decl {
	out := make([]frontend.Decl, len(t.TopLevel))
	for i, d := range t.TopLevel {
		out[i] = d
	}
	return out
}

// Instance is a scripted frontend.Instance: Execute replays Events to every
// observer and then hands Unit to the consumer.
type Instance struct {
	Opts      frontend.Options
	SM        *SourceManager
	Observers []frontend.PPObserver
	Events    []Event
	Unit      *TranslationUnit
	Err       error
	Executed  int
}

// NewInstance creates a scripted instance for main.
func NewInstance(main frontend.File) *Instance {
	return &Instance{
		SM:   NewSourceManager(main),
		Unit: &TranslationUnit{Main: main},
	}
}

func (i *Instance) Options() *frontend.Options            { return &i.Opts }
func (i *Instance) SourceManager() frontend.SourceManager { return i.SM }
func (i *Instance) AddPPObserver(o frontend.PPObserver)   { i.Observers = append(i.Observers, o) }

func (i *Instance) Execute(ctx context.Context, c frontend.Consumer) error {
	i.Executed++
	if i.Err != nil {
		return i.Err
	}
	if c != nil {
		c.Initialize(i.Unit.Main)
	}
	for _, o := range i.Observers {
		Replay(o, i.Events...)
	}
	if c != nil {
		c.HandleTranslationUnit(i.Unit)
	}
	return nil
}
