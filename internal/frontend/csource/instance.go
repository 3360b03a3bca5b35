package csource

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/mvp-joe/cortex-index/internal/frontend"
)

// ErrAlreadyExecuted is returned when an instance is executed twice.
var ErrAlreadyExecuted = errors.New("instance already executed")

// Config holds the settings shared by the instances of a build.
type Config struct {
	// IncludeDirs are searched for quoted and angled includes.
	IncludeDirs []string
	// SystemIncludeDirs are searched last; files found there are system headers.
	SystemIncludeDirs []string
	// MaxIncludeDepth bounds include nesting. Zero selects DefaultMaxIncludeDepth.
	MaxIncludeDepth int
	// WarningsAsErrors fails a unit that produced warnings.
	WarningsAsErrors bool

	// Files uniques files across instances. Nil gives each instance its own.
	Files *FileManager
	// Cache shares file contents across instances. Nil reads from disk.
	Cache *ContentCache
	// Logger receives diagnostics at debug level. Nil discards them.
	Logger *log.Logger
}

// Instance parses one translation unit.
type Instance struct {
	cfg       Config
	opts      frontend.Options
	main      *File
	sm        *SourceManager
	observers []frontend.PPObserver
	diags     diagnostics
	logger    *log.Logger
	executed  bool
}

var _ frontend.Instance = (*Instance)(nil)

// NewInstance creates an instance for the unit whose main file is mainPath.
func NewInstance(mainPath string, cfg Config) (*Instance, error) {
	if cfg.Files == nil {
		cfg.Files = NewFileManager()
	}
	if cfg.MaxIncludeDepth <= 0 {
		cfg.MaxIncludeDepth = DefaultMaxIncludeDepth
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	main, err := cfg.Files.GetFile(mainPath, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open unit %s: %w", mainPath, err)
	}
	return &Instance{
		cfg:    cfg,
		opts:   frontend.Options{WarningsAsErrors: cfg.WarningsAsErrors},
		main:   main,
		sm:     NewSourceManager(main, cfg.Cache),
		logger: logger,
	}, nil
}

func (i *Instance) Options() *frontend.Options {
	return &i.opts
}

func (i *Instance) SourceManager() frontend.SourceManager {
	return i.sm
}

func (i *Instance) AddPPObserver(o frontend.PPObserver) {
	i.observers = append(i.observers, o)
}

// MainFile returns the unit's main file.
func (i *Instance) MainFile() *File {
	return i.main
}

// Diagnostics returns the problems reported by Execute.
func (i *Instance) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), i.diags.list...)
}

// Execute preprocesses and parses the unit, then hands it to c.
func (i *Instance) Execute(ctx context.Context, c frontend.Consumer) error {
	if i.executed {
		return ErrAlreadyExecuted
	}
	i.executed = true

	if c != nil {
		c.Initialize(i.main)
	}

	p := &preprocessor{
		files:       i.cfg.Files,
		sm:          i.sm,
		observers:   i.observers,
		includeDirs: i.cfg.IncludeDirs,
		systemDirs:  i.cfg.SystemIncludeDirs,
		maxDepth:    i.cfg.MaxIncludeDepth,
		comments: commentPolicy{
			parseAll:     i.opts.ParseAllComments,
			retainSystem: i.opts.RetainCommentsFromSystemHeaders,
		},
		diags:  &i.diags,
		logger: i.logger,
	}
	if i.opts.SkipFunctionBodies && c != nil {
		p.skipBody = func(d *Decl) bool { return c.ShouldSkipFunctionBody(d) }
	}

	if err := p.run(ctx, i.main); err != nil {
		return err
	}
	for _, d := range i.diags.list {
		i.logger.Debug("diagnostic", "unit", i.main.name, "diag", d.String())
	}
	if err := i.diags.promote(i.opts.WarningsAsErrors, i.opts.IgnoreWarnings); err != nil {
		return err
	}

	if c != nil {
		c.HandleTranslationUnit(&translationUnit{main: i.main, decls: p.decls})
	}
	return nil
}

type translationUnit struct {
	main  *File
	decls []*Decl
}

func (t *translationUnit) MainFile() frontend.File {
	return t.main
}

func (t *translationUnit) Decls() []frontend.Decl {
	out := make([]frontend.Decl, len(t.decls))
	for i, d := range t.decls {
		out[i] = d
	}
	return out
}
