// Package index drives the indexing of one translation unit: it configures the
// front-end, walks declarations into a collector, optionally records the
// include graph, and hands each batch to its callback when the unit ends.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/mvp-joe/cortex-index/internal/frontend"
	"github.com/mvp-joe/cortex-index/internal/includegraph"
	"github.com/mvp-joe/cortex-index/internal/symbols"
	"github.com/mvp-joe/cortex-index/internal/traversal"
)

// ErrInvalidTransition is returned when a lifecycle step is called out of order.
var ErrInvalidTransition = errors.New("invalid action state transition")

// State is the lifecycle position of an Action.
type State int

const (
	StateConfigured State = iota
	StateInvoked
	StateConsuming
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateInvoked:
		return "invoked"
	case StateConsuming:
		return "consuming"
	case StateFinalized:
		return "finalized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Collector receives declarations and occurrences for a unit and hands out
// the accumulated batches once.
type Collector interface {
	// Initialize is called with the unit's main file before any declaration.
	Initialize(main frontend.File)

	// ShouldIndexFile reports whether declarations in f belong to this unit.
	ShouldIndexFile(f frontend.File) bool

	// HandleDecl records a declaration.
	HandleDecl(d frontend.Decl)

	// HandleOccurrence records a reference spelled inside container.
	HandleOccurrence(container frontend.Decl, occ frontend.Occurrence)

	// ShouldCollectOccurrences reports whether occurrences are wanted at all.
	ShouldCollectOccurrences() bool

	TakeSymbols() (symbols.SymbolSlab, error)
	TakeRefs() (symbols.RefSlab, error)
	TakeRelations() (symbols.RelationSlab, error)
}

// Callbacks receive the batches of a unit. Each is optional; a nil callback
// disables the corresponding output.
type Callbacks struct {
	Symbols      func(symbols.SymbolSlab)
	Refs         func(symbols.RefSlab)
	Relations    func(symbols.RelationSlab)
	IncludeGraph func(*includegraph.Graph)
}

// IndexingOptions control which declarations reach the collector.
type IndexingOptions struct {
	SystemSymbolFilter  symbols.SystemSymbolFilter
	IndexFunctionLocals bool
}

// Option configures an Action.
type Option func(*Action)

// WithChecks enables invariant checks that panic on violation.
func WithChecks(enabled bool) Option {
	return func(a *Action) {
		a.checked = enabled
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *log.Logger) Option {
	return func(a *Action) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithPragmaIncludes records IWYU pragmas into pi while the unit is
// preprocessed.
func WithPragmaIncludes(pi *symbols.PragmaIncludes) Option {
	return func(a *Action) {
		a.pragmas = pi
	}
}

// WithMaxDepth sets the declaration nesting threshold of the traversal filter.
// Zero keeps top-level declarations only.
func WithMaxDepth(depth int) Option {
	return func(a *Action) {
		a.maxDepth = depth
	}
}

// Action indexes exactly one translation unit. It is not reentrant; run
// concurrent units with separate actions and separate front-end instances.
type Action struct {
	collector Collector
	opts      IndexingOptions
	callbacks Callbacks

	checked  bool
	maxDepth int
	pragmas  *symbols.PragmaIncludes
	logger   *log.Logger

	state   State
	builder *includegraph.Builder
}

// NewAction creates an action feeding c.
func NewAction(c Collector, opts IndexingOptions, cb Callbacks, options ...Option) *Action {
	a := &Action{
		collector: c,
		opts:      opts,
		callbacks: cb,
		maxDepth:  traversal.DefaultMaxDepth,
		logger:    log.New(io.Discard),
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// State returns the current lifecycle state.
func (a *Action) State() State {
	return a.state
}

// Builder returns the include graph builder, or nil when no include graph
// callback is registered or the consumer has not been created yet.
func (a *Action) Builder() *includegraph.Builder {
	return a.builder
}

func (a *Action) advance(from, to State) error {
	if a.state != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidTransition, from, to, a.state)
	}
	a.state = to
	return nil
}

// BeginInvocation adjusts the front-end options for indexing: every comment
// is retained, warnings never stop the unit, and function bodies may be
// skipped in files another unit already owns.
func (a *Action) BeginInvocation(ci frontend.Instance) error {
	if err := a.advance(StateConfigured, StateInvoked); err != nil {
		return err
	}
	o := ci.Options()
	o.ParseAllComments = true
	o.RetainCommentsFromSystemHeaders = true
	o.IgnoreWarnings = true
	o.SkipFunctionBodies = true
	return nil
}

// CreateConsumer returns the declaration consumer for ci. The include graph
// builder is attached to the preprocessor only when an include graph
// callback is registered.
func (a *Action) CreateConsumer(ci frontend.Instance) (frontend.Consumer, error) {
	if err := a.advance(StateInvoked, StateConsuming); err != nil {
		return nil, err
	}
	if a.pragmas != nil {
		a.pragmas.Record(ci)
	}
	if a.callbacks.IncludeGraph != nil {
		a.builder = includegraph.NewBuilder(ci.SourceManager(), includegraph.New(),
			includegraph.WithChecks(a.checked),
			includegraph.WithLogger(a.logger),
		)
		ci.AddPPObserver(a.builder)
	}
	return newConsumer(a.collector, a.opts, traversal.New(a.maxDepth, a.collector), a.logger), nil
}

// EndSourceFile hands each batch to its callback. Symbols are always taken;
// refs, relations and the include graph only when their callback is set.
func (a *Action) EndSourceFile() error {
	if err := a.advance(StateConsuming, StateFinalized); err != nil {
		return err
	}

	syms, err := a.collector.TakeSymbols()
	if err != nil {
		return err
	}
	if a.callbacks.Symbols != nil {
		a.callbacks.Symbols(syms)
	}

	if a.callbacks.Refs != nil {
		refs, err := a.collector.TakeRefs()
		if err != nil {
			return err
		}
		a.callbacks.Refs(refs)
	}

	if a.callbacks.Relations != nil {
		rels, err := a.collector.TakeRelations()
		if err != nil {
			return err
		}
		a.callbacks.Relations(rels)
	}

	if a.callbacks.IncludeGraph != nil && a.builder != nil {
		if err := a.builder.Verify(); err != nil {
			if a.checked {
				panic(err)
			}
			a.logger.Warn("include graph failed verification", "err", err)
		}
		a.callbacks.IncludeGraph(a.builder.Graph())
	}
	return nil
}

// Run drives the whole lifecycle of the unit on ci.
func (a *Action) Run(ctx context.Context, ci frontend.Instance) error {
	if err := a.BeginInvocation(ci); err != nil {
		return err
	}
	consumer, err := a.CreateConsumer(ci)
	if err != nil {
		return err
	}
	if err := ci.Execute(ctx, consumer); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	return a.EndSourceFile()
}
