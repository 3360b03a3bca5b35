package includegraph

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/mvp-joe/cortex-index/internal/frontend"
	"github.com/mvp-joe/cortex-index/internal/uri"
)

// Builder collects the nodes and edges of the include graph from
// preprocessing events. The resulting graph may contain cycles and self edges.
//
// Nodes are populated on enter, edges are added on inclusion directives. The
// two arrive in either order: a directive only knows the included file's
// identity, not its contents.
type Builder struct {
	sm      frontend.SourceManager
	graph   *Graph
	mainURI string
	checked bool
	logger  *log.Logger
	entered map[string]struct{}
}

var _ frontend.PPObserver = (*Builder)(nil)

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithChecks turns invariant violations into panics.
func WithChecks(enabled bool) BuilderOption {
	return func(b *Builder) {
		b.checked = enabled
	}
}

// WithLogger sets the logger used to report tolerated violations.
func WithLogger(logger *log.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a builder recording into g.
func NewBuilder(sm frontend.SourceManager, g *Graph, opts ...BuilderOption) *Builder {
	b := &Builder{
		sm:      sm,
		graph:   g,
		logger:  log.New(io.Discard),
		entered: make(map[string]struct{}),
	}
	if main, ok := uri.FromFile(sm.MainFile()); ok {
		b.mainURI = main
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Graph returns the graph being built.
func (b *Builder) Graph() *Graph {
	return b.graph
}

// FileEntered populates everything except the direct includes of a node.
func (b *Builder) FileEntered(f frontend.File) {
	u, ok := uri.FromFile(f)
	if !ok {
		return
	}
	b.entered[u] = struct{}{}
	node := b.graph.ensure(u)

	if node.Populated {
		if b.checked {
			b.fail(CheckReentry(node, b.digest(f)))
		}
		return
	}

	node.Digest = b.digest(f)
	if u == b.mainURI {
		node.Flags |= FlagIsTU
	}
	node.Populated = true
}

// InclusionDirective adds an edge from the including file to the included one.
func (b *Builder) InclusionDirective(including, included frontend.File) {
	includedURI, ok := uri.FromFile(included)
	if !ok {
		return
	}
	includingURI, ok := uri.FromFile(including)
	if !ok {
		return
	}
	b.graph.addEdge(includingURI, includedURI)
}

// FileSkipped only checks that the skipped file was already populated.
func (b *Builder) FileSkipped(f frontend.File) {
	if !b.checked {
		return
	}
	u, ok := uri.FromFile(f)
	if !ok {
		return
	}
	b.fail(CheckSkipped(b.graph, u))
}

// Verify runs the finalization parity check over every entered file.
func (b *Builder) Verify() error {
	entered := make([]string, 0, len(b.entered))
	for u := range b.entered {
		entered = append(entered, u)
	}
	return CheckParity(b.graph, entered)
}

func (b *Builder) digest(f frontend.File) *FileDigest {
	content, err := b.sm.Content(f)
	if err != nil {
		b.logger.Debug("cannot digest file", "file", f.Name(), "err", err)
		return nil
	}
	d := DigestBytes(content)
	return &d
}

func (b *Builder) fail(err error) {
	if err == nil {
		return
	}
	if b.checked {
		panic(err)
	}
	b.logger.Debug("include graph inconsistency", "err", err)
}
