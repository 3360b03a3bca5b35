// Package indexer indexes many translation units concurrently, one
// index.Action per unit, forwarding each unit's batches to a Sink.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/cortex-index/internal/frontend/csource"
	"github.com/mvp-joe/cortex-index/internal/includegraph"
	"github.com/mvp-joe/cortex-index/internal/index"
	"github.com/mvp-joe/cortex-index/internal/symbols"
	"github.com/mvp-joe/cortex-index/internal/uri"
)

// Sink receives the results of each unit. storage.Writer implements it.
type Sink interface {
	// BeginUnit starts a run for the unit and returns its id.
	BeginUnit(mainURI string) (string, error)
	WriteSymbols(unitID string, slab symbols.SymbolSlab) error
	WriteRefs(unitID string, slab symbols.RefSlab) error
	WriteRelations(unitID string, slab symbols.RelationSlab) error
	WriteIncludeGraph(unitID string, g *includegraph.Graph) error
	// FinishUnit is called after every batch of the unit was written. It
	// replaces the unit's earlier runs.
	FinishUnit(unitID string) error
	// AbortUnit discards a run that failed, keeping the earlier runs.
	AbortUnit(unitID string) error
}

// Outputs selects the batches produced for each unit. Symbols are always
// collected; the flag controls whether they reach the sink.
type Outputs struct {
	Symbols      bool
	Refs         bool
	Relations    bool
	IncludeGraph bool
}

// Options configure an Indexer.
type Options struct {
	// Frontend is shared by every unit's instance. A nil file manager or
	// content cache is created by New.
	Frontend csource.Config
	Outputs  Outputs

	// Origin is attached to every symbol. Unknown selects static.
	Origin symbols.Origin
	// Indexing overrides the static indexing defaults when set.
	Indexing *index.IndexingOptions
	// StoreAllDocumentation keeps documentation of function locals. It
	// only applies together with Indexing.
	StoreAllDocumentation bool

	Checked     bool
	Concurrency int

	// MaxDepth is the declaration nesting threshold. Nil selects
	// traversal.DefaultMaxDepth; zero keeps top-level declarations only.
	MaxDepth *int

	Sink     Sink
	Progress ProgressReporter
	Logger   *log.Logger
}

// Stats summarizes one IndexUnits call.
type Stats struct {
	Units        int
	Failed       int
	Symbols      int
	Refs         int
	Relations    int
	IncludeNodes int
	IncludeEdges int
	Duration     time.Duration
}

// Indexer runs units concurrently. Units share the file manager, the
// content cache and the header claims; nothing else.
type Indexer struct {
	opts      Options
	claims    *symbols.FileClaims
	ownsCache bool
	logger    *log.Logger

	mu     sync.Mutex
	units  map[string]string // main URI -> path
	graphs map[string]*includegraph.Graph

	progressMu sync.Mutex
}

// New creates an indexer.
func New(opts Options) (*Indexer, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Progress == nil {
		opts.Progress = &NoOpProgressReporter{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Frontend.Files == nil {
		opts.Frontend.Files = csource.NewFileManager()
	}
	if opts.Frontend.Logger == nil {
		opts.Frontend.Logger = opts.Logger
	}

	idx := &Indexer{
		opts:   opts,
		claims: symbols.NewFileClaims(),
		logger: opts.Logger,
		units:  make(map[string]string),
		graphs: make(map[string]*includegraph.Graph),
	}
	if opts.Frontend.Cache == nil {
		cache, err := csource.NewContentCache(0)
		if err != nil {
			return nil, err
		}
		idx.opts.Frontend.Cache = cache
		idx.ownsCache = true
	}
	return idx, nil
}

// Close releases the content cache if the indexer created it.
func (idx *Indexer) Close() {
	if idx.ownsCache {
		idx.opts.Frontend.Cache.Close()
	}
}

// Claims returns the header ownership table shared by all units.
func (idx *Indexer) Claims() *symbols.FileClaims {
	return idx.claims
}

// Graph returns the most recent include graph of the unit whose main file is
// at path.
func (idx *Indexer) Graph(path string) (*includegraph.Graph, bool) {
	u, ok := pathURI(path)
	if !ok {
		return nil, false
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	g, ok := idx.graphs[u]
	return g, ok
}

// IndexUnits indexes every unit, at most Concurrency at a time. A failing
// unit does not stop the others; all unit errors are joined into the
// returned error alongside the stats.
func (idx *Indexer) IndexUnits(ctx context.Context, units []string) (*Stats, error) {
	start := time.Now()
	stats := &Stats{Units: len(units)}
	idx.opts.Progress.OnUnitsStart(len(units))

	var (
		statsMu sync.Mutex
		errs    []error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.opts.Concurrency)
	for _, unit := range units {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := idx.indexUnit(ctx, unit)

			statsMu.Lock()
			if err != nil {
				stats.Failed++
				errs = append(errs, fmt.Errorf("%s: %w", unit, err))
			}
			stats.add(res)
			statsMu.Unlock()

			idx.progressMu.Lock()
			idx.opts.Progress.OnUnitIndexed(unit, err)
			idx.progressMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	stats.Duration = time.Since(start)
	idx.opts.Progress.OnComplete(stats)
	idx.logger.Info("indexing complete",
		"units", stats.Units,
		"failed", stats.Failed,
		"symbols", stats.Symbols,
		"duration", stats.Duration.Round(time.Millisecond),
	)
	return stats, errors.Join(errs...)
}

type unitResult struct {
	symbols, refs, relations int
	nodes, edges             int
}

func (s *Stats) add(r unitResult) {
	s.Symbols += r.symbols
	s.Refs += r.refs
	s.Relations += r.relations
	s.IncludeNodes += r.nodes
	s.IncludeEdges += r.edges
}

func (idx *Indexer) indexUnit(ctx context.Context, path string) (unitResult, error) {
	var res unitResult

	abs, err := filepath.Abs(path)
	if err != nil {
		return res, err
	}
	mainURI, ok := pathURI(abs)
	if !ok {
		return res, fmt.Errorf("no uri for %s", abs)
	}

	idx.mu.Lock()
	idx.units[mainURI] = abs
	idx.mu.Unlock()
	// A re-indexed unit competes for its headers again.
	idx.claims.Release(mainURI)

	ci, err := csource.NewInstance(abs, idx.opts.Frontend)
	if err != nil {
		return res, err
	}

	sink := idx.opts.Sink
	var unitID string
	if sink != nil {
		if unitID, err = sink.BeginUnit(mainURI); err != nil {
			return res, fmt.Errorf("begin unit: %w", err)
		}
	}

	var writeErrs []error
	write := func(err error) {
		if err != nil {
			writeErrs = append(writeErrs, err)
		}
	}

	out := idx.opts.Outputs
	var cb index.Callbacks
	if out.Symbols {
		cb.Symbols = func(s symbols.SymbolSlab) {
			res.symbols = s.Len()
			if sink != nil {
				write(sink.WriteSymbols(unitID, s))
			}
		}
	}
	if out.Refs {
		cb.Refs = func(r symbols.RefSlab) {
			res.refs = r.Len()
			if sink != nil {
				write(sink.WriteRefs(unitID, r))
			}
		}
	}
	if out.Relations {
		cb.Relations = func(r symbols.RelationSlab) {
			res.relations = r.Len()
			if sink != nil {
				write(sink.WriteRelations(unitID, r))
			}
		}
	}
	if out.IncludeGraph {
		cb.IncludeGraph = func(g *includegraph.Graph) {
			res.nodes, res.edges = g.Len(), g.EdgeCount()
			idx.mu.Lock()
			idx.graphs[mainURI] = g
			idx.mu.Unlock()
			if sink != nil {
				write(sink.WriteIncludeGraph(unitID, g))
			}
		}
	}

	action := idx.newAction(mainURI, cb)
	err = action.Run(ctx, ci)
	if err == nil {
		err = errors.Join(writeErrs...)
	}
	if err != nil {
		if sink != nil {
			if abortErr := sink.AbortUnit(unitID); abortErr != nil {
				idx.logger.Warn("failed to discard partial run", "unit", abs, "err", abortErr)
			}
		}
		return res, err
	}
	if sink != nil {
		if err := sink.FinishUnit(unitID); err != nil {
			return res, fmt.Errorf("finish unit: %w", err)
		}
	}

	idx.logger.Debug("unit indexed", "unit", abs, "symbols", res.symbols, "refs", res.refs, "files", res.nodes)
	return res, nil
}

func (idx *Indexer) newAction(mainURI string, cb index.Callbacks) *index.Action {
	opts := []index.Option{
		index.WithChecks(idx.opts.Checked),
		index.WithLogger(idx.logger),
	}
	if idx.opts.MaxDepth != nil {
		opts = append(opts, index.WithMaxDepth(*idx.opts.MaxDepth))
	}
	collectorOpts := symbols.Options{
		Origin: idx.opts.Origin,
		Claims: idx.claims,
		Unit:   mainURI,
	}
	if idx.opts.Indexing == nil {
		return index.NewStaticIndexingAction(collectorOpts, cb, opts...)
	}

	if collectorOpts.Origin == symbols.OriginUnknown {
		collectorOpts.Origin = symbols.OriginStatic
	}
	collectorOpts.CollectIncludePath = true
	collectorOpts.StoreAllDocumentation = idx.opts.StoreAllDocumentation
	if cb.Refs != nil {
		collectorOpts.RefFilter = symbols.RefAll
		collectorOpts.RefsInHeaders = true
	}
	collectorOpts.CollectRelations = cb.Relations != nil
	collectorOpts.Pragmas = symbols.NewPragmaIncludes()
	opts = append(opts, index.WithPragmaIncludes(collectorOpts.Pragmas))
	return index.NewAction(symbols.NewCollector(collectorOpts), *idx.opts.Indexing, cb, opts...)
}

// Units returns the paths of every unit indexed so far, sorted.
func (idx *Indexer) Units() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]string, 0, len(idx.units))
	for _, p := range idx.units {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// AffectedUnits returns the known units that must be re-indexed after the
// files at changed were modified: units whose main file changed and units
// whose include graph reaches a changed file. A unit without a retained
// graph is treated as affected by any change.
func (idx *Indexer) AffectedUnits(changed []string) []string {
	var uris []string
	for _, p := range changed {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if u, ok := pathURI(abs); ok {
			uris = append(uris, u)
		}
	}
	return idx.unitsReaching(uris)
}

// unitsReaching returns the paths of the known units whose main file is one
// of uris or whose include graph reaches one of them.
func (idx *Indexer) unitsReaching(uris []string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	affected := make(map[string]bool)
	for _, changedURI := range uris {
		for mainURI, unitPath := range idx.units {
			if affected[unitPath] {
				continue
			}
			if mainURI == changedURI {
				affected[unitPath] = true
				continue
			}
			g, ok := idx.graphs[mainURI]
			if !ok {
				affected[unitPath] = true
				continue
			}
			includers, err := g.Includers(changedURI)
			if err != nil {
				idx.logger.Warn("include graph query failed", "unit", unitPath, "err", err)
				affected[unitPath] = true
				continue
			}
			for _, inc := range includers {
				if inc == mainURI {
					affected[unitPath] = true
					break
				}
			}
		}
	}

	out := make([]string, 0, len(affected))
	for p := range affected {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Forget drops a unit whose main file was removed. It returns the unit's
// URI and the URIs of the files it owned, which no unit owns any more.
func (idx *Indexer) Forget(path string) (string, []string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, false
	}
	u, ok := pathURI(abs)
	if !ok {
		return "", nil, false
	}
	idx.mu.Lock()
	delete(idx.units, u)
	delete(idx.graphs, u)
	idx.mu.Unlock()
	return u, idx.claims.Release(u), true
}

// pathURI returns the URI of path with symlinks resolved, matching the URIs
// the front-end assigns to files. A path that no longer exists is resolved
// through its directory.
func pathURI(path string) (string, bool) {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	} else if dir, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		path = filepath.Join(dir, filepath.Base(path))
	}
	return uri.FromPath(path)
}
