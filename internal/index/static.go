package index

import "github.com/mvp-joe/cortex-index/internal/symbols"

// NewStaticIndexingAction builds an action with a symbols.Collector configured
// for whole-project static indexing. Collector options are relaxed for every
// output that has no callback. IWYU pragmas are recorded and applied to
// include headers unless opts already carries a recorder.
func NewStaticIndexingAction(opts symbols.Options, cb Callbacks, options ...Option) *Action {
	indexOpts := IndexingOptions{
		SystemSymbolFilter:  symbols.SystemSymbolsAll,
		IndexFunctionLocals: true,
	}

	opts.CollectIncludePath = true
	if opts.Origin == symbols.OriginUnknown {
		opts.Origin = symbols.OriginStatic
	}
	opts.StoreAllDocumentation = false
	if cb.Refs != nil {
		opts.RefFilter = symbols.RefAll
		opts.RefsInHeaders = true
	}
	opts.CollectRelations = cb.Relations != nil
	if opts.Pragmas == nil {
		opts.Pragmas = symbols.NewPragmaIncludes()
	}

	options = append([]Option{WithPragmaIncludes(opts.Pragmas)}, options...)
	return NewAction(symbols.NewCollector(opts), indexOpts, cb, options...)
}

