package cli

import (
	"github.com/charmbracelet/log"

	"github.com/mvp-joe/cortex-index/internal/config"
	"github.com/mvp-joe/cortex-index/internal/frontend/csource"
	"github.com/mvp-joe/cortex-index/internal/index"
	"github.com/mvp-joe/cortex-index/internal/indexer"
	"github.com/mvp-joe/cortex-index/internal/symbols"
)

// indexerOptions converts the configuration of the project at root into
// indexer options. Include directories are resolved against root. Sink and
// Progress are left to the caller.
func indexerOptions(cfg *config.Config, root string, logger *log.Logger) (indexer.Options, error) {
	maxDepth := cfg.Index.MaxDepth
	opts := indexer.Options{
		Frontend: csource.Config{
			IncludeDirs:       resolveAll(root, cfg.Frontend.IncludeDirs),
			SystemIncludeDirs: resolveAll(root, cfg.Frontend.SystemIncludeDirs),
			MaxIncludeDepth:   cfg.Frontend.MaxIncludeDepth,
			WarningsAsErrors:  cfg.Frontend.WarningsAsErrors,
		},
		Outputs: indexer.Outputs{
			Symbols:      cfg.Outputs.Symbols,
			Refs:         cfg.Outputs.Refs,
			Relations:    cfg.Outputs.Relations,
			IncludeGraph: cfg.Outputs.IncludeGraph,
		},
		Origin:                symbols.ParseOrigin(cfg.Index.Origin),
		StoreAllDocumentation: cfg.Index.StoreAllDocumentation,
		Checked:               cfg.Index.Checked,
		MaxDepth:              &maxDepth,
		Concurrency:           cfg.Concurrency,
		Logger:                logger,
	}

	if !cfg.IsStaticIndexing() {
		filter, err := symbols.ParseSystemSymbolFilter(cfg.Index.SystemSymbols)
		if err != nil {
			return indexer.Options{}, err
		}
		opts.Indexing = &index.IndexingOptions{
			SystemSymbolFilter:  filter,
			IndexFunctionLocals: cfg.Index.IndexFunctionLocals,
		}
	}
	return opts, nil
}

func resolveAll(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, resolvePath(root, p))
	}
	return out
}
