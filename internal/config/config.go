// Package config loads the indexer configuration from .cortex/index.yml with
// CORTEX_INDEX_* environment overrides.
package config

import (
	"runtime"
	"time"

	"github.com/mvp-joe/cortex-index/internal/symbols"
)

// Config represents the complete indexer configuration.
type Config struct {
	Index       IndexConfig    `yaml:"index" mapstructure:"index"`
	Outputs     OutputsConfig  `yaml:"outputs" mapstructure:"outputs"`
	Frontend    FrontendConfig `yaml:"frontend" mapstructure:"frontend"`
	Paths       PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Storage     StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Concurrency int            `yaml:"concurrency" mapstructure:"concurrency"` // units indexed at once
	Watch       WatchConfig    `yaml:"watch" mapstructure:"watch"`
}

// IndexConfig controls what each unit's action collects.
type IndexConfig struct {
	MaxDepth              int    `yaml:"max_depth" mapstructure:"max_depth"`                             // declaration nesting threshold
	Checked               bool   `yaml:"checked" mapstructure:"checked"`                                 // panic on invariant violations
	Origin                string `yaml:"origin" mapstructure:"origin"`                                   // e.g. "static", "background"
	StoreAllDocumentation bool   `yaml:"store_all_documentation" mapstructure:"store_all_documentation"` // keep docs of function locals
	SystemSymbols         string `yaml:"system_symbols" mapstructure:"system_symbols"`                   // "none", "declarations" or "all"
	IndexFunctionLocals   bool   `yaml:"index_function_locals" mapstructure:"index_function_locals"`
}

// OutputsConfig selects the batches produced per unit.
type OutputsConfig struct {
	Symbols      bool `yaml:"symbols" mapstructure:"symbols"`
	Refs         bool `yaml:"refs" mapstructure:"refs"`
	Relations    bool `yaml:"relations" mapstructure:"relations"`
	IncludeGraph bool `yaml:"include_graph" mapstructure:"include_graph"`
}

// FrontendConfig configures the C front-end.
type FrontendConfig struct {
	IncludeDirs       []string `yaml:"include_dirs" mapstructure:"include_dirs"`
	SystemIncludeDirs []string `yaml:"system_include_dirs" mapstructure:"system_include_dirs"`
	WarningsAsErrors  bool     `yaml:"warnings_as_errors" mapstructure:"warnings_as_errors"`
	MaxIncludeDepth   int      `yaml:"max_include_depth" mapstructure:"max_include_depth"`
}

// PathsConfig defines which units to index and which paths to ignore.
type PathsConfig struct {
	Units  []string `yaml:"units" mapstructure:"units"`   // glob patterns for translation units
	Ignore []string `yaml:"ignore" mapstructure:"ignore"` // glob patterns to ignore
}

// StorageConfig locates the index database.
type StorageConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"` // relative paths are resolved against the project root
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// Debounce returns the watch debounce as a duration.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// Default returns a configuration with sensible defaults: static indexing of
// every .c file with all outputs stored in .cortex/index.db.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			MaxDepth:              10,
			Checked:               false,
			Origin:                "static",
			StoreAllDocumentation: false,
			SystemSymbols:         "all",
			IndexFunctionLocals:   true,
		},
		Outputs: OutputsConfig{
			Symbols:      true,
			Refs:         true,
			Relations:    true,
			IncludeGraph: true,
		},
		Frontend: FrontendConfig{
			IncludeDirs:       []string{},
			SystemIncludeDirs: []string{},
			WarningsAsErrors:  false,
			MaxIncludeDepth:   200,
		},
		Paths: PathsConfig{
			Units: []string{
				"**/*.c",
			},
			Ignore: []string{
				".git/**",
				"build/**",
				"dist/**",
				"out/**",
				"third_party/**",
				"vendor/**",
			},
		},
		Storage: StorageConfig{
			DBPath: ".cortex/index.db",
		},
		Concurrency: runtime.NumCPU(),
		Watch: WatchConfig{
			DebounceMs: 500,
		},
	}
}

// IsStaticIndexing reports whether the index section selects the static
// indexing defaults: every system symbol, function locals, and documentation
// for non-local symbols only.
func (c *Config) IsStaticIndexing() bool {
	filter, err := symbols.ParseSystemSymbolFilter(c.Index.SystemSymbols)
	return err == nil && filter == symbols.SystemSymbolsAll && c.Index.IndexFunctionLocals && !c.Index.StoreAllDocumentation
}
