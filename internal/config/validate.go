package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvp-joe/cortex-index/internal/symbols"
)

var (
	// ErrInvalidMaxDepth indicates a negative declaration nesting threshold
	ErrInvalidMaxDepth = errors.New("invalid max depth")

	// ErrInvalidOrigin indicates an unknown symbol origin
	ErrInvalidOrigin = errors.New("invalid origin")

	// ErrInvalidSystemSymbols indicates an unknown system symbol filter
	ErrInvalidSystemSymbols = errors.New("invalid system symbols filter")

	// ErrInvalidIncludeDepth indicates a non-positive include nesting limit
	ErrInvalidIncludeDepth = errors.New("invalid max include depth")

	// ErrInvalidConcurrency indicates a non-positive unit concurrency
	ErrInvalidConcurrency = errors.New("invalid concurrency")

	// ErrInvalidDebounce indicates a negative watch debounce
	ErrInvalidDebounce = errors.New("invalid watch debounce")

	// ErrEmptyDBPath indicates a missing database path
	ErrEmptyDBPath = errors.New("empty database path")
)

// Validate checks that the configuration is valid and complete. All
// problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Index.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("%w: max_depth must not be negative, got %d", ErrInvalidMaxDepth, cfg.Index.MaxDepth))
	}
	if cfg.Index.Origin != "" && symbols.ParseOrigin(cfg.Index.Origin) == symbols.OriginUnknown {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidOrigin, cfg.Index.Origin))
	}
	if _, err := symbols.ParseSystemSymbolFilter(cfg.Index.SystemSymbols); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidSystemSymbols, err))
	}

	if cfg.Frontend.MaxIncludeDepth <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_include_depth must be positive, got %d", ErrInvalidIncludeDepth, cfg.Frontend.MaxIncludeDepth))
	}

	if strings.TrimSpace(cfg.Storage.DBPath) == "" {
		errs = append(errs, fmt.Errorf("%w: storage.db_path is required", ErrEmptyDBPath))
	}

	if cfg.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("%w: must be positive, got %d", ErrInvalidConcurrency, cfg.Concurrency))
	}

	if cfg.Watch.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("%w: debounce_ms cannot be negative, got %d", ErrInvalidDebounce, cfg.Watch.DebounceMs))
	}

	return errors.Join(errs...)
}
