package symbols

import (
	"fmt"
	"strings"
)

// SystemSymbolFilter controls what is captured from system headers.
type SystemSymbolFilter int

const (
	// SystemSymbolsNone skips declarations in system headers.
	SystemSymbolsNone SystemSymbolFilter = iota
	// SystemSymbolsDeclarationsOnly keeps declarations but not their occurrences.
	SystemSymbolsDeclarationsOnly
	// SystemSymbolsAll captures system headers like any other file.
	SystemSymbolsAll
)

func (f SystemSymbolFilter) String() string {
	switch f {
	case SystemSymbolsNone:
		return "none"
	case SystemSymbolsDeclarationsOnly:
		return "declarations"
	case SystemSymbolsAll:
		return "all"
	}
	return fmt.Sprintf("SystemSymbolFilter(%d)", int(f))
}

// ParseSystemSymbolFilter parses "none", "declarations" or "all".
func ParseSystemSymbolFilter(s string) (SystemSymbolFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return SystemSymbolsNone, nil
	case "declarations", "declarations_only":
		return SystemSymbolsDeclarationsOnly, nil
	case "all", "":
		return SystemSymbolsAll, nil
	}
	return SystemSymbolsAll, fmt.Errorf("unknown system symbol filter %q", s)
}

// Options configure a Collector. They are fixed before a unit starts.
type Options struct {
	// Origin is attached to every produced symbol.
	Origin Origin
	// RefFilter selects which reference kinds are captured. The zero value
	// disables reference capture.
	RefFilter RefKind
	// RefsInHeaders captures references located outside the main file.
	RefsInHeaders bool
	// StoreAllDocumentation keeps documentation for function-local symbols too.
	StoreAllDocumentation bool
	// CollectIncludePath records the declaring header of each symbol.
	CollectIncludePath bool
	// CollectRelations enables relation capture.
	CollectRelations bool
	// Claims arbitrates header ownership between units; nil indexes every file.
	Claims *FileClaims
	// Unit identifies the claiming unit. Empty means the main file's URI.
	Unit string
	// Pragmas maps declaring headers through IWYU pragmas when
	// CollectIncludePath is set; nil keeps the declaring header.
	Pragmas *PragmaIncludes
}
