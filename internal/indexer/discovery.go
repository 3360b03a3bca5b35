package indexer

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultUnitPatterns select C translation units.
var DefaultUnitPatterns = []string{"**/*.c"}

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// UnitDiscovery finds translation units under a root with glob patterns and
// ignore rules.
type UnitDiscovery struct {
	rootDir        string
	unitPatterns   []compiledPattern
	ignorePatterns []compiledPattern
}

// NewUnitDiscovery compiles the unit and ignore patterns. Empty unit
// patterns select DefaultUnitPatterns.
func NewUnitDiscovery(rootDir string, unitPatterns, ignorePatterns []string) (*UnitDiscovery, error) {
	if len(unitPatterns) == 0 {
		unitPatterns = DefaultUnitPatterns
	}
	ud := &UnitDiscovery{rootDir: rootDir}

	var err error
	if ud.unitPatterns, err = compilePatterns(unitPatterns); err != nil {
		return nil, err
	}
	if ud.ignorePatterns, err = compilePatterns(ignorePatterns); err != nil {
		return nil, err
	}
	return ud, nil
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	var out []compiledPattern
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		out = append(out, compiledPattern{pattern: pattern, glob: g})
	}
	return out, nil
}

// Discover walks the root and returns the absolute paths of all units, sorted.
func (ud *UnitDiscovery) Discover() ([]string, error) {
	root, err := filepath.Abs(ud.rootDir)
	if err != nil {
		return nil, err
	}

	units := []string{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && ud.IsIgnored(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if ud.IsUnit(relPath) {
			units = append(units, path)
		}
		return nil
	})
	sort.Strings(units)
	return units, err
}

// IsUnit reports whether relPath, relative to the root with forward
// slashes, is a translation unit that is not ignored.
func (ud *UnitDiscovery) IsUnit(relPath string) bool {
	if ud.IsIgnored(relPath) {
		return false
	}
	return matchesAnyPattern(relPath, ud.unitPatterns)
}

// IsIgnored reports whether relPath matches an ignore pattern. The .cortex
// directory is always ignored.
func (ud *UnitDiscovery) IsIgnored(relPath string) bool {
	// Always ignore .cortex directory
	if strings.HasPrefix(relPath, ".cortex/") || relPath == ".cortex" {
		return true
	}
	if matchesAnyPattern(relPath, ud.ignorePatterns) {
		return true
	}
	// "build" should match pattern "build/**"
	return matchesAnyPattern(relPath+"/**", ud.ignorePatterns)
}

// matchesAnyPattern checks if a path matches any of the given patterns. A
// path in the root also matches patterns with a leading **/, so "**/*.c"
// selects both "main.c" and "src/util.c".
func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if !strings.HasPrefix(cp.pattern, "**/") {
				continue
			}
			simplified, err := glob.Compile(strings.TrimPrefix(cp.pattern, "**/"), '/')
			if err == nil && simplified.Match(path) {
				return true
			}
		}
	}
	return false
}
