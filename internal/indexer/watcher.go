package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mvp-joe/cortex-index/internal/watcher"
)

// UnitRemover deletes the stored results of a unit. storage.Writer implements it.
type UnitRemover interface {
	DeleteUnit(mainURI string) (int64, error)
}

// UnitWatcher re-indexes the units affected by file changes under a root.
type UnitWatcher struct {
	indexer   *Indexer
	discovery *UnitDiscovery
	remover   UnitRemover
	rootDir   string
	logger    *log.Logger
}

// NewUnitWatcher creates a watcher for the units found by discovery. The
// remover may be nil.
func NewUnitWatcher(idx *Indexer, discovery *UnitDiscovery, remover UnitRemover) (*UnitWatcher, error) {
	root, err := filepath.Abs(discovery.rootDir)
	if err != nil {
		return nil, err
	}
	return &UnitWatcher{
		indexer:   idx,
		discovery: discovery,
		remover:   remover,
		rootDir:   root,
		logger:    idx.logger,
	}, nil
}

// Watch feeds batches from fw to HandleChanges until ctx is done, then stops fw.
func (uw *UnitWatcher) Watch(ctx context.Context, fw watcher.FileWatcher) error {
	err := fw.Start(ctx, func(files []string) {
		if _, err := uw.HandleChanges(ctx, files); err != nil {
			uw.logger.Error("reindex failed", "err", err)
		}
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return fw.Stop()
}

// SkipDir reports whether the directory at path is ignored by discovery.
func (uw *UnitWatcher) SkipDir(path string) bool {
	relPath, ok := uw.relPath(path)
	if !ok {
		return true
	}
	return uw.discovery.IsIgnored(relPath)
}

// HandleChanges re-indexes after the files at changed were written, created
// or removed. Removed units are forgotten and deleted from the remover; new
// units are indexed along with every known unit that reaches a changed file
// or a file the removed units owned.
func (uw *UnitWatcher) HandleChanges(ctx context.Context, changed []string) (*Stats, error) {
	units := make(map[string]bool)
	var orphaned []string
	for _, path := range changed {
		relPath, ok := uw.relPath(path)
		if !ok || !uw.discovery.IsUnit(relPath) {
			continue
		}
		abs := filepath.Join(uw.rootDir, filepath.FromSlash(relPath))
		if _, err := os.Stat(abs); err == nil {
			units[abs] = true
			continue
		}
		orphaned = append(orphaned, uw.removeUnit(abs)...)
	}
	for _, unit := range uw.indexer.AffectedUnits(changed) {
		units[unit] = true
	}
	for _, unit := range uw.indexer.unitsReaching(orphaned) {
		units[unit] = true
	}

	if len(units) == 0 {
		return &Stats{}, nil
	}
	list := make([]string, 0, len(units))
	for unit := range units {
		list = append(list, unit)
	}
	sort.Strings(list)

	uw.logger.Info("reindexing", "changed", len(changed), "units", len(list))
	return uw.indexer.IndexUnits(ctx, list)
}

// removeUnit forgets the unit at path and returns the files it owned.
func (uw *UnitWatcher) removeUnit(path string) []string {
	mainURI, released, ok := uw.indexer.Forget(path)
	if !ok {
		return nil
	}
	if uw.remover != nil {
		if _, err := uw.remover.DeleteUnit(mainURI); err != nil {
			uw.logger.Warn("failed to delete removed unit", "unit", path, "err", err)
		} else {
			uw.logger.Debug("unit removed", "unit", path)
		}
	}
	return released
}

// relPath returns path relative to the root with forward slashes, or false
// when path is outside the root.
func (uw *UnitWatcher) relPath(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(uw.rootDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
