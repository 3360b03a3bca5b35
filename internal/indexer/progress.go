package indexer

// ProgressReporter provides callbacks for reporting indexing progress.
// Implementations can display progress bars, log messages, or remain silent.
// Calls are serialized by the indexer.
type ProgressReporter interface {
	// OnUnitsStart is called before any unit is indexed.
	OnUnitsStart(totalUnits int)

	// OnUnitIndexed is called after each unit, with the unit's error if it failed.
	OnUnitIndexed(unit string, err error)

	// OnComplete is called when a batch of units is done.
	OnComplete(stats *Stats)
}

// NoOpProgressReporter is a progress reporter that does nothing.
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnUnitsStart(totalUnits int)          {}
func (n *NoOpProgressReporter) OnUnitIndexed(unit string, err error) {}
func (n *NoOpProgressReporter) OnComplete(stats *Stats)              {}
