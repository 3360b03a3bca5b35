package index

import (
	"github.com/charmbracelet/log"
	"github.com/mvp-joe/cortex-index/internal/frontend"
	"github.com/mvp-joe/cortex-index/internal/symbols"
	"github.com/mvp-joe/cortex-index/internal/traversal"
)

// consumer walks a unit's declarations through the traversal policy and
// feeds the survivors to the collector.
type consumer struct {
	collector Collector
	opts      IndexingOptions
	policy    traversal.Policy
	logger    *log.Logger
}

var _ frontend.Consumer = (*consumer)(nil)

func newConsumer(c Collector, opts IndexingOptions, policy traversal.Policy, logger *log.Logger) *consumer {
	return &consumer{collector: c, opts: opts, policy: policy, logger: logger}
}

func (c *consumer) Initialize(main frontend.File) {
	c.collector.Initialize(main)
}

func (c *consumer) HandleTranslationUnit(tu frontend.TranslationUnit) {
	occurrences := c.collector.ShouldCollectOccurrences()

	visited := 0
	frontend.Walk(tu.Decls(), c.policy.ShouldDescend, func(d frontend.Decl) {
		if !c.wantDecl(d) {
			return
		}
		visited++
		c.collector.HandleDecl(d)
		if !occurrences || !c.wantOccurrences(d) {
			return
		}
		for _, occ := range d.Occurrences() {
			c.collector.HandleOccurrence(d, occ)
		}
	})
	c.logger.Debug("unit walked", "main", fileName(tu.MainFile()), "decls", visited)
}

// ShouldSkipFunctionBody skips bodies in files this unit does not own.
func (c *consumer) ShouldSkipFunctionBody(d frontend.Decl) bool {
	f := d.Location().File
	if f == nil {
		return false
	}
	return !c.collector.ShouldIndexFile(f)
}

func (c *consumer) wantDecl(d frontend.Decl) bool {
	if !c.opts.IndexFunctionLocals && frontend.EnclosingFunction(d) != nil {
		return false
	}
	if inSystemFile(d) && c.opts.SystemSymbolFilter == symbols.SystemSymbolsNone {
		return false
	}
	return true
}

func (c *consumer) wantOccurrences(d frontend.Decl) bool {
	return !inSystemFile(d) || c.opts.SystemSymbolFilter == symbols.SystemSymbolsAll
}

func inSystemFile(d frontend.Decl) bool {
	f := d.Location().File
	return f != nil && f.IsSystem()
}

func fileName(f frontend.File) string {
	if f == nil {
		return ""
	}
	return f.Name()
}
