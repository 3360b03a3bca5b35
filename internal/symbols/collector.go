package symbols

import (
	"fmt"
	"strings"

	"github.com/mvp-joe/cortex-index/internal/frontend"
	"github.com/mvp-joe/cortex-index/internal/uri"
)

// Collector accumulates symbols, references and relations while a unit's
// declarations are visited. It serves a single unit and is not safe for
// concurrent use.
type Collector struct {
	opts    Options
	mainURI string

	symbols   map[SymbolID]*Symbol
	order     []SymbolID
	refs      []Ref
	relations []Relation

	indexable map[string]bool

	symbolsDrain   Drain
	refsDrain      Drain
	relationsDrain Drain
}

// NewCollector creates a collector.
func NewCollector(opts Options) *Collector {
	return &Collector{
		opts:      opts,
		symbols:   make(map[SymbolID]*Symbol),
		indexable: make(map[string]bool),
	}
}

// Options returns the options the collector was built with.
func (c *Collector) Options() Options {
	return c.opts
}

// Initialize records the unit's main file. The main file is always indexable.
func (c *Collector) Initialize(main frontend.File) {
	u, ok := uri.FromFile(main)
	if !ok {
		return
	}
	c.mainURI = u
	if c.opts.Unit == "" {
		c.opts.Unit = u
	}
	if c.opts.Claims != nil {
		c.opts.Claims.Claim(u, c.opts.Unit)
	}
	c.indexable[u] = true
}

// ShouldIndexFile reports whether declarations in f belong to this unit.
// Files without a URI are indexable.
func (c *Collector) ShouldIndexFile(f frontend.File) bool {
	u, ok := uri.FromFile(f)
	if !ok {
		return true
	}
	if v, ok := c.indexable[u]; ok {
		return v
	}
	v := true
	if c.opts.Claims != nil && u != c.mainURI {
		v = c.opts.Claims.Claim(u, c.opts.Unit)
	}
	c.indexable[u] = v
	return v
}

// ShouldCollectOccurrences reports whether any reference kind is captured.
func (c *Collector) ShouldCollectOccurrences() bool {
	return c.opts.RefFilter != RefUnknown
}

// HandleDecl records d as a symbol, its declaration as a ref, and its relations.
func (c *Collector) HandleDecl(d frontend.Decl) {
	if c.symbolsDrain.State() == Drained {
		return
	}
	loc, ok := c.location(d.Location())
	if !ok || d.USR() == "" {
		return
	}
	id := IDFromUSR(d.USR())
	local := frontend.EnclosingFunction(d) != nil

	sym, exists := c.symbols[id]
	if !exists {
		sym = &Symbol{
			ID:                   id,
			Name:                 d.Name(),
			Scope:                scopeOf(d),
			Kind:                 string(d.Kind()),
			CanonicalDeclaration: loc,
			Origin:               c.opts.Origin,
			Local:                local,
		}
		if c.opts.CollectIncludePath && !local && loc.URI != c.mainURI {
			sym.IncludeHeader = loc.URI
			if c.opts.Pragmas != nil {
				sym.IncludeHeader = c.opts.Pragmas.IncludeHeader(loc.URI)
			}
		}
		c.symbols[id] = sym
		c.order = append(c.order, id)
	}
	if d.IsDefinition() && sym.Definition.IsZero() {
		sym.Definition = loc
	}
	if sym.Documentation == "" && (c.opts.StoreAllDocumentation || !local) {
		sym.Documentation = d.Documentation()
	}

	kind := RefDeclaration | RefSpelled
	if d.IsDefinition() {
		kind |= RefDefinition
	}
	c.addRef(id, kind, loc, containerOf(d))

	if c.opts.CollectRelations && c.relationsDrain.State() == Collecting {
		for _, r := range d.Relations() {
			c.addRelation(id, r)
		}
	}
}

// HandleOccurrence records a reference spelled inside container.
func (c *Collector) HandleOccurrence(container frontend.Decl, occ frontend.Occurrence) {
	if occ.USR == "" {
		return
	}
	loc, ok := c.location(occ.Location)
	if !ok {
		return
	}
	kind := RefSpelled
	if occ.Roles.Has(frontend.RoleReference) || occ.Roles.Has(frontend.RoleCall) {
		kind |= RefReference
	}
	if occ.Roles.Has(frontend.RoleDeclaration) {
		kind |= RefDeclaration
	}
	if occ.Roles.Has(frontend.RoleDefinition) {
		kind |= RefDefinition
	}
	var containerID SymbolID
	if container != nil && container.USR() != "" {
		containerID = IDFromUSR(container.USR())
	}
	c.addRef(IDFromUSR(occ.USR), kind, loc, containerID)
}

func (c *Collector) addRef(id SymbolID, kind RefKind, loc Location, container SymbolID) {
	if c.refsDrain.State() == Drained {
		return
	}
	kind &= c.opts.RefFilter
	// A bare spelling is not a reference kind of its own.
	if kind&^RefSpelled == 0 {
		return
	}
	if !c.opts.RefsInHeaders && loc.URI != c.mainURI {
		return
	}
	c.refs = append(c.refs, Ref{Symbol: id, Kind: kind, Location: loc, Container: container})
}

func (c *Collector) addRelation(id SymbolID, r frontend.Relation) {
	if r.USR == "" {
		return
	}
	other := IDFromUSR(r.USR)
	switch {
	case r.Roles.Has(frontend.RoleRelationBaseOf):
		c.relations = append(c.relations, Relation{Subject: other, Predicate: RelationBaseOf, Object: id})
	case r.Roles.Has(frontend.RoleRelationOverrideOf):
		c.relations = append(c.relations, Relation{Subject: other, Predicate: RelationOverriddenBy, Object: id})
	}
}

// TakeSymbols hands over the symbol batch. It may be called once.
func (c *Collector) TakeSymbols() (SymbolSlab, error) {
	if err := c.symbolsDrain.Take(); err != nil {
		return SymbolSlab{}, fmt.Errorf("symbols: %w", err)
	}
	syms := make([]Symbol, 0, len(c.order))
	for _, id := range c.order {
		syms = append(syms, *c.symbols[id])
	}
	c.symbols, c.order = nil, nil
	return NewSymbolSlab(syms), nil
}

// TakeRefs hands over the reference batch. It may be called once.
func (c *Collector) TakeRefs() (RefSlab, error) {
	if err := c.refsDrain.Take(); err != nil {
		return RefSlab{}, fmt.Errorf("refs: %w", err)
	}
	slab := NewRefSlab(c.refs)
	c.refs = nil
	return slab, nil
}

// TakeRelations hands over the relation batch. It may be called once.
func (c *Collector) TakeRelations() (RelationSlab, error) {
	if err := c.relationsDrain.Take(); err != nil {
		return RelationSlab{}, fmt.Errorf("relations: %w", err)
	}
	slab := NewRelationSlab(c.relations)
	c.relations = nil
	return slab, nil
}

func (c *Collector) location(l frontend.Location) (Location, bool) {
	u, ok := uri.FromFile(l.File)
	if !ok {
		return Location{}, false
	}
	return Location{URI: u, Line: l.Line, Column: l.Column}, true
}

func scopeOf(d frontend.Decl) string {
	var parts []string
	for p := d.Parent(); p != nil; p = p.Parent() {
		if p.Name() == "" {
			continue
		}
		parts = append(parts, p.Name())
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "::")
}

func containerOf(d frontend.Decl) SymbolID {
	if p := d.Parent(); p != nil && p.USR() != "" {
		return IDFromUSR(p.USR())
	}
	return SymbolID{}
}
