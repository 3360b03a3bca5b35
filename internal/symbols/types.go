package symbols

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// SymbolID identifies a symbol across translation units.
type SymbolID [8]byte

// IDFromUSR derives a SymbolID from a USR.
func IDFromUSR(usr string) SymbolID {
	var id SymbolID
	binary.BigEndian.PutUint64(id[:], xxhash.Sum64String(usr))
	return id
}

func (id SymbolID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText encodes the id as hex.
func (id SymbolID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// Origin records where a symbol came from.
type Origin uint8

const (
	OriginUnknown Origin = 0
	OriginAST     Origin = 1 << (iota - 1)
	OriginDynamic
	OriginStatic
	OriginMerge
	OriginBackground
	OriginRemote
)

var originNames = []struct {
	bit  Origin
	name string
}{
	{OriginAST, "ast"},
	{OriginDynamic, "dynamic"},
	{OriginStatic, "static"},
	{OriginMerge, "merge"},
	{OriginBackground, "background"},
	{OriginRemote, "remote"},
}

func (o Origin) String() string {
	if o == OriginUnknown {
		return "unknown"
	}
	var parts []string
	for _, n := range originNames {
		if o&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseOrigin parses a single origin name; unknown names map to OriginUnknown.
func ParseOrigin(s string) Origin {
	for _, n := range originNames {
		if strings.EqualFold(s, n.name) {
			return n.bit
		}
	}
	return OriginUnknown
}

// RefKind is a bitmask of reference kinds. The zero value captures nothing.
type RefKind uint8

const (
	RefDeclaration RefKind = 1 << iota
	RefDefinition
	RefReference
	RefSpelled

	RefUnknown RefKind = 0
	RefAll             = RefDeclaration | RefDefinition | RefReference | RefSpelled
)

func (k RefKind) String() string {
	if k == RefUnknown {
		return "unknown"
	}
	var parts []string
	if k&RefDeclaration != 0 {
		parts = append(parts, "declaration")
	}
	if k&RefDefinition != 0 {
		parts = append(parts, "definition")
	}
	if k&RefReference != 0 {
		parts = append(parts, "reference")
	}
	if k&RefSpelled != 0 {
		parts = append(parts, "spelled")
	}
	return strings.Join(parts, "|")
}

// RelationKind names a relation between two symbols.
type RelationKind string

const (
	RelationBaseOf       RelationKind = "base_of"
	RelationOverriddenBy RelationKind = "overridden_by"
)

// Location is a position in a file identified by URI. Line and Column are 1-based.
type Location struct {
	URI    string `json:"uri"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// IsZero reports whether the location is unset.
func (l Location) IsZero() bool {
	return l.URI == ""
}

// Symbol is an extracted declaration.
type Symbol struct {
	ID   SymbolID `json:"id"`
	Name string   `json:"name"`
	// Scope is the enclosing symbol's qualified name, "" at file scope.
	Scope                string   `json:"scope"`
	Kind                 string   `json:"kind"`
	CanonicalDeclaration Location `json:"canonical_declaration"`
	Definition           Location `json:"definition"`
	Documentation        string   `json:"documentation,omitempty"`
	// IncludeHeader is the URI of the header that should be included to use
	// the symbol, when it is declared in a header.
	IncludeHeader string `json:"include_header,omitempty"`
	Origin        Origin `json:"origin"`
	// Local marks symbols nested inside a function body.
	Local bool `json:"local,omitempty"`
}

// Ref is an occurrence of a symbol.
type Ref struct {
	Symbol    SymbolID `json:"symbol"`
	Kind      RefKind  `json:"kind"`
	Location  Location `json:"location"`
	Container SymbolID `json:"container"`
}

// Relation is a subject-predicate-object triple between symbols.
type Relation struct {
	Subject   SymbolID     `json:"subject"`
	Predicate RelationKind `json:"predicate"`
	Object    SymbolID     `json:"object"`
}

// SymbolSlab is an immutable set of symbols sorted by ID.
type SymbolSlab struct {
	symbols []Symbol
	index   map[SymbolID]int
}

// NewSymbolSlab builds a slab; symbols sharing an ID keep the first entry.
func NewSymbolSlab(syms []Symbol) SymbolSlab {
	sorted := make([]Symbol, 0, len(syms))
	seen := make(map[SymbolID]bool, len(syms))
	for _, s := range syms {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return lessID(sorted[i].ID, sorted[j].ID)
	})
	index := make(map[SymbolID]int, len(sorted))
	for i, s := range sorted {
		index[s.ID] = i
	}
	return SymbolSlab{symbols: sorted, index: index}
}

// Len returns the number of symbols.
func (s SymbolSlab) Len() int { return len(s.symbols) }

// All returns a copy of the symbols in ID order.
func (s SymbolSlab) All() []Symbol {
	return append([]Symbol(nil), s.symbols...)
}

// Find looks a symbol up by ID.
func (s SymbolSlab) Find(id SymbolID) (Symbol, bool) {
	i, ok := s.index[id]
	if !ok {
		return Symbol{}, false
	}
	return s.symbols[i], true
}

// FindByName returns every symbol with the given name.
func (s SymbolSlab) FindByName(name string) []Symbol {
	var out []Symbol
	for _, sym := range s.symbols {
		if sym.Name == name {
			out = append(out, sym)
		}
	}
	return out
}

// RefSlab is an immutable set of refs grouped by symbol.
type RefSlab struct {
	refs map[SymbolID][]Ref
	n    int
}

// NewRefSlab builds a slab from refs.
func NewRefSlab(refs []Ref) RefSlab {
	grouped := make(map[SymbolID][]Ref)
	for _, r := range refs {
		grouped[r.Symbol] = append(grouped[r.Symbol], r)
	}
	return RefSlab{refs: grouped, n: len(refs)}
}

// Len returns the total number of refs.
func (s RefSlab) Len() int { return s.n }

// Symbols returns the referenced symbol ids in ID order.
func (s RefSlab) Symbols() []SymbolID {
	ids := make([]SymbolID, 0, len(s.refs))
	for id := range s.refs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	return ids
}

// For returns the refs to id.
func (s RefSlab) For(id SymbolID) []Ref {
	return append([]Ref(nil), s.refs[id]...)
}

// All returns every ref, grouped by symbol in ID order.
func (s RefSlab) All() []Ref {
	out := make([]Ref, 0, s.n)
	for _, id := range s.Symbols() {
		out = append(out, s.refs[id]...)
	}
	return out
}

// RelationSlab is an immutable, deduplicated set of relations.
type RelationSlab struct {
	relations []Relation
}

// NewRelationSlab builds a slab, dropping duplicate triples.
func NewRelationSlab(rels []Relation) RelationSlab {
	seen := make(map[Relation]bool, len(rels))
	out := make([]Relation, 0, len(rels))
	for _, r := range rels {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return lessID(out[i].Subject, out[j].Subject)
		}
		if out[i].Predicate != out[j].Predicate {
			return out[i].Predicate < out[j].Predicate
		}
		return lessID(out[i].Object, out[j].Object)
	})
	return RelationSlab{relations: out}
}

// Len returns the number of relations.
func (s RelationSlab) Len() int { return len(s.relations) }

// All returns a copy of the relations.
func (s RelationSlab) All() []Relation {
	return append([]Relation(nil), s.relations...)
}

func lessID(a, b SymbolID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ParseSymbolID parses the hex form produced by SymbolID.String.
func ParseSymbolID(s string) (SymbolID, error) {
	var id SymbolID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid symbol id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid symbol id %q: want %d bytes, got %d", s, len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}
