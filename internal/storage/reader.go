package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/cortex-index/internal/includegraph"
	"github.com/mvp-joe/cortex-index/internal/symbols"
)

// Unit is one stored indexing run.
type Unit struct {
	ID         string
	MainURI    string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress
}

// Reader queries stored indexing results.
type Reader struct {
	db *sql.DB
}

// NewReader creates a reader on an existing connection.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Units returns every stored run ordered by main file URI.
func (r *Reader) Units() ([]Unit, error) {
	rows, err := sq.Select("unit_id", "main_uri", "started_at", "finished_at").
		From("units").
		OrderBy("main_uri").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var (
			u        Unit
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.MainURI, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		var err error
		if u.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("failed to parse start of unit %s: %w", u.ID, err)
		}
		if finished.Valid {
			if u.FinishedAt, err = time.Parse(time.RFC3339, finished.String); err != nil {
				return nil, fmt.Errorf("failed to parse finish of unit %s: %w", u.ID, err)
			}
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// UnitByURI returns the stored run for the unit whose main file is mainURI.
// A finished run is preferred over one still in progress.
func (r *Reader) UnitByURI(mainURI string) (Unit, bool, error) {
	units, err := r.Units()
	if err != nil {
		return Unit{}, false, err
	}
	var (
		best  Unit
		found bool
	)
	for _, u := range units {
		if u.MainURI != mainURI {
			continue
		}
		if !found || (best.FinishedAt.IsZero() && !u.FinishedAt.IsZero()) {
			best, found = u, true
		}
	}
	return best, found, nil
}

// CountSymbols returns the number of symbols stored for unitID, or across
// all units when unitID is empty.
func (r *Reader) CountSymbols(unitID string) (int, error) {
	return r.count("symbols", unitID)
}

// CountRefs returns the number of references stored for unitID, or across
// all units when unitID is empty.
func (r *Reader) CountRefs(unitID string) (int, error) {
	return r.count("refs", unitID)
}

func (r *Reader) count(table, unitID string) (int, error) {
	q := sq.Select("COUNT(*)").From(table)
	if unitID != "" {
		q = q.Where(sq.Eq{"unit_id": unitID})
	}
	var n int
	if err := q.RunWith(r.db).QueryRow().Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// SymbolsByName returns the stored symbols named name across all units.
func (r *Reader) SymbolsByName(name string) ([]symbols.Symbol, error) {
	rows, err := sq.Select(
		"symbol_id", "name", "scope", "kind",
		"decl_uri", "decl_line", "decl_column",
		"def_uri", "def_line", "def_column",
		"documentation", "include_header", "origin", "is_local",
	).
		From("symbols").
		Where(sq.Eq{"name": name}).
		OrderBy("decl_uri", "decl_line").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var out []symbols.Symbol
	for rows.Next() {
		var (
			s      symbols.Symbol
			id     string
			origin int
			local  int
		)
		err := rows.Scan(
			&id, &s.Name, &s.Scope, &s.Kind,
			&s.CanonicalDeclaration.URI, &s.CanonicalDeclaration.Line, &s.CanonicalDeclaration.Column,
			&s.Definition.URI, &s.Definition.Line, &s.Definition.Column,
			&s.Documentation, &s.IncludeHeader, &origin, &local,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		if s.ID, err = symbols.ParseSymbolID(id); err != nil {
			return nil, err
		}
		s.Origin = symbols.Origin(origin)
		s.Local = local != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// IncludeEdges returns a unit's include edges grouped by source URI, in
// directive order within a source.
func (r *Reader) IncludeEdges(unitID string) ([]includegraph.Edge, error) {
	rows, err := sq.Select("from_uri", "to_uri").
		From("include_edges").
		Where(sq.Eq{"unit_id": unitID}).
		OrderBy("from_uri", "ordinal").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query include edges: %w", err)
	}
	defer rows.Close()

	var edges []includegraph.Edge
	for rows.Next() {
		var e includegraph.Edge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, fmt.Errorf("failed to scan include edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// IncludeGraph rebuilds a unit's include graph from its stored nodes and edges.
func (r *Reader) IncludeGraph(unitID string) (*includegraph.Graph, error) {
	rows, err := sq.Select("uri", "digest", "flags", "populated").
		From("include_nodes").
		Where(sq.Eq{"unit_id": unitID}).
		OrderBy("uri").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query include nodes: %w", err)
	}
	defer rows.Close()

	byURI := make(map[string]*includegraph.Node)
	var nodes []*includegraph.Node
	for rows.Next() {
		var (
			n         includegraph.Node
			digest    sql.NullString
			flags     int
			populated int
		)
		if err := rows.Scan(&n.URI, &digest, &flags, &populated); err != nil {
			return nil, fmt.Errorf("failed to scan include node: %w", err)
		}
		if digest.Valid {
			d, err := includegraph.ParseDigest(digest.String)
			if err != nil {
				return nil, err
			}
			n.Digest = &d
		}
		n.Flags = includegraph.SourceFlag(flags)
		n.Populated = populated != 0
		byURI[n.URI] = &n
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	edges, err := r.IncludeEdges(unitID)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		from, ok := byURI[e.From]
		if !ok {
			return nil, fmt.Errorf("include edge from unknown node %s", e.From)
		}
		from.DirectIncludes = append(from.DirectIncludes, e.To)
	}
	return includegraph.FromNodes(nodes), nil
}
