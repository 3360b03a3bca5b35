package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/cortex-index/internal/includegraph"
	"github.com/mvp-joe/cortex-index/internal/symbols"
)

// ErrUnknownUnit is returned when writing results for a unit id that was not
// started with BeginUnit.
var ErrUnknownUnit = errors.New("unknown unit")

// Open opens (or creates) the index database at dbPath and applies the schema.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Serialize writers from concurrent units on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// Writer stores the results of indexing runs, one run per unit.
type Writer struct {
	db     *sql.DB
	ownsDB bool

	mu    sync.Mutex
	units map[string]bool
}

// NewWriter opens the database at dbPath and returns a writer that owns it.
func NewWriter(dbPath string) (*Writer, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Writer{db: db, ownsDB: true, units: make(map[string]bool)}, nil
}

// NewWriterWithDB creates a writer on an existing connection. The caller
// manages the connection's schema and lifecycle.
func NewWriterWithDB(db *sql.DB) *Writer {
	return &Writer{db: db, units: make(map[string]bool)}
}

// DB returns the underlying connection.
func (w *Writer) DB() *sql.DB {
	return w.db
}

// Close closes the database if the writer opened it.
func (w *Writer) Close() error {
	if !w.ownsDB || w.db == nil {
		return nil
	}
	return w.db.Close()
}

// BeginUnit starts a new run for the unit whose main file is mainURI and
// returns its id. Earlier runs of the unit stay readable until the new run
// finishes.
func (w *Writer) BeginUnit(mainURI string) (string, error) {
	unitID := uuid.New().String()

	_, err := sq.Insert("units").
		Columns("unit_id", "main_uri", "started_at").
		Values(unitID, mainURI, time.Now().UTC().Format(time.RFC3339)).
		RunWith(w.db).
		Exec()
	if err != nil {
		return "", fmt.Errorf("failed to insert unit %s: %w", mainURI, err)
	}

	w.mu.Lock()
	w.units[unitID] = true
	w.mu.Unlock()
	return unitID, nil
}

// DeleteUnit removes every run of the unit whose main file is mainURI. It
// returns the number of runs removed.
func (w *Writer) DeleteUnit(mainURI string) (int64, error) {
	res, err := sq.Delete("units").Where(sq.Eq{"main_uri": mainURI}).RunWith(w.db).Exec()
	if err != nil {
		return 0, fmt.Errorf("failed to delete unit %s: %w", mainURI, err)
	}
	return res.RowsAffected()
}

// FinishUnit records the end of a run and removes the earlier runs of the
// same unit.
func (w *Writer) FinishUnit(unitID string) error {
	if err := w.checkUnit(unitID); err != nil {
		return err
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var mainURI string
	err = sq.Select("main_uri").From("units").Where(sq.Eq{"unit_id": unitID}).RunWith(tx).QueryRow().Scan(&mainURI)
	if err != nil {
		return fmt.Errorf("failed to look up unit %s: %w", unitID, err)
	}
	_, err = sq.Delete("units").
		Where(sq.And{sq.Eq{"main_uri": mainURI}, sq.NotEq{"unit_id": unitID}}).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to clear previous runs of %s: %w", mainURI, err)
	}
	_, err = sq.Update("units").
		Set("finished_at", time.Now().UTC().Format(time.RFC3339)).
		Where(sq.Eq{"unit_id": unitID}).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to finish unit %s: %w", unitID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.forget(unitID)
	return nil
}

// AbortUnit removes a run that did not finish. Earlier runs of the unit are
// kept.
func (w *Writer) AbortUnit(unitID string) error {
	if err := w.checkUnit(unitID); err != nil {
		return err
	}
	if _, err := sq.Delete("units").Where(sq.Eq{"unit_id": unitID}).RunWith(w.db).Exec(); err != nil {
		return fmt.Errorf("failed to abort unit %s: %w", unitID, err)
	}
	w.forget(unitID)
	return nil
}

// WriteSymbols stores a unit's symbols.
func (w *Writer) WriteSymbols(unitID string, slab symbols.SymbolSlab) error {
	return w.inTx(unitID, "symbols", func(tx *sql.Tx) error {
		for _, s := range slab.All() {
			_, err := sq.Insert("symbols").
				Columns(
					"unit_id", "symbol_id", "name", "scope", "kind",
					"decl_uri", "decl_line", "decl_column",
					"def_uri", "def_line", "def_column",
					"documentation", "include_header", "origin", "is_local",
				).
				Values(
					unitID, s.ID.String(), s.Name, s.Scope, s.Kind,
					s.CanonicalDeclaration.URI, s.CanonicalDeclaration.Line, s.CanonicalDeclaration.Column,
					s.Definition.URI, s.Definition.Line, s.Definition.Column,
					s.Documentation, s.IncludeHeader, int(s.Origin), boolToInt(s.Local),
				).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("failed to insert symbol %s: %w", s.Name, err)
			}
		}
		return nil
	})
}

// WriteRefs stores a unit's references.
func (w *Writer) WriteRefs(unitID string, slab symbols.RefSlab) error {
	return w.inTx(unitID, "refs", func(tx *sql.Tx) error {
		for _, r := range slab.All() {
			_, err := sq.Insert("refs").
				Columns("unit_id", "symbol_id", "kind", "uri", "line", "col", "container_id").
				Values(unitID, r.Symbol.String(), int(r.Kind), r.Location.URI, r.Location.Line, r.Location.Column, r.Container.String()).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("failed to insert ref of %s: %w", r.Symbol, err)
			}
		}
		return nil
	})
}

// WriteRelations stores a unit's relations. Duplicate triples are stored once.
func (w *Writer) WriteRelations(unitID string, slab symbols.RelationSlab) error {
	return w.inTx(unitID, "relations", func(tx *sql.Tx) error {
		for _, r := range slab.All() {
			_, err := sq.Insert("relations").
				Options("OR IGNORE").
				Columns("unit_id", "subject_id", "predicate", "object_id").
				Values(unitID, r.Subject.String(), string(r.Predicate), r.Object.String()).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("failed to insert relation: %w", err)
			}
		}
		return nil
	})
}

// WriteIncludeGraph stores a unit's include graph. Edges keep their
// directive order through an ordinal per source node.
func (w *Writer) WriteIncludeGraph(unitID string, g *includegraph.Graph) error {
	if g == nil {
		return fmt.Errorf("graph cannot be nil")
	}
	return w.inTx(unitID, "include graph", func(tx *sql.Tx) error {
		for _, n := range g.Nodes() {
			var digest any
			if n.Digest != nil {
				digest = n.Digest.String()
			}
			_, err := sq.Insert("include_nodes").
				Columns("unit_id", "uri", "digest", "flags", "populated").
				Values(unitID, n.URI, digest, int(n.Flags), boolToInt(n.Populated)).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("failed to insert include node %s: %w", n.URI, err)
			}

			for i, to := range n.DirectIncludes {
				_, err := sq.Insert("include_edges").
					Columns("unit_id", "from_uri", "to_uri", "ordinal").
					Values(unitID, n.URI, to, i).
					RunWith(tx).
					Exec()
				if err != nil {
					return fmt.Errorf("failed to insert include edge %s -> %s: %w", n.URI, to, err)
				}
			}
		}
		return nil
	})
}

func (w *Writer) checkUnit(unitID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.units[unitID] {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, unitID)
	}
	return nil
}

func (w *Writer) forget(unitID string) {
	w.mu.Lock()
	delete(w.units, unitID)
	w.mu.Unlock()
}

func (w *Writer) inTx(unitID, what string, fn func(tx *sql.Tx) error) error {
	if err := w.checkUnit(unitID); err != nil {
		return err
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return fmt.Errorf("failed to write %s: %w", what, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", what, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
