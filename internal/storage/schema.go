package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is bumped whenever the table layout changes.
const SchemaVersion = "1"

// CreateSchema creates all index tables and indexes in a single transaction.
// It is safe to call on a database that already has the schema.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []struct {
		name string
		ddl  string
	}{
		{"index_metadata", createIndexMetadataTable},
		{"units", createUnitsTable},
		{"symbols", createSymbolsTable},
		{"refs", createRefsTable},
		{"relations", createRelationsTable},
		{"include_nodes", createIncludeNodesTable},
		{"include_edges", createIncludeEdgesTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for _, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO index_metadata (key, value, updated_at) VALUES ('schema_version', ?, ?)`,
		SchemaVersion, now,
	); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// GetSchemaVersion returns the recorded schema version, or "0" for a database
// without the schema.
func GetSchemaVersion(db *sql.DB) (string, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='index_metadata'`).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("failed to check metadata table: %w", err)
	}
	if exists == 0 {
		return "0", nil
	}

	var version string
	err = db.QueryRow(`SELECT value FROM index_metadata WHERE key = 'schema_version'`).Scan(&version)
	if err == sql.ErrNoRows {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

const createIndexMetadataTable = `
CREATE TABLE IF NOT EXISTS index_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

const createUnitsTable = `
CREATE TABLE IF NOT EXISTS units (
	unit_id TEXT PRIMARY KEY,
	main_uri TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT
)`

const createSymbolsTable = `
CREATE TABLE IF NOT EXISTS symbols (
	unit_id TEXT NOT NULL,
	symbol_id TEXT NOT NULL,
	name TEXT NOT NULL,
	scope TEXT NOT NULL,
	kind TEXT NOT NULL,
	decl_uri TEXT NOT NULL,
	decl_line INTEGER NOT NULL,
	decl_column INTEGER NOT NULL,
	def_uri TEXT NOT NULL,
	def_line INTEGER NOT NULL,
	def_column INTEGER NOT NULL,
	documentation TEXT NOT NULL,
	include_header TEXT NOT NULL,
	origin INTEGER NOT NULL,
	is_local INTEGER NOT NULL,
	PRIMARY KEY (unit_id, symbol_id),
	FOREIGN KEY (unit_id) REFERENCES units(unit_id) ON DELETE CASCADE
)`

const createRefsTable = `
CREATE TABLE IF NOT EXISTS refs (
	ref_id INTEGER PRIMARY KEY AUTOINCREMENT,
	unit_id TEXT NOT NULL,
	symbol_id TEXT NOT NULL,
	kind INTEGER NOT NULL,
	uri TEXT NOT NULL,
	line INTEGER NOT NULL,
	col INTEGER NOT NULL,
	container_id TEXT NOT NULL,
	FOREIGN KEY (unit_id) REFERENCES units(unit_id) ON DELETE CASCADE
)`

const createRelationsTable = `
CREATE TABLE IF NOT EXISTS relations (
	unit_id TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	predicate TEXT NOT NULL,
	object_id TEXT NOT NULL,
	PRIMARY KEY (unit_id, subject_id, predicate, object_id),
	FOREIGN KEY (unit_id) REFERENCES units(unit_id) ON DELETE CASCADE
)`

const createIncludeNodesTable = `
CREATE TABLE IF NOT EXISTS include_nodes (
	unit_id TEXT NOT NULL,
	uri TEXT NOT NULL,
	digest TEXT,
	flags INTEGER NOT NULL,
	populated INTEGER NOT NULL,
	PRIMARY KEY (unit_id, uri),
	FOREIGN KEY (unit_id) REFERENCES units(unit_id) ON DELETE CASCADE
)`

const createIncludeEdgesTable = `
CREATE TABLE IF NOT EXISTS include_edges (
	edge_id INTEGER PRIMARY KEY AUTOINCREMENT,
	unit_id TEXT NOT NULL,
	from_uri TEXT NOT NULL,
	to_uri TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	FOREIGN KEY (unit_id) REFERENCES units(unit_id) ON DELETE CASCADE
)`

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_units_main_uri ON units(main_uri)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)`,
	`CREATE INDEX IF NOT EXISTS idx_refs_symbol ON refs(symbol_id)`,
	`CREATE INDEX IF NOT EXISTS idx_refs_unit ON refs(unit_id)`,
	`CREATE INDEX IF NOT EXISTS idx_include_edges_unit ON include_edges(unit_id, ordinal)`,
	`CREATE INDEX IF NOT EXISTS idx_include_edges_to ON include_edges(to_uri)`,
}
