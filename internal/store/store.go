// Package store is the direct storage accessor: parameterized SQLite
// operations against per-collection tables. It is the universal fallback
// path and the sole owner of tag data. Table and column identifiers are
// resolved from the schema registry and validated before interpolation;
// values are always bound parameters.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/copydesk/copydesk/internal/schema"
)

// DB wraps the SQLite handle shared by the accessors and the tag syncer.
type DB struct {
	db *sql.DB
}

// Open opens or creates the content database and ensures the shared tags
// table exists.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	storage := &DB{db: db}

	if err := storage.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return storage, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// SQL exposes the underlying handle for the tag syncer, which operates on
// the same database.
func (d *DB) SQL() *sql.DB {
	return d.db
}

func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);
	`

	_, err := d.db.Exec(schema)
	return err
}

// EnsureCollections creates the content table and tag junction table for
// every registered collection.
func (d *DB) EnsureCollections(reg *schema.Registry) error {
	for _, coll := range reg.All() {
		if err := d.ensureCollection(coll); err != nil {
			return fmt.Errorf("collection %q: %w", coll.Slug, err)
		}
	}
	return nil
}

func (d *DB) ensureCollection(coll *schema.Collection) error {
	cols := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	for _, f := range coll.StorableFields() {
		ident, err := quoteIdent(f.Name)
		if err != nil {
			return err
		}
		cols += fmt.Sprintf(", %s %s", ident, columnType(f.Kind))
	}

	table, err := quoteIdent(coll.Table)
	if err != nil {
		return err
	}
	junction, err := quoteIdent(coll.JunctionTable)
	if err != nil {
		return err
	}
	idCol, err := quoteIdent(coll.IDColumn)
	if err != nil {
		return err
	}

	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (%s);

	CREATE TABLE IF NOT EXISTS %s (
		%s TEXT NOT NULL,
		tag_id INTEGER NOT NULL REFERENCES tags(id),
		PRIMARY KEY (%s, tag_id)
	);
	`, table, cols, junction, idCol, idCol)

	_, err = d.db.Exec(ddl)
	return err
}

func columnType(kind schema.Kind) string {
	if kind == schema.KindDate {
		return "TIMESTAMP"
	}
	return "TEXT"
}

// quoteIdent validates an identifier against the registry's naming rules and
// quotes it for interpolation. Identifiers reach this point only from the
// schema registry, never from caller input.
func quoteIdent(name string) (string, error) {
	if !schema.ValidIdent(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}
