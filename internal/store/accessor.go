package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/copydesk/copydesk/internal/adapter"
	"github.com/copydesk/copydesk/internal/schema"
)

// Accessor executes the six capability operations for one collection
// directly against SQLite. It implements every adapter capability interface,
// so the coordinator binds it through the same wrapper as a real backend and
// treats it as the adapter of last resort.
type Accessor struct {
	db   *DB
	coll *schema.Collection
}

// Accessor returns the direct accessor for a collection.
func (d *DB) Accessor(coll *schema.Collection) *Accessor {
	return &Accessor{db: d, coll: coll}
}

// ListAll returns every record, newest first.
func (a *Accessor) ListAll(ctx context.Context) ([]map[string]any, error) {
	sel, cols, err := a.selectClause()
	if err != nil {
		return nil, err
	}
	table, err := quoteIdent(a.coll.Table)
	if err != nil {
		return nil, err
	}

	order := "id DESC"
	if a.coll.HasField("date") {
		order = `"date" DESC, id DESC`
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", sel, table, order)

	rows, err := a.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", a.coll.Slug, err)
	}
	defer rows.Close()

	return scanRecords(rows, cols)
}

// Search returns records whose searchable fields contain term,
// case-insensitively, newest first.
func (a *Accessor) Search(ctx context.Context, term string) ([]map[string]any, error) {
	searchable := a.coll.SearchableFields()
	if len(searchable) == 0 {
		return nil, nil
	}

	sel, cols, err := a.selectClause()
	if err != nil {
		return nil, err
	}
	table, err := quoteIdent(a.coll.Table)
	if err != nil {
		return nil, err
	}

	var conds []string
	var args []any
	pattern := "%" + strings.ToLower(term) + "%"
	for _, name := range searchable {
		ident, err := quoteIdent(name)
		if err != nil {
			return nil, err
		}
		conds = append(conds, fmt.Sprintf("LOWER(COALESCE(%s, '')) LIKE ?", ident))
		args = append(args, pattern)
	}

	order := "id DESC"
	if a.coll.HasField("date") {
		order = `"date" DESC, id DESC`
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		sel, table, strings.Join(conds, " OR "), order)

	rows, err := a.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", a.coll.Slug, err)
	}
	defer rows.Close()

	return scanRecords(rows, cols)
}

// FetchOne returns the record with the given id, or (nil, nil) if absent.
func (a *Accessor) FetchOne(ctx context.Context, id string) (map[string]any, error) {
	sel, cols, err := a.selectClause()
	if err != nil {
		return nil, err
	}
	table, err := quoteIdent(a.coll.Table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", sel, table)
	rows, err := a.db.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", a.coll.Slug, id, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows, cols)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Create inserts a record from the projected field map and returns the
// assigned id. Fields absent from the collection schema are rejected, not
// silently written.
func (a *Accessor) Create(ctx context.Context, fields map[string]any) (string, error) {
	table, err := quoteIdent(a.coll.Table)
	if err != nil {
		return "", err
	}

	var cols, marks []string
	var args []any
	for _, f := range a.coll.StorableFields() {
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		ident, err := quoteIdent(f.Name)
		if err != nil {
			return "", err
		}
		cols = append(cols, ident)
		marks = append(marks, "?")
		args = append(args, v)
	}
	for name := range fields {
		if !a.coll.HasField(name) {
			return "", fmt.Errorf("create %s: field %q not in collection schema", a.coll.Slug, name)
		}
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("create %s: no storable fields", a.coll.Slug)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", "))

	res, err := a.db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", a.coll.Slug, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("create %s: %w", a.coll.Slug, err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Update sets the projected fields on an existing record. Returns
// adapter.ErrNotExist when no record has the given id.
func (a *Accessor) Update(ctx context.Context, id string, fields map[string]any) error {
	table, err := quoteIdent(a.coll.Table)
	if err != nil {
		return err
	}

	var sets []string
	var args []any
	for _, f := range a.coll.StorableFields() {
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		ident, err := quoteIdent(f.Name)
		if err != nil {
			return err
		}
		sets = append(sets, ident+" = ?")
		args = append(args, v)
	}
	for name := range fields {
		if !a.coll.HasField(name) {
			return fmt.Errorf("update %s: field %q not in collection schema", a.coll.Slug, name)
		}
	}
	if len(sets) == 0 {
		// Nothing storable to change; still report whether the record exists.
		rec, err := a.FetchOne(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return adapter.ErrNotExist
		}
		return nil
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	args = append(args, id)

	res, err := a.db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", a.coll.Slug, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", a.coll.Slug, id, err)
	}
	if n == 0 {
		return adapter.ErrNotExist
	}
	return nil
}

// Delete removes a record. Returns adapter.ErrNotExist when no record has
// the given id. Junction rows are the tag syncer's responsibility; the
// coordinator cascades through it on every delete.
func (a *Accessor) Delete(ctx context.Context, id string) error {
	table, err := quoteIdent(a.coll.Table)
	if err != nil {
		return err
	}

	res, err := a.db.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", a.coll.Slug, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", a.coll.Slug, id, err)
	}
	if n == 0 {
		return adapter.ErrNotExist
	}
	return nil
}

// selectClause builds the column list for reads: id plus every storable
// field, in schema order.
func (a *Accessor) selectClause() (string, []string, error) {
	cols := []string{"id"}
	for _, f := range a.coll.StorableFields() {
		cols = append(cols, f.Name)
	}
	quoted := make([]string, len(cols))
	for i, name := range cols {
		q, err := quoteIdent(name)
		if err != nil {
			return "", nil, err
		}
		quoted[i] = q
	}
	return strings.Join(quoted, ", "), cols, nil
}

// scanRecords reads all rows into key/value maps keyed by column name.
func scanRecords(rows *sql.Rows, cols []string) ([]map[string]any, error) {
	var records []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, name := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
			rec[name] = vals[i]
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
