// Package tags manages the shared tag vocabulary and the per-collection
// record↔tag junction rows. It owns tag data for every collection and
// operates directly against the primary store regardless of which backend
// owns the record itself.
package tags

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/copydesk/copydesk/internal/schema"
)

// Tag is one entry in the shared vocabulary.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TagCount pairs a tag with how many junction rows reference it across all
// collections.
type TagCount struct {
	Tag
	Count int `json:"count"`
}

// Syncer reads and writes tag data. It shares the direct store's database
// handle but never touches content tables.
type Syncer struct {
	db *sql.DB
}

// New creates a Syncer over the content database.
func New(db *sql.DB) *Syncer {
	return &Syncer{db: db}
}

// normalizeName case-normalizes a tag name. Names compare and store
// lowercase with surrounding whitespace removed.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// TagsForRecord returns the tags linked to one record, ordered by name.
func (s *Syncer) TagsForRecord(ctx context.Context, coll *schema.Collection, recordID string) ([]Tag, error) {
	junction, idCol, err := junctionIdents(coll)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT t.id, t.name
	FROM tags t
	JOIN %s j ON j.tag_id = t.id
	WHERE j.%s = ?
	ORDER BY t.name
	`, junction, idCol)

	rows, err := s.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("tags for %s/%s: %w", coll.Slug, recordID, err)
	}
	defer rows.Close()

	var result []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// SetTags makes the record's tag set exactly names: tags missing from the
// vocabulary are created, junction rows are added for new links and removed
// for dropped ones. Idempotent; tag rows referenced elsewhere are never
// touched, and orphaned tag rows are retained.
func (s *Syncer) SetTags(ctx context.Context, coll *schema.Collection, recordID string, names []string) ([]Tag, error) {
	junction, idCol, err := junctionIdents(coll)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("set tags: %w", err)
	}
	defer tx.Rollback()

	var keep []Tag
	seen := make(map[string]bool)
	for _, raw := range names {
		name := normalizeName(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tags (name) VALUES (?)", name); err != nil {
			return nil, fmt.Errorf("create tag %q: %w", name, err)
		}
		var t Tag
		if err := tx.QueryRowContext(ctx, "SELECT id, name FROM tags WHERE name = ?", name).Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("lookup tag %q: %w", name, err)
		}
		link := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s, tag_id) VALUES (?, ?)", junction, idCol)
		if _, err := tx.ExecContext(ctx, link, recordID, t.ID); err != nil {
			return nil, fmt.Errorf("link tag %q: %w", name, err)
		}
		keep = append(keep, t)
	}

	// Unlink tags no longer present.
	if len(keep) == 0 {
		unlink := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", junction, idCol)
		if _, err := tx.ExecContext(ctx, unlink, recordID); err != nil {
			return nil, fmt.Errorf("unlink tags: %w", err)
		}
	} else {
		marks := make([]string, len(keep))
		args := []any{recordID}
		for i, t := range keep {
			marks[i] = "?"
			args = append(args, t.ID)
		}
		unlink := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND tag_id NOT IN (%s)",
			junction, idCol, strings.Join(marks, ", "))
		if _, err := tx.ExecContext(ctx, unlink, args...); err != nil {
			return nil, fmt.Errorf("unlink tags: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("set tags: %w", err)
	}
	return keep, nil
}

// RemoveRecordTags removes every junction row for a record. Called as the
// cascade when a record is deleted, whichever path deleted it.
func (s *Syncer) RemoveRecordTags(ctx context.Context, coll *schema.Collection, recordID string) error {
	junction, idCol, err := junctionIdents(coll)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", junction, idCol)
	if _, err := s.db.ExecContext(ctx, query, recordID); err != nil {
		return fmt.Errorf("remove tags %s/%s: %w", coll.Slug, recordID, err)
	}
	return nil
}

// TagCounts returns reference counts for every tag in use, across all
// collections, ordered by name. One aggregate query over a UNION of the
// junction tables; unreferenced tags are omitted.
func (s *Syncer) TagCounts(ctx context.Context, reg *schema.Registry) ([]TagCount, error) {
	var unions []string
	for _, coll := range reg.All() {
		junction, _, err := junctionIdents(coll)
		if err != nil {
			return nil, err
		}
		unions = append(unions, fmt.Sprintf("SELECT tag_id FROM %s", junction))
	}
	if len(unions) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
	SELECT t.id, t.name, COUNT(j.tag_id)
	FROM tags t
	JOIN (%s) j ON j.tag_id = t.id
	GROUP BY t.id, t.name
	ORDER BY t.name
	`, strings.Join(unions, " UNION ALL "))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("tag counts: %w", err)
	}
	defer rows.Close()

	var counts []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.ID, &tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

func junctionIdents(coll *schema.Collection) (string, string, error) {
	if !schema.ValidIdent(coll.JunctionTable) {
		return "", "", fmt.Errorf("invalid junction table %q", coll.JunctionTable)
	}
	if !schema.ValidIdent(coll.IDColumn) {
		return "", "", fmt.Errorf("invalid id column %q", coll.IDColumn)
	}
	return `"` + coll.JunctionTable + `"`, `"` + coll.IDColumn + `"`, nil
}
