package tags

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copydesk/copydesk/internal/schema"
	"github.com/copydesk/copydesk/internal/store"
)

func setup(t *testing.T) (*Syncer, *schema.Registry) {
	t.Helper()

	mustField := func(name string) schema.Field {
		f, ok := schema.CatalogField(name)
		require.True(t, ok)
		return f
	}
	fields := []schema.Field{mustField("id"), mustField("content"), mustField("tags")}

	blog := &schema.Collection{
		Slug: "blog", Title: "Blog", Table: "blog",
		IDColumn: "blog_id", JunctionTable: "blog_tags", Fields: fields,
	}
	notes := &schema.Collection{
		Slug: "notes", Title: "Notes", Table: "notes",
		IDColumn: "notes_id", JunctionTable: "notes_tags", Fields: fields,
	}
	reg, err := schema.NewRegistry([]*schema.Collection{blog, notes})
	require.NoError(t, err)

	db, err := store.Open(filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureCollections(reg))

	return New(db.SQL()), reg
}

func names(ts []Tag) []string {
	var out []string
	for _, t := range ts {
		out = append(out, t.Name)
	}
	return out
}

func TestSetTagsCreatesAndLinks(t *testing.T) {
	s, reg := setup(t)
	blog, _ := reg.Get("blog")
	ctx := context.Background()

	set, err := s.SetTags(ctx, blog, "1", []string{"Go", "databases"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"go", "databases"}, names(set))

	got, err := s.TagsForRecord(ctx, blog, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"databases", "go"}, names(got), "ordered by name")
}

func TestSetTagsIdempotent(t *testing.T) {
	s, reg := setup(t)
	blog, _ := reg.Get("blog")
	ctx := context.Background()

	_, err := s.SetTags(ctx, blog, "1", []string{"go", "sql"})
	require.NoError(t, err)
	_, err = s.SetTags(ctx, blog, "1", []string{"go", "sql"})
	require.NoError(t, err)

	got, err := s.TagsForRecord(ctx, blog, "1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	counts, err := s.TagCounts(ctx, reg)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	for _, tc := range counts {
		assert.Equal(t, 1, tc.Count)
	}
}

func TestSetTagsRemovesDroppedNames(t *testing.T) {
	s, reg := setup(t)
	blog, _ := reg.Get("blog")
	ctx := context.Background()

	_, err := s.SetTags(ctx, blog, "1", []string{"keep", "drop"})
	require.NoError(t, err)
	_, err = s.SetTags(ctx, blog, "1", []string{"keep"})
	require.NoError(t, err)

	got, err := s.TagsForRecord(ctx, blog, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, names(got))

	// The dropped tag row is retained in the vocabulary, just unreferenced,
	// so it no longer appears in counts.
	counts, err := s.TagCounts(ctx, reg)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "keep", counts[0].Name)
}

func TestSetTagsNormalizesNames(t *testing.T) {
	s, reg := setup(t)
	blog, _ := reg.Get("blog")
	ctx := context.Background()

	set, err := s.SetTags(ctx, blog, "1", []string{"  Go ", "go", "GO", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, names(set))
}

func TestSetTagsEmptyClearsAll(t *testing.T) {
	s, reg := setup(t)
	blog, _ := reg.Get("blog")
	ctx := context.Background()

	_, err := s.SetTags(ctx, blog, "1", []string{"a", "b"})
	require.NoError(t, err)
	_, err = s.SetTags(ctx, blog, "1", nil)
	require.NoError(t, err)

	got, err := s.TagsForRecord(ctx, blog, "1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTagsSharedAcrossCollections(t *testing.T) {
	s, reg := setup(t)
	blog, _ := reg.Get("blog")
	notes, _ := reg.Get("notes")
	ctx := context.Background()

	blogTags, err := s.SetTags(ctx, blog, "1", []string{"shared"})
	require.NoError(t, err)
	noteTags, err := s.SetTags(ctx, notes, "7", []string{"shared"})
	require.NoError(t, err)

	assert.Equal(t, blogTags[0].ID, noteTags[0].ID, "one vocabulary row across collections")

	counts, err := s.TagCounts(ctx, reg)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[0].Count)
}

func TestRemoveRecordTagsCascade(t *testing.T) {
	s, reg := setup(t)
	blog, _ := reg.Get("blog")
	ctx := context.Background()

	_, err := s.SetTags(ctx, blog, "1", []string{"shared", "only-one"})
	require.NoError(t, err)
	_, err = s.SetTags(ctx, blog, "2", []string{"shared"})
	require.NoError(t, err)

	require.NoError(t, s.RemoveRecordTags(ctx, blog, "1"))

	got, err := s.TagsForRecord(ctx, blog, "1")
	require.NoError(t, err)
	assert.Empty(t, got)

	// the other record's junction rows are untouched
	counts, err := s.TagCounts(ctx, reg)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "shared", counts[0].Name)
	assert.Equal(t, 1, counts[0].Count)
}
