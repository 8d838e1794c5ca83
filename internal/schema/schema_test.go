package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogField(t *testing.T) {
	f, ok := CatalogField("content")
	require.True(t, ok)
	assert.Equal(t, KindLongText, f.Kind)
	assert.True(t, f.Searchable)
	assert.True(t, f.Required)

	_, ok = CatalogField("nonexistent")
	assert.False(t, ok)
}

func TestValidIdent(t *testing.T) {
	assert.True(t, ValidIdent("blog_posts"))
	assert.True(t, ValidIdent("_tags"))
	assert.False(t, ValidIdent("blog-posts"))
	assert.False(t, ValidIdent("1blog"))
	assert.False(t, ValidIdent(`posts"; DROP TABLE tags; --`))
	assert.False(t, ValidIdent(""))
}

func TestRegistryRejectsDuplicateSlug(t *testing.T) {
	mk := func() *Collection {
		return &Collection{
			Slug: "blog", Table: "blog", IDColumn: "blog_id",
			JunctionTable: "blog_tags", Fields: DefaultFields(),
		}
	}
	_, err := NewRegistry([]*Collection{mk(), mk()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate collection slug")
}

func TestRegistryRejectsInvalidIdentifiers(t *testing.T) {
	_, err := NewRegistry([]*Collection{{
		Slug: "blog", Table: "blog; DROP", IDColumn: "blog_id",
		JunctionTable: "blog_tags", Fields: DefaultFields(),
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid identifier")
}

func TestCollectionFieldHelpers(t *testing.T) {
	coll := &Collection{
		Slug: "micro", Table: "micro", IDColumn: "micro_id", JunctionTable: "micro_tags",
		Fields: []Field{
			{Name: "id", Kind: KindText},
			{Name: "content", Kind: KindLongText, Searchable: true},
			{Name: "tags", Kind: KindRefList},
		},
	}

	assert.True(t, coll.HasField("content"))
	assert.False(t, coll.HasField("title"))
	assert.Equal(t, []string{"content"}, coll.SearchableFields())

	storable := coll.StorableFields()
	require.Len(t, storable, 1)
	assert.Equal(t, "content", storable[0].Name)
}

const manifestYAML = `
collections:
  blog:
    title: Blog
    fields: [slug, title, description, content, date, tags]
    backend:
      type: memory
  notes:
    title: Field Notes
    table: field_notes
    fields: [content, date]
  pages:
    backend:
      type: bleve
      path: ./idx
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(manifestYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"blog", "notes", "pages"}, m.Slugs())
	assert.Equal(t, "memory", m.BackendSpecFor("blog").Type)
	assert.Equal(t, "bleve", m.BackendSpecFor("pages").Type)
	assert.Equal(t, "./idx", m.BackendSpecFor("pages").Path)

	reg, err := m.Registry()
	require.NoError(t, err)

	blog, ok := reg.Get("blog")
	require.True(t, ok)
	assert.Equal(t, "Blog", blog.Title)
	assert.Equal(t, "blog", blog.Table)
	assert.Equal(t, "blog_id", blog.IDColumn)
	assert.Equal(t, "blog_tags", blog.JunctionTable)
	// id is implied even when the manifest omits it
	assert.True(t, blog.HasField("id"))
	assert.False(t, blog.HasField("image_url"))

	notes, ok := reg.Get("notes")
	require.True(t, ok)
	assert.Equal(t, "field_notes", notes.Table)
	assert.Equal(t, "field_notes_tags", notes.JunctionTable)
	assert.Equal(t, "notes", notes.Title)

	// no fields declared means the full default set
	pages, ok := reg.Get("pages")
	require.True(t, ok)
	assert.True(t, pages.HasField("image_url"))
	assert.True(t, pages.HasField("external_link"))
}

func TestParseManifestUnknownField(t *testing.T) {
	m, err := ParseManifest([]byte(`
collections:
  blog:
    fields: [content, wordcount]
`))
	require.NoError(t, err)
	_, err = m.Registry()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "wordcount"`)
}

func TestParseManifestEmpty(t *testing.T) {
	_, err := ParseManifest([]byte("collections: {}\n"))
	require.Error(t, err)
}
