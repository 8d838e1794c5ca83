package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Kind describes the semantic type of a field value.
type Kind string

const (
	KindText     Kind = "text"
	KindLongText Kind = "long-text"
	KindDate     Kind = "date"
	KindRefList  Kind = "reference-list"
	KindURL      Kind = "url"
)

// Field describes one column of a collection.
type Field struct {
	Name       string
	Kind       Kind
	Searchable bool
	Editable   bool
	Required   bool
}

// catalog is the known field vocabulary. Collections declare a subset of
// these by name; the metadata here fills in kind and flags.
var catalog = []Field{
	{Name: "id", Kind: KindText},
	{Name: "slug", Kind: KindText, Searchable: true, Editable: true},
	{Name: "title", Kind: KindText, Searchable: true, Editable: true},
	{Name: "description", Kind: KindText, Searchable: true, Editable: true},
	{Name: "content", Kind: KindLongText, Searchable: true, Editable: true, Required: true},
	{Name: "date", Kind: KindDate, Editable: true},
	{Name: "external_link", Kind: KindURL, Editable: true},
	{Name: "image_url", Kind: KindURL, Editable: true},
	{Name: "tags", Kind: KindRefList, Editable: true},
}

// CatalogField looks up field metadata by name.
func CatalogField(name string) (Field, bool) {
	for _, f := range catalog {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// DefaultFields returns the full field set used when a manifest entry
// declares no fields of its own.
func DefaultFields() []Field {
	fields := make([]Field, len(catalog))
	copy(fields, catalog)
	return fields
}

// Collection describes one content collection: its identity, its declared
// fields, and the storage identifiers the direct accessor may use. Backend
// holds the adapter object supplied at startup, or nil for
// direct-storage-only collections.
type Collection struct {
	Slug          string
	Title         string
	Table         string
	IDColumn      string
	JunctionTable string
	Fields        []Field
	Backend       any
}

// HasField reports whether the collection declares a field by name.
func (c *Collection) HasField(name string) bool {
	for _, f := range c.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Field returns the declared field by name.
func (c *Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SearchableFields returns the names of fields flagged searchable, in
// declaration order.
func (c *Collection) SearchableFields() []string {
	var names []string
	for _, f := range c.Fields {
		if f.Searchable {
			names = append(names, f.Name)
		}
	}
	return names
}

// StorableFields returns the declared fields that map to table columns:
// everything except the id primary key and the tags reference list, which
// lives in junction rows.
func (c *Collection) StorableFields() []Field {
	var fields []Field
	for _, f := range c.Fields {
		if f.Name == "id" || f.Kind == KindRefList {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether s is safe to use as a SQL identifier. Table and
// column names are always resolved from the registry, never from caller
// input, but every identifier still passes through this check before it is
// interpolated into a statement.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

// Registry holds every collection known for the session, keyed by slug.
type Registry struct {
	collections map[string]*Collection
	order       []string
}

// NewRegistry builds a registry from the given collections. Slugs must be
// unique and all storage identifiers must be valid.
func NewRegistry(collections []*Collection) (*Registry, error) {
	r := &Registry{collections: make(map[string]*Collection)}
	for _, c := range collections {
		if _, ok := r.collections[c.Slug]; ok {
			return nil, fmt.Errorf("duplicate collection slug %q", c.Slug)
		}
		for _, ident := range []string{c.Table, c.IDColumn, c.JunctionTable} {
			if !ValidIdent(ident) {
				return nil, fmt.Errorf("collection %q: invalid identifier %q", c.Slug, ident)
			}
		}
		seen := make(map[string]bool)
		for _, f := range c.Fields {
			if !ValidIdent(f.Name) {
				return nil, fmt.Errorf("collection %q: invalid field name %q", c.Slug, f.Name)
			}
			if seen[f.Name] {
				return nil, fmt.Errorf("collection %q: duplicate field %q", c.Slug, f.Name)
			}
			seen[f.Name] = true
		}
		r.collections[c.Slug] = c
		r.order = append(r.order, c.Slug)
	}
	return r, nil
}

// Get returns the collection for slug.
func (r *Registry) Get(slug string) (*Collection, bool) {
	c, ok := r.collections[slug]
	return c, ok
}

// Slugs returns all collection slugs in registration order.
func (r *Registry) Slugs() []string {
	slugs := make([]string, len(r.order))
	copy(slugs, r.order)
	return slugs
}

// All returns every collection in registration order.
func (r *Registry) All() []*Collection {
	all := make([]*Collection, 0, len(r.order))
	for _, slug := range r.order {
		all = append(all, r.collections[slug])
	}
	return all
}

// Available renders the known slugs for error messages, sorted for stable
// output.
func (r *Registry) Available() string {
	slugs := r.Slugs()
	sort.Strings(slugs)
	return strings.Join(slugs, ", ")
}
