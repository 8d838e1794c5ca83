package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk description of a project's collections, parsed
// from collections.yaml. The core never reads this file itself; cmd loads
// it, constructs backend objects from the descriptors, and hands the
// finished Registry to the coordinator.
type Manifest struct {
	Collections map[string]ManifestCollection `yaml:"collections"`
	// Order preserves the YAML document order of the collections map.
	order []string
}

// ManifestCollection is one collection entry in the manifest.
type ManifestCollection struct {
	Title   string      `yaml:"title"`
	Table   string      `yaml:"table"`
	Fields  []string    `yaml:"fields"`
	Backend BackendSpec `yaml:"backend"`
}

// BackendSpec describes which backend adapter, if any, a collection binds.
type BackendSpec struct {
	Type string `yaml:"type"` // none, memory, bleve, remote
	Path string `yaml:"path"` // bleve index path
	URL  string `yaml:"url"`  // remote API base URL
}

// LoadManifest reads and parses a collections.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Collections) == 0 {
		return nil, fmt.Errorf("manifest declares no collections")
	}

	// yaml.v3 maps lose document order; recover it from the node tree so
	// collection listings stay stable.
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.order = collectionOrder(&doc)

	return &m, nil
}

func collectionOrder(doc *yaml.Node) []string {
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "collections" {
			continue
		}
		colls := root.Content[i+1]
		var order []string
		for j := 0; j < len(colls.Content); j += 2 {
			order = append(order, colls.Content[j].Value)
		}
		return order
	}
	return nil
}

// Slugs returns the collection slugs in manifest order.
func (m *Manifest) Slugs() []string {
	if len(m.order) == len(m.Collections) {
		return m.order
	}
	slugs := make([]string, 0, len(m.Collections))
	for slug := range m.Collections {
		slugs = append(slugs, slug)
	}
	return slugs
}

// Registry resolves the manifest into a Registry. Field names are looked up
// in the catalog for their metadata; unknown names are rejected rather than
// guessed at. Backend objects are not constructed here; callers attach them
// to Collection.Backend after deciding what each BackendSpec means.
func (m *Manifest) Registry() (*Registry, error) {
	var collections []*Collection
	for _, slug := range m.Slugs() {
		mc := m.Collections[slug]
		c, err := m.resolve(slug, mc)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return NewRegistry(collections)
}

func (m *Manifest) resolve(slug string, mc ManifestCollection) (*Collection, error) {
	table := mc.Table
	if table == "" {
		table = slug
	}
	title := mc.Title
	if title == "" {
		title = slug
	}

	var fields []Field
	if len(mc.Fields) == 0 {
		fields = DefaultFields()
	} else {
		for _, name := range mc.Fields {
			f, ok := CatalogField(name)
			if !ok {
				return nil, fmt.Errorf("collection %q: unknown field %q", slug, name)
			}
			fields = append(fields, f)
		}
		// Every collection carries an id whether or not the manifest says so.
		if !hasField(fields, "id") {
			fields = append([]Field{catalog[0]}, fields...)
		}
	}

	return &Collection{
		Slug:          slug,
		Title:         title,
		Table:         table,
		IDColumn:      table + "_id",
		JunctionTable: table + "_tags",
		Fields:        fields,
	}, nil
}

func hasField(fields []Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// BackendSpecFor returns the backend descriptor for a slug.
func (m *Manifest) BackendSpecFor(slug string) BackendSpec {
	return m.Collections[slug].Backend
}
