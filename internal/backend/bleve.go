package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/copydesk/copydesk/internal/store"
)

// listCap bounds how many hits a match-all query requests. Collections
// served from a bleve index are read snapshots, not unbounded stores.
const listCap = 10000

// Bleve is a read-only backend over a bleve index with native full-text
// search. It implements listAll, fetchOne, and search; writes fall through
// to direct storage. ReindexFromStore rebuilds the index from the direct
// accessor's view of a collection.
type Bleve struct {
	index bleve.Index
}

// OpenBleve opens or creates a bleve index at path.
func OpenBleve(path string) (*Bleve, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Bleve{index: idx}, nil
}

// buildIndexMapping stores every field so records can be reconstructed from
// hits, with an English analyzer on the prose fields.
func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()

	proseFieldMapping := bleve.NewTextFieldMapping()
	proseFieldMapping.Analyzer = "en"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("slug", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", proseFieldMapping)
	docMapping.AddFieldMappingsAt("description", proseFieldMapping)
	docMapping.AddFieldMappingsAt("content", proseFieldMapping)
	docMapping.AddFieldMappingsAt("date", textFieldMapping)
	docMapping.AddFieldMappingsAt("external_link", textFieldMapping)
	docMapping.AddFieldMappingsAt("image_url", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Close closes the index.
func (b *Bleve) Close() error {
	return b.index.Close()
}

// ListAll returns every indexed record, newest first.
func (b *Bleve) ListAll(ctx context.Context) ([]map[string]any, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), listCap, 0, false)
	req.Fields = []string{"*"}
	req.SortBy([]string{"-date", "-_id"})
	return b.run(ctx, req)
}

// Search performs a native full-text query (supports quotes, boolean
// operators, fuzzy ~), best match first.
func (b *Bleve) Search(ctx context.Context, term string) ([]map[string]any, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(term), listCap, 0, false)
	req.Fields = []string{"*"}
	return b.run(ctx, req)
}

// FetchOne returns the indexed record with the given id, or (nil, nil).
func (b *Bleve) FetchOne(ctx context.Context, id string) (map[string]any, error) {
	var q query.Query = query.NewDocIDQuery([]string{id})
	req := bleve.NewSearchRequestOptions(q, 1, 0, false)
	req.Fields = []string{"*"}

	records, err := b.run(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (b *Bleve) run(ctx context.Context, req *bleve.SearchRequest) ([]map[string]any, error) {
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var records []map[string]any
	for _, hit := range results.Hits {
		rec := make(map[string]any, len(hit.Fields)+1)
		for k, v := range hit.Fields {
			rec[k] = v
		}
		rec["id"] = hit.ID
		records = append(records, rec)
	}
	return records, nil
}

// ReindexFromStore rebuilds the index from the direct accessor's records.
func (b *Bleve) ReindexFromStore(ctx context.Context, accessor *store.Accessor) (int, error) {
	records, err := accessor.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}

	batch := b.index.NewBatch()
	for _, rec := range records {
		id := fmt.Sprint(rec["id"])
		doc := make(map[string]any, len(rec))
		for k, v := range rec {
			if k == "id" {
				continue
			}
			if t, ok := v.(time.Time); ok {
				v = t.Format(time.RFC3339)
			}
			doc[k] = v
		}
		if err := batch.Index(id, doc); err != nil {
			return 0, fmt.Errorf("batch index %s: %w", id, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return len(records), nil
}

// Count returns the number of indexed records.
func (b *Bleve) Count() (uint64, error) {
	return b.index.DocCount()
}
