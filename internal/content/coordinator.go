// Package content is the content-access coordination layer. The Coordinator
// owns the active collection context and routes each logical operation to
// the collection's backend adapter when it reports the needed capability,
// falling back to the direct storage accessor otherwise. Results are
// normalized into the canonical Record shape and merged with tag data from
// the tag syncer.
package content

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/copydesk/copydesk/internal/adapter"
	"github.com/copydesk/copydesk/internal/schema"
	"github.com/copydesk/copydesk/internal/store"
	"github.com/copydesk/copydesk/internal/tags"
)

// DefaultLimit is the page size applied when a caller passes no limit.
const DefaultLimit = 50

// binding is the per-collection dispatch state, rebuilt whole on every
// collection switch. primary is nil for direct-storage-only collections;
// fallback is always the direct accessor bound through the same wrapper, so
// dispatch below never special-cases the storage path.
type binding struct {
	coll     *schema.Collection
	primary  *adapter.Wrapper
	fallback *adapter.Wrapper
}

// Coordinator orchestrates content access for one registry of collections.
// Callers are expected to issue one operation at a time; the coordinator
// serializes nothing beyond the active-binding swap itself.
type Coordinator struct {
	reg    *schema.Registry
	db     *store.DB
	tags   *tags.Syncer
	log    zerolog.Logger
	mu     sync.Mutex
	active *binding
}

// New creates a Coordinator. No collection is active until
// SetActiveCollection is called.
func New(reg *schema.Registry, db *store.DB, syncer *tags.Syncer, log zerolog.Logger) *Coordinator {
	return &Coordinator{reg: reg, db: db, tags: syncer, log: log}
}

// Collections returns every known collection in registration order.
func (c *Coordinator) Collections() []*schema.Collection {
	return c.reg.All()
}

// SetActiveCollection switches the active collection, replacing the backend
// binding atomically from the caller's point of view. Capability detection
// for the collection's adapter happens here, once per switch.
func (c *Coordinator) SetActiveCollection(slug string) error {
	coll, ok := c.reg.Get(slug)
	if !ok {
		return fmt.Errorf("unknown collection %q (available: %s)", slug, c.reg.Available())
	}

	searchable := coll.SearchableFields()
	b := &binding{
		coll:     coll,
		fallback: adapter.Bind(c.db.Accessor(coll), searchable),
	}
	if coll.Backend != nil {
		b.primary = adapter.Bind(coll.Backend, searchable)
		c.log.Debug().
			Str("collection", slug).
			Str("capabilities", b.primary.Caps().String()).
			Bool("native_search", b.primary.NativeSearch()).
			Msg("bound backend adapter")
	}

	c.mu.Lock()
	c.active = b
	c.mu.Unlock()
	return nil
}

// ActiveCollection returns the currently active collection, or nil.
func (c *Coordinator) ActiveCollection() *schema.Collection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	return c.active.coll
}

func (c *Coordinator) binding() (*binding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil, errors.New("no active collection")
	}
	return c.active, nil
}

// ListPosts returns one page of records, filtered when filter is non-empty.
// The adapter path and the direct path apply identical limit/offset
// semantics; callers observe no behavioral difference beyond latency.
func (c *Coordinator) ListPosts(ctx context.Context, filter string, limit, offset int) ([]Record, error) {
	b, err := c.binding()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	list := func(w *adapter.Wrapper) ([]map[string]any, error) {
		if filter != "" {
			return w.Search(ctx, filter, limit, offset)
		}
		return w.List(ctx, limit, offset)
	}

	var raw []map[string]any
	fromPrimary := false
	if b.primary != nil && (filter == "" && b.primary.Caps().List || filter != "" && b.primary.Caps().Search) {
		raw, err = list(b.primary)
		if err != nil {
			c.warnAdapter(b, "list", err)
		} else {
			fromPrimary = true
		}
	}
	if !fromPrimary {
		raw, err = list(b.fallback)
		if err != nil {
			return nil, &FallbackError{Op: "list posts", Err: err}
		}
	}

	records := make([]Record, 0, len(raw))
	for _, r := range raw {
		rec := Normalize(r)
		fillPreview(&rec)
		records = append(records, rec)
	}
	return records, nil
}

// GetPost returns the canonical record for id, with tags merged from the
// tag syncer regardless of which path produced the base record. A record
// absent from the adapter is still looked up in direct storage before
// ErrNotFound is reported, since fallback-created records live only there.
func (c *Coordinator) GetPost(ctx context.Context, id string) (*Record, error) {
	b, err := c.binding()
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if b.primary != nil && b.primary.Caps().Fetch {
		raw, err = b.primary.Fetch(ctx, id)
		if err != nil {
			c.warnAdapter(b, "fetch", err)
			raw = nil
		}
	}
	if raw == nil {
		raw, err = b.fallback.Fetch(ctx, id)
		if err != nil {
			return nil, &FallbackError{Op: "get post", Err: err}
		}
		if raw == nil {
			return nil, ErrNotFound
		}
	}

	rec := Normalize(raw)
	recTags, err := c.tags.TagsForRecord(ctx, b.coll, rec.ID)
	if err != nil {
		return nil, &FallbackError{Op: "get post tags", Err: err}
	}
	if recTags != nil {
		rec.Tags = recTags
	}
	return &rec, nil
}

// CreatePost validates and creates a record, then links any supplied tags.
// Fields the collection schema does not declare are dropped before either
// path is contacted.
func (c *Coordinator) CreatePost(ctx context.Context, fields Fields) (string, error) {
	b, err := c.binding()
	if err != nil {
		return "", err
	}
	if err := validate(b.coll, fields, true); err != nil {
		return "", err
	}

	payload := Project(fields, b.coll)
	tagNames, hasTags := fields.TagNames()

	var id string
	created := false
	if b.primary != nil && b.primary.Caps().Create {
		id, err = b.primary.Create(ctx, payload)
		if err != nil {
			c.warnAdapter(b, "create", err)
		} else {
			created = true
		}
	}
	if !created {
		id, err = b.fallback.Create(ctx, payload)
		if err != nil {
			return "", &FallbackError{Op: "create post", Err: err}
		}
	}

	if hasTags && len(tagNames) > 0 {
		if _, err := c.tags.SetTags(ctx, b.coll, id, tagNames); err != nil {
			return id, &FallbackError{Op: "create post tags", Err: err}
		}
	}
	return id, nil
}

// UpdatePost applies schema-filtered field changes to an existing record and
// synchronizes tags when the request carries them.
func (c *Coordinator) UpdatePost(ctx context.Context, id string, fields Fields) error {
	b, err := c.binding()
	if err != nil {
		return err
	}
	if err := validate(b.coll, fields, false); err != nil {
		return err
	}

	payload := Project(fields, b.coll)
	tagNames, hasTags := fields.TagNames()

	updated := false
	if b.primary != nil && b.primary.Caps().Update {
		err = b.primary.Update(ctx, id, payload)
		switch {
		case err == nil:
			updated = true
		case errors.Is(err, adapter.ErrNotExist):
			// The record may be fallback-owned; let the direct path decide.
		default:
			c.warnAdapter(b, "update", err)
		}
	}
	if !updated {
		if err := b.fallback.Update(ctx, id, payload); err != nil {
			if errors.Is(err, adapter.ErrNotExist) {
				return ErrNotFound
			}
			return &FallbackError{Op: "update post", Err: err}
		}
	}

	if hasTags {
		if _, err := c.tags.SetTags(ctx, b.coll, id, tagNames); err != nil {
			return &FallbackError{Op: "update post tags", Err: err}
		}
	}
	return nil
}

// DeletePost removes a record and cascades its junction rows through the
// tag syncer, whichever path performed the delete. Tag rows referenced by
// other records are untouched.
func (c *Coordinator) DeletePost(ctx context.Context, id string) error {
	b, err := c.binding()
	if err != nil {
		return err
	}

	deleted := false
	if b.primary != nil && b.primary.Caps().Delete {
		err = b.primary.Delete(ctx, id)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, adapter.ErrNotExist):
		default:
			c.warnAdapter(b, "delete", err)
		}
	}
	if !deleted {
		if err := b.fallback.Delete(ctx, id); err != nil {
			if errors.Is(err, adapter.ErrNotExist) {
				return ErrNotFound
			}
			return &FallbackError{Op: "delete post", Err: err}
		}
	}

	if err := c.tags.RemoveRecordTags(ctx, b.coll, id); err != nil {
		return &FallbackError{Op: "delete post tags", Err: err}
	}
	return nil
}

// TagCounts returns reference counts for the shared tag vocabulary across
// all collections.
func (c *Coordinator) TagCounts(ctx context.Context) ([]tags.TagCount, error) {
	counts, err := c.tags.TagCounts(ctx, c.reg)
	if err != nil {
		return nil, &FallbackError{Op: "tag counts", Err: err}
	}
	return counts, nil
}

// validate checks a write request against the collection schema before any
// backend is contacted. On create every required declared field must carry a
// non-empty value; on update only fields present in the request are checked.
func validate(coll *schema.Collection, fields Fields, creating bool) error {
	for _, f := range coll.Fields {
		if !f.Required {
			continue
		}
		v, present := fields[f.Name]
		if !present {
			if creating {
				return &ValidationError{Field: f.Name, Reason: "required field missing"}
			}
			continue
		}
		if s, ok := v.(string); ok && s == "" || v == nil {
			return &ValidationError{Field: f.Name, Reason: "required field empty"}
		}
	}
	return nil
}

func (c *Coordinator) warnAdapter(b *binding, op string, err error) {
	c.log.Warn().
		Str("collection", b.coll.Slug).
		Str("op", op).
		Err(err).
		Msg("backend adapter failed, retrying via direct storage")
}
