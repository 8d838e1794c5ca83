// Package adapter wraps arbitrary backend objects behind a fixed capability
// surface. A backend may implement any subset of the six capability
// interfaces below; the wrapper probes for them once at bind time and the
// resulting capability set stays fixed for the lifetime of the binding.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotSupported is returned when a wrapper operation is invoked without
// the backing capability. The coordinator checks Caps before dispatching, so
// seeing this error indicates a dispatch bug rather than a runtime condition.
var ErrNotSupported = errors.New("operation not supported by backend")

// ErrNotExist is returned by Update and Delete when the target record does
// not exist in the backend. It is distinct from an operational failure: the
// caller should report the record missing rather than retry elsewhere.
var ErrNotExist = errors.New("record does not exist")

// The capability interfaces. Records cross this boundary as arbitrary
// key/value maps; normalization happens above the wrapper.
type (
	Lister interface {
		ListAll(ctx context.Context) ([]map[string]any, error)
	}
	Fetcher interface {
		// FetchOne returns (nil, nil) when no record has the given id.
		FetchOne(ctx context.Context, id string) (map[string]any, error)
	}
	Searcher interface {
		Search(ctx context.Context, term string) ([]map[string]any, error)
	}
	Creator interface {
		Create(ctx context.Context, fields map[string]any) (string, error)
	}
	Updater interface {
		Update(ctx context.Context, id string, fields map[string]any) error
	}
	Deleter interface {
		Delete(ctx context.Context, id string) error
	}
)

// Caps records which logical operations a binding supports.
type Caps struct {
	List   bool
	Fetch  bool
	Search bool
	Create bool
	Update bool
	Delete bool
}

func (c Caps) String() string {
	var ops []string
	for _, op := range []struct {
		name string
		ok   bool
	}{
		{"listAll", c.List}, {"fetchOne", c.Fetch}, {"search", c.Search},
		{"create", c.Create}, {"update", c.Update}, {"delete", c.Delete},
	} {
		if op.ok {
			ops = append(ops, op.name)
		}
	}
	if len(ops) == 0 {
		return "none"
	}
	return strings.Join(ops, ",")
}

// Wrapper is a bound backend. Pagination is applied here, after the backend
// call, so native and synthesized paths expose identical limit/offset
// semantics.
type Wrapper struct {
	caps     Caps
	native   Caps // search=false here means Search below is synthesized
	listAll  func(ctx context.Context) ([]map[string]any, error)
	fetchOne func(ctx context.Context, id string) (map[string]any, error)
	search   func(ctx context.Context, term string) ([]map[string]any, error)
	create   func(ctx context.Context, fields map[string]any) (string, error)
	update   func(ctx context.Context, id string, fields map[string]any) error
	delete   func(ctx context.Context, id string) error
}

// Bind inspects backend once and records its capability set. searchable
// names the collection's searchable fields, used by the synthesized search
// when the backend offers listAll but no native search.
func Bind(backend any, searchable []string) *Wrapper {
	w := &Wrapper{}
	if backend == nil {
		return w
	}

	if l, ok := backend.(Lister); ok {
		w.listAll = l.ListAll
		w.caps.List = true
		w.native.List = true
	}
	if f, ok := backend.(Fetcher); ok {
		w.fetchOne = f.FetchOne
		w.caps.Fetch = true
		w.native.Fetch = true
	}
	if s, ok := backend.(Searcher); ok {
		w.search = s.Search
		w.caps.Search = true
		w.native.Search = true
	} else if w.listAll != nil {
		// Synthesize search from listAll plus client-side filtering. The
		// coordinator never distinguishes this path from native search.
		w.search = func(ctx context.Context, term string) ([]map[string]any, error) {
			records, err := w.listAll(ctx)
			if err != nil {
				return nil, err
			}
			return filterRecords(records, term, searchable), nil
		}
		w.caps.Search = true
	}
	if c, ok := backend.(Creator); ok {
		w.create = c.Create
		w.caps.Create = true
		w.native.Create = true
	}
	if u, ok := backend.(Updater); ok {
		w.update = u.Update
		w.caps.Update = true
		w.native.Update = true
	}
	if d, ok := backend.(Deleter); ok {
		w.delete = d.Delete
		w.caps.Delete = true
		w.native.Delete = true
	}
	return w
}

// filterRecords keeps records whose searchable fields case-insensitively
// contain term, preserving input order.
func filterRecords(records []map[string]any, term string, searchable []string) []map[string]any {
	term = strings.ToLower(term)
	var matched []map[string]any
	for _, rec := range records {
		for _, name := range searchable {
			v, ok := rec[name]
			if !ok || v == nil {
				continue
			}
			if strings.Contains(strings.ToLower(fmt.Sprint(v)), term) {
				matched = append(matched, rec)
				break
			}
		}
	}
	return matched
}

// Caps returns the capability set fixed at bind time.
func (w *Wrapper) Caps() Caps { return w.caps }

// NativeSearch reports whether search is backend-native rather than
// synthesized from listAll.
func (w *Wrapper) NativeSearch() bool { return w.native.Search }

// List returns one page of records.
func (w *Wrapper) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if w.listAll == nil {
		return nil, ErrNotSupported
	}
	records, err := w.listAll(ctx)
	if err != nil {
		return nil, err
	}
	return paginate(records, limit, offset), nil
}

// Search returns one page of records matching term.
func (w *Wrapper) Search(ctx context.Context, term string, limit, offset int) ([]map[string]any, error) {
	if w.search == nil {
		return nil, ErrNotSupported
	}
	records, err := w.search(ctx, term)
	if err != nil {
		return nil, err
	}
	return paginate(records, limit, offset), nil
}

// Fetch returns the record with the given id, or (nil, nil) if absent.
func (w *Wrapper) Fetch(ctx context.Context, id string) (map[string]any, error) {
	if w.fetchOne == nil {
		return nil, ErrNotSupported
	}
	return w.fetchOne(ctx, id)
}

// Create stores a new record and returns its backend-assigned id.
func (w *Wrapper) Create(ctx context.Context, fields map[string]any) (string, error) {
	if w.create == nil {
		return "", ErrNotSupported
	}
	return w.create(ctx, fields)
}

// Update replaces the given fields on an existing record.
func (w *Wrapper) Update(ctx context.Context, id string, fields map[string]any) error {
	if w.update == nil {
		return ErrNotSupported
	}
	return w.update(ctx, id, fields)
}

// Delete removes a record.
func (w *Wrapper) Delete(ctx context.Context, id string) error {
	if w.delete == nil {
		return ErrNotSupported
	}
	return w.delete(ctx, id)
}

func paginate(records []map[string]any, limit, offset int) []map[string]any {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
