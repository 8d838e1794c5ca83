package content

import (
	"time"

	"github.com/copydesk/copydesk/internal/tags"
)

// Record is the canonical, backend-independent post shape. Every Record the
// coordinator returns carries all seven non-id, non-tag fields, empty when
// the owning collection's schema omits them; Date is null rather than
// omitted when unset.
type Record struct {
	ID           string     `json:"id"`
	Slug         string     `json:"slug"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Content      string     `json:"content"`
	Date         *time.Time `json:"date"`
	ExternalLink string     `json:"external_link"`
	ImageURL     string     `json:"image_url"`
	Tags         []tags.Tag `json:"tags"`
}

// Fields is a canonical write request: canonical field names mapped to
// values. The "tags" key, when present, holds the desired tag names.
type Fields map[string]any

// TagNames extracts the tag names from a write request. The second return
// reports whether the request carried a tags key at all, distinguishing
// "set no tags" from "leave tags alone".
func (f Fields) TagNames() ([]string, bool) {
	v, ok := f["tags"]
	if !ok {
		return nil, false
	}
	switch names := v.(type) {
	case []string:
		return names, true
	case []any:
		var out []string
		for _, n := range names {
			if s, ok := n.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	case string:
		if names == "" {
			return nil, true
		}
		return []string{names}, true
	case nil:
		return nil, true
	}
	return nil, false
}
