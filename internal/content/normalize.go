package content

import (
	"fmt"
	"strconv"
	"time"

	"github.com/copydesk/copydesk/internal/schema"
	"github.com/copydesk/copydesk/internal/tags"
)

// renames maps known synonym keys used by backends onto canonical field
// names. Applied during read normalization; canonical keys always win over a
// synonym carrying the same target.
var renames = map[string]string{
	"body":      "content",
	"text":      "content",
	"summary":   "description",
	"subtitle":  "description",
	"name":      "title",
	"link":      "external_link",
	"url":       "external_link",
	"image":     "image_url",
	"published": "date",
	"created":   "date",
}

// Normalize converts an arbitrary backend record into the canonical shape.
// Pure and total: any input map, however incomplete or oddly typed, yields a
// complete Record with type-appropriate empty values for missing fields and
// unknown keys dropped. Tags are not populated here; the coordinator merges
// them from the tag syncer.
func Normalize(raw map[string]any) Record {
	merged := make(map[string]any, len(raw))
	for k, v := range raw {
		if canonical, ok := renames[k]; ok {
			if _, exists := raw[canonical]; !exists {
				merged[canonical] = v
			}
			continue
		}
		merged[k] = v
	}

	return Record{
		Tags:         []tags.Tag{},
		ID:           stringify(merged["id"]),
		Slug:         stringify(merged["slug"]),
		Title:        stringify(merged["title"]),
		Description:  stringify(merged["description"]),
		Content:      stringify(merged["content"]),
		Date:         parseDate(merged["date"]),
		ExternalLink: stringify(merged["external_link"]),
		ImageURL:     stringify(merged["image_url"]),
	}
}

// Project filters a canonical write request down to the fields the
// collection schema declares, dropping the rest silently. The id and tags
// keys never project: ids are backend-assigned and tags flow through the tag
// syncer.
func Project(fields Fields, coll *schema.Collection) map[string]any {
	out := make(map[string]any)
	for name, v := range fields {
		if name == "id" || name == "tags" {
			continue
		}
		f, ok := coll.Field(name)
		if !ok || f.Kind == schema.KindRefList {
			continue
		}
		out[name] = v
	}
	return out
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case float64:
		// JSON numbers decode as float64; integral ids should not grow a
		// fractional suffix.
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(v any) *time.Time {
	switch d := v.(type) {
	case nil:
		return nil
	case time.Time:
		if d.IsZero() {
			return nil
		}
		return &d
	case *time.Time:
		if d == nil || d.IsZero() {
			return nil
		}
		t := *d
		return &t
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return &t
			}
		}
		return nil
	default:
		return nil
	}
}

// previewLen bounds the content excerpt used as a list-row preview.
const previewLen = 100

// fillPreview gives list rows for title-less collections a usable
// description column: when both title and description are empty, the first
// previewLen characters of content stand in for the description.
func fillPreview(rec *Record) {
	if rec.Title != "" || rec.Description != "" || rec.Content == "" {
		return
	}
	runes := []rune(rec.Content)
	if len(runes) > previewLen {
		runes = runes[:previewLen]
	}
	rec.Description = string(runes)
}
