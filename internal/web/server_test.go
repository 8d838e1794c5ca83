package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copydesk/copydesk/internal/content"
	"github.com/copydesk/copydesk/internal/schema"
	"github.com/copydesk/copydesk/internal/store"
	"github.com/copydesk/copydesk/internal/tags"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	field := func(name string) schema.Field {
		f, ok := schema.CatalogField(name)
		require.True(t, ok)
		return f
	}
	blog := &schema.Collection{
		Slug: "blog", Title: "Blog", Table: "blog",
		IDColumn: "blog_id", JunctionTable: "blog_tags",
		Fields: []schema.Field{
			field("id"), field("slug"), field("title"),
			field("description"), field("content"), field("tags"),
		},
	}
	reg, err := schema.NewRegistry([]*schema.Collection{blog})
	require.NoError(t, err)

	db, err := store.Open(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureCollections(reg))

	coord := content.New(reg, db, tags.New(db.SQL()), zerolog.Nop())
	require.NoError(t, coord.SetActiveCollection("blog"))

	srv := httptest.NewServer(NewServer(coord, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, "GET", srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "blog", body["active_collection"])
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, "POST", srv.URL+"/api/posts", map[string]any{
		"slug": "hello", "title": "Hello", "content": "first post",
		"tags": []string{"greeting"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	resp, body = doJSON(t, "GET", srv.URL+"/api/posts/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello", body["title"])

	resp, _ = doJSON(t, "PUT", srv.URL+"/api/posts/"+id, map[string]any{"title": "Hello again"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, "GET", srv.URL+"/api/posts/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello again", body["title"])

	resp, _ = doJSON(t, "DELETE", srv.URL+"/api/posts/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, "GET", srv.URL+"/api/posts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListWithFilter(t *testing.T) {
	srv := newTestServer(t)

	for _, p := range []map[string]any{
		{"slug": "a", "title": "Alpha", "content": "about go"},
		{"slug": "b", "title": "Beta", "content": "about rust"},
	} {
		resp, _ := doJSON(t, "POST", srv.URL+"/api/posts", p)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/api/posts?q=rust")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var posts []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "Beta", posts[0]["title"])
}

func TestValidationStatus(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, "POST", srv.URL+"/api/posts", map[string]any{"title": "no body"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "content")
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/posts", "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActivateCollection(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, "POST", srv.URL+"/api/collections/blog/activate", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, "POST", srv.URL+"/api/collections/nope/activate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "unknown collection")
}

func TestCollectionsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/collections")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "blog", infos[0]["slug"])
	assert.Equal(t, true, infos[0]["active"])
}

func TestTagCountsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, "POST", srv.URL+"/api/posts", map[string]any{
		"slug": "t", "content": "x", "tags": []string{"news", "go"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/api/tags")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var counts []map[string]any
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&counts))
	require.Len(t, counts, 2)
	assert.Equal(t, "go", counts[0]["name"])
	assert.Equal(t, "news", counts[1]["name"])
}
