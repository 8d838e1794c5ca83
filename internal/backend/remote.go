package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// remotePageCap is the page size the remote backend requests when a caller
// wants everything; the wrapper applies real limit/offset on top.
const remotePageCap = 500

// Remote is a read-only backend over another copydesk-compatible content
// API. It implements listAll, fetchOne, and search against the JSON
// endpoints the web package serves; writes fall through to direct storage.
type Remote struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewRemote creates a remote backend client. token may be empty for
// unauthenticated APIs.
func NewRemote(baseURL, token string) *Remote {
	return &Remote{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doJSON performs a GET and decodes the JSON response into result.
func (r *Remote) doJSON(ctx context.Context, path string, params url.Values, result any) error {
	u := r.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errRemoteNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

var errRemoteNotFound = fmt.Errorf("remote: not found")

// ListAll fetches up to remotePageCap records.
func (r *Remote) ListAll(ctx context.Context) ([]map[string]any, error) {
	params := url.Values{"limit": {strconv.Itoa(remotePageCap)}}
	var posts []map[string]any
	if err := r.doJSON(ctx, "/api/posts", params, &posts); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Search fetches records matching term.
func (r *Remote) Search(ctx context.Context, term string) ([]map[string]any, error) {
	params := url.Values{
		"q":     {term},
		"limit": {strconv.Itoa(remotePageCap)},
	}
	var posts []map[string]any
	if err := r.doJSON(ctx, "/api/posts", params, &posts); err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return posts, nil
}

// FetchOne fetches a single record, returning (nil, nil) on 404.
func (r *Remote) FetchOne(ctx context.Context, id string) (map[string]any, error) {
	var post map[string]any
	err := r.doJSON(ctx, "/api/posts/"+url.PathEscape(id), nil, &post)
	if err == errRemoteNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch post %s: %w", id, err)
	}
	return post, nil
}
