package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	webBaseURL   = "https://api.zotero.org"
	localBaseURL = "http://localhost:23119/api"

	apiVersion = "3"
)

// ErrNotFound is returned when an item key does not exist in the library.
var ErrNotFound = errors.New("zotero: item not found")

// Source is the read surface of a Zotero library that the sync and query
// engines consume.
type Source interface {
	// Items returns one page of top-level items starting at offset.
	// Callers stop paginating when a page comes back shorter than limit.
	Items(ctx context.Context, offset, limit int) ([]Item, error)

	// Item fetches a single item by key. Returns ErrNotFound if the key
	// does not exist.
	Item(ctx context.Context, key string) (*Item, error)

	// Children returns the child items (attachments, notes) of an item.
	Children(ctx context.Context, key string) ([]Item, error)

	// File downloads the raw bytes of an attachment item.
	File(ctx context.Context, key string) ([]byte, error)
}

// Writer is the write surface. Writes always go to the web API; the local
// Zotero API is read-only.
type Writer interface {
	// UpdateItemTags replaces an item's tag list. version is the item
	// version the caller last saw; the API rejects the write with a
	// conflict if the item changed since.
	UpdateItemTags(ctx context.Context, key string, version int, tags []Tag) error
}

// Client talks to either the Zotero web API or a local Zotero instance.
type Client struct {
	baseURL    string
	library    Library
	apiKey     string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

// NewClient creates a client for the Zotero web API.
func NewClient(library Library, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    webBaseURL,
		library:    library,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewLocalClient creates a client for the local Zotero API on port 23119.
// The local API always serves the current user's library as user/0.
func NewLocalClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    localBaseURL,
		library:    Library{ID: "0", Type: "user"},
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Library returns the library this client operates against.
func (c *Client) Library() Library { return c.library }

// prefix returns the library URL prefix, e.g. /users/12345.
func (c *Client) prefix() string {
	kind := "users"
	if c.library.Type == "group" {
		kind = "groups"
	}
	return fmt.Sprintf("/%s/%s", kind, c.library.ID)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + c.prefix() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Zotero-API-Version", apiVersion)
	if c.apiKey != "" {
		req.Header.Set("Zotero-API-Key", c.apiKey)
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("zotero request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("zotero returned status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode zotero response: %w", err)
	}
	return nil
}

// Items returns one page of top-level items.
func (c *Client) Items(ctx context.Context, offset, limit int) ([]Item, error) {
	q := url.Values{}
	q.Set("start", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("format", "json")
	// Attachments and notes are enumerated via Children; top-level
	// enumeration covers regular items and standalone notes.
	q.Set("itemType", "-attachment")

	req, err := c.newRequest(ctx, http.MethodGet, "/items", q, nil)
	if err != nil {
		return nil, err
	}

	var items []Item
	if err := c.doJSON(req, &items); err != nil {
		return nil, fmt.Errorf("list items (offset %d): %w", offset, err)
	}
	return items, nil
}

// Item fetches a single item by key.
func (c *Client) Item(ctx context.Context, key string) (*Item, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/items/"+key, nil, nil)
	if err != nil {
		return nil, err
	}

	var item Item
	if err := c.doJSON(req, &item); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item %s: %w", key, err)
	}
	return &item, nil
}

// Children returns the child items of an item.
func (c *Client) Children(ctx context.Context, key string) ([]Item, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/items/"+key+"/children", nil, nil)
	if err != nil {
		return nil, err
	}

	var items []Item
	if err := c.doJSON(req, &items); err != nil {
		return nil, fmt.Errorf("get children of %s: %w", key, err)
	}
	return items, nil
}

// File downloads the raw bytes of an attachment.
func (c *Client) File(ctx context.Context, key string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/items/"+key+"/file", nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", key, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("download file %s: status %d", key, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", key, err)
	}
	return data, nil
}

// UpdateItemTags replaces an item's tag list via a partial update.
func (c *Client) UpdateItemTags(ctx context.Context, key string, version int, tags []Tag) error {
	payload, err := json.Marshal(map[string]any{"tags": tags})
	if err != nil {
		return fmt.Errorf("marshal tag update: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPatch, "/items/"+key, nil, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("If-Unmodified-Since-Version", strconv.Itoa(version))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update item %s: %w", key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusPreconditionFailed:
		return fmt.Errorf("update item %s: version conflict (item changed since version %d)", key, version)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("update item %s: status %d: %s", key, resp.StatusCode, string(body))
	}
}
