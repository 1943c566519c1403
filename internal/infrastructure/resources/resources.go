// Package resources caches remote resources such as publisher logos and
// font billboards in the preferences store, so repeated UI loads don't
// re-fetch them.
package resources

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/typeworld/typeworld-go/internal/infrastructure/prefs"
	"github.com/typeworld/typeworld-go/internal/shared/logger"
)

const prefsKey = "resources"

// Cache fetches and stores remote resources. Entries are stored as
// "<mimetype>,<content>" with binary content base64-encoded, keyed by
// "<url>,binary=<bool>".
type Cache struct {
	mu    sync.Mutex
	store prefs.Store
	http  *http.Client
	log   logger.Interface
}

// New creates a resource cache on top of the given preferences store.
func New(store prefs.Store, log logger.Interface) *Cache {
	return &Cache{
		store: store,
		http:  &http.Client{Timeout: 30 * time.Second},
		log:   log.Named("resources"),
	}
}

// Get returns the resource at rawURL, fetching it on a cache miss or when
// update is set. The returned content is decoded; mime is the server's
// Content-Type without parameters.
func (c *Cache) Get(ctx context.Context, rawURL string, binary, update bool) (mime string, content []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := map[string]string{}
	if _, err := c.store.Get(prefsKey, &entries); err != nil {
		return "", nil, err
	}

	key := cacheKey(rawURL, binary)
	if cached, ok := entries[key]; ok && !update {
		return decodeEntry(cached, binary)
	}

	mime, content, err = c.fetch(ctx, rawURL)
	if err != nil {
		return "", nil, err
	}

	entries[key] = encodeEntry(mime, content, binary)
	if err := c.store.Set(prefsKey, entries); err != nil {
		return "", nil, err
	}

	c.log.Debugw("resource cached", "url", rawURL, "mime", mime, "bytes", len(content))
	return mime, content, nil
}

// Delete drops the cached entries for the given URLs, in both binary and
// text form. Called when a subscription is deleted.
func (c *Cache) Delete(urls []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := map[string]string{}
	found, err := c.store.Get(prefsKey, &entries)
	if err != nil || !found {
		return err
	}

	for _, u := range urls {
		delete(entries, cacheKey(u, true))
		delete(entries, cacheKey(u, false))
	}
	return c.store.Set(prefsKey, entries)
}

func (c *Cache) fetch(ctx context.Context, rawURL string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch resource: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("resource %s answered %d", rawURL, resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read resource: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime, content, nil
}

func cacheKey(rawURL string, binary bool) string {
	return fmt.Sprintf("%s,binary=%t", rawURL, binary)
}

func encodeEntry(mime string, content []byte, binary bool) string {
	if binary {
		return mime + "," + base64.StdEncoding.EncodeToString(content)
	}
	return mime + "," + string(content)
}

func decodeEntry(entry string, binary bool) (string, []byte, error) {
	mime, payload, ok := strings.Cut(entry, ",")
	if !ok {
		return "", nil, fmt.Errorf("corrupt resource cache entry")
	}
	if binary {
		content, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("corrupt resource cache entry: %w", err)
		}
		return mime, content, nil
	}
	return mime, []byte(payload), nil
}
