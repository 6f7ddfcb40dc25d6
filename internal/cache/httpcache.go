package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// HTTPEntry captures enough metadata to revalidate a fetched page with a
// conditional GET and to serve its body on 304.
type HTTPEntry struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	SavedAt      time.Time `json:"saved_at"`
}

// HTTPCache stores responses keyed by sha256(url). A nil *HTTPCache reports
// every lookup as an error. See PurgeByAge for eviction.
type HTTPCache struct {
	Dir string
	// StrictPerms, when true, enforces 0700 on the cache directory and 0600
	// on files.
	StrictPerms bool
}

func (c *HTTPCache) store() (store, error) {
	if c == nil {
		return store{}, fmt.Errorf("http cache not configured")
	}
	s := store{dir: c.Dir, strict: c.StrictPerms}
	return s, s.ensure()
}

// LoadMeta returns entry metadata if present.
func (c *HTTPCache) LoadMeta(_ context.Context, url string) (*HTTPEntry, error) {
	s, err := c.store()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(urlKey(url), metaSuffix))
	if err != nil {
		return nil, err
	}
	var e HTTPEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return &e, nil
}

// LoadBody returns the cached body if present.
func (c *HTTPCache) LoadBody(_ context.Context, url string) ([]byte, error) {
	s, err := c.store()
	if err != nil {
		return nil, err
	}
	return os.ReadFile(s.path(urlKey(url), bodySuffix))
}

// Save stores a new cache entry. The body lands before the metadata, so a
// visible meta file always has its body.
func (c *HTTPCache) Save(_ context.Context, url string, contentType string, etag string, lastModified string, body []byte) error {
	s, err := c.store()
	if err != nil {
		return err
	}
	key := urlKey(url)
	if err := s.writeFile(s.path(key, bodySuffix), body); err != nil {
		return err
	}
	meta, err := json.Marshal(HTTPEntry{
		URL:          url,
		ContentType:  contentType,
		ETag:         etag,
		LastModified: lastModified,
		SavedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	return s.writeFile(s.path(key, metaSuffix), meta)
}
