package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// TextEntry is a finished conversion.
type TextEntry struct {
	Title   string    `json:"title"`
	Text    string    `json:"text"`
	SavedAt time.Time `json:"saved_at"`
}

// TextCache stores conversions keyed by TextKey, so an unchanged document
// converted with unchanged options is not parsed again.
type TextCache struct {
	Dir         string
	StrictPerms bool
}

// TextKey digests the input bytes together with every option that affects
// the conversion. Parts are length-prefixed so adjacent values cannot run
// together.
func TextKey(body []byte, options ...string) string {
	h := sha256.New()
	for _, o := range options {
		fmt.Fprintf(h, "%d:%s\n", len(o), o)
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *TextCache) store() (store, error) {
	if c == nil {
		return store{}, errors.New("text cache not configured")
	}
	s := store{dir: c.Dir, strict: c.StrictPerms}
	return s, s.ensure()
}

// Get returns the cached conversion. A missing entry is not an error.
func (c *TextCache) Get(_ context.Context, key string) (TextEntry, bool, error) {
	s, err := c.store()
	if err != nil {
		return TextEntry{}, false, err
	}
	b, err := os.ReadFile(s.path(key, textSuffix))
	if errors.Is(err, fs.ErrNotExist) {
		return TextEntry{}, false, nil
	}
	if err != nil {
		return TextEntry{}, false, err
	}
	var e TextEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return TextEntry{}, false, fmt.Errorf("decode text entry: %w", err)
	}
	return e, true, nil
}

// Save stores a conversion under key, stamping SavedAt.
func (c *TextCache) Save(_ context.Context, key string, e TextEntry) error {
	s, err := c.store()
	if err != nil {
		return err
	}
	e.SavedAt = time.Now().UTC()
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode text entry: %w", err)
	}
	return s.writeFile(s.path(key, textSuffix), b)
}
