// Package cache keeps fetched pages and finished conversions on disk so that
// repeated runs revalidate instead of refetching and skip unchanged documents.
//
// Both caches share one flat directory. HTTP entries are <key>.meta.json plus
// <key>.body; conversions are <key>.text.json.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	metaSuffix = ".meta.json"
	bodySuffix = ".body"
	textSuffix = ".text.json"
)

// store is the directory both caches write into.
type store struct {
	dir    string
	strict bool
}

func (s store) ensure() error {
	if s.dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if s.strict {
		perm = 0o700
	}
	if err := os.MkdirAll(s.dir, perm); err != nil {
		return err
	}
	// Tighten a directory that already existed.
	if s.strict {
		if info, err := os.Stat(s.dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(s.dir, 0o700)
		}
	}
	return nil
}

func (s store) path(key, suffix string) string { return filepath.Join(s.dir, key+suffix) }

// writeFile replaces name atomically so readers never observe a partial file.
func (s store) writeFile(name string, data []byte) error {
	mode := os.FileMode(0o644)
	if s.strict {
		mode = 0o600
	}
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(name), err)
	}
	if err := os.Rename(tmp, name); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// urlKey names the entry for a URL.
func urlKey(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}
