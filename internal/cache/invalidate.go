package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents. It recreates the directory
// afterwards to leave a valid empty cache location.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeByAge removes HTTP and conversion entries saved more than maxAge ago
// and reports how many entries went. An HTTP entry is its meta file plus
// body. Unreadable entries and stray files are left alone; a missing
// directory purges nothing.
func PurgeByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		var related []string
		switch name := d.Name(); {
		case strings.HasSuffix(name, metaSuffix):
			related = []string{strings.TrimSuffix(path, metaSuffix) + bodySuffix}
		case strings.HasSuffix(name, textSuffix):
		default:
			return nil
		}
		saved, ok := savedAt(path)
		if !ok || !saved.Before(cutoff) {
			return nil
		}
		removed++
		_ = os.Remove(path)
		for _, p := range related {
			_ = os.Remove(p)
		}
		return nil
	})
	return removed, err
}

// savedAt reads the saved_at stamp shared by both entry kinds.
func savedAt(path string) (time.Time, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}
	var stamp struct {
		SavedAt time.Time `json:"saved_at"`
	}
	if err := json.Unmarshal(b, &stamp); err != nil || stamp.SavedAt.IsZero() {
		return time.Time{}, false
	}
	return stamp.SavedAt, true
}
