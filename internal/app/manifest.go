package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"
	"unicode/utf8"
)

// timeNow is replaced in tests for stable manifests.
var timeNow = time.Now

// manifestEntry is a compact record of a single converted input.
type manifestEntry struct {
	Index     int    `json:"index"`
	Source    string `json:"source"`
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	SHA256    string `json:"sha256"`
	Chars     int    `json:"chars"`
	FromCache bool   `json:"from_cache,omitempty"`
}

// manifestMeta captures high-level run details that aid reproducibility.
type manifestMeta struct {
	Version     string    `json:"version"`
	Selector    string    `json:"selector,omitempty"`
	Encoding    string    `json:"encoding,omitempty"`
	SourceCount int       `json:"source_count"`
	Skipped     int       `json:"skipped"`
	HTTPCache   bool      `json:"http_cache"`
	GeneratedAt time.Time `json:"generated_at"`
}

// computeSHA256Hex returns a lowercase hex-encoded SHA-256 of the given text.
func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// buildManifestEntries numbers converted inputs from 1 in input order. Chars
// counts runes of the exact text written to the output.
func buildManifestEntries(results []converted) []manifestEntry {
	out := make([]manifestEntry, 0, len(results))
	for i, r := range results {
		out = append(out, manifestEntry{
			Index:     i + 1,
			Source:    r.Source,
			URL:       r.URL,
			Title:     r.Title,
			SHA256:    computeSHA256Hex(r.Text),
			Chars:     utf8.RuneCountInString(r.Text),
			FromCache: r.FromCache,
		})
	}
	return out
}

// marshalManifestJSON encodes a machine-readable sidecar manifest.
func marshalManifestJSON(meta manifestMeta, entries []manifestEntry) ([]byte, error) {
	payload := struct {
		Meta    manifestMeta    `json:"meta"`
		Sources []manifestEntry `json:"sources"`
	}{Meta: meta, Sources: entries}
	return json.MarshalIndent(payload, "", "  ")
}

func writeManifest(path string, meta manifestMeta, entries []manifestEntry) error {
	b, err := marshalManifestJSON(meta, entries)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
