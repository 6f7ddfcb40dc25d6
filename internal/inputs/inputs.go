// Package inputs canonicalizes the list of documents given on the command
// line before conversion.
package inputs

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Stdin is the input name that selects standard input.
const Stdin = "-"

// trackingParams are query parameters dropped from URL inputs.
var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"}

// Normalize canonicalizes URLs, cleans file paths and removes exact
// duplicates, keeping the first occurrence so output order follows the
// arguments. Standard input is kept once since it can only be read once.
// Blank entries are dropped.
func Normalize(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := canonical(strings.TrimSpace(s))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func canonical(s string) string {
	if s == "" || s == Stdin {
		return s
	}
	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		normalizeURL(u)
		return u.String()
	}
	return filepath.Clean(s)
}

func normalizeURL(u *url.URL) {
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.RawQuery == "" {
		return
	}
	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
}
