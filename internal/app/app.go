package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/htmltext/internal/cache"
	"github.com/hyperifyio/htmltext/internal/extract"
	"github.com/hyperifyio/htmltext/internal/fetch"
	"github.com/hyperifyio/htmltext/internal/inputs"
	"github.com/hyperifyio/htmltext/internal/plaintext"
	"github.com/hyperifyio/htmltext/internal/robots"
)

// ErrNoUsableInputs is returned when every input failed or produced no text.
// Per the exit code policy this results in a non-zero process exit.
var ErrNoUsableInputs = errors.New("no usable inputs")

type App struct {
	cfg        Config
	httpClient *http.Client
	httpCache  *cache.HTTPCache
	textCache  *cache.TextCache
	fetcher    pageFetcher
	robots     robotsChecker
	extractor  extract.Extractor
	stdin      io.Reader
	stdout     io.Writer
}

// pageFetcher abstracts the fetch client for tests.
type pageFetcher interface {
	Get(ctx context.Context, url string) (fetch.Page, error)
}

type robotsChecker interface {
	Allowed(ctx context.Context, pageURL string) error
}

// converted is the outcome of one successfully converted input.
type converted struct {
	Source    string
	URL       string
	Title     string
	Text      string
	FromCache bool
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	norm := inputs.Normalize(cfg.Inputs)
	if len(norm) != len(cfg.Inputs) {
		log.Debug().Int("given", len(cfg.Inputs)).Int("kept", len(norm)).Msg("dropped duplicate inputs")
	}
	cfg.Inputs = norm

	a := &App{
		cfg:       cfg,
		extractor: extract.Converter{Selector: cfg.Selector, Encoding: cfg.Encoding},
		stdin:     cfg.Stdin,
		stdout:    cfg.Stdout,
	}
	if a.stdin == nil {
		a.stdin = os.Stdin
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}

	if cfg.CacheDir != "" {
		// Invalidation problems are not fatal; the cache is an optimisation
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge)
			if err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("entries", n).Dur("maxAge", cfg.CacheMaxAge).Msg("purged stale cache entries")
			}
		}
		a.httpCache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
		a.textCache = &cache.TextCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	a.httpClient = newHTTPClient(cfg.Timeout)
	a.fetcher = &fetch.Client{
		HTTPClient:        a.httpClient,
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       DefaultMaxAttempts,
		PerRequestTimeout: cfg.Timeout,
		Cache:             a.httpCache,
	}
	if !cfg.IgnoreRobots {
		a.robots = &robots.Manager{
			HTTPClient:        a.httpClient,
			Cache:             a.httpCache,
			UserAgent:         cfg.UserAgent,
			EntryExpiry:       DefaultRobotsTTL,
			AllowPrivateHosts: cfg.AllowPrivateHosts,
		}
	}
	return a, nil
}

// Close releases idle connections held by the shared HTTP client.
func (a *App) Close() {
	if a != nil && a.httpClient != nil {
		a.httpClient.CloseIdleConnections()
	}
}

// Run converts every input in order and writes the combined text. A failing
// input is logged and skipped; the run fails only when nothing was usable or
// an output cannot be written.
func (a *App) Run(ctx context.Context) error {
	results := make([]converted, 0, len(a.cfg.Inputs))
	skipped := 0
	for _, in := range a.cfg.Inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := a.convertInput(ctx, in)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.Warn().Err(err).Str("input", in).Msg("conversion failed; skipping input")
			skipped++
			continue
		}
		if res.Text == "" {
			log.Warn().Str("input", in).Msg("input produced no text; skipping")
			skipped++
			continue
		}
		log.Debug().Str("input", in).Str("title", res.Title).Int("bytes", len(res.Text)).Bool("cache", res.FromCache).Msg("converted input")
		results = append(results, res)
	}
	if len(results) == 0 {
		return ErrNoUsableInputs
	}

	text := joinTexts(results)
	if err := a.writeOutput(text); err != nil {
		return err
	}
	if a.cfg.PDFPath != "" {
		if err := writeTextPDF(text, a.cfg.PDFPath); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("out", a.cfg.PDFPath).Msg("wrote pdf")
	}
	if a.cfg.ManifestPath != "" {
		meta := manifestMeta{
			Version:     BuildVersion,
			Selector:    a.cfg.Selector,
			Encoding:    a.cfg.Encoding,
			SourceCount: len(results),
			Skipped:     skipped,
			HTTPCache:   a.httpCache != nil,
			GeneratedAt: timeNow().UTC(),
		}
		if err := writeManifest(a.cfg.ManifestPath, meta, buildManifestEntries(results)); err != nil {
			return err
		}
		log.Info().Str("out", a.cfg.ManifestPath).Msg("wrote manifest")
	}
	return nil
}

// convertInput loads one input, dispatching on its form, and converts it.
func (a *App) convertInput(ctx context.Context, in string) (converted, error) {
	res := converted{Source: in}
	var body []byte
	var contentType string
	switch {
	case in == "-":
		b, err := io.ReadAll(a.stdin)
		if err != nil {
			return res, fmt.Errorf("read stdin: %w", err)
		}
		body = b
	case fetch.IsURL(in):
		if a.robots != nil {
			if err := a.robots.Allowed(ctx, in); err != nil {
				return res, err
			}
		}
		page, err := a.fetcher.Get(ctx, in)
		if err != nil {
			return res, fmt.Errorf("fetch: %w", err)
		}
		body, contentType = page.Body, page.ContentType
		res.URL = page.URL
		res.FromCache = page.FromCache
	default:
		b, err := os.ReadFile(in)
		if err != nil {
			return res, fmt.Errorf("read file: %w", err)
		}
		body = b
	}

	doc, err := a.extract(ctx, body, contentType)
	if err != nil {
		return res, fmt.Errorf("extract: %w", err)
	}
	res.Title = doc.Title
	res.Text = doc.Text
	return res, nil
}

// extract converts body, reusing an earlier conversion of identical bytes
// made with identical options by the same build.
func (a *App) extract(ctx context.Context, body []byte, contentType string) (extract.Document, error) {
	if a.textCache == nil {
		return a.extractor.Extract(body, contentType)
	}
	key := cache.TextKey(body, BuildVersion, BuildCommit, a.cfg.Selector, a.cfg.Encoding, contentType)
	if e, ok, err := a.textCache.Get(ctx, key); err != nil {
		log.Debug().Err(err).Msg("text cache read failed")
	} else if ok {
		return extract.Document{Title: e.Title, Text: e.Text}, nil
	}
	doc, err := a.extractor.Extract(body, contentType)
	if err != nil {
		return doc, err
	}
	if err := a.textCache.Save(ctx, key, cache.TextEntry{Title: doc.Title, Text: doc.Text}); err != nil {
		log.Debug().Err(err).Msg("text cache write failed")
	}
	return doc, nil
}

// joinTexts concatenates results in input order, starting each document on
// its own line.
func joinTexts(results []converted) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 && !strings.HasSuffix(b.String(), plaintext.Newline) {
			b.WriteString(plaintext.Newline)
		}
		b.WriteString(r.Text)
	}
	return b.String()
}

func (a *App) writeOutput(text string) error {
	if a.cfg.OutputPath == "" || a.cfg.OutputPath == "-" {
		if _, err := io.WriteString(a.stdout, text); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(a.cfg.OutputPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info().Str("out", a.cfg.OutputPath).Msg("wrote text")
	return nil
}
