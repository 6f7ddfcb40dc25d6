package app

import (
	"io"
	"time"
)

// Defaults applied by DefaultConfig and by the command-line flags.
const (
	DefaultUserAgent   = "htmltext/1.0 (+https://github.com/hyperifyio/htmltext)"
	DefaultTimeout     = 15 * time.Second
	DefaultCacheDir    = ".htmltext-cache"
	DefaultRobotsTTL   = 30 * time.Minute
	DefaultMaxAttempts = 2
)

// Config holds runtime configuration for the application.
type Config struct {
	// Inputs are file paths, http(s) URLs or "-" for standard input.
	Inputs []string
	// OutputPath receives the combined text. Empty or "-" means standard output.
	OutputPath   string
	PDFPath      string
	ManifestPath string

	// Extraction
	Selector string
	Encoding string

	// Fetching
	UserAgent         string
	Timeout           time.Duration
	IgnoreRobots      bool
	AllowPrivateHosts bool

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	Verbose bool

	// Stdin and Stdout default to os.Stdin and os.Stdout when nil.
	Stdin  io.Reader
	Stdout io.Writer
}

// DefaultConfig returns the configuration used before any flag, environment
// variable or config file is applied.
func DefaultConfig() Config {
	return Config{
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
		CacheDir:  DefaultCacheDir,
	}
}
