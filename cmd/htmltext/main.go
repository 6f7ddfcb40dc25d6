package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/htmltext/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, showVersion, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	if showVersion {
		fmt.Println(app.VersionString())
		return
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps run errors to the process exit status: 2 when no input
// produced text, 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrNoUsableInputs):
		return 2
	default:
		return 1
	}
}

// parseConfig builds the run configuration from args. Precedence is flags,
// then HTMLTEXT_* environment (including dotenv files), then the config file,
// then defaults.
func parseConfig(args []string, stderr io.Writer) (app.Config, bool, error) {
	fs := flag.NewFlagSet("htmltext", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: htmltext [flags] [file|url|-]...\n\nConverts HTML to plain text. With no inputs, reads standard input.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	def := app.DefaultConfig()
	var (
		fl          app.Config
		configPath  string
		envFiles    string
		robotsOn    bool
		showVersion bool
	)
	fs.StringVar(&fl.OutputPath, "o", "", "Write text to this file instead of standard output")
	fs.StringVar(&fl.Selector, "select", "", "CSS selector limiting conversion to matching elements")
	fs.StringVar(&fl.Encoding, "encoding", "", "Force the input character encoding (e.g. windows-1252); default sniffs")
	fs.StringVar(&fl.PDFPath, "pdf", "", "Also render the text to this PDF file")
	fs.StringVar(&fl.ManifestPath, "manifest", "", "Write a JSON manifest of converted inputs to this file")
	fs.StringVar(&configPath, "config", "", "Path to YAML or JSON config file (default $HTMLTEXT_CONFIG)")
	fs.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load before reading HTMLTEXT_* variables")
	fs.StringVar(&fl.UserAgent, "ua", def.UserAgent, "User-Agent for URL inputs and robots.txt")
	fs.DurationVar(&fl.Timeout, "timeout", def.Timeout, "Per-request timeout for URL inputs")
	fs.BoolVar(&robotsOn, "robots", true, "Honour robots.txt for URL inputs")
	fs.BoolVar(&fl.AllowPrivateHosts, "robots.allowPrivate", false, "Allow robots.txt lookups on loopback and private hosts")
	fs.StringVar(&fl.CacheDir, "cache.dir", def.CacheDir, "HTTP cache directory; empty disables caching")
	fs.DurationVar(&fl.CacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this before the run; 0 disables")
	fs.BoolVar(&fl.CacheClear, "cache.clear", false, "Clear the cache directory before the run")
	fs.BoolVar(&fl.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.BoolVar(&fl.Verbose, "v", false, "Verbose logging")
	fs.BoolVar(&showVersion, "version", false, "Print version information and exit")
	if err := fs.Parse(args); err != nil {
		return app.Config{}, false, err
	}
	if showVersion {
		return app.Config{}, true, nil
	}

	if err := app.LoadEnvFiles(strings.Split(envFiles, ",")...); err != nil {
		return app.Config{}, false, fmt.Errorf("load env: %w", err)
	}
	if strings.TrimSpace(configPath) == "" {
		configPath = os.Getenv("HTMLTEXT_CONFIG")
	}

	cfg := def
	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return app.Config{}, false, fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	// Explicitly set flags win over everything else
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.OutputPath = fl.OutputPath
		case "select":
			cfg.Selector = fl.Selector
		case "encoding":
			cfg.Encoding = fl.Encoding
		case "pdf":
			cfg.PDFPath = fl.PDFPath
		case "manifest":
			cfg.ManifestPath = fl.ManifestPath
		case "ua":
			cfg.UserAgent = fl.UserAgent
		case "timeout":
			cfg.Timeout = fl.Timeout
		case "robots":
			cfg.IgnoreRobots = !robotsOn
		case "robots.allowPrivate":
			cfg.AllowPrivateHosts = fl.AllowPrivateHosts
		case "cache.dir":
			cfg.CacheDir = fl.CacheDir
		case "cache.maxAge":
			cfg.CacheMaxAge = fl.CacheMaxAge
		case "cache.clear":
			cfg.CacheClear = fl.CacheClear
		case "cache.strictPerms":
			cfg.CacheStrictPerms = fl.CacheStrictPerms
		case "v":
			cfg.Verbose = fl.Verbose
		}
	})

	if fs.NArg() > 0 {
		cfg.Inputs = fs.Args()
	}
	if len(cfg.Inputs) == 0 {
		cfg.Inputs = []string{"-"}
	}
	if err := app.ValidateConfig(cfg); err != nil {
		return app.Config{}, false, err
	}
	return cfg, false, nil
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	return a.Run(ctx)
}
