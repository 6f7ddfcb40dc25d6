package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	apppkg "github.com/hyperifyio/htmltext/internal/app"
)

// clearEnv isolates a test from HTMLTEXT_* variables set in the caller's shell.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OUTPUT", "SELECT", "ENCODING", "USER_AGENT", "TIMEOUT", "CACHE_DIR", "CACHE_MAX_AGE",
		"CACHE_CLEAR", "CACHE_STRICT_PERMS", "ROBOTS", "ROBOTS_ALLOW_PRIVATE", "VERBOSE", "PDF", "MANIFEST", "CONFIG"} {
		t.Setenv("HTMLTEXT_"+k, "")
	}
}

func TestParseConfig_DefaultsToStdin(t *testing.T) {
	clearEnv(t)
	cfg, showVersion, err := parseConfig([]string{"-env", ""}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if showVersion {
		t.Fatalf("unexpected version request")
	}
	if len(cfg.Inputs) != 1 || cfg.Inputs[0] != "-" {
		t.Fatalf("inputs=%q, want [-]", cfg.Inputs)
	}
	if cfg.UserAgent != apppkg.DefaultUserAgent || cfg.Timeout != apppkg.DefaultTimeout || cfg.IgnoreRobots {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

// Flags beat environment, environment beats the config file, and the file
// beats defaults.
func TestParseConfig_Precedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "htmltext.yaml")
	content := "select: main\nencoding: latin1\noutput: from-file.txt\ntimeout: 7s\ninputs: [file-input.html]\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("HTMLTEXT_ENCODING=windows-1252\nHTMLTEXT_OUTPUT=from-env.txt\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	args := []string{"-config", cfgPath, "-env", envPath, "-o", "from-flag.txt", "-robots=false", "a.html", "b.html"}
	cfg, _, err := parseConfig(args, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.OutputPath != "from-flag.txt" {
		t.Fatalf("OutputPath=%q, want flag value", cfg.OutputPath)
	}
	if cfg.Encoding != "windows-1252" {
		t.Fatalf("Encoding=%q, want env value", cfg.Encoding)
	}
	if cfg.Selector != "main" || cfg.Timeout != 7*time.Second {
		t.Fatalf("file values not applied: selector=%q timeout=%v", cfg.Selector, cfg.Timeout)
	}
	if !cfg.IgnoreRobots {
		t.Fatalf("-robots=false should disable robots checks")
	}
	if len(cfg.Inputs) != 2 || cfg.Inputs[0] != "a.html" {
		t.Fatalf("positional inputs should replace file inputs, got %q", cfg.Inputs)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	clearEnv(t)
	var stderr bytes.Buffer
	if _, _, err := parseConfig([]string{"-nope"}, &stderr); err == nil {
		t.Fatalf("expected unknown flag error")
	}
	if _, _, err := parseConfig([]string{"-h"}, &stderr); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	if !bytes.Contains(stderr.Bytes(), []byte("Usage: htmltext")) {
		t.Fatalf("usage not printed: %s", stderr.String())
	}
	if _, _, err := parseConfig([]string{"-env", "", "-select", "a[href", "x.html"}, &stderr); err == nil {
		t.Fatalf("expected invalid selector error")
	}
	if _, _, err := parseConfig([]string{"-env", "", "-config", filepath.Join(t.TempDir(), "missing.yaml")}, &stderr); err == nil {
		t.Fatalf("expected missing config file error")
	}
}

func TestParseConfig_Version(t *testing.T) {
	clearEnv(t)
	_, showVersion, err := parseConfig([]string{"-version"}, &bytes.Buffer{})
	if err != nil || !showVersion {
		t.Fatalf("expected version request, got show=%v err=%v", showVersion, err)
	}
}

// Smoke test: run converts a file end to end.
func TestRun_WritesOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.html")
	out := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(in, []byte("<h1>Title</h1><p>Body</p>"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	cfg := apppkg.DefaultConfig()
	cfg.Inputs = []string{in}
	cfg.OutputPath = out
	cfg.CacheDir = filepath.Join(dir, "cache")
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run error: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(b) != "TitleBody\r\n" {
		t.Fatalf("output=%q", b)
	}
}

// Ensures exit code policy conditions are surfaced from run().
func TestRun_NoUsableInputs_ExitCode(t *testing.T) {
	dir := t.TempDir()
	cfg := apppkg.DefaultConfig()
	cfg.Inputs = []string{filepath.Join(dir, "missing.html")}
	cfg.CacheDir = ""
	err := run(context.Background(), cfg)
	if !errors.Is(err, apppkg.ErrNoUsableInputs) {
		t.Fatalf("expected ErrNoUsableInputs, got %v", err)
	}
	if got := exitCode(err); got != 2 {
		t.Fatalf("exitCode=%d, want 2", got)
	}
}

func TestExitCode(t *testing.T) {
	if exitCode(nil) != 0 {
		t.Fatalf("nil error should exit 0")
	}
	if exitCode(fmt.Errorf("wrapped: %w", apppkg.ErrNoUsableInputs)) != 2 {
		t.Fatalf("wrapped ErrNoUsableInputs should exit 2")
	}
	if exitCode(errors.New("boom")) != 1 {
		t.Fatalf("other errors should exit 1")
	}
}
