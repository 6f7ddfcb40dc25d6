package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/htmltext/internal/extract"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to the dotted flag names.
type FileConfig struct {
	Inputs   []string `yaml:"inputs" json:"inputs"`
	Output   string   `yaml:"output" json:"output"`
	PDF      string   `yaml:"pdf" json:"pdf"`
	Manifest string   `yaml:"manifest" json:"manifest"`

	Select   string `yaml:"select" json:"select"`
	Encoding string `yaml:"encoding" json:"encoding"`

	UserAgent string        `yaml:"userAgent" json:"userAgent"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	Verbose   bool          `yaml:"verbose" json:"verbose"`

	Robots struct {
		Enable            *bool `yaml:"enable" json:"enable"`
		AllowPrivateHosts bool  `yaml:"allowPrivateHosts" json:"allowPrivateHosts"`
	} `yaml:"robots" json:"robots"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value set in fc onto cfg. It is applied to
// DefaultConfig before environment overrides and explicit flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}

	if len(fc.Inputs) > 0 {
		cfg.Inputs = append([]string{}, fc.Inputs...)
	}
	if fc.Output != "" {
		cfg.OutputPath = fc.Output
	}
	if fc.PDF != "" {
		cfg.PDFPath = fc.PDF
	}
	if fc.Manifest != "" {
		cfg.ManifestPath = fc.Manifest
	}

	if fc.Select != "" {
		cfg.Selector = fc.Select
	}
	if fc.Encoding != "" {
		cfg.Encoding = fc.Encoding
	}

	if fc.UserAgent != "" {
		cfg.UserAgent = fc.UserAgent
	}
	if fc.Timeout > 0 {
		cfg.Timeout = fc.Timeout
	}
	if fc.Verbose {
		cfg.Verbose = true
	}

	// Robots checks default on; only an explicit enable=false turns them off
	if fc.Robots.Enable != nil {
		cfg.IgnoreRobots = !*fc.Robots.Enable
	}
	if fc.Robots.AllowPrivateHosts {
		cfg.AllowPrivateHosts = true
	}

	if fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
}

// ValidateConfig performs schema validation before any input is touched.
func ValidateConfig(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: at least one input is required")
	}
	for i, in := range cfg.Inputs {
		if strings.TrimSpace(in) == "" {
			return fmt.Errorf("config: input %d is empty", i+1)
		}
	}
	if cfg.Timeout < 0 || cfg.CacheMaxAge < 0 {
		return errors.New("config: negative durations are not allowed")
	}
	if err := extract.CompileSelector(cfg.Selector); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Encoding != "" && !extract.ValidEncoding(cfg.Encoding) {
		return fmt.Errorf("config: unknown encoding %q", cfg.Encoding)
	}
	return nil
}
