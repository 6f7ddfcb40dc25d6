package app

import (
	"os"
	"strings"
	"time"
)

// envPrefix namespaces every environment variable read by ApplyEnvOverrides.
const envPrefix = "HTMLTEXT_"

// ApplyEnvOverrides forcefully overrides cfg fields with HTMLTEXT_*
// environment variables when they are set. This lets env take precedence over
// values coming from a config file while still allowing flags to remain
// highest precedence.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.OutputPath, "OUTPUT")
	setString(&cfg.PDFPath, "PDF")
	setString(&cfg.ManifestPath, "MANIFEST")
	setString(&cfg.Selector, "SELECT")
	setString(&cfg.Encoding, "ENCODING")
	setString(&cfg.UserAgent, "USER_AGENT")
	setString(&cfg.CacheDir, "CACHE_DIR")

	setDuration := func(dst *time.Duration, key string) {
		if s := strings.TrimSpace(os.Getenv(envPrefix + key)); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				*dst = d
			}
		}
	}
	setDuration(&cfg.Timeout, "TIMEOUT")
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")

	// Booleans override when env present and truthy/falsey
	setBool := func(dst *bool, key string) {
		if v, ok := parseBool(os.Getenv(envPrefix + key)); ok {
			*dst = v
		}
	}
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.AllowPrivateHosts, "ROBOTS_ALLOW_PRIVATE")

	if v, ok := parseBool(os.Getenv(envPrefix + "ROBOTS")); ok {
		cfg.IgnoreRobots = !v
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
