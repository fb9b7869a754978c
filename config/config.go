// Package config loads the site configuration from YAML and BOGBAND_* environment variables
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const EnvPrefix = "BOGBAND_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. A double underscore separates nesting
// levels: BOGBAND_SESSION__TTL -> session.ttl.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	// A missing file leaves the defaults in place.
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	// a configured list replaces the default one instead of overlaying it element-wise
	if k.Exists("slideshow.slides") {
		cfg.Slideshow.Slides = k.Strings("slideshow.slides")
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validModes = map[string]bool{
	"debug":   true,
	"release": true,
	"test":    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("invalid server.addr %q: %w", c.Server.Addr, err)
	}
	if c.Server.Mode != "" && !validModes[c.Server.Mode] {
		return fmt.Errorf("invalid server.mode %q: must be one of debug, release, test", c.Server.Mode)
	}

	if c.Site.DBPath == "" {
		return fmt.Errorf("site.db_path is required")
	}

	if c.Assets.Dir == "" && c.Assets.Origin == "" {
		return fmt.Errorf("one of assets.dir or assets.origin is required")
	}
	if c.Assets.TargetMaxDim < 0 {
		return fmt.Errorf("assets.target_max_dim must be non-negative")
	}
	if c.Assets.CacheSize < 0 {
		return fmt.Errorf("assets.cache_size must be non-negative")
	}

	if c.Slideshow.Period <= 0 {
		return fmt.Errorf("slideshow.period must be positive")
	}
	if len(c.Slideshow.Slides) == 0 {
		return fmt.Errorf("slideshow.slides must not be empty")
	}
	for _, s := range c.Slideshow.Slides {
		if !strings.HasPrefix(s, "/") {
			return fmt.Errorf("invalid slide %q: must be an absolute url path", s)
		}
	}

	if c.Player.Height < 0 {
		return fmt.Errorf("player.height must be non-negative")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Session.Capacity <= 0 {
		return fmt.Errorf("session.capacity must be positive")
	}
	if c.Session.Heartbeat < 0 {
		return fmt.Errorf("session.heartbeat must be non-negative")
	}

	if c.Remote.Concurrency < 0 {
		return fmt.Errorf("remote.concurrency must be non-negative")
	}
	if c.Remote.Interval < 0 {
		return fmt.Errorf("remote.interval must be non-negative")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses the configured level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q: %w", l.Level, err)
	}
	return level, nil
}
