package config

import "time"

// Config is the top-level site configuration, corresponding to bogband.yml.
type Config struct {
	Server    ServerConfig    `yaml:"server" koanf:"server"`
	Site      SiteConfig      `yaml:"site" koanf:"site"`
	Assets    AssetsConfig    `yaml:"assets" koanf:"assets"`
	Slideshow SlideshowConfig `yaml:"slideshow" koanf:"slideshow"`
	Player    PlayerConfig    `yaml:"player" koanf:"player"`
	Session   SessionConfig   `yaml:"session" koanf:"session"`
	Remote    RemoteConfig    `yaml:"remote" koanf:"remote"`
	Log       LogConfig       `yaml:"log" koanf:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" koanf:"addr"`
	// Mode is the gin mode: debug, release or test.
	Mode string `yaml:"mode" koanf:"mode"`
}

type SiteConfig struct {
	Title       string `yaml:"title" koanf:"title"`
	Description string `yaml:"description" koanf:"description"`
	DBPath      string `yaml:"db_path" koanf:"db_path"`
}

// AssetsConfig holds where the press and nav images are read from.
type AssetsConfig struct {
	Dir string `yaml:"dir" koanf:"dir"`
	// Origin, when set, is an HTTP base URL the images are fetched from instead of Dir.
	Origin       string `yaml:"origin" koanf:"origin"`
	TargetMaxDim int    `yaml:"target_max_dim" koanf:"target_max_dim"`
	// CacheSize is how many images the server keeps in memory.
	CacheSize int `yaml:"cache_size" koanf:"cache_size"`
}

type SlideshowConfig struct {
	Period time.Duration `yaml:"period" koanf:"period"`
	Slides []string      `yaml:"slides" koanf:"slides"`
}

// PlayerConfig describes the embedded album player. Src is passed to the iframe unchanged.
type PlayerConfig struct {
	Src    string `yaml:"src" koanf:"src"`
	Link   string `yaml:"link" koanf:"link"`
	Label  string `yaml:"label" koanf:"label"`
	Height int    `yaml:"height" koanf:"height"`
}

type SessionConfig struct {
	TTL      time.Duration `yaml:"ttl" koanf:"ttl"`
	Capacity int           `yaml:"capacity" koanf:"capacity"`

	// Heartbeat is how often an open event stream renews its session. It is capped
	// at a third of TTL.
	Heartbeat time.Duration `yaml:"heartbeat" koanf:"heartbeat"`
}

// RemoteConfig configures the S3 press-image sync.
type RemoteConfig struct {
	Profile     string        `yaml:"profile" koanf:"profile"`
	Bucket      string        `yaml:"bucket" koanf:"bucket"`
	Prefix      string        `yaml:"prefix" koanf:"prefix"`
	Concurrency int           `yaml:"concurrency" koanf:"concurrency"`
	Interval    time.Duration `yaml:"interval" koanf:"interval"`
}

type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
}
