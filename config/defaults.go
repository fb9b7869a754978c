package config

import "time"

const (
	DefaultPeriod    = 4 * time.Second
	DefaultHeartbeat = 15 * time.Second
	DefaultPlayerSrc = "https://bandcamp.com/EmbeddedPlayer/album=958982629/size=large/bgcol=ffffff/linkcol=0687f5/tracklist=false/artwork=small/transparent=true/"
)

// DefaultSlides are the press images shown when the slide catalog is empty.
var DefaultSlides = []string{
	"/press/bb_press0.png",
	"/press/bb_press1.jpg",
	"/press/bb_press2.jpg",
	"/press/bb_press3.png",
}

// DefaultConfig returns a Config with the site's defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "0.0.0.0:8080",
			Mode: "release",
		},
		Site: SiteConfig{
			Title:       "Bog Band",
			Description: "Official website for Bog Band",
			DBPath:      "data/bogband.db",
		},
		Assets: AssetsConfig{
			Dir:          "public",
			TargetMaxDim: 1080,
			CacheSize:    256,
		},
		Slideshow: SlideshowConfig{
			Period: DefaultPeriod,
			Slides: append([]string(nil), DefaultSlides...),
		},
		Player: PlayerConfig{
			Src:    DefaultPlayerSrc,
			Link:   "https://bog-band.bandcamp.com/album/vanity-project",
			Label:  "Vanity Project by bog band",
			Height: 120,
		},
		Session: SessionConfig{
			TTL:       30 * time.Minute,
			Capacity:  1024,
			Heartbeat: DefaultHeartbeat,
		},
		Remote: RemoteConfig{
			Prefix:      "press/",
			Concurrency: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
