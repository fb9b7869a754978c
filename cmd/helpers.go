package cmd

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bogband/website/api/client"
	"github.com/bogband/website/assets"
	"github.com/bogband/website/config"
	"github.com/bogband/website/store"
)

// assetSource reads images from the configured origin, or from the local asset dir.
func assetSource(cfg *config.Config) assets.Source {
	if cfg.Assets.Origin != "" {
		return client.NewAssetClient(cfg.Assets.Origin)
	}
	return assets.DirSource{Root: cfg.Assets.Dir}
}

// catalogSlides returns the synced slide list, or the configured one when nothing
// has been synced yet.
func catalogSlides(db *store.Database, cfg *config.Config) []string {
	paths, err := db.GetSlidePaths()
	if err != nil {
		slog.Warn("unable to read slide catalog, using configured slides", "error", err)
		return cfg.Slideshow.Slides
	}
	if len(paths) == 0 {
		return cfg.Slideshow.Slides
	}

	state, err := db.GetSyncState()
	if err != nil {
		slog.Warn("unable to read sync state", "error", err)
	} else if state != nil {
		slog.Info("using synced slides", "count", len(paths), "bucket", state.Bucket, "synced_at", state.SyncedAt)
	}
	return paths
}

func pressDir(cfg *config.Config) string {
	return filepath.Join(cfg.Assets.Dir, "press")
}

// syncCatalog records a finished sync alongside the slide list.
type syncCatalog struct {
	db     *store.Database
	bucket string
	prefix string
}

func (s *syncCatalog) ReplaceSlides(paths []string) error {
	if err := s.db.ReplaceSlides(paths); err != nil {
		return err
	}
	return s.db.UpsertSyncState(&store.SyncState{
		Bucket:   s.bucket,
		Prefix:   s.prefix,
		SyncedAt: time.Now(),
		Slides:   len(paths),
	})
}
