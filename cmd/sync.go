package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bogband/website/assets"
	"github.com/bogband/website/store"
)

const defaultWatchInterval = time.Hour

var (
	watchSync  bool
	allowEmpty bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull press images from the S3 bucket and update the slide catalog",
	Long: `Downloads new press images from remote.bucket into <assets.dir>/press,
removes local images the bucket no longer has, downscales oversized images
and rewrites the slide catalog. Restart serve to pick up the new slides.

An empty bucket listing is treated as an error and deletes nothing, unless
--allow-empty is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bucket, err := assets.NewS3Bucket(ctx, cfg.Remote.Profile, cfg.Remote.Bucket, cfg.Remote.Prefix)
		if err != nil {
			return fmt.Errorf("connecting to bucket: %w", err)
		}

		db, err := store.NewDatabase(cfg.Site.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		rs, err := assets.NewRemoteSync(bucket, &syncCatalog{db: db, bucket: cfg.Remote.Bucket, prefix: cfg.Remote.Prefix}, assets.RemoteSyncConfig{
			Dir:          pressDir(cfg),
			URLPrefix:    "/press/",
			TargetMaxDim: cfg.Assets.TargetMaxDim,
			Concurrency:  cfg.Remote.Concurrency,
			AllowEmpty:   allowEmpty,
		})
		if err != nil {
			return err
		}

		if watchSync {
			interval := cfg.Remote.Interval
			if interval <= 0 {
				interval = defaultWatchInterval
			}
			slog.Info("watching bucket", "bucket", cfg.Remote.Bucket, "interval", interval)
			rs.Run(ctx, interval)
			return nil
		}

		changed, err := rs.SyncFolder(ctx)
		if err != nil {
			return fmt.Errorf("syncing press images: %w", err)
		}
		count, err := db.GetSlideCount()
		if err != nil {
			return err
		}
		slog.Info("sync complete", "changed", changed, "slides", count)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&watchSync, "watch", false, "keep syncing every remote.interval")
	syncCmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "mirror an empty bucket by deleting every local press image")
	rootCmd.AddCommand(syncCmd)
}
