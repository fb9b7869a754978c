package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/bogband/website/api"
	"github.com/bogband/website/assets"
	"github.com/bogband/website/clock"
	"github.com/bogband/website/navigation"
	"github.com/bogband/website/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the website server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if cfg.Server.Mode != "" {
			gin.SetMode(cfg.Server.Mode)
		}

		db, err := store.NewDatabase(cfg.Site.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		cache := assets.NewSizedCache(assetSource(cfg), cfg.Assets.CacheSize)
		for _, item := range navigation.Items() {
			cache.Preload(item.Image)
		}

		ws, err := api.NewWebServer(cfg, catalogSlides(db, cfg), cache, clock.Real{})
		if err != nil {
			return fmt.Errorf("creating web server: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return ws.Start(ctx, cfg.Server.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides server.addr")
	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = serveCmd.RunE
}
