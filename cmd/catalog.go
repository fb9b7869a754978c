package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bogband/website/assets"
	"github.com/bogband/website/store"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Rebuild the slide catalog from the local press directory",
	Long: `Registers every image in <assets.dir>/press as a slide, in file name
order, for deployments that ship press images without a bucket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		slides, err := assets.LocalSlides(pressDir(cfg), "/press/")
		if err != nil {
			return err
		}
		if len(slides) == 0 {
			return errors.New("no press images found in " + pressDir(cfg))
		}

		db, err := store.NewDatabase(cfg.Site.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if err := db.ReplaceSlides(slides); err != nil {
			return err
		}
		slog.Info("slide catalog rebuilt", "slides", len(slides), "dir", pressDir(cfg))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
