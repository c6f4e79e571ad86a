package cmd

import (
	"fmt"

	"github.com/chrisdamba/menumanager/internal/factories"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the stored document with generated demo menus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		// seeding writes a whole new document, so a missing file is fine
		storeCfg := cfg.Store
		storeCfg.CreateFile = true
		store, closer, err := openStore(ctx, storeCfg, nil)
		if err != nil {
			return err
		}
		defer closer.Close()

		snap, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("error loading document: %w", err)
		}

		bar := progressbar.Default(int64(cfg.Seed.Restaurants), "generating restaurants")
		doc := factories.NewRestaurantFactory(cfg.Seed.Seed, cfg.Seed.MenuDishes).
			CreateDocument(cfg.Seed.Restaurants, func() { _ = bar.Add(1) })
		_ = bar.Finish()

		rev, err := store.Save(ctx, doc, snap.Revision)
		if err != nil {
			return fmt.Errorf("error saving document: %w", err)
		}
		logger.Info("document seeded",
			"restaurants", len(doc.Restaurants),
			"items", doc.ItemCount(),
			"revision", rev)
		return nil
	},
}

func init() {
	seedCmd.Flags().Int64("seed", 42, "Random seed for generated data")
	seedCmd.Flags().Int("restaurants", 3, "Number of restaurants to generate")
	seedCmd.Flags().String("dishes-file", "", "CSV file of category,name dishes to use instead of the built-in table")

	for key, name := range map[string]string{
		"seed.seed":        "seed",
		"seed.restaurants": "restaurants",
		"seed.dishes_file": "dishes-file",
	} {
		cobra.CheckErr(v.BindPFlag(key, seedCmd.Flags().Lookup(name)))
	}
	rootCmd.AddCommand(seedCmd)
}
