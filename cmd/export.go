package cmd

import (
	"fmt"

	"github.com/chrisdamba/menumanager/internal/cloudwriter"
	"github.com/chrisdamba/menumanager/internal/export"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every item to a Parquet file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closer, err := openStore(ctx, cfg.Store, nil)
		if err != nil {
			return err
		}
		defer closer.Close()

		snap, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("error loading document: %w", err)
		}

		bar := progressbar.Default(int64(snap.Document.ItemCount()), "exporting items")
		opts := []export.Option{export.WithProgress(func() { _ = bar.Add(1) })}

		switch cfg.Export.Destination {
		case "local":
		case "s3":
			factory, err := cloudwriter.NewS3WriterFactory(cfg.Export.Region)
			if err != nil {
				return fmt.Errorf("failed to create cloud writer factory: %w", err)
			}
			opts = append(opts, export.WithCloud(factory, cfg.Export.Bucket))
		default:
			return fmt.Errorf("unsupported export destination: %s", cfg.Export.Destination)
		}

		n, err := export.New(opts...).Export(snap.Document, cfg.Export.OutputPath)
		if err != nil {
			return err
		}
		_ = bar.Finish()
		logger.Info("items exported",
			"rows", n,
			"destination", cfg.Export.Destination,
			"path", cfg.Export.OutputPath,
			"revision", snap.Revision)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "items.parquet", "Output file or object path")
	exportCmd.Flags().String("destination", "local", "local or s3")
	exportCmd.Flags().String("bucket", "", "S3 bucket for the s3 destination")

	for key, name := range map[string]string{
		"export.output_path": "output",
		"export.destination": "destination",
		"export.bucket":      "bucket",
	} {
		cobra.CheckErr(v.BindPFlag(key, exportCmd.Flags().Lookup(name)))
	}
	rootCmd.AddCommand(exportCmd)
}
