package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     *models.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "menumanager",
	Short: "Edits a restaurant menu document through path-addressed mutations",
	Long: `menumanager serves a nested restaurant → menu → category → item document over HTTP
and edits it with path-addressed update, add and delete operations. The client
commands talk to a running server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = models.LoadConfig(v, cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		logger = newLogger(cfg.Logging)
		slog.SetDefault(logger)
		if used := v.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", "path", used)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./menumanager.yaml)")
	rootCmd.PersistentFlags().String("api-url", "http://localhost:8080", "Base URL of the menu server")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().String("store-driver", models.StoreDriverFile, "Document store (memory, file, postgres, sqlite, s3)")
	rootCmd.PersistentFlags().String("menu-file", models.DefaultMenuFile, "Menu file used by the file store")
	rootCmd.PersistentFlags().Bool("create-menu-file", false, "Create the menu file with an empty document if it is missing")

	for key, name := range map[string]string{
		"api_url":           "api-url",
		"logging.level":     "log-level",
		"logging.format":    "log-format",
		"store.driver":      "store-driver",
		"store.file_path":   "menu-file",
		"store.create_file": "create-menu-file",
	} {
		cobra.CheckErr(v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)))
	}
}

func newLogger(c models.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
