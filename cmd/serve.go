package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chrisdamba/menumanager/internal/events"
	"github.com/chrisdamba/menumanager/internal/factories"
	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/server"
	"github.com/chrisdamba/menumanager/internal/tree"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the menu document over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var seed *models.Document
		if demo, _ := cmd.Flags().GetBool("demo"); demo && cfg.Store.Driver == models.StoreDriverMemory {
			seed = factories.NewRestaurantFactory(cfg.Seed.Seed, cfg.Seed.MenuDishes).CreateDocument(cfg.Seed.Restaurants, nil)
		}

		store, closer, err := openStore(ctx, cfg.Store, seed)
		if err != nil {
			return err
		}
		defer closer.Close()

		var publisher events.Publisher = events.NopPublisher{}
		if cfg.Kafka.Enabled {
			kp, err := events.NewKafkaPublisher(cfg.Kafka, logger)
			if err != nil {
				return err
			}
			publisher = kp
		}
		defer publisher.Close()

		if !strings.EqualFold(cfg.Logging.Level, "debug") {
			gin.SetMode(gin.ReleaseMode)
		}
		engine := tree.NewEngine(store, tree.WithPublisher(publisher), tree.WithLogger(logger))
		return server.New(engine, cfg.Server, logger).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("structured-errors", false, "Report failures with a status per error kind and a JSON body")
	serveCmd.Flags().Bool("kafka-enabled", false, "Publish change events to Kafka")
	serveCmd.Flags().String("kafka-broker-list", "localhost:9092", "Kafka broker list")
	serveCmd.Flags().Bool("demo", false, "Seed the memory store with a generated document")

	for key, name := range map[string]string{
		"server.addr":              "addr",
		"server.structured_errors": "structured-errors",
		"kafka.enabled":            "kafka-enabled",
		"kafka.broker_list":        "kafka-broker-list",
	} {
		cobra.CheckErr(v.BindPFlag(key, serveCmd.Flags().Lookup(name)))
	}
	rootCmd.AddCommand(serveCmd)
}
