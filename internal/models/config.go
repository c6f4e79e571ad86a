package models

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type MenuDish struct {
	Name     string `mapstructure:"name"`
	Category string `mapstructure:"category"`
}

type ServerConfig struct {
	Addr             string        `mapstructure:"addr"`
	StructuredErrors bool          `mapstructure:"structured_errors"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
}

type S3Config struct {
	Region string `mapstructure:"region"`
	Bucket string `mapstructure:"bucket"`
	Key    string `mapstructure:"key"`
}

type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	FilePath string `mapstructure:"file_path"`
	// CreateFile makes the file store write an empty document when the file
	// is missing. Otherwise a missing file is reported as unavailable.
	CreateFile  bool     `mapstructure:"create_file"`
	DatabaseURL string   `mapstructure:"database_url"`
	SQLitePath  string   `mapstructure:"sqlite_path"`
	DocumentID  string   `mapstructure:"document_id"`
	S3          S3Config `mapstructure:"s3"`
}

type KafkaConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	BrokerList       string `mapstructure:"broker_list"`
	Topic            string `mapstructure:"topic"`
	SessionTimeoutMs int    `mapstructure:"session_timeout_ms"`
}

type ExportConfig struct {
	OutputPath  string `mapstructure:"output_path"`
	Destination string `mapstructure:"destination"` // local or s3
	Bucket      string `mapstructure:"bucket"`
	Region      string `mapstructure:"region"`
}

type SeedConfig struct {
	Seed        int64      `mapstructure:"seed"`
	Restaurants int        `mapstructure:"restaurants"`
	DishesFile  string     `mapstructure:"dishes_file"`
	MenuDishes  []MenuDish `mapstructure:"menu_dishes"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Export  ExportConfig  `mapstructure:"export"`
	Seed    SeedConfig    `mapstructure:"seed"`
	Logging LoggingConfig `mapstructure:"logging"`
	// APIURL is where the client commands send requests.
	APIURL string `mapstructure:"api_url"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.structured_errors", false)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("store.driver", StoreDriverFile)
	v.SetDefault("store.file_path", DefaultMenuFile)
	v.SetDefault("store.create_file", false)
	v.SetDefault("store.sqlite_path", "menus.db")
	v.SetDefault("store.document_id", "default")
	v.SetDefault("store.s3.key", "menus/"+DefaultMenuFile)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.broker_list", "localhost:9092")
	v.SetDefault("kafka.topic", "menu.changes")
	v.SetDefault("export.output_path", "items.parquet")
	v.SetDefault("export.destination", "local")
	v.SetDefault("seed.seed", 42)
	v.SetDefault("seed.restaurants", 3)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// LoadConfig reads .env, the optional config file and MENU_* environment
// variables into a Config.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("menumanager")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MENU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			config.DecodeHook,
			mapstructure.StringToTimeDurationHookFunc(),
		)
	})
	if err := v.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if config.Seed.DishesFile != "" {
		if err := config.LoadMenuDishData(config.Seed.DishesFile); err != nil {
			return nil, fmt.Errorf("error loading dishes file: %w", err)
		}
	}

	return &config, nil
}

// LoadMenuDishData appends dishes from a CSV file with a header row and
// "category,name" columns.
func (cfg *Config) LoadMenuDishData(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil && err != io.EOF {
		return err
	}

	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(fields) < 2 {
			continue
		}
		dish := MenuDish{
			Category: fields[0],
			Name:     fields[1],
		}
		cfg.Seed.MenuDishes = append(cfg.Seed.MenuDishes, dish)
	}

	return nil
}
