// Command logkeeper archives the access log entries the blog server writes to
// Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
	mongodrv "go.mongodb.org/mongo-driver/mongo"

	"blogicum/pkg/accesslog"
	"blogicum/pkg/storage/mongo"
)

type Config struct {
	LogLevel     string   `toml:"logLevel"`
	KafkaBrokers []string `toml:"kafkaBrokers"`
	KafkaTopic   string   `toml:"kafkaTopic"`
	KafkaGroupID string   `toml:"kafkaGroupID"`

	// Sink is "log" or "mongo".
	Sink            string `toml:"sink"`
	MongoCollection string `toml:"mongoCollection"`

	NumWorkers int `toml:"numWorkers"`
}

func loadConfig(path string) (Config, error) {
	cfg := Config{
		LogLevel:        "info",
		KafkaTopic:      "blogicum-access-log",
		KafkaGroupID:    "logkeeper",
		Sink:            "log",
		MongoCollection: "access_log",
		NumWorkers:      4,
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if len(cfg.KafkaBrokers) == 0 {
		return Config{}, fmt.Errorf("no kafka brokers configured")
	}
	return cfg, nil
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// openSink returns the configured sink and a function releasing its resources.
func openSink(ctx context.Context, cfg Config) (accesslog.Sink, func(), error) {
	switch cfg.Sink {
	case "log":
		return accesslog.NewLogSink(os.Stdout), func() {}, nil
	case "mongo":
		conf, err := mongo.NewConfig()
		if err != nil {
			return nil, nil, err
		}
		client, err := mongodrv.Connect(ctx, conf.Options())
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}
		coll := client.Database(conf.DBName).Collection(cfg.MongoCollection)
		return accesslog.NewMongoSink(coll), func() { client.Disconnect(context.Background()) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}

func main() {
	var (
		configPath string
		logLevel   string
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("[logkeeper] shutting down gracefully...")
		cancel()
	}()

	flag.StringVar(&configPath, "config", "config.toml", "Path to TOML config file")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("[logkeeper] failed to load config file %s: %v", configPath, err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	setLogLevel(cfg.LogLevel)

	sink, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		log.Fatalf("[logkeeper] failed to open %s sink: %v", cfg.Sink, err)
	}
	defer closeSink()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	defer r.Close()

	accesslog.Run(ctx, r, sink, cfg.NumWorkers)
	log.Info("[logkeeper] stopped")
}
