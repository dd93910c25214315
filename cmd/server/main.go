package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"blogicum/pkg/api"
	"blogicum/pkg/censor"
)

func main() {
	var (
		configPath  string
		httpAddr    string
		logLevel    string
		storageKind string
		kafkaAddr   string
		kafkaTopic  string
	)

	flag.StringVar(&configPath, "config", "cmd/server/config.toml", "Path to TOML config file.")
	flag.StringVar(&httpAddr, "http", "", "HTTP server address in the form 'host:port'.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.StringVar(&storageKind, "storage", "", "Storage backend: memdb, sqlite, postgres, mongo.")
	flag.StringVar(&kafkaAddr, "kafka", "", "Kafka server address in the form 'host:port'.")
	flag.StringVar(&kafkaTopic, "topic", "", "Kafka topic for access logs.")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("[server] failed to load config file %s: %v", configPath, err)
	}

	// Override config with flags if set
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if storageKind != "" {
		cfg.Storage = storageKind
	}
	if kafkaAddr != "" {
		cfg.KafkaAddr = kafkaAddr
	}
	if kafkaTopic != "" {
		cfg.KafkaTopic = kafkaTopic
	}

	setLogLevel(cfg.LogLevel)
	if !strings.Contains(cfg.HTTPAddr, ":") {
		log.Warn("[server] use ':' before port number, e.g. ':8080'")
	}

	db, err := openStorage(context.Background(), cfg)
	if err != nil {
		log.Fatalf("[server] failed to open storage: %v", err)
	}
	defer db.Close()

	if err := seed(context.Background(), db, cfg.Categories, cfg.Locations); err != nil {
		log.Fatalf("[server] failed to seed storage: %v", err)
	}

	var kafkaWriter *kafka.Writer
	if cfg.KafkaAddr != "" && cfg.KafkaTopic != "" {
		kafkaWriter = newKafkaWriter(cfg)
		defer kafkaWriter.Close()

		err := createTopic(kafkaWriter.Addr.String(), kafkaWriter.Topic)
		if err != nil {
			log.Warnf("[server] failed to create Kafka topic: %v", err)
		}
	} else {
		log.Warnf("[server] kafka was not configured, access logs will not be sent to Kafka")
	}

	api, err := api.New(cfg.ServiceName, db, kafkaWriter)
	if err != nil {
		log.Fatalf("[server] failed to create API: %v", err)
	}
	if len(cfg.BannedWords) > 0 {
		api.Censor, err = censor.New(cfg.BannedWords)
		if err != nil {
			log.Fatalf("[server] failed to load banned words: %v", err)
		}
		log.Infof("[server] censoring %d banned words", len(cfg.BannedWords))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("[server] starting on %v", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] failed to start: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP server shutdown error: %v", err)
	} else {
		log.Info("[server] HTTP server shut down gracefully")
	}
}

// newKafkaWriter returns an asynchronous writer for the access log topic so
// that responses never wait for the broker. Delivery errors are only logged.
func newKafkaWriter(cfg *Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaAddr),
		Topic:        cfg.KafkaTopic,
		BatchSize:    cfg.KafkaBatch,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Errorf("[server] failed to deliver %d access log entries: %v", len(messages), err)
			}
		},
	}
}

func createTopic(broker, topic string) error {
	conn, err := kafka.DialContext(context.Background(), "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
