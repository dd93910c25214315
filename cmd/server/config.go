package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"blogicum/pkg/censor"
	"blogicum/pkg/storage"
	"blogicum/pkg/storage/memdb"
	"blogicum/pkg/storage/mongo"
	"blogicum/pkg/storage/postgres"
	"blogicum/pkg/storage/sqlite"
)

type Config struct {
	ServiceName string `toml:"serviceName"`
	HTTPAddr    string `toml:"httpAddr"`
	LogLevel    string `toml:"logLevel"`

	// Storage is one of memdb, sqlite, postgres, mongo.
	Storage    string          `toml:"storage"`
	SQLitePath string          `toml:"sqlitePath"`
	Postgres   postgres.Config `toml:"postgres"`

	KafkaAddr  string `toml:"kafkaAddr"`
	KafkaTopic string `toml:"kafkaTopic"`
	KafkaBatch int    `toml:"kafkaBatch"`

	Categories  []storage.Category `toml:"categories"`
	Locations   []storage.Location `toml:"locations"`
	BannedWords []censor.Word      `toml:"bannedWords"`
}

func loadConfig(path string) (*Config, error) {
	cfg := Config{
		ServiceName: "blogicum",
		HTTPAddr:    ":8000",
		LogLevel:    "info",
		Storage:     "memdb",
		SQLitePath:  "blogicum.db",
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("[server] unknown log level %q, using info", level)
		log.SetLevel(log.InfoLevel)
	}
}

// openStorage connects the backend named in cfg and makes sure it answers.
func openStorage(ctx context.Context, cfg *Config) (storage.Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.Storage {
	case "memdb":
		log.Info("[server] using in-memory storage, data is lost on exit")
		return memdb.New(), nil

	case "sqlite":
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrConnectDB, err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err)
		}
		log.Infof("[server] using sqlite storage at %s", cfg.SQLitePath)
		return db, nil

	case "postgres":
		conf := cfg.Postgres
		conf.Password = os.Getenv("POSTGRES_PASSWORD")
		if host := os.Getenv("POSTGRES_HOST"); host != "" {
			conf.Host = host
		}
		if port := os.Getenv("POSTGRES_PORT"); port != "" {
			conf.Port = port
		}
		if !conf.IsValid() {
			return nil, fmt.Errorf("invalid postgres config: %s", conf)
		}

		db, err := postgres.New(ctx, conf.ConString())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrConnectDB, err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate postgres schema: %w", err)
		}
		log.Infof("[server] connected to postgres: %s", conf)
		return db, nil

	case "mongo":
		conf, err := mongo.NewConfig()
		if err != nil {
			return nil, err
		}
		db, err := mongo.StorageConnect(ctx, conf)
		if err != nil {
			return nil, err
		}
		log.Infof("[server] connected to mongo at %s:%s/%s", conf.Host, conf.Port, conf.DBName)
		return db, nil
	}

	return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}
