package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Config
		wantErr bool
	}{
		{
			name: "Defaults fill missing keys",
			body: `kafkaBrokers = ["kafka:9092"]`,
			want: Config{
				LogLevel: "info", KafkaBrokers: []string{"kafka:9092"}, KafkaTopic: "blogicum-access-log",
				KafkaGroupID: "logkeeper", Sink: "log", MongoCollection: "access_log", NumWorkers: 4,
			},
		},
		{
			name: "File overrides defaults",
			body: "kafkaBrokers = [\"a:1\", \"b:2\"]\nsink = \"mongo\"\nnumWorkers = 8\n",
			want: Config{
				LogLevel: "info", KafkaBrokers: []string{"a:1", "b:2"}, KafkaTopic: "blogicum-access-log",
				KafkaGroupID: "logkeeper", Sink: "mongo", MongoCollection: "access_log", NumWorkers: 8,
			},
		},
		{
			name:    "No brokers",
			body:    `sink = "log"`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadConfig(writeConfig(t, tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("want error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr {
				return
			}
			if got.Sink != tt.want.Sink || got.NumWorkers != tt.want.NumWorkers ||
				got.KafkaTopic != tt.want.KafkaTopic || got.KafkaGroupID != tt.want.KafkaGroupID ||
				got.MongoCollection != tt.want.MongoCollection || len(got.KafkaBrokers) != len(tt.want.KafkaBrokers) {
				t.Errorf("want %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestOpenSink(t *testing.T) {
	sink, closeSink, err := openSink(context.Background(), Config{Sink: "log"})
	if err != nil || sink == nil {
		t.Fatalf("want log sink, got %v, %v", sink, err)
	}
	closeSink()

	if _, _, err := openSink(context.Background(), Config{Sink: "elastic"}); err == nil {
		t.Error("want error for unknown sink")
	}
}
