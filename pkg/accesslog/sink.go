package accesslog

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// LogSink writes entries as JSON lines.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(w io.Writer) *LogSink {
	logger := log.New()
	logger.SetOutput(w)
	logger.SetFormatter(&log.JSONFormatter{DisableTimestamp: true})
	return &LogSink{logger: logger}
}

func (s *LogSink) Store(ctx context.Context, e Entry) error {
	s.logger.WithFields(log.Fields{
		"timestamp":    e.Timestamp,
		"ip":           e.IP,
		"status_code":  e.StatusCode,
		"request_id":   e.RequestID,
		"method":       e.Method,
		"path":         e.Path,
		"user_id":      e.UserID,
		"bytes":        e.Bytes,
		"duration_sec": e.Duration,
		"service":      e.Service,
	}).Info("access")
	return nil
}

// MongoSink inserts entries into a collection.
type MongoSink struct {
	coll *mongo.Collection
}

func NewMongoSink(coll *mongo.Collection) *MongoSink {
	return &MongoSink{coll: coll}
}

func (s *MongoSink) Store(ctx context.Context, e Entry) error {
	_, err := s.coll.InsertOne(ctx, e)
	return err
}
