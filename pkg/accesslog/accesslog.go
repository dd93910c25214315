// Package accesslog carries request records from the web server to an archive
// through a Kafka topic.
package accesslog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Entry is one access log record.
type Entry struct {
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	IP         string    `json:"ip" bson:"ip"`
	StatusCode int       `json:"status_code" bson:"status_code"`
	RequestID  string    `json:"request_id" bson:"request_id"`
	Method     string    `json:"method" bson:"method"`
	Path       string    `json:"path" bson:"path"`
	UserID     int64     `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Bytes      int       `json:"bytes" bson:"bytes"`
	Duration   float64   `json:"duration_sec" bson:"duration_sec"`
	Service    string    `json:"service" bson:"service"`
}

// Reader is the part of *kafka.Reader the archiver needs.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Sink stores decoded entries.
type Sink interface {
	Store(ctx context.Context, e Entry) error
}

// Run reads messages from r until ctx is cancelled and hands them to numWorkers
// workers that decode and store them. It returns after all workers exit.
func Run(ctx context.Context, r Reader, sink Sink, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}

	jobs := make(chan kafka.Message, numWorkers*5)
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for workerID := 0; workerID < numWorkers; workerID++ {
		go func(id int) {
			defer wg.Done()
			worker(ctx, sink, jobs, id)
		}(workerID)
	}

	log.Info("[logkeeper] accepting logs...")
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break
			}
			log.Errorf("[logkeeper] failed to read message from Kafka: %v", err)
			continue
		}

		select {
		case jobs <- msg:
		case <-ctx.Done():
		}
	}

	close(jobs)
	wg.Wait()
}

func worker(ctx context.Context, sink Sink, jobs <-chan kafka.Message, workerID int) {
	for msg := range jobs {
		var entry Entry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			log.Errorf("[logkeeper][workerID:%d] failed to unmarshal log entry: %v", workerID, err)
			continue
		}

		if err := sink.Store(ctx, entry); err != nil {
			log.Errorf("[logkeeper][workerID:%d] failed to store log entry: %v", workerID, err)
			continue
		}
		log.Debugf("[logkeeper][workerID:%d][%s] log entry stored", workerID, shorten(entry.RequestID))
	}
	log.Infof("[logkeeper][workerID:%d] jobs channel closed, exiting worker", workerID)
}

func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
