package accesslog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

// fakeReader serves msgs and then blocks until the context is cancelled.
type fakeReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	if msg.Value == nil {
		return kafka.Message{}, errors.New("broker hiccup")
	}
	return msg, nil
}

type memSink struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *memSink) Store(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func message(t *testing.T, e Entry) kafka.Message {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Value: b}
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeReader{cancel: cancel}
	for i := 0; i < 20; i++ {
		r.msgs = append(r.msgs, message(t, Entry{RequestID: "req", StatusCode: 200, Path: "/"}))
	}
	r.msgs = append(r.msgs,
		kafka.Message{Value: []byte("not json")},
		kafka.Message{},
		message(t, Entry{RequestID: "last", StatusCode: 404, Path: "/missing/"}),
	)

	sink := &memSink{}
	done := make(chan struct{})
	go func() {
		Run(ctx, r, sink, 4)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.entries) != 21 {
		t.Errorf("want 21 stored entries, got %d", len(sink.entries))
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(&buf)

	err := sink.Store(context.Background(), Entry{RequestID: "abc", Method: "GET", Path: "/posts/1/", StatusCode: 200})
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &got); err != nil {
		t.Fatalf("want one JSON line, got %q: %v", buf.String(), err)
	}
	if got["path"] != "/posts/1/" || got["request_id"] != "abc" || got["status_code"] != float64(200) {
		t.Errorf("unexpected log line %v", got)
	}
}
