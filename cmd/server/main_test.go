package main

import (
	"testing"
	"time"
)

func TestNewKafkaWriter(t *testing.T) {
	cfg := &Config{KafkaAddr: "kafka:9092", KafkaTopic: "blogicum-access-log", KafkaBatch: 1}

	w := newKafkaWriter(cfg)
	defer w.Close()

	if !w.Async {
		t.Error("want asynchronous writer so requests do not wait for the broker")
	}
	if w.BatchTimeout <= 0 || w.BatchTimeout > 100*time.Millisecond {
		t.Errorf("want short batch timeout, got %v", w.BatchTimeout)
	}
	if w.Completion == nil {
		t.Error("want completion callback reporting delivery errors")
	}
	if w.Topic != cfg.KafkaTopic || w.Addr.String() != cfg.KafkaAddr {
		t.Errorf("want writer for %s at %s, got %s at %s", cfg.KafkaTopic, cfg.KafkaAddr, w.Topic, w.Addr)
	}
}
