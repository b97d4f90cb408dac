// Package deadletter publishes documents that failed enrichment to Kafka so
// they can be inspected or replayed later.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/headline-radar/internal/enrich"
)

// Writer is the subset of *kafka.Writer used by the publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Record is the JSON value of a dead-letter message.
type Record struct {
	RunID string `json:"run_id"`
	ID    string `json:"id"`
	Text  string `json:"headline_text"`
	Error string `json:"error"`
}

// Publisher writes enrichment failures with retry.
type Publisher struct {
	w        Writer
	log      *slog.Logger
	attempts int
	backoff  time.Duration
}

// NewKafka builds a publisher writing to topic on brokers.
func NewKafka(brokers []string, topic string, log *slog.Logger) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		MaxAttempts: 3,
	})
	return New(w, log, 5, time.Second)
}

// New wraps w. Each Publish makes at most attempts writes, doubling the wait
// after every failure starting at backoff.
func New(w Writer, log *slog.Logger, attempts int, backoff time.Duration) *Publisher {
	if attempts <= 0 {
		attempts = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{w: w, log: log, attempts: attempts, backoff: backoff}
}

// Publish implements enrich.FailureSink.
func (p *Publisher) Publish(ctx context.Context, runID string, f enrich.Failure) error {
	rec := Record{RunID: runID, ID: f.ID, Text: f.Text}
	if f.Err != nil {
		rec.Error = f.Err.Error()
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(f.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "error", Value: []byte(rec.Error)},
			{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	}

	var lastErr error
	for attempt := range p.attempts {
		if lastErr = p.w.WriteMessages(ctx, msg); lastErr == nil {
			p.log.Info("dead letter sent", slog.String("id", f.ID), slog.Int("attempt", attempt+1))
			return nil
		}
		if attempt == p.attempts-1 {
			break
		}

		backoff := p.backoff * time.Duration(1<<uint(attempt))
		p.log.Warn("dead letter write failed, retrying",
			slog.Any("err", lastErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("dead letter %s: exhausted %d attempts: %w", f.ID, p.attempts, lastErr)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
