package deadletter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/headline-radar/internal/deadletter"
	"github.com/DeafMist/headline-radar/internal/enrich"
)

type stubWriter struct {
	failures int
	calls    int
	written  []kafka.Message
	closed   bool
}

func (s *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("broker unavailable")
	}
	s.written = append(s.written, msgs...)
	return nil
}

func (s *stubWriter) Close() error {
	s.closed = true
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishEncodesFailure(t *testing.T) {
	w := &stubWriter{}
	p := deadletter.New(w, discard(), 3, 0)

	err := p.Publish(context.Background(), "run-1", enrich.Failure{
		ID:   "doc-7",
		Text: "Fed raised rates",
		Err:  errors.New("model crashed"),
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)

	msg := w.written[0]
	require.Equal(t, "doc-7", string(msg.Key))

	var rec deadletter.Record
	require.NoError(t, json.Unmarshal(msg.Value, &rec))
	require.Equal(t, deadletter.Record{RunID: "run-1", ID: "doc-7", Text: "Fed raised rates", Error: "model crashed"}, rec)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, "run-1", headers["run_id"])
	require.Equal(t, "model crashed", headers["error"])
	require.NotEmpty(t, headers["timestamp"])
}

func TestPublishRetries(t *testing.T) {
	w := &stubWriter{failures: 2}
	p := deadletter.New(w, discard(), 3, 0)

	require.NoError(t, p.Publish(context.Background(), "run", enrich.Failure{ID: "x"}))
	require.Equal(t, 3, w.calls)
	require.Len(t, w.written, 1)
}

func TestPublishGivesUp(t *testing.T) {
	w := &stubWriter{failures: 10}
	p := deadletter.New(w, discard(), 2, 0)

	err := p.Publish(context.Background(), "run", enrich.Failure{ID: "x"})
	require.ErrorContains(t, err, "broker unavailable")
	require.Equal(t, 2, w.calls)

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}
