package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_Publish(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr error
	}{
		{
			name: "valid message",
			msg:  NewMessage().WithKey("res-1").WithValue(map[string]string{"a": "b"}).WithEventType("reservation.created").Build(),
		},
		{
			name:    "missing key",
			msg:     NewMessage().WithValue("x").Build(),
			wantErr: ErrEmptyKey,
		},
		{
			name:    "unencodable value",
			msg:     NewMessage().WithKey("k").WithValue(make(chan int)).Build(),
			wantErr: ErrEmptyValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{}
			p := newProducer(w, nil, "events", "")

			err := p.Publish(context.Background(), tt.msg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Publish() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if len(w.messages) != 1 {
					t.Fatalf("expected 1 written message, got %d", len(w.messages))
				}
				if got := header(w.messages[0], HeaderEventType); got != "reservation.created" {
					t.Errorf("event type header = %q", got)
				}
				if header(w.messages[0], HeaderEventID) == "" {
					t.Error("expected generated event id")
				}
			}
		})
	}
}

func TestProducer_FailedWriteGoesToDLQ(t *testing.T) {
	writeErr := errors.New("connection refused")
	w := &fakeWriter{err: writeErr}
	dlq := &fakeWriter{}
	p := newProducer(w, dlq, "events", "events-dlq")

	msg := NewMessage().WithKey("res-1").WithValue("payload").Build()
	err := p.Publish(context.Background(), msg)
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected original error, got %v", err)
	}
	var publishErr *PublishError
	if !errors.As(err, &publishErr) || publishErr.Type != ErrorTypeTransient {
		t.Errorf("expected transient PublishError, got %v", err)
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("expected 1 dlq message, got %d", len(dlq.messages))
	}
	if got := header(dlq.messages[0], HeaderOriginalTopic); got != "events" {
		t.Errorf("original topic header = %q", got)
	}
	if _, ok := msg.Headers[HeaderDLQError]; ok {
		t.Error("dlq headers leaked into the caller's message")
	}
}

func TestProducer_MiddlewareOrder(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "events", "")
	var order []string
	mw := func(name string) ProducerMiddleware {
		return func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
			order = append(order, name)
			return next(ctx, msg)
		}
	}
	p.Use(mw("first"))
	p.Use(mw("second"))

	if err := p.Publish(context.Background(), NewMessage().WithKey("k").WithValue(1).Build()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("middleware order = %v", order)
	}
}

func TestProducer_Closed(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "events", "")
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !w.closed {
		t.Error("writer was not closed")
	}
	err := p.Publish(context.Background(), NewMessage().WithKey("k").WithValue(1).Build())
	if !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		retries int
		want    bool
	}{
		{"nil error", nil, 0, false},
		{"transient pattern", errors.New("dial tcp: i/o timeout"), 0, true},
		{"transient exhausted", errors.New("connection reset by peer"), 2, false},
		{"permanent sentinel", ErrEmptyKey, 0, false},
		{"publish error keeps its type", &PublishError{Type: ErrorTypeTransient, Err: errors.New("x")}, 1, true},
		{"broker says retry", kafka.LeaderNotAvailable, 0, true},
		{"broker says no", kafka.MessageSizeTooLarge, 0, false},
		{"deadline", context.DeadlineExceeded, 0, true},
		{"cancelled", context.Canceled, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.err, tt.retries, 2); got != tt.want {
				t.Errorf("ShouldRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}
