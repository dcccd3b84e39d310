// Package audit publishes the lifecycle of registrations: submissions,
// completed payments and payment returns that could not be confirmed.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Action names.
const (
	ActionFreeRegistered   = "submission.free_registered"
	ActionPaymentInitiated = "submission.payment_initiated"
	ActionSubmissionFailed = "submission.failed"
	ActionCompleted        = "completion.registered"
	ActionUnconfirmed      = "completion.unconfirmed"
	ActionCompletionFailed = "completion.failed"
)

// Record is one audit entry.
type Record struct {
	Action        string    `json:"action"`
	EventID       string    `json:"eventId"`
	Email         string    `json:"email,omitempty"`
	Role          string    `json:"role,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}

// Sink receives audit records. Publishing must not block a registration
// on failure; implementations return the error for the caller to log.
type Sink interface {
	Publish(ctx context.Context, rec Record) error
}

// LogSink writes records to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(ctx context.Context, rec Record) error {
	s.Logger.InfoContext(ctx, "audit",
		"action", rec.Action,
		"event_id", rec.EventID,
		"email", rec.Email,
		"role", rec.Role,
		"amount", rec.Amount,
		"transaction_id", rec.TransactionID,
		"error", rec.Error,
	)
	return nil
}

// KafkaSink publishes JSON records keyed by event id.
type KafkaSink struct {
	w *kafka.Writer
}

// NewKafkaSink constructs a KafkaSink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (s *KafkaSink) Publish(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	if err := s.w.WriteMessages(ctx, kafka.Message{Key: []byte(rec.EventID), Value: b}); err != nil {
		return fmt.Errorf("publish audit record: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.w.Close()
}

// Multi fans a record out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("audit: %d sink(s) failed: %w", len(errs), errs[0])
}

// Recorder keeps records in memory. Tests use it to assert on the trail.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *Recorder) Publish(_ context.Context, rec Record) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return nil
}

// Actions returns the recorded actions in order.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Action
	}
	return out
}

// Records returns a copy of the recorded entries.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}
