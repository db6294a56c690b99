package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/i474232898/easy-homey/internal/entity"
)

// StateEvent is the message value written for each entity state change.
type StateEvent struct {
	EntryID string `json:"entry_id"`
	entity.State
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces entity state changes to a Kafka topic. States whose
// value, availability and attributes did not change are skipped.
type Writer struct {
	writer messageWriter
	logger *slog.Logger

	mu   sync.Mutex
	last map[string][]byte
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newWriter(w, logger)
}

func newWriter(w messageWriter, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{writer: w, logger: logger.With("component", "kafka"), last: make(map[string][]byte)}
}

func (w *Writer) Name() string { return "kafka" }

// Publish writes one message per changed state in a single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, device entity.Device, states []entity.State) error {
	entryID := ""
	if len(device.Identifiers) > 0 {
		entryID = device.Identifiers[0]
	}

	w.mu.Lock()
	var (
		msgs    []kafkago.Message
		pending = make(map[string][]byte)
	)
	for _, st := range states {
		fp, err := fingerprint(st)
		if err != nil {
			w.mu.Unlock()
			return err
		}
		if bytes.Equal(w.last[st.UniqueID], fp) {
			continue
		}
		msg, err := serializeToMessage(entryID, st)
		if err != nil {
			w.mu.Unlock()
			return err
		}
		msgs = append(msgs, msg)
		pending[st.UniqueID] = fp
	}
	w.mu.Unlock()

	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write state events: %w", err)
	}

	w.mu.Lock()
	for id, fp := range pending {
		w.last[id] = fp
	}
	w.mu.Unlock()
	w.logger.Debug("state events written", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// fingerprint covers the parts of a state that make up a change.
func fingerprint(st entity.State) ([]byte, error) {
	data, err := json.Marshal(struct {
		Value      any            `json:"v"`
		Available  bool           `json:"a"`
		Attributes map[string]any `json:"at"`
	}{st.Value, st.Available, st.Attributes})
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", st.UniqueID, err)
	}
	return data, nil
}

// serializeToMessage marshals a state into a Kafka message keyed by unique id.
func serializeToMessage(entryID string, st entity.State) (kafkago.Message, error) {
	data, err := json.Marshal(StateEvent{EntryID: entryID, State: st})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize state event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(st.UniqueID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "coordinator", Value: []byte(st.Coordinator)},
			{Key: "updated_at", Value: []byte(st.UpdatedAt.Format(time.RFC3339))},
		},
	}, nil
}
