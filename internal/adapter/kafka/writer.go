package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of kafkago.Writer used by FramePublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// FramePublisher announces rendered frames on a Kafka topic.
// It implements processor.Publisher.
type FramePublisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewFramePublisher creates a Kafka producer for the frame topic.
func NewFramePublisher(brokers []string, topic string, logger *slog.Logger) *FramePublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &FramePublisher{writer: w, logger: logger}
}

// Publish serializes the frame event and writes it keyed by frame ID.
func (p *FramePublisher) Publish(ctx context.Context, event domain.FrameEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish frame %s: %w", event.ID, err)
	}
	p.logger.Debug("frame published", "id", event.ID, "has_radar", event.HasRadar)
	return nil
}

func (p *FramePublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a FrameEvent into a Kafka message.
func serializeToMessage(event domain.FrameEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize frame event: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "style", Value: []byte(event.Style)},
		{Key: "has_radar", Value: []byte(strconv.FormatBool(event.HasRadar))},
		{Key: "rendered_at", Value: []byte(event.RenderedAt.Format(time.RFC3339))},
	}
	if !event.DataTimestamp.IsZero() {
		headers = append(headers, kafkago.Header{
			Key: "data_timestamp", Value: []byte(event.DataTimestamp.Format(time.RFC3339)),
		})
	}
	return kafkago.Message{
		Key:     []byte(event.ID),
		Value:   data,
		Time:    event.RenderedAt,
		Headers: headers,
	}, nil
}
