package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
	"github.com/goliatone/go-activities/pkg/snapshot"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// DefaultKafkaNotifier is the registry name of the Kafka notifier.
const DefaultKafkaNotifier = "kafka"

var ErrMissingTopic = errors.New("notifier: kafka topic is required")

// MessageWriter is the subset of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka notifier.
type KafkaConfig struct {
	Name    string
	Brokers []string
	Topic   string
	// Channel, when set, renders the activity into the envelope.
	Channel string
}

// Envelope is the JSON document published per activity.
type Envelope struct {
	ID          string         `json:"id"`
	SubjectType string         `json:"subject_type"`
	SubjectID   string         `json:"subject_id"`
	Status      string         `json:"status"`
	Remarks     []string       `json:"remarks,omitempty"`
	PreviousID  string         `json:"previous_id,omitempty"`
	Event       string         `json:"event"`
	Action      string         `json:"action,omitempty"`
	Object      map[string]any `json:"object,omitempty"`
	Rendered    string         `json:"rendered,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// KafkaNotifier publishes activity envelopes keyed by subject, so one
// subject's activities stay ordered within a partition.
type KafkaNotifier struct {
	name    string
	channel string
	writer  MessageWriter
	logger  logger.Logger
}

var _ activities.Notifier = (*KafkaNotifier)(nil)

// NewKafkaWriter builds a synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
}

// NewKafka builds the notifier. A nil writer is created from the config.
func NewKafka(cfg KafkaConfig, writer MessageWriter, l logger.Logger) (*KafkaNotifier, error) {
	if l == nil {
		l = &logger.Nop{}
	}
	if writer == nil {
		if strings.TrimSpace(cfg.Topic) == "" {
			return nil, ErrMissingTopic
		}
		if len(cfg.Brokers) == 0 {
			return nil, errors.New("notifier: kafka brokers are required")
		}
		writer = NewKafkaWriter(cfg.Brokers, cfg.Topic)
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = DefaultKafkaNotifier
	}
	return &KafkaNotifier{name: name, channel: cfg.Channel, writer: writer, logger: l}, nil
}

func (k *KafkaNotifier) Name() string { return k.name }

// Notify publishes the envelope.
func (k *KafkaNotifier) Notify(ctx context.Context, n activities.Notification) error {
	envelope, err := k.envelope(ctx, n)
	if err != nil {
		return err
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("kafka: encode envelope: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(envelope.SubjectType + ":" + envelope.SubjectID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(envelope.Status)},
			{Key: "subject_type", Value: []byte(envelope.SubjectType)},
		},
		Time: envelope.CreatedAt,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write: %w", err)
	}
	k.logger.Debug("activity published",
		logger.Field{Key: "notifier", Value: k.name},
		logger.Field{Key: "activity_id", Value: envelope.ID},
	)
	return nil
}

func (k *KafkaNotifier) envelope(ctx context.Context, n activities.Notification) (Envelope, error) {
	activity := n.Activity
	if activity == nil {
		return Envelope{}, errors.New("notifier: notification without activity")
	}
	object, err := snapshot.Of(activity)
	if err != nil {
		return Envelope{}, err
	}
	envelope := Envelope{
		ID:          activity.ID.String(),
		SubjectType: activity.SubjectType,
		SubjectID:   activity.SubjectID,
		Status:      activity.Status,
		Remarks:     activity.RemarkTokens(),
		Event:       string(n.Event.Kind),
		Action:      string(n.Event.Action),
		Object:      object,
		CreatedAt:   activity.CreatedAt,
	}
	if activity.PreviousID != uuid.Nil {
		envelope.PreviousID = activity.PreviousID.String()
	}
	if k.channel != "" {
		rendered, err := n.Render(ctx, nil, k.channel)
		if err != nil {
			return Envelope{}, fmt.Errorf("render %s: %w", k.channel, err)
		}
		envelope.Rendered = strings.TrimSpace(rendered)
	}
	return envelope, nil
}

// Close closes the writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
