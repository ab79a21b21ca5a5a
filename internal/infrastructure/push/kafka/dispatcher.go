// Package kafka delivers rendered push notifications to the gateway topic
// stream. Each calendar maps to its own topic; downstream bridges fan the
// messages out to subscribed devices.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/nackswinget/calsync/internal/application/notify"
	"github.com/nackswinget/calsync/internal/domain/calendar"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/pkg/errors"
)

// Config holds the gateway connection parameters.
type Config struct {
	Brokers      []string      `mapstructure:"brokers"`
	Acks         string        `mapstructure:"acks"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`

	// IconURL decorates webpush notifications on supporting clients.
	IconURL string `mapstructure:"icon_url"`
}

// Validate checks that the gateway configuration is usable.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "push gateway brokers are required")
	}
	return nil
}

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dispatcher renders notifications and writes them to the per-calendar
// topic. A write failure is surfaced so the reconciliation cursor stays put
// and the event is retried next run.
type Dispatcher struct {
	writer    WriterInterface
	formatter *notify.Formatter
	iconURL   string
	logger    logging.Logger
}

// NewWriter builds the kafka writer for cfg. Topics are created on first
// write so newly discovered calendars need no provisioning step.
func NewWriter(cfg Config) *kafka.Writer {
	acks := kafka.RequireAll
	switch cfg.Acks {
	case "none":
		acks = kafka.RequireNone
	case "one":
		acks = kafka.RequireOne
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           acks,
		WriteTimeout:           writeTimeout,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}
}

// NewDispatcher builds a Dispatcher on an established writer.
func NewDispatcher(writer WriterInterface, formatter *notify.Formatter, iconURL string, log logging.Logger) *Dispatcher {
	return &Dispatcher{
		writer:    writer,
		formatter: formatter,
		iconURL:   iconURL,
		logger:    log.Named("push"),
	}
}

// pushPayload is the wire shape consumed by the gateway bridge.
type pushPayload struct {
	ID string `json:"id"`

	Notification struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"notification"`

	Webpush struct {
		Tag  string `json:"tag"`
		Icon string `json:"icon,omitempty"`
	} `json:"webpush"`

	Topic string `json:"topic"`
}

// Send renders a notification for ev and writes it to cal's topic. The
// returned record is what the metadata history should keep.
func (d *Dispatcher) Send(ctx context.Context, now time.Time, ev calendar.Event, creator string, cal calendar.Identity) (calendar.Notification, error) {
	topic := notify.TopicFor(cal)

	var payload pushPayload
	payload.ID = uuid.NewString()
	payload.Notification.Title = d.formatter.Title(cal.Name, creator)
	payload.Notification.Body = d.formatter.Body(now, ev.Start, ev.End)
	payload.Webpush.Tag = "nsw-" + topic
	payload.Webpush.Icon = d.iconURL
	payload.Topic = topic

	value, err := json.Marshal(payload)
	if err != nil {
		return calendar.Notification{}, errors.Wrap(err, errors.ErrCodeDispatch, "encoding notification")
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(ev.ID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "message-id", Value: []byte(payload.ID)},
			{Key: "event-id", Value: []byte(ev.ID.String())},
		},
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return calendar.Notification{}, errors.Wrap(err, errors.ErrCodeDispatch, "writing to push topic "+topic)
	}

	d.logger.Info("dispatched notification",
		logging.String("topic", topic),
		logging.String("event_id", ev.ID.String()),
		logging.String("title", payload.Notification.Title))

	return calendar.Notification{
		At:               now,
		Title:            payload.Notification.Title,
		Body:             payload.Notification.Body,
		Creator:          creator,
		EventID:          ev.ID.String(),
		EventStart:       ev.Start,
		EventDescription: ev.Description,
	}, nil
}
