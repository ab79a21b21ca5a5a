package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nackswinget/calsync/internal/application/notify"
	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/domain/calendar"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/pkg/errors"
)

type mockWriter struct {
	messages []kafkago.Message
	err      error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

func newTestDispatcher(w WriterInterface) *Dispatcher {
	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		panic(err)
	}
	formatter := notify.NewFormatter(loc, "Friträning")
	return NewDispatcher(w, formatter, "https://club.example/icon.jpeg", logging.NewNopLogger())
}

func testEvent() calendar.Event {
	start := time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)
	return calendar.Event{
		ID:          activity.NewEventID(222),
		Summary:     "Friträning",
		Description: "Anna - 0701234567",
		Start:       start,
		End:         start.Add(90 * time.Minute),
	}
}

func TestSendWritesRenderedNotification(t *testing.T) {
	w := &mockWriter{}
	d := newTestDispatcher(w)
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	cal := calendar.Identity{ID: "100", Name: "Friträning", OrgID: "1140"}

	rec, err := d.Send(context.Background(), now, testEvent(), "Anna", cal)
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "calendar-100", msg.Topic)
	assert.Equal(t, "222", string(msg.Key))

	var payload pushPayload
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.NotEmpty(t, payload.ID)
	assert.Equal(t, "Anna har bokat en friträning!", payload.Notification.Title)
	assert.Equal(t, "Torsdag, kl 19:00-20:30, 90 min", payload.Notification.Body)
	assert.Equal(t, "nsw-calendar-100", payload.Webpush.Tag)
	assert.Equal(t, "https://club.example/icon.jpeg", payload.Webpush.Icon)
	assert.Equal(t, "calendar-100", payload.Topic)

	assert.Equal(t, "222", rec.EventID)
	assert.Equal(t, "Anna", rec.Creator)
	assert.Equal(t, now, rec.At)
	assert.Equal(t, payload.Notification.Title, rec.Title)
}

func TestSendWithoutCreator(t *testing.T) {
	w := &mockWriter{}
	d := newTestDispatcher(w)
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	cal := calendar.Identity{ID: "100", Name: "Friträning", OrgID: "1140"}

	rec, err := d.Send(context.Background(), now, testEvent(), "", cal)
	require.NoError(t, err)
	assert.Equal(t, "Ny friträning bokad!", rec.Title)
}

func TestSendSurfacesWriteFailure(t *testing.T) {
	w := &mockWriter{err: errors.New(errors.ErrCodeServiceUnavailable, "broker down")}
	d := newTestDispatcher(w)
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	cal := calendar.Identity{ID: "100", Name: "Friträning", OrgID: "1140"}

	_, err := d.Send(context.Background(), now, testEvent(), "Anna", cal)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDispatch))
	assert.Empty(t, w.messages)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, Config{Brokers: []string{"localhost:9092"}}.Validate())
}

func TestNewWriterDefaults(t *testing.T) {
	w := NewWriter(Config{Brokers: []string{"localhost:9092"}})
	defer w.Close()
	assert.Equal(t, kafkago.RequireAll, w.RequiredAcks)
	assert.True(t, w.AllowAutoTopicCreation)
}
