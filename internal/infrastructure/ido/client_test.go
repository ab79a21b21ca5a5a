package ido

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/pkg/errors"
)

func testSession() activity.Session {
	return activity.Session{Cookies: []activity.Cookie{
		{Name: "ASP.NET_SessionId", Value: "abc"},
		{Name: ".auth", Value: "xyz"},
	}}
}

const feedBody = `[
  {"listedActivity": {"activityId": 222, "calendarId": 100, "name": "Friträning",
    "description": "Anna - 0701234567", "venueName": "Ceylon",
    "startTime": "2026-03-10T18:00:00.000Z", "endTime": "2026-03-10T19:30:00.000Z",
    "shared": false}},
  {"listedActivity": {"activityId": 333, "calendarId": 999, "name": "Annat",
    "startTime": "2026-03-11T18:00:00.000Z", "endTime": "2026-03-11T19:00:00.000Z",
    "shared": true}}
]`

func TestFetchDecodesActivities(t *testing.T) {
	var gotReq *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, logging.NewNopLogger())
	start := time.Date(2025, 12, 9, 0, 0, 0, 0, time.UTC)
	end := time.Date(2027, 3, 10, 0, 0, 0, 0, time.UTC)

	activities, sourceURL, err := client.Fetch(context.Background(), "100", start, end, testSession())
	require.NoError(t, err)

	require.Len(t, activities, 2)
	assert.Equal(t, int64(222), activities[0].ID)
	assert.Equal(t, int64(100), activities[0].CalendarID)
	assert.Equal(t, "Friträning", activities[0].Name)
	assert.True(t, activities[1].Shared)
	assert.Contains(t, sourceURL, "calendarId=100")

	// The portal expects the session cookies, ajax marker, and calendar
	// referer on every feed request.
	require.NotNil(t, gotReq)
	assert.Equal(t, "ASP.NET_SessionId=abc;.auth=xyz", gotReq.Header.Get("Cookie"))
	assert.Equal(t, "XMLHttpRequest", gotReq.Header.Get("X-Requested-With"))
	assert.Contains(t, gotReq.Header.Get("Referer"), "/Calendars/View/100")

	q := gotReq.URL.Query()
	assert.Equal(t, "100", q.Get("calendarId"))
	assert.Equal(t, "2025-12-09 00:00:00", q.Get("startTime"))
	assert.Equal(t, "2027-03-10 00:00:00", q.Get("endTime"))
}

func TestFetchRejectsEmptySession(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"}, logging.NewNopLogger())
	_, _, err := client.Fetch(context.Background(), "100", time.Now(), time.Now(), activity.Session{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuthExpired))
}

func TestFetchClassifiesAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, logging.NewNopLogger())
	_, _, err := client.Fetch(context.Background(), "100", time.Now(), time.Now(), testSession())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuthExpired))
}

func TestFetchTreatsHTMLAsExpiredSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>logga in</html>"))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, logging.NewNopLogger())
	_, _, err := client.Fetch(context.Background(), "100", time.Now(), time.Now(), testSession())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuthExpired))
}

func TestFetchClassifiesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, logging.NewNopLogger())
	_, _, err := client.Fetch(context.Background(), "100", time.Now(), time.Now(), testSession())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeedFormat))
}

func TestFetchClassifiesBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, logging.NewNopLogger())
	_, _, err := client.Fetch(context.Background(), "100", time.Now(), time.Now(), testSession())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeedFormat))
}

func TestFetchClassifiesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(Config{BaseURL: srv.URL}, logging.NewNopLogger())
	_, _, err := client.Fetch(context.Background(), "100", time.Now(), time.Now(), testSession())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeedTransport))
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{BaseURL: "http://portal"}.Validate())
	assert.NoError(t, Config{BaseURL: "http://portal", Username: "u", Password: "p"}.Validate())
}
