package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nackswinget/calsync/internal/application/sync"
	"github.com/nackswinget/calsync/internal/domain/calendar"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/pkg/clock"
	"github.com/nackswinget/calsync/pkg/errors"
)

var apiNow = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

type mockUpdater struct {
	report   *sync.Report
	err      error
	lastLean bool
}

func (m *mockUpdater) Run(_ context.Context, orgID string, lean bool) (*sync.Report, error) {
	m.lastLean = lean
	if m.err != nil {
		return nil, m.err
	}
	if m.report != nil {
		return m.report, nil
	}
	return &sync.Report{OrgID: orgID, Lean: lean}, nil
}

type mockStatus struct {
	records []calendar.Metadata
	err     error
}

func (m *mockStatus) All(_ context.Context, _ string) ([]calendar.Metadata, error) {
	return m.records, m.err
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

func newTestRouter(u Updater, s StatusSource, p Pinger) http.Handler {
	h := NewHandlers(u, s, p, clock.Fixed(apiNow), "1140", logging.NewNopLogger())
	return NewRouter("test", h, logging.NewNopLogger())
}

func TestUpdateEndpoints(t *testing.T) {
	updater := &mockUpdater{}
	router := newTestRouter(updater, &mockStatus{}, &mockPinger{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/update", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, updater.lastLean)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/update-lean", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, updater.lastLean)
}

func TestUpdateReportsPartialFailure(t *testing.T) {
	updater := &mockUpdater{report: &sync.Report{
		OrgID: "1140",
		Calendars: []sync.CalendarResult{
			{Calendar: calendar.Identity{ID: "100"}, NotifiedEventID: "222"},
			{Calendar: calendar.Identity{ID: "200"}, Err: errors.New(errors.ErrCodeFeedTransport, "timeout")},
		},
	}}
	router := newTestRouter(updater, &mockStatus{}, &mockPinger{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/update", nil))

	// Partial failure is still a 200; the body carries the detail.
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Failed    int `json:"failed"`
		Calendars []struct {
			NotifiedEventID string `json:"notified_event_id"`
			Error           string `json:"error"`
		} `json:"calendars"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Failed)
	require.Len(t, body.Calendars, 2)
	assert.Equal(t, "222", body.Calendars[0].NotifiedEventID)
	assert.Contains(t, body.Calendars[1].Error, "timeout")
}

func TestUpdateMapsRunFailureToStatus(t *testing.T) {
	updater := &mockUpdater{err: errors.New(errors.ErrCodeAuthExpired, "no stored session")}
	router := newTestRouter(updater, &mockStatus{}, &mockPinger{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/update-lean", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "AUTH_001", body.Code)
}

func TestStatusIncludesFreshness(t *testing.T) {
	status := &mockStatus{records: []calendar.Metadata{{
		CalendarName: "Friträning",
		CalendarID:   "100",
		UpdatedAt:    apiNow.Add(-5 * time.Minute),
	}}}
	router := newTestRouter(&mockUpdater{}, status, &mockPinger{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Calendars []struct {
			CalendarName string `json:"calendar_name"`
			UpdatedAgo   string `json:"updated_ago"`
		} `json:"calendars"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Calendars, 1)
	assert.Equal(t, "Friträning", body.Calendars[0].CalendarName)
	assert.Equal(t, "för 5 min sedan", body.Calendars[0].UpdatedAgo)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&mockUpdater{}, &mockStatus{}, &mockPinger{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthzDegraded(t *testing.T) {
	pinger := &mockPinger{err: errors.New(errors.ErrCodeMetadataStore, "redis gone")}
	router := newTestRouter(&mockUpdater{}, &mockStatus{}, pinger)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&mockUpdater{}, &mockStatus{}, &mockPinger{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
