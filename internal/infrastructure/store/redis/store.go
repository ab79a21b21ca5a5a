package redis

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/domain/calendar"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/pkg/clock"
	"github.com/nackswinget/calsync/pkg/errors"
)

// Key layout. Calendar records are hashes so a merge writes only the fields
// the sync core owns; fields written by other tooling survive untouched.
const (
	calendarKeyPrefix = "calsync:calendar:"
	orgKeyPrefix      = "calsync:org:"
	sessionKeyPrefix  = "calsync:session:org-"
)

// Hash fields of a calendar record.
const (
	fieldName      = "calendar_name"
	fieldID        = "calendar_id"
	fieldOrgID     = "calendar_org_id"
	fieldLastUID   = "calendar_last_uid"
	fieldLastDate  = "calendar_last_date"
	fieldHistory   = "last_notifications"
	fieldUpdatedAt = "updated_at"
	fieldSize      = "calendar_size"
	fieldPublicURL = "public_url"
)

// Store persists all run state in redis: metadata records, the per-org
// calendar registry, and portal sessions.
type Store struct {
	rdb    *redis.Client
	clk    clock.Clock
	logger logging.Logger
}

// NewStore builds a Store on an established client. The clock stamps
// updated_at on every merge.
func NewStore(client *Client, clk clock.Clock, log logging.Logger) *Store {
	return &Store{rdb: client.Raw(), clk: clk, logger: log.Named("store")}
}

func calendarKey(id string) string { return calendarKeyPrefix + id }

// Get loads the metadata record for calendarID. The second return value is
// false when no record exists yet.
func (s *Store) Get(ctx context.Context, calendarID string) (calendar.Metadata, bool, error) {
	fields, err := s.rdb.HGetAll(ctx, calendarKey(calendarID)).Result()
	if err != nil {
		return calendar.Metadata{}, false, errors.Wrap(err, errors.ErrCodeMetadataStore, "reading calendar record")
	}
	if len(fields) == 0 {
		return calendar.Metadata{}, false, nil
	}

	md := calendar.Metadata{
		CalendarName: fields[fieldName],
		CalendarID:   fields[fieldID],
		OrgID:        fields[fieldOrgID],
		PublicURL:    fields[fieldPublicURL],
	}
	if md.CalendarID == "" {
		md.CalendarID = calendarID
	}
	if raw := fields[fieldLastUID]; raw != "" {
		id, err := activity.ParseEventID(raw)
		if err != nil {
			return calendar.Metadata{}, false, errors.Wrap(err, errors.ErrCodeMetadataStore, "corrupt notification cursor").
				WithDetail(raw)
		}
		md.LastNotifiedEventID = id
	}
	if raw := fields[fieldLastDate]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			md.LastNotifiedEventDate = t
		}
	}
	if raw := fields[fieldUpdatedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			md.UpdatedAt = t
		}
	}
	if raw := fields[fieldSize]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			md.Size = n
		}
	}
	if raw := fields[fieldHistory]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &md.LastNotifications); err != nil {
			s.logger.Warn("dropping corrupt notification history",
				logging.String("calendar_id", calendarID),
				logging.Err(err))
			md.LastNotifications = nil
		}
	}
	return md, true, nil
}

// Merge writes the fields owned by the sync core on calendarID's record and
// stamps updated_at from the injected clock. Fields not listed here are never
// touched.
func (s *Store) Merge(ctx context.Context, md calendar.Metadata) error {
	history, err := json.Marshal(md.LastNotifications)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMetadataStore, "encoding notification history")
	}

	values := map[string]interface{}{
		fieldName:      md.CalendarName,
		fieldID:        md.CalendarID,
		fieldOrgID:     md.OrgID,
		fieldHistory:   string(history),
		fieldUpdatedAt: s.clk.Now().Format(time.RFC3339),
		fieldSize:      strconv.Itoa(md.Size),
		fieldPublicURL: md.PublicURL,
	}
	if !md.LastNotifiedEventID.IsZero() {
		values[fieldLastUID] = md.LastNotifiedEventID.String()
	}
	if !md.LastNotifiedEventDate.IsZero() {
		values[fieldLastDate] = md.LastNotifiedEventDate.Format(time.RFC3339)
	}

	if err := s.rdb.HSet(ctx, calendarKey(md.CalendarID), values).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeMetadataStore, "merging calendar record")
	}
	return nil
}

// All returns every metadata record belonging to orgID, for the status API.
func (s *Store) All(ctx context.Context, orgID string) ([]calendar.Metadata, error) {
	cals, err := s.KnownCalendars(ctx, orgID)
	if err != nil {
		return nil, err
	}
	out := make([]calendar.Metadata, 0, len(cals))
	for _, c := range cals {
		md, found, err := s.Get(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			md = calendar.NewMetadata(c)
		}
		out = append(out, md)
	}
	return out, nil
}

func orgKey(orgID string) string { return orgKeyPrefix + orgID + ":calendars" }

// SaveCalendars replaces the recorded calendar list for orgID.
func (s *Store) SaveCalendars(ctx context.Context, orgID string, cals []calendar.Identity) error {
	key := orgKey(orgID)
	fields := make(map[string]interface{}, len(cals))
	for _, c := range cals {
		fields[c.ID] = c.Name
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeMetadataStore, "recording calendar list")
	}
	return nil
}

// KnownCalendars returns the calendar list recorded by the last full run,
// ordered by id for deterministic reconciliation order.
func (s *Store) KnownCalendars(ctx context.Context, orgID string) ([]calendar.Identity, error) {
	fields, err := s.rdb.HGetAll(ctx, orgKey(orgID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMetadataStore, "reading calendar list")
	}
	cals := make([]calendar.Identity, 0, len(fields))
	for id, name := range fields {
		cals = append(cals, calendar.Identity{ID: id, Name: name, OrgID: orgID})
	}
	sort.Slice(cals, func(i, j int) bool { return cals[i].ID < cals[j].ID })
	return cals, nil
}

func sessionKey(orgID string) string { return sessionKeyPrefix + orgID }

// storedSession is the persisted session envelope.
type storedSession struct {
	Cookies   []activity.Cookie `json:"cookies"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SaveSession replaces the stored portal session for orgID.
func (s *Store) SaveSession(ctx context.Context, orgID string, sess activity.Session) error {
	payload, err := json.Marshal(storedSession{Cookies: sess.Cookies, UpdatedAt: s.clk.Now()})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMetadataStore, "encoding session")
	}
	if err := s.rdb.Set(ctx, sessionKey(orgID), payload, 0).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeMetadataStore, "storing session")
	}
	return nil
}

// LoadSession returns the stored portal session for orgID; found is false
// when no session has been captured yet.
func (s *Store) LoadSession(ctx context.Context, orgID string) (activity.Session, bool, error) {
	payload, err := s.rdb.Get(ctx, sessionKey(orgID)).Bytes()
	if err == redis.Nil {
		return activity.Session{}, false, nil
	}
	if err != nil {
		return activity.Session{}, false, errors.Wrap(err, errors.ErrCodeMetadataStore, "reading session")
	}
	var stored storedSession
	if err := json.Unmarshal(payload, &stored); err != nil {
		return activity.Session{}, false, errors.Wrap(err, errors.ErrCodeMetadataStore, "decoding session")
	}
	return activity.Session{Cookies: stored.Cookies}, true, nil
}
