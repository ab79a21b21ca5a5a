package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nackswinget/calsync/internal/application/notify"
	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/domain/calendar"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/prometheus"
	"github.com/nackswinget/calsync/pkg/clock"
	"github.com/nackswinget/calsync/pkg/errors"
)

// Fetch range relative to "now": the published feed keeps a quarter of
// history and a year of future bookings.
const (
	fetchBack  = 90 * 24 * time.Hour
	fetchAhead = 366 * 24 * time.Hour
)

// Options tunes a Runner.
type Options struct {
	// Lookahead is the notification eligibility window. Zero means
	// DefaultLookahead.
	Lookahead time.Duration

	// Concurrency bounds how many calendars are reconciled in parallel.
	// Calendars touch disjoint metadata records and topics, but the portal
	// is rate-sensitive; default is 1 (sequential).
	Concurrency int

	// Location is the display time zone for built events.
	Location *time.Location
}

// Runner orchestrates reconciliation runs across the calendars of an
// organization. Per run and per calendar it moves through
// fetch → build → diff → (notify | skip) → persist, isolating failures so
// one broken calendar never aborts its siblings.
type Runner struct {
	feed       FeedClient
	sessions   SessionSource
	directory  Directory
	store      MetadataStore
	dispatcher notify.Dispatcher
	publisher  Publisher
	clk        clock.Clock
	opts       Options
	logger     logging.Logger
}

// NewRunner wires a Runner from its collaborators.
func NewRunner(
	feed FeedClient,
	sessions SessionSource,
	directory Directory,
	store MetadataStore,
	dispatcher notify.Dispatcher,
	publisher Publisher,
	clk clock.Clock,
	opts Options,
	logger logging.Logger,
) *Runner {
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Runner{
		feed:       feed,
		sessions:   sessions,
		directory:  directory,
		store:      store,
		dispatcher: dispatcher,
		publisher:  publisher,
		clk:        clk,
		opts:       opts,
		logger:     logger.Named("sync"),
	}
}

// CalendarResult reports the outcome for one calendar in a run. Partial
// success across calendars is expected; callers report per calendar, never
// as a single boolean.
type CalendarResult struct {
	Calendar calendar.Identity `json:"calendar"`
	Events   int               `json:"events"`
	Skipped  int               `json:"skipped"`

	// NotifiedEventID is set when a notification was dispatched this run.
	NotifiedEventID string `json:"notified_event_id,omitempty"`

	// DispatchFailed marks a run where the chosen event could not be sent.
	// The cursor was not advanced and the event stays eligible next run.
	DispatchFailed bool `json:"dispatch_failed,omitempty"`

	Err error `json:"-"`
}

// Report is the outcome of one run across an organization's calendars.
type Report struct {
	OrgID     string           `json:"org_id"`
	Lean      bool             `json:"lean"`
	Calendars []CalendarResult `json:"calendars"`
}

// Failed returns the results whose calendar run failed outright.
func (r *Report) Failed() []CalendarResult {
	var out []CalendarResult
	for _, c := range r.Calendars {
		if c.Err != nil {
			out = append(out, c)
		}
	}
	return out
}

// Run reconciles every calendar of orgID once. A full run (lean=false) logs
// in to the portal and discovers calendars from its index; a lean run reuses
// the stored session and the calendar list recorded by earlier runs.
//
// Session or directory failures abort the whole run (nothing can proceed
// without them); per-calendar failures are isolated into the report.
func (r *Runner) Run(ctx context.Context, orgID string, lean bool) (*Report, error) {
	started := time.Now()
	defer func() {
		prometheus.RunDuration.Observe(time.Since(started).Seconds())
	}()

	sess, cals, err := r.resolveCalendars(ctx, orgID, lean)
	if err != nil {
		return nil, err
	}
	r.logger.Info("starting run",
		logging.String("org_id", orgID),
		logging.Bool("lean", lean),
		logging.Int("calendars", len(cals)))

	report := &Report{OrgID: orgID, Lean: lean, Calendars: make([]CalendarResult, len(cals))}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report.Calendars[i] = r.runCalendar(ctx, cals[i], sess)
			}
		}()
	}
	for i := range cals {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// Let in-flight calendars finish their current step; queued ones
			// are dropped so updatedAt is never advanced without a
			// consistent cursor.
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if err := r.publisher.PublishManifest(ctx); err != nil {
		r.logger.Error("manifest publish failed", logging.Err(err))
	}
	return report, ctx.Err()
}

func (r *Runner) resolveCalendars(ctx context.Context, orgID string, lean bool) (activity.Session, []calendar.Identity, error) {
	if lean {
		sess, err := r.sessions.Stored(ctx, orgID)
		if err != nil {
			return activity.Session{}, nil, errors.Wrap(err, errors.ErrCodeAuthExpired, "no stored session for lean run")
		}
		cals, err := r.directory.Known(ctx, orgID)
		if err != nil {
			return activity.Session{}, nil, err
		}
		if len(cals) == 0 {
			return activity.Session{}, nil, errors.New(errors.ErrCodeNotFound, "no calendars recorded for organization; run a full update first")
		}
		return sess, cals, nil
	}

	sess, err := r.sessions.Login(ctx, orgID)
	if err != nil {
		return activity.Session{}, nil, err
	}
	cals, err := r.directory.Discover(ctx, orgID, sess)
	if err != nil {
		return activity.Session{}, nil, err
	}
	return sess, cals, nil
}

// runCalendar executes the per-calendar state machine:
// Fetched → Built → Diffed → (Notified | Skipped) → Persisted.
func (r *Runner) runCalendar(ctx context.Context, id calendar.Identity, sess activity.Session) CalendarResult {
	res := CalendarResult{Calendar: id}
	log := r.logger.With(
		logging.String("calendar_id", id.ID),
		logging.String("calendar_name", id.Name))
	now := r.clk.Now()

	fetchStart := time.Now()
	activities, sourceURL, err := r.feed.Fetch(ctx, id.ID, now.Add(-fetchBack), now.Add(fetchAhead), sess)
	prometheus.FeedFetchDuration.Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		res.Err = err
		prometheus.RunsTotal.WithLabelValues(id.ID, outcomeLabel(err)).Inc()
		log.Error("activity fetch failed", logging.Err(err))
		return res
	}

	cal, skipped := Build(sourceURL, activities, id, r.opts.Location)
	res.Events = cal.Len()
	res.Skipped = len(skipped)
	prometheus.EventsBuilt.WithLabelValues(id.ID).Set(float64(cal.Len()))
	for _, s := range skipped {
		prometheus.ActivitiesSkipped.WithLabelValues(id.ID).Inc()
		log.Warn("skipped unmappable activity",
			logging.Int64("activity_id", s.ActivityID),
			logging.String("reason", s.Reason))
	}
	log.Info("built calendar", logging.Int("events", cal.Len()))

	md, found, err := r.store.Get(ctx, id.ID)
	if err != nil {
		res.Err = err
		prometheus.RunsTotal.WithLabelValues(id.ID, "metadata").Inc()
		log.Error("metadata read failed", logging.Err(err))
		return res
	}
	if !found {
		md = calendar.NewMetadata(id)
	}
	// Keep the display fields current even for pre-existing records.
	md.CalendarName = id.Name
	md.OrgID = id.OrgID

	sel := Select(cal, md.LastNotifiedEventID, now, r.opts.Lookahead)
	log.Info("diffed calendar",
		logging.Int("future", sel.Future),
		logging.Int("in_window", sel.InWindow),
		logging.Int("new", sel.New))

	if sel.Chosen != nil {
		rec, err := r.dispatcher.Send(ctx, now, *sel.Chosen, sel.Chosen.Organizer, id)
		if err != nil {
			// The cursor must not advance past an unannounced event; the
			// heartbeat persist below keeps updatedAt fresh and the same
			// event is re-selected next run.
			res.DispatchFailed = true
			prometheus.RunsTotal.WithLabelValues(id.ID, "dispatch").Inc()
			log.Error("notification dispatch failed, keeping cursor",
				logging.String("event_id", sel.Chosen.ID.String()),
				logging.Err(err))
		} else {
			md = md.WithNotification(*sel.Chosen, rec)
			res.NotifiedEventID = sel.Chosen.ID.String()
			prometheus.NotificationsSent.WithLabelValues(id.ID).Inc()
			log.Info("notified new event", logging.String("event_id", res.NotifiedEventID))
		}
	}

	if err := r.publisher.PublishActivities(ctx, id, activities, now); err != nil {
		log.Error("activity dump publish failed", logging.Err(err))
	}
	publicURL, err := r.publisher.PublishCalendar(ctx, cal, md)
	if err != nil {
		// The notification (if any) went out; still persist the cursor so it
		// is not re-sent, but report the publish failure.
		log.Error("calendar publish failed", logging.Err(err))
		res.Err = err
	} else {
		md = md.WithPublished(cal.Len(), publicURL)
	}

	if err := r.store.Merge(ctx, md); err != nil {
		res.Err = err
		prometheus.RunsTotal.WithLabelValues(id.ID, "metadata").Inc()
		log.Error("metadata merge failed", logging.Err(err))
		return res
	}

	if res.Err == nil && !res.DispatchFailed {
		prometheus.RunsTotal.WithLabelValues(id.ID, "ok").Inc()
	}
	return res
}

func outcomeLabel(err error) string {
	switch errors.GetCode(err) {
	case errors.ErrCodeAuthExpired:
		return "auth"
	case errors.ErrCodeFeedFormat, errors.ErrCodeFeedTransport:
		return "feed"
	case errors.ErrCodeMetadataStore:
		return "metadata"
	case errors.ErrCodeBlobStore:
		return "blob"
	case errors.ErrCodeDispatch:
		return "dispatch"
	default:
		return "error"
	}
}

// String renders a compact per-calendar summary for CLI output.
func (c CalendarResult) String() string {
	status := "ok"
	switch {
	case c.Err != nil:
		status = "failed: " + c.Err.Error()
	case c.DispatchFailed:
		status = "dispatch failed"
	case c.NotifiedEventID != "":
		status = "notified " + c.NotifiedEventID
	}
	return fmt.Sprintf("%s (%s): %d events, %s", c.Calendar.Name, c.Calendar.ID, c.Events, status)
}
