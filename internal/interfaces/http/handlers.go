// Package http exposes the service's operational API: triggering update
// runs, run status, health, and metrics.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nackswinget/calsync/internal/application/notify"
	"github.com/nackswinget/calsync/internal/application/sync"
	"github.com/nackswinget/calsync/internal/domain/calendar"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/pkg/clock"
	"github.com/nackswinget/calsync/pkg/errors"
)

// Updater triggers reconciliation runs.
type Updater interface {
	Run(ctx context.Context, orgID string, lean bool) (*sync.Report, error)
}

// StatusSource lists the persisted per-calendar records.
type StatusSource interface {
	All(ctx context.Context, orgID string) ([]calendar.Metadata, error)
}

// Pinger verifies a backing store connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers carries the API's collaborators.
type Handlers struct {
	updater Updater
	status  StatusSource
	pinger  Pinger
	clk     clock.Clock
	orgID   string
	logger  logging.Logger
}

// NewHandlers builds the API handler set. orgID is the organization served
// by this deployment.
func NewHandlers(updater Updater, status StatusSource, pinger Pinger, clk clock.Clock, orgID string, log logging.Logger) *Handlers {
	return &Handlers{
		updater: updater,
		status:  status,
		pinger:  pinger,
		clk:     clk,
		orgID:   orgID,
		logger:  log.Named("http"),
	}
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	resp := errorResponse{Code: code.String(), Message: err.Error()}
	var ae *errors.AppError
	if errors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	c.JSON(errors.HTTPStatusForCode(code), resp)
}

// Update handles POST /update: a full run with portal login and calendar
// discovery.
func (h *Handlers) Update(c *gin.Context) {
	h.runUpdate(c, false)
}

// UpdateLean handles POST /update-lean: a run on the stored session and the
// previously discovered calendar list.
func (h *Handlers) UpdateLean(c *gin.Context) {
	h.runUpdate(c, true)
}

func (h *Handlers) runUpdate(c *gin.Context, lean bool) {
	report, err := h.updater.Run(c.Request.Context(), h.orgID, lean)
	if err != nil {
		respondError(c, err)
		return
	}

	// Per-calendar failures are partial success: report them but answer 200
	// so schedulers do not retry a run that mostly worked.
	type calendarStatus struct {
		sync.CalendarResult
		Error string `json:"error,omitempty"`
	}
	out := make([]calendarStatus, 0, len(report.Calendars))
	for _, r := range report.Calendars {
		cs := calendarStatus{CalendarResult: r}
		if r.Err != nil {
			cs.Error = r.Err.Error()
		}
		out = append(out, cs)
	}
	c.JSON(http.StatusOK, gin.H{
		"org_id":    report.OrgID,
		"lean":      report.Lean,
		"calendars": out,
		"failed":    len(report.Failed()),
	})
}

// Status handles GET /status: the persisted state of every known calendar
// with a human-readable freshness phrase.
func (h *Handlers) Status(c *gin.Context) {
	records, err := h.status.All(c.Request.Context(), h.orgID)
	if err != nil {
		respondError(c, err)
		return
	}

	now := h.clk.Now()
	type calendarStatus struct {
		calendar.Metadata
		UpdatedAgo string `json:"updated_ago"`
	}
	out := make([]calendarStatus, 0, len(records))
	for _, md := range records {
		out = append(out, calendarStatus{
			Metadata:   md,
			UpdatedAgo: notify.UpdatedAgo(now, md.UpdatedAt),
		})
	}
	c.JSON(http.StatusOK, gin.H{"org_id": h.orgID, "calendars": out})
}

// Healthz handles GET /healthz: liveness plus a metadata store ping.
func (h *Handlers) Healthz(c *gin.Context) {
	if err := h.pinger.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
