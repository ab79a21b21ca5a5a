// Package ido talks to the IdrottOnline booking portal: the JSON activity
// feed, the cookie-based login automation, and the calendar index scrape.
package ido

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/pkg/errors"
)

const defaultFetchTimeout = 30 * time.Second

// Config carries the portal coordinates and credentials.
type Config struct {
	// BaseURL is the portal root, e.g. "https://idrottonline.example".
	BaseURL string `mapstructure:"base_url"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// FetchTimeout bounds a single activity feed request.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`

	// LoginTimeout bounds the whole browser login flow.
	LoginTimeout time.Duration `mapstructure:"login_timeout"`
}

// Validate checks that the portal configuration is usable.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New(errors.ErrCodeValidation, "portal base_url is required")
	}
	if c.Username == "" || c.Password == "" {
		return errors.New(errors.ErrCodeValidation, "portal credentials are required")
	}
	return nil
}

// Client fetches activity listings from the portal's JSON feed.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

// NewClient builds a feed client against cfg.BaseURL.
func NewClient(cfg Config, logger logging.Logger) *Client {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("feed"),
	}
}

// listedActivity is the wrapper element of the feed response:
// [{"listedActivity": {...}}, ...].
type listedActivity struct {
	ListedActivity activity.Activity `json:"listedActivity"`
}

// Fetch lists the activities of calendarID between start and end. The portal
// takes date-only boundaries with a fixed midnight time component; both ends
// are widened to whole days.
func (c *Client) Fetch(ctx context.Context, calendarID string, start, end time.Time, sess activity.Session) ([]activity.Activity, string, error) {
	if sess.Empty() {
		return nil, "", errors.New(errors.ErrCodeAuthExpired, "no session cookies")
	}

	q := url.Values{}
	q.Set("calendarId", calendarID)
	q.Set("startTime", start.Format("2006-01-02")+" 00:00:00")
	q.Set("endTime", end.Format("2006-01-02")+" 00:00:00")
	feedURL := c.baseURL + "/activities/getactivities?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrCodeInternal, "building feed request")
	}
	req.Header.Set("Cookie", sess.CookieHeader())
	req.Header.Set("Referer", fmt.Sprintf("%s/Calendars/View/%s", c.baseURL, calendarID))
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrCodeFeedTransport, "activity feed request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, "", errors.Newf(errors.ErrCodeAuthExpired, "portal rejected session: %s", resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", errors.Newf(errors.ErrCodeFeedFormat, "unexpected feed status %s", resp.Status).
			WithDetail(string(body))
	}

	// A stale session sometimes yields a 200 with the login page instead of
	// JSON; classify that as an expired session, not a format error.
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return nil, "", errors.New(errors.ErrCodeAuthExpired, "feed returned html, session likely expired")
	}

	var listed []listedActivity
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		return nil, "", errors.Wrap(err, errors.ErrCodeFeedFormat, "decoding feed response")
	}

	activities := make([]activity.Activity, 0, len(listed))
	for _, item := range listed {
		activities = append(activities, item.ListedActivity)
	}
	c.logger.Debug("fetched activities",
		logging.String("calendar_id", calendarID),
		logging.Int("count", len(activities)))
	return activities, feedURL, nil
}
