package ido

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/domain/calendar"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/pkg/errors"
)

const defaultLoginTimeout = 3 * time.Minute

// SessionStore persists captured login cookies between runs.
type SessionStore interface {
	SaveSession(ctx context.Context, orgID string, sess activity.Session) error
	LoadSession(ctx context.Context, orgID string) (activity.Session, bool, error)
}

// CalendarRegistry persists the discovered calendar list so lean runs can
// skip the portal scrape.
type CalendarRegistry interface {
	SaveCalendars(ctx context.Context, orgID string, cals []calendar.Identity) error
	KnownCalendars(ctx context.Context, orgID string) ([]calendar.Identity, error)
}

// ScreenshotSink receives a page screenshot when the login flow fails, for
// post-mortem debugging of portal layout changes. Best effort.
type ScreenshotSink interface {
	SaveScreenshot(ctx context.Context, name string, png []byte) error
}

// Provider drives the portal's HTML surfaces with a headless browser: login
// with organization selection, and scraping the calendar index. It
// implements both the session source and the calendar directory.
type Provider struct {
	cfg         Config
	sessions    SessionStore
	registry    CalendarRegistry
	screenshots ScreenshotSink
	logger      logging.Logger
}

// NewProvider builds a Provider. screenshots may be nil.
func NewProvider(cfg Config, sessions SessionStore, registry CalendarRegistry, screenshots ScreenshotSink, logger logging.Logger) *Provider {
	return &Provider{
		cfg:         cfg,
		sessions:    sessions,
		registry:    registry,
		screenshots: screenshots,
		logger:      logger.Named("portal"),
	}
}

// The portal's login form has stable element ids but an unnamed password
// input; the positional selector mirrors the markup.
const (
	selUsername  = `#userName`
	selPassword  = `#loginForm > div:nth-child(4) > input`
	selLoginForm = `#loginForm > button`
	selOrgSelect = `#OrganisationSelect2`
	selOrgLogin  = `#login-button`
	selLoggedIn  = `#PageHeader_Start > h1`
)

// Login runs the full browser login flow for orgID, persists the captured
// cookies, and returns them as a session.
func (p *Provider) Login(ctx context.Context, orgID string) (activity.Session, error) {
	timeout := p.cfg.LoginTimeout
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}

	bctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	bctx, tcancel := context.WithTimeout(bctx, timeout)
	defer tcancel()

	var cookies []*network.Cookie
	err := chromedp.Run(bctx,
		chromedp.EmulateViewport(1280, 720),
		chromedp.Navigate(p.cfg.BaseURL+"/"),
		chromedp.WaitVisible(selUsername, chromedp.ByQuery),
		chromedp.SendKeys(selUsername, p.cfg.Username, chromedp.ByQuery),
		chromedp.SendKeys(selPassword, p.cfg.Password, chromedp.ByQuery),
		chromedp.Click(selLoginForm, chromedp.ByQuery),
		chromedp.WaitVisible(selOrgSelect, chromedp.ByQuery),
		chromedp.SetValue(selOrgSelect, orgID, chromedp.ByQuery),
		chromedp.Click(selOrgLogin, chromedp.ByQuery),
		chromedp.WaitVisible(selLoggedIn, chromedp.ByQuery),
		// The portal finishes session setup shortly after the landing page
		// renders; capturing too early yields partial cookies.
		chromedp.Sleep(2*time.Second),
		chromedp.ActionFunc(func(cctx context.Context) error {
			var aerr error
			cookies, aerr = network.GetCookies().Do(cctx)
			return aerr
		}),
	)
	if err != nil {
		p.captureFailure(ctx, bctx, orgID)
		return activity.Session{}, errors.Wrap(err, errors.ErrCodeAuthExpired, "portal login failed")
	}

	sess := activity.Session{Cookies: make([]activity.Cookie, 0, len(cookies))}
	for _, c := range cookies {
		sess.Cookies = append(sess.Cookies, activity.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	if sess.Empty() {
		return activity.Session{}, errors.New(errors.ErrCodeAuthExpired, "login captured no cookies")
	}

	if err := p.sessions.SaveSession(ctx, orgID, sess); err != nil {
		return activity.Session{}, err
	}
	p.logger.Info("portal login succeeded",
		logging.String("org_id", orgID),
		logging.Int("cookies", len(sess.Cookies)))
	return sess, nil
}

// Stored returns the cookies captured by a previous Login.
func (p *Provider) Stored(ctx context.Context, orgID string) (activity.Session, error) {
	sess, found, err := p.sessions.LoadSession(ctx, orgID)
	if err != nil {
		return activity.Session{}, err
	}
	if !found || sess.Empty() {
		return activity.Session{}, errors.New(errors.ErrCodeAuthExpired, "no stored session, run a full update first")
	}
	return sess, nil
}

// calendarLink matches the scrape result shape produced by discoverScript.
type calendarLink struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// discoverScript collects the calendar links from the index table. The
// table renders a td per calendar with an anchor to /Calendars/View/<id>.
const discoverScript = `
Array.from(document.querySelectorAll('td[data-title="Kalender"] a')).map(a => ({
	id: (a.getAttribute('href') || '').replace('/Calendars/View/', ''),
	name: a.innerText.trim(),
}))`

// Discover scrapes the portal's calendar index for orgID and records the
// result in the registry for later lean runs.
func (p *Provider) Discover(ctx context.Context, orgID string, sess activity.Session) ([]calendar.Identity, error) {
	timeout := p.cfg.LoginTimeout
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}

	bctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	bctx, tcancel := context.WithTimeout(bctx, timeout)
	defer tcancel()

	var links []calendarLink
	err := chromedp.Run(bctx,
		chromedp.EmulateViewport(1280, 720),
		restoreCookies(p.cfg.BaseURL, sess),
		chromedp.Navigate(fmt.Sprintf("%s/Calendars/Index/%s", p.cfg.BaseURL, orgID)),
		chromedp.WaitVisible(`#btnSearchKalender`, chromedp.ByQuery),
		// The table is filled in asynchronously after the search controls
		// appear.
		chromedp.Sleep(5*time.Second),
		chromedp.Evaluate(discoverScript, &links),
	)
	if err != nil {
		p.captureFailure(ctx, bctx, orgID)
		return nil, errors.Wrap(err, errors.ErrCodeFeedFormat, "calendar index scrape failed")
	}

	cals := make([]calendar.Identity, 0, len(links))
	for _, l := range links {
		if l.ID == "" {
			continue
		}
		cals = append(cals, calendar.Identity{ID: l.ID, Name: l.Name, OrgID: orgID})
	}
	if len(cals) == 0 {
		return nil, errors.New(errors.ErrCodeFeedFormat, "calendar index listed no calendars")
	}

	if err := p.registry.SaveCalendars(ctx, orgID, cals); err != nil {
		return nil, err
	}
	p.logger.Info("discovered calendars",
		logging.String("org_id", orgID),
		logging.Int("count", len(cals)))
	return cals, nil
}

// Known replays the calendar list recorded by the most recent Discover.
func (p *Provider) Known(ctx context.Context, orgID string) ([]calendar.Identity, error) {
	return p.registry.KnownCalendars(ctx, orgID)
}

func restoreCookies(baseURL string, sess activity.Session) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range sess.Cookies {
			param := network.SetCookie(c.Name, c.Value).WithPath(c.Path)
			if c.Domain != "" {
				param = param.WithDomain(c.Domain)
			} else {
				param = param.WithURL(baseURL)
			}
			if err := param.Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// captureFailure screenshots the failed page into the blob store. Runs on a
// fresh deadline since the browser context's own deadline has usually fired.
func (p *Provider) captureFailure(parent context.Context, bctx context.Context, orgID string) {
	if p.screenshots == nil {
		return
	}
	var png []byte
	if err := chromedp.Run(bctx, chromedp.FullScreenshot(&png, 80)); err != nil {
		p.logger.Warn("failure screenshot capture failed", logging.Err(err))
		return
	}
	sctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()
	name := fmt.Sprintf("errors/org-%s-%d.png", orgID, time.Now().Unix())
	if err := p.screenshots.SaveScreenshot(sctx, name, png); err != nil {
		p.logger.Warn("failure screenshot upload failed", logging.Err(err))
	}
}
