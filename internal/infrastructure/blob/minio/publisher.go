// Package minio publishes the public run artifacts to object storage: the
// iCalendar documents, the 30-day JSON activity dumps, and the manifest.
package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/domain/calendar"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/pkg/clock"
	"github.com/nackswinget/calsync/pkg/errors"
	"github.com/nackswinget/calsync/pkg/ical"
)

// ObjectStore is the object storage surface the publisher needs. Satisfied
// by *minio.Client; narrowed for testability.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// Config carries the object storage coordinates.
type Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`

	// PublicBaseURL is the externally reachable root under which published
	// objects are served, e.g. a CDN or the bucket's website endpoint.
	// Defaults to "<scheme>://<endpoint>/<bucket>".
	PublicBaseURL string `mapstructure:"public_base_url"`

	// Timezone is the display zone stamped into iCalendar documents.
	Timezone string `mapstructure:"timezone"`
}

const (
	cacheControl    = "public, max-age=30"
	contentLanguage = "sv-SE"
	manifestObject  = "index.json"
	icsPrefix       = "cal_"
	dumpWindow      = 31 * 24 * time.Hour
)

// Publisher writes run artifacts to one bucket. Objects are rewritten on
// every run; subscribers poll the stable names.
type Publisher struct {
	store  ObjectStore
	bucket string
	base   string
	tzName string
	loc    *time.Location
	clk    clock.Clock
	logger logging.Logger
}

// NewClient connects to the object store described by cfg.
func NewClient(cfg Config) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBlobStore, "creating object storage client")
	}
	return client, nil
}

// NewPublisher builds a Publisher on an established client, creating the
// bucket when missing.
func NewPublisher(store ObjectStore, cfg Config, loc *time.Location, clk clock.Clock, log logging.Logger) (*Publisher, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := store.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBlobStore, "checking bucket")
	}
	if !exists {
		if err := store.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeBlobStore, "creating bucket")
		}
	}

	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	tzName := cfg.Timezone
	if tzName == "" {
		tzName = loc.String()
	}
	return &Publisher{
		store:  store,
		bucket: cfg.Bucket,
		base:   strings.TrimRight(base, "/"),
		tzName: tzName,
		loc:    loc,
		clk:    clk,
		logger: log.Named("blob"),
	}, nil
}

func (p *Publisher) put(ctx context.Context, name string, payload []byte, opts minio.PutObjectOptions) error {
	_, err := p.store.PutObject(ctx, p.bucket, name, bytes.NewReader(payload), int64(len(payload)), opts)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeBlobStore, "uploading "+name)
	}
	return nil
}

// PublishCalendar serializes cal and uploads it as cal_<id>.ics, attaching
// the reconciliation metadata as object user metadata so the manifest can be
// rebuilt from the bucket alone.
func (p *Publisher) PublishCalendar(ctx context.Context, cal *calendar.Calendar, md calendar.Metadata) (string, error) {
	subject := cal.Subject()
	object := icsPrefix + subject.ID + ".ics"
	payload := []byte(ical.Serialize(cal, p.tzName, p.clk.Now()))

	meta := map[string]string{
		"calendar_name":   subject.Name,
		"calendar_id":     subject.ID,
		"calendar_org_id": subject.OrgID,
		"calendar_size":   strconv.Itoa(cal.Len()),
	}
	if !md.LastNotifiedEventID.IsZero() {
		meta["calendar_last_uid"] = md.LastNotifiedEventID.String()
	}
	if !md.LastNotifiedEventDate.IsZero() {
		meta["calendar_last_date"] = md.LastNotifiedEventDate.Format(time.RFC3339)
	}

	err := p.put(ctx, object, payload, minio.PutObjectOptions{
		ContentType:        "text/calendar; charset=utf-8",
		ContentLanguage:    contentLanguage,
		CacheControl:       cacheControl,
		ContentDisposition: fmt.Sprintf(`attachment; filename="%s - %s.ics"`, subject.Name, subject.ID),
		UserMetadata:       meta,
	})
	if err != nil {
		return "", err
	}

	url := p.base + "/" + object
	p.logger.Info("published calendar",
		logging.String("calendar_id", subject.ID),
		logging.Int("bytes", len(payload)),
		logging.String("url", url))
	return url, nil
}

// dumpedActivity is the public JSON shape of one upcoming activity.
type dumpedActivity struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CalendarID  int64  `json:"calendarId"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Duration    int    `json:"duration"`
}

// PublishActivities uploads <id>.30d.json: the activities starting within
// the next 31 days (day-granular, so today's already started sessions are
// included), with a derived duration in minutes. Activities with unparsable
// timestamps are left out.
func (p *Publisher) PublishActivities(ctx context.Context, id calendar.Identity, activities []activity.Activity, now time.Time) error {
	local := now.In(p.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
	until := from.Add(dumpWindow)

	upcoming := make([]dumpedActivity, 0)
	for _, a := range activities {
		start, err := time.Parse(time.RFC3339, a.StartTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, a.EndTime)
		if err != nil {
			continue
		}
		if start.Before(from) || !start.Before(until) {
			continue
		}
		upcoming = append(upcoming, dumpedActivity{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			CalendarID:  a.CalendarID,
			StartTime:   a.StartTime,
			EndTime:     a.EndTime,
			Duration:    int(end.Sub(start) / time.Minute),
		})
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].StartTime < upcoming[j].StartTime })

	payload, err := json.MarshalIndent(upcoming, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeBlobStore, "encoding activity dump")
	}
	return p.put(ctx, id.ID+".30d.json", payload, minio.PutObjectOptions{
		ContentType:     "application/json; charset=utf-8",
		ContentLanguage: contentLanguage,
		CacheControl:    cacheControl,
	})
}

// PublishManifest rebuilds index.json from the user metadata of the
// published cal_*.ics objects. The manifest is the bucket's own view, so a
// calendar published by an earlier run survives even if the current run
// skipped it.
func (p *Publisher) PublishManifest(ctx context.Context) error {
	entries := make([]map[string]string, 0)
	for obj := range p.store.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{Prefix: icsPrefix}) {
		if obj.Err != nil {
			return errors.Wrap(obj.Err, errors.ErrCodeBlobStore, "listing published calendars")
		}
		info, err := p.store.StatObject(ctx, p.bucket, obj.Key, minio.StatObjectOptions{})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeBlobStore, "reading metadata of "+obj.Key)
		}
		entry := map[string]string{
			"url":        p.base + "/" + obj.Key,
			"updated_at": info.LastModified.Format(time.RFC3339),
		}
		for k, v := range info.UserMetadata {
			key := strings.TrimPrefix(strings.ToLower(k), "calendar_")
			entry[key] = v
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i]["id"] < entries[j]["id"] })

	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeBlobStore, "encoding manifest")
	}
	if err := p.put(ctx, manifestObject, payload, minio.PutObjectOptions{
		ContentType:  "application/json; charset=utf-8",
		CacheControl: cacheControl,
	}); err != nil {
		return err
	}
	p.logger.Info("published manifest", logging.Int("calendars", len(entries)))
	return nil
}

// SaveScreenshot stores a debugging screenshot, used by the portal login
// flow on failure.
func (p *Publisher) SaveScreenshot(ctx context.Context, name string, png []byte) error {
	return p.put(ctx, name, png, minio.PutObjectOptions{ContentType: "image/png"})
}
