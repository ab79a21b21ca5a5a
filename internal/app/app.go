// Package app wires the service's components from configuration.
package app

import (
	minioclient "github.com/minio/minio-go/v7"

	"github.com/nackswinget/calsync/internal/application/notify"
	"github.com/nackswinget/calsync/internal/application/sync"
	"github.com/nackswinget/calsync/internal/config"
	"github.com/nackswinget/calsync/internal/infrastructure/blob/minio"
	"github.com/nackswinget/calsync/internal/infrastructure/ido"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/internal/infrastructure/push/kafka"
	"github.com/nackswinget/calsync/internal/infrastructure/store/redis"
	httpapi "github.com/nackswinget/calsync/internal/interfaces/http"
	"github.com/nackswinget/calsync/internal/scheduler"
	"github.com/nackswinget/calsync/pkg/clock"
)

// App holds the wired component graph.
type App struct {
	Config *config.Config
	Logger logging.Logger
	Clock  clock.Clock

	Redis      *redis.Client
	Store      *redis.Store
	Blob       *minioclient.Client
	Publisher  *minio.Publisher
	Portal     *ido.Provider
	Dispatcher *kafka.Dispatcher
	Runner     *sync.Runner

	Server    *httpapi.Server
	Scheduler *scheduler.Scheduler

	kafkaWriter kafka.WriterInterface
}

// Build constructs every component from cfg. Connections to redis and the
// object store are verified; the push gateway connects lazily on first send.
func Build(cfg *config.Config, log logging.Logger) (*App, error) {
	clk := clock.System()
	loc := cfg.Location()

	redisClient, err := redis.NewClient(&cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	store := redis.NewStore(redisClient, clk, log)

	blobClient, err := minio.NewClient(cfg.Blob)
	if err != nil {
		return nil, err
	}
	publisher, err := minio.NewPublisher(blobClient, cfg.Blob, loc, clk, log)
	if err != nil {
		return nil, err
	}

	writer := kafka.NewWriter(cfg.Push)
	formatter := notify.NewFormatter(loc, cfg.Sync.OpenPracticeCalendar)
	dispatcher := kafka.NewDispatcher(writer, formatter, cfg.Push.IconURL, log)

	feed := ido.NewClient(cfg.Portal, log)
	portal := ido.NewProvider(cfg.Portal, store, store, publisher, log)

	runner := sync.NewRunner(feed, portal, portal, store, dispatcher, publisher, clk, sync.Options{
		Lookahead:   cfg.Sync.Lookahead,
		Concurrency: cfg.Sync.Concurrency,
		Location:    loc,
	}, log)

	handlers := httpapi.NewHandlers(runner, store, redisClient, clk, cfg.Sync.OrgID, log)
	server := httpapi.NewServer(cfg.Server, handlers, log)

	app := &App{
		Config:      cfg,
		Logger:      log,
		Clock:       clk,
		Redis:       redisClient,
		Store:       store,
		Blob:        blobClient,
		Publisher:   publisher,
		Portal:      portal,
		Dispatcher:  dispatcher,
		Runner:      runner,
		Server:      server,
		kafkaWriter: writer,
	}

	if cfg.Sync.Schedule != "" {
		sched, err := scheduler.New(cfg.Sync.Schedule, cfg.Sync.OrgID, runner, log)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Scheduler = sched
	}
	return app, nil
}

// Close releases held connections.
func (a *App) Close() {
	if a.kafkaWriter != nil {
		if err := a.kafkaWriter.Close(); err != nil {
			a.Logger.Warn("closing push writer", logging.Err(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("closing redis", logging.Err(err))
		}
	}
}
