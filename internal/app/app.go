// Package app assembles the store, live cache, services and HTTP routes
// from a Config.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Horth168/staff-attendance-app/internal/config"
	"github.com/Horth168/staff-attendance-app/internal/handler"
	"github.com/Horth168/staff-attendance-app/internal/i18n"
	"github.com/Horth168/staff-attendance-app/internal/livecache"
	"github.com/Horth168/staff-attendance-app/internal/mattermost"
	"github.com/Horth168/staff-attendance-app/internal/model"
	"github.com/Horth168/staff-attendance-app/internal/service"
	"github.com/Horth168/staff-attendance-app/internal/store"
)

type App struct {
	cfg *config.Config
	log *zap.Logger
	db  store.Database

	Cache    *livecache.Manager
	Staff    *service.StaffService
	Calendar *service.Calendar
	Clock    *service.ClockService
	Export   *service.ExportService
}

// New opens the store and starts syncing. A store that cannot be reached is
// a configuration error.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := i18n.Init(cfg.DefaultLocale); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	db, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return Assemble(cfg, db, log), nil
}

// Assemble builds the components over an open store without starting sync.
func Assemble(cfg *config.Config, db store.Database, log *zap.Logger) *App {
	staffColl := db.Collection(model.StaffCollection)
	attendanceColl := db.Collection(model.AttendanceCollection)

	cache := livecache.NewManager(staffColl, attendanceColl, log.Named("livecache"),
		livecache.WithCollation(cfg.Collation))
	calendar := service.NewCalendar(staffColl, cache, time.Now, cfg.Location, log.Named("calendar"))
	clock := service.NewClockService(staffColl, attendanceColl, cache, calendar, log.Named("clock"))
	if cfg.Announce() {
		mm := mattermost.NewClient(cfg.MattermostURL, cfg.AttendanceBotToken)
		clock.SetAnnouncer(mattermost.NewAnnouncer(mm, cfg.AnnounceChannelID, cfg.Location))
	}

	return &App{
		cfg:      cfg,
		log:      log,
		db:       db,
		Cache:    cache,
		Staff:    service.NewStaffService(staffColl, cache, log.Named("staff")),
		Calendar: calendar,
		Clock:    clock,
		Export:   service.NewExportService(cache, cfg.Location, log.Named("export")),
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Database, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on exit")
		return store.NewMemory(), nil
	default:
		db, err := store.NewMongoDB(cfg.MongoURI, cfg.MongoDB, log.Named("mongodb"))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			db.Close(context.Background())
			return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
		return db, nil
	}
}

// Start subscribes the live cache and waits for the first snapshots.
func (a *App) Start(ctx context.Context) error {
	if err := a.Cache.Start(ctx); err != nil {
		return err
	}
	return a.Cache.WaitReady(ctx)
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return handler.NewRouter(
		handler.NewStaffHandler(a.Staff, a.Calendar),
		handler.NewAttendanceHandler(a.Clock, a.Staff, a.Export, a.Cache, time.Now, a.log.Named("http")),
		a.Cache,
		a.log.Named("http"),
	)
}

// Close stops syncing and releases the store.
func (a *App) Close(ctx context.Context) error {
	a.Cache.Close()
	return a.db.Close(ctx)
}
