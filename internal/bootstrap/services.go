package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"captiondesk/internal/config"
	"captiondesk/internal/diagnostics"
	"captiondesk/internal/domain"
	"captiondesk/internal/events"
	"captiondesk/internal/exporting"
	"captiondesk/internal/hostbridge"
	"captiondesk/internal/jobs"
	"captiondesk/internal/logging"
	"captiondesk/internal/media"
	"captiondesk/internal/operations"
	"captiondesk/internal/persistence"
	"captiondesk/internal/state"
	"captiondesk/internal/updates"
	"captiondesk/internal/worker"
)

// Version is the application version reported to the update feed.
var Version = "0.1.0"

// Options configures Build.
type Options struct {
	// ConfigPath overrides the config.toml location.
	ConfigPath string
	// EnvFile is loaded before the config is read. Missing files are ignored.
	EnvFile string
	// Bridge is the primary host bridge. The export-dir fallback is always
	// chained behind it.
	Bridge hostbridge.Bridge
	Layout operations.Layout
	// Logger overrides the configured logger.
	Logger *zerolog.Logger
}

// Services is the wired orchestrator shared by the desktop app and the CLI.
type Services struct {
	Config   *config.AppConfig
	Settings config.Store
	Log      zerolog.Logger

	Bus      *events.Bus
	Worker   *worker.Client
	State    *state.Store
	Jobs     *jobs.Registry
	Mirror   *persistence.SQLiteStore
	Media    *media.Library
	Bridge   hostbridge.Bridge
	Checker  *diagnostics.Checker
	Updates  *updates.Checker
	Schedule *cron.Cron

	URLDownloads *operations.ImportController
	Youtube      *operations.ImportController
	Modals       *operations.Modals
	Model        *operations.ModelGate
	Transcriber  *operations.Transcriber
	Captions     *operations.CaptionImporter
	Exporter     *exporting.Exporter

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	settings domain.Settings
}

// Build loads configuration and wires every component. The caller owns the
// result and must Close it.
func Build(opts Options) (*Services, error) {
	if err := config.LoadDotEnv(opts.EnvFile); err != nil {
		return nil, err
	}
	cfg, cfgPath, cfgExists, err := config.LoadApp(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger.Debug().Str("path", cfgPath).Bool("exists", cfgExists).Msg("config loaded")

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	settingsStore := config.NewJSONStore(cfg.SettingsPath())
	settings, err := settingsStore.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	mirror, err := persistence.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open job mirror: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Services{
		Config:   cfg,
		Settings: settingsStore,
		Log:      logger,
		Bus:      events.NewBus(1000),
		Worker:   worker.NewClient(cfg.Worker.URL, cfg.WorkerTimeout()),
		Mirror:   mirror,
		Schedule: cron.New(),
		ctx:      ctx,
		cancel:   cancel,
		settings: settings,
	}

	s.State = state.NewStore(state.Defaults{DownloadDir: settings.DownloadDir}, s.Bus)
	s.Jobs = jobs.NewRegistry(jobs.MultiPersister{
		jobs.WorkerPersister{Records: s.Worker},
		mirror,
	}, s.Bus, logger)
	s.Media = media.NewLibrary(s.Bus, logger)

	fallback := hostbridge.Fallback{DirFunc: func() string { return s.CurrentSettings().ExportDir }}
	s.Bridge = hostbridge.Bridge(fallback)
	if opts.Bridge != nil {
		s.Bridge = hostbridge.WithFallback(opts.Bridge, fallback, logger)
	}

	importOpts := operations.ImportOptions{
		Interval: cfg.DownloadInterval(),
		Layout:   opts.Layout,
		Logger:   logger,
		Context:  ctx,
	}
	s.URLDownloads = operations.NewImportController(operations.URLDownloadConfig(), s.Worker.URLDownloads(), s.State, s.Media, importOpts)
	s.Youtube = operations.NewImportController(operations.YoutubeConfig(), s.Worker.YoutubeImports(), s.State, s.Media, importOpts)
	s.Modals = operations.NewModals(s.State, s.URLDownloads, s.Youtube)
	s.Model = operations.NewModelGate(s.Worker, s.State, s.Bus, cfg.ModelInterval(), logger)
	s.Transcriber = operations.NewTranscriber(s.Worker, s.Jobs, s.Media, s.Model, s.State, operations.TranscriberOptions{
		Interval: cfg.JobInterval(),
		Notifier: s.Bus,
		Logger:   logger,
		Settings: s.CurrentSettings,
		Context:  ctx,
	})
	s.Captions = operations.NewCaptionImporter(s.Jobs, s.Media, s.Bridge, s.Bus, logger)
	s.Exporter = exporting.New(s.Worker, s.Bridge, s.Bus, logger)
	s.Checker = diagnostics.NewChecker(s.Worker)
	s.Updates = updates.NewChecker(s.Worker, s.Schedule, updates.Options{
		CheckURL: cfg.Updates.CheckURL,
		Project:  cfg.Updates.Project,
		Version:  Version,
		Bus:      s.Bus,
		Logger:   logger,
	})

	return s, nil
}

// Context is cancelled by Close.
func (s *Services) Context() context.Context {
	return s.ctx
}

// CurrentSettings returns the cached user settings.
func (s *Services) CurrentSettings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SaveSettings normalizes and persists settings.
func (s *Services) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.NormalizeSettings(settings)
	if err := s.Settings.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.mu.Lock()
	s.settings = normalized
	s.mu.Unlock()
	return normalized, nil
}

// LoadDefaults asks the worker for its download directory and makes it the
// default save path. The settings directory stays in place when the worker
// has none.
func (s *Services) LoadDefaults(ctx context.Context) {
	defaults, err := s.Worker.URLDownloads().Defaults(ctx)
	if err != nil {
		s.Log.Debug().Err(err).Msg("load download defaults")
		return
	}
	if dir := strings.TrimSpace(defaults.DownloadDir); dir != "" {
		s.State.SetDefaultDownloadDir(dir)
	}
}

// Hydrate restores jobs from the worker history and the local mirror
// concurrently. Worker records win over mirrored copies of the same job.
func (s *Services) Hydrate(ctx context.Context) (int, error) {
	var remote, local []domain.Job

	// Both sources are read to completion even if one fails.
	var g errgroup.Group
	g.Go(func() error {
		records, err := s.Worker.History(ctx)
		if err != nil {
			return err
		}
		remote = make([]domain.Job, 0, len(records))
		for _, rec := range records {
			remote = append(remote, jobs.JobFromRecord(rec))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		local, err = s.Mirror.LoadJobs(ctx)
		return err
	})
	err := g.Wait()
	if err != nil {
		s.Log.Warn().Err(err).Msg("hydrate job history")
	}

	merged := mergeHistory(remote, local)
	added := s.Jobs.Hydrate(merged)
	s.Log.Info().Int("jobs", added).Msg("job history restored")
	return added, err
}

// mergeHistory keeps one job per id, preferring primary, ordered by start.
func mergeHistory(primary, secondary []domain.Job) []domain.Job {
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	out := make([]domain.Job, 0, len(primary)+len(secondary))
	for _, list := range [][]domain.Job{primary, secondary} {
		for _, job := range list {
			if job.ID == "" {
				continue
			}
			if _, ok := seen[job.ID]; ok {
				continue
			}
			seen[job.ID] = struct{}{}
			out = append(out, job)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Diagnostics runs the startup checks against the current settings.
func (s *Services) Diagnostics(ctx context.Context) domain.DiagnosticReport {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.Checker.Run(ctx, s.CurrentSettings())
}

// StartBackground runs the first update check and starts the scheduler.
func (s *Services) StartBackground() {
	if s.Config.Updates.CheckURL == "" {
		return
	}
	go func() {
		if _, err := s.Updates.Check(s.ctx); err != nil {
			s.Log.Debug().Err(err).Msg("initial update check")
		}
	}()
	if s.Config.Updates.Schedule == "" {
		return
	}
	if err := s.Updates.Schedule(s.ctx, s.Config.Updates.Schedule); err != nil {
		s.Log.Warn().Err(err).Msg("schedule update checks")
		return
	}
	s.Schedule.Start()
}

// Close stops background work, waits for in-flight operations and flushes
// pending job writes.
func (s *Services) Close() error {
	s.cancel()
	<-s.Schedule.Stop().Done()

	s.URLDownloads.Wait()
	s.Youtube.Wait()
	s.Transcriber.Wait()
	s.Jobs.Close()

	var errs []error
	if err := s.Mirror.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close job mirror: %w", err))
	}
	return errors.Join(errs...)
}
