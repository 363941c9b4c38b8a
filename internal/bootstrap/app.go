package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"captiondesk/internal/domain"
	"captiondesk/internal/events"
	"captiondesk/internal/hostbridge"
	"captiondesk/internal/jobs"
	"captiondesk/internal/operations"
	"captiondesk/internal/state"
	"captiondesk/internal/updates"
	"captiondesk/internal/worker"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// ErrAlreadyRunning is returned when another desktop instance holds the lock.
var ErrAlreadyRunning = errors.New("captiondesk is already running")

// ErrUnknownImport is returned for an import kind the app does not serve.
var ErrUnknownImport = errors.New("unknown import kind")

const (
	eventName       = "app:event"
	revealMediaName = "layout:reveal-media"
)

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App binds the orchestrator to the desktop shell.
type App struct {
	svc    *Services
	assets fs.FS
	bridge *hostbridge.Wails
	lock   *flock.Flock

	mu          sync.Mutex
	runtimeCtx  context.Context
	compact     bool
	diagnostics domain.DiagnosticReport
}

// New builds the application with persisted settings.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets. Only one instance may run per data directory.
func NewWithAssets(assets fs.FS) (*App, error) {
	a := &App{assets: assets}
	a.bridge = hostbridge.NewWails(func() string {
		if a.svc == nil {
			return ""
		}
		return a.svc.CurrentSettings().ExportDir
	})

	svc, err := Build(Options{Bridge: a.bridge, Layout: a})
	if err != nil {
		return nil, err
	}
	a.svc = svc

	a.lock = flock.New(svc.Config.LockPath())
	ok, err := a.lock.TryLock()
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		_ = svc.Close()
		return nil, ErrAlreadyRunning
	}

	svc.Bus.OnPublish(a.emit)
	return a, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "CaptionDesk",
		Width:       1280,
		Height:      820,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores the Wails runtime context and restores the session in the
// background.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()
	a.bridge.Attach(ctx)

	go func() {
		base := a.svc.Context()
		a.svc.LoadDefaults(base)
		if _, err := a.svc.Hydrate(base); err != nil {
			a.svc.Bus.Notify(events.LevelError, "Failed to load job history.")
		}
		report := a.svc.Diagnostics(base)
		a.mu.Lock()
		a.diagnostics = report
		a.mu.Unlock()
		a.svc.StartBackground()
	}()
}

// Shutdown detaches the runtime, stops background work and releases the
// instance lock.
func (a *App) Shutdown(context.Context) {
	a.mu.Lock()
	a.runtimeCtx = nil
	a.mu.Unlock()
	a.bridge.Attach(nil)

	if err := a.svc.Close(); err != nil {
		a.svc.Log.Warn().Err(err).Msg("close services")
	}
	if err := a.lock.Unlock(); err != nil {
		a.svc.Log.Warn().Err(err).Msg("release instance lock")
	}
}

// IsCompact reports whether the view is in its narrow layout.
func (a *App) IsCompact() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.compact
}

// RevealMediaPanel asks the view to show the media panel.
func (a *App) RevealMediaPanel() {
	if ctx := a.currentRuntime(); ctx != nil {
		wailsruntime.EventsEmit(ctx, revealMediaName)
	}
}

// SetCompactLayout is called by the view when its layout changes.
func (a *App) SetCompactLayout(compact bool) {
	a.mu.Lock()
	a.compact = compact
	a.mu.Unlock()
}

// Snapshot returns the shared operation state.
func (a *App) Snapshot() state.Snapshot {
	return a.svc.State.Snapshot()
}

// Events returns all events with sequence greater than sinceSeq.
func (a *App) Events(sinceSeq int64) []events.Event {
	return a.svc.Bus.Since(sinceSeq)
}

// OpenModal shows one import dialog.
func (a *App) OpenModal(modal domain.Modal) state.Snapshot {
	return a.svc.Modals.Open(modal)
}

// CloseModal hides a dialog, optionally discarding its staged input.
func (a *App) CloseModal(modal domain.Modal, discard bool) state.Snapshot {
	return a.svc.Modals.Close(modal, discard)
}

// SetImportURL stages the URL typed into an import dialog.
func (a *App) SetImportURL(kind domain.ImportKind, value string) error {
	c, err := a.importer(kind)
	if err != nil {
		return err
	}
	c.SetURL(value)
	return nil
}

// SetImportSavePath stages the destination folder of an import.
func (a *App) SetImportSavePath(kind domain.ImportKind, value string) error {
	c, err := a.importer(kind)
	if err != nil {
		return err
	}
	c.SetSavePath(value)
	return nil
}

// PickSaveDirectory opens a directory picker for the URL download folder.
func (a *App) PickSaveDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:            "Select download folder",
		DefaultDirectory: a.svc.State.Snapshot().URLDownload.SavePath,
	})
	if err != nil {
		return "", err
	}

	path = strings.TrimSpace(path)
	if path != "" {
		a.svc.URLDownloads.SetSavePath(path)
	}
	return path, nil
}

// StartImport starts a URL download or platform import. Progress arrives
// through state events.
func (a *App) StartImport(kind domain.ImportKind, rawURL string) error {
	c, err := a.importer(kind)
	if err != nil {
		return err
	}
	return c.Start(a.svc.Context(), rawURL)
}

// CancelImport stops an import and resets its dialog.
func (a *App) CancelImport(kind domain.ImportKind) error {
	c, err := a.importer(kind)
	if err != nil {
		return err
	}
	c.Cancel()
	return nil
}

// RetryModelDownload re-runs the model readiness check.
func (a *App) RetryModelDownload() bool {
	return a.svc.Model.Retry(a.svc.Context())
}

// ClearModelDownload dismisses a finished or failed model download notice.
func (a *App) ClearModelDownload() {
	a.svc.Model.Clear()
}

// GenerateCaptions transcribes the selected media.
func (a *App) GenerateCaptions() (domain.Job, error) {
	return a.svc.Transcriber.GenerateCaptions(a.svc.Context())
}

// CancelTranscription cancels the running transcription, if any.
func (a *App) CancelTranscription() error {
	return a.svc.Transcriber.CancelTranscription()
}

// ListJobs returns every known job.
func (a *App) ListJobs() []domain.Job {
	return a.svc.Jobs.List()
}

// SelectJob marks a job as the one being edited.
func (a *App) SelectJob(jobID string) error {
	return a.svc.Jobs.SelectJob(jobID)
}

// RemoveJob deletes a job and its records.
func (a *App) RemoveJob(jobID string) error {
	_, err := a.svc.Jobs.RemoveJob(jobID)
	return err
}

// AddSegment inserts a caption cue.
func (a *App) AddSegment(jobID string, seg domain.Segment) (domain.Segment, error) {
	added, _, err := a.svc.Jobs.AddSegment(jobID, seg)
	return added, err
}

// EditSegment replaces the text of a caption cue.
func (a *App) EditSegment(jobID string, segmentID int, text string) error {
	_, err := a.svc.Jobs.EditSegment(jobID, segmentID, text)
	return err
}

// RetimeSegment moves a caption cue.
func (a *App) RetimeSegment(jobID string, segmentID int, start, end float64) error {
	_, err := a.svc.Jobs.RetimeSegment(jobID, segmentID, start, end)
	return err
}

// DeleteSegment removes a caption cue.
func (a *App) DeleteSegment(jobID string, segmentID int) error {
	_, err := a.svc.Jobs.DeleteSegment(jobID, segmentID)
	return err
}

// ImportCaptions loads an SRT file picked by the user into the selected job.
func (a *App) ImportCaptions() (domain.Job, error) {
	return a.svc.Captions.ImportFromDialog(a.svc.Context())
}

// ClearCaptions removes all captions of the selected job.
func (a *App) ClearCaptions() error {
	return a.svc.Captions.Clear()
}

// ExportTranscript saves the plain transcript of jobID.
func (a *App) ExportTranscript(jobID string) (string, error) {
	return a.export(jobID, worker.ExportTranscript)
}

// ExportSRT saves the captions of jobID as SubRip.
func (a *App) ExportSRT(jobID string) (string, error) {
	return a.export(jobID, worker.ExportSRT)
}

func (a *App) export(jobID string, format worker.ExportFormat) (string, error) {
	job, ok := a.svc.Jobs.Get(jobID)
	if !ok {
		return "", jobs.ErrJobNotFound
	}
	return a.svc.Exporter.Export(a.svc.Context(), job, format, job.Language)
}

// PickInputFile opens a native file dialog and adds the choice to the
// media library.
func (a *App) PickInputFile() (domain.MediaItem, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return domain.MediaItem{}, err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media file",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return domain.MediaItem{}, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.MediaItem{}, hostbridge.ErrCancelled
	}
	a.svc.State.CloseModal(domain.ModalOpen)
	return a.svc.Media.AddPath(a.svc.Context(), path)
}

// AddMediaPath adds a dropped file to the media library.
func (a *App) AddMediaPath(path string) (domain.MediaItem, error) {
	return a.svc.Media.AddPath(a.svc.Context(), path)
}

// ListMedia returns the media library.
func (a *App) ListMedia() []domain.MediaItem {
	return a.svc.Media.List()
}

// SelectMedia marks a media item as the transcription source.
func (a *App) SelectMedia(id string) error {
	return a.svc.Media.Select(id)
}

// RemoveMedia drops a media item from the library.
func (a *App) RemoveMedia(id string) error {
	return a.svc.Media.Remove(id)
}

// GetSettings returns the current settings.
func (a *App) GetSettings() domain.Settings {
	return a.svc.CurrentSettings()
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	saved, err := a.svc.SaveSettings(settings)
	if err != nil {
		return domain.Settings{}, err
	}
	if _, err := a.RefreshDiagnostics(); err != nil {
		return saved, err
	}
	return saved, nil
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diagnostics
}

// RefreshDiagnostics reruns the startup checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	report := a.svc.Diagnostics(a.svc.Context())
	a.mu.Lock()
	a.diagnostics = report
	a.mu.Unlock()
	return report, nil
}

// FixDiagnostic repairs one failed diagnostic item and caches the new report.
func (a *App) FixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	report, err := a.svc.FixDiagnostic(a.svc.Context(), itemID)
	if len(report.Items) > 0 {
		a.mu.Lock()
		a.diagnostics = report
		a.mu.Unlock()
	}
	return report, err
}

// CheckForUpdates queries the release feed now.
func (a *App) CheckForUpdates() (*updates.Info, error) {
	return a.svc.Updates.Check(a.svc.Context())
}

// LatestUpdate returns the last known update notice, if any.
func (a *App) LatestUpdate() *updates.Info {
	return a.svc.Updates.Latest()
}

// OpenOutputFolder opens the given path (or export dir) in the file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		target = a.svc.CurrentSettings().ExportDir
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

func (a *App) importer(kind domain.ImportKind) (*operations.ImportController, error) {
	switch kind {
	case domain.ImportKindURLDownload:
		return a.svc.URLDownloads, nil
	case domain.ImportKindYoutube:
		return a.svc.Youtube, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownImport, kind)
	}
}

// emit forwards bus events to the view.
func (a *App) emit(event events.Event) {
	if ctx := a.currentRuntime(); ctx != nil {
		wailsruntime.EventsEmit(ctx, eventName, event)
	}
}

func (a *App) currentRuntime() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runtimeCtx
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	ctx := a.currentRuntime()
	if ctx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return ctx, nil
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
