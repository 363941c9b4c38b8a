package operations

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"captiondesk/internal/domain"
	"captiondesk/internal/poll"
	"captiondesk/internal/state"
	"captiondesk/internal/worker"
)

const (
	msgDownloadIncomplete = "Download failed. Please try again."
	cancelRequestTimeout  = 10 * time.Second
)

// ImportConfig holds the per-kind texts and behavior of an import.
type ImportConfig struct {
	Kind               domain.ImportKind
	EmptyURLMessage    string
	StartFailedMessage string
	FailedMessage      string
	CancelledMessage   string
	// ExternalSource tags ingested media with its origin and transcribes
	// only the audio track.
	ExternalSource bool
	// UseSavePath sends the staged save path with the start request.
	UseSavePath bool
}

// URLDownloadConfig configures direct URL downloads.
func URLDownloadConfig() ImportConfig {
	return ImportConfig{
		Kind:               domain.ImportKindURLDownload,
		EmptyURLMessage:    "Paste a URL to continue.",
		StartFailedMessage: "Failed to start download.",
		FailedMessage:      "Failed to download media.",
		CancelledMessage:   "Download cancelled.",
		UseSavePath:        true,
	}
}

// YoutubeConfig configures platform video imports.
func YoutubeConfig() ImportConfig {
	return ImportConfig{
		Kind:               domain.ImportKindYoutube,
		EmptyURLMessage:    "Paste a YouTube link to continue.",
		StartFailedMessage: "Failed to start YouTube import.",
		FailedMessage:      "Failed to load YouTube media.",
		CancelledMessage:   "Failed to load YouTube media.",
		ExternalSource:     true,
	}
}

// importRun is one in-flight import. Its fields are guarded by mu, which is
// held for every store write made on the run's behalf.
type importRun struct {
	url    string
	cancel context.CancelFunc

	mu        sync.Mutex
	cancelled bool
	taskID    string
	title     string
	att       *poll.Attachment
}

// ImportController starts, polls and cancels one kind of remote import.
type ImportController struct {
	cfg      ImportConfig
	api      ImportAPI
	store    *state.Store
	ingest   Ingestor
	layout   Layout
	interval time.Duration
	log      zerolog.Logger
	baseCtx  context.Context

	mu     sync.Mutex
	active *importRun
	bg     sync.WaitGroup
}

// ImportOptions are optional ImportController settings.
type ImportOptions struct {
	Interval time.Duration
	Layout   Layout
	Logger   zerolog.Logger
	// Context bounds background polling. Defaults to context.Background.
	Context context.Context
}

// NewImportController builds a controller for cfg.Kind.
func NewImportController(cfg ImportConfig, api ImportAPI, store *state.Store, ingest Ingestor, opts ImportOptions) *ImportController {
	if opts.Interval <= 0 {
		opts.Interval = poll.DownloadInterval
	}
	if opts.Layout == nil {
		opts.Layout = StaticLayout{}
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &ImportController{
		cfg:      cfg,
		api:      api,
		store:    store,
		ingest:   ingest,
		layout:   opts.Layout,
		interval: opts.Interval,
		log:      opts.Logger.With().Str("import", string(cfg.Kind)).Logger(),
		baseCtx:  opts.Context,
	}
}

// Kind returns the import kind this controller drives.
func (c *ImportController) Kind() domain.ImportKind {
	return c.cfg.Kind
}

// Busy reports whether an import is in flight.
func (c *ImportController) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// SetURL stages the URL typed by the user.
func (c *ImportController) SetURL(value string) {
	c.store.PatchImport(c.cfg.Kind, domain.ImportPatch{URL: domain.Set(value)})
}

// SetSavePath stages the download directory.
func (c *ImportController) SetSavePath(value string) {
	c.store.PatchImport(c.cfg.Kind, domain.ImportPatch{SavePath: domain.Set(value)})
}

// Start validates rawURL, issues the start request and, when the worker
// answers asynchronously, leaves a poll loop running. It returns once the
// start request has been answered. Failures are also written to the store.
func (c *ImportController) Start(ctx context.Context, rawURL string) error {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		c.store.PatchImport(c.cfg.Kind, domain.ImportPatch{Error: domain.Set(c.cfg.EmptyURLMessage)})
		return newOpError(KindValidation, c.cfg.EmptyURLMessage, nil)
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return ErrImportInProgress
	}
	runCtx, cancel := context.WithCancel(c.baseCtx)
	run := &importRun{url: url, cancel: cancel}
	c.active = run
	c.mu.Unlock()

	begin := domain.ClearRuntime()
	begin.URL = domain.Set(url)
	begin.Importing = domain.Set(true)
	begin.Error = domain.Set("")
	snap := c.store.Apply(c.patch(domain.ModalFor(c.cfg.Kind), begin))

	savePath := ""
	if c.cfg.UseSavePath {
		savePath = strings.TrimSpace(snap.Import(c.cfg.Kind).SavePath)
	}

	reqCtx, stop := mergeCancel(ctx, runCtx)
	resp, err := c.api.Start(reqCtx, url, savePath)
	stop()

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.cancelled {
		return nil
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("start import")
		return c.failLocked(run, newOpError(KindStart, UserMessage(err, c.cfg.StartFailedMessage), err))
	}

	switch resp.TaskStatus() {
	case domain.TaskStatusCompleted:
		return c.completeLocked(runCtx, run, resp)
	case domain.TaskStatusFailed, domain.TaskStatusCancelled:
		return c.failLocked(run, c.terminalError(resp))
	}
	if resp.DownloadID == "" {
		return c.failLocked(run, newOpError(KindStart, c.cfg.StartFailedMessage, nil))
	}

	run.taskID = resp.DownloadID
	run.title = resp.Title()
	tick := tickPatch(resp, run.title)
	tick.TaskID = domain.Set(resp.DownloadID)
	if resp.TaskStatus() == domain.TaskStatusIdle {
		tick.Status = domain.Set(domain.TaskStatusQueued)
	}
	c.store.PatchImport(c.cfg.Kind, tick)

	run.att = poll.Attach(runCtx, resp.DownloadID, c.interval, poll.Handlers[worker.ImportStatus]{
		Fetch:      c.api.Get,
		Status:     worker.ImportStatus.TaskStatus,
		OnUpdate:   func(s worker.ImportStatus) { c.onUpdate(run, s) },
		OnTerminal: func(s worker.ImportStatus, err error) { c.onTerminal(runCtx, run, s, err) },
	})
	c.log.Debug().Str("task", resp.DownloadID).Msg("import started")
	return nil
}

// Cancel abandons the in-flight import. The region is reset and the dialog
// closed before returning; the worker cancel request runs in the background
// and its outcome is ignored.
func (c *ImportController) Cancel() {
	c.mu.Lock()
	run := c.active
	c.active = nil
	c.mu.Unlock()

	taskID := ""
	if run != nil {
		run.mu.Lock()
		run.cancelled = true
		taskID = run.taskID
		att := run.att
		run.mu.Unlock()

		run.cancel()
		if att != nil {
			att.Detach()
		}
	}
	if taskID == "" {
		taskID = c.store.Snapshot().Import(c.cfg.Kind).TaskID
	}

	c.store.ResetImport(c.cfg.Kind)

	if taskID != "" {
		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), cancelRequestTimeout)
			defer cancel()
			if _, err := c.api.Cancel(ctx, taskID); err != nil {
				c.log.Debug().Err(err).Str("task", taskID).Msg("cancel request ignored")
			}
		}()
	}
}

// Wait blocks until background cancel requests have finished.
func (c *ImportController) Wait() {
	c.bg.Wait()
}

// onUpdate merges a non-terminal poll response.
func (c *ImportController) onUpdate(run *importRun, s worker.ImportStatus) {
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.cancelled {
		return
	}
	if t := s.Title(); t != "" {
		run.title = t
	}
	c.store.PatchImport(c.cfg.Kind, tickPatch(s, run.title))
}

// onTerminal finishes the run from a terminal poll response or poll error.
func (c *ImportController) onTerminal(ctx context.Context, run *importRun, s worker.ImportStatus, err error) {
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.cancelled {
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Str("task", run.taskID).Msg("poll import")
		_ = c.failLocked(run, newOpError(KindPoll, UserMessage(err, c.cfg.FailedMessage), err))
		return
	}
	if s.TaskStatus() == domain.TaskStatusCompleted {
		_ = c.completeLocked(ctx, run, s)
		return
	}
	_ = c.failLocked(run, c.terminalError(s))
}

// completeLocked ingests the produced file and returns the region to idle.
func (c *ImportController) completeLocked(ctx context.Context, run *importRun, s worker.ImportStatus) error {
	if !s.File.Valid() {
		return c.failLocked(run, newOpError(KindIncomplete, msgDownloadIncomplete, nil))
	}

	item := domain.MediaItem{
		Path:        s.File.Path,
		Name:        s.File.Name,
		Size:        s.File.Size,
		Mime:        s.File.Mime,
		DisplayName: strings.TrimSpace(s.Title()),
		DurationSec: s.DurationSec,
	}
	if c.cfg.ExternalSource {
		src := &domain.ExternalSource{Type: string(c.cfg.Kind), URL: run.url, ThumbnailURL: s.ThumbnailURL}
		if s.Source != nil {
			if s.Source.URL != "" {
				src.URL = s.Source.URL
			}
			src.Title = s.Source.Title
			src.ID = s.Source.ID
		}
		item.ExternalSource = src
		item.TranscriptionKind = domain.MediaKindAudio
	}

	if c.layout.IsCompact() {
		c.layout.RevealMediaPanel()
	}
	if _, err := c.ingest.Add(ctx, item); err != nil {
		c.log.Warn().Err(err).Str("path", item.Path).Msg("ingest imported media")
		return c.failLocked(run, newOpError(KindTerminal, UserMessage(err, c.cfg.FailedMessage), err))
	}

	c.release(run)
	done := domain.ClearRuntime()
	done.URL = domain.Set("")
	done.Error = domain.Set("")
	p := c.patch("", done)
	p.Close = domain.ModalFor(c.cfg.Kind)
	c.store.Apply(p)
	c.log.Info().Str("path", item.Path).Msg("import completed")
	return nil
}

// failLocked records err in the region and keeps the dialog open.
func (c *ImportController) failLocked(run *importRun, err *OpError) error {
	c.release(run)
	failed := domain.ClearRuntime()
	failed.Error = domain.Set(err.Message)
	c.store.Apply(c.patch(domain.ModalFor(c.cfg.Kind), failed))
	return err
}

// terminalError maps a failed or cancelled worker status to an OpError.
func (c *ImportController) terminalError(s worker.ImportStatus) *OpError {
	if s.TaskStatus() == domain.TaskStatusCancelled {
		return newOpError(KindTerminal, c.cfg.CancelledMessage, nil)
	}
	msg := strings.TrimSpace(s.Error)
	if msg == "" {
		msg = c.cfg.FailedMessage
	}
	return newOpError(KindTerminal, msg, nil)
}

// release drops run as the active import and stops its context.
func (c *ImportController) release(run *importRun) {
	c.mu.Lock()
	if c.active == run {
		c.active = nil
	}
	c.mu.Unlock()
	run.cancelled = true
	run.cancel()
}

// patch wraps a region patch, optionally showing modal.
func (c *ImportController) patch(modal domain.Modal, p domain.ImportPatch) state.Patch {
	out := state.ForImport(c.cfg.Kind, p)
	if modal != "" {
		out.Modal = domain.Set(modal)
	}
	return out
}

// tickPatch converts a worker status into the incremental region update.
func tickPatch(s worker.ImportStatus, title string) domain.ImportPatch {
	return domain.ImportPatch{
		Status:             domain.Set(s.TaskStatus()),
		Progress:           domain.Set(domain.RoundProgress(s.Progress)),
		Title:              domain.Set(title),
		DownloadedBytes:    domain.Set(s.DownloadedBytes),
		TotalBytes:         domain.Set(s.TotalBytes),
		TotalBytesEstimate: domain.Set(s.TotalBytesEstimate),
		FragmentIndex:      domain.Set(s.FragmentIndex),
		FragmentCount:      domain.Set(s.FragmentCount),
	}
}

// mergeCancel derives a context cancelled when either parent is.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
