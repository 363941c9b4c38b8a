package operations

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"captiondesk/internal/domain"
	"captiondesk/internal/events"
	"captiondesk/internal/poll"
	"captiondesk/internal/state"
	"captiondesk/internal/worker"
)

const (
	msgCheckingModel    = "Checking model..."
	msgDownloadingModel = "Downloading model..."
	msgModelFailed      = "Model download failed."
	msgModelRetry       = "Model download failed. Please retry."
	msgModelStartFailed = "Failed to start model download."
)

// ModelGate makes sure the speech model is present before transcription.
// Only one check or download runs at a time.
type ModelGate struct {
	api      ModelAPI
	store    *state.Store
	notify   Notifier
	interval time.Duration
	log      zerolog.Logger

	busy atomic.Bool
}

// NewModelGate creates a gate polling downloads every interval.
func NewModelGate(api ModelAPI, store *state.Store, notify Notifier, interval time.Duration, logger zerolog.Logger) *ModelGate {
	if interval <= 0 {
		interval = poll.ModelInterval
	}
	return &ModelGate{
		api:      api,
		store:    store,
		notify:   notify,
		interval: interval,
		log:      logger.With().Str("component", "model-gate").Logger(),
	}
}

// EnsureReady returns true once the model is on disk, downloading it first
// if needed. A call made while another is checking or downloading returns
// false without contacting the worker. Failures are recorded in the model
// region and announced through the notifier.
func (g *ModelGate) EnsureReady(ctx context.Context) bool {
	if !g.busy.CompareAndSwap(false, true) {
		return false
	}
	defer g.busy.Store(false)

	g.store.Apply(state.Patch{Model: &domain.ModelPatch{
		Status:          domain.Set(domain.ModelStatusChecking),
		Progress:        domain.Set[*int](nil),
		Message:         domain.Set(msgCheckingModel),
		Detail:          domain.Set(""),
		ExpectedPath:    domain.Set(""),
		DownloadURL:     domain.Set(""),
		TaskID:          domain.Set(""),
		DownloadedBytes: domain.Set[*int64](nil),
		TotalBytes:      domain.Set[*int64](nil),
	}})

	err := g.provision(ctx)
	switch {
	case err == nil:
		g.store.ResetModel()
		return true
	case ctx.Err() != nil && isCancellation(err):
		g.store.ResetModel()
		return false
	default:
		g.fail(err)
		return false
	}
}

// Busy reports whether a check or download is running.
func (g *ModelGate) Busy() bool {
	return g.busy.Load()
}

// Clear dismisses a finished or failed gate state.
func (g *ModelGate) Clear() {
	if g.busy.Load() {
		return
	}
	g.store.ResetModel()
}

// Retry runs the gate again after a failure.
func (g *ModelGate) Retry(ctx context.Context) bool {
	return g.EnsureReady(ctx)
}

// provision checks readiness and downloads the model when missing.
func (g *ModelGate) provision(ctx context.Context) error {
	status, err := g.api.ModelStatus(ctx)
	if err != nil {
		return err
	}
	if status.Ready {
		return nil
	}

	start, err := g.api.StartModelDownload(ctx)
	if err != nil {
		return err
	}
	switch start.TaskStatus() {
	case domain.TaskStatusCompleted:
		return nil
	case domain.TaskStatusFailed, domain.TaskStatusCancelled:
		return downloadError(start)
	}
	if start.DownloadID == "" {
		return newOpError(KindStart, msgModelStartFailed, nil)
	}

	g.store.PatchModel(domain.ModelPatch{
		Status:          domain.Set(domain.ModelStatusDownloading),
		Progress:        domain.Set(domain.RoundProgress(start.Progress)),
		Message:         domain.Set(msgDownloadingModel),
		ExpectedPath:    domain.Set(firstNonEmpty(start.ExpectedPath, status.ExpectedPath)),
		DownloadURL:     domain.Set(firstNonEmpty(start.DownloadURL, status.DownloadURL)),
		TaskID:          domain.Set(start.DownloadID),
		DownloadedBytes: domain.Set(start.DownloadedBytes),
		TotalBytes:      domain.Set(start.TotalBytes),
	})
	g.log.Info().Str("download", start.DownloadID).Msg("model download started")

	result := make(chan error, 1)
	att := poll.Attach(ctx, start.DownloadID, g.interval, poll.Handlers[worker.ModelDownload]{
		Fetch:    g.api.ModelDownload,
		Status:   worker.ModelDownload.TaskStatus,
		OnUpdate: func(d worker.ModelDownload) { g.store.PatchModel(modelTick(d)) },
		OnTerminal: func(d worker.ModelDownload, err error) {
			switch {
			case err != nil:
				result <- err
			case d.TaskStatus() == domain.TaskStatusCompleted:
				result <- nil
			default:
				result <- downloadError(d)
			}
		},
	})
	<-att.Done()

	select {
	case err := <-result:
		if err == nil {
			g.logDownloaded()
		}
		return err
	default:
		return ctx.Err()
	}
}

// fail records a failed gate run.
func (g *ModelGate) fail(err error) {
	detail := UserMessage(err, msgModelFailed)
	g.log.Warn().Err(err).Msg("model download")
	g.store.PatchModel(domain.ModelPatch{
		Status:  domain.Set(domain.ModelStatusError),
		Message: domain.Set(msgModelFailed),
		Detail:  domain.Set(detail),
		TaskID:  domain.Set(""),
	})
	if g.notify != nil {
		g.notify.Notify(events.LevelError, msgModelRetry)
	}
}

// logDownloaded records where the model landed and how large it was.
func (g *ModelGate) logDownloaded() {
	snap := g.store.Snapshot().Model
	ev := g.log.Info().Str("path", snap.ExpectedPath)
	if snap.TotalBytes != nil && *snap.TotalBytes > 0 {
		ev = ev.Str("size", humanize.Bytes(uint64(*snap.TotalBytes)))
	}
	ev.Msg("model downloaded")
}

// modelTick merges a poll response, keeping earlier values the worker
// no longer reports.
func modelTick(d worker.ModelDownload) domain.ModelPatch {
	p := domain.ModelPatch{
		Status:   domain.Set(domain.ModelStatusDownloading),
		Progress: domain.Set(domain.RoundProgress(d.Progress)),
	}
	if d.ExpectedPath != "" {
		p.ExpectedPath = domain.Set(d.ExpectedPath)
	}
	if d.DownloadURL != "" {
		p.DownloadURL = domain.Set(d.DownloadURL)
	}
	if d.DownloadedBytes != nil {
		p.DownloadedBytes = domain.Set(d.DownloadedBytes)
	}
	if d.TotalBytes != nil {
		p.TotalBytes = domain.Set(d.TotalBytes)
	}
	return p
}

// downloadError turns a failed download reply into an error.
func downloadError(d worker.ModelDownload) error {
	msg := strings.TrimSpace(d.Error)
	if msg == "" {
		msg = msgModelFailed
	}
	return newOpError(KindTerminal, msg, errors.New(d.Status))
}

// firstNonEmpty returns the first non-blank value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
