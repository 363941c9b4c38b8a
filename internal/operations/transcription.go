package operations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"captiondesk/internal/domain"
	"captiondesk/internal/events"
	"captiondesk/internal/jobs"
	"captiondesk/internal/poll"
	"captiondesk/internal/state"
	"captiondesk/internal/worker"
)

const (
	msgTranscribeStartFailed = "Failed to start transcription."
	msgTranscribeFailed      = "Transcription failed."
	msgTranscribeIncomplete  = "Transcription finished without a result."
	msgTranscribeQueued      = "Queued"
	msgTranscribeDone        = "Transcription complete"
	msgTranscribeCancelled   = "Cancelled"
)

// transcription is the single in-flight job, from reservation until it
// settles. Fields after mu are guarded by it.
type transcription struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	cancelled bool
	jobID     string
	att       *poll.Attachment
}

// stopped reports whether the run was cancelled or the controller shut down.
// It must be read before release, which cancels run.ctx.
func (r *transcription) stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled || r.ctx.Err() != nil
}

// TranscriberOptions are optional Transcriber settings.
type TranscriberOptions struct {
	Interval time.Duration
	Notifier Notifier
	Logger   zerolog.Logger
	// Settings returns the current user preferences for each submission.
	Settings func() domain.Settings
	Context  context.Context
}

// Transcriber submits the selected media for transcription and follows the
// job until it settles. At most one job is active at a time.
type Transcriber struct {
	api      TranscribeAPI
	registry *jobs.Registry
	media    MediaSource
	gate     Readiness
	store    *state.Store
	notify   Notifier
	settings func() domain.Settings
	interval time.Duration
	log      zerolog.Logger
	baseCtx  context.Context

	mu     sync.Mutex
	active *transcription
	bg     sync.WaitGroup
}

// NewTranscriber wires a transcriber. gate may be nil when the model is
// managed elsewhere.
func NewTranscriber(api TranscribeAPI, registry *jobs.Registry, media MediaSource, gate Readiness, store *state.Store, opts TranscriberOptions) *Transcriber {
	if opts.Interval <= 0 {
		opts.Interval = poll.JobInterval
	}
	if opts.Settings == nil {
		opts.Settings = func() domain.Settings { return domain.Settings{} }
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &Transcriber{
		api:      api,
		registry: registry,
		media:    media,
		gate:     gate,
		store:    store,
		notify:   opts.Notifier,
		settings: opts.Settings,
		interval: opts.Interval,
		log:      opts.Logger.With().Str("component", "transcriber").Logger(),
		baseCtx:  opts.Context,
	}
}

// Busy reports whether a transcription is being submitted or followed.
func (t *Transcriber) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != nil
}

// GenerateCaptions submits the selected media item. With nothing selected
// the import dialog is opened instead.
func (t *Transcriber) GenerateCaptions(ctx context.Context) (domain.Job, error) {
	item, ok := t.media.Selected()
	if !ok {
		t.store.PatchModal(domain.ModalImport)
		return domain.Job{}, ErrNoMedia
	}

	run, err := t.reserve()
	if err != nil {
		return domain.Job{}, err
	}
	reqCtx, stop := mergeCancel(ctx, run.ctx)
	defer stop()

	if t.gate != nil && !t.gate.EnsureReady(reqCtx) {
		stopped := run.stopped()
		t.release(run)
		if stopped {
			return domain.Job{}, ErrTranscriptionCancelled
		}
		return domain.Job{}, ErrModelNotReady
	}

	settings := t.settings()
	jobID := "job-" + uuid.NewString()
	kind := item.TranscriptionKind
	if kind == "" {
		kind = item.Kind
	}
	req := worker.TranscribeRequest{
		JobID:         jobID,
		FilePath:      item.Path,
		Filename:      item.Name,
		DisplayName:   item.DisplayName,
		MediaKind:     kind,
		Model:         settings.Model,
		Language:      settings.Language,
		ChineseStyle:  settings.ChineseStyle,
		ChineseScript: settings.ChineseScript,
	}

	resp, err := t.api.Transcribe(reqCtx, req)
	if err == nil && domain.ParseTaskStatus(resp.Status) == domain.TaskStatusFailed {
		err = newOpError(KindTerminal, firstNonEmpty(resp.Error, resp.Message, msgTranscribeStartFailed), nil)
	}
	if err != nil {
		stopped := run.stopped()
		t.release(run)
		if stopped {
			// the worker may have accepted the job before the request was cut
			t.cancelRemote(jobID)
			return domain.Job{}, ErrTranscriptionCancelled
		}
		t.log.Warn().Err(err).Str("path", item.Path).Msg("submit transcription")
		t.notifyError(UserMessage(err, msgTranscribeStartFailed))
		var opErr *OpError
		if errors.As(err, &opErr) {
			return domain.Job{}, opErr
		}
		return domain.Job{}, newOpError(KindStart, UserMessage(err, msgTranscribeStartFailed), err)
	}
	if resp.JobID != "" {
		jobID = resp.JobID
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.cancelled {
		t.cancelRemote(jobID)
		return domain.Job{}, ErrTranscriptionCancelled
	}

	job := domain.Job{
		ID:          jobID,
		Filename:    item.Name,
		DisplayName: item.DisplayName,
		Status:      domain.JobStatusQueued,
		Message:     firstNonEmpty(resp.Message, msgTranscribeQueued),
		Language:    settings.Language,
		MediaPath:   item.Path,
		MediaKind:   kind,
		StartTime:   time.Now().UTC(),
	}
	if _, err := t.registry.AddJob(job); err != nil {
		t.release(run)
		return domain.Job{}, err
	}
	_ = t.registry.SelectJob(jobID)

	run.jobID = jobID
	run.att = poll.Attach(run.ctx, jobID, t.interval, poll.Handlers[worker.JobPoll]{
		Fetch:      t.api.PollJob,
		Status:     worker.JobPoll.TaskStatus,
		OnUpdate:   func(p worker.JobPoll) { t.onUpdate(run, p) },
		OnTerminal: func(p worker.JobPoll, err error) { t.onTerminal(run, p, err) },
	})
	t.log.Info().Str("job", jobID).Str("file", item.Name).Msg("transcription submitted")
	return job, nil
}

// CancelTranscription stops following the active job, asks the worker to
// cancel it and marks it failed locally.
func (t *Transcriber) CancelTranscription() error {
	t.mu.Lock()
	run := t.active
	if run == nil {
		t.mu.Unlock()
		return jobs.ErrNoRunningJob
	}
	t.active = nil
	t.mu.Unlock()

	run.mu.Lock()
	run.cancelled = true
	jobID := run.jobID
	att := run.att
	run.mu.Unlock()

	run.cancel()
	if att != nil {
		att.Detach()
	}
	if jobID == "" {
		return nil
	}

	_, err := t.registry.ApplyPoll(jobID, jobs.Update{
		Status:  domain.Set(domain.JobStatusFailed),
		Message: domain.Set(msgTranscribeCancelled),
		Error:   domain.Set(""),
	})
	if err != nil {
		t.log.Debug().Err(err).Str("job", jobID).Msg("mark cancelled")
	}

	t.cancelRemote(jobID)
	return nil
}

// cancelRemote asks the worker to stop jobID without waiting for it.
func (t *Transcriber) cancelRemote(jobID string) {
	t.bg.Add(1)
	go func() {
		defer t.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), cancelRequestTimeout)
		defer cancel()
		if err := t.api.CancelJob(ctx, jobID); err != nil {
			t.log.Debug().Err(err).Str("job", jobID).Msg("cancel request ignored")
		}
	}()
}

// Wait blocks until background cancel requests have finished.
func (t *Transcriber) Wait() {
	t.bg.Wait()
}

// reserve claims the single active slot.
func (t *Transcriber) reserve() (*transcription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != nil {
		return nil, jobs.ErrJobAlreadyRunning
	}
	ctx, cancel := context.WithCancel(t.baseCtx)
	run := &transcription{ctx: ctx, cancel: cancel}
	t.active = run
	return run, nil
}

// release frees the active slot if run still holds it.
func (t *Transcriber) release(run *transcription) {
	t.mu.Lock()
	if t.active == run {
		t.active = nil
	}
	t.mu.Unlock()
	run.cancel()
}

// onUpdate merges a non-terminal poll response into the job.
func (t *Transcriber) onUpdate(run *transcription, p worker.JobPoll) {
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.cancelled {
		return
	}
	u := jobs.Update{
		Status:   domain.Set(jobStatusOf(p.TaskStatus())),
		Progress: domain.Set(domain.RoundProgress(p.Progress)),
	}
	if msg := firstNonEmpty(p.Message, p.CurrentStage); msg != "" {
		u.Message = domain.Set(msg)
	}
	if p.PartialResult != nil {
		u.PartialResult = domain.Set(p.PartialResult)
	}
	if _, err := t.registry.ApplyPoll(run.jobID, u); err != nil {
		t.log.Debug().Err(err).Str("job", run.jobID).Msg("apply poll")
	}
}

// onTerminal settles the job from its final poll response or poll error.
func (t *Transcriber) onTerminal(run *transcription, p worker.JobPoll, pollErr error) {
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.cancelled {
		return
	}
	run.cancelled = true
	t.release(run)

	var u jobs.Update
	var failure *OpError
	switch {
	case pollErr != nil:
		failure = newOpError(KindPoll, UserMessage(pollErr, msgTranscribeFailed), pollErr)
	case p.TaskStatus() == domain.TaskStatusCompleted && p.Result == nil:
		failure = newOpError(KindIncomplete, msgTranscribeIncomplete, nil)
	case p.TaskStatus() == domain.TaskStatusCompleted:
		u = jobs.Update{
			Status:        domain.Set(domain.JobStatusCompleted),
			Progress:      domain.Set(intPtr(100)),
			Message:       domain.Set(firstNonEmpty(p.Message, msgTranscribeDone)),
			Error:         domain.Set(""),
			Result:        domain.Set(p.Result),
			PartialResult: domain.Set[*domain.TranscriptResult](nil),
		}
	case p.TaskStatus() == domain.TaskStatusCancelled:
		u = jobs.Update{
			Status:  domain.Set(domain.JobStatusFailed),
			Message: domain.Set(msgTranscribeCancelled),
			Error:   domain.Set(""),
		}
	default:
		failure = newOpError(KindTerminal, firstNonEmpty(strings.TrimSpace(p.Error), msgTranscribeFailed), nil)
	}
	if failure != nil {
		u = jobs.Update{
			Status:  domain.Set(domain.JobStatusFailed),
			Message: domain.Set(msgTranscribeFailed),
			Error:   domain.Set(failure.Message),
		}
	}

	job, err := t.registry.ApplyPoll(run.jobID, u)
	if err != nil {
		t.log.Debug().Err(err).Str("job", run.jobID).Msg("apply final poll")
		return
	}
	if failure != nil {
		t.log.Warn().Str("job", job.ID).Str("kind", string(failure.Kind)).Msg(failure.Message)
		t.notifyError(failure.Message)
		return
	}
	if job.Status == domain.JobStatusCompleted {
		t.log.Info().Str("job", job.ID).Int("segments", len(job.Segments)).Msg("transcription completed")
		if t.notify != nil {
			t.notify.Notify(events.LevelSuccess, msgTranscribeDone)
		}
	}
}

func (t *Transcriber) notifyError(msg string) {
	if t.notify != nil {
		t.notify.Notify(events.LevelError, msg)
	}
}

// jobStatusOf maps a worker task status onto the job table.
func jobStatusOf(s domain.TaskStatus) domain.JobStatus {
	switch s {
	case domain.TaskStatusProcessing:
		return domain.JobStatusProcessing
	case domain.TaskStatusCompleted:
		return domain.JobStatusCompleted
	case domain.TaskStatusFailed, domain.TaskStatusCancelled:
		return domain.JobStatusFailed
	default:
		return domain.JobStatusQueued
	}
}

func intPtr(v int) *int { return &v }
