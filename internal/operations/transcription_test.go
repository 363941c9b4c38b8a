package operations

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captiondesk/internal/domain"
	"captiondesk/internal/jobs"
	"captiondesk/internal/state"
	"captiondesk/internal/worker"
)

type fakeTranscribe struct {
	mu        sync.Mutex
	resp      worker.TranscribeResponse
	err       error
	hold      bool
	submitted []worker.TranscribeRequest
	polls     []worker.JobPoll
	gate      chan struct{}
	fetches   int
	cancelled []string
}

// Transcribe records req. With hold set it blocks until ctx ends.
func (f *fakeTranscribe) Transcribe(ctx context.Context, req worker.TranscribeRequest) (worker.TranscribeResponse, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, req)
	resp, err, hold := f.resp, f.err, f.hold
	f.mu.Unlock()

	if hold {
		<-ctx.Done()
		return worker.TranscribeResponse{}, ctx.Err()
	}
	if err != nil {
		return worker.TranscribeResponse{}, err
	}
	if resp.JobID == "" {
		resp.JobID = req.JobID
	}
	return resp, nil
}

func (f *fakeTranscribe) cancelledIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

func (f *fakeTranscribe) PollJob(_ context.Context, _ string) (worker.JobPoll, error) {
	f.mu.Lock()
	f.fetches++
	n := f.fetches
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.polls) == 0 {
		return worker.JobPoll{Status: "processing"}, nil
	}
	if n > len(f.polls) {
		n = len(f.polls)
	}
	return f.polls[n-1], nil
}

func (f *fakeTranscribe) CancelJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

func (f *fakeTranscribe) requests() []worker.TranscribeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]worker.TranscribeRequest(nil), f.submitted...)
}

type transcribeHarness struct {
	api      *fakeTranscribe
	registry *jobs.Registry
	store    *state.Store
	gate     *fixedGate
	notes    *notices
	t        *Transcriber
}

func newTranscribeHarness(t *testing.T, api *fakeTranscribe, item *domain.MediaItem) *transcribeHarness {
	t.Helper()
	h := &transcribeHarness{
		api:      api,
		registry: jobs.NewRegistry(nil, nil, zerolog.Nop()),
		store:    state.NewStore(state.Defaults{}, nil),
		gate:     &fixedGate{ready: true},
		notes:    &notices{},
	}
	h.t = NewTranscriber(api, h.registry, fakeMedia{item: item}, h.gate, h.store, TranscriberOptions{
		Interval: testInterval,
		Notifier: h.notes,
		Logger:   zerolog.Nop(),
		Settings: func() domain.Settings {
			return domain.Settings{Language: "en", Model: "base"}
		},
	})
	t.Cleanup(func() {
		h.t.Wait()
		h.registry.Close()
	})
	return h
}

func sampleItem() *domain.MediaItem {
	return &domain.MediaItem{ID: "m1", Path: "/media/talk.mp4", Name: "talk.mp4", DisplayName: "talk", Kind: domain.MediaKindVideo}
}

func TestGenerateCaptionsWithoutMediaOpensImport(t *testing.T) {
	h := newTranscribeHarness(t, &fakeTranscribe{}, nil)

	_, err := h.t.GenerateCaptions(context.Background())
	assert.ErrorIs(t, err, ErrNoMedia)
	assert.Equal(t, domain.ModalImport, h.store.Snapshot().Modal)
	assert.Zero(t, h.gate.calls)
}

func TestGenerateCaptionsRequiresModel(t *testing.T) {
	h := newTranscribeHarness(t, &fakeTranscribe{}, sampleItem())
	h.gate.ready = false

	_, err := h.t.GenerateCaptions(context.Background())
	assert.ErrorIs(t, err, ErrModelNotReady)
	assert.Empty(t, h.api.requests())
	assert.False(t, h.t.Busy())
}

func TestSubmitFailureIsReportedAsTerminal(t *testing.T) {
	api := &fakeTranscribe{resp: worker.TranscribeResponse{Status: "failed", Error: "GPU out of memory"}}
	h := newTranscribeHarness(t, api, sampleItem())

	_, err := h.t.GenerateCaptions(context.Background())
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, KindTerminal, opErr.Kind)
	assert.Equal(t, "GPU out of memory", opErr.Message)
	assert.NotErrorIs(t, err, ErrTranscriptionCancelled)
	assert.Equal(t, []string{"error: GPU out of memory"}, h.notes.all())
	assert.False(t, h.t.Busy())
	assert.Empty(t, h.registry.List())
}

func TestSubmitRequestErrorIsStartFailure(t *testing.T) {
	api := &fakeTranscribe{err: &worker.APIError{StatusCode: 503, Message: "Worker busy"}}
	h := newTranscribeHarness(t, api, sampleItem())

	_, err := h.t.GenerateCaptions(context.Background())
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, KindStart, opErr.Kind)
	assert.Equal(t, "Worker busy", opErr.Message)
	assert.Equal(t, []string{"error: Worker busy"}, h.notes.all())
	assert.Empty(t, api.cancelledIDs())
}

func TestCancelDuringSubmitCancelsRemoteJob(t *testing.T) {
	api := &fakeTranscribe{hold: true}
	h := newTranscribeHarness(t, api, sampleItem())

	errCh := make(chan error, 1)
	go func() {
		_, err := h.t.GenerateCaptions(context.Background())
		errCh <- err
	}()
	require.Eventually(t, func() bool { return len(api.requests()) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.t.CancelTranscription())
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrTranscriptionCancelled)
	case <-time.After(time.Second):
		t.Fatal("submission did not return after cancel")
	}

	h.t.Wait()
	jobID := api.requests()[0].JobID
	assert.Equal(t, []string{jobID}, api.cancelledIDs())
	assert.Empty(t, h.notes.all())
	assert.False(t, h.t.Busy())
}

func TestTranscriptionFollowsJobToCompletion(t *testing.T) {
	result := &domain.TranscriptResult{
		Text:     "hello world",
		Language: "en",
		Segments: []domain.Segment{{ID: 1, Start: 0, End: 1, Text: "hello"}, {ID: 2, Start: 1, End: 2, Text: "world"}},
	}
	api := &fakeTranscribe{polls: []worker.JobPoll{
		{Status: "processing", Progress: fptr(30), Message: "Transcribing"},
		{Status: "completed", Result: result},
	}}
	h := newTranscribeHarness(t, api, sampleItem())

	job, err := h.t.GenerateCaptions(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(job.ID, "job-"))
	assert.Equal(t, domain.JobStatusQueued, job.Status)

	reqs := api.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/media/talk.mp4", reqs[0].FilePath)
	assert.Equal(t, "base", reqs[0].Model)
	assert.Equal(t, domain.MediaKindVideo, reqs[0].MediaKind)

	selected, ok := h.registry.Selected()
	require.True(t, ok)
	assert.Equal(t, job.ID, selected.ID)

	require.Eventually(t, func() bool { return !h.t.Busy() }, time.Second, time.Millisecond)
	got, ok := h.registry.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Len(t, got.Segments, 2)
	require.NotNil(t, got.Progress)
	assert.Equal(t, 100, *got.Progress)
	assert.NotNil(t, got.CompletedAt)
	assert.Contains(t, h.notes.all(), "success: Transcription complete")
}

func TestCompletedWithoutResultFailsJob(t *testing.T) {
	api := &fakeTranscribe{polls: []worker.JobPoll{{Status: "completed"}}}
	h := newTranscribeHarness(t, api, sampleItem())

	job, err := h.t.GenerateCaptions(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !h.t.Busy() }, time.Second, time.Millisecond)

	got, _ := h.registry.Get(job.ID)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "Transcription finished without a result.", got.Error)
}

func TestOnlyOneTranscriptionAtATime(t *testing.T) {
	api := &fakeTranscribe{gate: make(chan struct{})}
	h := newTranscribeHarness(t, api, sampleItem())
	defer close(api.gate)

	_, err := h.t.GenerateCaptions(context.Background())
	require.NoError(t, err)

	_, err = h.t.GenerateCaptions(context.Background())
	assert.ErrorIs(t, err, jobs.ErrJobAlreadyRunning)
	assert.Len(t, api.requests(), 1)
	require.NoError(t, h.t.CancelTranscription())
}

func TestCancelTranscriptionMarksJobCancelled(t *testing.T) {
	api := &fakeTranscribe{
		gate:  make(chan struct{}),
		polls: []worker.JobPoll{{Status: "completed", Result: &domain.TranscriptResult{Text: "late"}}},
	}
	h := newTranscribeHarness(t, api, sampleItem())

	assert.ErrorIs(t, h.t.CancelTranscription(), jobs.ErrNoRunningJob)

	job, err := h.t.GenerateCaptions(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.t.CancelTranscription())

	close(api.gate)
	time.Sleep(20 * testInterval)
	h.t.Wait()

	got, _ := h.registry.Get(job.ID)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "Cancelled", got.Message)
	assert.Empty(t, got.Error)
	assert.Nil(t, got.Result)
	assert.Equal(t, []string{job.ID}, api.cancelled)
	assert.False(t, h.t.Busy())
}
