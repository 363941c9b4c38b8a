package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"captiondesk/internal/domain"
	"captiondesk/internal/worker"
)

// Persister stores the durable copy of jobs.
type Persister interface {
	SaveJob(ctx context.Context, job domain.Job) error
	DeleteJob(ctx context.Context, jobID string) error
}

// ErrPersistQueueFull is reported when writes outpace the persister.
var ErrPersistQueueFull = errors.New("persist queue full")

const (
	persistQueueSize = 256
	persistTimeout   = 10 * time.Second
)

// writeOp is one queued persistence call.
type writeOp struct {
	run  func(ctx context.Context) error
	done chan error
}

// writer applies persistence calls one at a time in submission order.
// Failures are logged and reported on the op's channel, which callers are
// free to ignore.
type writer struct {
	persist Persister
	log     zerolog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan writeOp
	wg     sync.WaitGroup
}

// newWriter starts the background writer. A nil persister makes every
// write a no-op.
func newWriter(persist Persister, logger zerolog.Logger) *writer {
	w := &writer{
		persist: persist,
		log:     logger,
		queue:   make(chan writeOp, persistQueueSize),
	}
	if persist != nil {
		w.wg.Add(1)
		go w.loop()
	}
	return w
}

// save queues an upsert of job.
func (w *writer) save(job domain.Job) <-chan error {
	return w.enqueue(func(ctx context.Context) error {
		return w.persist.SaveJob(ctx, job)
	})
}

// remove queues a deletion of jobID.
func (w *writer) remove(jobID string) <-chan error {
	return w.enqueue(func(ctx context.Context) error {
		return w.persist.DeleteJob(ctx, jobID)
	})
}

// enqueue submits run without blocking the caller.
func (w *writer) enqueue(run func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	if w.persist == nil {
		done <- nil
		return done
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		done <- errors.New("persist queue closed")
		return done
	}
	select {
	case w.queue <- writeOp{run: run, done: done}:
	default:
		w.log.Debug().Msg("persist queue full, dropping write")
		done <- ErrPersistQueueFull
	}
	return done
}

// loop drains the queue until close.
func (w *writer) loop() {
	defer w.wg.Done()
	for op := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := op.run(ctx)
		cancel()
		if err != nil {
			w.log.Debug().Err(err).Msg("persist job record")
		}
		op.done <- err
	}
}

// close stops accepting writes and waits for queued ones to finish.
func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
}

// RecordWriter is the worker surface used for durable job records.
type RecordWriter interface {
	UpsertRecord(ctx context.Context, rec worker.JobRecord) error
	DeleteRecord(ctx context.Context, jobID string) error
}

// WorkerPersister stores jobs as worker job records.
type WorkerPersister struct {
	Records RecordWriter
}

// SaveJob upserts the worker record of job.
func (p WorkerPersister) SaveJob(ctx context.Context, job domain.Job) error {
	return p.Records.UpsertRecord(ctx, RecordFromJob(job))
}

// DeleteJob removes the worker record of jobID.
func (p WorkerPersister) DeleteJob(ctx context.Context, jobID string) error {
	return p.Records.DeleteRecord(ctx, jobID)
}

// MultiPersister writes to every persister and joins their errors.
type MultiPersister []Persister

// SaveJob implements Persister.
func (m MultiPersister) SaveJob(ctx context.Context, job domain.Job) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.SaveJob(ctx, job))
	}
	return errors.Join(errs...)
}

// DeleteJob implements Persister.
func (m MultiPersister) DeleteJob(ctx context.Context, jobID string) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.DeleteJob(ctx, jobID))
	}
	return errors.Join(errs...)
}

// RecordFromJob maps a job onto the worker record shape.
func RecordFromJob(job domain.Job) worker.JobRecord {
	text := MergedText(job.Segments)
	displayName := job.DisplayName
	if displayName == "" {
		displayName = job.Filename
	}
	mediaPath := job.MediaPath
	if mediaPath == "" {
		mediaPath = job.AudioFile.Path
	}
	return worker.JobRecord{
		JobID:       job.ID,
		Filename:    job.Filename,
		DisplayName: displayName,
		MediaPath:   mediaPath,
		MediaKind:   string(job.MediaKind),
		Status:      string(job.Status),
		Language:    job.Language,
		TranscriptJSON: &domain.TranscriptResult{
			JobID:    job.ID,
			Text:     text,
			Segments: append([]domain.Segment{}, job.Segments...),
		},
		TranscriptText: text,
		SegmentCount:   len(job.Segments),
		Duration:       duration(job),
	}
}

// JobFromRecord rebuilds a job from a worker record.
func JobFromRecord(rec worker.JobRecord) domain.Job {
	job := domain.Job{
		ID:          rec.JobID,
		Filename:    rec.Filename,
		DisplayName: rec.DisplayName,
		Status:      domain.JobStatus(rec.Status),
		Language:    rec.Language,
		MediaPath:   rec.MediaPath,
		MediaKind:   domain.MediaKind(rec.MediaKind),
		AudioFile:   domain.AudioFile{Name: rec.Filename, Path: rec.MediaPath},
	}
	if t, err := time.Parse(time.RFC3339, rec.UpdatedAt); err == nil {
		job.StartTime = t
	}
	if rec.TranscriptJSON != nil {
		job.Segments = append([]domain.Segment(nil), rec.TranscriptJSON.Segments...)
		result := *rec.TranscriptJSON
		job.Result = &result
	}
	return job
}

// duration is the transcript length in seconds.
func duration(job domain.Job) float64 {
	if job.Result != nil && job.Result.Duration > 0 {
		return job.Result.Duration
	}
	var end float64
	for _, s := range job.Segments {
		if s.End > end {
			end = s.End
		}
	}
	return end
}
