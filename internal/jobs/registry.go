package jobs

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"captiondesk/internal/domain"
	"captiondesk/internal/events"
)

// ErrJobAlreadyRunning is returned when starting a second active transcription.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when cancel is requested for idle state.
var ErrNoRunningJob = errors.New("no running job")

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// ErrSegmentNotFound is returned for unknown segment ids.
var ErrSegmentNotFound = errors.New("segment not found")

// ErrDuplicateSegment is returned when a segment id is already taken.
var ErrDuplicateSegment = errors.New("duplicate segment id")

// ErrInvalidTiming is returned when a segment would end before it starts.
var ErrInvalidTiming = errors.New("invalid segment timing")

// Update is a partial change to a job merged from a poll response.
type Update struct {
	Status        domain.Opt[domain.JobStatus]
	Progress      domain.Opt[*int]
	Message       domain.Opt[string]
	Error         domain.Opt[string]
	Language      domain.Opt[string]
	Result        domain.Opt[*domain.TranscriptResult]
	PartialResult domain.Opt[*domain.TranscriptResult]
}

// Registry owns the in-memory table of transcription jobs. It is the
// source of truth for the session; persistence is advisory.
type Registry struct {
	mu       sync.RWMutex
	jobs     map[string]*domain.Job
	order    []string
	selected string

	writer *writer
	bus    *events.Bus
	log    zerolog.Logger
}

// NewRegistry creates an empty registry. persist and bus may be nil.
func NewRegistry(persist Persister, bus *events.Bus, logger zerolog.Logger) *Registry {
	return &Registry{
		jobs:   make(map[string]*domain.Job),
		writer: newWriter(persist, logger),
		bus:    bus,
		log:    logger,
	}
}

// Close drains pending persistence writes.
func (r *Registry) Close() {
	r.writer.close()
}

// AddJob inserts or replaces a job.
func (r *Registry) AddJob(job domain.Job) (<-chan error, error) {
	if strings.TrimSpace(job.ID) == "" {
		return nil, fmt.Errorf("add job: id is required")
	}
	if err := checkSegmentIDs(job.Segments); err != nil {
		return nil, fmt.Errorf("add job %s: %w", job.ID, err)
	}
	if job.StartTime.IsZero() {
		job.StartTime = time.Now().UTC()
	}

	r.mu.Lock()
	if _, exists := r.jobs[job.ID]; !exists {
		r.order = append(r.order, job.ID)
	}
	stored := cloneJob(job)
	r.jobs[job.ID] = &stored
	snapshot := cloneJob(stored)
	r.mu.Unlock()

	r.publish(snapshot, "added")
	return r.writer.save(snapshot), nil
}

// Hydrate loads jobs from a previous session without writing them back.
// Jobs already present are left untouched.
func (r *Registry) Hydrate(jobs []domain.Job) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, job := range jobs {
		if job.ID == "" {
			continue
		}
		if _, exists := r.jobs[job.ID]; exists {
			continue
		}
		stored := cloneJob(job)
		r.jobs[job.ID] = &stored
		r.order = append(r.order, job.ID)
		added++
	}
	return added
}

// SelectJob marks jobID as the job being edited. An empty id clears it.
func (r *Registry) SelectJob(jobID string) error {
	r.mu.Lock()
	if jobID != "" {
		if _, ok := r.jobs[jobID]; !ok {
			r.mu.Unlock()
			return fmt.Errorf("select %s: %w", jobID, ErrJobNotFound)
		}
	}
	r.selected = jobID
	r.mu.Unlock()

	r.bus.Publish(events.Event{Topic: events.TopicJob, JobID: jobID, Message: "selected"})
	return nil
}

// Selected returns the selected job, if any.
func (r *Registry) Selected() (domain.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[r.selected]
	if !ok {
		return domain.Job{}, false
	}
	return cloneJob(*job), true
}

// Get returns a copy of one job.
func (r *Registry) Get(jobID string) (domain.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return cloneJob(*job), true
}

// List returns copies of all jobs in insertion order.
func (r *Registry) List() []domain.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Job, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneJob(*r.jobs[id]))
	}
	return out
}

// Active returns the job currently queued or processing, if any.
func (r *Registry) Active() (domain.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if job := r.jobs[id]; job.Status.IsActive() {
			return cloneJob(*job), true
		}
	}
	return domain.Job{}, false
}

// RemoveJob deletes the local entry and requests deletion of its record.
func (r *Registry) RemoveJob(jobID string) (<-chan error, error) {
	r.mu.Lock()
	if _, ok := r.jobs[jobID]; !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("remove %s: %w", jobID, ErrJobNotFound)
	}
	delete(r.jobs, jobID)
	for i, id := range r.order {
		if id == jobID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.selected == jobID {
		r.selected = ""
	}
	r.mu.Unlock()

	r.bus.Publish(events.Event{Topic: events.TopicJob, JobID: jobID, Message: "removed"})
	return r.writer.remove(jobID), nil
}

// SetJobSegments replaces the segment sequence of a job.
func (r *Registry) SetJobSegments(jobID string, segments []domain.Segment) (<-chan error, error) {
	if err := checkSegmentIDs(segments); err != nil {
		return nil, fmt.Errorf("set segments of %s: %w", jobID, err)
	}
	return r.mutate(jobID, "segments", func(job *domain.Job) error {
		job.Segments = append([]domain.Segment(nil), segments...)
		return nil
	})
}

// AddSegment appends seg to a job. A zero id is replaced by the next free
// one. The sequence is not re-sorted.
func (r *Registry) AddSegment(jobID string, seg domain.Segment) (domain.Segment, <-chan error, error) {
	if seg.End < seg.Start || seg.Start < 0 {
		return domain.Segment{}, nil, ErrInvalidTiming
	}
	var added domain.Segment
	done, err := r.mutate(jobID, "segment added", func(job *domain.Job) error {
		if seg.ID == 0 {
			seg.ID = nextSegmentID(job.Segments)
		} else if indexOfSegment(job.Segments, seg.ID) >= 0 {
			return ErrDuplicateSegment
		}
		job.Segments = append(job.Segments, seg)
		added = seg
		return nil
	})
	return added, done, err
}

// EditSegment replaces the text of one segment.
func (r *Registry) EditSegment(jobID string, segmentID int, text string) (<-chan error, error) {
	return r.mutate(jobID, "segment edited", func(job *domain.Job) error {
		i := indexOfSegment(job.Segments, segmentID)
		if i < 0 {
			return ErrSegmentNotFound
		}
		job.Segments[i].Text = text
		return nil
	})
}

// RetimeSegment moves one segment to [start, end].
func (r *Registry) RetimeSegment(jobID string, segmentID int, start, end float64) (<-chan error, error) {
	if end < start || start < 0 {
		return nil, ErrInvalidTiming
	}
	return r.mutate(jobID, "segment retimed", func(job *domain.Job) error {
		i := indexOfSegment(job.Segments, segmentID)
		if i < 0 {
			return ErrSegmentNotFound
		}
		job.Segments[i].Start = start
		job.Segments[i].End = end
		return nil
	})
}

// DeleteSegment removes one segment.
func (r *Registry) DeleteSegment(jobID string, segmentID int) (<-chan error, error) {
	return r.mutate(jobID, "segment deleted", func(job *domain.Job) error {
		i := indexOfSegment(job.Segments, segmentID)
		if i < 0 {
			return ErrSegmentNotFound
		}
		job.Segments = append(job.Segments[:i], job.Segments[i+1:]...)
		return nil
	})
}

// ApplyPoll merges a poll response into a job. The record is persisted
// when the status changes or a final result arrives.
func (r *Registry) ApplyPoll(jobID string, u Update) (domain.Job, error) {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return domain.Job{}, fmt.Errorf("apply poll to %s: %w", jobID, ErrJobNotFound)
	}

	prevStatus := job.Status
	u.Status.Apply(&job.Status)
	u.Progress.Apply(&job.Progress)
	u.Message.Apply(&job.Message)
	u.Error.Apply(&job.Error)
	u.Language.Apply(&job.Language)
	u.PartialResult.Apply(&job.PartialResult)
	if result, set := u.Result.Get(); set {
		job.Result = result
		if result != nil {
			job.Segments = append([]domain.Segment(nil), result.Segments...)
			if result.Language != "" {
				job.Language = result.Language
			}
		}
	}
	if job.Status != prevStatus && !job.Status.IsActive() && job.CompletedAt == nil {
		now := time.Now().UTC()
		job.CompletedAt = &now
	}
	snapshot := cloneJob(*job)
	r.mu.Unlock()

	r.publish(snapshot, "updated")
	if snapshot.Status != prevStatus || u.Result.IsSet() {
		r.writer.save(snapshot)
	}
	return snapshot, nil
}

// mutate applies fn to one job and persists the result.
func (r *Registry) mutate(jobID, what string, fn func(*domain.Job) error) (<-chan error, error) {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s: %s: %w", what, jobID, ErrJobNotFound)
	}
	if err := fn(job); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s: %s: %w", what, jobID, err)
	}
	if job.Result != nil {
		// earlier snapshots share the old result, so it is replaced rather than edited
		result := *job.Result
		result.Segments = append([]domain.Segment(nil), job.Segments...)
		result.Text = MergedText(job.Segments)
		job.Result = &result
	}
	snapshot := cloneJob(*job)
	r.mu.Unlock()

	r.publish(snapshot, what)
	return r.writer.save(snapshot), nil
}

// publish emits a job change for view subscribers.
func (r *Registry) publish(job domain.Job, message string) {
	r.bus.Publish(events.Event{
		Topic:   events.TopicJob,
		JobID:   job.ID,
		Message: message,
		Payload: job,
	})
}

// MergedText joins segment texts into the plain transcript.
func MergedText(segments []domain.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// checkSegmentIDs rejects sequences with repeated ids.
func checkSegmentIDs(segments []domain.Segment) error {
	seen := make(map[int]struct{}, len(segments))
	for _, s := range segments {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateSegment, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// nextSegmentID returns one past the largest id in use.
func nextSegmentID(segments []domain.Segment) int {
	next := 1
	for _, s := range segments {
		if s.ID >= next {
			next = s.ID + 1
		}
	}
	return next
}

// indexOfSegment finds a segment by id.
func indexOfSegment(segments []domain.Segment, id int) int {
	for i, s := range segments {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// cloneJob copies a job so callers never share slices with the registry.
func cloneJob(job domain.Job) domain.Job {
	job.Segments = append([]domain.Segment(nil), job.Segments...)
	if job.Progress != nil {
		p := *job.Progress
		job.Progress = &p
	}
	return job
}
