// Package poll runs cancellable status polling loops for worker tasks.
package poll

import (
	"context"
	"sync"
	"time"

	"captiondesk/internal/domain"
)

// Default intervals per operation family.
const (
	DownloadInterval = 300 * time.Millisecond
	ModelInterval    = 500 * time.Millisecond
	JobInterval      = time.Second
)

// Handlers wires one attachment to a task.
type Handlers[T any] struct {
	// Fetch queries the current status of the task.
	Fetch func(ctx context.Context, taskID string) (T, error)
	// Status classifies a fetched response.
	Status func(T) domain.TaskStatus
	// OnUpdate receives every non-terminal response in request order.
	OnUpdate func(T)
	// OnTerminal receives the final response, or the fetch error that ended
	// the loop. It runs at most once.
	OnTerminal func(T, error)
}

// Attachment is a running poll loop.
type Attachment struct {
	taskID string
	cancel context.CancelFunc
	done   chan struct{}

	// mu serializes handler delivery against Detach.
	mu        sync.Mutex
	cancelled bool
}

// Attach starts polling taskID: one immediate fetch, then one per interval.
// A fetch never starts while the previous one is outstanding, and ticks
// missed during a slow fetch collapse into one. Handlers run while the
// attachment lock is held, so they must not call Detach on their own
// attachment.
func Attach[T any](ctx context.Context, taskID string, interval time.Duration, h Handlers[T]) *Attachment {
	if interval <= 0 {
		interval = DownloadInterval
	}
	runCtx, cancel := context.WithCancel(ctx)
	a := &Attachment{
		taskID: taskID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go run(runCtx, a, interval, h)
	return a
}

// TaskID returns the polled task identifier.
func (a *Attachment) TaskID() string {
	return a.taskID
}

// Detach stops the loop. Once Detach returns no handler will run, including
// for a fetch that was in flight when it was called.
func (a *Attachment) Detach() {
	a.cancel()
	a.mu.Lock()
	a.cancelled = true
	a.mu.Unlock()
}

// Done is closed when the loop has exited.
func (a *Attachment) Done() <-chan struct{} {
	return a.done
}

// run drives sequential fetches until a terminal status or cancellation.
func run[T any](ctx context.Context, a *Attachment, interval time.Duration, h Handlers[T]) {
	defer close(a.done)
	defer a.cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !tick(ctx, a, h) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick performs one fetch and delivers it. It reports whether to continue.
func tick[T any](ctx context.Context, a *Attachment, h Handlers[T]) bool {
	resp, err := h.Fetch(ctx, a.taskID)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancelled || ctx.Err() != nil {
		return false
	}
	if err != nil {
		var zero T
		a.cancelled = true
		if h.OnTerminal != nil {
			h.OnTerminal(zero, err)
		}
		return false
	}
	if h.Status(resp).IsTerminal() {
		a.cancelled = true
		if h.OnTerminal != nil {
			h.OnTerminal(resp, nil)
		}
		return false
	}
	if h.OnUpdate != nil {
		h.OnUpdate(resp)
	}
	return true
}
