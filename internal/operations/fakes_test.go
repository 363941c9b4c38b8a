package operations

import (
	"context"
	"errors"
	"sync"

	"captiondesk/internal/domain"
	"captiondesk/internal/events"
	"captiondesk/internal/worker"
)

func fptr(v float64) *float64 { return &v }

// fakeImports scripts the start/poll/cancel triad of one import kind.
type fakeImports struct {
	mu        sync.Mutex
	start     worker.ImportStatus
	startErr  error
	polls     []worker.ImportStatus
	pollErr   error
	gate      chan struct{}
	startURL  string
	startDir  string
	starts    int
	gets      int
	cancelled []string
}

func (f *fakeImports) Start(_ context.Context, rawURL, downloadDir string) (worker.ImportStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.startURL = rawURL
	f.startDir = downloadDir
	return f.start, f.startErr
}

func (f *fakeImports) Get(_ context.Context, _ string) (worker.ImportStatus, error) {
	f.mu.Lock()
	f.gets++
	n := f.gets
	gate := f.gate
	f.mu.Unlock()

	// a gated fetch ignores ctx to model a response arriving after cancel
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return worker.ImportStatus{}, f.pollErr
	}
	if len(f.polls) == 0 {
		return worker.ImportStatus{Status: "processing"}, nil
	}
	if n > len(f.polls) {
		n = len(f.polls)
	}
	return f.polls[n-1], nil
}

func (f *fakeImports) Cancel(_ context.Context, id string) (worker.ImportStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return worker.ImportStatus{Status: "cancelled"}, errors.New("worker gone")
}

func (f *fakeImports) counts() (starts, gets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.gets
}

func (f *fakeImports) cancelledIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

// fakeIngest records ingested media.
type fakeIngest struct {
	mu    sync.Mutex
	items []domain.MediaItem
	err   error
}

func (f *fakeIngest) Add(_ context.Context, item domain.MediaItem) (domain.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.MediaItem{}, f.err
	}
	item.ID = "m1"
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeIngest) all() []domain.MediaItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.MediaItem(nil), f.items...)
}

// fakeLayout records panel reveal requests.
type fakeLayout struct {
	mu       sync.Mutex
	compact  bool
	revealed int
}

func (l *fakeLayout) IsCompact() bool { return l.compact }

func (l *fakeLayout) RevealMediaPanel() {
	l.mu.Lock()
	l.revealed++
	l.mu.Unlock()
}

// notices records user-facing notices.
type notices struct {
	mu   sync.Mutex
	list []string
}

func (n *notices) Notify(level events.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, string(level)+": "+message)
}

func (n *notices) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.list...)
}

// fakeMedia is a fixed media selection.
type fakeMedia struct {
	item *domain.MediaItem
}

func (m fakeMedia) Selected() (domain.MediaItem, bool) {
	if m.item == nil {
		return domain.MediaItem{}, false
	}
	return *m.item, true
}

// fixedGate is a Readiness with a canned answer.
type fixedGate struct {
	ready bool
	calls int
}

func (g *fixedGate) EnsureReady(context.Context) bool {
	g.calls++
	return g.ready
}
