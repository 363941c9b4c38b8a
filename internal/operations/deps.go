package operations

import (
	"context"

	"captiondesk/internal/domain"
	"captiondesk/internal/events"
	"captiondesk/internal/worker"
)

// ImportAPI is the worker triad of one import kind.
type ImportAPI interface {
	Start(ctx context.Context, rawURL, downloadDir string) (worker.ImportStatus, error)
	Get(ctx context.Context, id string) (worker.ImportStatus, error)
	Cancel(ctx context.Context, id string) (worker.ImportStatus, error)
}

// ModelAPI is the worker surface of the model readiness gate.
type ModelAPI interface {
	ModelStatus(ctx context.Context) (worker.ModelStatus, error)
	StartModelDownload(ctx context.Context) (worker.ModelDownload, error)
	ModelDownload(ctx context.Context, id string) (worker.ModelDownload, error)
}

// TranscribeAPI is the worker surface of transcription jobs.
type TranscribeAPI interface {
	Transcribe(ctx context.Context, req worker.TranscribeRequest) (worker.TranscribeResponse, error)
	PollJob(ctx context.Context, jobID string) (worker.JobPoll, error)
	CancelJob(ctx context.Context, jobID string) error
}

// Ingestor adds produced media to the local library.
type Ingestor interface {
	Add(ctx context.Context, item domain.MediaItem) (domain.MediaItem, error)
}

// MediaSource exposes the media item the user is working on.
type MediaSource interface {
	Selected() (domain.MediaItem, bool)
}

// Layout is the host window layout.
type Layout interface {
	IsCompact() bool
	RevealMediaPanel()
}

// Notifier shows short user-facing notices.
type Notifier interface {
	Notify(level events.Level, message string)
}

// Readiness gates work that needs the speech model.
type Readiness interface {
	EnsureReady(ctx context.Context) bool
}

// StaticLayout is a Layout with a fixed compact flag and no panel.
type StaticLayout struct {
	Compact bool
}

// IsCompact implements Layout.
func (l StaticLayout) IsCompact() bool { return l.Compact }

// RevealMediaPanel implements Layout.
func (StaticLayout) RevealMediaPanel() {}
