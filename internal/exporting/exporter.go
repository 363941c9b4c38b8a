// Package exporting renders a job's captions through the worker and saves
// them via the host bridge.
package exporting

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"captiondesk/internal/domain"
	"captiondesk/internal/events"
	"captiondesk/internal/hostbridge"
	"captiondesk/internal/worker"
)

const (
	msgNothingToExport = "Please select a job with caption to continue."
	msgExportFailed    = "Export failed."
)

// ErrNothingToExport is returned when the job has no caption text.
var ErrNothingToExport = errors.New(msgNothingToExport)

// Renderer produces export content from segments.
type Renderer interface {
	Export(ctx context.Context, format worker.ExportFormat, segments []domain.Segment, language string) (string, error)
}

// Notifier shows short user-facing notices.
type Notifier interface {
	Notify(level events.Level, message string)
}

// Exporter saves transcripts and SRT files.
type Exporter struct {
	render Renderer
	bridge hostbridge.Bridge
	notify Notifier
	log    zerolog.Logger
}

// New creates an exporter. notify may be nil.
func New(render Renderer, bridge hostbridge.Bridge, notify Notifier, logger zerolog.Logger) *Exporter {
	return &Exporter{
		render: render,
		bridge: bridge,
		notify: notify,
		log:    logger.With().Str("component", "export").Logger(),
	}
}

// Export renders job in format and saves it. It returns the saved path, or
// "" when the user dismissed the save dialog.
func (e *Exporter) Export(ctx context.Context, job domain.Job, format worker.ExportFormat, language string) (string, error) {
	if len(job.Segments) == 0 {
		e.say(events.LevelInfo, msgNothingToExport)
		return "", ErrNothingToExport
	}

	content, err := e.render.Export(ctx, format, job.Segments, language)
	if err != nil {
		e.log.Warn().Err(err).Str("job", job.ID).Str("format", string(format)).Msg("render export")
		return "", e.fail(err)
	}
	if strings.TrimSpace(content) == "" {
		e.say(events.LevelInfo, msgNothingToExport)
		return "", ErrNothingToExport
	}

	name := FileName(job, format)
	path, err := e.bridge.SaveTextFile(ctx, name, content)
	if errors.Is(err, hostbridge.ErrCancelled) {
		return "", nil
	}
	if err != nil {
		e.log.Warn().Err(err).Str("file", name).Msg("save export")
		return "", e.fail(err)
	}

	e.log.Info().Str("job", job.ID).Str("path", path).Msg("export saved")
	return path, nil
}

// FileName derives the suggested file name of an export.
func FileName(job domain.Job, format worker.ExportFormat) string {
	base := strings.TrimSpace(job.DisplayName)
	if base == "" {
		base = strings.TrimSpace(job.Filename)
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))

	if format == worker.ExportSRT {
		if base == "" {
			base = "captions"
		}
		return base + ".srt"
	}
	if base == "" {
		base = "transcript"
	}
	return base + ".txt"
}

// fail shows the worker message, or a generic one, and wraps err.
func (e *Exporter) fail(err error) error {
	msg := msgExportFailed
	var apiErr *worker.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		msg = apiErr.Message
	}
	e.say(events.LevelError, msg)
	return fmt.Errorf("export: %w", err)
}

func (e *Exporter) say(level events.Level, msg string) {
	if e.notify != nil {
		e.notify.Notify(level, msg)
	}
}
