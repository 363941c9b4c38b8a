package operations

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"captiondesk/internal/captions"
	"captiondesk/internal/domain"
	"captiondesk/internal/events"
	"captiondesk/internal/hostbridge"
	"captiondesk/internal/jobs"
)

const (
	msgNotSRT            = "Please select a .srt file."
	msgNoCaptionsInFile  = "No captions found in the SRT file."
	msgSRTLoadFailed     = "Failed to load SRT."
	msgSRTOpenFailed     = "Failed to open SRT file."
	msgSRTLoaded         = "SRT loaded into captions."
	msgCaptionsLoaded    = "Captions loaded"
	msgNoCaptionsToClear = "No captions to clear."
	msgSelectMediaFirst  = "Please select a job to continue"
)

// CaptionPicker lets the user choose a caption file.
type CaptionPicker interface {
	OpenCaptionFile(ctx context.Context) (string, error)
}

// CaptionImporter loads SRT captions into the job being edited, creating a
// job when nothing is selected.
type CaptionImporter struct {
	registry *jobs.Registry
	media    MediaSource
	picker   CaptionPicker
	notify   Notifier
	log      zerolog.Logger
}

// NewCaptionImporter wires a caption importer. picker and notify may be nil.
func NewCaptionImporter(registry *jobs.Registry, media MediaSource, picker CaptionPicker, notify Notifier, logger zerolog.Logger) *CaptionImporter {
	return &CaptionImporter{
		registry: registry,
		media:    media,
		picker:   picker,
		notify:   notify,
		log:      logger.With().Str("component", "captions").Logger(),
	}
}

// ImportFromDialog asks the host for a caption file and imports it. A
// dismissed dialog is not an error.
func (c *CaptionImporter) ImportFromDialog(ctx context.Context) (domain.Job, error) {
	if _, ok := c.media.Selected(); !ok {
		c.say(events.LevelInfo, msgSelectMediaFirst)
		return domain.Job{}, ErrNoMedia
	}
	if c.picker == nil {
		return domain.Job{}, c.fail(KindStart, msgSRTOpenFailed, hostbridge.ErrUnavailable)
	}

	path, err := c.picker.OpenCaptionFile(ctx)
	if errors.Is(err, hostbridge.ErrCancelled) {
		return domain.Job{}, nil
	}
	if err != nil {
		return domain.Job{}, c.fail(KindStart, msgSRTOpenFailed, err)
	}
	return c.ImportFile(path)
}

// ImportFile parses the SRT at path into the selected job.
func (c *CaptionImporter) ImportFile(path string) (domain.Job, error) {
	if !captions.IsSRT(path) {
		return domain.Job{}, c.fail(KindValidation, msgNotSRT, nil)
	}
	segments, err := captions.ParseFile(path)
	if err != nil {
		return domain.Job{}, c.fail(KindTerminal, msgSRTLoadFailed, err)
	}
	if len(segments) == 0 {
		return domain.Job{}, c.fail(KindValidation, msgNoCaptionsInFile, nil)
	}

	jobID, err := c.targetJob(path)
	if err != nil {
		return domain.Job{}, c.fail(KindTerminal, msgSRTLoadFailed, err)
	}
	if lang := captions.LanguageCode(segments); lang != "" {
		if _, err := c.registry.ApplyPoll(jobID, jobs.Update{Language: domain.Set(lang)}); err != nil {
			return domain.Job{}, c.fail(KindTerminal, msgSRTLoadFailed, err)
		}
	}
	if _, err := c.registry.SetJobSegments(jobID, segments); err != nil {
		return domain.Job{}, c.fail(KindTerminal, msgSRTLoadFailed, err)
	}
	if err := c.registry.SelectJob(jobID); err != nil {
		return domain.Job{}, c.fail(KindTerminal, msgSRTLoadFailed, err)
	}

	job, _ := c.registry.Get(jobID)
	c.log.Info().Str("job", jobID).Int("segments", len(segments)).Str("language", job.Language).Msg("captions imported")
	c.say(events.LevelSuccess, msgSRTLoaded)
	return job, nil
}

// Clear empties the captions of the selected job and marks it imported.
func (c *CaptionImporter) Clear() error {
	job, ok := c.registry.Selected()
	if !ok {
		c.say(events.LevelInfo, msgNoCaptionsToClear)
		return ErrNoCaptions
	}
	if _, err := c.registry.SetJobSegments(job.ID, nil); err != nil {
		return err
	}
	_, err := c.registry.ApplyPoll(job.ID, jobs.Update{Status: domain.Set(domain.JobStatusImported)})
	return err
}

// targetJob returns the selected job or creates one for the captions.
func (c *CaptionImporter) targetJob(path string) (string, error) {
	if job, ok := c.registry.Selected(); ok {
		return job.ID, nil
	}

	filename := filepath.Base(path)
	job := domain.Job{
		ID:       "srt-" + uuid.NewString(),
		Status:   domain.JobStatusCompleted,
		Message:  msgCaptionsLoaded,
		Progress: intPtr(100),
	}
	if item, ok := c.media.Selected(); ok {
		filename = item.Name
		job.MediaPath = item.Path
		job.MediaKind = item.Kind
		job.AudioFile = domain.AudioFile{Name: item.Name, Size: item.Size}
	} else {
		job.AudioFile = domain.AudioFile{Name: filename}
	}
	job.Filename = filename
	job.DisplayName = strings.TrimSuffix(filename, filepath.Ext(filename))
	if job.DisplayName == "" {
		job.DisplayName = filename
	}
	now := time.Now().UTC()
	job.StartTime = now
	job.CompletedAt = &now

	if _, err := c.registry.AddJob(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// fail logs err, shows msg and returns it as an OpError.
func (c *CaptionImporter) fail(kind ErrorKind, msg string, err error) error {
	if err != nil {
		c.log.Warn().Err(err).Msg(msg)
	}
	c.say(events.LevelError, msg)
	return newOpError(kind, msg, err)
}

func (c *CaptionImporter) say(level events.Level, msg string) {
	if c.notify != nil {
		c.notify.Notify(level, msg)
	}
}
