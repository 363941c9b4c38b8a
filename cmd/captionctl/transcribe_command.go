package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"captiondesk/internal/bootstrap"
	"captiondesk/internal/domain"
	"captiondesk/internal/worker"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var exportFormat string
	cmd := &cobra.Command{
		Use:   "transcribe <media-file>",
		Short: "Transcribe a local media file and wait for the captions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseExportFormat(exportFormat, true)
			if err != nil {
				return err
			}
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			if _, err := svc.Media.AddPath(cmd.Context(), args[0]); err != nil {
				return err
			}

			job, err := transcribe(cmd, svc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d captions (%s)\n", job.ID, len(job.Segments), languageOrUnknown(job.Language))

			if format == "" {
				return nil
			}
			path, err := svc.Exporter.Export(cmd.Context(), job, format, job.Language)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&exportFormat, "export", "e", "", "Export the result as srt or txt")
	return cmd
}

// transcribe submits the selected media and follows the job to its end.
// Model download progress is shown while the gate runs.
func transcribe(cmd *cobra.Command, svc *bootstrap.Services) (domain.Job, error) {
	wake := watchBus(svc.Bus)

	type submitted struct {
		job domain.Job
		err error
	}
	result := make(chan submitted, 1)
	go func() {
		job, err := svc.Transcriber.GenerateCaptions(cmd.Context())
		result <- submitted{job, err}
		wake.poke()
	}()

	var sub submitted
	err := followModel(cmd.Context(), wake, svc, cmd, func() bool {
		select {
		case sub = <-result:
			return true
		default:
			return false
		}
	})
	if err != nil {
		return domain.Job{}, err
	}
	if sub.err != nil {
		return domain.Job{}, sub.err
	}

	job, err := followJob(cmd, svc, wake, sub.job.ID)
	if errors.Is(err, context.Canceled) {
		_ = svc.Transcriber.CancelTranscription()
		svc.Transcriber.Wait()
	}
	return job, err
}

func followJob(cmd *cobra.Command, svc *bootstrap.Services, wake *wakeup, jobID string) (domain.Job, error) {
	progress := newReporter(cmd.ErrOrStderr(), "Transcribing")
	defer progress.finish()

	var job domain.Job
	err := wake.until(cmd.Context(), func() bool {
		current, ok := svc.Jobs.Get(jobID)
		if !ok {
			return true
		}
		job = current
		progress.update(job.Progress, job.Message)
		return !job.Status.IsActive()
	})
	if err != nil {
		return job, err
	}
	if job.ID == "" {
		return job, fmt.Errorf("job %s disappeared", jobID)
	}
	if job.Status == domain.JobStatusFailed {
		msg := strings.TrimSpace(job.Error)
		if msg == "" {
			msg = job.Message
		}
		return job, fmt.Errorf("transcription failed: %s", msg)
	}
	return job, nil
}

// parseExportFormat accepts srt and txt. Empty is allowed when optional.
func parseExportFormat(raw string, optional bool) (worker.ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		if optional {
			return "", nil
		}
		return worker.ExportSRT, nil
	case "srt":
		return worker.ExportSRT, nil
	case "txt", "text", "transcript":
		return worker.ExportTranscript, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want srt or txt)", raw)
	}
}

func languageOrUnknown(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return "language unknown"
	}
	return lang
}
