package diagnostics

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"captiondesk/internal/domain"
	"captiondesk/internal/worker"
)

// ModelProber reports speech model readiness from the worker.
type ModelProber interface {
	ModelStatus(ctx context.Context) (worker.ModelStatus, error)
}

// Checker validates worker reachability and required filesystem paths.
type Checker struct {
	probe      ModelProber
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(probe ModelProber) *Checker {
	return &Checker{
		probe:      probe,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	items := c.checkWorker(ctx)
	items = append(items,
		c.checkWritableDir("download_dir", "Download directory", settings.DownloadDir),
		c.checkWritableDir("export_dir", "Export directory", settings.ExportDir),
	)

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkWorker verifies the worker answers and reports the model state. A
// missing model passes because it is downloaded before the first job.
func (c *Checker) checkWorker(ctx context.Context) []domain.DiagnosticItem {
	reach := domain.DiagnosticItem{ID: "worker", Name: "Transcription worker"}
	model := domain.DiagnosticItem{ID: "model", Name: "Speech model"}

	status, err := c.probe.ModelStatus(ctx)
	if err != nil {
		reach.Status = domain.DiagnosticStatusFail
		reach.Message = fmt.Sprintf("Worker is not reachable: %v", err)
		reach.Hint = "Start the local worker or check worker.url in config.toml."
		model.Status = domain.DiagnosticStatusFail
		model.Message = "Model status unknown while the worker is unreachable."
		return []domain.DiagnosticItem{reach, model}
	}

	reach.Status = domain.DiagnosticStatusPass
	reach.Message = "Worker is reachable."
	model.Status = domain.DiagnosticStatusPass
	if status.Ready {
		model.Message = fmt.Sprintf("Model found: %s", status.ExpectedPath)
	} else {
		model.Message = "Model is not downloaded yet."
		model.Hint = "It will be downloaded before the first transcription."
	}
	return []domain.DiagnosticItem{reach, model}
}

// checkWritableDir validates directory existence and write access.
func (c *Checker) checkWritableDir(id, name, dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   id,
		Name: name,
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = name + " is empty."
		item.Hint = "Set a directory in settings."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Directory is not writable: %s", dir)
		item.Hint = "Choose a writable directory."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	probe ModelProber,
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		probe:      probe,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
