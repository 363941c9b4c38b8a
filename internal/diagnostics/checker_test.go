package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captiondesk/internal/domain"
	"captiondesk/internal/worker"
)

type stubProbe struct {
	status worker.ModelStatus
	err    error
}

func (p stubProbe) ModelStatus(context.Context) (worker.ModelStatus, error) {
	return p.status, p.err
}

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	root := t.TempDir()
	checker := NewCheckerForTests(
		stubProbe{status: worker.ModelStatus{Ready: true, ExpectedPath: "/models/whisper.bin"}},
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(context.Background(), domain.Settings{
		DownloadDir: filepath.Join(root, "downloads"),
		ExportDir:   filepath.Join(root, "exports"),
		Language:    "auto",
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	if len(report.Items) != 4 {
		t.Fatalf("items = %d, want 4", len(report.Items))
	}
	entries, err := os.ReadDir(filepath.Join(root, "exports"))
	if err != nil {
		t.Fatalf("read export dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("write check left files behind: %v", entries)
	}
}

// TestCheckerRunWorkerDownAndEmptyDirs validates failure reporting.
func TestCheckerRunWorkerDownAndEmptyDirs(t *testing.T) {
	checker := NewCheckerForTests(
		stubProbe{err: errors.New("connection refused")},
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(context.Background(), domain.Settings{})
	if !report.HasFailures {
		t.Fatal("expected failures")
	}

	assertStatusByID(t, report, "worker", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "model", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "download_dir", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "export_dir", domain.DiagnosticStatusFail)
}

// TestCheckerRunMissingModelPasses validates that a missing model is not fatal.
func TestCheckerRunMissingModelPasses(t *testing.T) {
	root := t.TempDir()
	checker := NewCheckerForTests(stubProbe{}, os.MkdirAll, os.CreateTemp, os.Remove)

	report := checker.Run(context.Background(), domain.Settings{
		DownloadDir: root,
		ExportDir:   root,
	})

	assertStatusByID(t, report, "model", domain.DiagnosticStatusPass)
	for _, item := range report.Items {
		if item.ID == "model" && !strings.Contains(item.Message, "not downloaded") {
			t.Fatalf("model message = %q", item.Message)
		}
	}
}

// TestCheckerRunUnwritableDir validates write-check failures.
func TestCheckerRunUnwritableDir(t *testing.T) {
	checker := NewCheckerForTests(
		stubProbe{status: worker.ModelStatus{Ready: true}},
		func(string, os.FileMode) error { return nil },
		func(string, string) (*os.File, error) { return nil, os.ErrPermission },
		os.Remove,
	)

	report := checker.Run(context.Background(), domain.Settings{DownloadDir: "/ro", ExportDir: "/ro"})
	assertStatusByID(t, report, "download_dir", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "worker", domain.DiagnosticStatusPass)
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			if item.Status != want {
				t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
			}
			return
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
}
