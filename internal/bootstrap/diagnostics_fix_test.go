package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestFixDirectoryKeepsCreatableDir ensures a usable directory is kept as is.
func TestFixDirectoryKeepsCreatableDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "exports")

	got, changed, err := fixDirectory(target, "/unused", os.MkdirAll)
	if err != nil {
		t.Fatalf("fixDirectory: %v", err)
	}
	if changed || got != target {
		t.Fatalf("fixDirectory = %q (changed %v), want %q unchanged", got, changed, target)
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		t.Fatalf("expected %s to be created", target)
	}
}

// TestFixDirectoryFallsBackToDefault ensures empty and broken paths reset to the fallback.
func TestFixDirectoryFallsBackToDefault(t *testing.T) {
	fallback := filepath.Join(t.TempDir(), "default")
	broken := errors.New("read-only")
	mkdir := func(path string, perm os.FileMode) error {
		if path == "/locked" {
			return broken
		}
		return os.MkdirAll(path, perm)
	}

	for _, dir := range []string{"", "  ", "/locked"} {
		got, changed, err := fixDirectory(dir, fallback, mkdir)
		if err != nil {
			t.Fatalf("fixDirectory(%q): %v", dir, err)
		}
		if !changed || got != fallback {
			t.Fatalf("fixDirectory(%q) = %q (changed %v), want fallback", dir, got, changed)
		}
	}
}

// TestFixDirectoryReportsBrokenFallback ensures the error surfaces when nothing is writable.
func TestFixDirectoryReportsBrokenFallback(t *testing.T) {
	mkdir := func(string, os.FileMode) error { return errors.New("denied") }

	if _, _, err := fixDirectory("/a", "/b", mkdir); err == nil {
		t.Fatal("expected error when fallback cannot be created")
	}
	if _, changed, err := fixDirectory("/b", "/b", mkdir); err == nil || changed {
		t.Fatalf("expected unchanged error for broken fallback, got changed=%v err=%v", changed, err)
	}
}

// TestFixDiagnosticCreatesExportDir ensures the configured export directory is created.
func TestFixDiagnosticCreatesExportDir(t *testing.T) {
	svc := buildServices(t, t.TempDir(), nil)
	exportDir := filepath.Join(t.TempDir(), "captions")

	settings := svc.CurrentSettings()
	settings.ExportDir = exportDir
	if _, err := svc.SaveSettings(settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	report, err := svc.FixDiagnostic(context.Background(), "export_dir")
	if err != nil {
		t.Fatalf("FixDiagnostic: %v", err)
	}
	if len(report.Items) == 0 {
		t.Fatal("expected a refreshed report")
	}
	if info, err := os.Stat(exportDir); err != nil || !info.IsDir() {
		t.Fatalf("expected %s to exist", exportDir)
	}
	if got := svc.CurrentSettings().ExportDir; got != exportDir {
		t.Fatalf("ExportDir = %q, want %q", got, exportDir)
	}
	for _, item := range report.Items {
		if item.ID == "export_dir" && item.Status != "pass" {
			t.Fatalf("export_dir status = %s, want pass", item.Status)
		}
	}
}

// TestFixDiagnosticRejectsUnknownItems ensures unsupported ids and the worker item error out.
func TestFixDiagnosticRejectsUnknownItems(t *testing.T) {
	svc := buildServices(t, t.TempDir(), nil)

	if _, err := svc.FixDiagnostic(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty id")
	}
	if _, err := svc.FixDiagnostic(context.Background(), "tool_ffmpeg"); err == nil {
		t.Fatal("expected error for unsupported id")
	}
	if _, err := svc.FixDiagnostic(context.Background(), "worker"); !errors.Is(err, ErrNotFixable) {
		t.Fatalf("worker fix error = %v, want ErrNotFixable", err)
	}
}
