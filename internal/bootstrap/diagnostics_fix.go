package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"captiondesk/internal/config"
	"captiondesk/internal/domain"
)

// ErrNotFixable is returned for diagnostic items without a remediation.
var ErrNotFixable = errors.New("diagnostic item cannot be fixed automatically")

// FixDiagnostic applies the remediation for one failed diagnostic item and
// returns a fresh report. Directory items are created, falling back to the
// default location when the configured one cannot be used. The model item
// downloads the speech model through the readiness gate.
func (s *Services) FixDiagnostic(ctx context.Context, itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings := s.CurrentSettings()
	changed := false
	var fixErr error

	switch id {
	case "download_dir":
		settings.DownloadDir, changed, fixErr = fixDirectory(settings.DownloadDir, config.DefaultSettings().DownloadDir, os.MkdirAll)
	case "export_dir":
		settings.ExportDir, changed, fixErr = fixDirectory(settings.ExportDir, config.DefaultSettings().ExportDir, os.MkdirAll)
	case "model":
		if !s.Model.EnsureReady(ctx) {
			fixErr = fmt.Errorf("speech model is not ready")
		}
	case "worker":
		fixErr = ErrNotFixable
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if changed {
		if _, err := s.SaveSettings(settings); err != nil {
			return s.Diagnostics(ctx), fmt.Errorf("save settings after fix: %w", err)
		}
		s.Log.Info().Str("item", id).Msg("diagnostic directory reset")
	}

	report := s.Diagnostics(ctx)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

// fixDirectory makes dir usable. An empty or uncreatable dir is replaced by
// fallback; the returned bool reports whether the value changed.
func fixDirectory(dir, fallback string, mkdirAll func(string, os.FileMode) error) (string, bool, error) {
	dir = strings.TrimSpace(dir)
	if dir != "" {
		if err := mkdirAll(dir, 0o755); err == nil {
			return dir, false, nil
		} else if dir == fallback {
			return dir, false, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	if err := mkdirAll(fallback, 0o755); err != nil {
		return dir, false, fmt.Errorf("create directory %s: %w", fallback, err)
	}
	return fallback, true, nil
}
