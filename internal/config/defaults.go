package config

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"captiondesk/internal/domain"
)

const (
	LanguageAuto = "auto"
	DefaultModel = "whisper"

	ChineseStyleSpoken  = "spoken"
	ChineseStyleWritten = "written"
	ChineseStyleYue     = "yue"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		Language:     LanguageAuto,
		Model:        DefaultModel,
		ChineseStyle: ChineseStyleWritten,
		DownloadDir:  filepath.Join(homeDir, "Downloads", "CaptionDesk"),
		ExportDir:    filepath.Join(homeDir, "Documents", "Captions"),
	}
}

// NormalizeSettings fills empty fields from defaults, canonicalizes the
// language tag and drops the Cantonese style when the language cannot be
// Cantonese.
func NormalizeSettings(s domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	s.Language = normalizeLanguage(s.Language)
	if strings.TrimSpace(s.Model) == "" {
		s.Model = defaults.Model
	}

	switch s.ChineseStyle {
	case ChineseStyleSpoken, ChineseStyleWritten:
	case ChineseStyleYue:
		if s.Language != LanguageAuto && s.Language != "yue" {
			s.ChineseStyle = ChineseStyleWritten
		}
	default:
		s.ChineseStyle = defaults.ChineseStyle
	}

	switch s.ChineseScript {
	case "", "traditional", "simplified":
	default:
		s.ChineseScript = ""
	}

	if strings.TrimSpace(s.DownloadDir) == "" {
		s.DownloadDir = defaults.DownloadDir
	}
	if strings.TrimSpace(s.ExportDir) == "" {
		s.ExportDir = defaults.ExportDir
	}
	return s
}

// normalizeLanguage returns "auto" for empty or unparsable values and the
// canonical BCP 47 form otherwise.
func normalizeLanguage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, LanguageAuto) {
		return LanguageAuto
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return LanguageAuto
	}
	return tag.String()
}
