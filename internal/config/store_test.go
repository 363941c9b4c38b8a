package config

import (
	"os"
	"path/filepath"
	"testing"

	"captiondesk/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.Language != "auto" {
		t.Fatalf("language = %q, want auto", cfg.Language)
	}
	if cfg.Model != DefaultModel {
		t.Fatalf("model = %q, want %q", cfg.Model, DefaultModel)
	}
	if cfg.DownloadDir == "" {
		t.Fatal("expected non-empty download dir")
	}
	if cfg.ExportDir == "" {
		t.Fatal("expected non-empty export dir")
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Language != "auto" {
		t.Fatalf("language = %q, want auto", got.Language)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := domain.Settings{
		Language:      "zh-Hant",
		Model:         "whisper",
		ChineseStyle:  ChineseStyleSpoken,
		ChineseScript: "traditional",
		DownloadDir:   "/downloads",
		ExportDir:     "/out",
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}

// TestJSONStoreLoadPartialFillsDefaults checks that older files gain new fields.
func TestJSONStoreLoadPartialFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"language":"EN-us"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Language != "en-US" {
		t.Fatalf("language = %q, want en-US", got.Language)
	}
	if got.Model != DefaultModel || got.ChineseStyle != ChineseStyleWritten {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.DownloadDir == "" || got.ExportDir == "" {
		t.Fatalf("dirs not defaulted: %+v", got)
	}
}

// TestNormalizeSettingsCantoneseStyle checks the yue style follows the language.
func TestNormalizeSettingsCantoneseStyle(t *testing.T) {
	cases := []struct {
		language string
		want     string
	}{
		{language: "auto", want: ChineseStyleYue},
		{language: "yue", want: ChineseStyleYue},
		{language: "en", want: ChineseStyleWritten},
		{language: "not a tag!", want: ChineseStyleYue},
	}
	for _, tc := range cases {
		got := NormalizeSettings(domain.Settings{Language: tc.language, ChineseStyle: ChineseStyleYue})
		if got.ChineseStyle != tc.want {
			t.Fatalf("language %q: style = %q, want %q", tc.language, got.ChineseStyle, tc.want)
		}
	}
}
