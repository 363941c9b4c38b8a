package hostbridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var captionDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "SubRip captions",
		Pattern:     "*.srt",
	},
}

var textDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Captions and transcripts",
		Pattern:     "*.srt;*.txt",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// Wails serves dialogs through the desktop runtime. It is unavailable until
// the runtime context is attached at startup.
type Wails struct {
	mu         sync.Mutex
	runtimeCtx context.Context
	defaultDir func() string
}

// NewWails creates a bridge; defaultDir supplies the initial dialog folder.
func NewWails(defaultDir func() string) *Wails {
	return &Wails{defaultDir: defaultDir}
}

// Attach stores the runtime context; nil detaches on shutdown.
func (w *Wails) Attach(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runtimeCtx = ctx
}

// Available reports whether dialogs can be shown.
func (w *Wails) Available() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runtimeCtx != nil
}

// SaveTextFile opens a native save dialog and writes content to the choice.
func (w *Wails) SaveTextFile(_ context.Context, suggestedName, content string) (string, error) {
	ctx, err := w.runtime()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:            "Save file",
		DefaultDirectory: w.dir(),
		DefaultFilename:  sanitizeFilename(suggestedName),
		Filters:          textDialogFilter,
	})
	if err != nil {
		return "", fmt.Errorf("save dialog: %w", err)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrCancelled
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// OpenCaptionFile opens a native picker limited to SRT files.
func (w *Wails) OpenCaptionFile(context.Context) (string, error) {
	ctx, err := w.runtime()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:            "Select captions",
		DefaultDirectory: w.dir(),
		Filters:          captionDialogFilter,
	})
	if err != nil {
		return "", fmt.Errorf("open dialog: %w", err)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrCancelled
	}
	return path, nil
}

// runtime returns the attached runtime context for dialog APIs.
func (w *Wails) runtime() (context.Context, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.runtimeCtx == nil {
		return nil, ErrUnavailable
	}
	return w.runtimeCtx, nil
}

func (w *Wails) dir() string {
	if w.defaultDir == nil {
		return ""
	}
	return w.defaultDir()
}
