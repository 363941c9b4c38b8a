// Package hostbridge reaches native host capabilities such as file dialogs,
// falling back to plain file writes when the host cannot serve a request.
package hostbridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrCancelled is returned when the user dismisses a dialog.
var ErrCancelled = errors.New("dialog cancelled")

// ErrUnavailable is returned when a capability is missing on this host.
var ErrUnavailable = errors.New("host capability unavailable")

// Bridge is the set of host capabilities the editor calls opportunistically.
type Bridge interface {
	// SaveTextFile stores content under a user-chosen name and returns the
	// written path.
	SaveTextFile(ctx context.Context, suggestedName, content string) (string, error)
	// OpenCaptionFile lets the user pick a caption file and returns its path.
	OpenCaptionFile(ctx context.Context) (string, error)
}

// Fallback writes files directly into Dir without asking the user.
type Fallback struct {
	Dir string
	// DirFunc, when set, is asked for the directory on every save.
	DirFunc func() string
}

func (f Fallback) dir() string {
	if f.DirFunc != nil {
		return strings.TrimSpace(f.DirFunc())
	}
	return strings.TrimSpace(f.Dir)
}

// SaveTextFile writes content to Dir, adding a numeric suffix instead of
// overwriting an existing file.
func (f Fallback) SaveTextFile(_ context.Context, suggestedName, content string) (string, error) {
	dir := f.dir()
	if dir == "" {
		return "", fmt.Errorf("save %s: %w", suggestedName, ErrUnavailable)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	name := sanitizeFilename(suggestedName)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	path := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, i, ext))
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// OpenCaptionFile is not available without a native picker.
func (Fallback) OpenCaptionFile(context.Context) (string, error) {
	return "", ErrUnavailable
}

type withFallback struct {
	primary  Bridge
	fallback Bridge
	log      zerolog.Logger
}

// WithFallback tries primary first and uses fallback when primary is
// missing or fails. A cancelled dialog is returned as is.
func WithFallback(primary, fallback Bridge, logger zerolog.Logger) Bridge {
	return &withFallback{primary: primary, fallback: fallback, log: logger}
}

func (b *withFallback) SaveTextFile(ctx context.Context, suggestedName, content string) (string, error) {
	if b.primary != nil {
		path, err := b.primary.SaveTextFile(ctx, suggestedName, content)
		if err == nil || errors.Is(err, ErrCancelled) {
			return path, err
		}
		b.log.Debug().Err(err).Msg("native save failed, using fallback")
	}
	return b.fallback.SaveTextFile(ctx, suggestedName, content)
}

func (b *withFallback) OpenCaptionFile(ctx context.Context) (string, error) {
	if b.primary != nil {
		path, err := b.primary.OpenCaptionFile(ctx)
		if err == nil || errors.Is(err, ErrCancelled) {
			return path, err
		}
		b.log.Debug().Err(err).Msg("native open failed, using fallback")
	}
	return b.fallback.OpenCaptionFile(ctx)
}

// sanitizeFilename strips path separators and characters most file
// systems reject.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "export.txt"
	}
	return name
}
