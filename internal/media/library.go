// Package media keeps the session's library of local media files.
package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"captiondesk/internal/domain"
	"captiondesk/internal/events"
)

// ErrInvalidItem is returned for items without a path or name.
var ErrInvalidItem = errors.New("media item needs a path and a name")

// ErrNotFound is returned for unknown media ids.
var ErrNotFound = errors.New("media item not found")

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".webm": true, ".m4v": true,
}

// Library holds imported media in insertion order. The most recently added
// item becomes the selection.
type Library struct {
	mu       sync.RWMutex
	items    []domain.MediaItem
	selected string

	bus *events.Bus
	log zerolog.Logger
}

// NewLibrary creates an empty library. bus may be nil.
func NewLibrary(bus *events.Bus, logger zerolog.Logger) *Library {
	return &Library{bus: bus, log: logger}
}

// Add stats the file behind item, fills in what the caller left out and
// stores it.
func (l *Library) Add(ctx context.Context, item domain.MediaItem) (domain.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.MediaItem{}, err
	}
	item.Path = strings.TrimSpace(item.Path)
	item.Name = strings.TrimSpace(item.Name)
	if item.Path == "" || item.Name == "" {
		return domain.MediaItem{}, ErrInvalidItem
	}

	info, err := os.Stat(item.Path)
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("stat media %s: %w", item.Name, err)
	}
	if info.IsDir() {
		return domain.MediaItem{}, fmt.Errorf("media %s is a directory", item.Path)
	}
	if item.Size == nil {
		size := info.Size()
		item.Size = &size
	}

	ext := strings.ToLower(filepath.Ext(item.Name))
	if item.Mime == "" {
		item.Mime = mime.TypeByExtension(ext)
	}
	if item.Kind == "" {
		item.Kind = kindOf(item.Mime, ext)
	}
	if item.DisplayName == "" {
		item.DisplayName = strings.TrimSuffix(item.Name, filepath.Ext(item.Name))
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}

	l.mu.Lock()
	l.items = append(l.items, item)
	l.selected = item.ID
	l.mu.Unlock()

	l.log.Info().Str("media", item.ID).Str("path", item.Path).Msg("media added")
	l.bus.Publish(events.Event{Topic: events.TopicMedia, Message: "added", Payload: item})
	return item, nil
}

// AddPath adds a local file chosen by the user.
func (l *Library) AddPath(ctx context.Context, path string) (domain.MediaItem, error) {
	return l.Add(ctx, domain.MediaItem{Path: path, Name: filepath.Base(path)})
}

// Select makes id the working item.
func (l *Library) Select(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexOf(id) < 0 {
		return fmt.Errorf("select %s: %w", id, ErrNotFound)
	}
	l.selected = id
	return nil
}

// Selected returns the working item.
func (l *Library) Selected() (domain.MediaItem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.indexOf(l.selected); i >= 0 {
		return l.items[i], true
	}
	return domain.MediaItem{}, false
}

// List returns all items in insertion order.
func (l *Library) List() []domain.MediaItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.MediaItem(nil), l.items...)
}

// Remove drops one item. Removing the selection clears it.
func (l *Library) Remove(id string) error {
	l.mu.Lock()
	i := l.indexOf(id)
	if i < 0 {
		l.mu.Unlock()
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	if l.selected == id {
		l.selected = ""
	}
	l.mu.Unlock()

	l.bus.Publish(events.Event{Topic: events.TopicMedia, Message: "removed", Payload: id})
	return nil
}

func (l *Library) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, item := range l.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// kindOf classifies by MIME type, then by extension.
func kindOf(mimeType, ext string) domain.MediaKind {
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return domain.MediaKindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return domain.MediaKindAudio
	case videoExtensions[ext]:
		return domain.MediaKindVideo
	default:
		return domain.MediaKindAudio
	}
}
