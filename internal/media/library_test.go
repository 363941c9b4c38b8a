package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captiondesk/internal/domain"
	"captiondesk/internal/events"
)

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestAddFillsMetadataAndSelects(t *testing.T) {
	bus := events.NewBus(10)
	lib := NewLibrary(bus, zerolog.Nop())
	path := writeFile(t, "talk.mkv", 42)

	item, err := lib.Add(context.Background(), domain.MediaItem{Path: path, Name: "talk.mkv"})
	require.NoError(t, err)

	assert.NotEmpty(t, item.ID)
	require.NotNil(t, item.Size)
	assert.EqualValues(t, 42, *item.Size)
	assert.Equal(t, domain.MediaKindVideo, item.Kind)
	assert.Equal(t, "talk", item.DisplayName)
	assert.False(t, item.AddedAt.IsZero())

	selected, ok := lib.Selected()
	require.True(t, ok)
	assert.Equal(t, item.ID, selected.ID)

	evs := bus.SinceTopic(events.TopicMedia, 0)
	require.Len(t, evs, 1)
	assert.Equal(t, "added", evs[0].Message)
}

func TestAddKeepsCallerFields(t *testing.T) {
	lib := NewLibrary(nil, zerolog.Nop())
	path := writeFile(t, "a.mp4", 3)
	size := int64(99)

	item, err := lib.Add(context.Background(), domain.MediaItem{
		Path:              path,
		Name:              "a.mp4",
		Size:              &size,
		DisplayName:       "Clip title",
		TranscriptionKind: domain.MediaKindAudio,
		ExternalSource:    &domain.ExternalSource{Type: "youtube", URL: "https://youtu.be/x"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 99, *item.Size)
	assert.Equal(t, "Clip title", item.DisplayName)
	assert.Equal(t, domain.MediaKindAudio, item.TranscriptionKind)
	require.NotNil(t, item.ExternalSource)
}

func TestAddRejectsIncompleteOrMissing(t *testing.T) {
	lib := NewLibrary(nil, zerolog.Nop())

	_, err := lib.Add(context.Background(), domain.MediaItem{Path: "/tmp/x.mp4"})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = lib.Add(context.Background(), domain.MediaItem{Path: filepath.Join(t.TempDir(), "gone.mp3"), Name: "gone.mp3"})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, lib.List())
}

func TestSelectAndRemove(t *testing.T) {
	lib := NewLibrary(nil, zerolog.Nop())
	first, err := lib.AddPath(context.Background(), writeFile(t, "one.wav", 1))
	require.NoError(t, err)
	second, err := lib.AddPath(context.Background(), writeFile(t, "two.wav", 1))
	require.NoError(t, err)
	assert.Equal(t, domain.MediaKindAudio, first.Kind)

	require.NoError(t, lib.Select(first.ID))
	assert.ErrorIs(t, lib.Select("nope"), ErrNotFound)

	require.NoError(t, lib.Remove(first.ID))
	_, ok := lib.Selected()
	assert.False(t, ok)
	require.Len(t, lib.List(), 1)
	assert.Equal(t, second.ID, lib.List()[0].ID)
	assert.ErrorIs(t, lib.Remove(first.ID), ErrNotFound)
}
