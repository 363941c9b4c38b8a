package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captiondesk/internal/domain"
	"captiondesk/internal/events"
)

func intPtr(v int) *int { return &v }

func TestEmptyPatchLeavesStateUnchanged(t *testing.T) {
	s := NewStore(Defaults{DownloadDir: "/downloads"}, nil)
	s.PatchImport(domain.ImportKindURLDownload, domain.ImportPatch{
		URL:      domain.Set("http://x/a.mp4"),
		Progress: domain.Set(intPtr(40)),
		Title:    domain.Set("clip"),
	})
	before := s.Snapshot()

	after := s.Apply(Patch{})
	assert.Equal(t, before, after)

	after = s.PatchImport(domain.ImportKindURLDownload, domain.ImportPatch{})
	assert.Equal(t, before, after)
}

func TestPatchChangesOnlyNamedField(t *testing.T) {
	s := NewStore(Defaults{}, nil)
	s.PatchImport(domain.ImportKindYoutube, domain.ImportPatch{
		URL:    domain.Set("https://youtu.be/abc"),
		Title:  domain.Set("talk"),
		TaskID: domain.Set("dl-1"),
	})

	snap := s.PatchImport(domain.ImportKindYoutube, domain.ImportPatch{Error: domain.Set("nope")})

	assert.Equal(t, "nope", snap.Youtube.Error)
	assert.Equal(t, "https://youtu.be/abc", snap.Youtube.URL)
	assert.Equal(t, "talk", snap.Youtube.Title)
	assert.Equal(t, "dl-1", snap.Youtube.TaskID)
	assert.Equal(t, domain.ImportState{Status: domain.TaskStatusIdle}, snap.URLDownload)
}

func TestSetNilOverwritesPointerField(t *testing.T) {
	s := NewStore(Defaults{}, nil)
	s.PatchImport(domain.ImportKindYoutube, domain.ImportPatch{Progress: domain.Set(intPtr(12))})

	snap := s.PatchImport(domain.ImportKindYoutube, domain.ImportPatch{Progress: domain.Set[*int](nil)})
	assert.Nil(t, snap.Youtube.Progress)
}

func TestApplyIsAtomicAcrossRegions(t *testing.T) {
	bus := events.NewBus(10)
	s := NewStore(Defaults{}, bus)

	var calls int
	s.Subscribe(func(Snapshot) { calls++ })

	snap := s.Apply(Patch{
		Modal:       domain.Set(domain.ModalURLDownload),
		URLDownload: &domain.ImportPatch{Importing: domain.Set(true)},
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, domain.ModalURLDownload, snap.Modal)
	assert.True(t, snap.URLDownload.Importing)
	require.Len(t, bus.SinceTopic(events.TopicState, 0), 1)
}

func TestResetImportRestoresDefaults(t *testing.T) {
	s := NewStore(Defaults{DownloadDir: "/downloads"}, nil)
	s.PatchImport(domain.ImportKindURLDownload, domain.ImportPatch{
		URL:       domain.Set("http://x"),
		SavePath:  domain.Set("/elsewhere"),
		Importing: domain.Set(true),
		TaskID:    domain.Set("dl-9"),
	})
	s.PatchImport(domain.ImportKindYoutube, domain.ImportPatch{URL: domain.Set("keep")})

	snap := s.ResetImport(domain.ImportKindURLDownload)

	assert.Equal(t, domain.ImportState{Status: domain.TaskStatusIdle, SavePath: "/downloads"}, snap.URLDownload)
	assert.Equal(t, "keep", snap.Youtube.URL)
}

func TestCloseModalOnlyClosesVisibleModal(t *testing.T) {
	s := NewStore(Defaults{}, nil)
	s.PatchModal(domain.ModalYoutube)

	assert.Equal(t, domain.ModalYoutube, s.CloseModal(domain.ModalURLDownload).Modal)
	assert.Equal(t, domain.ModalNone, s.CloseModal(domain.ModalYoutube).Modal)
}

func TestSetDefaultDownloadDirKeepsUserChoice(t *testing.T) {
	s := NewStore(Defaults{}, nil)
	assert.Equal(t, "/d", s.SetDefaultDownloadDir("/d").URLDownload.SavePath)

	s.PatchImport(domain.ImportKindURLDownload, domain.ImportPatch{SavePath: domain.Set("/mine")})
	assert.Equal(t, "/mine", s.SetDefaultDownloadDir("/other").URLDownload.SavePath)
	assert.Equal(t, "/other", s.ResetImport(domain.ImportKindURLDownload).URLDownload.SavePath)

	seeded := NewStore(Defaults{DownloadDir: "/settings"}, nil)
	assert.Equal(t, "/worker", seeded.SetDefaultDownloadDir("/worker").URLDownload.SavePath)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := NewStore(Defaults{}, nil)
	var calls int
	stop := s.Subscribe(func(Snapshot) { calls++ })

	s.PatchModal(domain.ModalOpen)
	stop()
	s.PatchModal(domain.ModalNone)

	assert.Equal(t, 1, calls)
}
