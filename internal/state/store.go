package state

import (
	"sync"

	"captiondesk/internal/domain"
	"captiondesk/internal/events"
)

// Snapshot is a copy of every region of the shared store.
type Snapshot struct {
	Modal       domain.Modal              `json:"modal"`
	Youtube     domain.ImportState        `json:"youtube"`
	URLDownload domain.ImportState        `json:"urlDownload"`
	Model       domain.ModelDownloadState `json:"model"`
}

// Import returns the region that belongs to kind.
func (s Snapshot) Import(kind domain.ImportKind) domain.ImportState {
	if kind == domain.ImportKindYoutube {
		return s.Youtube
	}
	return s.URLDownload
}

// Patch groups region patches applied as one atomic step. Nil regions and
// unset fields are left unchanged.
type Patch struct {
	Modal domain.Opt[domain.Modal]
	// Close hides the named dialog if it is the visible one. It is applied
	// after Modal.
	Close       domain.Modal
	Youtube     *domain.ImportPatch
	URLDownload *domain.ImportPatch
	Model       *domain.ModelPatch
}

// ForImport returns a Patch touching only the region of kind.
func ForImport(kind domain.ImportKind, p domain.ImportPatch) Patch {
	if kind == domain.ImportKindYoutube {
		return Patch{Youtube: &p}
	}
	return Patch{URLDownload: &p}
}

// Defaults are the initial values restored by reset operations.
type Defaults struct {
	DownloadDir string
}

// Store is the process-wide state container shared by operation controllers.
type Store struct {
	mu        sync.Mutex
	defaults  Defaults
	current   Snapshot
	listeners []func(Snapshot)
	bus       *events.Bus
}

// NewStore creates a store initialized to defaults. bus may be nil.
func NewStore(defaults Defaults, bus *events.Bus) *Store {
	s := &Store{defaults: defaults, bus: bus}
	s.current = s.initial()
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers fn to run after every change. Listeners run in change
// order while the store is locked and must not write back to it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
	idx := len(s.listeners) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

// Apply merges p into the store.
func (s *Store) Apply(p Patch) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Modal.Apply(&s.current.Modal)
	if p.Close != "" && s.current.Modal == p.Close {
		s.current.Modal = domain.ModalNone
	}
	if p.Youtube != nil {
		p.Youtube.ApplyTo(&s.current.Youtube)
	}
	if p.URLDownload != nil {
		p.URLDownload.ApplyTo(&s.current.URLDownload)
	}
	if p.Model != nil {
		p.Model.ApplyTo(&s.current.Model)
	}
	return s.changed()
}

// PatchModal sets the visible dialog.
func (s *Store) PatchModal(m domain.Modal) Snapshot {
	return s.Apply(Patch{Modal: domain.Set(m)})
}

// PatchImport merges p into the region of kind.
func (s *Store) PatchImport(kind domain.ImportKind, p domain.ImportPatch) Snapshot {
	return s.Apply(ForImport(kind, p))
}

// PatchModel merges p into the model region.
func (s *Store) PatchModel(p domain.ModelPatch) Snapshot {
	return s.Apply(Patch{Model: &p})
}

// CloseModal hides m if it is the visible dialog.
func (s *Store) CloseModal(m domain.Modal) Snapshot {
	return s.Apply(Patch{Close: m})
}

// ResetImport restores the region of kind to its initial values and hides
// its dialog.
func (s *Store) ResetImport(kind domain.ImportKind) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Modal == domain.ModalFor(kind) {
		s.current.Modal = domain.ModalNone
	}

	initial := s.initial()
	if kind == domain.ImportKindYoutube {
		s.current.Youtube = initial.Youtube
	} else {
		s.current.URLDownload = initial.URLDownload
	}
	return s.changed()
}

// ResetModel restores the model region to its initial values.
func (s *Store) ResetModel() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Model = s.initial().Model
	return s.changed()
}

// Reset restores every region to its initial values.
func (s *Store) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = s.initial()
	return s.changed()
}

// SetDefaultDownloadDir updates the save path restored on reset and fills
// the staged save path when the user has not picked one.
func (s *Store) SetDefaultDownloadDir(dir string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.defaults.DownloadDir
	s.defaults.DownloadDir = dir
	if s.current.URLDownload.SavePath == "" || s.current.URLDownload.SavePath == prev {
		s.current.URLDownload.SavePath = dir
	}
	return s.changed()
}

// initial builds the documented defaults.
func (s *Store) initial() Snapshot {
	return Snapshot{
		Modal:       domain.ModalNone,
		Youtube:     domain.ImportState{Status: domain.TaskStatusIdle},
		URLDownload: domain.ImportState{Status: domain.TaskStatusIdle, SavePath: s.defaults.DownloadDir},
		Model:       domain.ModelDownloadState{Status: domain.ModelStatusIdle},
	}
}

// changed fans the current state out to listeners. Callers hold mu.
func (s *Store) changed() Snapshot {
	snap := s.current
	for _, fn := range s.listeners {
		if fn != nil {
			fn(snap)
		}
	}
	if s.bus != nil {
		s.bus.Publish(events.Event{Topic: events.TopicState, Payload: snap})
	}
	return snap
}
