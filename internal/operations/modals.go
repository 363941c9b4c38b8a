package operations

import (
	"captiondesk/internal/domain"
	"captiondesk/internal/state"
)

// Modals switches the visible import dialog. Showing one dialog hides the
// others because visibility is a single value.
type Modals struct {
	store   *state.Store
	imports []*ImportController
}

// NewModals creates a dialog switcher aware of the import controllers.
func NewModals(store *state.Store, imports ...*ImportController) *Modals {
	return &Modals{store: store, imports: imports}
}

// Open shows modal. Opening the source chooser clears leftovers of idle
// imports; opening an import dialog clears its stale error.
func (m *Modals) Open(modal domain.Modal) state.Snapshot {
	p := state.Patch{Modal: domain.Set(modal)}
	switch modal {
	case domain.ModalOpen:
		for _, c := range m.imports {
			if c.Busy() {
				continue
			}
			idle := domain.ClearRuntime()
			idle.Error = domain.Set("")
			if c.Kind() == domain.ImportKindURLDownload {
				idle.URL = domain.Set("")
			}
			setRegion(&p, c.Kind(), idle)
		}
	case domain.ModalYoutube:
		setRegion(&p, domain.ImportKindYoutube, domain.ImportPatch{Error: domain.Set("")})
	case domain.ModalURLDownload:
		setRegion(&p, domain.ImportKindURLDownload, domain.ImportPatch{Error: domain.Set("")})
	}
	return m.store.Apply(p)
}

// Close hides modal. With discard, staged input of an idle import behind
// the dialog is reset to defaults.
func (m *Modals) Close(modal domain.Modal, discard bool) state.Snapshot {
	if discard {
		for _, c := range m.imports {
			if domain.ModalFor(c.Kind()) == modal && !c.Busy() {
				return m.store.ResetImport(c.Kind())
			}
		}
	}
	return m.store.CloseModal(modal)
}

// setRegion places an import patch into the matching slot of p.
func setRegion(p *state.Patch, kind domain.ImportKind, ip domain.ImportPatch) {
	if kind == domain.ImportKindYoutube {
		p.Youtube = &ip
		return
	}
	p.URLDownload = &ip
}
