package keyboard

import (
	"context"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/session"
)

// InputContext returns the focused session, or nil.
func (k *Keyboard) InputContext() session.InputContext {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.ic
}

// UpdateCandidates replaces the candidate list.
func (k *Keyboard) UpdateCandidates(candidates []ime.Candidate) {
	k.mu.Lock()
	k.candidates = append([]ime.Candidate(nil), candidates...)
	k.mu.Unlock()

	k.notify(Change{Kind: ChangeCandidates})
}

// SetLayoutPage shows page of the current layout.
func (k *Keyboard) SetLayoutPage(page int) {
	k.layouts.SetPageIndex(page)
	k.notify(Change{Kind: ChangeLayoutPage})
}

// SwitchUpperCaseState changes the shift state.
func (k *Keyboard) SwitchUpperCaseState(state ime.UpperCaseState) {
	k.mu.Lock()
	changed := k.upper != state
	k.upper = state
	k.mu.Unlock()

	if changed {
		k.notify(Change{Kind: ChangeUpperCase})
	}
}

// IsUpperCase reports whether shift is on.
func (k *Keyboard) IsUpperCase() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.upper.IsUpperCase
}

// UpperCaseState returns the full shift state.
func (k *Keyboard) UpperCaseState() ime.UpperCaseState {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.upper
}

// NumberOfCandidatesPerRow reports how many candidates fit one row.
func (k *Keyboard) NumberOfCandidatesPerRow() int {
	return k.settings.Config().Keyboard.CandidatesPerRow
}

// LoadData reads an engine resource from the engines directory.
func (k *Keyboard) LoadData(ctx context.Context, engineID, path string) ([]byte, error) {
	return k.resources.Load(ctx, engineID, path)
}
