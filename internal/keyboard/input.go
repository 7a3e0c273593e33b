package keyboard

import (
	"context"
	"fmt"
	"unicode"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/ime/async"
	"github.com/dshills/imehost/internal/layout"
	"github.com/dshills/imehost/internal/session"
)

// SetInputContext focuses ic, or blurs when ic is nil. Focusing captures
// the session data and switches to the current layout's engine; blurring
// falls back to the default engine.
func (k *Keyboard) SetInputContext(ic session.InputContext) *async.Result[*ime.Instance] {
	k.mu.Lock()
	k.ic = ic
	k.candidates = nil
	k.mu.Unlock()

	k.layouts.SetPageIndex(layout.PageIndexDefault)
	k.notify(Change{Kind: ChangeFocus})

	if ic == nil {
		return k.manager.SwitchCurrentIMEngine(ime.DefaultEngineID)
	}
	return k.activateLayoutEngine()
}

// SwitchLayout makes name the current layout and switches to its engine if
// a session is focused.
func (k *Keyboard) SwitchLayout(name string) (*async.Result[*ime.Instance], error) {
	if _, err := k.layouts.SetCurrent(name); err != nil {
		return nil, err
	}
	return k.layoutChanged(), nil
}

// NextLayout cycles to the next layout.
func (k *Keyboard) NextLayout() *async.Result[*ime.Instance] {
	k.layouts.Next()
	return k.layoutChanged()
}

func (k *Keyboard) layoutChanged() *async.Result[*ime.Instance] {
	k.notify(Change{Kind: ChangeLayout})
	if k.InputContext() == nil {
		return async.Resolved(k.manager.CurrentEngine())
	}
	return k.activateLayoutEngine()
}

func (k *Keyboard) activateLayoutEngine() *async.Result[*ime.Instance] {
	k.mu.Lock()
	k.candidates = nil
	k.mu.Unlock()

	id := k.layouts.CurrentLayout().Engine()
	k.manager.UpdateInputContextData()
	return k.manager.SwitchCurrentIMEngine(id)
}

// Click delivers a key press to the active engine. Letters are upper-cased
// while shift is on, and an unlocked shift is released afterwards.
func (k *Keyboard) Click(ctx context.Context, code int, at *ime.Point) error {
	if !k.running.Load() {
		return ErrNotRunning
	}

	upper := k.UpperCaseState()
	if upper.IsUpperCase && unicode.IsLower(rune(code)) {
		code = int(unicode.ToUpper(rune(code)))
	}

	inst, err := k.currentEngine()
	if err != nil {
		return err
	}
	err = inst.Engine.Click(ctx, code, at)

	if upper.IsUpperCase && !upper.IsUpperCaseLocked {
		k.SwitchUpperCaseState(ime.UpperCaseState{})
	}
	return err
}

// RepeatKey delivers an auto-repeated key, such as a held Backspace, to the
// active engine.
func (k *Keyboard) RepeatKey(ctx context.Context, code int) error {
	if !k.running.Load() {
		return ErrNotRunning
	}
	inst, err := k.currentEngine()
	if err != nil {
		return err
	}
	return inst.RepeatKey(ctx, code)
}

func (k *Keyboard) currentEngine() (*ime.Instance, error) {
	inst := k.manager.CurrentEngine()
	if inst == nil {
		return nil, ErrNotRunning
	}
	return inst, nil
}

// ToggleShift cycles shift from off to on to locked and back to off.
func (k *Keyboard) ToggleShift() {
	state := k.UpperCaseState()
	switch {
	case !state.IsUpperCase:
		state = ime.UpperCaseState{IsUpperCase: true}
	case !state.IsUpperCaseLocked:
		state = ime.UpperCaseState{IsUpperCase: true, IsUpperCaseLocked: true}
	default:
		state = ime.UpperCaseState{}
	}
	k.SwitchUpperCaseState(state)
}

// Candidates returns the current candidate list.
func (k *Keyboard) Candidates() []ime.Candidate {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]ime.Candidate(nil), k.candidates...)
}

// SelectCandidate hands the candidate at index to the active engine.
func (k *Keyboard) SelectCandidate(ctx context.Context, index int) error {
	k.mu.RLock()
	if index < 0 || index >= len(k.candidates) {
		k.mu.RUnlock()
		return fmt.Errorf("%w: %d", ErrNoCandidate, index)
	}
	c := k.candidates[index]
	k.mu.RUnlock()

	inst, err := k.currentEngine()
	if err != nil {
		return err
	}
	sel, ok := inst.Selector()
	if !ok {
		return ErrUnsupported
	}
	return sel.Select(ctx, c.Text, c.Data)
}

// RequestMoreCandidates asks the active engine for up to maxCount more
// candidates and appends them to the list.
func (k *Keyboard) RequestMoreCandidates(ctx context.Context, maxCount int) error {
	inst, err := k.currentEngine()
	if err != nil {
		return err
	}
	src, ok := inst.CandidateSource()
	if !ok {
		return ErrUnsupported
	}

	k.mu.RLock()
	indicator := len(k.candidates)
	k.mu.RUnlock()

	src.GetMoreCandidates(ctx, indicator, maxCount, func(more []ime.Candidate) {
		if len(more) == 0 {
			return
		}
		k.mu.Lock()
		k.candidates = append(k.candidates, more...)
		k.mu.Unlock()
		k.notify(Change{Kind: ChangeCandidates})
	})
	return nil
}

// SetLayoutParams passes key geometry to the active engine.
func (k *Keyboard) SetLayoutParams(params ime.LayoutParams) error {
	inst, err := k.currentEngine()
	if err != nil {
		return err
	}
	s, ok := inst.LayoutParamsSetter()
	if !ok {
		return ErrUnsupported
	}
	s.SetLayoutParams(params)
	return nil
}

// SendStrokePoints passes handwriting input to the active engine.
func (k *Keyboard) SendStrokePoints(ctx context.Context, points []ime.StrokePoint) error {
	inst, err := k.currentEngine()
	if err != nil {
		return err
	}
	r, ok := inst.StrokeReceiver()
	if !ok {
		return ErrUnsupported
	}
	r.SendStrokePoints(ctx, points)
	return nil
}
