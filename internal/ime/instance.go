package ime

import "context"

// Instance is an initialized engine. The loader creates one per engine id and
// keeps it for the life of the process.
type Instance struct {
	ID     string
	Engine Engine
	Caps   Capability
	Glue   Glue
}

// NewInstance records an initialized engine and probes its capabilities.
func NewInstance(id string, e Engine, g Glue) *Instance {
	return &Instance{
		ID:     id,
		Engine: e,
		Caps:   Probe(e),
		Glue:   g,
	}
}

// IsDefault reports whether this is the pass-through engine.
func (i *Instance) IsDefault() bool {
	return i.ID == DefaultEngineID
}

// RepeatKey delivers an auto-repeated key, as a Click when the engine does
// not handle repeats.
func (i *Instance) RepeatKey(ctx context.Context, code int) error {
	if r, ok := i.Engine.(KeyRepeater); ok {
		return r.RepeatKey(ctx, code)
	}
	return i.Engine.Click(ctx, code, nil)
}

// Activator returns the engine's Activate operation if it supports it.
func (i *Instance) Activator() (Activator, bool) {
	if !i.Caps.Has(CapActivate) {
		return nil, false
	}
	a, ok := i.Engine.(Activator)
	return a, ok
}

// Deactivator returns the engine's Deactivate operation if it supports it.
func (i *Instance) Deactivator() (Deactivator, bool) {
	if !i.Caps.Has(CapDeactivate) {
		return nil, false
	}
	d, ok := i.Engine.(Deactivator)
	return d, ok
}

// Selector returns the engine's Select operation if it supports it.
func (i *Instance) Selector() (Selector, bool) {
	if !i.Caps.Has(CapSelect) {
		return nil, false
	}
	s, ok := i.Engine.(Selector)
	return s, ok
}

// LayoutParamsSetter returns the engine's SetLayoutParams operation if it
// supports it.
func (i *Instance) LayoutParamsSetter() (LayoutParamsSetter, bool) {
	if !i.Caps.Has(CapSetLayoutParams) {
		return nil, false
	}
	s, ok := i.Engine.(LayoutParamsSetter)
	return s, ok
}

// CandidateSource returns the engine's GetMoreCandidates operation if it
// supports it.
func (i *Instance) CandidateSource() (CandidateSource, bool) {
	if !i.Caps.Has(CapGetMoreCandidates) {
		return nil, false
	}
	s, ok := i.Engine.(CandidateSource)
	return s, ok
}

// SelectionChangeHandler returns the engine's selection handler if it
// supports it.
func (i *Instance) SelectionChangeHandler() (SelectionChangeHandler, bool) {
	if !i.Caps.Has(CapSelectionChange) {
		return nil, false
	}
	h, ok := i.Engine.(SelectionChangeHandler)
	return h, ok
}

// SurroundingTextChangeHandler returns the engine's surrounding text handler
// if it supports it.
func (i *Instance) SurroundingTextChangeHandler() (SurroundingTextChangeHandler, bool) {
	if !i.Caps.Has(CapSurroundingTextChange) {
		return nil, false
	}
	h, ok := i.Engine.(SurroundingTextChangeHandler)
	return h, ok
}

// StrokeReceiver returns the engine's SendStrokePoints operation if it
// supports it.
func (i *Instance) StrokeReceiver() (StrokeReceiver, bool) {
	if !i.Caps.Has(CapSendStrokePoints) {
		return nil, false
	}
	r, ok := i.Engine.(StrokeReceiver)
	return r, ok
}

// DisplaysCandidates reports whether the engine shows a candidate panel.
// Engines that do not say are assumed to.
func (i *Instance) DisplaysCandidates() bool {
	if !i.Caps.Has(CapDisplaysCandidates) {
		return true
	}
	d, ok := i.Engine.(CandidateDisplayer)
	if !ok {
		return true
	}
	return d.DisplaysCandidates()
}
