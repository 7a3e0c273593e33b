package imetest

import (
	"context"
	"sync"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/session"
)

// Activation is the arguments of one Activate call.
type Activation struct {
	Lang string
	Data ime.SessionSnapshot
	Opts ime.ActivationOptions
}

// BasicEngine implements only the required engine operations.
type BasicEngine struct {
	recorder

	mu   sync.Mutex
	glue ime.Glue
}

// NewBasicEngine creates an engine with no optional capabilities.
func NewBasicEngine() *BasicEngine {
	return &BasicEngine{}
}

func (e *BasicEngine) Init(g ime.Glue) error {
	e.record("Init")
	e.mu.Lock()
	defer e.mu.Unlock()
	e.glue = g
	return nil
}

func (e *BasicEngine) Click(ctx context.Context, code int, _ *ime.Point) error {
	e.record("Click", code)
	return nil
}

// Glue returns the glue passed to Init.
func (e *BasicEngine) Glue() ime.Glue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.glue
}

// Engine implements every optional capability and records each call.
type Engine struct {
	BasicEngine

	// ActivateErr is returned from Activate when set.
	ActivateErr error

	activations chan Activation
	events      chan session.Event
}

// NewEngine creates a fully capable engine.
func NewEngine() *Engine {
	return &Engine{
		activations: make(chan Activation, 16),
		events:      make(chan session.Event, 16),
	}
}

// Activations delivers the arguments of each Activate call.
func (e *Engine) Activations() <-chan Activation {
	return e.activations
}

// Events delivers each session event the engine received.
func (e *Engine) Events() <-chan session.Event {
	return e.events
}

func (e *Engine) Activate(_ context.Context, lang string, data ime.SessionSnapshot, opts ime.ActivationOptions) error {
	e.record("Activate", lang, data, opts)
	if e.ActivateErr != nil {
		return e.ActivateErr
	}
	e.activations <- Activation{Lang: lang, Data: data, Opts: opts}
	return nil
}

func (e *Engine) Deactivate() {
	e.record("Deactivate")
}

func (e *Engine) Select(_ context.Context, word string, data any) error {
	e.record("Select", word, data)
	return nil
}

func (e *Engine) SetLayoutParams(params ime.LayoutParams) {
	e.record("SetLayoutParams", params)
}

func (e *Engine) GetMoreCandidates(_ context.Context, indicator, maxCount int, cb func([]ime.Candidate)) {
	e.record("GetMoreCandidates", indicator, maxCount)
	cb([]ime.Candidate{{Text: "more"}})
}

func (e *Engine) SelectionChange(_ context.Context, detail session.SelectionChangeDetail) {
	e.record("SelectionChange", detail)
	e.events <- session.Event{Type: session.EventSelectionChange, Detail: detail}
}

func (e *Engine) SurroundingTextChange(_ context.Context, detail session.SurroundingTextChangeDetail) {
	e.record("SurroundingTextChange", detail)
	e.events <- session.Event{Type: session.EventSurroundingTextChange, Detail: detail}
}

func (e *Engine) SendStrokePoints(_ context.Context, points []ime.StrokePoint) {
	e.record("SendStrokePoints", points)
}

func (e *Engine) DisplaysCandidates() bool {
	return true
}
