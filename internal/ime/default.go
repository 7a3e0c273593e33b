package ime

import (
	"context"
	"errors"
)

// DefaultEngine forwards every key to the session unchanged.
type DefaultEngine struct {
	glue Glue
}

// NewDefaultEngine creates the pass-through engine.
func NewDefaultEngine() *DefaultEngine {
	return &DefaultEngine{}
}

// Init stores the glue.
func (d *DefaultEngine) Init(glue Glue) error {
	d.glue = glue
	return nil
}

// Click sends code to the session. Taps with no session are dropped.
func (d *DefaultEngine) Click(ctx context.Context, code int, _ *Point) error {
	return d.send(ctx, code, false)
}

// RepeatKey sends an auto-repeated key, flagged as a repeat.
func (d *DefaultEngine) RepeatKey(ctx context.Context, code int) error {
	return d.send(ctx, code, true)
}

func (d *DefaultEngine) send(ctx context.Context, code int, repeat bool) error {
	if d.glue == nil {
		return errors.New("default engine: not initialized")
	}
	err := d.glue.SendKey(ctx, code, repeat)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	return err
}

// DisplaysCandidates is always false.
func (d *DefaultEngine) DisplaysCandidates() bool {
	return false
}
