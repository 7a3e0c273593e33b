// Package glue implements the capability object an engine uses to reach the
// keyboard host.
package glue

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/layout"
	"github.com/dshills/imehost/internal/logging"
	"github.com/dshills/imehost/internal/session"
)

// Glue is bound to one engine id for the life of the process. It looks up
// the current session through the host on every call and never keeps it.
type Glue struct {
	engineID string
	host     ime.Host
	logger   *logging.Logger
}

var _ ime.Glue = (*Glue)(nil)

// New creates the glue for engineID.
func New(engineID string, host ime.Host, logger *logging.Logger) *Glue {
	return &Glue{
		engineID: engineID,
		host:     host,
		logger:   logger.WithComponent("ime.glue").WithField("engine", engineID),
	}
}

// EngineID returns the engine this glue is bound to.
func (g *Glue) EngineID() string {
	return g.engineID
}

// Path returns the engine's resource namespace.
func (g *Glue) Path() string {
	return g.engineID
}

// SendCandidates shows candidates on the candidate panel. Candidates sent
// while no session is focused are dropped.
func (g *Glue) SendCandidates(candidates []ime.Candidate) {
	if g.host.InputContext() == nil {
		g.logger.Warn("sendCandidates: no input context, dropping %d candidates", len(candidates))
		return
	}
	g.host.UpdateCandidates(candidates)
}

// SetComposition starts or updates the composing text. A negative cursor
// places it after the last rune.
func (g *Glue) SetComposition(ctx context.Context, symbols string, cursor int) error {
	ic := g.host.InputContext()
	if ic == nil {
		g.logger.Warn("setComposition: no input context")
		return nil
	}
	if cursor < 0 {
		cursor = utf8.RuneCountInString(symbols)
	}
	if err := ic.SetComposition(ctx, symbols, cursor); err != nil {
		g.logger.Error("setComposition(%q, %d) rejected: %v", symbols, cursor, err)
		return fmt.Errorf("set composition: %w", err)
	}
	return nil
}

// EndComposition clears the composing text and commits text.
func (g *Glue) EndComposition(ctx context.Context, text string) error {
	ic := g.host.InputContext()
	if ic == nil {
		g.logger.Warn("endComposition: no input context")
		return nil
	}
	if err := ic.EndComposition(ctx, text); err != nil {
		g.logger.Error("endComposition(%q) rejected: %v", text, err)
		return fmt.Errorf("end composition: %w", err)
	}
	return nil
}

// SendKey injects a key into the session. Backspace and Return travel as key
// codes; everything else travels as a character code.
func (g *Glue) SendKey(ctx context.Context, code int, repeat bool) error {
	ic := g.host.InputContext()
	if ic == nil {
		g.logger.Warn("sendKey(%d): no input context", code)
		return ime.ErrNoSession
	}
	return g.sendKey(ctx, ic, code, repeat)
}

func (g *Glue) sendKey(ctx context.Context, ic session.InputContext, code int, repeat bool) error {
	var err error
	switch code {
	case ime.KeyBackspace:
		err = ic.SendKey(ctx, code, 0, 0, repeat)
	case ime.KeyReturn:
		err = ic.SendKey(ctx, code, 0, 0, false)
	default:
		err = ic.SendKey(ctx, 0, code, 0, false)
	}
	if err != nil {
		g.logger.Error("sendKey(%d, repeat=%v) rejected: %v", code, repeat, err)
		return fmt.Errorf("send key %d: %w", code, err)
	}
	return nil
}

// SendString injects s one key per rune, stopping at the first rejection.
//
// Deprecated: use CommitText.
func (g *Glue) SendString(ctx context.Context, s string) error {
	ic := g.host.InputContext()
	if ic == nil {
		g.logger.Warn("sendString: no input context")
		return ime.ErrNoSession
	}
	for _, r := range s {
		if err := g.sendKey(ctx, ic, int(r), false); err != nil {
			return err
		}
	}
	return nil
}

// CommitText inserts text in one edit when the session can, and falls back
// to per-rune keys otherwise.
func (g *Glue) CommitText(ctx context.Context, text string) error {
	ic := g.host.InputContext()
	if ic == nil {
		g.logger.Warn("commitText: no input context")
		return ime.ErrNoSession
	}
	ins, ok := ic.(session.TextInserter)
	if !ok {
		return g.SendString(ctx, text)
	}
	if err := ins.InsertText(ctx, text); err != nil {
		g.logger.Error("commitText(%q) rejected: %v", text, err)
		return fmt.Errorf("commit text: %w", err)
	}
	return nil
}

// SetLayoutPage switches the keyboard page. Engines may only go back to the
// default page; any other request is a protocol violation and panics.
func (g *Glue) SetLayoutPage(page int) {
	if page != layout.PageIndexDefault {
		panic(&ime.ProtocolError{
			Engine: g.engineID,
			Err:    fmt.Errorf("%w: requested page %d", ime.ErrLayoutPage, page),
		})
	}
	if g.host.InputContext() == nil {
		g.logger.Warn("setLayoutPage: no input context")
		return
	}
	g.host.SetLayoutPage(page)
}

// SetUpperCase changes the shift state.
func (g *Glue) SetUpperCase(state ime.UpperCaseState) {
	if g.host.InputContext() == nil {
		g.logger.Warn("setUpperCase: no input context")
		return
	}
	g.host.SwitchUpperCaseState(state)
}

// IsCapitalized reports the shift state.
func (g *Glue) IsCapitalized() bool {
	return g.host.IsUpperCase()
}

// ReplaceSurroundingText replaces length runes starting offset runes from
// the cursor.
func (g *Glue) ReplaceSurroundingText(ctx context.Context, text string, offset, length int) error {
	ic := g.host.InputContext()
	if ic == nil {
		g.logger.Warn("replaceSurroundingText: no input context")
		return ime.ErrNoSession
	}
	if err := ic.ReplaceSurroundingText(ctx, text, offset, length); err != nil {
		g.logger.Error("replaceSurroundingText(%q, %d, %d) rejected: %v", text, offset, length, err)
		return fmt.Errorf("replace surrounding text: %w", err)
	}
	return nil
}

// GetNumberOfCandidatesPerRow reports how many candidates fit one row.
func (g *Glue) GetNumberOfCandidatesPerRow() int {
	return g.host.NumberOfCandidatesPerRow()
}

// GetData reads path from the engine's resource namespace.
func (g *Glue) GetData(ctx context.Context, path string) ([]byte, error) {
	data, err := g.host.LoadData(ctx, g.engineID, path)
	if err != nil {
		g.logger.Error("getData(%q): %v", path, err)
		return nil, err
	}
	return data, nil
}
