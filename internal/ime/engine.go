package ime

import (
	"context"

	"github.com/dshills/imehost/internal/session"
)

// DefaultEngineID is the id of the pass-through engine.
const DefaultEngineID = "default"

// Key codes engines pass to Click and Glue.SendKey.
const (
	KeyBackspace = session.KeyBackspace
	KeyReturn    = session.KeyReturn
)

// Point is a position on the keyboard surface.
type Point struct {
	X, Y int
}

// Candidate is a suggestion shown on the candidate panel.
type Candidate struct {
	Text string
	Data any
}

// UpperCaseState is the shift state of the keyboard.
type UpperCaseState struct {
	IsUpperCase       bool
	IsUpperCaseLocked bool
}

// SessionSnapshot is a point-in-time copy of the input context handed to
// Activate.
type SessionSnapshot struct {
	FieldType      string
	InputMode      string
	SelectionStart int
	SelectionEnd   int
	Value          string
}

// ActivationOptions are the user preferences in effect for an activation.
type ActivationOptions struct {
	Suggest            bool
	Correct            bool
	CorrectPunctuation bool
}

// KeyGeometry describes one key on screen.
type KeyGeometry struct {
	Code   int
	X, Y   int
	Width  int
	Height int
}

// LayoutParams gives engines the on-screen geometry of the keys.
type LayoutParams struct {
	KeyboardWidth  int
	KeyboardHeight int
	KeyArray       []KeyGeometry
}

// StrokePoint is one sample of a handwriting stroke. A negative X and Y
// marks the end of a stroke.
type StrokePoint struct {
	X, Y int
}

// Engine is implemented by every input method engine.
type Engine interface {
	// Init binds the engine to its glue. Called exactly once.
	Init(glue Glue) error

	// Click delivers a key tap. at is nil when the position is unknown
	// (Backspace never carries one).
	Click(ctx context.Context, code int, at *Point) error
}

// KeyRepeater is implemented by engines that tell auto-repeated keys apart
// from taps. Other engines receive repeats as plain clicks.
type KeyRepeater interface {
	RepeatKey(ctx context.Context, code int) error
}

// Activator is implemented by engines that prepare state when they become
// the active engine.
type Activator interface {
	Activate(ctx context.Context, lang string, data SessionSnapshot, opts ActivationOptions) error
}

// Deactivator is implemented by engines that release state when the keyboard
// switches away from them.
type Deactivator interface {
	Deactivate()
}

// Selector is implemented by engines that react to candidate selection.
type Selector interface {
	Select(ctx context.Context, word string, data any) error
}

// LayoutParamsSetter is implemented by engines that use key geometry.
type LayoutParamsSetter interface {
	SetLayoutParams(params LayoutParams)
}

// CandidateSource is implemented by engines that can produce candidates
// beyond the first row on demand.
type CandidateSource interface {
	GetMoreCandidates(ctx context.Context, indicator, maxCount int, cb func([]Candidate))
}

// SelectionChangeHandler is implemented by engines that track the cursor.
type SelectionChangeHandler interface {
	SelectionChange(ctx context.Context, detail session.SelectionChangeDetail)
}

// SurroundingTextChangeHandler is implemented by engines that track the text
// around the cursor.
type SurroundingTextChangeHandler interface {
	SurroundingTextChange(ctx context.Context, detail session.SurroundingTextChangeDetail)
}

// StrokeReceiver is implemented by handwriting engines.
type StrokeReceiver interface {
	SendStrokePoints(ctx context.Context, points []StrokePoint)
}

// CandidateDisplayer reports whether the engine shows a candidate panel.
type CandidateDisplayer interface {
	DisplaysCandidates() bool
}

// Glue is the capability object an engine receives in Init.
type Glue interface {
	// Path is the engine's resource namespace.
	Path() string

	// SendCandidates shows candidates on the candidate panel.
	SendCandidates(candidates []Candidate)

	// SetComposition starts or updates the composing text. A negative
	// cursor places it after the last rune of symbols.
	SetComposition(ctx context.Context, symbols string, cursor int) error

	// EndComposition clears the composing text and commits text.
	EndComposition(ctx context.Context, text string) error

	// SendKey injects a key into the session.
	SendKey(ctx context.Context, code int, repeat bool) error

	// SendString injects text one key per rune.
	//
	// Deprecated: use CommitText.
	SendString(ctx context.Context, s string) error

	// CommitText inserts text, in one edit when the session supports it.
	CommitText(ctx context.Context, text string) error

	// SetLayoutPage switches the keyboard page. Engines may only request
	// the default page; anything else panics with a *ProtocolError.
	SetLayoutPage(page int)

	// SetUpperCase changes the shift state.
	SetUpperCase(state UpperCaseState)

	// IsCapitalized reports the current shift state.
	IsCapitalized() bool

	// ReplaceSurroundingText replaces text around the cursor.
	ReplaceSurroundingText(ctx context.Context, text string, offset, length int) error

	// GetNumberOfCandidatesPerRow reports how many candidates fit one row.
	GetNumberOfCandidatesPerRow() int

	// GetData reads a resource from the engine's namespace.
	GetData(ctx context.Context, path string) ([]byte, error)
}

// Host is the set of keyboard services a Glue forwards to.
type Host interface {
	// InputContext returns the focused session, or nil when there is none.
	InputContext() session.InputContext

	// UpdateCandidates replaces the candidates on the panel.
	UpdateCandidates(candidates []Candidate)

	// SetLayoutPage switches the keyboard page.
	SetLayoutPage(page int)

	// SwitchUpperCaseState changes the shift state.
	SwitchUpperCaseState(state UpperCaseState)

	// IsUpperCase reports the shift state.
	IsUpperCase() bool

	// NumberOfCandidatesPerRow reports the candidate row capacity.
	NumberOfCandidatesPerRow() int

	// LoadData reads an engine resource.
	LoadData(ctx context.Context, engineID, path string) ([]byte, error)
}
