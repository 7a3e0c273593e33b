package ime

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/imehost/internal/session"
)

type clickOnly struct{}

func (clickOnly) Init(Glue) error {
	return nil
}

func (clickOnly) Click(context.Context, int, *Point) error {
	return nil
}

type fullEngine struct{ clickOnly }

func (fullEngine) Activate(context.Context, string, SessionSnapshot, ActivationOptions) error {
	return nil
}

func (fullEngine) Deactivate() {}

func (fullEngine) Select(context.Context, string, any) error {
	return nil
}

func (fullEngine) SetLayoutParams(LayoutParams) {}

func (fullEngine) GetMoreCandidates(context.Context, int, int, func([]Candidate)) {}

func (fullEngine) SelectionChange(context.Context, session.SelectionChangeDetail) {}

func (fullEngine) SurroundingTextChange(context.Context, session.SurroundingTextChangeDetail) {}

func (fullEngine) SendStrokePoints(context.Context, []StrokePoint) {}

func (fullEngine) DisplaysCandidates() bool {
	return true
}

type narrowed struct {
	fullEngine
	caps Capability
}

func (n narrowed) Capabilities() Capability { return n.caps }

func TestProbe(t *testing.T) {
	tests := []struct {
		name   string
		engine Engine
		want   Capability
	}{
		{"click only", clickOnly{}, CapNone},
		{"default", NewDefaultEngine(), CapDisplaysCandidates},
		{"full", fullEngine{}, CapActivate | CapDeactivate | CapSelect | CapSetLayoutParams |
			CapGetMoreCandidates | CapSelectionChange | CapSurroundingTextChange |
			CapSendStrokePoints | CapDisplaysCandidates},
		{"reporter narrows", narrowed{caps: CapActivate | CapSelect}, CapActivate | CapSelect},
		{"reporter cannot widen", struct {
			clickOnly
			CapabilityReporter
		}{CapabilityReporter: narrowed{caps: CapActivate}}, CapNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Probe(tt.engine); got != tt.want {
				t.Errorf("Probe() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCapabilityString(t *testing.T) {
	if got := CapNone.String(); got != "none" {
		t.Errorf("CapNone.String() = %q", got)
	}
	if got := (CapActivate | CapSelectionChange).String(); got != "activate|selectionChange" {
		t.Errorf("String() = %q", got)
	}
}

func TestInstanceAccessorsFollowCaps(t *testing.T) {
	inst := NewInstance("narrow", narrowed{caps: CapActivate}, nil)

	if _, ok := inst.Activator(); !ok {
		t.Error("Activator() not available")
	}
	if _, ok := inst.SelectionChangeHandler(); ok {
		t.Error("SelectionChangeHandler() available outside capability set")
	}
	if _, ok := inst.Deactivator(); ok {
		t.Error("Deactivator() available outside capability set")
	}
	if !inst.DisplaysCandidates() {
		t.Error("DisplaysCandidates() = false for engine that does not report it")
	}
}

func TestDefaultEngine(t *testing.T) {
	inst := NewInstance(DefaultEngineID, NewDefaultEngine(), nil)
	if !inst.IsDefault() {
		t.Error("IsDefault() = false")
	}
	if inst.DisplaysCandidates() {
		t.Error("default engine displays candidates")
	}
}

type keyGlue struct {
	Glue
	keys    []int
	repeats []bool
	err     error
}

func (g *keyGlue) SendKey(_ context.Context, code int, repeat bool) error {
	if g.err != nil {
		return g.err
	}
	g.keys = append(g.keys, code)
	g.repeats = append(g.repeats, repeat)
	return nil
}

func TestDefaultEngineForwardsKeys(t *testing.T) {
	ctx := context.Background()
	g := &keyGlue{}
	e := NewDefaultEngine()
	if err := e.Init(g); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	for _, code := range []int{'h', 'i', KeyBackspace, KeyReturn} {
		if err := e.Click(ctx, code, nil); err != nil {
			t.Fatalf("Click(%d) error = %v", code, err)
		}
	}
	want := []int{'h', 'i', KeyBackspace, KeyReturn}
	if len(g.keys) != len(want) {
		t.Fatalf("keys = %v, want %v", g.keys, want)
	}
	for i := range want {
		if g.keys[i] != want[i] {
			t.Errorf("keys[%d] = %d, want %d", i, g.keys[i], want[i])
		}
	}

	g.err = ErrNoSession
	if err := e.Click(ctx, 'x', nil); err != nil {
		t.Errorf("Click() without session error = %v, want nil", err)
	}
	g.err = errors.New("boom")
	if err := e.Click(ctx, 'x', nil); err == nil {
		t.Error("Click() should surface session errors")
	}
}

func TestDefaultEngineRepeatKey(t *testing.T) {
	ctx := context.Background()
	g := &keyGlue{}
	inst := NewInstance(DefaultEngineID, NewDefaultEngine(), g)
	if err := inst.Engine.Init(g); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := inst.Engine.Click(ctx, KeyBackspace, nil); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if err := inst.RepeatKey(ctx, KeyBackspace); err != nil {
		t.Fatalf("RepeatKey() error = %v", err)
	}
	want := []bool{false, true}
	if len(g.repeats) != len(want) || g.repeats[0] != want[0] || g.repeats[1] != want[1] {
		t.Errorf("repeat flags = %v, want %v", g.repeats, want)
	}

	g.err = ErrNoSession
	if err := inst.RepeatKey(ctx, KeyBackspace); err != nil {
		t.Errorf("RepeatKey() without session error = %v, want nil", err)
	}
}

type countingEngine struct {
	clickOnly
	clicks []int
}

func (e *countingEngine) Click(_ context.Context, code int, _ *Point) error {
	e.clicks = append(e.clicks, code)
	return nil
}

func TestRepeatKeyFallsBackToClick(t *testing.T) {
	e := &countingEngine{}
	inst := NewInstance("latin", e, nil)

	if err := inst.RepeatKey(context.Background(), KeyBackspace); err != nil {
		t.Fatalf("RepeatKey() error = %v", err)
	}
	if len(e.clicks) != 1 || e.clicks[0] != KeyBackspace {
		t.Errorf("clicks = %v, want [%d]", e.clicks, KeyBackspace)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if !r.Has(DefaultEngineID) {
		t.Fatal("new registry has no default engine")
	}

	if err := r.Register("latin", clickOnly{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("latin", clickOnly{}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("Register() duplicate error = %v, want ErrAlreadyRegistered", err)
	}

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != DefaultEngineID || ids[1] != "latin" {
		t.Errorf("IDs() = %v", ids)
	}

	if _, ok := r.Take("latin"); !ok {
		t.Fatal("Take() found nothing")
	}
	if _, ok := r.Take("latin"); ok {
		t.Error("Take() returned a module twice")
	}
	if err := r.Register("latin", clickOnly{}); err != nil {
		t.Errorf("Register() after Take() error = %v", err)
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"latin", true},
		{"jp-kanji", true},
		{"zh_hans", true},
		{"a", true},
		{"", false},
		{"Latin", false},
		{"9key", false},
		{"../etc", false},
		{"la tin", false},
	}
	for _, tt := range tests {
		err := ValidateID(tt.id)
		if (err == nil) != tt.valid {
			t.Errorf("ValidateID(%q) error = %v, valid %v", tt.id, err, tt.valid)
		}
		if err != nil && !errors.Is(err, ErrInvalidID) {
			t.Errorf("ValidateID(%q) error = %v, want ErrInvalidID", tt.id, err)
		}
	}
}

func TestProtocolError(t *testing.T) {
	err := error(&ProtocolError{Engine: "latin", Err: ErrNotExposed})
	if !errors.Is(err, ErrNotExposed) {
		t.Error("errors.Is(ProtocolError, ErrNotExposed) = false")
	}
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Engine != "latin" {
		t.Errorf("errors.As() = %v", pe)
	}
}
