package luaengine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/ime/glue"
	"github.com/dshills/imehost/internal/ime/imetest"
	"github.com/dshills/imehost/internal/logging"
)

const echoScript = `
local M = {}

function M:init(glue)
  self.glue = glue
end

function M:click(code, x, y)
  if x ~= nil then
    self.glue:commitText("@" .. x .. "," .. y)
    return
  end
  self.glue:sendKey(code)
end

function M:activate(lang, data, opts)
  self.glue:sendCandidates({
    {text = lang, data = {n = 1}},
    {"pair", 2},
    "plain",
  })
  self.glue:setComposition(data.value .. "|" .. tostring(opts.suggest))
end

function M:select(word, data)
  self.glue.commitText(word)
end

function M:getMoreCandidates(indicator, max, cb)
  cb({"more" .. indicator})
end

function M:displaysCandidates()
  return false
end

ime.register("echo", M)
`

const pagerScript = `
local M = {}
function M:init(glue) self.glue = glue end
function M:click(code) self.glue:setLayoutPage(code) end
ime.register("pager", M)
`

func writeScript(t *testing.T, dir, id, src string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, id), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id, id+".lua"), []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

// fetchEngine loads id from a fresh directory and initializes it against a
// recording host.
func fetchEngine(t *testing.T, id, src string) (*Engine, *imetest.Host) {
	t.Helper()
	dir := t.TempDir()
	writeScript(t, dir, id, src)

	reg := ime.NewRegistry()
	f := NewFetcher(dir, reg, logging.NullLogger)
	t.Cleanup(f.Close)

	if err := f.Fetch(context.Background(), id); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	e, ok := reg.Take(id)
	if !ok {
		t.Fatalf("Take(%q) found nothing", id)
	}

	host := imetest.NewHost()
	le := e.(*Engine)
	if err := le.Init(glue.New(id, host, logging.NullLogger)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return le, host
}

func TestFetchRegistersCapabilities(t *testing.T) {
	e, _ := fetchEngine(t, "echo", echoScript)

	want := ime.CapActivate | ime.CapSelect | ime.CapGetMoreCandidates | ime.CapDisplaysCandidates
	if got := e.Capabilities(); got != want {
		t.Errorf("Capabilities() = %v, want %v", got, want)
	}
	if got := ime.Probe(e); got != want {
		t.Errorf("Probe() = %v, want %v", got, want)
	}
	if e.DisplaysCandidates() {
		t.Error("DisplaysCandidates() = true, want false")
	}
}

func TestEngineClick(t *testing.T) {
	e, host := fetchEngine(t, "echo", echoScript)
	sess := imetest.NewSession("s1", "", 0, 0)
	host.SetInputContext(sess)

	if err := e.Click(context.Background(), 'a', nil); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	calls := sess.Calls()
	if len(calls) != 1 || calls[0].Method != "SendKey" {
		t.Fatalf("session calls = %v, want one SendKey", calls)
	}
	if diff := cmp.Diff([]any{0, int('a'), 0, false}, calls[0].Args); diff != "" {
		t.Errorf("SendKey args mismatch (-want +got):\n%s", diff)
	}

	ins := imetest.InsertingSession{Session: imetest.NewSession("s2", "", 0, 0)}
	host.SetInputContext(ins)
	if err := e.Click(context.Background(), 'b', &ime.Point{X: 3, Y: 4}); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	got := ins.Calls()
	if len(got) != 1 || got[0].Method != "InsertText" || got[0].Args[0] != "@3,4" {
		t.Errorf("session calls = %v, want InsertText(@3,4)", got)
	}
}

func TestEngineClickNoSession(t *testing.T) {
	e, host := fetchEngine(t, "echo", echoScript)

	// sendKey returns nil, message to the script. The call itself succeeds.
	if err := e.Click(context.Background(), 'a', nil); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if n := len(host.Calls()); n != 0 {
		t.Errorf("host calls = %d, want 0", n)
	}
}

func TestEngineActivate(t *testing.T) {
	e, host := fetchEngine(t, "echo", echoScript)
	sess := imetest.NewSession("s1", "", 0, 0)
	host.SetInputContext(sess)

	data := ime.SessionSnapshot{FieldType: "text", Value: "hi"}
	opts := ime.ActivationOptions{Suggest: true}
	if err := e.Activate(context.Background(), "fr", data, opts); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	want := []ime.Candidate{
		{Text: "fr", Data: map[string]any{"n": int64(1)}},
		{Text: "pair", Data: int64(2)},
		{Text: "plain"},
	}
	if diff := cmp.Diff(want, host.Candidates()); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}

	calls := sess.Calls()
	if len(calls) != 1 || calls[0].Method != "SetComposition" || calls[0].Args[0] != "hi|true" {
		t.Errorf("session calls = %v, want SetComposition(hi|true)", calls)
	}
}

func TestEngineSelectDotCall(t *testing.T) {
	e, host := fetchEngine(t, "echo", echoScript)
	ins := imetest.InsertingSession{Session: imetest.NewSession("s1", "", 0, 0)}
	host.SetInputContext(ins)

	if err := e.Select(context.Background(), "word", nil); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if ins.Count("InsertText") != 1 {
		t.Errorf("InsertText calls = %d, want 1", ins.Count("InsertText"))
	}
}

func TestEngineGetMoreCandidates(t *testing.T) {
	e, _ := fetchEngine(t, "echo", echoScript)

	var got []ime.Candidate
	e.GetMoreCandidates(context.Background(), 7, 10, func(c []ime.Candidate) {
		got = c
	})
	if diff := cmp.Diff([]ime.Candidate{{Text: "more7"}}, got); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineMissingOptionalMethod(t *testing.T) {
	e, _ := fetchEngine(t, "echo", echoScript)

	err := e.call(context.Background(), "deactivate", nil, nil)
	if err == nil {
		t.Fatal("call(deactivate) error = nil, want error")
	}
}

func TestSetLayoutPageViolation(t *testing.T) {
	e, host := fetchEngine(t, "pager", pagerScript)
	host.SetInputContext(imetest.NewSession("s1", "", 0, 0))

	if err := e.Click(context.Background(), 0, nil); err != nil {
		t.Fatalf("Click(0) error = %v", err)
	}
	if host.Count("SetLayoutPage") != 1 {
		t.Fatalf("SetLayoutPage calls = %d, want 1", host.Count("SetLayoutPage"))
	}

	defer func() {
		r := recover()
		pe, ok := r.(*ime.ProtocolError)
		if !ok {
			t.Fatalf("recover() = %v, want *ime.ProtocolError", r)
		}
		if !errors.Is(pe, ime.ErrLayoutPage) || pe.Engine != "pager" {
			t.Errorf("ProtocolError = %v", pe)
		}
	}()
	_ = e.Click(context.Background(), 1, nil)
	t.Fatal("Click(1) did not panic")
}

func TestGetData(t *testing.T) {
	const src = `
local M = {}
function M:init(glue) self.glue = glue end
function M:click(code)
  local data, err = self.glue:getData("words.txt")
  if data == nil then error(err) end
  self.glue:sendCandidates({data})
end
ime.register("data", M)
`
	e, host := fetchEngine(t, "data", src)
	host.SetData("data", "words.txt", []byte("hello"))

	if err := e.Click(context.Background(), 1, nil); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if diff := cmp.Diff([]ime.Candidate{{Text: "hello"}}, host.Candidates()); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
	if host.Count("LoadData") != 1 {
		t.Errorf("LoadData calls = %d, want 1", host.Count("LoadData"))
	}
}

func TestScriptErrorIsReturned(t *testing.T) {
	const src = `
local M = {}
function M:init(glue) end
function M:click(code) error("boom") end
ime.register("broken", M)
`
	e, _ := fetchEngine(t, "broken", src)
	if err := e.Click(context.Background(), 1, nil); err == nil {
		t.Fatal("Click() error = nil, want error")
	}
}

func TestCallTimeout(t *testing.T) {
	const src = `
local M = {}
function M:init(glue) end
function M:click(code) while true do end end
ime.register("spin", M)
`
	e, _ := fetchEngine(t, "spin", src)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := e.Click(ctx, 1, nil); err == nil {
		t.Fatal("Click() error = nil, want timeout")
	}
}

func TestNestedCallDoesNotBlockExecutor(t *testing.T) {
	exec := newExecutor(newState(), 0)
	defer exec.close()

	var inner error
	outer := exec.execute(context.Background(), func(L *lua.LState) error {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		inner = exec.execute(ctx, func(L *lua.LState) error { return nil })
		return nil
	})
	if outer != nil {
		t.Fatalf("outer execute() error = %v", outer)
	}
	if !errors.Is(inner, context.DeadlineExceeded) {
		t.Errorf("nested execute() error = %v, want deadline exceeded", inner)
	}

	// The abandoned call is skipped and the executor keeps serving.
	if err := exec.execute(context.Background(), func(L *lua.LState) error { return nil }); err != nil {
		t.Errorf("execute() after nested call error = %v", err)
	}
}

func TestDisplaysCandidatesFollowsScript(t *testing.T) {
	const src = `
local M = {}
function M:init(glue) self.show = false end
function M:click(code) self.show = code == 1 end
function M:displaysCandidates() return self.show end
ime.register("toggle", M)
`
	e, _ := fetchEngine(t, "toggle", src)
	ctx := context.Background()

	if e.DisplaysCandidates() {
		t.Error("DisplaysCandidates() after init = true, want false")
	}
	if err := e.Click(ctx, 1, nil); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if !e.DisplaysCandidates() {
		t.Error("DisplaysCandidates() = false, want true")
	}
	if err := e.Click(ctx, 2, nil); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if e.DisplaysCandidates() {
		t.Error("DisplaysCandidates() = true, want false")
	}
}

func TestSandbox(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"io", "io"},
		{"os", "os"},
		{"debug", "debug"},
		{"dofile", "dofile"},
		{"loadstring", "loadstring"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newState()
			defer L.Close()
			if err := L.DoString("result = " + tt.expr); err != nil {
				t.Fatalf("DoString() error = %v", err)
			}
			if v := L.GetGlobal("result"); v.String() != "nil" {
				t.Errorf("%s = %v, want nil", tt.expr, v)
			}
		})
	}

	L := newState()
	defer L.Close()
	if err := L.DoString(`require("os")`); err == nil {
		t.Error(`require("os") error = nil, want error`)
	}
	if err := L.DoString(`local s = require("string"); assert(s.upper("a") == "A")`); err != nil {
		t.Errorf(`require("string") error = %v`, err)
	}
}

func TestFetchErrors(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "silent", `local x = 1`)
	writeScript(t, dir, "noclick", `ime.register("noclick", {init = function() end})`)
	writeScript(t, dir, "syntax", `this is not lua`)

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"missing script", "absent", ErrScriptNotFound},
		{"invalid id", "Bad", ime.ErrInvalidID},
		{"missing method", "noclick", nil},
		{"syntax error", "syntax", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := ime.NewRegistry()
			f := NewFetcher(dir, reg, logging.NullLogger)
			defer f.Close()

			err := f.Fetch(context.Background(), tt.id)
			if err == nil {
				t.Fatal("Fetch() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Fetch() error = %v, want %v", err, tt.wantErr)
			}
			if reg.Has(tt.id) {
				t.Errorf("registry has %q after failed fetch", tt.id)
			}
		})
	}

	// A script that runs cleanly but registers nothing is not an error here;
	// the loader reports it.
	reg := ime.NewRegistry()
	f := NewFetcher(dir, reg, logging.NullLogger)
	defer f.Close()
	if err := f.Fetch(context.Background(), "silent"); err != nil {
		t.Fatalf("Fetch(silent) error = %v", err)
	}
	if reg.Has("silent") {
		t.Error("registry has silent")
	}
}

func TestAvailable(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "latin", pagerScript)
	writeScript(t, dir, "hangul", pagerScript)
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(dir, ime.NewRegistry(), logging.NullLogger)
	got, err := f.Available()
	if err != nil {
		t.Fatalf("Available() error = %v", err)
	}
	if diff := cmp.Diff([]string{"hangul", "latin"}, got); diff != "" {
		t.Errorf("Available() mismatch (-want +got):\n%s", diff)
	}

	missing := NewFetcher(filepath.Join(dir, "nope"), ime.NewRegistry(), logging.NullLogger)
	if ids, err := missing.Available(); err != nil || ids != nil {
		t.Errorf("Available() = %v, %v, want nil, nil", ids, err)
	}
}

func TestToGoValue(t *testing.T) {
	L := newState()
	defer L.Close()
	if err := L.DoString(`v = {1, "two", {k = true}}`); err != nil {
		t.Fatal(err)
	}
	want := []any{int64(1), "two", map[string]any{"k": true}}
	if diff := cmp.Diff(want, toGoValue(L.GetGlobal("v"))); diff != "" {
		t.Errorf("toGoValue() mismatch (-want +got):\n%s", diff)
	}
}
