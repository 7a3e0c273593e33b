package luaengine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/logging"
	"github.com/dshills/imehost/internal/session"
)

// ErrMissingMethod is returned when an engine table lacks init or click.
var ErrMissingMethod = errors.New("engine table is missing a required method")

var optionalMethods = []struct {
	name string
	cap  ime.Capability
}{
	{"activate", ime.CapActivate},
	{"deactivate", ime.CapDeactivate},
	{"select", ime.CapSelect},
	{"setLayoutParams", ime.CapSetLayoutParams},
	{"getMoreCandidates", ime.CapGetMoreCandidates},
	{"selectionChange", ime.CapSelectionChange},
	{"surroundingTextChange", ime.CapSurroundingTextChange},
	{"sendStrokePoints", ime.CapSendStrokePoints},
	{"displaysCandidates", ime.CapDisplaysCandidates},
}

// Engine adapts a Lua engine table to the engine contract. It implements
// every optional interface and reports the subset the table actually
// defines through Capabilities.
type Engine struct {
	id     string
	exec   *executor
	table  *lua.LTable
	caps   ime.Capability
	logger *logging.Logger

	violation atomic.Pointer[ime.ProtocolError]

	// displays caches the script's displaysCandidates answer, refreshed
	// on the executor after every call.
	displays atomic.Bool
}

var (
	_ ime.Engine                       = (*Engine)(nil)
	_ ime.CapabilityReporter           = (*Engine)(nil)
	_ ime.Activator                    = (*Engine)(nil)
	_ ime.Deactivator                  = (*Engine)(nil)
	_ ime.Selector                     = (*Engine)(nil)
	_ ime.LayoutParamsSetter           = (*Engine)(nil)
	_ ime.CandidateSource              = (*Engine)(nil)
	_ ime.SelectionChangeHandler       = (*Engine)(nil)
	_ ime.SurroundingTextChangeHandler = (*Engine)(nil)
	_ ime.StrokeReceiver               = (*Engine)(nil)
	_ ime.CandidateDisplayer           = (*Engine)(nil)
)

// newEngine wraps table. Must run on the executor goroutine.
func newEngine(id string, exec *executor, table *lua.LTable, logger *logging.Logger) (*Engine, error) {
	for _, name := range []string{"init", "click"} {
		if _, ok := table.RawGetString(name).(*lua.LFunction); !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingMethod, name)
		}
	}

	var caps ime.Capability
	for _, m := range optionalMethods {
		if _, ok := table.RawGetString(m.name).(*lua.LFunction); ok {
			caps |= m.cap
		}
	}

	e := &Engine{
		id:     id,
		exec:   exec,
		table:  table,
		caps:   caps,
		logger: logger.WithComponent("ime.lua").WithField("engine", id),
	}
	e.displays.Store(true)
	return e, nil
}

// Capabilities reports the optional methods the script defines.
func (e *Engine) Capabilities() ime.Capability {
	return e.caps
}

// call invokes table:method(args...) on the executor. When ret is non-nil it
// receives the first return value.
func (e *Engine) call(ctx context.Context, method string, args func(L *lua.LState) []lua.LValue, ret func(lua.LValue)) error {
	err := e.exec.execute(ctx, func(L *lua.LState) error {
		fn, ok := e.table.RawGetString(method).(*lua.LFunction)
		if !ok {
			return fmt.Errorf("method %s is not defined", method)
		}

		params := []lua.LValue{e.table}
		if args != nil {
			params = append(params, args(L)...)
		}

		nret := 0
		if ret != nil {
			nret = 1
		}
		if err := L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, params...); err != nil {
			return err
		}
		if ret != nil {
			ret(L.Get(-1))
			L.Pop(1)
		}
		e.refreshDisplays(L)
		return nil
	})

	if pe := e.violation.Swap(nil); pe != nil {
		panic(pe)
	}
	if err != nil {
		return fmt.Errorf("lua engine %s: %s: %w", e.id, method, err)
	}
	return nil
}

func (e *Engine) notify(method string, args func(L *lua.LState) []lua.LValue) {
	if err := e.call(context.Background(), method, args, nil); err != nil {
		e.logger.Error("%v", err)
	}
}

// Init hands the glue to the script.
func (e *Engine) Init(g ime.Glue) error {
	return e.call(context.Background(), "init", func(L *lua.LState) []lua.LValue {
		return []lua.LValue{e.glueObject(L, g)}
	}, nil)
}

// Click delivers a key tap.
func (e *Engine) Click(ctx context.Context, code int, at *ime.Point) error {
	return e.call(ctx, "click", func(L *lua.LState) []lua.LValue {
		if at == nil {
			return []lua.LValue{lua.LNumber(code)}
		}
		return []lua.LValue{lua.LNumber(code), lua.LNumber(at.X), lua.LNumber(at.Y)}
	}, nil)
}

// Activate passes the session snapshot and options to the script.
func (e *Engine) Activate(ctx context.Context, lang string, data ime.SessionSnapshot, opts ime.ActivationOptions) error {
	return e.call(ctx, "activate", func(L *lua.LState) []lua.LValue {
		return []lua.LValue{lua.LString(lang), snapshotToLua(L, data), optionsToLua(L, opts)}
	}, nil)
}

// Deactivate tells the script it is no longer active.
func (e *Engine) Deactivate() {
	e.notify("deactivate", nil)
}

// Select reports a candidate choice.
func (e *Engine) Select(ctx context.Context, word string, data any) error {
	return e.call(ctx, "select", func(L *lua.LState) []lua.LValue {
		return []lua.LValue{lua.LString(word), toLuaValue(L, data)}
	}, nil)
}

// SetLayoutParams passes the key geometry.
func (e *Engine) SetLayoutParams(params ime.LayoutParams) {
	e.notify("setLayoutParams", func(L *lua.LState) []lua.LValue {
		return []lua.LValue{layoutParamsToLua(L, params)}
	})
}

// GetMoreCandidates asks the script for further candidates. The script calls
// back with a candidate list.
func (e *Engine) GetMoreCandidates(ctx context.Context, indicator, maxCount int, cb func([]ime.Candidate)) {
	err := e.call(ctx, "getMoreCandidates", func(L *lua.LState) []lua.LValue {
		callback := L.NewFunction(func(L *lua.LState) int {
			if list, ok := L.Get(1).(*lua.LTable); ok {
				cb(candidatesFromLua(list))
			} else {
				cb(nil)
			}
			return 0
		})
		return []lua.LValue{lua.LNumber(indicator), lua.LNumber(maxCount), callback}
	}, nil)
	if err != nil {
		e.logger.Error("%v", err)
	}
}

// SelectionChange forwards a selectionchange event.
func (e *Engine) SelectionChange(ctx context.Context, detail session.SelectionChangeDetail) {
	if err := e.call(ctx, "selectionChange", func(L *lua.LState) []lua.LValue {
		return []lua.LValue{selectionToLua(L, detail)}
	}, nil); err != nil {
		e.logger.Error("%v", err)
	}
}

// SurroundingTextChange forwards a surroundingtextchange event.
func (e *Engine) SurroundingTextChange(ctx context.Context, detail session.SurroundingTextChangeDetail) {
	if err := e.call(ctx, "surroundingTextChange", func(L *lua.LState) []lua.LValue {
		return []lua.LValue{surroundingToLua(L, detail)}
	}, nil); err != nil {
		e.logger.Error("%v", err)
	}
}

// SendStrokePoints forwards handwriting samples.
func (e *Engine) SendStrokePoints(ctx context.Context, points []ime.StrokePoint) {
	if err := e.call(ctx, "sendStrokePoints", func(L *lua.LState) []lua.LValue {
		return []lua.LValue{strokesToLua(L, points)}
	}, nil); err != nil {
		e.logger.Error("%v", err)
	}
}

// DisplaysCandidates reports whether the script shows a candidate panel, as
// of the end of its last call. It never enters the executor, so renderers
// may ask from inside a glue callback.
func (e *Engine) DisplaysCandidates() bool {
	return e.displays.Load()
}

// refreshDisplays re-reads displaysCandidates. Must run on the executor.
func (e *Engine) refreshDisplays(L *lua.LState) {
	if !e.caps.Has(ime.CapDisplaysCandidates) {
		return
	}
	fn, ok := e.table.RawGetString("displaysCandidates").(*lua.LFunction)
	if !ok {
		return
	}
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, e.table); err != nil {
		e.logger.Error("lua engine %s: displaysCandidates: %v", e.id, err)
		return
	}
	e.displays.Store(lua.LVAsBool(L.Get(-1)))
	L.Pop(1)
}
