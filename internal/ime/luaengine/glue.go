package luaengine

import (
	"context"
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/imehost/internal/ime"
)

// glueObject builds the Lua view of g. It runs on the executor goroutine.
func (e *Engine) glueObject(L *lua.LState, g ime.Glue) *lua.LTable {
	obj := L.NewTable()
	obj.RawSetString("path", lua.LString(g.Path()))

	// base returns the index of the first real argument so that both
	// glue:m(...) and glue.m(...) work.
	base := func(L *lua.LState) int {
		if L.Get(1) == obj {
			return 2
		}
		return 1
	}
	ctxOf := func(L *lua.LState) context.Context {
		if ctx := L.Context(); ctx != nil {
			return ctx
		}
		return context.Background()
	}
	result := func(L *lua.LState, err error) int {
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}

	methods := map[string]lua.LGFunction{
		"sendCandidates": func(L *lua.LState) int {
			list := L.CheckTable(base(L))
			g.SendCandidates(candidatesFromLua(list))
			return 0
		},
		"setComposition": func(L *lua.LState) int {
			b := base(L)
			symbols := L.CheckString(b)
			cursor := L.OptInt(b+1, -1)
			return result(L, g.SetComposition(ctxOf(L), symbols, cursor))
		},
		"endComposition": func(L *lua.LState) int {
			text := L.OptString(base(L), "")
			return result(L, g.EndComposition(ctxOf(L), text))
		},
		"sendKey": func(L *lua.LState) int {
			b := base(L)
			code := L.CheckInt(b)
			repeat := L.OptBool(b+1, false)
			return result(L, g.SendKey(ctxOf(L), code, repeat))
		},
		"sendString": func(L *lua.LState) int {
			s := L.CheckString(base(L))
			return result(L, g.SendString(ctxOf(L), s))
		},
		"commitText": func(L *lua.LState) int {
			s := L.CheckString(base(L))
			return result(L, g.CommitText(ctxOf(L), s))
		},
		"setLayoutPage": func(L *lua.LState) int {
			page := L.CheckInt(base(L))
			if err := e.setLayoutPage(g, page); err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},
		"setUpperCase": func(L *lua.LState) int {
			t := L.CheckTable(base(L))
			g.SetUpperCase(ime.UpperCaseState{
				IsUpperCase:       lua.LVAsBool(t.RawGetString("isUpperCase")),
				IsUpperCaseLocked: lua.LVAsBool(t.RawGetString("isUpperCaseLocked")),
			})
			return 0
		},
		"isCapitalized": func(L *lua.LState) int {
			L.Push(lua.LBool(g.IsCapitalized()))
			return 1
		},
		"replaceSurroundingText": func(L *lua.LState) int {
			b := base(L)
			text := L.CheckString(b)
			offset := L.OptInt(b+1, 0)
			length := L.OptInt(b+2, 0)
			return result(L, g.ReplaceSurroundingText(ctxOf(L), text, offset, length))
		},
		"getNumberOfCandidatesPerRow": func(L *lua.LState) int {
			L.Push(lua.LNumber(g.GetNumberOfCandidatesPerRow()))
			return 1
		},
		"getData": func(L *lua.LState) int {
			path := L.CheckString(base(L))
			data, err := g.GetData(ctxOf(L), path)
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			L.Push(lua.LString(data))
			return 1
		},
	}
	for name, fn := range methods {
		obj.RawSetString(name, L.NewFunction(fn))
	}
	return obj
}

// setLayoutPage forwards to the glue and turns its protocol panic into a
// recorded violation, which the engine re-raises on the calling goroutine
// once the script call unwinds.
func (e *Engine) setLayoutPage(g ime.Glue, page int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var pe *ime.ProtocolError
			if perr, ok := r.(error); ok && errors.As(perr, &pe) {
				e.violation.Store(pe)
				err = pe
				return
			}
			panic(r)
		}
	}()
	g.SetLayoutPage(page)
	return nil
}
