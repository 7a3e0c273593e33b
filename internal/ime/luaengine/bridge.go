package luaengine

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/session"
)

// toGoValue converts a Lua value to plain Go data. Tables become []any when
// they are sequences and map[string]any otherwise. Functions and cycles
// become nil.
func toGoValue(lv lua.LValue) any {
	return toGoValueVisited(lv, make(map[*lua.LTable]bool))
}

func toGoValueVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = toGoValueVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = toGoValueVisited(v, visited)
	})
	return m
}

// toLuaValue converts plain Go data back to Lua.
func toLuaValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, toLuaValue(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, toLuaValue(L, item))
		}
		return t
	default:
		ud := L.NewUserData()
		ud.Value = v
		return ud
	}
}

// candidatesFromLua reads a candidate list. Entries are either
// {text=, data=} tables, {"word", data} pairs or bare strings.
func candidatesFromLua(t *lua.LTable) []ime.Candidate {
	out := make([]ime.Candidate, 0, t.Len())
	for i := 1; i <= t.Len(); i++ {
		switch entry := t.RawGetInt(i).(type) {
		case lua.LString:
			out = append(out, ime.Candidate{Text: string(entry)})
		case *lua.LTable:
			if text, ok := entry.RawGetString("text").(lua.LString); ok {
				out = append(out, ime.Candidate{Text: string(text), Data: toGoValue(entry.RawGetString("data"))})
				continue
			}
			if text, ok := entry.RawGetInt(1).(lua.LString); ok {
				out = append(out, ime.Candidate{Text: string(text), Data: toGoValue(entry.RawGetInt(2))})
			}
		}
	}
	return out
}

func snapshotToLua(L *lua.LState, s ime.SessionSnapshot) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("fieldType", lua.LString(s.FieldType))
	t.RawSetString("inputMode", lua.LString(s.InputMode))
	t.RawSetString("selectionStart", lua.LNumber(s.SelectionStart))
	t.RawSetString("selectionEnd", lua.LNumber(s.SelectionEnd))
	t.RawSetString("value", lua.LString(s.Value))
	return t
}

func optionsToLua(L *lua.LState, o ime.ActivationOptions) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("suggest", lua.LBool(o.Suggest))
	t.RawSetString("correct", lua.LBool(o.Correct))
	t.RawSetString("correctPunctuation", lua.LBool(o.CorrectPunctuation))
	return t
}

func layoutParamsToLua(L *lua.LState, p ime.LayoutParams) *lua.LTable {
	keys := L.NewTable()
	for i, k := range p.KeyArray {
		kt := L.NewTable()
		kt.RawSetString("code", lua.LNumber(k.Code))
		kt.RawSetString("x", lua.LNumber(k.X))
		kt.RawSetString("y", lua.LNumber(k.Y))
		kt.RawSetString("width", lua.LNumber(k.Width))
		kt.RawSetString("height", lua.LNumber(k.Height))
		keys.RawSetInt(i+1, kt)
	}

	t := L.NewTable()
	t.RawSetString("keyboardWidth", lua.LNumber(p.KeyboardWidth))
	t.RawSetString("keyboardHeight", lua.LNumber(p.KeyboardHeight))
	t.RawSetString("keyArray", keys)
	return t
}

func selectionToLua(L *lua.LState, d session.SelectionChangeDetail) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("selectionStart", lua.LNumber(d.SelectionStart))
	t.RawSetString("selectionEnd", lua.LNumber(d.SelectionEnd))
	t.RawSetString("ownAction", lua.LBool(d.OwnAction))
	return t
}

func surroundingToLua(L *lua.LState, d session.SurroundingTextChangeDetail) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("beforeString", lua.LString(d.BeforeString))
	t.RawSetString("afterString", lua.LString(d.AfterString))
	t.RawSetString("ownAction", lua.LBool(d.OwnAction))
	return t
}

func strokesToLua(L *lua.LState, points []ime.StrokePoint) *lua.LTable {
	t := L.NewTable()
	for i, p := range points {
		pt := L.NewTable()
		pt.RawSetString("x", lua.LNumber(p.X))
		pt.RawSetString("y", lua.LNumber(p.Y))
		t.RawSetInt(i+1, pt)
	}
	return t
}
