// Package luaengine runs input method engines written in Lua.
//
// An engine script lives at <dir>/<id>/<id>.lua and registers itself through
// the global ime module:
//
//	local latin = {}
//
//	function latin:init(glue)
//	    self.glue = glue
//	end
//
//	function latin:click(code, x, y)
//	    self.glue:sendKey(code)
//	end
//
//	ime.register("latin", latin)
//
// init and click are required. Every other engine operation is optional and
// is detected from the functions present on the table when the script
// registers: activate, deactivate, select, setLayoutParams,
// getMoreCandidates, selectionChange, surroundingTextChange,
// sendStrokePoints and displaysCandidates.
//
// # Glue
//
// The glue object passed to init mirrors the host glue. Methods may be called
// with either glue:method(...) or glue.method(...):
//
//	glue.path                              engine resource namespace
//	glue:sendCandidates(list)              list of {text=, data=} or {"word", data}
//	glue:setComposition(symbols [, cursor])
//	glue:endComposition([text])
//	glue:sendKey(code [, repeat])
//	glue:sendString(s)                     deprecated
//	glue:commitText(text)
//	glue:setLayoutPage(page)
//	glue:setUpperCase({isUpperCase=, isUpperCaseLocked=})
//	glue:isCapitalized()
//	glue:replaceSurroundingText(text, offset, length)
//	glue:getNumberOfCandidatesPerRow()
//	glue:getData(path)                     returns data or nil, err
//
// Calls that reach the session return true, or nil and an error message.
//
// # Execution
//
// Each script gets its own sandboxed state: io, os, debug and package
// loading are unavailable, and require only serves string, table and math.
// gopher-lua states are not goroutine-safe, so every call into a script is
// marshalled onto a single executor goroutine owned by that script.
package luaengine
