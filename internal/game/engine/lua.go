package engine

import (
	"encoding/json"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// LuaEngine is an Engine backed by a sandboxed GopherLua VM. The rules script
// must define two global functions operating on JSON strings:
//
//	init() -> state_json
//	apply(state_json, action_json) -> result_json | nil
//
// apply returns nil to reject an illegal action; a Lua runtime error is an
// engine fault. result_json carries {"state": ..., "detail": ..., "outcome": ...}.
type LuaEngine struct {
	mu     sync.Mutex
	state  *lua.LState
	limit  int
	script string
	logger *zap.Logger
}

// NewLuaEngine loads the rules script and verifies its entry points.
//
// Precondition: scriptPath must name a readable Lua file; logger must be non-nil.
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: Returns a ready LuaEngine or a non-nil error. The caller owns
// the engine and must call Close when done.
func NewLuaEngine(scriptPath string, instLimit int, logger *zap.Logger) (*LuaEngine, error) {
	L := newSandboxedState()
	registerJSON(L)

	cancel := armInstructionLimit(L, instLimit)
	err := L.DoFile(scriptPath)
	cancel()
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("loading rules script %q: %w", scriptPath, err)
	}

	for _, fn := range []string{"init", "apply"} {
		if L.GetGlobal(fn).Type() != lua.LTFunction {
			L.Close()
			return nil, fmt.Errorf("rules script %q does not define function %q", scriptPath, fn)
		}
	}

	return &LuaEngine{
		state:  L,
		limit:  instLimit,
		script: scriptPath,
		logger: logger,
	}, nil
}

// InitialState calls the script's init() and returns the fresh encoded state.
func (e *LuaEngine) InitialState() (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ret, err := e.call("init")
	if err != nil {
		return nil, fmt.Errorf("rules init: %w", err)
	}
	str, ok := ret.(lua.LString)
	if !ok {
		return nil, fmt.Errorf("rules init returned %s, want string", ret.Type())
	}
	if !json.Valid([]byte(str)) {
		return nil, fmt.Errorf("rules init returned malformed JSON")
	}
	return json.RawMessage(str), nil
}

// Apply calls the script's apply(state, action).
//
// Postcondition: Returns the accepted Result, ErrInvalidAction when the script
// rejects the action, or a fault error on script failure.
func (e *LuaEngine) Apply(state, action json.RawMessage) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ret, err := e.call("apply", lua.LString(state), lua.LString(action))
	if err != nil {
		return nil, fmt.Errorf("rules apply: %w", err)
	}

	if ret == lua.LNil {
		return nil, ErrInvalidAction
	}
	str, ok := ret.(lua.LString)
	if !ok {
		return nil, fmt.Errorf("rules apply returned %s, want string or nil", ret.Type())
	}

	var result Result
	if err := json.Unmarshal([]byte(str), &result); err != nil {
		return nil, fmt.Errorf("decoding rules apply result: %w", err)
	}
	if len(result.State) == 0 {
		return nil, fmt.Errorf("rules apply result carries no state")
	}
	return &result, nil
}

// Close releases the Lua VM. The engine must not be used afterwards.
func (e *LuaEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Close()
}

// call invokes the named global with a fresh instruction budget and returns
// its single return value.
func (e *LuaEngine) call(fn string, args ...lua.LValue) (lua.LValue, error) {
	cancel := armInstructionLimit(e.state, e.limit)
	defer cancel()

	if err := e.state.CallByParam(lua.P{
		Fn:      e.state.GetGlobal(fn),
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		e.logger.Warn("rules script error",
			zap.String("script", e.script),
			zap.String("fn", fn),
			zap.Error(err),
		)
		return nil, err
	}

	ret := e.state.Get(-1)
	e.state.Pop(1)
	return ret, nil
}
