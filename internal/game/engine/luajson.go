package engine

import (
	"encoding/json"

	lua "github.com/yuin/gopher-lua"
)

// registerJSON installs a global "json" table with encode/decode functions so
// rules scripts can work with the broker's opaque JSON payloads.
//
// json.decode(str) -> value   raises on malformed JSON
// json.encode(value) -> str   raises on unencodable values
func registerJSON(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "decode", L.NewFunction(jsonDecode))
	L.SetField(mod, "encode", L.NewFunction(jsonEncode))
	L.SetGlobal("json", mod)
}

func jsonDecode(L *lua.LState) int {
	str := L.CheckString(1)
	var v any
	if err := json.Unmarshal([]byte(str), &v); err != nil {
		L.RaiseError("json.decode: %s", err.Error())
		return 0
	}
	L.Push(goToLua(L, v))
	return 1
}

func jsonEncode(L *lua.LState) int {
	v := luaToGo(L.CheckAny(1))
	data, err := json.Marshal(v)
	if err != nil {
		L.RaiseError("json.encode: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(data))
	return 1
}

// goToLua converts a json.Unmarshal result into the equivalent Lua value.
func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := L.NewTable()
		for _, item := range val {
			t.Append(goToLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, goToLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}

// luaToGo converts a Lua value into a json.Marshal-friendly Go value.
// Tables with sequential numeric keys become arrays; all others become maps
// with stringified keys.
func luaToGo(lv lua.LValue) any {
	switch val := lv.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		maxn := val.MaxN()
		if maxn == 0 {
			m := make(map[string]any)
			val.ForEach(func(k, v lua.LValue) {
				m[k.String()] = luaToGo(v)
			})
			return m
		}
		arr := make([]any, 0, maxn)
		for i := 1; i <= maxn; i++ {
			arr = append(arr, luaToGo(val.RawGetInt(i)))
		}
		return arr
	default:
		return nil
	}
}
