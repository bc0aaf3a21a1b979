package plugin

import (
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/cmd"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/event"
)

// LuaLoader opens scripted plugin bundles. A bundle is a Lua file whose
// chunk returns a table:
//
//	return {
//	  name = "echo",
//	  version = "1.0.0",
//	  init = function() return {} end,
//	  quit = function(env) end,
//	  add_agent_props = function(env) msa.set_prop("mood", "normal") end,
//	  add_commands = function(env)
//	    return {
//	      { name = "ECHO", description = "Echoes text", usage = "text",
//	        handler = function(args) msa.say(args[1]) end },
//	    }
//	  end,
//	}
//
// Plugin code reaches the runtime through the msa table: say, generate,
// delay, add_timer, remove_timer, set_prop.
type LuaLoader struct{}

func (LuaLoader) Open(path string) (Bundle, error) {
	L := lua.NewState()
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("load lua bundle: %w", err)
	}
	var ret lua.LValue = lua.LNil
	if L.GetTop() > 0 {
		ret = L.Get(-1)
		L.Pop(1)
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("%w: lua bundle did not return a table", ErrBadInfo)
	}
	return &luaBundle{L: L, tbl: tbl}, nil
}

// luaBundle adapts a Lua table to the plugin ABI. The LState is not
// goroutine-safe, so every entry into it is serialized through mu.
type luaBundle struct {
	mu  sync.Mutex
	L   *lua.LState
	tbl *lua.LTable
}

func (b *luaBundle) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.L.Close()
	return nil
}

func (b *luaBundle) Info() (*Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	name := lua.LVAsString(b.L.GetField(b.tbl, "name"))
	if name == "" {
		return nil, fmt.Errorf("%w: lua bundle has no name", ErrBadInfo)
	}
	info := &Info{
		Name:    name,
		Version: lua.LVAsString(b.L.GetField(b.tbl, "version")),
	}

	if fn, ok := b.L.GetField(b.tbl, "init").(*lua.LFunction); ok {
		info.Functions.Init = func(h Host) (any, error) {
			return b.call(h, fn)
		}
	}
	if fn, ok := b.L.GetField(b.tbl, "quit").(*lua.LFunction); ok {
		info.Functions.Quit = b.envFunc(fn)
	}
	if fn, ok := b.L.GetField(b.tbl, "add_input_devices").(*lua.LFunction); ok {
		info.Functions.AddInputDevices = b.envFunc(fn)
	}
	if fn, ok := b.L.GetField(b.tbl, "add_output_devices").(*lua.LFunction); ok {
		info.Functions.AddOutputDevices = b.envFunc(fn)
	}
	if fn, ok := b.L.GetField(b.tbl, "add_agent_props").(*lua.LFunction); ok {
		info.Functions.AddAgentProps = b.envFunc(fn)
	}
	if fn, ok := b.L.GetField(b.tbl, "add_commands").(*lua.LFunction); ok {
		info.Functions.AddCommands = func(h Host, env any) ([]*cmd.Command, error) {
			return b.addCommands(h, fn, env)
		}
	}
	return info, nil
}

// envFunc wraps a Lua function taking the plugin's local environment.
func (b *luaBundle) envFunc(fn *lua.LFunction) func(Host, any) error {
	return func(h Host, env any) error {
		_, err := b.call(h, fn, toLValue(env))
		return err
	}
}

// call invokes a Lua function under the state lock with the msa API bound
// to the given host.
func (b *luaBundle) call(h Host, fn *lua.LFunction, args ...lua.LValue) (lua.LValue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callLocked(h, fn, args...)
}

func (b *luaBundle) callLocked(h Host, fn *lua.LFunction, args ...lua.LValue) (lua.LValue, error) {
	b.bindHost(h)
	if err := b.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		return lua.LNil, fmt.Errorf("lua call: %w", err)
	}
	ret := b.L.Get(-1)
	b.L.Pop(1)
	return ret, nil
}

func (b *luaBundle) addCommands(h Host, fn *lua.LFunction, env any) ([]*cmd.Command, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ret, err := b.callLocked(h, fn, toLValue(env))
	if err != nil {
		return nil, err
	}
	list, ok := ret.(*lua.LTable)
	if !ok {
		if ret == lua.LNil {
			return nil, nil
		}
		return nil, fmt.Errorf("add_commands returned %s, want table", ret.Type())
	}

	var commands []*cmd.Command
	var parseErr error
	list.ForEach(func(_, v lua.LValue) {
		entry, ok := v.(*lua.LTable)
		if !ok {
			parseErr = fmt.Errorf("command entry is %s, want table", v.Type())
			return
		}
		name := lua.LVAsString(b.L.GetField(entry, "name"))
		handler, ok := b.L.GetField(entry, "handler").(*lua.LFunction)
		if name == "" || !ok {
			parseErr = fmt.Errorf("command entry needs name and handler")
			return
		}
		commands = append(commands, &cmd.Command{
			Name:        name,
			Description: lua.LVAsString(b.L.GetField(entry, "description")),
			Usage:       lua.LVAsString(b.L.GetField(entry, "usage")),
			Options:     lua.LVAsString(b.L.GetField(entry, "options")),
			Handler:     b.commandHandler(h, handler),
		})
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return commands, nil
}

// commandHandler bridges a Lua function into the command registry. The
// positional arguments arrive as a Lua array.
func (b *luaBundle) commandHandler(h Host, fn *lua.LFunction) cmd.Handler {
	return func(params cmd.ParamList) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		args := b.L.NewTable()
		for _, a := range params.Args {
			args.Append(lua.LString(a))
		}
		_, err := b.callLocked(h, fn, args)
		return err
	}
}

// bindHost installs the msa API table for the host. Rebound on every call
// so the functions always close over the current host.
func (b *luaBundle) bindHost(h Host) {
	api := b.L.NewTable()
	b.L.SetField(api, "say", b.L.NewFunction(func(L *lua.LState) int {
		h.Agent().Say(L.CheckString(1))
		return 0
	}))
	b.L.SetField(api, "set_prop", b.L.NewFunction(func(L *lua.LState) int {
		h.Agent().SetProp(L.CheckString(1), L.CheckString(2))
		return 0
	}))
	b.L.SetField(api, "generate", b.L.NewFunction(func(L *lua.LState) int {
		topic := b.checkTopic(L, 1)
		h.Generate(topic, optionalTextArgs(L, 2))
		return 0
	}))
	b.L.SetField(api, "delay", b.L.NewFunction(func(L *lua.LState) int {
		id, err := h.Delay(checkMillis(L, 1), b.checkTopic(L, 2), optionalTextArgs(L, 3))
		if err != nil {
			L.RaiseError("delay failed: %s", err.Error())
			return 0
		}
		L.Push(lua.LNumber(id))
		return 1
	}))
	b.L.SetField(api, "add_timer", b.L.NewFunction(func(L *lua.LState) int {
		id, err := h.AddTimer(checkMillis(L, 1), b.checkTopic(L, 2), optionalTextArgs(L, 3))
		if err != nil {
			L.RaiseError("add_timer failed: %s", err.Error())
			return 0
		}
		L.Push(lua.LNumber(id))
		return 1
	}))
	b.L.SetField(api, "remove_timer", b.L.NewFunction(func(L *lua.LState) int {
		if err := h.RemoveTimer(int16(L.CheckInt(1))); err != nil {
			L.RaiseError("remove_timer failed: %s", err.Error())
		}
		return 0
	}))
	b.L.SetGlobal("msa", api)
}

func (b *luaBundle) checkTopic(L *lua.LState, pos int) event.Topic {
	name := L.CheckString(pos)
	topic, err := event.ParseTopic(name)
	if err != nil {
		L.RaiseError("unknown topic: %s", name)
	}
	return topic
}

func toLValue(env any) lua.LValue {
	if lv, ok := env.(lua.LValue); ok {
		return lv
	}
	return lua.LNil
}

func optionalTextArgs(L *lua.LState, pos int) event.Args {
	if L.GetTop() >= pos {
		return event.NewTextArgs(L.CheckString(pos))
	}
	return event.EmptyArgs{}
}

func checkMillis(L *lua.LState, pos int) time.Duration {
	return time.Duration(L.CheckInt64(pos)) * time.Millisecond
}
