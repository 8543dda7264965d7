// lua.go - scriptable breakpoint actions: a breakpoint may carry a Lua
// snippet that runs, with read-only access to registers and memory, when
// the breakpoint fires, instead of just printing its watched value.
package main

import (
	"fmt"
	"io"

	lua "github.com/yuin/gopher-lua"
)

// RunBreakpointScript executes script in a fresh Lua state seeded with a
// regs() function (regs("a0") reads a register by name) and a peek(addr)
// function (reads a 32-bit little-endian word from guest memory), both
// read-only. print() output is collected and written to out only once the
// script finishes without error; on a Lua error nothing is written and the
// error is returned to the caller rather than aborting the debugger.
func RunBreakpointScript(cpu *CPU, out io.Writer, script string) error {
	L := lua.NewState()
	defer L.Close()

	L.SetGlobal("regs", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		v, ok := cpu.Regs.ReadByName(name)
		if !ok {
			L.RaiseError("unknown register %q", name)
			return 0
		}
		L.Push(lua.LNumber(v))
		return 1
	}))

	L.SetGlobal("peek", L.NewFunction(func(L *lua.LState) int {
		addr := uint32(L.CheckInt64(1))
		L.Push(lua.LNumber(cpu.Bus.ReadWord(addr)))
		return 1
	}))

	var printed []string
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		line := ""
		for i := 1; i <= n; i++ {
			if i > 1 {
				line += "\t"
			}
			line += L.ToStringMeta(L.Get(i)).String()
		}
		printed = append(printed, line)
		return 0
	}))

	if err := L.DoString(script); err != nil {
		return err
	}
	for _, line := range printed {
		fmt.Fprintln(out, line)
	}
	return nil
}
