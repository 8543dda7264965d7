// breakpoint.go - the debugger's breakpoint set
package main

import (
	"fmt"
	"io"
)

// breakpoint is a value-watch: it fires when exp's evaluated value differs
// from the value it had when the breakpoint was created. Grounded on
// debug/breakpoint.rs's Breakpoint, extended with an optional Lua action run
// in place of the default "Breakpoint hit" message.
type breakpoint struct {
	valid    bool
	expr     string
	lastValu uint64
	script   string
}

// Breakpoints is the debugger's breakpoint table. Slot 0 is a reserved
// sentinel (exp "0", always valid, never shown or matched against anything
// meaningful) matching debug/breakpoint.rs's Breakpoints::new.
type Breakpoints struct {
	list []breakpoint
}

// NewBreakpoints returns a breakpoint set with its reserved slot 0 in place.
func NewBreakpoints() *Breakpoints {
	return &Breakpoints{list: []breakpoint{{valid: true, expr: "0"}}}
}

// MakeBreakpoint evaluates exp against the current machine state and either
// reuses a previously-disabled slot with the same expression or appends a
// new one, returning the slot index.
func (b *Breakpoints) MakeBreakpoint(cpu *CPU, exp string) (int, bool) {
	value, ok := EvalExpr(cpu, exp)
	if !ok {
		return 0, false
	}
	for i := range b.list {
		if !b.list[i].valid && b.list[i].expr == exp {
			b.list[i].valid = true
			b.list[i].lastValu = value
			return i, true
		}
	}
	b.list = append(b.list, breakpoint{valid: true, expr: exp, lastValu: value})
	return len(b.list) - 1, true
}

// CheckBreakpoint re-evaluates every valid breakpoint and reports whether
// any of them changed value since it was set. A breakpoint with a Lua
// script attached runs it instead of the default "Breakpoint hit" message.
func (b *Breakpoints) CheckBreakpoint(cpu *CPU, out io.Writer) bool {
	for _, bp := range b.list {
		if !bp.valid {
			continue
		}
		value, ok := EvalExpr(cpu, bp.expr)
		if !ok {
			continue
		}
		if value != bp.lastValu {
			if bp.script != "" {
				if err := RunBreakpointScript(cpu, out, bp.script); err != nil {
					fmt.Fprintf(out, "breakpoint script error: %v\n", err)
				}
			} else {
				fmt.Fprintf(out, "Breakpoint hit: %s = %d\n", bp.expr, value)
			}
			return true
		}
	}
	return false
}

// SetScript attaches a Lua snippet to the breakpoint at index, run in place
// of the default hit message the next time it fires.
func (b *Breakpoints) SetScript(index int, script string) bool {
	if index < 0 || index >= len(b.list) {
		return false
	}
	b.list[index].script = script
	return true
}

// DeleteBreakpoint disables the breakpoint at index, a no-op if out of range.
func (b *Breakpoints) DeleteBreakpoint(index int) {
	if index < 0 || index >= len(b.list) {
		return
	}
	b.list[index].valid = false
}

// Show prints every active breakpoint other than the reserved slot 0.
func (b *Breakpoints) Show() {
	for i, bp := range b.list {
		if i == 0 || !bp.valid {
			continue
		}
		fmt.Printf("%d: %s\n", i, bp.expr)
	}
}

// Exists reports whether any breakpoint (other than the always-valid
// sentinel) is active.
func (b *Breakpoints) Exists() bool {
	for i, bp := range b.list {
		if i != 0 && bp.valid {
			return true
		}
	}
	return false
}
