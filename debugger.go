// debugger.go - the interactive source-level debugger's REPL and state machine
package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type debuggerState int

const (
	stateInit debuggerState = iota
	stateRunning
	statePaused
	stateExit
)

type debugCmdKind int

const (
	cmdRun debugCmdKind = iota
	cmdContinue
	cmdStep
	cmdPrint
	cmdBreakpoint
	cmdDelete
	cmdBlank
	cmdShow
	cmdHelp
	cmdQuit
	cmdClear
	cmdScript
)

type debugCommand struct {
	kind  debugCmdKind
	count uint64
	text  string
	index int
}

// parseDebugCommand tokenizes one REPL line into a debugCommand, grounded
// on debug/debugger.rs's DebuggerCommand::parse.
func parseDebugCommand(input string) (debugCommand, bool) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return debugCommand{kind: cmdBlank}, true
	}
	switch strings.ToLower(fields[0]) {
	case "clear", "cls":
		return debugCommand{kind: cmdClear}, true
	case "c", "continue":
		return debugCommand{kind: cmdContinue}, true
	case "s", "step":
		if len(fields) < 2 {
			return debugCommand{kind: cmdStep, count: 1}, true
		}
		n, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return debugCommand{}, false
		}
		return debugCommand{kind: cmdStep, count: n}, true
	case "p", "print":
		if len(fields) < 2 {
			return debugCommand{}, false
		}
		return debugCommand{kind: cmdPrint, text: strings.Join(fields[1:], " ")}, true
	case "b", "breakpoint":
		if len(fields) < 2 {
			return debugCommand{}, false
		}
		return debugCommand{kind: cmdBreakpoint, text: strings.Join(fields[1:], " ")}, true
	case "h", "help":
		return debugCommand{kind: cmdHelp}, true
	case "q", "quit":
		return debugCommand{kind: cmdQuit}, true
	case "r", "run":
		return debugCommand{kind: cmdRun}, true
	case "d", "delete":
		if len(fields) < 2 {
			return debugCommand{}, false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return debugCommand{}, false
		}
		return debugCommand{kind: cmdDelete, index: n}, true
	case "show", "layout":
		if len(fields) < 2 {
			return debugCommand{}, false
		}
		return debugCommand{kind: cmdShow, text: fields[1]}, true
	case "script":
		if len(fields) < 3 {
			return debugCommand{}, false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return debugCommand{}, false
		}
		return debugCommand{kind: cmdScript, index: n, text: strings.Join(fields[2:], " ")}, true
	default:
		return debugCommand{}, false
	}
}

// Debugger drives the read-eval-print loop described by debug/debugger.rs's
// Debugger: a breakpoint set plus a small run/paused/exit state machine.
type Debugger struct {
	state debuggerState
	bps   *Breakpoints
	out   io.Writer
}

// NewDebugger returns an initialized debugger with an empty breakpoint set.
func NewDebugger(out io.Writer) *Debugger {
	return &Debugger{state: stateInit, bps: NewBreakpoints(), out: out}
}

func (d *Debugger) continueExec(cpu *CPU) {
	d.state = stateRunning
	for d.state == stateRunning {
		err := d.step(cpu, 1)
		if err != nil {
			d.state = statePaused
			if _, ok := IsEbreak(err); ok {
				fmt.Fprintln(d.out, err)
				d.state = stateExit
				return
			}
			fmt.Fprintf(d.out, "continue: %v\n", err)
		}
		d.checkBreakpoint(cpu)
	}
}

func (d *Debugger) step(cpu *CPU, count uint64) error {
	for i := uint64(0); i < count; i++ {
		if err := cpu.Step(); err != nil {
			return err
		}
	}
	d.state = statePaused
	return nil
}

func (d *Debugger) print(cpu *CPU, exp string) {
	value, ok := EvalExpr(cpu, exp)
	if !ok {
		fmt.Fprintln(d.out, "Invalid expression")
		return
	}
	fmt.Fprintf(d.out, "%#x\n", value)
}

func (d *Debugger) makeBreakpoint(cpu *CPU, exp string) {
	idx, ok := d.bps.MakeBreakpoint(cpu, exp)
	if !ok {
		fmt.Fprintln(d.out, "ERROR: Invalid expression")
		return
	}
	fmt.Fprintf(d.out, "Breakpoint %d at %s\n", idx, exp)
}

func (d *Debugger) checkBreakpoint(cpu *CPU) {
	if d.bps.Exists() && d.bps.CheckBreakpoint(cpu, d.out) {
		d.state = statePaused
	}
}

func (d *Debugger) showRegisters(cpu *CPU) {
	i := 0
	for _, rv := range cpu.Regs.Iter() {
		fmt.Fprintf(d.out, "%-12s %#10x   ", rv.Name, rv.Value)
		i++
		if i%4 == 0 {
			fmt.Fprintln(d.out)
		}
	}
	if i%4 != 0 {
		fmt.Fprintln(d.out)
	}
}

func (d *Debugger) showAsm(cpu *CPU) {
	pc := cpu.Regs.PC()
	var low uint32
	if pc > 0x10 {
		low = pc - 0x10
	}
	high := pc + 0x20
	drawLine := func() {
		fmt.Fprint(d.out, " │")
		for i := 0; i < 61; i++ {
			fmt.Fprint(d.out, "─")
		}
		fmt.Fprintln(d.out, "│")
	}
	drawLine()
	for addr := low; addr <= high; addr += 4 {
		if addr == pc {
			fmt.Fprint(d.out, ">")
		} else {
			fmt.Fprint(d.out, " ")
		}
		inst, err := cpu.Disassemble(addr)
		if err != nil {
			inst = "<???>"
		}
		fmt.Fprintf(d.out, "│0x%08x %50s│\n", addr, inst)
	}
	drawLine()
}

// showBacktrace walks the guest stack frame chain from the current fp (s0,
// x8), reading each frame's saved return address and saved fp, the way a
// RV32 function prologue (addi s0, sp, N / sw ra, -4(s0) / sw s0, -8(s0))
// lays them out. Best-effort: no DWARF, stops at the first implausible or
// zero link.
func (d *Debugger) showBacktrace(cpu *CPU) {
	fmt.Fprintln(d.out, "Backtrace:")
	fmt.Fprintf(d.out, "  #0  pc=0x%08x\n", cpu.Regs.PC())
	fp := cpu.Regs.Get(8)
	for i := 1; i <= 16 && fp >= 8; i++ {
		ra := cpu.Bus.ReadWord(fp - 4)
		prevFP := cpu.Bus.ReadWord(fp - 8)
		if ra == 0 {
			break
		}
		fmt.Fprintf(d.out, "  #%d  pc=0x%08x fp=0x%08x\n", i, ra, fp)
		if prevFP == 0 || prevFP <= fp {
			break
		}
		fp = prevFP
	}
}

// showTrace prints the retired-instruction ring buffer, oldest first, for
// postmortem inspection after a crash or unexpected halt.
func (d *Debugger) showTrace(cpu *CPU) {
	fmt.Fprintln(d.out, "Execution trace (oldest first):")
	for _, e := range cpu.Trace() {
		fmt.Fprintf(d.out, "  0x%08x  %s\n", e.PC, e.Mnemonic)
	}
}

func (d *Debugger) deleteBreakpoint(index int) { d.bps.DeleteBreakpoint(index) }

func (d *Debugger) help() {
	fmt.Fprintln(d.out, "Commands:")
	fmt.Fprintln(d.out, "  c, continue\t\tContinue execution")
	fmt.Fprintln(d.out, "  s, step [count]\tStep through [count] instructions")
	fmt.Fprintln(d.out, "  show [asm|reg|break|backtrace|trace]\tShow the current [layout]")
	fmt.Fprintln(d.out, "  p, print [expression]\tPrint the value of [expression]")
	fmt.Fprintln(d.out, "  b, breakpoint [expr]\tSet a breakpoint at [expr]")
	fmt.Fprintln(d.out, "  d, delete [number]\tDelete breakpoint [number]")
	fmt.Fprintln(d.out, "  script [number] [lua]\tRun [lua] when breakpoint [number] fires")
	fmt.Fprintln(d.out, "  r, run\t\tRun until breakpoint")
	fmt.Fprintln(d.out, "  h, help\t\tShow this help message")
	fmt.Fprintln(d.out, "  q, quit\t\tQuit the debugger")
	fmt.Fprintln(d.out, "  clear, cls\t\tClear the screen")
}

// Debug runs the REPL to completion, reading commands from r and writing
// prompts/output through d.out, until the user quits.
func (d *Debugger) Debug(cpu *CPU, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(d.out, "(rdb) ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		cmd, ok := parseDebugCommand(input)
		if !ok {
			fmt.Fprintf(d.out, "ERROR: '%s' is not a valid command\n", input)
			continue
		}
		switch cmd.kind {
		case cmdContinue:
			if d.state != statePaused {
				fmt.Fprintln(d.out, "The program is not paused.")
			} else {
				d.continueExec(cpu)
			}
		case cmdStep:
			if d.state == stateExit {
				fmt.Fprintln(d.out, "The program is exit.")
				continue
			}
			if err := d.step(cpu, cmd.count); err != nil {
				if _, ok := IsEbreak(err); ok {
					d.state = stateExit
					fmt.Fprintln(d.out, err)
				} else {
					fmt.Fprintln(d.out, err)
				}
			}
		case cmdPrint:
			d.print(cpu, cmd.text)
		case cmdBreakpoint:
			d.makeBreakpoint(cpu, cmd.text)
		case cmdQuit:
			d.state = stateExit
			return
		case cmdRun:
			d.continueExec(cpu)
		case cmdDelete:
			d.deleteBreakpoint(cmd.index)
		case cmdScript:
			if !d.bps.SetScript(cmd.index, cmd.text) {
				fmt.Fprintf(d.out, "ERROR: no breakpoint %d\n", cmd.index)
			}
		case cmdBlank:
		case cmdShow:
			switch {
			case strings.HasPrefix(cmd.text, "asm"):
				d.showAsm(cpu)
			case strings.HasPrefix(cmd.text, "reg"):
				d.showRegisters(cpu)
			case strings.HasPrefix(cmd.text, "break"):
				d.bps.Show()
			case strings.HasPrefix(cmd.text, "back"):
				d.showBacktrace(cpu)
			case strings.HasPrefix(cmd.text, "trace"):
				d.showTrace(cpu)
			default:
				fmt.Fprintf(d.out, "ERROR: '%s' is not a valid layout argument\n", cmd.text)
			}
		case cmdClear:
			fmt.Fprint(d.out, "\x1B[2J\x1B[1;1H")
		case cmdHelp:
			d.help()
		}
	}
}
