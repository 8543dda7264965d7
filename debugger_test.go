package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseDebugCommandBasic(t *testing.T) {
	cases := []struct {
		in   string
		kind debugCmdKind
		ok   bool
	}{
		{"", cmdBlank, true},
		{"c", cmdContinue, true},
		{"continue", cmdContinue, true},
		{"s", cmdStep, true},
		{"step 5", cmdStep, true},
		{"p $a0", cmdPrint, true},
		{"b $a0 == 1", cmdBreakpoint, true},
		{"h", cmdHelp, true},
		{"q", cmdQuit, true},
		{"r", cmdRun, true},
		{"d 1", cmdDelete, true},
		{"show reg", cmdShow, true},
		{"script 1 print(1)", cmdScript, true},
		{"bogus", cmdBlank, false},
	}
	for _, c := range cases {
		cmd, ok := parseDebugCommand(c.in)
		if ok != c.ok {
			t.Fatalf("%q: ok = %v, want %v", c.in, ok, c.ok)
		}
		if ok && cmd.kind != c.kind {
			t.Errorf("%q: kind = %v, want %v", c.in, cmd.kind, c.kind)
		}
	}
}

func TestParseDebugCommandScriptFields(t *testing.T) {
	cmd, ok := parseDebugCommand("script 2 print(regs(\"a0\"))")
	if !ok {
		t.Fatal("expected valid script command")
	}
	if cmd.index != 2 {
		t.Fatalf("index = %d, want 2", cmd.index)
	}
	if cmd.text != `print(regs("a0"))` {
		t.Fatalf("text = %q", cmd.text)
	}
}

func TestParseDebugCommandScriptMissingArgs(t *testing.T) {
	if _, ok := parseDebugCommand("script 1"); ok {
		t.Fatal("expected failure with missing lua body")
	}
}

func TestDebuggerStepAndPrint(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	bus.WriteWord(0, 0x00A00093) // addi x1, x0, 10

	var out bytes.Buffer
	dbg := NewDebugger(&out)
	dbg.Debug(cpu, strings.NewReader("step 1\nprint $ra\nquit\n"))

	if got := cpu.Regs.Get(1); got != 10 {
		t.Fatalf("x1 = %d, want 10", got)
	}
	if !strings.Contains(out.String(), "0xa") {
		t.Fatalf("expected printed value in output, got %q", out.String())
	}
}

func TestDebuggerBreakpointAndScript(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	// addi x10, x0, 1 ; addi x10, x0, 2 ; ebreak
	bus.WriteWord(0, 0x00100513)
	bus.WriteWord(4, 0x00200513)
	bus.WriteWord(8, 0x00100073)

	var out bytes.Buffer
	dbg := NewDebugger(&out)
	dbg.Debug(cpu, strings.NewReader("b $a0\nscript 1 print(\"hit\")\nrun\nquit\n"))

	if !strings.Contains(out.String(), "hit") {
		t.Fatalf("expected script output \"hit\", got %q", out.String())
	}
}

func TestDebuggerUnknownCommand(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	var out bytes.Buffer
	dbg := NewDebugger(&out)
	dbg.Debug(cpu, strings.NewReader("frobnicate\nquit\n"))
	if !strings.Contains(out.String(), "not a valid command") {
		t.Fatalf("expected error message, got %q", out.String())
	}
}

func TestDebuggerShowTrace(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	bus.WriteWord(0, 0x00A00093) // addi x1, x0, 10

	var out bytes.Buffer
	dbg := NewDebugger(&out)
	dbg.Debug(cpu, strings.NewReader("step 1\nshow trace\nquit\n"))

	if !strings.Contains(out.String(), "0x00000000") || !strings.Contains(out.String(), "li ra, 10") {
		t.Fatalf("expected trace entry for the stepped instruction, got %q", out.String())
	}
}

func TestDebuggerShowBacktrace(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	// Build one frame: fp = 0x2000, sp = 0x1ff8, return addr 0x40 at fp-4,
	// saved (zero) fp at fp-8.
	cpu.Regs.Set(8, 0x2000) // s0/fp
	bus.WriteWord(0x2000-4, 0x40)
	bus.WriteWord(0x2000-8, 0)
	cpu.Regs.SetPC(0x100)

	var out bytes.Buffer
	dbg := NewDebugger(&out)
	dbg.Debug(cpu, strings.NewReader("show backtrace\nquit\n"))

	got := out.String()
	if !strings.Contains(got, "#0  pc=0x00000100") {
		t.Fatalf("expected frame #0 at current pc, got %q", got)
	}
	if !strings.Contains(got, "#1  pc=0x00000040") {
		t.Fatalf("expected frame #1 from saved return address, got %q", got)
	}
}

func TestDebuggerDeleteUnknownBreakpoint(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	var out bytes.Buffer
	dbg := NewDebugger(&out)
	dbg.Debug(cpu, strings.NewReader("script 99 print(1)\nquit\n"))
	if !strings.Contains(out.String(), "ERROR: no breakpoint 99") {
		t.Fatalf("expected error for unknown breakpoint, got %q", out.String())
	}
}
