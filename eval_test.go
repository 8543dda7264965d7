package main

import "testing"

func evalCPU() *CPU {
	bus := NewBus()
	cpu := NewCPU(bus)
	cpu.Regs.Set(10, 42) // a0
	cpu.Regs.SetPC(0x1000)
	bus.WriteWord(0x1000, 0xdeadbeef)
	return cpu
}

func TestEvalExprArithmetic(t *testing.T) {
	cpu := evalCPU()
	cases := []struct {
		expr string
		want uint64
	}{
		{"1 + 2", 3},
		{"10 - 4", 6},
		{"3 * 4", 12},
		{"10 / 2", 5},
		{"0x10 + 1", 17},
		{"(1 + 2) * 3", 9},
	}
	for _, c := range cases {
		got, ok := EvalExpr(cpu, c.expr)
		if !ok {
			t.Fatalf("%q: expected ok", c.expr)
		}
		if got != c.want {
			t.Errorf("%q = %d, want %d", c.expr, got, c.want)
		}
	}
}

func TestEvalExprRegister(t *testing.T) {
	cpu := evalCPU()
	got, ok := EvalExpr(cpu, "$a0")
	if !ok || got != 42 {
		t.Fatalf("$a0 = %d, %v, want 42, true", got, ok)
	}
}

func TestEvalExprDeref(t *testing.T) {
	cpu := evalCPU()
	got, ok := EvalExpr(cpu, "*0x1000")
	if !ok || got != 0xdeadbeef {
		t.Fatalf("*0x1000 = %#x, %v, want 0xdeadbeef, true", got, ok)
	}
}

func TestEvalExprComparison(t *testing.T) {
	cpu := evalCPU()
	if got, ok := EvalExpr(cpu, "$a0 == 42"); !ok || got != 1 {
		t.Fatalf("$a0 == 42 = %d, %v", got, ok)
	}
	if got, ok := EvalExpr(cpu, "$a0 != 42"); !ok || got != 0 {
		t.Fatalf("$a0 != 42 = %d, %v", got, ok)
	}
}

func TestEvalExprInvalid(t *testing.T) {
	cpu := evalCPU()
	cases := []string{"", "1 +", "$bogus", "1 / 0", "1 = 2"}
	for _, c := range cases {
		if _, ok := EvalExpr(cpu, c); ok {
			t.Errorf("%q: expected not ok", c)
		}
	}
}

func TestEvalExprStarAfterParenIsMultiply(t *testing.T) {
	cpu := evalCPU()
	got, ok := EvalExpr(cpu, "(1 + 1) * 2")
	if !ok || got != 4 {
		t.Fatalf("got %d, %v", got, ok)
	}
}
