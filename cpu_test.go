package main

import "testing"

func TestStepAddi(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	bus.WriteWord(0, 0x00A00093) // addi x1, x0, 10
	if err := cpu.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cpu.Regs.Get(1); got != 10 {
		t.Fatalf("x1 = %d, want 10", got)
	}
	if got := cpu.Regs.PC(); got != 4 {
		t.Fatalf("pc = %d, want 4", got)
	}
}

func TestStepBranchTaken(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	// beq x0, x0, +8
	inst := Instruction{Kind: instB, Opcode: 0b1100011, Funct3: 0b000, Rs1: 0, Rs2: 0, Imm: 8}
	bus.WriteWord(0, inst.Assemble())
	if err := cpu.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cpu.Regs.PC(); got != 8 {
		t.Fatalf("pc = %d, want 8 (branch taken)", got)
	}
}

func TestStepStoreLoadRoundTrip(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	cpu.Regs.Set(1, 0x2000)  // base addr
	cpu.Regs.Set(2, 0xCAFEBABE)

	sw := Instruction{Kind: instS, Opcode: 0b0100011, Funct3: 0b010, Rs1: 1, Rs2: 2, Imm: 0}
	bus.WriteWord(0, sw.Assemble())
	if err := cpu.Step(); err != nil {
		t.Fatalf("store: %v", err)
	}

	lw := Instruction{Kind: instI, Opcode: 0b0000011, Funct3: 0b010, Rs1: 1, Rd: 3, Imm: 0}
	bus.WriteWord(4, lw.Assemble())
	if err := cpu.Step(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cpu.Regs.Get(3); got != 0xCAFEBABE {
		t.Fatalf("x3 = %#x, want 0xCAFEBABE", got)
	}
}

func TestStepEcallReturnsEcallError(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	bus.WriteWord(0, 0x00000073) // ecall
	err := cpu.Step()
	if err == nil {
		t.Fatal("expected ecall error")
	}
	cerr, ok := err.(*CPUError)
	if !ok || cerr.Kind != KindEcall {
		t.Fatalf("expected KindEcall CPUError, got %#v", err)
	}
	if got := cpu.Regs.PC(); got != 0 {
		t.Fatalf("pc should not advance on ecall, got %d", got)
	}
}

func TestStepEbreakReturnsEbreakError(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	bus.WriteWord(0, 0x00100073) // ebreak
	err := cpu.Step()
	if _, ok := IsEbreak(err); !ok {
		t.Fatalf("expected ebreak error, got %v", err)
	}
}

func TestStepMisalignedFetch(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	cpu.Regs.SetPC(2)
	if err := cpu.Step(); err == nil {
		t.Fatal("expected misaligned fetch error")
	}
}

func TestCSRReadWrite(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	cpu.Regs.Set(1, 0xABCD)
	// csrrw x2, mscratch, x1
	inst := Instruction{Kind: instCSR, Opcode: 0b1110011, Funct3: 0b001, Rd: 2, Rs1: 1, Imm: 0x340}
	bus.WriteWord(0, inst.Assemble())
	if err := cpu.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cpu.Regs.CSR(0x340); got != 0xABCD {
		t.Fatalf("mscratch = %#x, want 0xabcd", got)
	}
}

func TestPrivilegeModeString(t *testing.T) {
	if ModeUser.String() != "U" || ModeSupervisor.String() != "S" || ModeMachine.String() != "M" {
		t.Fatal("unexpected PrivilegeMode.String() output")
	}
}

func TestUserModeLoadStoreAppliesTaskOffset(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	cpu.Mode = ModeUser
	cpu.SetTaskID(2)
	cpu.Regs.Set(1, 0x100) // base address in rs1
	cpu.Regs.Set(2, 0xBEEF)

	sw := Instruction{Kind: instS, Opcode: 0b0100011, Funct3: 0b010, Rs1: 1, Rs2: 2, Imm: 0}
	bus.WriteWord(0, sw.Assemble())
	if err := cpu.Step(); err != nil {
		t.Fatalf("store: %v", err)
	}

	wantAddr := uint32(0x100 + 2*userAppSize)
	if got := bus.ReadWord(wantAddr); got != 0xBEEF {
		t.Fatalf("expected value at translated address %#x, got %#x there", wantAddr, got)
	}
	if got := bus.ReadWord(0x100); got != 0 {
		t.Fatalf("expected untranslated address 0x100 untouched, got %#x", got)
	}
}

func TestMachineModeLoadStoreBypassesTaskOffset(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	cpu.SetTaskID(3) // Mode stays ModeMachine (NewCPU default)
	cpu.Regs.Set(1, 0x200)
	cpu.Regs.Set(2, 0x1234)

	sw := Instruction{Kind: instS, Opcode: 0b0100011, Funct3: 0b010, Rs1: 1, Rs2: 2, Imm: 0}
	bus.WriteWord(0, sw.Assemble())
	if err := cpu.Step(); err != nil {
		t.Fatalf("store: %v", err)
	}
	if got := bus.ReadWord(0x200); got != 0x1234 {
		t.Fatalf("expected Machine-mode store untranslated, got %#x at 0x200", got)
	}
}

func TestDisassembleAtAddress(t *testing.T) {
	bus := NewBus()
	cpu := NewCPU(bus)
	bus.WriteWord(0, 0x00A00093) // addi x1, x0, 10
	got, err := cpu.Disassemble(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "li ra, 10" {
		t.Fatalf("Disassemble = %q", got)
	}
}
