package main

import "testing"

func assembleI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	inst := Instruction{Kind: instI, Opcode: opcode, Rd: rd, Funct3: funct3, Rs1: rs1, Imm: uint32(imm)}
	return inst.Assemble()
}

func TestDecodeAssembleRoundTrip(t *testing.T) {
	words := []uint32{
		0x05d00893, // addi x17, x0, 93
		0x00700513, // addi x10, x0, 7
		0x00000073, // ecall
		0x00100073, // ebreak
		0x002081b3, // add x3, x1, x2
		assembleI(0b1100111, 0, 0, 1, 0), // jalr x0, 0(x1) -> ret
		0x12345537, // lui x10, 0x12345
		0x123450b7, // lui x1, 0x12345
		0x00001097, // auipc x1, 0x1
	}
	for _, w := range words {
		inst, err := decodeInstruction(w)
		if err != nil {
			t.Fatalf("decode(%#x): %v", w, err)
		}
		got := inst.Assemble()
		if got != w {
			t.Errorf("assemble(decode(%#x)) = %#x, want %#x", w, got, w)
		}
	}
}

func TestDecodeInvalidOpcode(t *testing.T) {
	if _, err := decodeInstruction(0xFFFFFFFF); err == nil {
		t.Fatal("expected error for invalid opcode")
	}
}

func TestDisassembleRetPseudo(t *testing.T) {
	w := assembleI(0b1100111, 0, 0, 1, 0) // jalr x0, 0(ra)
	inst, err := decodeInstruction(w)
	if err != nil {
		t.Fatal(err)
	}
	if got := inst.String(); got != "ret" {
		t.Fatalf("String() = %q, want %q", got, "ret")
	}
}

func TestDisassembleJalrGeneric(t *testing.T) {
	w := assembleI(0b1100111, 5, 0, 1, 4) // jalr x5, 4(ra)
	inst, err := decodeInstruction(w)
	if err != nil {
		t.Fatal(err)
	}
	got := inst.String()
	if got == "ret" {
		t.Fatal("non-ret jalr disassembled as ret")
	}
}

func TestDisassembleCsrrPseudo(t *testing.T) {
	// csrrs rd=x5, csr=mcause(0x342), rs1=x0
	inst := Instruction{Kind: instCSR, Opcode: 0b1110011, Funct3: 0b010, Rd: 5, Rs1: 0, Imm: 0x342}
	got := inst.String()
	want := "csrr t0, 0x342"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestDisassembleCsrrsGeneric(t *testing.T) {
	// csrrs with nonzero rs1 should NOT collapse to csrr
	inst := Instruction{Kind: instCSR, Opcode: 0b1110011, Funct3: 0b010, Rd: 5, Rs1: 2, Imm: 0x342}
	got := inst.String()
	if got == "csrr t0, 0x342" {
		t.Fatal("csrrs with rs1 != x0 incorrectly disassembled as csrr")
	}
}

func TestDisassembleNopPseudo(t *testing.T) {
	// add x0, x0, x0
	inst := Instruction{Kind: instR, Opcode: 0b0110011, Funct3: 0, Funct7: 0, Rd: 0, Rs1: 0, Rs2: 0}
	if got := inst.String(); got != "nop" {
		t.Fatalf("String() = %q, want nop", got)
	}
}

func TestDisassembleLiMvPseudo(t *testing.T) {
	li := Instruction{Kind: instI, Opcode: 0b0010011, Funct3: 0, Rd: 5, Rs1: 0, Imm: 42}
	if got := li.String(); got != "li t0, 42" {
		t.Fatalf("li String() = %q", got)
	}
	mv := Instruction{Kind: instI, Opcode: 0b0010011, Funct3: 0, Rd: 5, Rs1: 6, Imm: 0}
	if got := mv.String(); got != "mv t0, t1" {
		t.Fatalf("mv String() = %q", got)
	}
}

func TestDisassembleEcallEbreak(t *testing.T) {
	inst, _ := decodeInstruction(0x00000073)
	if got := inst.String(); got != "ecall" {
		t.Fatalf("got %q, want ecall", got)
	}
	inst, _ = decodeInstruction(0x00100073)
	if got := inst.String(); got != "ebreak" {
		t.Fatalf("got %q, want ebreak", got)
	}
}

func TestParseAssemblyImm(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"42", 42, true},
		{"0x2a", 42, true},
		{"-1", 0xFFFFFFFF, true},
		{"not-a-number", 0, false},
	}
	for _, c := range cases {
		got, ok := parseAssemblyImm(c.in)
		if ok != c.ok {
			t.Fatalf("%q: ok = %v, want %v", c.in, ok, c.ok)
		}
		if ok && got != c.want {
			t.Errorf("%q = %#x, want %#x", c.in, got, c.want)
		}
	}
}
