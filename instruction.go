// instruction.go - RV32I + Zicsr instruction codec and disassembler (the
// executor is in cpu.go)
package main

import (
	"fmt"
	"strings"
)

// instKind tags which of the eight instruction shapes (six RISC-V base
// formats, the CSR format, and the Nop placeholder for FENCE/PAUSE) a given
// Instruction value holds.
type instKind int

const (
	instR instKind = iota
	instI
	instCSR
	instS
	instB
	instU
	instJ
	instNop
)

// Instruction is a decoded RV32I/Zicsr instruction. Not every field is
// meaningful for every Kind; see decodeInstruction and the per-kind comments
// below, grounded on instruction.rs's enum of the same shape.
type Instruction struct {
	Kind   instKind
	Funct7 uint32
	Rs1    uint32 // for instCSR with funct3 in {101,110,111} this is a raw 5-bit zero-extended immediate, not a register index
	Rs2    uint32
	Funct3 uint32
	Rd     uint32
	Opcode uint32
	Imm    uint32 // also holds the CSR address for instCSR, and the FENCE/PAUSE word minus its opcode bits for instNop
}

func bits(code uint32, high, low uint) uint32 {
	return (code >> low) & ((1 << (high - low + 1)) - 1)
}

func fieldOpcode(code uint32) uint32 { return code & 0x7f }
func fieldRs1(code uint32) uint32    { return (code >> 15) & 0x1f }
func fieldRs2(code uint32) uint32    { return (code >> 20) & 0x1f }
func fieldRd(code uint32) uint32     { return (code >> 7) & 0x1f }
func fieldFunct3(code uint32) uint32 { return (code >> 12) & 0x7 }
func fieldFunct7(code uint32) uint32 { return (code >> 25) & 0x7f }
func fieldCSR(code uint32) uint32    { return (code >> 20) & 0xfff }

// decodeImm extracts and sign-extends the immediate field for the given
// opcode, bit-for-bit matching instruction.rs's imm().
func decodeImm(code uint32) uint32 {
	op := fieldOpcode(code)
	switch op {
	case 0b0110111, 0b0010111: // U-type
		return code & 0xfffff000
	case 0b1101111: // J-type
		imm20 := (code >> 31) & 0x1
		imm10_1 := (code >> 21) & 0x3ff
		imm11 := (code >> 20) & 0x1
		imm19_12 := (code >> 12) & 0xff
		most := code & 0x80000000
		return (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1) |
			uint32(int32(most)>>11)
	case 0b1100111, 0b0010011, 0b0000011: // I-type
		most := code & 0x80000000
		return uint32(int32(most)>>20) | ((code >> 20) & 0xfff)
	case 0b1100011: // B-type
		imm12 := (code >> 31) & 0x1
		imm10_5 := (code >> 25) & 0x3f
		imm4_1 := (code >> 8) & 0xf
		imm11 := (code >> 7) & 0x1
		most := code & 0x80000000
		return uint32(int32(most)>>20) | (imm12 << 12) | (imm11 << 11) | (imm10_5 << 5) | (imm4_1 << 1)
	case 0b0100011: // S-type
		imm11_5 := (code >> 25) & 0x7f
		imm4_0 := (code >> 7) & 0x1f
		most := code & 0x80000000
		return (imm11_5 << 5) | imm4_0 | uint32(int32(most)>>20)
	}
	return 0
}

// decodeInstruction decodes a 32-bit RV32I/Zicsr word. FENCE/PAUSE (opcode
// 0b0001111) decode to instNop, matching the spec's simplification.
func decodeInstruction(code uint32) (Instruction, error) {
	op := fieldOpcode(code)
	switch op {
	case 0b0110011: // R-type
		return Instruction{Kind: instR, Funct7: fieldFunct7(code), Rs1: fieldRs1(code),
			Rs2: fieldRs2(code), Funct3: fieldFunct3(code), Rd: fieldRd(code), Opcode: op}, nil
	case 0b0010011, 0b0000011, 0b1100111: // I-type
		return Instruction{Kind: instI, Imm: decodeImm(code), Rs1: fieldRs1(code),
			Funct3: fieldFunct3(code), Rd: fieldRd(code), Opcode: op}, nil
	case 0b1110011: // CSR-type (covers ecall/ebreak/sret/mret/wfi too)
		return Instruction{Kind: instCSR, Imm: fieldCSR(code), Rs1: fieldRs1(code),
			Funct3: fieldFunct3(code), Rd: fieldRd(code), Opcode: op}, nil
	case 0b0100011: // S-type
		return Instruction{Kind: instS, Imm: decodeImm(code), Rs1: fieldRs1(code),
			Rs2: fieldRs2(code), Funct3: fieldFunct3(code), Opcode: op}, nil
	case 0b1100011: // B-type
		return Instruction{Kind: instB, Imm: decodeImm(code), Rs1: fieldRs1(code),
			Rs2: fieldRs2(code), Funct3: fieldFunct3(code), Opcode: op}, nil
	case 0b1101111: // J-type
		return Instruction{Kind: instJ, Imm: decodeImm(code), Rd: fieldRd(code), Opcode: op}, nil
	case 0b0110111, 0b0010111: // U-type
		return Instruction{Kind: instU, Imm: decodeImm(code), Rd: fieldRd(code), Opcode: op}, nil
	case 0b0001111: // FENCE / PAUSE
		return Instruction{Kind: instNop, Imm: code &^ 0x7f}, nil
	default:
		return Instruction{}, errInvalidCode(code)
	}
}

// Assemble is the exact inverse of decodeInstruction: for any code accepted
// by decode, decodeInstruction(code).Assemble() == code.
func (inst Instruction) Assemble() uint32 {
	g := func(v uint32, high, low uint) uint32 { return bits(v, high, low) }
	switch inst.Kind {
	case instR:
		return (inst.Funct7 << 25) | (inst.Rs2 << 20) | (inst.Rs1 << 15) |
			(inst.Funct3 << 12) | (inst.Rd << 7) | inst.Opcode
	case instI:
		return (inst.Imm << 20) | (inst.Rs1 << 15) | (inst.Funct3 << 12) | (inst.Rd << 7) | inst.Opcode
	case instCSR:
		return (inst.Imm << 20) | (inst.Rs1 << 15) | (inst.Funct3 << 12) | (inst.Rd << 7) | inst.Opcode
	case instS:
		return (g(inst.Imm, 11, 5) << 25) | (inst.Rs2 << 20) | (inst.Rs1 << 15) |
			(inst.Funct3 << 12) | (g(inst.Imm, 4, 0) << 7) | inst.Opcode
	case instB:
		return (g(inst.Imm, 12, 12) << 31) | (g(inst.Imm, 10, 5) << 25) | (inst.Rs2 << 20) |
			(inst.Rs1 << 15) | (inst.Funct3 << 12) |
			(g(inst.Imm, 4, 1) << 8) | (g(inst.Imm, 11, 11) << 7) | inst.Opcode
	case instU:
		return inst.Imm | (inst.Rd << 7) | inst.Opcode
	case instJ:
		return (g(inst.Imm, 20, 20) << 31) | (g(inst.Imm, 10, 1) << 21) |
			(g(inst.Imm, 11, 11) << 20) | (g(inst.Imm, 19, 12) << 12) | (inst.Rd << 7) | inst.Opcode
	case instNop:
		return inst.Imm | 0b0001111
	}
	return 0
}

// String disassembles inst into its textual mnemonic form, including the
// pseudo-instruction rewrites (nop, li, mv, srli/srai disambiguation, and
// the ecall/ebreak/sret/mret/wfi literal CSR forms) that a reader of a
// machine-code dump actually expects to see.
func (inst Instruction) String() string {
	name := func(i uint32) string { return gpNames[i&0x1f] }
	switch inst.Kind {
	case instR:
		var mnem string
		switch inst.Funct3 {
		case 0b000:
			if inst.Funct7 == 0b0100000 {
				mnem = "sub"
			} else if inst.Rd == 0 {
				return "nop"
			} else {
				mnem = "add"
			}
		case 0b001:
			mnem = "sll"
		case 0b010:
			mnem = "slt"
		case 0b011:
			mnem = "sltu"
		case 0b100:
			mnem = "xor"
		case 0b101:
			if inst.Funct7 == 0b0100000 {
				mnem = "sra"
			} else {
				mnem = "srl"
			}
		case 0b110:
			mnem = "or"
		case 0b111:
			mnem = "and"
		}
		return fmt.Sprintf("%s %s, %s, %s", mnem, name(inst.Rd), name(inst.Rs1), name(inst.Rs2))
	case instI:
		switch inst.Opcode {
		case 0b1100111:
			if inst.Rd == 0 && inst.Rs1 == 1 && inst.Imm == 0 {
				return "ret"
			}
			return fmt.Sprintf("jalr %s, %d(%s)", name(inst.Rd), int32(inst.Imm), name(inst.Rs1))
		case 0b0000011:
			var mnem string
			switch inst.Funct3 {
			case 0b000:
				mnem = "lb"
			case 0b001:
				mnem = "lh"
			case 0b010:
				mnem = "lw"
			case 0b100:
				mnem = "lbu"
			case 0b101:
				mnem = "lhu"
			}
			return fmt.Sprintf("%s %s, %d(%s)", mnem, name(inst.Rd), int32(inst.Imm), name(inst.Rs1))
		case 0b0010011:
			switch inst.Funct3 {
			case 0b000:
				if inst.Rs1 == 0 {
					return fmt.Sprintf("li %s, %d", name(inst.Rd), int32(inst.Imm))
				}
				if inst.Imm == 0 {
					return fmt.Sprintf("mv %s, %s", name(inst.Rd), name(inst.Rs1))
				}
				return fmt.Sprintf("addi %s, %s, %#x", name(inst.Rd), name(inst.Rs1), inst.Imm)
			case 0b001:
				return fmt.Sprintf("slli %s, %s, %d", name(inst.Rd), name(inst.Rs1), bits(inst.Imm, 4, 0))
			case 0b010:
				return fmt.Sprintf("slti %s, %s, %#x", name(inst.Rd), name(inst.Rs1), inst.Imm)
			case 0b011:
				return fmt.Sprintf("sltiu %s, %s, %#x", name(inst.Rd), name(inst.Rs1), inst.Imm)
			case 0b100:
				return fmt.Sprintf("xori %s, %s, %#x", name(inst.Rd), name(inst.Rs1), inst.Imm)
			case 0b101:
				mnem := "srli"
				if bits(inst.Imm, 11, 10) == 0b01 {
					mnem = "srai"
				}
				return fmt.Sprintf("%s %s, %s, %d", mnem, name(inst.Rd), name(inst.Rs1), bits(inst.Imm, 5, 0))
			case 0b110:
				return fmt.Sprintf("ori %s, %s, %#x", name(inst.Rd), name(inst.Rs1), inst.Imm)
			case 0b111:
				return fmt.Sprintf("andi %s, %s, %#x", name(inst.Rd), name(inst.Rs1), inst.Imm)
			}
		}
		return "invalid"
	case instCSR:
		switch code := inst.Assemble(); code {
		case 0x00000073:
			return "ecall"
		case 0x00100073:
			return "ebreak"
		case 0x10200073:
			return "sret"
		case 0x30200073:
			return "mret"
		case 0x10500073:
			return "wfi"
		}
		if inst.Funct3 == 0b010 && inst.Rs1 == 0 {
			return fmt.Sprintf("csrr %s, %#x", name(inst.Rd), inst.Imm)
		}
		var mnem string
		switch inst.Funct3 {
		case 0b001:
			mnem = "csrrw"
		case 0b010:
			mnem = "csrrs"
		case 0b011:
			mnem = "csrrc"
		case 0b101:
			mnem = "csrrwi"
		case 0b110:
			mnem = "csrrsi"
		case 0b111:
			mnem = "csrrci"
		default:
			mnem = "csr?"
		}
		return fmt.Sprintf("%s %s, %#x, %s", mnem, name(inst.Rd), inst.Imm, name(inst.Rs1))
	case instS:
		var mnem string
		switch inst.Funct3 {
		case 0b000:
			mnem = "sb"
		case 0b001:
			mnem = "sh"
		case 0b010:
			mnem = "sw"
		}
		return fmt.Sprintf("%s %s, %d(%s)", mnem, name(inst.Rs2), int32(inst.Imm), name(inst.Rs1))
	case instB:
		var mnem string
		switch inst.Funct3 {
		case 0b000:
			mnem = "beq"
		case 0b001:
			mnem = "bne"
		case 0b100:
			mnem = "blt"
		case 0b101:
			mnem = "bge"
		case 0b110:
			mnem = "bltu"
		case 0b111:
			mnem = "bgeu"
		}
		return fmt.Sprintf("%s %s, %s, %#x", mnem, name(inst.Rs1), name(inst.Rs2), inst.Imm)
	case instU:
		mnem := "auipc"
		if inst.Opcode == 0b0110111 {
			mnem = "lui"
			return fmt.Sprintf("%s %s, %#x", mnem, name(inst.Rd), inst.Imm>>12)
		}
		return fmt.Sprintf("%s %s, %#x", mnem, name(inst.Rd), inst.Imm)
	case instJ:
		if inst.Rd == 0 {
			return fmt.Sprintf("j %#x", inst.Imm)
		}
		if inst.Rd == 1 {
			return fmt.Sprintf("jal %#x", inst.Imm)
		}
		return fmt.Sprintf("jal %s, %#x", name(inst.Rd), inst.Imm)
	case instNop:
		return "nop"
	}
	return "invalid"
}

// parseAssemblyImm parses a decimal or 0x-prefixed hexadecimal literal, the
// way the original assembler's parse_str does.
func parseAssemblyImm(s string) (uint32, bool) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var v uint64
	if hex, ok := strings.CutPrefix(s, "0x"); ok {
		for _, c := range hex {
			var d uint64
			switch {
			case c >= '0' && c <= '9':
				d = uint64(c - '0')
			case c >= 'a' && c <= 'f':
				d = uint64(c-'a') + 10
			case c >= 'A' && c <= 'F':
				d = uint64(c-'A') + 10
			default:
				return 0, false
			}
			v = v*16 + d
		}
	} else {
		n, ok := parseUintStrict(s)
		if !ok {
			return 0, false
		}
		v = n
	}
	if neg {
		return uint32(-int64(v)), true
	}
	return uint32(v), true
}
