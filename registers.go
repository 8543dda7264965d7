// registers.go - RV32I register file, ABI names and the CSR bank
package main

import "sync"

// gpNames is the RISC-V ABI naming convention for the 32 general-purpose
// registers, x0 first.
var gpNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

var nameToIndex = func() map[string]uint32 {
	m := make(map[string]uint32, 32)
	for i, n := range gpNames {
		m[n] = uint32(i)
	}
	return m
}()

// csrNames maps a handful of symbolic CSR names (the ones this module's
// debugger and trap handling actually touch) to their 12-bit CSR address,
// grounded on reg.rs's NAME2CSR table.
var csrNames = map[string]uint32{
	"fflags":    0x001,
	"frm":       0x002,
	"fcsr":      0x003,
	"sstatus":   0x100,
	"sie":       0x104,
	"stvec":     0x105,
	"sepc":      0x141,
	"scause":    0x142,
	"stval":     0x143,
	"sip":       0x144,
	"satp":      0x180,
	"mstatus":   0x300,
	"misa":      0x301,
	"medeleg":   0x302,
	"mideleg":   0x303,
	"mie":       0x304,
	"mtvec":     0x305,
	"mscratch":  0x340,
	"mepc":      0x341,
	"mcause":    0x342,
	"mtval":     0x343,
	"mip":       0x344,
	"mcycle":    0xB00,
	"minstret":  0xB02,
	"mcycleh":   0xB80,
	"minstreth": 0xB82,
	"mvendorid": 0xF11,
	"marchid":   0xF12,
	"mimpid":    0xF13,
	"mhartid":   0xF14,
}

const numCSR = 0x1000

// RegisterFile holds the RISC-V integer register file, program counter and
// the control/status register bank. x0 always reads zero and discards
// writes: the spec's explicit invariant, closed here rather than left to the
// CSR/GPR accessors' callers.
type RegisterFile struct {
	mu   sync.RWMutex
	regs [32]uint32
	pc   uint32
	csr  [numCSR]uint32
}

// NewRegisterFile returns a register file with pc and all registers zeroed.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{}
}

// Get reads general-purpose register index (0-31). Index 0 always returns 0.
func (r *RegisterFile) Get(index uint32) uint32 {
	if index == 0 {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.regs[index&0x1f]
}

// Set writes general-purpose register index (0-31). A write to index 0 is a
// no-op.
func (r *RegisterFile) Set(index uint32, value uint32) {
	if index == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[index&0x1f] = value
}

// PC returns the program counter.
func (r *RegisterFile) PC() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pc
}

// SetPC overwrites the program counter.
func (r *RegisterFile) SetPC(pc uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pc = pc
}

// CSR reads a CSR by its 12-bit address.
func (r *RegisterFile) CSR(addr uint32) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.csr[addr&0xfff]
}

// SetCSR writes a CSR by its 12-bit address.
func (r *RegisterFile) SetCSR(addr uint32, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.csr[addr&0xfff] = value
}

// NameToIndex resolves a GP register ABI name ("a0", "sp", ...) or a raw
// "xN" form to its index. It returns false for anything else, including CSR
// and "pc" names, which the caller should try separately.
func NameToIndex(name string) (uint32, bool) {
	if idx, ok := nameToIndex[name]; ok {
		return idx, true
	}
	if len(name) >= 2 && name[0] == 'x' {
		n, ok := parseUintStrict(name[1:])
		if ok && n < 32 {
			return uint32(n), true
		}
	}
	return 0, false
}

// ReadByName resolves "a0"/"xN" GP names, the literal "pc", or a symbolic
// CSR name and returns its current value.
func (r *RegisterFile) ReadByName(name string) (uint32, bool) {
	if idx, ok := NameToIndex(name); ok {
		return r.Get(idx), true
	}
	if name == "pc" {
		return r.PC(), true
	}
	if addr, ok := csrNames[name]; ok {
		return r.CSR(addr), true
	}
	return 0, false
}

// WriteByName is the write-side counterpart of ReadByName.
func (r *RegisterFile) WriteByName(name string, value uint32) bool {
	if idx, ok := NameToIndex(name); ok {
		r.Set(idx, value)
		return true
	}
	if name == "pc" {
		r.SetPC(value)
		return true
	}
	if addr, ok := csrNames[name]; ok {
		r.SetCSR(addr, value)
		return true
	}
	return false
}

// Iter yields every GP register by ABI name followed by "pc", in index
// order, for dump/print commands.
func (r *RegisterFile) Iter() []RegisterValue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegisterValue, 0, 33)
	for i, name := range gpNames {
		v := r.regs[i]
		if i == 0 {
			v = 0
		}
		out = append(out, RegisterValue{Name: name, Value: v})
	}
	out = append(out, RegisterValue{Name: "pc", Value: r.pc})
	return out
}

// RegisterValue is a single named register snapshot, used by dump/print
// commands and the "show reg" debugger command.
type RegisterValue struct {
	Name  string
	Value uint32
}

func parseUintStrict(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	var v uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint64(c-'0')
	}
	return v, true
}
