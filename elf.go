// elf.go - ELF32/ELF64 parser and loader
package main

import (
	"encoding/binary"
	"fmt"
)

const (
	eiMag0 = 0x7f
	eiMag1 = 'E'
	eiMag2 = 'L'
	eiMag3 = 'F'
)

// ptLoad is the only program header type this loader acts on.
const ptLoad = 1

var ptNames = map[uint32]string{
	0: "NULL", 1: "LOAD", 2: "DYNAMIC", 3: "INTERP", 4: "NOTE",
	5: "SHLIB", 6: "PHDR", 7: "TLS", 0x6474e551: "GNU_STACK",
}

var stNames = map[uint32]string{
	0: "NULL", 1: "PROGBITS", 2: "SYMTAB", 3: "STRTAB", 4: "RELA",
	5: "HASH", 6: "DYNAMIC", 7: "NOTE", 8: "NOBITS", 9: "REL",
	10: "SHLIB", 11: "DYNSYM", 14: "INIT_ARRAY", 15: "FINI_ARRAY", 0x6ffffff6: "ATTRIBUTES",
}

const stTypeSymtab = 2
const stTypeStrtab = 3

// ELFHeader holds the fixed part of the file header, widened to 64-bit
// fields regardless of class so ELF32 and ELF64 share one representation,
// grounded on exes/elf.rs's ELFHeader (two nearly-identical structs
// differing only in Elf32Addr/Off vs u64).
type ELFHeader struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PHOff     uint64
	SHOff     uint64
	Flags     uint32
	EHSize    uint16
	PHEntSize uint16
	PHNum     uint16
	SHEntSize uint16
	SHNum     uint16
	SHStrNdx  uint16
}

func (h ELFHeader) Is64() bool { return h.Ident[4] == 2 }

// ProgramHeader is the widened ELF32/ELF64 program header.
type ProgramHeader struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	VAddr  uint64
	PAddr  uint64
	FileSz uint64
	MemSz  uint64
	Align  uint64
}

// SectionHeader is the widened ELF32/ELF64 section header.
type SectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

// Symbol is the widened ELF32/ELF64 symbol table entry.
type Symbol struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

// ELF is a parsed ELF32 or ELF64 executable, grounded on exes/elf.rs's ELF
// enum wrapping ELF32/ELF64.
type ELF struct {
	Header         ELFHeader
	ProgramHeaders []ProgramHeader
	SectionHeaders []SectionHeader
	Symbols        []Symbol
	bytes          []byte
	strtabIndex    int // index of the FIRST STRTAB section header; see DESIGN.md deviation notes
	order          binary.ByteOrder
}

func readU16(b []byte, o binary.ByteOrder) uint16 { return o.Uint16(b) }
func readU32(b []byte, o binary.ByteOrder) uint32 { return o.Uint32(b) }
func readU64(b []byte, o binary.ByteOrder) uint64 { return o.Uint64(b) }

// ParseELF validates the magic and class bytes and parses the rest of the
// file, dispatching on EI_CLASS the way exe::Exe::parse does for the ELF
// enum.
func ParseELF(input []byte) (*ELF, error) {
	if len(input) < 20 {
		return nil, errOther("elf: input too short")
	}
	if input[0] != eiMag0 || input[1] != eiMag1 || input[2] != eiMag2 || input[3] != eiMag3 {
		return nil, errOther("elf: not an ELF file")
	}
	order := binary.ByteOrder(binary.LittleEndian)
	if input[5] == 2 {
		order = binary.BigEndian
	}
	switch input[4] {
	case 1:
		return parseELF32(input, order)
	case 2:
		return parseELF64(input, order)
	default:
		return nil, errOther("elf: unknown EI_CLASS")
	}
}

func parseELF32(b []byte, order binary.ByteOrder) (*ELF, error) {
	if len(b) < 52 {
		return nil, errOther("elf: input too short for ELF32 header")
	}
	var h ELFHeader
	copy(h.Ident[:], b[0:16])
	h.Type = readU16(b[16:], order)
	h.Machine = readU16(b[18:], order)
	h.Version = readU32(b[20:], order)
	h.Entry = uint64(readU32(b[24:], order))
	h.PHOff = uint64(readU32(b[28:], order))
	h.SHOff = uint64(readU32(b[32:], order))
	h.Flags = readU32(b[36:], order)
	h.EHSize = readU16(b[40:], order)
	h.PHEntSize = readU16(b[42:], order)
	h.PHNum = readU16(b[44:], order)
	h.SHEntSize = readU16(b[46:], order)
	h.SHNum = readU16(b[48:], order)
	h.SHStrNdx = readU16(b[50:], order)

	e := &ELF{Header: h, bytes: b, order: order, strtabIndex: -1}

	if h.PHOff != 0 {
		idx := int(h.PHOff)
		for i := 0; i < int(h.PHNum); i++ {
			if idx+int(h.PHEntSize) > len(b) {
				return nil, errOther("elf: program header out of range")
			}
			pb := b[idx : idx+int(h.PHEntSize)]
			ph := ProgramHeader{
				Type:   readU32(pb[0:], order),
				Offset: uint64(readU32(pb[4:], order)),
				VAddr:  uint64(readU32(pb[8:], order)),
				PAddr:  uint64(readU32(pb[12:], order)),
				FileSz: uint64(readU32(pb[16:], order)),
				MemSz:  uint64(readU32(pb[20:], order)),
				Flags:  readU32(pb[24:], order),
				Align:  uint64(readU32(pb[28:], order)),
			}
			e.ProgramHeaders = append(e.ProgramHeaders, ph)
			idx += int(h.PHEntSize)
		}
	}

	if h.SHOff != 0 {
		idx := int(h.SHOff)
		for i := 0; i < int(h.SHNum); i++ {
			if idx+int(h.SHEntSize) > len(b) {
				return nil, errOther("elf: section header out of range")
			}
			sb := b[idx : idx+int(h.SHEntSize)]
			sh := SectionHeader{
				Name:      readU32(sb[0:], order),
				Type:      readU32(sb[4:], order),
				Flags:     uint64(readU32(sb[8:], order)),
				Addr:      uint64(readU32(sb[12:], order)),
				Offset:    uint64(readU32(sb[16:], order)),
				Size:      uint64(readU32(sb[20:], order)),
				Link:      readU32(sb[24:], order),
				Info:      readU32(sb[28:], order),
				AddrAlign: uint64(readU32(sb[32:], order)),
				EntSize:   uint64(readU32(sb[36:], order)),
			}
			if sh.Type == stTypeStrtab && e.strtabIndex < 0 {
				e.strtabIndex = len(e.SectionHeaders)
			}
			e.SectionHeaders = append(e.SectionHeaders, sh)
			idx += int(h.SHEntSize)
		}
	}

	if err := e.parseSymbols32(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *ELF) parseSymbols32() error {
	for _, sh := range e.SectionHeaders {
		if sh.Type != stTypeSymtab || sh.EntSize == 0 {
			continue
		}
		idx := int(sh.Offset)
		count := int(sh.Size / sh.EntSize)
		for i := 0; i < count; i++ {
			if idx+16 > len(e.bytes) {
				return errOther("elf: symbol out of range")
			}
			sb := e.bytes[idx : idx+16]
			sym := Symbol{
				Name:  readU32(sb[0:], e.order),
				Value: uint64(readU32(sb[4:], e.order)),
				Size:  uint64(readU32(sb[8:], e.order)),
				Info:  sb[12],
				Other: sb[13],
				Shndx: readU16(sb[14:], e.order),
			}
			e.Symbols = append(e.Symbols, sym)
			idx += 16
		}
	}
	return nil
}

func parseELF64(b []byte, order binary.ByteOrder) (*ELF, error) {
	if len(b) < 64 {
		return nil, errOther("elf: input too short for ELF64 header")
	}
	var h ELFHeader
	copy(h.Ident[:], b[0:16])
	h.Type = readU16(b[16:], order)
	h.Machine = readU16(b[18:], order)
	h.Version = readU32(b[20:], order)
	h.Entry = readU64(b[24:], order)
	h.PHOff = readU64(b[32:], order)
	h.SHOff = readU64(b[40:], order)
	h.Flags = readU32(b[48:], order)
	h.EHSize = readU16(b[52:], order)
	h.PHEntSize = readU16(b[54:], order)
	h.PHNum = readU16(b[56:], order)
	h.SHEntSize = readU16(b[58:], order)
	h.SHNum = readU16(b[60:], order)
	h.SHStrNdx = readU16(b[62:], order)

	e := &ELF{Header: h, bytes: b, order: order, strtabIndex: -1}

	if h.PHOff != 0 {
		idx := int(h.PHOff)
		for i := 0; i < int(h.PHNum); i++ {
			if idx+int(h.PHEntSize) > len(b) {
				return nil, errOther("elf: program header out of range")
			}
			pb := b[idx : idx+int(h.PHEntSize)]
			ph := ProgramHeader{
				Type:   readU32(pb[0:], order),
				Flags:  readU32(pb[4:], order),
				Offset: readU64(pb[8:], order),
				VAddr:  readU64(pb[16:], order),
				PAddr:  readU64(pb[24:], order),
				FileSz: readU64(pb[32:], order),
				MemSz:  readU64(pb[40:], order),
				Align:  readU64(pb[48:], order),
			}
			e.ProgramHeaders = append(e.ProgramHeaders, ph)
			idx += int(h.PHEntSize)
		}
	}

	if h.SHOff != 0 {
		idx := int(h.SHOff)
		for i := 0; i < int(h.SHNum); i++ {
			if idx+int(h.SHEntSize) > len(b) {
				return nil, errOther("elf: section header out of range")
			}
			sb := b[idx : idx+int(h.SHEntSize)]
			sh := SectionHeader{
				Name:      readU32(sb[0:], order),
				Type:      readU32(sb[4:], order),
				Flags:     readU64(sb[8:], order),
				Addr:      readU64(sb[16:], order),
				Offset:    readU64(sb[24:], order),
				Size:      readU64(sb[32:], order),
				Link:      readU32(sb[40:], order),
				Info:      readU32(sb[44:], order),
				AddrAlign: readU64(sb[48:], order),
				EntSize:   readU64(sb[56:], order),
			}
			if sh.Type == stTypeStrtab && e.strtabIndex < 0 {
				e.strtabIndex = len(e.SectionHeaders)
			}
			e.SectionHeaders = append(e.SectionHeaders, sh)
			idx += int(h.SHEntSize)
		}
	}

	if err := e.parseSymbols64(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *ELF) parseSymbols64() error {
	for _, sh := range e.SectionHeaders {
		if sh.Type != stTypeSymtab || sh.EntSize == 0 {
			continue
		}
		idx := int(sh.Offset)
		count := int(sh.Size / sh.EntSize)
		for i := 0; i < count; i++ {
			if idx+24 > len(e.bytes) {
				return errOther("elf: symbol out of range")
			}
			sb := e.bytes[idx : idx+24]
			sym := Symbol{
				Name:  readU32(sb[0:], e.order),
				Info:  sb[4],
				Other: sb[5],
				Shndx: readU16(sb[6:], e.order),
				Value: readU64(sb[8:], e.order),
				Size:  readU64(sb[16:], e.order),
			}
			e.Symbols = append(e.Symbols, sym)
			idx += 24
		}
	}
	return nil
}

// LoadBinary copies every PT_LOAD segment's file bytes into the CPU's bus at
// its virtual address, zero-fills memsz-filesz (deviation 2 in DESIGN.md),
// and sets pc to the entry point.
func (e *ELF) LoadBinary(cpu *CPU) error {
	for _, ph := range e.ProgramHeaders {
		if ph.Type != ptLoad {
			continue
		}
		start, end := ph.Offset, ph.Offset+ph.FileSz
		if end > uint64(len(e.bytes)) {
			return errOther("elf: segment extends past end of file")
		}
		cpu.Bus.LoadBytes(uint32(ph.VAddr), e.bytes[start:end])
		if ph.MemSz > ph.FileSz {
			cpu.Bus.ZeroRange(uint32(ph.VAddr+ph.FileSz), uint32(ph.MemSz-ph.FileSz))
		}
	}
	cpu.Regs.SetPC(uint32(e.Header.Entry))
	return nil
}

func (e *ELF) sectionName(index int) string {
	if e.Header.SHStrNdx >= uint16(len(e.SectionHeaders)) {
		return ""
	}
	start := int(e.SectionHeaders[e.Header.SHStrNdx].Offset) + int(e.SectionHeaders[index].Name)
	return cString(e.bytes, start)
}

// SymbolName resolves a symbol's name using the FIRST STRTAB section header
// found, not the second (see DESIGN.md's "strtbindex[1]" deviation note).
func (e *ELF) SymbolName(sym Symbol) string {
	if sym.Name == 0 || e.strtabIndex < 0 {
		return ""
	}
	start := int(e.SectionHeaders[e.strtabIndex].Offset) + int(sym.Name)
	return cString(e.bytes, start)
}

func cString(b []byte, start int) string {
	if start < 0 || start >= len(b) {
		return ""
	}
	end := start
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[start:end])
}

// FindSymbol returns the value of the first parsed symbol whose name matches,
// scanning the symbol table linearly.
func (e *ELF) FindSymbol(name string) (uint64, bool) {
	for _, s := range e.Symbols {
		if e.SymbolName(s) == name {
			return s.Value, true
		}
	}
	return 0, false
}

// DumpHeader renders the ELF header the way readelf -h does, grounded on
// elf.rs's show_header! macro.
func (e *ELF) DumpHeader() string {
	class := "ELF32"
	if e.Header.Is64() {
		class = "ELF64"
	}
	return fmt.Sprintf("ELF Header:\n  Class:                             %s\n"+
		"  Type:                              %#x\n"+
		"  Machine:                           %#x\n"+
		"  Entry point address:               %#08x\n"+
		"  Start of program headers:          %d (bytes into file)\n"+
		"  Start of section headers:          %d (bytes into file)\n"+
		"  Number of program headers:         %d\n"+
		"  Number of section headers:         %d\n"+
		"  Section header string table index: %d\n",
		class, e.Header.Type, e.Header.Machine, e.Header.Entry,
		e.Header.PHOff, e.Header.SHOff, e.Header.PHNum, e.Header.SHNum, e.Header.SHStrNdx)
}

// DumpProgramHeaders renders the program header table the way readelf -l
// does.
func (e *ELF) DumpProgramHeaders() string {
	out := fmt.Sprintf("There are %d program headers, starting at offset %d:\n", e.Header.PHNum, e.Header.PHOff)
	out += "  Type           Offset   VirtAddr   PhysAddr   FileSiz MemSiz  Flg Align\n"
	for _, ph := range e.ProgramHeaders {
		name, ok := ptNames[ph.Type]
		if !ok {
			name = fmt.Sprintf("%#x", ph.Type)
		}
		out += fmt.Sprintf("  %-14s 0x%06x 0x%08x 0x%08x 0x%05x 0x%05x %3d 0x%06x\n",
			name, ph.Offset, ph.VAddr, ph.PAddr, ph.FileSz, ph.MemSz, ph.Flags, ph.Align)
	}
	return out
}

// DumpSectionHeaders renders the section header table the way readelf -S
// does.
func (e *ELF) DumpSectionHeaders() string {
	out := fmt.Sprintf("There are %d section headers, starting at offset %#x:\n", e.Header.SHNum, e.Header.SHOff)
	out += "  [Nr] Name              Type            Addr     Off    Size   ES Flg Lk Inf Al\n"
	for i, sh := range e.SectionHeaders {
		name, ok := stNames[sh.Type]
		if !ok {
			name = fmt.Sprintf("%#x", sh.Type)
		}
		out += fmt.Sprintf("  [%2d] %-16s %-16s %08x %06x %06x %02x %3d %2d %3d %2d\n",
			i, e.sectionName(i), name, sh.Addr, sh.Offset, sh.Size, sh.EntSize,
			sh.Flags, sh.Link, sh.Info, sh.AddrAlign)
	}
	return out
}

// DumpSymbolTable renders the symbol table the way readelf -s does.
func (e *ELF) DumpSymbolTable() string {
	out := fmt.Sprintf("Symbol table '.symtab' contains %d entries:\n", len(e.Symbols))
	out += "   Num:    Value          Size Type    Bind   Vis      Ndx Name\n"
	for i, sym := range e.Symbols {
		ndx := fmt.Sprintf("%d", sym.Shndx)
		switch sym.Shndx {
		case 0:
			ndx = "UND"
		case 0xfff1:
			ndx = "ABS"
		case 0xfff2:
			ndx = "COM"
		}
		out += fmt.Sprintf("  %6d: %016x %6d %-7d %-7d %-7d %4s %s\n",
			i, sym.Value, sym.Size, sym.Info&0xf, (sym.Info>>4)&0xf, (sym.Other>>2)&0x3,
			ndx, e.SymbolName(sym))
	}
	return out
}
