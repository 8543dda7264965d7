// memory_bus.go - memory bus for the RISC-V emulator

package main

import "sync"

const (
	memorySize = 256 * 1024 * 1024
	wordSize   = 4
)

// Device is an MMIO peripheral attached to the bus. Match reports whether a
// byte address falls within the device's window; Read/Write access it one
// 32-bit word at a time; Tick is called on every device once per bus tick
// (the four devices here do nothing in it: the timer reads the host clock
// on each Read and the keyboard is fed through PushEvent). Grounded on the IO trait's match_/read/write/update/name shape, with
// Go method names spelled out instead of abbreviated.
type Device interface {
	Name() string
	Match(addr uint32) bool
	Read(addr uint32) uint32
	Write(addr uint32, value uint32)
	Tick()
}

// Bus is the flat, byte-addressable system bus: one contiguous backing
// array for ordinary memory plus an ordered list of MMIO device windows
// that take priority over it. Grounded on memory_bus.go's SystemBus, with
// the page-mapping table generalised into a straight linear device scan
// since this emulator's device count is small (serial/timer/keyboard/
// framebuffer) and doesn't need page bucketing to stay fast.
type Bus struct {
	mu      sync.RWMutex
	memory  []byte
	devices []Device
}

// NewBus allocates a bus backed by memorySize bytes of zeroed memory.
func NewBus() *Bus {
	return &Bus{memory: make([]byte, memorySize)}
}

// Attach registers a device on the bus. Devices are consulted in the order
// they were attached; the first match wins.
func (b *Bus) Attach(d Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = append(b.devices, d)
}

// Tick advances every attached device by one step.
func (b *Bus) Tick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		d.Tick()
	}
}

func (b *Bus) deviceFor(addr uint32) Device {
	for _, d := range b.devices {
		if d.Match(addr) {
			return d
		}
	}
	return nil
}

// memoryByteMask is a mask per access size used to truncate a device's
// full-width Read/Write to the width the CPU actually asked for.
func memoryByteMask(size int) uint32 {
	if size >= wordSize {
		return 0xffffffff
	}
	return 1<<(8*size) - 1
}

// readMemoryByte reads a single byte directly from backing memory, never
// consulting devices. Callers hold b.mu.
func (b *Bus) readMemoryByte(addr uint32) uint32 {
	if int(addr) >= len(b.memory) {
		return 0
	}
	return uint32(b.memory[addr])
}

// writeMemoryByte writes a single byte directly to backing memory, never
// consulting devices. Callers hold b.mu.
func (b *Bus) writeMemoryByte(addr uint32, value uint8) {
	if int(addr) >= len(b.memory) {
		return
	}
	b.memory[addr] = value
}

// read reads size bytes (1, 2 or 4) little-endian starting at addr. A device
// claiming addr services the whole access with one call to its word-wide
// Read, matching mem.rs's load_mem, which never decomposes a device access
// into bytes; only backing memory is walked byte-by-byte, and only then to
// let unaligned access succeed rather than trap (AddressMisaligned is raised
// only by CPU.Fetch, for a pc that is not 4-byte aligned).
func (b *Bus) read(addr uint32, size int) uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if d := b.deviceFor(addr); d != nil {
		return d.Read(addr) & memoryByteMask(size)
	}
	var v uint32
	for i := 0; i < size; i++ {
		v |= b.readMemoryByte(addr+uint32(i)) << (8 * i)
	}
	return v
}

func (b *Bus) write(addr uint32, size int, value uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d := b.deviceFor(addr); d != nil {
		d.Write(addr, value&memoryByteMask(size))
		return
	}
	for i := 0; i < size; i++ {
		b.writeMemoryByte(addr+uint32(i), uint8(value>>(8*i)))
	}
}

// ReadByteAt reads one byte as an 8-bit value (sign/zero extension is the
// caller's job, matching lb/lbu semantics).
func (b *Bus) ReadByteAt(addr uint32) uint8 { return uint8(b.read(addr, 1)) }

// ReadHalf reads a 16-bit little-endian half-word.
func (b *Bus) ReadHalf(addr uint32) uint16 { return uint16(b.read(addr, 2)) }

// ReadWord reads a 32-bit little-endian word.
func (b *Bus) ReadWord(addr uint32) uint32 { return b.read(addr, wordSize) }

// WriteByteTo writes an 8-bit value.
func (b *Bus) WriteByteTo(addr uint32, value uint8) { b.write(addr, 1, uint32(value)) }

// WriteHalf writes a 16-bit little-endian half-word.
func (b *Bus) WriteHalf(addr uint32, value uint16) { b.write(addr, 2, uint32(value)) }

// WriteWord writes a 32-bit little-endian word.
func (b *Bus) WriteWord(addr uint32, value uint32) { b.write(addr, wordSize, value) }

// LoadBytes copies raw bytes directly into backing memory, bypassing device
// dispatch. Used by the ELF loader.
func (b *Bus) LoadBytes(addr uint32, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := copy(b.memory[addr:], data)
	_ = n
}

// ZeroRange zeroes [addr, addr+length) in backing memory, bypassing device
// dispatch. Used by the ELF loader to satisfy the memsz-filesz zero-fill
// requirement.
func (b *Bus) ZeroRange(addr uint32, length uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := int(addr) + int(length)
	if end > len(b.memory) {
		end = len(b.memory)
	}
	for i := int(addr); i < end; i++ {
		b.memory[i] = 0
	}
}

// Reset clears all of main memory. Device state is untouched; callers that
// want a full machine reset should reattach fresh devices.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.memory {
		b.memory[i] = 0
	}
}
