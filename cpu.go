// cpu.go - the RV32I + Zicsr execution core: fetch, decode, execute and the
// privilege-mode / device-tick bookkeeping around a single step.
package main

// PrivilegeMode mirrors the three levels this emulator models. The encoding
// (User=0, Supervisor=1, Machine=3) matches the mstatus.MPP/sstatus.SPP
// field widths in the RISC-V privileged spec; level 2 (Hypervisor) is never
// produced here.
type PrivilegeMode uint32

const (
	ModeUser       PrivilegeMode = 0
	ModeSupervisor PrivilegeMode = 1
	ModeMachine    PrivilegeMode = 3
)

func (m PrivilegeMode) String() string {
	switch m {
	case ModeUser:
		return "U"
	case ModeSupervisor:
		return "S"
	case ModeMachine:
		return "M"
	default:
		return "?"
	}
}

// deviceTickInterval is how many successfully-executed instructions elapse
// between device ticks. Grounded on isas/isa.rs's step(), which only calls
// device_update() after 10000 calls accumulate on a static counter rather
// than on every instruction.
const deviceTickInterval = 10000

// userAppSize is the per-task window (USER_APP_SIZE) added to every
// non-Machine-mode load/store address, the multi-task base-offset hook
// described but left unexpanded by the original spec: task-id*userAppSize,
// kernel-mode accesses bypassing it entirely.
const userAppSize = 1 << 20 // 1 MiB

// traceDepth is how many retired instructions the execution-trace ring
// buffer remembers, for postmortem inspection via the debugger's "show
// trace" command. Grounded on the teacher's MachineSnapshot capture-on-
// demand model (debug_snapshot.go), narrowed from a full register+memory
// snapshot down to the lightweight pc+mnemonic pair a ring buffer needs.
const traceDepth = 32

// traceEntry is one retired instruction: the pc it executed at and its
// disassembly.
type traceEntry struct {
	PC       uint32
	Mnemonic string
}

// CPU ties a register file and a bus together and drives the fetch-decode-
// execute-update-pc loop described by the ISA trait's step().
type CPU struct {
	Regs   *RegisterFile
	Bus    *Bus
	Mode   PrivilegeMode
	TaskID uint32

	sinceTick int
	trace     []traceEntry
}

// Trace returns the retired-instruction ring buffer, oldest first.
func (c *CPU) Trace() []traceEntry { return c.trace }

func (c *CPU) recordTrace(pc uint32, inst Instruction) {
	e := traceEntry{PC: pc, Mnemonic: inst.String()}
	if len(c.trace) < traceDepth {
		c.trace = append(c.trace, e)
		return
	}
	copy(c.trace, c.trace[1:])
	c.trace[traceDepth-1] = e
}

// NewCPU returns a CPU with zeroed registers, pc 0, and Machine-mode start
// privilege (the bootloader / ELF loader is expected to set pc to the
// entry point before the first Step).
func NewCPU(bus *Bus) *CPU {
	return &CPU{Regs: NewRegisterFile(), Bus: bus, Mode: ModeMachine}
}

// SetTaskID selects which per-task address window non-Machine-mode loads and
// stores are translated into. Task selection is external to the core (no
// guest-visible register names it) and is made only by host code calling
// this method; neither the debugger nor the CLI driver calls it.
func (c *CPU) SetTaskID(id uint32) { c.TaskID = id }

// translate applies the multi-task base-offset hook (§4.3) to a guest
// load/store address: Machine mode bypasses it; any lower privilege level
// adds task-id*userAppSize before the bus ever sees the address.
func (c *CPU) translate(addr uint32) uint32 {
	if c.Mode == ModeMachine {
		return addr
	}
	return addr + c.TaskID*userAppSize
}

func (c *CPU) privilegeUp() {
	switch c.Mode {
	case ModeUser:
		c.Mode = ModeSupervisor
	default:
		c.Mode = ModeMachine
	}
}

func (c *CPU) privilegeDown() {
	switch c.Mode {
	case ModeMachine:
		c.Mode = ModeSupervisor
	default:
		c.Mode = ModeUser
	}
}

// Fetch reads the 32-bit instruction word at pc.
func (c *CPU) Fetch() (uint32, error) {
	pc := c.Regs.PC()
	if pc%4 != 0 {
		return 0, errAddressMisaligned(pc)
	}
	return c.Bus.ReadWord(pc), nil
}

// Step executes exactly one instruction: fetch, decode, execute, advance pc,
// and (only on success) tick attached devices every deviceTickInterval
// instructions and bump minstret/mcycle.
func (c *CPU) Step() error {
	code, err := c.Fetch()
	if err != nil {
		return err
	}
	inst, err := decodeInstruction(code)
	if err != nil {
		return err
	}
	pc := c.Regs.PC()
	nextPC, err := c.execute(inst, pc)
	if err != nil {
		return err
	}
	c.Regs.SetPC(nextPC)
	c.recordTrace(pc, inst)
	c.bumpCounters()
	c.sinceTick++
	if c.sinceTick >= deviceTickInterval {
		c.sinceTick = 0
		c.Bus.Tick()
	}
	return nil
}

func (c *CPU) bumpCounters() {
	lo := c.Regs.CSR(0xB02)
	c.Regs.SetCSR(0xB02, lo+1)
	if lo+1 == 0 {
		c.Regs.SetCSR(0xB82, c.Regs.CSR(0xB82)+1)
	}
	clo := c.Regs.CSR(0xB00)
	c.Regs.SetCSR(0xB00, clo+1)
	if clo+1 == 0 {
		c.Regs.SetCSR(0xB80, c.Regs.CSR(0xB80)+1)
	}
}

// execute dispatches on inst.Kind and returns the program counter the
// instruction after this one should run at. Grounded on instruction.rs's
// execute(), with RV32I + Zicsr semantics only (no multiply/divide/atomics,
// matching the spec's declared scope).
func (c *CPU) execute(inst Instruction, pc uint32) (uint32, error) {
	r := c.Regs
	switch inst.Kind {
	case instNop:
		return pc + 4, nil

	case instR:
		a, b := int32(r.Get(inst.Rs1)), int32(r.Get(inst.Rs2))
		ua, ub := uint32(a), uint32(b)
		var v uint32
		switch inst.Funct3 {
		case 0b000:
			if inst.Funct7 == 0b0100000 {
				v = uint32(a - b)
			} else {
				v = uint32(a + b)
			}
		case 0b001:
			v = ua << (ub & 0x1f)
		case 0b010:
			if a < b {
				v = 1
			}
		case 0b011:
			if ua < ub {
				v = 1
			}
		case 0b100:
			v = ua ^ ub
		case 0b101:
			if inst.Funct7 == 0b0100000 {
				v = uint32(a >> (ub & 0x1f))
			} else {
				v = ua >> (ub & 0x1f)
			}
		case 0b110:
			v = ua | ub
		case 0b111:
			v = ua & ub
		}
		r.Set(inst.Rd, v)
		return pc + 4, nil

	case instI:
		switch inst.Opcode {
		case 0b1100111: // JALR
			target := (r.Get(inst.Rs1) + inst.Imm) &^ 1
			r.Set(inst.Rd, pc+4)
			return target, nil
		case 0b0000011: // LOAD
			addr := c.translate(r.Get(inst.Rs1) + inst.Imm)
			var v uint32
			switch inst.Funct3 {
			case 0b000:
				v = uint32(int32(int8(c.Bus.ReadByteAt(addr))))
			case 0b001:
				v = uint32(int32(int16(c.Bus.ReadHalf(addr))))
			case 0b010:
				v = c.Bus.ReadWord(addr)
			case 0b100:
				v = uint32(c.Bus.ReadByteAt(addr))
			case 0b101:
				v = uint32(c.Bus.ReadHalf(addr))
			default:
				return 0, errInvalidInstruction()
			}
			r.Set(inst.Rd, v)
			return pc + 4, nil
		default: // OP-IMM
			a := int32(r.Get(inst.Rs1))
			ua := uint32(a)
			imm := int32(inst.Imm)
			var v uint32
			switch inst.Funct3 {
			case 0b000:
				v = uint32(a + imm)
			case 0b001:
				v = ua << (inst.Imm & 0x1f)
			case 0b010:
				if a < imm {
					v = 1
				}
			case 0b011:
				if ua < inst.Imm {
					v = 1
				}
			case 0b100:
				v = ua ^ uint32(imm)
			case 0b101:
				shamt := inst.Imm & 0x1f
				if (inst.Imm>>10)&1 == 1 {
					v = uint32(a >> shamt)
				} else {
					v = ua >> shamt
				}
			case 0b110:
				v = ua | uint32(imm)
			case 0b111:
				v = ua & uint32(imm)
			}
			r.Set(inst.Rd, v)
			return pc + 4, nil
		}

	case instS:
		addr := c.translate(r.Get(inst.Rs1) + inst.Imm)
		v := r.Get(inst.Rs2)
		switch inst.Funct3 {
		case 0b000:
			c.Bus.WriteByteTo(addr, uint8(v))
		case 0b001:
			c.Bus.WriteHalf(addr, uint16(v))
		case 0b010:
			c.Bus.WriteWord(addr, v)
		default:
			return 0, errInvalidInstruction()
		}
		return pc + 4, nil

	case instB:
		a, b := int32(r.Get(inst.Rs1)), int32(r.Get(inst.Rs2))
		ua, ub := uint32(a), uint32(b)
		taken := false
		switch inst.Funct3 {
		case 0b000:
			taken = a == b
		case 0b001:
			taken = a != b
		case 0b100:
			taken = a < b
		case 0b101:
			taken = a >= b
		case 0b110:
			taken = ua < ub
		case 0b111:
			taken = ua >= ub
		default:
			return 0, errInvalidInstruction()
		}
		if taken {
			return pc + inst.Imm, nil
		}
		return pc + 4, nil

	case instU:
		if inst.Opcode == 0b0110111 {
			r.Set(inst.Rd, inst.Imm)
		} else {
			r.Set(inst.Rd, pc+inst.Imm)
		}
		return pc + 4, nil

	case instJ:
		r.Set(inst.Rd, pc+4)
		return pc + inst.Imm, nil

	case instCSR:
		return c.executeCSR(inst, pc)
	}
	return 0, errInvalidInstruction()
}

func (c *CPU) executeCSR(inst Instruction, pc uint32) (uint32, error) {
	r := c.Regs
	if inst.Funct3 == 0 && inst.Rd == 0 {
		switch inst.Imm {
		case 0x000:
			c.privilegeUp()
			return 0, errEcall()
		case 0x001:
			return 0, errEbreak(int8(r.Get(10)))
		case 0x102:
			c.privilegeDown()
			return r.CSR(0x141), nil
		case 0x302:
			c.privilegeDown()
			return r.CSR(0x341), nil
		case 0x105:
			return pc + 4, nil
		}
	}
	old := r.CSR(inst.Imm)
	switch inst.Funct3 {
	case 0b001:
		r.SetCSR(inst.Imm, r.Get(inst.Rs1))
	case 0b010:
		if inst.Rs1 != 0 {
			r.SetCSR(inst.Imm, old|r.Get(inst.Rs1))
		}
	case 0b011:
		if inst.Rs1 != 0 {
			r.SetCSR(inst.Imm, old&^r.Get(inst.Rs1))
		}
	case 0b101:
		r.SetCSR(inst.Imm, inst.Rs1)
	case 0b110:
		if inst.Rs1 != 0 {
			r.SetCSR(inst.Imm, old|inst.Rs1)
		}
	case 0b111:
		if inst.Rs1 != 0 {
			r.SetCSR(inst.Imm, old&^inst.Rs1)
		}
	default:
		return 0, errInvalidInstruction()
	}
	r.Set(inst.Rd, old)
	return pc + 4, nil
}

// Disassemble decodes and formats the instruction at addr without affecting
// machine state, for the debugger's "show" and step-trace output.
func (c *CPU) Disassemble(addr uint32) (string, error) {
	code := c.Bus.ReadWord(addr)
	inst, err := decodeInstruction(code)
	if err != nil {
		return "", err
	}
	return inst.String(), nil
}
