// main.go - entry point: readelf/run/debug/video subcommands over the
// RV32I + Zicsr emulator core, grounded on bin/{readelf,run,debugger,sdl}.rs.
package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  rvemu readelf -h|-l|-S|-s <elf>")
	fmt.Fprintln(os.Stderr, "  rvemu run <elf> [guest-root]")
	fmt.Fprintln(os.Stderr, "  rvemu debug <elf> [guest-root]")
	fmt.Fprintln(os.Stderr, "  rvemu video <elf> [guest-root]")
	fmt.Fprintln(os.Stderr, "  rvemu features")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "readelf":
		runReadelf(os.Args[2:])
	case "run":
		runRun(os.Args[2:])
	case "debug", "debugger":
		runDebug(os.Args[2:])
	case "video", "sdl":
		runVideo(os.Args[2:])
	case "features":
		printFeatures()
	default:
		usage()
		os.Exit(1)
	}
}

func runReadelf(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: rvemu readelf -h|-l|-S|-s <elf>")
		os.Exit(1)
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		logFatal("%v", err)
	}
	elf, err := ParseELF(data)
	if err != nil {
		logFatal("%v", err)
	}
	switch args[0] {
	case "-h":
		fmt.Print(elf.DumpHeader())
	case "-l":
		fmt.Print(elf.DumpProgramHeaders())
	case "-S":
		fmt.Print(elf.DumpSectionHeaders())
	case "-s":
		fmt.Print(elf.DumpSymbolTable())
	default:
		fmt.Fprintln(os.Stderr, "Invalid option")
		os.Exit(1)
	}
}

// newMachine builds a bus with the four MMIO peripherals attached, loads the
// given ELF, and returns the CPU ready to run from its entry point.
func newMachine(elfPath, guestRoot string) (*CPU, *SerialDevice, *KeyboardDevice, *FramebufferDevice, *Syscalls) {
	data, err := os.ReadFile(elfPath)
	if err != nil {
		logFatal("%v", err)
	}
	elf, err := ParseELF(data)
	if err != nil {
		logFatal("%v", err)
	}

	bus := NewBus()
	serial := NewSerialDevice(os.Stdin, os.Stdout)
	timer := NewTimerDevice()
	kbd := NewKeyboardDevice()
	fb := NewFramebufferDevice()
	bus.Attach(serial)
	bus.Attach(timer)
	bus.Attach(kbd)
	bus.Attach(fb)

	cpu := NewCPU(bus)
	if err := elf.LoadBinary(cpu); err != nil {
		logFatal("%v", err)
	}

	if guestRoot == "" {
		guestRoot = "."
	}
	sc := NewSyscalls(guestRoot, os.Stdin, os.Stdout, os.Stderr)
	return cpu, serial, kbd, fb, sc
}

// runUntilTrap steps cpu until the guest stops, servicing every ecall other
// than exit() through sc. It returns the exit() argument, 0 for an EBREAK
// with a0's low byte 0, and 1 for an EBREAK with any other a0 or any other
// error.
func runUntilTrap(cpu *CPU, sc *Syscalls) int {
	for {
		err := cpu.Step()
		if err == nil {
			continue
		}
		if code, ok := IsEbreak(err); ok {
			if code != 0 {
				return 1
			}
			return 0
		}
		if cerr, ok := err.(*CPUError); ok && cerr.Kind == KindEcall {
			if herr := sc.Handle(cpu); herr != nil {
				if exit, ok := herr.(*ExitError); ok {
					return int(exit.Code)
				}
				logWarn("%v", herr)
				return 1
			}
			cpu.Regs.SetPC(cpu.Regs.PC() + 4)
			continue
		}
		logWarn("%v", err)
		return 1
	}
}

func runRun(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: rvemu run <elf> [guest-root]")
		os.Exit(1)
	}
	guestRoot := ""
	if len(args) > 1 {
		guestRoot = args[1]
	}
	cpu, _, _, _, sc := newMachine(args[0], guestRoot)
	os.Exit(runUntilTrap(cpu, sc))
}

func runDebug(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: rvemu debug <elf> [guest-root]")
		os.Exit(1)
	}
	guestRoot := ""
	if len(args) > 1 {
		guestRoot = args[1]
	}
	cpu, _, _, _, _ := newMachine(args[0], guestRoot)
	dbg := NewDebugger(os.Stdout)
	dbg.Debug(cpu, os.Stdin)
}

func runVideo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: rvemu video <elf> [guest-root]")
		os.Exit(1)
	}
	guestRoot := ""
	if len(args) > 1 {
		guestRoot = args[1]
	}
	cpu, serial, kbd, fb, sc := newMachine(args[0], guestRoot)
	serial.SetNonBlocking(true)

	host := NewVideoHost(fb, kbd, cpu)

	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		if code := runUntilTrap(cpu, sc); code != 0 {
			return fmt.Errorf("guest exited with code %d", code)
		}
		host.Stop()
		return nil
	})

	if err := host.Run(); err != nil {
		logFatal("%v", err)
	}
	if err := g.Wait(); err != nil {
		logFatal("%v", err)
	}
}
