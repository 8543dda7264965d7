// errors.go - error taxonomy shared by the emulator, loader and debugger
package main

import "fmt"

// Kind discriminates the handful of ways an operation in this module can
// fail. It intentionally stays a closed set rather than growing per-package
// sentinel errors, matching the single RError enum it is grounded on.
type Kind int

const (
	KindCPUError Kind = iota
	KindInvalidInstruction
	KindInvalidCode
	KindInvalidRegister
	KindInvalidMem
	KindAddressMisaligned
	KindInvalidAssembly
	KindIOError
	KindEbreak
	KindEcall
	KindDebuggerError
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindCPUError:
		return "cpu error"
	case KindInvalidInstruction:
		return "invalid instruction"
	case KindInvalidCode:
		return "invalid code"
	case KindInvalidRegister:
		return "invalid register"
	case KindInvalidMem:
		return "invalid memory access"
	case KindAddressMisaligned:
		return "address misaligned"
	case KindInvalidAssembly:
		return "invalid assembly"
	case KindIOError:
		return "io error"
	case KindEbreak:
		return "ebreak"
	case KindEcall:
		return "ecall"
	case KindDebuggerError:
		return "debugger error"
	default:
		return "other error"
	}
}

// CPUError is the single error type returned from anywhere in the emulator
// core. Code holds the numeric payload for InvalidCode/InvalidRegister/
// InvalidMem/AddressMisaligned (the address or instruction word involved)
// and for Ebreak (the guest exit code, in the low byte). Text holds the
// free-form payload for InvalidAssembly/IOError/Other.
type CPUError struct {
	Kind Kind
	Code uint32
	Text string
}

func (e *CPUError) Error() string {
	switch e.Kind {
	case KindInvalidCode:
		return fmt.Sprintf("%s: %#08x", e.Kind, e.Code)
	case KindInvalidRegister:
		return fmt.Sprintf("%s: %d", e.Kind, e.Code)
	case KindInvalidMem, KindAddressMisaligned:
		return fmt.Sprintf("%s: %#08x", e.Kind, e.Code)
	case KindInvalidAssembly:
		return fmt.Sprintf("%s: %q", e.Kind, e.Text)
	case KindIOError, KindOther:
		return fmt.Sprintf("%s: %s", e.Kind, e.Text)
	case KindEbreak:
		return fmt.Sprintf("program exited with code %d", int8(e.Code))
	default:
		return e.Kind.String()
	}
}

func errInvalidInstruction() error { return &CPUError{Kind: KindInvalidInstruction} }

func errInvalidCode(code uint32) error { return &CPUError{Kind: KindInvalidCode, Code: code} }

func errInvalidRegister(index uint32) error {
	return &CPUError{Kind: KindInvalidRegister, Code: index}
}

func errInvalidMem(addr uint32) error { return &CPUError{Kind: KindInvalidMem, Code: addr} }

func errAddressMisaligned(addr uint32) error {
	return &CPUError{Kind: KindAddressMisaligned, Code: addr}
}

func errInvalidAssembly(text string) error {
	return &CPUError{Kind: KindInvalidAssembly, Text: text}
}

func errIO(text string) error { return &CPUError{Kind: KindIOError, Text: text} }

func errEbreak(code int8) error { return &CPUError{Kind: KindEbreak, Code: uint32(uint8(code))} }

func errEcall() error { return &CPUError{Kind: KindEcall} }

func errDebugger(text string) error { return &CPUError{Kind: KindDebuggerError, Text: text} }

func errOther(text string) error { return &CPUError{Kind: KindOther, Text: text} }

// IsEbreak reports whether err carries a guest program exit (EBREAK), the
// one error kind that terminates a run loop successfully.
func IsEbreak(err error) (code int8, ok bool) {
	var ce *CPUError
	if e, isCE := err.(*CPUError); isCE {
		ce = e
	} else {
		return 0, false
	}
	if ce.Kind != KindEbreak {
		return 0, false
	}
	return int8(ce.Code), true
}
