package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestSerialDeviceWriteReadsBlocking(t *testing.T) {
	var out bytes.Buffer
	dev := NewSerialDevice(strings.NewReader("A"), &out)
	dev.Write(serialBase, 'x')
	if out.String() != "x" {
		t.Fatalf("out = %q, want %q", out.String(), "x")
	}
	if got := dev.Read(serialBase); got != 'A' {
		t.Fatalf("Read = %d, want %d", got, 'A')
	}
}

func TestSerialDeviceNonBlockingReturnsZeroWhenEmpty(t *testing.T) {
	var out bytes.Buffer
	dev := NewSerialDevice(strings.NewReader(""), &out)
	dev.SetNonBlocking(true)
	if got := dev.Read(serialBase); got != 0 {
		t.Fatalf("Read = %d, want 0 on empty non-blocking source", got)
	}
}

func TestSerialDeviceMatch(t *testing.T) {
	dev := NewSerialDevice(strings.NewReader(""), &bytes.Buffer{})
	if !dev.Match(serialBase) {
		t.Fatal("expected serialBase to match")
	}
	if dev.Match(serialBase + 100) {
		t.Fatal("expected far address not to match")
	}
}

func TestKeyboardDeviceFIFOOrder(t *testing.T) {
	kbd := NewKeyboardDevice()
	kbd.PushEvent(KeyEvent{Code: 'a'})
	kbd.PushEvent(KeyEvent{Code: 'b'})
	kbd.PushEvent(KeyEvent{Code: 'c'})

	first := kbd.Read(kbdBase)
	second := kbd.Read(kbdBase)
	third := kbd.Read(kbdBase)

	if unpackKeyEvent(first).Code != 'a' || unpackKeyEvent(second).Code != 'b' || unpackKeyEvent(third).Code != 'c' {
		t.Fatalf("expected FIFO order a,b,c; got %c,%c,%c",
			unpackKeyEvent(first).Code, unpackKeyEvent(second).Code, unpackKeyEvent(third).Code)
	}
}

func TestKeyboardDeviceEmptyReadsZero(t *testing.T) {
	kbd := NewKeyboardDevice()
	if got := kbd.Read(kbdBase); got != 0 {
		t.Fatalf("Read on empty queue = %d, want 0", got)
	}
}

func TestKeyboardDeviceReleaseBitPacking(t *testing.T) {
	kbd := NewKeyboardDevice()
	kbd.PushEvent(KeyEvent{Code: 'z', Release: true})
	ev := unpackKeyEvent(kbd.Read(kbdBase))
	if ev.Code != 'z' || !ev.Release {
		t.Fatalf("got %+v, want Code='z' Release=true", ev)
	}
}

func TestFramebufferWriteReadRoundTrip(t *testing.T) {
	fb := NewFramebufferDevice()
	fb.Write(fbBase, 0xFF00FF)
	fb.Write(fbBase+4, 0x00FF00)
	if got := fb.Read(fbBase); got != 0xFF00FF {
		t.Fatalf("Read(base) = %#x", got)
	}
	if got := fb.Read(fbBase + 4); got != 0x00FF00 {
		t.Fatalf("Read(base+4) = %#x", got)
	}
}

func TestFramebufferSnapshotDirtyTracking(t *testing.T) {
	fb := NewFramebufferDevice()
	if _, ok := fb.Snapshot(); ok {
		t.Fatal("expected no snapshot before any writes")
	}
	fb.Write(fbBase, 0x123456)
	pix, ok := fb.Snapshot()
	if !ok {
		t.Fatal("expected snapshot after write")
	}
	if pix[0] != 0x123456 {
		t.Fatalf("pix[0] = %#x", pix[0])
	}
	if _, ok := fb.Snapshot(); ok {
		t.Fatal("expected dirty flag cleared after snapshot")
	}
}

func TestTimerDeviceReturnsNonZero(t *testing.T) {
	timer := NewTimerDevice()
	if timer.Read(timerBase) == 0 && timer.Read(timerBase+4) == 0 {
		t.Fatal("expected a non-zero wall-clock reading in at least one half")
	}
}
