//go:build !headless

package main

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// VideoHost drives an ebiten window that blits the framebuffer device's
// pixels each frame and forwards host keystrokes into a keyboard device.
// Grounded on the teacher's EbitenOutput (video_backend_ebiten.go): same
// window setup and Game interface, recast from a generic byte-terminal
// VideoOutput onto this emulator's FramebufferDevice/KeyboardDevice pair.
type VideoHost struct {
	fb      *FramebufferDevice
	kbd     *KeyboardDevice
	cpu     *CPU
	running bool

	mu      sync.Mutex
	window  *ebiten.Image
	overlay *DebugOverlay
	pixels  []byte
}

func init() {
	compiledFeatures = append(compiledFeatures, "ebiten-video")
}

// NewVideoHost returns a video frontend blitting fb and routing keystrokes
// into kbd. cpu, if non-nil, enables the F1-toggled debug overlay.
func NewVideoHost(fb *FramebufferDevice, kbd *KeyboardDevice, cpu *CPU) *VideoHost {
	return &VideoHost{
		fb:      fb,
		kbd:     kbd,
		cpu:     cpu,
		overlay: NewDebugOverlay(),
		pixels:  make([]byte, fbWidth*fbHeight*4),
	}
}

// Run opens the window and blocks until it is closed. Call from the main
// goroutine; ebiten requires this.
func (v *VideoHost) Run() error {
	v.running = true
	ebiten.SetWindowSize(fbWidth*2, fbHeight*2)
	ebiten.SetWindowTitle("RISC-V emulator")
	ebiten.SetWindowResizable(true)
	return ebiten.RunGame(v)
}

func (v *VideoHost) Update() error {
	if ebiten.IsWindowBeingClosed() || !v.running {
		return ebiten.Termination
	}
	for _, r := range ebiten.AppendInputChars(nil) {
		if r > 0 && r <= 0xFF {
			v.kbd.PushEvent(KeyEvent{Code: uint32(r)})
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		v.kbd.PushEvent(KeyEvent{Code: '\n'})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		v.kbd.PushEvent(KeyEvent{Code: 0x08})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		v.kbd.PushEvent(KeyEvent{Code: 0x1B})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		v.overlay.Toggle()
	}
	return nil
}

func (v *VideoHost) Draw(screen *ebiten.Image) {
	v.mu.Lock()
	if v.window == nil {
		v.window = ebiten.NewImage(fbWidth, fbHeight)
	}
	if pix, ok := v.fb.Snapshot(); ok {
		for i, p := range pix {
			v.pixels[i*4+0] = byte(p >> 16)
			v.pixels[i*4+1] = byte(p >> 8)
			v.pixels[i*4+2] = byte(p)
			v.pixels[i*4+3] = 0xFF
		}
		v.window.WritePixels(v.pixels)
	}
	v.mu.Unlock()
	screen.DrawImage(v.window, nil)

	if v.cpu != nil {
		if canvas := v.overlay.Render(v.cpu); canvas != nil {
			overlayImg := ebiten.NewImageFromImage(canvas)
			screen.DrawImage(overlayImg, nil)
		}
	}
}

func (v *VideoHost) Layout(_, _ int) (int, int) {
	return fbWidth, fbHeight
}

// Stop causes the next Update to terminate the ebiten run loop.
func (v *VideoHost) Stop() {
	v.running = false
}
