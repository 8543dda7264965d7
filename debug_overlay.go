//go:build !headless

// debug_overlay.go - an optional on-screen register/pc readout composited
// over the framebuffer window, toggled from the video frontend. Grounded
// on the teacher's MonitorOverlay (debug_overlay.go): a small always-
// available heads-up display drawn each frame, recast from a hand-rolled
// bitmap font onto golang.org/x/image's basicfont so the glyph rendering
// itself comes from the ecosystem rather than embedded glyph tables.
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DebugOverlay renders CPU state text onto an RGBA canvas the video
// frontend composites over the guest framebuffer.
type DebugOverlay struct {
	visible bool
	canvas  *image.RGBA
}

// NewDebugOverlay returns a hidden overlay sized to the framebuffer window.
func NewDebugOverlay() *DebugOverlay {
	return &DebugOverlay{canvas: image.NewRGBA(image.Rect(0, 0, fbWidth, fbHeight))}
}

// Toggle flips the overlay's visibility.
func (o *DebugOverlay) Toggle() { o.visible = !o.visible }

// Render draws cpu's pc and general registers into the overlay canvas and
// returns it, or nil if the overlay is currently hidden.
func (o *DebugOverlay) Render(cpu *CPU) *image.RGBA {
	if !o.visible {
		return nil
	}
	draw.Draw(o.canvas, o.canvas.Bounds(), image.Transparent, image.Point{}, draw.Src)

	bg := color.RGBA{0, 0, 0, 160}
	draw.Draw(o.canvas, image.Rect(0, 0, fbWidth, 9*len(cpu.Regs.Iter())/4+12), &image.Uniform{bg}, image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  o.canvas,
		Src:  image.NewUniform(color.RGBA{0, 255, 0, 255}),
		Face: basicfont.Face7x13,
	}
	line := 12
	d.Dot = fixed.P(4, line)
	d.DrawString(fmt.Sprintf("pc=%#010x mode=%s", cpu.Regs.PC(), cpu.Mode))

	regs := cpu.Regs.Iter()
	col := 0
	for i, rv := range regs {
		if i%4 == 0 {
			line += 13
			col = 0
		}
		d.Dot = fixed.P(4+col*150, line)
		d.DrawString(fmt.Sprintf("%-4s %#010x", rv.Name, rv.Value))
		col++
	}
	return o.canvas
}
