// Display backend facade (C12)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package graphics selects between the virtio-gpu-pci backend and a ramfb
// fallback, exposing the collaborator surface named in §6: init, clear,
// flush and the screen-size queries callers need before drawing. The
// line/rectangle rasterizer and 8x8 font are out of scope (spec.md
// Non-goals) and live outside this package entirely.
package graphics

import (
	"craybond/internal/klog"
	"craybond/virtio/gpu"
)

// Backend is the minimal surface a display driver must provide, per §6's
// collaborator interface for "graphics".
type Backend interface {
	Clear(color uint32) bool
	Flush() bool
	ScreenSize() (width, height uint32)
}

type gpuBackend struct {
	g *gpu.GPU
}

func (b *gpuBackend) Clear(color uint32) bool {
	b.g.Clear(color)
	return true
}

func (b *gpuBackend) Flush() bool {
	return b.g.Flush()
}

func (b *gpuBackend) ScreenSize() (uint32, uint32) {
	return b.g.Width, b.g.Height
}

// ramfbBackend is a stub: ramfb itself is out of scope per spec.md's
// Non-goals, so Init always fails and callers fall back to a serial-only
// console, per §7's "Device init failure" policy.
type ramfbBackend struct{}

func (ramfbBackend) Clear(uint32) bool             { return false }
func (ramfbBackend) Flush() bool                   { return false }
func (ramfbBackend) ScreenSize() (uint32, uint32) { return 0, 0 }

// Graphics holds the selected backend; Ready (gpu_ready in §7) is false
// when neither backend came up.
type Graphics struct {
	backend Backend
	Ready   bool
}

// Init tries virtio-gpu-pci first; on failure it falls back to the ramfb
// stub (always unavailable in this tree), leaving Ready false and the
// console serial-only, per §7 "Device init failure".
func Init(ecamBase uint64, barCfgBase uint32, fbAddr uintptr, fbSize int) *Graphics {
	g, ok := gpu.Init(ecamBase, barCfgBase, fbAddr, fbSize)
	if ok {
		klog.Info("graphics: virtio-gpu-pci ready (%ix%i)", uint64(g.Width), uint64(g.Height))
		return &Graphics{backend: &gpuBackend{g: g}, Ready: true}
	}

	klog.Warn("graphics: virtio-gpu-pci unavailable, falling back to ramfb")

	fb := ramfbBackend{}
	if !fb.Clear(0) {
		klog.Warn("graphics: ramfb unavailable, console is serial-only")
		return &Graphics{backend: fb, Ready: false}
	}

	return &Graphics{backend: fb, Ready: true}
}

// Clear fills the framebuffer with color and flushes it to the host, a
// no-op returning false if no backend is ready.
func (gfx *Graphics) Clear(color uint32) bool {
	if !gfx.Ready {
		return false
	}
	return gfx.backend.Clear(color)
}

// Flush pushes the framebuffer to the host display.
func (gfx *Graphics) Flush() bool {
	if !gfx.Ready {
		return false
	}
	return gfx.backend.Flush()
}

// ScreenSize returns the active backend's resolution, or 0,0 if none is
// ready, per §6's get_screen_size.
func (gfx *Graphics) ScreenSize() (width, height uint32) {
	if !gfx.Ready {
		return 0, 0
	}
	return gfx.backend.ScreenSize()
}

// CharSize returns the pixel footprint of one glyph at the given integer
// scale, matching the 8x8 bitmap font named in §6's get_char_size(scale)
// (the font and rasterizer themselves are out of scope here).
func CharSize(scale uint32) (width, height uint32) {
	if scale == 0 {
		scale = 1
	}
	return 8 * scale, 8 * scale
}
