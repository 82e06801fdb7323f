package render

import "sync/atomic"

// Drawable is the part of the window the swapchain manager needs: the current
// drawable size, a way to sleep until the window changes, and whether the
// user has asked to close it.
type Drawable interface {
	// DrawableSize reports the framebuffer size in pixels. A minimized
	// window reports 0x0.
	DrawableSize() (int, int)
	// WaitEvents blocks until at least one window event has been processed.
	WaitEvents()
	ShouldClose() bool
}

// Window is everything the scheduler loop needs from the windowing layer.
type Window interface {
	Drawable
	// PollEvents processes pending events without blocking.
	PollEvents()
	// ConsumeResize reports whether a resize was observed since the last
	// call, clearing the notification in the same step.
	ConsumeResize() bool
}

// ResizeSignal is a single-producer, single-consumer resize flag. The window
// callback calls Notify; the scheduler calls Consume once per frame.
type ResizeSignal struct {
	pending atomic.Bool
}

func (s *ResizeSignal) Notify() {
	s.pending.Store(true)
}

// Consume is an atomic test-and-clear, so a notification that lands between
// the check and the clear is never lost.
func (s *ResizeSignal) Consume() bool {
	return s.pending.Swap(false)
}

func (s *ResizeSignal) Pending() bool {
	return s.pending.Load()
}
