package render

import (
	"time"

	"github.com/cockroachdb/errors"
)

// MaxFramesInFlight is the default size of the frame ring.
const MaxFramesInFlight = 2

type slotPhase int

const (
	// slotSubmitted: the GPU may still be using the slot.
	slotSubmitted slotPhase = iota
	// slotFree: the in-flight fence has been observed signaled.
	slotFree
	// slotRecording: the fence and command buffer were reset for a new frame.
	slotRecording
)

// FrameSlot holds the per-frame synchronization objects and the command
// buffer that is re-recorded each time the slot comes around. None of it
// depends on the swapchain, so slots live for the whole process.
type FrameSlot struct {
	Index int

	ImageAvailable Semaphore
	RenderFinished Semaphore
	InFlight       Fence
	CommandBuffer  CommandBuffer

	phase slotPhase
}

type FrameRingOptions struct {
	Device Device
	// Size is the number of frames that may be in flight at once.
	Size int
	// FenceTimeout bounds WaitUntilFree. Zero means wait forever.
	FenceTimeout time.Duration
	// CheckOrdering turns reset-before-wait and double-submit into errors.
	CheckOrdering bool
}

// FrameRing is a fixed ring of frame slots indexed by a frame counter.
type FrameRing struct {
	device        Device
	slots         []*FrameSlot
	fenceTimeout  time.Duration
	checkOrdering bool
}

// NewFrameRing creates the semaphores, fences and command buffers for every
// slot. Fences start signaled so the first wait on each slot returns at once.
func NewFrameRing(options FrameRingOptions) (*FrameRing, error) {
	if options.Size < 1 {
		return nil, errors.Newf("frame ring needs at least one slot, got %d", options.Size)
	}

	ring := &FrameRing{
		device:        options.Device,
		fenceTimeout:  options.FenceTimeout,
		checkOrdering: options.CheckOrdering,
	}
	if ring.fenceTimeout <= 0 {
		ring.fenceTimeout = NoTimeout
	}

	buffers, err := options.Device.AllocateCommandBuffers(options.Size)
	if err != nil {
		return nil, errors.Wrap(err, "allocate frame command buffers")
	}

	for i := 0; i < options.Size; i++ {
		slot := &FrameSlot{
			Index:         i,
			CommandBuffer: buffers[i],
			phase:         slotSubmitted,
		}
		ring.slots = append(ring.slots, slot)

		slot.ImageAvailable, err = options.Device.CreateSemaphore()
		if err != nil {
			ring.Destroy()
			return nil, errors.Wrapf(err, "create image-available semaphore for slot %d", i)
		}

		slot.RenderFinished, err = options.Device.CreateSemaphore()
		if err != nil {
			ring.Destroy()
			return nil, errors.Wrapf(err, "create render-finished semaphore for slot %d", i)
		}

		slot.InFlight, err = options.Device.CreateFence(true)
		if err != nil {
			ring.Destroy()
			return nil, errors.Wrapf(err, "create in-flight fence for slot %d", i)
		}
	}

	return ring, nil
}

func (r *FrameRing) Size() int {
	return len(r.slots)
}

// Slot returns the slot for a frame counter. It never fails.
func (r *FrameRing) Slot(frame uint64) *FrameSlot {
	return r.slots[frame%uint64(len(r.slots))]
}

// WaitUntilFree blocks until the GPU has finished the previous use of the
// slot. It returns ErrFrameWaitTimeout if the configured timeout runs out.
func (r *FrameRing) WaitUntilFree(slot *FrameSlot) error {
	signaled, err := slot.InFlight.Wait(r.fenceTimeout)
	if err != nil {
		return errors.Wrapf(err, "wait for frame slot %d", slot.Index)
	}
	if !signaled {
		return errors.Mark(errors.Newf("frame slot %d still in flight after %s", slot.Index, r.fenceTimeout), ErrFrameWaitTimeout)
	}

	slot.phase = slotFree
	return nil
}

// Reset unsignals the slot's fence and empties its command buffer so it can
// be recorded again. It is only legal after WaitUntilFree succeeded.
func (r *FrameRing) Reset(slot *FrameSlot) error {
	if r.checkOrdering && slot.phase != slotFree {
		return errors.AssertionFailedf("frame slot %d reset before its fence was waited on", slot.Index)
	}

	err := slot.InFlight.Reset()
	if err != nil {
		return errors.Wrapf(err, "reset fence for frame slot %d", slot.Index)
	}

	err = slot.CommandBuffer.Reset()
	if err != nil {
		return errors.Wrapf(err, "reset command buffer for frame slot %d", slot.Index)
	}

	slot.phase = slotRecording
	return nil
}

// MarkSubmitted records that the slot's work has been handed to the GPU.
func (r *FrameRing) MarkSubmitted(slot *FrameSlot) error {
	if r.checkOrdering && slot.phase != slotRecording {
		return errors.AssertionFailedf("frame slot %d submitted without being reset", slot.Index)
	}
	slot.phase = slotSubmitted
	return nil
}

// Destroy releases every slot. The caller must have waited for the device
// to go idle.
func (r *FrameRing) Destroy() {
	var buffers []CommandBuffer
	for _, slot := range r.slots {
		if slot.InFlight != nil {
			slot.InFlight.Destroy()
		}
		if slot.RenderFinished != nil {
			slot.RenderFinished.Destroy()
		}
		if slot.ImageAvailable != nil {
			slot.ImageAvailable.Destroy()
		}
		if slot.CommandBuffer != nil {
			buffers = append(buffers, slot.CommandBuffer)
		}
	}

	if len(buffers) > 0 {
		r.device.FreeCommandBuffers(buffers)
	}
	r.slots = nil
}
