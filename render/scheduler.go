package render

import (
	"time"

	"github.com/cockroachdb/errors"
)

type SchedulerOptions struct {
	Device        Device
	Window        Window
	Swapchains    *SwapchainManager
	Frames        *FrameRing
	Recorder      *Recorder
	GraphicsQueue Queue
	PresentQueue  Queue
	Target        DrawTarget

	// AcquireTimeout bounds the wait for the next swapchain image. Zero
	// means wait forever.
	AcquireTimeout time.Duration
	// StatsInterval is how many frames go into each frame-time report.
	// Zero disables the reports.
	StatsInterval uint64
	// CheckOrdering makes a present without a matching acquire an error.
	CheckOrdering bool
}

// Scheduler drives one frame at a time: wait for a free slot, acquire an
// image, record, submit, present. GPU-side ordering between those steps is
// carried entirely by the slot's semaphores; the only thing the CPU blocks
// on is the slot's fence.
type Scheduler struct {
	device        Device
	window        Window
	swapchains    *SwapchainManager
	frames        *FrameRing
	recorder      *Recorder
	graphicsQueue Queue
	presentQueue  Queue
	target        DrawTarget

	acquireTimeout time.Duration
	checkOrdering  bool

	frame        uint64
	pendingImage int
	stats        FrameStats
	timer        *frameTimer
}

func NewScheduler(options SchedulerOptions) *Scheduler {
	acquireTimeout := options.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = NoTimeout
	}

	return &Scheduler{
		device:         options.Device,
		window:         options.Window,
		swapchains:     options.Swapchains,
		frames:         options.Frames,
		recorder:       options.Recorder,
		graphicsQueue:  options.GraphicsQueue,
		presentQueue:   options.PresentQueue,
		target:         options.Target,
		acquireTimeout: acquireTimeout,
		checkOrdering:  options.CheckOrdering,
		pendingImage:   -1,
		timer:          newFrameTimer(options.StatsInterval),
	}
}

// Frame is the number of frames that reached the present step.
func (s *Scheduler) Frame() uint64 {
	return s.frame
}

func (s *Scheduler) Stats() FrameStats {
	return s.stats
}

// Run draws frames until the window asks to close, then waits for the
// device to go idle so the caller can release resources.
//
// Run stops on the first error IsFatal reports, and that includes
// ErrFrameWaitTimeout and ErrAcquireTimeout. Callers that want to retry
// after a finite timeout drive DrawFrame themselves.
func (s *Scheduler) Run() error {
	var err error

	for {
		s.window.PollEvents()
		if s.window.ShouldClose() {
			break
		}

		err = s.DrawFrame()
		if errors.Is(err, ErrWindowClosed) {
			err = nil
			break
		}
		if err != nil {
			break
		}
	}

	idleErr := s.device.WaitIdle()
	if idleErr != nil {
		idleErr = errors.Wrap(idleErr, "wait for device idle after the render loop")
	}
	return errors.CombineErrors(err, idleErr)
}

// DrawFrame runs one iteration of the frame protocol. Out-of-date,
// suboptimal and resize conditions are handled with a swapchain rebuild and
// never returned. Everything it does return is fatal, except
// ErrWindowClosed.
func (s *Scheduler) DrawFrame() error {
	slot := s.frames.Slot(s.frame)

	err := s.frames.WaitUntilFree(slot)
	if err != nil {
		return err
	}

	gen := s.swapchains.Current()
	if gen == nil {
		return errors.AssertionFailedf("draw frame %d without a built swapchain", s.frame)
	}

	imageIndex, status, err := gen.Swapchain.AcquireNextImage(s.acquireTimeout, slot.ImageAvailable)
	if err != nil {
		return fail(err, ErrImageAcquireFailed, "acquire swapchain image for frame %d", s.frame)
	}

	switch status {
	case StatusOutOfDate:
		// Nothing was submitted, so the slot's fence is still signaled and
		// the same slot is used again next iteration.
		Logger().Warn("swapchain out of date on acquire", "frame", s.frame, "generation", gen.Number)
		s.stats.Skipped++
		return s.rebuild()
	case StatusTimeout:
		return errors.Mark(errors.Newf("no swapchain image within %s", s.acquireTimeout), ErrAcquireTimeout)
	}
	suboptimal := status == StatusSuboptimal

	if imageIndex < 0 || imageIndex >= len(gen.Framebuffers) {
		return errors.AssertionFailedf("acquired image %d outside swapchain of %d images", imageIndex, len(gen.Framebuffers))
	}
	s.pendingImage = imageIndex

	err = s.frames.Reset(slot)
	if err != nil {
		return err
	}

	err = s.recorder.RecordTarget(slot.CommandBuffer, gen.Framebuffers[imageIndex], gen.Config.Extent, s.target)
	if err != nil {
		return err
	}

	err = s.graphicsQueue.Submit(slot.InFlight, Submission{
		WaitSemaphore:   slot.ImageAvailable,
		WaitStage:       PipelineStageColorAttachmentOutput,
		CommandBuffer:   slot.CommandBuffer,
		SignalSemaphore: slot.RenderFinished,
	})
	if err != nil {
		return fail(err, ErrSubmitFailed, "submit frame %d", s.frame)
	}
	s.stats.Submissions++

	err = s.frames.MarkSubmitted(slot)
	if err != nil {
		return err
	}

	presentStatus, err := s.present(gen, slot)
	if err != nil {
		return err
	}

	s.frame++
	s.stats.Frames = s.frame
	if s.timer.tick(&s.stats) {
		Logger().Debug("frame stats",
			"frames", s.stats.Frames,
			"avgFrameTime", s.stats.AverageFrameTime,
			"fps", s.stats.FPS(),
			"rebuilds", s.stats.Rebuilds)
	}

	resized := s.window.ConsumeResize()
	switch {
	case presentStatus == StatusOutOfDate:
		Logger().Warn("swapchain out of date on present", "frame", s.frame)
	case presentStatus == StatusSuboptimal:
		Logger().Warn("swapchain suboptimal on present", "frame", s.frame)
	case suboptimal:
		Logger().Warn("swapchain suboptimal on acquire", "frame", s.frame)
	case resized:
		Logger().Info("window resized", "frame", s.frame)
	default:
		return nil
	}

	return s.rebuild()
}

func (s *Scheduler) present(gen *SwapchainGeneration, slot *FrameSlot) (Status, error) {
	imageIndex := s.pendingImage
	if s.checkOrdering && imageIndex < 0 {
		return StatusSuccess, errors.AssertionFailedf("present on frame %d without an acquired image", s.frame)
	}
	s.pendingImage = -1

	status, err := s.presentQueue.Present(Presentation{
		WaitSemaphore: slot.RenderFinished,
		Swapchain:     gen.Swapchain,
		ImageIndex:    imageIndex,
	})
	if err != nil {
		return status, fail(err, ErrPresentFailed, "present image %d on frame %d", imageIndex, s.frame)
	}
	if status == StatusTimeout {
		return status, fail(nil, ErrPresentFailed, "present image %d on frame %d timed out", imageIndex, s.frame)
	}

	s.stats.Presents++
	return status, nil
}

// rebuild is the single entry point for every transient condition. The
// zero-extent wait inside Rebuild handles window events, so a restore can
// notify a resize the new generation already covers. The notification is
// cleared only once the rebuild has succeeded.
func (s *Scheduler) rebuild() error {
	s.stats.Rebuilds++

	err := s.swapchains.Rebuild()
	if err != nil {
		return err
	}

	s.window.ConsumeResize()
	return nil
}
