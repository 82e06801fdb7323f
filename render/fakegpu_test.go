package render

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// fakeGPU is a scripted driver. It records every call the frame pipeline
// makes and models fences on a timeline the test controls: with
// autoComplete off, submitted work only finishes when the test says so.
type fakeGPU struct {
	mu sync.Mutex

	nextID int
	events []string

	autoComplete bool
	pending      []*fakeFence

	acquireScript []acquireStep
	acquireCount  int
	presentScript []presentStep

	failSwapchain    error
	failFramebuffer  int
	failFramebuffers error

	swapchainCreates []SwapchainOptions
	framebufferSizes []Extent
	idleWaits        int

	acquires    []Semaphore
	submissions []Submission
	presents    []Presentation
	fences      []*fakeFence
}

type acquireStep struct {
	index  int
	status Status
	err    error
}

type presentStep struct {
	status Status
	err    error
}

func newFakeGPU() *fakeGPU {
	return &fakeGPU{autoComplete: true, failFramebuffer: -1}
}

func (g *fakeGPU) id() int {
	g.nextID++
	return g.nextID
}

func (g *fakeGPU) record(format string, args ...interface{}) {
	g.events = append(g.events, fmt.Sprintf(format, args...))
}

func (g *fakeGPU) Events() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.events...)
}

// completeAll finishes every submission still on the GPU timeline.
func (g *fakeGPU) completeAll() {
	g.mu.Lock()
	pending := g.pending
	g.pending = nil
	g.mu.Unlock()

	for _, fence := range pending {
		fence.signal()
	}
}

func (g *fakeGPU) CreateSwapchain(surface Surface, options SwapchainOptions) (Swapchain, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failSwapchain != nil {
		return nil, g.failSwapchain
	}

	g.swapchainCreates = append(g.swapchainCreates, options)
	imageCount := options.MinImageCount
	sc := &fakeSwapchain{gpu: g, id: g.id(), imageCount: imageCount}
	g.record("create swapchain %d", sc.id)
	return sc, nil
}

func (g *fakeGPU) CreateImageView(image Image, format Format) (ImageView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	view := &fakeHandle{gpu: g, kind: "image view", id: g.id()}
	g.record("create image view %d", view.id)
	return view, nil
}

func (g *fakeGPU) CreateFramebuffer(pass RenderPass, view ImageView, extent Extent) (Framebuffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failFramebuffer == 0 {
		return nil, g.failFramebuffers
	}
	if g.failFramebuffer > 0 {
		g.failFramebuffer--
	}

	g.framebufferSizes = append(g.framebufferSizes, extent)
	fb := &fakeHandle{gpu: g, kind: "framebuffer", id: g.id()}
	g.record("create framebuffer %d", fb.id)
	return fb, nil
}

func (g *fakeGPU) CreateSemaphore() (Semaphore, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return &fakeHandle{gpu: g, kind: "semaphore", id: g.id()}, nil
}

func (g *fakeGPU) CreateFence(signaled bool) (Fence, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	fence := newFakeFence(g, g.id(), signaled)
	g.fences = append(g.fences, fence)
	return fence, nil
}

func (g *fakeGPU) AllocateCommandBuffers(count int) ([]CommandBuffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var buffers []CommandBuffer
	for i := 0; i < count; i++ {
		buffers = append(buffers, &fakeCommandBuffer{gpu: g, id: g.id()})
	}
	return buffers, nil
}

func (g *fakeGPU) FreeCommandBuffers(buffers []CommandBuffer) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, buffer := range buffers {
		g.record("free command buffer %d", buffer.(*fakeCommandBuffer).id)
	}
}

func (g *fakeGPU) CreateBuffer(size int, usage BufferUsage, location MemoryLocation) (Buffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	buffer := &fakeBuffer{gpu: g, id: g.id(), usage: usage, location: location, data: make([]byte, size)}
	g.record("create buffer %d", buffer.id)
	return buffer, nil
}

func (g *fakeGPU) WaitIdle() error {
	g.completeAll()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.idleWaits++
	g.record("device wait idle")
	return nil
}

type fakeHandle struct {
	gpu  *fakeGPU
	kind string
	id   int
}

func (h *fakeHandle) Destroy() {
	h.gpu.mu.Lock()
	defer h.gpu.mu.Unlock()
	h.gpu.record("destroy %s %d", h.kind, h.id)
}

type fakeFence struct {
	gpu *fakeGPU
	id  int

	mu       sync.Mutex
	signaled bool
	done     chan struct{}
}

func newFakeFence(gpu *fakeGPU, id int, signaled bool) *fakeFence {
	f := &fakeFence{gpu: gpu, id: id, done: make(chan struct{})}
	if signaled {
		f.signaled = true
		close(f.done)
	}
	return f
}

func (f *fakeFence) Wait(timeout time.Duration) (bool, error) {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	if timeout == NoTimeout {
		<-done
		return true, nil
	}

	select {
	case <-done:
		return true, nil
	case <-time.After(timeout):
		return false, nil
	}
}

func (f *fakeFence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.signaled {
		f.signaled = false
		f.done = make(chan struct{})
	}
	return nil
}

func (f *fakeFence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.signaled {
		f.signaled = true
		close(f.done)
	}
}

func (f *fakeFence) isSignaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *fakeFence) Destroy() {
	f.gpu.mu.Lock()
	defer f.gpu.mu.Unlock()
	f.gpu.record("destroy fence %d", f.id)
}

type fakeSwapchain struct {
	gpu        *fakeGPU
	id         int
	imageCount int
}

func (s *fakeSwapchain) Images() ([]Image, error) {
	images := make([]Image, s.imageCount)
	for i := range images {
		images[i] = i
	}
	return images, nil
}

func (s *fakeSwapchain) AcquireNextImage(timeout time.Duration, signal Semaphore) (int, Status, error) {
	g := s.gpu
	g.mu.Lock()
	defer g.mu.Unlock()

	g.acquires = append(g.acquires, signal)
	g.record("acquire")

	if len(g.acquireScript) > 0 {
		step := g.acquireScript[0]
		g.acquireScript = g.acquireScript[1:]
		return step.index, step.status, step.err
	}

	index := g.acquireCount % s.imageCount
	g.acquireCount++
	return index, StatusSuccess, nil
}

func (s *fakeSwapchain) Destroy() {
	s.gpu.mu.Lock()
	defer s.gpu.mu.Unlock()
	s.gpu.record("destroy swapchain %d", s.id)
}

type fakeCommandBuffer struct {
	gpu *fakeGPU
	id  int

	ops         []string
	failBegin   error
	vertexCount int
	viewport    Extent
	scissor     Extent
	framebuffer Framebuffer
}

func (c *fakeCommandBuffer) Begin(oneTimeSubmit bool) error {
	if c.failBegin != nil {
		return c.failBegin
	}
	c.ops = append(c.ops, "begin")
	return nil
}

func (c *fakeCommandBuffer) End() error {
	c.ops = append(c.ops, "end")
	return nil
}

func (c *fakeCommandBuffer) Reset() error {
	c.ops = nil
	return nil
}

func (c *fakeCommandBuffer) BeginRenderPass(pass RenderPass, framebuffer Framebuffer, area Extent, clear [4]float32) error {
	c.framebuffer = framebuffer
	c.ops = append(c.ops, "begin render pass")
	return nil
}

func (c *fakeCommandBuffer) EndRenderPass() {
	c.ops = append(c.ops, "end render pass")
}

func (c *fakeCommandBuffer) BindPipeline(pipeline Pipeline) {
	c.ops = append(c.ops, "bind pipeline")
}

func (c *fakeCommandBuffer) BindVertexBuffer(buffer Buffer) {
	c.ops = append(c.ops, "bind vertex buffer")
}

func (c *fakeCommandBuffer) SetViewport(extent Extent) {
	c.viewport = extent
	c.ops = append(c.ops, "set viewport")
}

func (c *fakeCommandBuffer) SetScissor(extent Extent) {
	c.scissor = extent
	c.ops = append(c.ops, "set scissor")
}

func (c *fakeCommandBuffer) Draw(vertexCount int) {
	c.vertexCount = vertexCount
	c.ops = append(c.ops, "draw")
}

func (c *fakeCommandBuffer) CopyBuffer(src, dst Buffer, size int) error {
	copy(dst.(*fakeBuffer).data, src.(*fakeBuffer).data[:size])
	c.ops = append(c.ops, "copy buffer")
	return nil
}

type fakeBuffer struct {
	gpu      *fakeGPU
	id       int
	usage    BufferUsage
	location MemoryLocation
	data     []byte
}

func (b *fakeBuffer) Size() int {
	return len(b.data)
}

func (b *fakeBuffer) Write(data []byte) error {
	if len(data) > len(b.data) {
		return errors.Newf("write of %d bytes into a %d byte buffer", len(data), len(b.data))
	}
	copy(b.data, data)
	return nil
}

func (b *fakeBuffer) Destroy() {
	b.gpu.mu.Lock()
	defer b.gpu.mu.Unlock()
	b.gpu.record("destroy buffer %d", b.id)
}

type fakeQueue struct {
	gpu    *fakeGPU
	family int
}

func (q *fakeQueue) Family() int {
	return q.family
}

func (q *fakeQueue) Submit(fence Fence, submission Submission) error {
	g := q.gpu
	g.mu.Lock()
	g.submissions = append(g.submissions, submission)
	g.record("submit")
	autoComplete := g.autoComplete
	if fence != nil && !autoComplete {
		g.pending = append(g.pending, fence.(*fakeFence))
	}
	g.mu.Unlock()

	if fence != nil && autoComplete {
		fence.(*fakeFence).signal()
	}
	return nil
}

func (q *fakeQueue) Present(presentation Presentation) (Status, error) {
	g := q.gpu
	g.mu.Lock()
	defer g.mu.Unlock()

	g.presents = append(g.presents, presentation)
	g.record("present")

	if len(g.presentScript) > 0 {
		step := g.presentScript[0]
		g.presentScript = g.presentScript[1:]
		return step.status, step.err
	}
	return StatusSuccess, nil
}

func (q *fakeQueue) WaitIdle() error {
	q.gpu.completeAll()
	return nil
}

type fakePhysicalDevice struct {
	families []QueueFamilyProperties
}

func (d *fakePhysicalDevice) QueueFamilyProperties() []QueueFamilyProperties {
	return d.families
}

type fakeSurface struct {
	presentFamilies map[int]bool
	presentErr      error

	capabilities SurfaceCapabilities
	formats      []SurfaceFormat
	modes        []PresentMode
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		presentFamilies: map[int]bool{0: true},
		capabilities: SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  3,
			CurrentExtent:  Extent{Width: UndefinedExtent, Height: UndefinedExtent},
			MinImageExtent: Extent{Width: 1, Height: 1},
			MaxImageExtent: Extent{Width: 4096, Height: 4096},
		},
		formats: []SurfaceFormat{
			{Format: FormatB8G8R8A8UnsignedNormalized, ColorSpace: ColorSpaceSRGBNonlinear},
			{Format: FormatB8G8R8A8SRGB, ColorSpace: ColorSpaceSRGBNonlinear},
		},
		modes: []PresentMode{PresentFIFO, PresentMailbox},
	}
}

func (s *fakeSurface) SupportsPresent(device PhysicalDevice, queueFamily int) (bool, error) {
	if s.presentErr != nil {
		return false, s.presentErr
	}
	return s.presentFamilies[queueFamily], nil
}

func (s *fakeSurface) Capabilities(device PhysicalDevice) (SurfaceCapabilities, error) {
	return s.capabilities, nil
}

func (s *fakeSurface) Formats(device PhysicalDevice) ([]SurfaceFormat, error) {
	return s.formats, nil
}

func (s *fakeSurface) PresentModes(device PhysicalDevice) ([]PresentMode, error) {
	return s.modes, nil
}

type fakeWindow struct {
	mu     sync.Mutex
	width  int
	height int

	closed     bool
	closeAfter int
	polls      int

	// onWait runs for every WaitEvents call; a minimized window uses it to
	// come back after a few events.
	onWait     func(w *fakeWindow)
	waitEvents int

	resize ResizeSignal
}

func newFakeWindow(width, height int) *fakeWindow {
	return &fakeWindow{width: width, height: height, closeAfter: -1}
}

func (w *fakeWindow) DrawableSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

func (w *fakeWindow) setSize(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
	w.resize.Notify()
}

func (w *fakeWindow) WaitEvents() {
	w.waitEvents++
	if w.onWait != nil {
		w.onWait(w)
	}
}

func (w *fakeWindow) ShouldClose() bool {
	return w.closed
}

func (w *fakeWindow) PollEvents() {
	w.polls++
	if w.closeAfter >= 0 && w.polls > w.closeAfter {
		w.closed = true
	}
}

func (w *fakeWindow) ConsumeResize() bool {
	return w.resize.Consume()
}

// harness wires the real frame pipeline to the fakes.
type harness struct {
	gpu      *fakeGPU
	window   *fakeWindow
	surface  *fakeSurface
	physical *fakePhysicalDevice
	graphics *fakeQueue
	present  *fakeQueue

	swapchains *SwapchainManager
	frames     *FrameRing
	scheduler  *Scheduler
	vertices   Buffer
}

type harnessOptions struct {
	slots         int
	fenceTimeout  time.Duration
	autoComplete  bool
	checkOrdering bool
}

func newHarness(t *testing.T, configure ...func(*harnessOptions)) *harness {
	t.Helper()

	opts := harnessOptions{
		slots:         MaxFramesInFlight,
		autoComplete:  true,
		checkOrdering: true,
	}
	for _, c := range configure {
		c(&opts)
	}

	gpu := newFakeGPU()
	gpu.autoComplete = opts.autoComplete

	h := &harness{
		gpu:      gpu,
		window:   newFakeWindow(800, 600),
		surface:  newFakeSurface(),
		physical: &fakePhysicalDevice{families: []QueueFamilyProperties{{Graphics: true, Count: 1}}},
		graphics: &fakeQueue{gpu: gpu},
		present:  &fakeQueue{gpu: gpu},
	}

	queues, err := ResolveQueueFamilies(h.physical, h.surface)
	require.NoError(t, err)

	h.swapchains = NewSwapchainManager(SwapchainManagerOptions{
		Device:         gpu,
		PhysicalDevice: h.physical,
		Surface:        h.surface,
		Window:         h.window,
		Queues:         queues,
		RenderPass:     "render pass",
		Preferences:    DefaultSwapchainPreferences(),
	})
	require.NoError(t, h.swapchains.Build())

	h.frames, err = NewFrameRing(FrameRingOptions{
		Device:        gpu,
		Size:          opts.slots,
		FenceTimeout:  opts.fenceTimeout,
		CheckOrdering: opts.checkOrdering,
	})
	require.NoError(t, err)

	h.vertices, err = gpu.CreateBuffer(3*24, BufferUsageVertexBuffer, MemoryDeviceLocal)
	require.NoError(t, err)

	h.scheduler = NewScheduler(SchedulerOptions{
		Device:        gpu,
		Window:        h.window,
		Swapchains:    h.swapchains,
		Frames:        h.frames,
		Recorder:      &Recorder{RenderPass: "render pass"},
		GraphicsQueue: h.graphics,
		PresentQueue:  h.present,
		Target: DrawTarget{
			Pipeline:     "pipeline",
			VertexBuffer: h.vertices,
			VertexCount:  3,
		},
		CheckOrdering: opts.checkOrdering,
	})

	return h
}
