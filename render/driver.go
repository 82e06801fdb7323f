package render

import "time"

// NoTimeout waits forever. It is the value the wait and acquire calls use
// when a timeout of zero is configured.
const NoTimeout = time.Duration(1<<63 - 1)

// UndefinedExtent is the width reported in SurfaceCapabilities.CurrentExtent
// when the surface lets the swapchain pick its own size.
const UndefinedExtent = -1

type Format uint32

type ColorSpace uint32

// Values shared with the Vulkan enums so drivers can convert by cast.
const (
	FormatB8G8R8A8UnsignedNormalized Format = 44
	FormatB8G8R8A8SRGB               Format = 50

	ColorSpaceSRGBNonlinear ColorSpace = 0
)

type PresentMode int

const (
	PresentImmediate PresentMode = iota
	PresentMailbox
	PresentFIFO
	PresentFIFORelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentImmediate:
		return "immediate"
	case PresentMailbox:
		return "mailbox"
	case PresentFIFO:
		return "fifo"
	case PresentFIFORelaxed:
		return "fifo-relaxed"
	}
	return "unknown"
}

// SharingMode says whether swapchain images belong to one queue family at a time.
type SharingMode int

const (
	SharingExclusive SharingMode = iota
	SharingConcurrent
)

type Extent struct {
	Width, Height int
}

func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type SurfaceCapabilities struct {
	MinImageCount int
	// MaxImageCount of 0 means there is no upper bound.
	MaxImageCount int

	CurrentExtent  Extent
	MinImageExtent Extent
	MaxImageExtent Extent

	// CurrentTransform is passed through to swapchain creation untouched.
	CurrentTransform uint32
}

type QueueFamilyProperties struct {
	Graphics bool
	// Count is the number of queues the family offers.
	Count    int
}

// Status classifies the result of acquire and present calls. Anything that
// is neither a Status nor success comes back as an error.
type Status int

const (
	StatusSuccess Status = iota
	StatusSuboptimal
	StatusOutOfDate
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	case StatusTimeout:
		return "timeout"
	}
	return "unknown"
}

type PipelineStage uint32

// Only the stage the scheduler waits at is named here.
const PipelineStageColorAttachmentOutput PipelineStage = 0x00000400

type BufferUsage uint32

const (
	BufferUsageTransferSrc  BufferUsage = 0x00000001
	BufferUsageTransferDst  BufferUsage = 0x00000002
	BufferUsageVertexBuffer BufferUsage = 0x00000080
)

// MemoryLocation picks between memory the host can map and memory local to the GPU.
type MemoryLocation int

const (
	MemoryHostVisible MemoryLocation = iota
	MemoryDeviceLocal
)

// Opaque handles. The render package never looks inside them; it only hands
// them back to the driver that produced them.
type (
	Image      interface{}
	RenderPass interface{}
	Pipeline   interface{}
)

type Semaphore interface {
	Destroy()
}

type Fence interface {
	// Wait blocks until the fence is signaled or the timeout expires. It
	// reports false, with a nil error, when the timeout expired first.
	Wait(timeout time.Duration) (bool, error)
	Reset() error
	Destroy()
}

type ImageView interface {
	Destroy()
}

type Framebuffer interface {
	Destroy()
}

type Buffer interface {
	Size() int
	Write(data []byte) error
	Destroy()
}

type CommandBuffer interface {
	Begin(oneTimeSubmit bool) error
	End() error
	Reset() error

	BeginRenderPass(pass RenderPass, framebuffer Framebuffer, area Extent, clear [4]float32) error
	EndRenderPass()
	BindPipeline(pipeline Pipeline)
	BindVertexBuffer(buffer Buffer)
	SetViewport(extent Extent)
	SetScissor(extent Extent)
	Draw(vertexCount int)

	CopyBuffer(src, dst Buffer, size int) error
}

type Swapchain interface {
	Images() ([]Image, error)
	// AcquireNextImage signals the semaphore once the returned image may be
	// rendered to. OutOfDate, Suboptimal and Timeout come back as a Status
	// with a nil error.
	AcquireNextImage(timeout time.Duration, signal Semaphore) (int, Status, error)
	Destroy()
}

type Submission struct {
	WaitSemaphore   Semaphore
	WaitStage       PipelineStage
	CommandBuffer   CommandBuffer
	SignalSemaphore Semaphore
}

type Presentation struct {
	WaitSemaphore Semaphore
	Swapchain     Swapchain
	ImageIndex    int
}

type Queue interface {
	Family() int
	// Submit enqueues one batch. The fence may be nil; when it is not, it is
	// signaled after all of the batch has finished executing.
	Submit(fence Fence, submission Submission) error
	Present(presentation Presentation) (Status, error)
	WaitIdle() error
}

type SwapchainOptions struct {
	MinImageCount    int
	Format           SurfaceFormat
	Extent           Extent
	PresentMode      PresentMode
	SharingMode      SharingMode
	QueueFamilies    []int
	CurrentTransform uint32
}

type PhysicalDevice interface {
	QueueFamilyProperties() []QueueFamilyProperties
}

type Surface interface {
	SupportsPresent(device PhysicalDevice, queueFamily int) (bool, error)
	Capabilities(device PhysicalDevice) (SurfaceCapabilities, error)
	Formats(device PhysicalDevice) ([]SurfaceFormat, error)
	PresentModes(device PhysicalDevice) ([]PresentMode, error)
}

// Device is the logical device: the factory for every object the frame
// pipeline creates, and the target of the idle wait that precedes teardown.
type Device interface {
	CreateSwapchain(surface Surface, options SwapchainOptions) (Swapchain, error)
	CreateImageView(image Image, format Format) (ImageView, error)
	CreateFramebuffer(pass RenderPass, view ImageView, extent Extent) (Framebuffer, error)

	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)
	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers []CommandBuffer)

	CreateBuffer(size int, usage BufferUsage, location MemoryLocation) (Buffer, error)

	WaitIdle() error
}
