package render

import (
	"github.com/cockroachdb/errors"
)

type SwapchainState int

const (
	SwapchainUnbuilt SwapchainState = iota
	SwapchainValid
	SwapchainInvalidated
	SwapchainRebuilding
	SwapchainDestroyed
)

func (s SwapchainState) String() string {
	switch s {
	case SwapchainUnbuilt:
		return "unbuilt"
	case SwapchainValid:
		return "valid"
	case SwapchainInvalidated:
		return "invalidated"
	case SwapchainRebuilding:
		return "rebuilding"
	case SwapchainDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// SwapChainSupportDetails is what the surface reports for one physical device.
type SwapChainSupportDetails struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

func QuerySwapChainSupport(device PhysicalDevice, surface Surface) (SwapChainSupportDetails, error) {
	var details SwapChainSupportDetails
	var err error

	details.Capabilities, err = surface.Capabilities(device)
	if err != nil {
		return details, err
	}

	details.Formats, err = surface.Formats(device)
	if err != nil {
		return details, err
	}

	details.PresentModes, err = surface.PresentModes(device)
	return details, err
}

// SurfaceConfig is the negotiated shape of one swapchain generation.
type SurfaceConfig struct {
	Format        SurfaceFormat
	Extent        Extent
	PresentMode   PresentMode
	MinImageCount int
	SharingMode   SharingMode
	QueueFamilies []int
}

// SwapchainPreferences are the values negotiation tries first.
type SwapchainPreferences struct {
	Format SurfaceFormat
	// PresentMode is used if the surface offers it; FIFO otherwise.
	PresentMode PresentMode
}

func DefaultSwapchainPreferences() SwapchainPreferences {
	return SwapchainPreferences{
		Format: SurfaceFormat{
			Format:     FormatB8G8R8A8SRGB,
			ColorSpace: ColorSpaceSRGBNonlinear,
		},
		PresentMode: PresentMailbox,
	}
}

func ChooseSwapSurfaceFormat(availableFormats []SurfaceFormat, preferred SurfaceFormat) SurfaceFormat {
	for _, format := range availableFormats {
		if format == preferred {
			return format
		}
	}

	return availableFormats[0]
}

// ChooseSwapPresentMode falls back to FIFO, the one mode every surface supports.
func ChooseSwapPresentMode(availablePresentModes []PresentMode, preferred PresentMode) PresentMode {
	for _, presentMode := range availablePresentModes {
		if presentMode == preferred {
			return presentMode
		}
	}

	return PresentFIFO
}

// ChooseSwapExtent uses the surface's current extent when it has one and
// otherwise clamps the window's drawable size to the surface limits.
func ChooseSwapExtent(capabilities SurfaceCapabilities, drawableWidth, drawableHeight int) Extent {
	if capabilities.CurrentExtent.Width != UndefinedExtent {
		return capabilities.CurrentExtent
	}

	return Extent{
		Width:  clamp(drawableWidth, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clamp(drawableHeight, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum so the driver
// never makes us wait on it, within the surface's maximum.
func ChooseImageCount(capabilities SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func clamp(v, lo, hi int) int {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

// NegotiateSurfaceConfig intersects what the surface supports with the
// preferences and the window's drawable size.
func NegotiateSurfaceConfig(support SwapChainSupportDetails, prefs SwapchainPreferences, queues QueueFamilyIndices, drawableWidth, drawableHeight int) (SurfaceConfig, error) {
	if len(support.Formats) == 0 {
		return SurfaceConfig{}, errors.New("surface reports no formats")
	}
	if !queues.IsComplete() {
		return SurfaceConfig{}, errors.AssertionFailedf("negotiating a swapchain without resolved queue families")
	}

	config := SurfaceConfig{
		Format:        ChooseSwapSurfaceFormat(support.Formats, prefs.Format),
		PresentMode:   ChooseSwapPresentMode(support.PresentModes, prefs.PresentMode),
		Extent:        ChooseSwapExtent(support.Capabilities, drawableWidth, drawableHeight),
		MinImageCount: ChooseImageCount(support.Capabilities),
		SharingMode:   SharingExclusive,
	}

	if !queues.Shared() {
		config.SharingMode = SharingConcurrent
		config.QueueFamilies = []int{*queues.GraphicsFamily, *queues.PresentFamily}
	}

	return config, nil
}

// SwapchainGeneration is one build of the swapchain and everything derived
// from its images. Callers may read it for the duration of a frame but must
// not keep it across a rebuild.
type SwapchainGeneration struct {
	Number       int
	Config       SurfaceConfig
	Swapchain    Swapchain
	Images       []Image
	ImageViews   []ImageView
	Framebuffers []Framebuffer

	resources resourceStack
}

type SwapchainManagerOptions struct {
	Device         Device
	PhysicalDevice PhysicalDevice
	Surface        Surface
	Window         Drawable
	Queues         QueueFamilyIndices
	RenderPass     RenderPass
	Preferences    SwapchainPreferences
}

// SwapchainManager owns the presentable images and rebuilds them when the
// surface changes underneath.
type SwapchainManager struct {
	device         Device
	physicalDevice PhysicalDevice
	surface        Surface
	window         Drawable
	queues         QueueFamilyIndices
	renderPass     RenderPass
	prefs          SwapchainPreferences

	state       SwapchainState
	current     *SwapchainGeneration
	generations int
}

func NewSwapchainManager(options SwapchainManagerOptions) *SwapchainManager {
	return &SwapchainManager{
		device:         options.Device,
		physicalDevice: options.PhysicalDevice,
		surface:        options.Surface,
		window:         options.Window,
		queues:         options.Queues,
		renderPass:     options.RenderPass,
		prefs:          options.Preferences,
		state:          SwapchainUnbuilt,
	}
}

func (m *SwapchainManager) State() SwapchainState {
	return m.state
}

// Current returns the live generation, or nil when nothing is built.
func (m *SwapchainManager) Current() *SwapchainGeneration {
	return m.current
}

// Build negotiates a surface configuration and creates the swapchain, one
// image view per image and one framebuffer per view. A failure part way
// through releases whatever was already created.
func (m *SwapchainManager) Build() error {
	switch m.state {
	case SwapchainDestroyed:
		return errors.AssertionFailedf("build after the swapchain manager was destroyed")
	case SwapchainValid, SwapchainInvalidated:
		if m.current != nil {
			return errors.AssertionFailedf("build over a live swapchain; tear it down first")
		}
	}

	support, err := QuerySwapChainSupport(m.physicalDevice, m.surface)
	if err != nil {
		return fail(err, ErrSwapchainCreationFailed, "query surface support")
	}

	width, height := m.window.DrawableSize()
	config, err := NegotiateSurfaceConfig(support, m.prefs, m.queues, width, height)
	if err != nil {
		return fail(err, ErrSwapchainCreationFailed, "negotiate surface configuration")
	}

	gen := &SwapchainGeneration{
		Number: m.generations + 1,
		Config: config,
	}

	err = m.createResources(gen, support.Capabilities)
	if err != nil {
		gen.resources.unwind()
		return err
	}

	m.generations = gen.Number
	m.current = gen
	m.state = SwapchainValid

	Logger().Info("built swapchain",
		"generation", gen.Number,
		"width", config.Extent.Width,
		"height", config.Extent.Height,
		"format", config.Format.Format,
		"presentMode", config.PresentMode,
		"images", len(gen.Images))
	return nil
}

func (m *SwapchainManager) createResources(gen *SwapchainGeneration, capabilities SurfaceCapabilities) error {
	config := gen.Config

	swapchain, err := m.device.CreateSwapchain(m.surface, SwapchainOptions{
		MinImageCount:    config.MinImageCount,
		Format:           config.Format,
		Extent:           config.Extent,
		PresentMode:      config.PresentMode,
		SharingMode:      config.SharingMode,
		QueueFamilies:    config.QueueFamilies,
		CurrentTransform: capabilities.CurrentTransform,
	})
	if err != nil {
		return fail(err, ErrSwapchainCreationFailed, "create swapchain")
	}
	gen.Swapchain = swapchain
	gen.resources.push("swapchain", swapchain.Destroy)

	images, err := swapchain.Images()
	if err != nil {
		return fail(err, ErrSwapchainCreationFailed, "get swapchain images")
	}
	gen.Images = images

	for i, image := range images {
		view, err := m.device.CreateImageView(image, config.Format.Format)
		if err != nil {
			return fail(err, ErrSwapchainCreationFailed, "create image view %d", i)
		}
		gen.ImageViews = append(gen.ImageViews, view)
		gen.resources.push("image view", view.Destroy)
	}

	for i, view := range gen.ImageViews {
		framebuffer, err := m.device.CreateFramebuffer(m.renderPass, view, config.Extent)
		if err != nil {
			return fail(err, ErrSwapchainCreationFailed, "create framebuffer %d", i)
		}
		gen.Framebuffers = append(gen.Framebuffers, framebuffer)
		gen.resources.push("framebuffer", framebuffer.Destroy)
	}

	return nil
}

// Teardown destroys the framebuffers, then the image views, then the
// swapchain. The caller must have waited for the device to go idle.
func (m *SwapchainManager) Teardown() {
	if m.current != nil {
		m.current.resources.unwind()
		m.current = nil
	}

	if m.state != SwapchainRebuilding && m.state != SwapchainDestroyed {
		m.state = SwapchainUnbuilt
	}
}

// Invalidate records that the surface no longer matches the swapchain.
// Rebuild must follow before the next acquire.
func (m *SwapchainManager) Invalidate() {
	if m.state == SwapchainValid {
		m.state = SwapchainInvalidated
	}
}

// Rebuild replaces the current generation. It blocks until the window has a
// non-zero drawable size, waits for the device to go idle so no pending work
// still references the old images, and then tears down and builds again.
//
// If the window is closed while minimized, Rebuild returns ErrWindowClosed
// and leaves the old generation in place for Destroy.
func (m *SwapchainManager) Rebuild() error {
	if m.state == SwapchainDestroyed {
		return errors.AssertionFailedf("rebuild after the swapchain manager was destroyed")
	}
	m.Invalidate()

	width, height := m.window.DrawableSize()
	for width == 0 || height == 0 {
		if m.window.ShouldClose() {
			return ErrWindowClosed
		}

		Logger().Debug("waiting for a non-zero drawable size before rebuilding")
		m.window.WaitEvents()
		width, height = m.window.DrawableSize()
	}

	m.state = SwapchainRebuilding

	err := m.device.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "wait for device idle before rebuilding the swapchain")
	}

	m.Teardown()
	err = m.Build()
	if err != nil {
		return err
	}

	Logger().Info("rebuilt swapchain", "generation", m.current.Number)
	return nil
}

// Destroy releases the current generation for good. The caller must have
// waited for the device to go idle.
func (m *SwapchainManager) Destroy() {
	m.state = SwapchainDestroyed
	m.Teardown()
}
