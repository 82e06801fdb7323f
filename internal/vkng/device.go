package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/meshview/render"
)

type PhysicalDevice struct {
	handle core1_0.PhysicalDevice
}

func (p *PhysicalDevice) QueueFamilyProperties() []render.QueueFamilyProperties {
	queueFamilies := p.handle.QueueFamilyProperties()

	out := make([]render.QueueFamilyProperties, 0, len(queueFamilies))
	for _, queueFamily := range queueFamilies {
		out = append(out, render.QueueFamilyProperties{
			Graphics: (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0,
			Count:    queueFamily.QueueCount,
		})
	}
	return out
}

func (p *PhysicalDevice) Name() string {
	properties, err := p.handle.Properties()
	if err != nil {
		return "unknown"
	}
	return properties.DeviceName
}

func (p *PhysicalDevice) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := p.handle.MemoryProperties()
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Newf("no memory type matches filter %#x with properties %s", typeFilter, properties)
}

type Surface struct {
	handle khr_surface.Surface
}

func physical(device render.PhysicalDevice) core1_0.PhysicalDevice {
	return device.(*PhysicalDevice).handle
}

func (s *Surface) SupportsPresent(device render.PhysicalDevice, queueFamily int) (bool, error) {
	supported, _, err := s.handle.PhysicalDeviceSurfaceSupport(physical(device), queueFamily)
	return supported, err
}

func (s *Surface) Capabilities(device render.PhysicalDevice) (render.SurfaceCapabilities, error) {
	caps, _, err := s.handle.PhysicalDeviceSurfaceCapabilities(physical(device))
	if err != nil {
		return render.SurfaceCapabilities{}, err
	}
	return fromCapabilities(caps), nil
}

func (s *Surface) Formats(device render.PhysicalDevice) ([]render.SurfaceFormat, error) {
	formats, _, err := s.handle.PhysicalDeviceSurfaceFormats(physical(device))
	if err != nil {
		return nil, err
	}

	out := make([]render.SurfaceFormat, 0, len(formats))
	for _, format := range formats {
		out = append(out, render.SurfaceFormat{
			Format:     render.Format(format.Format),
			ColorSpace: render.ColorSpace(format.ColorSpace),
		})
	}
	return out, nil
}

func (s *Surface) PresentModes(device render.PhysicalDevice) ([]render.PresentMode, error) {
	presentModes, _, err := s.handle.PhysicalDeviceSurfacePresentModes(physical(device))
	if err != nil {
		return nil, err
	}

	var out []render.PresentMode
	for _, presentMode := range presentModes {
		mode, ok := fromPresentMode(presentMode)
		if ok {
			out = append(out, mode)
		}
	}
	return out, nil
}

// Device is the logical device together with the command pool every command
// buffer is allocated from.
type Device struct {
	handle     core1_0.Device
	physical   *PhysicalDevice
	swapchains khr_swapchain.Extension
	pool       core1_0.CommandPool
}

var (
	_ render.Device         = (*Device)(nil)
	_ render.PhysicalDevice = (*PhysicalDevice)(nil)
	_ render.Surface        = (*Surface)(nil)
)

// Queue returns the first queue of a family.
func (d *Device) Queue(family int) render.Queue {
	return &queue{
		handle:    d.handle.GetQueue(family, 0),
		family:    family,
		swapchain: d.swapchains,
	}
}

func (d *Device) CreateSwapchain(surface render.Surface, options render.SwapchainOptions) (render.Swapchain, error) {
	handle, _, err := d.swapchains.CreateSwapchain(d.handle, nil, khr_swapchain.SwapchainCreateInfo{
		Surface: surface.(*Surface).handle,

		MinImageCount:    options.MinImageCount,
		ImageFormat:      core1_0.Format(options.Format.Format),
		ImageColorSpace:  khr_surface.ColorSpace(options.Format.ColorSpace),
		ImageExtent:      toExtent(options.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   toSharingMode(options.SharingMode),
		QueueFamilyIndices: options.QueueFamilies,

		PreTransform:   khr_surface.SurfaceTransformFlags(options.CurrentTransform),
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    toPresentMode(options.PresentMode),
		Clipped:        true,
	})
	if err != nil {
		return nil, err
	}
	return &swapchain{handle: handle}, nil
}

func (d *Device) CreateImageView(image render.Image, format render.Format) (render.ImageView, error) {
	view, _, err := d.handle.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image.(core1_0.Image),
		ViewType: core1_0.ImageViewType2D,
		Format:   core1_0.Format(format),
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, err
	}
	return &imageView{handle: view}, nil
}

func (d *Device) CreateFramebuffer(pass render.RenderPass, view render.ImageView, extent render.Extent) (render.Framebuffer, error) {
	fb, _, err := d.handle.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass: pass.(core1_0.RenderPass),
		Layers:     1,
		Attachments: []core1_0.ImageView{
			view.(*imageView).handle,
		},
		Width:  extent.Width,
		Height: extent.Height,
	})
	if err != nil {
		return nil, err
	}
	return &framebuffer{handle: fb}, nil
}

func (d *Device) CreateSemaphore() (render.Semaphore, error) {
	handle, _, err := d.handle.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return nil, err
	}
	return &semaphore{handle: handle}, nil
}

func (d *Device) CreateFence(signaled bool) (render.Fence, error) {
	var info core1_0.FenceCreateInfo
	if signaled {
		info.Flags = core1_0.FenceCreateSignaled
	}

	handle, _, err := d.handle.CreateFence(nil, info)
	if err != nil {
		return nil, err
	}
	return &fence{handle: handle}, nil
}

func (d *Device) AllocateCommandBuffers(count int) ([]render.CommandBuffer, error) {
	buffers, _, err := d.handle.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
	if err != nil {
		return nil, err
	}

	out := make([]render.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		out = append(out, &commandBuffer{handle: b})
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(buffers []render.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}

	handles := make([]core1_0.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		handles = append(handles, b.(*commandBuffer).handle)
	}
	d.handle.FreeCommandBuffers(handles)
}

func (d *Device) CreateBuffer(size int, usage render.BufferUsage, location render.MemoryLocation) (render.Buffer, error) {
	handle, _, err := d.handle.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       toBufferUsage(usage),
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, err
	}
	b := &buffer{handle: handle, size: size}

	memRequirements := handle.MemoryRequirements()
	memoryTypeIndex, err := d.physical.findMemoryType(memRequirements.MemoryTypeBits, toMemoryProperties(location))
	if err != nil {
		b.Destroy()
		return nil, err
	}

	b.memory, _, err = d.handle.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		b.Destroy()
		return nil, err
	}

	_, err = handle.BindBufferMemory(b.memory, 0)
	if err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (d *Device) WaitIdle() error {
	_, err := d.handle.WaitIdle()
	return err
}
