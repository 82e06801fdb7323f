// Package vkng drives the frame pipeline on a real GPU through vkngwrapper.
// It owns the objects that live for the whole process (instance, surface,
// logical device, command pool) and hands the render package the narrower
// driver interfaces it works against.
package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/khr_portability_subset"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2"

	"github.com/vkngwrapper/meshview/internal/sdlwindow"
	"github.com/vkngwrapper/meshview/render"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

type Options struct {
	ApplicationName string
	// Validation enables the Khronos validation layer and routes its
	// messages to the render logger.
	Validation bool
}

// Context holds everything created once at startup.
type Context struct {
	window *sdlwindow.Window
	loader core.Loader

	instance       core1_0.Instance
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	Surface        *Surface
	PhysicalDevice *PhysicalDevice
	Device         *Device
	Queues         render.QueueFamilyIndices

	GraphicsQueue render.Queue
	PresentQueue  render.Queue
}

// NewContext runs the one-shot setup in order. Whatever was created before a
// failure is destroyed before the error is returned.
func NewContext(window *sdlwindow.Window, options Options) (*Context, error) {
	ctx := &Context{window: window}

	var err error
	ctx.loader, err = core.CreateLoaderFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "create vulkan loader")
	}

	steps := []struct {
		name string
		run  func(Options) error
	}{
		{"create instance", ctx.createInstance},
		{"set up debug messenger", ctx.setupDebugMessenger},
		{"create surface", ctx.createSurface},
		{"pick physical device", ctx.pickPhysicalDevice},
		{"create logical device", ctx.createLogicalDevice},
		{"create command pool", ctx.createCommandPool},
	}

	for _, step := range steps {
		err = step.run(options)
		if err != nil {
			ctx.Destroy()
			return nil, errors.Wrap(err, step.name)
		}
	}

	return ctx, nil
}

func (c *Context) createInstance(options Options) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    options.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	// Add extensions
	sdlExtensions := c.window.InstanceExtensions()
	extensions, _, err := c.loader.AvailableExtensions()
	if err != nil {
		return err
	}

	for _, ext := range sdlExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Newf("cannot initialize sdl: missing extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if options.Validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	// Add layers
	if options.Validation {
		layers, _, err := c.loader.AvailableLayers()
		if err != nil {
			return err
		}

		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.WithHint(
					errors.Newf("validation layer %s not available", layer),
					"install the LunarG Vulkan SDK or run with -validation=false")
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		// Cover instance creation and destruction too
		instanceOptions.Next = debugMessengerOptions()
	}

	c.instance, _, err = c.loader.CreateInstance(nil, instanceOptions)
	return err
}

func (c *Context) setupDebugMessenger(options Options) error {
	if !options.Validation {
		return nil
	}

	var err error
	debugLoader := ext_debug_utils.CreateExtensionFromInstance(c.instance)
	c.debugMessenger, _, err = debugLoader.CreateDebugUtilsMessenger(c.instance, nil, debugMessengerOptions())
	return err
}

func (c *Context) createSurface(Options) error {
	surfaceLoader := khr_surface.CreateExtensionFromInstance(c.instance)

	surface, err := vkng_sdl2.CreateSurface(c.instance, surfaceLoader, c.window.SDL())
	if err != nil {
		return err
	}

	c.Surface = &Surface{handle: surface}
	return nil
}

func (c *Context) pickPhysicalDevice(Options) error {
	physicalDevices, _, err := c.instance.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	for _, handle := range physicalDevices {
		device := &PhysicalDevice{handle: handle}
		if c.isDeviceSuitable(device) {
			c.PhysicalDevice = device
			break
		}
	}

	if c.PhysicalDevice == nil {
		return errors.Newf("none of %d GPUs can present to this window", len(physicalDevices))
	}

	render.Logger().Info("selected physical device", "name", c.PhysicalDevice.Name())
	return nil
}

func (c *Context) isDeviceSuitable(device *PhysicalDevice) bool {
	indices, err := render.FindQueueFamilies(device, c.Surface)
	if err != nil {
		return false
	}

	if !checkDeviceExtensionSupport(device.handle) {
		return false
	}

	swapChainSupport, err := render.QuerySwapChainSupport(device, c.Surface)
	if err != nil {
		return false
	}

	swapChainAdequate := len(swapChainSupport.Formats) > 0 && len(swapChainSupport.PresentModes) > 0
	return indices.IsComplete() && swapChainAdequate
}

func checkDeviceExtensionSupport(device core1_0.PhysicalDevice) bool {
	extensions, _, err := device.EnumerateDeviceExtensionProperties()
	if err != nil {
		return false
	}

	for _, extension := range deviceExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}

	return true
}

func (c *Context) createLogicalDevice(Options) error {
	indices, err := render.ResolveQueueFamilies(c.PhysicalDevice, c.Surface)
	if err != nil {
		return err
	}
	c.Queues = indices

	uniqueQueueFamilies := []int{*indices.GraphicsFamily}
	if !indices.Shared() {
		uniqueQueueFamilies = append(uniqueQueueFamilies, *indices.PresentFamily)
	}

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range uniqueQueueFamilies {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// VK_KHR_portability_subset must be enabled whenever the device exposes it
	extensions, _, err := c.PhysicalDevice.handle.EnumerateDeviceExtensionProperties()
	if err != nil {
		return err
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	handle, _, err := c.PhysicalDevice.handle.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueFamilyOptions,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	c.Device = &Device{
		handle:     handle,
		physical:   c.PhysicalDevice,
		swapchains: khr_swapchain.CreateExtensionFromDevice(handle),
	}
	c.GraphicsQueue = c.Device.Queue(*indices.GraphicsFamily)
	c.PresentQueue = c.Device.Queue(*indices.PresentFamily)
	return nil
}

func (c *Context) createCommandPool(Options) error {
	pool, _, err := c.Device.handle.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: *c.Queues.GraphicsFamily,
	})
	if err != nil {
		return err
	}

	c.Device.pool = pool
	return nil
}

// Destroy releases the startup objects in reverse creation order. The device
// must be idle and every object made from it already destroyed.
func (c *Context) Destroy() {
	if c.Device != nil {
		if c.Device.pool != nil {
			c.Device.pool.Destroy(nil)
		}
		c.Device.handle.Destroy(nil)
		c.Device = nil
	}

	if c.debugMessenger != nil {
		c.debugMessenger.Destroy(nil)
		c.debugMessenger = nil
	}

	if c.Surface != nil {
		c.Surface.handle.Destroy(nil)
		c.Surface = nil
	}

	if c.instance != nil {
		c.instance.Destroy(nil)
		c.instance = nil
	}
}
