package vkng

import (
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/meshview/render"
)

func toPresentMode(mode render.PresentMode) khr_surface.PresentMode {
	switch mode {
	case render.PresentImmediate:
		return khr_surface.PresentModeImmediate
	case render.PresentMailbox:
		return khr_surface.PresentModeMailbox
	case render.PresentFIFORelaxed:
		return khr_surface.PresentModeFIFORelaxed
	}
	return khr_surface.PresentModeFIFO
}

// fromPresentMode reports false for modes the renderer never asks for, such
// as the shared-image modes.
func fromPresentMode(mode khr_surface.PresentMode) (render.PresentMode, bool) {
	switch mode {
	case khr_surface.PresentModeImmediate:
		return render.PresentImmediate, true
	case khr_surface.PresentModeMailbox:
		return render.PresentMailbox, true
	case khr_surface.PresentModeFIFO:
		return render.PresentFIFO, true
	case khr_surface.PresentModeFIFORelaxed:
		return render.PresentFIFORelaxed, true
	}
	return 0, false
}

func toSharingMode(mode render.SharingMode) core1_0.SharingMode {
	if mode == render.SharingConcurrent {
		return core1_0.SharingModeConcurrent
	}
	return core1_0.SharingModeExclusive
}

func toExtent(extent render.Extent) core1_0.Extent2D {
	return core1_0.Extent2D{Width: extent.Width, Height: extent.Height}
}

func fromExtent(extent core1_0.Extent2D) render.Extent {
	return render.Extent{Width: extent.Width, Height: extent.Height}
}

func fromCapabilities(caps *khr_surface.SurfaceCapabilities) render.SurfaceCapabilities {
	return render.SurfaceCapabilities{
		MinImageCount:    caps.MinImageCount,
		MaxImageCount:    caps.MaxImageCount,
		CurrentExtent:    fromExtent(caps.CurrentExtent),
		MinImageExtent:   fromExtent(caps.MinImageExtent),
		MaxImageExtent:   fromExtent(caps.MaxImageExtent),
		CurrentTransform: uint32(caps.CurrentTransform),
	}
}

func toBufferUsage(usage render.BufferUsage) core1_0.BufferUsageFlags {
	var flags core1_0.BufferUsageFlags
	if usage&render.BufferUsageTransferSrc != 0 {
		flags |= core1_0.BufferUsageTransferSrc
	}
	if usage&render.BufferUsageTransferDst != 0 {
		flags |= core1_0.BufferUsageTransferDst
	}
	if usage&render.BufferUsageVertexBuffer != 0 {
		flags |= core1_0.BufferUsageVertexBuffer
	}
	return flags
}

func toMemoryProperties(location render.MemoryLocation) core1_0.MemoryPropertyFlags {
	if location == render.MemoryDeviceLocal {
		return core1_0.MemoryPropertyDeviceLocal
	}
	return core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent
}

// toStatus folds the result codes that acquire and present report as
// recoverable into a Status. Anything else is left to the error.
func toStatus(res common.VkResult) render.Status {
	switch res {
	case khr_swapchain.VKSuboptimal:
		return render.StatusSuboptimal
	case khr_swapchain.VKErrorOutOfDate:
		return render.StatusOutOfDate
	case core1_0.VKTimeout, core1_0.VKNotReady:
		return render.StatusTimeout
	}
	return render.StatusSuccess
}

func isRecoverable(res common.VkResult) bool {
	return toStatus(res) != render.StatusSuccess
}

// bytesToBytecode reads little-endian SPIR-V words.
func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}
