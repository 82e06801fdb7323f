// Package render keeps a static mesh on screen frame after frame.
//
// It owns the steady-state part of a Vulkan-style renderer: the swapchain
// and its rebuild when the window changes, a ring of frame slots that bounds
// how much work may be in flight, recording one command buffer per frame,
// and the acquire, submit and present sequence that ties them together with
// semaphores and fences.
//
// Everything the package touches on the GPU goes through the interfaces in
// driver.go. internal/vkng implements them with vkngwrapper.
package render
