package vkng

import (
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/meshview/render"
)

func toTimeout(timeout time.Duration) time.Duration {
	if timeout == render.NoTimeout {
		return common.NoTimeout
	}
	return timeout
}

type semaphore struct {
	handle core1_0.Semaphore
}

func (s *semaphore) Destroy() {
	s.handle.Destroy(nil)
}

type fence struct {
	handle core1_0.Fence
}

func (f *fence) Wait(timeout time.Duration) (bool, error) {
	res, err := f.handle.Wait(toTimeout(timeout))
	if err != nil {
		return false, errors.Wrap(err, "wait for fence")
	}
	return res != core1_0.VKTimeout, nil
}

func (f *fence) Reset() error {
	_, err := f.handle.Reset()
	return errors.Wrap(err, "reset fence")
}

func (f *fence) Destroy() {
	f.handle.Destroy(nil)
}

type imageView struct {
	handle core1_0.ImageView
}

func (v *imageView) Destroy() {
	v.handle.Destroy(nil)
}

type framebuffer struct {
	handle core1_0.Framebuffer
}

func (f *framebuffer) Destroy() {
	f.handle.Destroy(nil)
}

// buffer owns its memory allocation.
type buffer struct {
	handle core1_0.Buffer
	memory core1_0.DeviceMemory
	size   int
}

func (b *buffer) Size() int {
	return b.size
}

func (b *buffer) Write(data []byte) error {
	if len(data) > b.size {
		return errors.Newf("write of %d bytes into a %d byte buffer", len(data), b.size)
	}

	memoryPtr, _, err := b.memory.Map(0, len(data), 0)
	if err != nil {
		return errors.Wrap(err, "map buffer memory")
	}
	defer b.memory.Unmap()

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), len(data))
	copy(dataBuffer, data)
	return nil
}

func (b *buffer) Destroy() {
	if b.handle != nil {
		b.handle.Destroy(nil)
	}
	if b.memory != nil {
		b.memory.Free(nil)
	}
}

type commandBuffer struct {
	handle core1_0.CommandBuffer
}

func (c *commandBuffer) Begin(oneTimeSubmit bool) error {
	var info core1_0.CommandBufferBeginInfo
	if oneTimeSubmit {
		info.Flags = core1_0.CommandBufferUsageOneTimeSubmit
	}
	_, err := c.handle.Begin(info)
	return err
}

func (c *commandBuffer) End() error {
	_, err := c.handle.End()
	return err
}

func (c *commandBuffer) Reset() error {
	_, err := c.handle.Reset(0)
	return err
}

func (c *commandBuffer) BeginRenderPass(pass render.RenderPass, fb render.Framebuffer, area render.Extent, clear [4]float32) error {
	renderPass, ok := pass.(core1_0.RenderPass)
	if !ok {
		return errors.AssertionFailedf("render pass has type %T", pass)
	}
	target, ok := fb.(*framebuffer)
	if !ok {
		return errors.AssertionFailedf("framebuffer has type %T", fb)
	}

	return c.handle.CmdBeginRenderPass(core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  renderPass,
			Framebuffer: target.handle,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: toExtent(area),
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat(clear),
			},
		})
}

func (c *commandBuffer) EndRenderPass() {
	c.handle.CmdEndRenderPass()
}

func (c *commandBuffer) BindPipeline(p render.Pipeline) {
	c.handle.CmdBindPipeline(core1_0.PipelineBindPointGraphics, p.(*Pipeline).pipeline)
}

func (c *commandBuffer) BindVertexBuffer(b render.Buffer) {
	c.handle.CmdBindVertexBuffers(0, []core1_0.Buffer{b.(*buffer).handle}, []int{0})
}

func (c *commandBuffer) SetViewport(extent render.Extent) {
	c.handle.CmdSetViewport([]core1_0.Viewport{
		{
			X:        0,
			Y:        0,
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		},
	})
}

func (c *commandBuffer) SetScissor(extent render.Extent) {
	c.handle.CmdSetScissor([]core1_0.Rect2D{
		{
			Offset: core1_0.Offset2D{X: 0, Y: 0},
			Extent: toExtent(extent),
		},
	})
}

func (c *commandBuffer) Draw(vertexCount int) {
	c.handle.CmdDraw(vertexCount, 1, 0, 0)
}

func (c *commandBuffer) CopyBuffer(src, dst render.Buffer, size int) error {
	return c.handle.CmdCopyBuffer(src.(*buffer).handle, dst.(*buffer).handle, []core1_0.BufferCopy{
		{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	})
}

type swapchain struct {
	handle khr_swapchain.Swapchain
}

func (s *swapchain) Images() ([]render.Image, error) {
	images, _, err := s.handle.SwapchainImages()
	if err != nil {
		return nil, err
	}

	out := make([]render.Image, 0, len(images))
	for _, image := range images {
		out = append(out, image)
	}
	return out, nil
}

func (s *swapchain) AcquireNextImage(timeout time.Duration, signal render.Semaphore) (int, render.Status, error) {
	imageIndex, res, err := s.handle.AcquireNextImage(toTimeout(timeout), signal.(*semaphore).handle, nil)
	if isRecoverable(res) {
		return imageIndex, toStatus(res), nil
	}
	if err != nil {
		return 0, render.StatusSuccess, err
	}
	return imageIndex, render.StatusSuccess, nil
}

func (s *swapchain) Destroy() {
	s.handle.Destroy(nil)
}

type queue struct {
	handle    core1_0.Queue
	family    int
	swapchain khr_swapchain.Extension
}

func (q *queue) Family() int {
	return q.family
}

func (q *queue) Submit(f render.Fence, submission render.Submission) error {
	var signalFence core1_0.Fence
	if f != nil {
		signalFence = f.(*fence).handle
	}

	info := core1_0.SubmitInfo{
		CommandBuffers: []core1_0.CommandBuffer{submission.CommandBuffer.(*commandBuffer).handle},
	}
	if submission.WaitSemaphore != nil {
		info.WaitSemaphores = []core1_0.Semaphore{submission.WaitSemaphore.(*semaphore).handle}
		info.WaitDstStageMask = []core1_0.PipelineStageFlags{core1_0.PipelineStageFlags(submission.WaitStage)}
	}
	if submission.SignalSemaphore != nil {
		info.SignalSemaphores = []core1_0.Semaphore{submission.SignalSemaphore.(*semaphore).handle}
	}

	_, err := q.handle.Submit(signalFence, []core1_0.SubmitInfo{info})
	return err
}

func (q *queue) Present(presentation render.Presentation) (render.Status, error) {
	res, err := q.swapchain.QueuePresent(q.handle, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{presentation.WaitSemaphore.(*semaphore).handle},
		Swapchains:     []khr_swapchain.Swapchain{presentation.Swapchain.(*swapchain).handle},
		ImageIndices:   []int{presentation.ImageIndex},
	})
	if isRecoverable(res) {
		return toStatus(res), nil
	}
	return render.StatusSuccess, err
}

func (q *queue) WaitIdle() error {
	_, err := q.handle.WaitIdle()
	return err
}

var (
	_ render.Fence         = (*fence)(nil)
	_ render.Buffer        = (*buffer)(nil)
	_ render.CommandBuffer = (*commandBuffer)(nil)
	_ render.Swapchain     = (*swapchain)(nil)
	_ render.Queue         = (*queue)(nil)
)
