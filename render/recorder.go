package render

import (
	"github.com/go-gl/mathgl/mgl32"
)

// DrawTarget is the static geometry a frame draws.
type DrawTarget struct {
	Pipeline     Pipeline
	VertexBuffer Buffer
	VertexCount  int
}

// Recorder fills a command buffer with one frame's draw work.
type Recorder struct {
	RenderPass RenderPass
	ClearColor mgl32.Vec4
}

// Record writes a full render pass into the command buffer: clear, bind the
// pipeline and vertex buffer, set the viewport and scissor to the extent,
// draw, end. Viewport and scissor are dynamic because the extent changes on
// rebuild while the pipeline does not.
func (r *Recorder) Record(buffer CommandBuffer, framebuffer Framebuffer, extent Extent, pipeline Pipeline, vertexBuffer Buffer, vertexCount int) error {
	err := buffer.Begin(false)
	if err != nil {
		return fail(err, ErrCommandRecordingFailed, "begin command buffer")
	}

	err = buffer.BeginRenderPass(r.RenderPass, framebuffer, extent, r.ClearColor)
	if err != nil {
		return fail(err, ErrCommandRecordingFailed, "begin render pass")
	}

	buffer.BindPipeline(pipeline)
	buffer.BindVertexBuffer(vertexBuffer)
	buffer.SetViewport(extent)
	buffer.SetScissor(extent)
	buffer.Draw(vertexCount)
	buffer.EndRenderPass()

	err = buffer.End()
	if err != nil {
		return fail(err, ErrCommandRecordingFailed, "end command buffer")
	}

	return nil
}

// RecordTarget is Record for a DrawTarget.
func (r *Recorder) RecordTarget(buffer CommandBuffer, framebuffer Framebuffer, extent Extent, target DrawTarget) error {
	return r.Record(buffer, framebuffer, extent, target.Pipeline, target.VertexBuffer, target.VertexCount)
}
