package vkng

import (
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/meshview/mesh"
	"github.com/vkngwrapper/meshview/render"
)

const spirvMagic = 0x07230203

// LoadSPIRV reads a compiled shader module from disk.
func LoadSPIRV(path string) ([]uint32, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithHint(errors.Wrapf(err, "read shader %s", path),
			"compile the GLSL sources in shaders/ with glslc, or point -vert/-frag at existing .spv files")
	}
	if len(b) < 4 || len(b)%4 != 0 {
		return nil, errors.Newf("shader %s is %d bytes, not a whole number of SPIR-V words", path, len(b))
	}
	if binary.LittleEndian.Uint32(b) != spirvMagic {
		return nil, errors.Newf("shader %s is not little-endian SPIR-V", path)
	}
	return bytesToBytecode(b), nil
}

func getVertexBindingDescription() []core1_0.VertexInputBindingDescription {
	v := mesh.Vertex{}
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(v)),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func getVertexAttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := mesh.Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
	}
}

// Pipeline is the single-subpass colour render pass and the graphics
// pipeline drawn inside it. Viewport and scissor are dynamic, so neither
// needs rebuilding when the swapchain extent changes.
type Pipeline struct {
	device     core1_0.Device
	renderPass core1_0.RenderPass
	layout     core1_0.PipelineLayout
	pipeline   core1_0.Pipeline
}

type ShaderPaths struct {
	Vertex   string
	Fragment string
}

// CreatePipeline builds the render pass for the given colour format and a
// pipeline that draws mesh.Vertex triangle lists.
func (d *Device) CreatePipeline(format render.Format, shaders ShaderPaths) (*Pipeline, error) {
	p := &Pipeline{device: d.handle}

	err := p.createRenderPass(core1_0.Format(format))
	if err != nil {
		return nil, errors.Wrap(err, "create render pass")
	}

	err = p.createGraphicsPipeline(shaders)
	if err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "create graphics pipeline")
	}

	return p, nil
}

func (p *Pipeline) RenderPass() render.RenderPass {
	return p.renderPass
}

func (p *Pipeline) createRenderPass(format core1_0.Format) error {
	renderPass, _, err := p.device.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         format,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return err
	}

	p.renderPass = renderPass
	return nil
}

func (p *Pipeline) createShaderModule(path string) (core1_0.ShaderModule, error) {
	code, err := LoadSPIRV(path)
	if err != nil {
		return nil, err
	}

	module, _, err := p.device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	return module, err
}

func (p *Pipeline) createGraphicsPipeline(shaders ShaderPaths) error {
	vertShader, err := p.createShaderModule(shaders.Vertex)
	if err != nil {
		return err
	}
	defer vertShader.Destroy(nil)

	fragShader, err := p.createShaderModule(shaders.Fragment)
	if err != nil {
		return err
	}
	defer fragShader.Destroy(nil)

	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   getVertexBindingDescription(),
		VertexAttributeDescriptions: getVertexAttributeDescriptions(),
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: vertShader,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: fragShader,
		Name:   "main",
	}

	// Placeholders for the counts; the real values are set per frame.
	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{
			{Width: 1, Height: 1, MinDepth: 0, MaxDepth: 1},
		},
		Scissors: []core1_0.Rect2D{
			{Extent: core1_0.Extent2D{Width: 1, Height: 1}},
		},
	}

	dynamicState := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: []core1_0.DynamicState{
			core1_0.DynamicStateViewport,
			core1_0.DynamicStateScissor,
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeNone,
		FrontFace:   core1_0.FrontFaceClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	p.layout, _, err = p.device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return err
	}

	pipelines, _, err := p.device.CreateGraphicsPipelines(nil, nil, []core1_0.GraphicsPipelineCreateInfo{
		{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			DynamicState:       dynamicState,
			Layout:             p.layout,
			RenderPass:         p.renderPass,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	})
	if err != nil {
		return err
	}
	p.pipeline = pipelines[0]

	return nil
}

func (p *Pipeline) Destroy() {
	if p.pipeline != nil {
		p.pipeline.Destroy(nil)
		p.pipeline = nil
	}

	if p.layout != nil {
		p.layout.Destroy(nil)
		p.layout = nil
	}

	if p.renderPass != nil {
		p.renderPass.Destroy(nil)
		p.renderPass = nil
	}
}
