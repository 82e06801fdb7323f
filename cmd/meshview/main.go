// Command meshview opens a window and draws a static mesh with Vulkan until
// the window is closed, rebuilding the swapchain whenever the window changes.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/meshview/internal/config"
	"github.com/vkngwrapper/meshview/internal/sdlwindow"
	"github.com/vkngwrapper/meshview/internal/vkng"
	"github.com/vkngwrapper/meshview/mesh"
	"github.com/vkngwrapper/meshview/render"
)

func loadMesh(cfg config.MeshConfig) (*mesh.Mesh, error) {
	if cfg.Path == "" {
		return mesh.Triangle(), nil
	}
	return mesh.LoadOBJ(cfg.Path, cfg.Material)
}

func run(args []string) error {
	cfg, err := config.Parse("meshview", args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	} else if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	render.SetLogger(logger)

	model, err := loadMesh(cfg.Mesh)
	if err != nil {
		return err
	}
	vertexData, err := model.Bytes()
	if err != nil {
		return err
	}
	boundsMin, boundsMax := model.Bounds()
	logger.Info("loaded mesh",
		"name", model.Name,
		"vertices", model.VertexCount(),
		"min", boundsMin,
		"max", boundsMax)

	window, err := sdlwindow.New(cfg.Window)
	if err != nil {
		return err
	}
	defer window.Destroy()

	vk, err := vkng.NewContext(window, vkng.Options{
		ApplicationName: cfg.Window.Title,
		Validation:      cfg.Renderer.Validation,
	})
	if err != nil {
		return err
	}
	defer vk.Destroy()

	// The render pass has to agree with the swapchain format, and the format
	// choice only depends on what the surface offers, so make it once here.
	prefs := cfg.SwapchainPreferences()
	support, err := render.QuerySwapChainSupport(vk.PhysicalDevice, vk.Surface)
	if err != nil {
		return err
	}
	if len(support.Formats) == 0 {
		return errors.New("surface reports no formats")
	}
	surfaceFormat := render.ChooseSwapSurfaceFormat(support.Formats, prefs.Format)

	pipeline, err := vk.Device.CreatePipeline(surfaceFormat.Format, vkng.ShaderPaths{
		Vertex:   cfg.Shaders.Vertex,
		Fragment: cfg.Shaders.Fragment,
	})
	if err != nil {
		return err
	}
	defer pipeline.Destroy()

	transfer := &render.Transfer{Device: vk.Device, Queue: vk.GraphicsQueue}
	vertexBuffer, err := transfer.UploadVertices(vertexData)
	if err != nil {
		return err
	}
	defer vertexBuffer.Destroy()

	swapchains := render.NewSwapchainManager(render.SwapchainManagerOptions{
		Device:         vk.Device,
		PhysicalDevice: vk.PhysicalDevice,
		Surface:        vk.Surface,
		Window:         window,
		Queues:         vk.Queues,
		RenderPass:     pipeline.RenderPass(),
		Preferences:    prefs,
	})
	err = swapchains.Build()
	if err != nil {
		return err
	}
	defer swapchains.Destroy()

	frames, err := render.NewFrameRing(render.FrameRingOptions{
		Device:        vk.Device,
		Size:          cfg.Renderer.FramesInFlight,
		FenceTimeout:  cfg.Renderer.FenceTimeout,
		CheckOrdering: cfg.Renderer.Validation,
	})
	if err != nil {
		return err
	}
	defer frames.Destroy()

	scheduler := render.NewScheduler(render.SchedulerOptions{
		Device:     vk.Device,
		Window:     window,
		Swapchains: swapchains,
		Frames:     frames,
		Recorder: &render.Recorder{
			RenderPass: pipeline.RenderPass(),
			ClearColor: cfg.ClearColor(),
		},
		GraphicsQueue: vk.GraphicsQueue,
		PresentQueue:  vk.PresentQueue,
		Target: render.DrawTarget{
			Pipeline:     pipeline,
			VertexBuffer: vertexBuffer,
			VertexCount:  model.VertexCount(),
		},
		AcquireTimeout: cfg.Renderer.AcquireTimeout,
		StatsInterval:  cfg.Renderer.StatsInterval,
		CheckOrdering:  cfg.Renderer.Validation,
	})

	err = scheduler.Run()

	stats := scheduler.Stats()
	logger.Info("stopped",
		"frames", stats.Frames,
		"rebuilds", stats.Rebuilds,
		"skipped", stats.Skipped,
		"avgFrameTime", stats.AverageFrameTime)
	return err
}

func main() {
	err := run(os.Args[1:])
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
