package render

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseSwapSurfaceFormat(t *testing.T) {
	preferred := SurfaceFormat{Format: FormatB8G8R8A8SRGB, ColorSpace: ColorSpaceSRGBNonlinear}
	other := SurfaceFormat{Format: FormatB8G8R8A8UnsignedNormalized, ColorSpace: ColorSpaceSRGBNonlinear}
	wrongSpace := SurfaceFormat{Format: FormatB8G8R8A8SRGB, ColorSpace: 1000104001}

	assert.Equal(t, preferred, ChooseSwapSurfaceFormat([]SurfaceFormat{other, preferred}, preferred))
	assert.Equal(t, other, ChooseSwapSurfaceFormat([]SurfaceFormat{other, wrongSpace}, preferred))
}

func TestChooseSwapPresentMode(t *testing.T) {
	assert.Equal(t, PresentMailbox, ChooseSwapPresentMode([]PresentMode{PresentFIFO, PresentMailbox}, PresentMailbox))
	assert.Equal(t, PresentFIFO, ChooseSwapPresentMode([]PresentMode{PresentImmediate, PresentFIFO}, PresentMailbox))
	assert.Equal(t, PresentImmediate, ChooseSwapPresentMode([]PresentMode{PresentImmediate, PresentFIFO}, PresentImmediate))
}

func TestChooseSwapExtent(t *testing.T) {
	capabilities := SurfaceCapabilities{
		CurrentExtent:  Extent{Width: UndefinedExtent, Height: UndefinedExtent},
		MinImageExtent: Extent{Width: 64, Height: 64},
		MaxImageExtent: Extent{Width: 2048, Height: 1024},
	}

	for _, tc := range []struct {
		name          string
		width, height int
		want          Extent
	}{
		{name: "inside", width: 800, height: 600, want: Extent{Width: 800, Height: 600}},
		{name: "too small", width: 10, height: 20, want: Extent{Width: 64, Height: 64}},
		{name: "too large", width: 5000, height: 5000, want: Extent{Width: 2048, Height: 1024}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ChooseSwapExtent(capabilities, tc.width, tc.height))
		})
	}

	capabilities.CurrentExtent = Extent{Width: 320, Height: 240}
	assert.Equal(t, Extent{Width: 320, Height: 240}, ChooseSwapExtent(capabilities, 800, 600),
		"a defined current extent wins over the window size")
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, 3, ChooseImageCount(SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 0}))
	assert.Equal(t, 3, ChooseImageCount(SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}))
	assert.Equal(t, 2, ChooseImageCount(SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
}

func TestNegotiateSharingMode(t *testing.T) {
	support := SwapChainSupportDetails{
		Capabilities: newFakeSurface().capabilities,
		Formats:      []SurfaceFormat{{Format: FormatB8G8R8A8SRGB}},
	}

	shared := QueueFamilyIndices{GraphicsFamily: intPtr(0), PresentFamily: intPtr(0)}
	config, err := NegotiateSurfaceConfig(support, DefaultSwapchainPreferences(), shared, 800, 600)
	require.NoError(t, err)
	assert.Equal(t, SharingExclusive, config.SharingMode)
	assert.Empty(t, config.QueueFamilies)

	split := QueueFamilyIndices{GraphicsFamily: intPtr(0), PresentFamily: intPtr(2)}
	config, err = NegotiateSurfaceConfig(support, DefaultSwapchainPreferences(), split, 800, 600)
	require.NoError(t, err)
	assert.Equal(t, SharingConcurrent, config.SharingMode)
	assert.Equal(t, []int{0, 2}, config.QueueFamilies)
}

func TestNegotiateRejectsEmptyFormats(t *testing.T) {
	shared := QueueFamilyIndices{GraphicsFamily: intPtr(0), PresentFamily: intPtr(0)}
	_, err := NegotiateSurfaceConfig(SwapChainSupportDetails{}, DefaultSwapchainPreferences(), shared, 800, 600)
	require.Error(t, err)
}

func TestSwapchainBuild(t *testing.T) {
	h := newHarness(t)
	gen := h.swapchains.Current()

	require.NotNil(t, gen)
	assert.Equal(t, SwapchainValid, h.swapchains.State())
	assert.Equal(t, 1, gen.Number)
	assert.Len(t, gen.Images, 3)
	assert.Len(t, gen.ImageViews, 3)
	assert.Len(t, gen.Framebuffers, 3)
	assert.Equal(t, Extent{Width: 800, Height: 600}, gen.Config.Extent)
	assert.Equal(t, PresentMailbox, gen.Config.PresentMode)
	assert.Equal(t, SurfaceFormat{Format: FormatB8G8R8A8SRGB, ColorSpace: ColorSpaceSRGBNonlinear}, gen.Config.Format)
	for _, size := range h.gpu.framebufferSizes {
		assert.Equal(t, gen.Config.Extent, size)
	}
}

func TestSwapchainBuildOverLiveGenerationFails(t *testing.T) {
	h := newHarness(t)

	err := h.swapchains.Build()
	require.Error(t, err)
	assert.True(t, errors.IsAssertionFailure(err))
	assert.Len(t, h.gpu.swapchainCreates, 1)
}

func TestSwapchainTeardownOrder(t *testing.T) {
	h := newHarness(t)
	before := len(h.gpu.Events())

	h.swapchains.Teardown()

	var kinds []string
	for _, event := range h.gpu.Events()[before:] {
		fields := strings.Fields(event)
		kinds = append(kinds, strings.Join(fields[1:len(fields)-1], " "))
	}
	assert.Equal(t, []string{
		"framebuffer", "framebuffer", "framebuffer",
		"image view", "image view", "image view",
		"swapchain",
	}, kinds)
	assert.Nil(t, h.swapchains.Current())
	assert.Equal(t, SwapchainUnbuilt, h.swapchains.State())
}

func TestSwapchainBuildFailureReleasesPartialGeneration(t *testing.T) {
	h := newHarness(t)
	h.swapchains.Teardown()
	before := len(h.gpu.Events())

	h.gpu.failFramebuffer = 1
	h.gpu.failFramebuffers = errors.New("out of device memory")

	err := h.swapchains.Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSwapchainCreationFailed))
	assert.Nil(t, h.swapchains.Current())

	var created, destroyed int
	for _, event := range h.gpu.Events()[before:] {
		if strings.HasPrefix(event, "create") {
			created++
		}
		if strings.HasPrefix(event, "destroy") {
			destroyed++
		}
	}
	// swapchain, three views, one framebuffer
	assert.Equal(t, 5, created)
	assert.Equal(t, created, destroyed)
}

func TestSwapchainCreationFailure(t *testing.T) {
	h := newHarness(t)
	h.swapchains.Teardown()
	h.gpu.failSwapchain = errors.New("native window in use")

	err := h.swapchains.Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSwapchainCreationFailed))
	assert.Contains(t, err.Error(), "native window in use")
}

func TestSwapchainRebuildSameSize(t *testing.T) {
	h := newHarness(t)
	before := h.swapchains.Current()

	require.NoError(t, h.swapchains.Rebuild())

	after := h.swapchains.Current()
	assert.Equal(t, before.Config, after.Config)
	assert.Equal(t, before.Number+1, after.Number)
	assert.Equal(t, SwapchainValid, h.swapchains.State())
	assert.Equal(t, 1, h.gpu.idleWaits)
}

func TestSwapchainRebuildNewSize(t *testing.T) {
	for _, tc := range []struct {
		name          string
		width, height int
		want          Extent
	}{
		{name: "grow", width: 1024, height: 768, want: Extent{Width: 1024, Height: 768}},
		{name: "clamped", width: 9000, height: 300, want: Extent{Width: 4096, Height: 300}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.window.setSize(tc.width, tc.height)
			h.gpu.framebufferSizes = nil

			require.NoError(t, h.swapchains.Rebuild())

			assert.Equal(t, tc.want, h.swapchains.Current().Config.Extent)
			require.Len(t, h.gpu.framebufferSizes, 3)
			for _, size := range h.gpu.framebufferSizes {
				assert.Equal(t, tc.want, size)
			}
		})
	}
}

func TestSwapchainRebuildWaitsForNonZeroExtent(t *testing.T) {
	h := newHarness(t)
	h.window.setSize(0, 0)

	var createsWhileMinimized []int
	h.window.onWait = func(w *fakeWindow) {
		createsWhileMinimized = append(createsWhileMinimized, len(h.gpu.swapchainCreates))
		if w.waitEvents == 3 {
			w.setSize(640, 480)
		}
	}

	require.NoError(t, h.swapchains.Rebuild())

	assert.Equal(t, []int{1, 1, 1}, createsWhileMinimized, "no swapchain creation while the window is minimized")
	assert.Len(t, h.gpu.swapchainCreates, 2)
	assert.Equal(t, Extent{Width: 640, Height: 480}, h.swapchains.Current().Config.Extent)
}

func TestSwapchainRebuildWindowClosedWhileMinimized(t *testing.T) {
	h := newHarness(t)
	h.window.setSize(0, 0)
	h.window.onWait = func(w *fakeWindow) {
		w.closed = true
	}

	err := h.swapchains.Rebuild()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWindowClosed))
	assert.False(t, IsFatal(err))
	assert.Zero(t, h.gpu.idleWaits)
	assert.Equal(t, SwapchainInvalidated, h.swapchains.State())
	assert.NotNil(t, h.swapchains.Current())
}

func TestSwapchainDestroy(t *testing.T) {
	h := newHarness(t)

	h.swapchains.Destroy()

	assert.Equal(t, SwapchainDestroyed, h.swapchains.State())
	assert.Nil(t, h.swapchains.Current())
	require.Error(t, h.swapchains.Build())
	require.Error(t, h.swapchains.Rebuild())
}

func intPtr(v int) *int {
	return &v
}
