// Package config holds the settings for meshview: built-in defaults, an
// optional YAML file on top, and command-line flags on top of that.
package config

import (
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/vkngwrapper/meshview/render"
)

type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Renderer RendererConfig `yaml:"renderer"`
	Mesh     MeshConfig     `yaml:"mesh"`
	Shaders  ShaderConfig   `yaml:"shaders"`
	Log      LogConfig      `yaml:"log"`
}

type WindowConfig struct {
	Title     string `yaml:"title"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Resizable bool   `yaml:"resizable"`
}

type RendererConfig struct {
	// FramesInFlight is the size of the frame ring.
	FramesInFlight int `yaml:"framesInFlight"`
	// PresentMode is tried first; FIFO is the fallback.
	PresentMode string `yaml:"presentMode"`
	// Validation enables the Vulkan validation layers and the frame
	// ordering checks.
	Validation bool       `yaml:"validation"`
	ClearColor [4]float32 `yaml:"clearColor"`
	// Zero means wait forever.
	FenceTimeout   time.Duration `yaml:"fenceTimeout"`
	AcquireTimeout time.Duration `yaml:"acquireTimeout"`
	// StatsInterval is the number of frames per frame-time log line.
	StatsInterval uint64 `yaml:"statsInterval"`
}

type MeshConfig struct {
	// Path to an OBJ file. Empty draws the built-in triangle.
	Path     string `yaml:"path"`
	Material string `yaml:"material"`
}

type ShaderConfig struct {
	Vertex   string `yaml:"vertex"`
	Fragment string `yaml:"fragment"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:     "Vulkan",
			Width:     800,
			Height:    600,
			Resizable: true,
		},
		Renderer: RendererConfig{
			FramesInFlight: render.MaxFramesInFlight,
			PresentMode:    "mailbox",
			Validation:     true,
			ClearColor:     [4]float32{0, 0, 0, 1},
			StatsInterval:  600,
		},
		Shaders: ShaderConfig{
			Vertex:   "shaders/vert.spv",
			Fragment: "shaders/frag.spv",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}

	return cfg, cfg.Validate()
}

var presentModes = map[string]render.PresentMode{
	"immediate":    render.PresentImmediate,
	"mailbox":      render.PresentMailbox,
	"fifo":         render.PresentFIFO,
	"fifo-relaxed": render.PresentFIFORelaxed,
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Newf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Renderer.FramesInFlight < 1 {
		return errors.Newf("framesInFlight must be at least 1, got %d", c.Renderer.FramesInFlight)
	}
	if c.Renderer.FenceTimeout < 0 || c.Renderer.AcquireTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	if _, ok := presentModes[strings.ToLower(c.Renderer.PresentMode)]; !ok {
		return errors.WithHint(
			errors.Newf("unknown present mode %q", c.Renderer.PresentMode),
			"use one of immediate, mailbox, fifo, fifo-relaxed")
	}
	if _, ok := logLevels[strings.ToLower(c.Log.Level)]; !ok {
		return errors.WithHint(
			errors.Newf("unknown log level %q", c.Log.Level),
			"use one of debug, info, warn, error")
	}
	if c.Shaders.Vertex == "" || c.Shaders.Fragment == "" {
		return errors.New("both shader paths must be set")
	}
	return nil
}

func (c Config) PresentMode() render.PresentMode {
	return presentModes[strings.ToLower(c.Renderer.PresentMode)]
}

func (c Config) LogLevel() slog.Level {
	return logLevels[strings.ToLower(c.Log.Level)]
}

func (c Config) ClearColor() mgl32.Vec4 {
	return mgl32.Vec4(c.Renderer.ClearColor)
}

func (c Config) SwapchainPreferences() render.SwapchainPreferences {
	prefs := render.DefaultSwapchainPreferences()
	prefs.PresentMode = c.PresentMode()
	return prefs
}

// Parse builds the configuration from command-line arguments: -config names
// a YAML file, and every other flag that is set overrides it.
func Parse(name string, args []string) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	configPath := fs.String("config", "", "YAML configuration file")
	meshPath := fs.String("mesh", "", "OBJ file to draw instead of the built-in triangle")
	frames := fs.Int("frames", 0, "frames in flight")
	presentMode := fs.String("present-mode", "", "preferred present mode: immediate, mailbox, fifo, fifo-relaxed")
	validation := fs.Bool("validation", true, "enable validation layers and frame ordering checks")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	width := fs.Int("width", 0, "initial window width")
	height := fs.Int("height", 0, "initial window height")
	vertShader := fs.String("vert", "", "vertex shader SPIR-V")
	fragShader := fs.String("frag", "", "fragment shader SPIR-V")

	err := fs.Parse(args)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if *configPath != "" {
		cfg, err = Load(*configPath)
		if err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mesh":
			cfg.Mesh.Path = *meshPath
		case "frames":
			cfg.Renderer.FramesInFlight = *frames
		case "present-mode":
			cfg.Renderer.PresentMode = *presentMode
		case "validation":
			cfg.Renderer.Validation = *validation
		case "log-level":
			cfg.Log.Level = *logLevel
		case "width":
			cfg.Window.Width = *width
		case "height":
			cfg.Window.Height = *height
		case "vert":
			cfg.Shaders.Vertex = *vertShader
		case "frag":
			cfg.Shaders.Fragment = *fragShader
		}
	})

	return cfg, cfg.Validate()
}
