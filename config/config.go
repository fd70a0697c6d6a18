package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorustyt/terrainview/pipeline"
	"github.com/gorustyt/terrainview/shader"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Window  WindowConfig  `yaml:"window"`
	Camera  CameraConfig  `yaml:"camera"`
	Model   ModelConfig   `yaml:"model"`
	Shader  ShaderConfig  `yaml:"shader"`
	Texture TextureConfig `yaml:"texture"`
	Terrain TerrainConfig `yaml:"terrain"`
	Render  RenderConfig  `yaml:"render"`
	Log     LogConfig     `yaml:"log"`
}

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	VSync  bool   `yaml:"vsync"`
}

type CameraConfig struct {
	FovDegrees float32 `yaml:"fov"`
	Near       float32 `yaml:"near"`
	Far        float32 `yaml:"far"`
	Distance   float32 `yaml:"distance"`
	// PitchDegrees tilts the scene about X so the ground faces the eye.
	PitchDegrees float32 `yaml:"pitch"`
}

type ModelConfig struct {
	// RotationDegrees is added to the Y rotation every frame.
	RotationDegrees float32 `yaml:"rotation"`
}

// ShaderConfig selects the program sources. With no paths the embedded
// program is used. Joined and Vertex/Fragment are mutually exclusive.
type ShaderConfig struct {
	Vertex       string `yaml:"vertex"`
	Fragment     string `yaml:"fragment"`
	Joined       string `yaml:"joined"`
	HotReload    bool   `yaml:"hot_reload"`
	DebugNormals bool   `yaml:"debug_normals"`
}

type TextureConfig struct {
	Path    string `yaml:"path"`
	Wrap    string `yaml:"wrap"`
	Filter  string `yaml:"filter"`
	MaxSize int    `yaml:"max_size"`
}

type TerrainConfig struct {
	// Seed 0 picks a random seed.
	Seed       int64   `yaml:"seed"`
	Sites      int     `yaml:"sites"`
	WaterLevel uint32  `yaml:"water_level"`
	Height     uint32  `yaml:"height"`
	Extent     float64 `yaml:"extent"`
}

type RenderConfig struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Workers int    `yaml:"workers"`
	Output  string `yaml:"output"`
	Cull    bool   `yaml:"cull"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age"`
	Compress    bool   `yaml:"compress"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  1024,
			Height: 780,
			Title:  "ECS",
			VSync:  true,
		},
		Camera: CameraConfig{
			FovDegrees:   80,
			Near:         0.1,
			Far:          1000,
			Distance:     5,
			PitchDegrees: 30,
		},
		Model: ModelConfig{
			RotationDegrees: 0.4,
		},
		Texture: TextureConfig{
			Wrap:    pipeline.WrapRepeat.String(),
			Filter:  pipeline.FilterLinear.String(),
			MaxSize: 2048,
		},
		Terrain: TerrainConfig{
			Sites:      512,
			WaterLevel: 50,
			Height:     100,
			Extent:     100,
		},
		Render: RenderConfig{
			Width:  1024,
			Height: 780,
			Output: "terrain.png",
			Cull:   true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TERRAINVIEW_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TERRAINVIEW_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TERRAINVIEW_SEED: %w", err)
		}
		c.Terrain.Seed = seed
	}
	return nil
}

func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ValidationError lists every invalid setting.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

func (c *Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		addf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		addf("render size %dx%d must be positive", c.Render.Width, c.Render.Height)
	}
	if c.Render.Workers < 0 {
		addf("render workers %d must not be negative", c.Render.Workers)
	}
	if c.Camera.FovDegrees <= 0 || c.Camera.FovDegrees >= 180 {
		addf("camera fov %v must be in (0, 180)", c.Camera.FovDegrees)
	}
	if c.Camera.Near <= 0 || c.Camera.Near >= c.Camera.Far {
		addf("camera near %v must be positive and below far %v", c.Camera.Near, c.Camera.Far)
	}
	if c.Shader.Joined != "" && (c.Shader.Vertex != "" || c.Shader.Fragment != "") {
		addf("shader.joined cannot be combined with shader.vertex/fragment")
	}
	if (c.Shader.Vertex == "") != (c.Shader.Fragment == "") {
		addf("shader.vertex and shader.fragment must be set together")
	}
	if _, err := pipeline.ParseWrapMode(c.Texture.Wrap); err != nil {
		addf("texture.wrap: %v", err)
	}
	if _, err := pipeline.ParseFilter(c.Texture.Filter); err != nil {
		addf("texture.filter: %v", err)
	}
	if c.Texture.MaxSize < 0 {
		addf("texture.max_size %d must not be negative", c.Texture.MaxSize)
	}
	if c.Terrain.Sites < 3 {
		addf("terrain.sites %d must be at least 3", c.Terrain.Sites)
	}
	if c.Terrain.Extent <= 0 {
		addf("terrain.extent %v must be positive", c.Terrain.Extent)
	}
	if c.Terrain.WaterLevel > 100 {
		addf("terrain.water_level %d is a percentage", c.Terrain.WaterLevel)
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ShaderLoader returns the loader the shader section selects, with the
// debug define applied when requested.
func (c *Config) ShaderLoader() shader.Loader {
	opts := shader.Options{}
	if c.Shader.DebugNormals {
		opts.Defines = append(opts.Defines, shader.DefineDebugNormals)
	}
	switch {
	case c.Shader.Joined != "":
		return shader.JoinedLoader{Path: c.Shader.Joined, Options: opts}
	case c.Shader.Vertex != "":
		return shader.FileLoader{VertexPath: c.Shader.Vertex, FragmentPath: c.Shader.Fragment, Options: opts}
	default:
		return shader.EmbeddedLoader{Options: opts}
	}
}

func (c *Config) SamplerSettings() (pipeline.WrapMode, pipeline.Filter, error) {
	wrap, err := pipeline.ParseWrapMode(c.Texture.Wrap)
	if err != nil {
		return 0, 0, err
	}
	filter, err := pipeline.ParseFilter(c.Texture.Filter)
	if err != nil {
		return 0, 0, err
	}
	return wrap, filter, nil
}
