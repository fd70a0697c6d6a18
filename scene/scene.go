// Package scene assembles the terrain mesh and diffuse texture from config
// and renders them offline.
package scene

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gorustyt/terrainview/camera"
	"github.com/gorustyt/terrainview/config"
	"github.com/gorustyt/terrainview/pipeline"
	"github.com/gorustyt/terrainview/terrain"
	"github.com/gorustyt/terrainview/texture"
	"go.uber.org/zap"
)

const (
	checkerSize  = 256
	checkerCells = 8
)

var (
	checkerLight = color.NRGBA{R: 0x9c, G: 0xc0, B: 0x6a, A: 0xff}
	checkerDark  = color.NRGBA{R: 0x5a, G: 0x7d, B: 0x3c, A: 0xff}
)

type Scene struct {
	Params  terrain.Params
	Mesh    *pipeline.Mesh
	Diffuse *image.NRGBA
}

// BuildTerrain generates the terrain the terrain section describes.
func BuildTerrain(cfg config.TerrainConfig) (*terrain.Terrain, error) {
	b := terrain.NewBuilder().
		SetRandomSites(cfg.Sites, cfg.Extent).
		SetWaterLevel(cfg.WaterLevel).
		SetHeight(cfg.Height)
	if cfg.Seed != 0 {
		b.SetSeed(cfg.Seed)
	}
	return b.Build()
}

// LoadDiffuse reads the configured texture, or returns a checkerboard when
// none is set.
func LoadDiffuse(cfg config.TextureConfig) (*image.NRGBA, error) {
	if cfg.Path == "" {
		return texture.Checkerboard(checkerSize, checkerCells, checkerLight, checkerDark), nil
	}
	img, err := texture.Load(cfg.Path)
	if err != nil {
		return nil, err
	}
	return texture.Fit(img, cfg.MaxSize), nil
}

// Generate builds the configured terrain mesh. The diffuse texture is left
// unset.
func Generate(cfg config.TerrainConfig, log *zap.Logger) (*Scene, error) {
	if log == nil {
		log = zap.NewNop()
	}
	t, err := BuildTerrain(cfg)
	if err != nil {
		return nil, fmt.Errorf("build terrain: %w", err)
	}
	s := &Scene{Params: t.Params, Mesh: t.Mesh()}
	log.Info("terrain generated",
		zap.Int64("seed", t.Params.Seed),
		zap.Int("sites", t.Params.Sites),
		zap.Int("closed_regions", t.ClosedRegions()),
		zap.Int("triangles", s.Mesh.TriangleCount()))
	return s, nil
}

// Load generates a terrain, or reads a mesh file when meshPath is set, and
// loads the diffuse texture.
func Load(cfg *config.Config, meshPath string, log *zap.Logger) (*Scene, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var s *Scene
	if meshPath != "" {
		data, err := os.ReadFile(meshPath)
		if err != nil {
			return nil, fmt.Errorf("read mesh: %w", err)
		}
		f, err := terrain.DecodeMesh(data)
		if err != nil {
			return nil, fmt.Errorf("read mesh %s: %w", meshPath, err)
		}
		s = &Scene{Params: f.Params, Mesh: f.Mesh}
		log.Info("mesh loaded", zap.String("file", meshPath), zap.Int("triangles", s.Mesh.TriangleCount()))
	} else {
		var err error
		if s, err = Generate(cfg.Terrain, log); err != nil {
			return nil, err
		}
	}
	diffuse, err := LoadDiffuse(cfg.Texture)
	if err != nil {
		return nil, err
	}
	s.Diffuse = diffuse
	return s, nil
}

type RenderOptions struct {
	Width, Height int
	AngleDegrees  float32
	Normals       bool
	Cull          bool
	Workers       int
}

func RenderOptionsFromConfig(cfg *config.Config) RenderOptions {
	return RenderOptions{
		Width:   cfg.Render.Width,
		Height:  cfg.Render.Height,
		Normals: cfg.Shader.DebugNormals,
		Cull:    cfg.Render.Cull,
		Workers: cfg.Render.Workers,
	}
}

// Render draws the scene through the software pipeline with the given
// camera and texture sampling settings.
func (s *Scene) Render(ctx context.Context, cam camera.Camera, wrap pipeline.WrapMode, filter pipeline.Filter,
	opts RenderOptions, log *zap.Logger) (*pipeline.Target, pipeline.Stats, error) {
	diffuse, err := pipeline.NewTexture2D(s.Diffuse, wrap, filter)
	if err != nil {
		return nil, pipeline.Stats{}, err
	}
	r := &pipeline.Renderer{
		Uniforms:      cam.Uniforms(opts.Width, opts.Height, opts.AngleDegrees),
		Diffuse:       diffuse,
		CullBackFaces: opts.Cull,
		Workers:       opts.Workers,
		Logger:        log,
	}
	if opts.Normals {
		r.Mode = pipeline.ShadeNormal
	}
	target := pipeline.NewTarget(opts.Width, opts.Height)
	target.Clear(color.NRGBA{A: 0xff})
	stats, err := r.Draw(ctx, target, s.Mesh)
	if err != nil {
		return nil, stats, err
	}
	return target, stats, nil
}

func WritePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// WriteMesh stores the scene mesh in the terrain mesh file format.
func (s *Scene) WriteMesh(path string) error {
	data, err := terrain.EncodeMesh(&terrain.MeshFile{Params: s.Params, Mesh: s.Mesh})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write mesh: %w", err)
	}
	return nil
}
