// Package viewer shows a mesh with the terrain program in a GLFW window.
// Everything here must run on the main, OS-locked goroutine.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gorustyt/terrainview/camera"
	"github.com/gorustyt/terrainview/config"
	"github.com/gorustyt/terrainview/pipeline"
	"github.com/gorustyt/terrainview/shader"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Viewer struct {
	cfg     *config.Config
	log     *zap.Logger
	mesh    *pipeline.Mesh
	diffuse *image.NRGBA

	cam           camera.Camera
	spin          camera.Spin
	width, height int

	program      *shader.Program
	buffers      *meshBuffers
	texture      uint32
	debugNormals bool
	rebuild      bool
}

func New(cfg *config.Config, log *zap.Logger, mesh *pipeline.Mesh, diffuse *image.NRGBA) *Viewer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Viewer{
		cfg:          cfg,
		log:          log,
		mesh:         mesh,
		diffuse:      diffuse,
		cam:          camera.FromConfig(cfg.Camera),
		spin:         camera.Spin{Step: cfg.Model.RotationDegrees},
		debugNormals: cfg.Shader.DebugNormals,
	}
}

func (v *Viewer) loader() shader.Loader {
	c := *v.cfg
	c.Shader.DebugNormals = v.debugNormals
	return c.ShaderLoader()
}

// buildProgram compiles the current sources. On failure the running program
// is kept and the error is returned for logging.
func (v *Viewer) buildProgram(srcs []shader.Source) error {
	if _, _, err := shader.Validate(srcs); err != nil {
		var be *shader.BindingError
		if !errors.As(err, &be) {
			return err
		}
		v.log.Warn("shader interface mismatch", zap.Strings("problems", be.Problems))
	}
	p, err := shader.Compile(v.log, srcs...)
	if err != nil {
		return err
	}
	if err := p.CheckBindings(); err != nil {
		v.log.Warn("attribute bindings differ", zap.Error(err))
	}
	if v.program != nil {
		v.program.Delete()
	}
	v.program = p
	v.log.Info("shader program ready", zap.Uint32("id", p.ID()), zap.Bool("debug_normals", v.debugNormals))
	return nil
}

func (v *Viewer) reload() {
	srcs, err := v.loader().Load()
	if err == nil {
		err = v.buildProgram(srcs)
	}
	if err != nil {
		v.log.Error("shader reload failed, keeping previous program", zap.Error(err))
	}
}

func (v *Viewer) resize(width, height int) {
	v.width, v.height = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (v *Viewer) draw() {
	gl.ClearColor(0.1, 0.1, 0.12, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	u := v.cam.Uniforms(v.width, v.height, v.spin.Advance())

	v.program.Use()
	v.program.SetMat4(shader.UniformProjection, u.Projection)
	v.program.SetMat4(shader.UniformView, u.View)
	v.program.SetMat4(shader.UniformModel, u.Model)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, v.texture)
	v.program.SetSampler(shader.UniformDiffuse, 0)
	v.buffers.Draw()
}

// Run opens the window and draws until it is closed or ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	if err := initGlfw(); err != nil {
		return err
	}
	defer glfw.Terminate()
	window, err := createWindow(v.cfg.Window, v.log)
	if err != nil {
		return err
	}
	defer window.Destroy()
	v.registerEvent(window)
	v.resize(window.GetFramebufferSize())

	wrap, filter, err := v.cfg.SamplerSettings()
	if err != nil {
		return err
	}
	if v.texture, err = newTexture(v.diffuse, wrap, filter); err != nil {
		return fmt.Errorf("upload texture: %w", err)
	}
	defer gl.DeleteTextures(1, &v.texture)
	if v.buffers, err = newMeshBuffers(v.mesh); err != nil {
		return err
	}
	defer v.buffers.Delete()

	srcs, err := v.loader().Load()
	if err != nil {
		return err
	}
	if err := v.buildProgram(srcs); err != nil {
		return err
	}
	defer func() { v.program.Delete() }()

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	var reloads <-chan shader.Reload
	if v.cfg.Shader.HotReload {
		w, err := shader.NewWatcher(v.log, v.loader(), 0)
		if err != nil {
			v.log.Warn("hot reload disabled", zap.Error(err))
		} else {
			reloads = w.Reloads()
			g.Go(func() error {
				if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
	}
	defer func() {
		cancel()
		if err := g.Wait(); err != nil {
			v.log.Warn("shader watcher stopped", zap.Error(err))
		}
	}()

	v.log.Info("viewer running",
		zap.Int("vertices", len(v.mesh.Vertices)),
		zap.Int("triangles", v.mesh.TriangleCount()))
	for !window.ShouldClose() {
		if ctx.Err() != nil {
			break
		}
		select {
		case r := <-reloads:
			if r.Err != nil {
				v.log.Error("shader reload failed, keeping previous program", zap.Error(r.Err))
			} else if err := v.buildProgram(v.withDebugDefine(r.Sources)); err != nil {
				v.log.Error("shader reload failed, keeping previous program", zap.Error(err))
			}
		default:
		}
		if v.rebuild {
			v.rebuild = false
			v.reload()
		}
		v.draw()
		window.SwapBuffers()
		glfw.PollEvents()
	}
	return nil
}

// withDebugDefine re-reads sources when the watcher's loader was created
// with a different debug setting than the one now active.
func (v *Viewer) withDebugDefine(srcs []shader.Source) []shader.Source {
	if v.debugNormals == v.cfg.Shader.DebugNormals {
		return srcs
	}
	fresh, err := v.loader().Load()
	if err != nil {
		return srcs
	}
	return fresh
}
