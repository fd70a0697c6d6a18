package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gorustyt/terrainview/camera"
	"github.com/gorustyt/terrainview/config"
	"github.com/gorustyt/terrainview/logger"
	"github.com/gorustyt/terrainview/scene"
	"github.com/gorustyt/terrainview/shader"
	"github.com/gorustyt/terrainview/viewer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	// GLFW event handling must run on the main OS thread.
	runtime.LockOSThread()
}

var (
	configPath string
	verbose    bool

	cfg *config.Config
	log *zap.Logger

	meshPath   string
	outPath    string
	width      int
	height     int
	angle      float32
	normals    bool
	terrainOut string
	saveConfig string
)

var rootCmd = &cobra.Command{
	Use:           "terrainview",
	Short:         "Voronoi terrain viewer with a textured GLSL program",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		log, err = logger.New(cfg.Log, verbose)
		if err != nil {
			return err
		}
		log.Debug("config loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open a window and draw the terrain",
	RunE: func(cmd *cobra.Command, args []string) error {
		if normals {
			cfg.Shader.DebugNormals = true
		}
		s, err := scene.Load(cfg, meshPath, log)
		if err != nil {
			return err
		}
		return viewer.New(cfg, log, s.Mesh, s.Diffuse).Run(cmd.Context())
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the terrain offline to a PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := scene.Load(cfg, meshPath, log)
		if err != nil {
			return err
		}
		opts := scene.RenderOptionsFromConfig(cfg)
		if cmd.Flags().Changed("width") {
			opts.Width = width
		}
		if cmd.Flags().Changed("height") {
			opts.Height = height
		}
		if normals {
			opts.Normals = true
		}
		opts.AngleDegrees = angle
		if opts.Width <= 0 || opts.Height <= 0 {
			return fmt.Errorf("render size %dx%d must be positive", opts.Width, opts.Height)
		}
		wrap, filter, err := cfg.SamplerSettings()
		if err != nil {
			return err
		}
		target, stats, err := s.Render(cmd.Context(), camera.FromConfig(cfg.Camera), wrap, filter, opts, log)
		if err != nil {
			return err
		}
		out := cfg.Render.Output
		if outPath != "" {
			out = outPath
		}
		if err := scene.WritePNG(out, target.Color); err != nil {
			return err
		}
		log.Info("image written",
			zap.String("file", out),
			zap.Int("triangles", stats.Triangles),
			zap.Int("culled", stats.Culled),
			zap.Int("fragments", stats.Fragments))
		return nil
	},
}

var terrainCmd = &cobra.Command{
	Use:   "terrain",
	Short: "Generate a terrain and write it as a mesh file",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := scene.Generate(cfg.Terrain, log)
		if err != nil {
			return err
		}
		if err := s.WriteMesh(terrainOut); err != nil {
			return err
		}
		log.Info("mesh written", zap.String("file", terrainOut), zap.Int64("seed", s.Params.Seed))
		if saveConfig != "" {
			cfg.Terrain.Seed = s.Params.Seed
			if err := cfg.Save(saveConfig); err != nil {
				return err
			}
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configured shader sources against the host interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		srcs, err := cfg.ShaderLoader().Load()
		if err != nil {
			return err
		}
		vs, fs, err := shader.Validate(srcs)
		out := cmd.OutOrStdout()
		for _, iface := range []*shader.Interface{vs, fs} {
			if iface == nil {
				continue
			}
			fmt.Fprintf(out, "%s stage\n", iface.Stage)
			for _, v := range iface.Inputs {
				fmt.Fprintf(out, "  in      %-8s %-16s location=%d\n", v.Type, v.Name, v.Location)
			}
			for _, v := range iface.Uniforms {
				fmt.Fprintf(out, "  uniform %-8s %s\n", v.Type, v.Name)
			}
			for _, v := range iface.Outputs {
				fmt.Fprintf(out, "  out     %-8s %s\n", v.Type, v.Name)
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	viewCmd.Flags().StringVar(&meshPath, "mesh", "", "Mesh file to show instead of generating a terrain")
	viewCmd.Flags().BoolVar(&normals, "normals", false, "Start with the normal visualisation")

	renderCmd.Flags().StringVar(&meshPath, "mesh", "", "Mesh file to render instead of generating a terrain")
	renderCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output PNG (default: render.output)")
	renderCmd.Flags().IntVar(&width, "width", 0, "Image width (default: render.width)")
	renderCmd.Flags().IntVar(&height, "height", 0, "Image height (default: render.height)")
	renderCmd.Flags().Float32Var(&angle, "angle", 0, "Model rotation about Y in degrees")
	renderCmd.Flags().BoolVar(&normals, "normals", false, "Write normals instead of the texture")

	terrainCmd.Flags().StringVarP(&terrainOut, "out", "o", "terrain.tvm", "Output mesh file")
	terrainCmd.Flags().StringVar(&saveConfig, "save-config", "", "Also write the effective config with the seed used")

	rootCmd.AddCommand(viewCmd, renderCmd, terrainCmd, checkCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
