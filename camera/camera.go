// Package camera holds the fixed orbit camera shared by the window and the
// offline renderer.
package camera

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorustyt/terrainview/config"
	"github.com/gorustyt/terrainview/pipeline"
)

type Camera struct {
	FovDegrees float32
	Near, Far  float32
	// Distance is how far the eye sits back along +z from the origin.
	Distance float32
	// PitchDegrees tilts the scene towards the eye about X.
	PitchDegrees float32
}

func FromConfig(c config.CameraConfig) Camera {
	return Camera{FovDegrees: c.FovDegrees, Near: c.Near, Far: c.Far, Distance: c.Distance, PitchDegrees: c.PitchDegrees}
}

// Projection uses the framebuffer aspect; a zero height falls back to 1.
func (c Camera) Projection(width, height int) mgl32.Mat4 {
	aspect := float32(1)
	if width > 0 && height > 0 {
		aspect = float32(width) / float32(height)
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FovDegrees), aspect, c.Near, c.Far)
}

func (c Camera) View() mgl32.Mat4 {
	view := mgl32.Translate3D(0, 0, -c.Distance)
	if c.PitchDegrees != 0 {
		view = view.Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(c.PitchDegrees)))
	}
	return view
}

func Model(angleDegrees float32) mgl32.Mat4 {
	return mgl32.HomogRotate3DY(mgl32.DegToRad(angleDegrees))
}

func (c Camera) Uniforms(width, height int, angleDegrees float32) pipeline.Uniforms {
	return pipeline.Uniforms{
		Projection: c.Projection(width, height),
		View:       c.View(),
		Model:      Model(angleDegrees),
	}
}

// Spin advances the model angle by a fixed step per frame, kept in [0, 360).
type Spin struct {
	Step  float32
	Angle float32
}

func (s *Spin) Advance() float32 {
	s.Angle += s.Step
	for s.Angle >= 360 {
		s.Angle -= 360
	}
	for s.Angle < 0 {
		s.Angle += 360
	}
	return s.Angle
}
