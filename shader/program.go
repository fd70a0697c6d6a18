package shader

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// CompileError carries the driver info log of a stage that failed to compile.
type CompileError struct {
	Stage Stage
	Name  string
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile %s shader %s: %s", e.Stage, e.Name, strings.TrimSpace(e.Log))
}

// LinkError carries the driver info log of a program that failed to link.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return "failed to link program: " + strings.TrimSpace(e.Log)
}

// Program is a linked GL program. All methods must run on the goroutine that
// owns the GL context.
type Program struct {
	id       uint32
	vertex   *Interface
	uniforms map[string]int32
	log      *zap.Logger
}

func glStage(s Stage) uint32 {
	if s == Fragment {
		return gl.FRAGMENT_SHADER
	}
	return gl.VERTEX_SHADER
}

// Compile compiles and links sources on the current GL context.
func Compile(log *zap.Logger, sources ...Source) (*Program, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Program{uniforms: map[string]int32{}, log: log}
	shaders := make([]uint32, 0, len(sources))
	defer func() {
		for _, s := range shaders {
			gl.DeleteShader(s)
		}
	}()
	for _, src := range sources {
		s, err := compileShader(src)
		if err != nil {
			return nil, err
		}
		shaders = append(shaders, s)
		if src.Stage == Vertex {
			if iface, rerr := Reflect(src); rerr == nil {
				p.vertex = iface
			}
		}
	}

	p.id = gl.CreateProgram()
	for _, s := range shaders {
		gl.AttachShader(p.id, s)
	}
	gl.LinkProgram(p.id)

	var status int32
	gl.GetProgramiv(p.id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(p.id, gl.INFO_LOG_LENGTH, &logLength)
		info := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(p.id, logLength, nil, gl.Str(info))
		gl.DeleteProgram(p.id)
		return nil, &LinkError{Log: strings.TrimRight(info, "\x00")}
	}
	for _, s := range shaders {
		gl.DetachShader(p.id, s)
	}
	log.Debug("linked program", zap.Uint32("id", p.id), zap.Int("stages", len(sources)))
	return p, nil
}

func compileShader(src Source) (uint32, error) {
	shader := gl.CreateShader(glStage(src.Stage))

	csources, free := gl.Strs(src.Text + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		info := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(info))
		gl.DeleteShader(shader)
		return 0, &CompileError{Stage: src.Stage, Name: src.Name, Log: strings.TrimRight(info, "\x00")}
	}
	return shader, nil
}

func (p *Program) ID() uint32 {
	return p.id
}

func (p *Program) Use() {
	gl.UseProgram(p.id)
}

func (p *Program) Delete() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

// uniform resolves and caches a uniform location. Uniforms the linker
// dropped resolve to -1 and are reported once.
func (p *Program) uniform(name string) int32 {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	if loc < 0 {
		p.log.Debug("uniform not active", zap.String("name", name), zap.Uint32("program", p.id))
	}
	p.uniforms[name] = loc
	return loc
}

func (p *Program) SetMat4(name string, m mgl32.Mat4) {
	if loc := p.uniform(name); loc >= 0 {
		gl.UniformMatrix4fv(loc, 1, false, &m[0])
	}
}

func (p *Program) SetSampler(name string, unit int32) {
	if loc := p.uniform(name); loc >= 0 {
		gl.Uniform1i(loc, unit)
	}
}

// CheckBindings compares the linked attribute locations with the fixed
// host layout. Inputs the linker optimised away are not an error.
func (p *Program) CheckBindings() error {
	if p.vertex == nil {
		return fmt.Errorf("program %d has no reflected vertex stage", p.id)
	}
	var problems []string
	for _, want := range expectedAttribs {
		v, ok := p.vertex.InputAt(int(want.location))
		if !ok {
			problems = append(problems, fmt.Sprintf("no vertex input at location %d (%s)", want.location, want.role))
			continue
		}
		got := gl.GetAttribLocation(p.id, gl.Str(v.Name+"\x00"))
		if got < 0 {
			p.log.Debug("attribute not active", zap.String("name", v.Name))
			continue
		}
		if uint32(got) != want.location {
			problems = append(problems, fmt.Sprintf("attribute %q linked at %d, want %d", v.Name, got, want.location))
		}
	}
	if len(problems) > 0 {
		return &BindingError{Problems: problems}
	}
	return nil
}
