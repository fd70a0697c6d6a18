package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Fixed interface between the host and the terrain program.
const (
	AttribPosition uint32 = 0
	AttribNormal   uint32 = 1
	AttribTexCoord uint32 = 2

	UniformProjection = "projection"
	UniformView       = "view"
	UniformModel      = "model"
	UniformDiffuse    = "diffuse_texture"

	VaryingNormal   = "frag_normal"
	VaryingTexCoord = "frag_tex_coord"

	DefineVertex       = "VERTEX"
	DefineFragment     = "FRAGMENT"
	DefineDebugNormals = "DEBUG_NORMALS"
)

// Variable is one declared input, output or uniform. Location is -1 when the
// declaration has no layout qualifier.
type Variable struct {
	Name     string
	Type     string
	Location int
}

// Interface is the statically declared surface of one stage.
type Interface struct {
	Stage    Stage
	Inputs   []Variable
	Outputs  []Variable
	Uniforms []Variable
}

func (i *Interface) find(vars []Variable, name string) (Variable, bool) {
	for _, v := range vars {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

func (i *Interface) Input(name string) (Variable, bool)   { return i.find(i.Inputs, name) }
func (i *Interface) Output(name string) (Variable, bool)  { return i.find(i.Outputs, name) }
func (i *Interface) Uniform(name string) (Variable, bool) { return i.find(i.Uniforms, name) }

// InputAt returns the input bound to an explicit location.
func (i *Interface) InputAt(location int) (Variable, bool) {
	for _, v := range i.Inputs {
		if v.Location == location {
			return v, true
		}
	}
	return Variable{}, false
}

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	declaration  = regexp.MustCompile(
		`^(?:layout\s*\(\s*location\s*=\s*(\d+)\s*\)\s*)?(?:(?:flat|smooth|noperspective|highp|mediump|lowp)\s+)*(in|out|uniform)\s+(?:(?:highp|mediump|lowp)\s+)?(\w+)\s+(.+)$`)
	declarator  = regexp.MustCompile(`^(\w+)\s*(?:\[\s*\w*\s*\])?\s*(?:=.*)?$`)
	definedExpr = regexp.MustCompile(`^defined\s*(?:\(\s*(\w+)\s*\)|(\w+))$`)
)

// branch is one level of #if nesting.
type branch struct {
	taken bool
	// done is set once any branch of the chain has been taken.
	done bool
}

// condition evaluates a #if or #elif expression. Only integer literals and
// defined(NAME), optionally negated with !, are understood; anything else
// counts as true.
func condition(expr string, defined map[string]bool) bool {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "!") {
		return !condition(expr[1:], defined)
	}
	if strings.HasPrefix(expr, "(") && strings.HasSuffix(expr, ")") {
		return condition(expr[1:len(expr)-1], defined)
	}
	if n, err := strconv.ParseInt(expr, 0, 64); err == nil {
		return n != 0
	}
	if m := definedExpr.FindStringSubmatch(expr); m != nil {
		return defined[m[1]+m[2]]
	}
	return true
}

// splitTopLevel splits s at commas outside parentheses and brackets.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, c := range s {
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// Reflect scans one stage for its global in/out/uniform declarations,
// including declarator lists such as "uniform mat4 view, model;". Only
// #define, #undef, #ifdef, #ifndef, #if, #elif, #else and #endif are
// understood; see condition for what #if can test.
func Reflect(src Source) (*Interface, error) {
	iface := &Interface{Stage: src.Stage}
	text := blockComment.ReplaceAllString(src.Text, "")

	defined := map[string]bool{}
	var active []branch
	enabled := func() bool {
		for _, a := range active {
			if !a.taken {
				return false
			}
		}
		return true
	}

	for n, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			directive := strings.TrimSpace(line[1:])
			fields := strings.Fields(directive)
			if len(fields) == 0 {
				continue
			}
			rest := strings.TrimSpace(strings.TrimPrefix(directive, fields[0]))
			switch fields[0] {
			case "define":
				if enabled() && len(fields) > 1 {
					defined[fields[1]] = true
				}
			case "undef":
				if enabled() && len(fields) > 1 {
					delete(defined, fields[1])
				}
			case "ifdef", "ifndef":
				if len(fields) < 2 {
					return nil, fmt.Errorf("%s:%d: #%s without a name", src.Name, n+1, fields[0])
				}
				taken := defined[fields[1]]
				if fields[0] == "ifndef" {
					taken = !taken
				}
				active = append(active, branch{taken: taken, done: taken})
			case "if":
				taken := condition(rest, defined)
				active = append(active, branch{taken: taken, done: taken})
			case "elif":
				if len(active) == 0 {
					return nil, fmt.Errorf("%s:%d: #elif without #if", src.Name, n+1)
				}
				top := &active[len(active)-1]
				top.taken = !top.done && condition(rest, defined)
				top.done = top.done || top.taken
			case "else":
				if len(active) == 0 {
					return nil, fmt.Errorf("%s:%d: #else without #if", src.Name, n+1)
				}
				top := &active[len(active)-1]
				top.taken = !top.done
				top.done = true
			case "endif":
				if len(active) == 0 {
					return nil, fmt.Errorf("%s:%d: #endif without #if", src.Name, n+1)
				}
				active = active[:len(active)-1]
			}
			continue
		}
		if !enabled() {
			continue
		}
		statements := strings.Split(line, ";")
		// The text after the last ';' is not a complete declaration.
		for _, stmt := range statements[:len(statements)-1] {
			if err := iface.declare(src.Name, n+1, strings.TrimSpace(stmt)); err != nil {
				return nil, err
			}
		}
	}
	if len(active) != 0 {
		return nil, fmt.Errorf("%s: %d unterminated conditional(s)", src.Name, len(active))
	}
	return iface, nil
}

func (i *Interface) declare(name string, line int, stmt string) error {
	m := declaration.FindStringSubmatch(stmt)
	if m == nil {
		return nil
	}
	location := -1
	if m[1] != "" {
		loc, err := strconv.Atoi(m[1])
		if err != nil {
			return fmt.Errorf("%s:%d: bad location %q", name, line, m[1])
		}
		location = loc
	}
	for k, decl := range splitTopLevel(m[4]) {
		d := declarator.FindStringSubmatch(strings.TrimSpace(decl))
		if d == nil {
			continue
		}
		v := Variable{Name: d[1], Type: m[3], Location: location}
		if location >= 0 {
			// Each further variable takes the next location.
			v.Location = location + k
		}
		switch m[2] {
		case "in":
			i.Inputs = append(i.Inputs, v)
		case "out":
			i.Outputs = append(i.Outputs, v)
		case "uniform":
			i.Uniforms = append(i.Uniforms, v)
		}
	}
	return nil
}

// BindingError lists every way a program deviates from the host interface.
type BindingError struct {
	Problems []string
}

func (e *BindingError) Error() string {
	return "shader interface mismatch: " + strings.Join(e.Problems, "; ")
}

type expectedAttrib struct {
	location uint32
	typ      string
	role     string
}

var expectedAttribs = []expectedAttrib{
	{AttribPosition, "vec3", "position"},
	{AttribNormal, "vec3", "normal"},
	{AttribTexCoord, "vec2", "texture coordinate"},
}

var expectedVertexUniforms = []Variable{
	{Name: UniformProjection, Type: "mat4", Location: -1},
	{Name: UniformView, Type: "mat4", Location: -1},
	{Name: UniformModel, Type: "mat4", Location: -1},
}

var expectedVaryings = []Variable{
	{Name: VaryingNormal, Type: "vec3", Location: -1},
	{Name: VaryingTexCoord, Type: "vec2", Location: -1},
}

// Validate checks a vertex/fragment pair against the fixed attribute
// locations, uniform names and varying interface. It returns the reflected
// interfaces even when they do not match.
func Validate(sources []Source) (vs, fs *Interface, err error) {
	for _, src := range sources {
		iface, rerr := Reflect(src)
		if rerr != nil {
			return nil, nil, rerr
		}
		switch src.Stage {
		case Vertex:
			vs = iface
		case Fragment:
			fs = iface
		}
	}
	if vs == nil || fs == nil {
		return vs, fs, fmt.Errorf("program needs a vertex and a fragment stage")
	}

	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for _, want := range expectedAttribs {
		got, ok := vs.InputAt(int(want.location))
		switch {
		case !ok:
			addf("no vertex input at location %d (%s)", want.location, want.role)
		case got.Type != want.typ:
			addf("vertex input %q at location %d is %s, want %s", got.Name, want.location, got.Type, want.typ)
		}
	}
	for _, in := range vs.Inputs {
		if in.Location < 0 {
			addf("vertex input %q has no explicit location", in.Name)
		}
	}
	for _, want := range expectedVertexUniforms {
		got, ok := vs.Uniform(want.Name)
		switch {
		case !ok:
			addf("vertex stage does not declare uniform %q", want.Name)
		case got.Type != want.Type:
			addf("uniform %q is %s, want %s", want.Name, got.Type, want.Type)
		}
	}
	for _, want := range expectedVaryings {
		out, ok := vs.Output(want.Name)
		if !ok {
			addf("vertex stage does not write varying %q", want.Name)
		} else if out.Type != want.Type {
			addf("varying %q is %s, want %s", want.Name, out.Type, want.Type)
		}
	}
	for _, in := range fs.Inputs {
		out, ok := vs.Output(in.Name)
		if !ok {
			addf("fragment input %q is not written by the vertex stage", in.Name)
		} else if out.Type != in.Type {
			addf("varying %q is %s in the vertex stage but %s in the fragment stage", in.Name, out.Type, in.Type)
		}
	}

	if got, ok := fs.Uniform(UniformDiffuse); ok {
		if got.Type != "sampler2D" {
			addf("uniform %q is %s, want sampler2D", UniformDiffuse, got.Type)
		}
	} else {
		addf("fragment stage does not declare uniform %q", UniformDiffuse)
	}
	if len(fs.Outputs) != 1 {
		addf("fragment stage has %d outputs, want 1", len(fs.Outputs))
	} else if fs.Outputs[0].Type != "vec4" {
		addf("fragment output %q is %s, want vec4", fs.Outputs[0].Name, fs.Outputs[0].Type)
	}

	if len(problems) > 0 {
		return vs, fs, &BindingError{Problems: problems}
	}
	return vs, fs, nil
}
