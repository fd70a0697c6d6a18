package shader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedProgramMatchesBindings(t *testing.T) {
	srcs, err := EmbeddedLoader{}.Load()
	require.NoError(t, err)
	vs, fs, err := Validate(srcs)
	require.NoError(t, err)

	pos, ok := vs.InputAt(int(AttribPosition))
	require.True(t, ok)
	assert.Equal(t, Variable{Name: "position", Type: "vec3", Location: 0}, pos)
	tc, ok := vs.InputAt(int(AttribTexCoord))
	require.True(t, ok)
	assert.Equal(t, "vec2", tc.Type)

	assert.Len(t, vs.Uniforms, 3)
	assert.Equal(t, []Variable{{Name: UniformDiffuse, Type: "sampler2D", Location: -1}}, fs.Uniforms)
	assert.Equal(t, []Variable{{Name: "color", Type: "vec4", Location: -1}}, fs.Outputs)
}

func TestEmbeddedJoinedMatchesSeparateFiles(t *testing.T) {
	separate, err := EmbeddedLoader{}.Load()
	require.NoError(t, err)
	joined := EmbeddedJoined(Options{})
	for i := range joined {
		a, err := Reflect(separate[i])
		require.NoError(t, err)
		b, err := Reflect(joined[i])
		require.NoError(t, err)
		assert.Equal(t, a, b, "stage %v", joined[i].Stage)
	}
	_, _, err = Validate(joined)
	assert.NoError(t, err)
}

func TestDebugNormalsVariantStillValid(t *testing.T) {
	srcs, err := EmbeddedLoader{Options: Options{Defines: []string{DefineDebugNormals}}}.Load()
	require.NoError(t, err)
	assert.Contains(t, srcs[1].Text, "#define DEBUG_NORMALS\n")
	_, _, err = Validate(srcs)
	assert.NoError(t, err)
}

func TestInjectDefinesAfterVersion(t *testing.T) {
	src := "// header\n\n#version 330 core\nvoid main() {}\n"
	got := InjectDefines(src, "VERTEX", "DEBUG_NORMALS")
	assert.Equal(t, "// header\n\n#version 330 core\n#define VERTEX\n#define DEBUG_NORMALS\nvoid main() {}\n", got)
}

func TestInjectDefinesAfterBlockComment(t *testing.T) {
	src := "/* terrain\n * program */\n#version 330 core\nvoid main() {}\n"
	got := InjectDefines(src, "VERTEX")
	assert.Equal(t, "/* terrain\n * program */\n#version 330 core\n#define VERTEX\nvoid main() {}\n", got)

	got = InjectDefines("/* x */ #version 330 core\n", "A")
	assert.Equal(t, "/* x */ #version 330 core\n#define A\n", got)

	// An unterminated comment has no #version after it.
	got = InjectDefines("/* open\n#version 330 core\n", "A")
	assert.Equal(t, "#define A\n/* open\n#version 330 core\n", got)
}

func TestInjectDefinesWithoutVersion(t *testing.T) {
	got := InjectDefines("void main() {}\n", "FRAGMENT")
	assert.Equal(t, "#define FRAGMENT\nvoid main() {}\n", got)
	assert.Equal(t, "x", InjectDefines("x"))
}

func TestInjectDefinesVersionOnlyLine(t *testing.T) {
	got := InjectDefines("#version 330 core", "A")
	assert.Equal(t, "#version 330 core\n#define A\n", got)
}

func TestJoinedSplitsStages(t *testing.T) {
	srcs := EmbeddedJoined(Options{})
	vs, err := Reflect(srcs[0])
	require.NoError(t, err)
	fs, err := Reflect(srcs[1])
	require.NoError(t, err)
	_, ok := vs.Uniform(UniformDiffuse)
	assert.False(t, ok)
	_, ok = fs.Uniform(UniformProjection)
	assert.False(t, ok)
	assert.Len(t, fs.Inputs, 2)
	assert.Len(t, vs.Inputs, 3)
}

func TestReflectConditionals(t *testing.T) {
	src := Source{Stage: Fragment, Name: "t.frag", Text: `#version 330 core
#define A
/* uniform float hidden; */
#ifdef A
uniform float a; // trailing
#else
uniform float notA;
#endif
#ifndef B
uniform vec3 notB;
#endif
#ifdef B
uniform vec3 b;
#endif
layout(location=3) in vec2 uv;
flat in int id;
out vec4 color;
`}
	iface, err := Reflect(src)
	require.NoError(t, err)
	names := []string{}
	for _, u := range iface.Uniforms {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"a", "notB"}, names)
	assert.Equal(t, []Variable{{"uv", "vec2", 3}, {"id", "int", -1}}, iface.Inputs)
}

func uniformNames(iface *Interface) []string {
	names := []string{}
	for _, u := range iface.Uniforms {
		names = append(names, u.Name)
	}
	return names
}

func TestReflectDeclaratorLists(t *testing.T) {
	src := Source{Stage: Vertex, Name: "list.vert", Text: `#version 330 core
uniform mat4 projection;
uniform mat4 view, model;
uniform vec3 tint = vec3(1.0, 0.5, 0.0), fog[4];
layout (location = 1) in vec3 normal, tangent; in vec2 tex_coord;
out vec3 frag_normal; out vec2 frag_tex_coord;
void main() { gl_Position = projection * view * model * vec4(0.0); }
`}
	iface, err := Reflect(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"projection", "view", "model", "tint", "fog"}, uniformNames(iface))
	assert.Equal(t, []Variable{
		{"normal", "vec3", 1},
		{"tangent", "vec3", 2},
		{"tex_coord", "vec2", -1},
	}, iface.Inputs)
	assert.Len(t, iface.Outputs, 2)
	u, ok := iface.Uniform(UniformModel)
	require.True(t, ok)
	assert.Equal(t, "mat4", u.Type)
}

func TestReflectIfElif(t *testing.T) {
	src := Source{Stage: Fragment, Name: "if.frag", Text: `#version 330 core
#define HIGH
#if 0
uniform float never;
#elif defined(LOW)
uniform float low;
#elif defined HIGH
uniform float high;
#else
uniform float fallback;
#endif
#if 1
uniform float always;
#else
uniform float notAlways;
#endif
#if !defined(HIGH)
uniform float notHigh;
#endif
`}
	iface, err := Reflect(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "always"}, uniformNames(iface))

	_, err = Reflect(Source{Name: "d", Text: "#elif 1\n"})
	assert.Error(t, err)
}

func TestValidateAcceptsDeclaratorList(t *testing.T) {
	srcs, err := EmbeddedLoader{}.Load()
	require.NoError(t, err)
	srcs[0].Text = strings.Replace(srcs[0].Text, "uniform mat4 view;\nuniform mat4 model;", "uniform mat4 view, model;", 1)
	require.Contains(t, srcs[0].Text, "view, model")
	_, _, err = Validate(srcs)
	assert.NoError(t, err)
}

func TestReflectUnbalancedConditionals(t *testing.T) {
	_, err := Reflect(Source{Name: "a", Text: "#ifdef X\n"})
	assert.Error(t, err)
	_, err = Reflect(Source{Name: "b", Text: "#endif\n"})
	assert.Error(t, err)
	_, err = Reflect(Source{Name: "c", Text: "#else\n"})
	assert.Error(t, err)
}

func TestValidateReportsEveryMismatch(t *testing.T) {
	vs := Source{Stage: Vertex, Name: "bad.vert", Text: `#version 330 core
layout (location = 0) in vec4 position;
layout (location = 2) in vec2 tex_coord;
in vec3 extra;
uniform mat4 projection;
uniform mat3 view;
out vec3 frag_normal;
out vec2 frag_tex_coord;
void main() {}
`}
	fs := Source{Stage: Fragment, Name: "bad.frag", Text: `#version 330 core
in vec3 frag_tex_coord;
in vec3 frag_other;
uniform sampler3D diffuse_texture;
out vec4 color;
out vec4 second;
void main() {}
`}
	_, _, err := Validate([]Source{vs, fs})
	var be *BindingError
	require.True(t, errors.As(err, &be), "got %v", err)
	joined := strings.Join(be.Problems, "\n")
	for _, want := range []string{
		`"position" at location 0 is vec4`,
		"no vertex input at location 1",
		`"extra" has no explicit location`,
		`uniform "view" is mat3`,
		`does not declare uniform "model"`,
		`"frag_tex_coord" is vec2 in the vertex stage but vec3`,
		`"frag_other" is not written`,
		"want sampler2D",
		"2 outputs",
	} {
		assert.Contains(t, joined, want)
	}
}

func TestValidateNeedsBothStages(t *testing.T) {
	srcs, err := EmbeddedLoader{}.Load()
	require.NoError(t, err)
	_, _, err = Validate(srcs[:1])
	assert.Error(t, err)
}

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "vs.vert"), terrainVertexSource)
	writeFile(t, filepath.Join(dir, "fs.frag"), terrainFragmentSource)
	l := FileLoader{VertexPath: filepath.Join(dir, "vs.vert"), FragmentPath: filepath.Join(dir, "fs.frag")}
	srcs, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "vs.vert", srcs[0].Name)
	assert.Equal(t, Fragment, srcs[1].Stage)
	_, _, err = Validate(srcs)
	assert.NoError(t, err)

	l.FragmentPath = filepath.Join(dir, "missing.frag")
	_, err = l.Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestJoinedLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terrain.glsl")
	writeFile(t, path, terrainJoinedSource)
	srcs, err := JoinedLoader{Path: path}.Load()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(srcs[0].Text, "#version 330 core\n#define VERTEX\n"))
	assert.True(t, strings.HasPrefix(srcs[1].Text, "#version 330 core\n#define FRAGMENT\n"))
	assert.Equal(t, []string{path}, JoinedLoader{Path: path}.Paths())
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terrain.glsl")
	writeFile(t, path, terrainJoinedSource)

	w, err := NewWatcher(nil, JoinedLoader{Path: path}, 20*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	edited := strings.Replace(terrainJoinedSource, "out vec4 color;", "out vec4 out_color;", 1)
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	writeFile(t, path, edited)
	for {
		select {
		case r := <-w.Reloads():
			require.NoError(t, r.Err)
			if strings.Contains(r.Sources[1].Text, "out_color") {
				return
			}
		case <-tick.C:
			// Some platforms coalesce the first write with watcher setup.
			writeFile(t, path, edited)
		case <-deadline:
			t.Fatal("no reload delivered")
		}
	}
}

func TestWatcherDeliversReadErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terrain.glsl")
	writeFile(t, path, terrainJoinedSource)

	w, err := NewWatcher(nil, JoinedLoader{Path: path}, 20*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, os.Rename(path, filepath.Join(dir, "terrain.glsl.bak")))
	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-w.Reloads():
			if r.Err == nil {
				continue
			}
			assert.ErrorIs(t, r.Err, os.ErrNotExist)
			assert.Nil(t, r.Sources)
			// The watcher keeps running after a failed read.
			writeFile(t, path, terrainJoinedSource)
			select {
			case r = <-w.Reloads():
				assert.NoError(t, r.Err)
			case <-time.After(5 * time.Second):
				t.Fatal("no reload after the file came back")
			}
			return
		case <-deadline:
			t.Fatal("no failed reload delivered")
		}
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terrain.glsl")
	writeFile(t, path, terrainJoinedSource)
	w, err := NewWatcher(nil, JoinedLoader{Path: path}, 10*time.Millisecond)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeFile(t, filepath.Join(dir, "notes.txt"), "unrelated")
	assert.ErrorIs(t, <-done, context.DeadlineExceeded)
	select {
	case r := <-w.Reloads():
		t.Fatalf("unexpected reload %+v", r)
	default:
	}
}

func TestWatcherNeedsFiles(t *testing.T) {
	_, err := NewWatcher(nil, EmbeddedLoader{}, 0)
	assert.Error(t, err)
}
