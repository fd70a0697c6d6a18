// Package shader holds the terrain GLSL program and everything needed to
// load, check, compile and hot-reload it.
package shader

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed glsl/terrain.vert
var terrainVertexSource string

//go:embed glsl/terrain.frag
var terrainFragmentSource string

//go:embed glsl/terrain.glsl
var terrainJoinedSource string

type Stage int

const (
	Vertex Stage = iota
	Fragment
)

func (s Stage) String() string {
	switch s {
	case Vertex:
		return "vertex"
	case Fragment:
		return "fragment"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Source is the text of one shader stage. Name is used in error messages.
type Source struct {
	Stage Stage
	Name  string
	Text  string
}

type Options struct {
	// Defines are inserted as "#define NAME" into every stage.
	Defines []string
}

// Loader produces the vertex and fragment sources of one program.
type Loader interface {
	Load() ([]Source, error)
	// Paths lists the files a reload should watch; empty for built-in sources.
	Paths() []string
}

// EmbeddedLoader serves the built-in terrain program.
type EmbeddedLoader struct {
	Options Options
}

func (l EmbeddedLoader) Load() ([]Source, error) {
	return []Source{
		{Stage: Vertex, Name: "terrain.vert", Text: InjectDefines(terrainVertexSource, l.Options.Defines...)},
		{Stage: Fragment, Name: "terrain.frag", Text: InjectDefines(terrainFragmentSource, l.Options.Defines...)},
	}, nil
}

func (l EmbeddedLoader) Paths() []string {
	return nil
}

// EmbeddedJoined splits the built-in joined source the way JoinedLoader splits a file.
func EmbeddedJoined(opts Options) []Source {
	return splitJoined("terrain.glsl", terrainJoinedSource, opts)
}

// FileLoader reads the two stages from separate files.
type FileLoader struct {
	VertexPath   string
	FragmentPath string
	Options      Options
}

func (l FileLoader) Load() ([]Source, error) {
	vs, err := os.ReadFile(l.VertexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.VertexPath, err)
	}
	fs, err := os.ReadFile(l.FragmentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.FragmentPath, err)
	}
	return []Source{
		{Stage: Vertex, Name: filepath.Base(l.VertexPath), Text: InjectDefines(string(vs), l.Options.Defines...)},
		{Stage: Fragment, Name: filepath.Base(l.FragmentPath), Text: InjectDefines(string(fs), l.Options.Defines...)},
	}, nil
}

func (l FileLoader) Paths() []string {
	return []string{l.VertexPath, l.FragmentPath}
}

// JoinedLoader reads one file holding both stages; the vertex half sits under
// "#ifdef VERTEX" and the fragment half under "#ifdef FRAGMENT".
type JoinedLoader struct {
	Path    string
	Options Options
}

func (l JoinedLoader) Load() ([]Source, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.Path, err)
	}
	return splitJoined(filepath.Base(l.Path), string(data), l.Options), nil
}

func (l JoinedLoader) Paths() []string {
	return []string{l.Path}
}

func splitJoined(name, text string, opts Options) []Source {
	return []Source{
		{Stage: Vertex, Name: name, Text: InjectDefines(text, append([]string{DefineVertex}, opts.Defines...)...)},
		{Stage: Fragment, Name: name, Text: InjectDefines(text, append([]string{DefineFragment}, opts.Defines...)...)},
	}
}

// InjectDefines adds "#define NAME" lines right after the #version directive,
// or at the very top when the source has none.
func InjectDefines(text string, defines ...string) string {
	if len(defines) == 0 {
		return text
	}
	var block strings.Builder
	for _, d := range defines {
		block.WriteString("#define ")
		block.WriteString(d)
		block.WriteString("\n")
	}

	// #version may only be preceded by whitespace and comments.
	pos := 0
	for pos < len(text) {
		rest := text[pos:]
		switch {
		case strings.IndexByte(" \t\r\n", rest[0]) >= 0:
			pos++
		case strings.HasPrefix(rest, "//"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				return block.String() + text
			}
			pos += end + 1
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				return block.String() + text
			}
			pos += end + 4
		case strings.HasPrefix(rest, "#version"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				return text + "\n" + block.String()
			}
			cut := pos + end + 1
			return text[:cut] + block.String() + text[cut:]
		default:
			return block.String() + text
		}
	}
	return block.String() + text
}
