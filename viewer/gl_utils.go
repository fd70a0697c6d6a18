package viewer

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/gorustyt/terrainview/pipeline"
	"github.com/gorustyt/terrainview/shader"
)

func glWrap(w pipeline.WrapMode) int32 {
	switch w {
	case pipeline.WrapClampToEdge:
		return gl.CLAMP_TO_EDGE
	case pipeline.WrapMirroredRepeat:
		return gl.MIRRORED_REPEAT
	default:
		return gl.REPEAT
	}
}

func glFilter(f pipeline.Filter) int32 {
	if f == pipeline.FilterNearest {
		return gl.NEAREST
	}
	return gl.LINEAR
}

// newTexture uploads rgba to texture unit 0. Row 0 of the image lands at t = 0.
func newTexture(rgba *image.NRGBA, wrap pipeline.WrapMode, filter pipeline.Filter) (uint32, error) {
	if rgba.Stride != rgba.Rect.Size().X*4 {
		return 0, fmt.Errorf("unsupported stride")
	}
	var texture uint32
	gl.GenTextures(1, &texture)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, glFilter(filter))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, glFilter(filter))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, glWrap(wrap))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, glWrap(wrap))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(
		gl.TEXTURE_2D,
		0,
		gl.RGBA,
		int32(rgba.Rect.Size().X),
		int32(rgba.Rect.Size().Y),
		0,
		gl.RGBA,
		gl.UNSIGNED_BYTE,
		gl.Ptr(rgba.Pix))
	return texture, nil
}

// meshBuffers is an uploaded pipeline.Mesh: a VAO over one interleaved VBO
// and an element buffer.
type meshBuffers struct {
	vao, vbo, ebo uint32
	count         int32
}

func newMeshBuffers(m *pipeline.Mesh) (*meshBuffers, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("upload mesh: %w", err)
	}
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return nil, fmt.Errorf("upload mesh: mesh is empty")
	}
	b := &meshBuffers{count: int32(len(m.Indices))}
	points := m.Interleaved()

	gl.GenVertexArrays(1, &b.vao)
	gl.GenBuffers(1, &b.vbo)
	gl.GenBuffers(1, &b.ebo)
	gl.BindVertexArray(b.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(points), gl.Ptr(points), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, 4*len(m.Indices), gl.Ptr(m.Indices), gl.STATIC_DRAW)

	gl.VertexAttribPointer(shader.AttribPosition, 3, gl.FLOAT, false, pipeline.VertexStride, gl.PtrOffset(pipeline.PositionOffset))
	gl.EnableVertexAttribArray(shader.AttribPosition)
	gl.VertexAttribPointer(shader.AttribNormal, 3, gl.FLOAT, false, pipeline.VertexStride, gl.PtrOffset(pipeline.NormalOffset))
	gl.EnableVertexAttribArray(shader.AttribNormal)
	gl.VertexAttribPointer(shader.AttribTexCoord, 2, gl.FLOAT, false, pipeline.VertexStride, gl.PtrOffset(pipeline.TexCoordOffset))
	gl.EnableVertexAttribArray(shader.AttribTexCoord)

	gl.BindVertexArray(0)
	return b, nil
}

func (b *meshBuffers) Draw() {
	gl.BindVertexArray(b.vao)
	gl.DrawElements(gl.TRIANGLES, b.count, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
}

func (b *meshBuffers) Delete() {
	gl.DeleteVertexArrays(1, &b.vao)
	gl.DeleteBuffers(1, &b.vbo)
	gl.DeleteBuffers(1, &b.ebo)
}
