package terrain

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gorustyt/terrainview/common/message"
	"github.com/gorustyt/terrainview/common/rw"
	"github.com/gorustyt/terrainview/pipeline"
)

const (
	meshMagic   = "TVMS"
	meshVersion = 1
)

var ErrBadMeshFile = errors.New("bad terrain mesh file")

// MeshFile is a mesh together with the parameters that generated it.
type MeshFile struct {
	Params Params
	Mesh   *pipeline.Mesh
}

// EncodeMesh writes a protobuf Struct header followed by the interleaved
// vertices and the indices, all little-endian.
func EncodeMesh(f *MeshFile) ([]byte, error) {
	if err := f.Mesh.Validate(); err != nil {
		return nil, fmt.Errorf("encode mesh: %w", err)
	}
	header, err := message.EncodeFields(map[string]any{
		"magic":       meshMagic,
		"version":     meshVersion,
		"vertices":    len(f.Mesh.Vertices),
		"indices":     len(f.Mesh.Indices),
		"seed":        strconv.FormatInt(f.Params.Seed, 10),
		"sites":       f.Params.Sites,
		"water_level": f.Params.WaterLevel,
		"height":      f.Params.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("encode mesh header: %w", err)
	}
	w := rw.NewWriter()
	w.WriteBytes(header)
	w.WriteInt32(len(f.Mesh.Vertices))
	w.WriteFloat32s(f.Mesh.Interleaved())
	w.WriteInt32(len(f.Mesh.Indices))
	w.WriteInt32s(f.Mesh.Indices)
	return w.GetWriteBytes(), nil
}

func headerInt(h map[string]any, key string) (int, error) {
	v, ok := h[key].(float64)
	if !ok || v < 0 || v != float64(int(v)) {
		return 0, fmt.Errorf("%w: header field %q is %v", ErrBadMeshFile, key, h[key])
	}
	return int(v), nil
}

func DecodeMesh(data []byte) (*MeshFile, error) {
	r := rw.NewReader(data)
	raw := r.ReadBytes()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMeshFile, err)
	}
	h, err := message.DecodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMeshFile, err)
	}
	if h["magic"] != meshMagic {
		return nil, fmt.Errorf("%w: magic %v", ErrBadMeshFile, h["magic"])
	}
	ints := map[string]int{}
	for _, key := range []string{"version", "vertices", "indices", "sites", "water_level", "height"} {
		v, err := headerInt(h, key)
		if err != nil {
			return nil, err
		}
		ints[key] = v
	}
	if ints["version"] != meshVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadMeshFile, ints["version"])
	}
	seedText, _ := h["seed"].(string)
	seed, err := strconv.ParseInt(seedText, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: seed %q", ErrBadMeshFile, seedText)
	}

	nv := int(r.ReadUInt32())
	if r.Err() == nil && (nv != ints["vertices"] || nv*pipeline.VertexStride > r.Size()) {
		return nil, fmt.Errorf("%w: %d vertices in body, %d in header", ErrBadMeshFile, nv, ints["vertices"])
	}
	floats := make([]float32, nv*pipeline.FloatsPerVertex)
	r.ReadFloat32s(floats)
	ni := int(r.ReadUInt32())
	if r.Err() == nil && (ni != ints["indices"] || ni*4 > r.Size()) {
		return nil, fmt.Errorf("%w: %d indices in body, %d in header", ErrBadMeshFile, ni, ints["indices"])
	}
	indices := make([]uint32, ni)
	r.ReadUInt32s(indices)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMeshFile, err)
	}

	mesh := &pipeline.Mesh{Vertices: make([]pipeline.Vertex, nv), Indices: indices}
	for i := range mesh.Vertices {
		f := floats[i*pipeline.FloatsPerVertex:]
		mesh.Vertices[i] = pipeline.Vertex{
			Position: [3]float32{f[0], f[1], f[2]},
			Normal:   [3]float32{f[3], f[4], f[5]},
			TexCoord: [2]float32{f[6], f[7]},
		}
	}
	if err := mesh.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMeshFile, err)
	}
	return &MeshFile{
		Params: Params{
			Seed:       seed,
			Sites:      ints["sites"],
			WaterLevel: uint32(ints["water_level"]),
			Height:     uint32(ints["height"]),
		},
		Mesh: mesh,
	}, nil
}
