// Package mesh holds the static geometry the renderer draws: a flat,
// non-indexed list of coloured vertices.
package mesh

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

type Mesh struct {
	Name     string
	Vertices []Vertex
}

// Triangle is the mesh drawn when no model file is configured.
func Triangle() *Mesh {
	return &Mesh{
		Name: "triangle",
		Vertices: []Vertex{
			{Position: mgl32.Vec3{0, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}},
			{Position: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 1, 0}},
			{Position: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}},
		},
	}
}

func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// Bytes encodes the vertices in the layout the vertex shader reads: tightly
// packed float32s in host byte order.
func (m *Mesh) Bytes() ([]byte, error) {
	if len(m.Vertices) == 0 {
		return nil, errors.Newf("mesh %q has no vertices", m.Name)
	}

	buf := &bytes.Buffer{}
	err := binary.Write(buf, binary.NativeEndian, m.Vertices)
	if err != nil {
		return nil, errors.Wrapf(err, "encode mesh %q", m.Name)
	}
	return buf.Bytes(), nil
}

// Bounds returns the axis-aligned box around every vertex position.
func (m *Mesh) Bounds() (min, max mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return min, max
	}

	min = m.Vertices[0].Position
	max = m.Vertices[0].Position
	for _, v := range m.Vertices[1:] {
		for i := 0; i < 3; i++ {
			if v.Position[i] < min[i] {
				min[i] = v.Position[i]
			}
			if v.Position[i] > max[i] {
				max[i] = v.Position[i]
			}
		}
	}
	return min, max
}
