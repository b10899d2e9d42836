package kernel

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName string    `json:"partName"` // model or script part this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Vertex returns vertex i.
func (m *Mesh) Vertex(i int) v3.Vec {
	return v3.Vec{
		X: float64(m.Vertices[i*3]),
		Y: float64(m.Vertices[i*3+1]),
		Z: float64(m.Vertices[i*3+2]),
	}
}

// Bounds returns the axis-aligned bounding box of the vertices.
// It reports false for an empty mesh.
func (m *Mesh) Bounds() (sdf.Box3, bool) {
	n := m.VertexCount()
	if n == 0 {
		return sdf.Box3{}, false
	}
	box := sdf.Box3{Min: m.Vertex(0), Max: m.Vertex(0)}
	for i := 1; i < n; i++ {
		box = box.Include(m.Vertex(i))
	}
	return box, true
}

// Translate moves every vertex by offset in place.
func (m *Mesh) Translate(offset v3.Vec) {
	d := [3]float32{float32(offset.X), float32(offset.Y), float32(offset.Z)}
	for i := range m.Vertices {
		m.Vertices[i] += d[i%3]
	}
}
