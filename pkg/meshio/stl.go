// Package meshio reads triangle meshes produced by external tools, so a
// backend-generated STL can be shown without going through the approximator.
package meshio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/stepview/pkg/kernel"
)

// ErrNotSTL is returned when the input is neither ASCII nor binary STL.
var ErrNotSTL = errors.New("meshio: not an STL file")

const (
	binaryHeaderSize = 84 // 80-byte header + uint32 triangle count
	binaryTriSize    = 50 // normal, three vertices, attribute count
)

// ReadSTL reads an ASCII or binary STL stream. Every facet keeps its own three
// vertices and its facet normal, matching the flat-shaded meshes the kernel
// produces.
func ReadSTL(r io.Reader) (*kernel.Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("meshio: read: %w", err)
	}
	if isBinary(data) {
		return readBinary(data)
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid")) {
		return readASCII(data)
	}
	return nil, ErrNotSTL
}

// isBinary reports whether the size matches the triangle count in the
// header. ASCII files start with "solid" too, so the prefix alone is not enough.
func isBinary(data []byte) bool {
	if len(data) < binaryHeaderSize {
		return false
	}
	n := binary.LittleEndian.Uint32(data[80:84])
	return uint64(len(data)) == binaryHeaderSize+uint64(n)*binaryTriSize
}

func readBinary(data []byte) (*kernel.Mesh, error) {
	n := int(binary.LittleEndian.Uint32(data[80:84]))
	m := newMesh(n)
	f32 := func(off int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
	}
	for i := 0; i < n; i++ {
		base := binaryHeaderSize + i*binaryTriSize
		var tri [4]v3.Vec // normal, then vertices
		for v := range tri {
			off := base + 12*v
			tri[v] = v3.Vec{X: f32(off), Y: f32(off + 4), Z: f32(off + 8)}
		}
		addFacet(m, tri[0], tri[1], tri[2], tri[3])
	}
	return m, nil
}

func readASCII(data []byte) (*kernel.Mesh, error) {
	m := newMesh(0)
	sc := bufio.NewScanner(bytes.NewReader(data))
	var (
		normal v3.Vec
		verts  []v3.Vec
		line   int
	)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "facet":
			if len(fields) < 5 || strings.ToLower(fields[1]) != "normal" {
				return nil, fmt.Errorf("meshio: line %d: malformed facet", line)
			}
			v, err := parseVec(fields[2:5])
			if err != nil {
				return nil, fmt.Errorf("meshio: line %d: %w", line, err)
			}
			normal, verts = v, verts[:0]
		case "vertex":
			if len(fields) < 4 {
				return nil, fmt.Errorf("meshio: line %d: malformed vertex", line)
			}
			v, err := parseVec(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("meshio: line %d: %w", line, err)
			}
			verts = append(verts, v)
		case "endfacet":
			if len(verts) != 3 {
				return nil, fmt.Errorf("meshio: line %d: facet has %d vertices, want 3", line, len(verts))
			}
			addFacet(m, normal, verts[0], verts[1], verts[2])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("meshio: scan: %w", err)
	}
	if m.IsEmpty() {
		return nil, ErrNotSTL
	}
	return m, nil
}

func newMesh(tris int) *kernel.Mesh {
	return &kernel.Mesh{
		Vertices: make([]float32, 0, tris*9),
		Normals:  make([]float32, 0, tris*9),
		Indices:  make([]uint32, 0, tris*3),
	}
}

// addFacet appends a triangle. A zero normal is recomputed from the winding.
func addFacet(m *kernel.Mesh, n, a, b, c v3.Vec) {
	if n.Length() == 0 {
		if cross := b.Sub(a).Cross(c.Sub(a)); cross.Length() > 0 {
			n = cross.Normalize()
		}
	}
	for _, p := range []v3.Vec{a, b, c} {
		m.Indices = append(m.Indices, uint32(m.VertexCount()))
		m.Vertices = append(m.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
		m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
}

func parseVec(fields []string) (v3.Vec, error) {
	var out [3]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return v3.Vec{}, fmt.Errorf("bad coordinate %q", f)
		}
		out[i] = x
	}
	return v3.Vec{X: out[0], Y: out[1], Z: out[2]}, nil
}
