package kernel

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultEdgeThreshold is the crease angle, in degrees, used for edge overlays.
const DefaultEdgeThreshold = 15.0

// weldEpsilon is the grid size used to merge coincident vertices.
const weldEpsilon = 1e-4

type edgeKey [2]int

type edgeInfo struct {
	normal v3.Vec
	faces  int
	crease bool
}

// FeatureEdges returns line segments for the visible edges of a mesh, as a
// flat list of [x0,y0,z0, x1,y1,z1] pairs. An edge is visible when it borders
// a single triangle or when the normals of its triangles differ by more than
// thresholdDeg. Coincident vertices are welded first, so triangle soups from
// marching cubes produce the same overlay as indexed meshes.
func FeatureEdges(m *Mesh, thresholdDeg float64) []float32 {
	if m == nil || m.TriangleCount() == 0 {
		return nil
	}
	cosLimit := math.Cos(thresholdDeg * math.Pi / 180)

	welded := make(map[[3]int64]int)
	positions := make([]v3.Vec, 0, m.VertexCount())
	weld := func(i int) int {
		p := m.Vertex(i)
		key := [3]int64{
			int64(math.Round(p.X / weldEpsilon)),
			int64(math.Round(p.Y / weldEpsilon)),
			int64(math.Round(p.Z / weldEpsilon)),
		}
		if id, ok := welded[key]; ok {
			return id
		}
		id := len(positions)
		welded[key] = id
		positions = append(positions, p)
		return id
	}

	edges := make(map[edgeKey]*edgeInfo)
	var order []edgeKey
	for t := 0; t < m.TriangleCount(); t++ {
		var ids [3]int
		for j := 0; j < 3; j++ {
			ids[j] = weld(int(m.Indices[t*3+j]))
		}
		if ids[0] == ids[1] || ids[1] == ids[2] || ids[0] == ids[2] {
			continue
		}
		a, b, c := positions[ids[0]], positions[ids[1]], positions[ids[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		if n.Length() == 0 {
			continue
		}
		n = n.Normalize()
		for j := 0; j < 3; j++ {
			k := edgeKey{ids[j], ids[(j+1)%3]}
			if k[0] > k[1] {
				k[0], k[1] = k[1], k[0]
			}
			e, ok := edges[k]
			if !ok {
				edges[k] = &edgeInfo{normal: n, faces: 1}
				order = append(order, k)
				continue
			}
			e.faces++
			if e.normal.Dot(n) < cosLimit {
				e.crease = true
			}
		}
	}

	var out []float32
	for _, k := range order {
		e := edges[k]
		if e.faces != 1 && !e.crease {
			continue
		}
		p, q := positions[k[0]], positions[k[1]]
		out = append(out,
			float32(p.X), float32(p.Y), float32(p.Z),
			float32(q.X), float32(q.Y), float32(q.Z))
	}
	return out
}
