// Package tessellate turns shape descriptors into triangle meshes using a
// geometry kernel. One mesh is produced per part, together with the feature
// edge overlay drawn on top of it.
package tessellate

import (
	"fmt"
	"strings"

	"github.com/chazu/stepview/pkg/kernel"
	"github.com/chazu/stepview/pkg/shape"
)

// Quality selects the marching cubes resolution.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
	QualityUltra
)

var qualityCells = map[Quality]int{
	QualityLow:    32,
	QualityMedium: 64,
	QualityHigh:   128,
	QualityUltra:  200,
}

var qualityNames = map[Quality]string{
	QualityLow:    "low",
	QualityMedium: "medium",
	QualityHigh:   "high",
	QualityUltra:  "ultra",
}

func (q Quality) String() string {
	if s, ok := qualityNames[q]; ok {
		return s
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// Cells returns the marching cubes cell count along the longest axis.
func (q Quality) Cells() int {
	if c, ok := qualityCells[q]; ok {
		return c
	}
	return qualityCells[QualityMedium]
}

// ParseQuality returns the Quality named s.
func ParseQuality(s string) (Quality, error) {
	for q, name := range qualityNames {
		if strings.EqualFold(s, name) {
			return q, nil
		}
	}
	return 0, fmt.Errorf("unknown quality %q (want low, medium, high or ultra)", s)
}

func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *Quality) UnmarshalText(b []byte) error {
	v, err := ParseQuality(string(b))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// Part is a named shape to tessellate.
type Part struct {
	Name  string           `json:"name"`
	Shape shape.Descriptor `json:"shape"`
}

// Model is a tessellated part.
type Model struct {
	Name  string           `json:"name"`
	Shape shape.Descriptor `json:"shape"`
	Mesh  *kernel.Mesh     `json:"mesh"`
	Edges []float32        `json:"edges"` // [x0,y0,z0, x1,y1,z1, ...] segments
}

// Options controls tessellation.
type Options struct {
	Quality       Quality
	EdgeThreshold float64 // degrees; zero selects kernel.DefaultEdgeThreshold
}

// Tessellate builds the solid for d with k, places it at the descriptor's
// center and meshes it.
func Tessellate(d shape.Descriptor, k kernel.Kernel, opts Options) (*Model, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	solid, err := build(d, k)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %s: %w", d.Kind, err)
	}
	if c := d.Center; c != [3]float64{} {
		solid = k.Translate(solid, c[0], c[1], c[2])
	}

	mesh, err := k.ToMesh(solid, opts.Quality.Cells())
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", d.Kind, err)
	}

	threshold := opts.EdgeThreshold
	if threshold <= 0 {
		threshold = kernel.DefaultEdgeThreshold
	}
	return &Model{
		Shape: d,
		Mesh:  mesh,
		Edges: kernel.FeatureEdges(mesh, threshold),
	}, nil
}

// TessellateAll tessellates every part in order. The first failure aborts.
func TessellateAll(parts []Part, k kernel.Kernel, opts Options) ([]*Model, error) {
	models := make([]*Model, 0, len(parts))
	for i, p := range parts {
		m, err := Tessellate(p.Shape, k, opts)
		if err != nil {
			return nil, fmt.Errorf("part %d (%s): %w", i, p.Name, err)
		}
		m.Name = p.Name
		m.Mesh.PartName = p.Name
		models = append(models, m)
	}
	return models, nil
}

func build(d shape.Descriptor, k kernel.Kernel) (kernel.Solid, error) {
	switch d.Kind {
	case shape.KindBox:
		return k.Box(d.Dimensions[0], d.Dimensions[1], d.Dimensions[2])
	case shape.KindCylinder:
		return k.Cylinder(d.Dimensions[1], d.Dimensions[0])
	case shape.KindSphere:
		return k.Sphere(d.Dimensions[0])
	default:
		return nil, fmt.Errorf("unsupported shape kind %v", d.Kind)
	}
}
