package tessellate_test

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/stepview/pkg/kernel"
	"github.com/chazu/stepview/pkg/kernel/sdfx"
	"github.com/chazu/stepview/pkg/shape"
	"github.com/chazu/stepview/pkg/tessellate"
)

// newKernel returns a fresh sdfx kernel for testing.
func newKernel() kernel.Kernel {
	return sdfx.New()
}

var lowQuality = tessellate.Options{Quality: tessellate.QualityLow}

func meshCenter(t *testing.T, m *kernel.Mesh) v3.Vec {
	t.Helper()
	bb, ok := m.Bounds()
	if !ok {
		t.Fatal("mesh has no bounds")
	}
	return bb.Center()
}

func near(a, b v3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

func TestTessellateBoxAtCenter(t *testing.T) {
	d := shape.Box(10, 10, 10, v3.Vec{X: 5, Y: 5, Z: 5})
	m, err := tessellate.Tessellate(d, newKernel(), lowQuality)
	if err != nil {
		t.Fatalf("Tessellate: %v", err)
	}
	if m.Mesh.IsEmpty() {
		t.Fatal("expected non-empty mesh")
	}
	if len(m.Edges) == 0 || len(m.Edges)%6 != 0 {
		t.Errorf("edge buffer length %d, want a positive multiple of 6", len(m.Edges))
	}
	if c := meshCenter(t, m.Mesh); !near(c, v3.Vec{X: 5, Y: 5, Z: 5}, 0.5) {
		t.Errorf("mesh center = %v, want ~(5,5,5)", c)
	}
}

func TestTessellateCylinderAlongZ(t *testing.T) {
	d := shape.Cylinder(4, 50, v3.Vec{X: 4, Y: 4, Z: 25})
	m, err := tessellate.Tessellate(d, newKernel(), lowQuality)
	if err != nil {
		t.Fatalf("Tessellate: %v", err)
	}
	bb, _ := m.Mesh.Bounds()
	size := bb.Size()
	if size.Z < 40 {
		t.Errorf("cylinder Z extent = %f, want ~50", size.Z)
	}
	if size.X > 10 || size.Y > 10 {
		t.Errorf("cylinder XY extent = (%f, %f), want ~8", size.X, size.Y)
	}
}

func TestTessellateSphere(t *testing.T) {
	d := shape.Sphere(3, v3.Vec{X: 1, Y: 2, Z: 0})
	m, err := tessellate.Tessellate(d, newKernel(), lowQuality)
	if err != nil {
		t.Fatalf("Tessellate: %v", err)
	}
	if c := meshCenter(t, m.Mesh); !near(c, v3.Vec{X: 1, Y: 2}, 0.5) {
		t.Errorf("mesh center = %v, want ~(1,2,0)", c)
	}
}

func TestTessellateInvalidDescriptor(t *testing.T) {
	bad := shape.Descriptor{Kind: shape.KindBox, Dimensions: []float64{1, 2}}
	if _, err := tessellate.Tessellate(bad, newKernel(), lowQuality); err == nil {
		t.Fatal("expected error for box with two dimensions")
	}
}

func TestTessellateAll(t *testing.T) {
	parts := []tessellate.Part{
		{Name: "base", Shape: shape.Box(20, 20, 2, v3.Vec{})},
		{Name: "post", Shape: shape.Cylinder(2, 10, v3.Vec{Z: 6})},
	}
	models, err := tessellate.TessellateAll(parts, newKernel(), lowQuality)
	if err != nil {
		t.Fatalf("TessellateAll: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	for i, m := range models {
		if m.Name != parts[i].Name || m.Mesh.PartName != parts[i].Name {
			t.Errorf("model %d named %q/%q, want %q", i, m.Name, m.Mesh.PartName, parts[i].Name)
		}
	}
}

func TestTessellateAllStopsOnError(t *testing.T) {
	parts := []tessellate.Part{
		{Name: "ok", Shape: shape.Sphere(1, v3.Vec{})},
		{Name: "bad", Shape: shape.Descriptor{Kind: shape.KindSphere, Dimensions: []float64{-1}}},
	}
	if _, err := tessellate.TessellateAll(parts, newKernel(), lowQuality); err == nil {
		t.Fatal("expected error")
	}
}

func TestQuality(t *testing.T) {
	tests := []struct {
		name string
		want tessellate.Quality
	}{
		{"low", tessellate.QualityLow},
		{"Medium", tessellate.QualityMedium},
		{"HIGH", tessellate.QualityHigh},
		{"ultra", tessellate.QualityUltra},
	}
	prev := 0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tessellate.ParseQuality(tt.name)
			if err != nil {
				t.Fatalf("ParseQuality(%q): %v", tt.name, err)
			}
			if q != tt.want {
				t.Errorf("ParseQuality(%q) = %v, want %v", tt.name, q, tt.want)
			}
			if q.Cells() <= prev {
				t.Errorf("%v cells = %d, want more than %d", q, q.Cells(), prev)
			}
			prev = q.Cells()
		})
	}
	if _, err := tessellate.ParseQuality("extreme"); err == nil {
		t.Error("ParseQuality(extreme): expected error")
	}
}
