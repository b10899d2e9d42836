// Package kernel defines the abstract geometry kernel used to turn shape
// descriptors into renderable meshes. Primitives are centered on the origin;
// callers place them with Translate.
package kernel

import "github.com/deadsy/sdfx/sdf"

// Solid is an opaque handle to a geometry kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() sdf.Box3
}

// Kernel builds solids and tessellates them.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error) // axis along Z
	Sphere(radius float64) (Solid, error)

	Union(a, b Solid) Solid
	Translate(s Solid, x, y, z float64) Solid

	// ToMesh tessellates s with the given number of marching cubes cells
	// along its longest axis. Zero selects the kernel default.
	ToMesh(s Solid, cells int) (*Mesh, error)
}
