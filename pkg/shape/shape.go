// Package shape defines the primitive shape descriptors handed from geometry
// producers (the STEP approximator, the script engine) to the tessellator.
package shape

import (
	"encoding/json"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Kind enumerates the primitive shapes.
type Kind int

const (
	KindBox Kind = iota
	KindCylinder
	KindSphere
)

func (k Kind) String() string {
	switch k {
	case KindBox:
		return "box"
	case KindCylinder:
		return "cylinder"
	case KindSphere:
		return "sphere"
	default:
		return "unknown"
	}
}

// ParseKind returns the Kind for its string form.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "box":
		return KindBox, nil
	case "cylinder":
		return KindCylinder, nil
	case "sphere":
		return KindSphere, nil
	}
	return 0, fmt.Errorf("unknown shape kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < KindBox || k > KindSphere {
		return nil, fmt.Errorf("invalid shape kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Descriptor describes one primitive centered at Center.
//
// Dimensions depend on Kind:
//   - box: [width, height, depth]
//   - cylinder: [radius, height], axis along Z
//   - sphere: [radius]
type Descriptor struct {
	Kind       Kind       `json:"type"`
	Dimensions []float64  `json:"dimensions"`
	Center     [3]float64 `json:"center"`
}

// Box returns a box descriptor.
func Box(width, height, depth float64, center v3.Vec) Descriptor {
	return Descriptor{Kind: KindBox, Dimensions: []float64{width, height, depth}, Center: toArray(center)}
}

// Cylinder returns a cylinder descriptor.
func Cylinder(radius, height float64, center v3.Vec) Descriptor {
	return Descriptor{Kind: KindCylinder, Dimensions: []float64{radius, height}, Center: toArray(center)}
}

// Sphere returns a sphere descriptor.
func Sphere(radius float64, center v3.Vec) Descriptor {
	return Descriptor{Kind: KindSphere, Dimensions: []float64{radius}, Center: toArray(center)}
}

// CenterVec returns the center as a vector.
func (d Descriptor) CenterVec() v3.Vec {
	return v3.Vec{X: d.Center[0], Y: d.Center[1], Z: d.Center[2]}
}

// Translate returns a copy of d moved by offset.
func (d Descriptor) Translate(offset v3.Vec) Descriptor {
	out := d
	out.Dimensions = append([]float64(nil), d.Dimensions...)
	out.Center = toArray(d.CenterVec().Add(offset))
	return out
}

// Validate checks that the dimensions match the kind and are positive.
func (d Descriptor) Validate() error {
	want := map[Kind]int{KindBox: 3, KindCylinder: 2, KindSphere: 1}[d.Kind]
	if want == 0 {
		return fmt.Errorf("invalid shape kind %d", int(d.Kind))
	}
	if len(d.Dimensions) != want {
		return fmt.Errorf("%s: expected %d dimensions, got %d", d.Kind, want, len(d.Dimensions))
	}
	for i, v := range d.Dimensions {
		if !(v > 0) {
			return fmt.Errorf("%s: dimension %d must be positive, got %g", d.Kind, i, v)
		}
	}
	return nil
}

func (d Descriptor) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("%s%v@%v", d.Kind, d.Dimensions, d.Center)
	}
	return string(b)
}

func toArray(v v3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
