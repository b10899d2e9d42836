// Package approx substitutes a primitive shape for a STEP model.
//
// The approximator reads the CARTESIAN_POINT records of a file, takes their
// axis-aligned bounding box and classifies its proportions as a cube, a
// cylinder, a flat slab or a generic box. It does not reconstruct the model:
// holes, curvature and multi-body assemblies are lost.
package approx

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/sirupsen/logrus"

	"github.com/chazu/stepview/pkg/logger"
	"github.com/chazu/stepview/pkg/shape"
	"github.com/chazu/stepview/pkg/step"
)

// Thresholds tunes the classification. The defaults are empirical, not
// derived from any physical property of the model.
type Thresholds struct {
	CubeTolerance  float64 `yaml:"cube_tolerance"`   // max |ratio-1| on every axis for a cube
	ThinRatio      float64 `yaml:"thin_ratio"`       // ratio below which an axis counts as thin
	FlatDepthFloor float64 `yaml:"flat_depth_floor"` // minimum depth of a flat box
	DefaultRadius  float64 `yaml:"default_radius"`   // sphere radius for a zero-size box
}

// DefaultThresholds returns the stock classification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CubeTolerance:  0.1,
		ThinRatio:      0.2,
		FlatDepthFloor: 0.1,
		DefaultRadius:  1,
	}
}

// Approximator turns STEP text into a shape descriptor.
type Approximator struct {
	Thresholds Thresholds
}

// New returns an Approximator using t.
func New(t Thresholds) *Approximator {
	return &Approximator{Thresholds: t}
}

// Approximate returns a shape descriptor for a STEP file,
// or nil when the file holds no usable CARTESIAN_POINT.
func Approximate(text string) *shape.Descriptor {
	return New(DefaultThresholds()).Approximate(text)
}

// Approximate returns a shape descriptor for a STEP file,
// or nil when the file holds no usable CARTESIAN_POINT.
func (a *Approximator) Approximate(text string) *shape.Descriptor {
	return a.Analyze(text).Shape
}

// Analysis is everything the approximator learned about a file.
type Analysis struct {
	Entities int               `json:"entities"`
	Points   int               `json:"points"`
	Types    map[string]int    `json:"types"`
	Bounds   *sdf.Box3         `json:"bounds,omitempty"`
	Shape    *shape.Descriptor `json:"shape,omitempty"`
}

// Analyze parses a STEP file and classifies its point cloud.
func (a *Approximator) Analyze(text string) Analysis {
	entities := step.Parse(text)
	points := entities.Points()
	logger.Log.WithFields(logrus.Fields{
		"entities": len(entities),
		"points":   len(points),
	}).Debug("approx: parsed STEP text")

	res := Analysis{
		Entities: len(entities),
		Points:   len(points),
		Types:    entities.CountByType(),
	}
	if box, ok := Bounds(points); ok {
		d := a.Classify(box)
		res.Bounds, res.Shape = &box, &d
	}
	return res
}

// FromPoints returns a shape descriptor for a point set, or nil when it is empty.
func (a *Approximator) FromPoints(points []v3.Vec) *shape.Descriptor {
	box, ok := Bounds(points)
	if !ok {
		return nil
	}
	d := a.Classify(box)
	return &d
}

// Bounds returns the axis-aligned bounding box of points.
// It reports false for an empty point set.
func Bounds(points []v3.Vec) (sdf.Box3, bool) {
	if len(points) == 0 {
		return sdf.Box3{}, false
	}
	box := sdf.Box3{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box = box.Include(p)
	}
	return box, true
}

// Classify maps a bounding box to a primitive centered on the box.
//
// Boxes with a zero extent on any axis become spheres. Otherwise, in order:
// all ratios near 1 give a cube, thin width and height give a cylinder along
// the depth axis, thin depth gives a flat box, and anything else a box of the
// same size.
func (a *Approximator) Classify(box sdf.Box3) shape.Descriptor {
	t := a.Thresholds
	size := box.Size()
	center := box.Center()
	width, height, depth := size.X, size.Y, size.Z

	if width <= 0 || height <= 0 || depth <= 0 {
		radius := math.Max(width, math.Max(height, depth)) / 2
		if radius <= 0 {
			radius = t.DefaultRadius
		}
		return shape.Sphere(radius, center)
	}

	maxDim := math.Max(width, math.Max(height, depth))
	rw, rh, rd := width/maxDim, height/maxDim, depth/maxDim

	switch {
	case math.Abs(rw-1) < t.CubeTolerance && math.Abs(rh-1) < t.CubeTolerance && math.Abs(rd-1) < t.CubeTolerance:
		return shape.Box(width, height, depth, center)
	case rw < t.ThinRatio && rh < t.ThinRatio:
		return shape.Cylinder(math.Max(width, height)/2, depth, center)
	case rd < t.ThinRatio:
		return shape.Box(width, height, math.Max(depth, t.FlatDepthFloor), center)
	default:
		return shape.Box(width, height, depth, center)
	}
}
