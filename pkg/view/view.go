// Package view moves the viewer camera: fitting it to the loaded geometry,
// snapping to named orientations, and stepping the zoom.
//
// The controller only touches the camera and orbit controls it was built
// with. It keeps no other state apart from the label of the last requested
// view, which the UI uses for highlighting.
package view

import (
	"fmt"
	"math"
	"strings"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// View names a camera orientation.
type View int

const (
	ViewDefault View = iota
	ViewTop
	ViewFront
	ViewSide
	ViewIso
)

var viewNames = [...]string{"default", "top", "front", "side", "iso"}

func (v View) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return fmt.Sprintf("View(%d)", int(v))
	}
	return viewNames[v]
}

// ParseView returns the View named s.
func ParseView(s string) (View, error) {
	for i, name := range viewNames {
		if strings.EqualFold(s, name) {
			return View(i), nil
		}
	}
	return 0, fmt.Errorf("unknown view %q (want top, front, side, iso or default)", s)
}

func (v View) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *View) UnmarshalText(b []byte) error {
	p, err := ParseView(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// direction returns the unit vector from target to camera for v.
// ViewDefault has none.
func (v View) direction() (v3.Vec, bool) {
	switch v {
	case ViewTop:
		return v3.Vec{Y: 1}, true
	case ViewFront:
		return v3.Vec{Z: 1}, true
	case ViewSide:
		return v3.Vec{X: 1}, true
	case ViewIso:
		return v3.Vec{X: 1, Y: 1, Z: 1}.Normalize(), true
	default:
		return v3.Vec{}, false
	}
}

// Camera is a perspective camera.
type Camera struct {
	Position v3.Vec  `json:"position"`
	LookAt   v3.Vec  `json:"look_at"`
	FOV      float64 `json:"fov"` // vertical field of view, degrees
	Near     float64 `json:"near"`
	Far      float64 `json:"far"`
}

// DefaultCamera returns the camera a fresh viewer starts with.
func DefaultCamera() Camera {
	return Camera{
		Position: v3.Vec{X: 50, Y: 100, Z: 150},
		LookAt:   v3.Vec{Y: 45},
		FOV:      45,
		Near:     1,
		Far:      5000,
	}
}

// Controls is the orbit controller state.
type Controls struct {
	Target v3.Vec `json:"target"`
}

// DefaultControls returns the orbit controls a fresh viewer starts with.
func DefaultControls() Controls {
	return Controls{Target: v3.Vec{Y: 45}}
}

// Settings tunes fitting and zoom.
type Settings struct {
	Padding       float64 `yaml:"padding"`
	ZoomInFactor  float64 `yaml:"zoom_in_factor"`
	ZoomOutFactor float64 `yaml:"zoom_out_factor"`
	MinDistance   float64 `yaml:"min_distance"`
}

// DefaultSettings returns the stock fit padding and zoom steps.
func DefaultSettings() Settings {
	return Settings{
		Padding:       1.5,
		ZoomInFactor:  0.8,
		ZoomOutFactor: 1.25,
		MinDistance:   0.1,
	}
}

// Bounded is anything with a world-space bounding box.
type Bounded interface {
	Bounds() (sdf.Box3, bool)
}

// ViewState is a snapshot of the controller for display.
type ViewState struct {
	Camera   Camera   `json:"camera"`
	Controls Controls `json:"controls"`
	View     View     `json:"view"`
	Distance float64  `json:"distance"`
}

// Controller operates on one camera and its orbit controls.
type Controller struct {
	cam      *Camera
	ctrls    *Controls
	settings Settings
	active   View
}

// NewController returns a controller that mutates cam and ctrls in place.
func NewController(cam *Camera, ctrls *Controls, settings Settings) *Controller {
	return &Controller{cam: cam, ctrls: ctrls, settings: settings}
}

// FitToView frames the union bounding box of items. Items without bounds
// are ignored; when none remain the camera is left untouched.
func (c *Controller) FitToView(items []Bounded) bool {
	var (
		box   sdf.Box3
		found bool
	)
	for _, it := range items {
		if it == nil {
			continue
		}
		bb, ok := it.Bounds()
		if !ok {
			continue
		}
		if !found {
			box, found = bb, true
			continue
		}
		box = box.Extend(bb)
	}
	if !found {
		return false
	}

	size := box.Size()
	center := box.Center()
	maxDim := math.Max(size.X, math.Max(size.Y, size.Z))
	fov := c.cam.FOV * math.Pi / 180
	distance := math.Abs(maxDim/2/math.Tan(fov/2)) * c.settings.Padding

	c.cam.Position = v3.Vec{X: center.X, Y: center.Y, Z: center.Z + distance}
	c.cam.LookAt = center
	c.ctrls.Target = center
	return true
}

// SetView moves the camera to look at the orbit target from v, keeping the
// current camera-to-target distance.
func (c *Controller) SetView(v View) {
	c.active = v
	target := c.ctrls.Target
	offset := c.cam.Position.Sub(target)
	d := offset.Length()

	dir, ok := v.direction()
	if !ok {
		if d == 0 {
			return
		}
		dir = offset.MulScalar(1 / d)
	}
	c.cam.Position = target.Add(dir.MulScalar(d))
	c.cam.LookAt = target
}

// ZoomIn moves the camera toward the target.
func (c *Controller) ZoomIn() {
	c.zoom(func(d float64) float64 {
		return math.Max(c.settings.MinDistance, d*c.settings.ZoomInFactor)
	})
}

// ZoomOut moves the camera away from the target.
func (c *Controller) ZoomOut() {
	c.zoom(func(d float64) float64 {
		return d * c.settings.ZoomOutFactor
	})
}

func (c *Controller) zoom(next func(float64) float64) {
	target := c.ctrls.Target
	offset := c.cam.Position.Sub(target)
	d := offset.Length()
	if d == 0 {
		return
	}
	dir := offset.MulScalar(1 / d)
	c.cam.Position = target.Add(dir.MulScalar(next(d)))
}

// Distance returns the camera-to-target distance.
func (c *Controller) Distance() float64 {
	return c.cam.Position.Sub(c.ctrls.Target).Length()
}

// ActiveView returns the last requested view.
func (c *Controller) ActiveView() View {
	return c.active
}

// State returns a snapshot of the camera, controls and active view.
func (c *Controller) State() ViewState {
	return ViewState{
		Camera:   *c.cam,
		Controls: *c.ctrls,
		View:     c.active,
		Distance: c.Distance(),
	}
}
