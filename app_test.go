package main

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/chazu/stepview/pkg/kernel/sdfx"
	"github.com/chazu/stepview/pkg/shape"
	"github.com/chazu/stepview/pkg/tessellate"
	"github.com/chazu/stepview/pkg/view"
	"github.com/chazu/stepview/pkg/viewer"
)

func newTestApp() *App {
	return NewApp(viewer.New(viewer.Options{
		Kernel:     sdfx.NewWithCells(24),
		Tessellate: tessellate.Options{Quality: tessellate.QualityLow},
	}))
}

// TestE2ETableExample exercises the full pipeline: Lisp source → engine →
// shapes → tessellate → scene → meshes. This is the same path that the
// Wails Evaluate binding takes, but without the Wails runtime.
func TestE2ETableExample(t *testing.T) {
	app := newTestApp()

	source, err := os.ReadFile("examples/table.lisp")
	if err != nil {
		t.Fatalf("failed to read table.lisp: %v", err)
	}

	result := app.Evaluate(string(source))

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}

	if len(result.Meshes) != 5 {
		t.Fatalf("expected 5 meshes, got %d", len(result.Meshes))
	}

	expectedParts := map[string]bool{
		"top":             false,
		"leg-front-left":  false,
		"leg-front-right": false,
		"leg-back-left":   false,
		"leg-back-right":  false,
	}

	for _, m := range result.Meshes {
		if _, ok := expectedParts[m.PartName]; !ok {
			t.Errorf("unexpected part name: %q", m.PartName)
			continue
		}
		expectedParts[m.PartName] = true

		if len(m.Vertices) == 0 {
			t.Errorf("part %q: no vertices", m.PartName)
		}
		if len(m.Normals) == 0 {
			t.Errorf("part %q: no normals", m.PartName)
		}
		if len(m.Indices) == 0 {
			t.Errorf("part %q: no indices", m.PartName)
		}
		if len(m.Edges) == 0 {
			t.Errorf("part %q: no edge overlay", m.PartName)
		}
		if m.Color == "" {
			t.Errorf("part %q: no color assigned", m.PartName)
		}
		if m.Shape == nil || m.Shape.Kind != shape.KindBox {
			t.Errorf("part %q: expected a box shape, got %v", m.PartName, m.Shape)
		}
	}

	for name, found := range expectedParts {
		if !found {
			t.Errorf("missing mesh for part %q", name)
		}
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	for _, source := range []string{"", "   \n\t  ", "; just a comment\n"} {
		app := newTestApp()
		result := app.Evaluate(source)

		if len(result.Errors) > 0 {
			t.Errorf("unexpected errors for source %q: %v", source, result.Errors)
		}
		if len(result.Meshes) != 0 {
			t.Errorf("expected 0 meshes for source %q, got %d", source, len(result.Meshes))
		}
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := newTestApp()
	result := app.Evaluate("(show \"test\"")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestE2ESyntaxErrorKeepsScene ensures a broken edit does not clear what
// the previous evaluation displayed.
func TestE2ESyntaxErrorKeepsScene(t *testing.T) {
	app := newTestApp()
	if r := app.Evaluate(`(show "a" (box 10 10 10))`); len(r.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	app.Evaluate(`(show "a" (box 10 10`)
	if n := len(app.Meshes()); n != 1 {
		t.Errorf("expected the previous mesh to remain, got %d meshes", n)
	}
}

func TestE2ENegativeDimension(t *testing.T) {
	app := newTestApp()
	result := app.Evaluate(`(show "bad" (box 10 -5 10))`)
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for a negative dimension")
	}
}

func TestE2ERapidEvaluation(t *testing.T) {
	// Rapid sequential calls exercise the generation counter. We verify
	// no panics occur and the last result wins.
	app := newTestApp()

	sources := []string{
		`(show "a" (box 10 5 1))`,
		`(show "b" (box 20 10 2))`,
		`(+ 1 2)`,
		``,
		`(show "c" (sphere 3))`,
		`(show "d" (cylinder 2 8))`,
	}

	for i, source := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked: %v", i, r)
				}
			}()
			app.Evaluate(source)
		}()
	}

	meshes := app.Meshes()
	if len(meshes) != 1 || meshes[0].PartName != "d" {
		t.Errorf("expected only part d to remain, got %+v", meshes)
	}
}

func TestE2EColorPaletteWrapping(t *testing.T) {
	app := newTestApp()

	var b strings.Builder
	for i := 0; i < len(colorPalette)+1; i++ {
		fmt.Fprintf(&b, "(show (translate (box 5 5 5) (vec3 %d 0 0)))\n", i*10)
	}
	result := app.Evaluate(b.String())
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Meshes) != len(colorPalette)+1 {
		t.Fatalf("expected %d meshes, got %d", len(colorPalette)+1, len(result.Meshes))
	}
	if result.Meshes[0].Color != result.Meshes[len(colorPalette)].Color {
		t.Errorf("expected palette to wrap: %q vs %q",
			result.Meshes[0].Color, result.Meshes[len(colorPalette)].Color)
	}
	if result.Meshes[0].Color == result.Meshes[1].Color {
		t.Error("adjacent parts should get different colors")
	}
}

func TestE2ELoadStepFile(t *testing.T) {
	app := newTestApp()
	result := app.LoadFile("examples/bracket.step")
	if result.Error != "" {
		t.Fatalf("load failed: %s", result.Error)
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	m := result.Meshes[0]
	if m.PartName != "bracket.step" {
		t.Errorf("part name = %q", m.PartName)
	}
	want := []float64{80, 40, 6}
	if m.Shape == nil || m.Shape.Kind != shape.KindBox || len(m.Shape.Dimensions) != 3 {
		t.Fatalf("expected a box, got %v", m.Shape)
	}
	for i, d := range want {
		if m.Shape.Dimensions[i] != d {
			t.Errorf("dimension %d = %g, want %g", i, m.Shape.Dimensions[i], d)
		}
	}

	cam := result.State.View.Camera
	if cam.LookAt != result.State.View.Controls.Target {
		t.Errorf("camera looks at %v, controls target %v", cam.LookAt, result.State.View.Controls.Target)
	}
	if cam.Position.Z <= cam.LookAt.Z {
		t.Errorf("camera should sit in front of the model on +Z, got %v", cam.Position)
	}
}

func TestE2ELoadStepTextErrors(t *testing.T) {
	app := newTestApp()

	result := app.LoadStepText("junk", "this is not STEP")
	if result.Error == "" {
		t.Error("expected an error for non-STEP text")
	}

	result = app.LoadStepText("empty", "ISO-10303-21;\nDATA;\n#1 = DIRECTION('',(0.,0.,1.));\nENDSEC;\n")
	if result.Error != "No geometry found in file" {
		t.Errorf("error = %q", result.Error)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected no meshes, got %d", len(result.Meshes))
	}
}

func TestE2EViewBindings(t *testing.T) {
	app := newTestApp()
	d0 := app.State().View.Distance

	st, err := app.SetView("iso")
	if err != nil {
		t.Fatal(err)
	}
	if st.View.View != view.ViewIso {
		t.Errorf("view = %v, want iso", st.View.View)
	}
	if _, err := app.SetView("upside-down"); err == nil {
		t.Error("expected an error for an unknown view")
	}

	if d := app.ZoomIn().View.Distance; d >= d0 {
		t.Errorf("zoom in: distance %g, was %g", d, d0)
	}
	if d := app.ZoomOut().View.Distance; d-d0 > 1e-9 || d0-d > 1e-9 {
		t.Errorf("zoom out should undo zoom in: %g vs %g", d, d0)
	}

	before := app.State().View
	if after := app.FitToView().View; after != before {
		t.Error("fit with no models should not move the camera")
	}
}

func TestChatWithoutBackend(t *testing.T) {
	app := newTestApp()
	result := app.Chat("hello")
	if result.Error == "" {
		t.Error("expected an error without a chat backend")
	}
}
