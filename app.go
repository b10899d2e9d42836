package main

import (
	"context"
	"errors"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/chazu/stepview/pkg/loader"
	"github.com/chazu/stepview/pkg/logger"
	"github.com/chazu/stepview/pkg/scene"
	"github.com/chazu/stepview/pkg/shape"
	"github.com/chazu/stepview/pkg/view"
	"github.com/chazu/stepview/pkg/viewer"
)

// colorPalette is a default palette used to assign distinct colors to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx    context.Context
	viewer *viewer.Service
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32         `json:"vertices"`
	Normals  []float32         `json:"normals"`
	Indices  []uint32          `json:"indices"`
	Edges    []float32         `json:"edges"`
	PartName string            `json:"partName"`
	Color    string            `json:"color"`
	Shape    *shape.Descriptor `json:"shape,omitempty"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of Evaluate.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// LoadResult is the result of loading a model file.
type LoadResult struct {
	Meshes []MeshData   `json:"meshes"`
	State  viewer.State `json:"state"`
	Error  string       `json:"error,omitempty"`
}

// ChatResult is one chat exchange for the chat panel.
type ChatResult struct {
	Text      string     `json:"text"`
	HTML      string     `json:"html"`
	ModelURL  string     `json:"modelUrl,omitempty"`
	Meshes    []MeshData `json:"meshes"`
	Error     string     `json:"error,omitempty"`
	LoadError string     `json:"loadError,omitempty"`
}

// NewApp creates an App over v.
func NewApp(v *viewer.Service) *App {
	a := &App{viewer: v}
	v.OnEvent(a.forward)
	return a
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// forward re-emits viewer events to the frontend. Before startup there is
// no runtime to emit on.
func (a *App) forward(ev viewer.Event) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, ev.Type, ev.State)
}

func (a *App) context() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// Meshes returns the displayed meshes.
func (a *App) Meshes() []MeshData {
	meshes := []MeshData{}
	a.viewer.Scene(func(s *scene.Scene) {
		for i, n := range s.ContentMeshes() {
			meshes = append(meshes, MeshData{
				Vertices: n.Mesh.Vertices,
				Normals:  n.Mesh.Normals,
				Indices:  n.Mesh.Indices,
				Edges:    n.Edges,
				PartName: n.Name,
				Color:    colorPalette[i%len(colorPalette)],
				Shape:    n.Shape,
			})
		}
	})
	return meshes
}

func (a *App) load(req loader.Request) LoadResult {
	result := LoadResult{Meshes: []MeshData{}}
	if _, err := a.viewer.Load(a.context(), req); err != nil {
		logger.Log.WithError(err).Warn("app: load failed")
		result.Error = err.Error()
		if errors.Is(err, loader.ErrEmptyResult) {
			result.Error = "No geometry found in file"
		}
	}
	result.Meshes = a.Meshes()
	result.State = a.viewer.State()
	return result
}

// LoadModel loads a STEP or STL model from a URL.
func (a *App) LoadModel(url string) LoadResult {
	return a.load(loader.Request{URL: url})
}

// LoadFile loads a STEP or STL model from a local file.
func (a *App) LoadFile(path string) LoadResult {
	return a.load(loader.Request{Path: path})
}

// LoadStepText loads STEP text pasted or dropped into the window.
func (a *App) LoadStepText(name, text string) LoadResult {
	return a.load(loader.Request{Text: text, Format: loader.FormatSTEP, Name: name})
}

// Chat sends a message to the chat backend and loads the model it returns.
func (a *App) Chat(message string) ChatResult {
	result := ChatResult{Meshes: []MeshData{}}
	res, err := a.viewer.SendChat(a.context(), message)
	if err != nil {
		logger.Log.WithError(err).Warn("app: chat failed")
		result.Error = err.Error()
		return result
	}
	result.Text = res.Reply.Text
	result.HTML = res.HTML
	result.LoadError = res.LoadError
	if res.Loaded != nil {
		result.ModelURL = res.Loaded.Request.URL
		result.Meshes = a.Meshes()
	}
	return result
}

// Evaluate takes Lisp source and returns mesh data + errors.
// This is the primary binding called by the frontend editor.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	res, err := a.viewer.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, tessellation).
		logger.Log.WithError(err).Error("app: evaluate failed")
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}
	result.Meshes = a.Meshes()
	return result
}

// FitToView frames the displayed models.
func (a *App) FitToView() viewer.State {
	a.viewer.FitToView()
	return a.viewer.State()
}

// SetView switches to the named view: default, top, front, side or iso.
func (a *App) SetView(name string) (viewer.State, error) {
	v, err := view.ParseView(name)
	if err != nil {
		return viewer.State{}, err
	}
	a.viewer.SetView(v)
	return a.viewer.State(), nil
}

// ZoomIn moves the camera toward the target.
func (a *App) ZoomIn() viewer.State {
	a.viewer.ZoomIn()
	return a.viewer.State()
}

// ZoomOut moves the camera away from the target.
func (a *App) ZoomOut() viewer.State {
	a.viewer.ZoomOut()
	return a.viewer.State()
}

// State returns the current view and model summary.
func (a *App) State() viewer.State {
	return a.viewer.State()
}
