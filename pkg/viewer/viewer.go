// Package viewer is the application service behind every front end: the
// Wails desktop app, the HTTP server and the CLI. It owns the scene and the
// camera, and refits the view whenever new geometry arrives.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/chazu/stepview/pkg/approx"
	"github.com/chazu/stepview/pkg/chat"
	"github.com/chazu/stepview/pkg/config"
	"github.com/chazu/stepview/pkg/engine"
	"github.com/chazu/stepview/pkg/kernel"
	"github.com/chazu/stepview/pkg/kernel/sdfx"
	"github.com/chazu/stepview/pkg/loader"
	"github.com/chazu/stepview/pkg/logger"
	"github.com/chazu/stepview/pkg/scene"
	"github.com/chazu/stepview/pkg/shape"
	"github.com/chazu/stepview/pkg/tessellate"
	"github.com/chazu/stepview/pkg/view"
)

// ErrNoChat is returned by SendChat when no backend client is configured.
var ErrNoChat = errors.New("viewer: chat backend not configured")

// Event types delivered to listeners.
const (
	EventModelLoaded = "model:loaded"
	EventViewChanged = "view:changed"
)

// Event is one notification to listeners. State is a snapshot taken when
// the event was raised.
type Event struct {
	Type  string `json:"type"`
	State State  `json:"state"`
}

// ModelInfo summarises one displayed model.
type ModelInfo struct {
	Name      string            `json:"name"`
	Shape     *shape.Descriptor `json:"shape,omitempty"`
	Vertices  int               `json:"vertices"`
	Triangles int               `json:"triangles"`
}

// State is what front ends render from.
type State struct {
	View          view.ViewState `json:"view"`
	Models        []ModelInfo    `json:"models"`
	SceneVersion  uint64         `json:"scene_version"`
	Generation    uint64         `json:"generation"`
	LastLoadError string         `json:"last_load_error,omitempty"`
}

// ChatResult is the outcome of one chat exchange. The reply is kept even if
// loading its model failed; LoadError then says why.
type ChatResult struct {
	Reply     *chat.Reply    `json:"reply"`
	HTML      string         `json:"html"`
	Loaded    *loader.Result `json:"-"`
	LoadError string         `json:"load_error,omitempty"`
}

// EvalResult is the outcome of evaluating a script.
type EvalResult struct {
	Parts  []tessellate.Part  `json:"parts"`
	Errors []engine.EvalError `json:"errors,omitempty"`
}

// Options wires a Service. Nil fields get defaults; Chat may stay nil.
type Options struct {
	Chat         *chat.Client
	Approximator *approx.Approximator
	Kernel       kernel.Kernel
	Tessellate   tessellate.Options
	View         view.Settings
}

// Service is safe for concurrent use.
type Service struct {
	chat   *chat.Client
	approx *approx.Approximator
	kernel kernel.Kernel
	opts   tessellate.Options
	loader *loader.Loader
	engine *engine.Engine

	mu        sync.Mutex
	scene     *scene.Scene
	cam       view.Camera
	ctrls     view.Controls
	ctrl      *view.Controller
	lastError string

	lmu       sync.Mutex
	listeners []func(Event)
}

// New returns a Service showing an empty scene from the default camera.
func New(opts Options) *Service {
	if opts.Approximator == nil {
		opts.Approximator = approx.New(approx.DefaultThresholds())
	}
	if opts.Kernel == nil {
		opts.Kernel = sdfx.New()
	}
	if opts.View == (view.Settings{}) {
		opts.View = view.DefaultSettings()
	}
	s := &Service{
		chat:   opts.Chat,
		approx: opts.Approximator,
		kernel: opts.Kernel,
		opts:   opts.Tessellate,
		engine: engine.NewEngine(),
		scene:  scene.NewViewerScene(),
		cam:    view.DefaultCamera(),
		ctrls:  view.DefaultControls(),
	}
	s.ctrl = view.NewController(&s.cam, &s.ctrls, opts.View)

	var fetcher loader.Fetcher
	if opts.Chat != nil {
		fetcher = opts.Chat
	}
	s.loader = loader.New(fetcher, s.approx, s.kernel, s.opts)
	s.loader.OnLoaded(s.onLoaded)
	return s
}

// FromConfig builds a Service with a chat client for cfg.API.
func FromConfig(cfg *config.Config) (*Service, error) {
	client, err := chat.New(chat.Options{
		BaseURL:      cfg.API.BaseURL,
		ChatPath:     cfg.API.ChatPath,
		HealthPath:   cfg.API.HealthPath,
		ModelsPath:   cfg.API.ModelsPath,
		Timeout:      cfg.API.Timeout,
		RetryMax:     cfg.API.RetryMax,
		MaxBodyBytes: cfg.API.MaxBodyBytes,
	})
	if err != nil {
		return nil, err
	}
	return New(Options{
		Chat:         client,
		Approximator: approx.New(cfg.Approx),
		Tessellate:   cfg.TessellateOptions(),
		View:         cfg.View,
	}), nil
}

// OnEvent registers fn for every event. fn must not call back into the
// Service synchronously with a lock held elsewhere.
func (s *Service) OnEvent(fn func(Event)) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) emit(typ string) {
	ev := Event{Type: typ, State: s.State()}
	s.lmu.Lock()
	listeners := append([]func(Event){}, s.listeners...)
	s.lmu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// Chat returns the configured backend client, or nil.
func (s *Service) Chat() *chat.Client {
	return s.chat
}

// Approximate runs the approximator over STEP text.
func (s *Service) Approximate(text string) *shape.Descriptor {
	return s.approx.Approximate(text)
}

// Load loads a model and, when it is still the newest load, shows it.
func (s *Service) Load(ctx context.Context, req loader.Request) (*loader.Result, error) {
	res, err := s.loader.Load(ctx, req)
	if err != nil && !errors.Is(err, loader.ErrSuperseded) {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
	}
	return res, err
}

// LoadStepText loads STEP text supplied directly.
func (s *Service) LoadStepText(ctx context.Context, name, text string) (*loader.Result, error) {
	return s.Load(ctx, loader.Request{Text: text, Format: loader.FormatSTEP, Name: name})
}

// onLoaded is the loader's loaded event. Fitting here replaces waiting a
// fixed delay for the renderer.
func (s *Service) onLoaded(res *loader.Result) {
	s.show(res.Models)
	s.emit(EventModelLoaded)
}

func (s *Service) show(models []*tessellate.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
	s.scene.ReplaceModel(models)
	s.ctrl.FitToView(s.bounded())
}

func (s *Service) bounded() []view.Bounded {
	nodes := s.scene.ContentMeshes()
	out := make([]view.Bounded, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}

// SendChat sends message to the backend, renders the reply and loads the
// model it references, if any.
func (s *Service) SendChat(ctx context.Context, message string) (*ChatResult, error) {
	if s.chat == nil {
		return nil, ErrNoChat
	}
	reply, err := s.chat.Send(ctx, message)
	if err != nil {
		return nil, err
	}
	out := &ChatResult{Reply: reply, HTML: chat.RenderMarkdown(reply.Text)}

	ref, ok := reply.Model()
	if !ok {
		return out, nil
	}
	log := logger.Log.WithFields(logrus.Fields{"url": ref.URL, "format": ref.Format})
	u, err := s.chat.Resolve(ref.URL)
	if err != nil {
		log.WithError(err).Warn("viewer: bad model url")
		out.LoadError = err.Error()
		return out, nil
	}
	format, err := loader.ParseFormat(ref.Format)
	if err != nil {
		format = loader.FormatAuto
	}
	res, err := s.Load(ctx, loader.Request{URL: u, Format: format})
	if err != nil {
		log.WithError(err).Warn("viewer: model load failed")
		out.LoadError = err.Error()
		return out, nil
	}
	out.Loaded = res
	return out, nil
}

// Evaluate runs a script and shows the parts it displays. Script errors are
// returned in the result, not as err.
func (s *Service) Evaluate(source string) (*EvalResult, error) {
	prog, evalErrs, err := s.engine.Evaluate(source)
	if err != nil {
		return nil, err
	}
	if len(evalErrs) > 0 {
		return &EvalResult{Errors: evalErrs}, nil
	}
	models, err := tessellate.TessellateAll(prog.Parts, s.kernel, s.opts)
	if err != nil {
		return nil, fmt.Errorf("viewer: %w", err)
	}
	// A model load still in flight would replace the script's parts.
	s.loader.Supersede()
	s.show(models)
	s.emit(EventModelLoaded)
	return &EvalResult{Parts: prog.Parts}, nil
}

// FitToView frames the displayed models. It reports false when there is
// nothing to frame.
func (s *Service) FitToView() bool {
	s.mu.Lock()
	ok := s.ctrl.FitToView(s.bounded())
	s.mu.Unlock()
	if ok {
		s.emit(EventViewChanged)
	}
	return ok
}

// SetView switches to a named view.
func (s *Service) SetView(v view.View) {
	s.mu.Lock()
	s.ctrl.SetView(v)
	s.mu.Unlock()
	s.emit(EventViewChanged)
}

// ZoomIn moves the camera toward the target.
func (s *Service) ZoomIn() {
	s.mu.Lock()
	s.ctrl.ZoomIn()
	s.mu.Unlock()
	s.emit(EventViewChanged)
}

// ZoomOut moves the camera away from the target.
func (s *Service) ZoomOut() {
	s.mu.Lock()
	s.ctrl.ZoomOut()
	s.mu.Unlock()
	s.emit(EventViewChanged)
}

// State returns a snapshot of the view and the displayed models.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		View:          s.ctrl.State(),
		SceneVersion:  s.scene.Version,
		Generation:    s.loader.Generation(),
		LastLoadError: s.lastError,
	}
	for _, n := range s.scene.ContentMeshes() {
		info := ModelInfo{Name: n.Name}
		if n.Shape != nil {
			d := *n.Shape
			d.Dimensions = append([]float64(nil), d.Dimensions...)
			info.Shape = &d
		}
		if n.Mesh != nil {
			info.Vertices = n.Mesh.VertexCount()
			info.Triangles = n.Mesh.TriangleCount()
		}
		st.Models = append(st.Models, info)
	}
	return st
}

// Scene calls fn with the scene under the service lock. fn must not keep
// the pointer.
func (s *Service) Scene(fn func(*scene.Scene)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.scene)
}
