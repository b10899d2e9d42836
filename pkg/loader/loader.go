// Package loader turns model sources into renderable models. A STEP source
// goes through validation, the approximator and the tessellator; an STL
// source is read as-is.
//
// Every Load gets a generation number. When a newer Load has started by the
// time an older one finishes, the older result is dropped with ErrSuperseded
// and never reaches subscribers.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/chazu/stepview/pkg/approx"
	"github.com/chazu/stepview/pkg/kernel"
	"github.com/chazu/stepview/pkg/logger"
	"github.com/chazu/stepview/pkg/meshio"
	"github.com/chazu/stepview/pkg/step"
	"github.com/chazu/stepview/pkg/tessellate"
)

var (
	ErrEmptyResult   = errors.New("loader: no CARTESIAN_POINT found, nothing to display")
	ErrInvalidStep   = errors.New("loader: not a STEP file")
	ErrSuperseded    = errors.New("loader: superseded by a newer load")
	ErrUnknownFormat = errors.New("loader: unknown model format")
	ErrNoSource      = errors.New("loader: request has no source")
)

// Format is a model file format.
type Format string

const (
	FormatAuto Format = ""
	FormatSTEP Format = "step"
	FormatSTL  Format = "stl"
)

// ParseFormat accepts "", "auto", "step", "stp" and "stl".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "step", "stp":
		return FormatSTEP, nil
	case "stl":
		return FormatSTL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// DetectFormat guesses the format from a file name, then from the content.
func DetectFormat(name string, data []byte) (Format, error) {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".step", ".stp":
		return FormatSTEP, nil
	case ".stl":
		return FormatSTL, nil
	}
	head := strings.TrimSpace(string(data[:min(len(data), 512)]))
	switch {
	case strings.HasPrefix(head, "ISO-10303-21"):
		return FormatSTEP, nil
	case strings.HasPrefix(head, "solid"), len(data) >= 84 && !strings.Contains(head, "ISO-10303"):
		return FormatSTL, nil
	}
	return "", ErrUnknownFormat
}

// Request names one model to load. Exactly one of URL, Path or Text is used,
// in that order of preference.
type Request struct {
	URL    string `json:"url,omitempty"`
	Path   string `json:"path,omitempty"`
	Text   string `json:"text,omitempty"`
	Format Format `json:"format,omitempty"`
	Name   string `json:"name,omitempty"`
}

func (r Request) source() string {
	switch {
	case r.URL != "":
		return r.URL
	case r.Path != "":
		return r.Path
	}
	return ""
}

func (r Request) displayName() string {
	if r.Name != "" {
		return r.Name
	}
	src := r.source()
	if src == "" {
		return "model"
	}
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		src = u.Path
	}
	return filepath.Base(src)
}

// Result is a loaded model.
type Result struct {
	Generation uint64              `json:"generation"`
	Request    Request             `json:"request"`
	Format     Format              `json:"format"`
	Models     []*tessellate.Model `json:"models"`
	Analysis   *approx.Analysis    `json:"analysis,omitempty"` // STEP only
	Header     *step.Header        `json:"header,omitempty"`   // STEP only
	Bytes      int                 `json:"bytes"`
}

// Fetcher downloads remote model files.
type Fetcher interface {
	FetchModel(ctx context.Context, url string) ([]byte, error)
}

// Loader runs the load pipeline. It is safe for concurrent use.
type Loader struct {
	fetcher Fetcher
	approx  *approx.Approximator
	kernel  kernel.Kernel
	opts    tessellate.Options

	mu         sync.Mutex
	generation uint64
	subs       []func(*Result)

	emitMu sync.Mutex
}

// New returns a Loader. fetcher may be nil when only paths and text are loaded.
func New(fetcher Fetcher, a *approx.Approximator, k kernel.Kernel, opts tessellate.Options) *Loader {
	return &Loader{fetcher: fetcher, approx: a, kernel: k, opts: opts}
}

// OnLoaded registers fn to receive every successful, current load. fn runs
// on the loading goroutine.
func (l *Loader) OnLoaded(fn func(*Result)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}

// Generation returns the generation of the most recent Load.
func (l *Loader) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// Supersede invalidates every load still in flight without starting a new
// one, for callers that show geometry from another source. It waits for a
// loaded event already being delivered to finish.
func (l *Loader) Supersede() uint64 {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation++
	return l.generation
}

// Load loads req, superseding any load still in flight.
func (l *Loader) Load(ctx context.Context, req Request) (*Result, error) {
	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.mu.Unlock()

	log := logger.Log.WithFields(logrus.Fields{"generation": gen, "source": req.displayName()})
	res, err := l.load(ctx, req)
	if err != nil {
		log.WithError(err).Warn("loader: load failed")
		return nil, err
	}
	res.Generation = gen

	l.emitMu.Lock()
	defer l.emitMu.Unlock()
	l.mu.Lock()
	current := l.generation
	subs := append([]func(*Result){}, l.subs...)
	l.mu.Unlock()
	if gen != current {
		log.Debug("loader: discarding superseded result")
		return nil, ErrSuperseded
	}
	log.WithFields(logrus.Fields{"format": res.Format, "models": len(res.Models)}).Info("loader: model loaded")
	for _, fn := range subs {
		fn(res)
	}
	return res, nil
}

func (l *Loader) load(ctx context.Context, req Request) (*Result, error) {
	data, err := l.read(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format := req.Format
	if format == FormatAuto {
		format, err = DetectFormat(req.source(), data)
		if err != nil {
			return nil, err
		}
	}
	res := &Result{Request: req, Format: format, Bytes: len(data)}
	switch format {
	case FormatSTEP:
		err = l.loadStep(res, string(data))
	case FormatSTL:
		err = l.loadSTL(res, data)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (l *Loader) read(ctx context.Context, req Request) ([]byte, error) {
	switch {
	case req.URL != "":
		if l.fetcher == nil {
			return nil, fmt.Errorf("loader: no fetcher configured for %s", req.URL)
		}
		return l.fetcher.FetchModel(ctx, req.URL)
	case req.Path != "":
		data, err := os.ReadFile(req.Path)
		if err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}
		return data, nil
	case req.Text != "":
		return []byte(req.Text), nil
	}
	return nil, ErrNoSource
}

func (l *Loader) loadStep(res *Result, text string) error {
	if !step.IsValidStepFile(text) {
		return ErrInvalidStep
	}
	analysis := l.approx.Analyze(text)
	header := step.ReadHeader(text)
	res.Analysis, res.Header = &analysis, &header
	if analysis.Shape == nil {
		return ErrEmptyResult
	}
	model, err := tessellate.Tessellate(*analysis.Shape, l.kernel, l.opts)
	if err != nil {
		return err
	}
	model.Name = res.Request.displayName()
	model.Mesh.PartName = model.Name
	res.Models = []*tessellate.Model{model}
	return nil
}

func (l *Loader) loadSTL(res *Result, data []byte) error {
	mesh, err := meshio.ReadSTL(bytes.NewReader(data))
	if err != nil {
		return err
	}
	mesh.PartName = res.Request.displayName()
	threshold := l.opts.EdgeThreshold
	if threshold <= 0 {
		threshold = kernel.DefaultEdgeThreshold
	}
	res.Models = []*tessellate.Model{{
		Name:  mesh.PartName,
		Mesh:  mesh,
		Edges: kernel.FeatureEdges(mesh, threshold),
	}}
	return nil
}
