package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/stepview/pkg/approx"
	"github.com/chazu/stepview/pkg/kernel/sdfx"
	"github.com/chazu/stepview/pkg/shape"
	"github.com/chazu/stepview/pkg/tessellate"
)

const cubeStep = `ISO-10303-21;
HEADER;
FILE_NAME('cube.step','2024-05-01T10:00:00',('Author'),('Org'),'pp','sys','');
ENDSEC;
DATA;
#1 = CARTESIAN_POINT('',(0.,0.,0.));
#2 = CARTESIAN_POINT('',(10.,0.,0.));
#3 = CARTESIAN_POINT('',(10.,10.,10.));
ENDSEC;
END-ISO-10303-21;
`

const noPointsStep = `ISO-10303-21;
DATA;
#1 = DIRECTION('',(0.,0.,1.));
ENDSEC;
`

const triangleSTL = `solid t
facet normal 0 0 1
outer loop
vertex 0 0 0
vertex 1 0 0
vertex 0 1 0
endloop
endfacet
endsolid t
`

type fakeFetcher struct {
	files map[string]string
	hook  func(url string)
}

func (f *fakeFetcher) FetchModel(_ context.Context, url string) ([]byte, error) {
	if f.hook != nil {
		f.hook(url)
	}
	body, ok := f.files[url]
	if !ok {
		return nil, errors.New("404")
	}
	return []byte(body), nil
}

func newLoader(f Fetcher) *Loader {
	return New(f, approx.New(approx.DefaultThresholds()), sdfx.New(),
		tessellate.Options{Quality: tessellate.QualityLow})
}

func TestLoadStepText(t *testing.T) {
	l := newLoader(nil)
	var got []*Result
	l.OnLoaded(func(r *Result) { got = append(got, r) })

	res, err := l.Load(context.Background(), Request{Text: cubeStep, Name: "cube"})
	require.NoError(t, err)
	assert.Equal(t, FormatSTEP, res.Format)
	assert.Equal(t, uint64(1), res.Generation)
	require.Len(t, res.Models, 1)
	m := res.Models[0]
	assert.Equal(t, "cube", m.Name)
	assert.Equal(t, shape.KindBox, m.Shape.Kind)
	assert.Equal(t, [3]float64{5, 5, 5}, m.Shape.Center)
	assert.False(t, m.Mesh.IsEmpty())
	require.NotNil(t, res.Header)
	assert.Equal(t, "cube.step", res.Header.Name)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, 3, res.Analysis.Points)

	require.Len(t, got, 1)
	assert.Same(t, res, got[0])
}

func TestLoadStepErrors(t *testing.T) {
	l := newLoader(nil)
	emitted := 0
	l.OnLoaded(func(*Result) { emitted++ })

	_, err := l.Load(context.Background(), Request{Text: noPointsStep, Format: FormatSTEP})
	assert.ErrorIs(t, err, ErrEmptyResult)

	_, err = l.Load(context.Background(), Request{Text: "hello world", Format: FormatSTEP})
	assert.ErrorIs(t, err, ErrInvalidStep)

	_, err = l.Load(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoSource)

	assert.Zero(t, emitted)
}

func TestLoadURL(t *testing.T) {
	f := &fakeFetcher{files: map[string]string{
		"/static/generated_models/cube.step": cubeStep,
		"/static/generated_models/t.stl":     triangleSTL,
	}}
	l := newLoader(f)

	res, err := l.Load(context.Background(), Request{URL: "/static/generated_models/cube.step"})
	require.NoError(t, err)
	assert.Equal(t, FormatSTEP, res.Format)
	assert.Equal(t, "cube.step", res.Models[0].Name)

	res, err = l.Load(context.Background(), Request{URL: "/static/generated_models/t.stl"})
	require.NoError(t, err)
	assert.Equal(t, FormatSTL, res.Format)
	require.Len(t, res.Models, 1)
	assert.Equal(t, 1, res.Models[0].Mesh.TriangleCount())
	assert.Len(t, res.Models[0].Edges, 3*6)
	assert.Nil(t, res.Analysis)

	_, err = l.Load(context.Background(), Request{URL: "/missing.step"})
	assert.Error(t, err)
}

func TestLoadPath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "part.stp")
	require.NoError(t, os.WriteFile(p, []byte(cubeStep), 0o644))

	res, err := newLoader(nil).Load(context.Background(), Request{Path: p})
	require.NoError(t, err)
	assert.Equal(t, "part.stp", res.Models[0].Name)
	assert.Equal(t, len(cubeStep), res.Bytes)
}

func TestLoadSupersededIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeFetcher{
		files: map[string]string{"/slow.step": cubeStep, "/fast.stl": triangleSTL},
		hook: func(url string) {
			if url == "/slow.step" {
				close(started)
				<-release
			}
		},
	}
	l := newLoader(f)
	var mu sync.Mutex
	var emitted []Format
	l.OnLoaded(func(r *Result) {
		mu.Lock()
		defer mu.Unlock()
		emitted = append(emitted, r.Format)
	})

	var slowErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, slowErr = l.Load(context.Background(), Request{URL: "/slow.step"})
	}()
	<-started

	res, err := l.Load(context.Background(), Request{URL: "/fast.stl"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Generation)

	close(release)
	<-done
	assert.ErrorIs(t, slowErr, ErrSuperseded)
	assert.Equal(t, []Format{FormatSTL}, emitted)
	assert.Equal(t, uint64(2), l.Generation())
}

func TestSupersedeDiscardsInFlightLoad(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeFetcher{
		files: map[string]string{"/slow.step": cubeStep},
		hook: func(string) {
			close(started)
			<-release
		},
	}
	l := newLoader(f)
	emitted := 0
	l.OnLoaded(func(*Result) { emitted++ })

	var slowErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, slowErr = l.Load(context.Background(), Request{URL: "/slow.step"})
	}()
	<-started

	assert.Equal(t, uint64(2), l.Supersede())
	close(release)
	<-done
	assert.ErrorIs(t, slowErr, ErrSuperseded)
	assert.Zero(t, emitted)
	assert.Equal(t, uint64(2), l.Generation())
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Format
	}{
		{"model.STEP", "", FormatSTEP},
		{"model.stp", "", FormatSTEP},
		{"/x/model.stl?v=1", "", FormatSTL},
		{"noext", cubeStep, FormatSTEP},
		{"noext", triangleSTL, FormatSTL},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.name, []byte(tt.data))
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
	_, err := DetectFormat("noext", []byte("hello"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatAuto, "auto": FormatAuto, "STEP": FormatSTEP, "stp": FormatSTEP, "stl": FormatSTL} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("obj")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
