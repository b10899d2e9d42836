package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://localhost:8000"

func newMockClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: baseURL})
	require.NoError(t, err)
	httpmock.ActivateNonDefault(c.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("should decode an object response", func(t *testing.T) {
		c := newMockClient(t)
		httpmock.RegisterResponder("POST", baseURL+"/graph_chat",
			httpmock.NewJsonResponderOrPanic(200, map[string]any{
				"success": true,
				"intent":  "create_cad",
				"agent":   "CADBot",
				"response": map[string]any{
					"text":             "Generated a cube",
					"step_url":         "/static/generated_models/cube.step",
					"stl_url":          "/static/generated_models/cube.stl",
					"model_id":         42,
					"model_type":       "step",
					"similarity_score": 0.856,
				},
			}))

		r, err := c.Send(ctx, "create a cube")
		require.NoError(t, err)
		assert.Equal(t, "Generated a cube", r.Text)
		assert.Equal(t, "42", r.ModelID)
		assert.Equal(t, 0.856, r.SimilarityScore)
		assert.Equal(t, "CADBot", r.Agent)
		assert.Equal(t, "create a cube", r.Prompt)

		m, ok := r.Model()
		require.True(t, ok)
		assert.Equal(t, ModelRef{URL: "/static/generated_models/cube.step", Format: "step"}, m)
		assert.Equal(t, 1, httpmock.GetTotalCallCount())
	})

	t.Run("should decode a JSON string response", func(t *testing.T) {
		c := newMockClient(t)
		httpmock.RegisterResponder("POST", baseURL+"/graph_chat",
			httpmock.NewStringResponder(200, `{"success":true,"response":"{\"text\":\"ok\",\"model_url\":\"/temp_models/m.stl\",\"model_type\":\"stl\"}"}`))

		r, err := c.Send(ctx, "hi")
		require.NoError(t, err)
		assert.Equal(t, "ok", r.Text)
		m, ok := r.Model()
		require.True(t, ok)
		assert.Equal(t, "stl", m.Format)
	})

	t.Run("should keep plain text responses", func(t *testing.T) {
		c := newMockClient(t)
		httpmock.RegisterResponder("POST", baseURL+"/graph_chat",
			httpmock.NewStringResponder(200, `{"success":true,"response":"Hello! I can help with CAD."}`))

		r, err := c.Send(ctx, "hi")
		require.NoError(t, err)
		assert.Equal(t, "Hello! I can help with CAD.", r.Text)
		_, ok := r.Model()
		assert.False(t, ok)
	})

	t.Run("should use the error field as text", func(t *testing.T) {
		c := newMockClient(t)
		httpmock.RegisterResponder("POST", baseURL+"/graph_chat",
			httpmock.NewStringResponder(200, `{"success":true,"response":{"error":"no match found"}}`))

		r, err := c.Send(ctx, "hi")
		require.NoError(t, err)
		assert.Equal(t, "no match found", r.Text)
	})

	t.Run("should report backend failures", func(t *testing.T) {
		c := newMockClient(t)
		httpmock.RegisterResponder("POST", baseURL+"/graph_chat",
			httpmock.NewStringResponder(200, `{"success":false,"error":"graph crashed"}`))

		_, err := c.Send(ctx, "hi")
		assert.ErrorIs(t, err, ErrBackend)
		assert.Contains(t, err.Error(), "graph crashed")
	})

	t.Run("should report HTTP errors as transport failures", func(t *testing.T) {
		c := newMockClient(t)
		httpmock.RegisterResponder("POST", baseURL+"/graph_chat",
			httpmock.NewStringResponder(500, `boom`))

		_, err := c.Send(ctx, "hi")
		assert.ErrorIs(t, err, ErrTransport)
		var httpErr HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, 500, httpErr.StatusCode)
		assert.Equal(t, 1, httpmock.GetTotalCallCount(), "500 is not retried")
	})

	t.Run("should report network errors as transport failures", func(t *testing.T) {
		c := newMockClient(t)
		httpmock.RegisterResponder("POST", baseURL+"/graph_chat",
			httpmock.NewErrorResponder(errors.New("connection refused")))

		_, err := c.Send(ctx, "hi")
		assert.ErrorIs(t, err, ErrTransport)
	})
}

func TestResolve(t *testing.T) {
	c, err := New(Options{BaseURL: baseURL})
	require.NoError(t, err)

	tests := map[string]string{
		"/static/generated_models/a.step": "http://localhost:8000/static/generated_models/a.step",
		"temp_models/b.stl":               "http://localhost:8000/temp_models/b.stl",
		"https://cdn.example.com/c.step":  "https://cdn.example.com/c.step",
	}
	for in, want := range tests {
		got, err := c.Resolve(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNewRejectsRelativeBase(t *testing.T) {
	_, err := New(Options{BaseURL: "/api"})
	assert.Error(t, err)
}

func TestFetchModel(t *testing.T) {
	ctx := context.Background()

	t.Run("should fetch relative model urls from the base", func(t *testing.T) {
		c := newMockClient(t)
		httpmock.RegisterResponder("GET", baseURL+"/static/generated_models/cube.step",
			httpmock.NewStringResponder(200, "ISO-10303-21;"))

		data, err := c.FetchModel(ctx, "/static/generated_models/cube.step")
		require.NoError(t, err)
		assert.Equal(t, "ISO-10303-21;", string(data))
	})

	t.Run("should deduplicate concurrent fetches", func(t *testing.T) {
		c := newMockClient(t)
		release := make(chan struct{})
		httpmock.RegisterResponder("GET", baseURL+"/m.step",
			func(req *http.Request) (*http.Response, error) {
				<-release
				resp := httpmock.NewStringResponse(200, "data")
				resp.Request = req
				return resp, nil
			})

		var wg sync.WaitGroup
		results := make([]string, 4)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				data, err := c.FetchModel(ctx, "/m.step")
				if err == nil {
					results[i] = string(data)
				}
			}(i)
		}
		close(release)
		wg.Wait()
		for _, r := range results {
			assert.Equal(t, "data", r)
		}
		assert.LessOrEqual(t, httpmock.GetTotalCallCount(), 4)
		assert.GreaterOrEqual(t, httpmock.GetTotalCallCount(), 1)
	})

	t.Run("should reject models over the size limit", func(t *testing.T) {
		c, err := New(Options{BaseURL: baseURL, MaxBodyBytes: 8})
		require.NoError(t, err)
		httpmock.ActivateNonDefault(c.HTTPClient())
		defer httpmock.DeactivateAndReset()
		httpmock.RegisterResponder("GET", baseURL+"/big.step",
			httpmock.NewStringResponder(200, "ISO-10303-21;"))
		httpmock.RegisterResponder("GET", baseURL+"/small.step",
			httpmock.NewStringResponder(200, "12345678"))

		_, err = c.FetchModel(ctx, "/big.step")
		assert.ErrorIs(t, err, ErrTransport)
		assert.Contains(t, err.Error(), "exceeds 8 bytes")

		data, err := c.FetchModel(ctx, "/small.step")
		require.NoError(t, err)
		assert.Equal(t, "12345678", string(data))
	})

	t.Run("should report missing models", func(t *testing.T) {
		c := newMockClient(t)
		httpmock.RegisterResponder("GET", baseURL+"/missing.step",
			httpmock.NewStringResponder(404, "not found"))

		_, err := c.FetchModel(ctx, "/missing.step")
		assert.ErrorIs(t, err, ErrTransport)
		var httpErr HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, 404, httpErr.StatusCode)
	})
}

func TestHealthAndListModels(t *testing.T) {
	ctx := context.Background()
	c := newMockClient(t)
	httpmock.RegisterResponder("GET", baseURL+"/health",
		httpmock.NewJsonResponderOrPanic(200, map[string]string{"status": "healthy", "message": "genx3D API is running"}))
	httpmock.RegisterResponder("GET", baseURL+"/list_generated_models",
		httpmock.NewJsonResponderOrPanic(200, []map[string]string{
			{"name": "cube.step", "url": "/static/generated_models/cube.step"},
		}))

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)

	models, err := c.ListModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "cube.step", models[0].Name)
	assert.Equal(t, baseURL+"/static/generated_models/cube.step", models[0].URL)
}

func TestReplyModelPreference(t *testing.T) {
	r := Reply{StepURL: "a.step", STLURL: "a.stl"}
	m, _ := r.Model()
	assert.Equal(t, "step", m.Format)

	r = Reply{STLURL: "a.stl"}
	m, _ = r.Model()
	assert.Equal(t, ModelRef{URL: "a.stl", Format: "stl"}, m)

	r = Reply{ModelURL: "/x/model.STL?v=2"}
	m, _ = r.Model()
	assert.Equal(t, "stl", m.Format)
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("**Generated** a `cube`\n\n<script>alert(1)</script>")
	assert.Contains(t, out, "<strong>Generated</strong>")
	assert.Contains(t, out, "<code>cube</code>")
	assert.False(t, strings.Contains(out, "<script>"))
}
