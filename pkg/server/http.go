// Package server exposes the viewer over HTTP and pushes view and load
// events to websocket clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chazu/stepview/pkg/chat"
	"github.com/chazu/stepview/pkg/engine"
	"github.com/chazu/stepview/pkg/loader"
	"github.com/chazu/stepview/pkg/logger"
	"github.com/chazu/stepview/pkg/view"
	"github.com/chazu/stepview/pkg/viewer"
)

// maxBodySize bounds request bodies, STEP uploads included.
const maxBodySize = 64 << 20

type Server struct {
	Viewer *viewer.Service
	Hub    *Broadcaster
	Addr   string
}

// New returns a server for v and subscribes its hub to v's events.
func New(v *viewer.Service, addr string) *Server {
	s := &Server{
		Viewer: v,
		Hub:    NewBroadcaster(),
		Addr:   addr,
	}
	v.OnEvent(func(ev viewer.Event) {
		st := ev.State
		s.Hub.Broadcast(Message{Type: ev.Type, State: &st})
	})
	return s
}

// Handler returns the routes of the viewer API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("POST /api/approximate", s.handleApproximate)
	mux.HandleFunc("POST /api/load", s.handleLoad)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/eval", s.handleEval)
	mux.HandleFunc("POST /api/view/{name}", s.handleView)
	mux.HandleFunc("POST /api/fit", s.handleFit)
	mux.HandleFunc("POST /api/zoom/{dir}", s.handleZoom)
	return enableCORS(mux)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	logger.Log.WithField("addr", s.Addr).Info("server: listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Log.Info("server: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Debug("server: write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, loader.ErrInvalidStep),
		errors.Is(err, loader.ErrEmptyResult),
		errors.Is(err, loader.ErrUnknownFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, loader.ErrNoSource):
		return http.StatusBadRequest
	case errors.Is(err, loader.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, viewer.ErrNoChat):
		return http.StatusServiceUnavailable
	case errors.Is(err, chat.ErrTransport), errors.Is(err, chat.ErrBackend):
		return http.StatusBadGateway
	case errors.Is(err, engine.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("server: websocket upgrade failed")
		return
	}
	id, ch := s.Hub.Register()
	client := &Client{ID: id, Viewer: s.Viewer, Hub: s.Hub, Conn: conn, Send: ch}
	logger.Log.WithFields(logrus.Fields{"client": id, "remote": r.RemoteAddr}).Info("server: client connected")

	st := s.Viewer.State()
	s.Hub.SendTo(id, Message{Type: "state", State: &st})

	go client.writePump()
	go client.readPump()
}

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if c := s.Viewer.Chat(); c != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if h, err := c.Health(ctx); err != nil {
			resp.Backend = "unreachable"
		} else {
			resp.Backend = h.Status
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Viewer.State())
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	c := s.Viewer.Chat()
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, viewer.ErrNoChat)
		return
	}
	models, err := c.ListModels(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleApproximate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d := s.Viewer.Approximate(string(body))
	if d == nil {
		writeError(w, http.StatusUnprocessableEntity, loader.ErrEmptyResult)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type loadResponse struct {
	Format string       `json:"format"`
	Bytes  int          `json:"bytes"`
	State  viewer.State `json:"state"`
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loader.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// Remote callers may not read server-side files.
	req.Path = ""
	res, err := s.Viewer.Load(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Format: string(res.Format), Bytes: res.Bytes, State: s.Viewer.State()})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}
	res, err := s.Viewer.SendChat(r.Context(), req.Message)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type evalRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	var req evalRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.Viewer.Evaluate(req.Source)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	status := http.StatusOK
	if len(res.Errors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	v, err := view.ParseView(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.Viewer.SetView(v)
	writeJSON(w, http.StatusOK, s.Viewer.State())
}

type fitResponse struct {
	Fitted bool         `json:"fitted"`
	State  viewer.State `json:"state"`
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	ok := s.Viewer.FitToView()
	writeJSON(w, http.StatusOK, fitResponse{Fitted: ok, State: s.Viewer.State()})
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("dir") {
	case "in":
		s.Viewer.ZoomIn()
	case "out":
		s.Viewer.ZoomOut()
	default:
		writeError(w, http.StatusBadRequest, errors.New("zoom direction must be in or out"))
		return
	}
	writeJSON(w, http.StatusOK, s.Viewer.State())
}
