package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/astkg/pkg/buildinfo"
	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/observability"
	"github.com/matzehuels/astkg/pkg/pipeline"
	"github.com/matzehuels/astkg/pkg/render/dot"
	"github.com/matzehuels/astkg/pkg/store"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// =============================================================================
// Wire types
// =============================================================================

type healthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Vocabulary string `json:"vocabulary"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// sourceRequest carries Python source.
type sourceRequest struct {
	Name    string           `json:"name,omitempty"`
	Source  string           `json:"source"`
	Options pipeline.Options `json:"options"`
}

type encodeResponse struct {
	Graph     json.RawMessage `json:"graph"`
	GraphHash string          `json:"graph_hash"`
	Stats     kg.Stats        `json:"stats"`
	CacheHit  bool            `json:"cache_hit"`
}

// decodeRequest names a graph inline or by stored id.
type decodeRequest struct {
	ID      string           `json:"id,omitempty"`
	Graph   json.RawMessage  `json:"graph,omitempty"`
	Options pipeline.Options `json:"options"`
}

type decodeResponse struct {
	Source   string   `json:"source"`
	Warnings []string `json:"warnings"`
}

type roundTripResponse struct {
	Equal    bool     `json:"equal"`
	Original string   `json:"original"`
	Decoded  string   `json:"decoded"`
	Nodes    int      `json:"nodes"`
	Edges    int      `json:"edges"`
	Warnings []string `json:"warnings"`
}

// putRequest stores either encoded source or a ready graph.
type putRequest struct {
	ID      string           `json:"id,omitempty"`
	Name    string           `json:"name,omitempty"`
	Source  string           `json:"source,omitempty"`
	Graph   json.RawMessage  `json:"graph,omitempty"`
	Options pipeline.Options `json:"options"`
}

type putResponse struct {
	ID    string   `json:"id"`
	Stats kg.Stats `json:"stats"`
}

type listResponse struct {
	Graphs []string `json:"graphs"`
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Version:    buildinfo.Version,
		Vocabulary: buildinfo.Vocabulary,
	})
}

func (s *Server) encode(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	res, err := s.runner.Encode(r.Context(), nameOr(req.Name, "request"), []byte(req.Source), s.options(req.Options))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := kg.MarshalGraph(res.Graph)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeResponse{
		Graph:     data,
		GraphHash: res.GraphHash,
		Stats:     res.Graph.Stats(),
		CacheHit:  res.CacheHit,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !s.readJSON(w, r, &req) {
		return
	}

	var g *kg.Graph
	var err error
	switch {
	case len(req.Graph) > 0:
		g, err = kg.ReadGraph(bytes.NewReader(req.Graph))
	case req.ID != "":
		if s.store == nil {
			err = apperr.New(apperr.ErrCodeInvalidInput, "no graph store configured")
			break
		}
		g, err = store.LoadGraph(r.Context(), s.store, req.ID)
	default:
		err = apperr.New(apperr.ErrCodeInvalidInput, "request needs a graph or an id")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.runner.Decode(r.Context(), nameOr(req.ID, "request"), g, s.options(req.Options))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decodeResponse{Source: res.Text, Warnings: messages(res.Warnings)})
}

func (s *Server) roundTrip(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	res, err := s.runner.RoundTrip(r.Context(), nameOr(req.Name, "request"), []byte(req.Source), s.options(req.Options))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roundTripResponse{
		Equal:    res.Equal,
		Original: res.Original,
		Decoded:  res.Decode.Text,
		Nodes:    res.Encode.Graph.NodeCount(),
		Edges:    res.Encode.Graph.EdgeCount(),
		Warnings: messages(res.Decode.Warnings),
	})
}

func (s *Server) putGraph(w http.ResponseWriter, r *http.Request) {
	var req putRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.ID != "" {
		if err := apperr.ValidateGraphID(req.ID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	var g *kg.Graph
	switch {
	case len(req.Graph) > 0 && req.Source != "":
		s.writeError(w, r, apperr.New(apperr.ErrCodeInvalidInput, "give either source or graph, not both"))
		return
	case len(req.Graph) > 0:
		var err error
		if g, err = kg.ReadGraph(bytes.NewReader(req.Graph)); err == nil {
			err = kg.Validate(g)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	case req.Source != "":
		res, err := s.runner.Encode(r.Context(), nameOr(req.Name, "request"), []byte(req.Source), s.options(req.Options))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		g = res.Graph
	default:
		s.writeError(w, r, apperr.New(apperr.ErrCodeInvalidInput, "request needs source or graph"))
		return
	}

	id, err := store.SaveGraph(r.Context(), s.store, req.ID, g)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("stored graph", "id", id, "nodes", g.NodeCount())
	w.Header().Set("Location", "/v1/graphs/"+id)
	writeJSON(w, http.StatusCreated, putResponse{ID: id, Stats: g.Stats()})
}

func (s *Server) listGraphs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Graphs: ids})
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	g, ok := s.loadGraph(w, r)
	if !ok {
		return
	}
	data, err := kg.MarshalGraph(g)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	g, ok := s.loadGraph(w, r)
	if !ok {
		return
	}
	opts := s.options(pipeline.Options{Lenient: r.URL.Query().Get("lenient") == "true"})
	res, err := s.runner.Decode(r.Context(), chi.URLParam(r, "id"), g, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/x-python; charset=utf-8")
	w.Header().Set("X-Decode-Warnings", strconv.Itoa(len(res.Warnings)))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(res.Text))
}

var contentTypes = map[string]string{
	dot.FormatDOT: "text/vnd.graphviz; charset=utf-8",
	dot.FormatSVG: "image/svg+xml",
	dot.FormatPNG: "image/png",
}

func (s *Server) renderGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := s.options(pipeline.Options{
		Format:    q.Get("format"),
		Detailed:  q.Get("detailed") == "true",
		Direction: q.Get("direction"),
	})
	if err := opts.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	g, ok := s.loadGraph(w, r)
	if !ok {
		return
	}
	out, hit, err := s.runner.Render(r.Context(), g, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[opts.Format])
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func (s *Server) deleteGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("deleted graph", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) loadGraph(w http.ResponseWriter, r *http.Request) (*kg.Graph, bool) {
	g, err := store.LoadGraph(r.Context(), s.store, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return g, true
}

// options fills zero request fields from the server defaults. Refresh and
// the boolean switches are taken from either side.
func (s *Server) options(req pipeline.Options) pipeline.Options {
	def := s.opts.Pipeline
	if req.MaxDepth <= 0 {
		req.MaxDepth = def.MaxDepth
	}
	if req.Format == "" {
		req.Format = def.Format
	}
	if req.Direction == "" {
		req.Direction = def.Direction
	}
	req.Lenient = req.Lenient || def.Lenient
	req.Parallel = req.Parallel || def.Parallel
	req.Detailed = req.Detailed || def.Detailed
	req.MaxFileSize = def.MaxFileSize
	req.Concurrency = def.Concurrency
	req.Logger = s.logger
	return req
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		s.writeError(w, r, apperr.Wrap(apperr.ErrCodeInvalidFormat, err, "invalid request body"))
		return false
	}
	return true
}

// statusFor maps an error code to an HTTP status.
func statusFor(err error) int {
	switch apperr.GetCode(err) {
	case apperr.ErrCodeInvalidInput, apperr.ErrCodeInvalidFormat, apperr.ErrCodeInvalidPath,
		apperr.ErrCodeInvalidGraphID:
		return http.StatusBadRequest
	case apperr.ErrCodeParse, apperr.ErrCodeInvalidGraph, apperr.ErrCodeStructuralIntegrity,
		apperr.ErrCodeDepthExceeded, apperr.ErrCodeUnsupported:
		return http.StatusUnprocessableEntity
	case apperr.ErrCodeNotFound, apperr.ErrCodeGraphNotFound, apperr.ErrCodeFileNotFound:
		return http.StatusNotFound
	case apperr.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	route := routeOf(r)
	observability.HTTP().OnError(r.Context(), r.Method, route, err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "route", route, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "route", route, "err", err)
	}

	code := string(apperr.GetCode(err))
	if code == "" {
		code = string(apperr.ErrCodeInternal)
	}
	writeJSON(w, status, errorResponse{Error: code, Message: apperr.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func messages(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

func nameOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}
