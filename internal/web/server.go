// Package web is patsgw's thin outer layer: a static landing page and
// a websocket endpoint that forwards already-parsed stream events as
// JSON. It contains no stream logic of its own — it only calls the
// core's Subscribe/Unsubscribe surface.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/jodal/patsgw/internal/stream"
)

//go:embed static/*
var staticFiles embed.FS

// Server wires the two process-wide stream controllers to HTTP.
type Server struct {
	sample *stream.Controller
	filter *stream.Controller
	logger *slog.Logger
}

// NewServer builds the outer web layer for the given sample and
// filter controllers (spec.md §9: "process-wide singletons... passed
// to the outer layer").
func NewServer(sample, filter *stream.Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{sample: sample, filter: filter, logger: logger}
}

// Handler returns the http.Handler serving the static page at "/" and
// the websocket upgrade at "/ws".
func (s *Server) Handler() http.Handler {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(subFS))

	mux := http.NewServeMux()
	mux.Handle("/", fileServer)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}
