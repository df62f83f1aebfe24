// Package restserver presents the restic REST v2 HTTP surface over a
// cloud115.Adapter. Routing follows the shape of rclone's own "serve
// restic" command — the closest real-world analog to this exact protocol
// — using chi for named path parameters.
package restserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gaoyifan/restic-115/internal/cloud115"
)

// Server wires the restic REST v2 surface to an Adapter.
type Server struct {
	adapter  *cloud115.Adapter
	spoolDir string
}

// New builds a Server. spoolDir is where uploaded request bodies are
// spooled to disk before hashing and transfer.
func New(adapter *cloud115.Adapter, spoolDir string) *Server {
	return &Server{adapter: adapter, spoolDir: spoolDir}
}

// Router builds the chi router implementing the restic REST v2 surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware)
	r.Use(chimiddleware.SetHeader("Accept-Ranges", "bytes"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/", s.handleBootstrap)
	r.Delete("/", s.handleDeleteRepo)

	r.Head("/config", s.handleHeadConfig)
	r.Get("/config", s.handleGetConfig)
	r.Post("/config", s.handlePostConfig)

	r.Get("/{type}/", s.handleListType)
	r.Head("/{type}/{name}", s.handleHeadObject)
	r.Get("/{type}/{name}", s.handleGetObject)
	r.Post("/{type}/{name}", s.handlePostObject)
	r.Delete("/{type}/{name}", s.handleDeleteObject)

	return r
}
