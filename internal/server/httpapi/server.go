// Package httpapi exposes the document services over HTTP. Routes live
// under /api/v1 and require a bearer access token; /health and /metrics are
// public.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/archivia/internal/logging"
)

const shutdownTimeout = 15 * time.Second

// NewRouter builds the HTTP handler tree.
func NewRouter(docs Documents, uploads Uploads, secret []byte, gatherer prometheus.Gatherer,
	metrics *Metrics, log logging.Logger) http.Handler {
	h := &handler{docs: docs, uploads: uploads, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if metrics != nil {
		r.Use(metrics.Middleware)
	}
	r.Use(requestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireToken(secret))

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", h.listDocuments)
			r.Post("/", h.createDocument)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getDocument)
				r.Patch("/", h.updateDocument)
				r.Delete("/", h.deleteDocument)

				r.Post("/files", h.addFile)
				r.Get("/files/{fileID}/url", h.downloadURL)
				r.Post("/archive", h.uploadArchive)
				r.Get("/mets.xml", h.exportMETS)
				r.Get("/export", h.exportArchive)
				r.Post("/uploads", h.initiateUpload)
			})
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Put("/parts/{n}", h.uploadPart)
			r.Post("/complete", h.completeUpload)
			r.Delete("/", h.abortUpload)
		})
	})

	return r
}

// Server is the HTTP endpoint of the archive.
type Server struct {
	address string
	handler http.Handler
	logger  logging.Logger
}

func NewServer(address string, handler http.Handler, l logging.Logger) *Server {
	return &Server{
		address: address,
		handler: handler,
		logger:  l.With("module", "http_server"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
