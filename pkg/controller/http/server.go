package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/esr/pkg/service/metabolism"
	"github.com/secmon-lab/esr/pkg/usecase"
	"github.com/secmon-lab/esr/pkg/utils/logging"
)

type Server struct {
	router     *chi.Mux
	uc         *usecase.UseCases
	metabolism *metabolism.Worker
}

type Options func(*Server)

// WithMetabolism exposes the metabolism worker over the status and
// reflect endpoints. Without it those endpoints report it as disabled.
func WithMetabolism(worker *metabolism.Worker) Options {
	return func(s *Server) {
		s.metabolism = worker
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/thoughts", s.handleStoreThought)
		r.Get("/thoughts/{id}", s.handleRecallThought)
		r.Post("/search", s.handleRecallSimilar)
		r.Post("/context", s.handleBuildContext)
		r.Post("/associations", s.handleCreateAssociation)
		r.Get("/namespaces", s.handleNamespaces)
		r.Get("/metabolism", s.handleMetabolismStatus)
		r.Post("/metabolism/reflect", s.handleTriggerReflection)
		r.Get("/stats", s.handleStats)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
