// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"financas/internal/core"
	"financas/internal/importer"
	"financas/internal/log"
	"financas/internal/services"
	"financas/internal/storage"
)

// Deps are the collaborators the API serves. Templates and Materializer may
// be nil, in which case the recurring routes answer 503.
type Deps struct {
	Ledger       *services.LedgerService
	Templates    storage.TemplateStore
	Materializer *services.RecurringMaterializer
	Importer     *importer.Normalizer
	Clock        core.Clock
	Logger       *log.Logger
	// Series holds the defaults for requests that do not set the expansion flags.
	Series services.SeriesOptions
	// WriteLimit is the number of write requests per client per minute; zero
	// disables the limiter.
	WriteLimit int
}

type Server struct {
	http.Server
	deps    Deps
	logger  *log.Logger
	limiter *rateLimiter
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = core.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Importer == nil {
		deps.Importer = importer.NewNormalizer(deps.Clock, deps.Logger)
	}

	s := &Server{deps: deps, logger: deps.Logger.WithComponent(log.ComponentHTTP)}
	if deps.WriteLimit > 0 {
		s.limiter = newRateLimiter(deps.WriteLimit)
		go s.limiter.startCleanup()
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.Middleware(s.deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/cards", s.handleListCards)

		r.Route("/records", func(r chi.Router) {
			r.Post("/", s.handleCreateRecord)
			r.Get("/{id}", s.handleGetRecord)
			r.Patch("/{id}", s.handleEditRecord)
			r.Delete("/{id}", s.handleDeleteRecord)
			r.Put("/{id}/member", s.handleAssignMember)
			r.Get("/{id}/preview", s.handlePreviewSeries)
		})
		r.Post("/series", s.handleCreateSeries)
		r.Get("/groups/{group}", s.handleListGroup)
		r.Get("/invoices/{card}/{period}", s.handleListInvoice)
		r.Get("/months/{period}", s.handleListMonth)
		r.Get("/history", s.handleHistory)

		r.Post("/bulk/delete", s.handleBulkDelete)
		r.Post("/bulk/member", s.handleBulkReassign)

		r.Post("/imports", s.handleImport)
		r.Post("/imports/commit", s.handleCommit)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/{id}", s.handleGetTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
		})
		r.Post("/recurring/materialize", s.handleMaterialize)
	})

	return r
}

// Shutdown stops the limiter cleanup and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.Server.Shutdown(ctx)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
