package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/openwis/form-registry/pkg/cache"
	"github.com/openwis/form-registry/pkg/forms"
	"github.com/openwis/form-registry/pkg/submission"
)

// Server wires the registry components behind the HTTP API.
type Server struct {
	builder   *forms.FormBuilder
	reader    *forms.FormReader
	manager   *submission.Manager
	revisions *submission.RevisionManager
	schemas   *forms.SchemaCache

	cacheManager *cache.CacheManager
	notifier     cache.Notifier
	logger       *slog.Logger
}

// NewServer creates a Server on the shared database handle. cacheManager and
// notifier may be nil; both degrade to no-ops.
func NewServer(db *gorm.DB, cacheManager *cache.CacheManager, notifier cache.Notifier, logger *slog.Logger) *Server {
	if notifier == nil {
		notifier = cache.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	schemas := forms.NewSchemaCache(db)
	if err := schemas.Refresh(context.Background()); err != nil {
		logger.Warn("initial schema cache refresh failed", "error", err)
	}
	return &Server{
		builder:      forms.NewFormBuilder(db),
		reader:       forms.NewFormReader(db),
		manager:      submission.NewManager(db).WithSchemaCache(schemas),
		revisions:    submission.NewRevisionManager(db).WithSchemaCache(schemas),
		schemas:      schemas,
		cacheManager: cacheManager,
		notifier:     notifier,
		logger:       logger,
	}
}

// invalidateForm drops local cache entries for a form, rebuilds the metadata
// snapshot, and signals peers.
func (s *Server) invalidateForm(r *http.Request, name string) {
	s.cacheManager.InvalidateForm(name)
	if err := s.schemas.Refresh(r.Context()); err != nil {
		s.logger.Warn("schema cache refresh failed", "form", name, "error", err)
	}
	if err := s.notifier.SchemaChanged(r.Context(), name); err != nil {
		s.logger.Warn("schema invalidation signal failed", "form", name, "error", err)
	}
}

// invalidateSubmission drops local cache entries for a submission and signals
// peers.
func (s *Server) invalidateSubmission(r *http.Request, id int64) {
	s.cacheManager.InvalidateSubmission(id)
	if err := s.notifier.SubmissionChanged(r.Context(), id); err != nil {
		s.logger.Warn("submission invalidation signal failed", "submission", id, "error", err)
	}
}

// Router builds the chi router with all registry API routes.
func (s *Server) Router(cfg *Config) chi.Router {
	r := chi.NewRouter()
	r.Use(RequestLogger(s.logger))
	if cfg != nil && len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-User-Id", "X-Request-Id"},
		}))
	}

	r.Get("/healthz", healthzHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/forms", func(r chi.Router) {
			r.Post("/", s.createFormHandler())
			if s.cacheManager != nil {
				r.With(s.cacheManager.SchemaMiddleware()).Get("/{name}", s.getFormHandler(false))
				r.With(s.cacheManager.SchemaMiddleware()).Get("/{name}/view", s.getFormHandler(true))
			} else {
				r.Get("/{name}", s.getFormHandler(false))
				r.Get("/{name}/view", s.getFormHandler(true))
			}
			r.Post("/{name}/views", s.createViewHandler())
		})

		r.Route("/views", func(r chi.Router) {
			r.Post("/{view}/copy", s.copyViewHandler())
			r.Post("/{view}/revisions", s.createViewRevisionHandler())
			r.Put("/{view}/revisions/{revision}/activate", s.activateViewRevisionHandler())
		})

		r.Route("/submissions", func(r chi.Router) {
			r.Post("/", s.createSubmissionHandler())
			if s.cacheManager != nil {
				r.With(s.cacheManager.SubmissionMiddleware()).Get("/{id}", s.getSubmissionHandler())
			} else {
				r.Get("/{id}", s.getSubmissionHandler())
			}
			r.Put("/{id}", s.updateSubmissionHandler())
			r.Post("/{id}/revisions", s.reviseSubmissionHandler())
			r.Post("/{id}/rollback", s.rollbackSubmissionHandler())
			r.Get("/{id}/restatements", s.listRestatementsHandler())
			r.Put("/{id}/checkout", s.checkoutHandler(true))
			r.Put("/{id}/checkin", s.checkoutHandler(false))
			r.Get("/named/{name}", s.listRevisionsHandler())
		})
	})

	return r
}
