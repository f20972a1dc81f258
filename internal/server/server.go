// Package server implements the CutRoom HTTP server: the video streaming
// gateway, the contact API, the sitemap, and the operational endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cutroom/cutroom/internal/config"
	"github.com/cutroom/cutroom/internal/handlers"
	"github.com/cutroom/cutroom/internal/inquiries"
	"github.com/cutroom/cutroom/internal/sitemap"
	"github.com/cutroom/cutroom/internal/storage"
	"github.com/cutroom/cutroom/internal/videourl"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the CutRoom HTTP server. It routes marketing-site API requests
// to the video gateway and contact handlers on a Chi router, with the JSON
// endpoints documented through Huma.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	api        huma.API
	store      storage.VideoStore
	inquiryDB  *inquiries.Store
	mailer     handlers.InquiryMailer
	video      *handlers.VideoHandler
	contact    *handlers.ContactHandler
	limiter    *ipRateLimiter
	httpServer *http.Server
}

// ResolveInput is the query input for the video reference resolver.
type ResolveInput struct {
	Ref string `query:"ref" minLength:"1" doc:"Store key reference (store:key) or external video link"`
}

// ResolveBody is the JSON body returned by the video reference resolver.
type ResolveBody struct {
	URL string `json:"url" doc:"Playable URL for the referenced video"`
}

// ResolveOutput is the Huma output struct for the video reference resolver.
type ResolveOutput struct {
	Body ResolveBody
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithVideoStore sets the video object store backing the streaming gateway.
func WithVideoStore(store storage.VideoStore) ServerOption {
	return func(s *Server) {
		s.store = store
	}
}

// WithInquiryStore sets the persistence layer for contact inquiries.
func WithInquiryStore(db *inquiries.Store) ServerOption {
	return func(s *Server) {
		s.inquiryDB = db
	}
}

// WithMailer sets the mailer used to notify the team of new inquiries.
// A nil mailer disables notification; inquiries are still persisted.
func WithMailer(m handlers.InquiryMailer) ServerOption {
	return func(s *Server) {
		s.mailer = m
	}
}

// New creates a Server with the given configuration and wires all routes
// on the Chi router. Use ServerOption functions to provide the video store,
// inquiry store, and mailer.
func New(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("CutRoom Site API", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &Server{
		cfg:    cfg,
		router: router,
		api:    api,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.video = handlers.NewVideoHandler(s.store,
		time.Duration(cfg.Stream.TimeoutSeconds)*time.Second,
		time.Duration(cfg.Stream.PresignTTLSeconds)*time.Second)

	if s.inquiryDB != nil {
		s.contact = handlers.NewContactHandler(s.inquiryDB, s.mailer)
	}

	s.limiter = newIPRateLimiter(cfg.Contact.RatePerMinute/60.0, cfg.Contact.Burst)

	s.registerRoutes()
	return s, nil
}

// ListenAndServe starts the HTTP server on the given address.
// The returned http.Server is stored so it can be shut down gracefully.
// Middleware chain: metricsMiddleware -> commonHeaders -> contactRateLimit -> router.
func (s *Server) ListenAndServe(addr string) error {
	var handler http.Handler = s.router
	handler = s.contactRateLimit(handler)
	handler = commonHeaders(handler)
	handler = metricsMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wired handler, including middleware. Used by tests.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router
	handler = s.contactRateLimit(handler)
	handler = commonHeaders(handler)
	handler = metricsMiddleware(handler)
	return handler
}

// registerRoutes configures all routes on the Chi router. Huma routes
// (/health, /docs, /openapi.json, /api/contact) are registered through the
// API adapter; the video gateway and sitemap are plain Chi handlers.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the CutRoom backend.",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
	})

	// HEAD /health separately (Huma registers one method per operation).
	s.router.Head("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	})

	s.router.Handle("/metrics", promhttp.Handler())

	if s.contact != nil {
		s.contact.Register(s.api)
	}

	if s.cfg.Site.BaseURL != "" {
		s.router.Get("/sitemap.xml", sitemap.Handler(s.cfg.Site.BaseURL))
	}

	// Portfolio pages reference videos as store keys or external links; this
	// endpoint turns either form into a playable URL for the frontend.
	huma.Register(s.api, huma.Operation{
		OperationID: "resolve-video-url",
		Method:      http.MethodGet,
		Path:        "/api/video-url",
		Summary:     "Resolve a video reference",
		Description: "Resolves a store key or external video link to a playable embed URL.",
		Tags:        []string{"Videos"},
	}, func(ctx context.Context, input *ResolveInput) (*ResolveOutput, error) {
		return &ResolveOutput{Body: ResolveBody{URL: videourl.Resolve(input.Ref)}}, nil
	})

	// The video gateway owns everything under /api/video, including keys
	// with encoded slashes, so it is mounted as a wildcard rather than a
	// single path parameter.
	s.router.Get("/api/video", s.video.ServeVideo)
	s.router.Head("/api/video", s.video.ServeVideo)
	s.router.Get("/api/video/*", s.video.ServeVideo)
	s.router.Head("/api/video/*", s.video.ServeVideo)
}
