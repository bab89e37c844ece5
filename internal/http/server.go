// Package http serves the ESG dashboard: the page shell, the htmx partials
// and the embedded static assets.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"esgdash/internal/dashboard"
	applog "esgdash/internal/log"
	"esgdash/internal/middleware/ratelimit"
	"esgdash/internal/middleware/security"
	"esgdash/internal/middleware/trace"
	"esgdash/internal/upload"
	appweb "esgdash/web"
)

// Backend is everything the dashboard needs from the ESG API client.
type Backend interface {
	dashboard.Source
	upload.Processor
	ScorecardHTMLURL() string
}

// Config configures the dashboard server.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	RateLimit      ratelimit.Config
	// Templates and Static default to the embedded web assets.
	Templates fs.FS
	Static    fs.FS
}

// Server is the dashboard HTTP server.
type Server struct {
	http.Server
	templates *template.Template
	backend   Backend
	logger    *applog.Logger
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	maxUpload int64
	started   time.Time

	shutdownOnce sync.Once
}

const defaultMaxUpload = 10 << 20

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(cfg Config, backend Backend, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.Discard()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.Templates == nil {
		cfg.Templates = appweb.TemplatesFS
	}
	if cfg.Static == nil {
		cfg.Static = appweb.StaticFS
	}

	mux := http.NewServeMux()
	ips := security.NewIPResolver()

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		backend:   backend,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(cfg.RateLimit),
		tracer:    trace.NewMiddleware(logger, ips.ClientIP),
		maxUpload: cfg.MaxUploadBytes,
		started:   time.Now(),
	}

	t, err := template.ParseFS(cfg.Templates, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(cfg.Static, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /ui/upload", s.handleUpload)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	limit := s.limiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).Warn("Rate limit exceeded", applog.FieldPath, r.URL.Path)
		w.Header().Set("Retry-After", "60")
		ErrorFragment(http.StatusTooManyRequests, "Too many uploads. Please try again later.").Write(w)
	}, http.MethodPost)

	s.Handler = s.tracer.Handler(security.Headers(security.DefaultHeadersConfig())(limit(mux)))
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
