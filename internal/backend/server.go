// Package backend is a self-contained reference implementation of the ESG
// API the dashboard consumes: synthetic invoices, batch and single-invoice
// processing, and the printable scorecard.
package backend

import (
	"net/http"
	"time"

	"esgdash/internal/carbon"
	applog "esgdash/internal/log"
	"esgdash/internal/middleware/security"
	"esgdash/internal/middleware/trace"
	"esgdash/internal/synthetic"
)

// Config configures the reference backend.
type Config struct {
	Addr           string
	SyntheticCount int
	SyntheticSeed  int64
	// ReportSampleSize is how many synthetic invoices feed the printable report.
	ReportSampleSize int
	MaxUploadBytes   int64
	// Now defaults to time.Now.
	Now func() time.Time
}

const (
	defaultSyntheticCount = 100
	defaultSampleSize     = 30
	defaultMaxUpload      = 10 << 20
)

// Server serves the ESG API.
type Server struct {
	http.Server
	engine    *carbon.Engine
	store     Store
	publisher Publisher
	logger    *applog.Logger
	invoices  []synthetic.Invoice
	sample    int
	maxUpload int64
	now       func() time.Time
	started   time.Time
}

// NewServer builds the API. The synthetic invoices are generated once, so
// every request sees the same data set.
func NewServer(cfg Config, deps *Dependencies, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SyntheticCount <= 0 {
		cfg.SyntheticCount = defaultSyntheticCount
	}
	if cfg.ReportSampleSize <= 0 {
		cfg.ReportSampleSize = defaultSampleSize
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		engine:    deps.Engine,
		store:     deps.Store,
		publisher: deps.Publisher,
		logger:    logger.WithComponent(applog.ComponentBackend),
		invoices:  synthetic.Generate(cfg.SyntheticCount, cfg.SyntheticSeed, cfg.Now()),
		sample:    cfg.ReportSampleSize,
		maxUpload: cfg.MaxUploadBytes,
		now:       cfg.Now,
		started:   time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/emission-factors", s.handleEmissionFactors)
	mux.HandleFunc("GET /api/synthetic-invoices", s.handleSyntheticInvoices)
	mux.HandleFunc("POST /api/process-transactions", s.handleProcessTransactions)
	mux.HandleFunc("POST /api/process-invoice", s.handleProcessInvoice)
	mux.HandleFunc("GET /api/scorecard-html", s.handleScorecardHTML)
	mux.HandleFunc("GET /api/classify", s.handleClassify)
	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("GET /api/reports/{id}", s.handleGetReport)

	tracer := trace.NewMiddleware(logger, security.NewIPResolver().ClientIP)
	s.Handler = tracer.Handler(trace.Recover(security.Headers(security.APIHeadersConfig())(security.CORS(mux))))

	s.logger.Info("Reference backend ready",
		applog.FieldCount, len(s.invoices),
		"persistence", s.store != nil,
		"publisher", s.publisher != nil)
	return s
}
