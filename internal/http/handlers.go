package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"esgdash/internal/core"
	"esgdash/internal/dashboard"
	applog "esgdash/internal/log"
	"esgdash/internal/upload"
)

const (
	tmplIndex        = "index.html"
	tmplDashboard    = "dashboard.html"
	tmplUploadResult = "upload_result.html"
)

// TriggerInvoiceProcessed is the HX-Trigger event sent after a successful upload.
const TriggerInvoiceProcessed = "invoice:processed"

type indexData struct {
	Dashboard dashboard.View
	MaxUpload int64
}

type uploadData struct {
	FileName string
	Error    string
	Result   string
}

// handleIndex renders the page shell with the dashboard in its loading state.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := dashboard.NewPage(s.backend, s.logger)
	data := indexData{
		Dashboard: page.View(s.backend.ScorecardHTMLURL()),
		MaxUpload: s.maxUpload,
	}
	s.render(w, r, tmplIndex, data, NewFragment())
}

// handleDashboard runs the two-step load for a fresh page and renders the
// dashboard partial. Load failures render the empty dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	page := dashboard.NewPage(s.backend, applog.FromContext(r.Context()))
	page.Load(r.Context())
	s.render(w, r, tmplDashboard, page.View(s.backend.ScorecardHTMLURL()), NewFragment())
}

// handleUpload drives a fresh upload widget with the posted file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentUpload)

	req, err := ParseUploadRequest(w, r, s.maxUpload)
	switch {
	case errors.Is(err, ErrUploadTooLarge):
		ErrorFragment(http.StatusRequestEntityTooLarge, "File too large").Write(w)
		return
	case errors.Is(err, ErrMissingFile):
		ErrorFragment(http.StatusBadRequest, "No file selected").Write(w)
		return
	case err != nil:
		logger.Warn("Upload parse error", applog.FieldError, err)
		ErrorFragment(http.StatusBadRequest, "Invalid upload").Write(w)
		return
	}

	var result *core.InvoiceResult
	widget := upload.NewWidget(s.backend, func(res core.InvoiceResult) { result = &res })

	var accepted bool
	if req.Source == SourceDrop {
		accepted = widget.Drop(req.Document)
	} else {
		accepted = widget.Pick(req.Document)
	}
	if !accepted {
		// Rejected drops leave the page as it was.
		logger.Debug("Upload ignored", applog.NewFields().WithDocument(req.Document.Name, req.Document.ContentType, len(req.Document.Content)).ToSlice()...)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	start := time.Now()
	fields := applog.NewFields().
		WithOperation(applog.OpProcessInvoice).
		WithDocument(req.Document.Name, req.Document.ContentType, len(req.Document.Content))

	data := uploadData{FileName: req.Document.Name}
	resp := NewFragment()
	if err := widget.Submit(r.Context()); err != nil {
		logger.Warn("Invoice processing failed", fields.WithError(err).ToSlice()...)
		data.Error = widget.Err()
	} else {
		logger.Info("Invoice processed", append(fields.ToSlice(), applog.FieldDuration, time.Since(start).Milliseconds())...)
		data.Result = prettyJSON(result)
		resp.Trigger(TriggerInvoiceProcessed, invoiceEvent(result))
	}
	s.render(w, r, tmplUploadResult, data, resp)
}

func invoiceEvent(res *core.InvoiceResult) map[string]any {
	ev := map[string]any{}
	if res != nil && res.CarbonResult != nil {
		ev["category"] = res.CarbonResult.Category
		ev["scope"] = res.CarbonResult.Scope
		ev["emissions_kg_co2e"] = res.CarbonResult.EmissionsKgCO2e
	}
	return ev
}

// render executes name into a buffer so template errors never produce a
// half-written page, then writes it through resp.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any, resp *Fragment) {
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate)
	if s.templates == nil {
		logger.Error("Templates not loaded", applog.FieldPath, r.URL.Path)
		ErrorFragment(http.StatusInternalServerError, "templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("Template execution failed", applog.FieldError, err, "template", name)
		ErrorFragment(http.StatusInternalServerError, "Rendering error").Write(w)
		return
	}
	resp.HTML(buf.String()).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether the server can render pages. The backend is not
// probed: a missing backend renders the empty dashboard, not an outage.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"templates": "ok"}
	status, code := "ready", http.StatusOK
	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"checks":     checks,
		"report_url": s.backend.ScorecardHTMLURL(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
