package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"esgdash/internal/core"
	"esgdash/internal/extract"
	applog "esgdash/internal/log"
	"esgdash/internal/report"
	"esgdash/internal/storage"
	"esgdash/internal/synthetic"
)

const (
	// multipart overhead allowed on top of the upload limit
	formOverhead = 64 << 10

	sourceBatch = "process-transactions"
)

var endpoints = []string{
	"GET /api/synthetic-invoices",
	"POST /api/process-transactions",
	"POST /api/process-invoice",
	"GET /api/scorecard-html",
	"GET /api/emission-factors",
	"GET /api/classify?description=&supplier=",
	"GET /api/reports",
	"GET /api/reports/{id}",
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "ESG RegTech Platform API",
		"endpoints": endpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"invoices":    len(s.invoices),
		"persistence": s.store != nil,
	})
}

func (s *Server) handleEmissionFactors(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.engine.Dataset())
}

func (s *Server) handleSyntheticInvoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.invoices)
}

func (s *Server) handleProcessTransactions(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentBackend)
	start := time.Now()

	var txs []core.Transaction
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err := dec.Decode(&txs); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "request body must be a JSON array of transactions")
		return
	}

	res := report.ProcessBatch(s.engine, txs, s.now())
	s.persist(r.Context(), logger, sourceBatch, res)

	logger.Info("Batch processed",
		applog.FieldOperation, applog.OpProcessBatch,
		applog.FieldCount, len(res.Transactions),
		applog.FieldTotalKg, res.Scorecard.TotalKgCO2e,
		applog.FieldDuration, time.Since(start).Milliseconds())
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProcessInvoice(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentBackend)

	doc, err := s.readUpload(w, r)
	if err != nil {
		if isTooLarge(err) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	text, fromDoc := extract.Text(doc)
	ex := extract.Fields(text, s.engine)

	tx := core.Transaction{
		Supplier:    ex.Supplier,
		Description: deref(ex.Description),
		Category:    ex.Category,
	}
	if ex.Amount != nil {
		tx.AmountGBP = *ex.Amount
	}

	out := core.InvoiceResult{Extracted: ex, TextPreview: extract.Preview(text)}
	if cr, err := s.engine.Process(tx); err == nil {
		out.CarbonResult = &cr
	} else {
		logger.Warn("Invoice not classifiable", applog.FieldError, err)
	}

	fields := applog.NewFields().
		WithOperation(applog.OpProcessInvoice).
		WithDocument(doc.Name, doc.ContentType, len(doc.Content))
	logger.Info("Invoice processed", append(fields.ToSlice(), "text_from_document", fromDoc)...)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (core.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return core.Document{}, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.Document{}, errors.New("field 'file' is required")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return core.Document{}, fmt.Errorf("read upload: %w", err)
	}
	return core.Document{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

func (s *Server) handleScorecardHTML(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentBackend)

	invoices := s.invoices
	if len(invoices) > s.sample {
		invoices = invoices[:s.sample]
	}
	res := report.ProcessBatch(s.engine, reportInputs(invoices), s.now())

	page, err := report.HTML(*res.Scorecard)
	if err != nil {
		logger.Error("Scorecard rendering failed", applog.FieldError, err, applog.FieldOperation, applog.OpRender)
		writeDetail(w, http.StatusInternalServerError, "failed to render scorecard")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// reportInputs keeps only the fields the carbon engine reads.
func reportInputs(invoices []synthetic.Invoice) []core.Transaction {
	out := make([]core.Transaction, len(invoices))
	for i, inv := range invoices {
		out[i] = core.Transaction{
			Supplier:    inv.Supplier,
			Description: inv.Description,
			AmountGBP:   inv.AmountGBP,
			Quantity:    inv.Quantity,
			Unit:        inv.Unit,
			Category:    inv.Category,
		}
	}
	return out
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	description := strings.TrimSpace(q.Get("description"))
	if description == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "query parameter 'description' is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"category": s.engine.Classify(description, q.Get("supplier")),
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeDetail(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeDetail(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
			return
		}
		limit = n
	}
	reports, err := s.store.ListReports(r.Context(), limit)
	if err != nil {
		applog.FromContext(r.Context()).Error("List reports failed", applog.FieldError, err)
		writeDetail(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeDetail(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}
	id := r.PathValue("id")
	rep, err := s.store.GetReport(r.Context(), id)
	if err == nil {
		var txs []core.Transaction
		if txs, err = s.store.ReportTransactions(r.Context(), id); err == nil {
			writeJSON(w, http.StatusOK, map[string]any{"report": rep, "transactions": txs})
			return
		}
	}
	if errors.Is(err, storage.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "report not found")
		return
	}
	applog.FromContext(r.Context()).Error("Get report failed", applog.FieldError, err, applog.FieldReportID, id)
	writeDetail(w, http.StatusInternalServerError, "failed to load report")
}

// persist stores res and announces it. Failures are logged, never returned
// to the client: the computed result is still valid.
func (s *Server) persist(ctx context.Context, logger *applog.Logger, source string, res core.BatchResult) {
	if s.store == nil {
		return
	}
	id, err := s.store.SaveBatch(ctx, source, res)
	if err != nil {
		logger.Warn("Failed to persist batch", applog.FieldError, err, applog.FieldOperation, applog.OpPersist)
		return
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishScorecardComputed(ctx, id, source, *res.Scorecard); err != nil {
		logger.Warn("Failed to publish scorecard event", applog.FieldError, err,
			applog.FieldOperation, applog.OpPublish, applog.FieldReportID, id)
	}
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes an error body shaped like {"detail": "..."}.
func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
