// Package esgapi is a typed client for the ESG backend HTTP API.
package esgapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"esgdash/internal/core"
	applog "esgdash/internal/log"
)

// Backend paths.
const (
	PathSyntheticInvoices   = "/api/synthetic-invoices"
	PathProcessTransactions = "/api/process-transactions"
	PathProcessInvoice      = "/api/process-invoice"
	PathScorecardHTML       = "/api/scorecard-html"
)

// DefaultBaseURL is the local development backend.
const DefaultBaseURL = "http://localhost:8000"

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client. BaseURL is resolved by the caller.
type Config struct {
	BaseURL    string
	HTTPClient HTTPDoer
	// Timeout applies only when HTTPClient is nil. Zero means no timeout.
	Timeout time.Duration
	Logger  *applog.Logger
}

// Client calls the ESG backend. Each call performs exactly one request.
type Client struct {
	baseURL string
	http    HTTPDoer
	logger  *applog.Logger
}

// New returns a client for cfg.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	return &Client{
		baseURL: base,
		http:    doer,
		logger:  logger.WithComponent(applog.ComponentAPI),
	}
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// ScorecardHTMLURL returns the address of the printable report. No request is made.
func (c *Client) ScorecardHTMLURL() string {
	return c.baseURL + PathScorecardHTML
}

// SyntheticInvoices lists the backend's synthetic invoices.
func (c *Client) SyntheticInvoices(ctx context.Context) ([]core.Transaction, error) {
	const op = "list synthetic invoices"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathSyntheticInvoices, nil)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	var out []core.Transaction
	if err := c.do(req, op, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessTransactions sends txs for emissions processing and returns the
// annotated transactions with their scorecard.
func (c *Client) ProcessTransactions(ctx context.Context, txs []core.Transaction) (core.BatchResult, error) {
	const op = "process transactions"
	if txs == nil {
		txs = []core.Transaction{}
	}
	body, err := json.Marshal(txs)
	if err != nil {
		return core.BatchResult{}, &FetchError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathProcessTransactions, bytes.NewReader(body))
	if err != nil {
		return core.BatchResult{}, &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var out core.BatchResult
	if err := c.do(req, op, &out); err != nil {
		return core.BatchResult{}, err
	}
	return out, nil
}

// ProcessInvoice uploads one document as the multipart field "file".
func (c *Client) ProcessInvoice(ctx context.Context, doc core.Document) (core.InvoiceResult, error) {
	const op = "process invoice"
	body, contentType, err := multipartBody(doc)
	if err != nil {
		return core.InvoiceResult{}, &FetchError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathProcessInvoice, body)
	if err != nil {
		return core.InvoiceResult{}, &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	var out core.InvoiceResult
	if err := c.do(req, op, &out); err != nil {
		return core.InvoiceResult{}, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(req.Context(), "Backend request failed",
			applog.FieldOperation, op, applog.FieldPath, req.URL.Path, applog.FieldError, err)
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugContext(req.Context(), "Backend responded",
		applog.FieldOperation, op,
		applog.FieldPath, req.URL.Path,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &FetchError{Op: op, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartBody(doc core.Document) (io.Reader, string, error) {
	if doc.IsEmpty() {
		return nil, "", errors.New("no document")
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(doc.Name)))
	ct := doc.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(doc.Content); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
