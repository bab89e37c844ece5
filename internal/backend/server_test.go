package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"esgdash/internal/carbon"
	"esgdash/internal/core"
	"esgdash/internal/extract"
	"esgdash/internal/storage"
)

type memStore struct {
	saved   []core.BatchResult
	names   []string
	saveErr error
}

func (m *memStore) SaveBatch(_ context.Context, name string, res core.BatchResult) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saved = append(m.saved, res)
	m.names = append(m.names, name)
	return "rep-1", nil
}

func (m *memStore) ListReports(context.Context, int) ([]storage.Report, error) {
	out := []storage.Report{}
	for i, name := range m.names {
		out = append(out, storage.Report{ID: "rep-1", Name: name, TransactionCount: m.saved[i].Scorecard.TransactionCount})
	}
	return out, nil
}

func (m *memStore) GetReport(_ context.Context, id string) (storage.Report, error) {
	if id != "rep-1" || len(m.saved) == 0 {
		return storage.Report{}, storage.ErrNotFound
	}
	return storage.Report{ID: id, Name: m.names[0]}, nil
}

func (m *memStore) ReportTransactions(_ context.Context, id string) ([]core.Transaction, error) {
	return m.saved[0].Transactions, nil
}

type recordingPublisher struct {
	ids     []string
	sources []string
}

func (p *recordingPublisher) PublishScorecardComputed(_ context.Context, reportID, source string, _ core.Scorecard) error {
	p.ids = append(p.ids, reportID)
	p.sources = append(p.sources, source)
	return nil
}

var fixedNow = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, store Store, pub Publisher) *Server {
	t.Helper()
	engine, err := carbon.New()
	if err != nil {
		t.Fatal(err)
	}
	cfg := Config{SyntheticCount: 40, SyntheticSeed: 42, ReportSampleSize: 30, MaxUploadBytes: 1 << 20,
		Now: func() time.Time { return fixedNow }}
	return NewServer(cfg, &Dependencies{Engine: engine, Store: store, Publisher: pub}, nil)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func TestSyntheticInvoices(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/synthetic-invoices", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var txs []core.Transaction
	if err := json.Unmarshal(rr.Body.Bytes(), &txs); err != nil {
		t.Fatal(err)
	}
	if len(txs) != 40 {
		t.Fatalf("got %d invoices", len(txs))
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}

	again := serve(s, httptest.NewRequest(http.MethodGet, "/api/synthetic-invoices", nil))
	if again.Body.String() != rr.Body.String() {
		t.Error("synthetic invoices must be stable across requests")
	}
}

func TestProcessTransactions(t *testing.T) {
	store := &memStore{}
	pub := &recordingPublisher{}
	s := newTestServer(t, store, pub)

	body := `[
		{"description":"Business electricity supply","amount_gbp":300,"quantity":1000,"unit":"kWh","category":"electricity","supplier":"EDF Energy"},
		{"description":"Diesel for company vehicles","amount_gbp":150},
		{"description":"Mystery","amount_gbp":10,"category":"not-a-factor"}
	]`
	rr := serve(s, httptest.NewRequest(http.MethodPost, "/api/process-transactions", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var res core.BatchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("unknown categories are dropped, got %d rows", len(res.Transactions))
	}
	sc := res.Scorecard
	if got, _ := sc.ScopeEmissions.Get("Scope 2 - Indirect (energy)"); got != 207 {
		t.Errorf("scope 2 = %v", got)
	}
	if got, _ := sc.ScopeEmissions.Get("Scope 1 - Direct emissions"); got != 251.2 {
		t.Errorf("scope 1 = %v", got)
	}
	if sc.TotalKgCO2e != 458.2 || sc.TransactionCount != 2 {
		t.Errorf("total = %v count = %d", sc.TotalKgCO2e, sc.TransactionCount)
	}
	if sc.BreakdownByCategory[0].Name != "diesel_litres" {
		t.Errorf("largest category first, got %v", sc.BreakdownByCategory)
	}
	if err := sc.CheckTotals(0.01); err != nil {
		t.Error(err)
	}

	if len(store.saved) != 1 || store.names[0] != sourceBatch {
		t.Errorf("batch not persisted: %v", store.names)
	}
	if len(pub.ids) != 1 || pub.ids[0] != "rep-1" {
		t.Errorf("event not published: %v", pub.ids)
	}
}

func TestProcessTransactionsPersistFailureStillAnswers(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestServer(t, &memStore{saveErr: errors.New("disk full")}, pub)
	rr := serve(s, httptest.NewRequest(http.MethodPost, "/api/process-transactions", strings.NewReader(`[]`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(pub.ids) != 0 {
		t.Error("nothing to announce when persistence failed")
	}
	if !strings.Contains(rr.Body.String(), `"transactions":[]`) {
		t.Errorf("empty batch should encode an empty list: %s", rr.Body.String())
	}
}

func TestProcessTransactionsBadBody(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rr := serve(s, httptest.NewRequest(http.MethodPost, "/api/process-transactions", strings.NewReader(`{"not":"a list"}`)))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"detail"`) {
		t.Errorf("error body = %s", rr.Body.String())
	}
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		part, err := w.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(content)
	}
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func TestProcessInvoiceImageUsesSampleText(t *testing.T) {
	s := newTestServer(t, nil, nil)
	body, ct := multipartBody(t, "file", "scan.png", []byte("\x89PNG fake"))
	req := httptest.NewRequest(http.MethodPost, "/api/process-invoice", body)
	req.Header.Set("Content-Type", ct)

	rr := serve(s, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var res core.InvoiceResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Extracted.Supplier == nil || *res.Extracted.Supplier != "British Gas" {
		t.Errorf("supplier = %v", res.Extracted.Supplier)
	}
	if res.CarbonResult == nil {
		t.Fatal("expected a carbon result")
	}
	if res.CarbonResult.Category != "electricity" || res.CarbonResult.EmissionsKgCO2e <= 0 || res.CarbonResult.Scope != core.Scope2 {
		t.Errorf("carbon result = %+v", res.CarbonResult)
	}
	if res.TextPreview != extract.Preview(extract.SampleText) {
		t.Errorf("preview = %q", res.TextPreview)
	}
}

func TestProcessInvoiceMissingFile(t *testing.T) {
	s := newTestServer(t, nil, nil)
	body, ct := multipartBody(t, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/process-invoice", body)
	req.Header.Set("Content-Type", ct)
	if rr := serve(s, req); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestScorecardHTML(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, store, nil)
	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/scorecard-html", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{"ESG Compliance Scorecard", "Generated: 2026-02-01T10:00:00 UTC", "transactions processed."} {
		if !strings.Contains(body, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if len(store.saved) != 0 {
		t.Error("viewing the report must not persist a batch")
	}
}

func TestClassifyAndFactors(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/classify?description=Laptop+purchase&supplier=Dell", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"office_equipment_gbp"`) {
		t.Fatalf("classify: %d %s", rr.Code, rr.Body.String())
	}
	if rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/classify", nil)); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("classify without description: %d", rr.Code)
	}

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/api/emission-factors", nil))
	var ds carbon.Dataset
	if err := json.Unmarshal(rr.Body.Bytes(), &ds); err != nil || len(ds.Factors) == 0 {
		t.Fatalf("emission factors: %v", err)
	}

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rr.Body.String(), "ESG RegTech Platform API") {
		t.Errorf("banner = %s", rr.Body.String())
	}
	if rr := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rr.Code != http.StatusOK {
		t.Errorf("healthz = %d", rr.Code)
	}
}

func TestReports(t *testing.T) {
	s := newTestServer(t, nil, nil)
	if rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/reports", nil)); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("reports without store: %d", rr.Code)
	}

	store := &memStore{}
	s = newTestServer(t, store, nil)
	serve(s, httptest.NewRequest(http.MethodPost, "/api/process-transactions",
		strings.NewReader(`[{"description":"Hotel","amount_gbp":90}]`)))

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/reports?limit=5", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"rep-1"`) {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}
	if rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/reports?limit=zero", nil)); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad limit: %d", rr.Code)
	}

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/api/reports/rep-1", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"hotel_night"`) {
		t.Fatalf("get: %d %s", rr.Code, rr.Body.String())
	}
	if rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/reports/nope", nil)); rr.Code != http.StatusNotFound {
		t.Errorf("unknown report: %d", rr.Code)
	}
}

func TestNewDependenciesWithSQLite(t *testing.T) {
	deps, err := NewDependencies(DepsConfig{SQLiteDBPath: t.TempDir() + "/esg.db"}, nil)
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	if deps.Engine == nil || deps.Store == nil || deps.Publisher != nil {
		t.Fatalf("unexpected deps %+v", deps)
	}
	if err := deps.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, err := NewDependencies(DepsConfig{AMQPURL: "not-a-url"}, nil); err == nil {
		t.Fatal("expected AMQP error")
	}
}
