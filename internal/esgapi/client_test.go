package esgapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"esgdash/internal/core"
)

func TestScorecardHTMLURL(t *testing.T) {
	cases := map[string]string{
		"https://api.example.com":  "https://api.example.com/api/scorecard-html",
		"https://api.example.com/": "https://api.example.com/api/scorecard-html",
		"":                         "http://localhost:8000/api/scorecard-html",
	}
	for base, want := range cases {
		var calls int32
		doer := doerFunc(func(*http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.New("unexpected request")
		})
		c := New(Config{BaseURL: base, HTTPClient: doer})
		if got := c.ScorecardHTMLURL(); got != want {
			t.Errorf("base %q: got %q, want %q", base, got, want)
		}
		if calls != 0 {
			t.Errorf("base %q: made %d requests", base, calls)
		}
	}
}

func TestSyntheticInvoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != PathSyntheticInvoices {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id":"INV-00001","supplier":"EDF Energy","description":"Business electricity supply","amount_gbp":1200.5,"quantity":1200.5,"unit":"kWh","category":"electricity","date":"2024-05-01","document_type":"invoice"},
			{"description":"Bare","amount_gbp":3}
		]`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	got, err := c.SyntheticInvoices(context.Background())
	if err != nil {
		t.Fatalf("SyntheticInvoices: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(got))
	}
	if got[0].ID == nil || *got[0].ID != "INV-00001" || got[0].AmountGBP != 1200.5 {
		t.Errorf("unexpected first invoice: %+v", got[0])
	}
	if got[1].Supplier != nil || got[1].EmissionsKgCO2e != nil {
		t.Errorf("absent fields should stay nil: %+v", got[1])
	}
}

func TestSyntheticInvoicesNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "run the generator", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).SyntheticInvoices(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusNotFound {
		t.Fatalf("expected FetchError with status 404, got %#v", err)
	}
}

func TestTransportAndDecodeFailuresAreFetchErrors(t *testing.T) {
	down := New(Config{BaseURL: "http://backend.invalid", HTTPClient: doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})})
	if _, err := down.SyntheticInvoices(context.Background()); !errors.Is(err, ErrFetch) {
		t.Errorf("transport failure: expected ErrFetch, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer srv.Close()
	if _, err := New(Config{BaseURL: srv.URL}).SyntheticInvoices(context.Background()); !errors.Is(err, ErrFetch) {
		t.Errorf("decode failure: expected ErrFetch, got %v", err)
	}
}

func TestProcessTransactions(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Method != http.MethodPost || r.URL.Path != PathProcessTransactions {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var in []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(in) != 1 || in[0]["description"] != "Water supply" {
			t.Errorf("unexpected body: %v", in)
		}
		if _, ok := in[0]["emissions_kg_co2e"]; ok {
			t.Errorf("absent emissions should not be sent")
		}
		_, _ = io.WriteString(w, `{
			"transactions":[{"description":"Water supply","amount_gbp":50,"category":"water_m3","emissions_kg_co2e":3.44,"scope":"Scope 3"}],
			"scorecard":{"report_date":"2024-06-01T00:00:00","standards":"UK SRS",
				"scope_emissions":{"Scope 3 - Value chain":3.44,"Scope 1 - Direct emissions":0},
				"total_kg_co2e":3.44,"total_tonnes_co2e":0,"transaction_count":1,
				"breakdown_by_category":{"water_m3":3.44},"transactions":[]}
		}`)
	}))
	defer srv.Close()

	res, err := New(Config{BaseURL: srv.URL}).ProcessTransactions(context.Background(), []core.Transaction{
		{Description: "Water supply", AmountGBP: 50},
	})
	if err != nil {
		t.Fatalf("ProcessTransactions: %v", err)
	}
	if requests != 1 {
		t.Errorf("expected exactly one request, got %d", requests)
	}
	if len(res.Transactions) != 1 || *res.Transactions[0].EmissionsKgCO2e != 3.44 {
		t.Errorf("unexpected transactions: %+v", res.Transactions)
	}
	if res.Scorecard.ScopeEmissions[0].Name != "Scope 3 - Value chain" {
		t.Errorf("scope order lost: %+v", res.Scorecard.ScopeEmissions)
	}
}

func TestProcessTransactionsNullScorecard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"transactions":[],"scorecard":null}`)
	}))
	defer srv.Close()

	res, err := New(Config{BaseURL: srv.URL}).ProcessTransactions(context.Background(), nil)
	if err != nil {
		t.Fatalf("ProcessTransactions: %v", err)
	}
	if res.Scorecard != nil {
		t.Errorf("null scorecard should decode to nil, got %+v", res.Scorecard)
	}
}

func TestProcessTransactionsNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).ProcessTransactions(context.Background(), nil)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("error should name the status: %v", err)
	}
}

func TestProcessInvoiceMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathProcessInvoice {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "bill.pdf" || string(data) != "%PDF-1.4" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		if ct := header.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("part content type = %q", ct)
		}
		_, _ = io.WriteString(w, `{"extracted":{"supplier":"British Gas","amount":2812.5,"description":"Business Electricity Supply","category":"electricity"},
			"carbon_result":{"category":"electricity","emissions_kg_co2e":87.33,"scope":"Scope 2"},
			"text_preview":"INVOICE"}`)
	}))
	defer srv.Close()

	res, err := New(Config{BaseURL: srv.URL}).ProcessInvoice(context.Background(), core.Document{
		Name: "bill.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("ProcessInvoice: %v", err)
	}
	if res.CarbonResult == nil || res.CarbonResult.Scope != "Scope 2" {
		t.Errorf("unexpected carbon result: %+v", res.CarbonResult)
	}
	if res.Extracted.Supplier == nil || *res.Extracted.Supplier != "British Gas" {
		t.Errorf("unexpected extracted: %+v", res.Extracted)
	}
}

func TestProcessInvoiceNullCarbonResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"extracted":{"supplier":null,"amount":null,"description":"","category":null},"carbon_result":null,"text_preview":""}`)
	}))
	defer srv.Close()

	res, err := New(Config{BaseURL: srv.URL}).ProcessInvoice(context.Background(), core.Document{
		Name: "scan.png", ContentType: "image/png", Content: []byte{0x89, 'P', 'N', 'G'},
	})
	if err != nil {
		t.Fatalf("ProcessInvoice: %v", err)
	}
	if res.CarbonResult != nil {
		t.Errorf("expected nil carbon result")
	}
}

func TestProcessInvoiceEmptyDocument(t *testing.T) {
	c := New(Config{BaseURL: "http://x", HTTPClient: doerFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})})
	if _, err := c.ProcessInvoice(context.Background(), core.Document{}); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }
