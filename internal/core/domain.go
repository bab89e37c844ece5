package core

import (
	"errors"
	"strings"
)

// Scope labels used by the backend when bucketing emissions.
const (
	Scope1 = "Scope 1"
	Scope2 = "Scope 2"
	Scope3 = "Scope 3"
)

type (
	// Transaction is a single invoice line as exchanged with the backend.
	// Optional fields are nil when the backend did not send them.
	Transaction struct {
		ID              *string  `json:"id,omitempty"`
		Supplier        *string  `json:"supplier,omitempty"`
		Description     string   `json:"description"`
		AmountGBP       float64  `json:"amount_gbp"`
		Quantity        *float64 `json:"quantity,omitempty"`
		Unit            *string  `json:"unit,omitempty"`
		Category        *string  `json:"category,omitempty"`
		EmissionsKgCO2e *float64 `json:"emissions_kg_co2e,omitempty"`
		Scope           *string  `json:"scope,omitempty"`
		Date            *string  `json:"date,omitempty"`
	}

	// CarbonResult is the emissions computed for one invoice.
	CarbonResult struct {
		Category        string  `json:"category"`
		Subcategory     string  `json:"subcategory,omitempty"`
		Quantity        float64 `json:"quantity,omitempty"`
		Unit            string  `json:"unit,omitempty"`
		EmissionFactor  float64 `json:"emission_factor,omitempty"`
		EmissionsKgCO2e float64 `json:"emissions_kg_co2e"`
		Scope           string  `json:"scope"`
	}

	// Scorecard aggregates a batch of transactions.
	Scorecard struct {
		ReportDate          string        `json:"report_date"`
		Standards           string        `json:"standards"`
		ScopeEmissions      Breakdown     `json:"scope_emissions"`
		TotalKgCO2e         float64       `json:"total_kg_co2e"`
		TotalTonnesCO2e     float64       `json:"total_tonnes_co2e"`
		TransactionCount    int           `json:"transaction_count"`
		BreakdownByCategory Breakdown     `json:"breakdown_by_category"`
		Transactions        []Transaction `json:"transactions"`
	}

	// Extracted holds the best-effort fields read from an invoice document.
	Extracted struct {
		Supplier    *string  `json:"supplier"`
		Amount      *float64 `json:"amount"`
		Date        *string  `json:"date,omitempty"`
		Description *string  `json:"description"`
		Category    *string  `json:"category"`
	}

	// InvoiceResult is the response to a single invoice upload.
	InvoiceResult struct {
		Extracted    Extracted     `json:"extracted"`
		CarbonResult *CarbonResult `json:"carbon_result"`
		TextPreview  string        `json:"text_preview"`
	}

	// BatchResult is the response to a batch of transactions. Scorecard is
	// nil when the backend sent none.
	BatchResult struct {
		Transactions []Transaction `json:"transactions"`
		Scorecard    *Scorecard    `json:"scorecard"`
	}

	// Document is an uploaded invoice file.
	Document struct {
		Name        string
		ContentType string
		Content     []byte
	}
)

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrNegativeAmount   = errors.New("negative amount")
	ErrTotalsMismatch   = errors.New("scorecard totals do not match")
)

// Validate checks the fields the backend requires.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if t.AmountGBP < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// IsEmpty reports whether no file was chosen.
func (d Document) IsEmpty() bool {
	return d.Name == "" && len(d.Content) == 0
}

// IsImageOrPDF reports whether the declared MIME type is an image or a PDF.
func (d Document) IsImageOrPDF() bool {
	ct := strings.ToLower(strings.TrimSpace(d.ContentType))
	return strings.HasPrefix(ct, "image/") || ct == "application/pdf"
}

// CheckTotals verifies that the grand total matches both breakdowns within tol kg.
func (s Scorecard) CheckTotals(tol float64) error {
	if diff(s.TotalKgCO2e, s.ScopeEmissions.Sum()) > tol {
		return ErrTotalsMismatch
	}
	if diff(s.TotalKgCO2e, s.BreakdownByCategory.Sum()) > tol {
		return ErrTotalsMismatch
	}
	return nil
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// String returns a pointer to s, for building optional fields.
func String(s string) *string { return &s }

// Float returns a pointer to f, for building optional fields.
func Float(f float64) *float64 { return &f }
