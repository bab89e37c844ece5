// Package carbon applies emission conversion factors to transactions.
//
// The factor table is an embedded JSON dataset. Transactions are classified
// to a factor key by keyword, a quantity is derived in the factor's unit and
// emissions are rounded to two decimals.
package carbon

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"esgdash/internal/core"
)

//go:embed factors.json
var defaultDataset []byte

// FallbackCategory is used when nothing in the text matches.
const FallbackCategory = "generic_services_gbp"

var ErrUnknownCategory = errors.New("unknown emission category")

// Factor is one conversion factor. Scope is serialized as "category" in
// the dataset.
type Factor struct {
	Scope          string  `json:"category"`
	Subcategory    string  `json:"subcategory"`
	Unit           string  `json:"unit"`
	EmissionFactor float64 `json:"emission_factor"`
}

// KeywordRule maps any of Keywords to Category. Rules are tried in order.
type KeywordRule struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// Dataset is the decoded factor file.
type Dataset struct {
	Version          string            `json:"version"`
	Source           string            `json:"source"`
	Factors          map[string]Factor `json:"factors"`
	CategoryKeywords []KeywordRule     `json:"category_keywords"`
}

// Engine classifies transactions and computes their emissions.
type Engine struct {
	data Dataset
	raw  []byte
}

// New returns an engine over the embedded dataset.
func New() (*Engine, error) {
	return Parse(defaultDataset)
}

// Parse returns an engine over a JSON dataset.
func Parse(raw []byte) (*Engine, error) {
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("decode emission factors: %w", err)
	}
	if len(ds.Factors) == 0 {
		return nil, errors.New("emission factors: empty dataset")
	}
	for _, rule := range ds.CategoryKeywords {
		if _, ok := ds.Factors[rule.Category]; !ok {
			return nil, fmt.Errorf("keyword rule for %q: %w", rule.Category, ErrUnknownCategory)
		}
	}
	return &Engine{data: ds, raw: raw}, nil
}

// Dataset returns the raw JSON the engine was built from.
func (e *Engine) Dataset() json.RawMessage { return e.raw }

// Factor looks up a factor by key.
func (e *Engine) Factor(category string) (Factor, bool) {
	f, ok := e.data.Factors[category]
	return f, ok
}

// Calculate converts quantity (in the factor's unit) into a result.
func (e *Engine) Calculate(category string, quantity float64) (core.CarbonResult, error) {
	f, ok := e.data.Factors[category]
	if !ok {
		return core.CarbonResult{}, fmt.Errorf("%q: %w", category, ErrUnknownCategory)
	}
	return core.CarbonResult{
		Category:        category,
		Subcategory:     f.Subcategory,
		Quantity:        quantity,
		Unit:            f.Unit,
		EmissionFactor:  f.EmissionFactor,
		EmissionsKgCO2e: Round2(quantity * f.EmissionFactor),
		Scope:           f.Scope,
	}, nil
}

// Classify maps free text to a factor key. Keyword rules win, then a set of
// broad fallbacks, then FallbackCategory.
func (e *Engine) Classify(description, supplier string) string {
	text := strings.ToLower(description + " " + supplier)
	for _, rule := range e.data.CategoryKeywords {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Category
			}
		}
	}
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}
	switch {
	case has("electric", "power"):
		return "electricity"
	case strings.Contains(text, "gas") && strings.Contains(text, "natural"):
		return "natural_gas"
	case has("diesel", "fuel"):
		return "diesel_litres"
	case has("train", "rail"):
		return "train_national_km"
	case has("flight", "airline"):
		return "flight_short_haul_km"
	case has("hotel"):
		return "hotel_night"
	case has("delivery", "freight", "courier"):
		return "freight_road_kg_km"
	case has("paper", "stationery"):
		return "paper_tonne"
	case has("laptop", "computer", "printer"):
		return "office_equipment_gbp"
	case has("water"):
		return "water_m3"
	case has("waste"):
		return "waste_general_kg"
	case has("material", "supplies"):
		return "generic_materials_gbp"
	}
	return FallbackCategory
}

// Process classifies tx (unless it already names a category) and computes
// its emissions. An explicit quantity is used only when its unit matches the
// factor's; otherwise the quantity is estimated from the amount.
func (e *Engine) Process(tx core.Transaction) (core.CarbonResult, error) {
	supplier := deref(tx.Supplier)
	category := deref(tx.Category)
	if category == "" {
		category = e.Classify(tx.Description, supplier)
	}
	f, ok := e.data.Factors[category]
	if !ok {
		return core.CarbonResult{}, fmt.Errorf("%q: %w", category, ErrUnknownCategory)
	}

	var qty float64
	if tx.Quantity != nil {
		qty = *tx.Quantity
	}
	amount := tx.AmountGBP
	orEstimate := func(est float64) float64 {
		if qty != 0 {
			return qty
		}
		return est
	}

	var q float64
	switch {
	case tx.Quantity != nil && deref(tx.Unit) != "" && deref(tx.Unit) == f.Unit:
		q = qty
	case f.Unit == "GBP":
		q = amount
	case f.Unit == "kWh" && strings.Contains(strings.ToLower(tx.Description+supplier), "electric"):
		q = orEstimate(amount * 0.15)
	case f.Unit == "litre":
		q = orEstimate(amount / 1.5)
	case f.Unit == "km":
		q = orEstimate(amount * 0.15)
	case f.Unit == "night":
		q = orEstimate(1)
	case f.Unit == "tonne.km":
		q = orEstimate(amount * 0.01)
	case f.Unit == "kg", f.Unit == "m3":
		q = orEstimate(amount * 0.5)
	default:
		q = amount
	}
	return e.Calculate(category, q)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
