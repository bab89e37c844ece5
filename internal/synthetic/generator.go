// Package synthetic generates demo invoices from a fixed set of supplier
// templates. Output is deterministic for a given seed and reference date.
package synthetic

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"esgdash/internal/core"
)

// DocumentType is set on every generated invoice.
const DocumentType = "invoice"

// Invoice is a synthetic transaction as served by the demo backend.
type Invoice struct {
	core.Transaction
	DocumentType string `json:"document_type"`
}

type template struct {
	supplier    string
	description string
	category    string
	unit        string
	min, max    float64
	qtyMult     float64
}

var templates = []template{
	{"EDF Energy", "Business electricity supply", "electricity", "kWh", 5000, 50000, 1},
	{"Octopus Energy", "Office electricity quarterly", "electricity", "kWh", 3000, 25000, 1},
	{"British Gas", "Electricity invoice", "electricity", "kWh", 4000, 40000, 1},
	{"British Gas", "Natural gas supply", "natural_gas", "kWh", 2000, 30000, 1},
	{"Shell Energy", "Gas heating", "natural_gas", "kWh", 1000, 20000, 1},
	{"BP Fuel", "Diesel for company vehicles", "diesel_litres", "litre", 200, 2000, 1.5},
	{"Shell Fuel", "Petrol - business travel", "petrol_litres", "litre", 100, 800, 1.4},
	{"Esso", "Fleet fuel", "diesel_litres", "litre", 500, 3000, 1.5},
	{"Enterprise Rent-A-Car", "Business car hire - 5 days", "car_diesel_km", "km", 200, 800, 1},
	{"National Rail", "Rail tickets London-Manchester", "train_national_km", "km", 300, 600, 1},
	{"TFL", "Oyster business travel", "train_underground_km", "km", 50, 300, 1},
	{"British Airways", "Flight London-Edinburgh", "flight_short_haul_km", "km", 400, 600, 1},
	{"Premier Inn", "Hotel accommodation - 2 nights", "hotel_night", "night", 2, 5, 1},
	{"Travelodge", "Business stay", "hotel_night", "night", 1, 4, 1},
	{"DHL", "Freight delivery", "freight_road_kg_km", "tonne.km", 500, 5000, 0.001},
	{"DPD", "Parcel delivery", "freight_road_kg_km", "tonne.km", 100, 2000, 0.001},
	{"UPS", "International shipping", "freight_sea_kg_km", "tonne.km", 10000, 100000, 0.00001},
	{"Staples", "Office paper and stationery", "paper_tonne", "kg", 50, 500, 0.001},
	{"Viking Direct", "Printer paper A4", "paper_tonne", "kg", 100, 400, 0.001},
	{"Dell", "Laptop purchase", "office_equipment_gbp", "GBP", 500, 1500, 1},
	{"HP", "Printer", "office_equipment_gbp", "GBP", 200, 800, 1},
	{"Thames Water", "Water supply", "water_m3", "m3", 20, 200, 1},
	{"Biffa", "Waste collection", "waste_general_kg", "kg", 500, 3000, 1},
	{"Generic Supplies Ltd", "Materials", "generic_materials_gbp", "GBP", 200, 2000, 1},
	{"Consulting Co", "Professional services", "generic_services_gbp", "GBP", 1000, 5000, 1},
}

// Generate returns n invoices dated up to a year before now, newest first.
// Ids are assigned in generation order (INV-00001, INV-00002, ...).
func Generate(n int, seed int64, now time.Time) []Invoice {
	if n <= 0 {
		return []Invoice{}
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]Invoice, 0, n)
	for i := 1; i <= n; i++ {
		t := templates[rng.Intn(len(templates))]
		out = append(out, t.invoice(rng, i, now))
	}
	sort.SliceStable(out, func(a, b int) bool {
		return *out[a].Date > *out[b].Date
	})
	return out
}

func (t template) invoice(rng *rand.Rand, id int, now time.Time) Invoice {
	amount := round2(t.min + rng.Float64()*(t.max-t.min))
	qty := round2(amount * t.qtyMult)
	date := now.AddDate(0, 0, -rng.Intn(366)).Format(time.DateOnly)
	return Invoice{
		Transaction: core.Transaction{
			ID:          core.String(fmt.Sprintf("INV-%05d", id)),
			Supplier:    core.String(t.supplier),
			Description: t.description,
			AmountGBP:   amount,
			Quantity:    core.Float(qty),
			Unit:        core.String(t.unit),
			Category:    core.String(t.category),
			Date:        core.String(date),
		},
		DocumentType: DocumentType,
	}
}

// Transactions strips the invoice envelope.
func Transactions(invoices []Invoice) []core.Transaction {
	out := make([]core.Transaction, len(invoices))
	for i, inv := range invoices {
		out[i] = inv.Transaction
	}
	return out
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
