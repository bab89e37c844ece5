// Package view formats scorecards and transactions for the dashboard templates.
// Absent backend values get their display defaults here and nowhere else.
package view

import (
	"fmt"

	"github.com/shopspring/decimal"

	"esgdash/internal/core"
)

const (
	// TopCategories is how many category rows the scorecard shows.
	TopCategories = 10
	// MaxRows caps the transactions table.
	MaxRows = 15
	// Placeholder replaces absent category and emissions values.
	Placeholder = "—"
)

var thousand = decimal.NewFromInt(1000)

// Line is a labelled, formatted value.
type Line struct {
	Label string
	Value string
}

// Scorecard is the display form of a core.Scorecard.
type Scorecard struct {
	Scopes     []Line
	Total      string
	Summary    string
	Categories []Line
	ReportDate string
	Standards  string
}

// NewScorecard formats sc. Scope and category values keep the order the
// backend sent; only the first TopCategories categories are kept.
func NewScorecard(sc core.Scorecard) Scorecard {
	out := Scorecard{
		Total:      fmt.Sprintf("Total: %s tonnes CO2e", Tonnes(sc.TotalKgCO2e)),
		Summary:    fmt.Sprintf("%d transactions • UK SRS aligned", sc.TransactionCount),
		ReportDate: sc.ReportDate,
		Standards:  sc.Standards,
	}
	for _, a := range sc.ScopeEmissions {
		out.Scopes = append(out.Scopes, Line{Label: a.Name, Value: fixed(a.KgCO2e, 1) + " kg CO2e"})
	}
	for _, a := range sc.BreakdownByCategory.Head(TopCategories) {
		out.Categories = append(out.Categories, Line{Label: a.Name, Value: fixed(a.KgCO2e, 1) + " kg"})
	}
	return out
}

// Tonnes converts kg to tonnes, rounded half-up to two decimals.
func Tonnes(kg float64) string {
	return decimal.NewFromFloat(kg).Div(thousand).StringFixed(2)
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
