// Package report turns processed transactions into an ESG scorecard and its
// printable HTML form.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"esgdash/internal/core"
)

const (
	// Standards is the reporting framework named on every scorecard.
	Standards = "UK Sustainability Reporting Standards (UK SRS) 2026"

	ScopeDirect   = "Scope 1 - Direct emissions"
	ScopeEnergy   = "Scope 2 - Indirect (energy)"
	ScopeValue    = "Scope 3 - Value chain"
	Uncategorized = "Uncategorized"

	// MaxTransactions caps the transactions embedded in a scorecard.
	MaxTransactions = 50

	reportDateLayout = "2006-01-02T15:04:05.000000"
)

// Processor computes emissions for a single transaction.
type Processor interface {
	Process(tx core.Transaction) (core.CarbonResult, error)
}

// ProcessBatch runs every transaction through p and builds the scorecard.
// Transactions p cannot process are dropped from the result.
func ProcessBatch(p Processor, txs []core.Transaction, now time.Time) core.BatchResult {
	results := make([]core.Transaction, 0, len(txs))
	var scopes [3]float64
	for _, tx := range txs {
		r, err := p.Process(tx)
		if err != nil {
			continue
		}
		row := tx
		row.Category = core.String(r.Category)
		row.EmissionsKgCO2e = core.Float(r.EmissionsKgCO2e)
		row.Scope = core.String(r.Scope)
		results = append(results, row)

		switch {
		case strings.Contains(r.Scope, core.Scope1):
			scopes[0] += r.EmissionsKgCO2e
		case strings.Contains(r.Scope, core.Scope2):
			scopes[1] += r.EmissionsKgCO2e
		default:
			scopes[2] += r.EmissionsKgCO2e
		}
	}
	sc := BuildScorecard(results, scopes, now)
	return core.BatchResult{Transactions: results, Scorecard: &sc}
}

// BuildScorecard aggregates processed transactions. scopes holds the Scope
// 1, 2 and 3 totals in kg.
func BuildScorecard(results []core.Transaction, scopes [3]float64, now time.Time) core.Scorecard {
	total := scopes[0] + scopes[1] + scopes[2]
	sample := results
	if len(sample) > MaxTransactions {
		sample = sample[:MaxTransactions]
	}
	return core.Scorecard{
		ReportDate: now.UTC().Format(reportDateLayout),
		Standards:  Standards,
		ScopeEmissions: core.Breakdown{
			{Name: ScopeDirect, KgCO2e: round(scopes[0], 2)},
			{Name: ScopeEnergy, KgCO2e: round(scopes[1], 2)},
			{Name: ScopeValue, KgCO2e: round(scopes[2], 2)},
		},
		TotalKgCO2e:         round(total, 2),
		TotalTonnesCO2e:     round(total/1000, 2),
		TransactionCount:    len(results),
		BreakdownByCategory: byCategory(results),
		Transactions:        sample,
	}
}

// byCategory sums emissions per category, largest first. Ties keep the
// order categories first appeared in.
func byCategory(results []core.Transaction) core.Breakdown {
	var out core.Breakdown
	index := map[string]int{}
	for _, tx := range results {
		name := Uncategorized
		if tx.Category != nil && *tx.Category != "" {
			name = *tx.Category
		}
		var kg float64
		if tx.EmissionsKgCO2e != nil {
			kg = *tx.EmissionsKgCO2e
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, core.Amount{Name: name})
		}
		out[i].KgCO2e += kg
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].KgCO2e > out[b].KgCO2e })
	for i := range out {
		out[i].KgCO2e = round(out[i].KgCO2e, 2)
	}
	if out == nil {
		return core.Breakdown{}
	}
	return out
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
