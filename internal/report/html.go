package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"

	"esgdash/internal/core"
)

//go:embed scorecard.html
var scorecardHTML string

// SampleRows is how many transactions the printable report lists.
const SampleRows = 15

var reportTemplate = template.Must(template.New("scorecard").Funcs(template.FuncMap{
	"kg": func(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) },
	"opt": func(s *string) string {
		if s == nil {
			return "—"
		}
		return *s
	},
	"optkg": func(v *float64) string {
		if v == nil {
			return "—"
		}
		return decimal.NewFromFloat(*v).StringFixed(2)
	},
}).Parse(scorecardHTML))

type htmlData struct {
	Generated    string
	Scorecard    core.Scorecard
	TotalTonnes  string
	Transactions []core.Transaction
}

// HTML renders the scorecard as a standalone printable page.
func HTML(sc core.Scorecard) ([]byte, error) {
	generated := sc.ReportDate
	if len(generated) > 19 {
		generated = generated[:19]
	}
	rows := sc.Transactions
	if len(rows) > SampleRows {
		rows = rows[:SampleRows]
	}
	data := htmlData{
		Generated:    generated,
		Scorecard:    sc,
		TotalTonnes:  decimal.NewFromFloat(sc.TotalTonnesCO2e).StringFixed(2),
		Transactions: rows,
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render scorecard html: %w", err)
	}
	return buf.Bytes(), nil
}
