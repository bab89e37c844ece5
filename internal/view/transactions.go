package view

import (
	"strconv"

	"esgdash/internal/core"
)

// Row is one formatted transaction table row.
type Row struct {
	Key         string
	Supplier    string
	Description string
	Amount      string
	Category    string
	Emissions   string
}

// TransactionRows formats at most limit transactions. A non-positive limit
// means MaxRows.
func TransactionRows(txs []core.Transaction, limit int) []Row {
	if limit <= 0 {
		limit = MaxRows
	}
	if len(txs) > limit {
		txs = txs[:limit]
	}
	rows := make([]Row, 0, len(txs))
	for i, tx := range txs {
		r := Row{
			Key:         deref(tx.ID, ""),
			Supplier:    deref(tx.Supplier, ""),
			Description: tx.Description,
			Amount:      "£" + fixed(tx.AmountGBP, 2),
			Category:    deref(tx.Category, Placeholder),
			Emissions:   Placeholder,
		}
		if r.Key == "" {
			r.Key = "row-" + strconv.Itoa(i)
		}
		if tx.EmissionsKgCO2e != nil {
			r.Emissions = fixed(*tx.EmissionsKgCO2e, 1)
		}
		rows = append(rows, r)
	}
	return rows
}

func deref(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
