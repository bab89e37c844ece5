// Package dashboard orchestrates the initial dashboard load and owns the
// page's top-level state.
package dashboard

import (
	"context"
	"sync"

	"esgdash/internal/core"
	applog "esgdash/internal/log"
	"esgdash/internal/view"
)

// BatchLimit is how many invoices are sent for the initial scorecard.
const BatchLimit = 50

// Source is the part of the backend client the page needs.
type Source interface {
	SyntheticInvoices(ctx context.Context) ([]core.Transaction, error)
	ProcessTransactions(ctx context.Context, txs []core.Transaction) (core.BatchResult, error)
}

// Page holds one dashboard session. It starts in the loading state.
type Page struct {
	src    Source
	logger *applog.Logger

	mu        sync.Mutex
	loading   bool
	invoices  []core.Transaction
	scorecard *core.Scorecard
}

// Snapshot is a consistent copy of the page state.
type Snapshot struct {
	Loading   bool
	Invoices  []core.Transaction
	Scorecard *core.Scorecard
}

// NewPage returns a page in the loading state.
func NewPage(src Source, logger *applog.Logger) *Page {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Page{
		src:      src,
		logger:   logger.WithComponent(applog.ComponentDashboard),
		loading:  true,
		invoices: []core.Transaction{},
	}
}

// Load fetches the invoices, then a scorecard over the first BatchLimit of
// them. A failure in either step leaves no invoices and no scorecard; the
// cause is logged but not returned. Loading is false afterwards.
func (p *Page) Load(ctx context.Context) {
	defer func() {
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
	}()

	invoices, err := p.src.SyntheticInvoices(ctx)
	if err != nil {
		p.reset(ctx, applog.OpListInvoices, err)
		return
	}
	if invoices == nil {
		invoices = []core.Transaction{}
	}
	p.mu.Lock()
	p.invoices = invoices
	p.mu.Unlock()

	batch := invoices
	if len(batch) > BatchLimit {
		batch = batch[:BatchLimit]
	}
	res, err := p.src.ProcessTransactions(ctx, batch)
	if err != nil {
		p.reset(ctx, applog.OpProcessBatch, err)
		return
	}

	p.mu.Lock()
	p.scorecard = res.Scorecard
	p.mu.Unlock()

	p.logger.DebugContext(ctx, "Dashboard loaded",
		applog.FieldCount, len(invoices),
		"scorecard", res.Scorecard != nil)
}

func (p *Page) reset(ctx context.Context, op string, err error) {
	p.logger.WarnContext(ctx, "Dashboard load failed, showing empty state",
		applog.FieldOperation, op, applog.FieldError, err)
	p.mu.Lock()
	p.invoices = []core.Transaction{}
	p.scorecard = nil
	p.mu.Unlock()
}

// Snapshot returns the current state.
func (p *Page) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Loading:   p.loading,
		Invoices:  p.invoices,
		Scorecard: p.scorecard,
	}
}

// Rows returns the table source: the scorecard's transactions when a
// scorecard is present, otherwise the raw invoices.
func (s Snapshot) Rows() []core.Transaction {
	if s.Scorecard != nil && s.Scorecard.Transactions != nil {
		return s.Scorecard.Transactions
	}
	return s.Invoices
}

// View is everything the dashboard templates render.
type View struct {
	Loading   bool
	Scorecard *view.Scorecard
	Rows      []view.Row
	ReportURL string
}

// View formats the current state. reportURL is the printable report link.
func (p *Page) View(reportURL string) View {
	s := p.Snapshot()
	v := View{
		Loading:   s.Loading,
		Rows:      view.TransactionRows(s.Rows(), view.MaxRows),
		ReportURL: reportURL,
	}
	if s.Scorecard != nil {
		sc := view.NewScorecard(*s.Scorecard)
		v.Scorecard = &sc
	}
	return v
}
