// Package upload holds the state of the invoice upload widget.
package upload

import (
	"context"
	"errors"
	"sync"

	"esgdash/internal/core"
)

// ErrorMessage is shown to the user when processing fails.
const ErrorMessage = "Failed to process. Is the backend running?"

var (
	ErrNoFile   = errors.New("no file selected")
	ErrInFlight = errors.New("upload already in progress")
)

// Processor sends one invoice to the backend.
type Processor interface {
	ProcessInvoice(ctx context.Context, doc core.Document) (core.InvoiceResult, error)
}

// Widget owns one selected document, an in-flight flag and the last error
// message. It is safe for concurrent use.
type Widget struct {
	proc     Processor
	onResult func(core.InvoiceResult)

	mu       sync.Mutex
	selected *core.Document
	inFlight bool
	errMsg   string
}

// NewWidget returns an idle widget. onResult, if non-nil, receives every
// successful result.
func NewWidget(proc Processor, onResult func(core.InvoiceResult)) *Widget {
	return &Widget{proc: proc, onResult: onResult}
}

// Pick selects doc from the file picker. Empty documents are ignored.
func (w *Widget) Pick(doc core.Document) bool {
	if doc.IsEmpty() {
		return false
	}
	return w.sel(doc)
}

// Drop selects doc from a drag-and-drop gesture. Only images and PDFs are
// accepted; anything else leaves the selection unchanged.
func (w *Widget) Drop(doc core.Document) bool {
	if doc.IsEmpty() || !doc.IsImageOrPDF() {
		return false
	}
	return w.sel(doc)
}

func (w *Widget) sel(doc core.Document) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight {
		return false
	}
	w.selected = &doc
	w.errMsg = ""
	return true
}

// Selected returns the current selection.
func (w *Widget) Selected() (core.Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selected == nil {
		return core.Document{}, false
	}
	return *w.selected, true
}

// CanSubmit reports whether a file is selected and no call is running.
func (w *Widget) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selected != nil && !w.inFlight
}

// InFlight reports whether a submission is running.
func (w *Widget) InFlight() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

// Err returns the last user-facing error message, or "".
func (w *Widget) Err() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errMsg
}

// Submit sends the selected document. On failure the widget records
// ErrorMessage and the cause is returned; the in-flight flag is cleared
// either way.
func (w *Widget) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.selected == nil {
		w.mu.Unlock()
		return ErrNoFile
	}
	if w.inFlight {
		w.mu.Unlock()
		return ErrInFlight
	}
	doc := *w.selected
	w.errMsg = ""
	w.inFlight = true
	w.mu.Unlock()

	res, err := w.proc.ProcessInvoice(ctx, doc)

	w.mu.Lock()
	w.inFlight = false
	if err != nil {
		w.errMsg = ErrorMessage
	}
	w.mu.Unlock()

	if err != nil {
		return err
	}
	if w.onResult != nil {
		w.onResult(res)
	}
	return nil
}
