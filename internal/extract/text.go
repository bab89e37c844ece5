// Package extract reads invoice text from uploaded documents and pulls out
// the fields the carbon engine needs.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"

	"esgdash/internal/core"
)

// SampleText stands in for documents no text could be read from. Images
// always take this path: there is no OCR engine.
const SampleText = `
    INVOICE #INV-00123
    British Gas
    Business Electricity Supply
    Period: 01/01/2024 - 31/01/2024

    Consumption: 12,500 kWh
    Amount: £2,812.50
    VAT: £562.50
    Total: £3,375.00

    Payment due: 28/02/2024
    `

// maxPages bounds how much of a PDF is read.
const maxPages = 3

// Text returns the readable text of doc and whether it came from the
// document itself (false means SampleText was used).
func Text(doc core.Document) (string, bool) {
	if !isPDF(doc) {
		return SampleText, false
	}
	text, err := pdfText(doc.Content)
	if err != nil || strings.TrimSpace(text) == "" {
		return SampleText, false
	}
	return text, true
}

func isPDF(doc core.Document) bool {
	if strings.EqualFold(path.Ext(doc.Name), ".pdf") {
		return true
	}
	return strings.EqualFold(doc.ContentType, "application/pdf")
}

// pdfText reads the first pages row by row, falling back to the reader's
// plain-text stream. Malformed files can panic inside the parser.
func pdfText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	n := r.NumPage()
	if n == 0 {
		return "", fmt.Errorf("pdf has no pages")
	}
	if n > maxPages {
		n = maxPages
	}

	var lines []string
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var words []string
			for _, w := range row.Content {
				words = append(words, w.S)
			}
			if line := strings.TrimSpace(strings.Join(words, " ")); line != "" {
				lines = append(lines, line)
			}
		}
	}
	if len(lines) > 0 {
		return strings.Join(lines, "\n"), nil
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read plain text: %w", err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read plain text: %w", err)
	}
	return string(data), nil
}
