package extract

import (
	"fmt"
	"regexp"
	"strings"

	"esgdash/internal/core"
)

// Classifier maps free text to an emission category.
type Classifier interface {
	Classify(description, supplier string) string
}

// PreviewLen is how much raw text is echoed back to the client.
const PreviewLen = 500

const maxDescription = 200

var knownSuppliers = []string{
	"edf energy", "british gas", "octopus energy", "shell energy",
	"bp fuel", "shell fuel", "esso", "national rail", "tfl",
	"british airways", "easyjet", "ryanair", "premier inn",
	"travelodge", "dhl", "dpd", "ups", "fedex", "staples",
	"viking direct", "dell", "hp", "thames water", "biffa",
}

var (
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`£\s*([\d,]+\.?\d*)`),
		regexp.MustCompile(`(?i)gbp\s*([\d,]+\.?\d*)`),
		regexp.MustCompile(`(?i)total[:\s]+([\d,]+\.?\d*)`),
		regexp.MustCompile(`(?i)amount[:\s]+([\d,]+\.?\d*)`),
		regexp.MustCompile(`(?i)([\d,]+\.\d{2})\s*(?:gbp|£)`),
	}
	dayFirst   = regexp.MustCompile(`(\d{1,2})[/\-](\d{1,2})[/\-](\d{4})`)
	yearFirst  = regexp.MustCompile(`(\d{4})[/\-](\d{1,2})[/\-](\d{1,2})`)
	numberLine = regexp.MustCompile(`^[\d£\s.,\-/]+$`)
)

// Fields extracts supplier, amount, date, description and category from
// invoice text. Fields that cannot be found are nil; category is always set.
func Fields(text string, c Classifier) core.Extracted {
	ex := core.Extracted{
		Supplier:    supplier(text),
		Amount:      amount(text),
		Date:        date(text),
		Description: core.String(description(text)),
	}
	ex.Category = core.String(c.Classify(text, ""))
	return ex
}

// Preview returns the first PreviewLen characters of text.
func Preview(text string) string {
	return truncate(text, PreviewLen)
}

func supplier(text string) *string {
	lower := strings.ToLower(text)
	for _, s := range knownSuppliers {
		if strings.Contains(lower, s) {
			return core.String(titleCase(s))
		}
	}
	return nil
}

func amount(text string) *float64 {
	for _, re := range amountPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		pence, err := core.ParseGBPToPence(m[1])
		if err != nil {
			continue
		}
		return core.Float(core.PenceToPounds(pence))
	}
	return nil
}

func date(text string) *string {
	if m := dayFirst.FindStringSubmatch(text); m != nil {
		return core.String(fmt.Sprintf("%s-%s-%s", m[3], pad(m[2]), pad(m[1])))
	}
	if m := yearFirst.FindStringSubmatch(text); m != nil {
		return core.String(fmt.Sprintf("%s-%s-%s", m[1], pad(m[2]), pad(m[3])))
	}
	return nil
}

func description(text string) string {
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || numberLine.MatchString(l) {
			continue
		}
		return truncate(l, maxDescription)
	}
	return truncate(text, maxDescription)
}

func pad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
