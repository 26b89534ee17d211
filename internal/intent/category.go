package intent

import (
	"regexp"

	"github.com/joelkehle/kontrata/internal/contract"
)

type categoryPatterns struct {
	category contract.Category
	patterns []*regexp.Regexp
}

func words(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)\b`+e+`\b`))
	}
	return out
}

// categoryTable is evaluated in contract.Categories order; the first
// category with any matching pattern wins.
var categoryTable = []categoryPatterns{
	{contract.CategoryEmployment, words(`employment`, `employee`, `job`, `hire`, `work`, `worker`, `labor`, `labour`)},
	{contract.CategoryPartnership, words(`partnership`, `partner`, `business partner`, `joint venture`)},
	{contract.CategoryLease, words(`lease`, `rent`, `rental`, `property`, `lessor`, `lessee`)},
	{contract.CategoryBuySell, words(`buy`, `sell`, `purchase`, `sale`, `buyer`, `seller`)},
}

// DetectCategory returns the first category whose keywords appear in text.
// A message naming two categories resolves by table order.
func DetectCategory(text string) (contract.Category, bool) {
	for _, row := range categoryTable {
		for _, re := range row.patterns {
			if re.MatchString(text) {
				return row.category, true
			}
		}
	}
	return "", false
}
