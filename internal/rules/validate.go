package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/fillstate"
)

type Validator struct {
	book *Book
}

func NewValidator(book *Book) *Validator {
	return &Validator{book: book}
}

// Validate checks details against the category's rule set. Declared
// defaults are written into details for missing clauses. Only blocking
// errors make the outcome invalid.
func (v *Validator) Validate(c contract.Category, details contract.Details) contract.Outcome {
	out := contract.NewOutcome()
	set, ok := v.book.Get(c)
	if !ok {
		out.Warnings = append(out.Warnings, fmt.Sprintf("No Philippine law file loaded for %s", c))
		return out
	}

	for _, cl := range set.RequiredClauses {
		if fillstate.IsFilled(details[cl.Name]) {
			continue
		}
		switch {
		case cl.Default != nil:
			details[cl.Name] = contract.Text(*cl.Default)
			out.AppliedDefault = append(out.AppliedDefault, fmt.Sprintf("%s: %s", contract.FieldTitle(cl.Name), *cl.Default))
		case cl.Mandatory:
			out.Errors = append(out.Errors, fmt.Sprintf("Missing required: %s", contract.FieldTitle(cl.Name)))
		}
	}

	for _, field := range set.ConstraintFields() {
		cons := set.Constraints[field]
		if cons.Min == nil && cons.Max == nil {
			continue
		}
		val := details[field]
		if !fillstate.IsFilled(val) || val.IsList() {
			continue
		}
		n, err := parseNumber(val.Text)
		if err != nil {
			continue
		}
		if cons.Min != nil && n < *cons.Min {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: Below minimum of %s", contract.FieldTitle(field), formatNumber(*cons.Min)))
		}
		if cons.Max != nil && n > *cons.Max {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: Above maximum of %s", contract.FieldTitle(field), formatNumber(*cons.Max)))
		}
	}

	out.Valid = len(out.Errors) == 0
	return out
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
