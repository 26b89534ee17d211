package fillstate

import (
	"regexp"
	"strings"

	"github.com/joelkehle/kontrata/internal/contract"
)

var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)^\[.*\]$`),
	regexp.MustCompile(`^\.\.\.+$`),
	regexp.MustCompile(`(?i)^to be determined$`),
	regexp.MustCompile(`(?i)^tbd$`),
	regexp.MustCompile(`(?i)^n/?a$`),
}

// IsFilled reports presence only. Garbage text still counts as filled.
func IsFilled(v contract.Value) bool {
	switch v.Kind {
	case contract.KindText:
		return IsFilledText(v.Text)
	case contract.KindList:
		for _, item := range v.List {
			if strings.TrimSpace(item) != "" {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func IsFilledText(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, re := range placeholderPatterns {
		if re.MatchString(s) {
			return false
		}
	}
	return true
}

// Partition splits schema fields into filled and missing, preserving order.
func Partition(fields []string, details contract.Details) (filled, missing []string) {
	filled = []string{}
	missing = []string{}
	for _, f := range fields {
		if IsFilled(details[f]) {
			filled = append(filled, f)
		} else {
			missing = append(missing, f)
		}
	}
	return filled, missing
}
