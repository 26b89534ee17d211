package slots

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/fillstate"
	"github.com/joelkehle/kontrata/internal/schema"
)

var (
	rePartnerNames  = regexp.MustCompile(`(?i)partner\s*names?\s*:\s*([^\n]+)`)
	reNextLabel     = regexp.MustCompile(`[,;]\s*[A-Za-z][A-Za-z _-]*\s*:`)
	rePartnerSingle = regexp.MustCompile(`(?i)\bpartner\s*[a-z0-9]?\s*:\s*([^,;\n]+?)\s*(?:[,;\n]|$)`)
	reNameSeparator = regexp.MustCompile(`(?i)\s*(?:,|&|\band\b)\s*`)
	reCurrency      = regexp.MustCompile(`(?i)^(?:(?:php|usd)\b|₱|\$)\s*`)
)

// PartnerNames parses "Partner Names: A and B" or repeated "Partner A: x"
// labels into a list of title-cased names.
func PartnerNames(text string) []string {
	if m := rePartnerNames.FindStringSubmatch(text); m != nil {
		rest := m[1]
		if loc := reNextLabel.FindStringIndex(rest); loc != nil {
			rest = rest[:loc[0]]
		}
		if names := splitNames(rest); len(names) > 0 {
			return names
		}
	}
	var names []string
	for _, m := range rePartnerSingle.FindAllStringSubmatch(text, -1) {
		names = append(names, splitNames(m[1])...)
	}
	return names
}

func splitNames(s string) []string {
	var out []string
	for _, part := range reNameSeparator.Split(s, -1) {
		part = cleanValue(part)
		if fillstate.IsFilledText(part) {
			out = append(out, contract.TitleCase(part))
		}
	}
	return out
}

// patternStrategy matches "label: value" for each field's name variants
// and aliases.
type patternStrategy struct{}

func (patternStrategy) Name() string { return "pattern" }

func (patternStrategy) Extract(_ context.Context, req Request) (contract.Details, error) {
	out := contract.Details{}
	for _, f := range req.Fields {
		if v, ok := matchField(req.Text, f); ok {
			out[f.Name] = v
		}
	}
	return out, nil
}

func labelVariants(f schema.Field) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(f.Name)
	add(strings.ReplaceAll(f.Name, "_", " "))
	add(strings.ReplaceAll(f.Name, "_", "-"))
	for _, a := range f.Aliases {
		add(a)
	}
	return out
}

func matchField(text string, f schema.Field) (contract.Value, bool) {
	kind := schema.KindOf(f.Name)
	for _, variant := range labelVariants(f) {
		label := `(?i)\b` + regexp.QuoteMeta(variant) + `\s*[:\-]\s*`
		if kind == schema.KindMoney {
			// Only well-formed thousands groups; a comma after the digits
			// separates the next label.
			re := compile(label + `(?:php|usd|₱|\$)?\s*((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)`)
			if m := re.FindStringSubmatch(text); m != nil {
				return contract.Text(strings.TrimRight(m[1], ",")), true
			}
		}
		m := compile(label + `([^,\n]+?)(?:,|\.\s|\.$|\n|$)`).FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := cleanValue(m[1])
		if !fillstate.IsFilledText(value) {
			continue
		}
		switch kind {
		case schema.KindParties:
			if names := splitNames(value); len(names) > 0 {
				return contract.List(names...), true
			}
			continue
		case schema.KindName:
			value = contract.TitleCase(value)
		}
		return contract.Text(value), true
	}
	return contract.Unset, false
}

var patternCache sync.Map

func compile(expr string) *regexp.Regexp {
	if re, ok := patternCache.Load(expr); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(expr)
	patternCache.Store(expr, re)
	return re
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "•")
	s = reCurrency.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.TrimSpace(strings.TrimRight(s, ".,;:!"))
}
