package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/fillstate"
	"github.com/joelkehle/kontrata/internal/schema"
)

var nameParticles = map[string]bool{
	"de": true, "del": true, "dela": true, "delos": true,
	"las": true, "los": true, "san": true, "jr": true, "sr": true,
	"ii": true, "iii": true, "iv": true,
}

var minorWords = map[string]bool{
	"of": true, "and": true, "the": true, "in": true, "at": true, "to": true,
}

var months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var (
	reWellFormedDate = regexp.MustCompile(`^[A-Z][a-z]+ \d{1,2}, \d{4}$`)
	reMonth          = regexp.MustCompile(`(?i)\b(` + strings.Join(months, "|") + `)\b`)
	reUnit           = regexp.MustCompile(`(?i)\b(years?|months?|days?|weeks?)\b`)
	reNotMoney       = regexp.MustCompile(`[^\d,.]`)
)

// Details returns a normalized copy. Unfilled values are dropped.
func Details(details contract.Details) contract.Details {
	out := make(contract.Details, len(details))
	for field, v := range details {
		nv := Value(field, v)
		if !fillstate.IsFilled(nv) {
			continue
		}
		out[field] = nv
	}
	return out
}

// Value normalizes one field according to its name.
func Value(field string, v contract.Value) contract.Value {
	kind := schema.KindOf(field)
	if kind == schema.KindParties {
		return Parties(v)
	}
	if v.Kind == contract.KindList {
		items := make([]string, 0, len(v.List))
		for _, item := range v.List {
			items = append(items, Text(field, item))
		}
		return contract.List(items...)
	}
	return contract.Text(Text(field, v.Text))
}

func Text(field, s string) string {
	s = strings.TrimSpace(s)
	switch schema.KindOf(field) {
	case schema.KindName, schema.KindParties:
		return FormatName(s)
	case schema.KindAddress:
		return FormatAddress(s)
	case schema.KindMoney:
		return FormatMoney(s)
	case schema.KindDate:
		return FormatDate(s)
	case schema.KindDuration:
		return FormatDuration(s)
	case schema.KindDescription:
		return FormatDescription(s)
	case schema.KindTitle:
		return FormatTitle(s)
	default:
		return BasicCleanup(s)
	}
}

// FormatName capitalizes each word, keeping name particles lowercase unless
// they open the name: "john dela cruz" -> "John dela Cruz".
func FormatName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		bare := strings.TrimSuffix(strings.ToLower(w), ".")
		if i > 0 && nameParticles[bare] {
			words[i] = strings.ToLower(w)
			continue
		}
		words[i] = contract.Capitalize(w)
	}
	return strings.Join(words, " ")
}

func FormatAddress(addr string) string {
	words := strings.Fields(addr)
	for i, w := range words {
		if i > 0 && minorWords[strings.ToLower(w)] {
			words[i] = strings.ToLower(w)
			continue
		}
		words[i] = contract.Capitalize(w)
	}
	return strings.Join(words, " ")
}

// FormatMoney renders with thousands separators and drops zero decimals:
// "PHP 50000" -> "50,000", "1234.5" -> "1,234.5".
func FormatMoney(value string) string {
	digits := strings.ReplaceAll(reNotMoney.ReplaceAllString(value, ""), ",", "")
	if digits == "" {
		return value
	}
	amount, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return value
	}
	fixed := strconv.FormatFloat(amount, 'f', 2, 64)
	intPart, frac, _ := strings.Cut(fixed, ".")
	out := groupThousands(intPart)
	frac = strings.TrimRight(frac, "0")
	if frac != "" {
		out += "." + frac
	}
	return out
}

func groupThousands(digits string) string {
	var b strings.Builder
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatDate fixes month capitalization; "Month DD, YYYY" is left alone.
func FormatDate(date string) string {
	if reWellFormedDate.MatchString(date) {
		return date
	}
	return reMonth.ReplaceAllStringFunc(date, contract.Capitalize)
}

// FormatDuration collapses stuttered word endings ("yearsss" -> "years")
// and capitalizes unit words.
func FormatDuration(d string) string {
	words := strings.Fields(d)
	for i, w := range words {
		words[i] = collapseTrailingRun(w)
	}
	out := strings.Join(words, " ")
	return reUnit.ReplaceAllStringFunc(out, contract.Capitalize)
}

func collapseTrailingRun(w string) string {
	r := []rune(w)
	end := len(r)
	for end > 0 && !unicode.IsLetter(r[end-1]) {
		end--
	}
	if end < 3 {
		return w
	}
	last := unicode.ToLower(r[end-1])
	start := end - 1
	for start > 0 && unicode.ToLower(r[start-1]) == last {
		start--
	}
	if end-start < 3 {
		return w
	}
	return string(r[:start+1]) + string(r[end:])
}

func FormatDescription(desc string) string {
	if desc == "" {
		return desc
	}
	r := []rune(desc)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func FormatTitle(title string) string {
	return contract.TitleCase(title)
}

// BasicCleanup collapses whitespace and repeated ".,!?".
func BasicCleanup(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	var b strings.Builder
	var prev rune
	for _, r := range s {
		if r == prev && strings.ContainsRune(".,!?", r) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// Parties normalizes a multi-party value, accepting a real list or a
// bracketed string such as "['a', 'b']".
func Parties(v contract.Value) contract.Value {
	var items []string
	switch v.Kind {
	case contract.KindList:
		items = v.List
	case contract.KindText:
		items = ParseListLiteral(v.Text)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if name := FormatName(strings.TrimSpace(item)); fillstate.IsFilledText(name) {
			out = append(out, name)
		}
	}
	return contract.List(out...)
}

func ParseListLiteral(s string) []string {
	s = strings.TrimSpace(s)
	if !(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" || !strings.ContainsAny(inner, `,'"`) {
		// "[PARTNERS]" is a placeholder, not a list
		return nil
	}
	var out []string
	for _, part := range strings.Split(inner, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
