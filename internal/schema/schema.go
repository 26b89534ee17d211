package schema

import (
	"fmt"
	"strings"

	"github.com/joelkehle/kontrata/internal/contract"
)

// DefaultKind describes what the renderer falls back to when a field is not
// supplied. It decides whether the field must be collected.
type DefaultKind int

const (
	DefaultNone DefaultKind = iota
	DefaultPlaceholder
	DefaultToday
	DefaultMeaningful
)

var defaultKindNames = map[DefaultKind]string{
	DefaultNone:        "none",
	DefaultPlaceholder: "placeholder",
	DefaultToday:       "today",
	DefaultMeaningful:  "meaningful",
}

func (k DefaultKind) String() string {
	if s, ok := defaultKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("DefaultKind(%d)", int(k))
}

func ParseDefaultKind(raw string) (DefaultKind, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	for k, name := range defaultKindNames {
		if name == v {
			return k, nil
		}
	}
	return DefaultNone, fmt.Errorf("unknown default kind %q", raw)
}

// Required is true for fields without a usable default.
func (k DefaultKind) Required() bool {
	return k != DefaultMeaningful
}

type Field struct {
	Name        string
	Aliases     []string
	Default     string
	DefaultKind DefaultKind
	Multi       bool
}

func (f Field) Required() bool {
	return f.DefaultKind.Required()
}

func (f Field) Label() string {
	return contract.FieldTitle(f.Name)
}

// Reserved names carry clause or law metadata and are never collected.
var Reserved = map[string]bool{
	"special_clauses": true,
	"applicable_laws": true,
}

var meaningfulPhrases = []string{
	"as per", "according to", "per company policy",
	"regular", "full payment", "monthly", "quarterly",
	"as agreed", "to be determined", "n/a", "none",
}

// ClassifyDefault infers a DefaultKind from the literal default text a
// renderer would use. Unrecognised text is treated as required.
func ClassifyDefault(text string) DefaultKind {
	clean := strings.Trim(strings.TrimSpace(text), `'"`)
	if clean == "" {
		return DefaultNone
	}
	if strings.HasPrefix(clean, "[") && strings.HasSuffix(clean, "]") {
		return DefaultPlaceholder
	}
	if strings.EqualFold(clean, "{{today}}") {
		return DefaultToday
	}
	lower := strings.ToLower(clean)
	for _, p := range meaningfulPhrases {
		if strings.Contains(lower, p) {
			return DefaultMeaningful
		}
	}
	return DefaultNone
}

// FieldKind selects normalization and entity assignment for a field name.
type FieldKind int

const (
	KindOther FieldKind = iota
	KindParties
	KindName
	KindAddress
	KindMoney
	KindDate
	KindDuration
	KindDescription
	KindTitle
)

var moneyWords = []string{"salary", "price", "rent", "amount", "deposit", "fee", "capital"}

var durationWords = []string{"duration", "period", "term"}

// KindOf classifies a field by name. Order matters: "business_name" is a
// name, "rental_amount" is money.
func KindOf(field string) FieldKind {
	f := strings.ToLower(field)
	switch {
	case f == "partner_names" || strings.HasSuffix(f, "_names"):
		return KindParties
	case strings.Contains(f, "name"):
		return KindName
	case strings.Contains(f, "address"):
		return KindAddress
	case containsAny(f, moneyWords):
		return KindMoney
	case strings.Contains(f, "date"):
		return KindDate
	case containsAny(f, durationWords):
		return KindDuration
	case strings.Contains(f, "description"):
		return KindDescription
	case strings.Contains(f, "position") || strings.Contains(f, "title"):
		return KindTitle
	default:
		return KindOther
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
