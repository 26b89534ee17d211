package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Category string

const (
	CategoryEmployment  Category = "EMPLOYMENT"
	CategoryPartnership Category = "PARTNERSHIP"
	CategoryLease       Category = "LEASE"
	CategoryBuySell     Category = "BUY_SELL"
)

// Categories is the fixed detection and display order.
var Categories = []Category{
	CategoryEmployment,
	CategoryPartnership,
	CategoryLease,
	CategoryBuySell,
}

func ParseCategory(raw string) (Category, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.NewReplacer(" ", "_", "-", "_", "&", "_").Replace(v)
	switch v {
	case "BUY_AND_SELL", "BUYSELL", "SALE":
		v = string(CategoryBuySell)
	}
	for _, c := range Categories {
		if string(c) == v {
			return c, true
		}
	}
	return "", false
}

// Title renders the category for users, e.g. "Buy Sell".
func (c Category) Title() string {
	return TitleCase(strings.ReplaceAll(string(c), "_", " "))
}

// Key is the lowercase identifier used for rule files and templates.
func (c Category) Key() string {
	return strings.ToLower(string(c))
}

type ValueKind int

const (
	KindUnset ValueKind = iota
	KindText
	KindList
)

// Value is a field value. The zero Value is unset, which is distinct from
// a text value the user typed.
type Value struct {
	Kind ValueKind
	Text string
	List []string
}

var Unset = Value{}

func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

func List(items ...string) Value {
	out := make([]string, len(items))
	copy(out, items)
	return Value{Kind: KindList, List: out}
}

func (v Value) IsUnset() bool {
	return v.Kind == KindUnset
}

func (v Value) IsList() bool {
	return v.Kind == KindList
}

// String joins list items for display.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindList:
		return strings.Join(v.List, ", ")
	default:
		return ""
	}
}

func (v Value) Clone() Value {
	if v.Kind == KindList {
		return List(v.List...)
	}
	return v
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindText:
		return json.Marshal(v.Text)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromAny converts decoded JSON or YAML scalars and arrays into a Value.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Unset, nil
	case string:
		return Text(t), nil
	case bool:
		return Text(strconv.FormatBool(t)), nil
	case float64:
		return Text(strconv.FormatFloat(t, 'f', -1, 64)), nil
	case int:
		return Text(strconv.Itoa(t)), nil
	case int64:
		return Text(strconv.FormatInt(t, 10)), nil
	case []string:
		return List(t...), nil
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			iv, err := FromAny(item)
			if err != nil {
				return Unset, err
			}
			if iv.Kind == KindList {
				items = append(items, iv.List...)
				continue
			}
			items = append(items, iv.Text)
		}
		return List(items...), nil
	default:
		return Unset, fmt.Errorf("unsupported value type %T", raw)
	}
}

// Details maps field names to values.
type Details map[string]Value

func (d Details) Clone() Details {
	out := make(Details, len(d))
	for k, v := range d {
		out[k] = v.Clone()
	}
	return out
}

// Get returns the text form of a field, or "" when unset.
func (d Details) Get(field string) string {
	return d[field].String()
}

type Outcome struct {
	Valid          bool     `json:"valid"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	AppliedDefault []string `json:"applied_defaults"`
}

func NewOutcome() Outcome {
	return Outcome{Valid: true, Errors: []string{}, Warnings: []string{}, AppliedDefault: []string{}}
}

type Record struct {
	ID              string    `json:"id"`
	Category        Category  `json:"contract_type"`
	Content         string    `json:"content"`
	Details         Details   `json:"details"`
	OriginalDetails Details   `json:"original_details"`
	SpecialClauses  []string  `json:"special_clauses"`
	Validation      Outcome   `json:"validation"`
	CreatedAt       time.Time `json:"created_at"`
}

// FieldTitle renders a snake_case field name for users: "start_date" -> "Start Date".
func FieldTitle(field string) string {
	return TitleCase(strings.ReplaceAll(field, "_", " "))
}

// TitleCase upper-cases the first letter of every space separated word and
// lower-cases the rest.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = Capitalize(w)
	}
	return strings.Join(words, " ")
}

// Capitalize upper-cases the first rune and lower-cases the remainder.
func Capitalize(w string) string {
	if w == "" {
		return w
	}
	r := []rune(strings.ToLower(w))
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
