package render

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/fillstate"
	"github.com/joelkehle/kontrata/internal/normalize"
	"github.com/joelkehle/kontrata/internal/schema"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const DateLayout = "January 2, 2006"

type Input struct {
	Category contract.Category
	Details  contract.Details
	Clauses  []string
	LawName  string
}

type Renderer struct {
	resolver  *schema.Resolver
	templates *template.Template
	now       func() time.Time
}

func New(resolver *schema.Resolver) (*Renderer, error) {
	if resolver == nil {
		resolver = schema.NewResolver()
	}
	tmpl, err := template.New("contracts").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"inc":     func(i int) int { return i + 1 },
			"ordinal": ordinal,
			"pad":     func(s string, n int) string { return fmt.Sprintf("%-*s", n, s) },
		}).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{resolver: resolver, templates: tmpl, now: time.Now}, nil
}

type document struct {
	Date            string
	Year            int
	F               map[string]string
	Partners        []string
	Clauses         []string
	LawName         string
	PrincipalOffice string
	City            string
}

// Render fills the category template. Fields the user never supplied take
// the schema default; a date default is today's date.
func (r *Renderer) Render(in Input) (string, error) {
	t := r.templates.Lookup(in.Category.Key() + ".tmpl")
	if t == nil {
		return "", fmt.Errorf("no template for %s", in.Category)
	}
	now := r.now()
	doc := document{
		Date:    now.Format(DateLayout),
		Year:    now.Year(),
		F:       map[string]string{},
		Clauses: in.Clauses,
		LawName: in.LawName,
	}
	for name, v := range in.Details {
		if fillstate.IsFilled(v) {
			doc.F[name] = v.String()
		}
	}
	for _, f := range r.resolver.Fields(in.Category) {
		if _, ok := doc.F[f.Name]; ok {
			continue
		}
		doc.F[f.Name] = r.defaultFor(f, now)
	}

	if in.Category == contract.CategoryPartnership {
		doc.Partners = partners(in.Details["partner_names"])
		doc.PrincipalOffice = doc.F["business_address"]
		if po := in.Details["principal_office"]; fillstate.IsFilled(po) {
			doc.PrincipalOffice = po.String()
		}
		doc.City = cityOf(doc.F["business_address"])
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render %s: %w", in.Category, err)
	}
	return buf.String(), nil
}

func (r *Renderer) defaultFor(f schema.Field, now time.Time) string {
	switch {
	case f.DefaultKind == schema.DefaultToday:
		return now.Format(DateLayout)
	case f.Default != "":
		return f.Default
	default:
		return "[" + strings.ToUpper(f.Label()) + "]"
	}
}

func partners(v contract.Value) []string {
	raw := v.List
	if v.Kind == contract.KindText {
		raw = normalize.ParseListLiteral(v.Text)
	}
	var names []string
	for _, n := range raw {
		if fillstate.IsFilledText(n) {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return []string{"[FIRST PARTNER]", "[SECOND PARTNER]"}
	}
	return names
}

func cityOf(address string) string {
	if !strings.Contains(address, ",") {
		return "[CITY/PROVINCE]"
	}
	parts := strings.Split(address, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

func ordinal(n int) string {
	suffix := "th"
	if n%100 < 10 || n%100 > 20 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
