package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/joelkehle/kontrata/internal/contract"
	"github.com/joelkehle/kontrata/internal/intent"
	"github.com/joelkehle/kontrata/internal/llm"
	"github.com/joelkehle/kontrata/internal/rules"
)

var ErrNotContract = errors.New("text does not look like a contract")

// NotContractReply is shown to users when ErrNotContract is returned.
const NotContractReply = "This doesn't appear to be a contract document. Please upload a valid contract (Employment, Partnership, Lease, or Buy & Sell agreement)."

const (
	minContractChars  = 500
	minIndicators     = 3
	minSummarizeChars = 50
	pastedThreshold   = 500
)

var indicators = []string{
	"agreement", "contract", "party", "parties",
	"whereas", "terms and conditions", "obligations",
	"undertakes", "hereby", "witnesseth",
}

// LooksLikeContract requires enough indicator words and enough text.
func LooksLikeContract(text string) bool {
	lower := strings.ToLower(text)
	n := 0
	for _, ind := range indicators {
		if strings.Contains(lower, ind) {
			n++
		}
	}
	return n >= minIndicators && len(text) >= minContractChars
}

// PastedText returns contract text carried in a chat message: whatever
// follows the first colon, or the whole message when it is long.
func PastedText(message string) (string, bool) {
	if i := strings.Index(message, ":"); i >= 0 {
		text := strings.TrimSpace(message[i+1:])
		return text, text != ""
	}
	if len(message) > pastedThreshold {
		return message, true
	}
	return "", false
}

type Section struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

var sectionHeaders = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"parties", regexp.MustCompile(`parties|between|employer and employee`)},
	{"recitals", regexp.MustCompile(`whereas|recitals|background`)},
	{"scope", regexp.MustCompile(`scope|nature|description of work`)},
	{"term", regexp.MustCompile(`term|duration|period`)},
	{"compensation", regexp.MustCompile(`compensation|payment|salary|rent|price`)},
	{"obligations", regexp.MustCompile(`obligations|duties|responsibilities`)},
	{"termination", regexp.MustCompile(`termination|cancellation|end`)},
	{"confidentiality", regexp.MustCompile(`confidentiality|non-disclosure`)},
	{"warranties", regexp.MustCompile(`warranties|representations`)},
	{"dispute", regexp.MustCompile(`dispute|arbitration|governing law`)},
}

// Segment splits text into blank-line paragraphs and groups them under the
// first header pattern each paragraph matches. Text before any header is
// the preamble. A repeated section name keeps its latest content.
func Segment(text string) []Section {
	var out []Section
	index := map[string]int{}
	put := func(name, content string) {
		if i, ok := index[name]; ok {
			out[i].Content = content
			return
		}
		index[name] = len(out)
		out = append(out, Section{Name: name, Content: content})
	}

	current := ""
	var body []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lower := strings.ToLower(para)
		matched := ""
		for _, h := range sectionHeaders {
			if h.pattern.MatchString(lower) {
				matched = h.name
				break
			}
		}
		switch {
		case matched != "":
			if current != "" && len(body) > 0 {
				put(current, strings.Join(body, "\n\n"))
			}
			current = matched
			body = []string{para}
		case current != "":
			body = append(body, para)
		default:
			if _, ok := index["preamble"]; !ok {
				put("preamble", para)
			}
		}
	}
	if current != "" && len(body) > 0 {
		put(current, strings.Join(body, "\n\n"))
	}
	return out
}

type Compliance struct {
	Compliant       bool     `json:"compliant"`
	Violations      []string `json:"violations"`
	Recommendations []string `json:"recommendations"`
	Warnings        []string `json:"warnings,omitempty"`
	Score           int      `json:"score"`
}

// CheckCompliance looks for every mandatory clause name, with underscores
// read as spaces, in the section text. Each miss costs ten points.
func CheckCompliance(book *rules.Book, sections []Section, c contract.Category) Compliance {
	out := Compliance{Compliant: true, Violations: []string{}, Recommendations: []string{}, Score: 100}
	set, ok := book.Get(c)
	if !ok {
		out.Warnings = []string{"No specific law file for this contract type"}
		return out
	}
	for _, cl := range set.RequiredClauses {
		if !cl.Mandatory {
			continue
		}
		needle := strings.ReplaceAll(cl.Name, "_", " ")
		found := false
		for _, s := range sections {
			if strings.Contains(strings.ToLower(s.Content), needle) {
				found = true
				break
			}
		}
		if found {
			continue
		}
		desc := cl.Description
		if desc == "" {
			desc = cl.Name
		}
		out.Violations = append(out.Violations, "Missing required clause: "+desc)
		out.Score -= 10
		out.Compliant = false
	}
	if out.Score < 0 {
		out.Score = 0
	}
	return out
}

type Risk struct {
	Severity       string `json:"severity"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

type RiskReport struct {
	Score float64   `json:"risk_score"`
	Level RiskLevel `json:"risk_level"`
	Risks []Risk    `json:"risks"`
	Total int       `json:"total_risks"`
}

// ScoreRisks weighs each risk at 0.15, capped at 1.
func ScoreRisks(risks []Risk) RiskReport {
	if risks == nil {
		risks = []Risk{}
	}
	score := float64(len(risks)) * 0.15
	if score > 1 {
		score = 1
	}
	level := RiskLow
	switch {
	case score > 0.6:
		level = RiskHigh
	case score > 0.3:
		level = RiskMedium
	}
	return RiskReport{Score: score, Level: level, Risks: risks, Total: len(risks)}
}

type Summary struct {
	Executive string   `json:"executive_summary"`
	KeyPoints []string `json:"key_points"`
}

type Report struct {
	ID         string            `json:"analysis_id"`
	Category   contract.Category `json:"contract_type,omitempty"`
	Sections   []Section         `json:"sections"`
	Summaries  map[string]string `json:"summaries"`
	Compliance Compliance        `json:"legal_compliance"`
	Risks      RiskReport        `json:"risks"`
	Summary    Summary           `json:"summary"`
}

// Analyzer runs the review. The completer is optional; without it no
// section summaries or unfair-term findings are produced.
type Analyzer struct {
	book      *rules.Book
	completer llm.Completer
	newID     func() string
}

func NewAnalyzer(book *rules.Book, completer llm.Completer) *Analyzer {
	if book == nil {
		book = rules.NewBook()
	}
	return &Analyzer{
		book:      book,
		completer: completer,
		newID:     uuid.NewString,
	}
}

// Analyze reviews text. An empty category is detected from the text.
func (a *Analyzer) Analyze(ctx context.Context, text string, c contract.Category) (Report, error) {
	if c == "" {
		c, _ = intent.DetectCategory(text)
	}
	if !LooksLikeContract(text) {
		return Report{}, ErrNotContract
	}

	report := Report{ID: a.newID(), Category: c, Sections: Segment(text), Summaries: map[string]string{}}
	var keyPoints []string
	if a.llmAvailable() {
		for _, s := range report.Sections {
			if len(s.Content) <= minSummarizeChars {
				continue
			}
			if sum, ok := a.summarize(ctx, s); ok {
				report.Summaries[s.Name] = sum
				keyPoints = append(keyPoints, fmt.Sprintf("**%s**: %s", contract.TitleCase(s.Name), sum))
			}
		}
	}

	report.Compliance = CheckCompliance(a.book, report.Sections, c)

	var risks []Risk
	for _, v := range report.Compliance.Violations {
		risks = append(risks, Risk{
			Severity:       "high",
			Category:       "Legal Compliance",
			Description:    v,
			Recommendation: "Add the missing clause to ensure legal compliance",
		})
	}
	if a.llmAvailable() {
		risks = append(risks, a.unfairTerms(ctx, text)...)
	}
	report.Risks = ScoreRisks(risks)
	if keyPoints == nil {
		keyPoints = []string{}
	}
	report.Summary = Summary{Executive: ExecutiveSummary(c, keyPoints, report.Compliance, report.Risks), KeyPoints: keyPoints}
	slog.Info("contract_analyzed", "analysis_id", report.ID, "category", string(c), "sections", len(report.Sections), "risks", report.Risks.Total)
	return report, nil
}

func (a *Analyzer) llmAvailable() bool {
	return a.completer != nil && a.completer.Available()
}

const summarizeSystemPrompt = `You are explaining a contract section to someone who is NOT a lawyer.

Use simple, clear language. Explain:
1. What this section means in plain English
2. Why it matters to the person
3. Any important numbers, dates, or obligations

Be concise (2-3 sentences max).`

func (a *Analyzer) summarize(ctx context.Context, s Section) (string, bool) {
	content := s.Content
	if len(content) > 800 {
		content = content[:800]
	}
	prompt := fmt.Sprintf("Section: %s\n\nContent: %s\n\nExplain this section simply:", s.Name, content)
	return a.completer.Complete(ctx, llm.Request{System: summarizeSystemPrompt, Prompt: prompt, MaxTokens: 150, Temperature: 0.3})
}

const unfairSystemPrompt = `You are reviewing a contract for unfair or one-sided terms.

Look for:
- Unreasonable penalties
- One-sided termination clauses
- Excessive restrictions
- Unclear obligations

Return JSON array of concerns.`

func (a *Analyzer) unfairTerms(ctx context.Context, text string) []Risk {
	if len(text) > 2000 {
		text = text[:2000]
	}
	prompt := fmt.Sprintf(`Contract text: %s

Find any unfair terms. Return JSON array like:
[{"severity": "medium", "category": "Unfair Term", "description": "...", "recommendation": "..."}]

Only include real concerns. If none, return []:`, text)
	out, ok := a.completer.Complete(ctx, llm.Request{System: unfairSystemPrompt, Prompt: prompt, MaxTokens: 400, Temperature: 0.2})
	if !ok {
		return nil
	}
	raw, ok := llm.EmbeddedJSON(out, '[', ']')
	if !ok {
		return nil
	}
	var risks []Risk
	if err := json.Unmarshal([]byte(raw), &risks); err != nil {
		slog.Warn("unfair_terms_parse_failed", "error", err)
		return nil
	}
	kept := risks[:0]
	for _, r := range risks {
		if strings.TrimSpace(r.Description) == "" {
			continue
		}
		if r.Severity == "" {
			r.Severity = "medium"
		}
		kept = append(kept, r)
	}
	return kept
}

// ExecutiveSummary renders the markdown overview shown to the user.
func ExecutiveSummary(c contract.Category, keyPoints []string, comp Compliance, risks RiskReport) string {
	name := "Unknown"
	if c != "" {
		name = c.Title()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s Contract Analysis\n\n", name)

	switch {
	case risks.Level == RiskLow && comp.Compliant:
		sb.WriteString("**Overall: This contract looks good!**\n\n")
	case risks.Level == RiskMedium:
		sb.WriteString("**Overall: Some concerns found**\n\n")
	default:
		sb.WriteString("**Overall: Significant issues detected**\n\n")
	}

	if len(keyPoints) > 0 {
		sb.WriteString("### What This Contract Says:\n\n")
		for i, p := range keyPoints {
			if i == 5 {
				break
			}
			sb.WriteString(p + "\n\n")
		}
	}

	fmt.Fprintf(&sb, "### Legal Compliance: %d%%\n\n", comp.Score)
	if len(comp.Violations) > 0 {
		sb.WriteString("**Missing required clauses:**\n")
		for i, v := range comp.Violations {
			if i == 3 {
				break
			}
			sb.WriteString("- " + v + "\n")
		}
		sb.WriteString("\n")
	}

	if len(risks.Risks) > 0 {
		fmt.Fprintf(&sb, "### Risks Found: %d (%s Risk)\n\n", len(risks.Risks), risks.Level)
		for i, r := range risks.Risks {
			if i == 3 {
				break
			}
			fmt.Fprintf(&sb, "**[%s]** %s\n", strings.ToUpper(r.Severity), r.Description)
			if r.Recommendation != "" {
				fmt.Fprintf(&sb, "→ *%s*\n", r.Recommendation)
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("### No significant risks detected\n\n")
	}

	if !comp.Compliant || risks.Level != RiskLow {
		sb.WriteString("### Recommendation\n\n")
		sb.WriteString("Consider having a lawyer review this contract before signing, especially the issues highlighted above.\n")
	}
	return sb.String()
}
