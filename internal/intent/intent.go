package intent

import (
	"regexp"
	"strings"

	"github.com/joelkehle/kontrata/internal/contract"
)

type Label string

const (
	Greeting        Label = "GREETING"
	CreateContract  Label = "CREATE_CONTRACT"
	AnalyzeContract Label = "ANALYZE_CONTRACT"
	Question        Label = "QUESTION"
	ProvidingInfo   Label = "PROVIDING_INFO"
	OutOfScope      Label = "OUT_OF_SCOPE"
	Unknown         Label = "UNKNOWN"
)

type Result struct {
	Label      Label             `json:"intent"`
	Category   contract.Category `json:"contract_type,omitempty"`
	Confidence float64           `json:"confidence"`
}

// Utterance is the pre-processed text every rule sees.
type Utterance struct {
	Raw   string
	Lower string
	Words []string
}

func NewUtterance(text string) Utterance {
	lower := strings.ToLower(strings.TrimSpace(text))
	return Utterance{Raw: text, Lower: lower, Words: strings.Fields(lower)}
}

// Rule is one entry of the ordered decision list.
type Rule struct {
	Name  string
	Match func(u Utterance) (Result, bool)
}

type Classifier struct {
	rules []Rule
}

func NewClassifier() *Classifier {
	return &Classifier{rules: DefaultRules()}
}

// NewClassifierWithRules builds a classifier over a custom decision list.
func NewClassifierWithRules(rules []Rule) *Classifier {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return &Classifier{rules: out}
}

func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify labels one utterance. It has no session context; the first rule
// that matches wins and the fallback is PROVIDING_INFO.
func (c *Classifier) Classify(text string) Result {
	u := NewUtterance(text)
	for _, r := range c.rules {
		if res, ok := r.Match(u); ok {
			return res
		}
	}
	return Result{Label: ProvidingInfo, Confidence: 0.5}
}

var greetingTokens = [][]string{
	{"hello"}, {"hi"}, {"hey"},
	{"good", "morning"}, {"good", "afternoon"}, {"good", "evening"},
}

var analysisPhrases = []string{
	"analyze this contract", "analyze contract", "analyse this contract",
	"review this contract", "check this contract", "examine this contract",
	"look at this contract",
}

var (
	reGenerationVerb = regexp.MustCompile(`\b(create|generate|make|need|want|draft|get|prepare|build|write)\b`)
	reContractNoun   = regexp.MustCompile(`\b(contracts?|agreements?|leases?|employment|partnership)\b`)
	reGenericNoun    = regexp.MustCompile(`\b(contracts?|agreements?)\b`)
)

var questionStarts = []string{
	"what", "how", "when", "where", "why", "can", "is", "are",
	"maximum", "minimum", "law", "ground", "requirement", "tell me",
}

// scopeKeywords are matched as substrings.
var scopeKeywords = []string{
	"contract", "agreement", "lease", "rent", "employment", "job",
	"partnership", "business", "buy", "sell", "labor", "worker",
	"salary", "wage", "clause", "party", "parties", "term",
	"generate", "create", "analyze", "review", "legal", "law",
	"what", "how", "when", "maximum", "minimum", "ground", "requirement",
}

func DefaultRules() []Rule {
	return []Rule{
		{Name: "greeting", Match: matchGreeting},
		{Name: "analysis_request", Match: matchAnalysis},
		{Name: "explicit_create", Match: matchExplicitCreate},
		{Name: "implicit_create", Match: matchImplicitCreate},
		{Name: "question", Match: matchQuestion},
		{Name: "out_of_scope", Match: matchOutOfScope},
	}
}

func matchGreeting(u Utterance) (Result, bool) {
	if len(u.Words) == 0 || len(u.Words) > 2 {
		return Result{}, false
	}
	bare := make([]string, len(u.Words))
	for i, w := range u.Words {
		bare[i] = bareWord(w)
	}
	for _, tok := range greetingTokens {
		if len(tok) > len(bare) {
			continue
		}
		match := true
		for i := range tok {
			if bare[i] != tok[i] {
				match = false
				break
			}
		}
		if match {
			return Result{Label: Greeting, Confidence: 1.0}, true
		}
	}
	return Result{}, false
}

func matchAnalysis(u Utterance) (Result, bool) {
	for _, p := range analysisPhrases {
		if strings.Contains(u.Lower, p) {
			return Result{Label: AnalyzeContract, Confidence: 1.0}, true
		}
	}
	return Result{}, false
}

func matchExplicitCreate(u Utterance) (Result, bool) {
	if !reGenerationVerb.MatchString(u.Lower) {
		return Result{}, false
	}
	cat, hasCat := DetectCategory(u.Lower)
	if !hasCat && !reContractNoun.MatchString(u.Lower) {
		return Result{}, false
	}
	return Result{Label: CreateContract, Category: cat, Confidence: 1.0}, true
}

func matchImplicitCreate(u Utterance) (Result, bool) {
	cat, ok := DetectCategory(u.Lower)
	if !ok || !reContractNoun.MatchString(u.Lower) {
		return Result{}, false
	}
	return Result{Label: CreateContract, Category: cat, Confidence: 0.9}, true
}

func matchQuestion(u Utterance) (Result, bool) {
	if !startsWithAny(u, questionStarts) && !strings.Contains(u.Lower, "?") {
		return Result{}, false
	}
	if !InScope(u.Lower) {
		return Result{}, false
	}
	return Result{Label: Question, Confidence: 0.9}, true
}

func matchOutOfScope(u Utterance) (Result, bool) {
	if InScope(u.Lower) {
		return Result{}, false
	}
	return Result{Label: OutOfScope, Confidence: 1.0}, true
}

func startsWithAny(u Utterance, starts []string) bool {
	for _, s := range starts {
		parts := strings.Fields(s)
		if len(parts) > len(u.Words) {
			continue
		}
		match := true
		for i, p := range parts {
			if bareWord(u.Words[i]) != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// bareWord strips punctuation and a possessive or contraction suffix:
// "what's" -> "what".
func bareWord(w string) string {
	w = strings.Trim(w, ".,!?:;")
	for _, suf := range []string{"'s", "’s"} {
		w = strings.TrimSuffix(w, suf)
	}
	return w
}

// MentionsContract reports whether text uses a generic contract noun.
// Category words such as "lease" do not count.
func MentionsContract(text string) bool {
	return reGenericNoun.MatchString(strings.ToLower(text))
}

var (
	reLabelledValue = regexp.MustCompile(`(?i)\b[a-z][a-z _-]{0,40}:[^,;\n]*`)
	reRestartPhrase = regexp.MustCompile(`(?i)\b(?:new|another|different)\s+(?:[a-z&-]+\s+){0,3}?(?:contracts?|agreements?|leases?)\b`)
)

// Unlabelled removes "Label: value" segments, leaving what the user said
// around the collected values.
func Unlabelled(text string) string {
	return strings.TrimSpace(reLabelledValue.ReplaceAllString(text, " "))
}

// AsksForNew reports a restart phrase such as "a new lease contract" or
// "another agreement".
func AsksForNew(text string) bool {
	return reRestartPhrase.MatchString(text)
}

// RequestsGeneration reports a generation verb ("need", "make", "draft")
// together with a contract noun.
func RequestsGeneration(text string) bool {
	lower := strings.ToLower(text)
	return reGenerationVerb.MatchString(lower) && reContractNoun.MatchString(lower)
}

// InScope reports whether text mentions anything the assistant handles.
func InScope(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range scopeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
